package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/board"
	"github.com/gen2brain/aout/phy"
)

var (
	srdWidth int
	srdWait  time.Duration
)

var srdCmd = &cobra.Command{
	Use:   "srd <hz>...",
	Short: "Feed detected LRCLK frequencies to an I2STX slave session",
	Long: `Open an I2STX session in slave mode and raise sample rate detector
interrupts for each frequency given, printing the events the session receives.

Examples:
  # A source switching from 44.1 kHz to 48 kHz
  aoutctl srd 44100 48000

  # Report a 32 BCLK per LRCLK width and wait for the detector timeout
  aoutctl srd --width 32 --wait 1s 48000`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSRD,
}

func init() {
	srdCmd.Flags().IntVar(&srdWidth, "width", 0, "report a BCLK per LRCLK width change (32 or 64)")
	srdCmd.Flags().DurationVar(&srdWait, "wait", 0, "keep the session open after the last edge")
}

func runSRD(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rates := make([]uint32, 0, len(args))
	for _, a := range args {
		hz, err := strconv.ParseUint(a, 10, 32)
		if err != nil || hz == 0 {
			return fmt.Errorf("frequency %q: %w", a, aout.ErrInvalidArgument)
		}
		rates = append(rates, uint32(hz))
	}

	b, err := board.New(cfg.Board)
	if err != nil {
		return err
	}
	if b.I2STX == nil {
		return fmt.Errorf("i2stx disabled on this board: %w", aout.ErrUnavailable)
	}

	mgr, err := b.NewManager(nil)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	events := make(chan string, 16)
	onSRD := func(_ any, event aout.SRDEvent, payload any) {
		var line string
		switch event {
		case aout.I2STX_SRD_FS_CHANGE:
			line = fmt.Sprintf("rate change: %v kHz", payload)
		case aout.I2STX_SRD_WL_CHANGE:
			line = fmt.Sprintf("width change: %v", payload)
		case aout.I2STX_SRD_TIMEOUT:
			line = "timeout"
		default:
			line = fmt.Sprintf("event %d", event)
		}

		select {
		case events <- line:
		default:
		}
	}

	h, err := mgr.Open(&aout.Param{
		ChannelType:  aout.AUDIO_CHANNEL_I2STX,
		OutFifo:      aout.AOUT_FIFO_I2STX0,
		SampleRate:   aout.SAMPLE_RATE_48KHZ,
		ChannelWidth: aout.CHANNEL_WIDTH_16BITS,
		Callback:     func(any, aout.Reason) error { return nil },
		I2STX:        &aout.I2STXSetting{Mode: aout.I2S_MODE_SLAVE, SRDCallback: onSRD},
	})
	if err != nil {
		return err
	}
	defer mgr.Close(h)

	drain := func() {
		for {
			select {
			case line := <-events:
				fmt.Fprintln(out, line)
			default:
				return
			}
		}
	}

	switch srdWidth {
	case 0:
	case 32:
		b.I2STX.RaiseSRD(phy.SRDWidthStatus(aout.SRDSTA_WL_32RATE))
	case 64:
		b.I2STX.RaiseSRD(phy.SRDWidthStatus(aout.SRDSTA_WL_64RATE))
	default:
		return fmt.Errorf("width %d: %w", srdWidth, aout.ErrInvalidArgument)
	}
	drain()

	for _, hz := range rates {
		if _, ok := phy.SRDRate(hz); !ok {
			fmt.Fprintf(out, "%d Hz: no supported rate matches\n", hz)
		}
		b.I2STX.RaiseSRD(phy.SRDStatus(hz))
		drain()
	}

	if srdWait > 0 {
		select {
		case line := <-events:
			fmt.Fprintln(out, line)
		case <-time.After(srdWait):
		}
	}

	var rate aout.SampleRate
	if err := mgr.Control(h, aout.AOUT_CMD_GET_SAMPLERATE, &rate); err != nil {
		return err
	}

	st := b.I2STX.SRDState()
	fmt.Fprintf(out, "Detector:           locked=%v rate=%d kHz width=%d\n", st.Locked, st.Rate, st.Width)
	fmt.Fprintf(out, "Session rate:       %d kHz\n", rate)

	return nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/board"
)

var (
	mixFifo       string
	mixVolume     int32
	mixMute       bool
	mixFifoVolume uint32
	mixDRQLevel   uint32
	mixPA         string
	mixPAClass    string
)

var mixCmd = &cobra.Command{
	Use:   "mix",
	Short: "Apply DAC controls through a session and show the resulting state",
	Long: `Open a DAC session, issue the requested controls through the session
manager and print the DAC state they produce.

Examples:
  # Set the volume to -5 dB
  aoutctl mix --volume -50000

  # Lower the FIFO1 digital gain and power the external PA in class D
  aoutctl mix --fifo DAC1 --fifo-volume 2 --pa open --pa-class d`,
	Args: cobra.NoArgs,
	RunE: runMix,
}

func init() {
	mixCmd.Flags().StringVar(&mixFifo, "fifo", "DAC0", "DAC FIFO of the session")
	mixCmd.Flags().Int32Var(&mixVolume, "volume", 0, "volume in 1/10000 dB")
	mixCmd.Flags().BoolVar(&mixMute, "mute", false, "mute the DAC output")
	mixCmd.Flags().Uint32Var(&mixFifoVolume, "fifo-volume", 0, "FIFO digital gain (0-15)")
	mixCmd.Flags().Uint32Var(&mixDRQLevel, "drq-level", 0, "FIFO DRQ level (0-14)")
	mixCmd.Flags().StringVar(&mixPA, "pa", "", "power amplifier: open or close")
	mixCmd.Flags().StringVar(&mixPAClass, "pa-class", "", "external PA class: ab or d")
}

func runMix(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fifo, err := aout.ParseFifoType(mixFifo)
	if err != nil {
		return err
	}

	b, err := board.New(cfg.Board)
	if err != nil {
		return err
	}
	if b.DAC == nil {
		return fmt.Errorf("dac disabled on this board: %w", aout.ErrUnavailable)
	}

	mgr, err := b.NewManager(nil)
	if err != nil {
		return err
	}

	flags := cmd.Flags()

	// The power amplifier sequence runs its own transient DAC0 session.
	if flags.Changed("pa-class") {
		class := aout.PA_CLASS_AB
		switch strings.ToLower(mixPAClass) {
		case "ab":
		case "d":
			class = aout.PA_CLASS_D
		default:
			return fmt.Errorf("pa class %q: %w", mixPAClass, aout.ErrInvalidArgument)
		}

		if err := mgr.Control(aout.Handle{}, aout.AOUT_CMD_PA_CLASS_SEL, class); err != nil {
			return err
		}
	}

	switch strings.ToLower(mixPA) {
	case "":
	case "open":
		if err := mgr.Control(aout.Handle{}, aout.AOUT_CMD_OPEN_PA, nil); err != nil {
			return err
		}
	case "close":
		if err := mgr.Control(aout.Handle{}, aout.AOUT_CMD_CLOSE_PA, nil); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pa %q: %w", mixPA, aout.ErrInvalidArgument)
	}

	h, err := mgr.Open(&aout.Param{
		ChannelType:  aout.AUDIO_CHANNEL_DAC,
		OutFifo:      fifo,
		SampleRate:   aout.SAMPLE_RATE_48KHZ,
		ChannelWidth: aout.CHANNEL_WIDTH_16BITS,
		Callback:     func(any, aout.Reason) error { return nil },
		DAC: &aout.DACSetting{
			ChannelMode: aout.STEREO_MODE,
			Volume:      aout.VolumeSetting{Left: cfg.Playback.Volume, Right: cfg.Playback.Volume},
		},
	})
	if err != nil {
		return err
	}
	defer mgr.Close(h)

	if flags.Changed("volume") {
		if err := mgr.Control(h, aout.AOUT_CMD_SET_VOLUME, aout.VolumeSetting{Left: mixVolume, Right: mixVolume}); err != nil {
			return err
		}
	}

	if flags.Changed("mute") {
		if err := mgr.Control(h, aout.AOUT_CMD_OUT_MUTE, mixMute); err != nil {
			return err
		}
	}

	if flags.Changed("fifo-volume") {
		if err := mgr.Control(h, aout.AOUT_CMD_SET_DAC_FIFO_VOLUME, mixFifoVolume); err != nil {
			return err
		}
	}

	if flags.Changed("drq-level") {
		if err := mgr.Control(h, aout.AOUT_CMD_SET_DAC_FIFO_DRQ_LEVEL, mixDRQLevel); err != nil {
			return err
		}
	}

	var vol aout.VolumeSetting
	if err := mgr.Control(h, aout.AOUT_CMD_GET_VOLUME, &vol); err != nil {
		return err
	}

	var fifoVol, drq uint32
	if err := mgr.Control(h, aout.AOUT_CMD_GET_DAC_FIFO_VOLUME, &fifoVol); err != nil {
		return err
	}
	if err := mgr.Control(h, aout.AOUT_CMD_GET_DAC_FIFO_DRQ_LEVEL, &drq); err != nil {
		return err
	}

	st := b.DAC.State()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "DAC:                %s (fifo %s)\n", b.DAC.Name(), fifo)
	fmt.Fprintf(out, "Volume:             L=%d R=%d (levels 0x%02x 0x%02x)\n", vol.Left, vol.Right, st.Left, st.Right)
	fmt.Fprintf(out, "Muted:              %v (volume mute %v)\n", st.Muted, st.VolMuted)
	fmt.Fprintf(out, "FIFO volume:        %d\n", fifoVol)
	fmt.Fprintf(out, "DRQ level:          %d\n", drq)
	fmt.Fprintf(out, "Internal PA:        %v\n", st.PAOn)
	if b.PA != nil {
		pa := b.PA.State()
		fmt.Fprintf(out, "External PA:        opened=%v class=%d\n", pa.Opened, pa.Class)
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-audio/audio"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/gen2brain/aout"
	"github.com/gen2brain/aout/board"
	"github.com/gen2brain/aout/config"
	"github.com/gen2brain/aout/dma"
	"github.com/gen2brain/aout/internal/logger"
	"github.com/gen2brain/aout/metrics"
)

var (
	playChannel string
	playFifo    string
	playVolume  int32
	playReload  bool
	playRecord  string
	playPeriod  int
)

var playCmd = &cobra.Command{
	Use:   "play <file>",
	Short: "Play a WAV or MP3 file through an output session",
	Long: `Open an output session and stream a WAV or MP3 file through it.

Examples:
  # Play through the DAC with the configured defaults
  aoutctl play music.wav

  # Play through the I2S transmitter, mirrored on S/PDIF, using a reload ring
  aoutctl play --channel "I2STX|SPDIFTX" --fifo I2STX0 --reload music.mp3

  # Capture what reaches the DAC FIFO
  aoutctl play --record out.wav music.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	playCmd.Flags().StringVar(&playChannel, "channel", "", "channel mask, e.g. DAC or DAC|SPDIFTX (default from config)")
	playCmd.Flags().StringVar(&playFifo, "fifo", "", "output FIFO: DAC0, DAC1, I2STX0 or DAC1_ONLY_SPDIF (default from config)")
	playCmd.Flags().Int32Var(&playVolume, "volume", 0, "DAC volume in 1/10000 dB (default from config)")
	playCmd.Flags().BoolVar(&playReload, "reload", false, "stream through a DMA reload ring instead of one-shot writes")
	playCmd.Flags().StringVar(&playRecord, "record", "", "write the samples reaching the output FIFO to a WAV file")
	playCmd.Flags().IntVar(&playPeriod, "period-size", 0, "transfer size in bytes (default from config)")
}

func runPlay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := applyPlayFlags(cmd, &cfg.Playback); err != nil {
		return err
	}

	src, err := openSource(args[0])
	if err != nil {
		return err
	}
	defer src.Close()

	rate, err := sessionRate(src)
	if err != nil {
		return err
	}

	width := aout.CHANNEL_WIDTH_16BITS
	if src.BitDepth() > 16 && cfg.Playback.Channel.Primary() != aout.AUDIO_CHANNEL_PDMTX {
		width = aout.CHANNEL_WIDTH_24BITS
	}

	var opts []board.Option
	if playReload {
		opts = append(opts, board.WithPacer(dma.RealtimePacer(rate, width, src.NumChans())))
	}

	var rec *recorder
	if playRecord != "" {
		rec, err = newRecorder(playRecord, int(rate.Hz()), width, src.NumChans())
		if err != nil {
			return err
		}
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("close recording", "path", playRecord, "error", err)
			}
		}()
		opts = append(opts, board.WithDACOutput(rec), board.WithI2STXOutput(rec))
	}

	b, err := board.New(cfg.Board, opts...)
	if err != nil {
		return err
	}

	var mtr aout.Metrics
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		mtr = metrics.New(reg)

		srv := serveMetrics(cfg.Metrics.Addr, reg)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}

	mgr, err := b.NewManager(mtr)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total, _ := src.Duration()
	fmt.Fprintf(cmd.OutOrStdout(), "Playing %s: %d channels, %d Hz, %d bits (%v)\n",
		args[0], src.NumChans(), src.SampleRate(), src.BitDepth(), total)
	fmt.Fprintf(cmd.OutOrStdout(), "Session: %s on %s, %s, %s\n", cfg.Playback.Channel, cfg.Playback.Fifo,
		aout.ChannelWidthNames[width], map[bool]string{false: "direct", true: "reload"}[playReload])

	p := &player{
		mgr:    mgr,
		src:    src,
		width:  width,
		period: cfg.Playback.PeriodSize,
		tc:     make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	param := p.param(cfg.Playback, rate)

	start := time.Now()
	if playReload {
		err = p.playReload(ctx, param)
	} else {
		err = p.playDirect(ctx, param)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Playback finished in %v (%d frames)\n", time.Since(start).Round(time.Millisecond), p.frames.Load())

	return err
}

// applyPlayFlags overrides the playback section with the flags set on the command line.
func applyPlayFlags(cmd *cobra.Command, pc *config.PlaybackConfig) error {
	if cmd.Flags().Changed("channel") {
		t, err := aout.ParseChannelType(playChannel)
		if err != nil {
			return err
		}
		pc.Channel = t

		// The default FIFO follows the channel unless one is given.
		if !cmd.Flags().Changed("fifo") && t.Primary() != aout.AUDIO_CHANNEL_DAC && t&aout.AUDIO_CHANNEL_DAC == 0 {
			pc.Fifo = aout.AOUT_FIFO_I2STX0
		}
	}

	if cmd.Flags().Changed("fifo") {
		f, err := aout.ParseFifoType(playFifo)
		if err != nil {
			return err
		}
		pc.Fifo = f
	}

	if cmd.Flags().Changed("volume") {
		pc.Volume = playVolume
	}

	if cmd.Flags().Changed("period-size") {
		if playPeriod <= 0 {
			return fmt.Errorf("period size %d: %w", playPeriod, aout.ErrInvalidArgument)
		}
		pc.PeriodSize = playPeriod
	}

	return nil
}

// player streams a source through one session.
type player struct {
	mgr    *aout.Manager
	src    source
	width  aout.ChannelWidth
	period int

	h      aout.Handle
	tc     chan struct{}
	done   chan struct{}
	once   sync.Once
	frames atomic.Int64
	err    error
}

func (p *player) param(pc config.PlaybackConfig, rate aout.SampleRate) *aout.Param {
	mode := aout.STEREO_MODE
	if p.src.NumChans() == 1 {
		mode = aout.MONO_MODE
	}

	param := &aout.Param{
		ChannelType:  pc.Channel,
		OutFifo:      pc.Fifo,
		SampleRate:   rate,
		ChannelWidth: p.width,
		Callback:     p.callback,
	}

	if pc.Channel&aout.AUDIO_CHANNEL_DAC != 0 {
		param.DAC = &aout.DACSetting{
			ChannelMode: mode,
			Volume:      aout.VolumeSetting{Left: pc.Volume, Right: pc.Volume},
		}
	}
	if pc.Channel&aout.AUDIO_CHANNEL_I2STX != 0 {
		param.I2STX = &aout.I2STXSetting{Mode: aout.I2S_MODE_MASTER}
	}
	if pc.Channel&aout.AUDIO_CHANNEL_SPDIFTX != 0 {
		param.SPDIF = &aout.SPDIFTXSetting{}
	}
	if pc.Channel&aout.AUDIO_CHANNEL_PDMTX != 0 {
		param.PDMTX = &aout.PDMTXSetting{ChannelMode: mode}
	}

	return param
}

// samplesPerPeriod returns how many interleaved samples fit in one transfer.
func (p *player) samplesPerPeriod() int {
	n := p.period / p.width.DMAWidth()
	chans := p.src.NumChans()

	return max(chans, n/chans*chans)
}

func (p *player) newBuffer() *audio.IntBuffer {
	return &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: p.src.NumChans(), SampleRate: int(p.src.SampleRate())},
		Data:           make([]int, p.samplesPerPeriod()),
		SourceBitDepth: p.src.BitDepth(),
	}
}

func (p *player) callback(_ any, reason aout.Reason) error {
	if reason == aout.AOUT_DMA_IRQ_TC {
		select {
		case p.tc <- struct{}{}:
		default:
		}
	}

	return nil
}

func (p *player) finish(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// playDirect writes one period at a time and waits for each transfer to complete.
func (p *player) playDirect(ctx context.Context, param *aout.Param) error {
	h, err := p.mgr.Open(param)
	if err != nil {
		return err
	}
	p.h = h
	defer p.close()

	buf := p.newBuffer()
	for {
		n, err := p.src.Read(buf)
		if n > 0 {
			chunk := *buf
			chunk.Data = buf.Data[:n]
			if err := p.mgr.WriteFrames(h, &chunk); err != nil {
				return err
			}
			p.frames.Add(int64(n / p.src.NumChans()))

			select {
			case <-p.tc:
			case <-ctx.Done():
				return nil
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}
	}
}

// playReload runs the DMA over a two-half ring and refills each half as it is consumed.
func (p *player) playReload(ctx context.Context, param *aout.Param) error {
	ring, err := aout.AllocRing(p.period, p.width)
	if err != nil {
		return err
	}
	defer ring.Close()

	buf := p.newBuffer()
	fill := func(half []byte) {
		clear(half)
		n, err := p.src.Read(buf)
		if n > 0 {
			chunk := *buf
			chunk.Data = buf.Data[:n]
			data, perr := aout.PackFrames(&chunk, p.width)
			if perr != nil {
				p.finish(perr)

				return
			}
			copy(half, data)
			p.frames.Add(int64(n / p.src.NumChans()))
		}

		switch {
		case errors.Is(err, io.EOF):
			p.finish(nil)
		case err != nil:
			p.finish(fmt.Errorf("decode: %w", err))
		}
	}

	fill(ring.Half(0))
	fill(ring.Half(1))

	param.Reload = ring.Setting()
	param.Callback = func(_ any, reason aout.Reason) error {
		select {
		case <-p.done:
		default:
			fill(ring.HalfFor(reason))
		}

		return nil
	}

	h, err := p.mgr.Open(param)
	if err != nil {
		return err
	}
	p.h = h
	defer p.close()

	if err := p.mgr.Write(h, ring.Bytes()); err != nil {
		return err
	}
	if err := p.mgr.Start(h); err != nil {
		return err
	}

	select {
	case <-p.done:
	case <-ctx.Done():
	}

	if err := p.mgr.Stop(h); err != nil {
		logger.Warn("stop session", "handle", h.String(), "error", err)
	}

	return p.err
}

func (p *player) close() {
	if err := p.mgr.Close(p.h); err != nil {
		logger.Error("close session", "handle", p.h.String(), "error", err)
	}
}

// serveMetrics exposes reg on addr until the returned server is shut down.
func serveMetrics(addr string, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "error", err)
		}
	}()

	return srv
}

// Command aoutctl drives the audio output session manager on a simulated board.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gen2brain/aout/board"
	"github.com/gen2brain/aout/config"
	"github.com/gen2brain/aout/internal/logger"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "aoutctl",
	Short: "Audio output session manager tool",
	Long: `aoutctl opens output sessions on a simulated audio subsystem.

The board (DAC, I2STX, SPDIFTX and PDMTX blocks, DMA engine and external PA)
is described by the configuration file. Every setting can be overridden with
AOUT_<SECTION>_<KEY> environment variables, e.g. AOUT_LOGGING_LEVEL=DEBUG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/aout/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(mixCmd)
	rootCmd.AddCommand(srdCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrf("Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration and initializes the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := logger.Init(cfg.LoggerConfig()); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	return cfg, nil
}

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.GetDefaultConfigPath()
		}

		if _, err := os.Stat(path); err == nil && !initForce {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}

		if err := config.SaveConfig(config.GetDefaultConfig(), path); err != nil {
			return err
		}

		cmd.Printf("Configuration file created at: %s\n", path)

		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing configuration file")
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the simulated board and its session table",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		b, err := board.New(cfg.Board)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Variant:            %s\n", cfg.Board.Variant)
		fmt.Fprintf(out, "Sessions:           DAC=%d I2STX=%d SPDIFTX=%d PDMTX=%d\n",
			b.Capacity.DAC, b.Capacity.I2STX, b.Capacity.SPDIFTX, b.Capacity.PDMTX)
		fmt.Fprintf(out, "External PA:        %v\n", b.PA != nil)
		fmt.Fprintf(out, "DMA realtime:       %v\n", cfg.Board.DMA.Realtime)
		fmt.Fprint(out, b.Bus.String())

		if b.I2STX != nil {
			st := b.I2STX.SRDState()
			fmt.Fprintf(out, "SRD:                armed=%v locked=%v width=%d\n", st.Armed, st.Locked, st.Width)
		}

		return nil
	},
}

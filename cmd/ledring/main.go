package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "ledring",
		Short:         "BCM LED ring controller",
		Long:          `ledring renders 24-bit colors on a shift register LED ring with binary code modulation and takes color updates over a serial link.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().Bool("log-json", false, "log JSON lines instead of console output")

	root.AddCommand(CreateRunCmd())
	root.AddCommand(CreateSendCmd())
	root.AddCommand(CreateConfigCmd())

	setupLogging("info", false)
	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("ledring failed")
	}
}

// setupLogging installs the global zerolog logger.
func setupLogging(level string, asJSON bool) {
	zerolog.TimeFieldFormat = time.RFC3339
	if asJSON {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

// loggingFlags applies --log-level and --log-json over the configured values.
func loggingFlags(cmd *cobra.Command, level string, asJSON bool) {
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		level = f.Value.String()
	}
	if cmd.Flags().Changed("log-json") {
		asJSON, _ = cmd.Flags().GetBool("log-json")
	}
	setupLogging(level, asJSON)
}

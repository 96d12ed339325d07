package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coreman2200/ledring/internal/app"
	"github.com/coreman2200/ledring/internal/config"
)

// CreateRunCmd creates the controller daemon command.
func CreateRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Drive the LED ring and serve the serial link",
		Long: `Run loads the configuration, starts the BCM scheduler on the shift register
chain and answers SetColors frames on the serial port until interrupted.
Flags that are set explicitly override the configuration file.`,
		RunE: runController,
	}
	f := cmd.Flags()
	f.StringP("config", "c", "ledring.yaml", "path to the YAML configuration")
	f.String("driver", "", "output driver: spi | sim")
	f.Bool("sim-only", false, "force simulation (no hardware output)")
	f.Int("sectors", 0, "number of LED sectors")
	f.Int("tick-us", 0, "scheduler tick period in microseconds")
	f.String("spi-dev", "", "SPI port name (empty selects the first)")
	f.Int("spi-hz", 0, "SPI clock in Hz")
	f.Bool("lsb-first", false, "shift every byte least significant bit first")
	f.String("latch-pin", "", "latch GPIO name, e.g. GPIO25")
	f.StringP("port", "p", "", "serial device")
	f.Int("baud", 0, "serial baud rate")
	f.String("layout", "", "SetColors payload layout: rgb | legacy")
	f.String("addr", "", "monitor HTTP listen address (empty keeps the config value)")
	f.String("preview", "", "preview driver: none | console | nrzled")
	f.String("self-test", "", "startup pattern: index_sweep | rgb_channels | gradient")
	return cmd
}

func runController(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) || f.Changed("config") {
			return err
		}
		log.Warn().Err(err).Str("path", path).Msg("config load failed; proceeding with defaults")
		cfg = config.Default()
	}
	applyFlags(f, cfg)
	loggingFlags(cmd, cfg.Log.Level, cfg.Log.JSON)

	core, err := app.InitCore(cfg, app.Options{}, log.Logger)
	if err != nil {
		return err
	}
	defer core.Close()

	log.Info().
		Int("sectors", cfg.Sectors).
		Str("driver", core.DriverName).
		Str("serial", cfg.Serial.Port).
		Str("layout", cfg.Layout().String()).
		Msg("ledring starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := core.Run(ctx); err != nil {
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

// applyFlags copies explicitly set flags into cfg.
func applyFlags(f *pflag.FlagSet, cfg *config.Config) {
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	num := func(name string, dst *int) {
		if f.Changed(name) {
			*dst, _ = f.GetInt(name)
		}
	}
	str("driver", &cfg.Driver)
	num("sectors", &cfg.Sectors)
	num("tick-us", &cfg.TickUs)
	str("spi-dev", &cfg.SPI.Dev)
	num("spi-hz", &cfg.SPI.SpeedHz)
	if f.Changed("lsb-first") {
		cfg.SPI.LSBFirst, _ = f.GetBool("lsb-first")
	}
	str("latch-pin", &cfg.LatchPin)
	str("port", &cfg.Serial.Port)
	num("baud", &cfg.Serial.Baud)
	str("layout", &cfg.WireLayout)
	str("addr", &cfg.Monitor.Addr)
	str("preview", &cfg.Preview.Driver)
	str("self-test", &cfg.SelfTest)
	if sim, _ := f.GetBool("sim-only"); sim {
		cfg.Driver = "sim"
	}
}

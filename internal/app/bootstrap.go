package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/coreman2200/ledring/internal/bcm"
	"github.com/coreman2200/ledring/internal/config"
	"github.com/coreman2200/ledring/internal/events"
	"github.com/coreman2200/ledring/internal/monitor"
	"github.com/coreman2200/ledring/internal/preview"
	"github.com/coreman2200/ledring/internal/protocol"
	"github.com/coreman2200/ledring/internal/selftest"
	"github.com/coreman2200/ledring/internal/sector"
	"github.com/coreman2200/ledring/internal/serialport"
	"github.com/coreman2200/ledring/internal/shiftreg"
)

const DefaultSelfTestStep = 250 * time.Millisecond

// Options override what InitCore would otherwise open from the config.
type Options struct {
	Transport    protocol.Transport // nil opens cfg.Serial.Port
	SelfTestStep time.Duration
}

// Core owns every long running part of the controller.
type Core struct {
	Cfg       *config.Config
	Store     *sector.Store
	Bus       *events.Bus
	Out       bcm.Output
	Renderer  *bcm.Renderer
	Scheduler *bcm.Scheduler
	Handler   *protocol.Handler
	Monitor   *monitor.State
	Mirror    *preview.Mirror

	DriverName string
	selfTest   selftest.Kind
	step       time.Duration
	closers    []io.Closer
	log        zerolog.Logger
}

func InitCore(cfg *config.Config, o Options, log zerolog.Logger) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	kind, err := selftest.ParseKind(cfg.SelfTest)
	if err != nil {
		return nil, err
	}
	store, err := sector.NewStore(cfg.Sectors)
	if err != nil {
		return nil, err
	}
	c := &Core{
		Cfg:      cfg,
		Store:    store,
		Bus:      events.New(),
		selfTest: kind,
		step:     o.SelfTestStep,
		log:      log,
	}
	if c.step <= 0 {
		c.step = DefaultSelfTestStep
	}

	// 1) Output chain, falling back to the simulator
	c.DriverName = cfg.Driver
	switch cfg.Driver {
	case "spi":
		chain, err := shiftreg.Open(shiftreg.Opts{
			Dev:      cfg.SPI.Dev,
			SpeedHz:  cfg.SPI.SpeedHz,
			LatchPin: cfg.LatchPin,
			LSBFirst: cfg.SPI.LSBFirst,
		})
		if err != nil {
			log.Warn().Err(err).
				Str("driver", "spi").
				Str("dev", cfg.SPI.Dev).
				Int("speed_hz", cfg.SPI.SpeedHz).
				Msg("SPI init failed; falling back to SIM")
			c.Out, c.DriverName = shiftreg.NewSim(), "sim"
		} else {
			c.Out = chain
			c.closers = append(c.closers, chain)
		}
	default:
		c.Out = shiftreg.NewSim()
	}

	// 2) Renderer and tick scheduler
	c.Renderer = bcm.NewRenderer(store, c.Out)
	c.Scheduler = bcm.NewScheduler(c.Renderer, c.Out, cfg.Tick(), c.Bus, component(log, "bcm"))

	// 3) Serial link and protocol handler
	t := o.Transport
	if t == nil {
		port, err := serialport.Open(cfg.Serial.Port, cfg.Serial.Baud, component(log, "serial"))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.closers = append(c.closers, port)
		t = port
	}
	c.Handler = protocol.NewHandler(t, store, protocol.Options{
		Layout:  cfg.Layout(),
		Timeout: cfg.ReadTimeout(),
		Bus:     c.Bus,
		Logger:  component(log, "protocol"),
	})

	// 4) Optional monitor and preview
	if cfg.Monitor.Addr != "" {
		c.Monitor = monitor.NewState(store, cfg.Layout(), cfg.Monitor.FPS)
		c.Monitor.Scheduler = c.Scheduler
		c.Monitor.Renderer = c.Renderer
		c.Monitor.Driver = c.DriverName
		c.Monitor.Watch(c.Bus)
	}
	if d := cfg.Preview.Driver; d != "" && d != "none" {
		drawer, name, err := preview.Open(preview.Opts{
			Driver:  d,
			Pixels:  cfg.Sectors,
			SPIDev:  cfg.Preview.SPIDev,
			SpeedHz: cfg.Preview.SpeedHz,
		}, component(log, "preview"))
		if err != nil {
			c.Close()
			return nil, err
		}
		c.Mirror = preview.NewMirror(store, drawer, name, cfg.Preview.FPS, component(log, "preview"))
	}
	return c, nil
}

func component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}

// Run starts rendering, runs the self test if one is configured, then
// serves the serial link. It returns when ctx is done or a part fails.
func (c *Core) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return c.Scheduler.Run(ctx) })
	g.Go(func() error {
		if err := selftest.Run(ctx, c.Store, c.selfTest, c.step, c.Bus, c.log); err != nil {
			return err
		}
		return c.Handler.Run(ctx)
	})
	if c.Monitor != nil {
		g.Go(func() error { return monitor.Serve(ctx, c.Cfg.Monitor.Addr, c.Monitor.Handler(), component(c.log, "monitor")) })
		g.Go(func() error { return c.Monitor.RunBroadcastLoop(ctx) })
	}
	if c.Mirror != nil {
		g.Go(func() error { return c.Mirror.Run(ctx) })
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close releases hardware and serial resources.
func (c *Core) Close() error {
	if c.Monitor != nil {
		c.Monitor.Close()
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}

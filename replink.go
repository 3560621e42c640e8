// Package replink composes a device console session: a serial or TCP byte
// channel, the protocol driver on top of it, the device filesystem service,
// and an optional SSH bridge mirroring the console to remote clients.
package replink

import (
	"context"
	"errors"
	"sync"

	"pkt.systems/pslog"

	"pkt.systems/replink/core"
	"pkt.systems/replink/fileops"
	"pkt.systems/replink/internal/eventbus"
	"pkt.systems/replink/internal/logx"
	"pkt.systems/replink/internal/transport"
	"pkt.systems/replink/schema"
	"pkt.systems/replink/sshserver"
)

// Console is a running device console session.
type Console interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
	Driver() *core.Driver
	Files() *fileops.Service
	Events() *eventbus.Bus
}

// ConsoleConfig configures the compositor.
type ConsoleConfig struct {
	Port    string // serial device path; empty when TCPAddr is used
	Baud    int
	TCPAddr string // host:port alternative to a local serial port
	Driver  schema.DriverConfig
	SSH     sshserver.Config
}

// ConsoleDeps captures optional dependencies.
type ConsoleDeps struct {
	Conn   transport.Conn    // pre-opened byte channel; overrides Port/TCPAddr
	Sink   core.TerminalSink // extra sink alongside the event bus
	Logger pslog.Logger
}

// ConsoleOption toggles compositor components.
type ConsoleOption func(*consoleOptions)

type consoleOptions struct {
	enableSSH bool
}

// WithSSH enables the SSH console bridge.
func WithSSH() ConsoleOption {
	return func(o *consoleOptions) { o.enableSSH = true }
}

// New constructs a composable console session.
func New(cfg ConsoleConfig, deps ConsoleDeps, opts ...ConsoleOption) (Console, error) {
	options := consoleOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}

	bus := eventbus.New(logger)
	var sink core.TerminalSink = bus
	if deps.Sink != nil {
		sink = sinkFanout{sinks: []core.TerminalSink{deps.Sink, bus}}
	}

	driver, err := core.New(cfg.Driver, core.Deps{Sink: sink, Logger: logger})
	if err != nil {
		return nil, err
	}

	var sshSrv *sshserver.Server
	if options.enableSSH {
		sshSrv = &sshserver.Server{
			Addr:               cfg.SSH.Addr,
			HostKeyPath:        cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
			Console:            driver,
			EventBus:           bus,
		}
	}

	return &console{
		cfg:     cfg,
		options: options,
		conn:    deps.Conn,
		driver:  driver,
		files:   fileops.New(driver, logger),
		bus:     bus,
		sshSrv:  sshSrv,
		logger:  logger,
	}, nil
}

type console struct {
	cfg     ConsoleConfig
	options consoleOptions
	driver  *core.Driver
	files   *fileops.Service
	bus     *eventbus.Bus
	sshSrv  *sshserver.Server
	logger  pslog.Logger

	mu      sync.Mutex
	conn    transport.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	started bool
}

func (c *console) Driver() *core.Driver    { return c.driver }
func (c *console) Files() *fileops.Service { return c.files }
func (c *console) Events() *eventbus.Bus   { return c.bus }

// Start opens the device channel and launches the receive pump, plus the SSH
// bridge when enabled.
func (c *console) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("console already started")
	}

	conn := c.conn
	if conn == nil {
		var err error
		conn, err = c.openConn()
		if err != nil {
			c.mu.Unlock()
			return err
		}
		c.conn = conn
	}

	c.ctx, c.cancel = context.WithCancel(logx.ContextWithPortLogger(ctx, c.logger, c.cfg.Port))
	c.errCh = make(chan error, 2)
	c.started = true
	runCtx := c.ctx
	errCh := c.errCh
	c.mu.Unlock()

	log := logx.WithPort(runCtx, c.cfg.Port)
	log.Info("console start",
		"port", c.cfg.Port,
		"tcp_addr", c.cfg.TCPAddr,
		"ssh", c.options.enableSSH,
		"ssh_addr", c.cfg.SSH.Addr,
	)

	c.driver.SetTransmitter(func(data []byte) error {
		_, err := conn.Write(data)
		return err
	})

	go func() {
		if err := transport.Pump(runCtx, conn, c.driver.Receive); err != nil {
			log.Error("console receive pump failed", "err", err)
			errCh <- err
			return
		}
		// Clean EOF still ends the session.
		errCh <- nil
	}()

	if c.sshSrv != nil {
		go func() {
			if err := c.sshSrv.ListenAndServe(runCtx); err != nil {
				log.Error("ssh bridge failed", "err", err)
				errCh <- err
			}
		}()
	}
	return nil
}

func (c *console) openConn() (transport.Conn, error) {
	switch {
	case c.cfg.Port != "":
		return transport.OpenSerial(c.cfg.Port, c.cfg.Baud)
	case c.cfg.TCPAddr != "":
		return transport.OpenTCP(c.cfg.TCPAddr)
	default:
		return nil, schema.ErrNoDevice
	}
}

// Wait blocks until the session ends, returning the first component error.
func (c *console) Wait() error {
	c.mu.Lock()
	ctx := c.ctx
	errCh := c.errCh
	started := c.started
	c.mu.Unlock()
	if !started {
		return errors.New("console not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("console stopped", "err", err)
			_ = c.Stop(context.Background())
			return err
		}
		return nil
	}
}

// Stop cancels the session and closes the device channel.
func (c *console) Stop(ctx context.Context) error {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	started := c.started
	runCtx := c.ctx
	c.mu.Unlock()
	if !started {
		return nil
	}
	log := c.logger
	log.Info("console stop requested")
	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close()
	}
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		log.Warn("console stop timed out", "err", ctx.Err())
		return ctx.Err()
	case <-runCtx.Done():
		log.Info("console stopped")
		return nil
	}
}

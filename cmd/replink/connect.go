package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replink"
	"pkt.systems/replink/internal/appconfig"
	"pkt.systems/replink/sshserver"
)

// deviceFlags are the connection flags shared by every command that talks to
// a board. Flags override the config file.
type deviceFlags struct {
	cfgPath string
	port    string
	baud    int
	tcpAddr string
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.cfgPath, "config", "c", "", "path to config file")
	cmd.Flags().StringVarP(&f.port, "port", "p", "", "serial port (e.g. /dev/ttyACM0)")
	cmd.Flags().IntVarP(&f.baud, "baud", "b", 0, "serial baud rate")
	cmd.Flags().StringVar(&f.tcpAddr, "tcp", "", "TCP address instead of a serial port (host:port)")
}

func (f *deviceFlags) load() (appconfig.Config, error) {
	cfg, err := appconfig.Load(f.cfgPath)
	if err != nil {
		return appconfig.Config{}, err
	}
	if f.port != "" {
		cfg.Device.Port = f.port
		cfg.Device.TCPAddr = ""
	}
	if f.baud > 0 {
		cfg.Device.Baud = f.baud
	}
	if f.tcpAddr != "" {
		cfg.Device.TCPAddr = f.tcpAddr
		if f.port == "" {
			cfg.Device.Port = ""
		}
	}
	return cfg, nil
}

// openConsole builds and starts a console session from config plus flag
// overrides. The caller owns the returned console and must Stop it.
func openConsole(ctx context.Context, f *deviceFlags, opts ...replink.ConsoleOption) (replink.Console, appconfig.Config, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, appconfig.Config{}, err
	}
	console, err := openConsoleFromConfig(ctx, cfg, opts...)
	if err != nil {
		return nil, appconfig.Config{}, err
	}
	return console, cfg, nil
}

func openConsoleFromConfig(ctx context.Context, cfg appconfig.Config, opts ...replink.ConsoleOption) (replink.Console, error) {
	console, err := replink.New(replink.ConsoleConfig{
		Port:    cfg.Device.Port,
		Baud:    cfg.Device.Baud,
		TCPAddr: cfg.Device.TCPAddr,
		Driver:  cfg.DriverConfig(),
		SSH: sshserver.Config{
			Addr:               cfg.SSH.Addr,
			HostKeyPath:        cfg.SSH.HostKeyPath,
			AuthorizedKeysPath: cfg.SSH.AuthorizedKeysPath,
		},
	}, replink.ConsoleDeps{Logger: pslog.Ctx(ctx)}, opts...)
	if err != nil {
		return nil, err
	}
	if err := console.Start(ctx); err != nil {
		return nil, err
	}
	return console, nil
}

func stopConsole(console replink.Console) {
	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = console.Stop(stopCtx)
}

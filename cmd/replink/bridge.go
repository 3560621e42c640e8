package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/pslog"
	"pkt.systems/replink"
)

func newBridgeCmd() *cobra.Command {
	var flags deviceFlags
	var sshAddr string
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Serve the device console to SSH clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := flags.load()
			if err != nil {
				return err
			}
			if sshAddr != "" {
				cfg.SSH.Addr = sshAddr
			}
			if cfg.SSH.Addr == "" {
				return errors.New("ssh.addr is required; set it in the config or pass --ssh-addr")
			}
			logger := pslog.Ctx(ctx)
			console, err := openConsoleFromConfig(ctx, cfg, replink.WithSSH())
			if err != nil {
				return err
			}
			go func() {
				<-ctx.Done()
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := console.Stop(stopCtx); err != nil {
					logger.Warn("console stop failed", "err", err)
				}
			}()
			logger.Info("ssh bridge listening", "addr", cfg.SSH.Addr)
			return console.Wait()
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&sshAddr, "ssh-addr", "", "SSH listen address (overrides config)")
	return cmd
}

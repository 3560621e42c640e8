package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"pkt.systems/pslog"
	"pkt.systems/replink"
	"pkt.systems/replink/schema"
)

// detachByte ends the interactive session (Ctrl-]).
const detachByte = 0x1d

func newReplCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Attach an interactive terminal to the device console",
		RunE: func(cmd *cobra.Command, args []string) error {
			fd := int(os.Stdin.Fd())
			if !term.IsTerminal(fd) {
				return errors.New("repl requires a terminal on stdin")
			}

			console, cfg, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			oldState, err := term.MakeRaw(fd)
			if err != nil {
				return err
			}
			defer func() { _ = term.Restore(fd, oldState) }()

			target := cfg.Device.Port
			if target == "" {
				target = cfg.Device.TCPAddr
			}
			fmt.Fprintf(os.Stdout, "connected to %s; Ctrl-] to detach\r\n", target)

			events, unsubscribe := console.Events().Subscribe()
			defer unsubscribe()

			done := make(chan struct{})
			go func() {
				title := ""
				for {
					select {
					case <-done:
						return
					case <-cmd.Context().Done():
						return
					case event, ok := <-events:
						if !ok {
							return
						}
						switch event.Type {
						case schema.ConsoleOutput:
							_, _ = os.Stdout.Write(event.Data)
						case schema.ConsoleTitle:
							if event.Append {
								title += event.Title
							} else {
								title = event.Title
							}
							_, _ = io.WriteString(os.Stdout, "\x1b]0;"+title+"\x07")
						}
					}
				}
			}()
			defer close(done)

			log := pslog.Ctx(cmd.Context())
			buf := make([]byte, 256)
			for {
				n, err := os.Stdin.Read(buf)
				if n > 0 {
					data := buf[:n]
					for i, b := range data {
						if b == detachByte {
							if i > 0 {
								sendKeys(log, console, data[:i])
							}
							fmt.Fprint(os.Stdout, "\r\ndetached\r\n")
							return nil
						}
					}
					sendKeys(log, console, data)
				}
				if err != nil {
					if errors.Is(err, io.EOF) {
						return nil
					}
					return err
				}
			}
		},
	}
	flags.register(cmd)
	return cmd
}

func sendKeys(log pslog.Logger, console replink.Console, data []byte) {
	err := console.Driver().SendInput(append([]byte(nil), data...))
	if err == nil {
		return
	}
	if errors.Is(err, schema.ErrBusy) {
		fmt.Fprint(os.Stdout, "\r\n[console busy: a submission is in flight]\r\n")
		return
	}
	log.Warn("repl input forward failed", "err", err)
}

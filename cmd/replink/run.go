package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/replink/schema"
)

func newRunCmd() *cobra.Command {
	var flags deviceFlags
	var expr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Execute a program on the device and print its output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readProgram(cmd, args, expr)
			if err != nil {
				return err
			}

			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			resp, err := console.Driver().Run(schema.RunRequest{Code: code, Timeout: timeout})
			if err != nil {
				return err
			}
			if resp.Output != "" {
				if _, err := io.WriteString(cmd.OutOrStdout(), resp.Output); err != nil {
					return err
				}
			}
			if resp.ExecError != nil {
				_, _ = io.WriteString(cmd.ErrOrStderr(), resp.ExecError.Raw)
				return fmt.Errorf("device error: %s", resp.ExecError.Error())
			}
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&expr, "expr", "e", "", "program text to run instead of a file")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "run timeout (default from config)")
	return cmd
}

func readProgram(cmd *cobra.Command, args []string, expr string) (string, error) {
	if expr != "" {
		if len(args) > 0 {
			return "", errors.New("pass either a file or --expr, not both")
		}
		return expr, nil
	}
	if len(args) == 0 {
		return "", errors.New("a file argument or --expr is required")
	}
	if args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

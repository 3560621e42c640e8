package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/replink/internal/transport"
)

func newPortsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "List serial ports on this host",
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := transport.ListPorts()
			if err != nil {
				return err
			}
			if len(ports) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "no serial ports found")
				return err
			}
			for _, port := range ports {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), port); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newFsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fs",
		Short: "Device filesystem operations",
	}
	cmd.AddCommand(newFsLsCmd())
	cmd.AddCommand(newFsCatCmd())
	cmd.AddCommand(newFsGetCmd())
	cmd.AddCommand(newFsPutCmd())
	cmd.AddCommand(newFsRmCmd())
	cmd.AddCommand(newFsMkdirCmd())
	return cmd
}

func newFsLsCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "ls [path]",
		Short: "List a device directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/"
			if len(args) == 1 {
				path = args[0]
			}
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			entries, err := console.Files().List(path)
			if err != nil {
				return err
			}
			for _, entry := range entries {
				name := entry.Name
				if entry.Dir {
					name += "/"
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%8d  %s\n", entry.Size, name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newFsCatCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "cat <path>",
		Short: "Print a device file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			data, err := console.Files().ReadFile(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

func newFsGetCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "get <device-path> <local-path>",
		Short: "Copy a file from the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			data, err := console.Files().ReadFile(args[0])
			if err != nil {
				return err
			}
			return os.WriteFile(args[1], data, 0o644)
		},
	}
	flags.register(cmd)
	return cmd
}

func newFsPutCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "put <local-path> <device-path>",
		Short: "Copy a file to the device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			return console.Files().WriteFile(args[1], data)
		},
	}
	flags.register(cmd)
	return cmd
}

func newFsRmCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "rm <path>",
		Short: "Remove a device file or empty directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			return console.Files().Remove(args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

func newFsMkdirCmd() *cobra.Command {
	var flags deviceFlags
	cmd := &cobra.Command{
		Use:   "mkdir <path>",
		Short: "Create a device directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			console, _, err := openConsole(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer stopConsole(console)

			return console.Files().Mkdir(args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

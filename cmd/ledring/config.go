package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/coreman2200/ledring/internal/config"
	"github.com/coreman2200/ledring/internal/protocol"
)

// CreateConfigCmd creates the config command group.
func CreateConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [PATH]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "ledring.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s exists; use --force to overwrite", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	checkCmd := &cobra.Command{
		Use:   "check PATH",
		Short: "Validate a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d sectors, %s layout, capacity %d bytes)\n",
				args[0], cfg.Sectors, cfg.Layout(), payloadCapacity(cfg))
			return nil
		},
	}

	cmd.AddCommand(initCmd, checkCmd)
	return cmd
}

// payloadCapacity is the largest SetColors payload the device accepts.
func payloadCapacity(cfg *config.Config) int {
	return min(cfg.Layout().Capacity(cfg.Sectors), protocol.MaxPayload)
}

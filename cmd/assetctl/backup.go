package main

import (
	"fmt"
	"os"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/spf13/cobra"
)

func newBackupCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <name> <file>",
		Short: "Store a post backup under a fixed name, replacing the previous one",
		Args:  withArgsHint(cobra.ExactArgs(2), "name and file are required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			return withService(cmd.Context(), cfg, func(service *asset.Service) error {
				ref, err := service.Backup(cmd.Context(), args[0], content)
				if err != nil {
					return err
				}
				return writeReference(cmd.OutOrStdout(), ref, *jsonOutput)
			})
		},
	}
}

package main

import (
	"context"
	"errors"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/spf13/cobra"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:           "assetctl",
		Short:         "Store images and post backups in the asset content store",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newPutCmd(cfg, &jsonOutput),
		newBackupCmd(cfg, &jsonOutput),
		newNameCmd(cfg, &jsonOutput),
	)
	return cmd
}

// withService opens the configured store and refuses to continue without a credential.
func withService(ctx context.Context, cfg *config.Config, fn func(*asset.Service) error) error {
	service, err := asset.Open(ctx, *cfg)
	if err != nil {
		return err
	}
	if err := service.Ready(); err != nil {
		if errors.Is(err, asset.ErrMissingCredential) {
			return errors.New("content store credential is not configured (set GITHUB_TOKEN or the backend keys)")
		}
		return err
	}
	return fn(service)
}

// withArgsHint runs a cobra validator and replaces its generic error with hint.
func withArgsHint(validate cobra.PositionalArgs, hint string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return errors.New(hint)
		}
		return nil
	}
}

package main

import (
	"fmt"
	"strings"

	"github.com/abduss/assetgate/internal/config"
	"github.com/abduss/assetgate/internal/naming"
	"github.com/abduss/assetgate/internal/transcode"
	"github.com/spf13/cobra"
)

type nameOptions struct {
	strategy string
	count    int
	key      string
}

func newNameCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &nameOptions{}
	cmd := &cobra.Command{
		Use:   "name",
		Short: "Print sample storage paths for a naming strategy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			strategy := opts.strategy
			if strategy == "" {
				strategy = cfg.Store.Naming
			}
			gen, err := naming.New(strategy)
			if err != nil {
				return fmt.Errorf("%w (choose one of %s)", err, strings.Join(naming.Strategies(), ", "))
			}
			if opts.count < 1 {
				return fmt.Errorf("count must be at least 1")
			}

			paths := make([]string, 0, opts.count)
			for i := 0; i < opts.count; i++ {
				name, err := gen.Name(naming.Input{Key: opts.key, Content: []byte(fmt.Sprintf("sample-%d", i))})
				if err != nil {
					return err
				}
				paths = append(paths, naming.Join(cfg.Store.ImagePrefix, name, transcode.Extension))
			}
			return writeNames(cmd.OutOrStdout(), strategy, gen.Deterministic(), paths, *jsonOutput)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "naming strategy (defaults to ASSET_NAMING)")
	cmd.Flags().IntVarP(&opts.count, "count", "n", 3, "number of names to generate")
	cmd.Flags().StringVar(&opts.key, "key", "", "key for the keyed strategy")
	return cmd
}

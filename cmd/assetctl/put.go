package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/abduss/assetgate/internal/config"
	"github.com/spf13/cobra"
)

type putOptions struct {
	title string
	key   string
}

func newPutCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	opts := &putOptions{}
	cmd := &cobra.Command{
		Use:   "put <image> [thumbnail...]",
		Short: "Transcode and store an image, plus optional thumbnails",
		Args:  withArgsHint(cobra.MinimumNArgs(1), "at least one image path is required"),
		RunE: func(cmd *cobra.Command, args []string) error {
			primary, err := readUpload("mainImage", args[0])
			if err != nil {
				return err
			}
			thumbs := make([]asset.Upload, 0, len(args)-1)
			for _, path := range args[1:] {
				up, err := readUpload("thumbImages", path)
				if err != nil {
					return err
				}
				thumbs = append(thumbs, up)
			}

			return withService(cmd.Context(), cfg, func(service *asset.Service) error {
				result, err := service.Ingest(cmd.Context(), asset.IngestRequest{
					Main:   &primary,
					Thumbs: thumbs,
					Title:  opts.title,
					Key:    opts.key,
				})
				if err != nil {
					return err
				}
				return writeIngestResult(cmd.OutOrStdout(), result, *jsonOutput)
			})
		},
	}

	cmd.Flags().StringVar(&opts.title, "title", "", "title recorded in the commit message")
	cmd.Flags().StringVar(&opts.key, "key", "", "stable name; replaces an existing asset with the same key")
	return cmd
}

func readUpload(field, path string) (asset.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return asset.Upload{}, fmt.Errorf("read %s: %w", path, err)
	}
	return asset.Upload{Field: field, Filename: filepath.Base(path), Data: data}, nil
}

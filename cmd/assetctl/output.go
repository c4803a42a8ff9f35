package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/abduss/assetgate/internal/asset"
	"github.com/dustin/go-humanize"
)

func writeJSON(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}

func writeReference(w io.Writer, ref asset.Reference, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, ref)
	}
	_, err := fmt.Fprintf(w, "%s\t%s\t%s\n", ref.URL, humanize.IBytes(uint64(ref.SizeBytes)), referenceState(ref))
	return err
}

func writeIngestResult(w io.Writer, result asset.IngestResult, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, map[string]any{
			"main":     result.Main,
			"thumbs":   result.Thumbs,
			"failures": result.Failures,
		})
	}
	if err := writeReference(w, result.Main, false); err != nil {
		return err
	}
	for i, ref := range result.Thumbs {
		if ref.URL == "" {
			continue
		}
		if _, err := fmt.Fprintf(w, "  thumb %d\t", i+1); err != nil {
			return err
		}
		if err := writeReference(w, ref, false); err != nil {
			return err
		}
	}
	for _, failure := range result.Failures {
		if _, err := fmt.Fprintf(w, "  thumb %d\tfailed: %s\n", failure.Index+1, failure.Message); err != nil {
			return err
		}
	}
	return nil
}

func writeNames(w io.Writer, strategy string, deterministic bool, paths []string, jsonOutput bool) error {
	if jsonOutput {
		return writeJSON(w, map[string]any{
			"strategy":      strategy,
			"deterministic": deterministic,
			"paths":         paths,
		})
	}
	for _, p := range paths {
		if _, err := fmt.Fprintln(w, p); err != nil {
			return err
		}
	}
	return nil
}

func referenceState(ref asset.Reference) string {
	switch {
	case ref.Reused:
		return "unchanged"
	case ref.Updated:
		return "updated"
	default:
		return "created"
	}
}

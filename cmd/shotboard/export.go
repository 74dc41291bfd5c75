package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"shotboard/internal/catalog"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:       "export {tags|playlists} [name...]",
	Short:     "Write tags or playlists to a JSON document",
	Long:      `Write tags or playlists to tags.json / playlists.json. Naming tags or playlists restricts the export to them.`,
	Args:      cobra.MinimumNArgs(1),
	ValidArgs: []string{"tags", "playlists"},
	RunE:      runExport,
}

var importCmd = &cobra.Command{
	Use:   "import {tags|playlists} <file>",
	Short: "Merge a JSON document into the store",
	Args:  cobra.ExactArgs(2),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", ".", `output directory, or "-" for stdout`)
}

func runExport(cmd *cobra.Command, args []string) error {
	tags, playlists, closeRemote, err := openRemote()
	if err != nil {
		return err
	}
	defer closeRemote()

	ctx := cmd.Context()
	var doc catalog.Document

	switch args[0] {
	case "tags":
		store := catalog.NewTagStore(tags, logger)
		if err := store.Load(ctx); err != nil {
			return err
		}
		selected := args[1:]
		if len(selected) == 0 {
			selected = store.AllTags()
		}
		doc, err = catalog.TagsDocument(store, selected)
	case "playlists":
		store := catalog.NewPlaylistStore(playlists, nil, logger)
		if err := store.Load(ctx, ""); err != nil {
			return err
		}
		selected := args[1:]
		if len(selected) == 0 {
			selected = store.Names()
		}
		doc, err = catalog.PlaylistsDocument(store, selected)
	default:
		return fmt.Errorf("unknown export %q: want tags or playlists", args[0])
	}
	if err != nil {
		return err
	}

	if exportOut == "-" {
		_, err := cmd.OutOrStdout().Write(doc.Body)
		return err
	}

	path := filepath.Join(exportOut, doc.Filename)
	if err := os.WriteFile(path, doc.Body, 0o644); err != nil {
		return err
	}
	logger.Info().Str("path", path).Msg("export written")
	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[1])
	if err != nil {
		return err
	}

	tags, playlists, closeRemote, err := openRemote()
	if err != nil {
		return err
	}
	defer closeRemote()

	ctx := cmd.Context()
	var report catalog.ImportReport

	switch args[0] {
	case "tags":
		store := catalog.NewTagStore(tags, logger)
		if err := store.Load(ctx); err != nil {
			return err
		}
		report, err = store.ImportDocument(ctx, data, nil)
	case "playlists":
		store := catalog.NewPlaylistStore(playlists, nil, logger)
		if err := store.Load(ctx, ""); err != nil {
			return err
		}
		report, err = store.ImportDocument(ctx, data, nil)
	default:
		return fmt.Errorf("unknown import %q: want tags or playlists", args[0])
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d entries\n", report.Applied, report.Entries)
	return nil
}

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"shotboard/internal/media"
)

var scanJSON bool

var scanCmd = &cobra.Command{
	Use:   "scan <dir>",
	Short: "Group a folder into shots and print them",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print shots as JSON")
}

func runScan(cmd *cobra.Command, args []string) error {
	files, err := media.ReadDir(args[0])
	if err != nil {
		return err
	}

	refs := media.NewContentRefs()
	coll, stats, err := media.NewAggregator(refs, cfg.Library.ScanConcurrency, logger).AggregateWithStats(cmd.Context(), files)
	if err != nil {
		return err
	}
	defer coll.Close()

	media.NewCoverResolver(nil, nil, logger).ResolveAll(coll)

	out := cmd.OutOrStdout()
	if scanJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(coll.Shots)
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SHOT\tIMAGES\tVIDEOS\tNOTES\tCOVER")
	for _, shot := range coll.Shots {
		cover := shot.CoverName
		if cover == "" {
			cover = "-"
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\n", shot.ID, len(shot.Images), len(shot.Videos), len(shot.Notes), cover)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "%d shots from %d files (%d ignored, %d dropped, %s of notes)\n",
		stats.Shots, stats.Files, stats.Ignored, stats.Dropped, humanize.Bytes(stats.NoteBytes))
	return nil
}

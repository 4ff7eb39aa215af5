package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tonietool/internal/taf"
)

func newCompareCommand(cmdCtx *commandContext) *cobra.Command {
	var detailedFlag bool

	cmd := &cobra.Command{
		Use:         "compare <a.taf> <b.taf>",
		Short:       "Diff the headers, chapters, and audio properties of two containers",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := taf.Compare(args[0], args[1], detailedFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Identical() {
				fmt.Fprintln(out, "IDENTICAL")
				if result.ContentChecked {
					fmt.Fprintf(out, "content sha256: %s\n", result.ContentHashA)
				}
				return nil
			}

			var rows [][]string
			appendDiffs := func(section string, diffs []taf.FieldDiff) {
				for _, diff := range diffs {
					rows = append(rows, []string{section, diff.Field, diff.A, diff.B})
				}
			}
			appendDiffs("header", result.HeaderDiffs)
			appendDiffs("chapters", result.ChapterDiffs)
			appendDiffs("audio", result.AudioDiffs)
			if result.ContentChecked && !result.ContentIdentical {
				rows = append(rows, []string{"content", "sha256", result.ContentHashA, result.ContentHashB})
			}

			fmt.Fprintln(out, "DIFFERENT")
			fmt.Fprintln(out, renderTable([]string{"Section", "Field", result.PathA, result.PathB}, rows))
			return fmt.Errorf("containers differ in %d fields", len(rows))
		},
	}

	cmd.Flags().BoolVar(&detailedFlag, "detailed", false, "Also extract and hash both embedded streams")
	return cmd
}

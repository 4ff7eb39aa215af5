package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tonietool/internal/services/teddycloud"
)

func newTagsCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List the tags known to the TeddyCloud server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}
			client, err := teddycloud.NewClient(cfg, logger)
			if err != nil {
				return err
			}

			tags, err := client.Tags(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				rows = append(rows, []string{
					tag.UID,
					yesNo(tag.Valid),
					tag.Series,
					tag.Episode,
					fmt.Sprintf("%d", len(tag.Tracks)),
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]string{"UID", "Valid", "Series", "Episode", "Tracks"}, rows, 5))
			fmt.Fprintf(out, "%d tags on %s\n", len(tags), strings.TrimRight(cfg.TeddyCloud.URL, "/"))
			return nil
		},
	}
}

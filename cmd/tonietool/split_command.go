package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"tonietool/internal/taf"
)

func newSplitCommand(cmdCtx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:         "split <file.taf>",
		Short:       "Write one standalone .opus file per chapter",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			outDir := outputFlag
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			paths, err := taf.Split(args[0], outDir, "")
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Directory for the chapter files")
	return cmd
}

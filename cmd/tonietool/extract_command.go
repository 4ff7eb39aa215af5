package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tonietool/internal/taf"
)

func newExtractCommand(cmdCtx *commandContext) *cobra.Command {
	var outputFlag string

	cmd := &cobra.Command{
		Use:         "extract <file.taf>",
		Short:       "Extract the embedded Ogg/Opus stream byte for byte",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := outputFlag
			if outPath == "" {
				outPath = strings.TrimSuffix(args[0], ".taf") + ".ogg"
			}
			n, err := taf.ExtractFile(args[0], outPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, outPath)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output path for the extracted stream")
	return cmd
}

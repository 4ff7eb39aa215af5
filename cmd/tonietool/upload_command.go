package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tonietool/internal/services/teddycloud"
)

// artworkExtensions are the sibling image formats uploaded alongside a
// container when --include-artwork is set.
var artworkExtensions = []string{".jpg", ".jpeg", ".png"}

func newUploadCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		pathFlag        string
		specialFlag     string
		connTimeoutFlag int
		readTimeoutFlag int
		retriesFlag     int
		retryDelayFlag  int
		artworkFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "upload <files...>",
		Short: "Upload TAF files to the configured TeddyCloud server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cmdCtx.ensureLogger()
			if err != nil {
				return err
			}

			if cmd.Flags().Changed("path") {
				cfg.TeddyCloud.Path = strings.Trim(pathFlag, "/")
			}
			if cmd.Flags().Changed("special-folder") {
				cfg.TeddyCloud.SpecialFolder = specialFlag
			}
			if cmd.Flags().Changed("connection-timeout") {
				cfg.TeddyCloud.ConnectionTimeout = connTimeoutFlag
			}
			if cmd.Flags().Changed("read-timeout") {
				cfg.TeddyCloud.ReadTimeout = readTimeoutFlag
			}
			if cmd.Flags().Changed("retries") {
				cfg.TeddyCloud.MaxRetries = retriesFlag
			}
			if cmd.Flags().Changed("retry-delay") {
				cfg.TeddyCloud.RetryDelay = retryDelayFlag
			}
			includeArtwork := cfg.TeddyCloud.IncludeArtwork || artworkFlag

			client, err := teddycloud.NewClient(cfg, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			opts := teddycloud.UploadOptions{
				Path:          cfg.TeddyCloud.Path,
				SpecialFolder: cfg.TeddyCloud.SpecialFolder,
			}
			if opts.Path != "" {
				if err := client.CreateDirectory(ctx, opts.Path, opts.SpecialFolder); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			for _, file := range args {
				if err := client.Upload(ctx, file, opts); err != nil {
					return fmt.Errorf("upload %s: %w", file, err)
				}
				fmt.Fprintf(out, "uploaded %s\n", file)

				if !includeArtwork {
					continue
				}
				for _, artwork := range findArtwork(file) {
					if err := client.Upload(ctx, artwork, opts); err != nil {
						return fmt.Errorf("upload artwork %s: %w", artwork, err)
					}
					fmt.Fprintf(out, "uploaded %s\n", artwork)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pathFlag, "path", "", "Destination directory on the server")
	cmd.Flags().StringVar(&specialFlag, "special-folder", "", "Server-side root folder (library or content)")
	cmd.Flags().IntVar(&connTimeoutFlag, "connection-timeout", 0, "Connection timeout in seconds")
	cmd.Flags().IntVar(&readTimeoutFlag, "read-timeout", 0, "Read timeout in seconds")
	cmd.Flags().IntVar(&retriesFlag, "retries", 0, "Maximum retry count for failed requests")
	cmd.Flags().IntVar(&retryDelayFlag, "retry-delay", 0, "Delay between retries in seconds")
	cmd.Flags().BoolVar(&artworkFlag, "include-artwork", false, "Also upload sibling artwork images")
	return cmd
}

// findArtwork returns images sharing the container's stem.
func findArtwork(tafPath string) []string {
	stem := strings.TrimSuffix(tafPath, filepath.Ext(tafPath))
	var found []string
	for _, ext := range artworkExtensions {
		candidate := stem + ext
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			found = append(found, candidate)
		}
	}
	return found
}

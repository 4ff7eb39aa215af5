package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tonietool/internal/config"
	"tonietool/internal/encoding"
	"tonietool/internal/framing"
	"tonietool/internal/media"
	"tonietool/internal/preflight"
	"tonietool/internal/queue"
	"tonietool/internal/taf"
	"tonietool/internal/workflow"
)

func newConvertCommand(cmdCtx *commandContext) *cobra.Command {
	var (
		outputFlag    string
		bitrateFlag   int
		cbrFlag       bool
		timestampFlag string
		appendIDFlag  bool
		mediaTagsFlag bool
		templateFlag  string
		recursiveFlag bool
		maxDepthFlag  int
		workersFlag   int
		keepTempFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "convert <inputs...>",
		Short: "Convert audio files, directories, or playlists into TAF containers",
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

			if cmd.Flags().Changed("bitrate") {
				cfg.Encoding.Bitrate = bitrateFlag
			}
			if cmd.Flags().Changed("cbr") {
				cfg.Encoding.CBR = cbrFlag
			}
			if cmd.Flags().Changed("workers") {
				cfg.Workflow.Workers = workersFlag
			}
			if keepTempFlag {
				cfg.Encoding.KeepTemp = true
			}
			naming := media.NamingOptions{
				UseMediaTags: cfg.Naming.UseMediaTags || mediaTagsFlag,
				Template:     cfg.Naming.Template,
				AppendID:     cfg.Naming.AppendID || appendIDFlag,
			}
			if templateFlag != "" {
				naming.Template = templateFlag
			}

			timestamp, err := parseTimestamp(timestampFlag)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := requireConversionPreflight(ctx, cfg); err != nil {
				return err
			}

			selections, err := collectSelections(args, recursiveFlag, maxDepthFlag)
			if err != nil {
				return err
			}
			if len(selections) > 1 && outputFlag != "" && strings.EqualFold(filepath.Ext(outputFlag), ".taf") {
				return fmt.Errorf("--output names a single file but %d containers would be written", len(selections))
			}

			return cmdCtx.withStore(func(store *queue.Store) error {
				ids, err := enqueueSelections(ctx, store, cfg, selections, naming, outputFlag, timestamp)
				if err != nil {
					return err
				}

				manager := workflow.NewManager(cfg, store, logger, workflow.StageSet{
					Encoder:      encoding.New(cfg, logger),
					Framer:       framing.NewFramer(cfg, logger),
					HeaderWriter: framing.NewHeaderWriter(cfg, logger),
					Verifier:     framing.NewVerifier(cfg, logger),
				})
				runErr := manager.RunUntilIdle(ctx)
				if errors.Is(runErr, context.Canceled) {
					return runErr
				}

				if err := printConversionResults(ctx, cmd, store, ids); err != nil {
					return err
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "Output file or directory")
	cmd.Flags().IntVar(&bitrateFlag, "bitrate", 96, "Opus bitrate in kbit/s")
	cmd.Flags().BoolVar(&cbrFlag, "cbr", false, "Use constant bitrate encoding")
	cmd.Flags().StringVar(&timestampFlag, "timestamp", "", "Audio id override: unix seconds, 0x-prefixed hex, or a .taf file to copy from")
	cmd.Flags().BoolVar(&appendIDFlag, "append-id", false, "Append the audio id to the output name")
	cmd.Flags().BoolVar(&mediaTagsFlag, "use-media-tags", false, "Derive output names from embedded tags")
	cmd.Flags().StringVar(&templateFlag, "name-template", "", "Output name template, e.g. \"{artist} - {album}\"")
	cmd.Flags().BoolVarP(&recursiveFlag, "recursive", "r", false, "Convert each subdirectory into its own container")
	cmd.Flags().IntVar(&maxDepthFlag, "max-depth", 0, "Recursion depth limit (0 = unlimited)")
	cmd.Flags().IntVar(&workersFlag, "workers", 0, "Parallel conversion workers")
	cmd.Flags().BoolVar(&keepTempFlag, "keep-temp", false, "Keep intermediate files for inspection")
	return cmd
}

// parseTimestamp resolves the --timestamp forms: decimal unix seconds,
// 0x-prefixed hex serial, or a path to a container whose recorded
// timestamp should be reused.
func parseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	if strings.HasPrefix(value, "0x") || strings.HasPrefix(value, "0X") {
		parsed, err := strconv.ParseUint(value[2:], 16, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid hex timestamp %q: %w", value, err)
		}
		return int64(parsed), nil
	}
	if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
		return parsed, nil
	}
	if strings.EqualFold(filepath.Ext(value), ".taf") {
		info, err := taf.Analyze(value)
		if err != nil {
			return 0, fmt.Errorf("read timestamp from %s: %w", value, err)
		}
		return int64(info.Header.AudioID), nil
	}
	return 0, fmt.Errorf("invalid timestamp %q", value)
}

// requireConversionPreflight aborts on local environment problems. An
// unreachable TeddyCloud only matters for upload and is reported later.
func requireConversionPreflight(ctx context.Context, cfg *config.Config) error {
	var failed []string
	for _, result := range preflight.RunAll(ctx, cfg) {
		if result.Passed || result.Name == "TeddyCloud" {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
	}
	if len(failed) > 0 {
		return fmt.Errorf("preflight failed:\n  %s", strings.Join(failed, "\n  "))
	}
	return nil
}

func collectSelections(inputs []string, recursive bool, maxDepth int) ([]media.Selection, error) {
	var selections []media.Selection
	for _, input := range inputs {
		expanded, err := media.Collect(input, media.DiscoverOptions{Recursive: recursive, MaxDepth: maxDepth})
		if err != nil {
			return nil, err
		}
		selections = append(selections, expanded...)
	}
	return selections, nil
}

// enqueueSelections creates one job per selection and returns the job ids.
func enqueueSelections(ctx context.Context, store *queue.Store, cfg *config.Config, selections []media.Selection, naming media.NamingOptions, output string, timestamp int64) ([]int64, error) {
	ids := make([]int64, 0, len(selections))
	for _, sel := range selections {
		audioID := timestamp
		if audioID == 0 && naming.AppendID {
			// The name needs the id before the encode stage would assign one.
			audioID = time.Now().Unix()
		}

		var meta media.Metadata
		if naming.UseMediaTags {
			meta = media.ReadMetadata(sel)
		}
		name := media.OutputName(sel, meta, naming, audioID)
		outputPath := resolveOutputPath(cfg, output, name, len(selections))

		item, err := store.NewJob(ctx, name, sel.Sources, outputPath, cfg.Encoding.Bitrate)
		if err != nil {
			return nil, err
		}
		if audioID != 0 {
			item.AudioID = audioID
			if err := store.Update(ctx, item); err != nil {
				return nil, err
			}
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func resolveOutputPath(cfg *config.Config, output, name string, selectionCount int) string {
	if output == "" {
		return filepath.Join(cfg.Paths.OutputDir, name+".taf")
	}
	if selectionCount == 1 && strings.EqualFold(filepath.Ext(output), ".taf") {
		return output
	}
	return filepath.Join(output, name+".taf")
}

func printConversionResults(ctx context.Context, cmd *cobra.Command, store *queue.Store, ids []int64) error {
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		item, err := store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if item == nil {
			continue
		}
		detail := item.OutputPath
		if item.Status == queue.StatusFailed {
			detail = item.ErrorMessage
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.Title,
			string(item.Status),
			detail,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Title", "Status", "Result"}, rows, 1))
	return nil
}

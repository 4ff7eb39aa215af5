package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tonietool/internal/taf"
)

func newInfoCommand(cmdCtx *commandContext) *cobra.Command {
	var jsonFlag bool

	cmd := &cobra.Command{
		Use:         "info <file.taf>",
		Short:       "Show header, validity, and chapter details of a container",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := taf.Analyze(args[0])
			if err != nil {
				return err
			}
			if jsonFlag {
				return printInfoJSON(cmd, info)
			}
			printInfo(cmd, info)
			if !info.Valid() {
				return fmt.Errorf("%s failed validation", args[0])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonFlag, "json", false, "Emit machine-readable output")
	return cmd
}

func printInfo(cmd *cobra.Command, info *taf.Info) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"File", info.Path},
		{"File size", fmt.Sprintf("%d bytes", info.FileSize)},
		{"Audio size", fmt.Sprintf("%d bytes", info.AudioSize)},
		{"Audio id", fmt.Sprintf("%d (%s)", info.Header.AudioID, time.Unix(int64(info.Header.AudioID), 0).UTC().Format(time.RFC3339))},
		{"SHA1", hex.EncodeToString(info.Header.Hash[:])},
		{"Channels", fmt.Sprintf("%d", info.Channels)},
		{"Sample rate", fmt.Sprintf("%d Hz", info.SampleRate)},
		{"Bitrate", fmt.Sprintf("~%d kbit/s", info.BitrateKbps())},
		{"Duration", info.Duration().Truncate(time.Millisecond).String()},
		{"Pages", fmt.Sprintf("%d", info.TotalPages)},
		{"Aligned", yesNo(info.Aligned)},
		{"Valid", fmt.Sprintf("%s (hash %s, serial %s, length %s)",
			yesNo(info.Valid()), yesNo(info.HashMatch), yesNo(info.SerialMatch), yesNo(info.LengthMatch))},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows))

	chapterRows := make([][]string, 0, len(info.Chapters))
	for _, ch := range info.Chapters {
		chapterRows = append(chapterRows, []string{
			fmt.Sprintf("%d", ch.Track),
			fmt.Sprintf("%d", ch.StartPage),
			ch.Duration().Truncate(time.Millisecond).String(),
		})
	}
	fmt.Fprintln(out, renderTable([]string{"Track", "Start page", "Duration"}, chapterRows, 1, 2))
}

type infoView struct {
	Path       string        `json:"path"`
	FileSize   int64         `json:"file_size"`
	AudioSize  int64         `json:"audio_size"`
	AudioID    uint32        `json:"audio_id"`
	Timestamp  string        `json:"timestamp"`
	SHA1       string        `json:"sha1"`
	Channels   uint8         `json:"channels"`
	SampleRate uint32        `json:"sample_rate"`
	Bitrate    int           `json:"bitrate_kbps"`
	DurationMS int64         `json:"duration_ms"`
	Pages      uint32        `json:"pages"`
	Aligned    bool          `json:"aligned"`
	Valid      bool          `json:"valid"`
	Checks     checksView    `json:"checks"`
	Chapters   []chapterView `json:"chapters"`
}

type checksView struct {
	Hash   bool `json:"hash"`
	Serial bool `json:"serial"`
	Length bool `json:"length"`
}

type chapterView struct {
	Track      int    `json:"track"`
	StartPage  uint32 `json:"start_page"`
	DurationMS int64  `json:"duration_ms"`
}

func printInfoJSON(cmd *cobra.Command, info *taf.Info) error {
	view := infoView{
		Path:       info.Path,
		FileSize:   info.FileSize,
		AudioSize:  info.AudioSize,
		AudioID:    info.Header.AudioID,
		Timestamp:  time.Unix(int64(info.Header.AudioID), 0).UTC().Format(time.RFC3339),
		SHA1:       hex.EncodeToString(info.Header.Hash[:]),
		Channels:   info.Channels,
		SampleRate: info.SampleRate,
		Bitrate:    info.BitrateKbps(),
		DurationMS: info.Duration().Milliseconds(),
		Pages:      info.TotalPages,
		Aligned:    info.Aligned,
		Valid:      info.Valid(),
		Checks:     checksView{Hash: info.HashMatch, Serial: info.SerialMatch, Length: info.LengthMatch},
	}
	for _, ch := range info.Chapters {
		view.Chapters = append(view.Chapters, chapterView{
			Track:      ch.Track,
			StartPage:  ch.StartPage,
			DurationMS: ch.Duration().Milliseconds(),
		})
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}

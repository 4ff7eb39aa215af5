package queue

import (
	"encoding/json"
	"strings"
	"time"
)

// Status represents the lifecycle of a conversion job.
type Status string

const (
	StatusPending       Status = "pending"
	StatusEncoding      Status = "encoding"
	StatusEncoded       Status = "encoded"
	StatusFraming       Status = "framing"
	StatusFramed        Status = "framed"
	StatusWritingHeader Status = "writing_header"
	StatusHeaderWritten Status = "header_written"
	StatusVerifying     Status = "verifying"
	StatusVerified      Status = "verified"
	StatusFailed        Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusEncoding,
	StatusEncoded,
	StatusFraming,
	StatusFramed,
	StatusWritingHeader,
	StatusHeaderWritten,
	StatusVerifying,
	StatusVerified,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusEncoding:      {},
	StatusFraming:       {},
	StatusWritingHeader: {},
	StatusVerifying:     {},
}

type statusTransition struct {
	from Status
	to   Status
}

// stageRollbackTransitions return an interrupted processing state to the
// start of its stage.
var stageRollbackTransitions = []statusTransition{
	{from: StatusEncoding, to: StatusPending},
	{from: StatusFraming, to: StatusEncoded},
	{from: StatusWritingHeader, to: StatusFramed},
	{from: StatusVerifying, to: StatusHeaderWritten},
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Failed     int
	Verified   int
}

// Item represents a conversion job persisted in SQLite.
type Item struct {
	ID               int64
	Title            string
	Status           Status
	SourcePathsJSON  string
	EncodedFilesJSON string
	StreamInfoJSON   string
	OutputPath       string
	AudioID          int64
	Bitrate          int
	ErrorMessage     string
	ProgressStage    string
	ProgressMessage  string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether the job is mid-stage.
func (i Item) IsProcessing() bool {
	return IsProcessingStatus(i.Status)
}

// IsProcessingStatus reports whether a status reflects an in-flight
// operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// SourcePaths decodes the job's input files, one chapter each, in order.
func (i *Item) SourcePaths() []string {
	return decodePathList(i.SourcePathsJSON)
}

// SetSourcePaths encodes the job's input files.
func (i *Item) SetSourcePaths(paths []string) error {
	encoded, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	i.SourcePathsJSON = string(encoded)
	return nil
}

// EncodedFiles decodes the intermediate .opus paths produced by the encode
// stage.
func (i *Item) EncodedFiles() []string {
	return decodePathList(i.EncodedFilesJSON)
}

// SetEncodedFiles encodes the intermediate .opus paths.
func (i *Item) SetEncodedFiles(paths []string) error {
	encoded, err := json.Marshal(paths)
	if err != nil {
		return err
	}
	i.EncodedFilesJSON = string(encoded)
	return nil
}

// SetFailed marks the job failed with the given error message.
func (i *Item) SetFailed(message string) {
	i.Status = StatusFailed
	i.ErrorMessage = message
	i.ProgressStage = "Failed"
	i.ProgressMessage = message
}

// SetProgress updates the presentation fields for the current stage.
func (i *Item) SetProgress(stage, message string) {
	i.ProgressStage = stage
	i.ProgressMessage = message
}

func decodePathList(encoded string) []string {
	if strings.TrimSpace(encoded) == "" {
		return nil
	}
	var paths []string
	if err := json.Unmarshal([]byte(encoded), &paths); err != nil {
		return nil
	}
	return paths
}

package queue

import (
	"database/sql"
	"errors"
	"time"
)

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id              int64
		title           string
		statusStr       string
		sourcePaths     sql.NullString
		encodedFiles    sql.NullString
		streamInfo      sql.NullString
		outputPath      sql.NullString
		audioID         sql.NullInt64
		bitrate         sql.NullInt64
		errorMessage    sql.NullString
		progressStage   sql.NullString
		progressMessage sql.NullString
		createdRaw      sql.NullString
		updatedRaw      sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&statusStr,
		&sourcePaths,
		&encodedFiles,
		&streamInfo,
		&outputPath,
		&audioID,
		&bitrate,
		&errorMessage,
		&progressStage,
		&progressMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:               id,
		Title:            title,
		Status:           Status(statusStr),
		SourcePathsJSON:  sourcePaths.String,
		EncodedFilesJSON: encodedFiles.String,
		StreamInfoJSON:   streamInfo.String,
		OutputPath:       outputPath.String,
		AudioID:          audioID.Int64,
		Bitrate:          int(bitrate.Int64),
		ErrorMessage:     errorMessage.String,
		ProgressStage:    progressStage.String,
		ProgressMessage:  progressMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const itemColumns = "id, title, status, source_paths_json, encoded_files_json, stream_info_json, output_path, audio_id, bitrate, error_message, progress_stage, progress_message, created_at, updated_at"

// NewJob inserts a pending conversion job.
func (s *Store) NewJob(ctx context.Context, title string, sources []string, outputPath string, bitrate int) (*Item, error) {
	if len(sources) == 0 {
		return nil, errors.New("job has no source files")
	}
	encoded, err := json.Marshal(sources)
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)

	res, err := s.execWithRetry(
		ctx,
		`INSERT INTO queue_items (
            title, status, source_paths_json, output_path, bitrate, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		title,
		StatusPending,
		string(encoded),
		nullableString(outputPath),
		bitrate,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. It returns nil without error when no
// job exists.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// List returns jobs ordered by id, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE queue_items
         SET title = ?, status = ?, source_paths_json = ?, encoded_files_json = ?,
             stream_info_json = ?, output_path = ?, audio_id = ?, bitrate = ?, error_message = ?,
             progress_stage = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		item.Title,
		item.Status,
		nullableString(item.SourcePathsJSON),
		nullableString(item.EncodedFilesJSON),
		nullableString(item.StreamInfoJSON),
		nullableString(item.OutputPath),
		item.AudioID,
		item.Bitrate,
		nullableString(item.ErrorMessage),
		nullableString(item.ProgressStage),
		nullableString(item.ProgressMessage),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	); err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// Claim atomically moves the oldest job in status from to status to and
// returns it. It returns nil when no job is waiting.
func (s *Store) Claim(ctx context.Context, from, to Status) (*Item, error) {
	ctx = ensureContext(ctx)
	for {
		var id int64
		err := s.db.QueryRowContext(
			ctx,
			`SELECT id FROM queue_items WHERE status = ? ORDER BY id LIMIT 1`,
			from,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("select claimable item: %w", err)
		}

		res, err := s.execWithRetry(
			ctx,
			`UPDATE queue_items SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
			to,
			time.Now().UTC().Format(time.RFC3339Nano),
			id,
			from,
		)
		if err != nil {
			return nil, fmt.Errorf("claim item: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			return s.GetByID(ctx, id)
		}
		// Another worker won the race; try the next candidate.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}

// ResetStuckProcessing returns jobs interrupted mid-stage to the start of
// their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	args := make([]any, 0, len(stageRollbackTransitions)*3+1)
	query := `UPDATE queue_items SET status = CASE status`
	for _, t := range stageRollbackTransitions {
		query += ` WHEN ? THEN ?`
		args = append(args, t.from, t.to)
	}
	query += ` ELSE status END,
            progress_stage = 'Reset from interrupted stage',
            progress_message = NULL, updated_at = ?
        WHERE status IN (` + makePlaceholders(len(stageRollbackTransitions)) + `)`
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	for _, t := range stageRollbackTransitions {
		args = append(args, t.from)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE queue_items
        SET status = ?, progress_stage = 'Retry requested',
            progress_message = NULL, error_message = NULL, encoded_files_json = NULL,
            stream_info_json = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, time.Now().UTC().Format(time.RFC3339Nano), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed items: %w", err)
	}
	return res.RowsAffected()
}

// Clear removes jobs from the queue. With onlyFinished set, only verified
// and failed jobs are removed.
func (s *Store) Clear(ctx context.Context, onlyFinished bool) (int64, error) {
	query := `DELETE FROM queue_items`
	args := []any{}
	if onlyFinished {
		query += ` WHERE status IN (?, ?)`
		args = append(args, StatusVerified, StatusFailed)
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear queue: %w", err)
	}
	return res.RowsAffected()
}

// Health summarizes queue counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM queue_items GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("queue health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var statusStr string
		var count int
		if err := rows.Scan(&statusStr, &count); err != nil {
			return HealthSummary{}, err
		}
		summary.Total += count
		switch status := Status(statusStr); {
		case status == StatusPending:
			summary.Pending += count
		case status == StatusFailed:
			summary.Failed += count
		case status == StatusVerified:
			summary.Verified += count
		case IsProcessingStatus(status):
			summary.Processing += count
		}
	}
	return summary, rows.Err()
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/campex/campex/pkg/storage"
)

const (
	putResolutionLogQuery = `
INSERT INTO campex.resolution_event (
  id, date_added, fingerprint, subject, role, source, event, metadata
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`

	listResolutionLogByFingerprintQuery = `
SELECT
  id::text, date_added, fingerprint, subject, role, source, event, metadata
FROM campex.resolution_event
WHERE fingerprint = $1
ORDER BY date_added ASC
`

	listResolutionLogBySubjectQuery = `
SELECT
  id::text, date_added, fingerprint, subject, role, source, event, metadata
FROM campex.resolution_event
WHERE subject = $1
ORDER BY date_added ASC
`
)

func (a *Adapter) PutResolutionLog(ctx context.Context, record storage.ResolutionLogRecord) error {
	if err := a.requirePreparedStatements(); err != nil {
		return err
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	dateAdded := record.DateAdded
	if dateAdded.IsZero() {
		dateAdded = time.Now().UTC()
	}

	var metadata []byte
	if len(record.Metadata) > 0 {
		encoded, err := json.Marshal(record.Metadata)
		if err != nil {
			return err
		}
		metadata = encoded
	}

	_, err := a.stmts.putResolutionLog.ExecContext(
		ctx,
		id,
		dateAdded,
		record.Fingerprint,
		record.Subject,
		record.Role,
		record.Source,
		string(record.Event),
		metadata,
	)
	return err
}

func (a *Adapter) ListResolutionLogsByFingerprint(ctx context.Context, fingerprint string) ([]storage.ResolutionLogRecord, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return nil, err
	}

	return a.listResolutionLogs(ctx, a.stmts.listResolutionLogByFingerprint, fingerprint)
}

func (a *Adapter) ListResolutionLogsBySubject(ctx context.Context, subject string) ([]storage.ResolutionLogRecord, error) {
	if err := a.requirePreparedStatements(); err != nil {
		return nil, err
	}

	return a.listResolutionLogs(ctx, a.stmts.listResolutionLogBySubject, subject)
}

func (a *Adapter) listResolutionLogs(ctx context.Context, stmt *sql.Stmt, arg string) ([]storage.ResolutionLogRecord, error) {
	rows, err := stmt.QueryContext(ctx, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []storage.ResolutionLogRecord{}
	for rows.Next() {
		record, err := scanResolutionEvent(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

func scanResolutionEvent(s scanner) (storage.ResolutionLogRecord, error) {
	var (
		record    storage.ResolutionLogRecord
		dateAdded time.Time
		event     string
		metadata  []byte
	)

	if err := s.Scan(
		&record.ID,
		&dateAdded,
		&record.Fingerprint,
		&record.Subject,
		&record.Role,
		&record.Source,
		&event,
		&metadata,
	); err != nil {
		return storage.ResolutionLogRecord{}, err
	}

	record.DateAdded = dateAdded.UTC()
	record.Event = storage.ResolutionEvent(event)

	if len(metadata) > 0 {
		decoded := map[string]string{}
		if err := json.Unmarshal(metadata, &decoded); err != nil {
			return storage.ResolutionLogRecord{}, err
		}
		record.Metadata = decoded
	}

	return record, nil
}

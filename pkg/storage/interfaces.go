package storage

import (
	"context"
	"time"
)

type ResolutionEvent string

const (
	ResolutionEventResolved    ResolutionEvent = "resolved"
	ResolutionEventFallback    ResolutionEvent = "fallback"
	ResolutionEventFailed      ResolutionEvent = "failed"
	ResolutionEventInvalidated ResolutionEvent = "invalidated"
)

// ResolutionLogRecord is one audit entry for a permission resolution. The
// fingerprint is the cache key, never the raw token.
type ResolutionLogRecord struct {
	ID          string
	DateAdded   time.Time
	Fingerprint string
	Subject     string
	Role        string
	Source      string
	Event       ResolutionEvent
	Metadata    map[string]string
}

type ResolutionLogStore interface {
	PutResolutionLog(ctx context.Context, record ResolutionLogRecord) error
	ListResolutionLogsByFingerprint(ctx context.Context, fingerprint string) ([]ResolutionLogRecord, error)
	ListResolutionLogsBySubject(ctx context.Context, subject string) ([]ResolutionLogRecord, error)
}

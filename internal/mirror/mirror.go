// Package mirror talks to the remote document store that holds the
// off-site copy of committed readings, and to the object store used for
// opaque JSON backups. Both are eventually consistent collaborators:
// every failure here is retryable and never blocks local ingestion.
package mirror

import (
	"context"
	"fmt"
)

// Document is one mirrored record. Key is deterministic per local
// reading, so re-uploading overwrites instead of duplicating.
type Document struct {
	Key  string         `json:"key"`
	Data map[string]any `json:"data"`
}

type BatchOutcome struct {
	Key   string `json:"key"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type QueryFilter struct {
	DeviceID string
	StartTS  int64
	EndTS    int64
	Limit    int
}

// ConnectivityStatus is the structured result of a diagnostic probe.
// Probe failures are reported here, never raised as fatal.
type ConnectivityStatus struct {
	Documents bool     `json:"documents"`
	Objects   bool     `json:"objects"`
	Errors    []string `json:"errors,omitempty"`
}

// UnavailableError means the store could not be reached or answered
// with a server failure: the whole batch stays pending and is retried.
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("mirror unavailable: %v", e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ConnectivityError is a failed diagnostic probe against one of the
// remote surfaces. It is informational: probes run on demand and their
// failures are folded into ConnectivityStatus.
type ConnectivityError struct {
	Surface string
	Err     error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Surface, e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}

type Mirror interface {
	Upsert(ctx context.Context, doc Document) error
	UpsertBatch(ctx context.Context, docs []Document) ([]BatchOutcome, error)
	Query(ctx context.Context, f QueryFilter) ([]Document, error)
	Probe(ctx context.Context) error
}

type ObjectStore interface {
	PutObject(ctx context.Context, key string, blob []byte) error
	ProbeBucket(ctx context.Context) error
}

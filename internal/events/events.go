// Package events defines the domain events published by the core and the
// publisher port they travel through.
package events

import (
	"time"
)

// Kind tags an event variant.
type Kind string

const (
	KindIndexRebuild         Kind = "index_rebuild"
	KindIndexingStarted      Kind = "indexing_started"
	KindIndexingProgress     Kind = "indexing_progress"
	KindIndexingCompleted    Kind = "indexing_completed"
	KindSyncCompleted        Kind = "sync_completed"
	KindCacheInvalidate      Kind = "cache_invalidate"
	KindSnapshotCreated      Kind = "snapshot_created"
	KindFileChangesDetected  Kind = "file_changes_detected"
	KindServiceStateChanged  Kind = "service_state_changed"
	KindConfigReloaded       Kind = "config_reloaded"
	KindHealthCheckCompleted Kind = "health_check_completed"
	KindMetricsSnapshot      Kind = "metrics_snapshot"
	KindSearchExecuted       Kind = "search_executed"
	KindValidationStarted    Kind = "validation_started"
	KindValidationProgress   Kind = "validation_progress"
	KindValidationCompleted  Kind = "validation_completed"
	KindSessionStateChanged  Kind = "session_state_changed"
)

// Event is a domain event. Exactly one payload field is set, selected by
// Kind.
type Event struct {
	Kind Kind
	At   time.Time

	IndexRebuild         *IndexRebuild
	IndexingStarted      *IndexingStarted
	IndexingProgress     *IndexingProgress
	IndexingCompleted    *IndexingCompleted
	SyncCompleted        *SyncCompleted
	CacheInvalidate      *CacheInvalidate
	SnapshotCreated      *SnapshotCreated
	FileChangesDetected  *FileChangesDetected
	ServiceStateChanged  *ServiceStateChanged
	ConfigReloaded       *ConfigReloaded
	HealthCheckCompleted *HealthCheckCompleted
	MetricsSnapshot      *MetricsSnapshot
	SearchExecuted       *SearchExecuted
	ValidationStarted    *ValidationStarted
	ValidationProgress   *ValidationProgress
	ValidationCompleted  *ValidationCompleted
	SessionStateChanged  *SessionStateChanged
}

// IndexRebuild requests a full rebuild, optionally of one collection.
type IndexRebuild struct {
	Collection string
}

// IndexingStarted opens an indexing run.
type IndexingStarted struct {
	Collection string
	TotalFiles int
}

// IndexingProgress reports per-file progress during a run.
type IndexingProgress struct {
	Collection  string
	Processed   int
	Total       int
	CurrentFile string
}

// IndexingCompleted closes an indexing run.
type IndexingCompleted struct {
	Collection string
	Chunks     int
	DurationMS int64
	// Warnings carries per-file failures that were skipped, not elevated.
	Warnings []string
}

// SyncCompleted reports an incremental sync pass.
type SyncCompleted struct {
	Path         string
	FilesChanged int
}

// CacheInvalidate requests cache invalidation for a namespace.
type CacheInvalidate struct {
	Namespace string
}

// SnapshotCreated reports a filesystem snapshot.
type SnapshotCreated struct {
	RootPath  string
	FileCount int
}

// FileChangesDetected reports watcher-observed changes.
type FileChangesDetected struct {
	RootPath string
	Added    []string
	Modified []string
	Removed  []string
}

// ServiceStateChanged reports a service lifecycle transition.
type ServiceStateChanged struct {
	Name          string
	State         string
	PreviousState string
}

// ConfigReloaded reports a configuration section reload.
type ConfigReloaded struct {
	Section   string
	Timestamp time.Time
}

// HealthCheckCompleted reports the outcome of a health sweep.
type HealthCheckCompleted struct {
	Status         string
	HealthyCount   int
	UnhealthyCount int
}

// MetricsSnapshot marks a metrics collection point.
type MetricsSnapshot struct {
	Timestamp time.Time
}

// SearchExecuted reports one hybrid search.
type SearchExecuted struct {
	Query      string
	Collection string
	Results    int
	DurationMS int64
}

// ValidationStarted opens a validation run.
type ValidationStarted struct {
	Target string
	Total  int
}

// ValidationProgress reports per-item validation progress.
type ValidationProgress struct {
	Target    string
	Processed int
	Total     int
}

// ValidationCompleted closes a validation run.
type ValidationCompleted struct {
	Target   string
	Passed   int
	Failed   int
	Warnings []string
}

// SessionStateChanged reports a workflow session transition.
type SessionStateChanged struct {
	SessionID string
	From      string
	To        string
	Trigger   string
}

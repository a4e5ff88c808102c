package types

import "time"

// SyncStatus is the replication state of a pending row.
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// PendingGame is a full copy of a game record parked on the master while
// its slave is unreachable, plus replication bookkeeping. Rows are kept
// after a successful sync for audit; they are never deleted.
type PendingGame struct {
	Game

	SyncStatus      SyncStatus `json:"SyncStatus"`
	EnqueuedAt      time.Time  `json:"CreatedAt"`
	LastSyncAttempt *time.Time `json:"LastSyncAttempt,omitempty"`
	SyncRetries     int        `json:"SyncRetries"`
	ErrorMessage    string     `json:"ErrorMessage,omitempty"`
}

// NodeStatus is the persisted per-node health row on the master.
// One row per node, living for the lifetime of the master's storage.
type NodeStatus struct {
	NodeName     string     `json:"node_name"`
	IsAvailable  bool       `json:"is_available"`
	LastChecked  time.Time  `json:"last_checked"`
	LastSync     *time.Time `json:"last_sync,omitempty"`
	FailureCount int        `json:"failure_count"`
	LastError    string     `json:"last_error,omitempty"`
}

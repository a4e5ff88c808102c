package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gamevault/gamevault/internal/types"
)

// SeedNodeStatus inserts the node's status row if it does not exist yet.
// Called by the migrator for each known node.
func SeedNodeStatus(ctx context.Context, db DBTX, node string) error {
	var one int
	err := db.QueryRowContext(ctx,
		"SELECT 1 FROM node_status WHERE node_name = ?", node).Scan(&one)
	switch {
	case err == sql.ErrNoRows:
		_, err = db.ExecContext(ctx,
			"INSERT INTO node_status (node_name, is_available, last_checked, failure_count, last_error) VALUES (?, ?, ?, 0, '')",
			node, true, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to seed node_status for %s: %w", node, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to check node_status for %s: %w", node, err)
	}
	return nil
}

// RecordNodeStatus persists one observation from the monitor: availability
// plus the check timestamp. Failures accumulate the failure count and the
// error text; a healthy observation resets both.
func RecordNodeStatus(ctx context.Context, db DBTX, node string, available bool, cause error) error {
	now := time.Now().UTC()
	var err error
	if available {
		_, err = db.ExecContext(ctx,
			"UPDATE node_status SET is_available = ?, last_checked = ?, failure_count = 0, last_error = '' WHERE node_name = ?",
			true, now, node)
	} else {
		msg := ""
		if cause != nil {
			msg = cause.Error()
		}
		_, err = db.ExecContext(ctx,
			"UPDATE node_status SET is_available = ?, last_checked = ?, failure_count = failure_count + 1, last_error = ? WHERE node_name = ?",
			false, now, msg, node)
	}
	if err != nil {
		return fmt.Errorf("failed to record node_status for %s: %w", node, err)
	}
	return nil
}

// RecordNodeSync stamps the node's last successful replication time.
func RecordNodeSync(ctx context.Context, db DBTX, node string) error {
	_, err := db.ExecContext(ctx,
		"UPDATE node_status SET last_sync = ? WHERE node_name = ?",
		time.Now().UTC(), node)
	if err != nil {
		return fmt.Errorf("failed to record last_sync for %s: %w", node, err)
	}
	return nil
}

// GetNodeStatus fetches the persisted status row for one node.
func GetNodeStatus(ctx context.Context, db DBTX, node string) (*types.NodeStatus, error) {
	var (
		st       types.NodeStatus
		lastSync sql.NullTime
		lastErr  sql.NullString
	)
	err := db.QueryRowContext(ctx,
		"SELECT node_name, is_available, last_checked, last_sync, failure_count, last_error FROM node_status WHERE node_name = ?",
		node).Scan(&st.NodeName, &st.IsAvailable, &st.LastChecked, &lastSync, &st.FailureCount, &lastErr)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("node_status %s: %w", node, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node_status for %s: %w", node, err)
	}
	if lastSync.Valid {
		t := lastSync.Time.UTC()
		st.LastSync = &t
	}
	st.LastError = lastErr.String
	st.LastChecked = st.LastChecked.UTC()
	return &st, nil
}

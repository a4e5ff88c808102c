package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gamevault/gamevault/internal/types"
)

const txLogColumns = "log_id, transaction_id, node_id, operation, record_id, " +
	"old_data, new_data, timestamp, status, error_message, processed"

// AppendTxLog appends one per-node row to the unified transaction log on
// the master. COMMITTED rows are born processed; PENDING and FAILED rows
// wait for the retry manager.
func AppendTxLog(ctx context.Context, db DBTX, e *types.TxLogEntry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	var recordID any
	if e.RecordID != nil {
		recordID = *e.RecordID
	}
	processed := e.Processed || e.Status == types.TxCommitted
	_, err := db.ExecContext(ctx,
		`INSERT INTO transaction_log
		(transaction_id, node_id, operation, record_id, old_data, new_data, timestamp, status, error_message, processed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TransactionID, e.NodeID, string(e.Operation), recordID,
		e.OldData, e.NewData, e.Timestamp, string(e.Status), e.ErrorMessage, processed)
	if err != nil {
		return fmt.Errorf("failed to append transaction log: %w", err)
	}
	return nil
}

// ListUnprocessedTxLogs returns every PENDING or FAILED row that has not
// been processed yet, oldest first.
func ListUnprocessedTxLogs(ctx context.Context, db DBTX) ([]*types.TxLogEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT "+txLogColumns+" FROM transaction_log"+
			" WHERE status IN (?, ?) AND processed = ? ORDER BY log_id ASC",
		string(types.TxPending), string(types.TxFailed), false)
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction log: %w", err)
	}
	defer rows.Close()

	var out []*types.TxLogEntry
	for rows.Next() {
		var (
			e        types.TxLogEntry
			op       string
			status   string
			recordID sql.NullInt64
			oldData  sql.NullString
			newData  sql.NullString
			errMsg   sql.NullString
		)
		if err := rows.Scan(&e.LogID, &e.TransactionID, &e.NodeID, &op, &recordID,
			&oldData, &newData, &e.Timestamp, &status, &errMsg, &e.Processed); err != nil {
			return nil, fmt.Errorf("failed to scan transaction log row: %w", err)
		}
		e.Operation = types.TxOperation(op)
		e.Status = types.TxStatus(status)
		if recordID.Valid {
			id := recordID.Int64
			e.RecordID = &id
		}
		e.OldData = oldData.String
		e.NewData = newData.String
		e.ErrorMessage = errMsg.String
		e.Timestamp = e.Timestamp.UTC()
		out = append(out, &e)
	}
	return out, rows.Err()
}

// MarkTxLogCommitted flips a replayed row to its terminal state:
// COMMITTED, processed, error cleared.
func MarkTxLogCommitted(ctx context.Context, db DBTX, logID int64) error {
	_, err := db.ExecContext(ctx,
		"UPDATE transaction_log SET status = ?, processed = ?, error_message = '' WHERE log_id = ?",
		string(types.TxCommitted), true, logID)
	if err != nil {
		return fmt.Errorf("failed to mark log %d committed: %w", logID, err)
	}
	return nil
}

// SetTxLogError records a failed replay. Status and processed are left
// untouched so the row stays eligible for the next retry cycle.
func SetTxLogError(ctx context.Context, db DBTX, logID int64, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := db.ExecContext(ctx,
		"UPDATE transaction_log SET error_message = ? WHERE log_id = ?", msg, logID)
	if err != nil {
		return fmt.Errorf("failed to set error on log %d: %w", logID, err)
	}
	return nil
}

// CountTxLogsByStatus returns the number of rows in the given status.
func CountTxLogsByStatus(ctx context.Context, db DBTX, status types.TxStatus) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transaction_log WHERE status = ?", string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count transaction log: %w", err)
	}
	return n, nil
}

package types

import (
	"fmt"
	"time"
)

// TxOperation is the DML kind recorded in the transaction log.
type TxOperation string

const (
	TxInsert TxOperation = "INSERT"
	TxUpdate TxOperation = "UPDATE"
	TxDelete TxOperation = "DELETE"
)

// TxStatus is the per-node outcome of a logged transaction.
//
// State machine (driven by the retry manager):
//
//	PENDING  --replay ok--> COMMITTED (terminal, processed)
//	PENDING  --replay err-> PENDING   (error message updated)
//	FAILED   --replay ok--> COMMITTED
//	FAILED   --replay err-> FAILED    (error message updated)
type TxStatus string

const (
	TxPending   TxStatus = "PENDING"
	TxCommitted TxStatus = "COMMITTED"
	TxFailed    TxStatus = "FAILED"
)

// NodeID maps a node name to its 1-based log identifier.
func NodeID(name string) (int, error) {
	switch name {
	case NodeMaster:
		return 1, nil
	case NodeSlaveA:
		return 2, nil
	case NodeSlaveB:
		return 3, nil
	}
	return 0, fmt.Errorf("unknown node %q", name)
}

// NodeName maps a 1-based log identifier back to its node name.
func NodeName(id int) (string, error) {
	switch id {
	case 1:
		return NodeMaster, nil
	case 2:
		return NodeSlaveA, nil
	case 3:
		return NodeSlaveB, nil
	}
	return "", fmt.Errorf("unknown node id %d", id)
}

// TxLogEntry is one append-only row of the unified transaction log on the
// master. Writers only append; the retry path is the only mutator, and it
// only flips status/processed and updates the error message.
type TxLogEntry struct {
	LogID         int64       `json:"log_id"`
	TransactionID string      `json:"transaction_id"`
	NodeID        int         `json:"node_id"`
	Operation     TxOperation `json:"operation"`
	RecordID      *int64      `json:"record_id,omitempty"`
	OldData       string      `json:"old_data,omitempty"` // JSON snapshot, empty when absent
	NewData       string      `json:"new_data,omitempty"` // JSON snapshot, empty when absent
	Timestamp     time.Time   `json:"timestamp"`
	Status        TxStatus    `json:"status"`
	ErrorMessage  string      `json:"error_message,omitempty"`
	Processed     bool        `json:"processed"`
}

// IsolationLevel is the per-node transaction isolation used by the
// transaction manager.
type IsolationLevel string

const (
	ReadUncommitted IsolationLevel = "READ UNCOMMITTED"
	ReadCommitted   IsolationLevel = "READ COMMITTED"
	RepeatableRead  IsolationLevel = "REPEATABLE READ"
	Serializable    IsolationLevel = "SERIALIZABLE"
)

// ValidIsolationLevel reports whether level is one of the four supported
// MySQL isolation levels.
func ValidIsolationLevel(level IsolationLevel) bool {
	switch level {
	case ReadUncommitted, ReadCommitted, RepeatableRead, Serializable:
		return true
	}
	return false
}

package txqueue

import (
	"fmt"
	"strings"
	"time"
)

// Priority orders transactions waiting for broadcast. Higher values are served first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityCritical
)

// String returns the lowercase name of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority converts a case-insensitive priority name into a Priority.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "normal", "":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "critical":
		return PriorityCritical, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// QueuedTransaction is a pending broadcast submission with its scheduling and retry metadata.
//
// RetryCount never exceeds MaxRetries while the transaction is not terminal.
type QueuedTransaction struct {
	ID         string            `json:"id"`
	Payload    []byte            `json:"payload"`
	ChainID    string            `json:"chain_id"`
	DeviceID   string            `json:"device_id,omitempty"`
	Priority   Priority          `json:"priority"`
	QueuedAt   time.Time         `json:"queued_at"`
	RetryCount int               `json:"retry_count"`
	MaxRetries int               `json:"max_retries"`
	RetryDelay time.Duration     `json:"retry_delay"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// TransactionResult is the terminal outcome of a transaction. It is never modified after creation.
type TransactionResult struct {
	TransactionID    string    `json:"transaction_id"`
	Success          bool      `json:"success"`
	TxHash           string    `json:"tx_hash,omitempty"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	RetryCount       int       `json:"retry_count"`
	ChainID          string    `json:"chain_id"`
	DeviceID         string    `json:"device_id,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
	GasUsed          *uint64   `json:"gas_used,omitempty"`
	BlockNumber      *uint64   `json:"block_number,omitempty"`
}

// State is the lifecycle position of a transaction inside the queue.
type State string

const (
	StateQueued     State = "queued"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
)

// Status describes where a transaction currently is. Result is only set for StateCompleted.
type Status struct {
	State  State              `json:"state"`
	Result *TransactionResult `json:"result,omitempty"`
}

// Snapshot is a point-in-time view of the queue, taken under a single lock.
type Snapshot struct {
	QueueSize       int              `json:"queue_size"`
	ProcessingCount int              `json:"processing_count"`
	CompletedCount  int              `json:"completed_count"`
	FailedCount     int              `json:"failed_count"`
	Capacity        int              `json:"capacity"`
	ByPriority      map[Priority]int `json:"by_priority"`
}

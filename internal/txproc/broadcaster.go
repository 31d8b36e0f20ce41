package txproc

import (
	"context"
	"errors"

	"github.com/gabapcia/txrelay/internal/txqueue"
)

// ErrResultNotFound is returned by a ResultStore that has no result for an id.
var ErrResultNotFound = errors.New("transaction result not found")

// Receipt is what a chain returns for an accepted transaction.
// GasUsed and BlockNumber are nil when the node did not report them.
type Receipt struct {
	TxHash      string
	GasUsed     *uint64
	BlockNumber *uint64
}

// Broadcaster submits signed transactions to a chain node.
type Broadcaster interface {
	Broadcast(ctx context.Context, signedTx []byte, chainID string) (Receipt, error)
}

// BroadcasterFunc adapts a function to Broadcaster.
type BroadcasterFunc func(ctx context.Context, signedTx []byte, chainID string) (Receipt, error)

func (f BroadcasterFunc) Broadcast(ctx context.Context, signedTx []byte, chainID string) (Receipt, error) {
	return f(ctx, signedTx, chainID)
}

// ResultStore keeps terminal results beyond the in-memory completed window.
type ResultStore interface {
	SaveResult(ctx context.Context, result txqueue.TransactionResult) error
	LoadResult(ctx context.Context, id string) (txqueue.TransactionResult, error)
}

// nopResultStore is used when no ResultStore is configured.
type nopResultStore struct{}

func (nopResultStore) SaveResult(context.Context, txqueue.TransactionResult) error { return nil }

func (nopResultStore) LoadResult(context.Context, string) (txqueue.TransactionResult, error) {
	return txqueue.TransactionResult{}, ErrResultNotFound
}

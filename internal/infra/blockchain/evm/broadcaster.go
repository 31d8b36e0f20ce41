// Package evm broadcasts signed transactions to Ethereum-compatible nodes
// over JSON-RPC and probes their health.
package evm

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gabapcia/txrelay/internal/pkg/logger"
	"github.com/gabapcia/txrelay/internal/pkg/transport/jsonrpc"
	"github.com/gabapcia/txrelay/internal/pkg/types"
	"github.com/gabapcia/txrelay/internal/txproc"
)

var (
	// ErrUnsupportedChain is returned for chain ids without a configured node.
	ErrUnsupportedChain = errors.New("unsupported chain")

	// ErrEmptyTransactionHash is returned when a node accepts a transaction without returning its hash.
	ErrEmptyTransactionHash = errors.New("node returned an empty transaction hash")
)

// receiptResponse is the subset of eth_getTransactionReceipt used to fill a txproc.Receipt.
type receiptResponse struct {
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     types.Hex `json:"blockNumber"`
	GasUsed         types.Hex `json:"gasUsed"`
	Status          types.Hex `json:"status"`
}

type broadcaster struct {
	chains map[string]jsonrpc.Client
}

var _ txproc.Broadcaster = (*broadcaster)(nil)

// NewBroadcaster returns a broadcaster that routes each chain id to its node.
func NewBroadcaster(chains map[string]jsonrpc.Client) *broadcaster {
	return &broadcaster{
		chains: maps.Clone(chains),
	}
}

func (b *broadcaster) conn(chainID string) (jsonrpc.Client, error) {
	conn, ok := b.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChain, chainID)
	}
	return conn, nil
}

// Chains returns the configured chain ids, sorted.
func (b *broadcaster) Chains() []string {
	return slices.Sorted(maps.Keys(b.chains))
}

// Broadcast sends signedTx with eth_sendRawTransaction. When the node already
// has a receipt for the hash, gas used and block number are filled in.
// signedTx must be an RLP encoded signed transaction; payment records are
// not understood by EVM nodes and are rejected by them.
func (b *broadcaster) Broadcast(ctx context.Context, signedTx []byte, chainID string) (txproc.Receipt, error) {
	conn, err := b.conn(chainID)
	if err != nil {
		return txproc.Receipt{}, err
	}

	hash, err := jsonrpc.Call[string](ctx, conn, "eth_sendRawTransaction", "0x"+hex.EncodeToString(signedTx))
	if err != nil {
		return txproc.Receipt{}, err
	}
	if hash == "" {
		return txproc.Receipt{}, ErrEmptyTransactionHash
	}

	receipt := txproc.Receipt{TxHash: hash}

	raw, err := conn.Fetch(ctx, "eth_getTransactionReceipt", hash)
	if err != nil {
		logger.Debug(ctx, "transaction receipt unavailable", "transaction.hash", hash, "error", err)
		return receipt, nil
	}

	var r *receiptResponse
	if err := json.Unmarshal(raw, &r); err != nil || r == nil {
		// A pending transaction has a null receipt.
		return receipt, nil
	}

	gasUsed, blockNumber := r.GasUsed.Uint64(), r.BlockNumber.Uint64()
	receipt.GasUsed = &gasUsed
	receipt.BlockNumber = &blockNumber
	return receipt, nil
}

// Probe returns the latest block number of chainID.
func (b *broadcaster) Probe(ctx context.Context, chainID string) (uint64, error) {
	conn, err := b.conn(chainID)
	if err != nil {
		return 0, err
	}

	height, err := jsonrpc.Call[types.Hex](ctx, conn, "eth_blockNumber")
	if err != nil {
		return 0, err
	}
	return height.Uint64(), nil
}

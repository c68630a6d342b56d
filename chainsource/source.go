package chainsource

import (
	"context"
	"errors"
)

// ErrBlockNotFound is the canonical tip signal (spec.md §7 kind 3): a
// fetcher asking for a height past the chain's tip gets this, not a
// transient error, and terminates cleanly rather than failing.
var ErrBlockNotFound = errors.New("chainsource: block not found")

// Source is the abstract upstream node RPC client (spec.md §6). The real
// wire protocol (bchd/bchrpc gRPC or otherwise) lives outside this module;
// everything downstream of the pipeline depends only on this interface.
type Source interface {
	// BlockAtHeight fetches the full block at a confirmed height. Returns
	// ErrBlockNotFound once height exceeds the chain's current tip.
	BlockAtHeight(ctx context.Context, height int32) (*Block, error)

	// BlockByHashOrHeight resolves either a block hash or a height string
	// to a full block.
	BlockByHashOrHeight(ctx context.Context, ref string) (*Block, error)

	// FullBlock fetches a block by hash, optionally with full transaction
	// bodies (fullTxs=false returns header-only transactions, used when
	// only block_meta aggregates are needed).
	FullBlock(ctx context.Context, hash [32]byte, fullTxs bool) (*Block, error)

	// RawTx fetches a single transaction by hash, confirmed or not.
	RawTx(ctx context.Context, hash [32]byte) (*Tx, error)

	// Mempool lists every transaction currently in the node's mempool, for
	// a full resync (spec.md §4.6).
	Mempool(ctx context.Context) ([]*Tx, error)

	// TokenMetaBatch resolves GENESIS metadata for a set of token ids in one
	// round trip.
	TokenMetaBatch(ctx context.Context, tokenIDs [][32]byte) (map[[32]byte]*GenesisMeta, error)

	// SubscribeBlocks streams newly-connected blocks. The channel closes on
	// stream end; the caller (C6) is responsible for reconnecting.
	SubscribeBlocks(ctx context.Context) (<-chan *Block, <-chan error)

	// SubscribeTxs streams newly-broadcast unconfirmed transactions.
	SubscribeTxs(ctx context.Context) (<-chan *Tx, <-chan error)
}

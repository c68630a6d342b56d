// Package indexer wires the pipeline, live feeds, and query surface behind
// one concrete type, replacing the teacher's per-chain PChainIndexer /
// XChainIndexer / CChainIndexer split (indexer/api.go) — there is exactly
// one chain and one store here, so Service is a single concrete type that
// callers use directly, not a family of chain-keyed interfaces.
package indexer

import (
	"context"
	"fmt"
	"log"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/livefeed"
	"github.com/ecashx/indexer/pipeline"
	"github.com/ecashx/indexer/query"
	"github.com/ecashx/indexer/store"
)

// Service is the single concrete implementation of the index lifecycle:
// catch up to the chain tip, then run the live feeds forever.
type Service struct {
	source chainsource.Source
	db     *store.DB
	feeds  *livefeed.Feeds
	Query  *query.API

	workers int
}

// New builds a Service. addrs may be nil if the caller never needs
// search()'s address-decoding branch (e.g. in tests).
func New(source chainsource.Source, db *store.DB, workers int, addrs query.AddrCodec) *Service {
	return &Service{
		source:  source,
		db:      db,
		feeds:   livefeed.New(source, db),
		Query:   query.New(db, addrs),
		workers: workers,
	}
}

// Run drives the full lifecycle described in spec.md §4.5 step 4: fetch to
// tip, resync the mempool once, then run the live feeds until ctx is
// cancelled. Returns only on a fatal pipeline error or context cancellation.
func (s *Service) Run(ctx context.Context) error {
	lastHeight, ok, err := s.Query.LastBlockHeight()
	if err != nil {
		return fmt.Errorf("indexer: determine starting height: %w", err)
	}
	startFrom := int32(-1) // genesis is height 0, so an empty store starts fetching there
	if ok {
		startFrom = int32(lastHeight)
	}

	p := pipeline.New(s.source, s.db, s.workers, startFrom)
	log.Printf("[indexer] starting catch-up from height %d", startFrom+1)
	if err := p.Run(ctx); err != nil {
		return fmt.Errorf("indexer: pipeline: %w", err)
	}
	log.Printf("[indexer] caught up at height %d, starting live feeds", p.CommittedHeight())

	if err := s.feeds.ResyncMempool(ctx); err != nil {
		log.Printf("[indexer] initial mempool resync failed: %v", err)
	}

	errCh := make(chan error, 2)
	go func() { errCh <- s.feeds.RunBlocks(ctx) }()
	go func() { errCh <- s.feeds.RunMempoolTxs(ctx) }()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("indexer: live feed: %w", err)
	}
}

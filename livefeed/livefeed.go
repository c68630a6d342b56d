// Package livefeed runs the two restartable streaming loops described in
// spec.md C6: new-block notifications and unconfirmed-tx notifications, plus
// the mempool resync both depend on. Grounded on the teacher's xchain poll
// loop's reconnect-on-error shape (xchain/fetcher.go Run), adapted from
// poll-and-retry into subscribe-and-reconnect since the upstream chain
// source here is a streaming RPC rather than a height poller.
package livefeed

import (
	"context"
	"log"
	"time"

	"github.com/ecashx/indexer/chainsource"
	"github.com/ecashx/indexer/schema"
	"github.com/ecashx/indexer/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ReconnectDelay is how long a loop waits before resubscribing after a
// stream error or close (spec.md §4.6: "the loop logs and reconnects").
const ReconnectDelay = 2 * time.Second

// mempoolResyncsTotal counts full mempool resyncs (SPEC_FULL.md §3),
// registered once at package init.
var mempoolResyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "indexer_livefeed_mempool_resync_total",
	Help: "Full mempool resyncs (clear-then-rebuild) completed by the live feeds.",
})

// Feeds owns the subscription state for both live loops.
type Feeds struct {
	source chainsource.Source
	db     *store.DB
}

func New(source chainsource.Source, db *store.DB) *Feeds {
	return &Feeds{source: source, db: db}
}

// RunBlocks subscribes to new blocks forever, applying each one's batch and
// resyncing the mempool afterward. It only returns when ctx is cancelled.
func (f *Feeds) RunBlocks(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		blocks, errs := f.source.SubscribeBlocks(ctx)

		err := f.drainBlocks(ctx, blocks, errs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("[livefeed] block subscription error, reconnecting: %v", err)
		} else {
			log.Printf("[livefeed] block subscription closed, reconnecting")
		}
		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feeds) drainBlocks(ctx context.Context, blocks <-chan *chainsource.Block, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return err
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			if err := schema.BuildBlockBatch(f.db, block).Commit(true); err != nil {
				return err
			}
			if err := f.ResyncMempool(ctx); err != nil {
				log.Printf("[livefeed] mempool resync after block %d failed: %v", block.Height, err)
			}
		}
	}
}

// RunMempoolTxs subscribes to unconfirmed-tx notifications forever, appending
// each as a single-tx mempool batch.
func (f *Feeds) RunMempoolTxs(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		txs, errs := f.source.SubscribeTxs(ctx)

		err := f.drainMempoolTxs(ctx, txs, errs)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			log.Printf("[livefeed] mempool-tx subscription error, reconnecting: %v", err)
		} else {
			log.Printf("[livefeed] mempool-tx subscription closed, reconnecting")
		}
		select {
		case <-time.After(ReconnectDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (f *Feeds) drainMempoolTxs(ctx context.Context, txs <-chan *chainsource.Tx, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				return nil
			}
			return err
		case tx, ok := <-txs:
			if !ok {
				return nil
			}
			observedAt := time.Now().Unix()
			batch := schema.BuildMempoolTxBatch(f.db, []*chainsource.Tx{tx}, observedAt)
			if err := batch.Commit(false); err != nil {
				return err
			}
		}
	}
}

// ResyncMempool rebuilds the entire mempool overlay from scratch: list the
// node's current mempool, clear every mempool CF, then write the fresh
// batch. The clear-then-write is not one atomic step: each mempool CF is
// range-deleted in its own commit, then the fresh batch is committed
// (spec.md §4.6 tolerates a crash between them — any subsequent resync
// starts again from "clear").
func (f *Feeds) ResyncMempool(ctx context.Context) error {
	txs, err := f.source.Mempool(ctx)
	if err != nil {
		return err
	}

	batch := schema.BuildMempoolTxBatch(f.db, txs, time.Now().Unix())

	for _, cf := range store.MempoolCFs {
		if err := f.db.DeleteRangeCF(cf, false); err != nil {
			return err
		}
	}

	if err := batch.Commit(false); err != nil {
		return err
	}
	mempoolResyncsTotal.Inc()
	return nil
}

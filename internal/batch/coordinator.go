// Package batch iterates the document scoring orchestrator over a
// (company, year) work list, checkpointing after every unit so a
// multi-thousand-document run survives partial failure and restarts where
// it left off.
package batch

import (
	"context"
	"fmt"

	"resil/internal/config"
	"resil/internal/document"
	resilerrors "resil/internal/errors"
	"resil/internal/logging"
	"resil/internal/scoring"
	"resil/internal/types"
)

// Coordinator drives the orchestrator over a work list, one unit at a time.
// Documents never share the inference endpoint session concurrently, for
// the same isolation reason the orchestrator sequences dimensions.
type Coordinator struct {
	store      *document.Store
	orch       *scoring.Orchestrator
	checkpoint *Checkpoint
	records    *RecordStore
	cfg        config.BatchConfig
	logger     logging.Logger
	progress   Progress
}

// NewCoordinator wires the batch loop.
func NewCoordinator(store *document.Store, orch *scoring.Orchestrator, checkpoint *Checkpoint, records *RecordStore, cfg config.BatchConfig, logger logging.Logger) *Coordinator {
	return &Coordinator{
		store:      store,
		orch:       orch,
		checkpoint: checkpoint,
		records:    records,
		cfg:        cfg,
		logger:     logging.OrNop(logger),
	}
}

// Progress returns the pull-based progress snapshot.
func (c *Coordinator) Progress() Snapshot {
	return c.progress.Snapshot()
}

// shouldSkip reports whether a unit already holds an acceptable terminal
// status. FAILED units are always re-queued; PARTIAL units are re-queued
// only when configured.
func (c *Coordinator) shouldSkip(key types.DocumentKey) bool {
	status, ok := c.checkpoint.Status(key)
	if !ok {
		return false
	}
	switch status {
	case types.StatusComplete:
		return true
	case types.StatusPartial:
		return !c.cfg.RequeuePartial
	default:
		return false
	}
}

// Run processes the work list in order. Cancellation is honored between
// units only: a unit aborted mid-flight is treated as a unit failure and
// left out of the checkpoint, so the next run retries it. Only checkpoint
// or record persistence failures abort the batch; a bad document is logged
// and the batch moves on.
func (c *Coordinator) Run(ctx context.Context, workList []types.DocumentKey) error {
	c.progress.begin(len(workList))

	for _, key := range workList {
		if err := ctx.Err(); err != nil {
			c.logger.Info("batch stopped before %s: %v", key, err)
			return err
		}

		if c.shouldSkip(key) {
			c.logger.Debug("skipping %s: already checkpointed", key)
			c.progress.complete()
			continue
		}

		c.progress.setCurrent(key.String())

		doc, err := c.store.Load(key)
		if err != nil {
			// Leave the unit unrecorded; a later run retries it once the
			// preprocessing output exists.
			c.logger.Error("load %s: %v", key, err)
			c.progress.complete()
			continue
		}

		record, err := c.orch.ScoreDocument(ctx, doc)
		if ctx.Err() != nil {
			// Mid-unit abort: not recorded, retried on the next run.
			c.logger.Info("batch stopped during %s, unit not recorded", key)
			return ctx.Err()
		}
		if err != nil && !resilerrors.IsDocumentFailure(err) {
			c.logger.Error("score %s: %v", key, err)
			c.progress.complete()
			continue
		}
		if err != nil {
			c.logger.Error("score %s: %v", key, err)
		}

		if err := c.records.Save(record); err != nil {
			return fmt.Errorf("persist record for %s: %w", key, err)
		}
		if err := c.checkpoint.Append(key, record.Status); err != nil {
			return fmt.Errorf("checkpoint %s: %w", key, err)
		}

		c.logger.Info("unit %s done: %s", key, record.Status)
		c.progress.complete()
	}

	snapshot := c.progress.Snapshot()
	c.logger.Info("batch finished: %d/%d units", snapshot.Completed, snapshot.Total)
	return nil
}

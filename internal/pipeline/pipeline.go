// Package pipeline orchestrates a full ingestion run: discover entries,
// partition them into shards, read and validate each shard on the worker
// pool, merge shard results into the canonical index, check policy
// anchors, and aggregate metrics. Per-entry problems are collected as
// anomalies; only a broken input source (policy config, schema dir,
// entries root) aborts the run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tervyx/analysis/internal/cache"
	"github.com/tervyx/analysis/internal/index"
	"github.com/tervyx/analysis/internal/metrics"
	"github.com/tervyx/analysis/internal/model"
	"github.com/tervyx/analysis/internal/policy"
	"github.com/tervyx/analysis/internal/reader"
	"github.com/tervyx/analysis/internal/schema"
	"github.com/tervyx/analysis/internal/shard"
)

// Pipeline holds the immutable run-wide state: schema registry, policy
// set, and reader configuration. Built once per run and shared read-only
// across shard workers.
type Pipeline struct {
	cfg        *model.Config
	logger     *zap.Logger
	registry   *schema.Registry
	policies   *policy.Set
	reader     *reader.Reader
	aggregator *metrics.Aggregator
}

// New builds a pipeline from configuration. Errors here are fatal: a
// missing policy config or schema directory means no meaningful run can
// happen.
func New(cfg *model.Config, logger *zap.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := schema.NewRegistry()
	if cfg.Schemas.Dir != "" {
		loaded, err := schema.LoadDir(cfg.Schemas.Dir)
		if err != nil {
			return nil, fmt.Errorf("schema descriptors: %w", err)
		}
		registry = loaded
	}

	policies, err := policy.LoadSet(cfg.Policy.Path, cfg.Policy.ArchiveDir, cfg.Policy.SnapshotsDir)
	if err != nil {
		return nil, fmt.Errorf("policy configuration: %w", err)
	}

	var opts []reader.Option
	if th := newThrottle(cfg); th != nil {
		opts = append(opts, reader.WithThrottle(th))
	}
	if cfg.Cache.Enabled {
		parseCache := cache.NewLayeredCache(cfg.Cache.TTL, filepath.Join(cfg.OutDir, ".parse-cache"), cfg.Cache.TTL)
		opts = append(opts, reader.WithCache(parseCache, cfg.Cache.TTL))
	}

	return &Pipeline{
		cfg:        cfg,
		logger:     logger,
		registry:   registry,
		policies:   policies,
		reader:     reader.New(cfg.Root, logger, opts...),
		aggregator: metrics.NewAggregator(),
	}, nil
}

// RunReport is the complete output of one ingestion run
type RunReport struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`

	Index   *index.Index  `json:"-"`
	Metrics model.Metrics `json:"metrics"`
	Anchors policy.Result `json:"anchors"`

	// Anomalies is the merged report: parse failures, schema
	// violations, duplicates, policy anomalies, and invariant
	// violations, sorted by entry ID
	Anomalies []model.Anomaly `json:"anomalies"`

	// Discovered counts every entry under the root; Selected counts the
	// subset owned by this run's (Shard.Index, Shard.Count) selection
	Discovered   int   `json:"discovered"`
	Selected     int   `json:"selected"`
	Accepted     int   `json:"accepted"`
	Partial      bool  `json:"partial"`
	FailedShards []int `json:"failed_shards,omitempty"`
}

// Run executes the configured slice of the corpus. The (Shard.Index,
// Shard.Count) selection bounds which entries this process owns; within
// that selection entries are fanned out across the worker pool as
// sub-shards and merged by a single writer.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	started := time.Now().UTC()

	dirs, err := reader.Discover(p.cfg.Root)
	if err != nil {
		return nil, err
	}
	p.logger.Info("discovered entries",
		zap.Int("count", len(dirs)),
		zap.String("root", p.cfg.Root))

	selected, err := shard.New(dirs, p.cfg.Shard.Index, p.cfg.Shard.Count)
	if err != nil {
		return nil, err
	}
	p.logger.Info("shard selected",
		zap.Int("shard_index", selected.Index),
		zap.Int("shard_count", selected.Count),
		zap.Int("entries", len(selected.IDs)),
		zap.Int("total", selected.Total))

	results := p.processShards(ctx, selected.IDs)

	builder := index.NewBuilder()
	var accepted []*model.Record
	var anomalies []model.Anomaly

	// Merge is single-writer and ordered by sub-shard index so that
	// first-wins duplicate resolution does not depend on pool timing
	for _, res := range results {
		if res.err != nil {
			p.logger.Warn("shard failed",
				zap.Int("sub_shard", res.shardIndex), zap.Error(res.err))
			builder.MarkShardFailed(res.shardIndex, res.err)
			continue
		}
		anomalies = append(anomalies, res.anomalies...)
		for _, rec := range res.records {
			if builder.Add(rec.Row()) {
				accepted = append(accepted, rec)
			}
		}
	}

	anchors := policy.NewChecker(p.policies).Check(accepted)
	anomalies = append(anomalies, anchors.Anomalies...)
	anomalies = append(anomalies, builder.Anomalies()...)

	ix := builder.Build()
	m := p.aggregator.Aggregate(ix.Rows())
	anomalies = append(anomalies, m.MonotoneViolations...)
	anomalies = append(anomalies, m.MaskingViolations...)
	model.SortAnomalies(anomalies)

	report := &RunReport{
		RunID:        uuid.NewString(),
		StartedAt:    started,
		Index:        ix,
		Metrics:      m,
		Anchors:      anchors,
		Anomalies:    anomalies,
		Discovered:   selected.Total,
		Selected:     len(selected.IDs),
		Accepted:     ix.Len(),
		Partial:      builder.Partial(),
		FailedShards: builder.FailedShards(),
	}

	p.logger.Info("run complete",
		zap.String("run_id", report.RunID),
		zap.Int("accepted", report.Accepted),
		zap.Int("anomalies", len(report.Anomalies)),
		zap.Bool("partial", report.Partial),
		zap.Duration("elapsed", time.Since(started)))

	return report, nil
}

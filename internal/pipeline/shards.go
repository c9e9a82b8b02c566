package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/tervyx/analysis/internal/model"
	"github.com/tervyx/analysis/internal/schema"
	"github.com/tervyx/analysis/internal/shard"
	"github.com/tervyx/analysis/internal/worker"
)

// shardJob processes one sub-shard's entries: read, schema-validate,
// collect. It implements worker.Job.
type shardJob struct {
	pipeline *Pipeline
	plan     *shard.Plan
}

// shardResult carries one sub-shard's outcome. It implements
// worker.Result; err is set only for catastrophic failures, which fail
// that shard alone.
type shardResult struct {
	shardIndex int
	records    []*model.Record
	anomalies  []model.Anomaly
	err        error
}

func (r *shardResult) GetError() error { return r.err }

func newThrottle(cfg *model.Config) *worker.Throttle {
	return worker.NewThrottle(cfg.Throttle.ReadsPerSecond, cfg.Throttle.Burst)
}

func (j *shardJob) Execute(ctx context.Context) worker.Result {
	res := &shardResult{shardIndex: j.plan.Index}

	for _, dir := range j.plan.IDs {
		if err := ctx.Err(); err != nil {
			res.err = fmt.Errorf("sub-shard %d cancelled: %w", j.plan.Index, err)
			return res
		}

		rec, failure := j.pipeline.reader.ReadEntry(ctx, dir)
		if failure != nil {
			res.anomalies = append(res.anomalies, failure.Anomaly())
			continue
		}

		violations := schema.ValidateRecord(rec, j.pipeline.registry)
		for _, v := range violations {
			res.anomalies = append(res.anomalies, model.Anomaly{
				EntryID:  rec.ID,
				Category: model.AnomalySchemaViolation,
				Detail:   v.String(),
			})
		}
		if schema.Blocking(violations) {
			// Blocked entries stay out of the index; the violations
			// above already carry the full story
			continue
		}

		res.records = append(res.records, rec)
	}

	return res
}

// processShards fans the selected entries out across the worker pool as
// sub-shards and returns results ordered by sub-shard index
func (p *Pipeline) processShards(ctx context.Context, ids []string) []*shardResult {
	workers := p.cfg.Workers.ShardWorkers
	if workers < 1 {
		workers = 1
	}
	subCount := workers
	if len(ids) > 0 && subCount > len(ids) {
		subCount = len(ids)
	}
	if subCount < 1 {
		subCount = 1
	}

	plans, err := shard.All(ids, subCount)
	if err != nil {
		// Unreachable with subCount >= 1; surface as one failed shard
		return []*shardResult{{shardIndex: 0, err: err}}
	}

	pool := worker.NewPool(workers)
	pool.Start()
	for _, plan := range plans {
		pool.Submit(&shardJob{pipeline: p, plan: plan})
	}

	raw := pool.Wait()
	results := make([]*shardResult, 0, len(raw))
	for _, r := range raw {
		results = append(results, r.(*shardResult))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].shardIndex < results[j].shardIndex
	})
	return results
}

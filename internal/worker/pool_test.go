package worker

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// batchJob mimics a sub-shard: it walks its assigned entry IDs and
// splits them into accepted identifiers and anomaly counts
type batchJob struct {
	batchIndex int
	entryIDs   []string
	delay      time.Duration
	failAll    error
}

type batchOutcome struct {
	batchIndex int
	accepted   []string
	anomalies  int
	err        error
}

func (o *batchOutcome) GetError() error { return o.err }

func (j *batchJob) Execute(ctx context.Context) Result {
	out := &batchOutcome{batchIndex: j.batchIndex}
	if j.failAll != nil {
		out.err = j.failAll
		return out
	}
	for _, id := range j.entryIDs {
		if err := ctx.Err(); err != nil {
			out.err = err
			return out
		}
		if j.delay > 0 {
			time.Sleep(j.delay)
		}
		// Malformed entries carry a marker prefix in these fixtures
		if strings.HasPrefix(id, "bad/") {
			out.anomalies++
			continue
		}
		out.accepted = append(out.accepted, id)
	}
	return out
}

func TestPool_ProcessesAllBatches(t *testing.T) {
	pool := NewPool(3)
	pool.Start()

	for i := 0; i < 5; i++ {
		pool.Submit(&batchJob{
			batchIndex: i,
			entryIDs: []string{
				fmt.Sprintf("supplements/item-%d/a", i),
				fmt.Sprintf("bad/item-%d/b", i),
			},
		})
	}

	results := pool.Wait()
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}

	var accepted []string
	anomalies := 0
	for _, r := range results {
		out := r.(*batchOutcome)
		if out.err != nil {
			t.Errorf("batch %d: %v", out.batchIndex, out.err)
		}
		accepted = append(accepted, out.accepted...)
		anomalies += out.anomalies
	}
	sort.Strings(accepted)

	if len(accepted) != 5 || anomalies != 5 {
		t.Errorf("accepted=%d anomalies=%d, want 5/5", len(accepted), anomalies)
	}
	if accepted[0] != "supplements/item-0/a" {
		t.Errorf("accepted[0] = %q", accepted[0])
	}
}

func TestPool_FailedBatchIsIsolated(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	pool.Submit(&batchJob{batchIndex: 0, entryIDs: []string{"herbs/valerian/sleep"}})
	pool.Submit(&batchJob{batchIndex: 1, failAll: fmt.Errorf("unreadable directory")})
	pool.Submit(&batchJob{batchIndex: 2, entryIDs: []string{"supplements/zinc/cold"}})

	results := pool.Wait()
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	failed, succeeded := 0, 0
	for _, r := range results {
		if r.GetError() != nil {
			failed++
		} else {
			succeeded++
		}
	}
	if failed != 1 || succeeded != 2 {
		t.Errorf("failed=%d succeeded=%d, want 1/2", failed, succeeded)
	}
}

func TestPool_SingleWorkerDrainsQueue(t *testing.T) {
	pool := NewPool(1)
	pool.Start()

	const jobs = 8
	for i := 0; i < jobs; i++ {
		pool.Submit(&batchJob{batchIndex: i, entryIDs: []string{fmt.Sprintf("e/%d/x", i)}})
	}

	results := pool.Wait()
	if len(results) != jobs {
		t.Errorf("got %d results, want %d", len(results), jobs)
	}
}

func TestPool_NonPositiveWorkerCountClamped(t *testing.T) {
	pool := NewPool(0)
	pool.Start()
	pool.Submit(&batchJob{batchIndex: 0, entryIDs: []string{"a/b/c"}})

	results := pool.Wait()
	if len(results) != 1 {
		t.Errorf("got %d results, want 1", len(results))
	}
}

func TestPool_ShutdownCancelsRunningJobs(t *testing.T) {
	pool := NewPool(2)
	pool.Start()

	var started atomic.Int32
	ids := make([]string, 50)
	for i := range ids {
		ids[i] = fmt.Sprintf("slow/%d/x", i)
	}
	pool.Submit(&trackingJob{inner: &batchJob{entryIDs: ids, delay: 10 * time.Millisecond}, started: &started})

	// Give the worker a moment to pick the job up, then cancel
	for started.Load() == 0 {
		time.Sleep(time.Millisecond)
	}
	pool.Shutdown()
}

// trackingJob wraps a job and records that execution began
type trackingJob struct {
	inner   Job
	started *atomic.Int32
}

func (j *trackingJob) Execute(ctx context.Context) Result {
	j.started.Add(1)
	return j.inner.Execute(ctx)
}

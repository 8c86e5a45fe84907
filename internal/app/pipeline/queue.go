// Package pipeline owns the conversion pipeline: the job queue, the single
// synthesis worker, and the submission path that chunks text, persists a
// conversion, and enqueues its job.
package pipeline

import (
	"sync"
)

// Job bundles everything the worker needs to synthesize one conversion.
type Job struct {
	ConversionID string

	// ChunkTexts is ordered; the slice index is the chunk seq num.
	ChunkTexts []string

	Provider string
	Voice    string
	Language string

	Accelerate bool

	// Dir is the absolute job directory, RelDir the same path relative to
	// the static root (what gets persisted on chunk rows).
	Dir    string
	RelDir string
}

// Queue is an unbounded FIFO handoff between submission and the worker.
// Push never blocks; Pop blocks until a job arrives or the queue closes.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond

	jobs   []*Job
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)

	return q
}

func (q *Queue) Push(job *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.jobs = append(q.jobs, job)
	metrics.QueueDepth.Set(float64(len(q.jobs)))

	q.cond.Signal()
}

func (q *Queue) Pop() (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.jobs) == 0 && !q.closed {
		q.cond.Wait()
	}

	if len(q.jobs) == 0 {
		return nil, false
	}

	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	metrics.QueueDepth.Set(float64(len(q.jobs)))

	return job, true
}

// Close wakes up the consumer; queued jobs that were not popped yet are
// dropped.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.jobs)
}

// ABOUTME: Timestamp-based playback scheduler
// ABOUTME: Maps stream presentation times to local play times
package headunit

import (
	"container/heap"
	"context"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/headunit-go/internal/metrics"
	"github.com/Resonate-Protocol/headunit-go/pkg/audio"
)

// lateWindow is how far either side of its play time a buffer may be released
const lateWindow = 50 * time.Millisecond

// Scheduler orders received audio by presentation time and releases each
// buffer when its local play time arrives.
//
// The first buffer after Reset anchors the stream clock: it plays after the
// playout delay and every later buffer plays relative to it.
type Scheduler struct {
	playout time.Duration
	metrics *metrics.Metrics

	mu         sync.Mutex
	bufferQ    *BufferQueue
	anchored   bool
	anchorPTS  int64
	anchorTime time.Time

	output chan audio.Buffer
	ctx    context.Context
	cancel context.CancelFunc

	stats SchedulerStats
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Received int64
	Played   int64
	Dropped  int64
}

// NewScheduler creates a playback scheduler. m may be nil.
func NewScheduler(playout time.Duration, m *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		playout: playout,
		metrics: m,
		bufferQ: NewBufferQueue(),
		output:  make(chan audio.Buffer, 10),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Schedule adds a buffer to the queue
func (s *Scheduler) Schedule(buf audio.Buffer) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.anchored {
		s.anchored = true
		s.anchorPTS = buf.Timestamp
		s.anchorTime = now.Add(s.playout)
		log.Printf("Audio clock anchored: pts=%dμs plays in %v", buf.Timestamp, s.playout)
	}
	buf.PlayAt = s.anchorTime.Add(time.Duration(buf.Timestamp-s.anchorPTS) * time.Microsecond)
	if s.bufferQ.Len() == 0 && buf.PlayAt.Before(now.Add(-lateWindow)) {
		s.anchorPTS = buf.Timestamp
		s.anchorTime = now.Add(s.playout)
		buf.PlayAt = s.anchorTime
		log.Printf("Audio clock re-anchored after underrun: pts=%dμs", buf.Timestamp)
	}

	if s.metrics != nil {
		s.metrics.PlayoutDelay.Observe(buf.PlayAt.Sub(now).Seconds())
	}

	s.stats.Received++
	heap.Push(s.bufferQ, buf)
}

// Reset drops queued audio and re-anchors on the next buffer
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.bufferQ = NewBufferQueue()
	s.anchored = false
}

// Run starts the scheduler loop
func (s *Scheduler) Run() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.processQueue()
		}
	}
}

// processQueue releases buffers that are due
func (s *Scheduler) processQueue() {
	for _, buf := range s.due(time.Now()) {
		select {
		case s.output <- buf:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) due(now time.Time) []audio.Buffer {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ready []audio.Buffer
	for s.bufferQ.Len() > 0 {
		buf := s.bufferQ.Peek()
		delay := buf.PlayAt.Sub(now)

		if delay > lateWindow {
			break
		}
		heap.Pop(s.bufferQ)

		if delay < -lateWindow {
			s.stats.Dropped++
			if s.metrics != nil {
				s.metrics.BuffersDropped.Inc()
			}
			log.Printf("Dropped late buffer: %v late", -delay)
			continue
		}

		s.stats.Played++
		if s.metrics != nil {
			s.metrics.BuffersPlayed.Inc()
		}
		ready = append(ready, buf)
	}
	return ready
}

// Output returns the output channel
func (s *Scheduler) Output() <-chan audio.Buffer {
	return s.output
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
}

// BufferQueue is a priority queue for audio buffers
type BufferQueue struct {
	items []audio.Buffer
}

func NewBufferQueue() *BufferQueue {
	q := &BufferQueue{}
	heap.Init(q)
	return q
}

// Implement heap.Interface
func (q *BufferQueue) Len() int { return len(q.items) }

func (q *BufferQueue) Less(i, j int) bool {
	return q.items[i].PlayAt.Before(q.items[j].PlayAt)
}

func (q *BufferQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *BufferQueue) Push(x interface{}) {
	q.items = append(q.items, x.(audio.Buffer))
}

func (q *BufferQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items = q.items[:n-1]
	return item
}

func (q *BufferQueue) Peek() audio.Buffer {
	return q.items[0]
}

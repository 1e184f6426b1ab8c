package messaging

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// keyedQueue runs tasks that share a key strictly in submission order while tasks with
// different keys run concurrently. A key's worker goroutine exists only while it has
// pending tasks.
type keyedQueue struct {
	mu      sync.Mutex
	pending map[string][]func()
	wg      sync.WaitGroup
}

func newKeyedQueue() *keyedQueue {
	return &keyedQueue{pending: make(map[string][]func())}
}

// Enqueue schedules task behind any earlier tasks for key.
func (q *keyedQueue) Enqueue(key string, task func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks, running := q.pending[key]
	q.pending[key] = append(tasks, task)
	if !running {
		q.wg.Add(1)
		go q.drain(key)
	}
}

func (q *keyedQueue) drain(key string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		tasks := q.pending[key]
		if len(tasks) == 0 {
			delete(q.pending, key)
			q.mu.Unlock()
			return
		}
		task := tasks[0]
		q.pending[key] = tasks[1:]
		q.mu.Unlock()

		q.run(key, task)
	}
}

func (q *keyedQueue) run(key string, task func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("keyedQueue task panicked", "key", key, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	task()
}

// Active returns the number of keys with a running worker.
func (q *keyedQueue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Wait blocks until every queued task has finished.
func (q *keyedQueue) Wait() {
	q.wg.Wait()
}

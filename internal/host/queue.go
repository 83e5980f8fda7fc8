package host

import "sync"

// SerialQueue is a TaskQueue backed by a single goroutine, preserving post
// order. The real host supplies its own game-thread queue; this one serves
// tests and the offline CLI.
type SerialQueue struct {
	tasks  chan func()
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewSerialQueue starts the worker goroutine.
func NewSerialQueue() *SerialQueue {
	q := &SerialQueue{
		tasks:  make(chan func(), 256),
		stopCh: make(chan struct{}),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *SerialQueue) run() {
	defer q.wg.Done()
	for {
		select {
		case task := <-q.tasks:
			task()
		case <-q.stopCh:
			// Drain what was already posted.
			for {
				select {
				case task := <-q.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues a task. Tasks posted after Stop are dropped.
func (q *SerialQueue) Post(task func()) {
	select {
	case q.tasks <- task:
	case <-q.stopCh:
	}
}

// Stop drains pending tasks and joins the worker.
func (q *SerialQueue) Stop() {
	q.once.Do(func() { close(q.stopCh) })
	q.wg.Wait()
}

// Sync posts a no-op and waits for it, flushing everything posted before.
func (q *SerialQueue) Sync() {
	done := make(chan struct{})
	q.Post(func() { close(done) })
	select {
	case <-done:
	case <-q.stopCh:
	}
}

// ImmediateQueue runs tasks inline on the caller's goroutine. Only for tests
// that need fully synchronous behavior.
type ImmediateQueue struct{}

func (ImmediateQueue) Post(task func()) { task() }

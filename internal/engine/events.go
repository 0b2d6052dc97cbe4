package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DrainTimeout bounds how long Run waits for queued events once the crawl
// has finished.
const DrainTimeout = time.Second

// dispatcher delivers events to observers on its own goroutine. Findings
// are delivered in order; progress snapshots coalesce so that only the
// latest one is pending at any time. Publishing never blocks.
type dispatcher struct {
	logger *slog.Logger

	mu         sync.Mutex
	onProgress []func(ProgressSnapshot)
	onFinding  []func(Finding)
	findings   []Finding
	progress   *ProgressSnapshot
	closed     bool

	wake chan struct{}
	done chan struct{}
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	return &dispatcher{
		logger: logger,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (d *dispatcher) addProgress(fn func(ProgressSnapshot)) {
	d.mu.Lock()
	d.onProgress = append(d.onProgress, fn)
	d.mu.Unlock()
}

func (d *dispatcher) addFinding(fn func(Finding)) {
	d.mu.Lock()
	d.onFinding = append(d.onFinding, fn)
	d.mu.Unlock()
}

func (d *dispatcher) start() {
	go d.loop()
}

func (d *dispatcher) publishFinding(f Finding) {
	d.mu.Lock()
	if !d.closed {
		d.findings = append(d.findings, f)
	}
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) publishProgress(p ProgressSnapshot) {
	d.mu.Lock()
	if !d.closed {
		d.progress = &p
	}
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// close stops accepting events and waits up to timeout for the queue to
// drain. Events still queued after the timeout are dropped.
func (d *dispatcher) close(timeout time.Duration) {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-d.done:
	case <-t.C:
		d.logger.Warn("event observers did not drain in time", "timeout", timeout)
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for range d.wake {
		for {
			d.mu.Lock()
			findings := d.findings
			progress := d.progress
			closed := d.closed
			d.findings, d.progress = nil, nil
			onFinding := d.onFinding
			onProgress := d.onProgress
			d.mu.Unlock()

			if len(findings) == 0 && progress == nil {
				if closed {
					return
				}
				break
			}
			for _, f := range findings {
				for _, fn := range onFinding {
					d.call("finding", func() { fn(f) })
				}
			}
			if progress != nil {
				for _, fn := range onProgress {
					d.call("progress", func() { fn(*progress) })
				}
			}
		}
	}
}

// call runs one observer, discarding any panic it raises.
func (d *dispatcher) call(event string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("observer panicked",
				"event", event,
				"panic", fmt.Sprintf("%v", r),
			)
		}
	}()
	fn()
}

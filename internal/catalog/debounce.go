package catalog

import (
	"sync"
	"time"
)

// SearchDelay is how long a burst of search input must pause before a
// refresh is issued.
const SearchDelay = 300 * time.Millisecond

// Debouncer runs a function only after its triggers have been quiet for the
// configured delay (trailing edge). Each Trigger supersedes the previous
// pending one.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending trigger.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

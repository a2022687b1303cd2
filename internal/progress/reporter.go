package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Options configures the progress reporter.
type Options struct {
	// Output is where to write progress output.
	// Default: os.Stderr
	Output io.Writer

	// UpdateInterval is how often to update the progress display.
	// Default: 500ms
	UpdateInterval time.Duration

	// SourceURL is the URL being downloaded (for display).
	SourceURL string
}

// Reporter prints a single-line terminal view of one download. Update may be
// called from any goroutine; the display is refreshed on a ticker.
type Reporter struct {
	opts Options

	mu         sync.Mutex
	received   atomic.Int64
	total      atomic.Int64
	percent    atomic.Int32
	startTime  time.Time
	lastUpdate time.Time
	lastBytes  int64
	stopCh     chan struct{}
	doneCh     chan struct{}
	started    bool
	stopped    bool
	status     string
}

// NewReporter creates a new progress reporter.
func NewReporter(opts Options) *Reporter {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	if opts.UpdateInterval == 0 {
		opts.UpdateInterval = 500 * time.Millisecond
	}

	return &Reporter{
		opts:   opts,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start prints the header and begins refreshing the progress line.
func (r *Reporter) Start() {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	r.startTime = time.Now()
	r.lastUpdate = r.startTime
	r.mu.Unlock()

	fmt.Fprintf(r.opts.Output, "[igdl] Downloading: %s\n", r.opts.SourceURL)

	go r.updateLoop()
}

// Update records the latest byte count and percentage. A total of 0 means
// the size is unknown.
func (r *Reporter) Update(received, total int64, percent int) {
	r.received.Store(received)
	r.total.Store(total)
	r.percent.Store(int32(percent))
}

// Finish stops the refresh loop and prints the final status line, for
// example "done", "aborted" or an error message. It is safe to call more
// than once; only the first call has effect.
func (r *Reporter) Finish(status string) {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.status = status
	started := r.started
	r.mu.Unlock()

	if !started {
		return
	}
	close(r.stopCh)
	<-r.doneCh
}

// updateLoop periodically updates the progress display.
func (r *Reporter) updateLoop() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.opts.UpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			r.printFinalStatus()
			return
		case <-ticker.C:
			r.printProgress()
		}
	}
}

func (r *Reporter) printProgress() {
	now := time.Now()
	received := r.received.Load()
	total := r.total.Load()
	percent := r.percent.Load()

	elapsed := now.Sub(r.lastUpdate).Seconds()
	if elapsed < 0.1 {
		elapsed = 0.1
	}
	speed := float64(received-r.lastBytes) / elapsed
	r.lastUpdate = now
	r.lastBytes = received

	size := "unknown"
	eta := "unknown"
	if total > 0 {
		size = FormatBytes(total)
		if speed > 0 {
			remaining := float64(total - received)
			if remaining < 0 {
				remaining = 0
			}
			eta = formatDuration(time.Duration(remaining / speed * float64(time.Second)))
		} else {
			eta = "calculating..."
		}
	}

	fmt.Fprintf(r.opts.Output, "\r[igdl] Progress: %d%% | %s / %s | Speed: %s/s | ETA: %s    ",
		percent,
		FormatBytes(received),
		size,
		FormatBytes(int64(speed)),
		eta,
	)
}

func (r *Reporter) printFinalStatus() {
	received := r.received.Load()
	duration := time.Since(r.startTime)
	avgSpeed := float64(0)
	if duration > 0 {
		avgSpeed = float64(received) / duration.Seconds()
	}

	fmt.Fprintf(r.opts.Output, "\r[igdl] Progress: %d%% | %s | %s    \n",
		r.percent.Load(),
		FormatBytes(received),
		r.status,
	)
	fmt.Fprintf(r.opts.Output, "[igdl] Total time: %s | Average speed: %s/s\n",
		formatDuration(duration),
		FormatBytes(int64(avgSpeed)),
	)
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.0fs", d.Seconds())
	}
	if d < time.Hour {
		m := int(d.Minutes())
		s := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

// FormatBytes formats bytes as a human-readable IEC string, e.g. "1.5 MiB".
func FormatBytes(b int64) string {
	if b < 0 {
		b = 0
	}
	return humanize.IBytes(uint64(b))
}

// ParseBytes parses a human-readable byte string such as "32KiB" or "1MB".
// IEC suffixes are powers of 1024, SI suffixes powers of 1000.
func ParseBytes(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid byte string: %s", s)
	}
	return int64(n), nil
}

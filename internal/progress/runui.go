package progress

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"golang.org/x/term"

	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/events"
)

// RunDisplay renders a listing run as live progress bars driven by bus
// events: a byte-counting bar while the video uploads, then a percentage
// bar while the backend processes it.
type RunDisplay struct {
	progress   *mpb.Progress
	bus        *events.EventBus
	isTerminal bool

	mu            sync.Mutex
	uploadBar     *mpb.Bar
	processingBar *mpb.Bar
	statusMsg     atomic.Value // string, read by the render goroutine

	lastBytes  int64
	lastUpdate time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRunDisplay creates a run display attached to the given event bus.
func NewRunDisplay(bus *events.EventBus) *RunDisplay {
	isTerminal := term.IsTerminal(int(os.Stderr.Fd()))

	var p *mpb.Progress
	if isTerminal {
		// Enable ANSI escape sequences on Windows for proper progress bar rendering
		enableANSIOnWindows(os.Stderr)

		p = mpb.New(
			mpb.WithOutput(os.Stderr),
			mpb.WithRefreshRate(constants.ProgressRefreshRate),
			mpb.WithWidth(100),
		)
	} else {
		// Non-TTY: disable progress bars, just use text output
		p = mpb.New(mpb.WithOutput(io.Discard))
	}

	return &RunDisplay{
		progress:   p,
		bus:        bus,
		isTerminal: isTerminal,
		done:       make(chan struct{}),
	}
}

// Start subscribes to the bus and begins rendering in the background.
func (d *RunDisplay) Start() {
	progCh := d.bus.Subscribe(events.EventRunProgress)
	stateCh := d.bus.Subscribe(events.EventRunStateChange)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-d.done:
				return
			case ev, ok := <-progCh:
				if !ok {
					return
				}
				if pe, isProgress := ev.(*events.RunProgressEvent); isProgress {
					d.handleProgress(pe)
				}
			case ev, ok := <-stateCh:
				if !ok {
					return
				}
				if se, isState := ev.(*events.RunStateChangeEvent); isState {
					d.handleStateChange(se)
				}
			}
		}
	}()
}

// Stop ends rendering and waits for the bars to settle.
func (d *RunDisplay) Stop() {
	close(d.done)
	d.wg.Wait()

	d.mu.Lock()
	if d.uploadBar != nil && !d.uploadBar.Completed() && !d.uploadBar.Aborted() {
		d.uploadBar.Abort(true)
	}
	if d.processingBar != nil && !d.processingBar.Completed() && !d.processingBar.Aborted() {
		d.processingBar.Abort(true)
	}
	d.mu.Unlock()

	d.progress.Wait()
}

// Writer returns an io.Writer that safely prints above the progress bars.
func (d *RunDisplay) Writer() io.Writer {
	if d.isTerminal {
		return d.progress
	}
	return os.Stderr
}

// IsTerminal returns true if output is to a terminal (progress bars are active).
func (d *RunDisplay) IsTerminal() bool {
	return d.isTerminal
}

func (d *RunDisplay) handleProgress(ev *events.RunProgressEvent) {
	switch ev.Stage {
	case "upload":
		d.handleUploadProgress(ev)
	case "processing":
		d.handleProcessingProgress(ev)
	}
}

func (d *RunDisplay) handleUploadProgress(ev *events.RunProgressEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.uploadBar == nil && ev.BytesTotal > 0 {
		size := ev.BytesTotal
		d.uploadBar = d.progress.New(size,
			// Custom bar style with Unicode block characters
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				decor.Any(func(s decor.Statistics) string {
					return fmt.Sprintf("uploading video (%.1f MiB)", float64(size)/(1024*1024))
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.CountersKibiByte("% .1f / % .1f", decor.WCSyncSpace),
				decor.Name("  "),
				decor.Percentage(decor.WCSyncSpace),
				decor.Name("  "),
				decor.EwmaSpeed(decor.SizeB1024(0), "% .1f", 30, decor.WCSyncSpace),
				decor.Name("  "),
				decor.Name("ETA ", decor.WCSyncWidth),
				decor.EwmaETA(decor.ET_STYLE_GO, 30),
			),
			mpb.BarRemoveOnComplete(),
		)
		d.lastBytes = 0
		d.lastUpdate = time.Now()

		if !d.isTerminal {
			fmt.Fprintf(os.Stderr, "Uploading video (%.1f MiB)\n", float64(size)/(1024*1024))
		}
	}
	if d.uploadBar == nil {
		return
	}

	if ev.Fraction >= 1 || ev.BytesCurrent >= ev.BytesTotal {
		// Exact 100% completion triggers BarRemoveOnComplete.
		d.uploadBar.SetCurrent(ev.BytesTotal)
		d.uploadBar.SetTotal(ev.BytesTotal, true)
		return
	}

	now := time.Now()
	elapsed := now.Sub(d.lastUpdate)
	bytesDelta := ev.BytesCurrent - d.lastBytes

	// Throttled EwmaIncrBy keeps the speed and ETA estimates honest even
	// when no bytes moved between refreshes.
	if elapsed >= constants.ProgressRefreshRate {
		d.uploadBar.EwmaIncrBy(int(bytesDelta), elapsed)
		d.lastBytes = ev.BytesCurrent
		d.lastUpdate = now
	}
}

func (d *RunDisplay) handleProcessingProgress(ev *events.RunProgressEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ev.Message != "" {
		d.statusMsg.Store(ev.Message)
	}

	if d.processingBar == nil {
		d.processingBar = d.progress.New(100,
			mpb.BarStyle().
				Lbound("[").
				Filler("█").
				Tip("█").
				Padding("░").
				Rbound("]"),
			mpb.PrependDecorators(
				// Lock-free read: the closure runs on the render goroutine.
				decor.Any(func(s decor.Statistics) string {
					if msg, ok := d.statusMsg.Load().(string); ok && msg != "" {
						return msg
					}
					return "processing"
				}, decor.WCSyncSpace),
			),
			mpb.AppendDecorators(
				decor.Percentage(decor.WCSyncSpace),
			),
		)
	}

	current := int64(ev.Fraction * 100)
	if current > 100 {
		current = 100
	}
	d.processingBar.SetCurrent(current)
}

func (d *RunDisplay) handleStateChange(ev *events.RunStateChangeEvent) {
	line := transitionLine(ev)
	if line == "" {
		return
	}
	if d.isTerminal {
		d.progress.Write([]byte(line + "\n"))
	} else {
		fmt.Fprintln(os.Stderr, line)
	}

	switch ev.NewState {
	case "completed":
		d.finishProcessingBar(true)
	case "error", "cancelled":
		d.abortBars()
	}
}

func (d *RunDisplay) finishProcessingBar(complete bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.processingBar != nil && complete {
		d.processingBar.SetCurrent(100)
		d.processingBar.SetTotal(100, true)
	}
}

func (d *RunDisplay) abortBars() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.uploadBar != nil && !d.uploadBar.Completed() && !d.uploadBar.Aborted() {
		d.uploadBar.Abort(false)
	}
	if d.processingBar != nil && !d.processingBar.Completed() && !d.processingBar.Aborted() {
		d.processingBar.Abort(false)
	}
}

func transitionLine(ev *events.RunStateChangeEvent) string {
	switch ev.NewState {
	case "completed":
		return "✓ listing generated"
	case "error":
		if ev.Message != "" {
			return fmt.Sprintf("✗ %s", ev.Message)
		}
		return "✗ run failed"
	case "cancelled":
		return "✗ run cancelled"
	case "processing":
		if ev.JobID != "" {
			return fmt.Sprintf("• processing started (job %s)", ev.JobID)
		}
		return "• processing started"
	default:
		return ""
	}
}

// enableANSIOnWindows enables Virtual Terminal processing on Windows for ANSI escape sequences
// This is a no-op on non-Windows platforms
func enableANSIOnWindows(f *os.File) {
	if runtime.GOOS == "windows" {
		enableWindowsANSI(f)
	}
}

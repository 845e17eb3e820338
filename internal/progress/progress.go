// Package progress provides a unified interface for progress reporting
// across CLI (progress bars) and event-bus driven displays.
package progress

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/shopclip/shopclip-cli/internal/events"
)

// Reporter is the interface for reporting progress of a long operation.
type Reporter interface {
	Start(total int64, description string)
	Update(current int64)
	Finish()
	Error(err error)
	SetDescription(desc string)
}

// CLIProgress implements progress reporting for CLI mode using progress bars.
type CLIProgress struct {
	bar *progressbar.ProgressBar
}

// NewCLIProgress creates a new CLI progress reporter.
func NewCLIProgress() *CLIProgress {
	return &CLIProgress{}
}

// Start initializes the progress bar with total size and description.
func (p *CLIProgress) Start(total int64, description string) {
	p.bar = progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(os.Stderr, "\n")
		}),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Update updates the progress bar to the current position.
func (p *CLIProgress) Update(current int64) {
	if p.bar != nil {
		_ = p.bar.Set64(current)
	}
}

// Finish completes the progress bar.
func (p *CLIProgress) Finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
	}
}

// Error displays an error message.
func (p *CLIProgress) Error(err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
	}
}

// SetDescription updates the progress bar description.
func (p *CLIProgress) SetDescription(desc string) {
	if p.bar != nil {
		p.bar.Describe(desc)
	}
}

// BusProgress implements progress reporting by publishing run progress
// events, letting any subscriber render them.
type BusProgress struct {
	bus     *events.EventBus
	runID   string
	stage   string
	total   int64
	current int64
}

// NewBusProgress creates a progress reporter that publishes to the event bus.
func NewBusProgress(bus *events.EventBus, runID, stage string) *BusProgress {
	return &BusProgress{
		bus:   bus,
		runID: runID,
		stage: stage,
	}
}

// Start initializes progress tracking.
func (p *BusProgress) Start(total int64, description string) {
	p.total = total
	p.current = 0
	p.bus.PublishRunProgress(p.runID, p.stage, 0, 0, total, description)
}

// Update publishes a progress update to the event bus.
func (p *BusProgress) Update(current int64) {
	p.current = current
	p.bus.PublishRunProgress(p.runID, p.stage, p.fraction(), current, p.total, "")
}

// Finish publishes a completion update.
func (p *BusProgress) Finish() {
	p.current = p.total
	p.bus.PublishRunProgress(p.runID, p.stage, 1, p.total, p.total, "")
}

// Error publishes an error event.
func (p *BusProgress) Error(err error) {
	if err != nil {
		p.bus.Publish(&events.ErrorEvent{
			BaseEvent: events.BaseEvent{EventType: events.EventError, Time: time.Now()},
			Scope:     p.stage,
			Err:       err,
		})
	}
}

// SetDescription publishes a stage description update.
func (p *BusProgress) SetDescription(desc string) {
	p.bus.PublishRunProgress(p.runID, p.stage, p.fraction(), p.current, p.total, desc)
}

func (p *BusProgress) fraction() float64 {
	if p.total <= 0 {
		return 0
	}
	return float64(p.current) / float64(p.total)
}

// NoOpProgress is a progress reporter that does nothing (for background/silent operations).
type NoOpProgress struct{}

// NewNoOpProgress creates a new no-op progress reporter.
func NewNoOpProgress() *NoOpProgress {
	return &NoOpProgress{}
}

// Start does nothing.
func (p *NoOpProgress) Start(total int64, description string) {}

// Update does nothing.
func (p *NoOpProgress) Update(current int64) {}

// Finish does nothing.
func (p *NoOpProgress) Finish() {}

// Error does nothing.
func (p *NoOpProgress) Error(err error) {}

// SetDescription does nothing.
func (p *NoOpProgress) SetDescription(desc string) {}

// ProgressReader wraps an io.Reader to report progress.
type ProgressReader struct {
	reader   io.Reader
	reporter Reporter
	total    int64
	current  int64
}

// NewProgressReader creates a new progress-reporting reader.
func NewProgressReader(reader io.Reader, total int64, reporter Reporter) *ProgressReader {
	return &ProgressReader{
		reader:   reader,
		reporter: reporter,
		total:    total,
		current:  0,
	}
}

// Read implements io.Reader interface with progress reporting.
func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	pr.current += int64(n)
	pr.reporter.Update(pr.current)
	return n, err
}

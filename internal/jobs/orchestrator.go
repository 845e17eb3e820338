// Package jobs drives one listing-generation run end to end: validate and
// upload the recording, create the remote job, then poll its status until a
// terminal state, an exhausted poll budget, or a consecutive-failure breaker
// ends the run.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shopclip/shopclip-cli/internal/config"
	"github.com/shopclip/shopclip-cli/internal/constants"
	"github.com/shopclip/shopclip-cli/internal/events"
	"github.com/shopclip/shopclip-cli/internal/logging"
	"github.com/shopclip/shopclip-cli/internal/models"
	"github.com/shopclip/shopclip-cli/internal/progress"
	"github.com/shopclip/shopclip-cli/internal/upload"
)

// RunState identifies a phase of the run state machine.
type RunState string

const (
	StateIdle       RunState = "idle"
	StateUploading  RunState = "uploading"
	StateProcessing RunState = "processing"
	StateCompleted  RunState = "completed"
	StateError      RunState = "error"
	StateCancelled  RunState = "cancelled"
)

// IsTerminal reports whether the state ends a run.
func (s RunState) IsTerminal() bool {
	return s == StateCompleted || s == StateError || s == StateCancelled
}

// ErrRunActive is returned by Start when a run is already in progress.
var ErrRunActive = errors.New("a run is already in progress")

// Snapshot is a point-in-time copy of the run for callers. Nested pointers
// are copies too; treat the whole value as read-only.
type Snapshot struct {
	RunID          string
	State          RunState
	JobID          string
	UploadFraction float64 // 0.0 to 1.0 while uploading
	Progress       float64 // 0.0 to 1.0 while processing
	Step           string  // backend-reported step label
	Message        string  // terminal error message
	Job            *models.Job
	DownloadURLs   *models.DownloadURLs
	StartedAt      time.Time
}

// Service is the narrow backend surface the orchestrator consumes. It is
// satisfied by *api.Client.
type Service interface {
	PresignUpload(ctx context.Context, req *models.PresignRequest) (*models.PresignResponse, error)
	CreateJob(ctx context.Context, req *models.CreateJobRequest) (*models.Job, error)
	JobStatus(ctx context.Context, jobID string) (*models.JobStatusSnapshot, error)
	Job(ctx context.Context, jobID string) (*models.Job, error)
	CancelJob(ctx context.Context, jobID string) error
	DownloadURLs(ctx context.Context, jobID string) (*models.DownloadURLs, error)
}

// Uploader sends a validated file to its presigned URL. It is satisfied by
// *upload.Uploader.
type Uploader interface {
	Upload(ctx context.Context, localPath string, presign *models.PresignResponse, renew upload.Presigner, reporter progress.Reporter) error
}

// Orchestrator owns at most one listing run at a time.
type Orchestrator struct {
	service  Service
	uploader Uploader
	bus      *events.EventBus
	logger   *logging.Logger

	pollInterval    time.Duration
	maxPollAttempts int
	failureLimit    int

	mu         sync.RWMutex
	snap       Snapshot
	generation uint64 // bumped on Reset; stale run callbacks compare against it
	cancelRun  context.CancelFunc
	wg         sync.WaitGroup

	lastProgressPub time.Time
}

// NewOrchestrator creates an orchestrator in the Idle state. Poll pacing
// comes from the config, falling back to the defaults for zero values.
func NewOrchestrator(service Service, uploader Uploader, bus *events.EventBus, logger *logging.Logger, cfg *config.Config) *Orchestrator {
	if bus == nil {
		bus = events.NewEventBus(0)
	}
	if logger == nil {
		logger = logging.NewDefaultCLILogger()
	}

	o := &Orchestrator{
		service:         service,
		uploader:        uploader,
		bus:             bus,
		logger:          logger,
		pollInterval:    constants.JobPollInterval,
		maxPollAttempts: constants.MaxPollAttempts,
		failureLimit:    constants.ConsecutiveFailureLimit,
		snap:            Snapshot{State: StateIdle},
	}
	if cfg != nil {
		if cfg.PollInterval > 0 {
			o.pollInterval = cfg.PollInterval
		}
		if cfg.MaxPollAttempts > 0 {
			o.maxPollAttempts = cfg.MaxPollAttempts
		}
		if cfg.ConsecutiveFailureLimit > 0 {
			o.failureLimit = cfg.ConsecutiveFailureLimit
		}
	}
	return o
}

// Snapshot returns a copy of the current run state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	snap := o.snap
	if o.snap.Job != nil {
		job := *o.snap.Job
		snap.Job = &job
	}
	if o.snap.DownloadURLs != nil {
		urls := *o.snap.DownloadURLs
		snap.DownloadURLs = &urls
	}
	return snap
}

// Start begins a run for the given video file. It validates the file up
// front and returns without waiting for the run to finish; progress arrives
// on the event bus and through Snapshot, and Wait blocks until the end.
// Only valid from Idle.
func (o *Orchestrator) Start(ctx context.Context, videoPath string, opts models.ListingOptions) error {
	// Validation failures leave the machine in Idle: nothing has started.
	presignReq, err := upload.Describe(videoPath)
	if err != nil {
		return err
	}

	o.mu.Lock()
	if o.snap.State != StateIdle {
		o.mu.Unlock()
		return ErrRunActive
	}

	runCtx, cancel := context.WithCancel(ctx)
	gen := o.generation
	runID := uuid.NewString()
	o.cancelRun = cancel
	o.snap = Snapshot{
		RunID:     runID,
		State:     StateUploading,
		StartedAt: time.Now(),
	}
	o.mu.Unlock()

	o.logger.Info().Str("run_id", runID).Msgf("starting run for %s (%d bytes)", presignReq.FileName, presignReq.SizeBytes)
	o.bus.PublishRunStateChange(runID, "", string(StateIdle), string(StateUploading), presignReq.FileName)

	o.wg.Add(1)
	go o.run(runCtx, gen, runID, videoPath, presignReq, opts)
	return nil
}

// Wait blocks until the active run reaches a terminal state. Returns
// immediately when no run is active.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Cancel stops the active run. The remote cancel request is best effort;
// the local state becomes Cancelled regardless of its outcome. No-op when
// no run is active.
func (o *Orchestrator) Cancel(ctx context.Context) {
	o.mu.Lock()
	if o.snap.State == StateIdle || o.snap.State.IsTerminal() {
		o.mu.Unlock()
		return
	}
	oldState := o.snap.State
	runID := o.snap.RunID
	jobID := o.snap.JobID
	cancel := o.cancelRun
	o.cancelRun = nil
	o.snap.State = StateCancelled
	o.mu.Unlock()

	// Stop the run goroutine first so no poll lands after the transition.
	if cancel != nil {
		cancel()
	}

	if jobID != "" {
		if err := o.service.CancelJob(ctx, jobID); err != nil {
			o.logger.Warn().Msgf("remote cancel failed, job %s may keep running server-side: %v", jobID, err)
		}
	}

	o.logger.Info().Str("run_id", runID).Msg("run cancelled")
	o.bus.PublishRunStateChange(runID, jobID, string(oldState), string(StateCancelled), "cancelled")
}

// Reset returns the machine to Idle. Only valid from a terminal state; from
// Idle it is a no-op, and while a run is active it returns an error.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	if o.snap.State == StateIdle {
		o.mu.Unlock()
		return nil
	}
	if !o.snap.State.IsTerminal() {
		state := o.snap.State
		o.mu.Unlock()
		return fmt.Errorf("cannot reset while a run is active (state %s)", state)
	}
	oldState := o.snap.State
	runID := o.snap.RunID
	o.generation++
	o.snap = Snapshot{State: StateIdle}
	o.mu.Unlock()

	o.bus.PublishRunStateChange(runID, "", string(oldState), string(StateIdle), "reset")
	return nil
}

// run executes the upload, job creation, and poll phases for one run.
func (o *Orchestrator) run(ctx context.Context, gen uint64, runID, videoPath string, presignReq *models.PresignRequest, opts models.ListingOptions) {
	defer o.wg.Done()
	defer func() {
		// A caller context that dies without Cancel() must not strand the
		// machine in a non-terminal state.
		if ctx.Err() != nil {
			o.abandon(gen)
		}
	}()

	presign, err := o.service.PresignUpload(ctx, presignReq)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(gen, fmt.Sprintf("could not start upload: %v", err))
		return
	}

	// The renew hook requests a fresh URL for the same object when storage
	// rejects an expired signature mid-upload.
	renew := func(ctx context.Context) (*models.PresignResponse, error) {
		return o.service.PresignUpload(ctx, presignReq)
	}

	reporter := &runReporter{o: o, gen: gen, runID: runID}
	if err := o.uploader.Upload(ctx, videoPath, presign, renew, reporter); err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(gen, fmt.Sprintf("upload failed: %v", err))
		return
	}

	job, err := o.service.CreateJob(ctx, &models.CreateJobRequest{ObjectKey: presign.ObjectKey, Options: opts})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		o.fail(gen, fmt.Sprintf("could not create processing job: %v", err))
		return
	}

	if !o.enterProcessing(gen, job.ID) {
		return
	}
	o.pollLoop(ctx, gen, job.ID)
}

// pollLoop polls job status until a terminal trigger fires. The first poll
// runs immediately; the ticker paces the rest.
func (o *Orchestrator) pollLoop(ctx context.Context, gen uint64, jobID string) {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	attempts := 0
	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			return
		}

		attempts++
		if o.pollOnce(ctx, gen, jobID, &consecutiveFailures) {
			return
		}

		if attempts >= o.maxPollAttempts {
			o.logger.Error().Msgf("job %s still not finished after %d polls", jobID, attempts)
			o.fail(gen, "timed out")
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pollOnce performs a single status poll. Returns true when the loop should
// stop, either because the run reached a terminal state or the breaker
// tripped.
func (o *Orchestrator) pollOnce(ctx context.Context, gen uint64, jobID string, consecutiveFailures *int) bool {
	status, err := o.service.JobStatus(ctx, jobID)
	if err != nil {
		if ctx.Err() != nil {
			return true
		}
		*consecutiveFailures++
		o.logger.Warn().Msgf("status poll failed (%d in a row): %v", *consecutiveFailures, err)
		if *consecutiveFailures >= o.failureLimit {
			o.fail(gen, "connection lost")
			return true
		}
		return false
	}
	*consecutiveFailures = 0

	switch status.Status {
	case models.JobStatusCompleted:
		o.finalize(ctx, gen, jobID)
		return true
	case models.JobStatusFailed:
		msg := status.Error
		if msg == "" {
			msg = "processing failed"
		}
		o.fail(gen, msg)
		return true
	case models.JobStatusCancelled:
		// Cancelled from elsewhere (another device, the backend itself);
		// the local Cancelled state is reserved for Cancel().
		o.fail(gen, "job was cancelled")
		return true
	default:
		o.updateProcessing(gen, status)
		return false
	}
}

// finalize fetches the full job detail and artifact URLs after the remote
// status reached completed.
func (o *Orchestrator) finalize(ctx context.Context, gen uint64, jobID string) {
	job, err := o.service.Job(ctx, jobID)
	if err == nil {
		var urls *models.DownloadURLs
		urls, err = o.service.DownloadURLs(ctx, jobID)
		if err == nil {
			o.complete(gen, job, urls)
			return
		}
	}
	if ctx.Err() != nil {
		return
	}
	o.logger.Warn().Msgf("final fetch for job %s failed: %v", jobID, err)
	o.fail(gen, "completed but results could not be fetched")
}

// enterProcessing transitions Uploading to Processing. Returns false when
// the run was superseded or already ended.
func (o *Orchestrator) enterProcessing(gen uint64, jobID string) bool {
	o.mu.Lock()
	if gen != o.generation || o.snap.State != StateUploading {
		o.mu.Unlock()
		return false
	}
	runID := o.snap.RunID
	o.snap.State = StateProcessing
	o.snap.JobID = jobID
	o.snap.UploadFraction = 1
	o.mu.Unlock()

	o.logger.Info().Str("run_id", runID).Str("job_id", jobID).Msg("upload complete, processing started")
	o.bus.PublishRunStateChange(runID, jobID, string(StateUploading), string(StateProcessing), "")
	return true
}

// updateProcessing records a non-terminal status poll into the snapshot.
func (o *Orchestrator) updateProcessing(gen uint64, status *models.JobStatusSnapshot) {
	o.mu.Lock()
	if gen != o.generation || o.snap.State != StateProcessing {
		o.mu.Unlock()
		return
	}
	runID := o.snap.RunID
	o.snap.Progress = status.Progress
	if status.Message != "" {
		o.snap.Step = status.Message
	}
	o.mu.Unlock()

	o.bus.PublishRunProgress(runID, "processing", status.Progress, 0, 0, status.Message)
}

// complete transitions the run to Completed with its results.
func (o *Orchestrator) complete(gen uint64, job *models.Job, urls *models.DownloadURLs) {
	o.mu.Lock()
	if gen != o.generation || o.snap.State.IsTerminal() {
		o.mu.Unlock()
		return
	}
	oldState := o.snap.State
	runID := o.snap.RunID
	jobID := o.snap.JobID
	o.snap.State = StateCompleted
	o.snap.Progress = 1
	o.snap.Job = job
	o.snap.DownloadURLs = urls
	o.mu.Unlock()

	o.logger.Info().Str("run_id", runID).Str("job_id", jobID).Msg("run completed")
	o.bus.PublishRunStateChange(runID, jobID, string(oldState), string(StateCompleted), "")
}

// abandon marks a run Cancelled when its context died without a Cancel()
// call. Cancel() itself lands the terminal state before the context dies,
// so this only fires for an interrupted parent context.
func (o *Orchestrator) abandon(gen uint64) {
	o.mu.Lock()
	if gen != o.generation || o.snap.State.IsTerminal() {
		o.mu.Unlock()
		return
	}
	oldState := o.snap.State
	runID := o.snap.RunID
	jobID := o.snap.JobID
	o.snap.State = StateCancelled
	o.mu.Unlock()

	o.logger.Info().Str("run_id", runID).Msg("run interrupted")
	o.bus.PublishRunStateChange(runID, jobID, string(oldState), string(StateCancelled), "interrupted")
}

// fail transitions the run to Error with a human-readable message. No-op
// when the run was superseded or already ended.
func (o *Orchestrator) fail(gen uint64, message string) {
	o.mu.Lock()
	if gen != o.generation || o.snap.State.IsTerminal() {
		o.mu.Unlock()
		return
	}
	oldState := o.snap.State
	runID := o.snap.RunID
	jobID := o.snap.JobID
	o.snap.State = StateError
	o.snap.Message = message
	o.mu.Unlock()

	o.logger.Error().Str("run_id", runID).Msgf("run failed: %s", message)
	o.bus.PublishRunStateChange(runID, jobID, string(oldState), string(StateError), message)
}

// updateUploadProgress records upload bytes into the snapshot and publishes
// a progress event, throttled so large files do not flood the bus.
func (o *Orchestrator) updateUploadProgress(gen uint64, current, total int64) {
	o.mu.Lock()
	if gen != o.generation || o.snap.State != StateUploading {
		o.mu.Unlock()
		return
	}
	fraction := 0.0
	if total > 0 {
		fraction = float64(current) / float64(total)
	}
	o.snap.UploadFraction = fraction
	runID := o.snap.RunID

	now := time.Now()
	publish := fraction >= 1 || now.Sub(o.lastProgressPub) >= 100*time.Millisecond
	if publish {
		o.lastProgressPub = now
	}
	o.mu.Unlock()

	if publish {
		o.bus.PublishRunProgress(runID, "upload", fraction, current, total, "")
	}
}

// runReporter adapts upload progress callbacks into generation-gated
// snapshot updates.
type runReporter struct {
	o     *Orchestrator
	gen   uint64
	runID string
	total int64
}

func (r *runReporter) Start(total int64, description string) {
	r.total = total
	r.o.updateUploadProgress(r.gen, 0, total)
}

func (r *runReporter) Update(current int64) {
	r.o.updateUploadProgress(r.gen, current, r.total)
}

func (r *runReporter) Finish() {
	r.o.updateUploadProgress(r.gen, r.total, r.total)
}

func (r *runReporter) Error(err error) {}

func (r *runReporter) SetDescription(desc string) {}

package wizard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/types"
)

// API is the part of the service client the wizard drives.
type API interface {
	ProcessText(ctx context.Context, req types.ProcessTextRequest) (*types.ProcessTextResponse, error)
	Generate(ctx context.Context, req types.GenerateJobRequest) (*types.GenerateJobResponse, error)
	JobStatus(ctx context.Context, jobID string) (*types.JobStatusResponse, error)
}

// Listener receives the wizard state after each change. It is called without
// the wizard lock held and in transition order, and may call back into the
// Wizard. A change made while another goroutine is delivering is handed to
// that goroutine, so the caller can return before its listener runs.
type Listener func(State)

// Option configures a Wizard.
type Option func(*Wizard)

// WithPollInterval overrides config.JobPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(w *Wizard) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithListener registers the change listener.
func WithListener(l Listener) Option {
	return func(w *Wizard) {
		w.listener = l
	}
}

// Wizard walks a script through decomposition, review and one stitched
// video job.
type Wizard struct {
	api      API
	interval time.Duration
	listener Listener

	mu         sync.Mutex
	pending    []State
	delivering bool
	state      State
	token    uint64
	cancel   context.CancelFunc
	closed   bool
	wg       sync.WaitGroup
}

// New creates a wizard on the input step.
func New(api API, opts ...Option) *Wizard {
	w := &Wizard{
		api:      api,
		interval: config.JobPollInterval,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.state = State{
		Step:         StepInput,
		ClipDuration: config.DefaultClipDuration,
		MaxClips:     config.MaxClips,
	}
	return w
}

// SetListener replaces the change listener.
func (w *Wizard) SetListener(l Listener) {
	w.mu.Lock()
	w.listener = l
	w.mu.Unlock()
}

// Snapshot returns a copy of the current state.
func (w *Wizard) Snapshot() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.clone()
}

// SetScript replaces the script text.
func (w *Wizard) SetScript(text string) {
	w.mu.Lock()
	w.state.Script = text
	w.mu.Unlock()
}

// SetStyle replaces the global style applied to every clip.
func (w *Wizard) SetStyle(style string) {
	w.mu.Lock()
	w.state.Style = style
	w.mu.Unlock()
}

// SetClipDuration sets the per-clip length to one of config.ClipDurations.
func (w *Wizard) SetClipDuration(seconds int) error {
	if !config.IsValidDuration(seconds) {
		return fmt.Errorf("%w: duration must be one of %v, got %d", ErrValidation, config.ClipDurations, seconds)
	}
	w.mu.Lock()
	w.state.ClipDuration = seconds
	w.mu.Unlock()
	return nil
}

// SetMaxClips caps how many clips the script is split into.
func (w *Wizard) SetMaxClips(n int) error {
	if n < config.MinClips || n > config.MaxClips {
		return fmt.Errorf("%w: max clips must be between %d and %d, got %d", ErrValidation, config.MinClips, config.MaxClips, n)
	}
	w.mu.Lock()
	w.state.MaxClips = n
	w.mu.Unlock()
	return nil
}

// ProcessText sends the script for decomposition. On success the wizard
// moves to clip review; a failed request moves it to the error step.
func (w *Wizard) ProcessText(ctx context.Context) error {
	w.mu.Lock()
	if err := w.readyLocked(StepInput); err != nil {
		w.mu.Unlock()
		return err
	}
	script := strings.TrimSpace(w.state.Script)
	if script == "" {
		w.mu.Unlock()
		return fmt.Errorf("%w: please enter a script", ErrValidation)
	}
	req := types.ProcessTextRequest{
		Text:         script,
		Style:        strings.TrimSpace(w.state.Style),
		ClipDuration: w.state.ClipDuration,
		MaxClips:     w.state.MaxClips,
	}
	w.state.Busy = true
	token := w.token
	w.notifyLocked()

	log.Info().Int("chars", len(req.Text)).Int("max_clips", req.MaxClips).Msg("Processing script")
	resp, err := w.api.ProcessText(ctx, req)

	w.mu.Lock()
	if token != w.token {
		w.mu.Unlock()
		return context.Canceled
	}
	w.state.Busy = false
	if err != nil {
		log.Error().Err(err).Msg("Script processing failed")
		w.failLocked(client.Message(err, client.MsgProcessTextFailed))
		return fmt.Errorf("failed to process text: %w", err)
	}

	w.state.Clips = append([]types.ScriptClip(nil), resp.Clips...)
	w.state.EstimatedDuration = resp.EstimatedDuration
	if resp.ClipDuration > 0 {
		w.state.ClipDuration = resp.ClipDuration
	}
	w.state.Step = StepClipReview
	log.Info().Int("clips", len(resp.Clips)).Msg("Script split into clips")
	w.notifyLocked()
	return nil
}

// EditClip replaces the visual prompt of the clip at index during review.
func (w *Wizard) EditClip(index int, prompt string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state.Step != StepClipReview {
		return fmt.Errorf("%w: clips can only be edited during review", ErrValidation)
	}
	if index < 0 || index >= len(w.state.Clips) {
		return fmt.Errorf("%w: clip %d out of range (have %d)", ErrValidation, index, len(w.state.Clips))
	}
	w.state.Clips[index].VisualPrompt = prompt
	return nil
}

// Back returns from clip review to the script input, keeping the script.
func (w *Wizard) Back() error {
	w.mu.Lock()
	if err := w.readyLocked(StepClipReview); err != nil {
		w.mu.Unlock()
		return err
	}
	w.state.Step = StepInput
	w.state.Clips = nil
	w.state.EstimatedDuration = 0
	w.notifyLocked()
	return nil
}

// StartGeneration submits the reviewed clips as one job and starts polling
// it. A failed submission moves the wizard to the error step.
func (w *Wizard) StartGeneration(ctx context.Context) error {
	w.mu.Lock()
	if err := w.readyLocked(StepClipReview); err != nil {
		w.mu.Unlock()
		return err
	}
	if len(w.state.Clips) == 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: no clips to generate", ErrValidation)
	}
	clips := make([]types.ScriptClip, len(w.state.Clips))
	for i, c := range w.state.Clips {
		c.VisualPrompt = strings.TrimSpace(c.VisualPrompt)
		if c.VisualPrompt == "" {
			w.mu.Unlock()
			return fmt.Errorf("%w: clip %d has an empty prompt", ErrValidation, i+1)
		}
		clips[i] = c
	}
	req := types.GenerateJobRequest{
		Clips:        clips,
		ClipDuration: w.state.ClipDuration,
		GlobalStyle:  strings.TrimSpace(w.state.Style),
	}
	w.state.Busy = true
	w.state.Phase = PhaseSubmitting
	token := w.token
	w.notifyLocked()

	log.Info().Int("clips", len(clips)).Int("clip_duration", req.ClipDuration).Msg("Starting video job")
	resp, err := w.api.Generate(ctx, req)

	w.mu.Lock()
	if token != w.token {
		w.mu.Unlock()
		return context.Canceled
	}
	w.state.Busy = false
	if err != nil {
		log.Error().Err(err).Msg("Video job submission failed")
		w.failLocked(client.Message(err, client.MsgStartGenerationFailed))
		return fmt.Errorf("failed to start generation: %w", err)
	}
	w.state.Job = &types.Job{
		ID:         resp.JobID,
		Status:     types.JobQueued,
		TotalClips: len(clips),
	}
	w.state.Phase = PhaseQueued
	w.state.Step = StepProgress

	pollCtx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.wg.Add(1)
	go w.poll(pollCtx, token, resp.JobID)

	log.Info().Str("job_id", resp.JobID).Msg("Video job accepted, polling")
	w.notifyLocked()
	return nil
}

// Reset stops polling and clears the script, style, clips and job.
func (w *Wizard) Reset() {
	w.mu.Lock()
	w.stopLocked()
	w.state = State{
		Step:         StepInput,
		ClipDuration: w.state.ClipDuration,
		MaxClips:     w.state.MaxClips,
	}
	w.notifyLocked()
}

// Retry resets the wizard from the error step.
func (w *Wizard) Retry() error {
	w.mu.Lock()
	step := w.state.Step
	w.mu.Unlock()
	if step != StepError {
		return fmt.Errorf("%w: nothing to retry", ErrValidation)
	}
	w.Reset()
	return nil
}

// Close stops polling and waits for the poll goroutine to exit.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.stopLocked()
	w.mu.Unlock()
	w.wg.Wait()
}

// poll checks the job until it reaches a terminal status or token changes.
func (w *Wizard) poll(ctx context.Context, token uint64, jobID string) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st, err := w.api.JobStatus(ctx, jobID)
		if ctx.Err() != nil {
			return
		}

		w.mu.Lock()
		if token != w.token {
			w.mu.Unlock()
			return
		}
		if err != nil {
			log.Error().Err(err).Str("job_id", jobID).Msg("Job status check failed")
			w.stopLocked()
			w.failLocked(client.Message(err, client.MsgStatusFailed))
			return
		}
		if done := w.applyStatusLocked(jobID, st); done {
			w.stopLocked()
			w.notifyLocked()
			return
		}
		w.notifyLocked()
	}
}

// applyStatusLocked folds a status response into the state and reports
// whether polling is over.
func (w *Wizard) applyStatusLocked(jobID string, st *types.JobStatusResponse) bool {
	job := w.state.Job
	job.Status = st.Status
	job.Progress = clampProgress(st.Progress)
	job.CurrentClip = st.CurrentClip
	if st.TotalClips > 0 {
		job.TotalClips = st.TotalClips
	}
	w.state.Phase = PhaseMessage(*st)

	switch st.Status {
	case types.JobCompleted:
		job.Progress = 100
		w.state.Step = StepResult
		w.state.PreviewPath = client.JobPreviewPath(jobID)
		w.state.DownloadPath = client.JobDownloadPath(jobID)
		log.Info().Str("job_id", jobID).Msg("Video job completed")
		return true
	case types.JobFailed:
		msg := st.Error
		if msg == "" {
			msg = client.MsgGenerationFailed
		}
		job.Error = msg
		w.state.Error = msg
		w.state.Step = StepError
		log.Warn().Str("job_id", jobID).Str("error", msg).Msg("Video job failed")
		return true
	}
	return false
}

// readyLocked checks the wizard can start a request from step.
func (w *Wizard) readyLocked(step Step) error {
	if w.closed {
		return ErrClosed
	}
	if w.state.Busy {
		return fmt.Errorf("%w: a request is already in flight", ErrValidation)
	}
	if w.state.Step != step {
		return fmt.Errorf("%w: not available on the %s step", ErrValidation, w.state.Step)
	}
	return nil
}

// stopLocked cancels any poll and invalidates in-flight results.
func (w *Wizard) stopLocked() {
	w.token++
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
}

// failLocked moves to the error step, then unlocks and notifies.
func (w *Wizard) failLocked(msg string) {
	w.state.Error = msg
	w.state.Step = StepError
	if w.state.Job != nil {
		w.state.Job.Error = msg
	}
	w.notifyLocked()
}

// notifyLocked queues a snapshot, releases the lock and, unless another
// goroutine is already delivering, drains the queue to the listener.
func (w *Wizard) notifyLocked() {
	if w.listener == nil {
		w.mu.Unlock()
		return
	}
	w.pending = append(w.pending, w.state.clone())
	if w.delivering {
		w.mu.Unlock()
		return
	}
	w.delivering = true
	for len(w.pending) > 0 {
		snap := w.pending[0]
		w.pending = w.pending[1:]
		listener := w.listener
		w.mu.Unlock()
		if listener != nil {
			listener(snap)
		}
		w.mu.Lock()
	}
	w.pending = nil
	w.delivering = false
	w.mu.Unlock()
}

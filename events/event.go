package events

import (
	"time"

	"github.com/google/uuid"

	"clipstudio/client"
	"clipstudio/storyboard"
	"clipstudio/types"
	"clipstudio/wizard"
)

// Event types
const (
	ClipCompleted = "clip.completed"
	ClipFailed    = "clip.failed"
	JobCompleted  = "job.completed"
	JobFailed     = "job.failed"
)

// Event announces that a clip or video job reached a terminal status
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	ClipID      string    `json:"clip_id,omitempty"`
	JobID       string    `json:"job_id,omitempty"`
	Slot        int       `json:"slot,omitempty"`
	Prompt      string    `json:"prompt,omitempty"`
	Duration    int       `json:"duration,omitempty"`
	TotalClips  int       `json:"total_clips,omitempty"`
	Error       string    `json:"error,omitempty"`
	DownloadURL string    `json:"download_url,omitempty"`
	PreviewURL  string    `json:"preview_url,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Key is the partition key: the clip or job id.
func (e Event) Key() string {
	if e.JobID != "" {
		return e.JobID
	}
	return e.ClipID
}

// FromSlot builds the event for a storyboard slot. ok is false unless the
// slot is completed or failed.
func FromSlot(index int, slot storyboard.Slot, baseURL string) (Event, bool) {
	e := Event{
		ID:         uuid.NewString(),
		ClipID:     slot.ClipID,
		Slot:       index + 1,
		Prompt:     slot.Prompt,
		Duration:   slot.Duration,
		OccurredAt: time.Now().UTC(),
	}
	switch slot.Status {
	case types.ClipCompleted:
		e.Type = ClipCompleted
		e.DownloadURL = baseURL + slot.DownloadPath()
		e.PreviewURL = baseURL + slot.PreviewPath()
	case types.ClipFailed:
		e.Type = ClipFailed
		e.Error = slot.ErrorText()
	default:
		return Event{}, false
	}
	return e, true
}

// FromWizard builds the event for a wizard job. ok is false unless the job
// is completed or failed.
func FromWizard(state wizard.State, baseURL string) (Event, bool) {
	if state.Job == nil {
		return Event{}, false
	}
	e := Event{
		ID:         uuid.NewString(),
		JobID:      state.Job.ID,
		TotalClips: state.Job.TotalClips,
		Duration:   state.ClipDuration,
		OccurredAt: time.Now().UTC(),
	}
	switch {
	case state.Step == wizard.StepResult:
		e.Type = JobCompleted
		e.DownloadURL = baseURL + client.JobDownloadPath(state.Job.ID)
		e.PreviewURL = baseURL + client.JobPreviewPath(state.Job.ID)
	case state.Step == wizard.StepError:
		e.Type = JobFailed
		e.Error = state.Error
	default:
		return Event{}, false
	}
	return e, true
}

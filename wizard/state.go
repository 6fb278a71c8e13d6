package wizard

import (
	"errors"
	"fmt"

	"clipstudio/types"
)

var (
	// ErrValidation marks input the wizard refuses without touching the network.
	ErrValidation = errors.New("validation error")
	// ErrClosed is returned by operations on a closed wizard.
	ErrClosed = errors.New("wizard closed")
)

// Step is the visible wizard page
type Step string

const (
	StepInput      Step = "input"
	StepClipReview Step = "clip_review"
	StepProgress   Step = "progress"
	StepResult     Step = "result"
	StepError      Step = "error"
)

// Phase messages shown under the progress bar
const (
	PhaseQueued     = "Waiting in queue..."
	PhaseAnalyzing  = "Analyzing script and enhancing prompts..."
	PhaseStitching  = "Stitching clips together..."
	PhaseCompleted  = "Done!"
	PhaseSubmitting = "Submitting clips..."
)

// State is a snapshot of the wizard.
type State struct {
	Step         Step
	Script       string
	Style        string
	ClipDuration int
	MaxClips     int

	Clips             []types.ScriptClip
	EstimatedDuration int

	Job   *types.Job
	Phase string
	Error string

	PreviewPath  string
	DownloadPath string

	// Busy is set while a ProcessText or StartGeneration request is in flight.
	Busy bool
}

func (s State) clone() State {
	out := s
	if s.Clips != nil {
		out.Clips = append([]types.ScriptClip(nil), s.Clips...)
	}
	if s.Job != nil {
		job := *s.Job
		out.Job = &job
	}
	return out
}

// Progress returns the job progress, or 0 before a job exists.
func (s State) Progress() int {
	if s.Job == nil {
		return 0
	}
	return s.Job.Progress
}

// PhaseMessage describes what the service is doing for a job status.
func PhaseMessage(st types.JobStatusResponse) string {
	switch st.Status {
	case types.JobQueued:
		return PhaseQueued
	case types.JobProcessing:
		if st.Progress < 10 {
			return PhaseAnalyzing
		}
		return PhaseStitching
	case types.JobGenerating:
		return fmt.Sprintf("Generating clip %d of %d...", st.CurrentClip, st.TotalClips)
	case types.JobCompleted:
		return PhaseCompleted
	default:
		return ""
	}
}

func clampProgress(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

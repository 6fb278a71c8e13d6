package types

// JobStatus represents the aggregate script-to-video job state
type JobStatus string

const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobGenerating JobStatus = "generating"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// IsTerminal reports whether polling stops at this status
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ScriptClip is one server-decomposed piece of a script
type ScriptClip struct {
	ID           int    `json:"id"`
	VisualPrompt string `json:"visual_prompt"`
	Narration    string `json:"narration,omitempty"`
}

// ProcessTextRequest is the JSON body for POST /api/process-text
type ProcessTextRequest struct {
	Text         string `json:"text"`
	Style        string `json:"style"`
	ClipDuration int    `json:"clip_duration"`
	MaxClips     int    `json:"max_clips"`
}

// ProcessTextResponse is returned by POST /api/process-text
type ProcessTextResponse struct {
	Clips             []ScriptClip `json:"clips"`
	TotalClips        int          `json:"total_clips"`
	EstimatedDuration int          `json:"estimated_duration"`
	ClipDuration      int          `json:"clip_duration"`
}

// GenerateJobRequest is the JSON body for POST /api/generate
type GenerateJobRequest struct {
	Clips        []ScriptClip `json:"clips"`
	ClipDuration int          `json:"clip_duration"`
	GlobalStyle  string       `json:"global_style"`
}

// GenerateJobResponse is returned by POST /api/generate
type GenerateJobResponse struct {
	JobID string `json:"job_id"`
}

// JobStatusResponse is returned by GET /api/status/{jobId}
type JobStatusResponse struct {
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentClip int       `json:"current_clip"`
	TotalClips  int       `json:"total_clips"`
	Error       string    `json:"error,omitempty"`
}

// Job is the wizard-owned record of one generation run
type Job struct {
	ID          string    `json:"id"`
	Status      JobStatus `json:"status"`
	Progress    int       `json:"progress"`
	CurrentClip int       `json:"current_clip"`
	TotalClips  int       `json:"total_clips"`
	Error       string    `json:"error,omitempty"`
}

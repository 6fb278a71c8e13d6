package types

// ClipStatus represents the per-clip generation state machine
type ClipStatus string

const (
	ClipIdle       ClipStatus = "idle"
	ClipGenerating ClipStatus = "generating"
	ClipCompleted  ClipStatus = "completed"
	ClipFailed     ClipStatus = "failed"
)

// IsTerminal reports whether polling stops at this status
func (s ClipStatus) IsTerminal() bool {
	return s == ClipCompleted || s == ClipFailed
}

// GenerateClipRequest is the JSON body for POST /api/generate-clip
type GenerateClipRequest struct {
	Prompt   string `json:"prompt"`
	Duration int    `json:"duration"`
	APIKey   string `json:"api_key,omitempty"`
}

// GenerateClipResponse is returned by POST /api/generate-clip
type GenerateClipResponse struct {
	ClipID string     `json:"clip_id"`
	Status ClipStatus `json:"status,omitempty"`
	Error  string     `json:"error,omitempty"`
}

// ClipStatusResponse is returned by GET /api/clip-status/{clipId}
type ClipStatusResponse struct {
	ClipID string     `json:"clip_id,omitempty"`
	Status ClipStatus `json:"status"`
	Error  string     `json:"error,omitempty"`
}

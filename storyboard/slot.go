package storyboard

import (
	"fmt"

	"clipstudio/client"
	"clipstudio/config"
	"clipstudio/refimage"
	"clipstudio/types"
)

// Slot is a snapshot of one clip editor on the board.
type Slot struct {
	Prompt    string
	Duration  int
	ClipID    string
	Status    types.ClipStatus
	Error     string
	Reference *refimage.Image
}

func newSlot() Slot {
	return Slot{
		Duration: config.DefaultClipDuration,
		Status:   types.ClipIdle,
	}
}

// Cost is the displayed price of generating the slot.
func (s Slot) Cost() float64 {
	return Cost(s.Duration)
}

// Busy reports whether a generation is in flight.
func (s Slot) Busy() bool {
	return s.Status == types.ClipGenerating
}

// DownloadPath is the service path of the finished clip, or "" until the
// slot completes.
func (s Slot) DownloadPath() string {
	if s.Status != types.ClipCompleted || s.ClipID == "" {
		return ""
	}
	return client.ClipDownloadPath(s.ClipID)
}

// PreviewPath is the inline variant of DownloadPath.
func (s Slot) PreviewPath() string {
	if s.Status != types.ClipCompleted || s.ClipID == "" {
		return ""
	}
	return client.ClipPreviewPath(s.ClipID)
}

// ErrorText is the failure message shown for a failed slot.
func (s Slot) ErrorText() string {
	if s.Error != "" {
		return s.Error
	}
	return client.MsgGenerationFailed
}

// Cost returns duration x CostPerSecond.
func Cost(duration int) float64 {
	return float64(duration) * config.CostPerSecond
}

// FormatCost renders a cost the way the editor shows it, e.g. "$0.40".
func FormatCost(cost float64) string {
	return fmt.Sprintf("$%.2f", cost)
}

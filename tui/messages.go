package tui

import (
	"clipstudio/storyboard"
	"clipstudio/wizard"
)

// Messages for the tea program

// SlotUpdatedMsg carries the new state of one storyboard slot
type SlotUpdatedMsg struct {
	Index int
	Slot  storyboard.Slot
}

// WizardUpdatedMsg carries a new wizard snapshot
type WizardUpdatedMsg struct {
	State wizard.State
}

// queuedMsgs is a batch drained from an updateQueue
type queuedMsgs []interface{}

// KeyLoadedMsg is sent when the stored API key has been read
type KeyLoadedMsg struct {
	Key string
	Err error
}

// KeySavedMsg is sent when a new API key has been stored
type KeySavedMsg struct {
	Key string
	Err error
}

// VideoSavedMsg is sent when a clip or video has been downloaded
type VideoSavedMsg struct {
	Path     string
	Archived string
	Err      error
}

// RequestDoneMsg is sent when a blocking wizard request returns
type RequestDoneMsg struct {
	Err error
}

package tui

import (
	"clipstudio/client"
	"clipstudio/credentials"
	"clipstudio/events"
	"clipstudio/storage"
)

// Deps are the collaborators shared by both screens. Store, Archiver and
// Events are optional.
type Deps struct {
	Client   *client.Client
	Store    credentials.Store
	Archiver storage.Archiver
	Events   *events.Dispatcher
	OutDir   string
}

func (d Deps) baseURL() string {
	if d.Client == nil {
		return ""
	}
	return d.Client.BaseURL()
}

func (d Deps) publish(e events.Event, ok bool) {
	if ok && d.Events != nil {
		d.Events.Send(e)
	}
}

// inputMode selects what keystrokes are routed to
type inputMode int

const (
	modeBrowse inputMode = iota
	modeEditPrompt
	modeReferencePath
	modeAPIKey
	modeConfirmDefaultKey
)

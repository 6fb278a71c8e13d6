package tui

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"clipstudio/config"
	"clipstudio/events"
	"clipstudio/wizard"
)

const (
	fieldScript = iota
	fieldStyle
)

// WizardModel is the tea model for the script-to-video flow.
type WizardModel struct {
	deps    Deps
	wiz     *wizard.Wizard
	updates *updateQueue
	state   wizard.State

	script   textarea.Model
	style    textinput.Model
	field    int
	clipEdit textarea.Model
	editing  bool
	clip     int

	spinner  spinner.Model
	progress progress.Model

	// set while a request command is out, until its RequestDoneMsg
	requesting bool

	status string
	err    error
	width  int
}

// NewWizard creates the wizard screen and takes over the wizard's listener.
func NewWizard(w *wizard.Wizard, deps Deps) WizardModel {
	q := newUpdateQueue()
	base := deps.baseURL()
	var published string
	w.SetListener(func(st wizard.State) {
		q.push(WizardUpdatedMsg{State: st})
		e, ok := events.FromWizard(st, base)
		if ok && st.Job.ID != published {
			published = st.Job.ID
			deps.publish(e, ok)
		}
	})

	script := textarea.New()
	script.Placeholder = TextScriptPlaceholder
	script.ShowLineNumbers = false
	script.CharLimit = 0
	script.SetHeight(10)

	style := textinput.New()
	style.Placeholder = TextStylePlaceholder
	style.Prompt = "Style: "

	clipEdit := textarea.New()
	clipEdit.ShowLineNumbers = false
	clipEdit.SetHeight(4)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WorkingStyle

	st := w.Snapshot()
	script.SetValue(st.Script)
	script.Focus()
	style.SetValue(st.Style)

	return WizardModel{
		deps:     deps,
		wiz:      w,
		updates:  q,
		state:    st,
		script:   script,
		style:    style,
		clipEdit: clipEdit,
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
	}
}

// Init initializes the model
func (m WizardModel) Init() tea.Cmd {
	return tea.Batch(m.updates.wait(), m.spinner.Tick, textarea.Blink)
}

// Update handles messages and updates the model
func (m WizardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.script.SetWidth(msg.Width - 4)
		m.clipEdit.SetWidth(msg.Width - 4)
		m.progress.Width = msg.Width - 8
		return m, nil

	case queuedMsgs:
		for _, q := range msg {
			if wu, ok := q.(WizardUpdatedMsg); ok {
				m = m.handleStateUpdated(wu)
			}
		}
		return m, m.updates.wait()

	case WizardUpdatedMsg:
		return m.handleStateUpdated(msg), nil

	case RequestDoneMsg:
		m.requesting = false
		if msg.Err != nil && errors.Is(msg.Err, wizard.ErrValidation) {
			m.err = errors.New(userMessage(msg.Err))
		}
		return m, nil

	case VideoSavedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.err = nil
		m.status = "Saved " + msg.Path
		if msg.Archived != "" {
			m.status += " (archived to " + msg.Archived + ")"
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m WizardModel) handleStateUpdated(msg WizardUpdatedMsg) WizardModel {
	prev := m.state.Step
	m.state = msg.State
	if m.clip >= len(m.state.Clips) {
		m.clip = 0
	}
	if prev != m.state.Step {
		m.err = nil
		m.status = ""
		m.editing = false
		if m.state.Step == wizard.StepInput {
			m.script.SetValue(m.state.Script)
			m.style.SetValue(m.state.Style)
			m.field = fieldScript
			m.script.Focus()
		}
	}
	return m
}

// handleKeyPress processes keyboard input
func (m WizardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.wiz.Close()
		return m, tea.Quit
	}

	switch m.state.Step {
	case wizard.StepInput:
		return m.handleInputStep(msg)
	case wizard.StepClipReview:
		if m.editing {
			return m.handleClipEdit(msg)
		}
		return m.handleReviewStep(msg)
	}

	switch msg.String() {
	case "q":
		m.wiz.Close()
		return m, tea.Quit

	case "s":
		if m.state.Step == wizard.StepResult && m.state.Job != nil {
			m.status = "Downloading video..."
			return m, saveJob(m.deps, m.state.Job.ID)
		}

	case "n":
		if m.state.Step == wizard.StepResult {
			m.wiz.Reset()
		}

	case "r":
		if err := m.wiz.Retry(); err != nil {
			m.err = errors.New(userMessage(err))
		}
	}
	return m, nil
}

func (m WizardModel) handleInputStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state.Busy {
		return m, nil
	}

	switch msg.String() {
	case "tab", "shift+tab":
		if m.field == fieldScript {
			m.field = fieldStyle
			m.script.Blur()
			cmd := m.style.Focus()
			return m, cmd
		}
		m.field = fieldScript
		m.style.Blur()
		cmd := m.script.Focus()
		return m, cmd

	case "ctrl+d":
		if err := m.wiz.SetClipDuration(config.NextDuration(m.state.ClipDuration)); err != nil {
			m.err = err
		}
		m.state = m.wiz.Snapshot()
		return m, nil

	case "pgup", "pgdown":
		n := m.state.MaxClips + 1
		if msg.String() == "pgdown" {
			n = m.state.MaxClips - 1
		}
		if err := m.wiz.SetMaxClips(n); err == nil {
			m.state = m.wiz.Snapshot()
		}
		return m, nil

	case "ctrl+s":
		if m.requesting {
			return m, nil
		}
		m.requesting = true
		m.err = nil
		m.wiz.SetScript(m.script.Value())
		m.wiz.SetStyle(m.style.Value())
		return m, processText(m.wiz)
	}

	var cmd tea.Cmd
	if m.field == fieldScript {
		m.script, cmd = m.script.Update(msg)
	} else {
		m.style, cmd = m.style.Update(msg)
	}
	return m, cmd
}

func (m WizardModel) handleReviewStep(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.state.Busy {
		return m, nil
	}

	switch msg.String() {
	case "q":
		m.wiz.Close()
		return m, tea.Quit

	case "up", "k":
		if m.clip > 0 {
			m.clip--
		}

	case "down", "j":
		if m.clip < len(m.state.Clips)-1 {
			m.clip++
		}

	case "enter", "e":
		if len(m.state.Clips) == 0 {
			return m, nil
		}
		m.clipEdit.SetValue(m.state.Clips[m.clip].VisualPrompt)
		m.editing = true
		cmd := m.clipEdit.Focus()
		return m, cmd

	case "b":
		if err := m.wiz.Back(); err != nil {
			m.err = errors.New(userMessage(err))
		}

	case "g":
		if m.requesting {
			return m, nil
		}
		m.requesting = true
		m.err = nil
		return m, startGeneration(m.wiz)
	}
	return m, nil
}

func (m WizardModel) handleClipEdit(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		if err := m.wiz.EditClip(m.clip, m.clipEdit.Value()); err != nil {
			m.err = fmt.Errorf("failed to edit clip: %w", err)
		}
		m.clipEdit.Blur()
		m.editing = false
		m.state = m.wiz.Snapshot()
		return m, nil
	}
	var cmd tea.Cmd
	m.clipEdit, cmd = m.clipEdit.Update(msg)
	return m, cmd
}

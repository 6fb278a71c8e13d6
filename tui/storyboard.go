package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"clipstudio/config"
	"clipstudio/credentials"
	"clipstudio/events"
	"clipstudio/refimage"
	"clipstudio/storyboard"
	"clipstudio/types"
)

// StoryboardModel is the tea model for the multi-clip board. Each slot box
// is rendered once and cached until that slot changes.
type StoryboardModel struct {
	deps    Deps
	board   *storyboard.Board
	updates *updateQueue

	slots []storyboard.Slot
	boxes []string
	focus int
	mode  inputMode

	editor  textarea.Model
	input   textinput.Model
	spinner spinner.Model

	apiKey       string
	allowDefault bool
	pending      int

	status string
	err    error
	width  int
}

// NewStoryboard creates the storyboard screen and takes over the board's
// listener.
func NewStoryboard(board *storyboard.Board, deps Deps) StoryboardModel {
	q := newUpdateQueue()
	base := deps.baseURL()
	board.SetListener(func(index int, slot storyboard.Slot) {
		q.push(SlotUpdatedMsg{Index: index, Slot: slot})
		deps.publish(events.FromSlot(index, slot, base))
	})

	editor := textarea.New()
	editor.Placeholder = "Describe the clip..."
	editor.ShowLineNumbers = false
	editor.SetHeight(4)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = WorkingStyle

	m := StoryboardModel{
		deps:    deps,
		board:   board,
		updates: q,
		editor:  editor,
		input:   textinput.New(),
		spinner: s,
	}
	m.syncSlots()
	return m
}

// Init initializes the model
func (m StoryboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.updates.wait(), m.spinner.Tick}
	if m.deps.Store != nil {
		cmds = append(cmds, loadKey(m.deps.Store))
	}
	return tea.Batch(cmds...)
}

// Update handles messages and updates the model
func (m StoryboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.editor.SetWidth(m.boxWidth() - 4)
		m.renderAll()
		return m, nil

	case queuedMsgs:
		for _, q := range msg {
			if su, ok := q.(SlotUpdatedMsg); ok {
				m = m.handleSlotUpdated(su)
			}
		}
		return m, m.updates.wait()

	case SlotUpdatedMsg:
		return m.handleSlotUpdated(msg), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		for i, s := range m.slots {
			if s.Busy() {
				m.render(i)
			}
		}
		return m, cmd

	case KeyLoadedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.apiKey = msg.Key
		return m, nil

	case KeySavedMsg:
		if msg.Err != nil {
			m.err = msg.Err
			return m, nil
		}
		m.apiKey = msg.Key
		m.err = nil
		m.status = "API key saved " + credentials.Mask(msg.Key)
		return m, nil

	case VideoSavedMsg:
		return m.handleVideoSaved(msg), nil
	}

	return m, nil
}

func (m StoryboardModel) handleSlotUpdated(msg SlotUpdatedMsg) StoryboardModel {
	if msg.Index < 0 || msg.Index >= len(m.slots) {
		return m
	}
	// The queued snapshot may predate a resize or a local edit, so the board
	// is read again and the message only says which slot to redraw.
	slot, err := m.board.Slot(msg.Index)
	if err != nil {
		return m
	}
	prev := m.slots[msg.Index].Status
	m.slots[msg.Index] = slot
	m.render(msg.Index)

	if prev != slot.Status {
		switch slot.Status {
		case types.ClipCompleted:
			m.status = fmt.Sprintf("Clip %d is ready", msg.Index+1)
		case types.ClipFailed:
			m.status = fmt.Sprintf("Clip %d failed: %s", msg.Index+1, slot.ErrorText())
		}
	}
	return m
}

func (m StoryboardModel) handleVideoSaved(msg VideoSavedMsg) StoryboardModel {
	if msg.Err != nil {
		m.err = msg.Err
		return m
	}
	m.err = nil
	m.status = "Saved " + msg.Path
	if msg.Archived != "" {
		m.status += " (archived to " + msg.Archived + ")"
	}
	return m
}

// handleKeyPress processes keyboard input
func (m StoryboardModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		m.board.Close()
		return m, tea.Quit
	}

	switch m.mode {
	case modeEditPrompt:
		return m.handleEditKey(msg)
	case modeReferencePath, modeAPIKey:
		return m.handleInputKey(msg)
	case modeConfirmDefaultKey:
		return m.handleConfirmKey(msg)
	}

	switch msg.String() {
	case "q":
		m.board.Close()
		return m, tea.Quit

	case "up", "k", "shift+tab":
		m.moveFocus(-1)

	case "down", "j", "tab":
		m.moveFocus(1)

	case "enter", "e":
		slot := m.slots[m.focus]
		if slot.Busy() {
			return m, nil
		}
		m.editor.SetValue(slot.Prompt)
		m.mode = modeEditPrompt
		cmd := m.editor.Focus()
		return m, cmd

	case "d":
		if _, err := m.board.CycleDuration(m.focus); err != nil {
			m.err = err
		}
		m.refresh(m.focus)

	case "+", "=":
		m.resize(m.board.Count() + 1)

	case "-", "_":
		m.resize(m.board.Count() - 1)

	case "g":
		m.generate(m.focus)

	case "i":
		m.openInput(modeReferencePath, TextReferencePrompt, false)
		cmd := m.input.Focus()
		return m, cmd

	case "x":
		if err := m.board.RemoveReference(m.focus); err != nil {
			m.err = err
		}
		m.refresh(m.focus)

	case "K":
		m.openInput(modeAPIKey, TextAPIKeyPrompt, true)
		cmd := m.input.Focus()
		return m, cmd

	case "s":
		slot := m.slots[m.focus]
		if slot.DownloadPath() == "" {
			m.status = "Nothing to save yet"
			return m, nil
		}
		m.status = "Downloading clip..."
		return m, saveClip(m.deps, slot.ClipID, slot.Prompt)
	}

	return m, nil
}

func (m StoryboardModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		if err := m.board.SetPrompt(m.focus, m.editor.Value()); err != nil {
			m.err = err
		}
		m.editor.Blur()
		m.mode = modeBrowse
		m.refresh(m.focus)
		return m, nil
	}
	var cmd tea.Cmd
	m.editor, cmd = m.editor.Update(msg)
	return m, cmd
}

func (m StoryboardModel) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.closeInput()
		return m, nil

	case "enter":
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.closeInput()
		if value == "" {
			return m, nil
		}
		if mode == modeAPIKey {
			return m, saveKey(m.deps.Store, value)
		}
		m.attachReference(value)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m StoryboardModel) handleConfirmKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.allowDefault = true
		m.mode = modeBrowse
		m.generate(m.pending)
	case "n", "N", "esc":
		m.mode = modeBrowse
		m.status = TextKeyHint
	}
	return m, nil
}

func (m *StoryboardModel) generate(index int) {
	if m.apiKey == "" && !m.allowDefault {
		m.pending = index
		m.mode = modeConfirmDefaultKey
		return
	}
	m.err = nil
	if err := m.board.Generate(index, m.apiKey); err != nil {
		if errors.Is(err, storyboard.ErrValidation) {
			m.status = userMessage(err)
			return
		}
		m.err = err
		return
	}
	log.Info().Int("slot", index+1).Msg("clip generation requested")
}

func (m *StoryboardModel) attachReference(path string) {
	img, err := refimage.Load(path)
	if err != nil {
		m.err = err
		return
	}
	if err := m.board.AttachReference(m.focus, img); err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.refresh(m.focus)
}

func (m *StoryboardModel) openInput(mode inputMode, prompt string, secret bool) {
	m.input = textinput.New()
	m.input.Prompt = prompt + " "
	if secret {
		m.input.EchoMode = textinput.EchoPassword
	}
	m.mode = mode
}

func (m *StoryboardModel) closeInput() {
	m.input.Blur()
	m.input.Reset()
	m.mode = modeBrowse
}

func (m *StoryboardModel) moveFocus(delta int) {
	next := m.focus + delta
	if next < 0 || next >= len(m.slots) {
		return
	}
	prev := m.focus
	m.focus = next
	m.render(prev)
	m.render(next)
}

func (m *StoryboardModel) resize(n int) {
	if n < 1 || n > config.MaxSlots {
		return
	}
	if err := m.board.SetCount(n); err != nil {
		m.err = err
		return
	}
	m.syncSlots()
}

// syncSlots reloads the board and renders only slots that are new.
func (m *StoryboardModel) syncSlots() {
	m.slots = m.board.Slots()
	if len(m.boxes) > len(m.slots) {
		m.boxes = m.boxes[:len(m.slots)]
	}
	for i := len(m.boxes); i < len(m.slots); i++ {
		m.boxes = append(m.boxes, "")
		m.render(i)
	}
	if m.focus >= len(m.slots) {
		m.focus = len(m.slots) - 1
		m.render(m.focus)
	}
}

// refresh reloads one slot after a local edit, which the board does not
// report to its listener.
func (m *StoryboardModel) refresh(index int) {
	slot, err := m.board.Slot(index)
	if err != nil {
		return
	}
	m.slots[index] = slot
	m.render(index)
}

func (m *StoryboardModel) render(index int) {
	if index < 0 || index >= len(m.slots) {
		return
	}
	m.boxes[index] = renderSlotBox(index, m.slots[index], index == m.focus, m.spinner.View(), m.deps.baseURL(), m.boxWidth())
}

func (m *StoryboardModel) renderAll() {
	for i := range m.slots {
		m.render(i)
	}
}

func (m StoryboardModel) boxWidth() int {
	if m.width <= 0 {
		return 72
	}
	return m.width - 4
}

package tui

import (
	"fmt"
	"strings"

	"clipstudio/config"
	"clipstudio/storyboard"
	"clipstudio/types"
)

// View renders the storyboard
func (m StoryboardModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(TextStoryboardTitle))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Clips: %d/%d · Total: %s · Key: %s",
		len(m.slots), config.MaxSlots, storyboard.FormatCost(m.board.TotalCost()), keyLabel(m.apiKey, m.allowDefault))))
	b.WriteString("\n\n")

	for i, box := range m.boxes {
		b.WriteString(box)
		b.WriteString("\n")
		if i == m.focus && m.mode == modeEditPrompt {
			b.WriteString(m.editor.View())
			b.WriteString("\n")
		}
	}

	switch m.mode {
	case modeReferencePath, modeAPIKey:
		b.WriteString("\n")
		b.WriteString(m.input.View())
		b.WriteString("\n")
	case modeConfirmDefaultKey:
		b.WriteString("\n")
		b.WriteString(HighlightStyle.Render(TextNoKeySaved))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(InfoStyle.Render(m.footer()))
	b.WriteString("\n")
	return b.String()
}

func (m StoryboardModel) footer() string {
	switch m.mode {
	case modeEditPrompt:
		return TextFooterEditing
	case modeReferencePath, modeAPIKey:
		return TextFooterInput
	case modeConfirmDefaultKey:
		return TextFooterConfirm
	}
	return TextFooterStoryboard
}

// renderSlotBox draws one slot. frame is the current spinner frame.
func renderSlotBox(index int, slot storyboard.Slot, focused bool, frame, baseURL string, width int) string {
	var b strings.Builder

	header := fmt.Sprintf("Clip %d · %ds · %s", index+1, slot.Duration, storyboard.FormatCost(slot.Cost()))
	if slot.Reference != nil {
		w, h := slot.Reference.Dimensions()
		header += fmt.Sprintf(" · 🖼 %s (%dx%d)", slot.Reference.Name(), w, h)
	}
	if focused {
		b.WriteString(HighlightStyle.Render(header))
	} else {
		b.WriteString(header)
	}
	b.WriteString("\n")

	if strings.TrimSpace(slot.Prompt) == "" {
		b.WriteString(InfoStyle.Render(TextEmptyPrompt))
	} else {
		b.WriteString(slot.Prompt)
	}
	b.WriteString("\n\n")

	style := SlotBoxStyle
	switch slot.Status {
	case types.ClipGenerating:
		style = GeneratingSlotBoxStyle
		b.WriteString(WorkingStyle.Render(frame + " " + TextGeneratingVideo))
	case types.ClipCompleted:
		style = CompletedSlotBoxStyle
		b.WriteString(StatusStyle.Render("✓ Ready · " + TextDownloadButton))
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render(baseURL + slot.DownloadPath()))
	case types.ClipFailed:
		style = FailedSlotBoxStyle
		b.WriteString(ErrorStyle.Render("Error: " + slot.ErrorText()))
		b.WriteString("\n")
		b.WriteString(InfoStyle.Render(TextGenerateButton))
	default:
		b.WriteString(InfoStyle.Render(TextGenerateButton))
	}
	if focused && slot.Status == types.ClipIdle {
		style = FocusedSlotBoxStyle
	}

	return style.Width(width).Render(b.String())
}

func keyLabel(key string, allowDefault bool) string {
	switch {
	case key != "":
		return "saved"
	case allowDefault:
		return "server default"
	}
	return "not set"
}

// userMessage strips the sentinel prefix from validation errors.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 && strings.HasPrefix(msg, "validation error") {
		return msg[i+2:]
	}
	return msg
}

package tui

import (
	"fmt"
	"strings"

	"clipstudio/wizard"
)

// View renders the wizard
func (m WizardModel) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render(TextWizardTitle))
	b.WriteString("\n")

	var footer string
	switch m.state.Step {
	case wizard.StepInput:
		m.viewInput(&b)
		footer = TextFooterWizardInput
	case wizard.StepClipReview:
		m.viewReview(&b)
		footer = TextFooterWizardReview
		if m.editing {
			footer = TextFooterEditing
		}
	case wizard.StepProgress:
		m.viewProgress(&b)
		footer = TextFooterWizardProgress
	case wizard.StepResult:
		m.viewResult(&b)
		footer = TextFooterWizardResult
	case wizard.StepError:
		b.WriteString(BoxStyle.Render(ErrorStyle.Render("Error: " + m.state.Error)))
		b.WriteString("\n")
		footer = TextFooterWizardError
	}

	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(ErrorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(StatusStyle.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString(InfoStyle.Render(footer))
	b.WriteString("\n")
	return b.String()
}

func (m WizardModel) viewInput(b *strings.Builder) {
	b.WriteString(m.script.View())
	b.WriteString("\n\n")
	b.WriteString(m.style.View())
	b.WriteString("\n\n")
	b.WriteString(InfoStyle.Render(fmt.Sprintf("Clip duration: %ds · Max clips: %d · Up to %ds of video",
		m.state.ClipDuration, m.state.MaxClips, m.state.ClipDuration*m.state.MaxClips)))
	b.WriteString("\n")
	if m.state.Busy {
		b.WriteString("\n")
		b.WriteString(WorkingStyle.Render(m.spinner.View() + " Splitting script into clips..."))
		b.WriteString("\n")
	}
}

func (m WizardModel) viewReview(b *strings.Builder) {
	b.WriteString(InfoStyle.Render(fmt.Sprintf("%d clips · about %ds of video", len(m.state.Clips), m.state.EstimatedDuration)))
	b.WriteString("\n\n")

	for i, c := range m.state.Clips {
		label := fmt.Sprintf("Clip %d", i+1)
		if i == m.clip {
			label = HighlightStyle.Render(label)
		}
		b.WriteString(label)
		b.WriteString("\n")
		if i == m.clip && m.editing {
			b.WriteString(m.clipEdit.View())
		} else {
			b.WriteString(c.VisualPrompt)
		}
		b.WriteString("\n")
		if c.Narration != "" {
			b.WriteString(InfoStyle.Render("“" + c.Narration + "”"))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.state.Busy {
		b.WriteString(WorkingStyle.Render(m.spinner.View() + " " + m.state.Phase))
		b.WriteString("\n")
	}
}

func (m WizardModel) viewProgress(b *strings.Builder) {
	var box strings.Builder
	box.WriteString(m.progress.ViewAs(float64(m.state.Progress()) / 100))
	box.WriteString("\n\n")
	box.WriteString(WorkingStyle.Render(m.spinner.View() + " " + m.state.Phase))
	if j := m.state.Job; j != nil {
		box.WriteString("\n")
		box.WriteString(InfoStyle.Render("Job " + j.ID))
	}
	b.WriteString(BoxStyle.Render(box.String()))
	b.WriteString("\n")
}

func (m WizardModel) viewResult(b *strings.Builder) {
	base := m.deps.baseURL()
	var box strings.Builder
	box.WriteString(StatusStyle.Render("✓ Your video is ready"))
	box.WriteString("\n\n")
	box.WriteString("Preview:  " + base + m.state.PreviewPath)
	box.WriteString("\n")
	box.WriteString("Download: " + base + m.state.DownloadPath)
	b.WriteString(BoxStyle.Render(box.String()))
	b.WriteString("\n")
}

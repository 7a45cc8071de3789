package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/renaud/comptoir/internal/models"
)

// renderView renders the complete TUI view
func (m Model) renderView() string {
	if m.Width == 0 || m.Height == 0 {
		return "Loading..."
	}

	if m.Width < MinWidth || m.Height < MinHeight {
		return m.renderCompact()
	}

	if m.Err != nil {
		return m.renderError()
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	// 3 panels + footer
	availableHeight := m.Height - 3
	panelHeight := availableHeight / 3

	queue := m.renderQueuePanel(panelHeight)
	failed := m.renderFailedPanel(panelHeight)
	recs := m.renderReconciliationsPanel(panelHeight)

	panels := lipgloss.JoinVertical(lipgloss.Left, queue, failed, recs)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, panels, footer)
}

// renderCompact renders a minimal view for small terminals
func (m Model) renderCompact() string {
	var s strings.Builder

	s.WriteString("comptoir monitor (resize for full view)\n\n")
	s.WriteString(m.connectivityBadge())
	s.WriteString("\n")
	s.WriteString(fmt.Sprintf("Pending: %d | In flight: %d | Failed: %d\n",
		m.Counts[models.StatusPending],
		m.Counts[models.StatusInFlight],
		m.Counts[models.StatusFailed]))
	s.WriteString("\nq:quit r:refresh ?:help")

	return s.String()
}

// renderError renders an error message
func (m Model) renderError() string {
	return fmt.Sprintf("Error: %v\n\nPress r to retry, q to quit", m.Err)
}

// renderQueuePanel renders pending and in-flight actions (Panel 1)
func (m Model) renderQueuePanel(height int) string {
	var content strings.Builder

	if len(m.Queue) == 0 {
		content.WriteString(subtleStyle.Render("Queue drained"))
	} else {
		offset := m.ScrollOffset[PanelQueue]
		visible := m.visibleItems(len(m.Queue), offset, height-2)
		for i := offset; i < offset+visible && i < len(m.Queue); i++ {
			content.WriteString(m.formatActionRow(m.Queue[i]))
			content.WriteString("\n")
		}
	}

	title := fmt.Sprintf("QUEUE (%d)", len(m.Queue))
	if len(m.Queue) > 0 && m.IsOnline {
		title = m.Spinner.View() + " " + title
	}
	return m.wrapPanel(title, content.String(), height, PanelQueue)
}

// renderFailedPanel renders terminally failed actions (Panel 2)
func (m Model) renderFailedPanel(height int) string {
	var content strings.Builder

	if len(m.Failed) == 0 {
		content.WriteString(subtleStyle.Render("No failed actions"))
	} else {
		offset := m.ScrollOffset[PanelFailed]
		visible := m.visibleItems(len(m.Failed), offset, height-2)
		for i := offset; i < offset+visible && i < len(m.Failed); i++ {
			a := m.Failed[i]
			line := m.formatActionRow(a)
			if a.LastError != "" {
				line += "  " + errorStyle.Render(truncateString(a.LastError, m.Width-40))
			}
			content.WriteString(line)
			content.WriteString("\n")
		}
	}

	return m.wrapPanel(fmt.Sprintf("FAILED (%d)", len(m.Failed)), content.String(), height, PanelFailed)
}

// renderReconciliationsPanel renders recorded identity mappings (Panel 3)
func (m Model) renderReconciliationsPanel(height int) string {
	var content strings.Builder

	if len(m.Reconciliations) == 0 {
		content.WriteString(subtleStyle.Render("No reconciliations recorded"))
	} else {
		offset := m.ScrollOffset[PanelReconciliations]
		visible := m.visibleItems(len(m.Reconciliations), offset, height-2)
		for i := offset; i < offset+visible && i < len(m.Reconciliations); i++ {
			r := m.Reconciliations[i]
			line := fmt.Sprintf("%s %s %s → %s",
				timestampStyle.Render(r.RecordedAt.Format("15:04:05")),
				subtleStyle.Render(string(r.Kind)),
				truncateString(r.TempID, 20),
				titleStyle.Render(r.ServerID))
			content.WriteString(line)
			content.WriteString("\n")
		}
	}

	title := fmt.Sprintf("RECONCILIATIONS (%d)", len(m.Reconciliations))
	return m.wrapPanel(title, content.String(), height, PanelReconciliations)
}

// renderFooter renders the footer with key bindings, connectivity, and counts
func (m Model) renderFooter() string {
	keys := helpStyle.Render("q:quit  tab:switch  j/k:scroll  r:refresh  ?:help")

	badge := m.connectivityBadge()

	failedAlert := ""
	if n := m.Counts[models.StatusFailed]; n > 0 {
		failedAlert = failedAlertStyle.Render(fmt.Sprintf(" [%d FAILED] ", n))
	}

	mirror := m.mirrorSummary()
	refresh := timestampStyle.Render(fmt.Sprintf("Last: %s", m.LastRefresh.Format("15:04:05")))

	padding := m.Width - lipgloss.Width(keys) - lipgloss.Width(badge) -
		lipgloss.Width(failedAlert) - lipgloss.Width(mirror) - lipgloss.Width(refresh) - 3
	if padding < 0 {
		padding = 0
	}

	return fmt.Sprintf(" %s%s%s %s%s%s", keys, strings.Repeat(" ", padding), badge, failedAlert, mirror, refresh)
}

// connectivityBadge renders the online/offline indicator
func (m Model) connectivityBadge() string {
	if m.IsOnline {
		return onlineBadgeStyle.Render(" ONLINE ")
	}
	return offlineBadgeStyle.Render(" OFFLINE ")
}

// mirrorSummary condenses per-kind record counts into one footer token
func (m Model) mirrorSummary() string {
	total := 0
	pending := 0
	for _, c := range m.Mirror {
		total += c.Total
		pending += c.Pending
	}
	if pending > 0 {
		return subtleStyle.Render(fmt.Sprintf(" %d records (%d pending) ", total, pending))
	}
	return subtleStyle.Render(fmt.Sprintf(" %d records ", total))
}

// renderHelp renders the help overlay
func (m Model) renderHelp() string {
	help := `
COMPTOIR MONITOR - Key Bindings

NAVIGATION:
  Tab / Shift+Tab   Switch between panels
  1 / 2 / 3         Jump to panel
  j / k, ↑ / ↓      Scroll active panel

ACTIONS:
  r                 Force refresh
  q / Ctrl+C        Quit

PANELS:
  QUEUE             Actions awaiting the server, in send order
  FAILED            Terminal failures (comptoir queue retry/ack)
  RECONCILIATIONS   Temporary → server identity mappings

Press ? to close help
`
	return helpStyle.Render(help)
}

// wrapPanel wraps content in a panel with title and border
func (m Model) wrapPanel(title, content string, height int, panel Panel) string {
	style := panelStyle
	if m.ActivePanel == panel {
		style = activePanelStyle
	}

	titleStr := panelTitleStyle.Render(title)
	contentWidth := m.Width - 4

	lines := strings.Split(content, "\n")
	contentHeight := height - 3

	for len(lines) < contentHeight {
		lines = append(lines, "")
	}
	if len(lines) > contentHeight {
		lines = lines[:contentHeight]
	}
	for i, line := range lines {
		if lipgloss.Width(line) > contentWidth {
			lines[i] = truncateString(line, contentWidth)
		}
	}

	body := strings.Join(lines, "\n")
	inner := lipgloss.JoinVertical(lipgloss.Left, titleStr, body)

	return style.Width(m.Width - 2).Render(inner)
}

// formatActionRow formats a queued action in a compact single-line format
func (m Model) formatActionRow(a models.Action) string {
	parts := []string{
		titleStyle.Render(fmt.Sprintf("#%d", a.SeqID)),
		fmt.Sprintf("%s %s", a.Op, a.Kind),
		subtleStyle.Render(truncateString(a.TargetID, 20)),
		formatStatus(a.Status),
	}
	if a.AttemptCount > 0 {
		parts = append(parts, subtleStyle.Render(fmt.Sprintf("attempt %d", a.AttemptCount)))
	}
	if a.NextAttemptAt != nil {
		parts = append(parts, timestampStyle.Render("next "+a.NextAttemptAt.Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

// visibleItems calculates how many items can be shown given scroll offset and height
func (m Model) visibleItems(total, offset, height int) int {
	remaining := total - offset
	if remaining > height {
		return height
	}
	return remaining
}

// truncateString truncates a string to maxLen with ellipsis
func truncateString(s string, maxLen int) string {
	if maxLen <= 3 {
		return s
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	if len(s) > maxLen-3 {
		return s[:maxLen-3] + "..."
	}
	return s
}

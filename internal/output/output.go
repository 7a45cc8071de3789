// Package output provides styled terminal output helpers (success, error,
// queue and record formatting) using lipgloss.
package output

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/renaud/comptoir/internal/models"
)

var (
	// Styles
	titleStyle   = lipgloss.NewStyle().Bold(true)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	offlineStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	onlineStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	statusStyles = map[models.ActionStatus]lipgloss.Style{
		models.StatusPending:  lipgloss.NewStyle().Foreground(lipgloss.Color("45")),
		models.StatusInFlight: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		models.StatusDone:     lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
		models.StatusFailed:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

// Success prints a success message
func Success(format string, args ...interface{}) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, args...)))
}

// Error prints an error message
func Error(format string, args ...interface{}) {
	fmt.Println(errorStyle.Render("ERROR: " + fmt.Sprintf(format, args...)))
}

// Warning prints a warning message
func Warning(format string, args ...interface{}) {
	fmt.Println(warningStyle.Render("Warning: " + fmt.Sprintf(format, args...)))
}

// Info prints an info message
func Info(format string, args ...interface{}) {
	fmt.Println(fmt.Sprintf(format, args...))
}

// JSON outputs data as JSON
func JSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// ConnectivityBadge renders the current online/offline state.
func ConnectivityBadge(online bool) string {
	if online {
		return onlineStyle.Render("ONLINE")
	}
	return offlineStyle.Render("OFFLINE")
}

// PendingMarker marks records whose local edits have not been confirmed yet.
func PendingMarker(pending bool) string {
	if pending {
		return pendingStyle.Render("~")
	}
	return " "
}

// StatusBadge returns a queue status indicator with symbol
// e.g., "○ pending", "▶ in_flight", "✓ done", "✗ failed"
func StatusBadge(status models.ActionStatus) string {
	symbols := map[models.ActionStatus]string{
		models.StatusPending:  "○",
		models.StatusInFlight: "▶",
		models.StatusDone:     "✓",
		models.StatusFailed:   "✗",
	}
	symbol, ok := symbols[status]
	if !ok {
		symbol = "?"
	}
	style, hasStyle := statusStyles[status]
	if hasStyle {
		return style.Render(fmt.Sprintf("%s %s", symbol, status))
	}
	return fmt.Sprintf("%s %s", symbol, status)
}

// FormatActionLine formats a queued action as a single line.
// e.g., "#12  create orders tmp_ab3f…  ○ pending  2m ago"
func FormatActionLine(a models.Action) string {
	parts := []string{
		titleStyle.Render(fmt.Sprintf("#%d", a.SeqID)),
		fmt.Sprintf("%s %s", a.Op, a.Kind),
		subtleStyle.Render(ShortID(a.TargetID)),
		StatusBadge(a.Status),
		subtleStyle.Render(FormatTimeAgo(a.EnqueuedAt)),
	}
	if a.AttemptCount > 0 {
		parts = append(parts, warningStyle.Render(fmt.Sprintf("attempt %d", a.AttemptCount)))
	}
	if a.Status == models.StatusFailed && a.LastError != "" {
		parts = append(parts, errorStyle.Render(TruncateToWidth(a.LastError, 50)))
	}
	return strings.Join(parts, "  ")
}

// FormatRecordLine formats a mirror record as a single line with its pending
// marker.
func FormatRecordLine(rec models.Record, summary string) string {
	return fmt.Sprintf("%s %s  %s", PendingMarker(rec.Pending), titleStyle.Render(ShortID(rec.ID)), summary)
}

// ShortID truncates long identities for display, keeping the tmp_ prefix
// visible so unconfirmed records are recognizable.
func ShortID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:16] + "…"
}

// FormatTimeAgo formats a time as a human-readable "ago" string
func FormatTimeAgo(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		return t.Format("2006-01-02")
	}
}

// SectionHeader returns a formatted section header for CLI output
// e.g., "\nFAILED ACTIONS:\n"
func SectionHeader(title string) string {
	return fmt.Sprintf("\n%s:\n", strings.ToUpper(title))
}

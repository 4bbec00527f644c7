package console

import (
	"time"

	"phoned/pkg/event"

	"github.com/google/uuid"
)

// DisplayLayout is the fixed-width layout of Row.Display.
const DisplayLayout = "02/01/2006 15:04:05"

// Icon names, one per notification kind.
const (
	IconError    = "dialog-error"
	IconInfo     = "dialog-information"
	IconWarning  = "dialog-warning"
	IconQuestion = "dialog-question"
)

// Row is one line of the console. Rows are never modified once appended.
type Row struct {
	ID        string                 `json:"id"`
	Severity  event.NotificationKind `json:"severity"`
	Icon      string                 `json:"icon"`
	Timestamp time.Time              `json:"timestamp"`
	Display   string                 `json:"display"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
}

// IconFor selects the icon shown for a notification kind.
func IconFor(kind event.NotificationKind) string {
	switch kind {
	case event.KindError:
		return IconError
	case event.KindInfo:
		return IconInfo
	case event.KindWarning:
		return IconWarning
	default:
		return IconQuestion
	}
}

// NewRow builds the row for a notification received at now.
func NewRow(n *event.NotificationPayload, now time.Time) Row {
	return Row{
		ID:        uuid.NewString(),
		Severity:  n.Kind,
		Icon:      IconFor(n.Kind),
		Timestamp: now,
		Display:   now.Local().Format(DisplayLayout),
		Title:     n.Title,
		Message:   n.Message,
	}
}

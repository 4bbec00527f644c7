// Package event defines the events a host delivers to phone plugins.
// An Event is a tagged variant: the Type selects which payload, if any,
// is populated. Events are owned by the host and are only valid for the
// duration of a dispatch call.
package event

import (
	"fmt"
	"strings"
)

// Type identifies the kind of occurrence an Event describes.
type Type int

const (
	TypeUnknown Type = iota
	Notification
	Online
	Offline
	Starting
	Started
	Stopping
	Stopped
	Suspend
	Resume
	KeyTone
	ModemEvent
)

var typeNames = map[Type]string{
	TypeUnknown:  "unknown",
	Notification: "notification",
	Online:       "online",
	Offline:      "offline",
	Starting:     "starting",
	Started:      "started",
	Stopping:     "stopping",
	Stopped:      "stopped",
	Suspend:      "suspend",
	Resume:       "resume",
	KeyTone:      "key-tone",
	ModemEvent:   "modem-event",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", int(t))
}

// ParseType returns the Type named by s.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range typeNames {
		if t != TypeUnknown && name == s {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown event type %q", s)
}

// NotificationKind is the severity of a notification.
type NotificationKind int

const (
	KindUnknown NotificationKind = iota
	KindError
	KindInfo
	KindWarning
)

func (k NotificationKind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindInfo:
		return "info"
	case KindWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// ParseKind maps a textual severity to a NotificationKind. Unrecognized
// text yields KindUnknown rather than an error: consumers are expected to
// fall back to a neutral presentation.
func ParseKind(s string) NotificationKind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return KindError
	case "info":
		return KindInfo
	case "warning":
		return KindWarning
	default:
		return KindUnknown
	}
}

// NotificationPayload is the payload of a Notification event.
type NotificationPayload struct {
	Kind    NotificationKind
	Title   string
	Message string
}

// Event is a single occurrence delivered by the host.
type Event struct {
	Type Type

	// Notification is set only when Type is Notification.
	Notification *NotificationPayload
}

// New creates a payload-less event of the given type.
func New(t Type) *Event {
	return &Event{Type: t}
}

// NewNotification creates a Notification event.
func NewNotification(kind NotificationKind, title, message string) *Event {
	return &Event{
		Type: Notification,
		Notification: &NotificationPayload{
			Kind:    kind,
			Title:   title,
			Message: message,
		},
	}
}

// MarshalText encodes the kind as its lower-case name.
func (k NotificationKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name; unknown names decode to KindUnknown.
func (k *NotificationKind) UnmarshalText(text []byte) error {
	*k = ParseKind(string(text))
	return nil
}

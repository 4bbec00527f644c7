// Package modem defines the requests a host sends to modem plugins.
package modem

import (
	"fmt"
	"strings"
)

// RequestType identifies a modem request.
type RequestType int

const (
	RequestUnknown RequestType = iota
	Authenticate
	Call
	CallAnswer
	CallHangup
	MessageSend
	ContactList
	SignalLevel
)

var requestNames = map[RequestType]string{
	RequestUnknown: "unknown",
	Authenticate:   "authenticate",
	Call:           "call",
	CallAnswer:     "call-answer",
	CallHangup:     "call-hangup",
	MessageSend:    "message-send",
	ContactList:    "contact-list",
	SignalLevel:    "signal-level",
}

func (t RequestType) String() string {
	if name, ok := requestNames[t]; ok {
		return name
	}
	return fmt.Sprintf("request(%d)", int(t))
}

// ParseRequestType returns the RequestType named by s.
func ParseRequestType(s string) (RequestType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range requestNames {
		if t != RequestUnknown && name == s {
			return t, nil
		}
	}
	return RequestUnknown, fmt.Errorf("unknown modem request %q", s)
}

// Request is a single request for a modem plugin.
// Number is used by call and message requests, Text by message sends
// and authentication.
type Request struct {
	Type   RequestType
	Number string
	Text   string
}

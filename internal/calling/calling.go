// Package calling defines the calling capability used to join meetings and
// observe call state, and a websocket gateway implementation of it.
package calling

import (
	"context"
	"strings"

	"github.com/joebot/meetchat/internal/credential"
)

// State is the lifecycle state of a call.
type State int

const (
	StateNone State = iota
	StateConnecting
	StateRinging
	StateEarlyMedia
	StateConnected
	StateDisconnecting
	StateDisconnected
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateNone:
		return "None"
	case StateConnecting:
		return "Connecting"
	case StateRinging:
		return "Ringing"
	case StateEarlyMedia:
		return "EarlyMedia"
	case StateConnected:
		return "Connected"
	case StateDisconnecting:
		return "Disconnecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// ParseState maps a provider state name onto the closed State set.
// Anything unrecognized becomes StateUnknown.
func ParseState(name string) State {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "")) {
	case "none":
		return StateNone
	case "connecting":
		return StateConnecting
	case "ringing":
		return StateRinging
	case "earlymedia":
		return StateEarlyMedia
	case "connected":
		return StateConnected
	case "disconnecting":
		return StateDisconnecting
	case "disconnected":
		return StateDisconnected
	default:
		return StateUnknown
	}
}

// Locator identifies a meeting to join.
type Locator interface {
	// Params is the wire form of the locator.
	Params() map[string]any
}

// MeetingLinkLocator locates a Teams meeting by its join link.
type MeetingLinkLocator struct {
	Link string
}

func (l MeetingLinkLocator) Params() map[string]any {
	return map[string]any{"kind": "teamsMeetingLink", "meetingLink": l.Link}
}

// JoinOptions configures how the local participant joins.
type JoinOptions struct {
	DisplayName string
	Muted       bool
}

// HangUpOptions configures leaving a call.
type HangUpOptions struct {
	ForEveryone bool
}

// Connector creates calling agents for a user.
type Connector interface {
	CreateAgent(ctx context.Context, cred credential.Credential) (Agent, error)
}

// Agent joins calls on behalf of one user.
type Agent interface {
	Join(ctx context.Context, loc Locator, opts JoinOptions) (Call, error)
	Close() error
}

// Call is a joined call.
type Call interface {
	ID() string
	State() State
	HangUp(ctx context.Context, opts HangUpOptions) error
	// OnStateChanged registers fn for state changes and returns a function
	// that removes the registration.
	OnStateChanged(fn func(State)) (unsubscribe func())
}

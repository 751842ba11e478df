package bus

import (
	"time"

	"github.com/joebot/meetchat/internal/calling"
)

// Message is a received chat message as shown to the user.
type Message struct {
	ID                string    `json:"id"`
	Content           string    `json:"content"`
	SenderDisplayName string    `json:"senderDisplayName"`
	CreatedOn         time.Time `json:"createdOn,omitzero"`
	Own               bool      `json:"own,omitempty"`
}

// Snapshot is a read-only copy of the session state.
type Snapshot struct {
	DisplayName string

	// Status follows the call state; Notice is the latest report text.
	Status string
	Notice string

	HasCallAgent  bool
	HasChatClient bool
	Joining       bool

	CallID    string
	CallState calling.State
	ThreadID  string
	HasThread bool

	Messages []Message
}

// InCall reports whether a call handle is held.
func (s Snapshot) InCall() bool { return s.CallID != "" }

// CanJoin reports whether the join action should be enabled.
func (s Snapshot) CanJoin() bool { return s.HasCallAgent && !s.Joining && !s.InCall() }

// CanLeave reports whether the leave action should be enabled.
func (s Snapshot) CanLeave() bool { return s.InCall() }

// CanSend reports whether the send action should be enabled.
func (s Snapshot) CanSend() bool { return s.HasThread }

// Report is the outcome of one coordinator operation, shown to the user
// once. Err is nil for successes.
type Report struct {
	Text string
	Err  error
}

// Failed reports whether the report carries an error.
func (r *Report) Failed() bool { return r != nil && r.Err != nil }

// Update is published after every change to the session.
type Update struct {
	Snapshot Snapshot
	Report   *Report
	// DraftCleared tells the UI to empty its chat input.
	DraftCleared bool
}

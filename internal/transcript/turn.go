// Package transcript holds the conversation transcript and the controller that
// streams assistant responses into it.
package transcript

import "time"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DisplayName returns a human-readable label for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return string(r)
	}
}

// Turn is one message unit in the transcript.
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Mode selects the chat endpoint a submission is sent to.
type Mode int

const (
	ModePlain Mode = iota
	ModeRetrieval
)

func (m Mode) String() string {
	switch m {
	case ModePlain:
		return "plain"
	case ModeRetrieval:
		return "retrieval"
	default:
		return "unknown"
	}
}

// State is the controller's position in a submission.
type State int

const (
	StateIdle State = iota
	StateSending
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSending:
		return "sending"
	case StateStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

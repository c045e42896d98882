// Package mediator implements the in-process, typed message bus that lets
// agents delegate subtasks, request help by capability, and broadcast to
// the whole registry. It is the runtime's only coordination primitive;
// there is no distributed consensus (spec: coordination is in-process).
package mediator

import (
	"time"

	"github.com/google/uuid"

	"github.com/agentcoreio/agentcore/capability"
)

// Kind is the message discriminator.
type Kind string

const (
	KindRequest     Kind = "request"
	KindResponse    Kind = "response"
	KindDelegation  Kind = "delegation"
	KindHelpRequest Kind = "help-request"
	KindStatus      Kind = "status"
	KindFeedback    Kind = "feedback"
	KindBroadcast   Kind = "broadcast"
	KindCancel      Kind = "cancel"
)

// Priority orders queued handling when a receiver batches work; the
// in-process bus itself dispatches immediately, but priority is carried
// through so handlers and stats can reason about it.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 5
	PriorityHigh     Priority = 8
	PriorityCritical Priority = 10
)

// Broadcast is the reserved receiver name meaning "every registered agent".
const Broadcast = "*"

// Message is the unit of inter-agent communication. It is created by the
// sender and resolved exactly once: fulfilled, timed out, or cancelled.
type Message struct {
	ID              string
	Sender          string
	Receiver        string
	Kind            Kind
	Priority        Priority
	Content         map[string]any
	Context         map[string]any
	ParentMessageID string
	RequiresResp    bool
	Timeout         time.Duration
	Timestamp       time.Time
}

// NewMessage returns a Message with a fresh ID and timestamp, and the
// spec's default 60s timeout when none is given.
func NewMessage(sender, receiver string, kind Kind) *Message {
	return &Message{
		ID:           uuid.NewString(),
		Sender:       sender,
		Receiver:     receiver,
		Kind:         kind,
		Priority:     PriorityNormal,
		Content:      map[string]any{},
		RequiresResp: true,
		Timeout:      60 * time.Second,
		Timestamp:    time.Now(),
	}
}

// Response is what a handler returns for a message that RequiresResp.
type Response struct {
	Success bool
	Payload map[string]any
	Error   string
}

// DelegationResult is derived from a completed delegation or help request.
type DelegationResult struct {
	Success       bool
	Payload       map[string]any
	Error         string
	DelegatedTo   string
	ExecutionTime time.Duration
}

// Handler is implemented by anything the Mediator can route a message to.
// AgentRegistry adapts registered agents to this interface.
type Handler interface {
	Name() string
	Capabilities() []capability.Capability
	Execute(task string, ctx map[string]any) (map[string]any, error)
	OnBroadcast(content map[string]any) (map[string]any, error)
}

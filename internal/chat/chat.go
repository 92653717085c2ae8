// Package chat defines the narrow capability surface the ordering engine
// needs from a chat transport: send a text, read back recent messages,
// press a button. Implementations live elsewhere; the engine never sees
// a concrete transport.
package chat

import "context"

// Action is one clickable control offered by a remote message. Data is the
// opaque invocation payload; an action with empty Data can be observed in
// diagnostics but not invoked.
type Action struct {
	Label string
	MsgID int
	Data  []byte
}

// Invocable reports whether the action carries an invocation payload.
func (a Action) Invocable() bool {
	return len(a.Data) > 0
}

// Message is one remote message: optional body text plus an optional
// row-major grid of actions.
type Message struct {
	ID      int
	Text    string
	Actions [][]Action
}

// HasActions reports whether the message offers at least one action.
func (m *Message) HasActions() bool {
	if m == nil {
		return false
	}
	for _, row := range m.Actions {
		if len(row) > 0 {
			return true
		}
	}
	return false
}

// Labels returns every action label in scan order (rows first, then columns).
func (m *Message) Labels() []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, row := range m.Actions {
		for _, a := range row {
			out = append(out, a.Label)
		}
	}
	return out
}

// Client is the transport seam. Recent returns messages most recent first.
type Client interface {
	SendText(ctx context.Context, peer string, text string) error
	Recent(ctx context.Context, peer string, limit int) ([]Message, error)
	Invoke(ctx context.Context, peer string, action Action) error
}

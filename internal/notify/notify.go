// Package notify delivers operator notifications for ordering outcomes.
// Every delivery is gated by a per-kind toggle persisted in settings, so
// the operator can mute noisy kinds without touching the code.
package notify

import "context"

// Kind classifies a notification for toggle lookup and display.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
	KindCrash   Kind = "crash"
	KindStartup Kind = "startup"
	KindWindow  Kind = "window"
	KindBotDown Kind = "bot_down"
)

// AllKinds lists every kind in display order.
var AllKinds = []Kind{KindSuccess, KindFailure, KindCrash, KindStartup, KindWindow, KindBotDown}

var descriptions = map[Kind]string{
	KindSuccess: "Order placed successfully",
	KindFailure: "Order failed after retries",
	KindCrash:   "Unexpected crash during an attempt",
	KindStartup: "Daemon started",
	KindWindow:  "Outside ordering window",
	KindBotDown: "Bot not responding",
}

// Description returns the operator-facing summary for the kind.
func (k Kind) Description() string { return descriptions[k] }

// Valid reports whether name is a recognized kind.
func Valid(name string) bool {
	_, ok := descriptions[Kind(name)]
	return ok
}

// DefaultToggles returns the initial delivery switches. The window kind
// is muted out of the box because a closed window repeats daily.
func DefaultToggles() map[string]bool {
	return map[string]bool{
		string(KindSuccess): true,
		string(KindFailure): true,
		string(KindCrash):   true,
		string(KindStartup): true,
		string(KindWindow):  false,
		string(KindBotDown): true,
	}
}

// Sink receives outcome notifications. Implementations must be safe for
// concurrent use and must not block the caller on delivery failures.
type Sink interface {
	Notify(ctx context.Context, kind Kind, text string)
}

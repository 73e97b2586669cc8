package domain

import "fmt"

// Action is a ledger-mutating action.
type Action int

const (
	ActionOpen Action = iota + 1
	ActionClose
)

const (
	actionStringOpen  = "open"
	actionStringClose = "close"
)

// String returns the string representation.
func (a Action) String() string {
	switch a {
	case ActionOpen:
		return actionStringOpen
	case ActionClose:
		return actionStringClose
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case actionStringOpen:
		*a = ActionOpen
	case actionStringClose:
		*a = ActionClose
	default:
		return fmt.Errorf("unknown action %q", string(text))
	}
	return nil
}

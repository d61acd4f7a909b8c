// Package sessions implements the console session state machine. Transitions
// produce new immutable Context values; a Machine serializes them for one
// console session and discards late results from earlier epochs.
package sessions

// State is a console session state.
type State int

const (
	Unauthenticated State = iota
	Resolving
	AwaitingChoice // super admin only
	DirectoryView  // super admin only
	TenantView
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Resolving:
		return "resolving"
	case AwaitingChoice:
		return "awaiting_choice"
	case DirectoryView:
		return "directory"
	case TenantView:
		return "tenant"
	default:
		return "unknown"
	}
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

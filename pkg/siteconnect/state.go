package siteconnect

// Status is the orchestrator's position in the connection pipeline.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusDiscoveringURL Status = "discovering-url"
	StatusDiscoveringAPI Status = "discovering-api"
	StatusTestingAuth    Status = "testing-auth"
	StatusSaving         Status = "saving"
	StatusSuccess        Status = "success"
	StatusError          Status = "error"
)

// TotalSteps is the number of progress steps a connection reports.
const TotalSteps = 4

// transitions is the complete forward transition table. Reset to idle is
// allowed from anywhere and is not listed.
var transitions = map[Status][]Status{
	StatusIdle:           {StatusDiscoveringURL},
	StatusDiscoveringURL: {StatusDiscoveringAPI, StatusError},
	StatusDiscoveringAPI: {StatusTestingAuth, StatusError},
	StatusTestingAuth:    {StatusSaving, StatusError},
	StatusSaving:         {StatusSuccess, StatusError},
}

// CanTransition reports whether from → to is a legal forward transition.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s only leaves via Reset.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// Loading reports whether a connection is in flight.
func (s Status) Loading() bool {
	return s != StatusIdle && !s.Terminal()
}

// step returns the progress step and message key shown for s.
func (s Status) step() (int, string) {
	switch s {
	case StatusDiscoveringURL:
		return 1, MsgDiscoveringURL
	case StatusDiscoveringAPI:
		return 2, MsgDiscoveringAPI
	case StatusTestingAuth:
		return 3, MsgTestingAuth
	case StatusSaving, StatusSuccess:
		return 4, MsgSaving
	default:
		return 0, ""
	}
}

// State is an immutable snapshot of the orchestrator, suitable for binding
// to a progress display.
type State struct {
	Status     Status
	Step       int
	TotalSteps int
	Message    string

	// Error is the short user-facing message of the last failure.
	Error     string
	ErrorKind Kind

	// Warnings are non-fatal findings, such as an outdated plugin.
	Warnings []string
}

// Loading reports whether the snapshot was taken mid-connection.
func (s State) Loading() bool {
	return s.Status.Loading()
}

func idleState() State {
	return State{Status: StatusIdle, TotalSteps: TotalSteps}
}

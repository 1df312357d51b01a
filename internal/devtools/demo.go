package devtools

// Scenario is a named starting state for the demo command: which dialog is
// open once the first board load lands.
type Scenario struct {
	Name          string
	OpenChallenge int
	OpenHint      int
	SolvesOpen    bool
	SubmitOpen    bool
	// Offline starts the client against an address nothing listens on.
	Offline bool
	// Unauthenticated drops the demo token so the backend rejects requests.
	Unauthenticated bool
}

var scenarioNames = []string{"board", "detail", "hints", "locked_hint", "solves", "submit", "offline", "auth_error"}

type Manager struct{}

func NewManager() *Manager { return &Manager{} }

func (m *Manager) Scenarios() []string {
	return append([]string(nil), scenarioNames...)
}

func (m *Manager) Resolve(name string) Scenario {
	switch name {
	case "board", "":
		return Scenario{Name: "board"}
	case "detail":
		return Scenario{Name: name, OpenChallenge: 2}
	case "hints":
		return Scenario{Name: name, OpenChallenge: 2, OpenHint: 1}
	case "locked_hint":
		return Scenario{Name: name, OpenChallenge: 3, OpenHint: 3}
	case "solves":
		return Scenario{Name: name, SolvesOpen: true}
	case "submit":
		return Scenario{Name: name, OpenChallenge: 5, SubmitOpen: true}
	case "offline":
		return Scenario{Name: name, Offline: true}
	case "auth_error", "unauthorized":
		return Scenario{Name: "auth_error", Unauthenticated: true}
	default:
		return Scenario{Name: "board"}
	}
}

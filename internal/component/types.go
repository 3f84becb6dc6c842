package component

import (
	"encoding/json"

	"celixdm/internal/registry"
)

// State is one of the four states a Component may occupy. Transitions
// are driven exclusively by handleChange, evaluated on the event loop.
type State int

const (
	// Inactive is the initial state and the state reached after a
	// lifecycle callback failure or an explicit Disable.
	Inactive State = iota
	// WaitingForRequired means at least one required dependency is not
	// yet resolved.
	WaitingForRequired
	// Instantiated means the user's init callback has run and start has
	// not (or stop has run after a required dependency was lost, while
	// the component waits for it to resolve again). Optional trackers
	// are opened on the first entry into TrackingOptional and stay open
	// afterwards.
	Instantiated
	// TrackingOptional means init/start have run and every optional
	// dependency is also being tracked; this is the steady-running
	// state.
	TrackingOptional
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "INACTIVE"
	case WaitingForRequired:
		return "WAITING_FOR_REQUIRED"
	case Instantiated:
		return "INSTANTIATED_AND_WAITING_FOR_REQUIRED"
	case TrackingOptional:
		return "TRACKING_OPTIONAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders State as its name rather than its underlying int,
// matching how the engine's CLI output presents every other enum.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// MarshalYAML renders State as its name rather than its underlying int.
func (s State) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// ProvidedInterface is one service a Component publishes once it enters
// TrackingOptional. RegistrationID is -1 while unregistered.
type ProvidedInterface struct {
	ServiceName    string
	Impl           interface{}
	Properties     registry.Properties
	RegistrationID int64
}

// Callbacks are the user lifecycle functions invoked around state
// transitions. Any of them may be nil. A non-nil error from Init, Start
// or Stop drives the component directly to Inactive; Deinit errors are
// logged but do not block teardown.
type Callbacks struct {
	Init   func() error
	Start  func() error
	Stop   func() error
	Deinit func() error
}

// Info is a point-in-time, lock-free snapshot of a Component's
// introspectable state, returned by Component.Info for CLI/debug output.
type Info struct {
	UUID          string           `json:"uuid" yaml:"uuid"`
	Name          string           `json:"name" yaml:"name"`
	State         State            `json:"state" yaml:"state"`
	TimesStarted  int              `json:"timesStarted" yaml:"timesStarted"`
	TimesResumed  int              `json:"timesResumed" yaml:"timesResumed"`
	Dependencies  []DependencyInfo `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ProvidedNames []string         `json:"providedNames,omitempty" yaml:"providedNames,omitempty"`
	LastError     string           `json:"lastError,omitempty" yaml:"lastError,omitempty"`
}

// DependencyInfo summarizes one dependency for introspection.
type DependencyInfo struct {
	Name      string `json:"name" yaml:"name"`
	Required  bool   `json:"required" yaml:"required"`
	Available bool   `json:"available" yaml:"available"`
	Strategy  string `json:"strategy" yaml:"strategy"`
}

package manager

import (
	"time"

	"celixdm/internal/component"
)

// StateChangeEvent reports one component's transition, published to
// every subscriber registered via SubscribeToStateChanges.
type StateChangeEvent struct {
	UUID      string
	Name      string
	OldState  component.State
	NewState  component.State
	Timestamp time.Time
}

package manager

import (
	"sync"

	"celixdm/internal/component"
	"celixdm/pkg/logging"
)

// Metrics tracks per-component and aggregate lifecycle counters for
// monitoring and debugging. Metrics are tracked per component name.
type Metrics struct {
	mu sync.RWMutex

	perComponent map[string]*componentMetrics

	totalTransitions  int64
	totalForcedInactive int64
	totalDestroyRetries int64
}

type componentMetrics struct {
	Name            string
	Transitions     int64
	ForcedInactive  int64
	DestroyRetries  int64
	LastState       component.State
}

// NewMetrics creates an empty Metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		perComponent: make(map[string]*componentMetrics),
	}
}

func (m *Metrics) getOrCreate(name string) *componentMetrics {
	if cm, ok := m.perComponent[name]; ok {
		return cm
	}
	cm := &componentMetrics{Name: name}
	m.perComponent[name] = cm
	return cm
}

// RecordTransition records one state transition for name.
func (m *Metrics) RecordTransition(name string, old, new_ component.State) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm := m.getOrCreate(name)
	cm.Transitions++
	cm.LastState = new_
	m.totalTransitions++

	if new_ == component.Inactive && old != component.Inactive {
		cm.ForcedInactive++
		m.totalForcedInactive++
		logging.Warn("ManagerMetrics", "component %q fell back to INACTIVE (count: %d)", name, cm.ForcedInactive)
	}
}

// RecordDestroyRetry records one destroy-quiescence poll that found the
// component not yet fully disabled.
func (m *Metrics) RecordDestroyRetry(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cm := m.getOrCreate(name)
	cm.DestroyRetries++
	m.totalDestroyRetries++
}

// Summary is a read-only snapshot of the aggregate counters.
type Summary struct {
	TotalTransitions    int64                  `json:"total_transitions"`
	TotalForcedInactive int64                  `json:"total_forced_inactive"`
	TotalDestroyRetries int64                  `json:"total_destroy_retries"`
	PerComponent        []ComponentMetricView  `json:"per_component"`
}

// ComponentMetricView is a read-only view of one component's counters.
type ComponentMetricView struct {
	Name           string          `json:"name"`
	Transitions    int64           `json:"transitions"`
	ForcedInactive int64           `json:"forced_inactive"`
	DestroyRetries int64           `json:"destroy_retries"`
	LastState      component.State `json:"last_state"`
}

// Snapshot returns a point-in-time Summary of all tracked metrics.
func (m *Metrics) Snapshot() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Summary{
		TotalTransitions:    m.totalTransitions,
		TotalForcedInactive: m.totalForcedInactive,
		TotalDestroyRetries: m.totalDestroyRetries,
	}
	for _, cm := range m.perComponent {
		s.PerComponent = append(s.PerComponent, ComponentMetricView{
			Name:           cm.Name,
			Transitions:    cm.Transitions,
			ForcedInactive: cm.ForcedInactive,
			DestroyRetries: cm.DestroyRetries,
			LastState:      cm.LastState,
		})
	}
	return s
}

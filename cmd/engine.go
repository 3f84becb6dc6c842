package cmd

import (
	"fmt"

	"celixdm/internal/bundle"
	"celixdm/internal/component"
	"celixdm/internal/eventloop"
	"celixdm/internal/manager"
	"celixdm/internal/registry"
	"celixdm/internal/servicedep"
)

// greeter is the trivial service implementation the built-in "greeter"
// component kinds publish and consume; its only job is to give the demo
// and list commands something concrete to wire together.
type greeter struct {
	name string
}

func (g *greeter) Greet() string {
	return fmt.Sprintf("hello from %s", g.name)
}

// buildComponents instantiates one component.Component per entry in m,
// wiring dependencies and provided interfaces per spec. Only two
// built-in kinds are supported: "greeter-provider" (provides the named
// service) and "greeter-consumer" (depends on it). Any other kind is an
// error — this engine has no class-loader, only a small built-in
// factory table.
func buildComponents(m bundle.Manifest, loop *eventloop.Loop, reg registry.Registry) ([]*component.Component, error) {
	components := make([]*component.Component, 0, len(m.Components))

	for _, spec := range m.Components {
		c := component.New(spec.Name, loop, reg)

		for _, depSpec := range spec.Dependencies {
			dep := servicedep.New(depSpec.Service, reg)
			if err := dep.SetRequired(depSpec.Required); err != nil {
				return nil, err
			}
			if depSpec.Strategy == "locking" {
				if err := dep.SetStrategy(servicedep.StrategyLocking); err != nil {
					return nil, err
				}
			}
			if depSpec.Filter != "" {
				if err := dep.SetFilter(depSpec.Filter); err != nil {
					return nil, err
				}
			}
			if err := c.AddServiceDependency(dep); err != nil {
				return nil, err
			}
		}

		switch spec.Kind {
		case "greeter-provider":
			impl := &greeter{name: spec.Name}
			for _, p := range spec.Provides {
				props := registry.Properties{}
				if p.Ranking != 0 {
					props[registry.PropServiceRanking] = p.Ranking
				}
				for k, v := range p.Extra {
					props[k] = v
				}
				if err := c.AddProvidedInterface(p.Service, impl, props); err != nil {
					return nil, err
				}
			}
		case "greeter-consumer":
			// No provided interfaces; it only tracks the dependencies
			// declared above.
		default:
			return nil, fmt.Errorf("bundle: component %q: unknown kind %q", spec.Name, spec.Kind)
		}

		components = append(components, c)
	}

	return components, nil
}

// newEngine builds a fresh event loop, in-memory registry and
// dependency manager, starting the loop.
func newEngine() (*eventloop.Loop, *registry.InMemoryRegistry, *manager.Manager) {
	loop := eventloop.New()
	loop.Start()

	reg := registry.NewInMemory()
	mgr := manager.New(manager.Config{Loop: loop, Registry: reg})
	return loop, reg, mgr
}

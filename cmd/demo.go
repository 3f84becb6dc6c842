package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"celixdm/internal/component"
	"celixdm/internal/registry"
	"celixdm/internal/servicedep"
)

// newDemoCmd creates the command that walks through a small scripted
// scenario against a throwaway in-memory engine: a consumer waits for a
// required dependency, the dependency is published, the consumer
// starts, then an optional dependency triggers a suspend/resume cycle
// before everything is torn down.
func newDemoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted dependency-resolution scenario",
		Long: `Runs a small, self-contained scenario demonstrating the engine's
lifecycle: a component waits on a required dependency, resolves once that
dependency is published, then has an optional dependency suspend and
resume it before the whole scenario is torn down.`,
		RunE: runDemo,
	}
}

func runDemo(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	loop, reg, mgr := newEngine()
	defer loop.Stop()

	consumer := component.New("consumer", loop, reg)
	required := servicedep.New("Greeter", reg)
	if err := consumer.AddServiceDependency(required); err != nil {
		return err
	}

	optional := servicedep.New("Logger", reg)
	if err := optional.SetRequired(false); err != nil {
		return err
	}
	if err := optional.SetStrategy(servicedep.StrategySuspend); err != nil {
		return err
	}
	if err := optional.SetCallbacks(servicedep.Callbacks{
		OnAdd: func(svc interface{}, props registry.Properties) {
			fmt.Fprintf(out, "  consumer: optional Logger bound, suspending around the callback\n")
		},
	}); err != nil {
		return err
	}
	if err := consumer.AddServiceDependency(optional); err != nil {
		return err
	}

	if err := consumer.SetCallbacks(component.Callbacks{
		Start: func() error {
			fmt.Fprintf(out, "  consumer: started\n")
			return nil
		},
		Stop: func() error {
			fmt.Fprintf(out, "  consumer: stopped\n")
			return nil
		},
	}); err != nil {
		return err
	}

	fmt.Fprintf(out, "1. enabling consumer (requires Greeter)\n")
	if err := mgr.Add(ctx, consumer); err != nil {
		return err
	}
	fmt.Fprintf(out, "   state: %s\n", consumer.State())

	fmt.Fprintf(out, "2. publishing Greeter\n")
	if _, err := reg.RegisterServiceAsync(ctx, "Greeter", "hello", nil); err != nil {
		return err
	}
	waitForDemoState(consumer, component.TrackingOptional)
	fmt.Fprintf(out, "   state: %s (times started: %d)\n", consumer.State(), consumer.Info().TimesStarted)

	fmt.Fprintf(out, "3. publishing optional Logger\n")
	if _, err := reg.RegisterServiceAsync(ctx, "Logger", "logger-impl", nil); err != nil {
		return err
	}
	waitForDemoResumed(consumer)
	fmt.Fprintf(out, "   times resumed: %d\n", consumer.Info().TimesResumed)

	fmt.Fprintf(out, "4. tearing the scenario down\n")
	return mgr.RemoveAll(ctx)
}

func waitForDemoState(c *component.Component, want component.State) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func waitForDemoResumed(c *component.Component) {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.Info().TimesResumed > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

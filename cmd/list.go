package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"celixdm/internal/bundle"
	"celixdm/internal/component"
)

// ctxWithTimeout binds this command's Context to a bounded timeout so a
// malformed bundle with unsatisfiable dependencies can't hang the CLI
// forever while we wait for it to settle.
func ctxWithTimeout(cmd *cobra.Command, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), d)
}

var (
	listBundlePath   string
	listOutputFormat string
	listSettleWait   time.Duration
)

// newListCmd creates the command that loads a bundle manifest,
// instantiates its components, lets the engine settle, and prints the
// resulting component states.
func newListCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "list",
		Short: "Load a bundle and list its components' resulting state",
		Long: `Loads a bundle manifest, instantiates its components against a fresh
in-memory registry, waits for the dependency graph to settle, then prints
each component's lifecycle state, dependency resolution and provided
services.`,
		RunE: runList,
	}

	c.Flags().StringVar(&listBundlePath, "bundle", "", "path to a bundle manifest YAML file (required)")
	c.Flags().StringVarP(&listOutputFormat, "output", "o", "table", "output format (table, json, yaml)")
	c.Flags().DurationVar(&listSettleWait, "settle", 200*time.Millisecond, "time to let the dependency graph settle before listing")
	_ = c.MarkFlagRequired("bundle")

	return c
}

func runList(cmd *cobra.Command, args []string) error {
	manifest, err := bundle.Load(listBundlePath)
	if err != nil {
		return err
	}

	loop, reg, mgr := newEngine()
	defer loop.Stop()

	components, err := buildComponents(manifest, loop, reg)
	if err != nil {
		return err
	}

	ctx, cancel := ctxWithTimeout(cmd, 5*time.Second)
	defer cancel()

	for _, c := range components {
		if err := mgr.Add(ctx, c); err != nil {
			return fmt.Errorf("enabling component %q: %w", c.Name(), err)
		}
	}

	time.Sleep(listSettleWait)
	mgr.Wait(ctx)

	if err := formatInfos(os.Stdout, mgr.CreateInfos(), listOutputFormat); err != nil {
		return err
	}

	return mgr.RemoveAll(ctx)
}

func formatInfos(w *os.File, infos []component.Info, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(infos, "", "  ")
		if err != nil {
			return fmt.Errorf("formatting infos as JSON: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil

	case "yaml":
		data, err := yaml.Marshal(infos)
		if err != nil {
			return fmt.Errorf("formatting infos as YAML: %w", err)
		}
		fmt.Fprint(w, string(data))
		return nil

	default:
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("NAME"),
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("STATE"),
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("STARTED"),
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("RESUMED"),
			text.Colors{text.FgHiBlue, text.Bold}.Sprint("PROVIDES"),
		})
		for _, info := range infos {
			t.AppendRow(table.Row{
				text.Colors{text.FgHiCyan, text.Bold}.Sprint(info.Name),
				info.State.String(),
				info.TimesStarted,
				info.TimesResumed,
				info.ProvidedNames,
			})
		}
		t.Render()
		return nil
	}
}

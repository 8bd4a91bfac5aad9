package app

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/specialistvlad/tesys/internal/peer"
)

// PluginRow is one line of the plugin listing.
type PluginRow struct {
	Name     string
	Handle   string
	Path     string
	Handlers []string
	Err      error
	// Available marks a module found on the search path that the
	// configuration does not load.
	Available bool
}

// ListPlugins loads the configured plugins, writes a table describing them
// and the unconfigured modules found on the search path to w, and unloads
// them again. The peer is not run. The table is written even when unloading
// fails.
func (a *App) ListPlugins(w io.Writer) ([]PluginRow, error) {
	report := a.peer.LoadPlugins(a.specs())
	rows := a.describe(report)

	available, discoverErr := a.available()
	rows = append(rows, available...)
	shutdownErr := a.peer.Shutdown()

	fmt.Fprintln(w, renderPlugins(rows))
	return rows, errors.Join(discoverErr, shutdownErr)
}

func (a *App) describe(report peer.LoadReport) []PluginRow {
	failed := make(map[string]error, len(report.Failed))
	for _, f := range report.Failed {
		failed[f.Name] = f.Err
	}

	mgr := a.peer.Manager()
	rows := make([]PluginRow, 0, len(a.model.Plugins))
	for _, spec := range a.model.Plugins {
		if err, ok := failed[spec.Name]; ok {
			rows = append(rows, PluginRow{Name: spec.Name, Err: err})
			continue
		}
		p, ok := mgr.Get(spec.Name)
		if !ok {
			continue
		}
		rows = append(rows, PluginRow{
			Name:     spec.Name,
			Handle:   p.Handle.String(),
			Path:     p.Path,
			Handlers: p.Handlers.Names(),
		})
	}
	return rows
}

// available lists discovered modules that are not in the configuration.
func (a *App) available() ([]PluginRow, error) {
	found, err := a.peer.Manager().Discover()
	if err != nil {
		return nil, err
	}
	configured := make(map[string]struct{}, len(a.model.Plugins))
	for _, p := range a.model.Plugins {
		configured[p.Name] = struct{}{}
	}
	var rows []PluginRow
	for _, name := range found {
		if _, ok := configured[name]; ok {
			continue
		}
		rows = append(rows, PluginRow{Name: name, Available: true})
	}
	return rows, nil
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

const rowFormat = "%-16s │ %-22s │ %-24s │ %s"

func renderPlugins(rows []PluginRow) string {
	if len(rows) == 0 {
		return mutedStyle.Render("No plugins configured.")
	}

	lines := []string{headerStyle.Render(fmt.Sprintf(rowFormat, "PLUGIN", "HANDLE", "HANDLERS", "STATUS"))}
	for _, r := range rows {
		switch {
		case r.Err != nil:
			lines = append(lines, failStyle.Render(fmt.Sprintf(rowFormat, r.Name, "-", "-", "failed: "+r.Err.Error())))
		case r.Available:
			lines = append(lines, mutedStyle.Render(fmt.Sprintf(rowFormat, r.Name, "-", "-", "available, not configured")))
		default:
			handlers := strings.Join(r.Handlers, ", ")
			if handlers == "" {
				handlers = "-"
			}
			lines = append(lines, fmt.Sprintf(rowFormat, r.Name, r.Handle, handlers, "loaded "+r.Path))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

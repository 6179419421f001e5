// Package report renders reconciliation results for people and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/edvin/svcctl/internal/catalog"
	"github.com/edvin/svcctl/internal/model"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses an --output value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	case "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unknown output format %q (want table, json or yaml)", s)
}

func encode(w io.Writer, f Format, v any) error {
	switch f {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("format %q cannot encode values", f)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

func stateColor(state string) text.Colors {
	switch state {
	case string(model.StateStarted):
		return text.Colors{text.FgGreen}
	case string(model.StateStopped), string(model.StateUnknownRunning):
		return text.Colors{text.FgYellow}
	}
	return text.Colors{text.FgHiBlack}
}

// Write renders a reconciliation report.
func Write(w io.Writer, rep *model.Report, f Format) error {
	if f != FormatTable {
		return encode(w, f, rep)
	}

	summary := newTable(w)
	summary.AppendRow(table.Row{"Cluster", rep.Cluster})
	summary.AppendRow(table.Row{"Service", fmt.Sprintf("%s (%s)", rep.Name, rep.Service)})
	summary.AppendRow(table.Row{"Target", rep.Target})
	summary.AppendRow(table.Row{"State", stateColor(rep.State).Sprint(rep.State)})
	summary.AppendRow(table.Row{"Changed", rep.Changed})
	if rep.RunID != "" {
		summary.AppendRow(table.Row{"Run", rep.RunID})
	}
	if rep.Error != nil {
		summary.AppendRow(table.Row{"Error", text.FgRed.Sprint(FailureMessage(rep.Error))})
	}
	summary.Render()

	if len(rep.Placements) > 0 {
		writePlacementTable(w, rep.Placements)
	}

	if len(rep.Actions) > 0 {
		actions := newTable(w)
		actions.AppendHeader(table.Row{"#", "Action"})
		for i, a := range rep.Actions {
			actions.AppendRow(table.Row{i + 1, a})
		}
		actions.Render()
	}
	return nil
}

// FailureMessage is the one-line description of a failed run.
func FailureMessage(e *model.ErrorReport) string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(e.Kind)
	}
	if e.Stage != "" {
		fmt.Fprintf(&b, " at %s", e.Stage)
	}
	if b.Len() > 0 {
		b.WriteString(": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// WritePlacements renders resolved placements.
func WritePlacements(w io.Writer, placements []model.Placement, f Format) error {
	if f != FormatTable {
		return encode(w, f, placements)
	}
	writePlacementTable(w, placements)
	return nil
}

func writePlacementTable(w io.Writer, placements []model.Placement) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Group", "Kind", "#", "Host", "Role"})
	for _, p := range placements {
		t.AppendRow(table.Row{p.Group, p.Kind, p.Ordinal, p.Host, p.RoleName})
	}
	t.Render()
}

// WriteCatalog renders the reconcilable service types.
func WriteCatalog(w io.Writer, descs []catalog.Descriptor, f Format) error {
	if f != FormatTable {
		return encode(w, f, descs)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Type", "Prefix", "Role groups", "Dependencies", "Init commands"})
	for _, d := range descs {
		var groups, deps, cmds []string
		for _, g := range d.RoleGroups {
			s := fmt.Sprintf("%s=%s", g.HostsKey, g.Kind)
			if g.Singleton {
				s += " (1)"
			}
			if g.Optional {
				s += " (optional)"
			}
			groups = append(groups, s)
		}
		for _, dep := range d.Dependencies {
			s := string(dep.Type)
			if !dep.Required {
				s += "?"
			}
			deps = append(deps, s)
		}
		for _, c := range d.InitCommands {
			cmds = append(cmds, fmt.Sprintf("%s %s", c.Name, c.Timeout))
		}
		t.AppendRow(table.Row{
			d.Type,
			d.Prefix,
			strings.Join(groups, "\n"),
			strings.Join(deps, ", "),
			strings.Join(cmds, "\n"),
		})
	}
	t.Render()
	return nil
}

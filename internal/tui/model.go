// Package tui is a read-only observability dashboard over a running
// Supervisor (spec.md §6): a single scrollable table of instances, refreshed
// on a tick, with no mutating actions. The teacher's tui package drives a
// mutating process.Manager through a multi-tab wizard-capable dashboard with
// a remote API client mode; none of that applies here; there is no
// scale/restart/delete/schedule surface in this domain's TUI, so the model
// is reduced to the table and its refresh loop.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/gophpeek/phpeek-pm/internal/registry"
	"github.com/gophpeek/phpeek-pm/internal/supervisor"
)

// Model is the bubbletea model for the instance table.
type Model struct {
	sup *supervisor.Supervisor

	tbl    table.Model
	width  int
	height int

	lastRefresh time.Time
	err         error
	quitting    bool
}

// NewModel builds a Model bound to a running Supervisor.
func NewModel(sup *supervisor.Supervisor) Model {
	columns := []table.Column{
		{Title: "GROUP", Width: 12},
		{Title: "MODULE", Width: 14},
		{Title: "INSTANCE", Width: 14},
		{Title: "STATE", Width: 11},
		{Title: "PID", Width: 8},
		{Title: "SVC", Width: 12},
		{Title: "RESTARTS", Width: 9},
		{Title: "CPU%", Width: 7},
		{Title: "MEM", Width: 10},
	}

	tbl := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(20),
	)
	tbl.SetStyles(getTableStyle())

	m := Model{sup: sup, tbl: tbl}
	m.refresh()
	return m
}

// Init starts the periodic refresh tick.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refresh pulls a consistent snapshot of the Registry and rebuilds the
// table's rows from it.
func (m *Model) refresh() {
	var instances []*registry.Instance
	m.sup.WithLock(func(reg *registry.Registry) {
		instances = reg.Instances()
	})

	rows := make([]table.Row, 0, len(instances))
	for _, inst := range instances {
		rows = append(rows, table.Row{
			inst.Module.Group.Name,
			inst.Module.Name,
			inst.Name,
			stateLabel(inst),
			pidLabel(inst.PID),
			svcLabel(inst.ServiceConnected),
			uintLabel(inst.RestartsInWindow),
			pctLabel(inst.CPUPctUser + inst.CPUPctKernel),
			bytesLabel(inst.MemRSS * 1024),
		})
	}
	m.tbl.SetRows(rows)
	m.lastRefresh = time.Now()
}

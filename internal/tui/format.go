package tui

import (
	"fmt"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

func stateLabel(inst *registry.Instance) string {
	if inst.Running {
		return successStyle.Render("running")
	}
	return dimStyle.Render("stopped")
}

func pidLabel(pid int) string {
	if pid <= 0 {
		return "-"
	}
	return fmt.Sprintf("%d", pid)
}

func svcLabel(connected bool) string {
	if connected {
		return successStyle.Render("connected")
	}
	return warnStyle.Render("down")
}

func uintLabel(v uint) string {
	return fmt.Sprintf("%d", v)
}

func pctLabel(v uint64) string {
	return fmt.Sprintf("%d%%", v)
}

func bytesLabel(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%dB", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f%ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

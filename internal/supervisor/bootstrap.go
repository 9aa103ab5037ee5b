package supervisor

import (
	"fmt"
	"os"
	"path/filepath"
)

// bootstrap creates <logs_path> and <logs_path>/instances with mode 0777,
// per spec.md §4.G bootstrap and the original supervisor's sandbox_path
// directory scaffolding (original_source/src/supervisor.c).
func bootstrap(logsPath string) error {
	if err := os.MkdirAll(logsPath, 0777); err != nil {
		return fmt.Errorf("supervisor: create logs dir: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(logsPath, "instances"), 0777); err != nil {
		return fmt.Errorf("supervisor: create instances dir: %w", err)
	}
	return nil
}

// Package runstore persists completed run logs as JSON files on disk.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agentflow/internal/logging"
	"agentflow/internal/model"
)

// Save writes one run log to <outDir>/run_<run_id>.json and returns the
// path. Aborted runs are persisted too; the trace is the point.
func Save(log *model.RunLog, outDir string) (string, error) {
	encoded, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode run log: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	path := filepath.Join(outDir, "run_"+log.RunID+".json")
	if err := os.WriteFile(path, append(encoded, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	logging.NewComponentLogger("runstore").Info("run log saved to %s", path)
	return path, nil
}

// Load reads a previously saved run log.
func Load(path string) (*model.RunLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run log: %w", err)
	}
	var log model.RunLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decode run log %s: %w", path, err)
	}
	return &log, nil
}

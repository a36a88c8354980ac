// Package flow implements the pipeline: normalize the prompt, fan out
// drafting workers, judge every draft, revise the flagged ones, and pick a
// single winner. Every intermediate artifact is recorded in the run log.
package flow

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"agentflow/internal/config"
	"agentflow/internal/llm"
	"agentflow/internal/logging"
	"agentflow/internal/model"
)

// NewRunID returns a run identifier of the form 20060102T150405_a1b2c3:
// a UTC timestamp for humans plus a random suffix for uniqueness.
func NewRunID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return now.UTC().Format("20060102T150405") + "_" + suffix
}

// Run executes one full pipeline run. The returned run log is always
// complete and persistable, including on abort; the error is non-nil exactly
// when the run aborted.
func Run(ctx context.Context, userPrompt string, cfg config.RunConfig, client llm.Client) (*model.RunLog, error) {
	startedAt := time.Now().UTC()
	runID := NewRunID(startedAt)
	logger := logging.NewComponentLogger("flow")
	logger.Info("run %s started (model=%s quorum=%d)", runID, cfg.Model, cfg.Quorum)

	rec := newRecorder(runID, userPrompt, cfg.Settings(), startedAt)
	engine := newEngine(client, cfg, rec, logger)

	err := engine.execute(ctx, userPrompt)

	status := model.RunDone
	if err != nil {
		status = model.RunAborted
		logger.Error("run %s aborted: %v", runID, err)
	} else {
		logger.Info("run %s done", runID)
	}
	rec.Finish(status, time.Now().UTC())
	return rec.Log(), err
}

func (e *Engine) execute(ctx context.Context, userPrompt string) error {
	task, err := e.normalize(ctx, userPrompt)
	if err != nil {
		return err
	}
	drafts, err := e.draft(ctx, task)
	if err != nil {
		return err
	}
	plans, err := e.evaluate(ctx, task, drafts)
	if err != nil {
		return err
	}
	if err := e.revise(ctx, task, drafts, plans); err != nil {
		return err
	}
	return e.finalize(ctx, task)
}

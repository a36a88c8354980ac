package flow

import (
	"sync"
	"time"

	"agentflow/internal/model"
)

// recorder is the single writer of the run log. Concurrent phase workers
// hand results to it; nothing else mutates the log.
type recorder struct {
	mu  sync.Mutex
	log *model.RunLog
}

func newRecorder(runID, userPrompt string, settings model.RunSettings, startedAt time.Time) *recorder {
	return &recorder{
		log: &model.RunLog{
			RunID:       runID,
			StartedAt:   startedAt,
			Status:      RunStatusPending,
			Config:      settings,
			UserPrompt:  userPrompt,
			Drafts:      []model.Draft{},
			EvalResults: []model.EvalResult{},
			EditPlans:   []model.EditPlan{},
			PhaseStatus: []model.PhaseStatus{},
		},
	}
}

// RunStatusPending marks a log still being written. It never appears in a
// persisted log; Finish always overwrites it.
const RunStatusPending model.RunStatus = "pending"

func (r *recorder) SetTask(task model.Task) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Task = &task
}

func (r *recorder) AddDraft(d model.Draft) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Drafts = append(r.log.Drafts, d)
}

func (r *recorder) AddEval(e model.EvalResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.EvalResults = append(r.log.EvalResults, e)
}

func (r *recorder) AddPlan(p model.EditPlan) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.EditPlans = append(r.log.EditPlans, p)
}

func (r *recorder) SetFinal(d model.FinalDecision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.FinalDecision = &d
}

func (r *recorder) AddPhaseStatus(s model.PhaseStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.PhaseStatus = append(r.log.PhaseStatus, s)
}

func (r *recorder) Finish(status model.RunStatus, completedAt time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Status = status
	r.log.CompletedAt = completedAt
}

// Log returns the underlying run log. Call only after all phase goroutines
// have finished.
func (r *recorder) Log() *model.RunLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log
}

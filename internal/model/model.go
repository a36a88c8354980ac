package model

import (
	"fmt"
	"time"
)

// Task is the normalized unit of work. Immutable once created; every later
// phase reads it but never mutates it.
type Task struct {
	UserPrompt      string    `json:"user_prompt"`
	Brief           string    `json:"brief"`
	Constraints     []string  `json:"constraints"`
	SuccessCriteria []string  `json:"success_criteria"`
	CreatedAt       time.Time `json:"created_at"`
}

// Uncertainty is a worker-reported assumption, gap, or risk in a draft.
type Uncertainty struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Impact      string `json:"impact"`
}

// DraftRef identifies a draft by producing role and revision index.
type DraftRef struct {
	Role     Role `json:"role"`
	Revision int  `json:"revision"`
}

func (r DraftRef) String() string {
	return fmt.Sprintf("%s_r%d", r.Role, r.Revision)
}

// Draft is one worker's proposed answer. Revisions produce new Draft values
// at revision+1; earlier revisions stay in the trace untouched.
type Draft struct {
	Role          Role          `json:"role"`
	Revision      int           `json:"revision"`
	Content       string        `json:"content"`
	Uncertainties []Uncertainty `json:"uncertainties,omitempty"`
	// ChangeSummary is set on revised drafts only.
	ChangeSummary []string `json:"change_summary,omitempty"`
}

func (d Draft) Ref() DraftRef {
	return DraftRef{Role: d.Role, Revision: d.Revision}
}

// FactCheckIssue is one problem the fact checker found in a draft.
type FactCheckIssue struct {
	Severity     string `json:"severity"`
	LocationHint string `json:"location_hint"`
	Description  string `json:"description"`
	Type         string `json:"type"`
}

// Synthesizer verdicts.
const (
	VerdictKeep   = "keep"
	VerdictRevise = "revise"
)

// EvalResult is one evaluator's judgment of one draft. Only the fields for
// the producing evaluator kind are populated.
type EvalResult struct {
	Evaluator Role     `json:"evaluator"`
	Target    DraftRef `json:"target"`

	// FactChecker
	Issues     []FactCheckIssue `json:"issues,omitempty"`
	Valid      *bool            `json:"valid,omitempty"`
	Confidence *float64         `json:"confidence,omitempty"`

	// RubricScorer
	Scores         map[string]float64 `json:"scores,omitempty"`
	Justifications map[string]string  `json:"justifications,omitempty"`
	OverallScore   *float64           `json:"overall_score,omitempty"`

	// Synthesizer
	Verdict string `json:"verdict,omitempty"`

	// Shared free-text summary.
	Summary string `json:"summary,omitempty"`
}

// EditInstruction is one concrete change a revision must (or may) apply.
type EditInstruction struct {
	Action   string `json:"action"`
	Required bool   `json:"required"`
}

// EditPlan carries the revision guidance for one draft. A plan exists only
// when the synthesis verdict for that draft was "revise".
type EditPlan struct {
	Target        DraftRef          `json:"target"`
	Strategy      string            `json:"strategy"`
	Instructions  []EditInstruction `json:"instructions"`
	OpenQuestions []string          `json:"open_questions,omitempty"`
}

// Empty reports whether the plan demands no changes.
func (p EditPlan) Empty() bool {
	return len(p.Instructions) == 0
}

// FinalDecision is the pipeline's terminus: exactly one winner per run.
type FinalDecision struct {
	Winner    DraftRef   `json:"winner"`
	Content   string     `json:"content"`
	Rationale string     `json:"rationale"`
	Ranking   []DraftRef `json:"ranking"`
}

// Phase names, in pipeline order.
type Phase string

const (
	PhaseNormalize Phase = "normalize"
	PhaseDraft     Phase = "draft"
	PhaseEvaluate  Phase = "evaluate"
	PhaseRevise    Phase = "revise"
	PhaseFinalize  Phase = "finalize"
)

// PhaseOutcome classifies how a phase ended.
type PhaseOutcome string

const (
	OutcomeSuccess  PhaseOutcome = "success"
	OutcomeDegraded PhaseOutcome = "degraded"
	OutcomeAborted  PhaseOutcome = "aborted"
)

// PhaseStatus is the per-phase entry in the run log's status record.
type PhaseStatus struct {
	Phase   Phase        `json:"phase"`
	Outcome PhaseOutcome `json:"outcome"`
	Detail  string       `json:"detail,omitempty"`
}

// RunStatus is the overall terminal state of a run.
type RunStatus string

const (
	RunDone    RunStatus = "done"
	RunAborted RunStatus = "aborted"
)

// RunSettings is the configuration snapshot persisted with a run. It carries
// no credentials.
type RunSettings struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Seed        *int64  `json:"seed,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Quorum      int     `json:"quorum"`
}

// RunLog is the complete, append-only trace of one run. Top-level JSON keys
// are a stable contract with downstream tooling; do not rename them without
// a documented schema migration.
type RunLog struct {
	RunID         string         `json:"run_id"`
	StartedAt     time.Time      `json:"started_at"`
	CompletedAt   time.Time      `json:"completed_at"`
	Status        RunStatus      `json:"status"`
	Config        RunSettings    `json:"config"`
	UserPrompt    string         `json:"user_prompt"`
	Task          *Task          `json:"task,omitempty"`
	Drafts        []Draft        `json:"drafts"`
	EvalResults   []EvalResult   `json:"eval_results"`
	EditPlans     []EditPlan     `json:"edit_plans"`
	FinalDecision *FinalDecision `json:"final_decision,omitempty"`
	PhaseStatus   []PhaseStatus  `json:"phase_status"`
}

// DraftsAtLatestRevision returns, per worker role, the highest-revision
// draft present, in canonical worker order.
func (l *RunLog) DraftsAtLatestRevision() []Draft {
	latest := make(map[Role]Draft)
	for _, d := range l.Drafts {
		cur, ok := latest[d.Role]
		if !ok || d.Revision > cur.Revision {
			latest[d.Role] = d
		}
	}
	out := make([]Draft, 0, len(latest))
	for _, role := range WorkerRoles() {
		if d, ok := latest[role]; ok {
			out = append(out, d)
		}
	}
	return out
}

// Package model holds the entities that flow through a run: the normalized
// task, worker drafts, evaluator results, edit plans, the final decision and
// the append-only run log that ties them together.
package model

// Role identifies one of the fixed pipeline personas. The set is closed:
// role behavior is data-driven via lookup tables, not open-ended dispatch.
type Role string

const (
	WorkerArchitect    Role = "Architect"
	WorkerPragmatist   Role = "Pragmatist"
	WorkerSkeptic      Role = "Skeptic"
	WorkerCommunicator Role = "Communicator"
	EvalFactChecker    Role = "FactChecker"
	EvalRubricScorer   Role = "RubricScorer"
	EvalSynthesizer    Role = "Synthesizer"
	RoleFinalJudge     Role = "FinalJudge"
	RoleNormalizer     Role = "Normalizer"
)

// WorkerRoles returns the four drafting roles in their canonical order.
func WorkerRoles() []Role {
	return []Role{WorkerArchitect, WorkerPragmatist, WorkerSkeptic, WorkerCommunicator}
}

// EvaluatorRoles returns the three evaluator roles in their canonical order.
func EvaluatorRoles() []Role {
	return []Role{EvalFactChecker, EvalRubricScorer, EvalSynthesizer}
}

// IsWorker reports whether the role produces drafts.
func (r Role) IsWorker() bool {
	switch r {
	case WorkerArchitect, WorkerPragmatist, WorkerSkeptic, WorkerCommunicator:
		return true
	}
	return false
}

// IsEvaluator reports whether the role judges drafts.
func (r Role) IsEvaluator() bool {
	switch r {
	case EvalFactChecker, EvalRubricScorer, EvalSynthesizer:
		return true
	}
	return false
}

// Persona returns the worker persona text injected into drafting prompts.
func (r Role) Persona() string {
	switch r {
	case WorkerArchitect:
		return "You prioritize structure, decomposition, and clear interfaces/abstractions. " +
			"You propose step-by-step plans and clean designs. You care about internal consistency."
	case WorkerPragmatist:
		return "You optimize for concrete, usable output: examples, commands, code, specific steps. " +
			"You care more about getting something that works than about perfect theory."
	case WorkerSkeptic:
		return "You relentlessly look for edge cases, missing assumptions, and things that could go wrong. " +
			"You still produce a full draft, but you actively highlight weak spots and risks."
	case WorkerCommunicator:
		return "You optimize for clarity, pedagogy, and naming. Your draft should be easy to read " +
			"for someone smart but not deeply familiar with the context."
	default:
		return "You are a capable assistant."
	}
}

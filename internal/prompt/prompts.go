// Package prompt builds the role prompts and pairs each with the response
// shape the role's output must satisfy.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"agentflow/internal/model"
	"agentflow/internal/schema"
)

// Prompt is one system+user message pair ready for the gateway.
type Prompt struct {
	System string
	User   string
}

// WithCorrection appends a note about a previous parse failure so the next
// attempt is biased toward shape-compliant output.
func (p Prompt) WithCorrection(parseErr error) Prompt {
	p.User += fmt.Sprintf(
		"\n\nIMPORTANT: your previous response was rejected (%v). "+
			"Respond with a single valid JSON object using exactly the required keys.",
		parseErr,
	)
	return p
}

func bulletList(items []string) string {
	if len(items) == 0 {
		return "- (none)"
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

func taskBlock(task model.Task) string {
	return fmt.Sprintf(`- BRIEF: %s
- CONSTRAINTS (must obey all):
%s
- SUCCESS CRITERIA (optimize for these):
%s`, task.Brief, bulletList(task.Constraints), bulletList(task.SuccessCriteria))
}

func jsonPayload(payload any) string {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func draftPayload(d model.Draft) map[string]any {
	return map[string]any{
		"draft_id":      d.Ref().String(),
		"content":       d.Content,
		"uncertainties": d.Uncertainties,
	}
}

// Normalizer asks the model to restate the raw prompt as a brief with
// constraints and success criteria.
func Normalizer(userPrompt string) (Prompt, schema.Shape) {
	system := `You are a task normalizer. Given a raw user prompt, you must produce:
- A concise, neutral brief (what is being asked).
- A list of explicit constraints.
- A list of success criteria (what "good" looks like).

Always answer as strict JSON with keys:
  "brief": string
  "constraints": string[]
  "success_criteria": string[]

Do not include any other keys.`
	user := fmt.Sprintf("Here is the raw prompt from the user:\n\n%s\n\nNormalize it now.", userPrompt)
	return Prompt{System: system, User: user}, NormalizerShape()
}

// Worker asks one persona for an independent draft plus its uncertainties.
func Worker(role model.Role, task model.Task) (Prompt, schema.Shape) {
	system := fmt.Sprintf(`You are %s, one of several independent workers. You DO NOT see other workers' drafts.

Persona:
%s

You are given:
%s

Your goals:
1. Produce your best draft solution.
2. Explicitly list your uncertainties, assumptions, and potential failure modes.

Output format (MUST be valid JSON with these exact keys):
{
  "draft": "full draft here as markdown or plain text",
  "uncertainties": [
    {
      "id": "short_machine_friendly_id",
      "description": "what you are unsure about",
      "type": "assumption | missing_info | ambiguity | risk | other",
      "impact": "low | medium | high"
    }
  ]
}`, role, role.Persona(), taskBlock(task))
	return Prompt{System: system, User: "Create your draft and uncertainty list now."}, WorkerShape()
}

// FactChecker asks for factual issues and an overall validity call on one draft.
func FactChecker(task model.Task, draft model.Draft) (Prompt, schema.Shape) {
	system := fmt.Sprintf(`You are the FactChecker evaluator.

You are given:
%s

You will see one draft with its worker-reported uncertainties.

Your tasks:
1. Identify factual issues, unsupported claims, and constraint violations.
2. Decide whether the draft is valid overall (no major factual problems).
3. Summarize how trustworthy the draft is.

Output strict JSON:
{
  "issues": [
    {
      "severity": "minor | moderate | major",
      "location_hint": "short quote or section reference",
      "description": "what is wrong or risky",
      "type": "factual_error | unsupported_claim | constraint_violation | inconsistency | other"
    }
  ],
  "valid": true,
  "confidence": 0,
  "summary": "1-3 sentences on trustworthiness; confidence is 0-10"
}

Do not include any other keys.`, taskBlock(task))
	user := "Here is the draft:\n\n" + jsonPayload(draftPayload(draft))
	return Prompt{System: system, User: user}, FactCheckerShape()
}

// RubricScorer asks for per-dimension scores on one draft.
func RubricScorer(task model.Task, draft model.Draft) (Prompt, schema.Shape) {
	system := fmt.Sprintf(`You are the RubricScorer evaluator.

You are given:
%s

Rubric dimensions (0-10 each):
- "correctness": factual / logical soundness; alignment with constraints.
- "coverage": how fully it addresses the brief and success criteria.
- "clarity": organization, naming, readability.
- "practicality": how implementable or actionable it is.
- "risk_handling": how well it handles uncertainties, risks, and edge cases.

Your tasks:
1. Score the draft on all 5 dimensions, with a one-sentence justification per
   dimension.
2. Compute an "overall_score" (0-100; weight dimensions equally).
3. Provide a 1-3 sentence summary.

Output strict JSON:
{
  "scores": {"correctness": 0, "coverage": 0, "clarity": 0, "practicality": 0, "risk_handling": 0},
  "justifications": {"correctness": "why this score", "coverage": "...", "clarity": "...", "practicality": "...", "risk_handling": "..."},
  "overall_score": 0,
  "summary": "..."
}`, taskBlock(task))
	user := "Here is the draft:\n\n" + jsonPayload(draftPayload(draft))
	return Prompt{System: system, User: user}, RubricShape()
}

// Synthesizer consolidates the other evaluations of one draft into a
// keep/revise verdict and, when revising, concrete instructions.
func Synthesizer(task model.Task, draft model.Draft, evals []model.EvalResult) (Prompt, schema.Shape) {
	system := fmt.Sprintf(`You are the Synthesizer/Editor evaluator.

You are given:
%s

You also receive one draft and the evaluations it has gathered so far
(fact check, rubric scores; either may be missing).

Your job:
1. Decide whether the draft should be revised or kept as-is.
2. If revising, produce an ordered list of concrete change instructions.
   Mark instructions that fix factual or constraint problems as required;
   mark stylistic or reuse suggestions as optional.
3. List remaining open questions the worker should address.

Output strict JSON:
{
  "verdict": "keep" or "revise",
  "summary": "1-3 sentence qualitative assessment",
  "strategy": "overall narrative of what to do (empty when keeping)",
  "instructions": [
    {"action": "concrete change instruction", "required": true}
  ],
  "open_questions": ["unresolved uncertainties to clarify"]
}

When the verdict is "keep", "instructions" MUST be an empty list.`, taskBlock(task))

	payload := map[string]any{
		"draft":       draftPayload(draft),
		"evaluations": evals,
	}
	user := "Here is the context:\n\n" + jsonPayload(payload)
	return Prompt{System: system, User: user}, SynthesizerShape()
}

// RevisionWorker asks the original persona to rework its own draft per plan.
func RevisionWorker(role model.Role, task model.Task, draft model.Draft, plan model.EditPlan) (Prompt, schema.Shape) {
	system := fmt.Sprintf(`You are %s revising your own earlier draft.

You are given:
- Your previous draft and its uncertainties.
- An edit plan created by an editor.
- The original brief, constraints, and success criteria:
%s

Your tasks:
1. Produce a revised draft that follows the edit plan. Required instructions
   are mandatory; optional ones are at your discretion.
2. Keep what is good in your previous draft if it still fits the plan.
3. Update your list of uncertainties: which are resolved, which remain, and any new ones.

Output strict JSON:
{
  "revised_draft": "full revised draft",
  "change_summary": ["short bullet points describing main changes"],
  "updated_uncertainties": [
    {
      "id": "short_id",
      "description": "updated description",
      "type": "assumption | missing_info | ambiguity | risk | other",
      "impact": "low | medium | high"
    }
  ]
}`, role, taskBlock(task))

	payload := map[string]any{
		"your_previous_draft": draftPayload(draft),
		"edit_plan":           plan,
	}
	user := "Context:\n\n" + jsonPayload(payload) + "\n\nRevise your draft now."
	return Prompt{System: system, User: user}, RevisionShape()
}

// FinalJudge asks for a winner among the final-state drafts.
func FinalJudge(task model.Task, drafts []model.Draft, evals []model.EvalResult) (Prompt, schema.Shape) {
	ids := make([]string, len(drafts))
	for i, d := range drafts {
		ids[i] = d.Ref().String()
	}

	system := fmt.Sprintf(`You are the FinalJudge.

You are given:
%s

You will see the final drafts (revised where a revision happened) and their
earlier evaluations.

Your tasks:
1. Rank all drafts from best to worst.
2. Select a single winner and justify your choice.

The only valid draft ids are: %s

Output strict JSON:
{
  "winner": "draft_id",
  "ranking": ["best_draft_id", "..."],
  "reasoning": "why this winner"
}`, taskBlock(task), strings.Join(ids, ", "))

	simpleDrafts := make([]map[string]any, len(drafts))
	for i, d := range drafts {
		payload := draftPayload(d)
		payload["change_summary"] = d.ChangeSummary
		simpleDrafts[i] = payload
	}
	payload := map[string]any{
		"drafts":      simpleDrafts,
		"evaluations": evals,
	}
	user := "Here is the context:\n\n" + jsonPayload(payload)
	return Prompt{System: system, User: user}, FinalJudgeShape()
}

package flow

import (
	"fmt"
	"time"

	"agentflow/internal/model"
	"agentflow/internal/schema"
)

// Decoders turn shape-validated objects into model values. Top-level fields
// were already type-checked by the parser, so assertions on them are safe;
// nested object fields are decoded leniently.

func fieldString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func fieldBool(m map[string]any, key string) bool {
	b, _ := m[key].(bool)
	return b
}

func fieldNumber(m map[string]any, key string) float64 {
	n, _ := m[key].(float64)
	return n
}

func fieldStringList(m map[string]any, key string) []string {
	raw, _ := m[key].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func fieldObjectList(m map[string]any, key string) []map[string]any {
	raw, _ := m[key].([]any)
	out := make([]map[string]any, 0, len(raw))
	for _, v := range raw {
		if obj, ok := v.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func fieldNumberMap(m map[string]any, key string) map[string]float64 {
	raw, _ := m[key].(map[string]any)
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if n, ok := v.(float64); ok {
			out[k] = n
		}
	}
	return out
}

func fieldStringMap(m map[string]any, key string) map[string]string {
	raw, _ := m[key].(map[string]any)
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

func decodeTask(userPrompt string, obj map[string]any, now time.Time) model.Task {
	return model.Task{
		UserPrompt:      userPrompt,
		Brief:           fieldString(obj, "brief"),
		Constraints:     fieldStringList(obj, "constraints"),
		SuccessCriteria: fieldStringList(obj, "success_criteria"),
		CreatedAt:       now,
	}
}

func decodeUncertainties(objs []map[string]any) []model.Uncertainty {
	out := make([]model.Uncertainty, 0, len(objs))
	for _, o := range objs {
		out = append(out, model.Uncertainty{
			ID:          fieldString(o, "id"),
			Description: fieldString(o, "description"),
			Type:        fieldString(o, "type"),
			Impact:      fieldString(o, "impact"),
		})
	}
	return out
}

func decodeDraft(role model.Role, obj map[string]any) model.Draft {
	return model.Draft{
		Role:          role,
		Revision:      0,
		Content:       fieldString(obj, "draft"),
		Uncertainties: decodeUncertainties(fieldObjectList(obj, "uncertainties")),
	}
}

func decodeRevision(prev model.Draft, obj map[string]any) model.Draft {
	return model.Draft{
		Role:          prev.Role,
		Revision:      prev.Revision + 1,
		Content:       fieldString(obj, "revised_draft"),
		Uncertainties: decodeUncertainties(fieldObjectList(obj, "updated_uncertainties")),
		ChangeSummary: fieldStringList(obj, "change_summary"),
	}
}

func decodeFactCheck(target model.DraftRef, obj map[string]any) model.EvalResult {
	issues := make([]model.FactCheckIssue, 0)
	for _, o := range fieldObjectList(obj, "issues") {
		issues = append(issues, model.FactCheckIssue{
			Severity:     fieldString(o, "severity"),
			LocationHint: fieldString(o, "location_hint"),
			Description:  fieldString(o, "description"),
			Type:         fieldString(o, "type"),
		})
	}
	valid := fieldBool(obj, "valid")
	confidence := fieldNumber(obj, "confidence")
	return model.EvalResult{
		Evaluator:  model.EvalFactChecker,
		Target:     target,
		Issues:     issues,
		Valid:      &valid,
		Confidence: &confidence,
		Summary:    fieldString(obj, "summary"),
	}
}

func decodeRubric(target model.DraftRef, obj map[string]any) model.EvalResult {
	overall := fieldNumber(obj, "overall_score")
	return model.EvalResult{
		Evaluator:      model.EvalRubricScorer,
		Target:         target,
		Scores:         fieldNumberMap(obj, "scores"),
		Justifications: fieldStringMap(obj, "justifications"),
		OverallScore:   &overall,
		Summary:        fieldString(obj, "summary"),
	}
}

// checkSynthesis rejects a revise verdict that carries no instructions: a
// plan that demands nothing cannot justify a revision, so the response is
// re-asked like any other shape violation.
func checkSynthesis(obj map[string]any) error {
	if fieldString(obj, "verdict") == model.VerdictRevise && len(fieldObjectList(obj, "instructions")) == 0 {
		return &schema.ParseError{
			Reason:   schema.ReasonSchemaMismatch,
			Field:    "instructions",
			Expected: "at least one instruction when the verdict is revise",
			Actual:   "empty list",
		}
	}
	return nil
}

// decodeSynthesis returns the synthesizer's verdict and, when the verdict is
// revise, the edit plan. A keep verdict never produces a plan, and neither
// does a plan with no instructions.
func decodeSynthesis(target model.DraftRef, obj map[string]any) (model.EvalResult, *model.EditPlan) {
	result := model.EvalResult{
		Evaluator: model.EvalSynthesizer,
		Target:    target,
		Verdict:   fieldString(obj, "verdict"),
		Summary:   fieldString(obj, "summary"),
	}
	if result.Verdict != model.VerdictRevise {
		return result, nil
	}

	instructions := make([]model.EditInstruction, 0)
	for _, o := range fieldObjectList(obj, "instructions") {
		instructions = append(instructions, model.EditInstruction{
			Action:   fieldString(o, "action"),
			Required: fieldBool(o, "required"),
		})
	}
	plan := &model.EditPlan{
		Target:        target,
		Strategy:      fieldString(obj, "strategy"),
		Instructions:  instructions,
		OpenQuestions: fieldStringList(obj, "open_questions"),
	}
	if plan.Empty() {
		return result, nil
	}
	return result, plan
}

// checkFinal builds the semantic validator for the final judgment: the
// winner must name one of the candidate drafts, and the ranking must list
// every candidate exactly once.
func checkFinal(drafts []model.Draft) func(map[string]any) error {
	known := make(map[string]bool, len(drafts))
	for _, d := range drafts {
		known[d.Ref().String()] = true
	}
	return func(obj map[string]any) error {
		winner := fieldString(obj, "winner")
		if !known[winner] {
			return &schema.ParseError{
				Reason:   schema.ReasonSchemaMismatch,
				Field:    "winner",
				Expected: "one of the candidate draft ids",
				Actual:   winner,
			}
		}

		seen := make(map[string]bool, len(known))
		for _, id := range fieldStringList(obj, "ranking") {
			if !known[id] || seen[id] {
				return &schema.ParseError{
					Reason:   schema.ReasonSchemaMismatch,
					Field:    "ranking",
					Expected: "each candidate draft id exactly once",
					Actual:   fmt.Sprintf("%q", id),
				}
			}
			seen[id] = true
		}
		if len(seen) != len(known) {
			return &schema.ParseError{
				Reason:   schema.ReasonSchemaMismatch,
				Field:    "ranking",
				Expected: "each candidate draft id exactly once",
				Actual:   fmt.Sprintf("%d of %d candidates ranked", len(seen), len(known)),
			}
		}
		return nil
	}
}

func decodeFinal(obj map[string]any, drafts []model.Draft) model.FinalDecision {
	byID := make(map[string]model.Draft, len(drafts))
	for _, d := range drafts {
		byID[d.Ref().String()] = d
	}
	winner := byID[fieldString(obj, "winner")]

	ranking := make([]model.DraftRef, 0, len(drafts))
	for _, id := range fieldStringList(obj, "ranking") {
		if d, ok := byID[id]; ok {
			ranking = append(ranking, d.Ref())
		}
	}
	return model.FinalDecision{
		Winner:    winner.Ref(),
		Content:   winner.Content,
		Rationale: fieldString(obj, "reasoning"),
		Ranking:   ranking,
	}
}

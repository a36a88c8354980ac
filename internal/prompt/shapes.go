package prompt

import "agentflow/internal/schema"

// Response shapes per role kind. These are the contracts the parser enforces
// on raw model output; role callers retry when a response violates them.

func NormalizerShape() schema.Shape {
	return schema.Shape{
		Name: "normalizer",
		Fields: []schema.Field{
			{Name: "brief", Kind: schema.KindString},
			{Name: "constraints", Kind: schema.KindStringList},
			{Name: "success_criteria", Kind: schema.KindStringList},
		},
	}
}

func WorkerShape() schema.Shape {
	return schema.Shape{
		Name: "worker_draft",
		Fields: []schema.Field{
			{Name: "draft", Kind: schema.KindString},
			{Name: "uncertainties", Kind: schema.KindObjectList},
		},
	}
}

func FactCheckerShape() schema.Shape {
	return schema.Shape{
		Name: "fact_check",
		Fields: []schema.Field{
			{Name: "issues", Kind: schema.KindObjectList},
			{Name: "valid", Kind: schema.KindBool},
			{Name: "confidence", Kind: schema.KindNumber},
			{Name: "summary", Kind: schema.KindString},
		},
	}
}

func RubricShape() schema.Shape {
	return schema.Shape{
		Name: "rubric_scores",
		Fields: []schema.Field{
			{Name: "scores", Kind: schema.KindNumberMap},
			{Name: "justifications", Kind: schema.KindStringMap},
			{Name: "overall_score", Kind: schema.KindNumber},
			{Name: "summary", Kind: schema.KindString},
		},
	}
}

func SynthesizerShape() schema.Shape {
	return schema.Shape{
		Name: "synthesis",
		Fields: []schema.Field{
			{Name: "verdict", Kind: schema.KindEnum, Enum: []string{"keep", "revise"}},
			{Name: "summary", Kind: schema.KindString},
			{Name: "strategy", Kind: schema.KindString},
			{Name: "instructions", Kind: schema.KindObjectList},
			{Name: "open_questions", Kind: schema.KindStringList},
		},
	}
}

func RevisionShape() schema.Shape {
	return schema.Shape{
		Name: "revision",
		Fields: []schema.Field{
			{Name: "revised_draft", Kind: schema.KindString},
			{Name: "change_summary", Kind: schema.KindStringList},
			{Name: "updated_uncertainties", Kind: schema.KindObjectList},
		},
	}
}

func FinalJudgeShape() schema.Shape {
	return schema.Shape{
		Name: "final_judgment",
		Fields: []schema.Field{
			{Name: "winner", Kind: schema.KindString},
			{Name: "ranking", Kind: schema.KindStringList},
			{Name: "reasoning", Kind: schema.KindString},
		},
	}
}

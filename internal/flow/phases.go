package flow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"agentflow/internal/config"
	"agentflow/internal/llm"
	"agentflow/internal/logging"
	"agentflow/internal/model"
	"agentflow/internal/prompt"
)

// maxEvalConcurrency bounds simultaneous outbound calls during evaluation.
const maxEvalConcurrency = 8

// Engine drives one run through the phase sequence. Phases run in order;
// fan-out inside a phase is concurrent, but results always land in the run
// log through the single-writer recorder.
type Engine struct {
	cfg    config.RunConfig
	caller *caller
	rec    *recorder
	logger logging.Logger
}

func (e *Engine) phaseCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.PhaseTimeout)
}

func (e *Engine) abortPhase(phase model.Phase, reason string, err error) error {
	detail := reason
	if err != nil {
		detail = fmt.Sprintf("%s: %v", reason, err)
	}
	e.rec.AddPhaseStatus(model.PhaseStatus{Phase: phase, Outcome: model.OutcomeAborted, Detail: detail})
	return &model.PhaseFailure{Phase: phase, Reason: reason, Err: err}
}

func (e *Engine) closePhase(phase model.Phase, degradedDetail string) {
	status := model.PhaseStatus{Phase: phase, Outcome: model.OutcomeSuccess}
	if degradedDetail != "" {
		status.Outcome = model.OutcomeDegraded
		status.Detail = degradedDetail
	}
	e.rec.AddPhaseStatus(status)
}

// normalize turns the raw prompt into the immutable task. There is no
// degraded outcome here: without a task nothing downstream can run.
func (e *Engine) normalize(ctx context.Context, userPrompt string) (model.Task, error) {
	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	p, shape := prompt.Normalizer(userPrompt)
	obj, err := e.caller.invoke(pctx, model.RoleNormalizer, p, shape, nil)
	if err != nil {
		return model.Task{}, e.abortPhase(model.PhaseNormalize, "normalizer failed", err)
	}

	task := decodeTask(userPrompt, obj, time.Now().UTC())
	e.rec.SetTask(task)
	e.closePhase(model.PhaseNormalize, "")
	e.logger.Info("task normalized: %s", task.Brief)
	return task, nil
}

// draft fans out all workers in parallel. The phase survives individual
// worker failures as long as the quorum of drafts is met.
func (e *Engine) draft(ctx context.Context, task model.Task) ([]model.Draft, error) {
	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	roles := model.WorkerRoles()
	results := make([]*model.Draft, len(roles))

	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(len(roles))
	for i, role := range roles {
		g.Go(func() error {
			p, shape := prompt.Worker(role, task)
			obj, err := e.caller.invoke(gctx, role, p, shape, nil)
			if err != nil {
				e.logger.Warn("worker %s dropped: %v", role, err)
				return nil
			}
			d := decodeDraft(role, obj)
			results[i] = &d
			return nil
		})
	}
	_ = g.Wait()

	var drafts []model.Draft
	var failed []string
	for i, role := range roles {
		if results[i] != nil {
			drafts = append(drafts, *results[i])
			e.rec.AddDraft(*results[i])
		} else {
			failed = append(failed, string(role))
		}
	}

	if len(drafts) < e.cfg.Quorum {
		return nil, e.abortPhase(model.PhaseDraft,
			fmt.Sprintf("quorum not met: %d/%d drafts", len(drafts), e.cfg.Quorum), nil)
	}
	detail := ""
	if len(failed) > 0 {
		detail = "workers failed: " + strings.Join(failed, ", ")
	}
	e.closePhase(model.PhaseDraft, detail)
	e.logger.Info("draft phase complete: %d/%d drafts", len(drafts), len(roles))
	return drafts, nil
}

// evaluateDraft runs the fact checker and rubric scorer on one draft in
// parallel, then the synthesizer over whatever they produced. It returns the
// edit plan (nil when the verdict is keep) and whether anything degraded.
func (e *Engine) evaluateDraft(ctx context.Context, task model.Task, draft model.Draft) (*model.EditPlan, bool) {
	target := draft.Ref()
	degraded := false

	type evalOut struct {
		result model.EvalResult
		err    error
	}
	outs := make([]evalOut, 2)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	g.Go(func() error {
		p, shape := prompt.FactChecker(task, draft)
		obj, err := e.caller.invoke(gctx, model.EvalFactChecker, p, shape, nil)
		if err != nil {
			outs[0] = evalOut{err: err}
			return nil
		}
		outs[0] = evalOut{result: decodeFactCheck(target, obj)}
		return nil
	})
	g.Go(func() error {
		p, shape := prompt.RubricScorer(task, draft)
		obj, err := e.caller.invoke(gctx, model.EvalRubricScorer, p, shape, nil)
		if err != nil {
			outs[1] = evalOut{err: err}
			return nil
		}
		outs[1] = evalOut{result: decodeRubric(target, obj)}
		return nil
	})
	_ = g.Wait()

	var evals []model.EvalResult
	for _, out := range outs {
		if out.err != nil {
			degraded = true
			e.logger.Warn("evaluator dropped for %s: %v", target, out.err)
			continue
		}
		evals = append(evals, out.result)
		e.rec.AddEval(out.result)
	}

	// The synthesizer works from whatever evaluations survived, but never
	// from none: with zero signals the only safe verdict is keep.
	if len(evals) == 0 {
		e.logger.Warn("no evaluations available for %s, keeping draft", target)
		return nil, true
	}

	p, shape := prompt.Synthesizer(task, draft, evals)
	obj, err := e.caller.invoke(ctx, model.EvalSynthesizer, p, shape, checkSynthesis)
	if err != nil {
		// Without a verdict the draft is kept as-is.
		e.logger.Warn("synthesizer dropped for %s, keeping draft: %v", target, err)
		return nil, true
	}
	result, plan := decodeSynthesis(target, obj)
	e.rec.AddEval(result)
	if plan != nil {
		e.rec.AddPlan(*plan)
	}
	return plan, degraded
}

// evaluate judges every draft independently and in parallel. Evaluator
// failures degrade the draft's judgment rather than aborting the phase.
func (e *Engine) evaluate(ctx context.Context, task model.Task, drafts []model.Draft) ([]model.EditPlan, error) {
	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	plans := make([]*model.EditPlan, len(drafts))
	degradedFlags := make([]bool, len(drafts))

	// Each draft fans out up to 3 gateway calls; bound the draft-level
	// parallelism so total outbound concurrency stays under the cap.
	limit := len(drafts)
	if limit*3 > maxEvalConcurrency {
		limit = maxEvalConcurrency / 3
	}

	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(limit)
	for i, draft := range drafts {
		g.Go(func() error {
			plans[i], degradedFlags[i] = e.evaluateDraft(gctx, task, draft)
			return nil
		})
	}
	_ = g.Wait()

	if err := pctx.Err(); err != nil {
		return nil, e.abortPhase(model.PhaseEvaluate, "evaluation interrupted", err)
	}

	var out []model.EditPlan
	var degradedTargets []string
	for i, draft := range drafts {
		if plans[i] != nil {
			out = append(out, *plans[i])
		}
		if degradedFlags[i] {
			degradedTargets = append(degradedTargets, draft.Ref().String())
		}
	}
	detail := ""
	if len(degradedTargets) > 0 {
		detail = "degraded judgments: " + strings.Join(degradedTargets, ", ")
	}
	e.closePhase(model.PhaseEvaluate, detail)
	e.logger.Info("evaluate phase complete: %d drafts flagged for revision", len(out))
	return out, nil
}

// revise reworks only the flagged drafts, each by its original persona. A
// failed revision keeps the prior revision in play.
func (e *Engine) revise(ctx context.Context, task model.Task, drafts []model.Draft, plans []model.EditPlan) error {
	if len(plans) == 0 {
		e.closePhase(model.PhaseRevise, "")
		e.logger.Info("revise phase skipped: no drafts flagged")
		return nil
	}

	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	byRef := make(map[model.DraftRef]model.Draft, len(drafts))
	for _, d := range drafts {
		byRef[d.Ref()] = d
	}

	failed := make([]string, len(plans))
	g, gctx := errgroup.WithContext(pctx)
	g.SetLimit(len(plans))
	for i, plan := range plans {
		g.Go(func() error {
			prev, ok := byRef[plan.Target]
			if !ok {
				failed[i] = plan.Target.String()
				return nil
			}
			p, shape := prompt.RevisionWorker(prev.Role, task, prev, plan)
			obj, err := e.caller.invoke(gctx, prev.Role, p, shape, nil)
			if err != nil {
				failed[i] = plan.Target.String()
				e.logger.Warn("revision of %s failed, keeping previous revision: %v", plan.Target, err)
				return nil
			}
			e.rec.AddDraft(decodeRevision(prev, obj))
			return nil
		})
	}
	_ = g.Wait()

	var kept []string
	for _, f := range failed {
		if f != "" {
			kept = append(kept, f)
		}
	}
	detail := ""
	if len(kept) > 0 {
		detail = "revisions failed, previous kept: " + strings.Join(kept, ", ")
	}
	e.closePhase(model.PhaseRevise, detail)
	return nil
}

// finalize asks the judge for a single winner over the latest revision of
// every surviving draft. The run cannot end usefully without it.
func (e *Engine) finalize(ctx context.Context, task model.Task) error {
	pctx, cancel := e.phaseCtx(ctx)
	defer cancel()

	log := e.rec.Log()
	drafts := log.DraftsAtLatestRevision()
	evals := log.EvalResults

	p, shape := prompt.FinalJudge(task, drafts, evals)
	obj, err := e.caller.invoke(pctx, model.RoleFinalJudge, p, shape, checkFinal(drafts))
	if err != nil {
		return e.abortPhase(model.PhaseFinalize, "final judge failed", err)
	}

	decision := decodeFinal(obj, drafts)
	e.rec.SetFinal(decision)
	e.closePhase(model.PhaseFinalize, "")
	e.logger.Info("final decision: winner %s", decision.Winner)
	return nil
}

// newEngine wires a pipeline engine around one gateway client.
func newEngine(client llm.Client, cfg config.RunConfig, rec *recorder, logger logging.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		caller: newCaller(client, cfg, logger),
		rec:    rec,
		logger: logger,
	}
}

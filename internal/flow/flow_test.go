package flow

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentflow/internal/config"
	apperrors "agentflow/internal/errors"
	"agentflow/internal/llm"
	"agentflow/internal/model"
)

var draftIDPattern = regexp.MustCompile(`"draft_id": "([A-Za-z]+_r\d+)"`)

// responder scripts the gateway for a whole run, dispatching on the system
// prompt of each request.
type responder struct {
	// brokenWorkers respond with non-JSON on every attempt.
	brokenWorkers map[model.Role]bool
	// reviseTargets are draft ids the synthesizer flags for revision.
	reviseTargets map[string]bool
	// emptyReviseTargets are draft ids for which the synthesizer answers
	// "revise" with an empty instruction list. When emptyReviseRecover is
	// set, attempts after the first return a usable plan instead.
	emptyReviseTargets map[string]bool
	emptyReviseRecover bool
	// winner is the id the final judge picks; empty picks the first listed id.
	winner string
	// partialRankingOnce makes the first final-judge response rank only the
	// winner; later attempts rank every candidate.
	partialRankingOnce bool
	// brokenEvaluators respond with non-JSON on every attempt.
	brokenEvaluators map[model.Role]bool
	// failNormalize makes the normalizer emit non-JSON on every attempt.
	failNormalize bool
	// normalizeErr, when set, is returned for normalizer calls instead.
	normalizeErr error

	mu            sync.Mutex
	synthAttempts map[string]int
	judgeAttempts int
}

func (r *responder) respond(req llm.CompletionRequest, _ int) (string, error) {
	sys := req.System
	switch {
	case strings.Contains(sys, "task normalizer"):
		if r.normalizeErr != nil {
			return "", r.normalizeErr
		}
		if r.failNormalize {
			return "this is not json", nil
		}
		return `{"brief":"design a cache","constraints":["in-memory only"],"success_criteria":["eviction policy named"]}`, nil

	case strings.Contains(sys, "one of several independent workers"):
		for _, role := range model.WorkerRoles() {
			if strings.HasPrefix(sys, fmt.Sprintf("You are %s,", role)) {
				if r.brokenWorkers[role] {
					return "{{{", nil
				}
				return fmt.Sprintf(`{"draft":"draft by %s","uncertainties":[{"id":"u1","description":"load unknown","type":"missing_info","impact":"medium"}]}`, role), nil
			}
		}
		return "", errors.New("unknown worker persona")

	case strings.Contains(sys, "FactChecker evaluator"):
		if r.brokenEvaluators[model.EvalFactChecker] {
			return "{{{", nil
		}
		return `{"issues":[],"valid":true,"confidence":8,"summary":"no factual problems"}`, nil

	case strings.Contains(sys, "RubricScorer evaluator"):
		if r.brokenEvaluators[model.EvalRubricScorer] {
			return "{{{", nil
		}
		return `{"scores":{"correctness":8,"coverage":7,"clarity":8,"practicality":7,"risk_handling":6},"justifications":{"correctness":"claims check out","coverage":"addresses the brief","clarity":"well organized","practicality":"concrete steps","risk_handling":"risks named"},"overall_score":72,"summary":"solid"}`, nil

	case strings.Contains(sys, "Synthesizer/Editor evaluator"):
		m := draftIDPattern.FindStringSubmatch(req.User)
		id := ""
		if len(m) == 2 {
			id = m[1]
		}
		reviseResponse := `{"verdict":"revise","summary":"needs sharpening","strategy":"tighten the design section","instructions":[{"action":"name the eviction policy","required":true}],"open_questions":["expected key cardinality?"]}`
		if r.emptyReviseTargets[id] {
			r.mu.Lock()
			if r.synthAttempts == nil {
				r.synthAttempts = make(map[string]int)
			}
			attempt := r.synthAttempts[id]
			r.synthAttempts[id]++
			r.mu.Unlock()
			if attempt == 0 || !r.emptyReviseRecover {
				return `{"verdict":"revise","summary":"needs sharpening","strategy":"tighten","instructions":[],"open_questions":[]}`, nil
			}
			return reviseResponse, nil
		}
		if r.reviseTargets[id] {
			return reviseResponse, nil
		}
		return `{"verdict":"keep","summary":"good as is","strategy":"","instructions":[],"open_questions":[]}`, nil

	case strings.Contains(sys, "revising your own earlier draft"):
		return `{"revised_draft":"revised draft with eviction policy","change_summary":["named LRU as the policy"],"updated_uncertainties":[]}`, nil

	case strings.Contains(sys, "You are the FinalJudge"):
		ids := regexp.MustCompile(`valid draft ids are: ([^\n]+)`).FindStringSubmatch(sys)
		candidates := strings.Split(ids[1], ", ")
		winner := r.winner
		if winner == "" {
			winner = candidates[0]
		}

		r.mu.Lock()
		attempt := r.judgeAttempts
		r.judgeAttempts++
		r.mu.Unlock()

		ranking := []string{winner}
		if !r.partialRankingOnce || attempt > 0 {
			for _, id := range candidates {
				if id != winner {
					ranking = append(ranking, id)
				}
			}
		}
		quoted := make([]string, len(ranking))
		for i, id := range ranking {
			quoted[i] = fmt.Sprintf("%q", id)
		}
		return fmt.Sprintf(`{"winner":%q,"ranking":[%s],"reasoning":"most complete"}`,
			winner, strings.Join(quoted, ",")), nil
	}
	return "", errors.New("unrecognized prompt")
}

func testConfig() config.RunConfig {
	cfg := config.Default()
	cfg.Model = "test-model"
	return cfg
}

func runWith(t *testing.T, r *responder) (*model.RunLog, error) {
	t.Helper()
	client := &llm.MockClient{ModelName: "test-model", Respond: r.respond}
	return Run(context.Background(), "design a cache for me", testConfig(), client)
}

func phaseOutcomes(log *model.RunLog) []string {
	out := make([]string, 0, len(log.PhaseStatus))
	for _, s := range log.PhaseStatus {
		out = append(out, fmt.Sprintf("%s:%s", s.Phase, s.Outcome))
	}
	return out
}

func TestRunAllWorkersCleanNoRevisions(t *testing.T) {
	log, err := runWith(t, &responder{})
	require.NoError(t, err)

	assert.Equal(t, model.RunDone, log.Status)
	assert.Len(t, log.Drafts, 4)
	assert.Len(t, log.EvalResults, 12) // 3 evaluators x 4 drafts
	assert.Empty(t, log.EditPlans)
	require.NotNil(t, log.FinalDecision)
	assert.Equal(t, []string{
		"normalize:success", "draft:success", "evaluate:success",
		"revise:success", "finalize:success",
	}, phaseOutcomes(log))

	for _, d := range log.Drafts {
		assert.Equal(t, 0, d.Revision)
	}
	require.NotNil(t, log.Task)
	assert.Equal(t, "design a cache", log.Task.Brief)

	// Rubric judgments carry a justification per scored dimension.
	for _, e := range log.EvalResults {
		if e.Evaluator != model.EvalRubricScorer {
			continue
		}
		for dim := range e.Scores {
			assert.NotEmpty(t, e.Justifications[dim], "dimension %s missing justification", dim)
		}
	}

	// The decision ranks every final-state draft.
	assert.Len(t, log.FinalDecision.Ranking, 4)
}

func TestRunDegradesWhenOneWorkerNeverParses(t *testing.T) {
	log, err := runWith(t, &responder{
		brokenWorkers: map[model.Role]bool{model.WorkerSkeptic: true},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunDone, log.Status)
	assert.Len(t, log.Drafts, 3)
	for _, d := range log.Drafts {
		assert.NotEqual(t, model.WorkerSkeptic, d.Role)
	}
	// Evaluation runs over survivors only.
	assert.Len(t, log.EvalResults, 9)

	outcomes := phaseOutcomes(log)
	assert.Contains(t, outcomes, "draft:degraded")
	require.NotNil(t, log.FinalDecision)
}

func TestRunRevisesOnlyFlaggedDraft(t *testing.T) {
	log, err := runWith(t, &responder{
		reviseTargets: map[string]bool{"Architect_r0": true},
		winner:        "Architect_r1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunDone, log.Status)
	require.Len(t, log.EditPlans, 1)
	assert.Equal(t, "Architect_r0", log.EditPlans[0].Target.String())
	assert.False(t, log.EditPlans[0].Empty())

	// 4 originals plus exactly one revision.
	assert.Len(t, log.Drafts, 5)
	var revised *model.Draft
	for i, d := range log.Drafts {
		if d.Revision == 1 {
			require.Nil(t, revised, "only one draft may be revised")
			revised = &log.Drafts[i]
		}
	}
	require.NotNil(t, revised)
	assert.Equal(t, model.WorkerArchitect, revised.Role)
	assert.Equal(t, []string{"named LRU as the policy"}, revised.ChangeSummary)

	require.NotNil(t, log.FinalDecision)
	assert.Equal(t, "Architect_r1", log.FinalDecision.Winner.String())
	assert.Equal(t, "revised draft with eviction policy", log.FinalDecision.Content)

	latest := log.DraftsAtLatestRevision()
	require.Len(t, latest, 4)
	assert.Equal(t, 1, latest[0].Revision) // Architect
	assert.Equal(t, 0, latest[1].Revision)
}

func TestEvaluateDegradesWhenFactCheckerNeverParses(t *testing.T) {
	log, err := runWith(t, &responder{
		brokenEvaluators: map[model.Role]bool{model.EvalFactChecker: true},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RunDone, log.Status)
	// Rubric plus synthesizer per draft; fact checks all dropped.
	assert.Len(t, log.EvalResults, 8)
	for _, e := range log.EvalResults {
		assert.NotEqual(t, model.EvalFactChecker, e.Evaluator)
	}
	assert.Contains(t, phaseOutcomes(log), "evaluate:degraded")
	require.NotNil(t, log.FinalDecision)
}

func TestEvaluateKeepsDraftsWhenAllSignalsLost(t *testing.T) {
	log, err := runWith(t, &responder{
		brokenEvaluators: map[model.Role]bool{
			model.EvalFactChecker:  true,
			model.EvalRubricScorer: true,
		},
	})
	require.NoError(t, err)

	// Without any evaluation signal the synthesizer never runs: every draft
	// is kept and the judge decides over the originals.
	assert.Equal(t, model.RunDone, log.Status)
	assert.Empty(t, log.EvalResults)
	assert.Empty(t, log.EditPlans)
	assert.Len(t, log.Drafts, 4)
	assert.Contains(t, phaseOutcomes(log), "evaluate:degraded")
	require.NotNil(t, log.FinalDecision)
}

func TestSynthesizerEmptyReviseVerdictIsReasked(t *testing.T) {
	r := &responder{
		emptyReviseTargets: map[string]bool{"Architect_r0": true},
		emptyReviseRecover: true,
		winner:             "Architect_r1",
	}
	log, err := runWith(t, r)
	require.NoError(t, err)

	// The corrective re-ask produced a usable plan on the second attempt.
	assert.Equal(t, 2, r.synthAttempts["Architect_r0"])
	require.Len(t, log.EditPlans, 1)
	assert.False(t, log.EditPlans[0].Empty())
	assert.Len(t, log.Drafts, 5)
	assert.Equal(t, "Architect_r1", log.FinalDecision.Winner.String())
}

func TestEmptyEditPlanNeverTriggersRevision(t *testing.T) {
	log, err := runWith(t, &responder{
		emptyReviseTargets: map[string]bool{
			"Architect_r0":    true,
			"Pragmatist_r0":   true,
			"Skeptic_r0":      true,
			"Communicator_r0": true,
		},
	})
	require.NoError(t, err)

	// Every synthesizer call insisted on a revise verdict with no
	// instructions; after retries the drafts are kept unrevised.
	assert.Equal(t, model.RunDone, log.Status)
	assert.Empty(t, log.EditPlans)
	assert.Len(t, log.Drafts, 4)
	for _, d := range log.Drafts {
		assert.Equal(t, 0, d.Revision)
	}
	assert.Len(t, log.EvalResults, 8) // fact check + rubric only
	assert.Contains(t, phaseOutcomes(log), "evaluate:degraded")
	require.NotNil(t, log.FinalDecision)
}

func TestFinalJudgePartialRankingIsReasked(t *testing.T) {
	r := &responder{partialRankingOnce: true}
	log, err := runWith(t, r)
	require.NoError(t, err)

	assert.Equal(t, 2, r.judgeAttempts)
	require.NotNil(t, log.FinalDecision)
	require.Len(t, log.FinalDecision.Ranking, 4)

	seen := make(map[string]bool)
	for _, ref := range log.FinalDecision.Ranking {
		assert.False(t, seen[ref.String()], "duplicate ranking entry %s", ref)
		seen[ref.String()] = true
	}
	assert.Equal(t, log.FinalDecision.Winner, log.FinalDecision.Ranking[0])
}

func TestRunAbortsWhenNormalizeExhaustsRetries(t *testing.T) {
	log, err := runWith(t, &responder{failNormalize: true})
	require.Error(t, err)

	var pf *model.PhaseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, model.PhaseNormalize, pf.Phase)

	var rf *model.RoleFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, model.FailureParseExhausted, rf.Reason)

	assert.Equal(t, model.RunAborted, log.Status)
	assert.Equal(t, []string{"normalize:aborted"}, phaseOutcomes(log))
	assert.Nil(t, log.Task)
	assert.Empty(t, log.Drafts)
	assert.Nil(t, log.FinalDecision)
}

func TestRunAbortsWhenQuorumNotMet(t *testing.T) {
	log, err := runWith(t, &responder{
		brokenWorkers: map[model.Role]bool{
			model.WorkerPragmatist:   true,
			model.WorkerSkeptic:      true,
			model.WorkerCommunicator: true,
		},
	})
	require.Error(t, err)

	var pf *model.PhaseFailure
	require.ErrorAs(t, err, &pf)
	assert.Equal(t, model.PhaseDraft, pf.Phase)

	assert.Equal(t, model.RunAborted, log.Status)
	assert.Equal(t, []string{"normalize:success", "draft:aborted"}, phaseOutcomes(log))
	assert.Len(t, log.Drafts, 1)
	assert.Nil(t, log.FinalDecision)
}

func TestRunAbortsOnPermanentGatewayError(t *testing.T) {
	log, err := runWith(t, &responder{
		normalizeErr: apperrors.NewPermanentError(nil, "authentication failed"),
	})
	require.Error(t, err)

	var rf *model.RoleFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, model.FailureGateway, rf.Reason)
	assert.Equal(t, model.RunAborted, log.Status)
}

func TestDraftIdentityUniquePerRoleRevision(t *testing.T) {
	log, err := runWith(t, &responder{
		reviseTargets: map[string]bool{"Architect_r0": true, "Skeptic_r0": true},
		winner:        "Skeptic_r1",
	})
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, d := range log.Drafts {
		id := d.Ref().String()
		assert.False(t, seen[id], "duplicate draft identity %s", id)
		seen[id] = true
	}
	assert.Len(t, log.EditPlans, 2)
}

func TestRunLogCredentialFreeAndStamped(t *testing.T) {
	before := time.Now().UTC()
	log, err := runWith(t, &responder{})
	require.NoError(t, err)

	assert.Equal(t, "test-model", log.Config.Model)
	assert.Equal(t, 2, log.Config.Quorum)
	assert.False(t, log.StartedAt.Before(before.Add(-time.Second)))
	assert.False(t, log.CompletedAt.Before(log.StartedAt))
	assert.Regexp(t, `^\d{8}T\d{6}_[0-9a-f]{6}$`, log.RunID)
}

func TestNewRunIDFormat(t *testing.T) {
	id := NewRunID(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	assert.Regexp(t, `^20260314T092653_[0-9a-f]{6}$`, id)

	other := NewRunID(time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC))
	assert.NotEqual(t, id, other)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &llm.MockClient{ModelName: "test-model", Respond: (&responder{}).respond}
	log, err := Run(ctx, "prompt", testConfig(), client)
	require.Error(t, err)
	assert.Equal(t, model.RunAborted, log.Status)
}

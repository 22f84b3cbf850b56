// Package chain resolves an action and every action it triggers, one step at
// a time, with cycle and depth protection.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/gmtools/internal/game/action"
	"github.com/cory-johannsen/gmtools/internal/game/attribute"
	"github.com/cory-johannsen/gmtools/internal/game/dice"
	"github.com/cory-johannsen/gmtools/internal/game/outcome"
)

// MaxChainDepth is the most steps any chain may resolve.
const MaxChainDepth = 10

// Truncation records why a chain stopped before its last trigger.
type Truncation string

const (
	// NotTruncated means the chain ended on an action that triggers nothing.
	NotTruncated Truncation = ""
	// TruncatedCycle means the next action was already resolved in this chain.
	TruncatedCycle Truncation = "cycle"
	// TruncatedDepth means the chain reached its maximum depth.
	TruncatedDepth Truncation = "depth"
	// TruncatedFetch means a triggered action or attribute lookup failed.
	TruncatedFetch Truncation = "fetch_failure"
)

// ErrNilAction is returned when Resolve is called without a root action.
var ErrNilAction = errors.New("chain: root action must not be nil")

var errStepFetch = errors.New("fetching step inputs")

// Step is one resolved action in a chain.
type Step struct {
	ActionID         string
	ActionName       string
	Index            int
	SourceOverridden bool
	TargetOverridden bool
	Result           outcome.Result
}

// Result is the outcome of a whole chain.
type Result struct {
	// ChainID correlates log lines for this resolution.
	ChainID string
	Steps   []Step
	// Probability is the product of every step's success fraction, as a
	// percentage. An empty chain reports 0 rather than the empty product
	// (100): a chain whose first step never resolved cannot succeed.
	Probability float64
	Truncation  Truncation
	// StoppedAt is the action ID at which truncation happened, if any.
	StoppedAt string
}

// Executor resolves action chains against injected data sources.
//
// Executor holds no per-chain state and is safe for concurrent use.
type Executor struct {
	contribs     attribute.Fetcher
	actions      action.Fetcher
	logger       *zap.Logger
	maxDepth     int
	fetchTimeout time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxDepth caps the number of steps. n is clamped to [1, MaxChainDepth].
func WithMaxDepth(n int) Option {
	return func(e *Executor) {
		e.maxDepth = min(max(n, 1), MaxChainDepth)
	}
}

// WithFetchTimeout bounds each individual fetch. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Executor) {
		e.fetchTimeout = d
	}
}

// NewExecutor creates an Executor.
//
// Precondition: contribs and actions must be non-nil. A nil logger disables logging.
// Postcondition: Returns a non-nil Executor with maxDepth == MaxChainDepth
// unless overridden by opts.
func NewExecutor(contribs attribute.Fetcher, actions action.Fetcher, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		contribs: contribs,
		actions:  actions,
		logger:   logger,
		maxDepth: MaxChainDepth,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve resolves root and then each triggered action in turn. The same
// sourceIDs and targetIDs are used for every step.
//
// Cycles, the depth cap, and failed fetches end the chain early; they are
// reported through Result.Truncation, never as errors. Only configuration
// defects (an attribute missing from the die table, an unknown formula) and
// a nil root are returned as errors.
//
// Precondition: root must be non-nil.
// Postcondition: len(Result.Steps) <= the configured depth; no action ID
// appears twice in Result.Steps.
func (e *Executor) Resolve(ctx context.Context, root *action.Definition, sourceIDs, targetIDs []string, overrides Overrides) (Result, error) {
	if root == nil {
		return Result{}, ErrNilAction
	}
	res := Result{ChainID: uuid.NewString()}
	log := e.logger.With(
		zap.String("chain_id", res.ChainID),
		zap.String("root_action", root.ID),
	)

	visited := make(map[string]bool)
	current := root
	for current != nil {
		if visited[current.ID] {
			res.Truncation, res.StoppedAt = TruncatedCycle, current.ID
			log.Info("action chain cycle; truncating",
				zap.String("action_id", current.ID),
				zap.Int("steps", len(res.Steps)),
			)
			break
		}
		if len(res.Steps) >= e.maxDepth {
			res.Truncation, res.StoppedAt = TruncatedDepth, current.ID
			log.Info("action chain depth reached; truncating",
				zap.String("action_id", current.ID),
				zap.Int("max_depth", e.maxDepth),
			)
			break
		}
		visited[current.ID] = true

		key := StepKey{ActionID: current.ID, Index: len(res.Steps)}
		step, err := e.resolveStep(ctx, current, key, sourceIDs, targetIDs, overrides)
		if err != nil {
			if !errors.Is(err, errStepFetch) {
				return Result{}, fmt.Errorf("resolving action %q: %w", current.ID, err)
			}
			res.Truncation, res.StoppedAt = TruncatedFetch, current.ID
			log.Warn("attribute fetch failed; truncating",
				zap.String("action_id", current.ID),
				zap.Error(err),
			)
			break
		}
		res.Steps = append(res.Steps, step)
		log.Debug("resolved step",
			zap.String("action_id", current.ID),
			zap.Int("index", step.Index),
			zap.Float64("source_value", step.Result.SourceValue),
			zap.Float64("target_value", step.Result.TargetValue),
			zap.Float64("success_pct", step.Result.SuccessPercentage),
		)

		if !current.Triggers() {
			break
		}
		next, err := e.fetchAction(ctx, current.TriggeredActionID)
		if err != nil {
			res.Truncation, res.StoppedAt = TruncatedFetch, current.TriggeredActionID
			log.Warn("triggered action fetch failed; truncating",
				zap.String("action_id", current.ID),
				zap.String("triggered_action_id", current.TriggeredActionID),
				zap.Error(err),
			)
			break
		}
		current = next
	}

	res.Probability = chainProbability(res.Steps)
	return res, nil
}

// resolveStep computes one step. Fetch failures are wrapped with errStepFetch;
// any other error is a configuration defect.
func (e *Executor) resolveStep(ctx context.Context, def *action.Definition, key StepKey, sourceIDs, targetIDs []string, overrides Overrides) (Step, error) {
	// Configuration defects surface before any fetch can mask them.
	if _, err := dice.Classify(def.SourceAttribute); err != nil {
		return Step{}, err
	}
	if _, err := dice.Classify(def.TargetAttribute); err != nil {
		return Step{}, err
	}
	if !def.Formula.Valid() {
		return Step{}, fmt.Errorf("%w %q", outcome.ErrUnknownFormula, def.Formula)
	}

	srcOv := overrides.Resolve(key, SideSource)
	tgtOv := overrides.Resolve(key, SideTarget)

	// Only the source side honors ObjectUsage; the target side counts
	// everything its entities carry.
	srcVal, err := e.sideValue(ctx, srcOv, sourceIDs, def.SourceAttribute, def.ObjectUsage.Admits)
	if err != nil {
		return Step{}, err
	}
	tgtVal, err := e.sideValue(ctx, tgtOv, targetIDs, def.TargetAttribute, nil)
	if err != nil {
		return Step{}, err
	}
	var srcTgtVal float64
	if def.Formula == outcome.Delta {
		srcTgtVal, err = e.effective(ctx, sourceIDs, def.TargetAttribute, def.ObjectUsage.Admits)
		if err != nil {
			return Step{}, err
		}
	}

	res, err := outcome.Resolve(outcome.Request{
		SourceAttribute:   def.SourceAttribute,
		SourceValue:       srcVal,
		TargetAttribute:   def.TargetAttribute,
		TargetValue:       tgtVal,
		Formula:           def.Formula,
		SourceTargetValue: srcTgtVal,
	})
	if err != nil {
		return Step{}, err
	}
	return Step{
		ActionID:         def.ID,
		ActionName:       def.Name,
		Index:            key.Index,
		SourceOverridden: srcOv.Active,
		TargetOverridden: tgtOv.Active,
		Result:           res,
	}, nil
}

func (e *Executor) sideValue(ctx context.Context, ov Override, ids []string, attr string, keep func(attribute.SourceKind) bool) (float64, error) {
	if ov.Active {
		return ov.Value, nil
	}
	return e.effective(ctx, ids, attr, keep)
}

func (e *Executor) effective(ctx context.Context, ids []string, attr string, keep func(attribute.SourceKind) bool) (float64, error) {
	ctx, cancel := e.fetchContext(ctx)
	defer cancel()
	v, err := attribute.EffectiveFiltered(ctx, e.contribs, ids, attr, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: attribute %q: %w", errStepFetch, attr, err)
	}
	return v, nil
}

func (e *Executor) fetchAction(ctx context.Context, id string) (*action.Definition, error) {
	ctx, cancel := e.fetchContext(ctx)
	defer cancel()
	def, err := e.actions.FetchAction(ctx, id)
	if err != nil {
		return nil, err
	}
	if def == nil {
		return nil, fmt.Errorf("fetching action %q: %w", id, action.ErrNotFound)
	}
	return def, nil
}

func (e *Executor) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.fetchTimeout > 0 {
		return context.WithTimeout(ctx, e.fetchTimeout)
	}
	return context.WithCancel(ctx)
}

// chainProbability multiplies the step success fractions.
//
// Postcondition: Returns a value in [0, 100]; 0 for no steps.
func chainProbability(steps []Step) float64 {
	if len(steps) == 0 {
		return 0
	}
	p := 1.0
	for _, s := range steps {
		p *= s.Result.SuccessFraction()
	}
	return p * 100
}

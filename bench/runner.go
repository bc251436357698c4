package bench

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/bitfsorg/shardwallet-go/meter"
	"github.com/bitfsorg/shardwallet-go/shardwallet"
	"github.com/bitfsorg/shardwallet-go/treasury"
)

// Runner executes scenarios and reports the cost of each labelled step.
type Runner struct {
	Reporter *Reporter
	Schedule meter.Schedule
	Log      *zap.Logger
}

// CompilePatterns turns name patterns into case-insensitive regexps.
func CompilePatterns(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("bench: pattern %d: %w", i+1, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Select returns the scenarios whose name matches any pattern, or all of
// them when there are no patterns.
func Select(scenarios []Scenario, patterns []*regexp.Regexp) []Scenario {
	if len(patterns) == 0 {
		return scenarios
	}
	var out []Scenario
	for _, sc := range scenarios {
		for _, re := range patterns {
			if re.MatchString(sc.Name) {
				out = append(out, sc)
				break
			}
		}
	}
	return out
}

// Run executes every scenario in order. A failing scenario is logged and
// the rest still run; the returned error then wraps ErrScenarioFailed and
// names every failure.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) error {
	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	var failed []string
	for _, sc := range scenarios {
		if err := r.runScenario(ctx, sc); err != nil {
			log.Error("scenario failed", zap.String("scenario", sc.Name), zap.Error(err))
			failed = append(failed, sc.Name)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%w: %s", ErrScenarioFailed, strings.Join(failed, ", "))
	}
	return nil
}

func (r *Runner) runScenario(ctx context.Context, sc Scenario) error {
	sched := r.Schedule
	if sched == (meter.Schedule{}) {
		sched = meter.DefaultSchedule
	}
	m := meter.New(sched)
	tr := treasury.NewMemory()
	w, err := shardwallet.New(m.Store(shardwallet.NewMemStore()), m.Treasury(tr), shardwallet.WithLogger(r.Log))
	if err != nil {
		return err
	}

	for i, st := range sc.Steps {
		m.Begin()
		if err := runStep(ctx, w, tr, st); err != nil {
			return fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
		cost := m.Take()
		if st.Label == "" {
			continue
		}
		if err := r.Reporter.Report(Result{Label: st.Label, Cost: cost}); err != nil {
			return err
		}
	}
	return nil
}

func runStep(ctx context.Context, w *shardwallet.Wallet, tr *treasury.Memory, st Step) error {
	switch st.Op {
	case OpInit:
		_, err := w.Init(ctx, st.Recipient)
		return err
	case OpSplit:
		_, err := w.Split(ctx, st.Shard, st.Children)
		return err
	case OpMerge:
		if st.Recipient != "" {
			_, err := w.MergeTo(ctx, st.Shards, st.Recipient)
			return err
		}
		_, err := w.Merge(ctx, st.Shards)
		return err
	case OpReforge:
		_, err := w.Reforge(ctx, st.Shards, st.Children)
		return err
	case OpClaim:
		currencies := make([]shardwallet.Currency, len(st.Currencies))
		for i, c := range st.Currencies {
			currencies[i] = shardwallet.ParseCurrency(c)
		}
		_, err := w.Claim(ctx, st.Shard, currencies)
		return err
	case OpDeposit:
		tr.Deposit(shardwallet.ParseCurrency(st.Currency), st.Amount)
		return nil
	case OpReassign:
		return w.Reassign(ctx, st.Shard, st.Recipient)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownStep, st.Op)
	}
}

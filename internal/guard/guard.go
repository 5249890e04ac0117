// Package guard implements the safety gate that screens a token before entry.
package guard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/provider"
)

// Check is one independent safety check.
// Run never returns an error: upstream failures become a result.
type Check interface {
	Name() string
	// Blocking reports whether a Fail from this check rejects entry.
	Blocking() bool
	Run(ctx context.Context, s *Subject) domain.GuardCheckResult
}

// Subject is the token under evaluation, shared by all checks of one RunAll.
// The token overview is fetched at most once per subject.
type Subject struct {
	Mint  string
	NowMs int64

	md   provider.MarketData
	once sync.Once
	ov   *domain.TokenOverview
	err  error
}

// Overview returns the memoized token overview.
// A provider that has no data yields domain.ErrDataUnavailable.
func (s *Subject) Overview(ctx context.Context) (*domain.TokenOverview, error) {
	s.once.Do(func() {
		s.ov, s.err = s.md.TokenOverview(ctx, s.Mint)
		if s.err == nil && s.ov == nil {
			s.err = domain.ErrDataUnavailable
		}
	})
	return s.ov, s.err
}

// Verdict is the joined outcome of every check.
type Verdict struct {
	Mint     string
	Results  []domain.GuardCheckResult // in check registration order
	Accepted bool
	Failed   []string // blocking checks that failed
	Warnings []string
}

// Reason summarizes the blocking failures.
func (v *Verdict) Reason() string {
	if v.Accepted {
		return "guards passed"
	}
	return "guard failed: " + strings.Join(v.Failed, ",")
}

// Options configures Gate.
type Options struct {
	Now    func() time.Time
	Logger zerolog.Logger
}

// Gate runs a fixed set of checks against a token.
type Gate struct {
	md     provider.MarketData
	checks []Check
	now    func() time.Time
	logger zerolog.Logger
}

// NewGate creates a gate running checks in the given order.
func NewGate(md provider.MarketData, checks []Check, opts Options) *Gate {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Gate{
		md:     md,
		checks: checks,
		now:    opts.Now,
		logger: opts.Logger,
	}
}

// New creates a gate with the standard check set.
func New(md provider.MarketData, quotes provider.QuoteProvider, th Thresholds, opts Options) (*Gate, error) {
	if err := th.Validate(); err != nil {
		return nil, err
	}
	return NewGate(md, DefaultChecks(md, quotes, th), opts), nil
}

// Checks returns the registered checks.
func (g *Gate) Checks() []Check {
	return g.checks
}

// RunAll executes every check concurrently and joins all results.
// The verdict is produced only after every check has returned.
func (g *Gate) RunAll(ctx context.Context, mint string) *Verdict {
	subject := &Subject{Mint: mint, NowMs: g.now().UnixMilli(), md: g.md}
	results := make([]domain.GuardCheckResult, len(g.checks))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, c := range g.checks {
		i, c := i, c
		eg.Go(func() error {
			results[i] = runCheck(egCtx, c, subject)
			return nil
		})
	}
	_ = eg.Wait()

	v := &Verdict{Mint: mint, Results: results, Accepted: true}
	for i, r := range results {
		observability.RecordGuardOutcome(r.Name, string(r.Outcome))
		switch r.Outcome {
		case domain.GuardFail:
			if g.checks[i].Blocking() {
				v.Accepted = false
				v.Failed = append(v.Failed, r.Name)
			}
		case domain.GuardWarning:
			v.Warnings = append(v.Warnings, r.Name)
		}
	}

	ev := g.logger.Debug()
	if !v.Accepted {
		ev = g.logger.Info()
	}
	ev.Str("mint", mint).
		Bool("accepted", v.Accepted).
		Strs("failed", v.Failed).
		Strs("warnings", v.Warnings).
		Msg("guard verdict")

	return v
}

// runCheck turns a panicking check into a Fail.
func runCheck(ctx context.Context, c Check, s *Subject) (res domain.GuardCheckResult) {
	defer func() {
		if r := recover(); r != nil {
			res = fail(c.Name(), fmt.Sprintf("check panicked: %v", r), nil)
		}
	}()
	res = c.Run(ctx, s)
	if res.Name == "" {
		res.Name = c.Name()
	}
	return res
}

func pass(name, msg string, data map[string]any) domain.GuardCheckResult {
	return domain.GuardCheckResult{Name: name, Outcome: domain.GuardPass, Message: msg, Data: data}
}

func fail(name, msg string, data map[string]any) domain.GuardCheckResult {
	return domain.GuardCheckResult{Name: name, Outcome: domain.GuardFail, Message: msg, Data: data}
}

func warn(name, msg string, data map[string]any) domain.GuardCheckResult {
	return domain.GuardCheckResult{Name: name, Outcome: domain.GuardWarning, Message: msg, Data: data}
}

// dataFailure reports a fail-closed result for an upstream error.
func dataFailure(name string, err error) domain.GuardCheckResult {
	if errors.Is(err, domain.ErrDataUnavailable) {
		return fail(name, "no data", nil)
	}
	return fail(name, fmt.Sprintf("upstream error: %v", err), nil)
}

package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/bus"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/ingestion"
	"solana-signal-engine/internal/provider"
	"solana-signal-engine/internal/provider/stub"
	"solana-signal-engine/internal/registry"
	"solana-signal-engine/internal/storage"
	"solana-signal-engine/internal/storage/memory"
	"solana-signal-engine/internal/strategy"
)

const (
	testMint = "TokenMint111"
	testNow  = int64(1_717_243_200_000)
)

// fakeEngine buys every candidate and exits the positions listed in exit.
type fakeEngine struct {
	mu      sync.Mutex
	entries []string
	exit    map[string]bool

	block   bool
	started chan struct{}

	// exitStarted, when set, makes EvaluateExit wait for cancellation and
	// then report a forced exit
	exitStarted chan struct{}
}

func (e *fakeEngine) EvaluateEntry(ctx context.Context, c domain.Candidate) strategy.Entry {
	e.mu.Lock()
	e.entries = append(e.entries, c.Mint)
	e.mu.Unlock()

	if e.block {
		close(e.started)
		<-ctx.Done()
		return strategy.Entry{Result: domain.StrategyResult{
			Mint: c.Mint, Signal: domain.SignalNone, Reason: "evaluation error: " + ctx.Err().Error(), EvaluatedAt: testNow,
		}}
	}

	v := &guard.Verdict{
		Mint:     c.Mint,
		Accepted: true,
		Results:  []domain.GuardCheckResult{{Name: domain.CheckLiquidity, Outcome: domain.GuardPass}},
	}
	return strategy.Entry{
		Result: domain.StrategyResult{
			Mint:          c.Mint,
			Signal:        domain.SignalBuy,
			Sleeve:        domain.SleeveScalps,
			Confidence:    80,
			SuggestedSize: 0.3,
			Reason:        "ema_cross",
			EvaluatedAt:   testNow,
		},
		Guards:  v.Results,
		Verdict: v,
	}
}

func (e *fakeEngine) EvaluateExit(ctx context.Context, p domain.Position) domain.StrategyResult {
	res := domain.StrategyResult{Mint: p.Mint, Sleeve: p.Sleeve, Signal: domain.SignalNone, Reason: "hold", EvaluatedAt: testNow}
	if e.exitStarted != nil {
		close(e.exitStarted)
		<-ctx.Done()
		res.Signal = domain.SignalExit
		res.SuggestedSize = p.Size
		res.Reason = "no data"
		return res
	}
	if e.exit[p.ID] {
		res.Signal = domain.SignalExit
		res.SuggestedSize = p.Size
		res.Reason = "stop loss"
	}
	return res
}

// staticSource emits its events once and idles until cancelled.
type staticSource struct {
	events []domain.DiscoveryEvent
}

func (s *staticSource) Name() domain.Source { return domain.SourceTrending }

func (s *staticSource) Run(ctx context.Context, emit ingestion.Emit) error {
	for _, ev := range s.events {
		emit(ev)
	}
	<-ctx.Done()
	return ctx.Err()
}

type fixture struct {
	engine  *fakeEngine
	journal *memory.SignalStore
	pub     *bus.MemoryPublisher
	reg     *registry.Registry
}

func newFixture() *fixture {
	return &fixture{
		engine:  &fakeEngine{exit: map[string]bool{}},
		journal: memory.NewSignalStore(),
		pub:     bus.NewMemoryPublisher(0),
		reg:     registry.New(registry.Options{SelectionInterval: 20 * time.Millisecond}),
	}
}

func (f *fixture) options() Options {
	return Options{
		Registry:  f.reg,
		Engine:    f.engine,
		Journal:   f.journal,
		Publisher: f.pub,
	}
}

func runAsync(t *testing.T, o *Orchestrator) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- o.Run(ctx) }()
	t.Cleanup(cancel)
	return cancel, errCh
}

func waitRun(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("orchestrator did not stop")
		return nil
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrConfiguration))

	f := newFixture()
	o, err := New(f.options())
	require.NoError(t, err)
	assert.Nil(t, o.Ingestion(), "no sources, no runner")
}

func TestRun_DiscoveryToSignal(t *testing.T) {
	f := newFixture()
	opts := f.options()
	opts.Sources = []ingestion.Source{&staticSource{events: []domain.DiscoveryEvent{
		&domain.TrendingEvent{Mint: testMint, Rank: 1, Timestamp: time.Now().UnixMilli()},
	}}}
	o, err := New(opts)
	require.NoError(t, err)
	require.NotNil(t, o.Ingestion())

	cancel, errCh := runAsync(t, o)

	require.Eventually(t, func() bool { return len(f.pub.Signals()) == 1 }, 3*time.Second, 10*time.Millisecond)
	cancel()
	require.ErrorIs(t, waitRun(t, errCh), context.Canceled)

	sig := f.pub.Signals()[0]
	assert.Equal(t, domain.EvaluationEntry, sig.Kind)
	assert.Equal(t, domain.SignalBuy, sig.Result.Signal)
	assert.NotEmpty(t, sig.CycleID)
	assert.NotEmpty(t, sig.SubjectID)

	recs, err := f.journal.GetByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, sig.SignalID, recs[0].SignalID)
	assert.Equal(t, sig.CycleID, recs[0].CycleID)
	require.Len(t, recs[0].Guards, 1)

	events := map[string]bool{}
	for _, m := range f.pub.Candidates() {
		events[m.Event] = true
	}
	assert.True(t, events[string(registry.OutcomeInserted)])
	assert.True(t, events["SELECTED"])

	guards := f.pub.Guards()
	require.Len(t, guards, 1)
	assert.True(t, guards[0].Accepted)

	st := o.Stats()
	assert.Equal(t, int64(1), st.Entries)
	assert.Equal(t, int64(1), st.Buys)
	assert.Zero(t, st.JournalErrors)
}

func TestRun_ShutdownGraceCancelsInFlight(t *testing.T) {
	f := newFixture()
	f.engine.block = true
	f.engine.started = make(chan struct{})

	opts := f.options()
	opts.ShutdownGrace = 50 * time.Millisecond
	opts.Sources = []ingestion.Source{&staticSource{events: []domain.DiscoveryEvent{
		&domain.TrendingEvent{Mint: testMint, Rank: 1, Timestamp: time.Now().UnixMilli()},
	}}}
	o, err := New(opts)
	require.NoError(t, err)

	cancel, errCh := runAsync(t, o)
	select {
	case <-f.engine.started:
	case <-time.After(3 * time.Second):
		t.Fatal("evaluation never started")
	}

	start := time.Now()
	cancel()
	require.ErrorIs(t, waitRun(t, errCh), context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)

	// the cancelled evaluation is still journaled
	recs, err := f.journal.GetByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, domain.SignalNone, recs[0].Result.Signal)
	assert.Contains(t, recs[0].Result.Reason, "canceled")
}

func TestRun_ExitMonitor(t *testing.T) {
	f := newFixture()
	f.engine.exit["pos-1"] = true

	opts := f.options()
	opts.Positions = &stub.PositionRepository{Positions: []domain.Position{
		{ID: "pos-1", Mint: "MintA", Sleeve: domain.SleeveScalps, Size: 100},
	}}
	opts.ExitInterval = 10 * time.Millisecond
	o, err := New(opts)
	require.NoError(t, err)

	cancel, errCh := runAsync(t, o)
	require.Eventually(t, func() bool { return o.Stats().Exits >= 2 }, 3*time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, waitRun(t, errCh), context.Canceled)

	// identical evaluations dedupe on the signal ID
	recs, err := f.journal.GetByMint(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
	assert.Zero(t, o.Stats().JournalErrors)
}

func TestRun_NoProducersWaitsForCancel(t *testing.T) {
	f := newFixture()
	o, err := New(f.options())
	require.NoError(t, err)

	cancel, errCh := runAsync(t, o)
	select {
	case err := <-errCh:
		t.Fatalf("returned early: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
	cancel()
	require.ErrorIs(t, waitRun(t, errCh), context.Canceled)
}

func TestCheckExits(t *testing.T) {
	f := newFixture()
	f.engine.exit["pos-1"] = true

	opts := f.options()
	opts.Positions = &stub.PositionRepository{Positions: []domain.Position{
		{ID: "pos-1", Mint: "MintA", Sleeve: domain.SleeveScalps, Size: 100},
		{ID: "pos-2", Mint: "MintB", Sleeve: domain.SleeveSwing, Size: 50},
	}}
	o, err := New(opts)
	require.NoError(t, err)

	n, err := o.CheckExits(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// every evaluation is journaled, only actionable ones are published
	for _, mint := range []string{"MintA", "MintB"} {
		recs, err := f.journal.GetByMint(context.Background(), mint)
		require.NoError(t, err)
		require.Len(t, recs, 1, mint)
		assert.Equal(t, domain.EvaluationExit, recs[0].Kind)
		assert.Empty(t, recs[0].CycleID)
	}

	sigs := f.pub.Signals()
	require.Len(t, sigs, 1)
	assert.Equal(t, "pos-1", sigs[0].SubjectID)
	assert.Equal(t, domain.SignalExit, sigs[0].Result.Signal)
	assert.Equal(t, 100.0, sigs[0].Result.SuggestedSize)

	st := o.Stats()
	assert.Equal(t, int64(2), st.Exits)
	assert.Equal(t, int64(1), st.ExitSignals)
}

func TestCheckExits_CancelledPassNotRecorded(t *testing.T) {
	f := newFixture()
	f.engine.exitStarted = make(chan struct{})

	opts := f.options()
	opts.Positions = &stub.PositionRepository{Positions: []domain.Position{
		{ID: "pos-1", Mint: "MintA", Sleeve: domain.SleeveScalps, Size: 100},
	}}
	o, err := New(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := o.CheckExits(ctx)
		done <- err
	}()

	<-f.engine.exitStarted
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("CheckExits did not return")
	}

	recs, err := f.journal.GetByMint(context.Background(), "MintA")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Empty(t, f.pub.Signals())
	assert.Zero(t, o.Stats().Exits)
	assert.Zero(t, o.Stats().ExitSignals)
}

func TestCheckExits_RepositoryError(t *testing.T) {
	f := newFixture()
	opts := f.options()
	opts.Positions = &stub.PositionRepository{Err: errors.New("db down")}
	o, err := New(opts)
	require.NoError(t, err)

	_, err = o.CheckExits(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list open positions")
	assert.Zero(t, o.Stats().Exits)
}

func TestEvaluateSelection_PublishFailureStillJournals(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.pub.Close())
	o, err := New(f.options())
	require.NoError(t, err)

	sel := registry.Selection{
		CycleID:   "cycle-1",
		Candidate: domain.Candidate{ID: "reg-1", Mint: testMint, Source: domain.SourceFlow, Score: 90, DiscoveredAt: testNow},
	}
	o.EvaluateSelection(context.Background(), sel)

	rec, err := f.journal.GetByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, rec, 1)
	assert.Equal(t, "reg-1", rec[0].SubjectID)
	assert.Equal(t, "cycle-1", rec[0].CycleID)

	// candidate, guards and signal publishes all failed
	assert.Equal(t, int64(3), o.Stats().PublishErrors)
}

func TestEvaluateSelection_JournalFailure(t *testing.T) {
	f := newFixture()
	opts := f.options()
	opts.Journal = failingJournal{}
	o, err := New(opts)
	require.NoError(t, err)

	o.EvaluateSelection(context.Background(), registry.Selection{
		Candidate: domain.Candidate{ID: "reg-1", Mint: testMint, Source: domain.SourceFlow, Score: 90, DiscoveredAt: testNow},
	})

	assert.Equal(t, int64(1), o.Stats().JournalErrors)
	assert.Len(t, f.pub.Signals(), 1, "publishing does not depend on the journal")
}

type failingJournal struct {
	storage.SignalStore
}

func (failingJournal) Insert(context.Context, *domain.SignalRecord) error {
	return errors.New("clickhouse unavailable")
}

// gateEngine runs a real safety gate and never buys.
type gateEngine struct {
	gate *guard.Gate
}

func (e *gateEngine) EvaluateEntry(ctx context.Context, c domain.Candidate) strategy.Entry {
	v := e.gate.RunAll(ctx, c.Mint)
	return strategy.Entry{
		Result:  domain.StrategyResult{Mint: c.Mint, Signal: domain.SignalNone, Reason: v.Reason(), EvaluatedAt: testNow},
		Guards:  v.Results,
		Verdict: v,
	}
}

func (e *gateEngine) EvaluateExit(_ context.Context, p domain.Position) domain.StrategyResult {
	return domain.StrategyResult{Mint: p.Mint, Sleeve: p.Sleeve, Signal: domain.SignalNone, EvaluatedAt: testNow}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestLiquidityPullSeesHistoryFromRegistration(t *testing.T) {
	ctx := context.Background()
	clk := &testClock{t: time.UnixMilli(testNow)}
	md := stub.NewMarketData()
	md.SetOverview(domain.TokenOverview{Mint: testMint, PriceUSD: 1, LiquidityUSD: 100_000})
	store := memory.NewLiquidityTimeseriesStore()
	sampler := ingestion.NewLiquiditySampler(md, store, ingestion.SamplerOptions{Now: clk.Now})

	hist := provider.WithLiquidityHistory(md, store)
	gate := guard.NewGate(hist, []guard.Check{
		&guard.LiquidityPull{MD: hist, MaxPullPct: 50, Lookback: time.Hour},
	}, guard.Options{Now: clk.Now})

	f := newFixture()
	opts := f.options()
	opts.Engine = &gateEngine{gate: gate}
	opts.Sampler = sampler
	o, err := New(opts)
	require.NoError(t, err)

	c := domain.Candidate{ID: "reg-1", Mint: testMint, Source: domain.SourceNewPool, DiscoveredAt: testNow, Score: 150}

	// registration starts sampling before the candidate is selected
	o.onCandidate(ctx, c, registry.OutcomeInserted)
	n, err := sampler.SamplePending(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	clk.Advance(time.Minute)
	md.SetOverview(domain.TokenOverview{Mint: testMint, PriceUSD: 1, LiquidityUSD: 20_000})
	_, err = sampler.SampleOnce(ctx)
	require.NoError(t, err)

	clk.Advance(time.Second)
	o.EvaluateSelection(ctx, registry.Selection{CycleID: "cycle-1", Candidate: c})

	guards := f.pub.Guards()
	require.Len(t, guards, 1)
	assert.False(t, guards[0].Accepted)
	assert.Equal(t, []string{domain.CheckLiquidityPull}, guards[0].Failed)
	require.Len(t, guards[0].Results, 1)
	assert.Equal(t, domain.GuardFail, guards[0].Results[0].Outcome)
	assert.Equal(t, 2, guards[0].Results[0].Data["samples"])
}

func TestOnCandidate_TracksNewRegistrationsOnly(t *testing.T) {
	sampler := ingestion.NewLiquiditySampler(stub.NewMarketData(), memory.NewLiquidityTimeseriesStore(), ingestion.SamplerOptions{})
	f := newFixture()
	opts := f.options()
	opts.Sampler = sampler
	o, err := New(opts)
	require.NoError(t, err)

	o.onCandidate(context.Background(), domain.Candidate{Mint: "MintA"}, registry.OutcomeMerged)
	assert.Zero(t, sampler.Tracked())

	o.onCandidate(context.Background(), domain.Candidate{Mint: "MintA"}, registry.OutcomeInserted)
	o.onCandidate(context.Background(), domain.Candidate{Mint: "MintB"}, registry.OutcomeReplaced)
	assert.Equal(t, 2, sampler.Tracked())
	assert.Len(t, f.pub.Candidates(), 3)
}

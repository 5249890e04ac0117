// Package main runs the safety gate and entry evaluation once for a mint
// and prints the decision as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"solana-signal-engine/internal/app"
	"solana-signal-engine/internal/config"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/idhash"
	"solana-signal-engine/internal/logging"
	"solana-signal-engine/internal/strategy"
)

// Output is the JSON document written to stdout.
type Output struct {
	RegistrationID string                    `json:"registration_id"`
	Candidate      CandidateOutput           `json:"candidate"`
	Result         domain.StrategyResult     `json:"result"`
	Accepted       bool                      `json:"guards_accepted"`
	Guards         []domain.GuardCheckResult `json:"guards"`
}

// CandidateOutput echoes the evaluated candidate.
type CandidateOutput struct {
	Mint   string          `json:"mint"`
	Pool   string          `json:"pool,omitempty"`
	Type   domain.PoolType `json:"type"`
	Source domain.Source   `json:"source"`
}

func main() {
	configPath := flag.String("config", "configs/signal.example.yaml", "Path to YAML or TOML configuration")
	mint := flag.String("mint", "", "Token mint address to evaluate (required)")
	pool := flag.String("pool", "", "Pool address, if known")
	venue := flag.String("venue", "", "Pool venue: PUMPFUN, RAYDIUM, ORCA or JUPITER")
	source := flag.String("source", string(domain.SourceTrending), "Discovery source: NEW_POOL, FLOW or TRENDING")
	timeout := flag.Duration("timeout", 30*time.Second, "Evaluation timeout")
	logLevel := flag.String("log-level", "warn", "Log level for diagnostics on stderr")
	flag.Parse()

	if err := run(*configPath, *mint, *pool, *venue, *source, *logLevel, *timeout, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "evaluate: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, mint, pool, venue, source, logLevel string, timeout time.Duration, out io.Writer) error {
	if mint == "" {
		return fmt.Errorf("--mint is required")
	}
	src := domain.Source(strings.ToUpper(source))
	if !src.IsValid() {
		return fmt.Errorf("unknown source %q", source)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// one-shot runs never publish
	cfg.Bus.Addr = ""
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.New(logLevel, os.Stderr)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	deps, cleanup, err := app.Wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := app.NewEngine(cfg, deps, logger)
	if err != nil {
		return err
	}

	return evaluate(ctx, engine, mint, pool, domain.ParsePoolType(strings.ToUpper(venue)), src, time.Now(), out)
}

// entryEvaluator is the part of the strategy engine this command uses.
type entryEvaluator interface {
	EvaluateEntry(ctx context.Context, c domain.Candidate) strategy.Entry
}

func evaluate(ctx context.Context, e entryEvaluator, mint, pool string, typ domain.PoolType, src domain.Source, now time.Time, out io.Writer) error {
	c := domain.Candidate{
		Mint:         mint,
		Pool:         pool,
		Type:         typ,
		Source:       src,
		DiscoveredAt: now.UnixMilli(),
	}
	c.ID = idhash.ComputeRegistrationID(c.Mint, c.Pool, c.Source, c.DiscoveredAt)

	entry := e.EvaluateEntry(ctx, c)

	doc := Output{
		RegistrationID: c.ID,
		Candidate:      CandidateOutput{Mint: c.Mint, Pool: c.Pool, Type: c.Type, Source: c.Source},
		Result:         entry.Result,
		Guards:         entry.Guards,
	}
	if entry.Verdict != nil {
		doc.Accepted = entry.Verdict.Accepted
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/guard"
	"solana-signal-engine/internal/strategy"
)

type rejectingEngine struct{ got domain.Candidate }

func (e *rejectingEngine) EvaluateEntry(_ context.Context, c domain.Candidate) strategy.Entry {
	e.got = c
	v := &guard.Verdict{
		Mint:     c.Mint,
		Accepted: false,
		Failed:   []string{domain.CheckHolders},
		Results:  []domain.GuardCheckResult{{Name: domain.CheckHolders, Outcome: domain.GuardFail, Message: "42 holders"}},
	}
	return strategy.Entry{
		Result:  domain.StrategyResult{Mint: c.Mint, Signal: domain.SignalNone, Reason: v.Reason(), EvaluatedAt: c.DiscoveredAt},
		Guards:  v.Results,
		Verdict: v,
	}
}

func TestEvaluate_WritesJSON(t *testing.T) {
	e := &rejectingEngine{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	var buf bytes.Buffer

	require.NoError(t, evaluate(context.Background(), e, "MintA", "PoolA", domain.PoolTypeRaydium, domain.SourceNewPool, now, &buf))

	var doc Output
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Len(t, doc.RegistrationID, 64)
	assert.Equal(t, e.got.ID, doc.RegistrationID)
	assert.Equal(t, "PoolA", doc.Candidate.Pool)
	assert.Equal(t, domain.PoolTypeRaydium, doc.Candidate.Type)
	assert.Equal(t, domain.SourceNewPool, doc.Candidate.Source)
	assert.Equal(t, domain.SignalNone, doc.Result.Signal)
	assert.Equal(t, "guard failed: holder_count", doc.Result.Reason)
	assert.False(t, doc.Accepted)
	require.Len(t, doc.Guards, 1)
	assert.Equal(t, domain.GuardFail, doc.Guards[0].Outcome)
}

func TestRun_ArgumentErrors(t *testing.T) {
	var buf bytes.Buffer

	err := run("../../configs/signal.example.yaml", "", "", "", "TRENDING", "warn", time.Second, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--mint")

	err = run("../../configs/signal.example.yaml", "MintA", "", "", "whales", "warn", time.Second, &buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown source")

	err = run("missing.yaml", "MintA", "", "", "flow", "warn", time.Second, &buf)
	require.ErrorIs(t, err, domain.ErrConfiguration)
	assert.Empty(t, buf.String())
}

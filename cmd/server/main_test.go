package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/bus"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/orchestrator"
	"solana-signal-engine/internal/registry"
	"solana-signal-engine/internal/storage/memory"
	"solana-signal-engine/internal/strategy"
)

type noopEngine struct{}

func (noopEngine) EvaluateEntry(_ context.Context, c domain.Candidate) strategy.Entry {
	return strategy.Entry{Result: domain.StrategyResult{Mint: c.Mint, Signal: domain.SignalNone}}
}

func (noopEngine) EvaluateExit(_ context.Context, p domain.Position) domain.StrategyResult {
	return domain.StrategyResult{Mint: p.Mint, Signal: domain.SignalNone}
}

func TestHTTPServer(t *testing.T) {
	reg := registry.New(registry.Options{SelectionInterval: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = reg.Run(ctx) }()

	_, err := reg.AddOrMerge(ctx, domain.Candidate{Mint: "m", Source: domain.SourceFlow, Score: 70, DiscoveredAt: time.Now().UnixMilli()})
	require.NoError(t, err)

	orch, err := orchestrator.New(orchestrator.Options{
		Registry:  reg,
		Engine:    noopEngine{},
		Journal:   memory.NewSignalStore(),
		Publisher: bus.NewMemoryPublisher(0),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(newHTTPServer(":0", reg, orch, time.Now()).Handler)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var status StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, "running", status.Status)
	assert.Equal(t, 1, status.LiveCandidates)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// health reports the stopped registry
	cancel()
	<-reg.Done()
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-signal-engine/internal/domain"
)

func TestMemoryPublisher_RetainsMessages(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher(0)

	c := domain.Candidate{ID: "reg-1", Mint: "mint-1", Source: domain.SourceTrending, Score: 90, Metadata: map[string]string{"rank": "1"}}
	require.NoError(t, p.PublishCandidate(ctx, NewCandidateMessage(c, "INSERTED", "")))
	require.NoError(t, p.PublishGuards(ctx, GuardMessage{SubjectID: "reg-1", Mint: "mint-1", Accepted: true}))
	require.NoError(t, p.PublishSignal(ctx, SignalMessage{SignalID: "sig-1", Kind: domain.EvaluationEntry}))

	got := p.Candidates()
	require.Len(t, got, 1)
	assert.Equal(t, "mint-1", got[0].Mint)
	assert.Equal(t, "INSERTED", got[0].Event)
	assert.Equal(t, "1", got[0].Metadata["rank"])

	assert.Len(t, p.Guards(), 1)
	assert.Equal(t, "sig-1", p.Signals()[0].SignalID)
}

func TestMemoryPublisher_Limit(t *testing.T) {
	ctx := context.Background()
	p := NewMemoryPublisher(2)

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.PublishSignal(ctx, SignalMessage{SignalID: id}))
	}

	got := p.Signals()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].SignalID)
	assert.Equal(t, "c", got[1].SignalID)
}

func TestMemoryPublisher_Closed(t *testing.T) {
	p := NewMemoryPublisher(10)
	require.NoError(t, p.Close())

	err := p.PublishSignal(context.Background(), SignalMessage{SignalID: "x"})
	assert.ErrorIs(t, err, ErrPublisherClosed)
	assert.Empty(t, p.Signals())
}

func TestNewCandidateMessage_DoesNotAliasMetadata(t *testing.T) {
	c := domain.Candidate{Mint: "m", Metadata: map[string]string{"k": "v"}}
	m := NewCandidateMessage(c, "SELECTED", "cycle-1")

	c.Metadata["k"] = "changed"
	assert.Equal(t, "v", m.Metadata["k"])
	assert.Equal(t, "cycle-1", m.CycleID)
}

func TestNewSignalMessage(t *testing.T) {
	r := &domain.SignalRecord{
		SignalID:  "sig",
		SubjectID: "reg",
		CycleID:   "cyc",
		Kind:      domain.EvaluationEntry,
		Result:    domain.StrategyResult{Mint: "m", Signal: domain.SignalBuy},
	}
	m := NewSignalMessage(r)
	assert.Equal(t, "sig", m.SignalID)
	assert.Equal(t, domain.SignalBuy, m.Result.Signal)
}

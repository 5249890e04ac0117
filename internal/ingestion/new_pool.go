package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-signal-engine/internal/discovery"
	"solana-signal-engine/internal/domain"
	"solana-signal-engine/internal/observability"
	"solana-signal-engine/internal/solana"
)

// NewPoolSourceOptions configures a NewPoolSource.
type NewPoolSourceOptions struct {
	Parser        *discovery.DEXParser // Default: discovery.NewDEXParser()
	FetchWorkers  int                  // Default: 4 - concurrent getTransaction calls
	FetchAttempts int                  // Default: 3 - attempts while the node has not indexed the tx
	FetchDelay    time.Duration        // Default: 500ms - initial delay between attempts, doubled each time
	SeenCapacity  int                  // Default: 10000 - signatures remembered for dedup
	Logger        zerolog.Logger
}

// NewPoolSource watches DEX program logs for pool initializations.
// Matching notifications are resolved with getTransaction so the parser can
// read instruction accounts.
type NewPoolSource struct {
	ws       solana.WSClient
	rpc      solana.RPCClient
	parser   *discovery.DEXParser
	workers  int
	attempts int
	delay    time.Duration
	seen     *signatureSet
	logger   zerolog.Logger
}

var _ Source = (*NewPoolSource)(nil)

// NewNewPoolSource creates a pool-initialization source.
func NewNewPoolSource(ws solana.WSClient, rpc solana.RPCClient, opts NewPoolSourceOptions) *NewPoolSource {
	parser := opts.Parser
	if parser == nil {
		parser = discovery.NewDEXParser()
	}
	workers := opts.FetchWorkers
	if workers <= 0 {
		workers = 4
	}
	attempts := opts.FetchAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := opts.FetchDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	seenCap := opts.SeenCapacity
	if seenCap <= 0 {
		seenCap = 10_000
	}

	return &NewPoolSource{
		ws:       ws,
		rpc:      rpc,
		parser:   parser,
		workers:  workers,
		attempts: attempts,
		delay:    delay,
		seen:     newSignatureSet(seenCap),
		logger:   opts.Logger.With().Str("source", domain.SourceNewPool.String()).Logger(),
	}
}

func (s *NewPoolSource) Name() domain.Source { return domain.SourceNewPool }

// Run subscribes to every registered program and processes notifications
// until ctx is cancelled or all subscriptions close.
func (s *NewPoolSource) Run(ctx context.Context, emit Emit) error {
	// one subscription per program: some providers accept a single mention
	var subs []<-chan solana.LogNotification
	for _, program := range s.parser.Programs() {
		ch, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{program}})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", program, err)
		}
		subs = append(subs, ch)
		s.logger.Info().Str("program", program).Msg("subscribed to program logs")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	merged := make(chan solana.LogNotification, 256)
	var readers errgroup.Group
	for _, ch := range subs {
		ch := ch
		readers.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case n, ok := <-ch:
					if !ok {
						return nil
					}
					select {
					case merged <- n:
					case <-gctx.Done():
						return nil
					}
				}
			}
		})
	}
	go func() {
		_ = readers.Wait()
		close(merged)
	}()

	for {
		select {
		case <-gctx.Done():
			_ = g.Wait()
			return ctx.Err()
		case n, ok := <-merged:
			if !ok {
				_ = g.Wait()
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("log subscriptions closed")
			}
			if !s.accept(n) {
				continue
			}
			g.Go(func() error {
				s.resolve(gctx, n, emit)
				return nil
			})
		}
	}
}

// accept filters notifications before any RPC call.
func (s *NewPoolSource) accept(n solana.LogNotification) bool {
	if n.Err != nil || n.Signature == "" {
		return false
	}
	if !s.parser.MatchLogs(n.Logs) {
		return false
	}
	return s.seen.Add(n.Signature)
}

// resolve fetches the transaction and emits one event per pool initialization.
func (s *NewPoolSource) resolve(ctx context.Context, n solana.LogNotification, emit Emit) {
	tx, err := s.fetch(ctx, n.Signature)
	if err != nil {
		if ctx.Err() == nil {
			observability.RecordSourceError(domain.SourceNewPool.String())
			s.logger.Warn().Err(err).Str("signature", n.Signature).Msg("transaction fetch failed, pool init dropped")
		}
		return
	}
	if tx.Slot == 0 {
		tx.Slot = n.Slot
	}

	for _, ev := range s.parser.ParseTransaction(tx) {
		s.logger.Debug().
			Str("mint", ev.Mint).
			Str("pool", ev.Pool).
			Str("type", ev.Type.String()).
			Str("signature", ev.TxSignature).
			Msg("pool initialized")
		emit(ev)
	}
}

// fetch retries while the node returns nothing for a freshly confirmed signature.
func (s *NewPoolSource) fetch(ctx context.Context, signature string) (*solana.Transaction, error) {
	delay := s.delay
	var lastErr error

	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		tx, err := s.rpc.GetTransaction(ctx, signature)
		if err != nil {
			lastErr = err
			var rpcErr *solana.RPCError
			if errors.As(err, &rpcErr) {
				return nil, err
			}
			continue
		}
		if tx != nil {
			return tx, nil
		}
		lastErr = errors.New("transaction not yet available")
	}
	return nil, fmt.Errorf("get transaction %s: %w", signature, lastErr)
}

// signatureSet remembers the most recent signatures in insertion order.
// Owned by the Run goroutine.
type signatureSet struct {
	ring  []string
	next  int
	index map[string]struct{}
}

func newSignatureSet(capacity int) *signatureSet {
	return &signatureSet{
		ring:  make([]string, capacity),
		index: make(map[string]struct{}, capacity),
	}
}

// Add records sig and reports whether it was new.
func (s *signatureSet) Add(sig string) bool {
	if _, ok := s.index[sig]; ok {
		return false
	}
	if old := s.ring[s.next]; old != "" {
		delete(s.index, old)
	}
	s.ring[s.next] = sig
	s.index[sig] = struct{}{}
	s.next = (s.next + 1) % len(s.ring)
	return true
}

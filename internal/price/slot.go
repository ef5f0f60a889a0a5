package price

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Snapshot is what a Slot currently shows
type Snapshot struct {
	Symbol string `json:"symbol"`
	Result Result `json:"result"`
}

// Listener is notified of every change a Slot publishes. It is called with the
// slot's lock held and must not call back into the slot.
type Listener func(Snapshot)

// Slot holds the price of the symbol currently selected at one position, such
// as the source side of an exchange. Each Select supersedes the previous one:
// its query is cancelled and any late answer is discarded, so the published
// result always belongs to the most recently selected symbol.
type Slot struct {
	name     string
	resolver *Resolver
	logger   *slog.Logger

	mu         sync.Mutex
	generation uint64
	current    Snapshot
	cancel     context.CancelFunc
	listener   Listener
	changed    chan struct{}
	closed     bool
}

// NewSlot creates an idle slot. name only labels log records.
func NewSlot(name string, resolver *Resolver, logger *slog.Logger) *Slot {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slot{
		name:     name,
		resolver: resolver,
		logger:   logger.With("slot", name),
		changed:  make(chan struct{}),
	}
}

// SetListener registers fn for change notifications, replacing any previous
// listener. A nil fn removes it.
func (s *Slot) SetListener(fn Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = fn
}

// Select makes symbol the slot's subject. A cached price is published
// immediately; otherwise the slot goes Pending until the query completes.
func (s *Slot) Select(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelLocked()
	s.generation++

	if symbol == "" {
		s.publishLocked(Snapshot{})
		return
	}
	if res, ok := s.resolver.Cached(symbol); ok {
		s.publishLocked(Snapshot{Symbol: symbol, Result: res})
		return
	}

	q := Query{ID: uuid.New(), Symbol: symbol, Generation: s.generation}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.publishLocked(Snapshot{Symbol: symbol, Result: Result{State: Pending}})
	s.logger.Debug("Price query issued", "query_id", q.ID, "symbol", symbol, "generation", q.Generation)

	go s.run(ctx, cancel, q)
}

func (s *Slot) run(ctx context.Context, cancel context.CancelFunc, q Query) {
	defer cancel()
	res := s.resolver.Resolve(ctx, q.Symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if res.State == Cancelled || q.Generation != s.generation {
		s.logger.Debug("Stale price result discarded", "query_id", q.ID, "symbol", q.Symbol, "generation", q.Generation)
		return
	}
	s.cancel = nil
	s.publishLocked(Snapshot{Symbol: q.Symbol, Result: res})
	s.logger.Debug("Price query completed", "query_id", q.ID, "symbol", q.Symbol, "state", res.State)
}

// Current returns the published snapshot
func (s *Slot) Current() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Wait blocks until the slot is no longer loading or ctx is done.
func (s *Slot) Wait(ctx context.Context) (Snapshot, error) {
	for {
		s.mu.Lock()
		cur, changed := s.current, s.changed
		s.mu.Unlock()

		if !cur.Result.Loading() {
			return cur, nil
		}
		select {
		case <-ctx.Done():
			return cur, ctx.Err()
		case <-changed:
		}
	}
}

// Close cancels any in-flight query. Results arriving afterwards are dropped
// and further Select calls are ignored.
func (s *Slot) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.cancelLocked()
	s.generation++
	s.closed = true
	if s.current.Result.Loading() {
		s.current.Result = Result{State: Idle}
		s.broadcastLocked()
	}
}

func (s *Slot) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Slot) publishLocked(snap Snapshot) {
	if snap == s.current {
		return
	}
	s.current = snap
	s.broadcastLocked()
	if s.listener != nil {
		s.listener(snap)
	}
}

func (s *Slot) broadcastLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

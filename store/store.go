// Package store owns the unified auction state. It runs the reducers, merges their updates,
// backfills item metadata and tells subscribers when the state actually changed.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/metadata"
	"github.com/cloudx-io/auctionview/reconcile"
)

// ErrClosed is returned by operations on a closed Store.
var ErrClosed = errors.New("store closed")

// ErrNoWallet is returned by a private refresh when no wallet is configured.
var ErrNoWallet = errors.New("no wallet configured")

// Listener receives a copy of the state after a refresh changed it.
type Listener func(snapshot *core.State)

// Options configure a Store.
type Options struct {
	ProgramID string
	Public    *reconcile.PublicReducer
	// Wallet supplies records for private refreshes. Optional.
	Wallet ledgerapi.Wallet
	// Metadata resolves item metadata during backfill. Optional.
	Metadata *metadata.Cache
	// Session is the public key whose bids GetUserBids reports.
	Session string
	// MetadataConcurrency bounds parallel metadata fetches during backfill.
	MetadataConcurrency int
	Logger              *slog.Logger
}

// Store is safe for concurrent use.
type Store struct {
	programID   string
	public      *reconcile.PublicReducer
	wallet      ledgerapi.Wallet
	metadata    *metadata.Cache
	concurrency int
	logger      *slog.Logger

	mu           sync.RWMutex
	state        *core.State
	session      string
	skipped      []core.SkippedItem
	notifiedHash string
	closed       bool

	refreshes singleflight.Group
	flightMu  sync.Mutex
	waiters   map[string]int
	runs      map[string]*refreshRun
	abandoned map[string]int // bumped each time a run is abandoned, per kind

	subsMu sync.Mutex
	subs   map[uuid.UUID]Listener

	lifetime context.Context
	cancel   context.CancelFunc
}

// New creates a Store with an empty state.
func New(opts Options) (*Store, error) {
	if opts.Public == nil {
		return nil, errors.New("store: public reducer is required")
	}
	if opts.ProgramID == "" {
		return nil, errors.New("store: program id is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.MetadataConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	state := core.NewState()
	hash, err := core.ComputeStateFingerprint(state)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	lifetime, cancel := context.WithCancel(context.Background())
	return &Store{
		programID:    opts.ProgramID,
		public:       opts.Public,
		wallet:       opts.Wallet,
		metadata:     opts.Metadata,
		concurrency:  concurrency,
		logger:       logger,
		state:        state,
		session:      opts.Session,
		notifiedHash: hash,
		subs:         make(map[uuid.UUID]Listener),
		waiters:      make(map[string]int),
		runs:         make(map[string]*refreshRun),
		abandoned:    make(map[string]int),
		lifetime:     lifetime,
		cancel:       cancel,
	}, nil
}

// refreshRun is the refresh currently shared by the callers of one kind.
type refreshRun struct {
	cancel context.CancelFunc
}

// Refresh reconciles the state with the ledger. With includePrivate the wallet's records are
// folded first, so bids found there are known before public totals are read. Concurrent
// refreshes of the same kind share one run, which lasts as long as at least one caller is
// still waiting for it; when every caller has given up, its results are discarded. Updates
// merged before a failure are kept.
func (s *Store) Refresh(ctx context.Context, includePrivate bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := "public"
	if includePrivate {
		key = "private"
	}

	s.flightMu.Lock()
	s.waiters[key]++
	generation := s.abandoned[key]
	s.flightMu.Unlock()

	ch := s.refreshes.DoChan(key, func() (any, error) {
		runCtx, cancel := context.WithCancel(s.lifetime)
		run := &refreshRun{cancel: cancel}
		s.flightMu.Lock()
		if s.waiters[key] == 0 || s.abandoned[key] != generation {
			// Every caller gave up before the run started.
			cancel()
		} else {
			s.runs[key] = run
		}
		s.flightMu.Unlock()
		defer func() {
			s.flightMu.Lock()
			if s.runs[key] == run {
				delete(s.runs, key)
			}
			s.flightMu.Unlock()
			cancel()
		}()
		return nil, s.refresh(runCtx, includePrivate)
	})

	select {
	case res := <-ch:
		s.leave(key, false)
		if res.Shared {
			s.logger.Debug("joined in-flight refresh", "kind", key)
		}
		return res.Err
	case <-ctx.Done():
		s.leave(key, true)
		return ctx.Err()
	}
}

// leave drops a caller from the run of kind key. The last caller to abandon a run cancels it,
// and later callers start a fresh one.
func (s *Store) leave(key string, abandoned bool) {
	s.flightMu.Lock()
	defer s.flightMu.Unlock()
	s.waiters[key]--
	if !abandoned || s.waiters[key] > 0 {
		return
	}
	if run, ok := s.runs[key]; ok {
		run.cancel()
		delete(s.runs, key)
	}
	s.abandoned[key]++
	s.refreshes.Forget(key)
}

func (s *Store) refresh(ctx context.Context, includePrivate bool) error {
	if s.isClosed() {
		return ErrClosed
	}
	defer s.notifyIfChanged()

	var skipped []core.SkippedItem
	if includePrivate {
		if s.wallet == nil {
			return ErrNoWallet
		}
		records, err := s.wallet.RequestRecords(ctx, s.programID)
		if err != nil {
			return fmt.Errorf("failed to request wallet records: %w", err)
		}
		partial := reconcile.ReduceFromRecords(s.Snapshot(), records, s.logger)
		skipped = append(skipped, partial.Skipped...)
		if err := s.apply(ctx, partial); err != nil {
			return err
		}
	}

	partial, err := s.public.Reduce(ctx, s.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to reduce public state: %w", err)
	}
	skipped = append(skipped, partial.Skipped...)
	if err := s.apply(ctx, partial); err != nil {
		return err
	}

	if err := s.backfillMetadata(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.state.HasLoadedOnce = true
	s.skipped = skipped
	s.logger.Info("refreshed auction state",
		"private", includePrivate, "auctions", len(s.state.Auctions), "bids", len(s.state.Bids), "skipped", len(skipped))
	return nil
}

// apply merges partial unless the refresh was cancelled or the store closed meanwhile.
func (s *Store) apply(ctx context.Context, partial *core.PartialState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if partial.IsEmpty() {
		return nil
	}
	for _, conflict := range s.state.Merge(partial) {
		s.logger.Warn("refused inconsistent update", "reason", conflict)
	}
	return nil
}

// backfillMetadata resolves metadata for auctions whose document is not cached in the state.
func (s *Store) backfillMetadata(ctx context.Context) error {
	if s.metadata == nil {
		return nil
	}

	type pending struct {
		auctionID string
		key       string
		refs      []string
	}
	var todo []pending
	seen := make(map[string]bool)
	partial := core.NewPartialState()
	s.mu.RLock()
	for _, id := range s.state.KnownAuctionIDs() {
		a, ok := s.state.Auctions[id]
		if !ok {
			a = core.Auction{ID: id}
		}
		a = s.withInviteDetails(a)
		if len(a.MetadataRef) == 0 {
			continue
		}
		key, err := metadata.Key(a.MetadataRef)
		if err != nil || seen[key] {
			continue
		}
		seen[key] = true
		if _, ok := s.state.Metadata[key]; ok {
			continue
		}
		// Resolved earlier outside a refresh, for example while enriching bids.
		if m, ok := s.metadata.Peek(key); ok {
			partial.Metadata[key] = m
			continue
		}
		todo = append(todo, pending{auctionID: id, key: key, refs: a.MetadataRef})
	}
	s.mu.RUnlock()
	if partial.IsEmpty() && len(todo) == 0 {
		return nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, p := range todo {
		g.Go(func() error {
			m := s.metadata.Get(gctx, p.auctionID, p.refs)
			if m.IsZero() {
				return nil
			}
			mu.Lock()
			partial.Metadata[p.key] = m
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Debug("backfilled metadata", "fetched", len(todo), "resolved", len(partial.Metadata), "cache_entries", s.metadata.Len())
	return s.apply(ctx, partial)
}

func (s *Store) notifyIfChanged() {
	s.mu.Lock()
	hash, err := core.ComputeStateFingerprint(s.state)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to fingerprint state", "error", err)
		return
	}
	if hash == s.notifiedHash || s.closed {
		s.mu.Unlock()
		return
	}
	s.notifiedHash = hash
	snapshot := s.state.Clone()
	s.mu.Unlock()

	s.subsMu.Lock()
	listeners := make([]Listener, 0, len(s.subs))
	for _, l := range s.subs {
		listeners = append(listeners, l)
	}
	s.subsMu.Unlock()

	for _, l := range listeners {
		l(snapshot.Clone())
	}
}

// Subscribe registers l for change notifications and returns a function that removes it.
func (s *Store) Subscribe(l Listener) (unsubscribe func()) {
	id := uuid.New()
	s.subsMu.Lock()
	s.subs[id] = l
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

// Close cancels in-flight refreshes and makes later ones fail with ErrClosed.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()
}

func (s *Store) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

// SetSession changes the public key whose bids GetUserBids reports.
func (s *Store) SetSession(publicKey string) {
	s.mu.Lock()
	s.session = publicKey
	s.mu.Unlock()
}

// Session returns the active public key.
func (s *Store) Session() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Snapshot returns a deep copy of the state.
func (s *Store) Snapshot() *core.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Clone()
}

// Skipped returns the inputs the last completed refresh could not use.
func (s *Store) Skipped() []core.SkippedItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.SkippedItem, len(s.skipped))
	copy(out, s.skipped)
	return out
}

// HasLoadedOnce reports whether a refresh has completed.
func (s *Store) HasLoadedOnce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.HasLoadedOnce
}

func sortedAuctionIDs(auctions map[string]core.Auction) []string {
	ids := make([]string, 0, len(auctions))
	for id := range auctions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

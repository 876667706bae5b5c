// Package reconcile turns ledger observations into state updates. The public reducer reads
// program mappings, the private reducer folds decrypted wallet records. Both return a
// core.PartialState for the store to merge and never modify the state they are given.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/ledgerapi/parsing"
)

// DefaultQueryConcurrency bounds point queries when no limit is configured.
const DefaultQueryConcurrency = 8

// PublicOptions configure a PublicReducer.
type PublicOptions struct {
	Source      ledgerapi.MappingSource
	ProgramID   string
	Concurrency int
	Logger      *slog.Logger
}

// PublicReducer derives auction and bid state from the program's public mappings.
type PublicReducer struct {
	source      ledgerapi.MappingSource
	programID   string
	concurrency int
	logger      *slog.Logger
}

// NewPublicReducer creates a PublicReducer.
func NewPublicReducer(opts PublicOptions) (*PublicReducer, error) {
	if opts.Source == nil {
		return nil, errors.New("reconcile: mapping source is required")
	}
	if opts.ProgramID == "" {
		return nil, errors.New("reconcile: program id is required")
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultQueryConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &PublicReducer{
		source:      opts.Source,
		programID:   opts.ProgramID,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Reduce lists public auctions and bids, then queries the per-auction mappings for every
// auction known to prev or discovered by the listings. A failed listing is returned as an
// error. Entries that do not parse are skipped and reported; failed point queries are logged
// and left absent.
func (r *PublicReducer) Reduce(ctx context.Context, prev *core.State) (*core.PartialState, error) {
	if prev == nil {
		prev = core.NewState()
	}
	auctions, err := r.source.ListMappingValues(ctx, r.programID, ledgerapi.MappingPublicAuctions)
	if err != nil {
		return nil, fmt.Errorf("failed to list public auctions: %w", err)
	}
	bids, err := r.source.ListMappingValues(ctx, r.programID, ledgerapi.MappingPublicBids)
	if err != nil {
		return nil, fmt.Errorf("failed to list public bids: %w", err)
	}

	out := core.NewPartialState()
	for _, entry := range auctions {
		id, patch, err := parsePublicAuction(entry)
		if err != nil {
			r.logger.Warn("skipping public auction", "auction_id", entry.Key, "reason", err)
			out.Skip("auction", entry.Key, err.Error())
			continue
		}
		out.PatchAuction(id, patch)
	}
	for _, entry := range bids {
		id, patch, err := parsePublicBid(entry)
		if err != nil {
			r.logger.Warn("skipping public bid", "bid_id", entry.Key, "reason", err)
			out.Skip("bid", entry.Key, err.Error())
			continue
		}
		out.PatchBid(id, patch)
	}
	r.enforceStartingBids(prev, out)

	ids := core.NewIDSet(prev.KnownAuctionIDs()...)
	for id := range out.Auctions {
		ids.Add(id)
	}
	for _, b := range out.Bids {
		ids.Add(*b.AuctionID)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, id := range ids.Sorted() {
		prevAuction := prev.Auctions[id]
		mu.Lock()
		listed := out.Auctions[id]
		mu.Unlock()

		g.Go(func() error {
			patch, err := r.queryAuction(gctx, id, prevAuction, listed)
			if err != nil {
				return err
			}
			mu.Lock()
			out.PatchAuction(id, patch)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.Debug("reduced public state",
		"auctions", len(out.Auctions), "bids", len(out.Bids), "skipped", len(out.Skipped))
	return out, nil
}

// enforceStartingBids drops listed public bids below their auction's starting bid and reports
// them as skipped. Bids on auctions whose starting bid is not known yet are kept.
func (r *PublicReducer) enforceStartingBids(prev *core.State, out *core.PartialState) {
	byAuction := make(map[string][]core.Bid)
	auctionIDs := make(core.IDSet)
	for id, p := range out.Bids {
		byAuction[*p.AuctionID] = append(byAuction[*p.AuctionID], core.Bid{ID: id, AuctionID: *p.AuctionID, Amount: *p.Amount})
		auctionIDs.Add(*p.AuctionID)
	}
	for _, auctionID := range auctionIDs.Sorted() {
		startingBid := prev.Auctions[auctionID].StartingBid
		if listed := out.Auctions[auctionID].StartingBid; listed != nil {
			startingBid = *listed
		}
		if startingBid == 0 {
			continue
		}
		_, rejected := core.EnforceStartingBid(core.RankBids(byAuction[auctionID]), startingBid)
		for _, item := range rejected {
			r.logger.Warn("skipping public bid", "bid_id", item.ID, "auction_id", auctionID, "reason", item.Reason)
			delete(out.Bids, item.ID)
			out.Skipped = append(out.Skipped, item)
		}
	}
}

// queryAuction reads the per-auction mappings that can still change what is known about id.
// Only cancellation is returned as an error.
func (r *PublicReducer) queryAuction(ctx context.Context, id string, prev core.Auction, listed core.AuctionPatch) (core.AuctionPatch, error) {
	var patch core.AuctionPatch

	if v, ok := r.query(ctx, ledgerapi.MappingHighestBids, id); ok {
		if amount, err := parsing.Uint64(v); err == nil {
			patch.HighestBid = &amount
		} else {
			r.logger.Warn("invalid highest bid", "auction_id", id, "reason", err)
		}
	}
	if !prev.Redeemed {
		if v, ok := r.query(ctx, ledgerapi.MappingBidCount, id); ok {
			if count, err := parsing.Uint64(v); err == nil {
				patch.BidCount = &count
			} else {
				r.logger.Warn("invalid bid count", "auction_id", id, "reason", err)
			}
		}
	}
	if prev.Auctioneer == "" && listed.Auctioneer == nil {
		if v, ok := r.query(ctx, ledgerapi.MappingAuctionOwners, id); ok {
			if owner, err := parsing.String(v); err == nil && owner != "" {
				patch.Auctioneer = &owner
			}
		}
	}
	if prev.BidTypes == core.BidTypesUnknown && listed.BidTypes == nil {
		if v, ok := r.query(ctx, ledgerapi.MappingPrivacySettings, id); ok {
			if bt, ok := privacyBidTypes(v); ok {
				patch.BidTypes = &bt
			}
		}
	}

	winner := prev.WinnerBidID
	if winner == "" {
		if v, ok := r.query(ctx, ledgerapi.MappingWinningBids, id); ok {
			if bidID, err := winningBidID(v); err == nil {
				patch.WinnerBidID = &bidID
				winner = bidID
			} else {
				r.logger.Warn("invalid winning bid", "auction_id", id, "reason", err)
			}
		}
	}
	if winner != "" && !prev.Redeemed {
		if v, ok := r.query(ctx, ledgerapi.MappingRedeemedAuctions, id); ok && isRedeemedMarker(v) {
			patch.Redeemed = core.Ptr(true)
		}
	}

	return patch, ctx.Err()
}

// query fetches and parses one mapping value. Missing values and failures both report false;
// failures are logged.
func (r *PublicReducer) query(ctx context.Context, mapping, key string) (any, bool) {
	raw, err := r.source.GetMappingValue(ctx, r.programID, mapping, key)
	switch {
	case errors.Is(err, ledgerapi.ErrMappingValueNotFound):
		return nil, false
	case err != nil:
		if ctx.Err() == nil {
			r.logger.Warn("mapping query failed", "mapping", mapping, "auction_id", key, "reason", err)
		}
		return nil, false
	}
	v, err := parsing.ParseLedgerValue(raw)
	if err != nil {
		r.logger.Warn("unparsable mapping value", "mapping", mapping, "auction_id", key, "reason", err)
		return nil, false
	}
	return parsing.StripVisibilityTags(v), true
}

func parsePublicAuction(entry ledgerapi.MappingEntry) (string, core.AuctionPatch, error) {
	id, err := parsing.Field(entry.Key)
	if err != nil {
		return "", core.AuctionPatch{}, fmt.Errorf("auction id: %w", err)
	}
	v, err := parsing.ParseLedgerValue(entry.Value)
	if err != nil {
		return "", core.AuctionPatch{}, err
	}
	data, ok := parsing.StripVisibilityTags(v).(map[string]any)
	if !ok {
		return "", core.AuctionPatch{}, errors.New("auction value is not a struct")
	}

	patch := core.AuctionPatch{IsPublic: core.Ptr(true)}
	if v, ok := parsing.Lookup(data, "name"); ok {
		if patch.Name, err = parsing.StringSlice(v); err != nil {
			return "", core.AuctionPatch{}, fmt.Errorf("name: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"offchain_data"}, []string{"item", "offchain_data"}); ok {
		if patch.MetadataRef, err = parsing.StringSlice(v); err != nil {
			return "", core.AuctionPatch{}, fmt.Errorf("offchain_data: %w", err)
		}
	}
	v, ok = parsing.Lookup(data, "starting_bid")
	if !ok {
		return "", core.AuctionPatch{}, errors.New("missing starting_bid")
	}
	startingBid, err := parsing.Uint64(v)
	if err != nil {
		return "", core.AuctionPatch{}, fmt.Errorf("starting_bid: %w", err)
	}
	patch.StartingBid = &startingBid

	if v, ok := parsing.Lookup(data, "bid_types_accepted"); ok {
		if code, err := parsing.String(v); err == nil {
			if bt := core.ParseBidTypes(code); bt != core.BidTypesUnknown {
				patch.BidTypes = &bt
			}
		}
	}
	if v, ok := lookupAny(data, []string{"auctioneer"}, []string{"owner"}); ok {
		if owner, err := parsing.String(v); err == nil && owner != "" {
			patch.Auctioneer = &owner
		}
	}
	return id, patch, nil
}

func parsePublicBid(entry ledgerapi.MappingEntry) (string, core.BidPatch, error) {
	id, err := parsing.Field(entry.Key)
	if err != nil {
		return "", core.BidPatch{}, fmt.Errorf("bid id: %w", err)
	}
	v, err := parsing.ParseLedgerValue(entry.Value)
	if err != nil {
		return "", core.BidPatch{}, err
	}
	data, ok := parsing.StripVisibilityTags(v).(map[string]any)
	if !ok {
		return "", core.BidPatch{}, errors.New("bid value is not a struct")
	}

	v, ok = parsing.Lookup(data, "auction_id")
	if !ok {
		return "", core.BidPatch{}, errors.New("missing auction_id")
	}
	auctionID, err := parsing.Field(v)
	if err != nil {
		return "", core.BidPatch{}, fmt.Errorf("auction_id: %w", err)
	}
	v, ok = parsing.Lookup(data, "amount")
	if !ok {
		return "", core.BidPatch{}, errors.New("missing amount")
	}
	amount, err := parsing.Uint64(v)
	if err != nil {
		return "", core.BidPatch{}, fmt.Errorf("amount: %w", err)
	}
	if amount == 0 {
		return "", core.BidPatch{}, errors.New("amount must be positive")
	}

	patch := core.BidPatch{AuctionID: &auctionID, Amount: &amount, IsPublic: core.Ptr(true)}
	if v, ok := parsing.Lookup(data, "bid_public_key"); ok {
		if bidder, err := parsing.String(v); err == nil && bidder != "" {
			patch.Bidder = &bidder
		}
	}
	return id, patch, nil
}

// privacyBidTypes reads bid_types_accepted from a privacy settings value, which is either the
// settings struct or the bare code.
func privacyBidTypes(v any) (core.BidTypes, bool) {
	if inner, ok := parsing.Lookup(v, "bid_types_accepted"); ok {
		v = inner
	}
	code, err := parsing.String(v)
	if err != nil {
		return core.BidTypesUnknown, false
	}
	bt := core.ParseBidTypes(code)
	return bt, bt != core.BidTypesUnknown
}

// winningBidID reads a winning_bids value, which is either the bid id or a struct carrying it.
func winningBidID(v any) (string, error) {
	if inner, ok := parsing.Lookup(v, "bid_id"); ok {
		v = inner
	}
	return parsing.Field(v)
}

// isRedeemedMarker reports whether a redeemed_auctions value marks the auction redeemed. The
// mapping stores either a flag or the redeemed bid id.
func isRedeemedMarker(v any) bool {
	if b, err := parsing.Bool(v); err == nil {
		return b
	}
	s, err := parsing.String(v)
	return err == nil && s != ""
}

func lookupAny(data map[string]any, paths ...[]string) (any, bool) {
	for _, path := range paths {
		if v, ok := parsing.Lookup(data, path...); ok {
			return v, true
		}
	}
	return nil, false
}

package store

import (
	"context"
	"sort"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/metadata"
)

// FindHighestBid returns the largest known bid amount for the auction, or 0 when it has none.
func (s *Store) FindHighestBid(auctionID string) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.HighestAmount(core.BidsForAuction(s.state.Bids, auctionID))
}

// GetAuctionBids returns the auction's bids, highest first.
func (s *Store) GetAuctionBids(auctionID string) []core.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := core.BidsForAuction(s.state.Bids, auctionID)
	for i := range bids {
		bids[i] = core.CloneBid(bids[i])
	}
	return core.RankBids(bids)
}

// GetUserBids returns the wallet's bids that were placed by the active session key. Records the
// wallet decrypted for other bidders are left out, as is everything when no session is set.
func (s *Store) GetUserBids() map[string]core.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]core.Bid)
	if s.session == "" {
		return out
	}
	for id := range s.state.UserBidIDs {
		bid, ok := s.state.Bids[id]
		if !ok || bid.Bidder != s.session {
			continue
		}
		out[id] = core.CloneBid(bid)
	}
	return out
}

// Auction returns one auction.
func (s *Store) Auction(id string) (core.Auction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.Auctions[id]
	if !ok {
		return core.Auction{}, false
	}
	return core.CloneAuction(a), true
}

// Auctions returns every known auction ordered by id.
func (s *Store) Auctions() []core.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Auction, 0, len(s.state.Auctions))
	for _, id := range sortedAuctionIDs(s.state.Auctions) {
		out = append(out, core.CloneAuction(s.state.Auctions[id]))
	}
	return out
}

// UserAuctions returns the auctions whose tickets the wallet holds.
func (s *Store) UserAuctions() []core.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auctionsFor(s.state.UserAuctionIDs)
}

// InvitedAuctions returns the auctions the wallet was invited to. Details the ledger has not
// revealed are taken from the invitation.
func (s *Store) InvitedAuctions() []core.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auctionsFor(s.state.InvitedAuctionIDs)
}

// Invite returns the wallet's invitation to an auction.
func (s *Store) Invite(auctionID string) (core.Invite, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inv, ok := s.state.Invites[auctionID]
	if !ok {
		return core.Invite{}, false
	}
	return core.CloneInvite(inv), true
}

// withInviteDetails fills fields the ledger has not revealed from the wallet's invitation to
// the auction. Caller holds s.mu.
func (s *Store) withInviteDetails(a core.Auction) core.Auction {
	inv, ok := s.state.Invites[a.ID]
	if !ok {
		return a
	}
	if len(a.Name) == 0 {
		a.Name = inv.Name
	}
	if len(a.MetadataRef) == 0 {
		a.MetadataRef = inv.MetadataRef
	}
	if a.Auctioneer == "" {
		a.Auctioneer = inv.Auctioneer
	}
	return a
}

// Bid returns one bid.
func (s *Store) Bid(id string) (core.Bid, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.Bids[id]
	if !ok {
		return core.Bid{}, false
	}
	return core.CloneBid(b), true
}

func (s *Store) auctionsFor(ids core.IDSet) []core.Auction {
	out := make([]core.Auction, 0, len(ids))
	for _, id := range ids.Sorted() {
		a, ok := s.state.Auctions[id]
		if !ok {
			a = core.Auction{ID: id}
		}
		out = append(out, core.CloneAuction(s.withInviteDetails(a)))
	}
	return out
}

// EnrichBidsWithAuctionContext attaches auction details to each bid. The input map is not
// modified. Metadata missing from the state is resolved through the cache.
func (s *Store) EnrichBidsWithAuctionContext(ctx context.Context, bids map[string]core.Bid) map[string]core.EnrichedBid {
	type lookup struct {
		auctionID string
		refs      []string
	}
	out := make(map[string]core.EnrichedBid, len(bids))
	missing := make(map[string]lookup)

	s.mu.RLock()
	for id, bid := range bids {
		bid = core.CloneBid(bid)
		a, known := s.state.Auctions[bid.AuctionID]
		_, invited := s.state.Invites[bid.AuctionID]
		enriched := core.EnrichedBid{Bid: bid}
		if known || invited {
			if !known {
				a = core.Auction{ID: bid.AuctionID}
			}
			a = s.withInviteDetails(a)
			top := core.HighestAmount(core.BidsForAuction(s.state.Bids, a.ID))
			if a.HighestBid > top {
				top = a.HighestBid
			}
			enriched.Winner = a.WinnerBidID != "" && a.WinnerBidID == bid.ID
			enriched.AuctionName = a.DisplayName()
			enriched.IsHighestBid = bid.Amount > 0 && bid.Amount >= top
			enriched.Redeemed = a.Redeemed
			enriched.IsAuctionPublic = a.IsPublic
			enriched.IsAuctionActive = a.IsOpen()
			enriched.AuctionStatus = a.Status()
			if key, err := metadata.Key(a.MetadataRef); err == nil {
				if m, ok := s.state.Metadata[key]; ok {
					enriched.Metadata = m
				} else {
					missing[id] = lookup{auctionID: a.ID, refs: a.MetadataRef}
				}
			}
		} else {
			enriched.AuctionStatus = core.StatusOpen
			enriched.IsAuctionActive = true
		}
		out[id] = enriched
	}
	s.mu.RUnlock()

	if s.metadata != nil {
		for id, l := range missing {
			e := out[id]
			e.Metadata = s.metadata.Get(ctx, l.auctionID, l.refs)
			out[id] = e
		}
	}
	return out
}

// AuctionGroup is a set of bids on one auction, as shown in a bidder's overview.
type AuctionGroup struct {
	AuctionID       string             `json:"auction_id"`
	Name            string             `json:"name,omitempty"`
	Image           string             `json:"image,omitempty"`
	IsAuctionPublic bool               `json:"is_auction_public"`
	IsAuctionActive bool               `json:"is_auction_active"`
	IsOwner         bool               `json:"is_owner"`
	Bids            []core.EnrichedBid `json:"bids"`
}

// GroupByAuction groups enriched bids by auction, ordered by auction id with each group's bids
// highest first. IsOwner marks auctions run by the active session key.
func (s *Store) GroupByAuction(bids map[string]core.EnrichedBid) []AuctionGroup {
	s.mu.RLock()
	session := s.session
	owners := make(map[string]string)
	for _, b := range bids {
		if a, ok := s.state.Auctions[b.AuctionID]; ok {
			owners[b.AuctionID] = a.Auctioneer
		}
	}
	s.mu.RUnlock()

	groups := make(map[string]*AuctionGroup)
	for _, b := range bids {
		g, ok := groups[b.AuctionID]
		if !ok {
			g = &AuctionGroup{
				AuctionID:       b.AuctionID,
				Name:            b.AuctionName,
				Image:           b.Metadata.Image,
				IsAuctionPublic: b.IsAuctionPublic,
				IsAuctionActive: b.IsAuctionActive,
				IsOwner:         session != "" && owners[b.AuctionID] == session,
			}
			groups[b.AuctionID] = g
		}
		g.Bids = append(g.Bids, b)
	}

	out := make([]AuctionGroup, 0, len(groups))
	for _, g := range groups {
		sort.Slice(g.Bids, func(i, j int) bool {
			if g.Bids[i].Amount != g.Bids[j].Amount {
				return g.Bids[i].Amount > g.Bids[j].Amount
			}
			return g.Bids[i].ID < g.Bids[j].ID
		})
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AuctionID < out[j].AuctionID })
	return out
}

// BidFilter selects enriched bids. Nil fields match everything.
type BidFilter struct {
	AuctionOpen   *bool
	BidPublic     *bool
	AuctionPublic *bool
	Winning       *bool
}

// Matches reports whether b passes every set criterion.
func (f BidFilter) Matches(b core.EnrichedBid) bool {
	return matches(f.AuctionOpen, b.IsAuctionActive) &&
		matches(f.BidPublic, b.IsPublic) &&
		matches(f.AuctionPublic, b.IsAuctionPublic) &&
		matches(f.Winning, b.Winner)
}

func matches(want *bool, got bool) bool {
	return want == nil || *want == got
}

// FilterBids returns the bids that match f. The input map is not modified.
func FilterBids(bids map[string]core.EnrichedBid, f BidFilter) map[string]core.EnrichedBid {
	out := make(map[string]core.EnrichedBid)
	for id, b := range bids {
		if f.Matches(b) {
			out[id] = b
		}
	}
	return out
}

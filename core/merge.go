package core

import (
	"slices"
)

// Merge folds a reducer's update into s and returns the lifecycle conflicts it refused.
//
// Merging is per key. Highest bid and bid count only grow. Once an auction has a winner its
// populated fields are frozen, though empty ones may still be filled. Set membership, invites
// and metadata are unions. Winner flags on bids are recomputed afterwards so each auction has
// at most one.
func (s *State) Merge(p *PartialState) []error {
	if p == nil {
		return nil
	}
	var conflicts []error

	for _, id := range sortedKeys(p.Auctions) {
		a, ok := s.Auctions[id]
		if !ok {
			a = Auction{ID: id}
		}
		if err := applyAuctionPatch(&a, p.Auctions[id]); err != nil {
			conflicts = append(conflicts, err...)
		}
		s.Auctions[id] = a
	}

	for _, id := range sortedKeys(p.Bids) {
		b, ok := s.Bids[id]
		if !ok {
			b = Bid{ID: id}
		}
		applyBidPatch(&b, p.Bids[id])
		s.Bids[id] = b
	}

	for id := range p.UserAuctionIDs {
		s.UserAuctionIDs.Add(id)
	}
	for id := range p.InvitedAuctionIDs {
		s.InvitedAuctionIDs.Add(id)
	}
	for id := range p.UserBidIDs {
		s.UserBidIDs.Add(id)
	}
	for id, inv := range p.Invites {
		s.Invites[id] = CloneInvite(inv)
	}
	for key, m := range p.Metadata {
		if _, ok := s.Metadata[key]; ok {
			continue
		}
		m.Attributes = slices.Clone(m.Attributes)
		s.Metadata[key] = m
	}

	s.recomputeWinners()
	return conflicts
}

func applyAuctionPatch(a *Auction, p AuctionPatch) []error {
	frozen := a.WinnerBidID != ""

	if p.Name != nil && (!frozen || len(a.Name) == 0) {
		a.Name = slices.Clone(p.Name)
	}
	if p.MetadataRef != nil && (!frozen || len(a.MetadataRef) == 0) {
		a.MetadataRef = slices.Clone(p.MetadataRef)
	}
	if p.Auctioneer != nil && *p.Auctioneer != "" && (!frozen || a.Auctioneer == "") {
		a.Auctioneer = *p.Auctioneer
	}
	if p.BidTypes != nil && *p.BidTypes != BidTypesUnknown && (!frozen || a.BidTypes == BidTypesUnknown) {
		a.BidTypes = *p.BidTypes
	}
	if p.IsPublic != nil && (!frozen || !a.IsPublic) {
		a.IsPublic = *p.IsPublic
	}
	if p.StartingBid != nil && (!frozen || a.StartingBid == 0) {
		a.StartingBid = *p.StartingBid
	}
	if p.HighestBid != nil && *p.HighestBid > a.HighestBid {
		a.HighestBid = *p.HighestBid
	}
	if p.BidCount != nil && *p.BidCount > a.BidCount {
		a.BidCount = *p.BidCount
	}
	if p.Ticket != nil && (!frozen || a.Ticket == nil) {
		ref := *p.Ticket
		a.Ticket = &ref
	}

	var conflicts []error
	if p.WinnerBidID != nil && *p.WinnerBidID != "" {
		if err := SelectWinner(a, *p.WinnerBidID); err != nil {
			conflicts = append(conflicts, err)
		}
	}
	if p.Redeemed != nil && *p.Redeemed && !a.Redeemed {
		if err := MarkRedeemed(a); err != nil {
			conflicts = append(conflicts, err)
		}
	}
	return conflicts
}

func applyBidPatch(b *Bid, p BidPatch) {
	if p.AuctionID != nil && *p.AuctionID != "" {
		b.AuctionID = *p.AuctionID
	}
	if p.Amount != nil && *p.Amount > 0 {
		b.Amount = *p.Amount
	}
	if p.IsPublic != nil {
		b.IsPublic = *p.IsPublic
	}
	if p.Bidder != nil && *p.Bidder != "" {
		b.Bidder = *p.Bidder
	}
	if p.Record != nil {
		ref := *p.Record
		b.Record = &ref
	}
	if p.Receipt != nil {
		ref := *p.Receipt
		b.Receipt = &ref
	}
}

func (s *State) recomputeWinners() {
	for id, b := range s.Bids {
		a, ok := s.Auctions[b.AuctionID]
		winner := ok && a.WinnerBidID != "" && a.WinnerBidID == id
		if b.Winner != winner {
			b.Winner = winner
			s.Bids[id] = b
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

package core

import (
	"slices"
	"sort"
)

// IDSet is a set of auction or bid identifiers.
type IDSet map[string]struct{}

// NewIDSet builds a set from ids.
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Add inserts id.
func (s IDSet) Add(id string) { s[id] = struct{}{} }

// Has reports membership.
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order.
func (s IDSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (s IDSet) clone() IDSet {
	out := make(IDSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// State is the unified auction view: everything known from public mappings and from the
// records the current wallet decrypted.
type State struct {
	Auctions          map[string]Auction  `cbor:"auctions"`
	Bids              map[string]Bid      `cbor:"bids"`
	UserAuctionIDs    IDSet               `cbor:"user_auction_ids"`
	InvitedAuctionIDs IDSet               `cbor:"invited_auction_ids"`
	UserBidIDs        IDSet               `cbor:"user_bid_ids"`
	Invites           map[string]Invite   `cbor:"invites"`  // keyed by auction ID
	Metadata          map[string]Metadata `cbor:"metadata"` // keyed by metadata URL
	HasLoadedOnce     bool                `cbor:"has_loaded_once"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Auctions:          make(map[string]Auction),
		Bids:              make(map[string]Bid),
		UserAuctionIDs:    make(IDSet),
		InvitedAuctionIDs: make(IDSet),
		UserBidIDs:        make(IDSet),
		Invites:           make(map[string]Invite),
		Metadata:          make(map[string]Metadata),
	}
}

// Clone returns a deep copy that shares nothing mutable with s.
func (s *State) Clone() *State {
	out := &State{
		Auctions:          make(map[string]Auction, len(s.Auctions)),
		Bids:              make(map[string]Bid, len(s.Bids)),
		UserAuctionIDs:    s.UserAuctionIDs.clone(),
		InvitedAuctionIDs: s.InvitedAuctionIDs.clone(),
		UserBidIDs:        s.UserBidIDs.clone(),
		Invites:           make(map[string]Invite, len(s.Invites)),
		Metadata:          make(map[string]Metadata, len(s.Metadata)),
		HasLoadedOnce:     s.HasLoadedOnce,
	}
	for id, a := range s.Auctions {
		out.Auctions[id] = CloneAuction(a)
	}
	for id, b := range s.Bids {
		out.Bids[id] = CloneBid(b)
	}
	for id, inv := range s.Invites {
		out.Invites[id] = CloneInvite(inv)
	}
	for key, m := range s.Metadata {
		m.Attributes = slices.Clone(m.Attributes)
		out.Metadata[key] = m
	}
	return out
}

// KnownAuctionIDs returns every auction id the state refers to, sorted.
func (s *State) KnownAuctionIDs() []string {
	ids := make(IDSet, len(s.Auctions))
	for id := range s.Auctions {
		ids.Add(id)
	}
	for id := range s.UserAuctionIDs {
		ids.Add(id)
	}
	for id := range s.InvitedAuctionIDs {
		ids.Add(id)
	}
	return ids.Sorted()
}

// CloneAuction returns a copy of a that shares no slices or pointers with it.
func CloneAuction(a Auction) Auction {
	a.Name = slices.Clone(a.Name)
	a.MetadataRef = slices.Clone(a.MetadataRef)
	a.Ticket = cloneRef(a.Ticket)
	return a
}

// CloneInvite returns a copy of inv that shares no slices with it.
func CloneInvite(inv Invite) Invite {
	inv.Name = slices.Clone(inv.Name)
	inv.MetadataRef = slices.Clone(inv.MetadataRef)
	return inv
}

// CloneBid returns a copy of b that shares no pointers with it.
func CloneBid(b Bid) Bid {
	b.Record = cloneRef(b.Record)
	b.Receipt = cloneRef(b.Receipt)
	return b
}

func cloneRef(r *RecordRef) *RecordRef {
	if r == nil {
		return nil
	}
	c := *r
	return &c
}

// Ptr returns a pointer to v, for filling patch fields.
func Ptr[T any](v T) *T {
	return &v
}

// AuctionPatch carries the auction fields a reducer observed. Nil fields were not observed
// and never overwrite existing values.
type AuctionPatch struct {
	Name        []string
	MetadataRef []string
	Auctioneer  *string
	BidTypes    *BidTypes
	IsPublic    *bool
	StartingBid *uint64
	HighestBid  *uint64
	BidCount    *uint64
	WinnerBidID *string
	Redeemed    *bool
	Ticket      *RecordRef
}

// Combine folds other into p. Present fields in other win, except the monotone counters which
// keep the maximum.
func (p *AuctionPatch) Combine(other AuctionPatch) {
	if other.Name != nil {
		p.Name = other.Name
	}
	if other.MetadataRef != nil {
		p.MetadataRef = other.MetadataRef
	}
	if other.Auctioneer != nil {
		p.Auctioneer = other.Auctioneer
	}
	if other.BidTypes != nil {
		p.BidTypes = other.BidTypes
	}
	if other.IsPublic != nil {
		p.IsPublic = other.IsPublic
	}
	if other.StartingBid != nil {
		p.StartingBid = other.StartingBid
	}
	p.HighestBid = maxPtr(p.HighestBid, other.HighestBid)
	p.BidCount = maxPtr(p.BidCount, other.BidCount)
	if other.WinnerBidID != nil {
		p.WinnerBidID = other.WinnerBidID
	}
	if other.Redeemed != nil {
		p.Redeemed = other.Redeemed
	}
	if other.Ticket != nil {
		p.Ticket = other.Ticket
	}
}

// BidPatch carries the bid fields a reducer observed.
type BidPatch struct {
	AuctionID *string
	Amount    *uint64
	IsPublic  *bool
	Bidder    *string
	Record    *RecordRef
	Receipt   *RecordRef
}

// Combine folds other into p; present fields in other win.
func (p *BidPatch) Combine(other BidPatch) {
	if other.AuctionID != nil {
		p.AuctionID = other.AuctionID
	}
	if other.Amount != nil {
		p.Amount = other.Amount
	}
	if other.IsPublic != nil {
		p.IsPublic = other.IsPublic
	}
	if other.Bidder != nil {
		p.Bidder = other.Bidder
	}
	if other.Record != nil {
		p.Record = other.Record
	}
	if other.Receipt != nil {
		p.Receipt = other.Receipt
	}
}

// PartialState is a reducer's output: an update to be merged into State, never a replacement.
type PartialState struct {
	Auctions          map[string]AuctionPatch
	Bids              map[string]BidPatch
	UserAuctionIDs    IDSet
	InvitedAuctionIDs IDSet
	UserBidIDs        IDSet
	Invites           map[string]Invite
	Metadata          map[string]Metadata

	// Skipped lists inputs the reducer could not use. It is reported, not merged.
	Skipped []SkippedItem
}

// NewPartialState returns an empty update.
func NewPartialState() *PartialState {
	return &PartialState{
		Auctions:          make(map[string]AuctionPatch),
		Bids:              make(map[string]BidPatch),
		UserAuctionIDs:    make(IDSet),
		InvitedAuctionIDs: make(IDSet),
		UserBidIDs:        make(IDSet),
		Invites:           make(map[string]Invite),
		Metadata:          make(map[string]Metadata),
	}
}

// PatchAuction folds patch into the update for auction id.
func (p *PartialState) PatchAuction(id string, patch AuctionPatch) {
	existing := p.Auctions[id]
	existing.Combine(patch)
	p.Auctions[id] = existing
}

// PatchBid folds patch into the update for bid id.
func (p *PartialState) PatchBid(id string, patch BidPatch) {
	existing := p.Bids[id]
	existing.Combine(patch)
	p.Bids[id] = existing
}

// Skip records an input that was left out.
func (p *PartialState) Skip(kind, id, reason string) {
	p.Skipped = append(p.Skipped, SkippedItem{Kind: kind, ID: id, Reason: reason})
}

// IsEmpty reports whether merging p would change nothing.
func (p *PartialState) IsEmpty() bool {
	return len(p.Auctions) == 0 && len(p.Bids) == 0 &&
		len(p.UserAuctionIDs) == 0 && len(p.InvitedAuctionIDs) == 0 && len(p.UserBidIDs) == 0 &&
		len(p.Invites) == 0 && len(p.Metadata) == 0
}

func maxPtr(a, b *uint64) *uint64 {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case *b > *a:
		return b
	default:
		return a
	}
}

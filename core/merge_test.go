package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func publicPartial() *PartialState {
	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{
		Name:        []string{"478560413000field"},
		IsPublic:    Ptr(true),
		BidTypes:    Ptr(BidTypesPublicOnly),
		StartingBid: Ptr(uint64(1000)),
		HighestBid:  Ptr(uint64(5000)),
		BidCount:    Ptr(uint64(2)),
		Auctioneer:  Ptr("aleo1owner"),
	})
	p.PatchBid("b1", BidPatch{AuctionID: Ptr("a1"), Amount: Ptr(uint64(2000)), IsPublic: Ptr(true)})
	p.PatchBid("b2", BidPatch{AuctionID: Ptr("a1"), Amount: Ptr(uint64(5000)), IsPublic: Ptr(true)})
	return p
}

func privatePartial() *PartialState {
	p := NewPartialState()
	p.PatchAuction("a2", AuctionPatch{
		Name:        []string{"478560413000field"},
		IsPublic:    Ptr(false),
		BidTypes:    Ptr(BidTypesPrivateOnly),
		StartingBid: Ptr(uint64(700)),
		Auctioneer:  Ptr("aleo1me"),
		Ticket:      &RecordRef{ID: "rec-ticket", Owner: "aleo1me"},
	})
	p.UserAuctionIDs.Add("a2")
	p.PatchBid("b3", BidPatch{
		AuctionID: Ptr("a1"),
		Amount:    Ptr(uint64(3000)),
		IsPublic:  Ptr(false),
		Bidder:    Ptr("aleo1me"),
		Receipt:   &RecordRef{ID: "rec-receipt", Owner: "aleo1me"},
	})
	p.UserBidIDs.Add("b3")
	p.Invites["a9"] = Invite{
		Record:      RecordRef{ID: "rec-invite", Owner: "aleo1me"},
		Auctioneer:  "aleo1auctioneer",
		Name:        []string{"478560413000field"},
		MetadataRef: []string{"1field", "0field"},
	}
	p.InvitedAuctionIDs.Add("a9")
	return p
}

func TestMerge_IntoEmpty(t *testing.T) {
	s := NewState()
	conflicts := s.Merge(publicPartial())
	check.Equal(t, 0, len(conflicts))

	a := s.Auctions["a1"]
	check.Equal(t, "a1", a.ID)
	check.Equal(t, uint64(5000), a.HighestBid)
	check.Equal(t, uint64(2), a.BidCount)
	check.True(t, a.IsPublic)
	check.Equal(t, "aleo1owner", a.Auctioneer)
	check.Equal(t, 2, len(s.Bids))
	check.Equal(t, "a1", s.Bids["b2"].AuctionID)
}

func TestMerge_Idempotent(t *testing.T) {
	once := NewState()
	once.Merge(publicPartial())
	once.Merge(privatePartial())

	twice := once.Clone()
	twice.Merge(publicPartial())
	twice.Merge(privatePartial())

	check.Equal(t, once, twice)
}

func TestMerge_Commutative(t *testing.T) {
	pubFirst := NewState()
	pubFirst.Merge(publicPartial())
	pubFirst.Merge(privatePartial())

	privFirst := NewState()
	privFirst.Merge(privatePartial())
	privFirst.Merge(publicPartial())

	check.Equal(t, pubFirst, privFirst)
}

func TestMerge_HighestBidNeverDecreases(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())

	stale := NewPartialState()
	stale.PatchAuction("a1", AuctionPatch{HighestBid: Ptr(uint64(2000)), BidCount: Ptr(uint64(1))})
	s.Merge(stale)

	check.Equal(t, uint64(5000), s.Auctions["a1"].HighestBid)
	check.Equal(t, uint64(2), s.Auctions["a1"].BidCount)

	higher := NewPartialState()
	higher.PatchAuction("a1", AuctionPatch{HighestBid: Ptr(uint64(7000))})
	s.Merge(higher)
	check.Equal(t, uint64(7000), s.Auctions["a1"].HighestBid)
}

func TestMerge_AbsentFieldsKeepValues(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())

	partial := NewPartialState()
	partial.PatchAuction("a1", AuctionPatch{BidCount: Ptr(uint64(3))})
	s.Merge(partial)

	a := s.Auctions["a1"]
	check.Equal(t, []string{"478560413000field"}, a.Name)
	check.Equal(t, uint64(1000), a.StartingBid)
	check.Equal(t, uint64(3), a.BidCount)
}

func TestMerge_WinnerRecomputed(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())

	winner := NewPartialState()
	winner.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b2")})
	conflicts := s.Merge(winner)
	check.Equal(t, 0, len(conflicts))

	check.True(t, s.Bids["b2"].Winner)
	check.False(t, s.Bids["b1"].Winner)
	check.Equal(t, StatusWinnerSelected, s.Auctions["a1"].Status())

	winners := 0
	for _, b := range BidsForAuction(s.Bids, "a1") {
		if b.Winner {
			winners++
		}
	}
	check.Equal(t, 1, winners)
}

func TestMerge_WinnerBidArrivesLater(t *testing.T) {
	s := NewState()
	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b2")})
	s.Merge(p)

	s.Merge(publicPartial())
	check.True(t, s.Bids["b2"].Winner)
}

func TestMerge_ConflictingWinnerRefused(t *testing.T) {
	s := NewState()
	first := NewPartialState()
	first.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b2")})
	s.Merge(first)

	second := NewPartialState()
	second.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b1")})
	conflicts := s.Merge(second)

	assert.Equal(t, 1, len(conflicts))
	var inconsistent *InconsistentStateError
	check.True(t, errors.As(conflicts[0], &inconsistent))
	check.Equal(t, "b2", s.Auctions["a1"].WinnerBidID)
}

func TestMerge_RedeemOpenAuctionRefused(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())

	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{Redeemed: Ptr(true)})
	conflicts := s.Merge(p)

	assert.Equal(t, 1, len(conflicts))
	var inconsistent *InconsistentStateError
	check.True(t, errors.As(conflicts[0], &inconsistent))
	check.False(t, s.Auctions["a1"].Redeemed)
	check.Equal(t, StatusOpen, s.Auctions["a1"].Status())
}

func TestMerge_WinnerAndRedeemedTogether(t *testing.T) {
	s := NewState()
	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b2"), Redeemed: Ptr(true)})
	conflicts := s.Merge(p)

	check.Equal(t, 0, len(conflicts))
	check.Equal(t, StatusRedeemed, s.Auctions["a1"].Status())
}

func TestMerge_FrozenAfterWinner(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())
	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{WinnerBidID: Ptr("b2")})
	s.Merge(p)

	late := NewPartialState()
	late.PatchAuction("a1", AuctionPatch{
		StartingBid: Ptr(uint64(1)),
		Auctioneer:  Ptr("aleo1someoneelse"),
		MetadataRef: []string{"1field"},
	})
	s.Merge(late)

	a := s.Auctions["a1"]
	check.Equal(t, uint64(1000), a.StartingBid)
	check.Equal(t, "aleo1owner", a.Auctioneer)
	// Empty fields may still be filled
	check.Equal(t, []string{"1field"}, a.MetadataRef)
}

func TestMerge_SetsAndMetadataAreUnions(t *testing.T) {
	s := NewState()
	s.Merge(privatePartial())

	p := NewPartialState()
	p.UserBidIDs.Add("b4")
	p.Metadata["https://example.com/1.json"] = Metadata{Name: "One"}
	s.Merge(p)

	check.True(t, s.UserBidIDs.Has("b3"))
	check.True(t, s.UserBidIDs.Has("b4"))
	check.True(t, s.InvitedAuctionIDs.Has("a9"))
	check.Equal(t, "rec-invite", s.Invites["a9"].Record.ID)
	check.Equal(t, []string{"478560413000field"}, s.Invites["a9"].Name)
	_, created := s.Auctions["a9"]
	check.False(t, created)

	// Cached metadata is not replaced
	p2 := NewPartialState()
	p2.Metadata["https://example.com/1.json"] = Metadata{Name: "Other"}
	s.Merge(p2)
	check.Equal(t, "One", s.Metadata["https://example.com/1.json"].Name)
}

func TestMerge_Nil(t *testing.T) {
	s := NewState()
	check.Equal(t, 0, len(s.Merge(nil)))
}

func TestPartialState_PatchCombines(t *testing.T) {
	p := NewPartialState()
	p.PatchAuction("a1", AuctionPatch{HighestBid: Ptr(uint64(5000)), Name: []string{"1field"}})
	p.PatchAuction("a1", AuctionPatch{HighestBid: Ptr(uint64(3000)), StartingBid: Ptr(uint64(10))})

	patch := p.Auctions["a1"]
	check.Equal(t, uint64(5000), *patch.HighestBid)
	check.Equal(t, uint64(10), *patch.StartingBid)
	check.Equal(t, []string{"1field"}, patch.Name)
	check.False(t, p.IsEmpty())
	check.True(t, NewPartialState().IsEmpty())
}

func TestState_CloneIsIndependent(t *testing.T) {
	s := NewState()
	s.Merge(privatePartial())

	c := s.Clone()
	c.UserBidIDs.Add("b99")
	a := c.Auctions["a2"]
	a.Name[0] = "changed"
	a.Ticket.ID = "changed"
	c.Invites["a9"].Name[0] = "changed"

	check.False(t, s.UserBidIDs.Has("b99"))
	check.Equal(t, "478560413000field", s.Invites["a9"].Name[0])
	check.Equal(t, "478560413000field", s.Auctions["a2"].Name[0])
	check.Equal(t, "rec-ticket", s.Auctions["a2"].Ticket.ID)
}

func TestState_KnownAuctionIDs(t *testing.T) {
	s := NewState()
	s.Merge(publicPartial())
	s.Merge(privatePartial())

	check.Equal(t, []string{"a1", "a2", "a9"}, s.KnownAuctionIDs())
}

package core

import (
	"errors"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestAuctionStatus(t *testing.T) {
	tests := []struct {
		name     string
		auction  Auction
		expected AuctionStatus
	}{
		{"no winner", Auction{ID: "a1"}, StatusOpen},
		{"winner selected", Auction{ID: "a1", WinnerBidID: "b1"}, StatusWinnerSelected},
		{"redeemed", Auction{ID: "a1", WinnerBidID: "b1", Redeemed: true}, StatusRedeemed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, tt.auction.Status())
			check.Equal(t, tt.expected == StatusOpen, tt.auction.IsOpen())
		})
	}
}

func TestSelectWinner(t *testing.T) {
	a := Auction{ID: "a1"}
	assert.Nil(t, SelectWinner(&a, "b1"))
	check.Equal(t, "b1", a.WinnerBidID)
	check.Equal(t, StatusWinnerSelected, a.Status())

	// Observing the same winner again is harmless
	check.Nil(t, SelectWinner(&a, "b1"))

	err := SelectWinner(&a, "b2")
	var inconsistent *InconsistentStateError
	assert.True(t, errors.As(err, &inconsistent))
	check.Equal(t, "a1", inconsistent.AuctionID)
	check.Equal(t, "b2", inconsistent.BidID)
	check.Equal(t, "b1", a.WinnerBidID)
}

func TestSelectWinner_EmptyBidID(t *testing.T) {
	a := Auction{ID: "a1"}
	check.NotNil(t, SelectWinner(&a, ""))
	check.Equal(t, StatusOpen, a.Status())
}

func TestMarkRedeemed_OpenAuctionRefused(t *testing.T) {
	a := Auction{ID: "a1"}

	err := MarkRedeemed(&a)

	var inconsistent *InconsistentStateError
	assert.True(t, errors.As(err, &inconsistent))
	check.Equal(t, "a1", inconsistent.AuctionID)
	check.False(t, a.Redeemed)
	check.Equal(t, StatusOpen, a.Status())
}

func TestMarkRedeemed_AfterWinner(t *testing.T) {
	a := Auction{ID: "a1", WinnerBidID: "b1"}
	assert.Nil(t, MarkRedeemed(&a))
	check.Equal(t, StatusRedeemed, a.Status())

	// Already redeemed stays redeemed
	check.Nil(t, MarkRedeemed(&a))
	check.Equal(t, StatusRedeemed, a.Status())
}

func TestInconsistentStateError_Message(t *testing.T) {
	err := &InconsistentStateError{AuctionID: "a1", Msg: "redeemed before a winner was selected"}
	check.Equal(t, "inconsistent state for auction a1: redeemed before a winner was selected", err.Error())

	err = &InconsistentStateError{AuctionID: "a1", BidID: "b2", Msg: "winner already selected (b1)"}
	check.Equal(t, "inconsistent state for auction a1, bid b2: winner already selected (b1)", err.Error())
}

func TestBidTypes(t *testing.T) {
	tests := []struct {
		code           string
		expected       BidTypes
		label          string
		acceptsPrivate bool
		acceptsPublic  bool
	}{
		{"0field", BidTypesPrivateOnly, "Private Only", true, false},
		{"1field", BidTypesPublicOnly, "Public Only", false, true},
		{"2field", BidTypesMixed, "Private & Public", true, true},
		{"7field", BidTypesUnknown, "Unknown", false, false},
		{"", BidTypesUnknown, "Unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			bt := ParseBidTypes(tt.code)
			check.Equal(t, tt.expected, bt)
			check.Equal(t, tt.label, bt.String())
			check.Equal(t, tt.acceptsPrivate, bt.AcceptsPrivate())
			check.Equal(t, tt.acceptsPublic, bt.AcceptsPublic())
		})
	}

	check.Equal(t, BidTypesMixed, ParseBidTypes(BidTypesMixed.Code()))
}

func TestAuction_DisplayName(t *testing.T) {
	a := Auction{ID: "a1", Name: []string{"478560413000field"}}
	check.Equal(t, "Hello", a.DisplayName())

	a.Name = []string{"garbage"}
	check.Equal(t, "", a.DisplayName())
}

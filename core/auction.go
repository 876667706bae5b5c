package core

import (
	"fmt"
)

// AuctionStatus is the lifecycle stage of an auction: Open → WinnerSelected → Redeemed.
type AuctionStatus string

const (
	StatusOpen           AuctionStatus = "open"
	StatusWinnerSelected AuctionStatus = "winner_selected"
	StatusRedeemed       AuctionStatus = "redeemed"
)

// Status derives the lifecycle stage from the winner and redemption fields.
func (a Auction) Status() AuctionStatus {
	switch {
	case a.WinnerBidID == "":
		return StatusOpen
	case !a.Redeemed:
		return StatusWinnerSelected
	default:
		return StatusRedeemed
	}
}

// IsOpen reports whether bids are still accepted.
func (a Auction) IsOpen() bool {
	return a.Status() == StatusOpen
}

// InconsistentStateError reports an action or observed update that would break the auction
// lifecycle, such as redeeming an auction without a winner. The action is refused and state
// is left untouched.
type InconsistentStateError struct {
	AuctionID string
	BidID     string
	Msg       string
}

func (e *InconsistentStateError) Error() string {
	if e.BidID != "" {
		return fmt.Sprintf("inconsistent state for auction %s, bid %s: %s", e.AuctionID, e.BidID, e.Msg)
	}
	return fmt.Sprintf("inconsistent state for auction %s: %s", e.AuctionID, e.Msg)
}

// SelectWinner moves an Open auction to WinnerSelected. Observing the same winner again is a
// no-op; a different winner is refused.
func SelectWinner(a *Auction, bidID string) error {
	if bidID == "" {
		return &InconsistentStateError{AuctionID: a.ID, Msg: "empty winning bid id"}
	}
	switch a.Status() {
	case StatusOpen:
		a.WinnerBidID = bidID
		return nil
	default:
		if a.WinnerBidID == bidID {
			return nil
		}
		return &InconsistentStateError{
			AuctionID: a.ID,
			BidID:     bidID,
			Msg:       fmt.Sprintf("winner already selected (%s)", a.WinnerBidID),
		}
	}
}

// MarkRedeemed moves a WinnerSelected auction to Redeemed. Redeeming an Open auction is
// refused because it would skip winner selection.
func MarkRedeemed(a *Auction) error {
	switch a.Status() {
	case StatusOpen:
		return &InconsistentStateError{AuctionID: a.ID, Msg: "redeemed before a winner was selected"}
	default:
		a.Redeemed = true
		return nil
	}
}

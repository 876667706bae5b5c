package core

import (
	"fmt"
)

// BidMeetsStartingBid returns true if the bid amount meets or exceeds the starting bid.
// Amounts are integer microcredits, so the comparison is exact.
func BidMeetsStartingBid(amount, startingBid uint64) bool {
	return amount > 0 && amount >= startingBid
}

// EnforceStartingBid splits bids into those at or above the starting bid and those below.
// Rejected bids are reported with a reason, in input order.
func EnforceStartingBid(bids []Bid, startingBid uint64) (eligible []Bid, rejected []SkippedItem) {
	eligible = make([]Bid, 0, len(bids))
	rejected = make([]SkippedItem, 0)

	for _, bid := range bids {
		if BidMeetsStartingBid(bid.Amount, startingBid) {
			eligible = append(eligible, bid)
			continue
		}
		rejected = append(rejected, SkippedItem{
			Kind:   "bid",
			ID:     bid.ID,
			Reason: fmt.Sprintf("amount %d below starting bid %d", bid.Amount, startingBid),
		})
	}
	return eligible, rejected
}

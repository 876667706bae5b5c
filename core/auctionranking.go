package core

import (
	"sort"
)

// RankBids returns bids ordered by amount, highest first. Equal amounts are ordered by bid ID
// so that every view of the same data ranks identically. The input slice is not modified.
func RankBids(bids []Bid) []Bid {
	ranked := make([]Bid, len(bids))
	copy(ranked, bids)

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Amount != ranked[j].Amount {
			return ranked[i].Amount > ranked[j].Amount
		}
		return ranked[i].ID < ranked[j].ID
	})
	return ranked
}

// HighestAmount returns the largest bid amount, or 0 when there are no bids.
func HighestAmount(bids []Bid) uint64 {
	var highest uint64
	for _, bid := range bids {
		if bid.Amount > highest {
			highest = bid.Amount
		}
	}
	return highest
}

// HighestBid returns the top-ranked bid.
func HighestBid(bids []Bid) (Bid, bool) {
	if len(bids) == 0 {
		return Bid{}, false
	}
	return RankBids(bids)[0], true
}

// BidsForAuction filters bids by auction.
func BidsForAuction(bids map[string]Bid, auctionID string) []Bid {
	out := make([]Bid, 0)
	for _, bid := range bids {
		if bid.AuctionID == auctionID {
			out = append(out, bid)
		}
	}
	return out
}

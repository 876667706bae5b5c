package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/ledgerapi/ledgertest"
)

const program = "private_auction.aleo"

func seededMappings() *ledgertest.MockMappings {
	m := ledgertest.NewMockMappings()
	m.Set(ledgerapi.MappingPublicAuctions, "1field", `{
  name: 478560413000field,
  bid_types_accepted: 1field,
  item: {
    id: 77field,
    offchain_data: [ 1field, 2field, 0field, 0field ]
  },
  starting_bid: 1000u64
}`)
	m.Set(ledgerapi.MappingPublicBids, "10field", "{ amount: 2000u64, auction_id: 1field, bid_public_key: aleo1alice }")
	m.Set(ledgerapi.MappingPublicBids, "11field", "{ amount: 5000u64, auction_id: 1field }")
	m.Set(ledgerapi.MappingHighestBids, "1field", "5000u64")
	m.Set(ledgerapi.MappingBidCount, "1field", "2u64")
	m.Set(ledgerapi.MappingAuctionOwners, "1field", "aleo1owner")
	return m
}

func newReducer(t *testing.T, m *ledgertest.MockMappings) *PublicReducer {
	t.Helper()
	r, err := NewPublicReducer(PublicOptions{Source: m, ProgramID: program, Concurrency: 2})
	assert.NoError(t, err)
	return r
}

func TestPublicReducer_Reduce(t *testing.T) {
	r := newReducer(t, seededMappings())

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)

	a := out.Auctions["1field"]
	assert.NotNil(t, a.IsPublic)
	check.True(t, *a.IsPublic)
	check.Equal(t, []string{"478560413000field"}, a.Name)
	check.Equal(t, []string{"1field", "2field", "0field", "0field"}, a.MetadataRef)
	check.Equal(t, uint64(1000), *a.StartingBid)
	check.Equal(t, core.BidTypesPublicOnly, *a.BidTypes)
	check.Equal(t, uint64(5000), *a.HighestBid)
	check.Equal(t, uint64(2), *a.BidCount)
	check.Equal(t, "aleo1owner", *a.Auctioneer)
	check.Nil(t, a.WinnerBidID)

	check.Equal(t, 2, len(out.Bids))
	check.Equal(t, "aleo1alice", *out.Bids["10field"].Bidder)
	check.Nil(t, out.Bids["11field"].Bidder)
	check.True(t, *out.Bids["11field"].IsPublic)
	check.Equal(t, 0, len(out.Skipped))
}

func TestPublicReducer_DoesNotMutatePrev(t *testing.T) {
	r := newReducer(t, seededMappings())
	prev := core.NewState()
	prev.Auctions["9field"] = core.Auction{ID: "9field", HighestBid: 10}

	before, err := core.ComputeStateFingerprint(prev)
	assert.NoError(t, err)
	_, err = r.Reduce(context.Background(), prev)
	assert.NoError(t, err)
	after, err := core.ComputeStateFingerprint(prev)
	assert.NoError(t, err)

	check.Equal(t, before, after)
}

func TestPublicReducer_MissingMappingsAreAbsent(t *testing.T) {
	m := ledgertest.NewMockMappings()
	m.Set(ledgerapi.MappingPublicAuctions, "1field", "{ name: 1field, starting_bid: 1000u64 }")
	r := newReducer(t, m)

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)

	a := out.Auctions["1field"]
	check.Nil(t, a.HighestBid)
	check.Nil(t, a.BidCount)
	check.Nil(t, a.Auctioneer)

	s := core.NewState()
	s.Merge(out)
	check.Equal(t, uint64(0), s.Auctions["1field"].HighestBid)
}

func TestPublicReducer_ListingFailureIsReturned(t *testing.T) {
	m := seededMappings()
	m.FailListing(ledgerapi.MappingPublicBids, errors.New("listing unavailable"))
	r := newReducer(t, m)

	_, err := r.Reduce(context.Background(), core.NewState())
	check.Error(t, err)
}

func TestPublicReducer_QueryFailureIsAbsent(t *testing.T) {
	m := seededMappings()
	m.FailQuery(ledgerapi.MappingHighestBids, errors.New("timeout"))
	r := newReducer(t, m)

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)
	check.Nil(t, out.Auctions["1field"].HighestBid)
	check.Equal(t, uint64(2), *out.Auctions["1field"].BidCount)
}

func TestPublicReducer_MalformedEntriesSkipped(t *testing.T) {
	m := seededMappings()
	m.Set(ledgerapi.MappingPublicBids, "12field", "{ amount: 0u64, auction_id: 1field }")
	m.Set(ledgerapi.MappingPublicBids, "13field", "{ amount: ")
	m.Set(ledgerapi.MappingPublicAuctions, "2field", "{ name: 1field }")
	r := newReducer(t, m)

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)
	check.Equal(t, 3, len(out.Skipped))
	check.Equal(t, 2, len(out.Bids))
	_, ok := out.Auctions["1field"]
	check.True(t, ok)
}

func TestPublicReducer_BidsBelowStartingBidSkipped(t *testing.T) {
	m := seededMappings()
	m.Set(ledgerapi.MappingPublicBids, "14field", "{ amount: 500u64, auction_id: 1field }")
	m.Set(ledgerapi.MappingPublicBids, "15field", "{ amount: 1u64, auction_id: 9field }")
	r := newReducer(t, m)

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)
	assert.Equal(t, 1, len(out.Skipped))
	check.Equal(t, "bid", out.Skipped[0].Kind)
	check.Equal(t, "14field", out.Skipped[0].ID)
	_, kept := out.Bids["14field"]
	check.False(t, kept)

	// The starting bid of 9field is unknown, so its bid stays
	_, kept = out.Bids["15field"]
	check.True(t, kept)
	check.Equal(t, 3, len(out.Bids))

	// A starting bid learned earlier applies too
	prev := core.NewState()
	prev.Auctions["9field"] = core.Auction{ID: "9field", StartingBid: 10}
	out, err = r.Reduce(context.Background(), prev)
	assert.NoError(t, err)
	_, kept = out.Bids["15field"]
	check.False(t, kept)
	check.Equal(t, 2, len(out.Skipped))
}

func TestPublicReducer_QueriesKnownAuctions(t *testing.T) {
	m := seededMappings()
	m.Set(ledgerapi.MappingHighestBids, "5field", "300u64")
	m.Set(ledgerapi.MappingPrivacySettings, "5field", "{ bid_types_accepted: 0field, is_public: false }")
	r := newReducer(t, m)

	prev := core.NewState()
	prev.InvitedAuctionIDs.Add("5field")

	out, err := r.Reduce(context.Background(), prev)
	assert.NoError(t, err)
	check.Equal(t, uint64(300), *out.Auctions["5field"].HighestBid)
	check.Equal(t, core.BidTypesPrivateOnly, *out.Auctions["5field"].BidTypes)
}

func TestPublicReducer_WinnerAndRedemption(t *testing.T) {
	m := seededMappings()
	m.Set(ledgerapi.MappingWinningBids, "1field", "11field")
	m.Set(ledgerapi.MappingRedeemedAuctions, "1field", "true")
	r := newReducer(t, m)

	out, err := r.Reduce(context.Background(), core.NewState())
	assert.NoError(t, err)
	check.Equal(t, "11field", *out.Auctions["1field"].WinnerBidID)
	check.True(t, *out.Auctions["1field"].Redeemed)

	s := core.NewState()
	check.Equal(t, 0, len(s.Merge(out)))
	check.Equal(t, core.StatusRedeemed, s.Auctions["1field"].Status())
	check.True(t, s.Bids["11field"].Winner)
	check.False(t, s.Bids["10field"].Winner)
}

func TestPublicReducer_SkipsSettledQueries(t *testing.T) {
	m := seededMappings()
	var mu sync.Mutex
	queried := make(map[string]int)
	m.QueryFunc = func(mapping, key string) {
		mu.Lock()
		queried[mapping]++
		mu.Unlock()
	}
	r := newReducer(t, m)

	prev := core.NewState()
	prev.Auctions["1field"] = core.Auction{
		ID: "1field", Auctioneer: "aleo1owner", BidTypes: core.BidTypesPublicOnly,
		WinnerBidID: "11field", Redeemed: true,
	}

	_, err := r.Reduce(context.Background(), prev)
	assert.NoError(t, err)
	check.Equal(t, 1, queried[ledgerapi.MappingHighestBids])
	check.Equal(t, 0, queried[ledgerapi.MappingBidCount])
	check.Equal(t, 0, queried[ledgerapi.MappingAuctionOwners])
	check.Equal(t, 0, queried[ledgerapi.MappingPrivacySettings])
	check.Equal(t, 0, queried[ledgerapi.MappingWinningBids])
	check.Equal(t, 0, queried[ledgerapi.MappingRedeemedAuctions])
}

func TestPublicReducer_Cancelled(t *testing.T) {
	r := newReducer(t, seededMappings())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Reduce(ctx, core.NewState())
	check.True(t, errors.Is(err, context.Canceled))
}

func TestNewPublicReducer_Validation(t *testing.T) {
	_, err := NewPublicReducer(PublicOptions{ProgramID: program})
	check.Error(t, err)
	_, err = NewPublicReducer(PublicOptions{Source: ledgertest.NewMockMappings()})
	check.Error(t, err)
}

func walletRecords() []ledgerapi.RawRecord {
	return []ledgerapi.RawRecord{
		{
			ID: "r1", Owner: "aleo1me.private", RecordName: ledgerapi.RecordAuctionTicket,
			Data: map[string]any{
				"auction":    "{ name: 478560413000field.private, item_id: 5field.private, offchain_data: [1field.private, 0field.private, 0field.private, 0field.private], starting_bid: 700u64.private }",
				"auction_id": "2field.private",
				"settings":   "{ bid_types_accepted: 0field.private, is_public: false.private }",
			},
		},
		{
			ID: "r2", Owner: "aleo1me.private", RecordName: ledgerapi.RecordAuctionInvite,
			Data: map[string]any{"auction_id": "3field.private", "auction": "{ name: 5field.private }"},
		},
		{
			ID: "r3", Owner: "aleo1me.private", RecordName: ledgerapi.RecordPrivateBid,
			Data: map[string]any{"bid_id": "20field.private", "bid": "{ amount: oops, auction_id: 2field.private, bidder: aleo1x.private }"},
		},
		{
			ID: "r4", Owner: "aleo1me.private", RecordName: ledgerapi.RecordPrivateBid,
			Data: map[string]any{"bid_id": "21field.private", "bid": "{ amount: 900u64.private, auction_id: 2field.private, bidder: aleo1bidder.private }"},
		},
		{
			ID: "r5", Owner: "aleo1me.private", RecordName: ledgerapi.RecordBidReceipt,
			Data: map[string]any{"bid_id": "22field.private", "auction_id": "1field.private", "amount": "3000u64.private"},
		},
	}
}

func TestReduceFromRecords_PartialFailureIsolated(t *testing.T) {
	out := ReduceFromRecords(core.NewState(), walletRecords(), nil)

	assert.Equal(t, 1, len(out.Skipped))
	check.Equal(t, "r3", out.Skipped[0].ID)
	check.Equal(t, "record", out.Skipped[0].Kind)

	// The other four records are all folded
	ticket := out.Auctions["2field"]
	check.Equal(t, "aleo1me", *ticket.Auctioneer)
	check.Equal(t, "r1", ticket.Ticket.ID)
	check.False(t, *ticket.IsPublic)
	check.Equal(t, core.BidTypesPrivateOnly, *ticket.BidTypes)
	check.Equal(t, uint64(700), *ticket.StartingBid)
	check.True(t, out.UserAuctionIDs.Has("2field"))

	check.True(t, out.InvitedAuctionIDs.Has("3field"))
	check.Equal(t, "r2", out.Invites["3field"].Record.ID)
	check.Equal(t, []string{"5field"}, out.Invites["3field"].Name)
	_, created := out.Auctions["3field"]
	check.False(t, created)

	bid := out.Bids["21field"]
	check.Equal(t, uint64(900), *bid.Amount)
	check.False(t, *bid.IsPublic)
	check.Equal(t, "aleo1bidder", *bid.Bidder)
	check.Equal(t, "r4", bid.Record.ID)

	receipt := out.Bids["22field"]
	check.Equal(t, "aleo1me", *receipt.Bidder)
	check.Equal(t, "r5", receipt.Receipt.ID)
	check.Nil(t, receipt.IsPublic)

	check.True(t, out.UserBidIDs.Has("21field"))
	check.True(t, out.UserBidIDs.Has("22field"))
	check.False(t, out.UserBidIDs.Has("20field"))
}

func TestReduceFromRecords_ReceiptCarriesBidAmount(t *testing.T) {
	records := []ledgerapi.RawRecord{{
		ID: "r6", Owner: "aleo1bob.private", RecordName: ledgerapi.RecordBidReceipt,
		Data: map[string]any{
			"auction_id": "1field.private",
			"bid_id":     "7field.private",
			"bid":        "{ amount: 4000u64.private, auction_id: 1field.private, bidder: aleo1bob.private }",
		},
	}}

	s := core.NewState()
	s.Merge(ReduceFromRecords(s, records, nil))

	bid := s.Bids["7field"]
	check.Equal(t, "1field", bid.AuctionID)
	check.Equal(t, uint64(4000), bid.Amount)
	check.Equal(t, "aleo1bob", bid.Bidder)
	check.Equal(t, "r6", bid.Receipt.ID)
	check.Equal(t, uint64(4000), core.HighestAmount(core.BidsForAuction(s.Bids, "1field")))
}

func TestReduceFromRecords_SpentIgnored(t *testing.T) {
	records := walletRecords()
	for i := range records {
		records[i].Spent = true
	}

	out := ReduceFromRecords(core.NewState(), records, nil)
	check.True(t, out.IsEmpty())
	check.Equal(t, 0, len(out.Skipped))
}

func TestReduceFromRecords_Idempotent(t *testing.T) {
	s := core.NewState()
	s.Merge(ReduceFromRecords(s, walletRecords(), nil))
	first, err := core.ComputeStateFingerprint(s)
	assert.NoError(t, err)

	s.Merge(ReduceFromRecords(s, walletRecords(), nil))
	second, err := core.ComputeStateFingerprint(s)
	assert.NoError(t, err)

	check.Equal(t, first, second)
}

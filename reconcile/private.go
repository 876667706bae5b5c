package reconcile

import (
	"log/slog"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi"
)

// ReduceFromRecords folds the wallet's unspent records into a state update. Spent records are
// ignored. A record that fails to decode is skipped and reported without affecting the rest
// of the batch. prev is only read.
func ReduceFromRecords(prev *core.State, records []ledgerapi.RawRecord, logger *slog.Logger) *core.PartialState {
	if logger == nil {
		logger = slog.Default()
	}
	if prev == nil {
		prev = core.NewState()
	}

	out := core.NewPartialState()
	for _, raw := range records {
		if raw.Spent {
			continue
		}
		rec, err := ledgerapi.ParseRecord(raw)
		if err != nil {
			logger.Warn("skipping record", "record_id", raw.ID, "record_name", raw.RecordName, "reason", err)
			out.Skip("record", raw.ID, err.Error())
			continue
		}

		switch r := rec.(type) {
		case ledgerapi.AuctionTicket:
			foldTicket(out, r)
		case ledgerapi.AuctionInvite:
			out.InvitedAuctionIDs.Add(r.AuctionID)
			out.Invites[r.AuctionID] = core.Invite{
				Record:      r.Record,
				Auctioneer:  r.Auctioneer,
				Name:        r.Name,
				MetadataRef: r.MetadataRef,
			}
		case ledgerapi.PrivateBid:
			ref := r.Record
			patch := core.BidPatch{
				AuctionID: core.Ptr(r.AuctionID),
				Amount:    core.Ptr(r.Amount),
				IsPublic:  core.Ptr(false),
				Record:    &ref,
			}
			if r.Bidder != "" {
				patch.Bidder = core.Ptr(r.Bidder)
			}
			out.PatchBid(r.BidID, patch)
			out.UserBidIDs.Add(r.BidID)
		case ledgerapi.BidReceipt:
			ref := r.Record
			patch := core.BidPatch{AuctionID: core.Ptr(r.AuctionID), Receipt: &ref}
			if r.Amount > 0 {
				patch.Amount = core.Ptr(r.Amount)
			} else if _, known := prev.Bids[r.BidID]; !known {
				logger.Debug("receipt for bid without known amount", "bid_id", r.BidID, "auction_id", r.AuctionID)
			}
			bidder := r.Bidder
			if bidder == "" {
				bidder = r.Record.Owner
			}
			if bidder != "" {
				patch.Bidder = &bidder
			}
			out.PatchBid(r.BidID, patch)
			out.UserBidIDs.Add(r.BidID)
		}
	}

	logger.Debug("reduced wallet records",
		"records", len(records), "auctions", len(out.Auctions), "bids", len(out.Bids), "skipped", len(out.Skipped))
	return out
}

func foldTicket(out *core.PartialState, t ledgerapi.AuctionTicket) {
	ref := t.Record
	patch := core.AuctionPatch{
		IsPublic: t.IsPublic,
		Ticket:   &ref,
	}
	if t.StartingBid > 0 {
		patch.StartingBid = core.Ptr(t.StartingBid)
	}
	if t.Record.Owner != "" {
		patch.Auctioneer = core.Ptr(t.Record.Owner)
	}
	if len(t.Name) > 0 {
		patch.Name = t.Name
	}
	if len(t.MetadataRef) > 0 {
		patch.MetadataRef = t.MetadataRef
	}
	if t.BidTypes != core.BidTypesUnknown {
		patch.BidTypes = core.Ptr(t.BidTypes)
	}
	out.PatchAuction(t.AuctionID, patch)
	out.UserAuctionIDs.Add(t.AuctionID)
}

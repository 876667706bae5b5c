package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/dispatch"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/market"
)

func (a *api) RegisterActionRoutes(r chi.Router) {
	r.Post("/actions/auctions", a.createAuction)
	r.Post("/actions/bids", a.placeBid)
	r.Post("/actions/invites", a.inviteBidder)
	r.Post("/actions/winner", a.selectWinner)
	r.Post("/actions/redeem", a.redeemBid)
	r.Get("/actions/pending", a.pendingActions)
	r.Get("/auctions/{id}/redemption-methods", a.redemptionMethods)
}

type createAuctionRequest struct {
	Name        string `json:"name"`
	MetadataURL string `json:"metadata_url"`
	ItemID      string `json:"item_id,omitempty"`
	StartingBid string `json:"starting_bid"` // credits
	BidTypes    string `json:"bid_types"`    // 0field, 1field or 2field
	Public      bool   `json:"public"`
}

type placeBidRequest struct {
	AuctionID      string `json:"auction_id"`
	Amount         string `json:"amount"` // credits
	Private        bool   `json:"private"`
	PublishAddress bool   `json:"publish_address"`
}

type inviteRequest struct {
	AuctionID string `json:"auction_id"`
	Invitee   string `json:"invitee"`
}

type winnerRequest struct {
	AuctionID string `json:"auction_id"`
	BidID     string `json:"bid_id"`
}

type redeemRequest struct {
	BidID     string                  `json:"bid_id"`
	Method    market.RedemptionMethod `json:"method"`
	Recipient string                  `json:"recipient,omitempty"`
}

type actionResponse struct {
	ID ledgerapi.TxID `json:"id"`
}

func (a *api) createAuction(w http.ResponseWriter, r *http.Request) {
	var req createAuctionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	startingBid, err := core.ParseCredits(req.StartingBid)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := a.market.CreateAuction(r.Context(), market.CreateAuctionRequest{
		Name:        req.Name,
		MetadataURL: req.MetadataURL,
		ItemID:      req.ItemID,
		StartingBid: startingBid,
		BidTypes:    core.ParseBidTypes(req.BidTypes),
		Public:      req.Public,
	})
	a.actionResult(w, id, err)
}

func (a *api) placeBid(w http.ResponseWriter, r *http.Request) {
	var req placeBidRequest
	if !decodeBody(w, r, &req) {
		return
	}
	amount, err := core.ParseCredits(req.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id, err := a.market.PlaceBid(r.Context(), market.PlaceBidRequest{
		AuctionID:      req.AuctionID,
		Amount:         amount,
		Private:        req.Private,
		PublishAddress: req.PublishAddress,
	})
	a.actionResult(w, id, err)
}

func (a *api) inviteBidder(w http.ResponseWriter, r *http.Request) {
	var req inviteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := a.market.InviteBidder(r.Context(), req.AuctionID, req.Invitee)
	a.actionResult(w, id, err)
}

func (a *api) selectWinner(w http.ResponseWriter, r *http.Request) {
	var req winnerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := a.market.SelectWinner(r.Context(), req.AuctionID, req.BidID)
	a.actionResult(w, id, err)
}

func (a *api) redeemBid(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if !decodeBody(w, r, &req) {
		return
	}
	id, err := a.market.RedeemBid(r.Context(), req.BidID, req.Method, req.Recipient)
	a.actionResult(w, id, err)
}

func (a *api) redemptionMethods(w http.ResponseWriter, r *http.Request) {
	methods := a.market.RedemptionMethods(chi.URLParam(r, "id"))
	if methods == nil {
		methods = []market.RedemptionMethod{}
	}
	writeJSON(w, http.StatusOK, methods)
}

func (a *api) pendingActions(w http.ResponseWriter, r *http.Request) {
	txs, events := a.outbox.pending()
	writeJSON(w, http.StatusOK, map[string]any{
		"transactions": txs,
		"events":       events,
	})
}

func (a *api) actionResult(w http.ResponseWriter, id ledgerapi.TxID, err error) {
	var inconsistent *core.InconsistentStateError
	var submit *dispatch.SubmitError
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, actionResponse{ID: id})
	case errors.As(err, &inconsistent):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, market.ErrNoSession):
		http.Error(w, err.Error(), http.StatusUnauthorized)
	case errors.As(err, &submit):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, err.Error(), http.StatusBadRequest)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, fmt.Sprintf("failed to parse request: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

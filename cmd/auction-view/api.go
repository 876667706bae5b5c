package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/market"
	"github.com/cloudx-io/auctionview/metadata"
	"github.com/cloudx-io/auctionview/store"
)

// api serves the reconciled state as JSON.
type api struct {
	store  *store.Store
	market *market.Service
	outbox *outbox
	logger *slog.Logger
}

func newRouter(a *api) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	a.RegisterRoutes(r)
	a.RegisterActionRoutes(r)
	return r
}

func (a *api) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", a.health)
	r.Get("/auctions", a.listAuctions)
	r.Get("/auctions/{id}", a.getAuction)
	r.Get("/auctions/{id}/bids", a.auctionBids)
	r.Get("/bids/mine", a.userBids)
	r.Get("/skipped", a.skipped)
	r.Get("/snapshot", a.snapshot)
	r.Post("/refresh", a.refresh)
	r.Put("/session", a.setSession)
}

type auctionView struct {
	core.Auction
	DisplayName        string             `json:"display_name"`
	Status             core.AuctionStatus `json:"status"`
	StartingBidCredits string             `json:"starting_bid_credits"`
	HighestBidCredits  string             `json:"highest_bid_credits"`
	Metadata           *core.Metadata     `json:"metadata,omitempty"`
}

func (a *api) view(auction core.Auction, docs map[string]core.Metadata) auctionView {
	v := auctionView{
		Auction:            auction,
		DisplayName:        auction.DisplayName(),
		Status:             auction.Status(),
		StartingBidCredits: core.FormatCredits(auction.StartingBid),
		HighestBidCredits:  core.FormatCredits(max(auction.HighestBid, a.store.FindHighestBid(auction.ID))),
	}
	if key, err := metadata.Key(auction.MetadataRef); err == nil {
		if m, ok := docs[key]; ok {
			v.Metadata = &m
		}
	}
	return v
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"loaded":  a.store.HasLoadedOnce(),
		"session": a.store.Session(),
	})
}

func (a *api) listAuctions(w http.ResponseWriter, r *http.Request) {
	var auctions []core.Auction
	switch r.URL.Query().Get("scope") {
	case "", "all":
		auctions = a.store.Auctions()
	case "mine":
		auctions = a.store.UserAuctions()
	case "invited":
		auctions = a.store.InvitedAuctions()
	default:
		http.Error(w, "scope must be all, mine or invited", http.StatusBadRequest)
		return
	}
	docs := a.store.Snapshot().Metadata
	out := make([]auctionView, 0, len(auctions))
	for _, auction := range auctions {
		out = append(out, a.view(auction, docs))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *api) getAuction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	auction, ok := a.store.Auction(id)
	if !ok {
		http.Error(w, fmt.Sprintf("auction %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.view(auction, a.store.Snapshot().Metadata))
}

func (a *api) auctionBids(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := a.store.Auction(id); !ok {
		http.Error(w, fmt.Sprintf("auction %s not found", id), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, a.store.GetAuctionBids(id))
}

// userBids serves the session's bids with auction context. Query parameters auction_open,
// bid_public, auction_public and winning filter; group=true groups by auction.
func (a *api) userBids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.BidFilter
	for name, dst := range map[string]**bool{
		"auction_open":   &filter.AuctionOpen,
		"bid_public":     &filter.BidPublic,
		"auction_public": &filter.AuctionPublic,
		"winning":        &filter.Winning,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid %s: %v", name, err), http.StatusBadRequest)
			return
		}
		*dst = &v
	}

	enriched := a.store.EnrichBidsWithAuctionContext(r.Context(), a.store.GetUserBids())
	filtered := store.FilterBids(enriched, filter)
	if q.Get("group") == "true" {
		writeJSON(w, http.StatusOK, a.store.GroupByAuction(filtered))
		return
	}
	writeJSON(w, http.StatusOK, filtered)
}

func (a *api) skipped(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.Skipped())
}

// snapshot serves the whole state in the deterministic CBOR encoding used for fingerprints.
func (a *api) snapshot(w http.ResponseWriter, r *http.Request) {
	state := a.store.Snapshot()
	data, err := core.EncodeState(state)
	if err != nil {
		a.logger.Error("failed to encode snapshot", "error", err)
		http.Error(w, "failed to encode snapshot", http.StatusInternalServerError)
		return
	}
	hash, err := core.ComputeStateFingerprint(state)
	if err == nil {
		w.Header().Set("ETag", strconv.Quote(hash))
	}
	w.Header().Set("Content-Type", "application/cbor")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		a.logger.Warn("failed to write snapshot", "error", err)
	}
}

func (a *api) refresh(w http.ResponseWriter, r *http.Request) {
	private := r.URL.Query().Get("private") == "true"
	err := a.store.Refresh(r.Context(), private)
	switch {
	case errors.Is(err, store.ErrNoWallet):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, store.ErrClosed):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	case err != nil:
		a.logger.Warn("refresh failed", "private", private, "error", err)
		http.Error(w, fmt.Sprintf("refresh failed: %v", err), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "refreshed",
		"skipped": len(a.store.Skipped()),
	})
}

type sessionRequest struct {
	PublicKey string `json:"public_key"`
}

func (a *api) setSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.store.SetSession(req.PublicKey)
	a.logger.Info("session changed", "public_key", req.PublicKey)
	writeJSON(w, http.StatusOK, map[string]string{"session": req.PublicKey})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

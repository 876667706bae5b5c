// Package market turns auctioneer and bidder actions into program executions. Each action is
// checked against the reconciled state first; an action the state does not allow is refused
// with a *core.InconsistentStateError and nothing is submitted.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/dispatch"
	"github.com/cloudx-io/auctionview/fieldcodec"
	"github.com/cloudx-io/auctionview/ledgerapi"
	"github.com/cloudx-io/auctionview/store"
)

// Program function names.
const (
	FnCreatePublicAuction      = "create_public_auction"
	FnCreatePrivateAuction     = "create_private_auction"
	FnBidPublic                = "bid_public"
	FnBidPrivate               = "bid_private"
	FnInviteToAuction          = "invite_to_auction"
	FnSelectWinnerPublic       = "select_winner_public"
	FnSelectWinnerPrivate      = "select_winner_private"
	FnRedeemBidPublic          = "redeem_bid_public"
	FnRedeemBidPrivateToPublic = "redeem_bid_private_to_public"
	FnRedeemBidPrivate         = "redeem_bid_private"
)

// Fees in microcredits.
const (
	FeeCreatePublicAuction  uint64 = 137_000
	FeeCreatePrivateAuction uint64 = 127_000
	FeeBid                  uint64 = 90_000
	FeeInvite               uint64 = 70_000
	FeeSelectWinner         uint64 = 276_000
	FeeRedeem               uint64 = 250_000
)

// metadataSlots is the width of the program's offchain_data array.
const metadataSlots = 4

// privateBidGroup is the group element the program expects as the private bid commitment base.
const privateBidGroup = "2group"

// ErrNoSession is returned when an action needs a signer and no session is active.
var ErrNoSession = errors.New("no active session")

// Options configure a Service.
type Options struct {
	Store      *store.Store
	Dispatcher *dispatch.Dispatcher
	ProgramID  string
	WalletKind dispatch.WalletKind
	// Rand supplies nonces and item ids. Defaults to fieldcodec.DefaultRandSource.
	Rand   fieldcodec.RandSource
	Logger *slog.Logger
}

// Service runs market actions for the store's active session.
type Service struct {
	store      *store.Store
	dispatcher *dispatch.Dispatcher
	programID  string
	kind       dispatch.WalletKind
	rand       fieldcodec.RandSource
	logger     *slog.Logger
}

// New creates a Service.
func New(opts Options) (*Service, error) {
	if opts.Store == nil || opts.Dispatcher == nil {
		return nil, errors.New("market: store and dispatcher are required")
	}
	if opts.ProgramID == "" {
		return nil, errors.New("market: program id is required")
	}
	r := opts.Rand
	if r == nil {
		r = fieldcodec.DefaultRandSource
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		programID:  opts.ProgramID,
		kind:       opts.WalletKind,
		rand:       r,
		logger:     logger,
	}, nil
}

// CreateAuctionRequest describes a new auction.
type CreateAuctionRequest struct {
	Name        string
	MetadataURL string
	// ItemID is a field literal; a random one is used when empty.
	ItemID      string
	StartingBid uint64 // microcredits
	BidTypes    core.BidTypes
	Public      bool
}

// CreateAuction submits create_public_auction or create_private_auction.
func (s *Service) CreateAuction(ctx context.Context, req CreateAuctionRequest) (ledgerapi.TxID, error) {
	if req.StartingBid == 0 {
		return "", errors.New("starting bid must be positive")
	}
	if req.BidTypes == core.BidTypesUnknown {
		return "", errors.New("accepted bid types are required")
	}
	name, err := fieldcodec.EncodeSingleField(req.Name)
	if err != nil {
		return "", fmt.Errorf("failed to encode auction name: %w", err)
	}
	metadata, err := fieldcodec.EncodeTextToFields(req.MetadataURL, metadataSlots)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata url: %w", err)
	}
	itemID := req.ItemID
	if itemID == "" {
		itemID = fieldcodec.RandomField(s.rand)
	}
	startingBid := fmt.Sprintf("%du64", req.StartingBid)
	nonce := fieldcodec.RandomScalar(s.rand)

	p := dispatch.Params{Program: s.programID}
	if req.Public {
		p.Function = FnCreatePublicAuction
		p.Fee = FeeCreatePublicAuction
		p.Inputs = []string{
			fieldcodec.FormatField(name),
			req.BidTypes.Code(),
			itemID,
			fieldcodec.FormatFieldArray(metadata),
			startingBid,
			nonce,
			"false",
		}
	} else {
		p.Function = FnCreatePrivateAuction
		p.Fee = FeeCreatePrivateAuction
		p.Inputs = []string{
			req.BidTypes.Code(),
			itemID,
			fieldcodec.FormatField(name),
			fieldcodec.FormatFieldArray(metadata),
			startingBid,
			nonce,
		}
	}
	return s.submit(ctx, p)
}

// PlaceBidRequest describes a bid.
type PlaceBidRequest struct {
	AuctionID string
	Amount    uint64 // microcredits
	Private   bool
	// PublishAddress reveals the bidder's address with a public bid.
	PublishAddress bool
}

// PlaceBid submits bid_public or bid_private. The auction must be open, accept the bid type
// and the amount must meet its starting bid.
func (s *Service) PlaceBid(ctx context.Context, req PlaceBidRequest) (ledgerapi.TxID, error) {
	a, err := s.openAuction(req.AuctionID)
	if err != nil {
		return "", err
	}
	if !core.BidMeetsStartingBid(req.Amount, a.StartingBid) {
		return "", s.refuse(a.ID, "", fmt.Sprintf("bid %d below starting bid %d", req.Amount, a.StartingBid))
	}

	amount := fmt.Sprintf("%du64", req.Amount)
	nonce := fieldcodec.RandomScalar(s.rand)
	p := dispatch.Params{Program: s.programID, Fee: FeeBid}
	if req.Private {
		if !a.BidTypes.AcceptsPrivate() {
			return "", s.refuse(a.ID, "", fmt.Sprintf("auction accepts %s bids", a.BidTypes))
		}
		if a.Auctioneer == "" {
			return "", s.refuse(a.ID, "", "auctioneer unknown")
		}
		p.Function = FnBidPrivate
		p.Inputs = []string{amount, a.ID, a.Auctioneer, privateBidGroup, nonce}
	} else {
		if !a.BidTypes.AcceptsPublic() {
			return "", s.refuse(a.ID, "", fmt.Sprintf("auction accepts %s bids", a.BidTypes))
		}
		p.Function = FnBidPublic
		p.Inputs = []string{amount, a.ID, nonce, fmt.Sprintf("%t", req.PublishAddress)}
	}
	return s.submit(ctx, p)
}

// InviteBidder submits invite_to_auction. Only the holder of the auction ticket may invite.
func (s *Service) InviteBidder(ctx context.Context, auctionID, invitee string) (ledgerapi.TxID, error) {
	if invitee == "" {
		return "", errors.New("invitee address is required")
	}
	a, err := s.ownedAuction(auctionID)
	if err != nil {
		return "", err
	}
	if !a.IsOpen() {
		return "", s.refuse(a.ID, "", "auction is closed")
	}
	return s.submit(ctx, dispatch.Params{
		Program:  s.programID,
		Function: FnInviteToAuction,
		Inputs:   []string{a.Ticket.Plaintext, invitee},
		Fee:      FeeInvite,
	})
}

// SelectWinner submits select_winner_public or select_winner_private for the auction's
// highest bid. The auction must be open and owned by the session.
func (s *Service) SelectWinner(ctx context.Context, auctionID, bidID string) (ledgerapi.TxID, error) {
	a, err := s.ownedAuction(auctionID)
	if err != nil {
		return "", err
	}
	if !a.IsOpen() {
		return "", s.refuse(a.ID, bidID, "winner already selected")
	}
	bid, ok := s.store.Bid(bidID)
	if !ok || bid.AuctionID != a.ID {
		return "", s.refuse(a.ID, bidID, "bid not found for auction")
	}
	if top, _ := core.HighestBid(s.store.GetAuctionBids(a.ID)); bid.Amount < top.Amount {
		return "", s.refuse(a.ID, bidID, fmt.Sprintf("bid %d is not the highest (%d, bid %s)", bid.Amount, top.Amount, top.ID))
	}

	p := dispatch.Params{Program: s.programID, Fee: FeeSelectWinner}
	if bid.IsPublic {
		if bid.Bidder == "" {
			return "", s.refuse(a.ID, bidID, "public bid has no bidder key")
		}
		p.Function = FnSelectWinnerPublic
		p.Inputs = []string{a.Ticket.Plaintext, publicBidLiteral(bid), bid.ID}
	} else {
		if bid.Record == nil {
			return "", s.refuse(a.ID, bidID, "private bid record not in wallet")
		}
		p.Function = FnSelectWinnerPrivate
		p.Inputs = []string{a.Ticket.Plaintext, bid.Record.Plaintext}
	}
	return s.submit(ctx, p)
}

func publicBidLiteral(b core.Bid) string {
	return fmt.Sprintf("{\n  amount: %du64,\n  auction_id: %s,\n  bid_public_key: %s\n}", b.Amount, b.AuctionID, b.Bidder)
}

// RedemptionMethod is a way for a winning bidder to redeem.
type RedemptionMethod string

const (
	RedeemPublic          RedemptionMethod = "public"
	RedeemPrivateToPublic RedemptionMethod = "private_to_public"
	RedeemPrivate         RedemptionMethod = "private"
)

// RedemptionMethods lists how a bid on the auction can be redeemed: public auctions allow
// public and private-to-public redemption, an invite allows private redemption.
func (s *Service) RedemptionMethods(auctionID string) []RedemptionMethod {
	var methods []RedemptionMethod
	if a, ok := s.store.Auction(auctionID); ok && a.IsPublic {
		methods = append(methods, RedeemPublic, RedeemPrivateToPublic)
	}
	if _, ok := s.store.Invite(auctionID); ok {
		methods = append(methods, RedeemPrivate)
	}
	return methods
}

// RedeemBid submits the redemption of a winning bid. recipient receives the item for the
// private-to-public and private methods and defaults to the session key.
func (s *Service) RedeemBid(ctx context.Context, bidID string, method RedemptionMethod, recipient string) (ledgerapi.TxID, error) {
	bid, ok := s.store.Bid(bidID)
	if !ok {
		return "", s.refuse("", bidID, "bid not found")
	}
	a, ok := s.store.Auction(bid.AuctionID)
	if !ok {
		return "", s.refuse(bid.AuctionID, bidID, "auction not found")
	}
	switch {
	case a.WinnerBidID != bidID:
		return "", s.refuse(a.ID, bidID, "bid is not the winner")
	case a.Redeemed:
		return "", s.refuse(a.ID, bidID, "already redeemed")
	case bid.Receipt == nil:
		return "", s.refuse(a.ID, bidID, "bid receipt not in wallet")
	}
	allowed := false
	for _, m := range s.RedemptionMethods(a.ID) {
		allowed = allowed || m == method
	}
	if !allowed {
		return "", s.refuse(a.ID, bidID, fmt.Sprintf("redemption method %q not available", method))
	}
	if recipient == "" {
		recipient = s.store.Session()
	}

	p := dispatch.Params{Program: s.programID, Fee: FeeRedeem}
	switch method {
	case RedeemPublic:
		p.Function = FnRedeemBidPublic
		p.Inputs = []string{a.Auctioneer, bid.Receipt.Plaintext}
	case RedeemPrivateToPublic:
		p.Function = FnRedeemBidPrivateToPublic
		p.Inputs = []string{a.Auctioneer, bid.Receipt.Plaintext, recipient}
	case RedeemPrivate:
		invite, _ := s.store.Invite(a.ID)
		p.Function = FnRedeemBidPrivate
		p.Inputs = []string{invite.Record.Plaintext, bid.Receipt.Plaintext, recipient}
	}
	return s.submit(ctx, p)
}

func (s *Service) openAuction(id string) (core.Auction, error) {
	a, ok := s.store.Auction(id)
	if !ok {
		return core.Auction{}, s.refuse(id, "", "auction not found")
	}
	if !a.IsOpen() {
		return core.Auction{}, s.refuse(id, "", fmt.Sprintf("auction is %s", a.Status()))
	}
	return a, nil
}

func (s *Service) ownedAuction(id string) (core.Auction, error) {
	a, ok := s.store.Auction(id)
	if !ok {
		return core.Auction{}, s.refuse(id, "", "auction not found")
	}
	if a.Ticket == nil {
		return core.Auction{}, s.refuse(id, "", "auction ticket not in wallet")
	}
	if session := s.store.Session(); session == "" || a.Auctioneer != session {
		return core.Auction{}, s.refuse(id, "", "session is not the auctioneer")
	}
	return a, nil
}

func (s *Service) refuse(auctionID, bidID, msg string) error {
	s.logger.Warn("refusing action", "auction_id", auctionID, "bid_id", bidID, "reason", msg)
	return &core.InconsistentStateError{AuctionID: auctionID, BidID: bidID, Msg: msg}
}

func (s *Service) submit(ctx context.Context, p dispatch.Params) (ledgerapi.TxID, error) {
	signer := s.store.Session()
	if signer == "" {
		return "", ErrNoSession
	}
	p.Signer = signer
	return s.dispatcher.Submit(ctx, p, s.kind)
}

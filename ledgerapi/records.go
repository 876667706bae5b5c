package ledgerapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cloudx-io/auctionview/core"
	"github.com/cloudx-io/auctionview/ledgerapi/parsing"
)

// Record names produced by the auction program.
const (
	RecordAuctionTicket = "AuctionTicket"
	RecordAuctionInvite = "AuctionInvite"
	RecordPrivateBid    = "PrivateBid"
	RecordBidReceipt    = "BidReceipt"
)

// ErrUnknownRecord is wrapped by RecordError when the record name is not one the auction
// program defines.
var ErrUnknownRecord = errors.New("unknown record type")

// RecordError reports a record that could not be decoded.
type RecordError struct {
	RecordID   string
	RecordName string
	Err        error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %s (%s): %v", e.RecordID, e.RecordName, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Record is one decoded auction record. The concrete types are AuctionTicket, AuctionInvite,
// PrivateBid and BidReceipt.
type Record interface {
	Ref() core.RecordRef
	isRecord()
}

// AuctionTicket is the auctioneer's capability record for one auction.
type AuctionTicket struct {
	Record      core.RecordRef
	AuctionID   string
	Name        []string
	ItemID      string
	MetadataRef []string
	StartingBid uint64
	BidTypes    core.BidTypes
	IsPublic    *bool // nil when the ticket does not say
}

// AuctionInvite grants its owner the right to bid on a private auction.
type AuctionInvite struct {
	Record      core.RecordRef
	AuctionID   string
	Auctioneer  string
	Name        []string
	MetadataRef []string
}

// PrivateBid is a sealed bid as seen by the auctioneer.
type PrivateBid struct {
	Record    core.RecordRef
	BidID     string
	AuctionID string
	Amount    uint64
	Bidder    string
}

// BidReceipt is the bidder's proof of a bid, needed to redeem it.
type BidReceipt struct {
	Record    core.RecordRef
	BidID     string
	AuctionID string
	Amount    uint64
	Bidder    string
}

func (r AuctionTicket) Ref() core.RecordRef { return r.Record }
func (r AuctionInvite) Ref() core.RecordRef { return r.Record }
func (r PrivateBid) Ref() core.RecordRef    { return r.Record }
func (r BidReceipt) Ref() core.RecordRef    { return r.Record }

func (AuctionTicket) isRecord() {}
func (AuctionInvite) isRecord() {}
func (PrivateBid) isRecord()    {}
func (BidReceipt) isRecord()    {}

// ParseRecord decodes a raw wallet record. Visibility suffixes are removed from every value.
// Nested structs may arrive either decoded or as literal text; both are accepted. When Data is
// empty the plaintext literal is parsed instead.
func ParseRecord(raw RawRecord) (Record, error) {
	data, err := recordData(raw)
	if err != nil {
		return nil, &RecordError{RecordID: raw.ID, RecordName: raw.RecordName, Err: err}
	}

	ref := core.RecordRef{ID: raw.ID, Owner: parsing.StripVisibility(raw.Owner), Plaintext: raw.Plaintext}
	var rec Record
	switch raw.RecordName {
	case RecordAuctionTicket:
		rec, err = parseTicket(ref, data)
	case RecordAuctionInvite:
		rec, err = parseInvite(ref, data)
	case RecordPrivateBid:
		rec, err = parsePrivateBid(ref, data)
	case RecordBidReceipt:
		rec, err = parseReceipt(ref, data)
	default:
		err = ErrUnknownRecord
	}
	if err != nil {
		return nil, &RecordError{RecordID: raw.ID, RecordName: raw.RecordName, Err: err}
	}
	return rec, nil
}

func recordData(raw RawRecord) (map[string]any, error) {
	if len(raw.Data) == 0 {
		if strings.TrimSpace(raw.Plaintext) == "" {
			return nil, errors.New("record has neither data nor plaintext")
		}
		parsed, err := parsing.ParseLedgerLiteral(raw.Plaintext)
		if err != nil {
			return nil, fmt.Errorf("failed to parse plaintext: %w", err)
		}
		return parsing.StripVisibilityTags(parsed).(map[string]any), nil
	}

	out := make(map[string]any, len(raw.Data))
	for key, v := range raw.Data {
		expanded, err := expandLiteral(v)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", key, err)
		}
		out[key] = parsing.StripVisibilityTags(expanded)
	}
	return out, nil
}

// expandLiteral parses string values holding struct or array literals.
func expandLiteral(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return parsing.ParseLedgerValue(trimmed)
	}
	return s, nil
}

func parseTicket(ref core.RecordRef, data map[string]any) (Record, error) {
	t := AuctionTicket{Record: ref}
	var err error
	if t.AuctionID, err = requiredField(data, "auction_id"); err != nil {
		// Older tickets carry the id under "id".
		if t.AuctionID, err = requiredField(data, "id"); err != nil {
			return nil, err
		}
	}

	if v, ok := parsing.Lookup(data, "auction", "name"); ok {
		if t.Name, err = parsing.StringSlice(v); err != nil {
			return nil, fmt.Errorf("auction.name: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"auction", "item_id"}, []string{"auction", "item", "id"}); ok {
		if t.ItemID, err = parsing.String(v); err != nil {
			return nil, fmt.Errorf("auction.item_id: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"auction", "offchain_data"}, []string{"auction", "item", "offchain_data"}); ok {
		if t.MetadataRef, err = parsing.StringSlice(v); err != nil {
			return nil, fmt.Errorf("auction.offchain_data: %w", err)
		}
	}
	if v, ok := parsing.Lookup(data, "auction", "starting_bid"); ok {
		if t.StartingBid, err = parsing.Uint64(v); err != nil {
			return nil, fmt.Errorf("auction.starting_bid: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"settings", "bid_types_accepted"}, []string{"auction", "bid_types_accepted"}); ok {
		code, err := parsing.String(v)
		if err != nil {
			return nil, fmt.Errorf("bid_types_accepted: %w", err)
		}
		t.BidTypes = core.ParseBidTypes(code)
	}
	if v, ok := parsing.Lookup(data, "settings", "is_public"); ok {
		isPublic, err := parsing.Bool(v)
		if err != nil {
			return nil, fmt.Errorf("settings.is_public: %w", err)
		}
		t.IsPublic = &isPublic
	}
	return t, nil
}

func parseInvite(ref core.RecordRef, data map[string]any) (Record, error) {
	inv := AuctionInvite{Record: ref}
	var err error
	if inv.AuctionID, err = requiredField(data, "auction_id"); err != nil {
		return nil, err
	}
	if v, ok := parsing.Lookup(data, "auctioneer"); ok {
		if inv.Auctioneer, err = parsing.String(v); err != nil {
			return nil, fmt.Errorf("auctioneer: %w", err)
		}
	}
	if v, ok := parsing.Lookup(data, "auction", "name"); ok {
		if inv.Name, err = parsing.StringSlice(v); err != nil {
			return nil, fmt.Errorf("auction.name: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"auction", "item", "offchain_data"}, []string{"auction", "offchain_data"}); ok {
		if inv.MetadataRef, err = parsing.StringSlice(v); err != nil {
			return nil, fmt.Errorf("auction.offchain_data: %w", err)
		}
	}
	return inv, nil
}

func parsePrivateBid(ref core.RecordRef, data map[string]any) (Record, error) {
	b := PrivateBid{Record: ref}
	var err error
	if b.BidID, err = requiredField(data, "bid_id"); err != nil {
		return nil, err
	}
	if b.AuctionID, err = requiredField(data, "bid", "auction_id"); err != nil {
		return nil, err
	}
	v, ok := parsing.Lookup(data, "bid", "amount")
	if !ok {
		return nil, errors.New("missing bid.amount")
	}
	if b.Amount, err = positiveAmount(v); err != nil {
		return nil, fmt.Errorf("bid.amount: %w", err)
	}
	if v, ok := parsing.Lookup(data, "bid", "bidder"); ok {
		if b.Bidder, err = parsing.String(v); err != nil {
			return nil, fmt.Errorf("bid.bidder: %w", err)
		}
	}
	return b, nil
}

func parseReceipt(ref core.RecordRef, data map[string]any) (Record, error) {
	r := BidReceipt{Record: ref}
	var err error
	if r.BidID, err = requiredField(data, "bid_id"); err != nil {
		return nil, err
	}
	if r.AuctionID, err = requiredField(data, "auction_id"); err != nil {
		if r.AuctionID, err = requiredField(data, "bid", "auction_id"); err != nil {
			return nil, err
		}
	}
	// Receipts carry the sealed bid under "bid"; flat exports put its fields at the top level.
	if v, ok := lookupAny(data, []string{"amount"}, []string{"bid", "amount"}); ok {
		if r.Amount, err = positiveAmount(v); err != nil {
			return nil, fmt.Errorf("amount: %w", err)
		}
	}
	if v, ok := lookupAny(data, []string{"bidder"}, []string{"bid", "bidder"}); ok {
		if r.Bidder, err = parsing.String(v); err != nil {
			return nil, fmt.Errorf("bidder: %w", err)
		}
	}
	return r, nil
}

func requiredField(data map[string]any, path ...string) (string, error) {
	v, ok := parsing.Lookup(data, path...)
	if !ok {
		return "", fmt.Errorf("missing %s", strings.Join(path, "."))
	}
	id, err := parsing.Field(v)
	if err != nil {
		return "", fmt.Errorf("%s: %w", strings.Join(path, "."), err)
	}
	return id, nil
}

func positiveAmount(v any) (uint64, error) {
	n, err := parsing.Uint64(v)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, errors.New("amount must be positive")
	}
	return n, nil
}

func lookupAny(data map[string]any, paths ...[]string) (any, bool) {
	for _, path := range paths {
		if v, ok := parsing.Lookup(data, path...); ok {
			return v, true
		}
	}
	return nil, false
}

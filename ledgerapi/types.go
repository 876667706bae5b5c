// Package ledgerapi defines the boundary between the reconciler and the outside world: the
// records a wallet hands over, the mapping values a node serves, and the transaction shapes
// a wallet accepts.
package ledgerapi

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// RawRecord is a decrypted record as delivered by a wallet.
type RawRecord struct {
	ID         string         `json:"id"`
	Owner      string         `json:"owner"`
	ProgramID  string         `json:"program_id"`
	RecordName string         `json:"recordName"`
	Spent      bool           `json:"spent"`
	Data       map[string]any `json:"data,omitempty"`
	Plaintext  string         `json:"plaintext,omitempty"`
}

// MappingEntry is one key/value pair of an on-chain mapping. Values are raw ledger literals.
type MappingEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Mapping names read by the reconciler.
const (
	MappingPublicAuctions   = "public_auctions"
	MappingPublicBids       = "public_bids"
	MappingHighestBids      = "highest_bids"
	MappingBidCount         = "bid_count"
	MappingPrivacySettings  = "auction_privacy_settings"
	MappingAuctionOwners    = "auction_owners"
	MappingWinningBids      = "winning_bids"
	MappingRedeemedAuctions = "redeemed_auctions"
)

// ErrMappingValueNotFound is returned by MappingClient when a key has no value.
var ErrMappingValueNotFound = errors.New("mapping value not found")

// TxID identifies a submitted transaction or wallet event.
type TxID string

// Transaction is an execution request for wallets that submit directly.
type Transaction struct {
	Address    string   `json:"address"`
	Network    string   `json:"network"`
	Program    string   `json:"program"`
	Function   string   `json:"function"`
	Inputs     []string `json:"inputs"`
	Fee        uint64   `json:"fee"` // microcredits
	FeePrivate bool     `json:"fee_private"`
}

// EventType is the kind of request sent to an event-style wallet.
type EventType string

const (
	EventTypeExecute EventType = "Execute"
)

// EventRequest is an execution request for wallets that model submissions as events.
type EventRequest struct {
	Type       EventType       `json:"type"`
	ProgramID  string          `json:"programId"`
	FunctionID string          `json:"functionId"`
	Fee        decimal.Decimal `json:"fee"` // credits
	Inputs     []string        `json:"inputs"`
	Address    string          `json:"address,omitempty"`
	RequestID  string          `json:"requestId,omitempty"`
}

// EventResponse carries the wallet's answer to an EventRequest. A non-empty Error means the
// request was rejected.
type EventResponse struct {
	EventID string `json:"eventId,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Wallet hands over the records it can decrypt.
type Wallet interface {
	Connect(ctx context.Context) error
	RequestRecords(ctx context.Context, programID string) ([]RawRecord, error)
}

// DirectExecutor submits a transaction and returns its id.
type DirectExecutor interface {
	Execute(ctx context.Context, tx Transaction) (TxID, error)
}

// EventCreator submits a request as a wallet event.
type EventCreator interface {
	CreateEvent(ctx context.Context, req EventRequest) (EventResponse, error)
}

// MappingClient reads a single mapping value.
type MappingClient interface {
	GetMappingValue(ctx context.Context, program, mapping, key string) (string, error)
}

// MappingLister lists every entry of a mapping.
type MappingLister interface {
	ListMappingValues(ctx context.Context, program, mapping string) ([]MappingEntry, error)
}

// MappingSource is the combined read capability the public reducer needs.
type MappingSource interface {
	MappingClient
	MappingLister
}

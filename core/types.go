package core

import (
	"github.com/cloudx-io/auctionview/fieldcodec"
)

// BidTypes is the set of bid kinds an auction accepts.
type BidTypes int

const (
	BidTypesUnknown BidTypes = iota
	BidTypesPrivateOnly
	BidTypesPublicOnly
	BidTypesMixed
)

// ParseBidTypes maps the ledger codes 0field/1field/2field onto BidTypes.
func ParseBidTypes(code string) BidTypes {
	switch code {
	case "0field", "0":
		return BidTypesPrivateOnly
	case "1field", "1":
		return BidTypesPublicOnly
	case "2field", "2":
		return BidTypesMixed
	default:
		return BidTypesUnknown
	}
}

// Code returns the ledger literal for the bid types, or "" when unknown.
func (b BidTypes) Code() string {
	switch b {
	case BidTypesPrivateOnly:
		return "0field"
	case BidTypesPublicOnly:
		return "1field"
	case BidTypesMixed:
		return "2field"
	default:
		return ""
	}
}

func (b BidTypes) String() string {
	switch b {
	case BidTypesPrivateOnly:
		return "Private Only"
	case BidTypesPublicOnly:
		return "Public Only"
	case BidTypesMixed:
		return "Private & Public"
	default:
		return "Unknown"
	}
}

// AcceptsPrivate reports whether private bids may be placed.
func (b BidTypes) AcceptsPrivate() bool {
	return b == BidTypesPrivateOnly || b == BidTypesMixed
}

// AcceptsPublic reports whether public bids may be placed.
func (b BidTypes) AcceptsPublic() bool {
	return b == BidTypesPublicOnly || b == BidTypesMixed
}

// RecordRef is an opaque handle to a wallet record. Plaintext is the record text the wallet
// accepts back as a transaction input.
type RecordRef struct {
	ID        string `json:"id" cbor:"id"`
	Owner     string `json:"owner" cbor:"owner"`
	Plaintext string `json:"plaintext,omitempty" cbor:"plaintext,omitempty"`
}

// Invite is an invitation to bid on a private auction. It carries the auction details the
// invitee is allowed to see, which may be all that is known about the auction.
type Invite struct {
	Record      RecordRef `json:"record" cbor:"record"`
	Auctioneer  string    `json:"auctioneer,omitempty" cbor:"auctioneer,omitempty"`
	Name        []string  `json:"name,omitempty" cbor:"name,omitempty"`                 // field literals
	MetadataRef []string  `json:"metadata_ref,omitempty" cbor:"metadata_ref,omitempty"` // field literals
}

// Auction is the reconciled view of one auction.
type Auction struct {
	ID          string   `json:"id" cbor:"id"`
	Name        []string `json:"name,omitempty" cbor:"name,omitempty"`                 // field literals
	MetadataRef []string `json:"metadata_ref,omitempty" cbor:"metadata_ref,omitempty"` // field literals
	Auctioneer  string   `json:"auctioneer,omitempty" cbor:"auctioneer,omitempty"`
	BidTypes    BidTypes `json:"bid_types" cbor:"bid_types"`
	IsPublic    bool     `json:"is_public" cbor:"is_public"`
	StartingBid uint64   `json:"starting_bid" cbor:"starting_bid"` // microcredits
	HighestBid  uint64   `json:"highest_bid" cbor:"highest_bid"`   // microcredits
	BidCount    uint64   `json:"bid_count" cbor:"bid_count"`
	WinnerBidID string   `json:"winner_bid_id,omitempty" cbor:"winner_bid_id,omitempty"`
	Redeemed    bool     `json:"redeemed" cbor:"redeemed"`

	// Ticket is the auctioneer's capability record, only known to the auctioneer's wallet.
	Ticket *RecordRef `json:"ticket,omitempty" cbor:"ticket,omitempty"`
}

// DisplayName decodes the field-encoded name. Undecodable names render as "".
func (a Auction) DisplayName() string {
	name, err := fieldcodec.DecodeLiteralsToText(a.Name)
	if err != nil {
		return ""
	}
	return name
}

// Bid is the reconciled view of one bid.
type Bid struct {
	ID        string `json:"id" cbor:"id"`
	AuctionID string `json:"auction_id" cbor:"auction_id"`
	Amount    uint64 `json:"amount" cbor:"amount"` // microcredits
	IsPublic  bool   `json:"is_public" cbor:"is_public"`
	Bidder    string `json:"bidder,omitempty" cbor:"bidder,omitempty"`
	Winner    bool   `json:"winner" cbor:"winner"`

	// Record is the decrypted bid record held by the auctioneer (private bids only).
	Record *RecordRef `json:"record,omitempty" cbor:"record,omitempty"`
	// Receipt is the bidder's receipt record, required for redemption.
	Receipt *RecordRef `json:"receipt,omitempty" cbor:"receipt,omitempty"`
}

// Attribute is one trait of an auctioned item.
type Attribute struct {
	TraitType string `json:"trait_type" cbor:"trait_type"`
	Value     any    `json:"value" cbor:"value"`
}

// Metadata is the off-chain description of an auctioned item.
type Metadata struct {
	Name        string      `json:"name" cbor:"name"`
	Image       string      `json:"image" cbor:"image"`
	Description string      `json:"description,omitempty" cbor:"description,omitempty"`
	Attributes  []Attribute `json:"attributes,omitempty" cbor:"attributes,omitempty"`
}

// IsZero reports whether no metadata was resolved.
func (m Metadata) IsZero() bool {
	return m.Name == "" && m.Image == "" && m.Description == "" && len(m.Attributes) == 0
}

// EnrichedBid is a bid with the auction context a bidder's view needs.
type EnrichedBid struct {
	Bid
	AuctionName     string        `json:"auction_name,omitempty"`
	Metadata        Metadata      `json:"metadata"`
	IsHighestBid    bool          `json:"is_highest_bid"`
	Redeemed        bool          `json:"redeemed"`
	IsAuctionPublic bool          `json:"is_auction_public"`
	IsAuctionActive bool          `json:"is_auction_active"`
	AuctionStatus   AuctionStatus `json:"auction_status"`
}

// SkippedItem records an input that was left out of a reduction (malformed record, unparsable
// mapping entry, invalid amount).
type SkippedItem struct {
	Kind   string `json:"kind"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

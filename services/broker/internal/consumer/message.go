package consumer

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
)

// Topic names are part of the wire contract.
const (
	TopicRequests   = "stocks/requests"
	TopicValidation = "stocks/validation"
	TopicAuctions   = "stocks/auctions"
	TopicUpdates    = "stocks/updates"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindPurchaseRequest
	KindResolution
	KindAuctionOffer
	KindAuctionProposal
	KindAuctionAcceptance
	KindAuctionRejection
	KindCatalogIPO
	KindCatalogEmit
	KindCatalogUpdate
)

func (k Kind) String() string {
	switch k {
	case KindPurchaseRequest:
		return "purchase_request"
	case KindResolution:
		return "resolution"
	case KindAuctionOffer:
		return "auction_offer"
	case KindAuctionProposal:
		return "auction_proposal"
	case KindAuctionAcceptance:
		return "auction_acceptance"
	case KindAuctionRejection:
		return "auction_rejection"
	case KindCatalogIPO:
		return "catalog_ipo"
	case KindCatalogEmit:
		return "catalog_emit"
	case KindCatalogUpdate:
		return "catalog_update"
	default:
		return "unknown"
	}
}

// flexString tolerates producers that send identifiers as JSON numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = flexString(v)
		return nil
	}
	*f = flexString(s)
	return nil
}

// flexInt tolerates quantities sent as floats or numeric strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = 0
		return nil
	}
	s = strings.Trim(s, `"`)
	if s == "" {
		*f = 0
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*f = flexInt(n)
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("parse quantity %q: %w", s, err)
	}
	// Conversion of an out-of-range float to int64 is undefined, so an
	// absurd quantity must fail the parse instead.
	if math.IsNaN(v) || v < math.MinInt64 || v >= math.MaxInt64 {
		return fmt.Errorf("quantity %q out of range", s)
	}
	*f = flexInt(int64(v))
	return nil
}

type wireMessage struct {
	RequestID    flexString      `json:"request_id"`
	GroupID      flexString      `json:"group_id"`
	Symbol       string          `json:"symbol"`
	Quantity     flexInt         `json:"quantity"`
	Operation    string          `json:"operation"`
	Kind         string          `json:"kind"`
	Status       string          `json:"status"`
	Reason       string          `json:"reason"`
	DepositToken string          `json:"deposit_token"`
	AuctionID    flexString      `json:"auction_id"`
	ProposalID   flexString      `json:"proposal_id"`
	Price        decimal.Decimal `json:"price"`
	LongName     string          `json:"longName"`
	Timestamp    string          `json:"timestamp"`
}

// Message is one decoded inbound payload with its timestamp already
// normalized to a UTC instant.
type Message struct {
	RequestID    string
	GroupID      string
	Symbol       string
	Quantity     int64
	Operation    string
	Kind         string
	Status       string
	Reason       string
	DepositToken string
	AuctionID    string
	ProposalID   string
	Price        decimal.Decimal
	LongName     string
	Timestamp    time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Parse decodes a raw payload. Malformed payloads error out so the caller
// can drop them with a diagnostic; they never propagate further.
func Parse(payload []byte, now func() time.Time) (*Message, error) {
	var wire wireMessage
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}

	ts, err := normalizeTimestamp(wire.Timestamp, now)
	if err != nil {
		return nil, err
	}

	return &Message{
		RequestID:    string(wire.RequestID),
		GroupID:      string(wire.GroupID),
		Symbol:       wire.Symbol,
		Quantity:     int64(wire.Quantity),
		Operation:    wire.Operation,
		Kind:         wire.Kind,
		Status:       wire.Status,
		Reason:       wire.Reason,
		DepositToken: wire.DepositToken,
		AuctionID:    string(wire.AuctionID),
		ProposalID:   string(wire.ProposalID),
		Price:        wire.Price,
		LongName:     wire.LongName,
		Timestamp:    ts,
	}, nil
}

func normalizeTimestamp(raw string, now func() time.Time) (time.Time, error) {
	if raw == "" {
		return now().UTC(), nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// Classify resolves the message kind from the topic it arrived on and the
// payload shape. KindUnknown means the message must be dropped.
func Classify(topic string, m *Message) Kind {
	switch topic {
	case TopicRequests:
		if m.Kind == "response" {
			return KindResolution
		}
		if m.Symbol != "" {
			return KindPurchaseRequest
		}
		return KindUnknown
	case TopicValidation:
		return KindResolution
	case TopicAuctions:
		switch m.Operation {
		case "offer":
			return KindAuctionOffer
		case "proposal":
			return KindAuctionProposal
		case "acceptance":
			return KindAuctionAcceptance
		case "rejection":
			return KindAuctionRejection
		}
		return KindUnknown
	case TopicUpdates:
		switch m.Kind {
		case "IPO":
			return KindCatalogIPO
		case "EMIT":
			return KindCatalogEmit
		case "UPDATE":
			return KindCatalogUpdate
		}
		return KindUnknown
	}
	return KindUnknown
}

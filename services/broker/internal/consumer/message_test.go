package consumer

import (
	"testing"
	"time"
)

var fixedNow = func() time.Time {
	return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
}

func TestParseFlexibleFieldTypes(t *testing.T) {
	// Producers disagree on types: ids as numbers, quantities as floats
	// or numeric strings.
	payload := []byte(`{
		"request_id": 4711,
		"group_id": "12",
		"symbol": "AAPL",
		"quantity": "5",
		"operation": "BUY",
		"price": 187.5,
		"timestamp": "2025-03-01T10:30:00Z"
	}`)

	msg, err := Parse(payload, fixedNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.RequestID != "4711" {
		t.Errorf("request id = %q, want 4711", msg.RequestID)
	}
	if msg.Quantity != 5 {
		t.Errorf("quantity = %d, want 5", msg.Quantity)
	}
	if msg.Price.String() != "187.5" {
		t.Errorf("price = %s, want 187.5", msg.Price)
	}
	want := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	if !msg.Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, want)
	}
}

func TestParseFloatQuantityTruncates(t *testing.T) {
	msg, err := Parse([]byte(`{"symbol":"AAPL","quantity":3.9}`), fixedNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if msg.Quantity != 3 {
		t.Errorf("quantity = %d, want 3", msg.Quantity)
	}
}

func TestParseQuantityOutOfRangeErrors(t *testing.T) {
	for _, payload := range []string{
		`{"symbol":"AAPL","quantity":1e30}`,
		`{"symbol":"AAPL","quantity":-1e30}`,
		`{"symbol":"AAPL","quantity":"NaN"}`,
	} {
		if _, err := Parse([]byte(payload), fixedNow); err == nil {
			t.Errorf("payload %s parsed, want error", payload)
		}
	}
}

func TestParseTimestampLayouts(t *testing.T) {
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2025-03-01T10:30:00.123456789Z", time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC)},
		{"2025-03-01T10:30:00Z", time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-03-01T10:30:00", time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
		{"2025-03-01 10:30:00", time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		got, err := normalizeTimestamp(tc.raw, fixedNow)
		if err != nil {
			t.Errorf("normalize %q: %v", tc.raw, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("normalize %q = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestParseMissingTimestampUsesNow(t *testing.T) {
	msg, err := Parse([]byte(`{"symbol":"AAPL","quantity":1}`), fixedNow)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !msg.Timestamp.Equal(fixedNow()) {
		t.Errorf("timestamp = %v, want %v", msg.Timestamp, fixedNow())
	}
}

func TestParseBadTimestampErrors(t *testing.T) {
	if _, err := Parse([]byte(`{"symbol":"AAPL","timestamp":"yesterday"}`), fixedNow); err == nil {
		t.Errorf("unparseable timestamp accepted")
	}
}

func TestParseMalformedJSONErrors(t *testing.T) {
	for _, payload := range []string{`{`, `[`, `"just a string"`, `{"quantity":"five"}`} {
		if _, err := Parse([]byte(payload), fixedNow); err == nil {
			t.Errorf("payload %q accepted", payload)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name  string
		topic string
		msg   Message
		want  Kind
	}{
		{"purchase request", TopicRequests, Message{Symbol: "AAPL"}, KindPurchaseRequest},
		{"inline response on requests", TopicRequests, Message{Kind: "response", RequestID: "r1"}, KindResolution},
		{"requests without symbol", TopicRequests, Message{}, KindUnknown},
		{"validation resolution", TopicValidation, Message{RequestID: "r1", Status: "ACCEPTED"}, KindResolution},
		{"auction offer", TopicAuctions, Message{Operation: "offer"}, KindAuctionOffer},
		{"auction proposal", TopicAuctions, Message{Operation: "proposal"}, KindAuctionProposal},
		{"auction acceptance", TopicAuctions, Message{Operation: "acceptance"}, KindAuctionAcceptance},
		{"auction rejection", TopicAuctions, Message{Operation: "rejection"}, KindAuctionRejection},
		{"auction unknown op", TopicAuctions, Message{Operation: "withdraw"}, KindUnknown},
		{"catalog ipo", TopicUpdates, Message{Kind: "IPO"}, KindCatalogIPO},
		{"catalog emit", TopicUpdates, Message{Kind: "EMIT"}, KindCatalogEmit},
		{"catalog update", TopicUpdates, Message{Kind: "UPDATE"}, KindCatalogUpdate},
		{"catalog unknown kind", TopicUpdates, Message{Kind: "SPLIT"}, KindUnknown},
		{"unknown topic", "stocks/other", Message{Symbol: "AAPL"}, KindUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Classify(tc.topic, &tc.msg); got != tc.want {
				t.Errorf("Classify(%q) = %v, want %v", tc.topic, got, tc.want)
			}
		})
	}
}

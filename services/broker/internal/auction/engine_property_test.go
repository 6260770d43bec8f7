package auction

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/luzhania/E1-arquitectura-de-software/internal/storage"
)

// genGroup draws a group id, biased so the local group shows up often.
func genGroup() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{localGroup, "12", "34", "56"})
}

func genSymbol() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{"AAPL", "TSLA", "MSFT", "NVDA"})
}

// TestProperty_ProposalsAppendOnly drives a random message sequence against
// one offer and checks that the proposal list only ever grows, preserves
// arrival order, and survives terminal statuses intact.
func TestProperty_ProposalsAppendOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storage.NewMemoryStore()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		e := NewEngine(store, localGroup, logger, nil)
		ctx := context.Background()
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		if err := e.Offer(ctx, storage.AuctionOffer{
			AuctionID: "a1",
			GroupID:   genGroup().Draw(t, "offerGroup"),
			Symbol:    genSymbol().Draw(t, "offerSymbol"),
			Quantity:  rapid.Int64Range(1, 100).Draw(t, "offerQuantity"),
		}); err != nil {
			t.Fatalf("offer: %v", err)
		}

		var want []string
		n := rapid.IntRange(1, 30).Draw(t, "numOps")
		for i := 0; i < n; i++ {
			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("op-%d", i)) {
			case 0:
				id := fmt.Sprintf("p-%d", i)
				err := e.Propose(ctx, "a1", storage.Proposal{
					ProposalID: id,
					GroupID:    genGroup().Draw(t, fmt.Sprintf("group-%d", i)),
					Symbol:     genSymbol().Draw(t, fmt.Sprintf("symbol-%d", i)),
					Quantity:   rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("quantity-%d", i)),
				})
				if err != nil {
					t.Fatalf("propose: %v", err)
				}
				want = append(want, id)
			case 1:
				// Redelivered offer, must not reset anything.
				if err := e.Offer(ctx, storage.AuctionOffer{AuctionID: "a1", GroupID: "99", Symbol: "XXX", Quantity: 1}); err != nil {
					t.Fatalf("redelivered offer: %v", err)
				}
			case 2:
				target := "ghost"
				if len(want) > 0 {
					target = want[rapid.IntRange(0, len(want)-1).Draw(t, fmt.Sprintf("pick-%d", i))]
				}
				if err := e.Accept(ctx, "a1", target, "AAPL", 1, ts); err != nil {
					t.Fatalf("accept: %v", err)
				}
			case 3:
				target := "ghost"
				if len(want) > 0 {
					target = want[rapid.IntRange(0, len(want)-1).Draw(t, fmt.Sprintf("pick-%d", i))]
				}
				if err := e.Reject(ctx, "a1", target, ts); err != nil {
					t.Fatalf("reject: %v", err)
				}
			}

			offer, err := store.GetOffer(ctx, "a1")
			if err != nil {
				t.Fatalf("get offer: %v", err)
			}
			if len(offer.Proposals) != len(want) {
				t.Fatalf("proposals = %d, want %d", len(offer.Proposals), len(want))
			}
			for j, id := range want {
				if offer.Proposals[j].ProposalID != id {
					t.Fatalf("proposal %d = %q, want %q", j, offer.Proposals[j].ProposalID, id)
				}
			}
		}
	})
}

// TestProperty_HoldingsNeverDecrease checks that auction resolutions only
// ever add to the local group's holdings, whatever the message order.
func TestProperty_HoldingsNeverDecrease(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		store := storage.NewMemoryStore()
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		e := NewEngine(store, localGroup, logger, nil)
		ctx := context.Background()
		ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		symbols := []string{"AAPL", "TSLA", "MSFT", "NVDA"}
		prev := make(map[string]int64)

		n := rapid.IntRange(1, 40).Draw(t, "numOps")
		for i := 0; i < n; i++ {
			auctionID := fmt.Sprintf("a-%d", rapid.IntRange(0, 4).Draw(t, fmt.Sprintf("auction-%d", i)))
			proposalID := fmt.Sprintf("p-%d", i)

			switch rapid.IntRange(0, 3).Draw(t, fmt.Sprintf("op-%d", i)) {
			case 0:
				err := e.Offer(ctx, storage.AuctionOffer{
					AuctionID: auctionID,
					GroupID:   genGroup().Draw(t, fmt.Sprintf("group-%d", i)),
					Symbol:    genSymbol().Draw(t, fmt.Sprintf("symbol-%d", i)),
					Quantity:  rapid.Int64Range(1, 100).Draw(t, fmt.Sprintf("quantity-%d", i)),
				})
				if err != nil {
					t.Fatalf("offer: %v", err)
				}
			case 1:
				err := e.Propose(ctx, auctionID, storage.Proposal{
					ProposalID: proposalID,
					GroupID:    genGroup().Draw(t, fmt.Sprintf("group-%d", i)),
					Symbol:     genSymbol().Draw(t, fmt.Sprintf("symbol-%d", i)),
					Quantity:   rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("quantity-%d", i)),
				})
				if err != nil {
					t.Fatalf("propose: %v", err)
				}
			case 2:
				pick := fmt.Sprintf("p-%d", rapid.IntRange(0, i).Draw(t, fmt.Sprintf("pick-%d", i)))
				if err := e.Accept(ctx, auctionID, pick, genSymbol().Draw(t, fmt.Sprintf("asym-%d", i)), rapid.Int64Range(1, 50).Draw(t, fmt.Sprintf("aqty-%d", i)), ts); err != nil {
					t.Fatalf("accept: %v", err)
				}
			case 3:
				pick := fmt.Sprintf("p-%d", rapid.IntRange(0, i).Draw(t, fmt.Sprintf("pick-%d", i)))
				if err := e.Reject(ctx, auctionID, pick, ts); err != nil {
					t.Fatalf("reject: %v", err)
				}
			}

			for _, symbol := range symbols {
				holding, _ := store.GetHolding(symbol)
				if holding.Quantity < prev[symbol] {
					t.Fatalf("%s holding decreased: %d -> %d", symbol, prev[symbol], holding.Quantity)
				}
				prev[symbol] = holding.Quantity
			}
		}
	})
}

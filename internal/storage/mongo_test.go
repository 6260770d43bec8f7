package storage

import (
	"testing"

	"github.com/shopspring/decimal"
)

// Balance adjustments go through the driver as Decimal128 deltas, debits
// included, so sign and scale must survive the conversion both ways.
func TestDecimal128RoundTrip(t *testing.T) {
	cases := []string{"0", "1050.25", "-1050.25", "0.01", "-0.01", "187.5", "100000"}
	for _, raw := range cases {
		want := decimal.RequireFromString(raw)
		got := fromDecimal128(toDecimal128(want))
		if !got.Equal(want) {
			t.Errorf("round trip %s = %s", want, got)
		}
	}
}

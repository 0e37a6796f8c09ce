package model

import (
	"testing"
)

func TestCompact_Positions(t *testing.T) {
	tk := Ticker{
		Exchange:        Upbit,
		Symbol:          "KRW-BTC",
		Price:           200,
		Direction:       Up,
		Change24h:       2.15,
		ChangeAmount24h: 4,
		Volume24h:       123456,
	}

	c := tk.Compact()

	if c[CompactExchange] != 0 {
		t.Errorf("[0] = %v, want 0", c[CompactExchange])
	}
	if c[CompactSymbol] != "KRW-BTC" {
		t.Errorf("[1] = %v, want KRW-BTC", c[CompactSymbol])
	}
	if c[CompactPrice] != float64(200) {
		t.Errorf("[2] = %v, want 200", c[CompactPrice])
	}
	if c[CompactDirection] != 1 {
		t.Errorf("[3] = %v, want 1", c[CompactDirection])
	}
	if c[CompactChange24h] != 2.15 {
		t.Errorf("[4] = %v, want 2.15", c[CompactChange24h])
	}
	if c[CompactChangeAmount24h] != float64(4) {
		t.Errorf("[5] = %v, want 4", c[CompactChangeAmount24h])
	}
	if c[CompactVolume24h] != int64(123456) {
		t.Errorf("[6] = %v, want 123456", c[CompactVolume24h])
	}
}

func TestCompact_RoundTrip(t *testing.T) {
	tests := []Ticker{
		{Exchange: Upbit, Symbol: "KRW-BTC", Price: 70000000, Direction: Up, Change24h: 1.5, ChangeAmount24h: 1000000, Volume24h: 9000000000},
		{Exchange: Binance, Symbol: "BTCUSDT", Price: 0.00012, Direction: Down, Change24h: -12.34, ChangeAmount24h: -0.5, Volume24h: 0},
		{Exchange: Upbit, Symbol: "BTC-ETH", Price: 0.05, Direction: Flat},
	}

	for _, want := range tests {
		t.Run(want.Symbol, func(t *testing.T) {
			c := want.Compact()
			got, err := DecodeCompact(c[:])
			if err != nil {
				t.Fatalf("DecodeCompact failed: %v", err)
			}
			if got != want {
				t.Errorf("round trip = %+v, want %+v", got, want)
			}
		})
	}
}

func TestDecodeCompact_NarrowedNumbers(t *testing.T) {
	// What a msgpack decoder hands back for small integers.
	v := []any{int8(0), "KRW-ETH", float64(3000), int8(-1), -2.1, float64(-65), uint16(2000)}

	got, err := DecodeCompact(v)
	if err != nil {
		t.Fatalf("DecodeCompact failed: %v", err)
	}
	want := Ticker{Exchange: Upbit, Symbol: "KRW-ETH", Price: 3000, Direction: Down, Change24h: -2.1, ChangeAmount24h: -65, Volume24h: 2000}
	if got != want {
		t.Errorf("DecodeCompact = %+v, want %+v", got, want)
	}
}

func TestDecodeCompact_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input []any
	}{
		{"too short", []any{0, "KRW-BTC"}},
		{"symbol not string", []any{0, 1, 1.0, 0, 0.0, 0.0, 0}},
		{"fractional exchange", []any{0.5, "X", 1.0, 0, 0.0, 0.0, 0}},
		{"bad price", []any{0, "X", "1", 0, 0.0, 0.0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeCompact(tt.input); err == nil {
				t.Error("expected error")
			}
		})
	}
}

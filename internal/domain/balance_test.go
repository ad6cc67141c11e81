package domain

import "testing"

func TestBalance_CreditDebit(t *testing.T) {
	b := &Balance{Asset: "USDC"}

	b.Credit(100)
	if b.AmountMicros != 100 {
		t.Errorf("expected 100, got %d", b.AmountMicros)
	}

	b.Debit(30)
	if b.AmountMicros != 70 {
		t.Errorf("expected 70, got %d", b.AmountMicros)
	}
}

func TestBalance_Reserve(t *testing.T) {
	b := &Balance{Asset: "USDC", AmountMicros: 1000}

	b.Reserve(400)
	if b.ReservedMicros != 400 {
		t.Errorf("expected reserved 400, got %d", b.ReservedMicros)
	}
	if b.AvailableMicros() != 600 {
		t.Errorf("expected available 600, got %d", b.AvailableMicros())
	}

	b.Release(200)
	if b.ReservedMicros != 200 {
		t.Errorf("expected reserved 200, got %d", b.ReservedMicros)
	}
}

func TestBalance_InvariantPanics(t *testing.T) {
	tests := []struct {
		name string
		fn   func()
	}{
		{"negative amount", func() {
			b := &Balance{Asset: "USDC", AmountMicros: 10}
			b.Debit(20)
		}},
		{"reserve beyond amount", func() {
			b := &Balance{Asset: "USDC", AmountMicros: 10}
			b.Reserve(20)
		}},
		{"negative reserve", func() {
			b := &Balance{Asset: "USDC", AmountMicros: 10}
			b.Release(1)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.fn()
		})
	}
}

func TestBalanceBook(t *testing.T) {
	bb := NewBalanceBook()
	bb.Get("USDC").Credit(500)

	if got := bb.AvailableMicros("USDC"); got != 500 {
		t.Errorf("AvailableMicros = %d, want 500", got)
	}
	if got := bb.AvailableMicros("BTC"); got != 0 {
		t.Errorf("AvailableMicros for unknown asset = %d, want 0", got)
	}

	snap := bb.Snapshot()
	if snap["USDC"].AmountMicros != 500 {
		t.Errorf("Snapshot amount = %d, want 500", snap["USDC"].AmountMicros)
	}
}

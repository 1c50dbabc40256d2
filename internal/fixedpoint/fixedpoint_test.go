package fixedpoint

import (
	"errors"
	"math"
	"testing"
)

func TestCheckedUint64(t *testing.T) {
	tests := []struct {
		name    string
		op      func(a, b uint64) (uint64, error)
		a, b    uint64
		want    uint64
		wantErr bool
	}{
		{"add", Add, 2, 3, 5, false},
		{"add overflow", Add, math.MaxUint64, 1, 0, true},
		{"sub", Sub, 10, 3, 7, false},
		{"sub to zero", Sub, 3, 3, 0, false},
		{"sub underflow", Sub, 3, 4, 0, true},
		{"mul", Mul, 1 << 31, 1 << 32, 1 << 63, false},
		{"mul overflow", Mul, 1 << 32, 1 << 32, 0, true},
		{"div floors", Div, 7, 2, 3, false},
		{"div by zero", Div, 7, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op(tt.a, tt.b)
			if tt.wantErr {
				if !errors.Is(err, ErrArithmetic) {
					t.Fatalf("expected ErrArithmetic, got %v (result %d)", err, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestWideProductOfTwoUint64Fits(t *testing.T) {
	product, err := Widen(math.MaxUint64).MulUint64(math.MaxUint64)
	if err != nil {
		t.Fatalf("max*max should fit in 128 bits: %v", err)
	}
	if _, err := product.Uint64(); !errors.Is(err, ErrArithmetic) {
		t.Errorf("narrowing max*max should fail, got %v", err)
	}

	back, err := product.DivUint64(math.MaxUint64)
	if err != nil {
		t.Fatalf("div: %v", err)
	}
	n, err := back.Uint64()
	if err != nil || n != math.MaxUint64 {
		t.Errorf("got %d, %v; want %d", n, err, uint64(math.MaxUint64))
	}
}

func TestWideBoundedTo128Bits(t *testing.T) {
	product, err := Widen(math.MaxUint64).MulUint64(math.MaxUint64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := product.MulUint64(2); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected overflow past 128 bits, got %v", err)
	}
	if _, err := product.Add(product); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected overflow on wide add, got %v", err)
	}
	if _, err := Widen(1).Sub(Widen(2)); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected underflow on wide sub, got %v", err)
	}
	if _, err := product.Div(Wide{}); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected division by zero error, got %v", err)
	}
}

func TestMulDiv(t *testing.T) {
	got, err := MulDiv(1111, PriceScale, 2011)
	if err != nil {
		t.Fatal(err)
	}
	if got != 552461 {
		t.Errorf("got %d, want 552461", got)
	}

	// product exceeds 64 bits but the quotient does not
	got, err = MulDiv(1<<40, 1<<40, 1<<30)
	if err != nil {
		t.Fatal(err)
	}
	if got != 1<<50 {
		t.Errorf("got %d, want %d", got, uint64(1<<50))
	}

	if _, err := MulDiv(1, 1, 0); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected ErrArithmetic, got %v", err)
	}
	if _, err := MulDiv(math.MaxUint64, 2, 1); !errors.Is(err, ErrArithmetic) {
		t.Errorf("expected narrowing failure, got %v", err)
	}
}

func TestWideString(t *testing.T) {
	w, err := Widen(1000).MulUint64(1000)
	if err != nil {
		t.Fatal(err)
	}
	if w.String() != "1000000" {
		t.Errorf("got %s", w.String())
	}
	if Widen(5).Cmp(Widen(4)) <= 0 || !(Wide{}).IsZero() {
		t.Error("comparison helpers disagree")
	}
}

func TestStorable(t *testing.T) {
	if err := Storable(0, 1, MaxStored); err != nil {
		t.Errorf("Storable within bounds: %v", err)
	}
	if err := Storable(1, MaxStored+1); !errors.Is(err, ErrArithmetic) {
		t.Errorf("Storable(MaxStored+1) = %v, want ErrArithmetic", err)
	}
	if err := Storable(math.MaxUint64); !errors.Is(err, ErrArithmetic) {
		t.Errorf("Storable(MaxUint64) = %v, want ErrArithmetic", err)
	}
}

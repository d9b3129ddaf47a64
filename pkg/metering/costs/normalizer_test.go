package costs

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

type unpricedRecorder struct {
	types []string
}

func (u *unpricedRecorder) ObserveUnpriced(usageType string) {
	u.types = append(u.types, usageType)
}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	reg := NewRegistry()
	reg.Register("openai", CostMap{
		"openai:gpt-4o:prompt-tokens":     Static(2.5),
		"openai:gpt-4o:completion-tokens": Static(10),
		"openai:tts-1:characters":         Static(0.1),
	})
	reg.Register("filesystem", StaticCostMap(map[string]float64{
		"filesystem:storage:byte": 0,
	}))
	return NewNormalizer(reg, nil)
}

func TestNormalize(t *testing.T) {
	n := newTestNormalizer(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		usageType string
		quantity  float64
		want      int64
	}{
		{"integer product", "openai:gpt-4o:completion-tokens", 100, 1000},
		{"fractional price rounds up", "openai:gpt-4o:prompt-tokens", 3, 8},
		{"exact fractional product", "openai:gpt-4o:prompt-tokens", 4, 10},
		{"decimal price without float drift", "openai:tts-1:characters", 30, 3},
		{"tiny usage costs at least one", "openai:tts-1:characters", 1, 1},
		{"zero quantity", "openai:gpt-4o:prompt-tokens", 0, 0},
		{"zero price", "filesystem:storage:byte", 4096, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := n.Normalize(ctx, tt.usageType, tt.quantity)
			if err != nil {
				t.Fatalf("Normalize failed: %v", err)
			}
			if res.Unpriced {
				t.Fatal("expected priced result")
			}
			if res.MicroUnits != tt.want {
				t.Errorf("MicroUnits = %d, want %d", res.MicroUnits, tt.want)
			}
		})
	}
}

func TestNormalize_Unpriced(t *testing.T) {
	n := newTestNormalizer(t)
	rec := &unpricedRecorder{}
	n.SetObserver(rec)

	res, err := n.Normalize(context.Background(), "acme:unknown:widgets", 1000)
	if err != nil {
		t.Fatalf("unpriced usage must not error: %v", err)
	}
	if !res.Unpriced {
		t.Error("expected Unpriced to be set")
	}
	if res.MicroUnits != 0 {
		t.Errorf("MicroUnits = %d, want 0", res.MicroUnits)
	}
	if len(rec.types) != 1 || rec.types[0] != "acme:unknown:widgets" {
		t.Errorf("observer saw %v", rec.types)
	}
}

func TestNormalize_InvalidQuantity(t *testing.T) {
	n := newTestNormalizer(t)

	for _, q := range []float64{-1, -0.0001, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := n.Normalize(context.Background(), "openai:gpt-4o:prompt-tokens", q)
		if !errors.Is(err, ErrInvalidUsage) {
			t.Errorf("Normalize(%v) error = %v, want ErrInvalidUsage", q, err)
		}
	}

	if _, err := n.Normalize(context.Background(), "", 1); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("expected ErrInvalidUsage for empty usage type, got %v", err)
	}
}

func TestNormalize_Overflow(t *testing.T) {
	reg := NewRegistry()
	reg.Register("p", CostMap{"p:m:u": Static(1e12)})
	n := NewNormalizer(reg, nil)

	_, err := n.Normalize(context.Background(), "p:m:u", 1e12)
	if !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("expected overflow to be ErrInvalidUsage, got %v", err)
	}
}

func TestNormalize_DynamicPrice(t *testing.T) {
	reg := NewRegistry()
	calls := 0
	reg.Register("dyn", CostMap{
		"dyn:model:tokens": DynamicPrice(func(context.Context) (decimal.Decimal, error) {
			calls++
			return decimal.RequireFromString("0.75"), nil
		}),
		"dyn:broken:tokens": DynamicPrice(func(context.Context) (decimal.Decimal, error) {
			return decimal.Zero, errors.New("provider down")
		}),
		"dyn:negative:tokens": StaticDecimal{Value: decimal.NewFromInt(-1)},
	})
	n := NewNormalizer(reg, nil)
	ctx := context.Background()

	res, err := n.Normalize(ctx, "dyn:model:tokens", 3)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if res.MicroUnits != 3 || res.Provider != "dyn" {
		t.Errorf("unexpected result %+v", res)
	}
	if calls != 1 {
		t.Errorf("expected provider to be queried once, got %d", calls)
	}

	for _, ut := range []string{"dyn:broken:tokens", "dyn:negative:tokens"} {
		res, err := n.Normalize(ctx, ut, 3)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", ut, err)
		}
		if !res.Unpriced || res.MicroUnits != 0 {
			t.Errorf("%s: expected unpriced zero result, got %+v", ut, res)
		}
	}
}

func TestOverride(t *testing.T) {
	n := newTestNormalizer(t)

	res, err := n.Override("openai:gpt-4o:prompt-tokens", 10, 42)
	if err != nil {
		t.Fatalf("Override failed: %v", err)
	}
	if res.MicroUnits != 42 || res.Unpriced {
		t.Errorf("unexpected result %+v", res)
	}

	if _, err := n.Override("x:y:z", 1, -5); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("expected ErrInvalidUsage for negative override, got %v", err)
	}
	if _, err := n.Override("", 1, 5); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("expected ErrInvalidUsage for empty usage type, got %v", err)
	}
	if _, err := n.Override("x:y:z", -1, 5); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("expected ErrInvalidUsage for negative quantity, got %v", err)
	}
}

func TestCeilQuantity(t *testing.T) {
	tests := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{1, 1},
		{1.2, 2},
		{1024, 1024},
	}
	for _, tt := range tests {
		got, err := CeilQuantity(tt.in)
		if err != nil {
			t.Fatalf("CeilQuantity(%v) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("CeilQuantity(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseUsageType(t *testing.T) {
	ut, err := ParseUsageType("openrouter:meta/llama:3.1:prompt-tokens")
	if err != nil {
		t.Fatalf("ParseUsageType failed: %v", err)
	}
	if ut.Provider != "openrouter" || ut.Model != "meta/llama:3.1" || ut.Unit != "prompt-tokens" {
		t.Errorf("unexpected parse %+v", ut)
	}
	if ut.String() != "openrouter:meta/llama:3.1:prompt-tokens" {
		t.Errorf("String() = %q", ut.String())
	}

	for _, bad := range []string{"", "a:b", "a::c", ":b:c"} {
		if _, err := ParseUsageType(bad); !errors.Is(err, ErrInvalidUsage) {
			t.Errorf("ParseUsageType(%q) error = %v, want ErrInvalidUsage", bad, err)
		}
	}

	if Join("openai:gpt-4o", "prompt-tokens") != "openai:gpt-4o:prompt-tokens" {
		t.Error("Join produced unexpected usage type")
	}
}

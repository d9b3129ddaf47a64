package period

import (
	"errors"
	"testing"
	"time"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name string
		time time.Time
		want string
	}{
		{"january", time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC), "2025-01"},
		{"last instant of month", time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC), "2025-01"},
		{"first instant of month", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), "2025-02"},
		{"non-utc location is normalized", time.Date(2025, 3, 1, 0, 30, 0, 0, time.FixedZone("CET", 3600)), "2025-02"},
		{"december", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), "2024-12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.time); got != tt.want {
				t.Errorf("Label() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCurrent_UsesClock(t *testing.T) {
	clock := Fixed(time.Date(2025, 7, 4, 0, 0, 0, 0, time.UTC))
	if got := Current(clock); got != "2025-07" {
		t.Errorf("Current() = %q, want 2025-07", got)
	}

	if got := Current(nil); got != Label(time.Now()) {
		t.Errorf("Current(nil) = %q, want system clock label %q", got, Label(time.Now()))
	}
}

func TestBounds(t *testing.T) {
	start, end := Bounds(time.Date(2024, 2, 10, 8, 0, 0, 0, time.UTC))

	wantStart := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	wantEnd := time.Date(2024, 2, 29, 23, 59, 59, 999999999, time.UTC)
	if !start.Equal(wantStart) {
		t.Errorf("start = %v, want %v", start, wantStart)
	}
	if !end.Equal(wantEnd) {
		t.Errorf("end = %v, want %v", end, wantEnd)
	}
}

func TestParseLabel(t *testing.T) {
	got, err := ParseLabel("2025-02")
	if err != nil {
		t.Fatalf("ParseLabel failed: %v", err)
	}
	if got.Month() != time.February || got.Year() != 2025 {
		t.Errorf("ParseLabel() = %v, want February 2025", got)
	}

	if _, err := ParseLabel("2025/02"); err == nil {
		t.Error("expected error for malformed label")
	}
}

func TestEscape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{"gpt-4.1", "gpt-4_dot_1"},
		{"openai:gpt-4o:prompt", "openai_col_gpt-4o_col_prompt"},
		{"a_b", "a_us_b"},
		{"_dot_", "_us_dot_us_"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Escape(tt.in)
			if got != tt.want {
				t.Errorf("Escape(%q) = %q, want %q", tt.in, got, tt.want)
			}

			back, err := Unescape(got)
			if err != nil {
				t.Fatalf("Unescape(%q) failed: %v", got, err)
			}
			if back != tt.in {
				t.Errorf("Unescape(Escape(%q)) = %q", tt.in, back)
			}
		})
	}
}

func TestUnescape_Malformed(t *testing.T) {
	for _, in := range []string{"a_b", "trailing_", "a:b", "_dot"} {
		t.Run(in, func(t *testing.T) {
			_, err := Unescape(in)
			if !errors.Is(err, ErrMalformedKey) {
				t.Errorf("Unescape(%q) error = %v, want ErrMalformedKey", in, err)
			}
		})
	}
}

func TestDeriveKey(t *testing.T) {
	key := DeriveKey("user-1", DimensionCost, "2025-01")
	if key != "metering:actor:user-1:total-cost:2025-01" {
		t.Errorf("unexpected key %q", key)
	}

	key = DeriveKey("user.1", UsageTypeDimension("openai:gpt-4.1:prompt-tokens", FieldCost), "2025-01")
	want := "metering:actor:user_dot_1:type_col_openai_col_gpt-4_dot_1_col_prompt-tokens_col_cost:2025-01"
	if key != want {
		t.Errorf("DeriveKey() = %q, want %q", key, want)
	}
}

func TestDeriveKey_DistinctDimensions(t *testing.T) {
	keys := map[string]string{}
	dims := []Dimension{
		DimensionCost,
		DimensionStorage,
		UsageTypeDimension("a.b", FieldCost),
		UsageTypeDimension("a_dot_b", FieldCost),
		UsageTypeDimension("a:b", FieldCost),
		AppDimension("a.b", FieldCost),
		AppDimension("a", "b:"+FieldCost),
	}
	for _, d := range dims {
		key := DeriveKey("actor", d, "2025-01")
		if prev, ok := keys[key]; ok {
			t.Fatalf("dimension %q collides with %q at key %q", d, prev, key)
		}
		keys[key] = string(d)
	}

	if DeriveScopedKey(ScopeActor, "x", DimensionCost, "2025-01") == DeriveScopedKey(ScopeApp, "x", DimensionCost, "2025-01") {
		t.Error("actor and app scopes must not collide")
	}
}

func TestParseKey(t *testing.T) {
	key := DeriveScopedKey(ScopeApp, "app.one", AppDimension("os-global", FieldCount), "2025-03")

	parts, err := ParseKey(key)
	if err != nil {
		t.Fatalf("ParseKey failed: %v", err)
	}
	if parts.Scope != ScopeApp || parts.Owner != "app.one" || parts.Period != "2025-03" {
		t.Errorf("unexpected parts %+v", parts)
	}
	if parts.Dimension != AppDimension("os-global", FieldCount) {
		t.Errorf("Dimension = %q", parts.Dimension)
	}

	for _, bad := range []string{"", "metering:actor:a:b", "other:actor:a:b:c", "metering:team:a:b:c", "metering:actor:a_x:b:c"} {
		if _, err := ParseKey(bad); !errors.Is(err, ErrMalformedKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrMalformedKey", bad, err)
		}
	}
}

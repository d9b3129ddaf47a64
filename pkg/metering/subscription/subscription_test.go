package subscription

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mercator-hq/metering/pkg/metering/actor"
)

func testCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := NewCatalog([]Policy{
		{ID: "user_free", Kind: KindFree, MonthlyUsageAllowance: 50_000_000, MonthlyStorageAllowance: 500 << 20},
		{ID: "temp_free", Kind: KindTemporaryFree, MonthlyUsageAllowance: 25_000_000, MonthlyStorageAllowance: 100 << 20},
		{ID: "pro", Kind: KindPaid, MonthlyUsageAllowance: 1_000_000_000, MonthlyStorageAllowance: 10 << 30},
	}, "user_free", "temp_free")
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	return c
}

type fallbackRecorder struct {
	reasons []string
}

func (f *fallbackRecorder) ObserveFallback(reason string) {
	f.reasons = append(f.reasons, reason)
}

func TestNewCatalog_Validation(t *testing.T) {
	free := Policy{ID: "user_free", Kind: KindFree}
	temp := Policy{ID: "temp_free", Kind: KindTemporaryFree}

	tests := []struct {
		name     string
		policies []Policy
		wantErr  error
	}{
		{"missing default", []Policy{free}, ErrUnknownPolicy},
		{"duplicate id", []Policy{free, temp, free}, ErrInvalidPolicy},
		{"negative allowance", []Policy{free, temp, {ID: "x", Kind: KindPaid, MonthlyUsageAllowance: -1}}, ErrInvalidPolicy},
		{"unknown kind", []Policy{free, temp, {ID: "x", Kind: "gold"}}, ErrInvalidPolicy},
		{"empty id", []Policy{free, temp, {Kind: KindPaid}}, ErrInvalidPolicy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.policies, "user_free", "temp_free")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("NewCatalog() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	catalog := testCatalog(t)
	dir := StaticDirectory{"u-pro": "pro", "t-pro": "pro", "u-gone": "legacy"}

	tests := []struct {
		name       string
		actor      actor.Actor
		wantPolicy string
		wantSource Source
	}{
		{"assigned user", actor.User("u-pro"), "pro", SourceAssigned},
		{"assignment wins for temporary actors", actor.Temporary("t-pro"), "pro", SourceAssigned},
		{"registered user default", actor.User("u1"), "user_free", SourceDefault},
		{"temporary default", actor.Temporary("t1"), "temp_free", SourceDefault},
		{"unknown assigned policy falls back", actor.User("u-gone"), "user_free", SourceFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := NewResolver(catalog, dir, nil).Resolve(context.Background(), tt.actor)
			if res.Policy.ID != tt.wantPolicy {
				t.Errorf("Policy = %s, want %s", res.Policy.ID, tt.wantPolicy)
			}
			if res.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", res.Source, tt.wantSource)
			}
		})
	}
}

func TestResolver_DirectoryFailureFallsBack(t *testing.T) {
	catalog := testCatalog(t)
	dir := DirectoryFunc(func(context.Context, actor.Actor) (string, bool, error) {
		return "", false, errors.New("connection refused")
	})
	rec := &fallbackRecorder{}
	r := NewResolver(catalog, dir, nil)
	r.SetObserver(rec)

	res := r.Resolve(context.Background(), actor.Temporary("t1"))
	if res.Policy.ID != "temp_free" || res.Source != SourceFallback {
		t.Errorf("unexpected resolution %+v", res)
	}
	if len(rec.reasons) != 1 || rec.reasons[0] != "directory_error" {
		t.Errorf("observer saw %v", rec.reasons)
	}
}

func TestResolver_NilDirectory(t *testing.T) {
	res := NewResolver(testCatalog(t), nil, nil).Resolve(context.Background(), actor.User("u1"))
	if res.Policy.ID != "user_free" {
		t.Errorf("Policy = %s, want user_free", res.Policy.ID)
	}
}

func TestTemporaryDefaultIsLower(t *testing.T) {
	c := testCatalog(t)
	user := c.Default(actor.User("u"))
	temp := c.Default(actor.Temporary("t"))

	if temp.MonthlyUsageAllowance > user.MonthlyUsageAllowance {
		t.Errorf("temporary usage allowance %d exceeds registered %d", temp.MonthlyUsageAllowance, user.MonthlyUsageAllowance)
	}
	if temp.MonthlyStorageAllowance > user.MonthlyStorageAllowance {
		t.Errorf("temporary storage allowance %d exceeds registered %d", temp.MonthlyStorageAllowance, user.MonthlyStorageAllowance)
	}
}

func TestAdaptBillingPlan(t *testing.T) {
	p, err := AdaptBillingPlan(BillingPlan{PlanID: "team", UsageMicroUnits: 10, StorageLimitBytes: 20})
	if err != nil {
		t.Fatalf("AdaptBillingPlan failed: %v", err)
	}
	if p.Kind != KindPaid || p.MonthlyUsageAllowance != 10 || p.MonthlyStorageAllowance != 20 {
		t.Errorf("unexpected policy %+v", p)
	}

	if _, err := AdaptBillingPlan(BillingPlan{PlanID: "bad", UsageMicroUnits: -1}); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("Expected ErrInvalidPolicy, got %v", err)
	}
}

func TestCachedDirectory(t *testing.T) {
	var calls atomic.Int32
	inner := DirectoryFunc(func(_ context.Context, a actor.Actor) (string, bool, error) {
		calls.Add(1)
		if a.ID == "u-pro" {
			return "pro", true, nil
		}
		return "", false, nil
	})

	cached, err := NewCachedDirectory(inner, 100, time.Minute)
	if err != nil {
		t.Fatalf("NewCachedDirectory failed: %v", err)
	}
	defer cached.Close()
	ctx := context.Background()

	for _, a := range []actor.Actor{actor.User("u-pro"), actor.User("u1")} {
		if _, _, err := cached.AssignedPolicyID(ctx, a); err != nil {
			t.Fatalf("lookup failed: %v", err)
		}
	}
	cached.Wait()

	id, ok, _ := cached.AssignedPolicyID(ctx, actor.User("u-pro"))
	if !ok || id != "pro" {
		t.Errorf("cached lookup = (%q, %v), want (pro, true)", id, ok)
	}
	_, ok, _ = cached.AssignedPolicyID(ctx, actor.User("u1"))
	if ok {
		t.Error("absent assignment should stay absent when cached")
	}
	if calls.Load() != 2 {
		t.Errorf("Expected 2 directory calls, got %d", calls.Load())
	}

	cached.Invalidate(actor.User("u-pro"))
	cached.AssignedPolicyID(ctx, actor.User("u-pro"))
	if calls.Load() != 3 {
		t.Errorf("Expected invalidation to force a directory call, got %d calls", calls.Load())
	}
}

func TestCachedDirectory_ErrorsNotCached(t *testing.T) {
	var calls atomic.Int32
	inner := DirectoryFunc(func(context.Context, actor.Actor) (string, bool, error) {
		calls.Add(1)
		return "", false, errors.New("timeout")
	})
	cached, err := NewCachedDirectory(inner, 0, 0)
	if err != nil {
		t.Fatalf("NewCachedDirectory failed: %v", err)
	}
	defer cached.Close()

	for i := 0; i < 3; i++ {
		if _, _, err := cached.AssignedPolicyID(context.Background(), actor.User("u1")); err == nil {
			t.Error("Expected error to propagate")
		}
	}
	if calls.Load() != 3 {
		t.Errorf("Expected every call to reach the directory, got %d", calls.Load())
	}
}

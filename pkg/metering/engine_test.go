package metering

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"mercator-hq/metering/pkg/config"
	"mercator-hq/metering/pkg/metering/actor"
	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/period"
	"mercator-hq/metering/pkg/metering/quota"
	"mercator-hq/metering/pkg/metering/storage"
	"mercator-hq/metering/pkg/metering/subscription"
	"mercator-hq/metering/pkg/metering/usage"
	"mercator-hq/metering/pkg/telemetry/tracing"
)

const (
	userAllowance = 1_000
	userStorage   = 4_096
	tempAllowance = 100
	tempStorage   = 1_024
)

var january = period.Fixed(time.Date(2025, 1, 20, 10, 0, 0, 0, time.UTC))

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pricing.Providers = map[string]map[string]float64{
		"test":       {"test:model:tokens": 1},
		"openai":     {"openai:gpt-4o:prompt-tokens": 2.5},
		"filesystem": {"filesystem:storage:byte": 0.001},
	}
	cfg.Subscriptions.Policies = []config.PolicyConfig{
		{ID: "user_free", Kind: "free", MonthlyUsageAllowance: userAllowance, MonthlyStorageAllowance: userStorage},
		{ID: "temp_free", Kind: "temporary_free", MonthlyUsageAllowance: tempAllowance, MonthlyStorageAllowance: tempStorage},
		{ID: "pro", Kind: "paid", MonthlyUsageAllowance: 1_000_000, MonthlyStorageAllowance: 1 << 30},
	}
	cfg.Subscriptions.Assignments = map[string]string{"u-pro": "pro"}
	config.ApplyDefaults(cfg)
	return cfg
}

func newTestEngine(t *testing.T, opts Options) *Engine {
	t.Helper()
	if opts.Config == nil {
		opts.Config = testConfig()
	}
	if opts.Clock == nil {
		opts.Clock = january
	}
	e, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func record(t *testing.T, e *Engine, a actor.Actor, usageType string, qty float64) usage.Result {
	t.Helper()
	res, err := e.Record(context.Background(), usage.Event{Actor: a, UsageType: usageType, Quantity: qty})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	return res
}

func TestEngine_TwoRecordsOfAlmostTheAllowance(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u1 := actor.User("u1")

	res, d, err := e.RecordAndEvaluate(ctx, usage.Event{Actor: u1, UsageType: "test:model:tokens", Quantity: userAllowance - 1})
	if err != nil {
		t.Fatalf("RecordAndEvaluate failed: %v", err)
	}
	if res.CostTotal != userAllowance-1 {
		t.Errorf("Expected total %d, got %d", userAllowance-1, res.CostTotal)
	}
	if !d.Allowed() {
		t.Errorf("Expected Allowed after first record, got %s", d.Reason())
	}

	_, d, err = e.RecordAndEvaluate(ctx, usage.Event{Actor: u1, UsageType: "test:model:tokens", Quantity: userAllowance - 1})
	if err != nil {
		t.Fatalf("RecordAndEvaluate failed: %v", err)
	}
	if d.CostUsed != 2*userAllowance-2 {
		t.Errorf("Expected cost %d, got %d", 2*userAllowance-2, d.CostUsed)
	}
	if !d.CostExceeded || d.StorageExceeded {
		t.Errorf("Expected cost breach only, got %+v", d.Outcomes())
	}
}

func TestEngine_InclusiveBoundary(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u := actor.User("boundary")

	record(t, e, u, "test:model:tokens", userAllowance)
	d, err := e.Evaluate(ctx, u)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Allowed() || d.CostRemaining() != 0 {
		t.Errorf("Expected Allowed with nothing remaining at the boundary, got %s (%d left)", d.Reason(), d.CostRemaining())
	}

	record(t, e, u, "test:model:tokens", 1)
	d, _ = e.Evaluate(ctx, u)
	if !d.CostExceeded {
		t.Error("Expected CostExceeded one micro-unit past the allowance")
	}
}

func TestEngine_BothBreachesReported(t *testing.T) {
	e := newTestEngine(t, Options{})
	u := actor.Temporary("t1")

	res := record(t, e, u, "filesystem:storage:byte", tempStorage+1)
	if !res.StorageTracked || res.StorageTotal != tempStorage+1 {
		t.Errorf("Expected storage total %d, got %+v", tempStorage+1, res)
	}
	record(t, e, u, "test:model:tokens", tempAllowance+1)

	d, err := e.Evaluate(context.Background(), u)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Policy.ID != "temp_free" {
		t.Errorf("Expected temporary default, got %q", d.Policy.ID)
	}
	if !d.CostExceeded || !d.StorageExceeded {
		t.Errorf("Expected both breaches, got %v", d.Outcomes())
	}
	if d.OutcomeLabel() != "cost_exceeded,storage_exceeded" {
		t.Errorf("unexpected outcome label %q", d.OutcomeLabel())
	}
}

func TestEngine_GlobalActorAlwaysAllowed(t *testing.T) {
	e := newTestEngine(t, Options{})

	record(t, e, actor.Global, "test:model:tokens", 10*userAllowance)
	record(t, e, actor.User("u1"), "test:model:tokens", 5)

	d, err := e.Evaluate(context.Background(), actor.Global)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !d.Allowed() || !d.Exempt {
		t.Errorf("Expected global actor to be exempt, got %+v", d)
	}

	s, err := e.Summary(context.Background(), actor.Global, "")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if s.Cost != 10*userAllowance+5 {
		t.Errorf("Expected platform aggregate %d, got %d", 10*userAllowance+5, s.Cost)
	}
}

func TestEngine_AssignedPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Subscriptions.Cache.Enabled = true
	e := newTestEngine(t, Options{Config: cfg})

	record(t, e, actor.User("u-pro"), "test:model:tokens", 10*userAllowance)
	d, err := e.Evaluate(context.Background(), actor.User("u-pro"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Policy.ID != "pro" || d.Source != subscription.SourceAssigned {
		t.Errorf("Expected assigned pro policy, got %q (%s)", d.Policy.ID, d.Source)
	}
	if !d.Allowed() {
		t.Errorf("Expected pro usage within allowance, got %s", d.Reason())
	}

	e.InvalidatePolicy(actor.User("u-pro"))
	if got := e.Resolve(context.Background(), actor.User("u-pro")); got.Policy.ID != "pro" {
		t.Errorf("Expected pro after invalidation, got %q", got.Policy.ID)
	}
}

func TestEngine_DirectoryFailureFallsBack(t *testing.T) {
	dir := subscription.DirectoryFunc(func(context.Context, actor.Actor) (string, bool, error) {
		return "", false, errors.New("billing service unreachable")
	})
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, Options{Directory: dir, Registerer: reg})

	d, err := e.Evaluate(context.Background(), actor.User("u1"))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if d.Policy.ID != "user_free" || d.Source != subscription.SourceFallback {
		t.Errorf("Expected fallback to user_free, got %q (%s)", d.Policy.ID, d.Source)
	}

	expected := `
# HELP metering_policy_resolution_fallbacks_total Total number of policy resolutions that fell back to a default
# TYPE metering_policy_resolution_fallbacks_total counter
metering_policy_resolution_fallbacks_total{reason="directory_error"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "metering_policy_resolution_fallbacks_total"); err != nil {
		t.Error(err)
	}
}

func TestEngine_Unpriced(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := newTestEngine(t, Options{Registerer: reg})

	res := record(t, e, actor.User("u1"), "acme:ocr:pages", 3)
	if !res.Cost.Unpriced || res.Cost.MicroUnits != 0 {
		t.Errorf("Expected unpriced zero-cost result, got %+v", res.Cost)
	}

	expected := `
# HELP metering_usage_unpriced_total Total number of usage events normalized without a price
# TYPE metering_usage_unpriced_total counter
metering_usage_unpriced_total{provider="acme"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "metering_usage_unpriced_total"); err != nil {
		t.Error(err)
	}
}

func TestEngine_InvalidUsage(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()

	if _, err := e.Record(ctx, usage.Event{Actor: actor.User("u1"), UsageType: "test:model:tokens", Quantity: -1}); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for negative quantity, got %v", err)
	}
	if _, err := e.Record(ctx, usage.Event{UsageType: "test:model:tokens", Quantity: 1}); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for empty actor, got %v", err)
	}
	if _, err := e.EvaluateAt(ctx, actor.User("u1"), "2025/01"); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for malformed period, got %v", err)
	}

	s, err := e.Summary(ctx, actor.User("u1"), "")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if s.Cost != 0 || len(s.Types) != 0 {
		t.Errorf("Expected nothing written for invalid events, got %+v", s)
	}
}

// failingBackend refuses every operation.
type failingBackend struct{ closed bool }

func (f *failingBackend) IncrBy(context.Context, string, int64) (int64, error) {
	return 0, errors.New("connection refused")
}

func (f *failingBackend) Get(context.Context, string) (storage.Value, error) {
	return storage.Value{}, errors.New("connection refused")
}

func (f *failingBackend) Close() error {
	f.closed = true
	return nil
}

func TestEngine_InfrastructureFailure(t *testing.T) {
	backend := &failingBackend{}
	e := newTestEngine(t, Options{Store: backend})
	ctx := context.Background()

	if _, err := e.Record(ctx, usage.Event{Actor: actor.User("u1"), UsageType: "test:model:tokens", Quantity: 1}); !errors.Is(err, ErrInfrastructure) {
		t.Errorf("Expected ErrInfrastructure from Record, got %v", err)
	}
	d, err := e.Evaluate(ctx, actor.User("u1"))
	if !errors.Is(err, ErrInfrastructure) {
		t.Errorf("Expected ErrInfrastructure from Evaluate, got %v", err)
	}
	if d.Allowed() && d.Policy.ID != "" {
		t.Errorf("Expected no decision on failure, got %+v", d)
	}
	if err := e.Ping(ctx); !errors.Is(err, ErrInfrastructure) {
		t.Errorf("Expected ErrInfrastructure from Ping, got %v", err)
	}

	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if backend.closed {
		t.Error("Engine must not close a store it was given")
	}
}

// slowBackend blocks until the context expires.
type slowBackend struct{ *storage.MemoryBackend }

func (s slowBackend) Get(ctx context.Context, _ string) (storage.Value, error) {
	<-ctx.Done()
	return storage.Value{}, ctx.Err()
}

func TestEngine_OperationTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.Metering.OperationTimeout = 20 * time.Millisecond
	e := newTestEngine(t, Options{Config: cfg, Store: slowBackend{storage.NewMemoryBackend()}})

	start := time.Now()
	_, err := e.Evaluate(context.Background(), actor.User("u1"))
	if !errors.Is(err, ErrInfrastructure) {
		t.Errorf("Expected ErrInfrastructure on timeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Evaluate took %v, expected it to be bounded by the operation timeout", elapsed)
	}
}

func TestEngine_ReloadPricing(t *testing.T) {
	e := newTestEngine(t, Options{})
	u := actor.User("u1")

	e.Register("speech", costs.CostMap{"speech:tts:chars": costs.Static(0.5)})

	if res := record(t, e, u, "openai:gpt-4o:prompt-tokens", 4); res.Cost.MicroUnits != 10 {
		t.Errorf("Expected 10 micro-units, got %d", res.Cost.MicroUnits)
	}

	pricing := config.PricingConfig{Providers: map[string]map[string]float64{
		"openai": {"openai:gpt-4o:prompt-tokens": 5},
	}}
	e.ReloadPricing(pricing)

	if res := record(t, e, u, "openai:gpt-4o:prompt-tokens", 4); res.Cost.MicroUnits != 20 {
		t.Errorf("Expected reloaded price, got %d micro-units", res.Cost.MicroUnits)
	}
	if res := record(t, e, u, "test:model:tokens", 4); !res.Cost.Unpriced {
		t.Error("Expected usage types dropped from configuration to become unpriced")
	}
	if res := record(t, e, u, "speech:tts:chars", 3); res.Cost.MicroUnits != 2 {
		t.Errorf("Expected code-registered price to survive reload, got %d", res.Cost.MicroUnits)
	}

	want := []string{"openai:gpt-4o:prompt-tokens", "speech:tts:chars"}
	got := e.UsageTypes()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("UsageTypes() = %v, want %v", got, want)
	}
}

func TestEngine_RegisterCachedPrice(t *testing.T) {
	cfg := testConfig()
	cfg.Metering.PriceRefreshSchedule = "@every 1h"
	e := newTestEngine(t, Options{Config: cfg})

	price := costs.NewCachedPrice("ocr-pages", costs.DynamicPrice(func(context.Context) (decimal.Decimal, error) {
		return decimal.NewFromInt(40), nil
	}))
	e.Register("ocr", costs.CostMap{"ocr:vision:pages": price, "ocr:vision:fixed": costs.Static(1)})

	if e.refresher.Len() != 1 {
		t.Errorf("Expected 1 cached price scheduled for refresh, got %d", e.refresher.Len())
	}
	if entry, ok := e.Lookup("ocr:vision:pages"); !ok || entry.Provider != "ocr" {
		t.Errorf("Expected ocr entry, got %+v (%v)", entry, ok)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := e.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, ok := e.refresher.NextRun(); !ok {
		t.Error("Expected a scheduled refresh")
	}

	if res := record(t, e, actor.User("u1"), "ocr:vision:pages", 2); res.Cost.MicroUnits != 80 {
		t.Errorf("Expected 80 micro-units, got %d", res.Cost.MicroUnits)
	}
}

func TestEngine_Summary(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u := actor.User("u1")

	for _, ev := range []usage.Event{
		{Actor: u, AppKey: "chat", UsageType: "openai:gpt-4o:prompt-tokens", Quantity: 4},
		{Actor: u, AppKey: "chat", UsageType: "openai:gpt-4o:prompt-tokens", Quantity: 1},
		{Actor: u, AppKey: "files", UsageType: "filesystem:storage:byte", Quantity: 2048},
	} {
		if _, err := e.Record(ctx, ev); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	s, err := e.Summary(ctx, u, "chat")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	// ceil(2.5*4) + ceil(2.5*1) + ceil(0.001*2048)
	if s.Cost != 10+3+3 {
		t.Errorf("Expected cost 16, got %d", s.Cost)
	}
	if s.Storage != 2048 {
		t.Errorf("Expected storage 2048, got %d", s.Storage)
	}
	if s.AppCost != 13 || s.AppCount != 2 {
		t.Errorf("Expected chat cost 13 over 2 events, got %d over %d", s.AppCost, s.AppCount)
	}
	if len(s.Types) != 2 {
		t.Fatalf("Expected 2 usage types with data, got %+v", s.Types)
	}
	if s.Types[0].UsageType != "filesystem:storage:byte" || s.Types[1].Count != 2 {
		t.Errorf("unexpected breakdown %+v", s.Types)
	}

	other, err := e.SummaryFor(ctx, u, "", "2025-02")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}
	if other.Cost != 0 || other.Period != "2025-02" {
		t.Errorf("Expected empty February, got %+v", other)
	}
}

func TestEngine_RecordUsageObject(t *testing.T) {
	e := newTestEngine(t, Options{})

	results, err := e.RecordUsageObject(context.Background(), actor.User("u1"), "chat", "openai:gpt-4o", map[string]float64{
		"prompt-tokens":     4,
		"completion-tokens": 2,
	})
	if err != nil {
		t.Fatalf("RecordUsageObject failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Expected 2 results, got %d", len(results))
	}
	if !results[0].Cost.Unpriced || results[1].Cost.MicroUnits != 10 {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestEngine_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	defer tp.Shutdown(context.Background())

	e := newTestEngine(t, Options{Tracer: tracing.NewWithProvider(tp)})
	record(t, e, actor.User("u1"), "test:model:tokens", 1)
	if _, err := e.Evaluate(context.Background(), actor.User("u1")); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("Expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != tracing.SpanRecord || spans[1].Name() != tracing.SpanEvaluate {
		t.Errorf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
	found := false
	for _, kv := range spans[1].Attributes() {
		if string(kv.Key) == tracing.AttrOutcome && kv.Value.AsString() == string(quota.OutcomeAllowed) {
			found = true
		}
	}
	if !found {
		t.Error("Expected outcome attribute on evaluate span")
	}
}

func TestEngine_Policies(t *testing.T) {
	e := newTestEngine(t, Options{})

	policies := e.Policies()
	if len(policies) != 3 || policies[0].ID != "pro" {
		t.Errorf("unexpected policies %+v", policies)
	}
	if e.Period() != "2025-01" {
		t.Errorf("Period() = %q", e.Period())
	}
}

func TestNew_InvalidPolicyConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Subscriptions.DefaultUserPolicy = "missing"

	if _, err := New(context.Background(), Options{Config: cfg}); !errors.Is(err, subscription.ErrUnknownPolicy) {
		t.Errorf("Expected ErrUnknownPolicy, got %v", err)
	}
}

func TestNew_Defaults(t *testing.T) {
	e, err := New(context.Background(), Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer e.Close()

	if len(e.Policies()) != 2 {
		t.Errorf("Expected built-in policies, got %+v", e.Policies())
	}
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestOpenBackend(t *testing.T) {
	ctx := context.Background()

	backend, err := OpenBackend(ctx, config.StorageConfig{
		Backend: "sqlite",
		SQLite:  config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "metering.db")},
	})
	if err != nil {
		t.Fatalf("OpenBackend(sqlite) failed: %v", err)
	}
	if _, err := backend.IncrBy(ctx, "k", 3); err != nil {
		t.Errorf("IncrBy failed: %v", err)
	}
	if err := backend.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}

	if _, err := OpenBackend(ctx, config.StorageConfig{Backend: "etcd"}); err == nil {
		t.Error("Expected error for unsupported backend")
	}
	if _, err := OpenBackend(ctx, config.StorageConfig{Backend: "postgres"}); err == nil {
		t.Error("Expected error for postgres without DSN")
	}
}

func TestCostMapsFromConfig(t *testing.T) {
	maps := CostMapsFromConfig(testConfig().Pricing)
	if len(maps) != 3 {
		t.Fatalf("Expected 3 providers, got %d", len(maps))
	}
	p, err := maps["openai"]["openai:gpt-4o:prompt-tokens"].PerUnit(context.Background())
	if err != nil || !p.Equal(decimal.NewFromFloat(2.5)) {
		t.Errorf("unexpected price %v (%v)", p, err)
	}
}

func TestEngine_Quote(t *testing.T) {
	e := newTestEngine(t, Options{})

	q, err := e.Quote(context.Background(), "openai:gpt-4o:prompt-tokens", 3)
	if err != nil {
		t.Fatalf("Quote failed: %v", err)
	}
	if q.MicroUnits != 8 || q.Provider != "openai" {
		t.Errorf("Expected 8 micro-units from openai, got %+v", q)
	}

	s, _ := e.Summary(context.Background(), actor.User("u1"), "")
	if s.Cost != 0 {
		t.Errorf("Quote must not record, got cost %d", s.Cost)
	}
}

func TestEngine_HasEnoughFor(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u1, u2 := actor.User("u1"), actor.User("u2")
	record(t, e, u1, "test:model:tokens", userAllowance-10)

	tests := []struct {
		name      string
		who       actor.Actor
		usageType string
		quantity  float64
		want      bool
	}{
		{"exact fit", u1, "test:model:tokens", 10, true},
		{"one micro-unit over", u1, "test:model:tokens", 11, false},
		{"unpriced estimate costs nothing", u1, "acme:ocr:pages", 1e6, true},
		{"storage exact fit", u2, "filesystem:storage:byte", userStorage, true},
		{"storage one byte over", u2, "filesystem:storage:byte", userStorage + 1, false},
		{"global actor", actor.Global, "test:model:tokens", 1e12, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.HasEnoughFor(ctx, tt.who, tt.usageType, tt.quantity)
			if err != nil {
				t.Fatalf("HasEnoughFor failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("HasEnoughFor(%s, %v) = %v, want %v", tt.usageType, tt.quantity, got, tt.want)
			}
		})
	}

	if _, err := e.HasEnoughFor(ctx, u1, "", 1); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for empty usage type, got %v", err)
	}
	if _, err := e.HasEnoughFor(ctx, u1, "test:model:tokens", -1); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for negative estimate, got %v", err)
	}

	// Pre-checks never record.
	if s, _ := e.Summary(ctx, u2, ""); s.Cost != 0 || s.Storage != 0 {
		t.Errorf("Expected no usage recorded for u2, got %+v", s)
	}
}

func TestEngine_HasEnoughAndRemaining(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u := actor.User("u1")
	record(t, e, u, "test:model:tokens", userAllowance-10)

	remaining, err := e.Remaining(ctx, u)
	if err != nil {
		t.Fatalf("Remaining failed: %v", err)
	}
	if remaining != 10 {
		t.Errorf("Remaining() = %d, want 10", remaining)
	}

	if ok, err := e.HasEnough(ctx, u, 10); err != nil || !ok {
		t.Errorf("HasEnough(10) = %v, %v; want true", ok, err)
	}
	if ok, err := e.HasEnough(ctx, u, 11); err != nil || ok {
		t.Errorf("HasEnough(11) = %v, %v; want false", ok, err)
	}
	if _, err := e.HasEnough(ctx, u, -1); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage for negative cost, got %v", err)
	}

	record(t, e, u, "test:model:tokens", 11)
	if remaining, _ := e.Remaining(ctx, u); remaining != 0 {
		t.Errorf("Remaining() after breach = %d, want 0", remaining)
	}
	if ok, _ := e.HasEnough(ctx, u, 0); ok {
		t.Error("An actor over the allowance must not have enough for anything")
	}

	if remaining, err := e.Remaining(ctx, actor.Global); err != nil || remaining != math.MaxInt64 {
		t.Errorf("Remaining(global) = %d, %v; want MaxInt64", remaining, err)
	}
}

func TestEngine_PreChecksFailClosed(t *testing.T) {
	e := newTestEngine(t, Options{Store: &failingBackend{}})
	ctx := context.Background()
	u := actor.User("u1")

	if ok, err := e.HasEnoughFor(ctx, u, "test:model:tokens", 1); ok || !errors.Is(err, ErrInfrastructure) {
		t.Errorf("HasEnoughFor = %v, %v; want false with ErrInfrastructure", ok, err)
	}
	if ok, err := e.HasEnough(ctx, u, 1); ok || !errors.Is(err, ErrInfrastructure) {
		t.Errorf("HasEnough = %v, %v; want false with ErrInfrastructure", ok, err)
	}
	if _, err := e.Remaining(ctx, u); !errors.Is(err, ErrInfrastructure) {
		t.Errorf("Expected ErrInfrastructure from Remaining, got %v", err)
	}
}

func TestEngine_PlatformKindIsNotExempt(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	impostor := actor.Actor{ID: "alice", Kind: actor.KindPlatform}

	if _, err := e.Record(ctx, usage.Event{Actor: impostor, UsageType: "test:model:tokens", Quantity: 1 << 20}); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage from Record, got %v", err)
	}
	if _, err := e.Evaluate(ctx, impostor); !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("Expected ErrInvalidUsage from Evaluate, got %v", err)
	}
	if ok, err := e.HasEnoughFor(ctx, impostor, "test:model:tokens", 1); ok || !errors.Is(err, ErrInvalidUsage) {
		t.Errorf("HasEnoughFor = %v, %v; want false with ErrInvalidUsage", ok, err)
	}
}

func TestEngine_SummaryExtraTypes(t *testing.T) {
	e := newTestEngine(t, Options{})
	ctx := context.Background()
	u := actor.User("u1")
	record(t, e, u, "acme:ocr:pages", 3)
	record(t, e, u, "test:model:tokens", 2)

	s, err := e.Summary(ctx, u, "")
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if len(s.Types) != 1 || s.Types[0].UsageType != "test:model:tokens" {
		t.Errorf("Expected only the registered type, got %+v", s.Types)
	}

	s, err = e.SummaryFor(ctx, u, "", "2025-01", "acme:ocr:pages", "test:model:tokens", "")
	if err != nil {
		t.Fatalf("SummaryFor failed: %v", err)
	}
	if len(s.Types) != 2 {
		t.Fatalf("Expected registered and unpriced types, got %+v", s.Types)
	}
	var unpriced usage.TypeUsage
	for _, tu := range s.Types {
		if tu.UsageType == "acme:ocr:pages" {
			unpriced = tu
		}
	}
	if unpriced.Units != 3 || unpriced.Count != 1 || unpriced.Cost != 0 {
		t.Errorf("unexpected unpriced breakdown %+v", unpriced)
	}
}

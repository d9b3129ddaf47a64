package main

import (
	"strconv"

	"mercator-hq/metering/pkg/metering/costs"
	"mercator-hq/metering/pkg/metering/quota"
	"mercator-hq/metering/pkg/metering/subscription"
	"mercator-hq/metering/pkg/metering/usage"
)

// Command output views. Each renders as a table in text and csv mode.

type recordView struct {
	EventID      string  `json:"event_id" yaml:"event_id"`
	Actor        string  `json:"actor" yaml:"actor"`
	Period       string  `json:"period" yaml:"period"`
	UsageType    string  `json:"usage_type" yaml:"usage_type"`
	Quantity     float64 `json:"quantity" yaml:"quantity"`
	Cost         int64   `json:"cost" yaml:"cost"`
	Unpriced     bool    `json:"unpriced,omitempty" yaml:"unpriced,omitempty"`
	CostTotal    int64   `json:"cost_total" yaml:"cost_total"`
	StorageTotal *int64  `json:"storage_total,omitempty" yaml:"storage_total,omitempty"`

	Decision *decisionView `json:"decision,omitempty" yaml:"decision,omitempty"`
}

func newRecordView(who string, res usage.Result) recordView {
	v := recordView{
		EventID:   res.EventID.String(),
		Actor:     who,
		Period:    res.Period,
		UsageType: res.Cost.UsageType,
		Quantity:  res.Cost.Quantity,
		Cost:      res.Cost.MicroUnits,
		Unpriced:  res.Cost.Unpriced,
		CostTotal: res.CostTotal,
	}
	if res.StorageTracked {
		total := res.StorageTotal
		v.StorageTotal = &total
	}
	return v
}

func (v recordView) Header() []string {
	return []string{"event_id", "period", "usage_type", "quantity", "cost", "cost_total", "outcome"}
}

func (v recordView) Rows() [][]string {
	outcome := ""
	if v.Decision != nil {
		outcome = v.Decision.Outcome
	}
	cost := strconv.FormatInt(v.Cost, 10)
	if v.Unpriced {
		cost = "unpriced"
	}
	return [][]string{{
		v.EventID, v.Period, v.UsageType,
		strconv.FormatFloat(v.Quantity, 'f', -1, 64),
		cost, strconv.FormatInt(v.CostTotal, 10), outcome,
	}}
}

type decisionView struct {
	Actor            string `json:"actor" yaml:"actor"`
	Period           string `json:"period" yaml:"period"`
	Policy           string `json:"policy,omitempty" yaml:"policy,omitempty"`
	Source           string `json:"source,omitempty" yaml:"source,omitempty"`
	Allowed          bool   `json:"allowed" yaml:"allowed"`
	Outcome          string `json:"outcome" yaml:"outcome"`
	Reason           string `json:"reason" yaml:"reason"`
	CostUsed         int64  `json:"cost_used" yaml:"cost_used"`
	CostRemaining    int64  `json:"cost_remaining" yaml:"cost_remaining"`
	StorageUsed      int64  `json:"storage_used" yaml:"storage_used"`
	StorageRemaining int64  `json:"storage_remaining" yaml:"storage_remaining"`
}

func newDecisionView(d quota.Decision) decisionView {
	return decisionView{
		Actor:            d.Actor.String(),
		Period:           d.Period,
		Policy:           d.Policy.ID,
		Source:           string(d.Source),
		Allowed:          d.Allowed(),
		Outcome:          d.OutcomeLabel(),
		Reason:           d.Reason(),
		CostUsed:         d.CostUsed,
		CostRemaining:    d.CostRemaining(),
		StorageUsed:      d.StorageUsed,
		StorageRemaining: d.StorageRemaining(),
	}
}

func (v decisionView) Header() []string {
	return []string{"actor", "period", "policy", "outcome", "cost_used", "cost_remaining", "storage_used", "storage_remaining"}
}

func (v decisionView) Rows() [][]string {
	return [][]string{{
		v.Actor, v.Period, v.Policy, v.Outcome,
		strconv.FormatInt(v.CostUsed, 10), strconv.FormatInt(v.CostRemaining, 10),
		strconv.FormatInt(v.StorageUsed, 10), strconv.FormatInt(v.StorageRemaining, 10),
	}}
}

type typeView struct {
	UsageType string `json:"usage_type" yaml:"usage_type"`
	Units     int64  `json:"units" yaml:"units"`
	Cost      int64  `json:"cost" yaml:"cost"`
	Count     int64  `json:"count" yaml:"count"`
}

type summaryView struct {
	Actor    string     `json:"actor" yaml:"actor"`
	Period   string     `json:"period" yaml:"period"`
	Cost     int64      `json:"cost" yaml:"cost"`
	Storage  int64      `json:"storage" yaml:"storage"`
	App      string     `json:"app,omitempty" yaml:"app,omitempty"`
	AppCost  int64      `json:"app_cost,omitempty" yaml:"app_cost,omitempty"`
	AppCount int64      `json:"app_count,omitempty" yaml:"app_count,omitempty"`
	Types    []typeView `json:"types" yaml:"types"`
}

func newSummaryView(s usage.Summary) summaryView {
	v := summaryView{
		Actor:    s.Actor.String(),
		Period:   s.Period,
		Cost:     s.Cost,
		Storage:  s.Storage,
		App:      s.AppKey,
		AppCost:  s.AppCost,
		AppCount: s.AppCount,
		Types:    make([]typeView, 0, len(s.Types)),
	}
	for _, t := range s.Types {
		v.Types = append(v.Types, typeView(t))
	}
	return v
}

func (v summaryView) Header() []string {
	return []string{"usage_type", "units", "cost", "count"}
}

// Rows lists the breakdown followed by a total row.
func (v summaryView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Types)+1)
	for _, t := range v.Types {
		rows = append(rows, []string{
			t.UsageType,
			strconv.FormatInt(t.Units, 10),
			strconv.FormatInt(t.Cost, 10),
			strconv.FormatInt(t.Count, 10),
		})
	}
	rows = append(rows, []string{"total", strconv.FormatInt(v.Storage, 10), strconv.FormatInt(v.Cost, 10), ""})
	return rows
}

type policyView struct {
	ID                      string `json:"id" yaml:"id"`
	Kind                    string `json:"kind" yaml:"kind"`
	MonthlyUsageAllowance   int64  `json:"monthly_usage_allowance" yaml:"monthly_usage_allowance"`
	MonthlyStorageAllowance int64  `json:"monthly_storage_allowance" yaml:"monthly_storage_allowance"`
	Source                  string `json:"source,omitempty" yaml:"source,omitempty"`
}

type policiesView []policyView

func newPoliciesView(policies []subscription.Policy) policiesView {
	v := make(policiesView, 0, len(policies))
	for _, p := range policies {
		v = append(v, policyView{
			ID:                      p.ID,
			Kind:                    string(p.Kind),
			MonthlyUsageAllowance:   p.MonthlyUsageAllowance,
			MonthlyStorageAllowance: p.MonthlyStorageAllowance,
		})
	}
	return v
}

func (v policiesView) Header() []string {
	return []string{"id", "kind", "usage_allowance", "storage_allowance", "source"}
}

func (v policiesView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, p := range v {
		rows = append(rows, []string{
			p.ID, p.Kind,
			strconv.FormatInt(p.MonthlyUsageAllowance, 10),
			strconv.FormatInt(p.MonthlyStorageAllowance, 10),
			p.Source,
		})
	}
	return rows
}

type priceView struct {
	UsageType string `json:"usage_type" yaml:"usage_type"`
	Provider  string `json:"provider" yaml:"provider"`
	PerUnit   string `json:"per_unit,omitempty" yaml:"per_unit,omitempty"`
	Dynamic   bool   `json:"dynamic,omitempty" yaml:"dynamic,omitempty"`
	Quantity  string `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	Cost      *int64 `json:"cost,omitempty" yaml:"cost,omitempty"`
}

type pricesView []priceView

func newPriceView(usageType string, e costs.Entry) priceView {
	v := priceView{UsageType: usageType, Provider: e.Provider}
	switch p := e.Price.(type) {
	case costs.Static:
		v.PerUnit = strconv.FormatFloat(float64(p), 'f', -1, 64)
	case costs.StaticDecimal:
		v.PerUnit = p.Value.String()
	default:
		v.Dynamic = true
	}
	return v
}

func (v pricesView) Header() []string {
	return []string{"usage_type", "provider", "per_unit", "quantity", "cost"}
}

func (v pricesView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, p := range v {
		perUnit := p.PerUnit
		if p.Dynamic {
			perUnit = "dynamic"
		}
		cost := ""
		if p.Cost != nil {
			cost = strconv.FormatInt(*p.Cost, 10)
		}
		rows = append(rows, []string{p.UsageType, p.Provider, perUnit, p.Quantity, cost})
	}
	return rows
}

type checkView struct {
	Actor     string  `json:"actor" yaml:"actor"`
	UsageType string  `json:"usage_type" yaml:"usage_type"`
	Quantity  float64 `json:"quantity" yaml:"quantity"`
	Cost      int64   `json:"cost" yaml:"cost"`
	Unpriced  bool    `json:"unpriced,omitempty" yaml:"unpriced,omitempty"`
	Remaining int64   `json:"cost_remaining" yaml:"cost_remaining"`
	Fits      bool    `json:"fits" yaml:"fits"`
}

func (v checkView) Header() []string {
	return []string{"actor", "usage_type", "quantity", "cost", "cost_remaining", "fits"}
}

func (v checkView) Rows() [][]string {
	cost := strconv.FormatInt(v.Cost, 10)
	if v.Unpriced {
		cost += " (unpriced)"
	}
	return [][]string{{
		v.Actor, v.UsageType, strconv.FormatFloat(v.Quantity, 'f', -1, 64),
		cost, strconv.FormatInt(v.Remaining, 10), strconv.FormatBool(v.Fits),
	}}
}

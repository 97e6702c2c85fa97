package metrics

import (
	"encoding/json"
	"maps"
	"math"
	"net/http"
	"slices"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics summary endpoint.
type Summary struct {
	HTTP       httpSummary    `json:"http"`
	Auth       authInfo       `json:"auth"`
	RateLimit  rateLimitInfo  `json:"rateLimit"`
	Membership membershipInfo `json:"membership"`
	DB         dbInfo         `json:"db"`
	Server     serverInfo     `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	InFlight      float64 `json:"inFlight"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type membershipInfo struct {
	Mutations float64 `json:"mutations"`
	Conflicts float64 `json:"conflicts"`
	Errors    float64 `json:"errors"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	OpenConns  float64 `json:"openConns"`
	InUseConns float64 `json:"inUseConns"`
	IdleConns  float64 `json:"idleConns"`
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summarize()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summarize gathers the registry into a Summary.
func (m *Metrics) Summarize() (*Summary, error) {
	gathered, err := m.registry.Gather()
	if err != nil {
		return nil, err
	}
	fs := make(families, len(gathered))
	for _, f := range gathered {
		fs[f.GetName()] = f
	}

	const (
		requests  = "talentcontrol_http_requests_total"
		latency   = "talentcontrol_http_request_duration_seconds"
		mutations = "talentcontrol_membership_mutations_total"
		pool      = "talentcontrol_db_pool_connections"
	)
	start := fs.sum("talentcontrol_server_start_time_seconds", nil)
	return &Summary{
		HTTP: httpSummary{
			TotalRequests: fs.sum(requests, nil),
			InFlight:      fs.sum("talentcontrol_http_in_flight_requests", nil),
			ErrorRate:     fs.ratio(requests, failedRequest),
			P50Latency:    fs.quantile(latency, 0.50),
			P95Latency:    fs.quantile(latency, 0.95),
			P99Latency:    fs.quantile(latency, 0.99),
		},
		Auth: authInfo{
			Failures:  fs.sum("talentcontrol_auth_failures_total", nil),
			Successes: fs.sum("talentcontrol_auth_successes_total", nil),
		},
		RateLimit: rateLimitInfo{
			Rejections: fs.sum("talentcontrol_ratelimit_rejections_total", nil),
		},
		Membership: membershipInfo{
			Mutations: fs.sum(mutations, nil),
			Conflicts: fs.sum(mutations, labelled("result", "conflict")),
			Errors:    fs.sum(mutations, labelled("result", "error")),
		},
		DB: dbInfo{
			OpenConns:  fs.sum(pool, labelled("state", poolOpen)),
			InUseConns: fs.sum(pool, labelled("state", poolInUse)),
			IdleConns:  fs.sum(pool, labelled("state", poolIdle)),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

// families indexes one Gather result by metric name. Lookups of metrics that
// were never observed read as zero.
type families map[string]*dto.MetricFamily

// sum adds the counter and gauge samples of name accepted by keep, or all of
// them when keep is nil.
func (fs families) sum(name string, keep func(*dto.Metric) bool) float64 {
	var total float64
	for _, m := range fs[name].GetMetric() {
		if keep == nil || keep(m) {
			total += m.GetCounter().GetValue() + m.GetGauge().GetValue()
		}
	}
	return total
}

// ratio is the share of name's samples accepted by keep.
func (fs families) ratio(name string, keep func(*dto.Metric) bool) float64 {
	all := fs.sum(name, nil)
	if all == 0 {
		return 0
	}
	return fs.sum(name, keep) / all
}

// quantile estimates the q-quantile of a histogram family by merging the
// buckets of every series and interpolating inside the bucket holding the
// target rank.
func (fs families) quantile(name string, q float64) float64 {
	cumulative := make(map[float64]uint64)
	var observed uint64
	for _, m := range fs[name].GetMetric() {
		h := m.GetHistogram()
		observed += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			if !math.IsInf(b.GetUpperBound(), 1) {
				cumulative[b.GetUpperBound()] += b.GetCumulativeCount()
			}
		}
	}
	if observed == 0 || len(cumulative) == 0 {
		return 0
	}

	bounds := slices.Sorted(maps.Keys(cumulative))
	rank := q * float64(observed)
	var lower float64
	var below uint64
	for _, upper := range bounds {
		n := cumulative[upper]
		if float64(n) >= rank {
			if n == below {
				return upper
			}
			return lower + (upper-lower)*(rank-float64(below))/float64(n-below)
		}
		lower, below = upper, n
	}
	// The rank falls in the +Inf bucket.
	return bounds[len(bounds)-1]
}

func labelled(name, value string) func(*dto.Metric) bool {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name {
				return lp.GetValue() == value
			}
		}
		return false
	}
}

// failedRequest matches request series answered with a 4xx or 5xx status.
func failedRequest(m *dto.Metric) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == "status_code" {
			return lp.GetValue() >= "400"
		}
	}
	return false
}

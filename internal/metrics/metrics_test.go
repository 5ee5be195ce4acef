package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	var total float64
	for _, mf := range metrics {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
		return total
	}
	t.Fatalf("%s metric not found", name)
	return 0
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
	var _ MetricsCollector = c
}

// TestRecordActivation_IncrementsCounters は有効化カウンタが増加することを検証する。
func TestRecordActivation_IncrementsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordActivationSuccess("plan")
	c.RecordActivationSuccess("voucher")
	c.RecordActivationFailure("voucher", FailReasonProvider)

	if got := counterValue(t, reg, "paywifi_activation_success_total"); got != 2 {
		t.Errorf("activation_success_total = %v, want 2", got)
	}
	if got := counterValue(t, reg, "paywifi_activation_fail_total"); got != 1 {
		t.Errorf("activation_fail_total = %v, want 1", got)
	}
}

// TestRecordActivationFailure_ReasonLabel は失敗要因が
// reasonラベルとして計上されることを検証する。
func TestRecordActivationFailure_ReasonLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordActivationFailure("plan", FailReasonProvider)
	c.RecordActivationFailure("plan", FailReasonCommit)
	c.RecordActivationFailure("plan", FailReasonCommit)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	byReason := map[string]float64{}
	for _, mf := range mfs {
		if mf.GetName() != "paywifi_activation_fail_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" {
					byReason[l.GetValue()] += m.GetCounter().GetValue()
				}
			}
		}
	}
	if byReason[FailReasonProvider] != 1 {
		t.Errorf("reason=%s = %v, want 1", FailReasonProvider, byReason[FailReasonProvider])
	}
	if byReason[FailReasonCommit] != 2 {
		t.Errorf("reason=%s = %v, want 2", FailReasonCommit, byReason[FailReasonCommit])
	}
}

// TestRecordReconcile_Counters は失効スキャン関連カウンタを検証する。
func TestRecordReconcile_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcileCycle()
	c.RecordExpiredAccesses(3)
	c.RecordDeactivation("expired")

	if got := counterValue(t, reg, "paywifi_reconcile_cycles_total"); got != 1 {
		t.Errorf("reconcile_cycles_total = %v, want 1", got)
	}
	if got := counterValue(t, reg, "paywifi_expired_accesses_total"); got != 3 {
		t.Errorf("expired_accesses_total = %v, want 3", got)
	}
	if got := counterValue(t, reg, "paywifi_deactivation_total"); got != 1 {
		t.Errorf("deactivation_total = %v, want 1", got)
	}
}

// TestHandler_ServesMetrics は/metricsのスクレイプ出力を検証する。
func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordProviderLatency("activate", 42*time.Millisecond)

	server := httptest.NewServer(Handler(reg))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("failed to scrape metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	out := string(body)
	if !strings.Contains(out, "paywifi_http_status_total") {
		t.Error("paywifi_http_status_total がスクレイプ出力に含まれるべき")
	}
	if !strings.Contains(out, "paywifi_provider_latency_seconds") {
		t.Error("paywifi_provider_latency_seconds がスクレイプ出力に含まれるべき")
	}
}

package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPaymentMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPaymentMetrics(reg)

	metrics.IncWebhookEvent("payment_intent.succeeded", "applied")
	metrics.IncWebhookEvent("payment_intent.succeeded", "applied")
	metrics.IncWebhookEvent("invoice.paid", "ignored")
	metrics.IncIntentCreated("card")
	metrics.ObserveStripeCall("payment_intent_create", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "stripe_webhook_events", "event_type", "payment_intent.succeeded"); err != nil {
		t.Fatalf("fetch webhook counter: %v", err)
	} else if got != 2 {
		t.Fatalf("expected webhook counter=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_intents_created", "payment_method", "card"); err != nil {
		t.Fatalf("fetch intent counter: %v", err)
	} else if got != 1 {
		t.Fatalf("expected intent counter=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "stripe_call_duration_seconds", "operation", "payment_intent_create"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestPaymentMetricsNormalizesEmptyLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPaymentMetrics(reg)

	metrics.IncIntentCreated("")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "payment_intents_created", "payment_method", "unknown"); err != nil {
		t.Fatalf("fetch intent counter: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown label counter=1, got %f", got)
	}
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

package metrics

import (
	"strings"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func family(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return nil
}

func labelled(f *dto.MetricFamily, label, value string) float64 {
	for _, metric := range f.GetMetric() {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == label && pair.GetValue() == value {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestRecorderCounters(t *testing.T) {
	m := New()
	m.AttemptsAllocated(3)
	m.AttemptsFailed(2)
	m.VoteCast("accepted")
	m.VoteCast("accepted")
	m.VoteCast("LIMIT_REACHED")
	m.Settlement(true)
	m.Settlement(false)
	m.EventDelivered("pointsUpdated", "parked")

	assert.Equal(t, 3.0, family(t, m, "dailyquest_allocator_attempts_created_total").GetMetric()[0].GetCounter().GetValue())
	assert.Equal(t, 2.0, family(t, m, "dailyquest_allocator_attempts_failed_total").GetMetric()[0].GetCounter().GetValue())

	votes := family(t, m, "dailyquest_validation_votes_total")
	assert.Equal(t, 2.0, labelled(votes, "result", "accepted"))
	assert.Equal(t, 1.0, labelled(votes, "result", "LIMIT_REACHED"))

	settlements := family(t, m, "dailyquest_settlement_settlements_total")
	assert.Equal(t, 1.0, labelled(settlements, "result", "ok"))
	assert.Equal(t, 1.0, labelled(settlements, "result", "failed"))

	assert.Equal(t, 1.0, labelled(family(t, m, "dailyquest_notify_events_total"), "result", "parked"))
}

func TestGaugeAndHandler(t *testing.T) {
	m := New()
	m.Gauge("outbox", "parked_events", "Events waiting in the outbox", func() float64 { return 7 })

	handler := m.Middleware(m.Handler())
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.SetRequestURI("/metrics")
	handler(ctx)

	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	body := string(ctx.Response.Body())
	assert.True(t, strings.Contains(body, "dailyquest_outbox_parked_events 7"), body)
	assert.Equal(t, 1.0, labelled(family(t, m, "dailyquest_http_requests_total"), "code", "200"))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VoucherMetrics records the voucher lifecycle counters and render timings.
type VoucherMetrics struct {
	issued         prometheus.Counter
	claimed        prometheus.Counter
	claimRejected  *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec
}

// NewVoucherMetrics registers the voucher metrics on the provided registerer.
func NewVoucherMetrics(reg prometheus.Registerer) *VoucherMetrics {
	if reg == nil {
		return &VoucherMetrics{}
	}
	issued := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchers_issued_total",
		Help: "Vouchers created.",
	})
	claimed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vouchers_claimed_total",
		Help: "Vouchers successfully marked used.",
	})
	claimRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vouchers_claim_rejected_total",
		Help: "Claim attempts rejected, by reason.",
	}, []string{"reason"})
	renderDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voucher_render_duration_seconds",
		Help:    "Time spent rendering voucher artifacts.",
		Buckets: prometheus.DefBuckets,
	}, []string{"format"})
	reg.MustRegister(issued, claimed, claimRejected, renderDuration)
	return &VoucherMetrics{
		issued:         issued,
		claimed:        claimed,
		claimRejected:  claimRejected,
		renderDuration: renderDuration,
	}
}

// IncIssued increments the issued counter.
func (m *VoucherMetrics) IncIssued() {
	if m == nil || m.issued == nil {
		return
	}
	m.issued.Inc()
}

// IncClaimed increments the claimed counter.
func (m *VoucherMetrics) IncClaimed() {
	if m == nil || m.claimed == nil {
		return
	}
	m.claimed.Inc()
}

// IncClaimRejected increments the rejection counter for the given reason.
func (m *VoucherMetrics) IncClaimRejected(reason string) {
	if m == nil || m.claimRejected == nil {
		return
	}
	m.claimRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// ObserveRenderDuration records how long an artifact render took.
func (m *VoucherMetrics) ObserveRenderDuration(format string, duration time.Duration) {
	if m == nil || m.renderDuration == nil {
		return
	}
	m.renderDuration.WithLabelValues(normalizeLabel(format)).Observe(duration.Seconds())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the BAP engine
type Service struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	dispatchesTotal *prometheus.CounterVec
	callbacksTotal  *prometheus.CounterVec

	signatureVerificationsTotal *prometheus.CounterVec
	challengeDecryptionsTotal   *prometheus.CounterVec

	transactionsActive prometheus.Gauge
}

// NewService creates a new metrics service
func NewService(serviceName string) *Service {
	constLabels := prometheus.Labels{"service": serviceName}

	return &Service{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "bap_requests_total",
			Help:        "Total HTTP requests by endpoint and status",
			ConstLabels: constLabels,
		}, []string{"endpoint", "status"}),
		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "bap_request_duration_seconds",
			Help:        "HTTP request duration by endpoint and status",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"endpoint", "status"}),
		dispatchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "bap_dispatches_total",
			Help:        "Outbound protocol calls by action and outcome",
			ConstLabels: constLabels,
		}, []string{"action", "outcome"}),
		callbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "bap_callbacks_total",
			Help:        "Inbound protocol callbacks by action and outcome",
			ConstLabels: constLabels,
		}, []string{"action", "outcome"}),
		signatureVerificationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "bap_signature_verifications_total",
			Help:        "Inbound signature verifications by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		challengeDecryptionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "bap_challenge_decryptions_total",
			Help:        "Subscription challenge decryptions by outcome",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		transactionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name:        "bap_transactions_active",
			Help:        "Transactions currently held in the correlation store",
			ConstLabels: constLabels,
		}),
	}
}

// RecordRequest counts one HTTP request.
func (s *Service) RecordRequest(endpoint, status string) {
	s.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

// RecordRequestDuration observes one HTTP request duration.
func (s *Service) RecordRequestDuration(endpoint, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// RecordDispatch counts one outbound protocol call.
func (s *Service) RecordDispatch(action, outcome string) {
	s.dispatchesTotal.WithLabelValues(action, outcome).Inc()
}

// RecordCallback counts one inbound callback.
func (s *Service) RecordCallback(action, outcome string) {
	s.callbacksTotal.WithLabelValues(action, outcome).Inc()
}

// RecordSignatureVerification counts one verification attempt.
func (s *Service) RecordSignatureVerification(outcome string) {
	s.signatureVerificationsTotal.WithLabelValues(outcome).Inc()
}

// RecordChallengeDecryption counts one handshake decryption attempt.
func (s *Service) RecordChallengeDecryption(outcome string) {
	s.challengeDecryptionsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveTransactions reports the correlation store size.
func (s *Service) SetActiveTransactions(count int) {
	s.transactionsActive.Set(float64(count))
}

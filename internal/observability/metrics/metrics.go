package metrics

import "github.com/prometheus/client_golang/prometheus"

// ConversationMetrics exposes counters/histograms for the chat engines.
type ConversationMetrics struct {
	turnsTotal        *prometheus.CounterVec
	turnLatency       *prometheus.HistogramVec
	classifierErrors  *prometheus.CounterVec
	ragQuestionsTotal prometheus.Counter
	qualifiedTotal    *prometheus.CounterVec
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafeai",
			Subsystem: "conversation",
			Name:      "turns_total",
			Help:      "Processed turns by bot and resulting intent stage",
		}, []string{"bot", "stage"}),
		turnLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cafeai",
			Subsystem: "conversation",
			Name:      "turn_latency_seconds",
			Help:      "Latency of full turn processing",
			Buckets:   prometheus.DefBuckets,
		}, []string{"bot"}),
		classifierErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafeai",
			Subsystem: "conversation",
			Name:      "classifier_errors_total",
			Help:      "LLM classifier/extractor failures that degraded to defaults",
		}, []string{"classifier"}),
		ragQuestionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cafeai",
			Subsystem: "conversation",
			Name:      "rag_questions_total",
			Help:      "Knowledge-base questions answered mid-qualification",
		}),
		qualifiedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cafeai",
			Subsystem: "conversation",
			Name:      "qualified_total",
			Help:      "Conversations reaching qualification, by customer type",
		}, []string{"customer_type"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.turnsTotal, m.turnLatency, m.classifierErrors, m.ragQuestionsTotal, m.qualifiedTotal)
	return m
}

func (m *ConversationMetrics) ObserveTurn(bot, stage string, seconds float64) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(bot, stage).Inc()
	m.turnLatency.WithLabelValues(bot).Observe(seconds)
}

func (m *ConversationMetrics) ObserveClassifierError(classifier string) {
	if m == nil {
		return
	}
	m.classifierErrors.WithLabelValues(classifier).Inc()
}

func (m *ConversationMetrics) ObserveRAGQuestion() {
	if m == nil {
		return
	}
	m.ragQuestionsTotal.Inc()
}

func (m *ConversationMetrics) ObserveQualified(customerType string) {
	if m == nil {
		return
	}
	m.qualifiedTotal.WithLabelValues(customerType).Inc()
}

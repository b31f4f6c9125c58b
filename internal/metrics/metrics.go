// Package metrics: Prometheus метрики AgriBot.
//
// Коллекторы живут в собственном Registry (не в глобальном), поэтому
// тесты и несколько экземпляров приложения не конфликтуют.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics: набор коллекторов приложения.
type Metrics struct {
	registry *prometheus.Registry

	chatTurns        *prometheus.CounterVec
	chatDuration     prometheus.Histogram
	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	catalogRequests  *prometheus.CounterVec
	catalogDuration  *prometheus.HistogramVec
	llmDuration      *prometheus.HistogramVec
	imageUploads     *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New создаёт и регистрирует все коллекторы.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		chatTurns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribot_chat_turns_total",
			Help: "Total number of chat turns by resulting action",
		}, []string{"action"}),
		chatDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "agribot_chat_turn_duration_seconds",
			Help:    "Chat turn duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribot_tool_calls_total",
			Help: "Total number of tool calls by outcome",
		}, []string{"tool", "outcome"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agribot_tool_call_duration_seconds",
			Help:    "Tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		catalogRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribot_catalog_requests_total",
			Help: "Total number of product service requests by outcome",
		}, []string{"operation", "outcome"}),
		catalogDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agribot_catalog_request_duration_seconds",
			Help:    "Product service request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		llmDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agribot_llm_request_duration_seconds",
			Help:    "LLM request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		}, []string{"phase", "outcome"}),
		imageUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribot_image_uploads_total",
			Help: "Total number of image uploads by outcome",
		}, []string{"outcome"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agribot_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "agribot_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.chatTurns,
		m.chatDuration,
		m.toolCalls,
		m.toolDuration,
		m.catalogRequests,
		m.catalogDuration,
		m.llmDuration,
		m.imageUploads,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler отдаёт метрики в формате Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry: для тестов и дополнительных коллекторов.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// TrackSessions регистрирует gauge числа живых сессий.
func (m *Metrics) TrackSessions(count func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "agribot_sessions_active",
		Help: "Number of live chat sessions",
	}, func() float64 {
		return float64(count())
	}))
}

// TurnCompleted: завершён ход диалога. Пустой action пишется как "none".
func (m *Metrics) TurnCompleted(action string, elapsed time.Duration) {
	if action == "" {
		action = "none"
	}
	m.chatTurns.WithLabelValues(action).Inc()
	m.chatDuration.Observe(elapsed.Seconds())
}

// ToolExecuted: выполнен инструмент.
func (m *Metrics) ToolExecuted(tool, outcome string, elapsed time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}

// LLMCompleted: завершён запрос к модели.
func (m *Metrics) LLMCompleted(phase string, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.llmDuration.WithLabelValues(phase, outcome).Observe(elapsed.Seconds())
}

// ImageUploaded: исход загрузки фото ("stored", "invalid", "too_large").
func (m *Metrics) ImageUploaded(outcome string) {
	m.imageUploads.WithLabelValues(outcome).Inc()
}

// CatalogRequest совместим с catalog.Observer.
func (m *Metrics) CatalogRequest(op, outcome string, elapsed time.Duration) {
	m.catalogRequests.WithLabelValues(op, outcome).Inc()
	m.catalogDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// HTTPRequest: обработан входящий запрос. route: шаблон chi ("/chat").
func (m *Metrics) HTTPRequest(method, route string, status int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Copyright 2025 Mercadia
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package gateway

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics
var (
	promRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercadia_gateway_requests_total",
			Help: "Total number of requests processed by the gateway",
		},
		[]string{"endpoint", "status"},
	)
	promRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mercadia_gateway_request_duration_milliseconds",
			Help:    "Request duration in milliseconds",
			Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000, 10000},
		},
		[]string{"endpoint"},
	)
	promBlockedRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercadia_gateway_blocked_requests_total",
			Help: "Total number of requests rejected by guardrails",
		},
		[]string{"reason"},
	)
	promLLMCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercadia_gateway_llm_calls_total",
			Help: "Total number of upstream LLM calls",
		},
		[]string{"status"},
	)
	promToolCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mercadia_gateway_tool_calls_total",
			Help: "Total number of tool invocations",
		},
		[]string{"tool", "status"},
	)
	promActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "mercadia_gateway_active_sessions",
			Help: "Number of live sessions in the ledger",
		},
	)
)

func init() {
	prometheus.MustRegister(promRequestsTotal)
	prometheus.MustRegister(promRequestDuration)
	prometheus.MustRegister(promBlockedRequests)
	prometheus.MustRegister(promLLMCalls)
	prometheus.MustRegister(promToolCalls)
	prometheus.MustRegister(promActiveSessions)
}

// Metrics keeps simple aggregate counters for the JSON metrics endpoint.
// Prometheus carries the detailed series; this is the quick operator view.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	totalRequests   int64
	successRequests int64
	failedRequests  int64
	blockedRequests int64
	rewrites        int64
	toolCalls       int64
	llmCalls        int64
}

func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

func (m *Metrics) recordRequest(endpoint string, allowed, failed bool, reason string, elapsed time.Duration) {
	status := "success"
	switch {
	case !allowed:
		status = "blocked"
	case failed:
		status = "failed"
	}
	promRequestsTotal.WithLabelValues(endpoint, status).Inc()
	promRequestDuration.WithLabelValues(endpoint).Observe(float64(elapsed.Milliseconds()))
	if !allowed {
		promBlockedRequests.WithLabelValues(reason).Inc()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalRequests++
	switch {
	case !allowed:
		m.blockedRequests++
	case failed:
		m.failedRequests++
	default:
		m.successRequests++
	}
}

func (m *Metrics) recordLLMCall(success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	promLLMCalls.WithLabelValues(status).Inc()

	m.mu.Lock()
	m.llmCalls++
	m.mu.Unlock()
}

func (m *Metrics) recordToolCall(tool string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	promToolCalls.WithLabelValues(tool, status).Inc()

	m.mu.Lock()
	m.toolCalls++
	m.mu.Unlock()
}

func (m *Metrics) recordRewrite() {
	m.mu.Lock()
	m.rewrites++
	m.mu.Unlock()
}

// Snapshot returns the JSON view served by the /metrics endpoint.
func (m *Metrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"uptimeSeconds":    int64(time.Since(m.startTime).Seconds()),
		"totalRequests":    m.totalRequests,
		"successRequests":  m.successRequests,
		"failedRequests":   m.failedRequests,
		"blockedRequests":  m.blockedRequests,
		"rewrittenAnswers": m.rewrites,
		"toolCalls":        m.toolCalls,
		"llmCalls":         m.llmCalls,
	}
}

package observability

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "taskter"

var (
	// ExecutionsTotal Agent 执行次数
	ExecutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Agent executions by provider and outcome.",
	}, []string{"provider", "outcome"})

	// ToolCallsTotal 工具调用次数
	ToolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_calls_total",
		Help:      "Tool invocations by tool name and status.",
	}, []string{"tool", "status"})

	// ProviderRequestsTotal Provider 请求次数
	ProviderRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Inference requests by provider and status.",
	}, []string{"provider", "status"})

	// ProviderRequestDuration Provider 请求耗时
	ProviderRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Inference request latency.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"provider"})

	// SchedulerFiringsTotal 调度触发次数
	SchedulerFiringsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_firings_total",
		Help:      "Scheduler firings by mode (heartbeat or tasks).",
	}, []string{"mode"})

	// RunningAgents 当前执行中的 Agent 调用数，同一 Agent 的并发任务分别计数
	RunningAgents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "running_agents",
		Help:      "Agent invocations currently executing in this process.",
	})
)

// RegisterMetrics 注册全部指标，重复注册不报错
func RegisterMetrics(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		ExecutionsTotal,
		ToolCallsTotal,
		ProviderRequestsTotal,
		ProviderRequestDuration,
		SchedulerFiringsTotal,
		RunningAgents,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

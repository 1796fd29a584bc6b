package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MetricType 指标类型
type MetricType string

const (
	MetricTypeCounter   MetricType = "counter"
	MetricTypeHistogram MetricType = "histogram"
)

// historyLimit bounds the samples kept per metric.
const historyLimit = 1000

// Metric 指标
type Metric struct {
	Name      string            `json:"name"`
	Type      MetricType        `json:"type"`
	Value     float64           `json:"value"`
	Labels    map[string]string `json:"labels,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// MetricsCollector 指标收集器
type MetricsCollector struct {
	metrics     map[string][]*Metric
	counters    map[string]float64
	metricsLock sync.RWMutex

	startTime time.Time
}

// NewMetricsCollector 创建指标收集器
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		metrics:   make(map[string][]*Metric),
		counters:  make(map[string]float64),
		startTime: time.Now(),
	}
}

// Observe 记录一个样本
func (mc *MetricsCollector) Observe(name string, value float64, labels map[string]string) {
	mc.RecordMetric(&Metric{Name: name, Type: MetricTypeHistogram, Value: value, Labels: labels})
}

// Inc 计数器加一
func (mc *MetricsCollector) Inc(name string, labels map[string]string) {
	mc.RecordMetric(&Metric{Name: name, Type: MetricTypeCounter, Value: 1, Labels: labels})
}

// RecordMetric 记录指标
func (mc *MetricsCollector) RecordMetric(metric *Metric) {
	mc.metricsLock.Lock()
	defer mc.metricsLock.Unlock()

	metric.Timestamp = time.Now()

	if metric.Type == MetricTypeCounter {
		mc.counters[counterKey(metric.Name, metric.Labels)] += metric.Value
		return
	}

	mc.metrics[metric.Name] = append(mc.metrics[metric.Name], metric)
	if len(mc.metrics[metric.Name]) > historyLimit {
		mc.metrics[metric.Name] = mc.metrics[metric.Name][100:]
	}
}

// Counter returns the current value of a counter.
func (mc *MetricsCollector) Counter(name string, labels map[string]string) float64 {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()
	return mc.counters[counterKey(name, labels)]
}

// GetMetricSummary 获取指标摘要
func (mc *MetricsCollector) GetMetricSummary(name string) (map[string]interface{}, error) {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	metrics, ok := mc.metrics[name]
	if !ok {
		return nil, fmt.Errorf("metric %s not found", name)
	}
	return summarize(name, metrics), nil
}

// Snapshot 返回所有计数器和样本摘要
func (mc *MetricsCollector) Snapshot() map[string]interface{} {
	mc.metricsLock.RLock()
	defer mc.metricsLock.RUnlock()

	counters := make(map[string]float64, len(mc.counters))
	for key, value := range mc.counters {
		counters[key] = value
	}
	summaries := make(map[string]interface{}, len(mc.metrics))
	for name, metrics := range mc.metrics {
		summaries[name] = summarize(name, metrics)
	}

	return map[string]interface{}{
		"uptime_seconds": time.Since(mc.startTime).Seconds(),
		"counters":       counters,
		"summaries":      summaries,
	}
}

func summarize(name string, metrics []*Metric) map[string]interface{} {
	if len(metrics) == 0 {
		return map[string]interface{}{
			"count": 0,
		}
	}

	min, max, sum := metrics[0].Value, metrics[0].Value, 0.0
	for _, m := range metrics {
		sum += m.Value
		if m.Value < min {
			min = m.Value
		}
		if m.Value > max {
			max = m.Value
		}
	}

	return map[string]interface{}{
		"name":      name,
		"count":     len(metrics),
		"latest":    metrics[len(metrics)-1].Value,
		"min":       min,
		"max":       max,
		"average":   sum / float64(len(metrics)),
		"timestamp": metrics[len(metrics)-1].Timestamp,
	}
}

// counterKey renders name{k=v,...} with sorted label keys.
func counterKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}
	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	key := name + "{"
	for i, k := range keys {
		if i > 0 {
			key += ","
		}
		key += k + "=" + labels[k]
	}
	return key + "}"
}

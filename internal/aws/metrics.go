package aws

import (
	"context"
	"fmt"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metric names emitted by the orchestrator.
const (
	MetricStageSucceeded = "StageSucceeded"
	MetricStageFailed    = "StageFailed"
	MetricStageLatency   = "StageLatency"
	MetricOrderPending   = "OrderPending"
)

// Metrics publishes counters and latencies to CloudWatch. A disabled client is a no-op.
type Metrics struct {
	client    CloudWatchAPI
	namespace string
	enabled   bool
	nowFunc   func() time.Time
}

// NewMetrics returns a Metrics bound to a namespace.
func NewMetrics(client CloudWatchAPI, namespace string, enabled bool) *Metrics {
	if namespace == "" {
		namespace = "CheckoutOrchestrator"
	}
	return &Metrics{
		client:    client,
		namespace: namespace,
		enabled:   enabled && client != nil,
		nowFunc:   time.Now,
	}
}

// Enabled reports whether data points are sent.
func (m *Metrics) Enabled() bool { return m != nil && m.enabled }

func (m *Metrics) put(ctx context.Context, name string, value float64, unit cwtypes.StandardUnit, dimensions map[string]string) error {
	if !m.Enabled() {
		return nil
	}

	dims := make([]cwtypes.Dimension, 0, len(dimensions))
	for k, v := range dimensions {
		if v == "" {
			continue
		}
		dims = append(dims, cwtypes.Dimension{
			Name:  sdkaws.String(k),
			Value: sdkaws.String(v),
		})
	}

	_, err := m.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: sdkaws.String(m.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: sdkaws.String(name),
				Value:      sdkaws.Float64(value),
				Unit:       unit,
				Timestamp:  sdkaws.Time(m.nowFunc()),
				Dimensions: dims,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

// RecordCount increments a counter metric.
func (m *Metrics) RecordCount(ctx context.Context, name string, dimensions map[string]string) error {
	return m.put(ctx, name, 1, cwtypes.StandardUnitCount, dimensions)
}

// RecordLatency records a duration in milliseconds.
func (m *Metrics) RecordLatency(ctx context.Context, name string, d time.Duration, dimensions map[string]string) error {
	return m.put(ctx, name, float64(d.Milliseconds()), cwtypes.StandardUnitMilliseconds, dimensions)
}

// ObserveStage records the outcome and latency of one lifecycle stage.
func (m *Metrics) ObserveStage(ctx context.Context, stage, gateway string, took time.Duration, err error) error {
	dims := map[string]string{"Stage": stage, "Gateway": gateway}
	name := MetricStageSucceeded
	if err != nil {
		name = MetricStageFailed
	}
	if cerr := m.RecordCount(ctx, name, dims); cerr != nil {
		return cerr
	}
	return m.RecordLatency(ctx, MetricStageLatency, took, dims)
}

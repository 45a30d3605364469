package aws

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// Metrics publishes counters to CloudWatch under one namespace.
type Metrics struct {
	CloudWatch CloudWatchAPI
	Namespace  string
	nowFunc    func() time.Time
}

// NewMetrics returns a Metrics bound to namespace.
func NewMetrics(cw CloudWatchAPI, namespace string) *Metrics {
	return &Metrics{CloudWatch: cw, Namespace: namespace, nowFunc: time.Now}
}

// Count records value occurrences of name.
func (m *Metrics) Count(ctx context.Context, name string, value float64, dimensions map[string]string) error {
	datum := cwtypes.MetricDatum{
		MetricName: awsString(name),
		Unit:       cwtypes.StandardUnitCount,
		Value:      &value,
		Timestamp:  timePtr(m.nowFunc()),
	}
	for k, v := range dimensions {
		datum.Dimensions = append(datum.Dimensions, cwtypes.Dimension{Name: awsString(k), Value: awsString(v)})
	}

	_, err := m.CloudWatch.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  &m.Namespace,
		MetricData: []cwtypes.MetricDatum{datum},
	})
	if err != nil {
		return fmt.Errorf("put metric %s: %w", name, err)
	}
	return nil
}

func timePtr(t time.Time) *time.Time { return &t }

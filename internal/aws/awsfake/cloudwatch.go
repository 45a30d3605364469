package awsfake

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// CloudWatch sums metric values by name.
type CloudWatch struct {
	mu     sync.Mutex
	Totals map[string]float64
	Err    error
}

func (c *CloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, _ ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Totals == nil {
		c.Totals = map[string]float64{}
	}
	for _, d := range in.MetricData {
		if d.MetricName != nil && d.Value != nil {
			c.Totals[*d.MetricName] += *d.Value
		}
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

// Total returns the sum recorded for name.
func (c *CloudWatch) Total(name string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Totals[name]
}

package awstest

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// CloudWatch records PutMetricData calls.
type CloudWatch struct {
	mu    sync.Mutex
	Input []*cloudwatch.PutMetricDataInput
	Err   error
}

func (c *CloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	c.Input = append(c.Input, params)
	return &cloudwatch.PutMetricDataOutput{}, nil
}

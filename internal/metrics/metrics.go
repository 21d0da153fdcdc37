// Package metrics records workflow outcomes.
package metrics

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-orderflow-saga/internal/aws"
	"github.com/imrishuroy/go-orderflow-saga/internal/logging"
	"github.com/imrishuroy/go-orderflow-saga/internal/messages"
)

// Compensation causes. Kept to a fixed set so they can be metric dimensions.
const (
	CauseReservationCancelled = "reservation_cancelled"
	CauseQueryFailed          = "query_failed"
	CausePaymentFailed        = "payment_failed"
	CauseScheduleFailed       = "schedule_failed"
	CausePaymentTimeout       = "payment_timeout"
	CauseSendFailed           = "send_failed"
)

// Recorder is told about workflow milestones. Implementations must not fail the caller.
type Recorder interface {
	OrderCompleted(ctx context.Context, status messages.OrderStatus)
	CompensationStarted(ctx context.Context, cause string)
}

// Nop discards everything.
type Nop struct{}

func (Nop) OrderCompleted(context.Context, messages.OrderStatus) {}
func (Nop) CompensationStarted(context.Context, string)          {}

// CloudWatch publishes one count datum per milestone.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	log       *zap.Logger
	nowFunc   func() time.Time
}

func NewCloudWatch(client aws.CloudWatchAPI, namespace string, log *zap.Logger) *CloudWatch {
	return &CloudWatch{client: client, namespace: namespace, log: log, nowFunc: time.Now}
}

func (c *CloudWatch) OrderCompleted(ctx context.Context, status messages.OrderStatus) {
	c.put(ctx, "OrdersCompleted", "Status", string(status))
}

func (c *CloudWatch) CompensationStarted(ctx context.Context, cause string) {
	c.put(ctx, "CompensationsStarted", "Cause", cause)
}

func (c *CloudWatch) put(ctx context.Context, metric, dimension, value string) {
	now := c.nowFunc()
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: &c.namespace,
		MetricData: []cwtypes.MetricDatum{{
			MetricName: &metric,
			Timestamp:  &now,
			Unit:       cwtypes.StandardUnitCount,
			Value:      float64Ptr(1),
			Dimensions: []cwtypes.Dimension{{Name: &dimension, Value: &value}},
		}},
	})
	if err != nil {
		logging.L(ctx, c.log).Warn("put metric failed", zap.String("metric", metric), zap.Error(err))
	}
}

func float64Ptr(f float64) *float64 { return &f }

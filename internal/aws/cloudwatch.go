package aws

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/sirupsen/logrus"

	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
)

// MetricsNamespace groups the checkout counters in CloudWatch.
const MetricsNamespace = "GroceryCheckout"

// CloudWatchRecorder pushes checkout events as CloudWatch count metrics.
// The worker runs as a Lambda and has no scrape endpoint, so counts are pushed per event.
type CloudWatchRecorder struct {
	client    CloudWatchAPI
	namespace string
	log       logrus.FieldLogger
	nowFunc   func() time.Time
}

var _ metrics.Recorder = (*CloudWatchRecorder)(nil)

// NewCloudWatchRecorder returns a recorder writing to MetricsNamespace.
func NewCloudWatchRecorder(client CloudWatchAPI, log logrus.FieldLogger) *CloudWatchRecorder {
	return &CloudWatchRecorder{
		client:    client,
		namespace: MetricsNamespace,
		log:       log,
		nowFunc:   time.Now,
	}
}

// Record publishes one count for event. Failures are logged and otherwise ignored.
func (r *CloudWatchRecorder) Record(ctx context.Context, event metrics.Event) {
	now := r.nowFunc()
	_, err := r.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace: awsString(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: awsString("CheckoutEvents"),
				Dimensions: []cwtypes.Dimension{
					{Name: awsString("Event"), Value: awsString(string(event))},
				},
				Timestamp: &now,
				Unit:      cwtypes.StandardUnitCount,
				Value:     float64Ptr(1),
			},
		},
	})
	if err != nil {
		r.log.WithError(err).WithField("event", event).Warn("put metric data failed")
	}
}

func float64Ptr(v float64) *float64 { return &v }

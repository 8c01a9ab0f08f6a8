package aws

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-grocery-checkout/internal/metrics"
)

type mockSQS struct {
	inputs []*sqs.SendMessageInput
	err    error
}

func (m *mockSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	m.inputs = append(m.inputs, in)
	if m.err != nil {
		return nil, m.err
	}
	return &sqs.SendMessageOutput{}, nil
}

type mockCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (m *mockCloudWatch) PutMetricData(ctx context.Context, in *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	m.inputs = append(m.inputs, in)
	return &cloudwatch.PutMetricDataOutput{}, m.err
}

func TestPublisher_Send(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "https://sqs.local/reconcile")

	err := p.Send(context.Background(), `{"attempt_key":"k1"}`, 2*time.Minute, map[string]string{
		"attempt_key": "k1",
		"empty":       "",
	})
	require.NoError(t, err)
	require.Len(t, mock.inputs, 1)

	in := mock.inputs[0]
	assert.Equal(t, "https://sqs.local/reconcile", *in.QueueUrl)
	assert.Equal(t, `{"attempt_key":"k1"}`, *in.MessageBody)
	assert.Equal(t, int32(120), in.DelaySeconds)
	assert.Equal(t, "k1", *in.MessageAttributes["attempt_key"].StringValue)
	assert.NotContains(t, in.MessageAttributes, "empty")
}

func TestPublisher_SendCapsDelay(t *testing.T) {
	mock := &mockSQS{}
	p := NewPublisher(mock, "q")

	require.NoError(t, p.Send(context.Background(), "{}", time.Hour, nil))
	assert.Equal(t, int32(900), mock.inputs[0].DelaySeconds)
	assert.Nil(t, mock.inputs[0].MessageAttributes)
}

func TestPublisher_SendError(t *testing.T) {
	p := NewPublisher(&mockSQS{err: errors.New("throttled")}, "q")

	err := p.Send(context.Background(), "{}", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestCloudWatchRecorder_Record(t *testing.T) {
	mock := &mockCloudWatch{}
	r := NewCloudWatchRecorder(mock, logrus.New())

	r.Record(context.Background(), metrics.EventReconciled)

	require.Len(t, mock.inputs, 1)
	in := mock.inputs[0]
	assert.Equal(t, MetricsNamespace, *in.Namespace)
	require.Len(t, in.MetricData, 1)
	datum := in.MetricData[0]
	assert.Equal(t, "CheckoutEvents", *datum.MetricName)
	assert.Equal(t, string(metrics.EventReconciled), *datum.Dimensions[0].Value)
	assert.Equal(t, cwtypes.StandardUnitCount, datum.Unit)
	assert.Equal(t, 1.0, *datum.Value)
}

func TestCloudWatchRecorder_LogsFailure(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	r := NewCloudWatchRecorder(&mockCloudWatch{err: errors.New("denied")}, logger)

	r.Record(context.Background(), metrics.EventOrderCreated)

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.Equal(t, metrics.EventOrderCreated, hook.LastEntry().Data["event"])
}

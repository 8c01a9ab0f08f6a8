package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/imrishuroy/go-grocery-checkout/internal/aws"
)

// dynamoItem is the shape persisted in the storage table.
type dynamoItem struct {
	Key       string    `dynamodbav:"storage_key"` // PK
	Value     []byte    `dynamodbav:"value"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
	ExpiresAt int64     `dynamodbav:"expires_at,omitempty"` // TTL epoch seconds
}

// Dynamo stores entries in a DynamoDB table keyed by storage_key.
type Dynamo struct {
	client    aws.DynamoDBAPI
	tableName string
	ttlWindow time.Duration // zero disables expiry
	nowFunc   func() time.Time
}

// NewDynamo returns a Dynamo store for tableName.
func NewDynamo(client aws.DynamoDBAPI, tableName string, ttlWindow time.Duration) *Dynamo {
	return &Dynamo{
		client:    client,
		tableName: tableName,
		ttlWindow: ttlWindow,
		nowFunc:   time.Now,
	}
}

func (d *Dynamo) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := d.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &d.tableName,
		Key:            d.keyOf(key),
		ConsistentRead: boolPtr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var item dynamoItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	// TTL deletion is lazy; an expired item may still be returned.
	if item.ExpiresAt > 0 && d.nowFunc().Unix() >= item.ExpiresAt {
		return nil, ErrNotFound
	}
	return item.Value, nil
}

func (d *Dynamo) Set(ctx context.Context, key string, value []byte) error {
	item, err := d.marshal(key, value)
	if err != nil {
		return err
	}
	if _, err := d.client.PutItem(ctx, &dyn.PutItemInput{TableName: &d.tableName, Item: item}); err != nil {
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// SetIfAbsent uses a conditional put. An expired item counts as absent.
func (d *Dynamo) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	item, err := d.marshal(key, value)
	if err != nil {
		return false, err
	}
	input := &dyn.PutItemInput{
		TableName:           &d.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(storage_key) OR (expires_at > :zero AND expires_at <= :now)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":zero": &types.AttributeValueMemberN{Value: "0"},
			":now":  &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", d.nowFunc().Unix())},
		},
	}

	_, err = d.client.PutItem(ctx, input)
	if err != nil {
		if conditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

// CompareAndSwap is a put conditioned on the stored value.
func (d *Dynamo) CompareAndSwap(ctx context.Context, key string, old, value []byte) (bool, error) {
	item, err := d.marshal(key, value)
	if err != nil {
		return false, err
	}
	input := &dyn.PutItemInput{
		TableName:                &d.tableName,
		Item:                     item,
		ConditionExpression:      awsString("#value = :old"),
		ExpressionAttributeNames: map[string]string{"#value": "value"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":old": &types.AttributeValueMemberB{Value: old},
		},
	}
	if _, err := d.client.PutItem(ctx, input); err != nil {
		if conditionFailed(err) {
			return false, nil
		}
		return false, fmt.Errorf("put item: %w", err)
	}
	return true, nil
}

func (d *Dynamo) Delete(ctx context.Context, key string) error {
	_, err := d.client.DeleteItem(ctx, &dyn.DeleteItemInput{
		TableName: &d.tableName,
		Key:       d.keyOf(key),
	})
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

func (d *Dynamo) marshal(key string, value []byte) (map[string]types.AttributeValue, error) {
	now := d.nowFunc()
	item := dynamoItem{Key: key, Value: value, UpdatedAt: now}
	if d.ttlWindow > 0 {
		item.ExpiresAt = now.Add(d.ttlWindow).Unix()
	}
	m, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal item: %w", err)
	}
	return m, nil
}

func (d *Dynamo) keyOf(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"storage_key": &types.AttributeValueMemberS{Value: key},
	}
}

func conditionFailed(err error) bool {
	var sc smithy.APIError
	return errors.As(err, &sc) && sc.ErrorCode() == "ConditionalCheckFailedException"
}

func awsString(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

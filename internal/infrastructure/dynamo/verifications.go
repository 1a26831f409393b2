package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-todo-auth/internal/domain"
)

// VerificationRepo is the durable OTP store.
// PK: email, SK: type ("otp" | "verified"). expires_at (seconds) is the table TTL;
// expiry checks use the millisecond expires_at_ms.
//
// Writes that follow a read (attempt counting, consuming a code) are conditioned
// on the stored code, so an instance acting on a stale read cannot clobber a
// code sent meanwhile by another instance.
type VerificationRepo struct {
	client    API
	tableName string
}

func NewVerificationRepo(client API, tableName string) *VerificationRepo {
	return &VerificationRepo{client: client, tableName: tableName}
}

func (r *VerificationRepo) Put(ctx context.Context, v *domain.Verification) error {
	rec := *v
	rec.TTL = rec.TTLSeconds()
	item, err := attributevalue.MarshalMap(&rec)
	if err != nil {
		return fmt.Errorf("marshal verification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("put verification: %w", err)
	}
	return nil
}

func (r *VerificationRepo) Get(ctx context.Context, email, verType string) (*domain.Verification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            compositeKey(attrEmail, email, attrType, verType),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get verification: %w", err)
	}
	if out.Item == nil {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return unmarshalVerification(out.Item)
}

// IncrementAttempts atomically adds one to the attempt counter of the OTP
// record for email, provided it still holds code, and returns the new count.
func (r *VerificationRepo) IncrementAttempts(ctx context.Context, email, code string) (int, error) {
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 compositeKey(attrEmail, email, attrType, domain.VerificationOTP),
		UpdateExpression:    aws.String("ADD #a :one"),
		ConditionExpression: aws.String("#c = :code"),
		ExpressionAttributeNames: map[string]string{
			"#a": attrAttempts,
			"#c": attrCode,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":code": &types.AttributeValueMemberS{Value: code},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	})
	if err != nil {
		if isConditionalCheckFailed(err) {
			return 0, fmt.Errorf("otp record replaced or gone: %w", domain.ErrNotFound)
		}
		return 0, fmt.Errorf("increment attempts: %w", err)
	}
	var n int
	if err := attributevalue.Unmarshal(out.Attributes[attrAttempts], &n); err != nil {
		return 0, fmt.Errorf("unmarshal attempts: %w", err)
	}
	return n, nil
}

// DeleteOTP removes the OTP record for email only if it still holds code.
// A missing or replaced record is not an error.
func (r *VerificationRepo) DeleteOTP(ctx context.Context, email, code string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      compositeKey(attrEmail, email, attrType, domain.VerificationOTP),
		ConditionExpression:      aws.String("#c = :code"),
		ExpressionAttributeNames: map[string]string{"#c": attrCode},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":code": &types.AttributeValueMemberS{Value: code},
		},
	})
	if err != nil && !isConditionalCheckFailed(err) {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

// Take deletes the record and returns what was there, in one request.
func (r *VerificationRepo) Take(ctx context.Context, email, verType string) (*domain.Verification, error) {
	out, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(r.tableName),
		Key:          compositeKey(attrEmail, email, attrType, verType),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return nil, fmt.Errorf("take verification: %w", err)
	}
	if len(out.Attributes) == 0 {
		return nil, fmt.Errorf("verification not found: %w", domain.ErrNotFound)
	}
	return unmarshalVerification(out.Attributes)
}

func unmarshalVerification(item map[string]types.AttributeValue) (*domain.Verification, error) {
	var v domain.Verification
	if err := attributevalue.UnmarshalMap(item, &v); err != nil {
		return nil, fmt.Errorf("unmarshal verification: %w", err)
	}
	return &v, nil
}

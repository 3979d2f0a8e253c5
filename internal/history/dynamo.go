package history

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout. All jobs share one partition so List is a single
// Query; the sort key orders them by start time.
const (
	historyPK = "HISTORY"
	skPrefix  = "JOB#"
)

// RecordTTL is how long DynamoDB keeps a journaled job.
const RecordTTL = 30 * 24 * time.Hour

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps records in a DynamoDB table with PK/SK string keys and
// an expiresAt TTL attribute.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{client: client, tableName: tableName, now: time.Now}
}

// jobSK sorts by start time, then ID.
func jobSK(r *Record) string {
	return fmt.Sprintf("%s%013d#%s", skPrefix, r.StartedAt.UnixMilli(), r.ID)
}

// Put writes r with PK, SK and TTL attributes.
func (s *DynamoStore) Put(ctx context.Context, r *Record) error {
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", r.ID, err)
	}

	sk := jobSK(r)
	item["PK"] = &types.AttributeValueMemberS{Value: historyPK}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RecordTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", historyPK, sk, err)
	}

	log.Debug().Str("job", r.ID).Str("state", r.State).Msg("Job journaled to DynamoDB")
	return nil
}

// List queries the history partition newest first, following pagination
// until limit records are collected.
func (s *DynamoStore) List(ctx context.Context, limit int) ([]Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: historyPK},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var out []Record
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", historyPK, err)
		}
		for _, item := range result.Items {
			var r Record
			if err := attributevalue.UnmarshalMap(item, &r); err != nil {
				return nil, fmt.Errorf("unmarshal job: %w", err)
			}
			out = append(out, r)
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
		if len(result.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
}

// Close is a no-op; the DynamoDB client holds no per-store resources.
func (s *DynamoStore) Close() error {
	return nil
}

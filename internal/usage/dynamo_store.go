package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout: one partition per ledger, a META item holding the
// counter and session start, and one REC# item per record.
const (
	ledgerPKPrefix = "LEDGER#"
	skMeta         = "META"
	skRecordPrefix = "REC#"

	// maxBatchWrite is the DynamoDB BatchWriteItem limit per call.
	maxBatchWrite = 25
)

// dynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type dynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

var _ dynamoAPI = (*dynamodb.Client)(nil)

// ledgerMeta is the META item.
type ledgerMeta struct {
	IDCounter         int64  `dynamodbav:"idCounter"`
	FirstGenerationAt *int64 `dynamodbav:"firstGenerationAt,omitempty"`
	RecordCount       int    `dynamodbav:"recordCount"`
}

// DynamoStore implements Store on a DynamoDB table with a PK/SK schema. It
// writes only records appended since the last successful save. The META
// write is conditional on the counter moving forward, so a second process
// writing the same ledger surfaces as a save error instead of a silent
// overwrite.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
	name      string
	written   int
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for ledger name in tableName.
func NewDynamoStore(client dynamoAPI, tableName, name string) *DynamoStore {
	if name == "" {
		name = "default"
	}
	return &DynamoStore{client: client, tableName: tableName, name: name}
}

func (s *DynamoStore) Describe() string {
	return "dynamodb:" + s.tableName + "/" + s.name
}

func (s *DynamoStore) pk() string { return ledgerPKPrefix + s.name }

// recordSK zero-pads the position so records sort in append order.
func recordSK(i int) string {
	return skRecordPrefix + fmt.Sprintf("%010d", i)
}

func (s *DynamoStore) key(sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: s.pk()},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func (s *DynamoStore) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	got, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.tableName,
		Key:            s.key(skMeta),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return snap, fmt.Errorf("GetItem PK=%s SK=%s: %w", s.pk(), skMeta, err)
	}
	if got.Item == nil {
		s.written = 0
		return snap, nil
	}
	var meta ledgerMeta
	if err := attributevalue.UnmarshalMap(got.Item, &meta); err != nil {
		return snap, fmt.Errorf("unmarshal ledger meta: %w", err)
	}
	snap.IDCounter = meta.IDCounter
	snap.FirstGenerationAt = meta.FirstGenerationAt

	items, err := s.queryRecords(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	for _, item := range items {
		var r Record
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			return Snapshot{}, fmt.Errorf("unmarshal ledger record: %w", err)
		}
		snap.Records = append(snap.Records, r)
	}
	if len(snap.Records) > meta.RecordCount {
		// Records written by a save whose META update never landed.
		snap.Records = snap.Records[:meta.RecordCount]
	}
	s.written = len(snap.Records)
	return snap, nil
}

// queryRecords returns every REC# item in sort-key order.
func (s *DynamoStore) queryRecords(ctx context.Context) ([]map[string]types.AttributeValue, error) {
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :skPrefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":       &types.AttributeValueMemberS{Value: s.pk()},
			":skPrefix": &types.AttributeValueMemberS{Value: skRecordPrefix},
		},
		ConsistentRead: aws.Bool(true),
	}

	var all []map[string]types.AttributeValue
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s SK prefix=%s: %w", s.pk(), skRecordPrefix, err)
		}
		all = append(all, result.Items...)
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return all, nil
}

func (s *DynamoStore) Save(ctx context.Context, snap Snapshot) error {
	if s.written > len(snap.Records) {
		s.written = 0
	}
	pending := snap.Records[s.written:]

	var requests []types.WriteRequest
	for i, r := range pending {
		item, err := attributevalue.MarshalMap(r)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", r.ID, err)
		}
		item["PK"] = &types.AttributeValueMemberS{Value: s.pk()}
		item["SK"] = &types.AttributeValueMemberS{Value: recordSK(s.written + i)}
		requests = append(requests, types.WriteRequest{PutRequest: &types.PutRequest{Item: item}})
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return err
	}

	meta, err := attributevalue.MarshalMap(ledgerMeta{
		IDCounter:         snap.IDCounter,
		FirstGenerationAt: snap.FirstGenerationAt,
		RecordCount:       len(snap.Records),
	})
	if err != nil {
		return fmt.Errorf("marshal ledger meta: %w", err)
	}
	meta["PK"] = &types.AttributeValueMemberS{Value: s.pk()}
	meta["SK"] = &types.AttributeValueMemberS{Value: skMeta}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                meta,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR idCounter < :c"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberN{Value: strconv.FormatInt(snap.IDCounter, 10)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return fmt.Errorf("ledger %s was advanced by another writer: %w", s.name, err)
		}
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", s.pk(), skMeta, err)
	}

	s.written = len(snap.Records)
	log.Debug().Str("ledger", s.name).Int("appended", len(pending)).Msg("Usage ledger persisted to DynamoDB")
	return nil
}

// Clear deletes the META item and every record.
func (s *DynamoStore) Clear(ctx context.Context) error {
	items, err := s.queryRecords(ctx)
	if err != nil {
		return err
	}
	requests := []types.WriteRequest{{DeleteRequest: &types.DeleteRequest{Key: s.key(skMeta)}}}
	for _, item := range items {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"PK": item["PK"],
				"SK": item["SK"],
			}},
		})
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return err
	}
	s.written = 0
	return nil
}

// batchWrite sends requests in chunks of maxBatchWrite, resubmitting any
// unprocessed items once.
func (s *DynamoStore) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for i := 0; i < len(requests); i += maxBatchWrite {
		end := i + maxBatchWrite
		if end > len(requests) {
			end = len(requests)
		}
		batch := map[string][]types.WriteRequest{s.tableName: requests[i:end]}
		for attempt := 0; attempt < 2 && len(batch) > 0; attempt++ {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: batch})
			if err != nil {
				return fmt.Errorf("BatchWriteItem (%d items): %w", end-i, err)
			}
			batch = out.UnprocessedItems
		}
		if len(batch[s.tableName]) > 0 {
			return fmt.Errorf("BatchWriteItem left %d items unprocessed", len(batch[s.tableName]))
		}
	}
	return nil
}

package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/watchtower/internal/store"
	"github.com/dwsmith1983/watchtower/pkg/types"
)

// DynamoDB batch operation limits.
const (
	batchGetLimit   = 100
	batchWriteLimit = 25
	batchRetryMax   = 3
)

// GetDetectorStates bulk-fetches durable state rows for the given group keys.
// Keys with no stored row are omitted from the returned map.
func (s *RowStore) GetDetectorStates(ctx context.Context, detectorID int64, groupKeys []string) (map[string]store.DetectorStateRow, error) {
	results := make(map[string]store.DetectorStateRow, len(groupKeys))

	for start := 0; start < len(groupKeys); start += batchGetLimit {
		end := min(start+batchGetLimit, len(groupKeys))

		keys := make([]map[string]ddbtypes.AttributeValue, 0, end-start)
		for _, gk := range groupKeys[start:end] {
			keys = append(keys, map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: detectorPK(detectorID)},
				"SK": &ddbtypes.AttributeValueMemberS{Value: stateSK(gk)},
			})
		}

		for attempt := 0; len(keys) > 0; attempt++ {
			if attempt > batchRetryMax {
				return nil, fmt.Errorf("reading detector state: unprocessed keys after %d retries", batchRetryMax)
			}

			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]ddbtypes.KeysAndAttributes{
					s.tableName: {Keys: keys},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("reading detector state: %w", err)
			}

			for _, item := range out.Responses[s.tableName] {
				row, groupKey, err := parseStateRow(item)
				if err != nil {
					s.logger.Warn("skipping corrupt detector state row", "detector", detectorID, "error", err)
					continue
				}
				results[groupKey] = row
			}

			keys = out.UnprocessedKeys[s.tableName].Keys
		}
	}

	return results, nil
}

// UpsertDetectorStates writes all trigger/status updates for one detector.
func (s *RowStore) UpsertDetectorStates(ctx context.Context, detectorID int64, updates []store.DetectorStateUpdate) error {
	now := time.Now().UTC()

	for start := 0; start < len(updates); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(updates))

		requests := make([]ddbtypes.WriteRequest, 0, end-start)
		for _, u := range updates[start:end] {
			requests = append(requests, ddbtypes.WriteRequest{
				PutRequest: &ddbtypes.PutRequest{
					Item: map[string]ddbtypes.AttributeValue{
						"PK":          &ddbtypes.AttributeValueMemberS{Value: detectorPK(detectorID)},
						"SK":          &ddbtypes.AttributeValueMemberS{Value: stateSK(u.GroupKey)},
						"isTriggered": &ddbtypes.AttributeValueMemberBOOL{Value: u.IsTriggered},
						"state":       &ddbtypes.AttributeValueMemberN{Value: strconv.Itoa(int(u.Status))},
						"updatedAt":   &ddbtypes.AttributeValueMemberS{Value: now.Format(time.RFC3339Nano)},
					},
				},
			})
		}

		for attempt := 0; len(requests) > 0; attempt++ {
			if attempt > batchRetryMax {
				return fmt.Errorf("writing detector state: unprocessed items after %d retries", batchRetryMax)
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]ddbtypes.WriteRequest{
					s.tableName: requests,
				},
			})
			if err != nil {
				return fmt.Errorf("writing detector state: %w", err)
			}
			requests = out.UnprocessedItems[s.tableName]
		}
	}

	return nil
}

// ListDetectorStates returns every stored state row for one detector,
// sorted by group key. Used by operational tooling, not the hot path.
func (s *RowStore) ListDetectorStates(ctx context.Context, detectorID int64) ([]store.DetectorStateRow, error) {
	var rows []store.DetectorStateRow
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              &s.tableName,
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":pk": &ddbtypes.AttributeValueMemberS{Value: detectorPK(detectorID)},
				":sk": &ddbtypes.AttributeValueMemberS{Value: prefixState},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("listing detector state: %w", err)
		}

		for _, item := range out.Items {
			row, _, err := parseStateRow(item)
			if err != nil {
				s.logger.Warn("skipping corrupt detector state row", "detector", detectorID, "error", err)
				continue
			}
			rows = append(rows, row)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return rows, nil
}

func parseStateRow(item map[string]ddbtypes.AttributeValue) (store.DetectorStateRow, string, error) {
	sk, err := attributeStr(item, "SK")
	if err != nil {
		return store.DetectorStateRow{}, "", err
	}
	if !strings.HasPrefix(sk, prefixState) {
		return store.DetectorStateRow{}, "", fmt.Errorf("unexpected SK %q", sk)
	}
	groupKey := strings.TrimPrefix(sk, prefixState)

	row := store.DetectorStateRow{GroupKey: groupKey}

	if attr, ok := item["isTriggered"].(*ddbtypes.AttributeValueMemberBOOL); ok {
		row.IsTriggered = attr.Value
	}

	stateRaw, err := attributeNum(item, "state")
	if err != nil {
		return store.DetectorStateRow{}, "", err
	}
	row.Status = types.PriorityLevel(stateRaw)

	if raw, err := attributeStr(item, "updatedAt"); err == nil {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			row.UpdatedAt = ts
		}
	}

	return row, groupKey, nil
}

func attributeStr(item map[string]ddbtypes.AttributeValue, name string) (string, error) {
	attr, ok := item[name].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("missing string attribute %q", name)
	}
	return attr.Value, nil
}

func attributeNum(item map[string]ddbtypes.AttributeValue, name string) (int64, error) {
	attr, ok := item[name].(*ddbtypes.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("missing numeric attribute %q", name)
	}
	n, err := strconv.ParseInt(attr.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing attribute %q: %w", name, err)
	}
	return n, nil
}

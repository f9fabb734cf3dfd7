package dynamodb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/watchtower/pkg/types"
)

// GetActionStatuses returns the last-fired statuses for the given actions
// against one group. Actions with no prior status row are omitted.
func (s *RowStore) GetActionStatuses(ctx context.Context, groupID string, actionIDs []string) (map[string]types.ActionGroupStatus, error) {
	results := make(map[string]types.ActionGroupStatus, len(actionIDs))

	for start := 0; start < len(actionIDs); start += batchGetLimit {
		end := min(start+batchGetLimit, len(actionIDs))

		keys := make([]map[string]ddbtypes.AttributeValue, 0, end-start)
		for _, id := range actionIDs[start:end] {
			keys = append(keys, map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: groupPK(groupID)},
				"SK": &ddbtypes.AttributeValueMemberS{Value: actionStatusSK(id)},
			})
		}

		for attempt := 0; len(keys) > 0; attempt++ {
			if attempt > batchRetryMax {
				return nil, fmt.Errorf("reading action statuses: unprocessed keys after %d retries", batchRetryMax)
			}

			out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
				RequestItems: map[string]ddbtypes.KeysAndAttributes{
					s.tableName: {Keys: keys},
				},
			})
			if err != nil {
				return nil, fmt.Errorf("reading action statuses: %w", err)
			}

			for _, item := range out.Responses[s.tableName] {
				status, err := parseActionStatus(groupID, item)
				if err != nil {
					s.logger.Warn("skipping corrupt action status row", "group", groupID, "error", err)
					continue
				}
				results[status.ActionID] = status
			}

			keys = out.UnprocessedKeys[s.tableName].Keys
		}
	}

	return results, nil
}

// CreateActionStatuses inserts missing status rows. A row that already
// exists (a concurrent worker won the race) is skipped, not an error.
func (s *RowStore) CreateActionStatuses(ctx context.Context, statuses []types.ActionGroupStatus) error {
	for _, status := range statuses {
		_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: &s.tableName,
			Item: map[string]ddbtypes.AttributeValue{
				"PK":          &ddbtypes.AttributeValueMemberS{Value: groupPK(status.GroupID)},
				"SK":          &ddbtypes.AttributeValueMemberS{Value: actionStatusSK(status.ActionID)},
				"dateUpdated": &ddbtypes.AttributeValueMemberS{Value: status.DateUpdated.UTC().Format(time.RFC3339Nano)},
			},
			ConditionExpression: aws.String("attribute_not_exists(PK)"),
		})
		if err != nil {
			if isConditionalCheckFailed(err) {
				continue
			}
			return fmt.Errorf("creating action status %s/%s: %w", status.GroupID, status.ActionID, err)
		}
	}
	return nil
}

// TouchActionStatuses bumps DateUpdated for the given actions against one group.
func (s *RowStore) TouchActionStatuses(ctx context.Context, groupID string, actionIDs []string, now time.Time) error {
	for _, id := range actionIDs {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &s.tableName,
			Key: map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: groupPK(groupID)},
				"SK": &ddbtypes.AttributeValueMemberS{Value: actionStatusSK(id)},
			},
			UpdateExpression: aws.String("SET dateUpdated = :now"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":now": &ddbtypes.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339Nano)},
			},
		})
		if err != nil {
			return fmt.Errorf("touching action status %s/%s: %w", groupID, id, err)
		}
	}
	return nil
}

// MarkFireHistories upserts fire-history audit rows with the given flags.
func (s *RowStore) MarkFireHistories(ctx context.Context, histories []types.WorkflowFireHistory) error {
	for _, h := range histories {
		_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName: &s.tableName,
			Key: map[string]ddbtypes.AttributeValue{
				"PK": &ddbtypes.AttributeValueMemberS{Value: groupPK(h.GroupID)},
				"SK": &ddbtypes.AttributeValueMemberS{Value: fireHistSK(h.WorkflowID, h.EventID)},
			},
			UpdateExpression: aws.String("SET hasPassedFilters = :passed, hasFiredActions = :fired"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":passed": &ddbtypes.AttributeValueMemberBOOL{Value: h.HasPassedFilters},
				":fired":  &ddbtypes.AttributeValueMemberBOOL{Value: h.HasFiredActions},
			},
		})
		if err != nil {
			return fmt.Errorf("marking fire history %s/%s/%s: %w", h.GroupID, h.WorkflowID, h.EventID, err)
		}
	}
	return nil
}

func parseActionStatus(groupID string, item map[string]ddbtypes.AttributeValue) (types.ActionGroupStatus, error) {
	sk, err := attributeStr(item, "SK")
	if err != nil {
		return types.ActionGroupStatus{}, err
	}
	if !strings.HasPrefix(sk, prefixActionStatus) {
		return types.ActionGroupStatus{}, fmt.Errorf("unexpected SK %q", sk)
	}

	raw, err := attributeStr(item, "dateUpdated")
	if err != nil {
		return types.ActionGroupStatus{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return types.ActionGroupStatus{}, fmt.Errorf("parsing dateUpdated: %w", err)
	}

	return types.ActionGroupStatus{
		ActionID:    strings.TrimPrefix(sk, prefixActionStatus),
		GroupID:     groupID,
		DateUpdated: ts,
	}, nil
}

package dynamostore

import (
	"context"
	"fmt"
	"time"

	"github.com/acksell/registers/entry"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// BulkWrite adds entries to a generation. Concurrent BulkWrite calls for the
// same generation are not supported. A hash repeated within entries is
// written once, at its last position.
func (s *Store) BulkWrite(ctx context.Context, tenant, generation string, entries []entry.Entry) error {
	if err := validComponent("register", tenant); err != nil {
		return err
	}
	if err := validComponent("generation", generation); err != nil {
		return err
	}

	next, err := s.nextSeq(ctx, tenant, generation)
	if err != nil {
		return err
	}

	entries = lastByHash(entries)
	requests := make([]types.WriteRequest, 0, 2*len(entries))
	for _, e := range entries {
		byHash, err := marshalEntry(hashPK(tenant, generation), e.Hash, next, e)
		if err != nil {
			return err
		}
		bySeq, err := marshalEntry(seqPK(tenant, generation), seqSK(next), next, e)
		if err != nil {
			return err
		}
		requests = append(requests,
			types.WriteRequest{PutRequest: &types.PutRequest{Item: byHash}},
			types.WriteRequest{PutRequest: &types.PutRequest{Item: bySeq}},
		)
		next++
	}

	if err := s.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("bulk write %s/%s: %w", tenant, generation, err)
	}

	counter, err := attributevalue.MarshalMap(counterItem{
		PK:   counterPK(tenant, generation),
		SK:   counterSK,
		Next: next,
	})
	if err != nil {
		return fmt.Errorf("marshal sequence counter: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.table,
		Item:      counter,
	}); err != nil {
		return fmt.Errorf("bulk write %s/%s: put sequence counter: %w", tenant, generation, err)
	}
	return nil
}

func (s *Store) nextSeq(ctx context.Context, tenant, generation string) (uint64, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(counterPK(tenant, generation), counterSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return 0, fmt.Errorf("get sequence counter: %w", err)
	}
	if len(out.Item) == 0 {
		return 0, nil
	}
	var c counterItem
	if err := attributevalue.UnmarshalMap(out.Item, &c); err != nil {
		return 0, fmt.Errorf("unmarshal sequence counter: %w", err)
	}
	return c.Next, nil
}

// batchWrite submits requests in chunks of batchWriteLimit. Items DynamoDB
// reports as unprocessed are re-submitted after a backoff until
// maxAttempts is reached.
func (s *Store) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	for start := 0; start < len(requests); start += batchWriteLimit {
		end := min(start+batchWriteLimit, len(requests))
		pending := requests[start:end]

		for attempt := 0; len(pending) > 0; attempt++ {
			if attempt >= s.opts.maxAttempts {
				return fmt.Errorf("max attempts (%d) exceeded: %d items unprocessed", s.opts.maxAttempts, len(pending))
			}
			if attempt > 0 && s.opts.backoff != nil {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.opts.backoff(attempt)):
				}
			}

			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{s.table: pending},
			})
			if err != nil {
				return fmt.Errorf("batch write failed: %w", err)
			}
			pending = out.UnprocessedItems[s.table]
		}
	}
	return nil
}

// lastByHash keeps the last occurrence of each hash. BatchWriteItem rejects
// a request that names the same key twice.
func lastByHash(entries []entry.Entry) []entry.Entry {
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		last[e.Hash] = i
	}
	if len(last) == len(entries) {
		return entries
	}
	out := make([]entry.Entry, 0, len(last))
	for i, e := range entries {
		if last[e.Hash] == i {
			out = append(out, e)
		}
	}
	return out
}

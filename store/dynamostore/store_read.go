package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/entry"
	"github.com/acksell/registers/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// errRetired marks a read whose generation was retired while it ran.
var errRetired = errors.New("generation retired during read")

// CollectionExists reports whether the tenant has a current generation.
func (s *Store) CollectionExists(ctx context.Context, tenant string) (bool, error) {
	_, err := s.pointer(ctx, tenant)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CurrentGeneration returns the tenant's current generation id.
func (s *Store) CurrentGeneration(ctx context.Context, tenant string) (string, error) {
	p, err := s.pointer(ctx, tenant)
	if err != nil {
		return "", err
	}
	return p.Generation, nil
}

func (s *Store) pointer(ctx context.Context, tenant string) (pointerItem, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &s.table,
		Key:            key(pointerPK(tenant), pointerSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return pointerItem{}, fmt.Errorf("get generation pointer %s: %w", tenant, err)
	}
	if len(out.Item) == 0 {
		return pointerItem{}, fmt.Errorf("register %q: %w", tenant, store.ErrNotFound)
	}
	var p pointerItem
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return pointerItem{}, fmt.Errorf("unmarshal generation pointer %s: %w", tenant, err)
	}
	return p, nil
}

// stillReadable reports whether gen has not been retired since it was current.
func (s *Store) stillReadable(ctx context.Context, tenant, gen string) error {
	p, err := s.pointer(ctx, tenant)
	if err != nil {
		return err
	}
	if p.Generation != gen && p.Previous != gen {
		return errRetired
	}
	return nil
}

// Get retrieves an entry of the tenant's current generation by hash.
func (s *Store) Get(ctx context.Context, tenant, hash string) (entry.Entry, error) {
	for range readAttempts {
		p, err := s.pointer(ctx, tenant)
		if err != nil {
			return entry.Entry{}, err
		}
		out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
			TableName:      &s.table,
			Key:            key(hashPK(tenant, p.Generation), hash),
			ConsistentRead: aws.Bool(true),
		})
		if err != nil {
			return entry.Entry{}, fmt.Errorf("get entry %s: %w", hash, err)
		}
		if len(out.Item) > 0 {
			var it entryItem
			if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
				return entry.Entry{}, fmt.Errorf("unmarshal entry %s: %w", hash, err)
			}
			return it.entry()
		}
		// A miss is only trustworthy if the generation is still live.
		err = s.stillReadable(ctx, tenant, p.Generation)
		if errors.Is(err, errRetired) {
			continue
		}
		if err != nil {
			return entry.Entry{}, err
		}
		return entry.Entry{}, fmt.Errorf("entry %s: %w", hash, store.ErrNotFound)
	}
	return entry.Entry{}, fmt.Errorf("get entry %s: %w", hash, errRetired)
}

// Find returns one page of the current generation's entries matching q.
// Filtering happens client-side: DynamoDB has no case-insensitive contains.
func (s *Store) Find(ctx context.Context, tenant string, q store.Query, page, pageSize int) (store.Meta, []entry.Entry, error) {
	if page < 1 || pageSize < 1 {
		return store.Meta{}, nil, store.ErrInvalidPage
	}
	for range readAttempts {
		p, err := s.pointer(ctx, tenant)
		if err != nil {
			return store.Meta{}, nil, err
		}
		all, err := s.scanGeneration(ctx, tenant, p.Generation)
		if err != nil {
			return store.Meta{}, nil, err
		}
		err = s.stillReadable(ctx, tenant, p.Generation)
		if errors.Is(err, errRetired) {
			continue
		}
		if err != nil {
			return store.Meta{}, nil, err
		}
		return store.Paginate(all, q, page, pageSize)
	}
	return store.Meta{}, nil, fmt.Errorf("find %s: %w", tenant, errRetired)
}

// scanGeneration returns the generation's entries, most recently written
// first, skipping stale positions of re-written hashes.
func (s *Store) scanGeneration(ctx context.Context, tenant, gen string) ([]entry.Entry, error) {
	keyCond := expression.Key(attrPK).Equal(expression.Value(seqPK(tenant, gen)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	var (
		entries []entry.Entry
		seen    = make(map[string]bool)
		lastKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &s.table,
			KeyConditionExpression:    expr.KeyCondition(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ScanIndexForward:          aws.Bool(false),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query generation %s/%s: %w", tenant, gen, err)
		}

		var items []entryItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("unmarshal entries: %w", err)
		}
		for _, it := range items {
			if seen[it.Hash] {
				continue
			}
			seen[it.Hash] = true
			e, err := it.entry()
			if err != nil {
				return nil, err
			}
			entries = append(entries, e)
		}

		if len(out.LastEvaluatedKey) == 0 {
			return entries, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

package dynamostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/acksell/registers/store"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// SetCurrentGeneration repoints the tenant at generation with one PutItem,
// conditional on the pointer still naming the generation read beforehand.
// The generation that was previous before the swap is retired and dropped.
func (s *Store) SetCurrentGeneration(ctx context.Context, tenant, generation string) error {
	if err := validComponent("register", tenant); err != nil {
		return err
	}
	if err := validComponent("generation", generation); err != nil {
		return err
	}

	old, err := s.pointer(ctx, tenant)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if old.Generation == generation {
		return nil
	}

	item, err := attributevalue.MarshalMap(pointerItem{
		PK:         pointerPK(tenant),
		SK:         pointerSK,
		Generation: generation,
		Previous:   old.Generation,
	})
	if err != nil {
		return fmt.Errorf("marshal generation pointer: %w", err)
	}
	cond := expression.AttributeNotExists(expression.Name(attrPK))
	if old.Generation != "" {
		cond = expression.Name(attrGeneration).Equal(expression.Value(old.Generation))
	}
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return fmt.Errorf("build pointer condition: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &s.table,
		Item:                      item,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	var failed *types.ConditionalCheckFailedException
	if errors.As(err, &failed) {
		return fmt.Errorf("set current generation %s/%s: %w", tenant, generation, store.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("set current generation %s/%s: %w", tenant, generation, err)
	}

	if retired := old.Previous; retired != "" && retired != generation {
		if err := s.dropGeneration(ctx, tenant, retired); err != nil {
			// The swap is committed; a leftover generation only costs space.
			s.opts.log.Warn("drop retired generation",
				"register", tenant, "generation", retired, "error", err)
		}
	}
	return nil
}

// DropGeneration deletes every item of a generation that is not current.
func (s *Store) DropGeneration(ctx context.Context, tenant, generation string) error {
	p, err := s.pointer(ctx, tenant)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	if p.Generation == generation {
		return fmt.Errorf("drop generation %s/%s: generation is current", tenant, generation)
	}
	return s.dropGeneration(ctx, tenant, generation)
}

func (s *Store) dropGeneration(ctx context.Context, tenant, generation string) error {
	requests := []types.WriteRequest{
		{DeleteRequest: &types.DeleteRequest{Key: key(counterPK(tenant, generation), counterSK)}},
	}
	for _, pk := range []string{seqPK(tenant, generation), hashPK(tenant, generation)} {
		keys, err := s.partitionKeys(ctx, pk)
		if err != nil {
			return fmt.Errorf("drop generation %s/%s: %w", tenant, generation, err)
		}
		for _, k := range keys {
			requests = append(requests, types.WriteRequest{DeleteRequest: &types.DeleteRequest{Key: k}})
		}
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return fmt.Errorf("drop generation %s/%s: %w", tenant, generation, err)
	}
	s.opts.log.Debug("dropped generation", "register", tenant, "generation", generation, "items", len(requests))
	return nil
}

// partitionKeys lists the primary keys of every item in a partition.
func (s *Store) partitionKeys(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key(attrPK).Equal(expression.Value(pk))).
		WithProjection(expression.NamesList(expression.Name(attrPK), expression.Name(attrSK))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("build key condition: %w", err)
	}

	var (
		keys    []map[string]types.AttributeValue
		lastKey map[string]types.AttributeValue
	)
	for {
		out, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:                 &s.table,
			KeyConditionExpression:    expr.KeyCondition(),
			ProjectionExpression:      expr.Projection(),
			ExpressionAttributeNames:  expr.Names(),
			ExpressionAttributeValues: expr.Values(),
			ConsistentRead:            aws.Bool(true),
			ExclusiveStartKey:         lastKey,
		})
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", pk, err)
		}
		for _, item := range out.Items {
			keys = append(keys, map[string]types.AttributeValue{
				attrPK: item[attrPK],
				attrSK: item[attrSK],
			})
		}
		if len(out.LastEvaluatedKey) == 0 {
			return keys, nil
		}
		lastKey = out.LastEvaluatedKey
	}
}

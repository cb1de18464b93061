package dynamostore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// fakeClient is an in-memory table supporting the single-partition queries
// the store issues.
type fakeClient struct {
	mu         sync.Mutex
	partitions map[string]map[string]map[string]types.AttributeValue

	// pageSize limits items per Query response to exercise pagination.
	pageSize int
	// unprocessed makes the next n BatchWriteItem calls apply only the
	// first request and report the rest as unprocessed.
	unprocessed int
	batchCalls  int
	failWrites  error
	// beforePut runs once, outside the lock, before the next PutItem.
	beforePut func(*dynamodb.PutItemInput)
}

var _ Client = (*fakeClient)(nil)

func newFakeClient() *fakeClient {
	return &fakeClient{
		partitions: make(map[string]map[string]map[string]types.AttributeValue),
		pageSize:   4,
	}
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (c *fakeClient) put(item map[string]types.AttributeValue) {
	pk, sk := stringAttr(item, attrPK), stringAttr(item, attrSK)
	p, ok := c.partitions[pk]
	if !ok {
		p = make(map[string]map[string]types.AttributeValue)
		c.partitions[pk] = p
	}
	p[sk] = item
}

func (c *fakeClient) delete(k map[string]types.AttributeValue) {
	pk, sk := stringAttr(k, attrPK), stringAttr(k, attrSK)
	if p, ok := c.partitions[pk]; ok {
		delete(p, sk)
		if len(p) == 0 {
			delete(c.partitions, pk)
		}
	}
}

func (c *fakeClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	item := c.partitions[stringAttr(in.Key, attrPK)][stringAttr(in.Key, attrSK)]
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (c *fakeClient) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	hook := c.beforePut
	c.beforePut = nil
	c.mu.Unlock()
	if hook != nil {
		hook(in)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites != nil {
		return nil, c.failWrites
	}
	if err := c.checkCondition(in); err != nil {
		return nil, err
	}
	c.put(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// checkCondition evaluates the two condition forms the store builds:
// attribute_not_exists(name) and name = value.
func (c *fakeClient) checkCondition(in *dynamodb.PutItemInput) error {
	if in.ConditionExpression == nil {
		return nil
	}
	existing := c.partitions[stringAttr(in.Item, attrPK)][stringAttr(in.Item, attrSK)]
	failed := &types.ConditionalCheckFailedException{Message: aws.String("the conditional request failed")}

	if strings.HasPrefix(*in.ConditionExpression, "attribute_not_exists") {
		if existing != nil {
			return failed
		}
		return nil
	}
	if len(in.ExpressionAttributeNames) != 1 || len(in.ExpressionAttributeValues) != 1 {
		return fmt.Errorf("fake put: unsupported condition %q", *in.ConditionExpression)
	}
	var name, want string
	for _, n := range in.ExpressionAttributeNames {
		name = n
	}
	for _, v := range in.ExpressionAttributeValues {
		want = v.(*types.AttributeValueMemberS).Value
	}
	if existing == nil || stringAttr(existing, name) != want {
		return failed
	}
	return nil
}

// Query supports only "pk = :v" key conditions, which is all the store
// builds, so the partition is the single string expression value.
func (c *fakeClient) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(in.ExpressionAttributeValues) != 1 {
		return nil, fmt.Errorf("fake query: want one expression value, got %d", len(in.ExpressionAttributeValues))
	}
	var pk string
	for _, v := range in.ExpressionAttributeValues {
		pk = v.(*types.AttributeValueMemberS).Value
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.partitions[pk]
	sks := make([]string, 0, len(p))
	for sk := range p {
		sks = append(sks, sk)
	}
	forward := in.ScanIndexForward == nil || *in.ScanIndexForward
	sort.Slice(sks, func(i, j int) bool {
		if forward {
			return sks[i] < sks[j]
		}
		return sks[i] > sks[j]
	})

	if in.ExclusiveStartKey != nil {
		start := stringAttr(in.ExclusiveStartKey, attrSK)
		i := sort.Search(len(sks), func(i int) bool {
			if forward {
				return sks[i] > start
			}
			return sks[i] < start
		})
		sks = sks[i:]
	}

	out := &dynamodb.QueryOutput{}
	for i, sk := range sks {
		if i == c.pageSize {
			out.LastEvaluatedKey = key(pk, sks[i-1])
			break
		}
		out.Items = append(out.Items, p[sk])
	}
	return out, nil
}

func (c *fakeClient) BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batchCalls++
	if c.failWrites != nil {
		return nil, c.failWrites
	}

	out := &dynamodb.BatchWriteItemOutput{UnprocessedItems: map[string][]types.WriteRequest{}}
	for table, requests := range in.RequestItems {
		if len(requests) > batchWriteLimit {
			return nil, errors.New("fake batch write: too many requests")
		}
		seen := make(map[string]bool, len(requests))
		for _, r := range requests {
			var k map[string]types.AttributeValue
			switch {
			case r.PutRequest != nil:
				k = r.PutRequest.Item
			case r.DeleteRequest != nil:
				k = r.DeleteRequest.Key
			}
			id := stringAttr(k, attrPK) + "\x00" + stringAttr(k, attrSK)
			if seen[id] {
				return nil, errors.New("fake batch write: provided list of item keys contains duplicates")
			}
			seen[id] = true
		}
		if c.unprocessed > 0 && len(requests) > 1 {
			c.unprocessed--
			out.UnprocessedItems[table] = requests[1:]
			requests = requests[:1]
		}
		for _, r := range requests {
			switch {
			case r.PutRequest != nil:
				c.put(r.PutRequest.Item)
			case r.DeleteRequest != nil:
				c.delete(r.DeleteRequest.Key)
			}
		}
	}
	return out, nil
}

func (c *fakeClient) itemCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, p := range c.partitions {
		n += len(p)
	}
	return n
}

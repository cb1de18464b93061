package dynamostore

import (
	"fmt"
	"strings"

	"github.com/acksell/registers/entry"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Table layout. All items live in one table keyed by string pk and sk.
//
//	pk=register#<tenant>          sk=current      pointer: generation, previous
//	pk=counter#<tenant>#<gen>     sk=next         next sequence number
//	pk=seq#<tenant>#<gen>         sk=%020d        entry, ordered by write
//	pk=hash#<tenant>#<gen>        sk=<hash>       entry, for lookup
const (
	attrPK         = "pk"
	attrSK         = "sk"
	attrGeneration = "generation"

	pointerSK = "current"
	counterSK = "next"
)

func pointerPK(tenant string) string {
	return "register#" + tenant
}

func counterPK(tenant, gen string) string {
	return "counter#" + tenant + "#" + gen
}

func seqPK(tenant, gen string) string {
	return "seq#" + tenant + "#" + gen
}

func hashPK(tenant, gen string) string {
	return "hash#" + tenant + "#" + gen
}

func seqSK(seq uint64) string {
	return fmt.Sprintf("%020d", seq)
}

type pointerItem struct {
	PK         string `dynamodbav:"pk"`
	SK         string `dynamodbav:"sk"`
	Generation string `dynamodbav:"generation"`
	Previous   string `dynamodbav:"previous,omitempty"`
}

type counterItem struct {
	PK   string `dynamodbav:"pk"`
	SK   string `dynamodbav:"sk"`
	Next uint64 `dynamodbav:"next"`
}

type entryItem struct {
	PK     string         `dynamodbav:"pk"`
	SK     string         `dynamodbav:"sk"`
	Hash   string         `dynamodbav:"hash"`
	Seq    uint64         `dynamodbav:"seq"`
	Fields map[string]any `dynamodbav:"fields"`
}

func (it entryItem) entry() (entry.Entry, error) {
	fields, err := entry.FieldsOf(it.Fields)
	if err != nil {
		return entry.Entry{}, fmt.Errorf("entry %s: %w", it.Hash, err)
	}
	return entry.Entry{Hash: it.Hash, Fields: fields}, nil
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

func marshalEntry(pk, sk string, seq uint64, e entry.Entry) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(entryItem{
		PK:     pk,
		SK:     sk,
		Hash:   e.Hash,
		Seq:    seq,
		Fields: e.Fields.Primitive(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal entry %s: %w", e.Hash, err)
	}
	return item, nil
}

// validComponent rejects names that would break the '#'-joined keys.
func validComponent(kind, s string) error {
	if s == "" {
		return fmt.Errorf("%s is required", kind)
	}
	if strings.Contains(s, "#") {
		return fmt.Errorf("%s %q must not contain '#'", kind, s)
	}
	return nil
}

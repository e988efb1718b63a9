package overrides

import (
	"context"
	"sort"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/pkg/errors"

	"github.com/fluxcd/homeless/pkg/spec"
)

// DynamoStore reads overrides from a DynamoDB table keyed by job and
// environment; the document is in the item's `overrides` attribute.
type DynamoStore struct {
	API   dynamodbiface.DynamoDBAPI
	Table string
}

func (s *DynamoStore) Get(ctx context.Context, job, environment string) (*spec.Map, error) {
	out, err := s.API.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.Table),
		Key: map[string]*dynamodb.AttributeValue{
			AttrJob:         {S: aws.String(job)},
			AttrEnvironment: {S: aws.String(environment)},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching overrides for %s in %s from table %s", job, environment, s.Table)
	}
	attr, ok := out.Item[AttrOverrides]
	if !ok || attr == nil || aws.BoolValue(attr.NULL) {
		return nil, nil
	}
	if attr.M == nil {
		return nil, errors.Errorf("overrides for %s in %s: expected a map attribute", job, environment)
	}
	return fromAttributeMap(attr.M), nil
}

// fromAttributeMap converts a DynamoDB map into a document. DynamoDB
// doesn't keep the order of map keys, so they are sorted.
func fromAttributeMap(attrs map[string]*dynamodb.AttributeValue) *spec.Map {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m := spec.NewMap()
	for _, k := range keys {
		m.Set(k, fromAttribute(attrs[k]))
	}
	return m
}

// Numbers are kept as decimals, as DynamoDB has them.
func fromAttribute(a *dynamodb.AttributeValue) interface{} {
	switch {
	case a == nil:
		return nil
	case a.S != nil:
		return *a.S
	case a.N != nil:
		return spec.Decimal(*a.N)
	case a.BOOL != nil:
		return *a.BOOL
	case a.NULL != nil:
		return nil
	case a.B != nil:
		return a.B
	case a.M != nil:
		return fromAttributeMap(a.M)
	case a.L != nil:
		l := make([]interface{}, len(a.L))
		for i, v := range a.L {
			l[i] = fromAttribute(v)
		}
		return l
	case a.SS != nil:
		l := make([]interface{}, len(a.SS))
		for i, v := range a.SS {
			l[i] = aws.StringValue(v)
		}
		return l
	case a.NS != nil:
		l := make([]interface{}, len(a.NS))
		for i, v := range a.NS {
			l[i] = spec.Decimal(aws.StringValue(v))
		}
		return l
	case a.BS != nil:
		l := make([]interface{}, len(a.BS))
		for i, v := range a.BS {
			l[i] = v
		}
		return l
	}
	return nil
}

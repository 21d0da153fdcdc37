// Package awstest holds in-memory fakes of the AWS clients for unit tests.
// The DynamoDB fake understands exactly the expression shapes the stores in
// this module issue: attribute_(not_)exists, equality, "<", OR/AND, "SET a = :v"
// updates and "pk = :v" key conditions.
package awstest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type keySchema struct {
	pk string
	sk string
}

// Dynamo is an in-memory DynamoDB keyed by table name.
type Dynamo struct {
	mu      sync.Mutex
	schemas map[string]keySchema
	tables  map[string]map[string]map[string]types.AttributeValue

	// Errors forces an operation ("PutItem", "GetItem", ...) to fail.
	Errors map[string]error
	Calls  map[string]int
}

// NewDynamo returns an empty fake.
func NewDynamo() *Dynamo {
	return &Dynamo{
		schemas: map[string]keySchema{},
		tables:  map[string]map[string]map[string]types.AttributeValue{},
		Errors:  map[string]error{},
		Calls:   map[string]int{},
	}
}

// CreateTable registers a table with a partition key and an optional sort key.
func (d *Dynamo) CreateTable(name, pk, sk string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.schemas[name] = keySchema{pk: pk, sk: sk}
	d.tables[name] = map[string]map[string]types.AttributeValue{}
}

// Items returns a snapshot of all items in a table.
func (d *Dynamo) Items(table string) []map[string]types.AttributeValue {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]map[string]types.AttributeValue, 0, len(d.tables[table]))
	for _, it := range d.tables[table] {
		out = append(out, copyItem(it))
	}
	return out
}

// Put stores an item unconditionally (test setup).
func (d *Dynamo) Put(table string, item map[string]types.AttributeValue) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, err := d.keyOf(table, item)
	if err != nil {
		panic(err)
	}
	d.tables[table][k] = copyItem(item)
}

func (d *Dynamo) enter(op string) error {
	d.Calls[op]++
	return d.Errors[op]
}

func (d *Dynamo) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("PutItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	k, err := d.keyOf(table, params.Item)
	if err != nil {
		return nil, err
	}
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, d.tables[table][k])
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}
	d.tables[table][k] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("GetItem"); err != nil {
		return nil, err
	}
	k, err := d.keyOf(*params.TableName, params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := d.tables[*params.TableName][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("UpdateItem"); err != nil {
		return nil, err
	}
	table := *params.TableName
	k, err := d.keyOf(table, params.Key)
	if err != nil {
		return nil, err
	}
	current := d.tables[table][k]
	ok, err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, current)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
	}

	item := copyItem(current)
	if item == nil {
		item = copyItem(params.Key)
	}
	if params.UpdateExpression != nil {
		expr := strings.TrimSpace(*params.UpdateExpression)
		if !strings.HasPrefix(expr, "SET ") {
			return nil, fmt.Errorf("awstest: unsupported update expression %q", expr)
		}
		for _, assignment := range strings.Split(strings.TrimPrefix(expr, "SET "), ",") {
			parts := strings.SplitN(assignment, "=", 2)
			if len(parts) != 2 {
				return nil, fmt.Errorf("awstest: bad assignment %q", assignment)
			}
			name := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
			placeholder := strings.TrimSpace(parts[1])
			v, ok := params.ExpressionAttributeValues[placeholder]
			if !ok {
				return nil, fmt.Errorf("awstest: missing value %s", placeholder)
			}
			item[name] = v
		}
	}
	d.tables[table][k] = item
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (d *Dynamo) Query(ctx context.Context, params *dyn.QueryInput, optFns ...func(*dyn.Options)) (*dyn.QueryOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("Query"); err != nil {
		return nil, err
	}
	table := *params.TableName
	schema, ok := d.schemas[table]
	if !ok {
		return nil, fmt.Errorf("awstest: unknown table %s", table)
	}
	if params.KeyConditionExpression == nil {
		return nil, errors.New("awstest: query without key condition")
	}
	parts := strings.SplitN(*params.KeyConditionExpression, "=", 2)
	if len(parts) != 2 {
		return nil, fmt.Errorf("awstest: unsupported key condition %q", *params.KeyConditionExpression)
	}
	attr := resolveName(strings.TrimSpace(parts[0]), params.ExpressionAttributeNames)
	want := params.ExpressionAttributeValues[strings.TrimSpace(parts[1])]
	if attr != schema.pk || want == nil {
		return nil, fmt.Errorf("awstest: key condition must target %s", schema.pk)
	}

	var matched []map[string]types.AttributeValue
	for _, it := range d.tables[table] {
		if equalAV(it[schema.pk], want) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		less := lessAV(matched[i][schema.sk], matched[j][schema.sk])
		if params.ScanIndexForward != nil && !*params.ScanIndexForward {
			return !less
		}
		return less
	})

	start := 0
	if params.ExclusiveStartKey != nil {
		for i, it := range matched {
			if equalAV(it[schema.sk], params.ExclusiveStartKey[schema.sk]) {
				start = i + 1
				break
			}
		}
	}
	matched = matched[start:]

	out := &dyn.QueryOutput{}
	if params.Limit != nil && int(*params.Limit) < len(matched) {
		matched = matched[:*params.Limit]
		last := matched[len(matched)-1]
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			schema.pk: last[schema.pk],
			schema.sk: last[schema.sk],
		}
	}
	for _, it := range matched {
		out.Items = append(out.Items, copyItem(it))
	}
	out.Count = int32(len(out.Items))
	return out, nil
}

func (d *Dynamo) TransactWriteItems(ctx context.Context, params *dyn.TransactWriteItemsInput, optFns ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.enter("TransactWriteItems"); err != nil {
		return nil, err
	}
	type write struct {
		table string
		key   string
		item  map[string]types.AttributeValue
	}
	writes := make([]write, 0, len(params.TransactItems))
	for _, it := range params.TransactItems {
		if c := it.ConditionCheck; c != nil {
			k, err := d.keyOf(*c.TableName, c.Key)
			if err != nil {
				return nil, err
			}
			ok, err := evalCondition(c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues, d.tables[*c.TableName][k])
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, canceled()
			}
			continue
		}
		p := it.Put
		if p == nil {
			return nil, errors.New("awstest: only Put and ConditionCheck are supported in transactions")
		}
		k, err := d.keyOf(*p.TableName, p.Item)
		if err != nil {
			return nil, err
		}
		ok, err := evalCondition(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, d.tables[*p.TableName][k])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, canceled()
		}
		writes = append(writes, write{table: *p.TableName, key: k, item: p.Item})
	}
	for _, w := range writes {
		d.tables[w.table][w.key] = copyItem(w.item)
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

func (d *Dynamo) keyOf(table string, item map[string]types.AttributeValue) (string, error) {
	schema, ok := d.schemas[table]
	if !ok {
		return "", fmt.Errorf("awstest: unknown table %s", table)
	}
	pk, ok := item[schema.pk]
	if !ok {
		return "", fmt.Errorf("awstest: item has no %s", schema.pk)
	}
	key := scalar(pk)
	if schema.sk != "" {
		sk, ok := item[schema.sk]
		if !ok {
			return "", fmt.Errorf("awstest: item has no %s", schema.sk)
		}
		key += "\x00" + scalar(sk)
	}
	return key, nil
}

func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, alt := range strings.Split(*expr, " OR ") {
		all := true
		for _, clause := range strings.Split(alt, " AND ") {
			ok, err := evalClause(strings.TrimSpace(clause), names, values, item)
			if err != nil {
				return false, err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			return true, nil
		}
	}
	return false, nil
}

func evalClause(clause string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) (bool, error) {
	clause = strings.TrimSuffix(strings.TrimPrefix(clause, "("), ")")
	switch {
	case strings.HasPrefix(clause, "attribute_not_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_not_exists("), ")"), names)
		_, ok := item[attr]
		return !ok, nil
	case strings.HasPrefix(clause, "attribute_exists("):
		attr := resolveName(strings.TrimSuffix(strings.TrimPrefix(clause, "attribute_exists("), ")"), names)
		_, ok := item[attr]
		return ok, nil
	case strings.Contains(clause, " < "):
		parts := strings.SplitN(clause, " < ", 2)
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		bound, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("awstest: missing value in %q", clause)
		}
		got, ok := item[attr]
		return ok && lessAV(got, bound), nil
	case strings.Contains(clause, "="):
		parts := strings.SplitN(clause, "=", 2)
		attr := resolveName(strings.TrimSpace(parts[0]), names)
		want, ok := values[strings.TrimSpace(parts[1])]
		if !ok {
			return false, fmt.Errorf("awstest: missing value in %q", clause)
		}
		got, ok := item[attr]
		return ok && equalAV(got, want), nil
	}
	return false, fmt.Errorf("awstest: unsupported condition %q", clause)
}

func resolveName(name string, names map[string]string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "#") {
		if n, ok := names[name]; ok {
			return n
		}
	}
	return name
}

func scalar(av types.AttributeValue) string {
	switch v := av.(type) {
	case *types.AttributeValueMemberS:
		return v.Value
	case *types.AttributeValueMemberN:
		return v.Value
	case *types.AttributeValueMemberBOOL:
		return strconv.FormatBool(v.Value)
	}
	return fmt.Sprintf("%v", av)
}

func equalAV(a, b types.AttributeValue) bool {
	if a == nil || b == nil {
		return false
	}
	return fmt.Sprintf("%T", a) == fmt.Sprintf("%T", b) && scalar(a) == scalar(b)
}

func lessAV(a, b types.AttributeValue) bool {
	an, aok := a.(*types.AttributeValueMemberN)
	bn, bok := b.(*types.AttributeValueMemberN)
	if aok && bok {
		x, _ := strconv.ParseFloat(an.Value, 64)
		y, _ := strconv.ParseFloat(bn.Value, 64)
		return x < y
	}
	return scalar(a) < scalar(b)
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

func canceled() error {
	return &types.TransactionCanceledException{Message: strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons [ConditionalCheckFailed]")}
}

func strPtr(s string) *string { return &s }

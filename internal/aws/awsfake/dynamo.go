// Package awsfake provides in-memory stand-ins for the DynamoDB, SQS and
// CloudWatch clients. The DynamoDB fake understands the small expression
// dialect the stores use: attribute_exists, attribute_not_exists, equality and
// inequality joined with AND, and SET updates with if_not_exists(x, :v) + :n.
package awsfake

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Item is a stored DynamoDB item.
type Item = map[string]types.AttributeValue

// Dynamo is a thread-safe in-memory DynamoDB with single-attribute string keys.
type Dynamo struct {
	mu     sync.Mutex
	keys   map[string]string
	tables map[string]map[string]Item

	// Err, when set, is returned by every call.
	Err error

	Calls map[string]int
}

// NewDynamo returns an empty fake.
func NewDynamo() *Dynamo {
	return &Dynamo{
		keys:   map[string]string{},
		tables: map[string]map[string]Item{},
		Calls:  map[string]int{},
	}
}

// CreateTable registers a table keyed by the string attribute pk.
func (d *Dynamo) CreateTable(name, pk string) *Dynamo {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.keys[name] = pk
	if d.tables[name] == nil {
		d.tables[name] = map[string]Item{}
	}
	return d
}

// Item returns a copy of the stored item, or nil.
func (d *Dynamo) Item(table, key string) Item {
	d.mu.Lock()
	defer d.mu.Unlock()
	it, ok := d.tables[table][key]
	if !ok {
		return nil
	}
	return clone(it)
}

// Put stores item directly, bypassing conditions.
func (d *Dynamo) Put(table string, item Item) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	k, err := d.keyOf(table, item)
	if err != nil {
		return err
	}
	d.tables[table][k] = clone(item)
	return nil
}

// Len is the number of items in table.
func (d *Dynamo) Len(table string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tables[table])
}

func (d *Dynamo) PutItem(ctx context.Context, in *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["PutItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	if err := d.put(*in.TableName, in.Item, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues); err != nil {
		return nil, err
	}
	return &dyn.PutItemOutput{}, nil
}

func (d *Dynamo) GetItem(ctx context.Context, in *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["GetItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	k, err := d.keyOf(*in.TableName, in.Key)
	if err != nil {
		return nil, err
	}
	it, ok := d.tables[*in.TableName][k]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: clone(it)}, nil
}

func (d *Dynamo) UpdateItem(ctx context.Context, in *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["UpdateItem"]++
	if d.Err != nil {
		return nil, d.Err
	}
	out, err := d.update(*in.TableName, in.Key, in.UpdateExpression, in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	if in.ReturnValues == types.ReturnValueNone || in.ReturnValues == "" {
		return &dyn.UpdateItemOutput{}, nil
	}
	return &dyn.UpdateItemOutput{Attributes: clone(out)}, nil
}

// TransactWriteItems checks every condition before applying any write.
func (d *Dynamo) TransactWriteItems(ctx context.Context, in *dyn.TransactWriteItemsInput, _ ...func(*dyn.Options)) (*dyn.TransactWriteItemsOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["TransactWriteItems"]++
	if d.Err != nil {
		return nil, d.Err
	}

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		code := "None"
		switch {
		case ti.Put != nil:
			p := ti.Put
			k, err := d.keyOf(*p.TableName, p.Item)
			if err != nil {
				return nil, err
			}
			ok, err := evalCondition(p.ConditionExpression, d.tables[*p.TableName][k], p.ExpressionAttributeNames, p.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				code = "ConditionalCheckFailed"
				failed = true
			}
		case ti.Update != nil:
			u := ti.Update
			k, err := d.keyOf(*u.TableName, u.Key)
			if err != nil {
				return nil, err
			}
			ok, err := evalCondition(u.ConditionExpression, d.tables[*u.TableName][k], u.ExpressionAttributeNames, u.ExpressionAttributeValues)
			if err != nil {
				return nil, err
			}
			if !ok {
				code = "ConditionalCheckFailed"
				failed = true
			}
		}
		reasons[i] = types.CancellationReason{Code: strPtr(code)}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             strPtr("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			if err := d.put(*ti.Put.TableName, ti.Put.Item, nil, nil, nil); err != nil {
				return nil, err
			}
		case ti.Update != nil:
			u := ti.Update
			if _, err := d.update(*u.TableName, u.Key, u.UpdateExpression, nil, u.ExpressionAttributeNames, u.ExpressionAttributeValues); err != nil {
				return nil, err
			}
		}
	}
	return &dyn.TransactWriteItemsOutput{}, nil
}

// Scan returns matching items ordered by key, honoring Limit and ExclusiveStartKey.
func (d *Dynamo) Scan(ctx context.Context, in *dyn.ScanInput, _ ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Calls["Scan"]++
	if d.Err != nil {
		return nil, d.Err
	}
	table := *in.TableName
	pk, ok := d.keys[table]
	if !ok {
		return nil, resourceNotFound(table)
	}

	keys := make([]string, 0, len(d.tables[table]))
	for k := range d.tables[table] {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	start := 0
	if in.ExclusiveStartKey != nil {
		after := stringValue(in.ExclusiveStartKey[pk])
		start = sort.SearchStrings(keys, after)
		if start < len(keys) && keys[start] == after {
			start++
		}
	}

	out := &dyn.ScanOutput{}
	for i := start; i < len(keys); i++ {
		if in.Limit != nil && int(*in.Limit) == int(out.ScannedCount) {
			out.LastEvaluatedKey = Item{pk: &types.AttributeValueMemberS{Value: keys[i-1]}}
			break
		}
		it := d.tables[table][keys[i]]
		out.ScannedCount++
		match, err := evalCondition(in.FilterExpression, it, in.ExpressionAttributeNames, in.ExpressionAttributeValues)
		if err != nil {
			return nil, err
		}
		if match {
			out.Items = append(out.Items, clone(it))
			out.Count++
		}
	}
	return out, nil
}

func (d *Dynamo) put(table string, item Item, cond *string, names map[string]string, values Item) error {
	k, err := d.keyOf(table, item)
	if err != nil {
		return err
	}
	ok, err := evalCondition(cond, d.tables[table][k], names, values)
	if err != nil {
		return err
	}
	if !ok {
		return conditionalFailed()
	}
	d.tables[table][k] = clone(item)
	return nil
}

func (d *Dynamo) update(table string, key Item, expr, cond *string, names map[string]string, values Item) (Item, error) {
	k, err := d.keyOf(table, key)
	if err != nil {
		return nil, err
	}
	current := d.tables[table][k]
	ok, err := evalCondition(cond, current, names, values)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, conditionalFailed()
	}

	next := clone(current)
	if next == nil {
		next = clone(key)
	}
	if expr != nil {
		if err := applyUpdate(*expr, next, names, values); err != nil {
			return nil, err
		}
	}
	d.tables[table][k] = next
	return next, nil
}

func (d *Dynamo) keyOf(table string, item Item) (string, error) {
	pk, ok := d.keys[table]
	if !ok {
		return "", resourceNotFound(table)
	}
	v, ok := item[pk].(*types.AttributeValueMemberS)
	if !ok || v.Value == "" {
		return "", fmt.Errorf("awsfake: missing key attribute %q for table %s", pk, table)
	}
	return v.Value, nil
}

func evalCondition(expr *string, item Item, names map[string]string, values Item) (bool, error) {
	if expr == nil || strings.TrimSpace(*expr) == "" {
		return true, nil
	}
	for _, clause := range strings.Split(*expr, " AND ") {
		ok, err := evalClause(strings.TrimSpace(clause), item, names, values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evalClause(c string, item Item, names map[string]string, values Item) (bool, error) {
	if inner, ok := call(c, "attribute_not_exists"); ok {
		_, present := item[resolveName(inner, names)]
		return !present, nil
	}
	if inner, ok := call(c, "attribute_exists"); ok {
		_, present := item[resolveName(inner, names)]
		return present, nil
	}
	for _, op := range []string{"<>", "="} {
		if i := strings.Index(c, " "+op+" "); i > 0 {
			left, err := operand(strings.TrimSpace(c[:i]), item, names, values)
			if err != nil {
				return false, err
			}
			right, err := operand(strings.TrimSpace(c[i+len(op)+2:]), item, names, values)
			if err != nil {
				return false, err
			}
			eq := left != nil && right != nil && equal(left, right)
			if op == "=" {
				return eq, nil
			}
			return !eq, nil
		}
	}
	return false, fmt.Errorf("awsfake: unsupported condition %q", c)
}

// applyUpdate supports "SET a = v, b = if_not_exists(b, :z) + :n" and a trailing "REMOVE x, y".
func applyUpdate(expr string, item Item, names map[string]string, values Item) error {
	expr = strings.TrimSpace(expr)
	var removes string
	if i := strings.Index(expr, " REMOVE "); i >= 0 {
		removes = expr[i+len(" REMOVE "):]
		expr = expr[:i]
	} else if strings.HasPrefix(expr, "REMOVE ") {
		removes = strings.TrimPrefix(expr, "REMOVE ")
		expr = ""
	}

	if expr != "" {
		if !strings.HasPrefix(expr, "SET ") {
			return fmt.Errorf("awsfake: unsupported update %q", expr)
		}
		for _, assign := range splitTopLevel(strings.TrimPrefix(expr, "SET ")) {
			parts := strings.SplitN(assign, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("awsfake: bad assignment %q", assign)
			}
			name := resolveName(strings.TrimSpace(parts[0]), names)
			v, err := evalValue(strings.TrimSpace(parts[1]), item, names, values)
			if err != nil {
				return err
			}
			item[name] = v
		}
	}
	for _, r := range strings.Split(removes, ",") {
		if r = strings.TrimSpace(r); r != "" {
			delete(item, resolveName(r, names))
		}
	}
	return nil
}

func evalValue(expr string, item Item, names map[string]string, values Item) (types.AttributeValue, error) {
	if i := strings.LastIndex(expr, " + "); i > 0 {
		left, err := evalValue(strings.TrimSpace(expr[:i]), item, names, values)
		if err != nil {
			return nil, err
		}
		right, err := evalValue(strings.TrimSpace(expr[i+3:]), item, names, values)
		if err != nil {
			return nil, err
		}
		return add(left, right)
	}
	if inner, ok := call(expr, "if_not_exists"); ok {
		args := splitTopLevel(inner)
		if len(args) != 2 {
			return nil, fmt.Errorf("awsfake: bad if_not_exists %q", expr)
		}
		if v, ok := item[resolveName(args[0], names)]; ok {
			return v, nil
		}
		return evalValue(args[1], item, names, values)
	}
	v, err := operand(expr, item, names, values)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("awsfake: %q has no value", expr)
	}
	return v, nil
}

func operand(tok string, item Item, names map[string]string, values Item) (types.AttributeValue, error) {
	if strings.HasPrefix(tok, ":") {
		v, ok := values[tok]
		if !ok {
			return nil, fmt.Errorf("awsfake: missing value %s", tok)
		}
		return v, nil
	}
	return item[resolveName(tok, names)], nil
}

func resolveName(tok string, names map[string]string) string {
	tok = strings.TrimSpace(tok)
	if strings.HasPrefix(tok, "#") {
		if n, ok := names[tok]; ok {
			return n
		}
	}
	return tok
}

func call(expr, fn string) (string, bool) {
	if !strings.HasPrefix(expr, fn+"(") || !strings.HasSuffix(expr, ")") {
		return "", false
	}
	return strings.TrimSpace(expr[len(fn)+1 : len(expr)-1]), true
}

func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}

func add(a, b types.AttributeValue) (types.AttributeValue, error) {
	an, ok1 := a.(*types.AttributeValueMemberN)
	bn, ok2 := b.(*types.AttributeValueMemberN)
	if !ok1 || !ok2 {
		return nil, fmt.Errorf("awsfake: + needs numbers")
	}
	x, err := strconv.ParseFloat(an.Value, 64)
	if err != nil {
		return nil, err
	}
	y, err := strconv.ParseFloat(bn.Value, 64)
	if err != nil {
		return nil, err
	}
	return &types.AttributeValueMemberN{Value: strconv.FormatFloat(x+y, 'f', -1, 64)}, nil
}

func equal(a, b types.AttributeValue) bool {
	switch x := a.(type) {
	case *types.AttributeValueMemberS:
		y, ok := b.(*types.AttributeValueMemberS)
		return ok && x.Value == y.Value
	case *types.AttributeValueMemberN:
		y, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return false
		}
		fx, err1 := strconv.ParseFloat(x.Value, 64)
		fy, err2 := strconv.ParseFloat(y.Value, 64)
		return err1 == nil && err2 == nil && fx == fy
	case *types.AttributeValueMemberBOOL:
		y, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && x.Value == y.Value
	}
	return false
}

func stringValue(v types.AttributeValue) string {
	if s, ok := v.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

// clone copies the top-level map. Attribute values are treated as immutable.
func clone(it Item) Item {
	if it == nil {
		return nil
	}
	out := make(Item, len(it))
	for k, v := range it {
		out[k] = v
	}
	return out
}

func conditionalFailed() error {
	return &types.ConditionalCheckFailedException{Message: strPtr("The conditional request failed")}
}

func resourceNotFound(table string) error {
	return &types.ResourceNotFoundException{Message: strPtr("Requested resource not found: " + table)}
}

func strPtr(s string) *string { return &s }

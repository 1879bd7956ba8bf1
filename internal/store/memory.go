package store

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Memory is a map-backed Store used for tests and local development. Reads
// round-trip documents through BSON marshal/unmarshal, so decode behavior
// (including schema-shape failures) matches the mongo backend.
type Memory struct {
	mu     sync.Mutex
	docs   map[string][]bson.M
	writes map[string]WriteCounts
}

// WriteCounts tracks the mutations issued against one collection.
type WriteCounts struct {
	Inserts int64
	Updates int64
	Deletes int64
}

func NewMemory() *Memory {
	return &Memory{
		docs:   make(map[string][]bson.M),
		writes: make(map[string]WriteCounts),
	}
}

func (m *Memory) Collection(name string) Collection {
	return &memoryCollection{mem: m, name: name}
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *Memory) Close(ctx context.Context) error {
	return nil
}

// Writes reports how many inserts, updates and deletes a collection has
// seen.
func (m *Memory) Writes(collection string) WriteCounts {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes[collection]
}

type memoryCollection struct {
	mem  *Memory
	name string
}

func (c *memoryCollection) FindOne(ctx context.Context, filter bson.M, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	for _, doc := range c.mem.docs[c.name] {
		if matches(doc, filter) {
			return decodeDoc(doc, out)
		}
	}
	return ErrNoDocuments
}

func (c *memoryCollection) FindAll(ctx context.Context, filter bson.M, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	var raws []bson.Raw
	for _, doc := range c.mem.docs[c.name] {
		if !matches(doc, filter) {
			continue
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return err
		}
		raws = append(raws, raw)
	}
	return decodeAll(raws, out)
}

func (c *memoryCollection) InsertOne(ctx context.Context, doc any) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	raw, err := bson.Marshal(doc)
	if err != nil {
		return "", err
	}
	m, err := rawToMap(raw)
	if err != nil {
		return "", err
	}

	var id string
	if v, ok := m["_id"]; ok {
		id = idString(v)
	} else {
		id, err = gonanoid.New()
		if err != nil {
			return "", err
		}
		m["_id"] = id
	}

	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()
	c.mem.docs[c.name] = append(c.mem.docs[c.name], m)
	counts := c.mem.writes[c.name]
	counts.Inserts++
	c.mem.writes[c.name] = counts
	return id, nil
}

func (c *memoryCollection) UpdateOne(ctx context.Context, filter, update bson.M) (UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return UpdateResult{}, err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	for _, doc := range c.mem.docs[c.name] {
		if !matches(doc, filter) {
			continue
		}
		if err := applyUpdate(doc, update); err != nil {
			return UpdateResult{}, err
		}
		counts := c.mem.writes[c.name]
		counts.Updates++
		c.mem.writes[c.name] = counts
		return UpdateResult{Matched: 1, Modified: 1}, nil
	}
	return UpdateResult{}, nil
}

func (c *memoryCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mem.mu.Lock()
	defer c.mem.mu.Unlock()

	docs := c.mem.docs[c.name]
	for i, doc := range docs {
		if matches(doc, filter) {
			c.mem.docs[c.name] = append(docs[:i:i], docs[i+1:]...)
			counts := c.mem.writes[c.name]
			counts.Deletes++
			c.mem.writes[c.name] = counts
			return 1, nil
		}
	}
	return 0, nil
}

func applyUpdate(doc bson.M, update bson.M) error {
	for op, fields := range update {
		fm, ok := fields.(bson.M)
		if !ok {
			return fmt.Errorf("store: %s operand must be a document, got %T", op, fields)
		}
		switch op {
		case "$set":
			for path, v := range fm {
				if err := setPath(doc, path, v); err != nil {
					return err
				}
			}
		case "$inc":
			for path, v := range fm {
				if err := incPath(doc, path, v); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("store: unsupported update operator %s", op)
		}
	}
	return nil
}

func incPath(doc bson.M, path string, delta any) error {
	di, df, dFloat, ok := numeric(delta)
	if !ok {
		return fmt.Errorf("store: cannot $inc with non-numeric operand %T", delta)
	}
	existing, found := lookupPath(doc, path)
	if !found {
		if dFloat {
			return setPath(doc, path, df)
		}
		return setPath(doc, path, di)
	}
	ei, ef, eFloat, ok := numeric(existing)
	if !ok {
		return fmt.Errorf("store: cannot apply $inc to non-numeric field %s", path)
	}
	if dFloat || eFloat {
		if !dFloat {
			df = float64(di)
		}
		if !eFloat {
			ef = float64(ei)
		}
		return setPath(doc, path, ef+df)
	}
	return setPath(doc, path, ei+di)
}

func numeric(v any) (i int64, f float64, isFloat, ok bool) {
	switch n := v.(type) {
	case int:
		return int64(n), 0, false, true
	case int32:
		return int64(n), 0, false, true
	case int64:
		return n, 0, false, true
	case float32:
		return 0, float64(n), true, true
	case float64:
		return 0, n, true, true
	}
	return 0, 0, false, false
}

func lookupPath(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	cur := doc
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return nil, false
		}
		if i == len(parts)-1 {
			return v, true
		}
		next, ok := v.(bson.M)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

func setPath(doc bson.M, path string, v any) error {
	parts := strings.Split(path, ".")
	cur := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok {
			child := bson.M{}
			cur[part] = child
			cur = child
			continue
		}
		child, ok := next.(bson.M)
		if !ok {
			return fmt.Errorf("store: cannot traverse non-document field %s in path %s", part, path)
		}
		cur = child
	}
	cur[parts[len(parts)-1]] = v
	return nil
}

func matches(doc bson.M, filter bson.M) bool {
	for path, want := range filter {
		got, ok := lookupPath(doc, path)
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b any) bool {
	ai, af, aFloat, aok := numeric(a)
	bi, bf, bFloat, bok := numeric(b)
	if aok && bok {
		if !aFloat && !bFloat {
			return ai == bi
		}
		if !aFloat {
			af = float64(ai)
		}
		if !bFloat {
			bf = float64(bi)
		}
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func decodeDoc(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	if err := bson.Unmarshal(raw, out); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

// rawToMap converts a marshaled document into nested bson.M values so
// update paths can be traversed natively.
func rawToMap(raw bson.Raw) (bson.M, error) {
	elems, err := raw.Elements()
	if err != nil {
		return nil, err
	}
	doc := make(bson.M, len(elems))
	for _, el := range elems {
		v, err := rawValueToGo(el.Value())
		if err != nil {
			return nil, err
		}
		doc[el.Key()] = v
	}
	return doc, nil
}

func rawValueToGo(rv bson.RawValue) (any, error) {
	switch rv.Type {
	case bson.TypeEmbeddedDocument:
		return rawToMap(bson.Raw(rv.Value))
	case bson.TypeArray:
		vals, err := bson.Raw(rv.Value).Values()
		if err != nil {
			return nil, err
		}
		arr := make([]any, 0, len(vals))
		for _, v := range vals {
			gv, err := rawValueToGo(v)
			if err != nil {
				return nil, err
			}
			arr = append(arr, gv)
		}
		return arr, nil
	case bson.TypeString:
		return rv.StringValue(), nil
	case bson.TypeInt32:
		return rv.Int32(), nil
	case bson.TypeInt64:
		return rv.Int64(), nil
	case bson.TypeDouble:
		return rv.Double(), nil
	case bson.TypeBoolean:
		return rv.Boolean(), nil
	case bson.TypeNull:
		return nil, nil
	case bson.TypeObjectID:
		return rv.ObjectID(), nil
	case bson.TypeDateTime:
		return rv.Time(), nil
	default:
		// Opaque value, re-marshaled as-is.
		return rv, nil
	}
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case bson.ObjectID:
		return id.Hex()
	default:
		return fmt.Sprintf("%v", id)
	}
}

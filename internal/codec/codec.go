package codec

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"sync"

	"github.com/roach88/chronicle/internal/ir"
)

// Entity is a persisted row that is stored by reference.
type Entity interface {
	EntityType() string
	EntityID() int64
}

// Enum is a member of a closed, named set. EnumSet is a dotted path such as
// "cards.Card"; EnumMember is the member name.
type Enum interface {
	EnumSet() string
	EnumMember() string
}

// Fetcher loads the current row for an entity id. It returns ErrNotFound (or
// sql.ErrNoRows) when the row no longer exists.
type Fetcher func(ctx context.Context, id int64) (any, error)

// Codec holds the entity and enum registries used for decoding.
//
// Registration happens at startup; after that a Codec is safe for concurrent use.
type Codec struct {
	mu       sync.RWMutex
	entities map[string]Fetcher
	enums    map[string]map[string]Enum
}

// New returns an empty Codec.
func New() *Codec {
	return &Codec{
		entities: make(map[string]Fetcher),
		enums:    make(map[string]map[string]Enum),
	}
}

// RegisterEntity installs the fetcher for an entity type.
// Registering the same type twice replaces the earlier fetcher.
func (c *Codec) RegisterEntity(entityType string, fetch Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entities[entityType] = fetch
}

// RegisterEnum installs enum members. Members are grouped by their EnumSet.
func (c *Codec) RegisterEnum(members ...Enum) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range members {
		set, ok := c.enums[m.EnumSet()]
		if !ok {
			set = make(map[string]Enum)
			c.enums[m.EnumSet()] = set
		}
		set[m.EnumMember()] = m
	}
}

// EnumSets returns the registered set paths in sorted order.
func (c *Codec) EnumSets() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	sets := make([]string, 0, len(c.enums))
	for s := range c.enums {
		sets = append(sets, s)
	}
	sort.Strings(sets)
	return sets
}

// Encode converts a Go value into its plain-value tree.
//
// Dispatch order: ir.IRValue (unchanged), Entity, Enum, then by kind:
// pointers and interfaces are dereferenced, slices and arrays become
// IRArray, string-keyed maps become IRObject, and bool, string and integer
// kinds become scalars. Anything else, floats included, is an
// ErrCodeUnsupportedType error.
func Encode(v any) (ir.IRValue, error) {
	return encodeValue(v, "$")
}

// EncodeArgs encodes a positional argument list.
func EncodeArgs(args []any) (ir.IRArray, error) {
	out := make(ir.IRArray, len(args))
	for i, a := range args {
		enc, err := encodeValue(a, fmt.Sprintf("args[%d]", i))
		if err != nil {
			return nil, err
		}
		out[i] = enc
	}
	return out, nil
}

func encodeValue(v any, path string) (ir.IRValue, error) {
	if v == nil {
		return ir.IRNull{}, nil
	}
	if irv, ok := v.(ir.IRValue); ok {
		return irv, nil
	}

	rv := reflect.ValueOf(v)
	if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
		return ir.IRNull{}, nil
	}

	switch val := v.(type) {
	case Entity:
		return ir.IREntity{Type: val.EntityType(), ID: val.EntityID()}, nil
	case Enum:
		return ir.IREnum{Set: val.EnumSet(), Member: val.EnumMember()}, nil
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		return encodeValue(rv.Elem().Interface(), path)

	case reflect.Bool:
		return ir.IRBool(rv.Bool()), nil

	case reflect.String:
		return ir.IRString(rv.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return ir.IRInt(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, errorAt(ErrCodeUnsupportedType, path, "unsigned value %d overflows int64", u)
		}
		return ir.IRInt(int64(u)), nil

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return ir.IRNull{}, nil
		}
		arr := make(ir.IRArray, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem, err := encodeValue(rv.Index(i).Interface(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			arr[i] = elem
		}
		return arr, nil

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, errorAt(ErrCodeUnsupportedType, path, "map key type %s is not a string", rv.Type().Key())
		}
		if rv.IsNil() {
			return ir.IRNull{}, nil
		}
		obj := make(ir.IRObject, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			elem, err := encodeValue(iter.Value().Interface(), path+"."+key)
			if err != nil {
				return nil, err
			}
			obj[key] = elem
		}
		return obj, nil

	case reflect.Float32, reflect.Float64:
		return nil, errorAt(ErrCodeUnsupportedType, path, "floats are not replay-safe: %v", v)

	default:
		return nil, errorAt(ErrCodeUnsupportedType, path, "cannot encode %T", v)
	}
}

// Decode converts a plain-value tree back into Go values.
//
// Scalars become nil, bool, string and int64; arrays become []any; objects
// become map[string]any. Entity references are re-fetched through the
// registered fetcher and a missing row yields nil. Enum references resolve
// to the registered member; an unknown set or member is fatal.
func (c *Codec) Decode(ctx context.Context, v ir.IRValue) (any, error) {
	return c.decodeValue(ctx, v, "$")
}

// DecodeArgs decodes a positional argument list.
func (c *Codec) DecodeArgs(ctx context.Context, args ir.IRArray) ([]any, error) {
	out := make([]any, len(args))
	for i, a := range args {
		dec, err := c.decodeValue(ctx, a, fmt.Sprintf("args[%d]", i))
		if err != nil {
			return nil, err
		}
		out[i] = dec
	}
	return out, nil
}

func (c *Codec) decodeValue(ctx context.Context, v ir.IRValue, path string) (any, error) {
	switch val := v.(type) {
	case nil, ir.IRNull:
		return nil, nil
	case ir.IRBool:
		return bool(val), nil
	case ir.IRString:
		return string(val), nil
	case ir.IRInt:
		return int64(val), nil

	case ir.IRArray:
		out := make([]any, len(val))
		for i, elem := range val {
			dec, err := c.decodeValue(ctx, elem, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = dec
		}
		return out, nil

	case ir.IRObject:
		out := make(map[string]any, len(val))
		for _, k := range val.SortedKeys() {
			dec, err := c.decodeValue(ctx, val[k], path+"."+k)
			if err != nil {
				return nil, err
			}
			out[k] = dec
		}
		return out, nil

	case ir.IREntity:
		return c.fetchEntity(ctx, val, path)

	case ir.IREnum:
		return c.resolveEnum(val, path)

	default:
		return nil, errorAt(ErrCodeUnsupportedType, path, "unknown value type %T", v)
	}
}

func (c *Codec) fetchEntity(ctx context.Context, ref ir.IREntity, path string) (any, error) {
	c.mu.RLock()
	fetch, ok := c.entities[ref.Type]
	c.mu.RUnlock()
	if !ok {
		return nil, errorAt(ErrCodeUnknownEntityType, path, "no fetcher registered for entity type %q", ref.Type)
	}

	row, err := fetch(ctx, ref.ID)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, sql.ErrNoRows) {
			slog.Debug("entity reference resolved to nil",
				"event", "entity_missing",
				"type", ref.Type,
				"id", ref.ID,
			)
			return nil, nil
		}
		return nil, fmt.Errorf("fetch %s %d: %w", ref.Type, ref.ID, err)
	}
	return row, nil
}

func (c *Codec) resolveEnum(ref ir.IREnum, path string) (any, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	set, ok := c.enums[ref.Set]
	if !ok {
		return nil, errorAt(ErrCodeEnumUnresolved, path, "unknown enum set %q", ref.Set)
	}
	member, ok := set[ref.Member]
	if !ok {
		return nil, errorAt(ErrCodeEnumUnresolved, path, "enum set %q has no member %q", ref.Set, ref.Member)
	}
	return member, nil
}

package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// IRValue is a sealed interface over the plain-value tree stored for
// snapshots and action arguments.
// Only IRNull, IRString, IRInt, IRBool, IRArray, IRObject, IREntity and IREnum
// implement it. There is no float variant: floats break replay determinism.
type IRValue interface {
	irValue() // Sealed - only these types implement it
}

// IRNull represents a JSON null value.
type IRNull struct{}

func (IRNull) irValue() {}

// MarshalJSON implements json.Marshaler for IRNull.
func (IRNull) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// IRString represents a string value.
type IRString string

func (IRString) irValue() {}

// IRInt represents an integer value. Always int64.
type IRInt int64

func (IRInt) irValue() {}

// IRBool represents a boolean value.
type IRBool bool

func (IRBool) irValue() {}

// IRArray is an ordered sequence of values.
type IRArray []IRValue

func (IRArray) irValue() {}

// IRObject is a keyed mapping of values.
// Use SortedKeys() for deterministic iteration.
type IRObject map[string]IRValue

func (IRObject) irValue() {}

// IREntity references a persisted row by type and id.
// Decoding re-fetches the row; it is never embedded.
type IREntity struct {
	Type string
	ID   int64
}

func (IREntity) irValue() {}

// IREnum references a member of a closed, named set.
// Set is a dotted path such as "cards.Card".
type IREnum struct {
	Set    string
	Member string
}

func (IREnum) irValue() {}

// Wire tags for the tagged object forms.
const (
	KindKey    = "kind"
	KindEntity = "entity"
	KindEnum   = "enum"
	KindMap    = "map"
)

// NewIRObjectFromPairs creates an IRObject from typed key-value pairs.
// Example: NewIRObjectFromPairs(O("name", IRString("cats")), O("seat", IRInt(0)))
func NewIRObjectFromPairs(pairs ...IRPair) IRObject {
	obj := make(IRObject, len(pairs))
	for _, p := range pairs {
		obj[p.Key] = p.Value
	}
	return obj
}

// IRPair represents a key-value pair for typed IRObject construction.
type IRPair struct {
	Key   string
	Value IRValue
}

// O is a shorthand for IRPair.
func O(key string, value IRValue) IRPair {
	return IRPair{Key: key, Value: value}
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings orders by UTF-8 bytes, which differs for astral characters.
func (obj IRObject) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// needsWrap reports whether a plain object must be wrapped in the map form
// to avoid being read back as a tagged reference.
func (obj IRObject) needsWrap() bool {
	_, ok := obj[KindKey]
	return ok
}

// taggedForm returns the object actually written to JSON for v.
// Entities, enums and plain objects carrying a "kind" key are rewritten;
// everything else is returned unchanged.
func taggedForm(v IRValue) IRValue {
	switch val := v.(type) {
	case IREntity:
		return IRObject{
			KindKey: IRString(KindEntity),
			"type":  IRString(val.Type),
			"id":    IRInt(val.ID),
		}
	case IREnum:
		return IRObject{
			KindKey:  IRString(KindEnum),
			"set":    IRString(val.Set),
			"member": IRString(val.Member),
		}
	case IRObject:
		if val.needsWrap() {
			return IRObject{
				KindKey:   IRString(KindMap),
				"entries": rawObject(val),
			}
		}
	}
	return v
}

// rawObject marks an object whose keys must be written verbatim even if one
// of them is "kind". Only used inside the map wrapper.
type rawObject IRObject

func (rawObject) irValue() {}

// UnmarshalJSON implements json.Unmarshaler for IRObject.
// The target is always a plain object; use UnmarshalIRValue to read tagged forms.
func (obj *IRObject) UnmarshalJSON(data []byte) error {
	v, err := unmarshalIRValue(data)
	if err != nil {
		return err
	}
	o, ok := v.(IRObject)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*obj = o
	return nil
}

// UnmarshalJSON implements json.Unmarshaler for IRArray.
func (arr *IRArray) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*arr = make(IRArray, len(raw))
	for i, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return fmt.Errorf("IRArray index %d: %w", i, err)
		}
		(*arr)[i] = val
	}
	return nil
}

// unmarshalIRValue decodes a JSON value into the appropriate IRValue type.
// Floats are rejected.
func unmarshalIRValue(data []byte) (IRValue, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, err
		}
		return IRString(s), nil

	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return IRBool(b), nil

	case 'n':
		return IRNull{}, nil

	case '[':
		var arr IRArray
		if err := json.Unmarshal(data, &arr); err != nil {
			return nil, err
		}
		return arr, nil

	case '{':
		return unmarshalObject(data)

	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return nil, err
		}
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats not allowed in IR: %s", string(data))
		}
		return IRInt(i), nil
	}
}

// unmarshalObject reads an object, resolving the tagged forms.
func unmarshalObject(data []byte) (IRValue, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	kindRaw, tagged := raw[KindKey]
	if !tagged {
		return readEntries(raw)
	}

	var kind string
	if err := json.Unmarshal(kindRaw, &kind); err != nil {
		return nil, fmt.Errorf("object %q must be a string: %w", KindKey, err)
	}

	switch kind {
	case KindEntity:
		var ref struct {
			Type string `json:"type"`
			ID   int64  `json:"id"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("entity reference: %w", err)
		}
		if ref.Type == "" {
			return nil, fmt.Errorf("entity reference missing type")
		}
		return IREntity{Type: ref.Type, ID: ref.ID}, nil

	case KindEnum:
		var ref struct {
			Set    string `json:"set"`
			Member string `json:"member"`
		}
		if err := json.Unmarshal(data, &ref); err != nil {
			return nil, fmt.Errorf("enum reference: %w", err)
		}
		if ref.Set == "" || ref.Member == "" {
			return nil, fmt.Errorf("enum reference needs set and member")
		}
		return IREnum{Set: ref.Set, Member: ref.Member}, nil

	case KindMap:
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw["entries"], &entries); err != nil {
			return nil, fmt.Errorf("map entries: %w", err)
		}
		return readEntries(entries)

	default:
		return nil, fmt.Errorf("unknown object kind %q", kind)
	}
}

func readEntries(raw map[string]json.RawMessage) (IRObject, error) {
	obj := make(IRObject, len(raw))
	for k, v := range raw {
		val, err := unmarshalIRValue(v)
		if err != nil {
			return nil, fmt.Errorf("IRObject key %q: %w", k, err)
		}
		obj[k] = val
	}
	return obj, nil
}

// MarshalJSON implements json.Marshaler for IRObject with sorted keys.
// Strings are not normalized, so this is the form used for storage and digests.
func (obj IRObject) MarshalJSON() ([]byte, error) {
	return MarshalIRValue(obj)
}

// MarshalJSON implements json.Marshaler for IREntity.
func (e IREntity) MarshalJSON() ([]byte, error) {
	return MarshalIRValue(e)
}

// MarshalJSON implements json.Marshaler for IREnum.
func (e IREnum) MarshalJSON() ([]byte, error) {
	return MarshalIRValue(e)
}

// MarshalIRValue marshals an IRValue to JSON bytes.
func MarshalIRValue(v IRValue) ([]byte, error) {
	switch val := taggedForm(v).(type) {
	case nil, IRNull:
		return []byte("null"), nil
	case IRString:
		return json.Marshal(string(val))
	case IRInt:
		return json.Marshal(int64(val))
	case IRBool:
		return json.Marshal(bool(val))
	case IRArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := MarshalIRValue(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case IRObject:
		return marshalEntries(val)
	case rawObject:
		return marshalEntries(IRObject(val))
	default:
		return nil, fmt.Errorf("unknown IRValue type: %T", v)
	}
}

func marshalEntries(obj IRObject) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalIRValue(obj[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalIRValue deserializes JSON into an IRValue, resolving tagged
// entity, enum and map forms. Floats are rejected.
func UnmarshalIRValue(data []byte) (IRValue, error) {
	return unmarshalIRValue(data)
}

// FromAny converts generic decoded data (as produced by encoding/json or
// yaml.v3) into an IRValue. Tagged objects are resolved the same way
// UnmarshalIRValue resolves them.
func FromAny(v any) (IRValue, error) {
	switch val := v.(type) {
	case nil:
		return IRNull{}, nil
	case IRValue:
		return val, nil
	case bool:
		return IRBool(val), nil
	case string:
		return IRString(val), nil
	case int:
		return IRInt(val), nil
	case int64:
		return IRInt(val), nil
	case uint64:
		return IRInt(int64(val)), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("floats not allowed in IR: %s", val)
		}
		return IRInt(n), nil
	case float64:
		if val != float64(int64(val)) {
			return nil, fmt.Errorf("floats not allowed in IR: %v", val)
		}
		return IRInt(int64(val)), nil
	case []any:
		arr := make(IRArray, len(val))
		for i, elem := range val {
			irElem, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr[i] = irElem
		}
		return arr, nil
	case map[string]any:
		// Route through JSON so tagged forms resolve in one place.
		data, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("object: %w", err)
		}
		return unmarshalIRValue(data)
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

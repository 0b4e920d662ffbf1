package codec

import (
	"fmt"
	"math"
	"reflect"
)

// As converts a decoded value to the type a rule function expects.
//
// nil converts to the zero value. int64 converts to any integer type that
// can hold it. []any and map[string]any convert element-wise to typed slices
// and maps. Named string types accept plain strings.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}

	out, err := convert(reflect.ValueOf(v), reflect.TypeOf((*T)(nil)).Elem(), "$")
	if err != nil {
		return zero, err
	}
	return out.Interface().(T), nil
}

func convert(src reflect.Value, dst reflect.Type, path string) (reflect.Value, error) {
	if !src.IsValid() {
		return reflect.Zero(dst), nil
	}
	if src.Kind() == reflect.Interface {
		if src.IsNil() {
			return reflect.Zero(dst), nil
		}
		src = src.Elem()
	}
	if src.Type().AssignableTo(dst) {
		return src, nil
	}

	switch dst.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isInt(src) {
			break
		}
		n := src.Int()
		out := reflect.New(dst).Elem()
		if out.OverflowInt(n) {
			return reflect.Value{}, errorAt(ErrCodeConversion, path, "%d overflows %s", n, dst)
		}
		out.SetInt(n)
		return out, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !isInt(src) || src.Int() < 0 {
			break
		}
		n := uint64(src.Int())
		out := reflect.New(dst).Elem()
		if out.OverflowUint(n) || n > math.MaxInt64 {
			return reflect.Value{}, errorAt(ErrCodeConversion, path, "%d overflows %s", n, dst)
		}
		out.SetUint(n)
		return out, nil

	case reflect.String:
		if src.Kind() == reflect.String {
			return src.Convert(dst), nil
		}

	case reflect.Slice:
		if src.Kind() != reflect.Slice {
			break
		}
		out := reflect.MakeSlice(dst, src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			elem, err := convert(src.Index(i), dst.Elem(), fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return reflect.Value{}, err
			}
			out.Index(i).Set(elem)
		}
		return out, nil

	case reflect.Map:
		if src.Kind() != reflect.Map || dst.Key().Kind() != reflect.String {
			break
		}
		out := reflect.MakeMapWithSize(dst, src.Len())
		iter := src.MapRange()
		for iter.Next() {
			key := iter.Key().String()
			elem, err := convert(iter.Value(), dst.Elem(), path+"."+key)
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(reflect.ValueOf(key).Convert(dst.Key()), elem)
		}
		return out, nil
	}

	return reflect.Value{}, errorAt(ErrCodeConversion, path, "cannot convert %s to %s", src.Type(), dst)
}

func isInt(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return true
	}
	return false
}

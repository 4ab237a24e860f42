package condition

import (
	"encoding/json"
	"reflect"
	"strconv"
)

// Compare applies op to left and right. Numbers of any Go numeric kind (and
// json.Number) compare numerically, strings order lexicographically, and other
// values only support equality.
func Compare(left any, op Op, right any) bool {
	switch op {
	case Eq:
		return equal(left, right)
	case Ne:
		return !equal(left, right)
	case Lt, Le, Gt, Ge:
		return compareOrdered(left, op, right)
	default:
		return false
	}
}

func equal(a, b any) bool {
	x, aNum := ToFloat(a)
	y, bNum := ToFloat(b)
	if aNum || bNum {
		return aNum && bNum && x == y
	}
	return reflect.DeepEqual(a, b)
}

func compareOrdered(cur any, op Op, want any) bool {
	if a, ok := ToFloat(cur); ok {
		b, ok := ToFloat(want)
		if !ok {
			return false
		}
		return ordered(a, op, b)
	}
	as, aok := cur.(string)
	bs, bok := want.(string)
	if aok && bok {
		return ordered(as, op, bs)
	}
	return false
}

func ordered[T float64 | string](a T, op Op, b T) bool {
	switch op {
	case Lt:
		return a < b
	case Le:
		return a <= b
	case Gt:
		return a > b
	case Ge:
		return a >= b
	default:
		return false
	}
}

// ToFloat converts numeric values to float64. Strings are not numbers here;
// only json.Number is parsed.
func ToFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	if n, ok := v.(json.Number); ok {
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case isIntLike(rv.Kind()):
		return float64(toInt64(rv)), true
	case rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64:
		return rv.Float(), true
	default:
		return 0, false
	}
}

func isIntLike(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func toInt64(v reflect.Value) int64 {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint())
	default:
		return 0
	}
}

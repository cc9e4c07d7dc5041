package evdump

import (
	"io"
	"strconv"
)

// Canonical builtin type names. Downstream consumers parse these, so they
// follow the fixed table rather than Go spelling.
const (
	nameBool      = "bool"
	nameChar      = "char"
	nameUChar     = "unsigned char"
	nameShort     = "short"
	nameUShort    = "unsigned short"
	nameInt       = "int"
	nameUInt      = "unsigned int"
	nameLong      = "long"
	nameULong     = "unsigned long"
	nameLongLong  = "long long"
	nameULongLong = "unsigned long long"
	nameFloat     = "float"
	nameDouble    = "double"
)

// BuiltinName returns the canonical name of a builtin scalar value, or
// false when v is not one.
func BuiltinName(v any) (string, bool) {
	name, _, ok := formatBuiltin(v)
	return name, ok
}

func formatBuiltin(v any) (name, text string, ok bool) {
	switch x := v.(type) {
	case bool:
		if x {
			return nameBool, "true", true
		}
		return nameBool, "false", true
	case int8:
		return nameChar, strconv.Itoa(int(x)), true
	case uint8:
		return nameUChar, strconv.FormatUint(uint64(x), 10), true
	case int16:
		return nameShort, strconv.FormatInt(int64(x), 10), true
	case uint16:
		return nameUShort, strconv.FormatUint(uint64(x), 10), true
	case int32:
		return nameInt, strconv.FormatInt(int64(x), 10), true
	case uint32:
		return nameUInt, strconv.FormatUint(uint64(x), 10), true
	case int:
		return nameLong, strconv.Itoa(x), true
	case uint:
		return nameULong, strconv.FormatUint(uint64(x), 10), true
	case int64:
		return nameLongLong, strconv.FormatInt(x, 10), true
	case uint64:
		return nameULongLong, strconv.FormatUint(x, 10), true
	case float32:
		return nameFloat, strconv.FormatFloat(float64(x), 'g', -1, 32), true
	case float64:
		return nameDouble, strconv.FormatFloat(x, 'g', -1, 64), true
	default:
		return "", "", false
	}
}

// printAsBuiltin writes one scalar line and reports whether v was a builtin.
// Nothing is written otherwise.
func printAsBuiltin(w io.Writer, prefix, suffix string, v Value, indent string) bool {
	name, text, ok := formatBuiltin(v.Interface())
	if !ok {
		return false
	}
	io.WriteString(w, indent+prefix+name+nameValueSep+text+suffix+"\n")
	return true
}

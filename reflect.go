package evdump

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var typeInfoCache sync.Map

var predeclaredTypes = map[reflect.Kind]reflect.Type{
	reflect.Bool:    reflect.TypeFor[bool](),
	reflect.Int:     reflect.TypeFor[int](),
	reflect.Int8:    reflect.TypeFor[int8](),
	reflect.Int16:   reflect.TypeFor[int16](),
	reflect.Int32:   reflect.TypeFor[int32](),
	reflect.Int64:   reflect.TypeFor[int64](),
	reflect.Uint:    reflect.TypeFor[uint](),
	reflect.Uint8:   reflect.TypeFor[uint8](),
	reflect.Uint16:  reflect.TypeFor[uint16](),
	reflect.Uint32:  reflect.TypeFor[uint32](),
	reflect.Uint64:  reflect.TypeFor[uint64](),
	reflect.Float32: reflect.TypeFor[float32](),
	reflect.Float64: reflect.TypeFor[float64](),
	reflect.String:  reflect.TypeFor[string](),
}

type typeInfo struct {
	typ     reflect.Type
	typedef reflect.Type
	bases   []baseInfo
	members []Member
	ops     map[string]Operation
}

type baseInfo struct {
	index int
	ptr   bool
	typ   reflect.Type
}

// TypeOf returns the introspection handle for a Go type.
func TypeOf(typ reflect.Type) Type {
	return reflectType(typ)
}

// ValueOf wraps an arbitrary Go value. It returns nil for a nil interface.
func ValueOf(v any) Value {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	return wrapValue(rv)
}

func reflectType(typ reflect.Type) *typeInfo {
	if v, ok := typeInfoCache.Load(typ); ok {
		return v.(*typeInfo)
	}
	info := reflectTypeWithoutCache(typ)
	actual, _ := typeInfoCache.LoadOrStore(typ, info)
	return actual.(*typeInfo)
}

func reflectTypeWithoutCache(typ reflect.Type) *typeInfo {
	info := &typeInfo{
		typ: typ,
		ops: make(map[string]Operation),
	}
	if pt, ok := predeclaredTypes[typ.Kind()]; ok && pt != typ {
		info.typedef = pt
	}

	if typ.Kind() == reflect.Struct {
		for i := range typ.NumField() {
			f := typ.Field(i)
			// Embedded structs are bases even when their type is unexported;
			// their exported fields stay readable through reflect.
			if f.Anonymous {
				if bt, ptr, ok := embeddedStruct(f.Type); ok {
					info.bases = append(info.bases, baseInfo{index: i, ptr: ptr, typ: bt})
					continue
				}
			}
			if !f.IsExported() || isTransient(f) {
				continue
			}
			info.members = append(info.members, &fieldMember{index: i, field: f})
		}
	}

	for _, name := range []string{OpSize, OpAt, OpBegin, OpEnd, OpNotEqual, OpNext, OpDeref} {
		if op, ok := lookupMethod(typ, name); ok {
			info.ops[name] = op
		}
	}
	switch typ.Kind() {
	case reflect.Slice, reflect.Array, reflect.String:
		addOp(info.ops, sizeOp{})
		addOp(info.ops, atOp{})
	case reflect.Map:
		addOp(info.ops, mapBoundOp{name: OpBegin})
		addOp(info.ops, mapBoundOp{name: OpEnd, end: true})
	}
	return info
}

func addOp(ops map[string]Operation, op Operation) {
	if _, found := ops[op.Name()]; !found {
		ops[op.Name()] = op
	}
}

func embeddedStruct(typ reflect.Type) (reflect.Type, bool, bool) {
	if typ.Kind() == reflect.Struct {
		return typ, false, true
	}
	if typ.Kind() == reflect.Pointer && typ.Elem().Kind() == reflect.Struct {
		return typ.Elem(), true, true
	}
	return nil, false, false
}

// isTransient reports fields tagged `edm:"-"` or `edm:",transient"`.
func isTransient(f reflect.StructField) bool {
	tag, ok := f.Tag.Lookup("edm")
	if !ok {
		return false
	}
	name, opts, _ := strings.Cut(tag, ",")
	if name == "-" && opts == "" {
		return true
	}
	for _, opt := range strings.Split(opts, ",") {
		if opt == "transient" {
			return true
		}
	}
	return false
}

func (ti *typeInfo) Name() string {
	return ti.typ.String()
}

func (ti *typeInfo) IsPointer() bool {
	return ti.typ.Kind() == reflect.Pointer
}

func (ti *typeInfo) IsTypedef() bool {
	return ti.typedef != nil
}

func (ti *typeInfo) Target() Type {
	if ti.typ.Kind() == reflect.Pointer {
		return reflectType(ti.typ.Elem())
	}
	if ti.typedef != nil {
		return reflectType(ti.typedef)
	}
	return nil
}

func (ti *typeInfo) Bases() []Type {
	if len(ti.bases) == 0 {
		return nil
	}
	result := make([]Type, len(ti.bases))
	for i, b := range ti.bases {
		result[i] = reflectType(b.typ)
	}
	return result
}

func (ti *typeInfo) DataMembers() []Member {
	return ti.members
}

func (ti *typeInfo) Operation(name string) (Operation, bool) {
	op, ok := ti.ops[name]
	return op, ok
}

func (ti *typeInfo) String() string {
	return ti.Name()
}

type fieldMember struct {
	index int
	field reflect.StructField
}

func (m *fieldMember) Name() string { return m.field.Name }
func (m *fieldMember) Type() Type   { return reflectType(m.field.Type) }

func (m *fieldMember) Get(obj Value) (result Value, err error) {
	ov, ok := obj.(*rvalue)
	if !ok || ov.v.Kind() != reflect.Struct {
		return nil, memberErrf(obj.Type(), m.field.Name, nil, "not a struct value")
	}
	defer func() {
		if e := recover(); e != nil {
			result, err = nil, memberErrf(obj.Type(), m.field.Name, panicErr(e), "read failed")
		}
	}()
	fv := ov.v.Field(m.index)
	if fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			return nil, memberErrf(obj.Type(), m.field.Name, nil, "cannot resolve type of nil %v", fv.Type())
		}
		fv = fv.Elem()
	}
	return wrapValue(fv), nil
}

type rvalue struct {
	v reflect.Value
	t *typeInfo
}

// wrapValue makes v addressable so that pointer-receiver operations and
// typedef views keep referring to the same memory.
func wrapValue(v reflect.Value) *rvalue {
	if !v.CanAddr() {
		n := reflect.New(v.Type()).Elem()
		n.Set(v)
		v = n
	}
	return &rvalue{v: v, t: reflectType(v.Type())}
}

func (v *rvalue) Type() Type { return v.t }

func (v *rvalue) IsNil() bool {
	return v.v.Kind() == reflect.Pointer && v.v.IsNil()
}

func (v *rvalue) Interface() any {
	if !v.v.CanInterface() {
		return nil
	}
	return v.v.Interface()
}

func (v *rvalue) Elem() (Value, error) {
	if v.v.Kind() != reflect.Pointer {
		return nil, memberErrf(v.t, "", nil, "not a pointer")
	}
	if v.v.IsNil() {
		return nil, memberErrf(v.t, "", nil, "nil pointer")
	}
	e := v.v.Elem()
	if e.Kind() == reflect.Interface {
		if e.IsNil() {
			return nil, memberErrf(v.t, "", nil, "cannot resolve type of nil %v", e.Type())
		}
		e = e.Elem()
	}
	return wrapValue(e), nil
}

func (v *rvalue) As(t Type) (Value, error) {
	target, ok := t.(*typeInfo)
	if !ok {
		return nil, memberErrf(v.t, "", nil, "foreign type %v", t)
	}
	if target.typ == v.v.Type() {
		return v, nil
	}
	if v.t.typedef != nil && target.typ == v.t.typedef {
		return &rvalue{v: reflect.NewAt(target.typ, v.v.Addr().UnsafePointer()).Elem(), t: target}, nil
	}
	for _, b := range v.t.bases {
		if b.typ != target.typ {
			continue
		}
		f := v.v.Field(b.index)
		if b.ptr {
			if f.IsNil() {
				return nil, memberErrf(v.t, target.Name(), nil, "nil base")
			}
			f = f.Elem()
		}
		return wrapValue(f), nil
	}
	return nil, memberErrf(v.t, "", nil, "%v is neither a base nor a typedef target", target.Name())
}

func (v *rvalue) String() string {
	return fmt.Sprintf("%v(%v)", v.t.Name(), v.Interface())
}

func panicErr(e any) error {
	if err, ok := e.(error); ok {
		return err
	}
	return fmt.Errorf("%v", e)
}

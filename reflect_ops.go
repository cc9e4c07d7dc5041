package evdump

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

var errorType = reflect.TypeFor[error]()

// Pair is the element a map cursor yields.
type Pair struct {
	First  any
	Second any
}

type methodOp struct {
	name string
}

func lookupMethod(typ reflect.Type, name string) (Operation, bool) {
	if _, ok := typ.MethodByName(name); ok {
		return methodOp{name}, true
	}
	if typ.Kind() != reflect.Pointer && typ.Kind() != reflect.Interface {
		if _, ok := reflect.PointerTo(typ).MethodByName(name); ok {
			return methodOp{name}, true
		}
	}
	return nil, false
}

func (op methodOp) Name() string { return op.name }

func (op methodOp) Invoke(recv Value, args ...Value) (result Value, err error) {
	rv, err := reflectRecv(recv, op.name)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := recover(); e != nil {
			result, err = nil, memberErrf(recv.Type(), op.name, panicErr(e), "invocation failed")
		}
	}()

	m := rv.MethodByName(op.name)
	if !m.IsValid() && rv.CanAddr() {
		m = rv.Addr().MethodByName(op.name)
	}
	if !m.IsValid() {
		return nil, memberErrf(recv.Type(), op.name, nil, "no such method")
	}
	mt := m.Type()
	if mt.NumIn() != len(args) {
		return nil, memberErrf(recv.Type(), op.name, nil, "takes %d arguments, got %d", mt.NumIn(), len(args))
	}
	in := make([]reflect.Value, len(args))
	for i, arg := range args {
		av, err := reflectRecv(arg, op.name)
		if err != nil {
			return nil, err
		}
		pt := mt.In(i)
		switch {
		case av.Type().AssignableTo(pt):
		case av.Type().ConvertibleTo(pt):
			av = av.Convert(pt)
		default:
			return nil, memberErrf(recv.Type(), op.name, nil, "argument %d: cannot use %v as %v", i, av.Type(), pt)
		}
		in[i] = av
	}

	out := m.Call(in)
	if n := len(out); n > 0 && mt.Out(n-1) == errorType {
		if e := out[n-1]; !e.IsNil() {
			return nil, memberErrf(recv.Type(), op.name, e.Interface().(error), "invocation failed")
		}
		out = out[:n-1]
	}
	if len(out) == 0 {
		return nil, nil
	}
	return wrapValue(out[0]), nil
}

func reflectRecv(v Value, opName string) (reflect.Value, error) {
	rv, ok := v.(*rvalue)
	if !ok || rv == nil {
		return reflect.Value{}, memberErrf(nil, opName, nil, "foreign value %v", v)
	}
	return rv.v, nil
}

// sizeOp and atOp give slices, arrays and strings the indexable shape.
type sizeOp struct{}

func (sizeOp) Name() string { return OpSize }

func (sizeOp) Invoke(recv Value, args ...Value) (Value, error) {
	rv, err := reflectRecv(recv, OpSize)
	if err != nil {
		return nil, err
	}
	return wrapValue(reflect.ValueOf(uint(rv.Len()))), nil
}

type atOp struct{}

func (atOp) Name() string { return OpAt }

func (atOp) Invoke(recv Value, args ...Value) (Value, error) {
	rv, err := reflectRecv(recv, OpAt)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, memberErrf(recv.Type(), OpAt, nil, "takes 1 argument, got %d", len(args))
	}
	idx, ok := args[0].Interface().(uint)
	if !ok {
		return nil, memberErrf(recv.Type(), OpAt, nil, "index must be uint, got %v", args[0].Type().Name())
	}
	if idx >= uint(rv.Len()) {
		return nil, memberErrf(recv.Type(), OpAt, nil, "index %d out of range [0, %d)", idx, rv.Len())
	}
	e := rv.Index(int(idx))
	if e.Kind() == reflect.Interface && !e.IsNil() {
		e = e.Elem()
	}
	return wrapValue(e), nil
}

// mapBoundOp gives maps the iterator-pair shape. Keys are visited in sorted
// order so that output is stable.
type mapBoundOp struct {
	name string
	end  bool
}

func (op mapBoundOp) Name() string { return op.name }

func (op mapBoundOp) Invoke(recv Value, args ...Value) (Value, error) {
	rv, err := reflectRecv(recv, op.name)
	if err != nil {
		return nil, err
	}
	c := &mapCursor{m: rv}
	if op.end {
		c.pos = rv.Len()
	} else {
		c.keys = sortedKeys(rv)
	}
	return wrapValue(reflect.ValueOf(c)), nil
}

type mapCursor struct {
	m    reflect.Value
	keys []reflect.Value
	pos  int
}

func (c *mapCursor) NotEqual(other *mapCursor) bool {
	return c.pos != other.pos
}

func (c *mapCursor) Next() {
	c.pos++
}

func (c *mapCursor) Deref() Pair {
	if c.pos >= len(c.keys) {
		panic(fmt.Errorf("map cursor at %d dereferenced past %d keys", c.pos, len(c.keys)))
	}
	k := c.keys[c.pos]
	return Pair{First: k.Interface(), Second: c.m.MapIndex(k).Interface()}
}

func sortedKeys(m reflect.Value) []reflect.Value {
	keys := m.MapKeys()
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b reflect.Value) int {
	if a.Kind() == reflect.Interface {
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		b = b.Elem()
	}
	if a.Kind() == b.Kind() {
		switch a.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return cmp.Compare(a.Int(), b.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
			return cmp.Compare(a.Uint(), b.Uint())
		case reflect.Float32, reflect.Float64:
			return cmp.Compare(a.Float(), b.Float())
		case reflect.String:
			return cmp.Compare(a.String(), b.String())
		case reflect.Bool:
			return cmp.Compare(boolOrd(a.Bool()), boolOrd(b.Bool()))
		}
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolOrd(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"fmt"
	"reflect"
)

type EventID struct {
	Run   uint32 `msgpack:"r"`
	Lumi  uint32 `msgpack:"l"`
	Event uint64 `msgpack:"e"`
}

func (id EventID) String() string {
	return fmt.Sprintf("run: %d lumi: %d event: %d", id.Run, id.Lumi, id.Event)
}

// Timestamp is an opaque time value as recorded by the producer.
type Timestamp uint64

func (ts Timestamp) Value() uint64 { return uint64(ts) }

// ProductDesc identifies a product within an event.
type ProductDesc struct {
	Type     string
	Module   string
	Instance string
}

func (d ProductDesc) String() string {
	return d.Type + " " + d.Module + " " + d.Instance
}

type Event struct {
	ID   EventID
	Time Timestamp

	products []productRecord
	reg      *Registry
}

type eventRecord struct {
	ID       EventID         `msgpack:"id"`
	Time     Timestamp       `msgpack:"tm"`
	Products []productRecord `msgpack:"p"`
}

type productRecord struct {
	Type     string `msgpack:"t"`
	Module   string `msgpack:"m"`
	Instance string `msgpack:"i"`
	Data     []byte `msgpack:"d"`
}

func NewEvent(reg *Registry, id EventID, ts Timestamp) *Event {
	return &Event{ID: id, Time: ts, reg: reg}
}

func (ev *Event) record() *eventRecord {
	return &eventRecord{ID: ev.ID, Time: ev.Time, Products: ev.products}
}

// Put adds a product. Its type, or the type it points to, must be
// registered.
func (ev *Event) Put(module, instance string, product any) error {
	rv := reflect.ValueOf(product)
	if !rv.IsValid() {
		return fmt.Errorf("%s/%s: nil product", module, instance)
	}
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return fmt.Errorf("%s/%s: nil product", module, instance)
		}
		rv = rv.Elem()
	}
	name, ok := ev.reg.NameOf(rv.Type())
	if !ok {
		return fmt.Errorf("%s/%s: %v: %w", module, instance, rv.Type(), ErrUnknownType)
	}
	data, err := encodeValue(rv.Interface())
	if err != nil {
		return fmt.Errorf("%s/%s: %w", module, instance, err)
	}
	ev.products = append(ev.products, productRecord{
		Type:     name,
		Module:   module,
		Instance: instance,
		Data:     data,
	})
	return nil
}

// Products lists the products in the order they were put.
func (ev *Event) Products() []ProductDesc {
	result := make([]ProductDesc, len(ev.products))
	for i, p := range ev.products {
		result[i] = ProductDesc{Type: p.Type, Module: p.Module, Instance: p.Instance}
	}
	return result
}

// GetByLabel decodes the product of the given type name, module label and
// instance name. The result holds the product by value.
func (ev *Event) GetByLabel(typeName, module, instance string) (any, error) {
	typ, ok := ev.reg.Lookup(typeName)
	if !ok {
		return nil, fmt.Errorf("%q: %w", typeName, ErrUnknownType)
	}
	for _, p := range ev.products {
		if p.Type != typeName || p.Module != module || p.Instance != instance {
			continue
		}
		ptr := reflect.New(typ)
		if err := decodeValue(p.Data, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("%s %s/%s: %w", typeName, module, instance, err)
		}
		return ptr.Elem().Interface(), nil
	}
	return nil, fmt.Errorf("%s %s/%s: %w", typeName, module, instance, ErrProductNotFound)
}

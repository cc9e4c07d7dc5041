package evdump

import "github.com/andreyvit/evdump/store"

// RegisterBuiltins registers every builtin scalar type under its canonical
// name, plus string under "string", so that files holding plain values can
// be read without product-specific types.
func RegisterBuiltins(reg *store.Registry) {
	store.RegisterType[bool](reg, nameBool)
	store.RegisterType[int8](reg, nameChar)
	store.RegisterType[uint8](reg, nameUChar)
	store.RegisterType[int16](reg, nameShort)
	store.RegisterType[uint16](reg, nameUShort)
	store.RegisterType[int32](reg, nameInt)
	store.RegisterType[uint32](reg, nameUInt)
	store.RegisterType[int](reg, nameLong)
	store.RegisterType[uint](reg, nameULong)
	store.RegisterType[int64](reg, nameLongLong)
	store.RegisterType[uint64](reg, nameULongLong)
	store.RegisterType[float32](reg, nameFloat)
	store.RegisterType[float64](reg, nameDouble)
	store.RegisterType[string](reg, "string")
}

package store

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

func encodeValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.GetEncoder()
	enc.Reset(&buf)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		return nil, dataErrf(nil, 0, err, "failed to encode %T using MsgPack", v)
	}
	return buf.Bytes(), nil
}

func decodeValue(data []byte, ptr any) error {
	var r bytes.Reader
	r.Reset(data)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(ptr)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(data, 0, err, "failed to decode msgpack into %T", ptr)
	}
	return nil
}

package evdump

import (
	"io"
	"strconv"
)

// printAsContainer renders v as a container when its type exposes the
// indexable shape or, failing that, the iterator-pair shape. Only a
// begin/end type mismatch is returned as an error.
func (p *Printer) printAsContainer(w io.Writer, prefix, suffix string, v Value, indent string) (bool, error) {
	ok, err := p.printIndexable(w, prefix, suffix, v, indent)
	if err != nil || ok {
		return ok, err
	}
	return p.printIterable(w, prefix, suffix, v, indent)
}

func containerName(v Value) string {
	name := v.Type().Name()
	if name == "" {
		return unknownTypeName
	}
	return name
}

// printIndexable visits [0, Size()) through At. Any failed probe or
// invocation abandons the attempt; the body is buffered so nothing of an
// abandoned attempt reaches w.
func (p *Printer) printIndexable(w io.Writer, prefix, suffix string, v Value, indent string) (bool, error) {
	t := v.Type()
	sizeOp, ok := t.Operation(OpSize)
	if !ok {
		return false, nil
	}
	atOp, ok := t.Operation(OpAt)
	if !ok {
		return false, nil
	}
	sv, err := sizeOp.Invoke(v)
	if err != nil {
		p.debugf("evdump: %s.%s: %v", t.Name(), OpSize, err)
		return false, nil
	}
	if sv == nil {
		return false, nil
	}
	size, ok := sv.Interface().(uint)
	if !ok {
		p.debugf("evdump: %s.%s returns %s, not a size", t.Name(), OpSize, sv.Type().Name())
		return false, nil
	}

	buf := getBodyBuffer()
	defer releaseBodyBuffer(buf)
	buf.WriteString(indent + prefix + Escape(containerName(v)) + nameValueSep + "\n")
	buf.WriteString(indent + containerOpen + strconv.FormatUint(uint64(size), 10) + nameValueSep + "\n")
	elemIndent := indent + p.indent
	for i := uint(0); i != size; i++ {
		ev, err := atOp.Invoke(v, ValueOf(i))
		if err != nil {
			p.debugf("evdump: %s.%s(%d): %v", t.Name(), OpAt, i, err)
			return false, nil
		}
		if ev == nil {
			return false, nil
		}
		if err := p.printObject(buf, ObjectOpen, ObjectClose, ev, elemIndent); err != nil {
			return false, err
		}
	}
	buf.WriteString(indent + containerClose + "\n")
	buf.WriteString(indent + suffix + "\n")
	w.Write(buf.Bytes())
	return true, nil
}

// printIterable walks Begin() to End(). The element count is only known
// after the walk, so the body is buffered and written after the header.
func (p *Printer) printIterable(w io.Writer, prefix, suffix string, v Value, indent string) (bool, error) {
	t := v.Type()
	beginOp, ok := t.Operation(OpBegin)
	if !ok {
		return false, nil
	}
	endOp, ok := t.Operation(OpEnd)
	if !ok {
		return false, nil
	}
	begin, err := beginOp.Invoke(v)
	if err != nil || begin == nil {
		p.debugf("evdump: %s.%s: %v", t.Name(), OpBegin, err)
		return false, nil
	}
	end, err := endOp.Invoke(v)
	if err != nil || end == nil {
		p.debugf("evdump: %s.%s: %v", t.Name(), OpEnd, err)
		return false, nil
	}
	if begin.Type() != end.Type() {
		return false, &ShapeError{Container: t.Name(), Begin: begin.Type().Name(), End: end.Type().Name()}
	}

	it := begin.Type()
	neOp, ok := it.Operation(OpNotEqual)
	if !ok {
		return false, nil
	}
	nextOp, ok := it.Operation(OpNext)
	if !ok {
		return false, nil
	}
	derefOp, ok := it.Operation(OpDeref)
	if !ok {
		return false, nil
	}

	body := getBodyBuffer()
	defer releaseBodyBuffer(body)
	var size int
	elemIndent := indent + p.indent
	for ; ; size++ {
		cv, err := neOp.Invoke(begin, end)
		if err != nil || cv == nil {
			p.debugf("evdump: %s.%s: %v", it.Name(), OpNotEqual, err)
			return false, nil
		}
		more, ok := cv.Interface().(bool)
		if !ok {
			return false, nil
		}
		if !more {
			break
		}
		ev, err := derefOp.Invoke(begin)
		if err != nil || ev == nil {
			p.debugf("evdump: %s.%s: %v", it.Name(), OpDeref, err)
			return false, nil
		}
		if err := p.printObject(body, ObjectOpen, ObjectClose, ev, elemIndent); err != nil {
			return false, err
		}
		if _, err := nextOp.Invoke(begin); err != nil {
			p.debugf("evdump: %s.%s: %v", it.Name(), OpNext, err)
			return false, nil
		}
	}

	io.WriteString(w, indent+prefix+Escape(containerName(v))+nameValueSep+"\n")
	io.WriteString(w, indent+containerOpen+strconv.Itoa(size)+nameValueSep+"\n")
	w.Write(body.Bytes())
	io.WriteString(w, indent+containerClose+"\n")
	io.WriteString(w, indent+suffix+"\n")
	return true, nil
}

func (p *Printer) debugf(format string, args ...any) {
	if p.verbose {
		p.logf(format, args...)
	}
}

package evdump

import (
	"io"
	"slices"
	"strconv"
)

const (
	ObjectOpen  = "<object type=\""
	ObjectClose = "</object>"

	nameValueSep   = "\">"
	containerOpen  = "<container size=\""
	containerClose = "</container>"
	memberOpen     = "<datamember name=\""
	memberType     = "\" type=\""
	memberClose    = "</datamember>"

	unknownTypeName = "{unknown}"

	DefaultIndent = "  "
)

type Options struct {
	// Indent is appended to the indentation at every nesting level.
	Indent  string
	Logf    func(format string, args ...any)
	Verbose bool
}

// Printer renders runtime values as tagged text. A Printer holds no per-call
// state and may be shared.
type Printer struct {
	indent  string
	logf    func(format string, args ...any)
	verbose bool
}

func NewPrinter(opt Options) *Printer {
	if opt.Indent == "" {
		opt.Indent = DefaultIndent
	}
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	return &Printer{
		indent:  opt.Indent,
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}
}

// Print writes x as a top-level object block.
func (p *Printer) Print(w io.Writer, x any) error {
	return p.PrintObject(w, ObjectOpen, ObjectClose, ValueOf(x), "")
}

// PrintObject writes a self-contained block for v: prefix, the type name of
// v, the body, then suffix, every line starting with indent. All decisions
// follow the runtime type of v.
//
// The only errors are *ShapeError, which aborts the whole call, and write
// errors of w. Members that cannot be read are reported inline.
func (p *Printer) PrintObject(w io.Writer, prefix, suffix string, v Value, indent string) error {
	if v == nil {
		return ErrNilValue
	}
	ew, ok := w.(*errWriter)
	if !ok {
		ew = &errWriter{w: w}
	}
	if err := p.printObject(ew, prefix, suffix, v, indent); err != nil {
		return err
	}
	return ew.err
}

func (p *Printer) printObject(w io.Writer, prefix, suffix string, v Value, indent string) error {
	t := v.Type()
	if t.IsPointer() {
		io.WriteString(w, indent+prefix+Escape(t.Name())+nameValueSep+"\n")
		inner := indent + p.indent
		var size int
		if !v.IsNil() {
			size = 1
		}
		io.WriteString(w, inner+containerOpen+strconv.Itoa(size)+nameValueSep+"\n")
		if size != 0 {
			p.printPointee(w, v, inner+p.indent)
		}
		io.WriteString(w, inner+containerClose+"\n")
		io.WriteString(w, indent+suffix+"\n")
		return nil
	}

	typeName := t.Name()
	if typeName == "" {
		typeName = unknownTypeName
	}

	obj := v
	if t.IsTypedef() {
		if tv, err := v.As(t.Target()); err == nil {
			obj = tv
		} else {
			p.logf("evdump: cannot unwrap typedef %s: %v", typeName, err)
		}
	}

	if printAsBuiltin(w, prefix, suffix, obj, indent) {
		return nil
	}
	if ok, err := p.printAsContainer(w, prefix, suffix, obj, indent); err != nil {
		return err
	} else if ok {
		return nil
	}

	io.WriteString(w, indent+prefix+Escape(typeName)+nameValueSep+"\n")
	if err := p.printDataMembers(w, obj, obj.Type(), indent+p.indent, nil); err != nil {
		return err
	}
	io.WriteString(w, indent+suffix+"\n")
	return nil
}

// printPointee writes an empty object shell named after the pointee's
// dynamic type.
func (p *Printer) printPointee(w io.Writer, ptr Value, indent string) {
	elem, err := ptr.Elem()
	if err != nil {
		p.memberFailed(w, indent, "*", err)
		return
	}
	name := elem.Type().Name()
	if name == "" {
		name = unknownTypeName
	}
	io.WriteString(w, indent+ObjectOpen+Escape(name)+nameValueSep+"\n")
	io.WriteString(w, indent+ObjectClose+"\n")
}

// printDataMembers prints the members of every base of t (each base with
// its own bases first), then the members declared by t itself. outer holds
// the types whose bases are being expanded above t.
func (p *Printer) printDataMembers(w io.Writer, obj Value, t Type, indent string, outer []Type) error {
	outer = append(outer, t)
	for _, base := range t.Bases() {
		if slices.Contains(outer, base) {
			p.memberFailed(w, indent, base.Name(), memberErrf(t, base.Name(), nil, "recursive base"))
			continue
		}
		bv, err := obj.As(base)
		if err != nil {
			p.memberFailed(w, indent, base.Name(), err)
			continue
		}
		if err := p.printDataMembers(w, bv, base, indent, outer); err != nil {
			return err
		}
	}

	for _, m := range t.DataMembers() {
		mv, err := m.Get(obj)
		if err != nil {
			p.memberFailed(w, indent, m.Name(), err)
			continue
		}
		if mv == nil {
			p.memberFailed(w, indent, m.Name(), memberErrf(t, m.Name(), nil, "no value"))
			continue
		}
		if err := p.printObject(w, memberOpen+m.Name()+memberType, memberClose, mv, indent); err != nil {
			if isFatal(err) {
				return err
			}
			p.memberFailed(w, indent, m.Name(), err)
		}
	}
	return nil
}

func (p *Printer) memberFailed(w io.Writer, indent, name string, err error) {
	io.WriteString(w, indent+name+" <exception caught("+err.Error()+")>\n")
	p.logf("evdump: %s: %v", name, err)
}

// errWriter remembers the first write error and drops everything after it.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(b []byte) (int, error) {
	if ew.err != nil {
		return len(b), nil
	}
	n, err := ew.w.Write(b)
	if err != nil {
		ew.err = err
	}
	return n, nil
}

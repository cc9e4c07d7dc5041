package evdump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/andreyvit/evdump/store"
)

type OutputOptions struct {
	Options

	// Select lists "module:instance" patterns (path.Match syntax) of the
	// products to write. An empty list selects every product.
	Select []string

	// Diag receives operator diagnostics such as unknown product types.
	// Defaults to os.Stdout.
	Diag io.Writer
}

type selector []string

func (sel selector) match(d store.ProductDesc) bool {
	if len(sel) == 0 {
		return true
	}
	name := d.Module + ":" + d.Instance
	for _, pattern := range sel {
		if !strings.Contains(pattern, ":") {
			pattern += ":*"
		}
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (opt *OutputOptions) validate() error {
	if opt.Diag == nil {
		opt.Diag = os.Stdout
	}
	if opt.Indent == "" {
		opt.Indent = DefaultIndent
	}
	for _, pattern := range opt.Select {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("select %q: %w", pattern, err)
		}
	}
	return nil
}

// XMLOutput writes events as a <cmsdata> document, one <event> per event
// and one <product> per selected product.
type XMLOutput struct {
	w      io.Writer
	p      *Printer
	indent string
	sel    selector
	diag   io.Writer
	events int
}

func NewXMLOutput(w io.Writer, opt OutputOptions) (*XMLOutput, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	o := &XMLOutput{
		w:      w,
		p:      NewPrinter(opt.Options),
		indent: opt.Indent,
		sel:    selector(opt.Select),
		diag:   opt.Diag,
	}
	if _, err := io.WriteString(w, "<cmsdata>\n"); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *XMLOutput) WriteEvent(ev *store.Event) error {
	ew := &errWriter{w: o.w}
	fmt.Fprintf(ew, "<event run=\"%d\" number=\"%d\" >\n", ev.ID.Run, ev.ID.Event)
	for _, d := range ev.Products() {
		if !o.sel.match(d) {
			continue
		}
		fmt.Fprintf(ew, "<product type=\"%s\" module=\"%s\" productInstance=\"%s\">\n", Escape(d.Type), Escape(d.Module), Escape(d.Instance))
		if err := printProduct(ew, o.p, o.diag, ev, d, o.indent); err != nil {
			return fmt.Errorf("event %v: %s: %w", ev.ID, d, err)
		}
		io.WriteString(ew, "</product>\n")
	}
	io.WriteString(ew, "</event>\n")
	o.events++
	return ew.err
}

// Events returns the number of events written so far.
func (o *XMLOutput) Events() int {
	return o.events
}

// Close finishes the document. It does not close the underlying writer.
func (o *XMLOutput) Close() error {
	_, err := io.WriteString(o.w, "</cmsdata>\n")
	return err
}

// printProduct prints one product. Products that cannot be obtained are
// reported on diag and skipped.
func printProduct(w io.Writer, p *Printer, diag io.Writer, ev *store.Event, d store.ProductDesc, indent string) error {
	v, err := ev.GetByLabel(d.Type, d.Module, d.Instance)
	switch {
	case errors.Is(err, store.ErrUnknownType):
		fmt.Fprintf(diag, "%s \"%s\" is an unknown type\n", indent, d.Type)
		return nil
	case errors.Is(err, store.ErrProductNotFound):
		fmt.Fprintf(diag, "%s \"%s\" with label \"%s\" instance \"%s\" was not found\n", indent, d.Type, d.Module, d.Instance)
		return nil
	case err != nil:
		fmt.Fprintf(diag, "%s \"%s\" cannot be read: %v\n", indent, d.Type, err)
		p.logf("evdump: %s: %v", d, err)
		return nil
	}
	return p.PrintObject(w, ObjectOpen, ObjectClose, ValueOf(v), indent)
}

// ASCIIOutput writes a short line-based summary of every prescale-th event.
// Verbosity 0 writes nothing, 1 writes the event id and the product list,
// 2 and above also print every product.
type ASCIIOutput struct {
	w         io.Writer
	p         *Printer
	indent    string
	sel       selector
	diag      io.Writer
	prescale  int
	verbosity int
	counter   int
}

type ASCIIOptions struct {
	OutputOptions
	Prescale  int
	Verbosity int
}

func NewASCIIOutput(w io.Writer, opt ASCIIOptions) (*ASCIIOutput, error) {
	if err := opt.validate(); err != nil {
		return nil, err
	}
	if opt.Prescale < 1 {
		return nil, fmt.Errorf("prescale factor must be at least 1, got %d", opt.Prescale)
	}
	return &ASCIIOutput{
		w:         w,
		p:         NewPrinter(opt.Options),
		indent:    opt.Indent,
		sel:       selector(opt.Select),
		diag:      opt.Diag,
		prescale:  opt.Prescale,
		verbosity: opt.Verbosity,
	}, nil
}

func (o *ASCIIOutput) WriteEvent(ev *store.Event) error {
	o.counter++
	if o.counter%o.prescale != 0 || o.verbosity <= 0 {
		return nil
	}
	ew := &errWriter{w: o.w}
	fmt.Fprintf(ew, "\n---- ASCIIOutput event #%d ----\n", o.counter)
	fmt.Fprintf(ew, "ID: %v  time: %d\n", ev.ID, ev.Time.Value())
	for _, d := range ev.Products() {
		if !o.sel.match(d) {
			continue
		}
		fmt.Fprintf(ew, "%s%s\n", o.indent, d)
		if o.verbosity >= 2 {
			if err := printProduct(ew, o.p, o.diag, ev, d, o.indent+o.indent); err != nil {
				return fmt.Errorf("event %v: %s: %w", ev.ID, d, err)
			}
		}
	}
	return ew.err
}

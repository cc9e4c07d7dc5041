package evdump

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/evdump/store"
)

type (
	Vertex struct {
		X, Y float32
	}
	TrackCount uint16
)

func outputRegistry(withCount bool) *store.Registry {
	reg := store.NewRegistry()
	store.RegisterType[Vertex](reg, "Vertex")
	if withCount {
		store.RegisterType[TrackCount](reg, "TrackCount")
	}
	return reg
}

func sampleEvent(t testing.TB, reg *store.Registry) *store.Event {
	t.Helper()
	ev := store.NewEvent(reg, store.EventID{Run: 7, Lumi: 1, Event: 42}, 1234)
	ensure(ev.Put("vertexer", "primary", Vertex{X: 1, Y: 0.5}))
	ensure(ev.Put("tracker", "", TrackCount(3)))
	return ev
}

func TestXMLOutput(t *testing.T) {
	var out, diag strings.Builder
	o := must(NewXMLOutput(&out, OutputOptions{Diag: &diag}))
	ensure(o.WriteEvent(sampleEvent(t, outputRegistry(true))))
	ensure(o.Close())

	eqText(t, out.String(), lines(
		`<cmsdata>`,
		`<event run="7" number="42" >`,
		`<product type="Vertex" module="vertexer" productInstance="primary">`,
		`  <object type="evdump.Vertex">`,
		`    <datamember name="X" type="float">1</datamember>`,
		`    <datamember name="Y" type="float">0.5</datamember>`,
		`  </object>`,
		`</product>`,
		`<product type="TrackCount" module="tracker" productInstance="">`,
		`  <object type="unsigned short">3</object>`,
		`</product>`,
		`</event>`,
		`</cmsdata>`,
	))
	eqText(t, diag.String(), "")
	if o.Events() != 1 {
		t.Errorf("Events = %d, wanted 1", o.Events())
	}
}

func TestXMLOutputSelect(t *testing.T) {
	var out strings.Builder
	o := must(NewXMLOutput(&out, OutputOptions{Select: []string{"track*"}}))
	ensure(o.WriteEvent(sampleEvent(t, outputRegistry(true))))
	got := out.String()
	if strings.Contains(got, "vertexer") || !strings.Contains(got, `module="tracker"`) {
		t.Errorf("selected output:\n%s", got)
	}

	if _, err := NewXMLOutput(&out, OutputOptions{Select: []string{"[bad"}}); err == nil {
		t.Errorf("NewXMLOutput accepted a malformed pattern")
	}
}

func TestXMLOutputUnknownType(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s := must(store.Open(path, outputRegistry(true), store.Options{IsTesting: true}))
	must(s.Append(sampleEvent(t, s.Registry())))
	ensure(s.Close())

	s = must(store.Open(path, outputRegistry(false), store.Options{ReadOnly: true}))
	defer s.Close()

	var out, diag strings.Builder
	o := must(NewXMLOutput(&out, OutputOptions{Diag: &diag}))
	ensure(o.WriteEvent(must(s.Event(0))))

	eqText(t, diag.String(), "   \"TrackCount\" is an unknown type\n")
	if !strings.Contains(out.String(), lines(
		`<product type="TrackCount" module="tracker" productInstance="">`,
		`</product>`,
	)) {
		t.Errorf("unknown product not written as an empty block:\n%s", out.String())
	}
}

func TestASCIIOutput(t *testing.T) {
	reg := outputRegistry(true)
	var out strings.Builder
	o := must(NewASCIIOutput(&out, ASCIIOptions{Prescale: 2, Verbosity: 1}))
	ensure(o.WriteEvent(sampleEvent(t, reg)))
	eqText(t, out.String(), "")
	ensure(o.WriteEvent(sampleEvent(t, reg)))
	eqText(t, out.String(), lines(
		``,
		`---- ASCIIOutput event #2 ----`,
		`ID: run: 7 lumi: 1 event: 42  time: 1234`,
		`  Vertex vertexer primary`,
		`  TrackCount tracker `,
	))

	out.Reset()
	o = must(NewASCIIOutput(&out, ASCIIOptions{Prescale: 1, Verbosity: 2}))
	ensure(o.WriteEvent(sampleEvent(t, reg)))
	if !strings.Contains(out.String(), "    <object type=\"unsigned short\">3</object>\n") {
		t.Errorf("verbose output:\n%s", out.String())
	}

	if _, err := NewASCIIOutput(&out, ASCIIOptions{}); err == nil {
		t.Errorf("NewASCIIOutput accepted prescale 0")
	}
}

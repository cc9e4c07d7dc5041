package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

type (
	Track struct {
		Pt   float64
		Hits []uint16
	}
	Vertex struct {
		X, Y, Z float32
	}
)

func testRegistry() *Registry {
	reg := NewRegistry()
	RegisterType[Track](reg, "Track")
	reg.Register("Vertex", &Vertex{})
	return reg
}

func setup(t testing.TB) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	s := must(Open(path, testRegistry(), Options{IsTesting: true}))
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestAppendAndReadEvents(t *testing.T) {
	s, _ := setup(t)

	ev := NewEvent(s.Registry(), EventID{Run: 1, Lumi: 2, Event: 3}, 1000)
	ensure(ev.Put("tracker", "", &Track{Pt: 1.5, Hits: []uint16{1, 2}}))
	ensure(ev.Put("vertexer", "primary", Vertex{X: 1}))
	if entry := must(s.Append(ev)); entry != 0 {
		t.Fatalf("Append = %d, wanted 0", entry)
	}
	ev2 := NewEvent(s.Registry(), EventID{Run: 1, Lumi: 2, Event: 4}, 1001)
	if entry := must(s.Append(ev2)); entry != 1 {
		t.Fatalf("Append = %d, wanted 1", entry)
	}

	if n := must(s.NumEntries(EventsTree)); n != 2 {
		t.Errorf("NumEntries = %d, wanted 2", n)
	}

	got := must(s.Event(0))
	deepEqual(t, got.ID, EventID{Run: 1, Lumi: 2, Event: 3})
	deepEqual(t, got.Time, Timestamp(1000))
	deepEqual(t, got.Products(), []ProductDesc{
		{Type: "Track", Module: "tracker"},
		{Type: "Vertex", Module: "vertexer", Instance: "primary"},
	})
	deepEqual(t, must(got.GetByLabel("Track", "tracker", "")), any(Track{Pt: 1.5, Hits: []uint16{1, 2}}))
	deepEqual(t, must(got.GetByLabel("Vertex", "vertexer", "primary")), any(Vertex{X: 1}))

	var ids []uint64
	ensure(s.ForEachEvent(func(entry int, ev *Event) error {
		ids = append(ids, ev.ID.Event)
		return nil
	}))
	deepEqual(t, ids, []uint64{3, 4})

	if _, err := s.Event(5); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("Event(5) = %v, wanted ErrEventNotFound", err)
	}
}

func TestGetByLabelFailures(t *testing.T) {
	s, _ := setup(t)
	ev := NewEvent(s.Registry(), EventID{Run: 1}, 0)
	ensure(ev.Put("tracker", "", Track{}))

	if _, err := ev.GetByLabel("Muon", "tracker", ""); !errors.Is(err, ErrUnknownType) {
		t.Errorf("GetByLabel(Muon) = %v, wanted ErrUnknownType", err)
	}
	if _, err := ev.GetByLabel("Track", "other", ""); !errors.Is(err, ErrProductNotFound) {
		t.Errorf("GetByLabel(other) = %v, wanted ErrProductNotFound", err)
	}
	if err := ev.Put("x", "", 42); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Put(int) = %v, wanted ErrUnknownType", err)
	}
}

func TestTreesAndParams(t *testing.T) {
	s, _ := setup(t)
	ensure(s.SetParam("db_string", "[NAME=FID][VALUE=ABC]"))
	v, found := must2(s.Param("db_string"))
	if !found || v != "[NAME=FID][VALUE=ABC]" {
		t.Errorf("Param = %q, %v", v, found)
	}
	if _, found := must2(s.Param("missing")); found {
		t.Errorf("Param(missing) found")
	}

	var names []string
	for _, ti := range must(s.Trees()) {
		names = append(names, ti.Name)
	}
	deepEqual(t, names, []string{EventsTree, MetaDataTree, ParamsTree, SetupTree})

	if _, err := s.Tree("Nope"); !errors.Is(err, ErrTreeNotFound) {
		t.Errorf("Tree(Nope) = %v, wanted ErrTreeNotFound", err)
	}
	if n, err := s.NumEntries("Nope"); n != -1 || err == nil {
		t.Errorf("NumEntries(Nope) = %d, %v", n, err)
	}
}

func TestRecoveredMarker(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")

	s := must(Open(path, nil, Options{IsTesting: true}))
	if s.Recovered() {
		t.Fatalf("fresh file reported as recovered")
	}
	ensure(s.Close())

	s = must(Open(path, nil, Options{ReadOnly: true}))
	if s.Recovered() {
		t.Errorf("cleanly closed file reported as recovered")
	}
	ensure(s.Close())

	// simulate a writer that died without Close
	s = must(Open(path, nil, Options{IsTesting: true}))
	ensure(s.Bolt().Close())

	s = must(Open(path, nil, Options{ReadOnly: true}))
	defer s.Close()
	if !s.Recovered() {
		t.Errorf("file left open was not reported as recovered")
	}
	if _, err := s.Append(NewEvent(nil, EventID{}, 0)); !errors.Is(err, ErrReadOnly) {
		t.Errorf("Append on read-only = %v, wanted ErrReadOnly", err)
	}
}

func TestSetupRecords(t *testing.T) {
	s, _ := setup(t)
	ensure(s.PutSetupRecord(&SetupRecord{Name: "Calib", CacheID: 2, Data: []DataKey{{Type: "Track", Label: "a"}}}))
	snap := must(s.LoadSetup())
	rec, ok := snap.Find("Calib")
	if !ok {
		t.Fatalf("Calib not found")
	}
	if rec.CacheID != 2 || !rec.Has(DataKey{Type: "Track", Label: "a"}) || rec.Has(DataKey{Type: "Track"}) {
		t.Errorf("record = %+v", rec)
	}
	deepEqual(t, snap.Names(), []string{"Calib"})
}

func TestRegistry(t *testing.T) {
	reg := testRegistry()
	typ, ok := reg.Lookup("Track")
	if !ok || typ != reflect.TypeFor[Track]() {
		t.Errorf("Lookup(Track) = %v, %v", typ, ok)
	}
	if name, ok := reg.NameOf(reflect.TypeFor[Vertex]()); !ok || name != "Vertex" {
		t.Errorf("NameOf(Vertex) = %q, %v", name, ok)
	}
	deepEqual(t, reg.Names(), []string{"Track", "Vertex"})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate name")
		}
	}()
	reg.Register("Track", 1)
}

func TestDataError(t *testing.T) {
	var v Track
	err := decodeValue([]byte{0xc1}, &v)
	var de *DataError
	if !errors.As(err, &de) {
		t.Fatalf("decodeValue = %T, wanted *DataError", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("DataError has no cause")
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func must2[T1, T2 any](v1 T1, v2 T2, err error) (T1, T2) {
	if err != nil {
		panic(err)
	}
	return v1, v2
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

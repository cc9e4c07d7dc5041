package collutil

import (
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/andreyvit/evdump/store"
)

func makeFile(t testing.TB, nevts int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.db")
	s := must(store.Open(path, nil, store.Options{IsTesting: true}))
	ensure(s.SetParam(UUIDParam, "[NAME=FID][VALUE=9A440868-8058-DB11-85E3-00304885AB94]"))
	for i := 1; i <= nevts; i++ {
		must(s.Append(store.NewEvent(s.Registry(), store.EventID{Run: 1, Lumi: 1, Event: uint64(i)}, store.Timestamp(100+i))))
	}
	ensure(s.Close())
	return path
}

func open(t testing.TB, path string, opt Options) (*Collection, *strings.Builder) {
	t.Helper()
	var out strings.Builder
	opt.Out = &out
	c := must(OpenFile(path, nil, opt))
	t.Cleanup(func() { c.Close() })
	return c, &out
}

func TestCollection(t *testing.T) {
	path := makeFile(t, 5)
	c, out := open(t, path, Options{})

	ensure(c.CheckTrees())
	if n := c.NumEntries(store.EventsTree); n != 5 {
		t.Errorf("NumEntries = %d, wanted 5", n)
	}
	if uuid := must(c.UUID()); uuid != "9A440868-8058-DB11-85E3-00304885AB94" {
		t.Errorf("UUID = %q", uuid)
	}

	out.Reset()
	for _, r := range ParseRanges("2-3,5", 5) {
		ensure(c.ShowEvents(r.Lo, r.Hi))
	}
	const want = "run: 1 lumi: 1 event: 2  time: 102\n" +
		"run: 1 lumi: 1 event: 3  time: 103\n" +
		"run: 1 lumi: 1 event: 5  time: 105\n"
	if got := out.String(); got != want {
		t.Errorf("ShowEvents = %q, wanted %q", got, want)
	}

	out.Reset()
	ensure(c.Summary())
	if got := out.String(); !strings.HasPrefix(got, path+" ( 5 events, ") || !strings.HasSuffix(got, " bytes )\n") {
		t.Errorf("Summary = %q", got)
	}

	out.Reset()
	ensure(c.List())
	if got := out.String(); !strings.Contains(got, " KEY: Tree\tEvents;1\n") {
		t.Errorf("List = %q", got)
	}

	out.Reset()
	ensure(c.PrintTrees())
	if got := out.String(); !strings.Contains(got, "*Tree    :Events    :") {
		t.Errorf("PrintTrees = %q", got)
	}
}

func TestNumEntriesMissingTree(t *testing.T) {
	c, out := open(t, makeFile(t, 0), Options{})
	if n := c.NumEntries("Nope"); n != -1 {
		t.Errorf("NumEntries = %d, wanted -1", n)
	}
	if got := out.String(); got != "ERR cannot find a tree named \"Nope\"\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRecoveredFile(t *testing.T) {
	path := makeFile(t, 1)
	s := must(store.Open(path, nil, store.Options{IsTesting: true}))
	ensure(s.Bolt().Close())

	var out strings.Builder
	if _, err := OpenFile(path, nil, Options{Out: &out}); !errors.Is(err, ErrRecovered) {
		t.Fatalf("OpenFile = %v, wanted ErrRecovered", err)
	}
	if !strings.Contains(out.String(), "Stopping. Use --allowRecovery to try ignoring this\n") {
		t.Errorf("output = %q", out.String())
	}

	_, o := open(t, path, Options{AllowRecovery: true})
	if !strings.Contains(o.String(), "Proceeding anyway\n") {
		t.Errorf("output = %q", o.String())
	}
}

func TestParseRanges(t *testing.T) {
	tests := []struct {
		s     string
		nevts int64
		want  []Range
	}{
		{"5-13,30,60-90", 100, []Range{{4, 12}, {29, 29}, {59, 89}}},
		{"5-13,30,60-90", 50, []Range{{4, 12}, {29, 29}, {59, 49}}},
		{"0-3", 10, []Range{{0, 2}}},
		{"x", 10, []Range{{0, -1}}},
		{"2.7-4abc", 10, []Range{{1, 3}}},
	}
	for _, tt := range tests {
		if got := ParseRanges(tt.s, tt.nevts); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ParseRanges(%q, %d) = %v, wanted %v", tt.s, tt.nevts, got, tt.want)
		}
	}
}

func TestParseUUID(t *testing.T) {
	for _, s := range []string{"[NAME=FID]", "[VALUE=abc"} {
		if _, err := ParseUUID(s); !errors.Is(err, ErrInvalidUUID) {
			t.Errorf("ParseUUID(%q) = %v, wanted ErrInvalidUUID", s, err)
		}
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

// Package setupget fetches configured setup data whenever the record that
// holds it moves to a new interval of validity.
package setupget

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andreyvit/evdump/store"
)

// Request names a record and the data to fetch from it. Each data item is
// either "Type" or "Type/label".
type Request struct {
	Record string
	Data   []string
}

// ParseRequest parses "Record:Type,Type/label".
func ParseRequest(s string) (Request, error) {
	rec, data, ok := strings.Cut(s, ":")
	if !ok || rec == "" {
		return Request{}, fmt.Errorf("invalid setup request %q, expected Record:Type[/label],...", s)
	}
	req := Request{Record: rec}
	for _, item := range strings.Split(data, ",") {
		if item = strings.TrimSpace(item); item != "" {
			req.Data = append(req.Data, item)
		}
	}
	return req, nil
}

type Options struct {
	Out     io.Writer
	Verbose bool

	// Types resolves data type names.
	Types *store.Registry

	// Records lists the record names that exist. Nil accepts every record.
	Records []string
}

type recordKeys struct {
	record string
	keys   []store.DataKey
}

type Getter struct {
	toGet   []Request
	types   *store.Registry
	records map[string]bool
	out     io.Writer
	verbose bool

	resolved bool
	wanted   []recordKeys
	cacheIDs map[string]uint64
}

func New(toGet []Request, opt Options) *Getter {
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Types == nil {
		opt.Types = store.NewRegistry()
	}
	g := &Getter{
		toGet:    toGet,
		types:    opt.Types,
		out:      opt.Out,
		verbose:  opt.Verbose,
		cacheIDs: make(map[string]uint64),
	}
	if opt.Records != nil {
		g.records = make(map[string]bool, len(opt.Records))
		for _, name := range opt.Records {
			g.records[name] = true
		}
	}
	return g
}

func (g *Getter) resolve() {
	g.resolved = true
	for _, req := range g.toGet {
		if g.records != nil && !g.records[req.Record] {
			fmt.Fprintf(g.out, "Record \"%s\" does not exist \n", req.Record)
			continue
		}
		var keys []store.DataKey
		for _, item := range req.Data {
			typ, label, _ := strings.Cut(item, "/")
			if _, ok := g.types.Lookup(typ); !ok {
				fmt.Fprintf(g.out, "data item of type \"%s\" does not exist\n", typ)
				continue
			}
			keys = append(keys, store.DataKey{Type: typ, Label: label})
		}
		g.wanted = append(g.wanted, recordKeys{req.Record, keys})
		g.cacheIDs[req.Record] = 0
	}
}

// Analyze fetches the requested data of every record whose cache
// identifier changed since the previous call, and returns the number of
// data found.
func (g *Getter) Analyze(setup store.Setup) int {
	if !g.resolved {
		g.resolve()
	}
	var got int
	for _, rk := range g.wanted {
		rec, ok := setup.Find(rk.record)
		if !ok || rec.CacheID == g.cacheIDs[rk.record] {
			continue
		}
		g.cacheIDs[rk.record] = rec.CacheID
		for _, key := range rk.keys {
			if !rec.Has(key) {
				fmt.Fprintf(g.out, "No data of type \"%s\" with name \"%s\" in record %s found \n", key.Type, key.Label, rk.record)
				continue
			}
			got++
			if g.verbose {
				fmt.Fprintf(g.out, "got data of type \"%s\" with name \"%s\" in record %s\n", key.Type, key.Label, rk.record)
			}
		}
	}
	return got
}

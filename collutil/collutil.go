// Package collutil inspects event store files: it validates that a file is
// a complete collection and prints its trees, identifier and event ids.
//
// Every function reports to the configured writer using the same one-line
// messages an operator sees from the command line tool.
package collutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andreyvit/evdump/store"
)

// ExpectedTrees must all be present for a file to be a valid collection.
var ExpectedTrees = []string{store.MetaDataTree, store.ParamsTree, store.EventsTree}

// UUIDParam is the Params key holding the file identifier.
const UUIDParam = "db_string"

var (
	ErrRecovered         = errors.New("file was not closed correctly")
	ErrInvalidCollection = errors.New("not a valid collection")
	ErrInvalidUUID       = errors.New("invalid db_string entry")
)

type Options struct {
	Out           io.Writer
	Logf          func(format string, args ...any)
	Verbose       bool
	AllowRecovery bool
}

type Collection struct {
	s       *store.Store
	name    string
	out     io.Writer
	logf    func(format string, args ...any)
	verbose bool
}

// OpenFile opens path read-only. A file that a writer did not close is
// rejected with ErrRecovered unless AllowRecovery is set.
func OpenFile(path string, reg *store.Registry, opt Options) (*Collection, error) {
	if opt.Out == nil {
		opt.Out = os.Stdout
	}
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	s, err := store.Open(path, reg, store.Options{ReadOnly: true, Logf: opt.Logf, Verbose: opt.Verbose})
	if err != nil {
		return nil, err
	}
	c := &Collection{
		s:       s,
		name:    path,
		out:     opt.Out,
		logf:    opt.Logf,
		verbose: opt.Verbose,
	}
	c.verbosef("ECU:: Opened %s\n", path)

	if s.Recovered() {
		fmt.Fprintf(c.out, "%s appears not to have been closed correctly and has been autorecovered \n", path)
		if !opt.AllowRecovery {
			fmt.Fprintf(c.out, "Stopping. Use --allowRecovery to try ignoring this\n")
			s.Close()
			return nil, fmt.Errorf("%s: %w", path, ErrRecovered)
		}
		fmt.Fprintf(c.out, "Proceeding anyway\n")
	} else {
		c.verbosef("ECU:: Collection not autorecovered. Continuing\n")
	}
	return c, nil
}

func (c *Collection) Close() error {
	return c.s.Close()
}

func (c *Collection) Store() *store.Store {
	return c.s
}

func (c *Collection) verbosef(format string, args ...any) {
	if c.verbose {
		fmt.Fprintf(c.out, format, args...)
	}
}

// CheckTrees verifies that every expected tree is present.
func (c *Collection) CheckTrees() error {
	for _, name := range ExpectedTrees {
		if !c.s.HasTree(name) {
			fmt.Fprintf(c.out, "Tree %s appears to be missing. Not a valid collection\n", name)
			fmt.Fprintf(c.out, "Exiting\n")
			return fmt.Errorf("tree %s missing: %w", name, ErrInvalidCollection)
		}
		c.verbosef("ECU:: Found Tree %s\n", name)
	}
	c.verbosef("ECU:: Found all expected trees\n")
	return nil
}

// NumEntries returns the number of entries in tree, or -1 if there is no
// such tree.
func (c *Collection) NumEntries(tree string) int64 {
	n, err := c.s.NumEntries(tree)
	if err != nil {
		fmt.Fprintf(c.out, "ERR cannot find a tree named \"%s\"\n", tree)
		if !errors.Is(err, store.ErrTreeNotFound) {
			c.logf("collutil: %s: %v", tree, err)
		}
		return -1
	}
	return int64(n)
}

// Summary prints the file name, event count and size.
func (c *Collection) Summary() error {
	nevts := c.NumEntries(store.EventsTree)
	size, err := c.s.Size()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(c.out, "%s ( %d events, %d bytes )\n", c.name, nevts, size)
	return err
}

// List prints one line per tree.
func (c *Collection) List() error {
	trees, err := c.s.Trees()
	if err != nil {
		return err
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, "Store**\t\t%s\n", c.name)
	for _, ti := range trees {
		fmt.Fprintf(&buf, " KEY: Tree\t%s;1\n", ti.Name)
	}
	_, err = io.WriteString(c.out, buf.String())
	return err
}

// PrintTrees lists the file, then prints the statistics of every tree.
func (c *Collection) PrintTrees() error {
	if err := c.List(); err != nil {
		return err
	}
	trees, err := c.s.Trees()
	if err != nil {
		return err
	}
	var buf strings.Builder
	for _, ti := range trees {
		buf.WriteString(strings.Repeat("*", 78))
		buf.WriteByte('\n')
		fmt.Fprintf(&buf, "*Tree    :%-10s: %-55s*\n", ti.Name, ti.Name)
		fmt.Fprintf(&buf, "*Entries : %8d : Total = %12d bytes  Alloc = %12d bytes *\n", ti.Entries, ti.DataSize, ti.DataAlloc)
		if ti.SubBuckets > 0 {
			fmt.Fprintf(&buf, "*Subtrees: %8d %-52s*\n", ti.SubBuckets, "")
		}
	}
	if len(trees) > 0 {
		buf.WriteString(strings.Repeat("*", 78))
		buf.WriteByte('\n')
	}
	_, err = io.WriteString(c.out, buf.String())
	return err
}

// UUID extracts the file identifier from a db_string parameter of the form
// [NAME=FID][VALUE=<uuid>].
func (c *Collection) UUID() (string, error) {
	v, found, err := c.s.Param(UUIDParam)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%s not set: %w", UUIDParam, ErrInvalidUUID)
	}
	return ParseUUID(v)
}

func ParseUUID(dbString string) (string, error) {
	_, rest, ok := strings.Cut(dbString, "VALUE=")
	if !ok {
		return "", fmt.Errorf("%q: %w", dbString, ErrInvalidUUID)
	}
	uuid, _, ok := strings.Cut(rest, "]")
	if !ok {
		return "", fmt.Errorf("%q: %w", dbString, ErrInvalidUUID)
	}
	return uuid, nil
}

// ShowEvents prints the id and time of the events with entry numbers in
// [lo, hi], stopping at the last entry.
func (c *Collection) ShowEvents(lo, hi int64) error {
	n := c.NumEntries(store.EventsTree)
	if n < 0 {
		return nil
	}
	var buf strings.Builder
	for i := max(lo, 0); i <= hi && i < n; i++ {
		ev, err := c.s.Event(int(i))
		if err != nil {
			return err
		}
		fmt.Fprintf(&buf, "%v  time: %d\n", ev.ID, ev.Time.Value())
	}
	_, err := io.WriteString(c.out, buf.String())
	return err
}

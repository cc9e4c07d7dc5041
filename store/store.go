// Package store keeps events and their products in a Bolt file.
//
// The file holds a fixed set of top-level buckets, called trees:
//
//   - MetaData: bookkeeping, including the marker of an open writer.
//   - Params: string parameters, e.g. the file identifier in db_string.
//   - Events: one entry per event, keyed by a big-endian entry number.
//   - Setup: setup records keyed by record name.
//
// Events and setup records are msgpack documents. A product is stored as the
// msgpack encoding of its Go value together with the registered name of its
// type, so reading it back requires a Registry that knows that name.
package store

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.etcd.io/bbolt"
)

const (
	MetaDataTree = "MetaData"
	ParamsTree   = "Params"
	EventsTree   = "Events"
	SetupTree    = "Setup"

	openMarkerKey = "open"
)

var Trees = []string{MetaDataTree, ParamsTree, EventsTree, SetupTree}

var (
	ErrTreeNotFound    = errors.New("tree not found")
	ErrEventNotFound   = errors.New("event not found")
	ErrUnknownType     = errors.New("unknown type")
	ErrProductNotFound = errors.New("product not found")
	ErrReadOnly        = errors.New("store is read-only")
)

type Options struct {
	Logf      func(format string, args ...any)
	Verbose   bool
	ReadOnly  bool
	IsTesting bool
	Timeout   time.Duration
}

type Store struct {
	bdb       *bbolt.DB
	reg       *Registry
	logf      func(format string, args ...any)
	verbose   bool
	readOnly  bool
	recovered bool
}

// TreeInfo describes one top-level bucket.
type TreeInfo struct {
	Name       string
	Entries    int
	DataSize   int
	DataAlloc  int
	SubBuckets int
}

func Open(path string, reg *Registry, opt Options) (*Store, error) {
	bopt := *bbolt.DefaultOptions
	bopt.Timeout = opt.Timeout
	if bopt.Timeout == 0 {
		bopt.Timeout = 10 * time.Second
	}
	bopt.ReadOnly = opt.ReadOnly
	if opt.IsTesting {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	if reg == nil {
		reg = NewRegistry()
	}

	bdb, err := bbolt.Open(path, 0666, &bopt)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}

	s := &Store{
		bdb:      bdb,
		reg:      reg,
		logf:     opt.Logf,
		verbose:  opt.Verbose,
		readOnly: opt.ReadOnly,
	}

	if opt.ReadOnly {
		err = bdb.View(func(tx *bbolt.Tx) error {
			if b := tx.Bucket([]byte(MetaDataTree)); b != nil {
				s.recovered = b.Get([]byte(openMarkerKey)) != nil
			}
			return nil
		})
	} else {
		err = bdb.Update(func(tx *bbolt.Tx) error {
			for _, name := range Trees {
				if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
					return err
				}
			}
			meta := tx.Bucket([]byte(MetaDataTree))
			s.recovered = meta.Get([]byte(openMarkerKey)) != nil
			return meta.Put([]byte(openMarkerKey), []byte(time.Now().UTC().Format(time.RFC3339)))
		})
	}
	if err != nil {
		bdb.Close()
		return nil, fmt.Errorf("store: %s: %w", path, err)
	}
	if s.recovered && s.verbose {
		s.logf("store: %s was not closed cleanly", path)
	}
	return s, nil
}

// Close clears the open-writer marker and closes the file.
func (s *Store) Close() error {
	if !s.readOnly {
		err := s.bdb.Update(func(tx *bbolt.Tx) error {
			return tx.Bucket([]byte(MetaDataTree)).Delete([]byte(openMarkerKey))
		})
		if err != nil {
			s.bdb.Close()
			return fmt.Errorf("store: closing: %w", err)
		}
	}
	return s.bdb.Close()
}

func (s *Store) Bolt() *bbolt.DB {
	return s.bdb
}

func (s *Store) Registry() *Registry {
	return s.reg
}

func (s *Store) Path() string {
	return s.bdb.Path()
}

// Recovered reports whether the file was left open by a writer that did not
// close it.
func (s *Store) Recovered() bool {
	return s.recovered
}

// Size returns the size of the file in bytes.
func (s *Store) Size() (size int64, err error) {
	err = s.bdb.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return size, err
}

// Trees lists the top-level buckets in key order.
func (s *Store) Trees() ([]TreeInfo, error) {
	var result []TreeInfo
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bbolt.Bucket) error {
			result = append(result, treeInfo(string(name), b))
			return nil
		})
	})
	return result, err
}

// Tree describes a single top-level bucket.
func (s *Store) Tree(name string) (info TreeInfo, err error) {
	err = s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(name))
		if b == nil {
			return fmt.Errorf("%q: %w", name, ErrTreeNotFound)
		}
		info = treeInfo(name, b)
		return nil
	})
	return info, err
}

func (s *Store) HasTree(name string) bool {
	_, err := s.Tree(name)
	return err == nil
}

func (s *Store) NumEntries(tree string) (int, error) {
	info, err := s.Tree(tree)
	if err != nil {
		return -1, err
	}
	return info.Entries, nil
}

func treeInfo(name string, b *bbolt.Bucket) TreeInfo {
	bs := b.Stats()
	return TreeInfo{
		Name:       name,
		Entries:    bs.KeyN,
		DataSize:   bs.LeafInuse,
		DataAlloc:  bs.BranchAlloc + bs.LeafAlloc,
		SubBuckets: bs.BucketN - 1,
	}
}

func (s *Store) SetParam(key, value string) error {
	if s.readOnly {
		return ErrReadOnly
	}
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(ParamsTree)).Put([]byte(key), []byte(value))
	})
}

func (s *Store) Param(key string) (value string, found bool, err error) {
	err = s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(ParamsTree))
		if b == nil {
			return fmt.Errorf("%q: %w", ParamsTree, ErrTreeNotFound)
		}
		if v := b.Get([]byte(key)); v != nil {
			value, found = string(v), true
		}
		return nil
	})
	return value, found, err
}

// Append stores ev as the next entry of the Events tree and returns its
// zero-based entry number.
func (s *Store) Append(ev *Event) (int, error) {
	if s.readOnly {
		return -1, ErrReadOnly
	}
	data, err := encodeValue(ev.record())
	if err != nil {
		return -1, fmt.Errorf("store: event %v: %w", ev.ID, err)
	}
	var entry int
	err = s.bdb.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(EventsTree))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		entry = int(seq - 1)
		return b.Put(entryKey(entry), data)
	})
	if err != nil {
		return -1, err
	}
	if s.verbose {
		s.logf("store: appended event %v as entry %d (%d bytes)", ev.ID, entry, len(data))
	}
	return entry, nil
}

// Event loads the entry with the given zero-based number.
func (s *Store) Event(entry int) (*Event, error) {
	var ev *Event
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(EventsTree))
		if b == nil {
			return fmt.Errorf("%q: %w", EventsTree, ErrTreeNotFound)
		}
		k := entryKey(entry)
		v := b.Get(k)
		if v == nil {
			return fmt.Errorf("entry %d: %w", entry, ErrEventNotFound)
		}
		var err error
		ev, err = s.decodeEvent(k, v)
		return err
	})
	return ev, err
}

// ForEachEvent calls fn for every event in entry order until fn returns an
// error.
func (s *Store) ForEachEvent(fn func(entry int, ev *Event) error) error {
	return s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(EventsTree))
		if b == nil {
			return fmt.Errorf("%q: %w", EventsTree, ErrTreeNotFound)
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			ev, err := s.decodeEvent(k, v)
			if err != nil {
				return err
			}
			if err := fn(keyEntry(k), ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) decodeEvent(k, v []byte) (*Event, error) {
	var rec eventRecord
	if err := decodeValue(v, &rec); err != nil {
		return nil, fmt.Errorf("entry %d: %w", keyEntry(k), err)
	}
	return &Event{
		ID:       rec.ID,
		Time:     rec.Time,
		products: rec.Products,
		reg:      s.reg,
	}, nil
}

func entryKey(entry int) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(entry))
}

func keyEntry(k []byte) int {
	return int(binary.BigEndian.Uint64(k))
}

// PutSetupRecord stores rec under its name, replacing any previous version.
func (s *Store) PutSetupRecord(rec *SetupRecord) error {
	if s.readOnly {
		return ErrReadOnly
	}
	data, err := encodeValue(rec)
	if err != nil {
		return fmt.Errorf("store: setup record %s: %w", rec.Name, err)
	}
	return s.bdb.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(SetupTree)).Put([]byte(rec.Name), data)
	})
}

// LoadSetup reads every setup record.
func (s *Store) LoadSetup() (Setup, error) {
	setup := make(Setup)
	err := s.bdb.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(SetupTree))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			rec := &SetupRecord{}
			if err := decodeValue(v, rec); err != nil {
				return fmt.Errorf("setup record %s: %w", k, err)
			}
			rec.Name = string(k)
			setup[rec.Name] = rec
			return nil
		})
	})
	return setup, err
}

func sortedNames[M ~map[string]V, V any](m M) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

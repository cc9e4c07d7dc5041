package store

// DataKey names one datum of a setup record: its type and an optional label.
type DataKey struct {
	Type  string `msgpack:"t"`
	Label string `msgpack:"l"`
}

func (k DataKey) String() string {
	if k.Label == "" {
		return k.Type
	}
	return k.Type + "/" + k.Label
}

// SetupRecord is a named group of data valid for an interval. CacheID
// changes whenever the record moves to a new interval.
type SetupRecord struct {
	Name    string    `msgpack:"-"`
	CacheID uint64    `msgpack:"c"`
	Data    []DataKey `msgpack:"d"`
}

func (rec *SetupRecord) Has(key DataKey) bool {
	for _, k := range rec.Data {
		if k == key {
			return true
		}
	}
	return false
}

// Setup is a snapshot of all setup records by name.
type Setup map[string]*SetupRecord

func (s Setup) Find(name string) (*SetupRecord, bool) {
	rec, ok := s[name]
	return rec, ok
}

func (s Setup) Names() []string {
	return sortedNames(s)
}

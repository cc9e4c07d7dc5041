package prescale

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestJournalReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prescale.journal")

	j := must(OpenJournal(path, nil, JournalOptions{}))
	ensure(j.WriteRecord([]byte("1 p m 10")))
	ensure(j.WriteRecord([]byte("2 p m 20")))
	ensure(j.Sync())
	ensure(j.Close())

	var recs []string
	j = must(OpenJournal(path, func(rec []byte) {
		recs = append(recs, string(rec))
	}, JournalOptions{}))
	ensure(j.WriteRecord([]byte("3 p m 30")))
	ensure(j.Close())
	deepEqual(t, recs, []string{"1 p m 10", "2 p m 20"})

	recs = nil
	j = must(OpenJournal(path, func(rec []byte) {
		recs = append(recs, string(rec))
	}, JournalOptions{}))
	ensure(j.Close())
	deepEqual(t, recs, []string{"1 p m 10", "2 p m 20", "3 p m 30"})
}

func TestJournalTrimsCorruptedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prescale.journal")

	j := must(OpenJournal(path, nil, JournalOptions{}))
	ensure(j.WriteRecord([]byte("1 p m 10")))
	ensure(j.WriteRecord([]byte("2 p m 20")))
	ensure(j.Close())

	data := must(os.ReadFile(path))
	good := len(data)
	data[len(data)-3] ^= 0xFF // break the checksum of the second record
	data = append(data, 0x7F, 'x')
	ensure(os.WriteFile(path, data, 0o666))

	var recs []string
	j = must(OpenJournal(path, func(rec []byte) {
		recs = append(recs, string(rec))
	}, JournalOptions{}))
	deepEqual(t, recs, []string{"1 p m 10"})

	firstEnd := journalHeaderSize + 1 + len("1 p m 10") + 8
	if size := must(os.Stat(path)).Size(); size != int64(firstEnd) {
		t.Errorf("size after trim = %d, wanted %d (was %d)", size, firstEnd, good)
	}

	ensure(j.WriteRecord([]byte("3 p m 30")))
	ensure(j.Close())

	recs = nil
	j = must(OpenJournal(path, func(rec []byte) {
		recs = append(recs, string(rec))
	}, JournalOptions{}))
	ensure(j.Close())
	deepEqual(t, recs, []string{"1 p m 10", "3 p m 30"})
}

func TestJournalBadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prescale.journal")
	ensure(os.WriteFile(path, []byte("not a journal at all, definitely"), 0o666))
	if _, err := OpenJournal(path, nil, JournalOptions{}); !errors.Is(err, ErrJournalCorrupted) {
		t.Errorf("OpenJournal = %v, wanted ErrJournalCorrupted", err)
	}
}

func TestJournalClosed(t *testing.T) {
	j := must(OpenJournal(filepath.Join(t.TempDir(), "j"), nil, JournalOptions{}))
	ensure(j.Close())
	if err := j.WriteRecord([]byte("x")); !errors.Is(err, ErrJournalClosed) {
		t.Errorf("WriteRecord after Close = %v, wanted ErrJournalClosed", err)
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

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}

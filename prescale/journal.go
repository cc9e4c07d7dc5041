package prescale

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Journal file format:
//
//   - file = header record*
//   - header = magic:64 version:8 pad:56 checksum:64
//   - record = size:uvarint bytes* checksum:64
//
// The record checksum is the xxhash64 of its bytes. Reading stops at the
// first record that is truncated or fails its checksum, and the file is cut
// back to the end of the last good record.

const (
	journalMagic          = 0x4c4353455250_5645 // "EVPRESCL" as little-endian uint64
	journalVersion0 uint8 = 0
	journalHeaderSize     = 3 * 8
	maxRecordSize         = 1 << 20
)

var (
	ErrIncompatible     = errors.New("incompatible prescale journal")
	ErrJournalCorrupted = errors.New("corrupted prescale journal header")
	ErrJournalClosed    = errors.New("prescale journal is closed")
)

type JournalOptions struct {
	Context context.Context
	Logger  *slog.Logger
	Verbose bool
}

// Journal is an append-only log of ingested records.
type Journal struct {
	path    string
	ctx     context.Context
	logger  *slog.Logger
	verbose bool

	mu  sync.Mutex
	f   *os.File
	err error
}

// OpenJournal opens or creates the journal at path, calling replay for
// every intact record in order. The journal is then ready for appending.
func OpenJournal(path string, replay func(rec []byte), o JournalOptions) (*Journal, error) {
	if o.Context == nil {
		o.Context = context.Background()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o666)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		path:    path,
		ctx:     o.Context,
		logger:  o.Logger,
		verbose: o.Verbose,
		f:       f,
	}
	var ok bool
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if stat.Size() == 0 {
		if err := writeJournalHeader(f); err != nil {
			return nil, err
		}
		ok = true
		return j, nil
	}

	if err := readJournalHeader(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	end, n, err := j.replay(f, replay)
	if err != nil {
		return nil, err
	}
	if end < stat.Size() {
		j.logger.LogAttrs(j.ctx, slog.LevelWarn, "prescale journal: trimming corrupted tail", slog.String("file", path), slog.Int64("size", stat.Size()), slog.Int64("good", end))
		if err := f.Truncate(end); err != nil {
			return nil, fmt.Errorf("prescale journal: failed to trim: %w", err)
		}
	}
	if _, err := f.Seek(end, io.SeekStart); err != nil {
		return nil, err
	}
	if j.verbose {
		j.logger.LogAttrs(j.ctx, slog.LevelDebug, "prescale journal: loaded", slog.String("file", path), slog.Int("records", n))
	}
	ok = true
	return j, nil
}

func (j *Journal) replay(f *os.File, fn func(rec []byte)) (end int64, n int, err error) {
	end = journalHeaderSize
	r := bufio.NewReader(f)
	var sum [8]byte
	for {
		if err := j.ctx.Err(); err != nil {
			return end, n, err
		}
		size, err := binary.ReadUvarint(r)
		if err != nil || size > maxRecordSize {
			return end, n, nil
		}
		data := make([]byte, size)
		if _, err := io.ReadFull(r, data); err != nil {
			return end, n, nil
		}
		if _, err := io.ReadFull(r, sum[:]); err != nil {
			return end, n, nil
		}
		if binary.LittleEndian.Uint64(sum[:]) != xxhash.Sum64(data) {
			return end, n, nil
		}
		end += int64(uvarintLen(size)) + int64(size) + 8
		n++
		if fn != nil {
			fn(data)
		}
	}
}

func uvarintLen(v uint64) int {
	var buf [binary.MaxVarintLen64]byte
	return binary.PutUvarint(buf[:], v)
}

// WriteRecord appends one record. Writes are not synced; call Sync for
// durability.
func (j *Journal) WriteRecord(data []byte) error {
	if len(data) > maxRecordSize {
		return fmt.Errorf("prescale journal: record of %d bytes exceeds %d", len(data), maxRecordSize)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return j.err
	}
	if j.f == nil {
		return ErrJournalClosed
	}

	buf := make([]byte, 0, binary.MaxVarintLen64+len(data)+8)
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	buf = binary.LittleEndian.AppendUint64(buf, xxhash.Sum64(data))
	if _, err := j.f.Write(buf); err != nil {
		return j.fail(err)
	}
	return nil
}

func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return ErrJournalClosed
	}
	return j.fail(j.f.Sync())
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.f == nil {
		return nil
	}
	err := j.f.Close()
	j.f = nil
	return err
}

func (j *Journal) fail(err error) error {
	if err == nil {
		return nil
	}
	j.logger.LogAttrs(j.ctx, slog.LevelError, "prescale journal: failed", slog.String("file", j.path), slog.Any("err", err))
	if j.err == nil {
		j.err = err
	}
	return err
}

func writeJournalHeader(w io.Writer) error {
	var buf [journalHeaderSize]byte
	binary.LittleEndian.PutUint64(buf[0:], journalMagic)
	buf[8] = journalVersion0
	binary.LittleEndian.PutUint64(buf[16:], xxhash.Sum64(buf[:16]))
	_, err := w.Write(buf[:])
	return err
}

func readJournalHeader(r io.Reader) error {
	var buf [journalHeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrJournalCorrupted
		}
		return err
	}
	if binary.LittleEndian.Uint64(buf[16:]) != xxhash.Sum64(buf[:16]) {
		return ErrJournalCorrupted
	}
	if binary.LittleEndian.Uint64(buf[0:]) != journalMagic || buf[8] > journalVersion0 {
		return ErrIncompatible
	}
	return nil
}

package prescale

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/andreyvit/evdump/store"
)

type Options struct {
	Logf    func(format string, args ...any)
	Logger  *slog.Logger
	Verbose bool

	// JournalPath, when set, makes every ingested record durable and
	// replays earlier records on start.
	JournalPath string
}

type moduleCounters struct {
	visited int
	running bool
}

// Service owns a Cache and tracks job activity reported through its hooks.
// All methods are safe for concurrent use.
type Service struct {
	cache   *Cache
	journal *Journal
	logf    func(format string, args ...any)
	logger  *slog.Logger
	verbose bool

	// putMu orders journal writes and cache updates identically.
	putMu sync.Mutex

	mu       sync.Mutex
	jobs     int
	running  bool
	events   int
	current  store.EventID
	curTime  store.Timestamp
	modules  map[string]*moduleCounters
	inEvent  bool
	finished int
}

func NewService(opt Options) (*Service, error) {
	if opt.Logf == nil {
		opt.Logf = func(format string, args ...any) {}
	}
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	s := &Service{
		cache:   NewCache(),
		logf:    opt.Logf,
		logger:  opt.Logger,
		verbose: opt.Verbose,
		modules: make(map[string]*moduleCounters),
	}
	if opt.JournalPath != "" {
		j, err := OpenJournal(opt.JournalPath, func(rec []byte) {
			s.cache.Add(string(rec))
		}, JournalOptions{Logger: opt.Logger, Verbose: opt.Verbose})
		if err != nil {
			return nil, err
		}
		s.journal = j
		if s.verbose {
			s.logf("prescale: replayed journal %s, %d generations", opt.JournalPath, s.cache.Size())
		}
	}
	return s, nil
}

func (s *Service) Cache() *Cache {
	return s.cache
}

func (s *Service) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (s *Service) PostBeginJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs++
	s.running = true
	if s.verbose {
		s.logf("prescale: job %d started", s.jobs)
	}
}

func (s *Service) PostEndJob() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	if s.journal != nil {
		if err := s.journal.Sync(); err != nil {
			s.logf("prescale: journal sync failed: %v", err)
		}
	}
	if s.verbose {
		s.logf("prescale: job %d finished after %d events", s.jobs, s.events)
	}
}

func (s *Service) PreEventProcessing(id store.EventID, ts store.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = id
	s.curTime = ts
	s.inEvent = true
	s.events++
}

func (s *Service) PostEventProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inEvent = false
	s.finished++
}

func (s *Service) PreModule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mc := s.modules[name]
	if mc == nil {
		mc = &moduleCounters{}
		s.modules[name] = mc
	}
	mc.visited++
	mc.running = true
}

func (s *Service) PostModule(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if mc := s.modules[name]; mc != nil {
		mc.running = false
	}
}

// CurrentEvent returns the id of the event most recently started.
func (s *Service) CurrentEvent() (store.EventID, store.Timestamp) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.curTime
}

func (s *Service) GetPrescale(ls uint32, module string) uint32 {
	return s.cache.Get(ls, module)
}

// PutPrescale ingests a record and returns the resulting number of
// generations.
func (s *Service) PutPrescale(record string) (int, error) {
	s.putMu.Lock()
	defer s.putMu.Unlock()
	if s.journal != nil {
		if err := s.journal.WriteRecord([]byte(record)); err != nil {
			return s.cache.Size(), err
		}
	}
	s.cache.Add(record)
	return s.cache.Size(), nil
}

func (s *Service) SizePrescale() int {
	return s.cache.Size()
}

// TriggerCounters summarizes job activity: events started and finished,
// then one line per module with the number of times it ran.
func (s *Service) TriggerCounters() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf strings.Builder
	fmt.Fprintf(&buf, "jobs: %d running: %v events: %d finished: %d", s.jobs, s.running, s.events, s.finished)
	if s.inEvent {
		fmt.Fprintf(&buf, " current: %v", s.current)
	}
	buf.WriteByte('\n')
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		mc := s.modules[name]
		fmt.Fprintf(&buf, "module %s visited: %d", name, mc.visited)
		if mc.running {
			buf.WriteString(" (running)")
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// Handler serves the cache over HTTP. It accepts cleartext HTTP/2 as well as
// HTTP/1.1.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /prescale", s.handlePut)
	mux.HandleFunc("GET /prescale", s.handleGet)
	mux.HandleFunc("GET /prescale/size", s.handleSize)
	mux.HandleFunc("GET /prescale/show", s.handleShow)
	mux.HandleFunc("GET /prescale/counters", s.handleCounters)
	return h2c.NewHandler(mux, &http2.Server{})
}

func (s *Service) handlePut(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	size := s.SizePrescale()
	for _, line := range strings.Split(body, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		size, err = s.PutPrescale(line)
		if err != nil {
			s.logger.LogAttrs(r.Context(), slog.LevelError, "prescale: put failed", slog.Any("err", err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	fmt.Fprintf(w, "%d\n", size)
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	ls, err := strconv.ParseUint(q.Get("ls"), 10, 32)
	if err != nil {
		http.Error(w, "invalid ls", http.StatusBadRequest)
		return
	}
	module := q.Get("module")
	if module == "" {
		http.Error(w, "missing module", http.StatusBadRequest)
		return
	}
	fmt.Fprintf(w, "%d\n", s.GetPrescale(uint32(ls), module))
}

func (s *Service) handleSize(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "%d\n", s.SizePrescale())
}

func (s *Service) handleShow(w http.ResponseWriter, r *http.Request) {
	s.cache.Show(w)
}

func (s *Service) handleCounters(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, s.TriggerCounters())
}

func readBody(w http.ResponseWriter, r *http.Request) (string, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordSize))
	return string(data), err
}

// ListenAndServe serves the handler on addr until ctx is done.
func (s *Service) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		srv.Shutdown(context.Background())
		<-errc
		return nil
	}
}

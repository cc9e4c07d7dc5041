package prescale

import (
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/andreyvit/evdump/store"
)

func TestServiceOverH2C(t *testing.T) {
	svc := must(NewService(Options{}))
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	ctx := context.Background()
	c := NewClient(srv.URL)

	if n := must(c.Put(ctx, "12 pathA modA 3 pathB modB 7", "13 pathA modA 4")); n != 2 {
		t.Errorf("Put = %d, wanted 2", n)
	}
	if v := must(c.Get(ctx, 12, "modB")); v != 7 {
		t.Errorf("Get(12, modB) = %d, wanted 7", v)
	}
	if v := must(c.Get(ctx, 999, "modB")); v != 13 {
		t.Errorf("Get(999, modB) = %d, wanted 13", v)
	}
	if n := must(c.Size(ctx)); n != 2 {
		t.Errorf("Size = %d, wanted 2", n)
	}
	show := must(c.Show(ctx))
	if !strings.Contains(show, " member 13 p pathA m modA v 4\n") {
		t.Errorf("Show = %q", show)
	}
	if _, err := c.Get(ctx, 1, ""); err == nil {
		t.Errorf("Get without module succeeded")
	}
}

func TestServiceHooks(t *testing.T) {
	svc := must(NewService(Options{}))
	svc.PostBeginJob()
	svc.PreEventProcessing(store.EventID{Run: 1, Lumi: 2, Event: 3}, 100)
	svc.PreModule("filter")
	svc.PostModule("filter")
	svc.PreModule("analyzer")
	svc.PostModule("analyzer")
	svc.PostEventProcessing()
	svc.PreEventProcessing(store.EventID{Run: 1, Lumi: 2, Event: 4}, 101)
	svc.PreModule("filter")

	id, ts := svc.CurrentEvent()
	deepEqual(t, id, store.EventID{Run: 1, Lumi: 2, Event: 4})
	deepEqual(t, ts, store.Timestamp(101))

	const want = "jobs: 1 running: true events: 2 finished: 1 current: run: 1 lumi: 2 event: 4\n" +
		"module analyzer visited: 1\n" +
		"module filter visited: 2 (running)\n"
	if got := svc.TriggerCounters(); got != want {
		t.Errorf("TriggerCounters = %q, wanted %q", got, want)
	}
	svc.PostModule("filter")
	svc.PostEventProcessing()
	svc.PostEndJob()
	if got := svc.TriggerCounters(); !strings.HasPrefix(got, "jobs: 1 running: false events: 2 finished: 2\n") {
		t.Errorf("TriggerCounters = %q", got)
	}
}

func TestServiceJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prescale.journal")

	svc := must(NewService(Options{JournalPath: path}))
	must(svc.PutPrescale("1 p m 10"))
	must(svc.PutPrescale("2 p m 20"))
	ensure(svc.Close())

	svc = must(NewService(Options{JournalPath: path}))
	defer svc.Close()
	if n := svc.SizePrescale(); n != 2 {
		t.Errorf("SizePrescale after replay = %d, wanted 2", n)
	}
	if v := svc.GetPrescale(1, "m"); v != 10 {
		t.Errorf("GetPrescale(1) = %d, wanted 10", v)
	}
}

func TestServiceJournalKeepsConcurrentPutOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prescale.journal")

	svc := must(NewService(Options{JournalPath: path}))
	var wg sync.WaitGroup
	for g := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				ls := g*100 + i
				_, err := svc.PutPrescale(fmt.Sprintf("%d p%d m%d %d", ls, g, i%3, ls*2))
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var before strings.Builder
	ensure(svc.Cache().Show(&before))
	ensure(svc.Close())

	svc = must(NewService(Options{JournalPath: path}))
	defer svc.Close()
	var after strings.Builder
	ensure(svc.Cache().Show(&after))
	if before.String() != after.String() {
		t.Errorf("replayed cache differs:\n** before:\n%s\n** after:\n%s", before.String(), after.String())
	}
}

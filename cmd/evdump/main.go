package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/andreyvit/evdump"
	"github.com/andreyvit/evdump/setupget"
	"github.com/andreyvit/evdump/store"
)

const appName = "evdump"

type multiFlag []string

func (m *multiFlag) String() string     { return strings.Join(*m, ",") }
func (m *multiFlag) Set(v string) error { *m = append(*m, v); return nil }

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "xml":
		os.Exit(cmdDump(os.Args[2:], false))
	case "ascii":
		os.Exit(cmdDump(os.Args[2:], true))
	case "gen":
		os.Exit(cmdGen(os.Args[2:]))
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "%s: unknown command %q\n", appName, os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage:
  %[1]s xml   [-o out.xml] [-select module:instance]... [-get Record:Type[/label],...]... FILE
  %[1]s ascii [-prescale N] [-verbosity N] [-select module:instance]... FILE
  %[1]s gen   [-n N] FILE
`, appName)
}

func cmdDump(args []string, ascii bool) int {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	outPath := fs.String("o", "", "output file (default stdout)")
	verbose := fs.Bool("v", false, "verbose diagnostics")
	prescale := fs.Int("prescale", 1, "write every Nth event (ascii)")
	verbosity := fs.Int("verbosity", 1, "0 silent, 1 ids and products, 2 also product contents (ascii)")
	var selects, gets multiFlag
	fs.Var(&selects, "select", "write only products of module:instance (wildcards allowed, repeatable)")
	fs.Var(&gets, "get", "fetch setup data when its record changes, Record:Type[/label],... (repeatable)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		return 2
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelFor(*verbose)}))
	logf := func(format string, args ...any) {
		logger.Debug(fmt.Sprintf(format, args...))
	}

	reg := store.NewRegistry()
	evdump.RegisterBuiltins(reg)
	s, err := store.Open(fs.Arg(0), reg, store.Options{ReadOnly: true, Logf: logf, Verbose: *verbose})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR Could not open file %s: %v\n", fs.Arg(0), err)
		return 1
	}
	defer s.Close()

	var out io.Writer = os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to open file %s: %v\n", *outPath, err)
			return 1
		}
		defer f.Close()
		bw := bufio.NewWriter(f)
		defer bw.Flush()
		out = bw
	}

	var getter *setupget.Getter
	var setup store.Setup
	if len(gets) > 0 {
		var reqs []setupget.Request
		for _, g := range gets {
			req, err := setupget.ParseRequest(g)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
				return 2
			}
			reqs = append(reqs, req)
		}
		setup, err = s.LoadSetup()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		getter = setupget.New(reqs, setupget.Options{Verbose: *verbose, Types: reg, Records: setup.Names()})
	}

	oopt := evdump.OutputOptions{
		Options: evdump.Options{Logf: logf, Verbose: *verbose},
		Select:  selects,
	}
	var write func(ev *store.Event) error
	var finish func() error
	if ascii {
		o, err := evdump.NewASCIIOutput(out, evdump.ASCIIOptions{OutputOptions: oopt, Prescale: *prescale, Verbosity: *verbosity})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 2
		}
		write, finish = o.WriteEvent, func() error { return nil }
	} else {
		o, err := evdump.NewXMLOutput(out, oopt)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 2
		}
		write, finish = o.WriteEvent, o.Close
	}

	err = s.ForEachEvent(func(entry int, ev *store.Event) error {
		if getter != nil {
			getter.Analyze(setup)
		}
		return write(ev)
	})
	if err == nil {
		err = finish()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

func cmdGen(args []string) int {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	n := fs.Int("n", 10, "number of events")
	run := fs.Uint("run", 1, "run number")
	fs.Parse(args)
	if fs.NArg() != 1 {
		usage()
		return 2
	}

	reg := store.NewRegistry()
	evdump.RegisterBuiltins(reg)
	s, err := store.Open(fs.Arg(0), reg, store.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERR Could not open file %s: %v\n", fs.Arg(0), err)
		return 1
	}
	err = generate(s, uint32(*run), *n)
	if cerr := s.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

func generate(s *store.Store, run uint32, n int) error {
	if err := s.SetParam("db_string", "[NAME=FID][VALUE="+fileID(run, n)+"]"); err != nil {
		return err
	}
	for i := 1; i <= n; i++ {
		ev := store.NewEvent(s.Registry(), store.EventID{Run: run, Lumi: uint32(1 + i/100), Event: uint64(i)}, store.Timestamp(1_000_000+i))
		if err := ev.Put("counter", "", int32(i)); err != nil {
			return err
		}
		if err := ev.Put("calo", "energy", float64(i)*0.5); err != nil {
			return err
		}
		if err := ev.Put("trigger", "", i%2 == 0); err != nil {
			return err
		}
		if _, err := s.Append(ev); err != nil {
			return err
		}
	}
	return s.PutSetupRecord(&store.SetupRecord{Name: "RunInfoRcd", CacheID: uint64(run), Data: []store.DataKey{{Type: "double", Label: "bfield"}}})
}

func fileID(run uint32, n int) string {
	return fmt.Sprintf("%08X-%04X-0000-0000-000000000000", run, n&0xFFFF)
}

func levelFor(verbose bool) slog.Level {
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/andreyvit/evdump/prescale"
)

const (
	appName     = "evprescale"
	historyFile = ".evprescale_history"
	prompt      = "prescale> "
	defaultURL  = "http://127.0.0.1:8321"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		os.Exit(cmdServe(args))
	case "put":
		os.Exit(cmdClient(args, clientPut))
	case "get":
		os.Exit(cmdClient(args, clientGet))
	case "size":
		os.Exit(cmdClient(args, clientSize))
	case "show":
		os.Exit(cmdClient(args, clientShow))
	case "counters":
		os.Exit(cmdClient(args, clientCounters))
	case "shell":
		os.Exit(cmdShell(args))
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
  %[1]s serve [-addr :8321] [-journal FILE] [-v]
  %[1]s put [-url URL] "LS PATH MODULE VALUE ..."...
  %[1]s get [-url URL] LS MODULE
  %[1]s size|show|counters [-url URL]
  %[1]s shell [-url URL | -journal FILE]
`, appName)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func cmdServe(args []string) int {
	fs := flag.NewFlagSet(appName+" serve", flag.ExitOnError)
	addr := fs.String("addr", ":8321", "listen address")
	journal := fs.String("journal", "", "journal file for ingested records")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Parse(args)

	logger := newLogger(*verbose)
	svc, err := prescale.NewService(prescale.Options{
		Logger:      logger,
		Logf:        func(format string, args ...any) { logger.Debug(fmt.Sprintf(format, args...)) },
		Verbose:     *verbose,
		JournalPath: *journal,
	})
	if err != nil {
		logger.Error("cannot start", "err", err)
		return 1
	}
	defer svc.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc.PostBeginJob()
	logger.Info("serving prescales", "addr", *addr)
	err = svc.ListenAndServe(ctx, *addr)
	svc.PostEndJob()
	if err != nil {
		logger.Error("serve failed", "err", err)
		return 1
	}
	return 0
}

type clientFunc func(ctx context.Context, c *prescale.Client, args []string) error

func cmdClient(args []string, fn clientFunc) int {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	url := fs.String("url", defaultURL, "prescale service URL")
	fs.Parse(args)

	err := fn(context.Background(), prescale.NewClient(*url), fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		return 1
	}
	return 0
}

func clientPut(ctx context.Context, c *prescale.Client, args []string) error {
	if len(args) == 0 {
		return errors.New("no records given")
	}
	n, err := c.Put(ctx, args...)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func clientGet(ctx context.Context, c *prescale.Client, args []string) error {
	if len(args) != 2 {
		return errors.New("usage: get LS MODULE")
	}
	ls, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid luminosity section %q", args[0])
	}
	v, err := c.Get(ctx, uint32(ls), args[1])
	if err != nil {
		return err
	}
	fmt.Println(v)
	return nil
}

func clientSize(ctx context.Context, c *prescale.Client, _ []string) error {
	n, err := c.Size(ctx)
	if err != nil {
		return err
	}
	fmt.Println(n)
	return nil
}

func clientShow(ctx context.Context, c *prescale.Client, _ []string) error {
	text, err := c.Show(ctx)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

func clientCounters(ctx context.Context, c *prescale.Client, _ []string) error {
	text, err := c.Counters(ctx)
	if err != nil {
		return err
	}
	fmt.Print(text)
	return nil
}

// backend is what the shell drives: a local service or a remote one.
type backend interface {
	Put(line string) (int, error)
	Get(ls uint32, module string) (uint32, error)
	Size() (int, error)
	Show(w io.Writer) error
}

type localBackend struct{ svc *prescale.Service }

func (b localBackend) Put(line string) (int, error)                 { return b.svc.PutPrescale(line) }
func (b localBackend) Get(ls uint32, module string) (uint32, error) { return b.svc.GetPrescale(ls, module), nil }
func (b localBackend) Size() (int, error)                           { return b.svc.SizePrescale(), nil }
func (b localBackend) Show(w io.Writer) error                       { return b.svc.Cache().Show(w) }

type remoteBackend struct{ c *prescale.Client }

func (b remoteBackend) Put(line string) (int, error) { return b.c.Put(context.Background(), line) }
func (b remoteBackend) Get(ls uint32, module string) (uint32, error) {
	return b.c.Get(context.Background(), ls, module)
}
func (b remoteBackend) Size() (int, error) { return b.c.Size(context.Background()) }
func (b remoteBackend) Show(w io.Writer) error {
	text, err := b.c.Show(context.Background())
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text)
	return err
}

func cmdShell(args []string) int {
	fs := flag.NewFlagSet(appName+" shell", flag.ExitOnError)
	url := fs.String("url", "", "talk to a running service instead of a local cache")
	journal := fs.String("journal", "", "journal file for the local cache")
	fs.Parse(args)

	var b backend
	if *url != "" {
		b = remoteBackend{prescale.NewClient(*url)}
	} else {
		svc, err := prescale.NewService(prescale.Options{JournalPath: *journal})
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		defer svc.Close()
		b = localBackend{svc}
	}

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("Enter prescale records (LS PATH MODULE VALUE ...), or: get LS MODULE, size, show, quit")
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Println()
			return 0
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
			return 1
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		ln.AppendHistory(line)
		if done := execShell(os.Stdout, b, line); done {
			return 0
		}
	}
}

// execShell runs one shell line and reports whether the shell should exit.
func execShell(w io.Writer, b backend, line string) bool {
	fields := strings.Fields(line)
	var err error
	switch fields[0] {
	case "quit", "exit":
		return true
	case "get":
		if len(fields) != 3 {
			err = errors.New("usage: get LS MODULE")
			break
		}
		var ls uint64
		ls, err = strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			err = fmt.Errorf("invalid luminosity section %q", fields[1])
			break
		}
		var v uint32
		if v, err = b.Get(uint32(ls), fields[2]); err == nil {
			fmt.Fprintln(w, v)
		}
	case "size":
		var n int
		if n, err = b.Size(); err == nil {
			fmt.Fprintln(w, n)
		}
	case "show":
		err = b.Show(w)
	default:
		var n int
		if n, err = b.Put(line); err == nil {
			fmt.Fprintf(w, "size: %d\n", n)
		}
	}
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
	}
	return false
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/andreyvit/evdump"
	"github.com/andreyvit/evdump/collutil"
	"github.com/andreyvit/evdump/store"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("evcollutil", flag.ContinueOnError)
	file := fs.String("f", "", "data file (required, may also be given as an argument)")
	ls := fs.Bool("l", false, "list file content")
	printAll := fs.Bool("P", false, "print all trees")
	uuid := fs.Bool("u", false, "print uuid")
	verbose := fs.Bool("v", false, "verbose printout")
	allowRecovery := fs.Bool("allowRecovery", false, "allow files that were not closed correctly")
	events := fs.String("e", "", "show event ids for events within a range or set of ranges, e.g. 5-13,30,60-90")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *file == "" && fs.NArg() > 0 {
		*file = fs.Arg(0)
	}
	if *file == "" {
		fmt.Println("Data file not set.")
		fs.Usage()
		return 1
	}
	fmt.Println(*file)

	reg := store.NewRegistry()
	evdump.RegisterBuiltins(reg)
	c, err := collutil.OpenFile(*file, reg, collutil.Options{
		Verbose:       *verbose,
		AllowRecovery: *allowRecovery,
	})
	if err != nil {
		if !errors.Is(err, collutil.ErrRecovered) {
			fmt.Printf("ERR Could not open file %s\n", *file)
		}
		return 1
	}
	defer c.Close()

	if err := c.CheckTrees(); err != nil {
		return 1
	}
	if err := c.Summary(); err != nil {
		fmt.Printf("ERR %v\n", err)
		return 1
	}
	if *ls {
		if err := c.List(); err != nil {
			fmt.Printf("ERR %v\n", err)
			return 1
		}
	}
	if *printAll {
		if err := c.PrintTrees(); err != nil {
			fmt.Printf("ERR %v\n", err)
			return 1
		}
	}
	if *uuid {
		id, err := c.UUID()
		if err != nil {
			fmt.Printf("Seemingly invalid db_string entry in Params tree?\n%v\n", err)
		} else {
			fmt.Printf("UUID: %s\n", id)
		}
	}
	if *events != "" {
		nevts := c.NumEntries(store.EventsTree)
		for _, r := range collutil.ParseRanges(*events, nevts) {
			if err := c.ShowEvents(r.Lo, r.Hi); err != nil {
				fmt.Printf("ERR %v\n", err)
				return 1
			}
		}
	}
	return 0
}

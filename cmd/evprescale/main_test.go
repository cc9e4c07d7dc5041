package main

import (
	"strings"
	"testing"

	"github.com/andreyvit/evdump/prescale"
)

func TestExecShell(t *testing.T) {
	svc, err := prescale.NewService(prescale.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b := localBackend{svc}

	var out strings.Builder
	for _, line := range []string{
		"12 pathA modA 3 pathB modB 7",
		"get 12 modB",
		"get 999 modB",
		"get x modB",
		"size",
	} {
		if execShell(&out, b, line) {
			t.Fatalf("%q ended the shell", line)
		}
	}
	const want = "size: 1\n7\n12\nerror: invalid luminosity section \"x\"\n1\n"
	if out.String() != want {
		t.Errorf("output = %q, wanted %q", out.String(), want)
	}
	if !execShell(&out, b, "quit") {
		t.Errorf("quit did not end the shell")
	}
}

package main

import (
	"bytes"
	"flag"
	"io"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseArgsInterspersed(t *testing.T) {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	force := fs.Bool("force", false, "")
	workers := fs.Int("max-concurrent", 5, "")
	delay := fs.Duration("delay", 100*time.Millisecond, "")

	positional, err := parseArgs(fs, []string{"--force", "20250704", "--max-concurrent", "3", "--delay=0s"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !reflect.DeepEqual(positional, []string{"20250704"}) {
		t.Fatalf("positional = %v, want [20250704]", positional)
	}
	if !*force || *workers != 3 || *delay != 0 {
		t.Fatalf("flags = force:%v workers:%d delay:%v", *force, *workers, *delay)
	}
}

func TestRunExitCodes(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
		out  string
	}{
		{name: "no command", args: nil, want: 1},
		{name: "unknown command", args: []string{"frobnicate"}, want: 1},
		{name: "help", args: []string{"help"}, want: 0},
		{name: "fetch without date", args: []string{"fetch"}, want: 1, out: "exactly one DATE"},
		{name: "fetch bad date", args: []string{"fetch", "2025-07-04"}, want: 1, out: "Invalid date format"},
		{name: "fetch zero workers", args: []string{"fetch", "20250704", "--max-concurrent", "0"}, want: 1, out: "max concurrent must be at least 1"},
		{name: "fetch bad flag", args: []string{"fetch", "--nope"}, want: 1},
		{name: "fetch help", args: []string{"fetch", "-h"}, want: 0},
		{name: "days extra argument", args: []string{"days", "20250704"}, want: 1, out: "days takes no arguments"},
		{name: "days bad base url", args: []string{"days", "--base-url", "ftp://example.test/"}, want: 1, out: "http or https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(tt.args, &stdout, &stderr); got != tt.want {
				t.Fatalf("exit = %d, want %d (stdout=%q stderr=%q)", got, tt.want, stdout.String(), stderr.String())
			}
			if tt.out != "" && !strings.Contains(stdout.String(), tt.out) {
				t.Fatalf("stdout = %q, want it to contain %q", stdout.String(), tt.out)
			}
		})
	}
}

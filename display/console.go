package display

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// Console is the output surface of a Display. Redraw replaces the line last
// drawn by Redraw; Println writes a permanent line.
type Console interface {
	Println(line string)
	Redraw(line string)
}

// Terminal is a Console over an io.Writer. Redraws are only emitted when
// the writer is a terminal.
type Terminal struct {
	mu    sync.Mutex
	w     io.Writer
	tty   bool
	dirty bool
}

// NewTerminal returns a console writing to w.
func NewTerminal(w io.Writer) *Terminal {
	return &Terminal{w: w, tty: isTerminal(w)}
}

// Writer returns the underlying writer.
func (t *Terminal) Writer() io.Writer {
	return t.w
}

func (t *Terminal) Println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dirty {
		fmt.Fprint(t.w, "\r\x1b[2K")
		t.dirty = false
	}
	fmt.Fprintln(t.w, line)
}

func (t *Terminal) Redraw(line string) {
	if !t.tty {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "\r\x1b[2K%s", line)
	t.dirty = true
}

// Finish terminates a pending redrawn line.
func (t *Terminal) Finish() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.dirty {
		fmt.Fprintln(t.w)
		t.dirty = false
	}
}

type nopConsole struct{}

func (nopConsole) Println(string) {}
func (nopConsole) Redraw(string)  {}

// Nop returns a console that discards everything.
func Nop() Console {
	return nopConsole{}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

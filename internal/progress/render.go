package progress

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// Renderer writes phase labels to a stream. On a terminal it rewrites one
// line in place; otherwise it prints one line per label.
type Renderer struct {
	w        io.Writer
	terminal bool

	mu      sync.Mutex
	lastLen int
}

// NewRenderer creates a Renderer, detecting whether w is a terminal.
func NewRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w, terminal: IsTerminal(w)}
}

// NewLineRenderer creates a Renderer that never rewrites lines.
func NewLineRenderer(w io.Writer) *Renderer {
	return &Renderer{w: w}
}

// Show renders label. It is suitable as a Presenter callback.
func (r *Renderer) Show(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.terminal {
		fmt.Fprintln(r.w, label)
		return
	}
	pad := ""
	if n := r.lastLen - len(label); n > 0 {
		pad = strings.Repeat(" ", n)
	}
	fmt.Fprintf(r.w, "\r%s%s", label, pad)
	r.lastLen = len(label)
}

// Clear erases the in-place line, if any.
func (r *Renderer) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.terminal || r.lastLen == 0 {
		return
	}
	fmt.Fprintf(r.w, "\r%s\r", strings.Repeat(" ", r.lastLen))
	r.lastLen = 0
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package fiber

import (
	"bufio"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

// Trace is the execution trace of a fiber: a ring buffer holding the names
// of the most recent instructions it executed, linked to the trace of the
// fiber that forked it as it was at fork time.
//
// A Trace is written by its fiber while it runs. Read it from inside the
// fiber (TraceOf) or after the fiber is done.
type Trace struct {
	FiberID ID
	Parent  *Trace

	ops  []string
	next int
	full bool
}

func newTrace(id ID, parent *Trace, cfg Config) *Trace {
	if !cfg.Tracing {
		return &Trace{FiberID: id}
	}
	return &Trace{FiberID: id, Parent: parent, ops: make([]string, cfg.TraceLength)}
}

func (t *Trace) record(op string) {
	if len(t.ops) == 0 {
		return
	}
	t.ops[t.next] = op
	t.next++
	if t.next == len(t.ops) {
		t.next = 0
		t.full = true
	}
}

// Ops returns the recorded instruction names, oldest first.
func (t *Trace) Ops() []string {
	if !t.full {
		return append([]string(nil), t.ops[:t.next]...)
	}
	out := make([]string, 0, len(t.ops))
	out = append(out, t.ops[t.next:]...)
	return append(out, t.ops[:t.next]...)
}

const (
	ansiBold  = "\x1b[1m"
	ansiDim   = "\x1b[2m"
	ansiReset = "\x1b[0m"
)

// Render writes the trace and the traces of its ancestors to w, most
// recent fiber first. Headers are highlighted when w is a terminal.
func (t *Trace) Render(w io.Writer) error {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	bw := bufio.NewWriter(w)
	for cur, depth := t, 0; cur != nil; cur, depth = cur.Parent, depth+1 {
		if depth > 0 {
			bw.WriteString("\n")
			if color {
				bw.WriteString(ansiDim)
			}
			bw.WriteString("Fiber " + cur.FiberID.String() + " forked the fiber above.")
			if color {
				bw.WriteString(ansiReset)
			}
			bw.WriteString("\n")
		}
		if color {
			bw.WriteString(ansiBold)
		}
		bw.WriteString("Fiber " + cur.FiberID.String() + " execution trace:")
		if color {
			bw.WriteString(ansiReset)
		}
		bw.WriteString("\n")
		ops := cur.Ops()
		if len(ops) == 0 {
			bw.WriteString("  <empty>\n")
		}
		for _, op := range ops {
			bw.WriteString("  " + op + "\n")
		}
	}
	return bw.Flush()
}

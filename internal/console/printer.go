package console

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Printer writes the job log stream consumed by the CI host.
// Every write ends with a newline, matching line-buffered output.
type Printer struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewPrinter(out io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	return &Printer{out: out, now: time.Now}
}

// WithClock overrides the timestamp source used by Log.
func (p *Printer) WithClock(now func() time.Time) *Printer {
	p.now = now
	return p
}

// Println writes line verbatim.
func (p *Printer) Println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, line)
}

// Log writes a timestamped status message, resetting any colour left open by the
// previous line.
func (p *Printer) Log(msg string) {
	p.Println(fmt.Sprintf("%s%s: %s", Reset, p.now().Format("2006-01-02 15:04:05.000000"), msg))
}

// Logf is Log with formatting.
func (p *Printer) Logf(format string, args ...interface{}) {
	p.Log(fmt.Sprintf(format, args...))
}

// Tee returns a printer sharing the clock that also copies every line to w.
func (p *Printer) Tee(w io.Writer) *Printer {
	return &Printer{out: io.MultiWriter(p.out, w), now: p.now}
}

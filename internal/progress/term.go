package progress

import (
	"fmt"
	"io"

	"golang.org/x/term"
)

// TermSink writes progress to a terminal: a single self-overwriting line
// when the writer is an interactive TTY, or one log-style line per update
// otherwise (piped output, CI logs) so redirected output stays readable.
type TermSink struct {
	w     io.Writer
	fd    int
	isTTY bool
}

// NewTermSink builds a TermSink over w. fd is the file descriptor backing
// w (typically os.Stdout.Fd()), used only to detect whether it is a
// terminal via golang.org/x/term.
func NewTermSink(w io.Writer, fd int) *TermSink {
	return &TermSink{w: w, fd: fd, isTTY: term.IsTerminal(fd)}
}

func (s *TermSink) Report(percent uint8, message string) {
	if s.isTTY {
		fmt.Fprintf(s.w, "\r\x1b[K[%3d%%] %s", percent, message)
		if percent >= 100 {
			fmt.Fprintln(s.w)
		}
		return
	}
	fmt.Fprintf(s.w, "[%3d%%] %s\n", percent, message)
}

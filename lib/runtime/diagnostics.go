package runtime

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// Diagnostics renders the one error raised per compilation/execution
// attempt (spec §6 "the enclosing driver formats them"). The spec
// leaves formatting unspecified; this is the concrete renderer named in
// SPEC_FULL.md §4.
type Diagnostics struct {
	Out      io.Writer
	colorize bool
}

// NewDiagnostics builds a renderer writing to out, colorizing only when
// out is a terminal (fatih/color for the colors, go-isatty for the
// terminal check).
func NewDiagnostics(out io.Writer) *Diagnostics {
	colorize := false
	if f, ok := out.(*os.File); ok {
		colorize = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Diagnostics{Out: out, colorize: colorize}
}

// Render formats err as a one-line diagnostic. Non-LangError causes
// (a parser failure handed in by the external driver, for instance)
// are rendered as a bare generic message.
func (d *Diagnostics) Render(err error) {
	if err == nil {
		return
	}
	le, ok := AsLangError(err)
	if !ok {
		d.line(color.New(color.FgRed, color.Bold), "error", err.Error())
		return
	}

	label := le.Kind.String()
	msg := le.Msg
	if le.Kind == KindWrongArity {
		variadic := ""
		if le.Variadic {
			variadic = " (variadic)"
		}
		msg = fmt.Sprintf("%s — expected %s, got %s%s",
			msg, humanize.Comma(int64(le.Expected)), humanize.Comma(int64(le.Actual)), variadic)
	}
	if le.Pos.Line != 0 {
		msg = fmt.Sprintf("%s (line %d, col %d)", msg, le.Pos.Line, le.Pos.Column)
	}
	d.line(color.New(color.FgRed, color.Bold), label, msg)
}

func (d *Diagnostics) line(c *color.Color, label, msg string) {
	if d.colorize {
		fmt.Fprintf(d.Out, "%s: %s\n", c.Sprint(label), msg)
		return
	}
	fmt.Fprintf(d.Out, "%s: %s\n", label, msg)
}

// RenderPipelineSummary reports how long a line buffer stayed open and
// how many lines it carried, used by verbose/debug CLI output
// (SPEC_FULL.md §1 "Formatting" — dustin/go-humanize renders byte/line
// counts and elapsed time in diagnostics).
func (d *Diagnostics) RenderPipelineSummary(program string, lines int, elapsed time.Duration) {
	fmt.Fprintf(d.Out, "%s: %s lines held (%s)\n", program, humanize.Comma(int64(lines)), elapsed.Round(time.Millisecond))
}

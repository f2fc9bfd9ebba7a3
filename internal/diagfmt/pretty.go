package diagfmt

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"nullguard/internal/diag"
)

var (
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	infoColor    = color.New(color.FgCyan)
	codeColor    = color.New(color.Faint)
	pathColor    = color.New(color.Bold)
)

func severityColor(sev diag.Severity) *color.Color {
	switch sev {
	case diag.SevError:
		return errorColor
	case diag.SevWarning:
		return warningColor
	}
	return infoColor
}

// Pretty writes one line per diagnostic:
//
//	<path>: <Class>.<behavior>(<parameter>): <SEV> <CODE>: <message>
//
// followed by indented notes when requested. The bag is printed in its
// current order; callers sort it first.
func Pretty(w io.Writer, bag *diag.Bag, opts PrettyOpts) {
	if bag == nil {
		return
	}
	paint := func(c *color.Color, s string) string {
		if !opts.Color {
			return s
		}
		c.EnableColor()
		return c.Sprint(s)
	}
	for _, d := range bag.Items() {
		if uint8(d.Severity) < opts.MinSeverity {
			continue
		}
		loc := location(d.Primary, opts.BaseDir, opts.PathMode)
		if loc != "" {
			fmt.Fprintf(w, "%s: ", paint(pathColor, loc))
		}
		fmt.Fprintf(w, "%s %s: %s\n",
			paint(severityColor(d.Severity), d.Severity.String()),
			paint(codeColor, d.Code.ID()),
			d.Message)
		if !opts.ShowNotes {
			continue
		}
		for _, n := range d.Notes {
			if nl := location(n.Loc, opts.BaseDir, opts.PathMode); nl != "" {
				fmt.Fprintf(w, "  note: %s: %s\n", nl, n.Msg)
			} else {
				fmt.Fprintf(w, "  note: %s\n", n.Msg)
			}
		}
	}
}

func location(l diag.Location, base string, mode PathMode) string {
	l.Path = formatPath(l.Path, base, mode)
	return l.String()
}

// Summary writes the trailing "N error(s), M warning(s)" line.
func Summary(w io.Writer, bag *diag.Bag, useColor bool) {
	if bag == nil {
		return
	}
	errs, warns := bag.Count(diag.SevError), bag.Count(diag.SevWarning)
	line := fmt.Sprintf("%d error(s), %d warning(s)", errs, warns)
	if useColor {
		c := infoColor
		switch {
		case errs > 0:
			c = errorColor
		case warns > 0:
			c = warningColor
		}
		c.EnableColor()
		line = c.Sprint(line)
	}
	fmt.Fprintln(w, line)
}

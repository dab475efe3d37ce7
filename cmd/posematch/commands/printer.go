package commands

import (
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// printer writes status lines to one writer.
type printer struct {
	out io.Writer
}

func (p printer) success(format string, a ...any) {
	_, _ = green.Fprintf(p.out, "✓ %s\n", fmt.Sprintf(format, a...))
}

func (p printer) warning(format string, a ...any) {
	_, _ = yellow.Fprintf(p.out, "! %s\n", fmt.Sprintf(format, a...))
}

func (p printer) failure(format string, a ...any) {
	_, _ = red.Fprintf(p.out, "✗ %s\n", fmt.Sprintf(format, a...))
}

func (p printer) step(format string, a ...any) {
	_, _ = cyan.Fprintf(p.out, "→ %s\n", fmt.Sprintf(format, a...))
}

func (p printer) event(format string, a ...any) {
	_, _ = cyan.Fprintf(p.out, "» %s\n", fmt.Sprintf(format, a...))
}

func (p printer) info(format string, a ...any) {
	_, _ = fmt.Fprintf(p.out, "%s\n", fmt.Sprintf(format, a...))
}

func (p printer) detail(format string, a ...any) {
	_, _ = faint.Fprintf(p.out, "  %s\n", fmt.Sprintf(format, a...))
}

// score formats a dissimilarity, including the no-shared-joints case.
func score(s float64) string {
	if math.IsInf(s, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.4f", s)
}

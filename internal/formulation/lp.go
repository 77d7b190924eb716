package formulation

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const lpTermsPerLine = 8

// WriteLP writes the model in CPLEX LP format so it can be cross-checked with
// an external MIP solver.
func (m *Model) WriteLP(w io.Writer) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "\\ Model %s\n", m.Name)
	fmt.Fprintf(bw, "\\ horizon %d, %d variables, %d rows\n", m.Horizon, m.Variables(), len(m.Rows))
	fmt.Fprintln(bw, "Minimize")
	fmt.Fprintln(bw, " obj: makespan")
	fmt.Fprintln(bw, "Subject To")
	for _, r := range m.Rows {
		m.writeRow(bw, r)
	}
	fmt.Fprintln(bw, "Bounds")
	fmt.Fprintf(bw, " 0 <= makespan <= %d\n", m.Horizon)
	fmt.Fprintln(bw, "Binaries")
	n := 0
	for gi, g := range m.Groups {
		for t := g.First; t <= g.Last; t++ {
			if n%lpTermsPerLine == 0 {
				if n > 0 {
					fmt.Fprintln(bw)
				}
				fmt.Fprint(bw, " ")
			}
			fmt.Fprintf(bw, " %s", m.varName(gi, t))
			n++
		}
	}
	if n > 0 {
		fmt.Fprintln(bw)
	}
	fmt.Fprintln(bw, "End")
	return bw.Flush()
}

func (m *Model) writeRow(w *bufio.Writer, r Row) {
	fmt.Fprintf(w, " %s:", lpName(r.Name))
	n := 0
	emit := func(coef int, name string) {
		if n > 0 && n%lpTermsPerLine == 0 {
			fmt.Fprint(w, "\n  ")
		}
		switch {
		case coef == 1:
			fmt.Fprintf(w, " + %s", name)
		case coef == -1:
			fmt.Fprintf(w, " - %s", name)
		case coef < 0:
			fmt.Fprintf(w, " - %d %s", -coef, name)
		default:
			fmt.Fprintf(w, " + %d %s", coef, name)
		}
		n++
	}
	for _, tm := range r.Terms {
		for t := tm.From; t <= tm.To; t++ {
			if c := tm.At(t); c != 0 {
				emit(c, m.varName(tm.Group, t))
			}
		}
	}
	if r.Makespan != 0 {
		emit(r.Makespan, "makespan")
	}
	if n == 0 {
		// An empty start_once row: the task has no start slot.
		fmt.Fprint(w, " 0 makespan")
	}
	fmt.Fprintf(w, " %s %d\n", r.Sense, r.RHS)
}

func (m *Model) varName(group, t int) string {
	return fmt.Sprintf("start_%s_%d", lpName(m.Groups[group].Key.String()), t)
}

// lpName maps an identifier onto the LP-safe alphabet. Letters, digits and
// underscores pass through; any other rune is written as ".<hex>.", so
// distinct identifiers keep distinct names.
func lpName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			fmt.Fprintf(&b, ".%x.", r)
		}
	}
	return b.String()
}

package model

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gonum/matrix/mat64"
)

// stateName returns a primary state label.
func stateName(i int) string {
	return "P" + strconv.Itoa(i)
}

// FormatQ writes a rate matrix as a tab-separated table with state
// labels.
func FormatQ(w io.Writer, Q mat64.Matrix) {
	rows, cols := Q.Dims()
	fmt.Fprint(w, "\t")
	for j := 0; j < cols; j++ {
		fmt.Fprint(w, stateName(j), "\t")
	}
	fmt.Fprintln(w)
	for i := 0; i < rows; i++ {
		fmt.Fprint(w, stateName(i), "\t")
		for j := 0; j < cols; j++ {
			fmt.Fprintf(w, "%0.4f\t", Q.At(i, j))
		}
		fmt.Fprintln(w)
	}
}

// Describe writes a human readable description of the model.
func (m *Model) Describe(w io.Writer) {
	fmt.Fprintf(w, "model %s\n", m.name)
	fmt.Fprintf(w, "rate_on=%v rate_off=%v\n", m.rateOn, m.rateOff)
	fmt.Fprintf(w, "blink_distn=%v\n", m.blinkDistn)
	fmt.Fprintf(w, "primary_distn=%v\n", m.primaryDistn)
	fmt.Fprintf(w, "primary_to_tol=%v\n", m.primaryToTol)
	fmt.Fprintf(w, "tree=%s\n", m.tree)
	fmt.Fprintf(w, "%d nodes, %d leaves:", m.tree.NNodes(), m.tree.NLeaves())
	for node := range m.tree.Terminals() {
		fmt.Fprintf(w, " %s", node.Name)
	}
	fmt.Fprintln(w)
	for node := range m.tree.NonTerminals() {
		fmt.Fprintf(w, "%s ->", node.Name)
		for _, child := range node.ChildNodes() {
			fmt.Fprintf(w, " %s", child.Name)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, m.tree.FullString())
	fmt.Fprintln(w, "Q_primary:")
	FormatQ(w, m.qPrimary)
}

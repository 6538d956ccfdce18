// Package evidence provides observed data for the toy model at four
// levels of information.
//
// The levels form a filtration: each level adds information without
// contradicting or losing information from any previous level. Level
// zero has no data, level one is alignment data, level two adds
// disease data at N0 and level three adds complete disease data at all
// the leaves.
package evidence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/op/go-logging"
)

// log is the global logging variable.
var log = logging.MustGetLogger("evidence")

var (
	// ErrInvalidLevel is returned for an unknown data level.
	ErrInvalidLevel = errors.New("invalid data level")
	// ErrInconsistentEvidence is returned for data which rules out
	// every state, does not match the topology or violates the
	// filtration.
	ErrInconsistentEvidence = errors.New("inconsistent evidence")
)

func evidenceError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInconsistentEvidence, fmt.Sprintf(format, a...))
}

// Data is the observed data. A true entry means the state is allowed
// by the observation.
type Data struct {
	// Primary maps a node to allowed primary states.
	Primary map[string][]bool
	// Tol maps a tolerance class to a map from a node to allowed
	// tolerance states (off=0, on=1).
	Tol map[int]map[string][]bool
}

// Copy creates a deep copy of the data.
func (d *Data) Copy() *Data {
	c := &Data{
		Primary: copyNodeMap(d.Primary),
		Tol:     make(map[int]map[string][]bool, len(d.Tol)),
	}
	for class, m := range d.Tol {
		c.Tol[class] = copyNodeMap(m)
	}
	return c
}

func copyNodeMap(m map[string][]bool) map[string][]bool {
	c := make(map[string][]bool, len(m))
	for node, v := range m {
		c[node] = append([]bool(nil), v...)
	}
	return c
}

// PrimaryAllowed returns true if the primary state is allowed at the
// node.
func (d *Data) PrimaryAllowed(node string, state int) bool {
	v := d.Primary[node]
	return state >= 0 && state < len(v) && v[state]
}

// TolAllowed returns true if the tolerance state of the class is
// allowed at the node.
func (d *Data) TolAllowed(class int, node string, state int) bool {
	v := d.Tol[class][node]
	return state >= 0 && state < len(v) && v[state]
}

// Classes returns the sorted tolerance classes.
func (d *Data) Classes() []int {
	classes := make([]int, 0, len(d.Tol))
	for class := range d.Tol {
		classes = append(classes, class)
	}
	sort.Ints(classes)
	return classes
}

// Equal returns true if both data sets have the same keys and
// vectors.
func (d *Data) Equal(o *Data) bool {
	if !nodeMapEqual(d.Primary, o.Primary) || len(d.Tol) != len(o.Tol) {
		return false
	}
	for class, m := range d.Tol {
		om, ok := o.Tol[class]
		if !ok || !nodeMapEqual(m, om) {
			return false
		}
	}
	return true
}

func nodeMapEqual(a, b map[string][]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for node, va := range a {
		vb, ok := b[node]
		if !ok || len(va) != len(vb) {
			return false
		}
		for i := range va {
			if va[i] != vb[i] {
				return false
			}
		}
	}
	return true
}

// checkNodeMap checks that m has exactly the given nodes, every
// vector has length n and allows at least one state.
func checkNodeMap(what string, m map[string][]bool, nodes []string, n int) error {
	if len(m) != len(nodes) {
		return evidenceError("%s: %d nodes, expected %d", what, len(m), len(nodes))
	}
	for _, node := range nodes {
		v, ok := m[node]
		if !ok {
			return evidenceError("%s: no data for node %s", what, node)
		}
		if len(v) != n {
			return evidenceError("%s: node %s has %d states, expected %d", what, node, len(v), n)
		}
		allowed := false
		for _, a := range v {
			allowed = allowed || a
		}
		if !allowed {
			return evidenceError("%s: no allowed states at node %s", what, node)
		}
	}
	return nil
}

// Check checks that the data covers exactly the given nodes and the
// tolerance classes 0..nTol-1, vectors have the right lengths and
// allow at least one state everywhere.
func (d *Data) Check(nodes []string, nPrimary, nTol int) error {
	if err := checkNodeMap("primary data", d.Primary, nodes, nPrimary); err != nil {
		return err
	}
	if len(d.Tol) != nTol {
		return evidenceError("%d tolerance classes, expected %d", len(d.Tol), nTol)
	}
	for class := 0; class < nTol; class++ {
		m, ok := d.Tol[class]
		if !ok {
			return evidenceError("no data for tolerance class %d", class)
		}
		if err := checkNodeMap(fmt.Sprintf("tolerance class %d", class), m, nodes, 2); err != nil {
			return err
		}
	}
	return nil
}

// narrows checks that every state disallowed in prev is disallowed in
// next.
func narrows(what string, prev, next map[string][]bool) error {
	if len(prev) != len(next) {
		return evidenceError("%s: node sets differ", what)
	}
	for node, pv := range prev {
		nv, ok := next[node]
		if !ok || len(nv) != len(pv) {
			return evidenceError("%s: node %s differs", what, node)
		}
		for state := range pv {
			if !pv[state] && nv[state] {
				return evidenceError("%s: state %d at node %s is allowed again", what, state, node)
			}
		}
	}
	return nil
}

// CheckFiltration checks that each data set is at least as restrictive
// as the previous one.
func CheckFiltration(levels ...*Data) error {
	for i := 1; i < len(levels); i++ {
		prev, next := levels[i-1], levels[i]
		what := fmt.Sprintf("levels %d->%d primary data", i-1, i)
		if err := narrows(what, prev.Primary, next.Primary); err != nil {
			return err
		}
		if len(prev.Tol) != len(next.Tol) {
			return evidenceError("levels %d->%d: tolerance classes differ", i-1, i)
		}
		for class, pm := range prev.Tol {
			what := fmt.Sprintf("levels %d->%d tolerance class %d", i-1, i, class)
			if err := narrows(what, pm, next.Tol[class]); err != nil {
				return err
			}
		}
	}
	return nil
}

// Package model provides the parameters of the toy blinking codon
// model: the rooted tree with branch lengths, the primary process rate
// matrix, the primary state to tolerance class map and the blink
// rates.
package model

import (
	"errors"
	"fmt"
	"math"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"

	"bitbucket.org/Davydov/codon2x3/tree"
)

// log is the global logging variable.
var log = logging.MustGetLogger("model")

var (
	// ErrInvalidParameter is returned when a rate, weight or class
	// map violates its preconditions.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrUnknownModel is returned for an unknown variant name.
	ErrUnknownModel = errors.New("unknown model")
)

func parameterError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidParameter, fmt.Sprintf(format, a...))
}

// Model is a validated immutable parameter set. All the accessors
// returning slices, maps or matrices return copies.
type Model struct {
	name         string
	rateOn       float64
	rateOff      float64
	primaryDistn []float64
	blinkDistn   []float64
	qPrimary     *mat64.Dense
	primaryToTol []int
	nTol         int
	tree         *tree.Tree
	edges        []tree.Edge
	nodes        []string
	edgeToBlen   map[tree.Edge]float64
}

// Normalized returns weights scaled to sum to one. Weights must be
// non-negative and not all zero.
func Normalized(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, parameterError("empty weight vector")
	}
	for i, w := range weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, parameterError("weight %d is not finite: %v", i, w)
		}
	}
	if m := floats.Min(weights); m < 0 {
		return nil, parameterError("negative weight %v", m)
	}
	sum := floats.Sum(weights)
	if sum == 0 {
		return nil, parameterError("all weights are zero")
	}
	res := make([]float64, len(weights))
	copy(res, weights)
	floats.Scale(1/sum, res)
	return res, nil
}

// New validates parameters and creates a model.
func New(p *Parameters) (*Model, error) {
	m := &Model{name: p.Name}

	if err := checkRate("rate_on", p.RateOn); err != nil {
		return nil, err
	}
	if err := checkRate("rate_off", p.RateOff); err != nil {
		return nil, err
	}
	m.rateOn = p.RateOn
	m.rateOff = p.RateOff

	// Stationary distribution of the two-state chain, (off, on).
	blink, err := Normalized([]float64{p.RateOff, p.RateOn})
	if err != nil {
		return nil, err
	}
	m.blinkDistn = blink

	n := len(p.QPrimary)
	if n == 0 {
		return nil, parameterError("empty primary rate matrix")
	}
	m.qPrimary, err = newRateMatrix(p.QPrimary)
	if err != nil {
		return nil, err
	}

	if len(p.PrimaryWeights) != n {
		return nil, parameterError("%d primary weights for %d primary states", len(p.PrimaryWeights), n)
	}
	m.primaryDistn, err = Normalized(p.PrimaryWeights)
	if err != nil {
		return nil, fmt.Errorf("primary distribution: %w", err)
	}

	m.nTol, err = checkPrimaryToTol(p.PrimaryToTol, n)
	if err != nil {
		return nil, err
	}
	m.primaryToTol = append([]int(nil), p.PrimaryToTol...)

	edges, root, blen, err := p.topology()
	if err != nil {
		return nil, err
	}
	m.tree, err = tree.FromEdges(edges, root)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if blen[e] < 0 || math.IsNaN(blen[e]) || math.IsInf(blen[e], 0) {
			return nil, parameterError("branch length %v for edge %v", blen[e], e)
		}
	}
	if err = m.tree.SetBranchLengths(blen); err != nil {
		return nil, err
	}
	m.edges = append([]tree.Edge(nil), edges...)
	// Tree caches are filled here, later reads do not write.
	m.nodes = m.tree.Names()
	m.edgeToBlen = blen

	log.Debugf("model %s: %d primary states, %d tolerance classes, tree %s", m.name, n, m.nTol, m.tree)
	return m, nil
}

// checkRate checks that a rate is positive and finite.
func checkRate(name string, r float64) error {
	if !(r > 0) || math.IsInf(r, 0) {
		return parameterError("%s must be positive, got %v", name, r)
	}
	return nil
}

// newRateMatrix checks that q is square with zero diagonal and
// non-negative off-diagonal entries.
func newRateMatrix(q [][]float64) (*mat64.Dense, error) {
	n := len(q)
	data := make([]float64, 0, n*n)
	for i, row := range q {
		if len(row) != n {
			return nil, parameterError("rate matrix row %d has %d entries, expected %d", i, len(row), n)
		}
		for j, v := range row {
			switch {
			case math.IsNaN(v) || math.IsInf(v, 0):
				return nil, parameterError("rate Q[%d][%d] is not finite", i, j)
			case i == j && v != 0:
				return nil, parameterError("diagonal rate Q[%d][%d]=%v is not zero", i, j, v)
			case v < 0:
				return nil, parameterError("negative rate Q[%d][%d]=%v", i, j, v)
			}
		}
		data = append(data, row...)
	}
	return mat64.NewDense(n, n, data), nil
}

// checkPrimaryToTol checks the class map and returns the number of
// tolerance classes. Classes are 0..k-1 and none of them is empty.
func checkPrimaryToTol(primaryToTol []int, n int) (int, error) {
	if len(primaryToTol) != n {
		return 0, parameterError("%d class indices for %d primary states", len(primaryToTol), n)
	}
	k := 0
	for i, c := range primaryToTol {
		if c < 0 {
			return 0, parameterError("negative tolerance class %d for primary state %d", c, i)
		}
		// k <= n, so a class index of n or more leaves a class empty
		if c >= n {
			return 0, parameterError("tolerance class %d for primary state %d, only %d states", c, i, n)
		}
		if c+1 > k {
			k = c + 1
		}
	}
	used := make([]bool, k)
	for _, c := range primaryToTol {
		used[c] = true
	}
	for c, u := range used {
		if !u {
			return 0, parameterError("tolerance class %d has no primary states", c)
		}
	}
	return k, nil
}

// Name returns the model name.
func (m *Model) Name() string {
	return m.name
}

// RateOn returns the off -> on blink rate.
func (m *Model) RateOn() float64 {
	return m.rateOn
}

// RateOff returns the on -> off blink rate.
func (m *Model) RateOff() float64 {
	return m.rateOff
}

// PrimaryDistn returns the primary process equilibrium distribution.
func (m *Model) PrimaryDistn() []float64 {
	return append([]float64(nil), m.primaryDistn...)
}

// BlinkDistn returns the blink state distribution indexed off=0, on=1.
func (m *Model) BlinkDistn() []float64 {
	return append([]float64(nil), m.blinkDistn...)
}

// QPrimary returns a copy of the unnormalized primary rate matrix.
func (m *Model) QPrimary() *mat64.Dense {
	return mat64.DenseCopyOf(m.qPrimary)
}

// PrimaryToTol returns the tolerance class of every primary state.
func (m *Model) PrimaryToTol() []int {
	return append([]int(nil), m.primaryToTol...)
}

// NPrimary returns the number of primary states.
func (m *Model) NPrimary() int {
	n, _ := m.qPrimary.Dims()
	return n
}

// NTol returns the number of tolerance classes.
func (m *Model) NTol() int {
	return m.nTol
}

// TreeAndRoot returns the edge list and the root name.
func (m *Model) TreeAndRoot() ([]tree.Edge, string) {
	return append([]tree.Edge(nil), m.edges...), m.tree.Name
}

// Tree returns a copy of the tree with branch lengths set.
func (m *Model) Tree() *tree.Tree {
	return m.tree.Copy()
}

// Nodes returns the node names in preorder.
func (m *Model) Nodes() []string {
	return append([]string(nil), m.nodes...)
}

// EdgeToBlen returns a map from edge to branch length.
func (m *Model) EdgeToBlen() map[tree.Edge]float64 {
	res := make(map[tree.Edge]float64, len(m.edgeToBlen))
	for e, l := range m.edgeToBlen {
		res[e] = l
	}
	return res
}

// Newick returns the tree in Newick format.
func (m *Model) Newick() string {
	return m.tree.String()
}

func (m *Model) String() string {
	return fmt.Sprintf("<model %s: rate_on=%v, rate_off=%v, tree=%s>", m.name, m.rateOn, m.rateOff, m.tree)
}

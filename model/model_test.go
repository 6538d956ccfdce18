package model

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/gonum/floats"
	"github.com/gonum/matrix/mat64"
	"github.com/op/go-logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitbucket.org/Davydov/codon2x3/tree"
)

const smallDiff = 1e-12

func init() {
	logging.SetLevel(logging.WARNING, "model")
	logging.SetLevel(logging.WARNING, "tree")
}

func TestVariantsValid(t *testing.T) {
	for _, name := range Names() {
		m, err := Get(name)
		require.NoError(t, err, name)

		q := m.QPrimary()
		n, c := q.Dims()
		require.Equal(t, n, c)
		require.Equal(t, 6, n)
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					assert.Zero(t, q.At(i, j), "%s: Q[%d][%d]", name, i, j)
				} else {
					assert.GreaterOrEqual(t, q.At(i, j), 0.0, "%s: Q[%d][%d]", name, i, j)
				}
			}
		}

		assert.InDelta(t, 1, floats.Sum(m.PrimaryDistn()), smallDiff, name)
		assert.InDelta(t, 1, floats.Sum(m.BlinkDistn()), smallDiff, name)
		assert.Equal(t, []int{0, 0, 1, 1, 2, 2}, m.PrimaryToTol())
		assert.Equal(t, 3, m.NTol())
		assert.Equal(t, 6, m.NPrimary())

		edges, root := m.TreeAndRoot()
		assert.Equal(t, "N1", root)
		indegree := make(map[string]int)
		nodes := map[string]bool{root: true}
		for _, e := range edges {
			indegree[e.Child]++
			nodes[e.Parent] = true
			nodes[e.Child] = true
		}
		assert.Zero(t, indegree[root])
		for node := range nodes {
			if node != root {
				assert.Equal(t, 1, indegree[node], "%s: node %s", name, node)
			}
		}
		assert.Len(t, nodes, 6)
		assert.ElementsMatch(t, []string{"N0", "N1", "N2", "N3", "N4", "N5"}, m.Nodes())

		blen := m.EdgeToBlen()
		require.Len(t, blen, len(edges))
		for _, e := range edges {
			l, ok := blen[e]
			assert.True(t, ok, "%s: no branch length for %v", name, e)
			assert.GreaterOrEqual(t, l, 0.0)
		}
	}
}

func TestBlinkDistn(t *testing.T) {
	a := MustGet("A")
	assert.Equal(t, 1.0, a.RateOn())
	assert.Equal(t, 1.0, a.RateOff())
	assert.Equal(t, []float64{0.5, 0.5}, a.BlinkDistn())

	b := MustGet("B")
	assert.Equal(t, 2.0, b.RateOn())
	assert.Equal(t, 0.5, b.RateOff())
	distn := b.BlinkDistn()
	assert.InDelta(t, 0.2, distn[0], smallDiff)
	assert.InDelta(t, 0.8, distn[1], smallDiff)
}

func TestPrimaryDistn(t *testing.T) {
	for _, p := range MustGet("A").PrimaryDistn() {
		assert.InDelta(t, 1.0/6, p, smallDiff)
	}
	distn := MustGet("B").PrimaryDistn()
	assert.InDelta(t, 4.0/9, distn[1], smallDiff)
	for i, p := range distn {
		if i != 1 {
			assert.InDelta(t, 1.0/9, p, smallDiff)
		}
	}
}

func TestModelB(t *testing.T) {
	a := MustGet("A")
	b := MustGet("B")

	qa := a.QPrimary()
	qb := b.QPrimary()
	// model A is symmetric, model B is not
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			assert.Equal(t, qa.At(i, j), qa.At(j, i))
		}
	}
	assert.Equal(t, 2.0, qb.At(0, 1))
	assert.Equal(t, 0.5, qb.At(1, 0))
	assert.Zero(t, qb.At(4, 5))
	assert.Zero(t, qb.At(5, 4))

	ea, ra := a.TreeAndRoot()
	eb, rb := b.TreeAndRoot()
	assert.Equal(t, ea, eb)
	assert.Equal(t, ra, rb)

	blen := b.EdgeToBlen()
	assert.Equal(t, 0.0, blen[tree.Edge{Parent: "N1", Child: "N0"}])
	assert.Equal(t, 0.0, blen[tree.Edge{Parent: "N1", Child: "N2"}])
	assert.Equal(t, 0.5, blen[tree.Edge{Parent: "N1", Child: "N5"}])
	assert.Equal(t, 1.0, blen[tree.Edge{Parent: "N2", Child: "N3"}])
	assert.Equal(t, 0.25, blen[tree.Edge{Parent: "N2", Child: "N4"}])

	assert.Equal(t, "(N0:0.000000,(N3:1.000000,N4:0.250000)N2:0.000000,N5:0.500000)N1:0.000000;", b.Newick())
	assert.Equal(t, "(N0:0.500000,(N3:0.500000,N4:0.500000)N2:0.500000,N5:0.500000)N1:0.000000;", a.Newick())
}

func TestAccessorsReturnCopies(t *testing.T) {
	m := MustGet("A")

	q := m.QPrimary()
	q.Set(0, 1, 100)
	assert.Equal(t, 1.0, m.QPrimary().At(0, 1))

	d := m.PrimaryDistn()
	d[0] = 100
	assert.InDelta(t, 1.0/6, m.PrimaryDistn()[0], smallDiff)

	c := m.PrimaryToTol()
	c[0] = 2
	assert.Equal(t, 0, m.PrimaryToTol()[0])

	blen := m.EdgeToBlen()
	blen[tree.Edge{Parent: "N1", Child: "N0"}] = 7
	assert.Equal(t, 0.5, m.EdgeToBlen()[tree.Edge{Parent: "N1", Child: "N0"}])

	tr := m.Tree()
	tr.NodeByName("N0").BranchLength = 7
	assert.Equal(t, a0Newick, m.Newick())
}

const a0Newick = "(N0:0.500000,(N3:0.500000,N4:0.500000)N2:0.500000,N5:0.500000)N1:0.000000;"

func TestGetShared(t *testing.T) {
	var wg sync.WaitGroup
	res := make([]*Model, 8)
	for i := range res {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res[i] = MustGet("B")
		}(i)
	}
	wg.Wait()
	for _, m := range res {
		assert.Same(t, res[0], m)
	}

	_, err := Get("C")
	assert.True(t, errors.Is(err, ErrUnknownModel))
}

func TestNormalized(t *testing.T) {
	w, err := Normalized([]float64{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.75}, w)

	for _, weights := range [][]float64{nil, {0, 0}, {1, -1}} {
		_, err := Normalized(weights)
		assert.True(t, errors.Is(err, ErrInvalidParameter), "%v: %v", weights, err)
	}
}

func TestInvalidParameters(t *testing.T) {
	cases := map[string]func(p *Parameters){
		"zero rate_on":      func(p *Parameters) { p.RateOn = 0 },
		"negative rate_off": func(p *Parameters) { p.RateOff = -1 },
		"negative weight":   func(p *Parameters) { p.PrimaryWeights[2] = -1 },
		"zero weights":      func(p *Parameters) { p.PrimaryWeights = make([]float64, 6) },
		"short weights":     func(p *Parameters) { p.PrimaryWeights = p.PrimaryWeights[:5] },
		"nonzero diagonal":  func(p *Parameters) { p.QPrimary[3][3] = -2 },
		"negative rate":     func(p *Parameters) { p.QPrimary[0][1] = -1 },
		"non-square Q":      func(p *Parameters) { p.QPrimary[2] = p.QPrimary[2][:4] },
		"empty Q":           func(p *Parameters) { p.QPrimary = nil },
		"empty class":       func(p *Parameters) { p.PrimaryToTol = []int{0, 0, 2, 2, 2, 2} },
		"negative class":    func(p *Parameters) { p.PrimaryToTol[0] = -1 },
		"short class map":   func(p *Parameters) { p.PrimaryToTol = p.PrimaryToTol[:3] },
		"huge class":        func(p *Parameters) { p.PrimaryToTol[5] = math.MaxInt64 },
		"large class":       func(p *Parameters) { p.PrimaryToTol[5] = 1 << 40 },
		"class too big":     func(p *Parameters) { p.PrimaryToTol[5] = 6 },
		"negative blen":     func(p *Parameters) { p.BranchLengths[4].Length = -0.1 },
	}
	for name, change := range cases {
		p := ParametersA()
		change(p)
		_, err := New(p)
		assert.True(t, errors.Is(err, ErrInvalidParameter), "%s: %v", name, err)
	}
}

func TestInvalidTopology(t *testing.T) {
	cases := map[string]func(p *Parameters){
		"wrong root":       func(p *Parameters) { p.Root = "N2" },
		"missing blen":     func(p *Parameters) { p.BranchLengths = p.BranchLengths[:4] },
		"duplicate blen":   func(p *Parameters) { p.BranchLengths = append(p.BranchLengths, p.BranchLengths[0]) },
		"extra blen":       func(p *Parameters) { p.BranchLengths[0].Parent = "N2" },
		"two parents":      func(p *Parameters) { p.Edges = append(p.Edges, tree.Edge{Parent: "N5", Child: "N3"}) },
		"newick and edges": func(p *Parameters) { p.Newick = a0Newick },
		"unnamed newick":   func(p *Parameters) { setNewick(p, "((N3:1,N4:1):1,N0:1)N1;") },
		"bad newick":       func(p *Parameters) { setNewick(p, "(N0:1,N2:1") },
	}
	for name, change := range cases {
		p := ParametersA()
		change(p)
		_, err := New(p)
		assert.True(t, errors.Is(err, tree.ErrInvalidTopology), "%s: %v", name, err)
	}
}

// setNewick replaces the edge list with a Newick tree.
func setNewick(p *Parameters, newick string) {
	p.Edges, p.BranchLengths, p.Root = nil, nil, ""
	p.Newick = newick
}

func TestNewick(t *testing.T) {
	p := ParametersA()
	setNewick(p, MustGet("B").Newick())

	m, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, MustGet("B").EdgeToBlen(), m.EdgeToBlen())
	edges, root := m.TreeAndRoot()
	assert.Equal(t, "N1", root)
	assert.ElementsMatch(t, MustGet("B").Parameters().Edges, edges)
}

func TestYAMLRoundTrip(t *testing.T) {
	for _, name := range Names() {
		m := MustGet(name)

		var b bytes.Buffer
		require.NoError(t, WriteParameters(&b, m.Parameters()))
		t.Log(b.String())

		m2, err := Load(&b)
		require.NoError(t, err)
		assert.Equal(t, m.Newick(), m2.Newick())
		assert.Equal(t, m.EdgeToBlen(), m2.EdgeToBlen())
		assert.InDeltaSlice(t, m.PrimaryDistn(), m2.PrimaryDistn(), smallDiff)
		assert.Equal(t, m.BlinkDistn(), m2.BlinkDistn())
		assert.True(t, mat64Equal(m.QPrimary(), m2.QPrimary()))
	}
}

func TestReadParameters(t *testing.T) {
	const desc = `
name: C
rate_on: 3
rate_off: 1
primary_weights: [1, 1]
q_primary:
  - [0, 1]
  - [2, 0]
primary_to_tol: [0, 0]
newick: "(L:0.5,R:0.25)root;"
`
	m, err := Load(strings.NewReader(desc))
	require.NoError(t, err)
	assert.Equal(t, "C", m.Name())
	assert.Equal(t, []float64{0.25, 0.75}, m.BlinkDistn())
	assert.Equal(t, 1, m.NTol())
	_, root := m.TreeAndRoot()
	assert.Equal(t, "root", root)
	assert.Equal(t, 0.25, m.EdgeToBlen()[tree.Edge{Parent: "root", Child: "R"}])

	_, err = ReadParameters(strings.NewReader(desc + "unknown: 1\n"))
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	var b bytes.Buffer
	MustGet("A").Describe(&b)
	s := b.String()
	assert.Contains(t, s, "model A")
	assert.Contains(t, s, "6 nodes, 4 leaves: N0 N3 N4 N5\n")
	assert.Contains(t, s, "N1 -> N0 N2 N5\n")
	assert.Contains(t, s, "N2 -> N3 N4\n")
	assert.Contains(t, s, "<root, name=N1, Id=0, BranchLength=0>")
	assert.Contains(t, s, "        <name=N3, Id=3, BranchLength=0.5>")
	assert.Contains(t, s, "P5\t0.0000\t0.0000\t0.0000\t1.0000\t1.0000\t0.0000\t")
}

func mat64Equal(a, b *mat64.Dense) bool {
	ra, ca := a.Dims()
	rb, cb := b.Dims()
	if ra != rb || ca != cb {
		return false
	}
	for i := 0; i < ra; i++ {
		for j := 0; j < ca; j++ {
			if a.At(i, j) != b.At(i, j) {
				return false
			}
		}
	}
	return true
}

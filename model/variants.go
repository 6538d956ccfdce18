package model

import (
	"fmt"
	"sort"
	"sync"

	"bitbucket.org/Davydov/codon2x3/tree"
)

// ParametersA returns the parameters of model A. It is like a
// symmetric codon model with six codons and three amino acids, all
// rates and branch lengths equal.
func ParametersA() *Parameters {
	const blen = 0.5
	return &Parameters{
		Name:           "A",
		RateOn:         1,
		RateOff:        1,
		PrimaryWeights: []float64{1, 1, 1, 1, 1, 1},
		QPrimary: [][]float64{
			{0, 1, 1, 0, 0, 0},
			{1, 0, 0, 1, 0, 0},
			{1, 0, 0, 1, 1, 0},
			{0, 1, 1, 0, 0, 1},
			{0, 0, 1, 0, 0, 1},
			{0, 0, 0, 1, 1, 0},
		},
		// like a genetic code mapping codons to amino acids
		PrimaryToTol: []int{0, 0, 1, 1, 2, 2},
		Root:         "N1",
		Edges: []tree.Edge{
			{Parent: "N1", Child: "N0"},
			{Parent: "N1", Child: "N2"},
			{Parent: "N1", Child: "N5"},
			{Parent: "N2", Child: "N3"},
			{Parent: "N2", Child: "N4"},
		},
		BranchLengths: []BranchLength{
			{"N1", "N0", blen},
			{"N1", "N2", blen},
			{"N1", "N5", blen},
			{"N2", "N3", blen},
			{"N2", "N4", blen},
		},
	}
}

// ParametersB returns the parameters of model B. It has the shape of
// model A with these changes:
//   - state P1 has twice the incoming and half the outgoing rate, and
//     four times the equilibrium weight;
//   - the synonymous P4 <-> P5 transition is removed;
//   - blinking is unequal, off -> on is 2 and on -> off is 1/2, so
//     the blink state prior is 4/5 on;
//   - two branches have zero length, one is twice and one is half as
//     long as in model A.
func ParametersB() *Parameters {
	const (
		f    = 2.0 // fast
		s    = 0.5 // slow
		blen = 0.5
	)
	p := ParametersA()
	p.Name = "B"
	p.RateOn = 2
	p.RateOff = 0.5
	p.PrimaryWeights[1] = 4
	p.QPrimary = [][]float64{
		{0, f, 1, 0, 0, 0},
		{s, 0, 0, 1, 0, 0},
		{s, 0, 0, 1, 1, 0},
		{0, f, 1, 0, 0, 1},
		{0, 0, 1, 0, 0, 0},
		{0, 0, 0, 1, 0, 0},
	}
	p.BranchLengths = []BranchLength{
		{"N1", "N0", 0},
		{"N1", "N2", 0},
		{"N1", "N5", blen},
		{"N2", "N3", 2 * blen},
		{"N2", "N4", 0.5 * blen},
	}
	return p
}

// variant is a lazily built model.
type variant struct {
	once   sync.Once
	params func() *Parameters
	model  *Model
	err    error
}

var variants = map[string]*variant{
	"A": {params: ParametersA},
	"B": {params: ParametersB},
}

// Names returns names of the built-in models.
func Names() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a built-in model. Each model is built and validated once,
// all callers share the same value.
func Get(name string) (*Model, error) {
	v, ok := variants[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	v.once.Do(func() {
		v.model, v.err = New(v.params())
		if v.err != nil {
			log.Errorf("Model %s is invalid: %v", name, v.err)
			return
		}
		log.Infof("Model %s: %s", name, v.model.Newick())
	})
	return v.model, v.err
}

// MustGet is like Get but panics on error.
func MustGet(name string) *Model {
	m, err := Get(name)
	if err != nil {
		panic(err)
	}
	return m
}

package model

import (
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/codon2x3/tree"
)

// BranchLength is a branch length of a single edge.
type BranchLength struct {
	Parent string  `yaml:"parent"`
	Child  string  `yaml:"child"`
	Length float64 `yaml:"length"`
}

// Parameters is a raw, unvalidated model description. The topology is
// given either by Edges, Root and BranchLengths or by a Newick string
// with all the nodes named.
type Parameters struct {
	Name           string         `yaml:"name"`
	RateOn         float64        `yaml:"rate_on"`
	RateOff        float64        `yaml:"rate_off"`
	PrimaryWeights []float64      `yaml:"primary_weights"`
	QPrimary       [][]float64    `yaml:"q_primary"`
	PrimaryToTol   []int          `yaml:"primary_to_tol"`
	Root           string         `yaml:"root,omitempty"`
	Edges          []tree.Edge    `yaml:"edges,omitempty"`
	BranchLengths  []BranchLength `yaml:"branch_lengths,omitempty"`
	Newick         string         `yaml:"newick,omitempty"`
}

// topology returns edges, root and branch lengths either from the
// explicit lists or from the Newick string.
func (p *Parameters) topology() (edges []tree.Edge, root string, blen map[tree.Edge]float64, err error) {
	if p.Newick != "" {
		if len(p.Edges) != 0 || len(p.BranchLengths) != 0 || p.Root != "" {
			return nil, "", nil, fmt.Errorf("%w: both newick and edge list are given", tree.ErrInvalidTopology)
		}
		t, err := tree.ParseNewick(strings.NewReader(p.Newick))
		if err != nil {
			return nil, "", nil, fmt.Errorf("%w: %v", tree.ErrInvalidTopology, err)
		}
		if err = t.Validate(); err != nil {
			return nil, "", nil, err
		}
		return t.Edges(), t.Name, t.BranchLengths(), nil
	}

	blen = make(map[tree.Edge]float64, len(p.BranchLengths))
	for _, b := range p.BranchLengths {
		e := tree.Edge{Parent: b.Parent, Child: b.Child}
		if _, ok := blen[e]; ok {
			return nil, "", nil, fmt.Errorf("%w: duplicate branch length for edge %v", tree.ErrInvalidTopology, e)
		}
		blen[e] = b.Length
	}
	return p.Edges, p.Root, blen, nil
}

// Copy returns a deep copy of the parameters.
func (p *Parameters) Copy() *Parameters {
	c := *p
	c.PrimaryWeights = append([]float64(nil), p.PrimaryWeights...)
	c.QPrimary = make([][]float64, len(p.QPrimary))
	for i, row := range p.QPrimary {
		c.QPrimary[i] = append([]float64(nil), row...)
	}
	c.PrimaryToTol = append([]int(nil), p.PrimaryToTol...)
	c.Edges = append([]tree.Edge(nil), p.Edges...)
	c.BranchLengths = append([]BranchLength(nil), p.BranchLengths...)
	return &c
}

// ReadParameters decodes a YAML model description. Unknown fields are
// rejected.
func ReadParameters(rd io.Reader) (*Parameters, error) {
	p := &Parameters{}
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("error reading model description: %v", err)
	}
	return p, nil
}

// WriteParameters encodes parameters as YAML.
func WriteParameters(w io.Writer, p *Parameters) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(p); err != nil {
		return err
	}
	return enc.Close()
}

// Load reads a YAML model description and creates a model.
func Load(rd io.Reader) (*Model, error) {
	p, err := ReadParameters(rd)
	if err != nil {
		return nil, err
	}
	m, err := New(p)
	if err != nil {
		return nil, err
	}
	log.Infof("Loaded model %s", m.Name())
	return m, nil
}

// Parameters returns the parameters the model can be rebuilt from.
func (m *Model) Parameters() *Parameters {
	n := m.NPrimary()
	q := make([][]float64, n)
	for i := range q {
		q[i] = make([]float64, n)
		for j := range q[i] {
			q[i][j] = m.qPrimary.At(i, j)
		}
	}
	p := &Parameters{
		Name:           m.name,
		RateOn:         m.rateOn,
		RateOff:        m.rateOff,
		PrimaryWeights: m.PrimaryDistn(),
		QPrimary:       q,
		PrimaryToTol:   m.PrimaryToTol(),
		Root:           m.tree.Name,
		Edges:          append([]tree.Edge(nil), m.edges...),
	}
	for _, e := range m.edges {
		p.BranchLengths = append(p.BranchLengths, BranchLength{
			Parent: e.Parent,
			Child:  e.Child,
			Length: m.edgeToBlen[e],
		})
	}
	return p
}

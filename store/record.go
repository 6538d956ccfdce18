package store

import (
	"fmt"
	"strconv"

	"bitbucket.org/Davydov/codon2x3/evidence"
	"bitbucket.org/Davydov/codon2x3/model"
	"bitbucket.org/Davydov/codon2x3/tree"
)

// EdgeRecord is a tree edge with its branch length.
type EdgeRecord struct {
	Parent string  `json:"parent"`
	Child  string  `json:"child"`
	Length float64 `json:"length"`
}

// ModelRecord is the generative model bundle.
type ModelRecord struct {
	// Name is the model name.
	Name string `json:"name"`
	// Root is the root node name.
	Root string `json:"root"`
	// Edges are the tree edges in the model order.
	Edges []EdgeRecord `json:"edges"`
	// Newick is the tree with branch lengths.
	Newick string `json:"newick"`
	// QPrimary is the unnormalized primary rate matrix.
	QPrimary [][]float64 `json:"qPrimary"`
	// PrimaryToTol maps a primary state to its tolerance class.
	PrimaryToTol []int `json:"primaryToTol"`
	// PrimaryDistn is the primary equilibrium distribution.
	PrimaryDistn []float64 `json:"primaryDistn"`
	RateOn       float64   `json:"rateOn"`
	RateOff      float64   `json:"rateOff"`
	// BlinkDistn is the blink state distribution (off, on).
	BlinkDistn []float64 `json:"blinkDistn"`
}

// NewModelRecord creates a record from a model.
func NewModelRecord(m *model.Model) *ModelRecord {
	edges, root := m.TreeAndRoot()
	blen := m.EdgeToBlen()
	r := &ModelRecord{
		Name:         m.Name(),
		Root:         root,
		Edges:        make([]EdgeRecord, len(edges)),
		Newick:       m.Newick(),
		QPrimary:     m.Parameters().QPrimary,
		PrimaryToTol: m.PrimaryToTol(),
		PrimaryDistn: m.PrimaryDistn(),
		RateOn:       m.RateOn(),
		RateOff:      m.RateOff(),
		BlinkDistn:   m.BlinkDistn(),
	}
	for i, e := range edges {
		r.Edges[i] = EdgeRecord{Parent: e.Parent, Child: e.Child, Length: blen[e]}
	}
	return r
}

// Model rebuilds and validates the model stored in the record.
func (r *ModelRecord) Model() (*model.Model, error) {
	p := &model.Parameters{
		Name:           r.Name,
		RateOn:         r.RateOn,
		RateOff:        r.RateOff,
		PrimaryWeights: r.PrimaryDistn,
		QPrimary:       r.QPrimary,
		PrimaryToTol:   r.PrimaryToTol,
		Root:           r.Root,
	}
	for _, e := range r.Edges {
		p.Edges = append(p.Edges, tree.Edge{Parent: e.Parent, Child: e.Child})
		p.BranchLengths = append(p.BranchLengths, model.BranchLength{
			Parent: e.Parent,
			Child:  e.Child,
			Length: e.Length,
		})
	}
	return model.New(p)
}

// DataRecord is the evidence bundle for one level. Tolerance classes
// are keyed by their decimal index.
type DataRecord struct {
	Level   int                          `json:"level"`
	Primary map[string][]bool            `json:"primary"`
	Tol     map[string]map[string][]bool `json:"tol"`
}

// NewDataRecord creates a record from a data level.
func NewDataRecord(level int, d *evidence.Data) *DataRecord {
	c := d.Copy()
	r := &DataRecord{
		Level:   level,
		Primary: c.Primary,
		Tol:     make(map[string]map[string][]bool, len(c.Tol)),
	}
	for class, m := range c.Tol {
		r.Tol[strconv.Itoa(class)] = m
	}
	return r
}

// Data converts the record back to evidence data and checks it
// against the fixed node names.
func (r *DataRecord) Data() (*evidence.Data, error) {
	d := &evidence.Data{
		Primary: r.Primary,
		Tol:     make(map[int]map[string][]bool, len(r.Tol)),
	}
	for k, m := range r.Tol {
		class, err := strconv.Atoi(k)
		if err != nil {
			return nil, fmt.Errorf("%w: tolerance class %q", evidence.ErrInconsistentEvidence, k)
		}
		d.Tol[class] = m
	}
	if err := d.Check(evidence.NodeNames, evidence.NPrimary, evidence.NTol); err != nil {
		return nil, fmt.Errorf("data level %d: %w", r.Level, err)
	}
	return d.Copy(), nil
}

package evidence

import (
	"fmt"
	"sync"
)

const (
	// NLevels is the number of data levels.
	NLevels = 4
	// NPrimary is the number of primary states.
	NPrimary = 6
	// NTol is the number of tolerance classes.
	NTol = 3
)

// NodeNames are the tree nodes the data refers to.
var NodeNames = []string{"N0", "N1", "N2", "N3", "N4", "N5"}

// b converts 0/1 flags to an allowed states vector.
func b(flags ...int) []bool {
	v := make([]bool, len(flags))
	for i, f := range flags {
		v[i] = f != 0
	}
	return v
}

// unrestricted returns data allowing every state at every node.
func unrestricted() *Data {
	d := &Data{
		Primary: make(map[string][]bool, len(NodeNames)),
		Tol:     make(map[int]map[string][]bool, NTol),
	}
	for _, node := range NodeNames {
		d.Primary[node] = b(1, 1, 1, 1, 1, 1)
	}
	for class := 0; class < NTol; class++ {
		d.Tol[class] = make(map[string][]bool, len(NodeNames))
		for _, node := range NodeNames {
			d.Tol[class][node] = b(1, 1)
		}
	}
	return d
}

// level0 has no restriction on primary or tolerance process data.
func level0() *Data {
	return unrestricted()
}

// level1 is alignment data only. The alignment completely determines
// the primary state at the leaves but says nothing directly about the
// internal nodes. It partially determines the tolerance states at the
// leaves: the class of the observed residue cannot be untolerated.
func level1() *Data {
	return &Data{
		Primary: map[string][]bool{
			"N0": b(1, 0, 0, 0, 0, 0),
			"N1": b(1, 1, 1, 1, 1, 1),
			"N2": b(1, 1, 1, 1, 1, 1),
			"N3": b(0, 0, 0, 0, 1, 0),
			"N4": b(0, 0, 0, 0, 0, 1),
			"N5": b(0, 1, 0, 0, 0, 0),
		},
		Tol: map[int]map[string][]bool{
			0: {
				"N0": b(0, 1),
				"N1": b(1, 1),
				"N2": b(1, 1),
				"N3": b(1, 1),
				"N4": b(1, 1),
				"N5": b(0, 1),
			},
			1: {
				"N0": b(1, 1),
				"N1": b(1, 1),
				"N2": b(1, 1),
				"N3": b(1, 1),
				"N4": b(1, 1),
				"N5": b(1, 1),
			},
			2: {
				"N0": b(1, 1),
				"N1": b(1, 1),
				"N2": b(1, 1),
				"N3": b(0, 1),
				"N4": b(0, 1),
				"N5": b(1, 1),
			},
		},
	}
}

// level2 adds disease data at N0: class 0 is on, class 1 is off and
// class 2 is on.
func level2() *Data {
	d := level1()
	d.Tol[1]["N0"] = b(1, 0)
	d.Tol[2]["N0"] = b(0, 1)
	return d
}

// level3 adds complete disease data at all the leaves.
func level3() *Data {
	d := level2()
	for _, node := range []string{"N3", "N4", "N5"} {
		for class := 0; class < NTol; class++ {
			d.Tol[class][node] = b(0, 1)
		}
	}
	return d
}

var builders = [NLevels]func() *Data{level0, level1, level2, level3}

var (
	once   sync.Once
	levels [NLevels]*Data
	errAll error
)

// build creates and checks all the levels.
func build(builders [NLevels]func() *Data) ([NLevels]*Data, error) {
	var ls [NLevels]*Data
	for i, f := range builders {
		ls[i] = f()
		if err := ls[i].Check(NodeNames, NPrimary, NTol); err != nil {
			return ls, fmt.Errorf("level %d: %w", i, err)
		}
	}
	if err := CheckFiltration(ls[:]...); err != nil {
		return ls, err
	}
	return ls, nil
}

// Get returns data for a level in {0, 1, 2, 3}. Higher levels add
// more data, level zero has no data. All the levels are built and
// checked once, every call returns a fresh copy.
func Get(level int) (*Data, error) {
	if level < 0 || level >= NLevels {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	once.Do(func() {
		levels, errAll = build(builders)
		if errAll != nil {
			log.Errorf("Evidence data is invalid: %v", errAll)
			return
		}
		log.Debugf("Checked %d data levels", NLevels)
	})
	if errAll != nil {
		return nil, errAll
	}
	return levels[level].Copy(), nil
}

// MustGet is like Get but panics on error.
func MustGet(level int) *Data {
	d, err := Get(level)
	if err != nil {
		panic(err)
	}
	return d
}

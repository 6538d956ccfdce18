package main

import (
	"time"

	"bitbucket.org/Davydov/codon2x3/evidence"
	"bitbucket.org/Davydov/codon2x3/model"
)

// ModelSummary stores the check result of one model.
type ModelSummary struct {
	// Name is the model name, File is set for description files.
	Name string `json:"name"`
	File string `json:"file,omitempty"`
	// Tree is the tree in Newick format.
	Tree string `json:"tree,omitempty"`
	// BlinkDistn is the blink state distribution (off, on).
	BlinkDistn []float64 `json:"blinkDistn,omitempty"`
	// Error is the validation error, empty if the model is valid.
	Error string `json:"error,omitempty"`
}

// ValidationSummary is storing validate run summary information.
type ValidationSummary struct {
	// Version stores the program version.
	Version string `json:"version"`
	// CommandLine is an array storing binary name and all command-line parameters.
	CommandLine []string `json:"commandLine"`
	// Models are the checked models.
	Models []ModelSummary `json:"models"`
	// Levels is the number of checked data levels.
	Levels int `json:"levels"`
	// DataError is the data check error, if any.
	DataError string `json:"dataError,omitempty"`
	// OK is true if everything is valid.
	OK bool `json:"ok"`
	// Time is the computations time in seconds.
	Time float64 `json:"time"`
}

// checkModel checks a model and every data level against it.
func checkModel(ms *ModelSummary, m *model.Model, err error) {
	if err == nil {
		for level := 0; level < evidence.NLevels; level++ {
			var d *evidence.Data
			d, err = evidence.Get(level)
			if err != nil {
				break
			}
			if err = d.Check(m.Nodes(), m.NPrimary(), m.NTol()); err != nil {
				break
			}
		}
	}
	if err != nil {
		log.Errorf("Model %s: %v", ms.Name, err)
		ms.Error = err.Error()
		return
	}
	// unnamed models from files keep the file name
	if m.Name() != "" {
		ms.Name = m.Name()
	}
	ms.Tree = m.Newick()
	ms.BlinkDistn = m.BlinkDistn()
	log.Infof("Model %s is valid", ms.Name)
}

// validate checks all the built-in models, the model files and the
// data levels.
func validate(files []string) *ValidationSummary {
	startTime := time.Now()
	summary := &ValidationSummary{OK: true}

	for level := 0; level < evidence.NLevels; level++ {
		if _, err := evidence.Get(level); err != nil {
			summary.DataError = err.Error()
			summary.OK = false
			log.Error(err)
			break
		}
		summary.Levels++
	}

	for _, name := range model.Names() {
		ms := ModelSummary{Name: name}
		m, err := model.Get(name)
		checkModel(&ms, m, err)
		summary.Models = append(summary.Models, ms)
	}

	for _, fn := range files {
		ms := ModelSummary{Name: fn, File: fn}
		m, err := getModel("", fn)
		checkModel(&ms, m, err)
		summary.Models = append(summary.Models, ms)
	}

	for _, ms := range summary.Models {
		if ms.Error != "" {
			summary.OK = false
		}
	}

	summary.Time = time.Since(startTime).Seconds()
	return summary
}

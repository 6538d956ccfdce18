/*

Codon2x3 prints, validates and exports the toy blinking codon model
and its observed data.

The model has six primary states (codons) in three tolerance classes
(amino acids) on a six node tree. Two parameter sets are built in, A
and B. The observed data has four levels, each level adds information
to the previous one.

Print model B and the data at level 2:

	codon2x3 model B
	codon2x3 data 2

Check all the models and data levels, including a model description
file:

	codon2x3 validate --file model.yaml

Save all the bundles to a bolt database:

	codon2x3 export --db bundles.db

To see all the options run:

	codon2x3 --help

*/
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/op/go-logging"

	"bitbucket.org/Davydov/codon2x3/evidence"
	"bitbucket.org/Davydov/codon2x3/model"
	"bitbucket.org/Davydov/codon2x3/store"
)

// These three variables are set during the compilation.
var githash = ""
var gitbranch = ""
var buildstamp = ""
var version = fmt.Sprintf("branch: %s, revision: %s, build time: %s", gitbranch, githash, buildstamp)

// Logger settings.
var log = logging.MustGetLogger("codon2x3")
var formatter = logging.MustStringFormatter(`%{message}`)

// command-line options
var (
	// application
	app = kingpin.New("codon2x3", "toy blinking codon model and data").Version(version)

	// model
	modelCmd  = app.Command("model", "print model parameters")
	modelName = modelCmd.Arg("name", "model name (A or B)").Default("A").String()
	modelFile = modelCmd.Flag("file", "read model description from a YAML file").ExistingFile()
	modelJSON = modelCmd.Flag("json", "print JSON record").Bool()
	modelYAML = modelCmd.Flag("yaml", "print YAML model description").Bool()

	// data
	dataCmd   = app.Command("data", "print observed data")
	dataLevel = dataCmd.Arg("level", "data level (0, 1, 2 or 3)").Required().Int()
	dataJSON  = dataCmd.Flag("json", "print JSON record").Bool()

	// validate
	validateCmd   = app.Command("validate", "check all models and data levels")
	validateFiles = validateCmd.Flag("file", "also check a model description file").ExistingFiles()
	validateJSONF = validateCmd.Flag("json", "write json summary to a file").String()

	// export
	exportCmd = app.Command("export", "save models and data levels to a bolt database")
	exportDB  = exportCmd.Flag("db", "database file").Required().String()

	// load
	loadCmd = app.Command("load", "print a record from a bolt database")
	loadDB  = loadCmd.Flag("db", "database file").Required().ExistingFile()
	loadKey = loadCmd.Arg("key", "record key (e.g. model/A or data/2), list keys if omitted").String()

	// plot
	plotCmd   = app.Command("plot", "plot equilibrium distributions")
	plotName  = plotCmd.Arg("name", "model name (A or B)").Default("A").String()
	plotOut   = plotCmd.Flag("out", "output image file").Default("distn.png").String()
	plotWidth = plotCmd.Flag("width", "image width in inches").Default("6").Float64()

	// input/output
	outLogF  = app.Flag("log", "write log to a file").String()
	logLevel = app.Flag("loglevel", "set loglevel "+
		"('critical', 'error', 'warning', 'notice', 'info', 'debug')").
		Default("notice").
		Enum("critical", "error", "warning", "notice", "info", "debug")
)

// getModel returns a built-in model or reads a model file.
func getModel(name, fileName string) (*model.Model, error) {
	if fileName == "" {
		return model.Get(name)
	}
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return model.Load(f)
}

// writeJSON writes v as indented JSON.
func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printData prints observed data as 0/1 strings per node.
func printData(w io.Writer, level int, d *evidence.Data) {
	flags := func(v []bool) (s string) {
		for _, a := range v {
			if a {
				s += "1"
			} else {
				s += "0"
			}
		}
		return
	}
	fmt.Fprintf(w, "level %d\n", level)
	fmt.Fprintln(w, "node\tprimary\ttol")
	for _, node := range evidence.NodeNames {
		fmt.Fprintf(w, "%s\t%s\t", node, flags(d.Primary[node]))
		for i, class := range d.Classes() {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			fmt.Fprint(w, flags(d.Tol[class][node]))
		}
		fmt.Fprintln(w)
	}
}

// export saves all the built-in models and data levels.
func export(s *store.Store) error {
	for _, name := range model.Names() {
		m, err := model.Get(name)
		if err != nil {
			return err
		}
		if err = s.SaveModel(store.NewModelRecord(m)); err != nil {
			return err
		}
		log.Infof("Saved model %s", name)
	}
	for level := 0; level < evidence.NLevels; level++ {
		d, err := evidence.Get(level)
		if err != nil {
			return err
		}
		if err = s.SaveData(store.NewDataRecord(level, d)); err != nil {
			return err
		}
		log.Infof("Saved data level %d", level)
	}
	return nil
}

// load prints a record or lists the keys.
func load(w io.Writer, s *store.Store, key string) error {
	if key == "" {
		keys, err := s.Keys()
		if err != nil {
			return err
		}
		for _, k := range keys {
			fmt.Fprintln(w, k)
		}
		return nil
	}
	b, err := s.Raw(key)
	if err != nil {
		return err
	}
	// stored records are checked before printing
	switch {
	case store.IsModelKey(key):
		var r store.ModelRecord
		if err = json.Unmarshal(b, &r); err != nil {
			return err
		}
		if _, err = r.Model(); err != nil {
			return err
		}
	case store.IsDataKey(key):
		var r store.DataRecord
		if err = json.Unmarshal(b, &r); err != nil {
			return err
		}
		if _, err = r.Data(); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, string(b))
	return err
}

func setupLogging() (io.Closer, error) {
	logging.SetFormatter(formatter)

	var backend *logging.LogBackend
	var closer io.Closer
	if *outLogF != "" {
		f, err := os.OpenFile(*outLogF, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("error creating log file: %v", err)
		}
		closer = f
		backend = logging.NewLogBackend(f, "", 0)
	} else {
		backend = logging.NewLogBackend(os.Stderr, "", 0)
	}
	logging.SetBackend(backend)

	level, err := logging.LogLevel(*logLevel)
	if err != nil {
		return closer, err
	}
	for _, module := range []string{"codon2x3", "model", "evidence", "tree", "store"} {
		logging.SetLevel(level, module)
	}
	return closer, nil
}

func main() {
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	closer, err := setupLogging()
	if closer != nil {
		defer closer.Close()
	}
	if err != nil {
		log.Fatal(err)
	}

	log.Info(version)
	log.Info("Command line:", os.Args)

	switch cmd {
	case modelCmd.FullCommand():
		m, err := getModel(*modelName, *modelFile)
		if err != nil {
			log.Fatal(err)
		}
		switch {
		case *modelJSON:
			err = writeJSON(os.Stdout, store.NewModelRecord(m))
		case *modelYAML:
			err = model.WriteParameters(os.Stdout, m.Parameters())
		default:
			m.Describe(os.Stdout)
		}
		if err != nil {
			log.Fatal(err)
		}

	case dataCmd.FullCommand():
		d, err := evidence.Get(*dataLevel)
		if err != nil {
			log.Fatal(err)
		}
		if *dataJSON {
			if err = writeJSON(os.Stdout, store.NewDataRecord(*dataLevel, d)); err != nil {
				log.Fatal(err)
			}
		} else {
			printData(os.Stdout, *dataLevel, d)
		}

	case validateCmd.FullCommand():
		summary := validate(*validateFiles)
		summary.Version = version
		summary.CommandLine = os.Args
		if *validateJSONF != "" {
			f, err := os.Create(*validateJSONF)
			if err != nil {
				log.Fatal("Error creating json output file:", err)
			}
			err = writeJSON(f, summary)
			f.Close()
			if err != nil {
				log.Fatal(err)
			}
		}
		if !summary.OK {
			log.Fatal("Validation failed")
		}
		log.Notice("All models and data levels are valid")

	case exportCmd.FullCommand():
		s, err := store.Open(*exportDB)
		if err != nil {
			log.Fatal(err)
		}
		err = export(s)
		s.Close()
		if err != nil {
			log.Fatal(err)
		}
		log.Noticef("Saved %d models and %d data levels to %s", len(model.Names()), evidence.NLevels, *exportDB)

	case loadCmd.FullCommand():
		s, err := store.Open(*loadDB)
		if err != nil {
			log.Fatal(err)
		}
		err = load(os.Stdout, s, *loadKey)
		s.Close()
		if err != nil {
			log.Fatal(err)
		}

	case plotCmd.FullCommand():
		m, err := model.Get(*plotName)
		if err != nil {
			log.Fatal(err)
		}
		if err = plotDistn(m, *plotOut, *plotWidth); err != nil {
			log.Fatal(err)
		}
		log.Noticef("Saved plot to %s", *plotOut)
	}
}

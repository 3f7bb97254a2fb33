package main

import (
	"bufio"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
)

// FragmentSpec names a subset of the atom list; indices are 1-based in
// the input file
type FragmentSpec struct {
	Name  string
	Atoms []int
}

// ConstraintSpec is one constraint block from the input file
type ConstraintSpec struct {
	Type     string // "charge" or "transfer"
	Fragment string // charge
	Donor    string // transfer
	Acceptor string
	N0       float64
	VInit    float64
	Ntol     float64
	Vtol     float64
	DVtol    float64
}

// Config holds the parsed input file. To add a keyword, add a field
// here, a case in ProcessInput, and a default in NewConfig.
type Config struct {
	Job       string
	Optimizer string

	MaxIter int
	MaxStep int
	Ftol    float64

	SleepInt int // engine poll interval, seconds
	MaxWait  int // engine readiness ceiling, seconds

	Nspin      int
	Vspin      int
	N1, N2, N3 int

	Cell     [3][3]float64
	Geometry string
	RunID    string

	EngineDir string
	InitCmd   string
	SCFCmd    string
	OptCmd    string

	VInit   float64
	Step    float64
	Bracket [2]float64

	Ntol, Vtol, DVtol float64

	Fragments   []FragmentSpec
	Constraints []ConstraintSpec

	// species -> cube file holding the atomic reference density
	RhoAtom map[string]string
	// species -> radial density table
	RhoRadial map[string]RadialSpec
	// species -> pseudopotential file, for structure export
	Pseudos map[string]string
}

// RadialSpec points at a two-column radial density table; Nel, when
// nonzero, overrides the neutral-atom electron count used to normalize
// it
type RadialSpec struct {
	File string
	Nel  float64
}

// NewConfig returns a Config with the defaults applied
func NewConfig() *Config {
	return &Config{
		Job:       "scf",
		Optimizer: "secant",
		MaxIter:   1000,
		MaxStep:   100,
		Ftol:      1e-2,
		SleepInt:  2,
		MaxWait:   6 * 3600,
		Nspin:     1,
		Vspin:     1,
		EngineDir: ".",
		SCFCmd:    "run 0 100 5",
		OptCmd:    "run 5 100 5",
		Step:      0.1,
		Bracket:   [2]float64{-1, 1},
		Ntol:      math.NaN(),
		Vtol:      math.NaN(),
		DVtol:     1e-2,
		RhoAtom:   make(map[string]string),
		RhoRadial: make(map[string]RadialSpec),
		Pseudos:   make(map[string]string),
	}
}

func kwpanic(line string, err error) {
	panic(fmt.Sprintf("%v parsing input line %q", err, line))
}

func FloatKeyword(line, val string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
	if err != nil {
		kwpanic(line, err)
	}
	return f
}

func IntKeyword(line, val string) int {
	v, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		kwpanic(line, err)
	}
	return v
}

// TolKeyword reads a tolerance; "none" disables it
func TolKeyword(line, val string) float64 {
	if strings.TrimSpace(strings.ToLower(val)) == "none" {
		return math.NaN()
	}
	return FloatKeyword(line, val)
}

// ProcessInput extracts one keyword=value pair into c
func (c *Config) ProcessInput(line string) {
	split := strings.SplitN(line, "=", 2)
	if len(split) != 2 {
		kwpanic(line, fmt.Errorf("missing ="))
	}
	key := strings.ToLower(strings.TrimSpace(split[0]))
	val := strings.TrimSpace(split[1])
	switch key {
	case "job":
		c.Job = val
	case "optimizer":
		c.Optimizer = val
	case "maxiter":
		c.MaxIter = IntKeyword(line, val)
	case "maxstep":
		c.MaxStep = IntKeyword(line, val)
	case "ftol":
		c.Ftol = FloatKeyword(line, val)
	case "sleepint":
		c.SleepInt = IntKeyword(line, val)
	case "maxwait":
		c.MaxWait = IntKeyword(line, val)
	case "nspin":
		c.Nspin = IntKeyword(line, val)
	case "vspin":
		c.Vspin = IntKeyword(line, val)
	case "grid":
		fields := strings.Fields(val)
		if len(fields) != 3 {
			kwpanic(line, fmt.Errorf("grid wants three dimensions"))
		}
		c.N1 = IntKeyword(line, fields[0])
		c.N2 = IntKeyword(line, fields[1])
		c.N3 = IntKeyword(line, fields[2])
	case "runid":
		c.RunID = val
	case "enginedir":
		c.EngineDir = val
	case "initcmd":
		c.InitCmd = val
	case "scfcmd":
		c.SCFCmd = val
	case "optcmd":
		c.OptCmd = val
	case "vinit":
		c.VInit = FloatKeyword(line, val)
	case "step":
		c.Step = FloatKeyword(line, val)
	case "bracket":
		fields := strings.Fields(val)
		if len(fields) != 2 {
			kwpanic(line, fmt.Errorf("bracket wants two bounds"))
		}
		c.Bracket[0] = FloatKeyword(line, fields[0])
		c.Bracket[1] = FloatKeyword(line, fields[1])
	case "ntol":
		c.Ntol = TolKeyword(line, val)
	case "vtol":
		c.Vtol = TolKeyword(line, val)
	case "dvtol":
		c.DVtol = TolKeyword(line, val)
	case "rhoatom":
		// rhoatom=El:file.cube[,El:file.cube...]
		for _, pair := range strings.Split(val, ",") {
			sp := strings.SplitN(pair, ":", 2)
			if len(sp) != 2 {
				kwpanic(line, fmt.Errorf("malformed rhoatom entry %q", pair))
			}
			c.RhoAtom[strings.TrimSpace(sp[0])] = strings.TrimSpace(sp[1])
		}
	case "rhoradial":
		// rhoradial=El:file[:nel][,El:file[:nel]...]
		for _, pair := range strings.Split(val, ",") {
			sp := strings.SplitN(pair, ":", 3)
			if len(sp) < 2 {
				kwpanic(line, fmt.Errorf("malformed rhoradial entry %q", pair))
			}
			spec := RadialSpec{File: strings.TrimSpace(sp[1])}
			if len(sp) == 3 {
				spec.Nel = FloatKeyword(line, sp[2])
			}
			c.RhoRadial[strings.TrimSpace(sp[0])] = spec
		}
	case "pseudo":
		for _, pair := range strings.Split(val, ",") {
			sp := strings.SplitN(pair, ":", 2)
			if len(sp) != 2 {
				kwpanic(line, fmt.Errorf("malformed pseudo entry %q", pair))
			}
			c.Pseudos[strings.TrimSpace(sp[0])] = strings.TrimSpace(sp[1])
		}
	default:
		panic(fmt.Sprintf("unrecognized keyword %q", key))
	}
}

// processBlock handles one braced block by its keyword
func (c *Config) processBlock(keyword, body string) {
	switch strings.ToLower(strings.TrimSpace(keyword)) {
	case "geometry":
		c.Geometry = strings.TrimSpace(body)
	case "cell":
		lines := CleanSplit(body, "\n")
		if len(lines) != 3 {
			panic("cell block wants three lattice vectors")
		}
		for i, line := range lines {
			fields := strings.Fields(line)
			if len(fields) != 3 {
				panic("cell block wants three components per vector")
			}
			for j, f := range fields {
				c.Cell[i][j] = FloatKeyword(line, f)
			}
		}
	case "fragment":
		var fs FragmentSpec
		for _, line := range CleanSplit(body, "\n") {
			split := strings.SplitN(line, "=", 2)
			if len(split) != 2 {
				kwpanic(line, fmt.Errorf("missing ="))
			}
			key := strings.ToLower(strings.TrimSpace(split[0]))
			val := strings.TrimSpace(split[1])
			switch key {
			case "name":
				fs.Name = val
			case "atoms":
				for _, f := range strings.Split(val, ",") {
					ia := IntKeyword(line, f)
					if ia < 1 {
						kwpanic(line, fmt.Errorf("atom index %d", ia))
					}
					fs.Atoms = append(fs.Atoms, ia-1)
				}
			default:
				panic(fmt.Sprintf("unrecognized fragment keyword %q", key))
			}
		}
		if fs.Name == "" || len(fs.Atoms) == 0 {
			panic("fragment block wants a name and an atom list")
		}
		c.Fragments = append(c.Fragments, fs)
	case "constraint":
		cs := ConstraintSpec{
			VInit: c.VInit,
			Ntol:  c.Ntol,
			Vtol:  c.Vtol,
			DVtol: c.DVtol,
		}
		n0set := false
		for _, line := range CleanSplit(body, "\n") {
			split := strings.SplitN(line, "=", 2)
			if len(split) != 2 {
				kwpanic(line, fmt.Errorf("missing ="))
			}
			key := strings.ToLower(strings.TrimSpace(split[0]))
			val := strings.TrimSpace(split[1])
			switch key {
			case "type":
				cs.Type = strings.ToLower(val)
			case "fragment":
				cs.Fragment = val
			case "donor":
				cs.Donor = val
			case "acceptor":
				cs.Acceptor = val
			case "n0":
				cs.N0 = FloatKeyword(line, val)
				n0set = true
			case "vinit":
				cs.VInit = FloatKeyword(line, val)
			case "ntol":
				cs.Ntol = TolKeyword(line, val)
			case "vtol":
				cs.Vtol = TolKeyword(line, val)
			case "dvtol":
				cs.DVtol = TolKeyword(line, val)
			default:
				panic(fmt.Sprintf("unrecognized constraint keyword %q", key))
			}
		}
		if !n0set {
			panic("constraint block wants a target n0")
		}
		c.Constraints = append(c.Constraints, cs)
	default:
		panic(fmt.Sprintf("unrecognized block keyword %q", keyword))
	}
}

// ParseInfile parses an input file into a fresh Config. Configuration
// errors panic here, before any engine interaction.
func ParseInfile(filename string) *Config {
	f, err := os.Open(filename)
	if err != nil {
		panic(err)
	}
	defer f.Close()
	c := NewConfig()
	scanner := bufio.NewScanner(f)
	var (
		block   strings.Builder
		keyword string
		inblock bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case !inblock && strings.HasPrefix(strings.TrimSpace(line), "#"):
		case !inblock && strings.Contains(line, "{"):
			keyword = strings.SplitN(line, "{", 2)[0]
			inblock = true
		case inblock && strings.Contains(line, "}"):
			inblock = false
			c.processBlock(keyword, block.String())
			block.Reset()
		case inblock:
			block.WriteString(line + "\n")
		case strings.TrimSpace(line) != "":
			c.ProcessInput(line)
		}
	}
	c.WhichJob()
	return c
}

// WhichJob validates the job keyword
func (c *Config) WhichJob() {
	switch c.Job {
	case "scf", "opt":
	default:
		panic("unsupported option for keyword job")
	}
}

// WhichOptimizer builds the multiplier search strategy. The scalar
// strategies demand exactly one constraint; anything else is a
// configuration error caught here, before the engine is touched.
func (c *Config) WhichOptimizer() Strategy {
	scalar := func() {
		if len(c.Constraints) != 1 {
			panic(fmt.Sprintf(
				"optimizer %q requires exactly one constraint, have %d",
				c.Optimizer, len(c.Constraints)))
		}
	}
	bracket := func() {
		if c.Bracket[0] >= c.Bracket[1] {
			panic("bracket lower bound must be below the upper bound")
		}
	}
	switch c.Optimizer {
	case "secant", "":
		scalar()
		return Secant{Step: c.Step, MaxIter: c.MaxIter}
	case "bisect":
		scalar()
		bracket()
		return Bisect{Bracket: c.Bracket, MaxIter: c.MaxIter}
	case "brentq":
		scalar()
		bracket()
		return BrentQ{Bracket: c.Bracket, MaxIter: c.MaxIter}
	case "brenth":
		scalar()
		bracket()
		return BrentH{Bracket: c.Bracket, MaxIter: c.MaxIter}
	case "bfgs":
		return LBFGS{MaxIter: c.MaxIter}
	default:
		panic("unsupported option for keyword optimizer")
	}
}

// BuildSample constructs the Sample with the fragments and constraints
// the input file describes
func (c *Config) BuildSample() *Sample {
	if c.N1 < 1 || c.N2 < 1 || c.N3 < 1 {
		panic("no grid given")
	}
	if c.Geometry == "" {
		panic("no geometry given")
	}
	s := NewSample(c.Cell, c.Nspin, c.Vspin, c.N1, c.N2, c.N3)
	for _, line := range CleanSplit(c.Geometry, "\n") {
		fields := strings.Fields(line)
		if len(fields) != 4 {
			panic(fmt.Sprintf("malformed geometry line %q", line))
		}
		a := &Atom{Symbol: fields[0]}
		for k := 0; k < 3; k++ {
			a.Coord[k] = FloatKeyword(line, fields[k+1])
		}
		s.Atoms = append(s.Atoms, a)
	}
	for _, fs := range c.Fragments {
		s.AddFragment(fs.Name, fs.Atoms)
	}
	if len(c.Constraints) == 0 {
		panic("no constraints given")
	}
	for _, cs := range c.Constraints {
		switch cs.Type {
		case "charge":
			NewCharge(s, s.FragmentByName(cs.Fragment),
				cs.N0, cs.VInit, cs.Ntol, cs.Vtol, cs.DVtol)
		case "transfer":
			NewTransfer(s, s.FragmentByName(cs.Donor),
				s.FragmentByName(cs.Acceptor),
				cs.N0, cs.VInit, cs.Ntol, cs.Vtol, cs.DVtol)
		default:
			panic(fmt.Sprintf("unsupported constraint type %q", cs.Type))
		}
	}
	return s
}

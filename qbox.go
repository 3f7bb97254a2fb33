package main

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Qbox drives a Qbox server session over the file/lock protocol: a
// command is written to the input file, the previously observed lock
// file is removed, and the lock's reappearance signals that the engine
// finished the command and wrote its response to the output file.
type Qbox struct {
	Sample *Sample
	Dir    string // session working directory

	SCFCmd string // e.g. "run 0 100 5"
	OptCmd string // e.g. "run 5 100 5"

	SleepInt time.Duration // poll interval for the lock file
	MaxWait  time.Duration // hard ceiling on one readiness wait

	Iter    int
	archive string

	scfDoc *qbDoc
	optDoc *qbDoc
}

const (
	qbInput      = "cdft.in"
	qbOutput     = "cdft.out"
	qbTranscript = "cdft_complete.in"
	qbVcFile     = "vc.cube"
	qbRhoFile    = "rhor.cube"
	qbWfFile     = "wf.xml"
)

// NewQbox binds a session in dir to s and waits for the engine to
// come up. initCmd is sent once the first lock appears.
func NewQbox(s *Sample, dir, initCmd, scfCmd, optCmd string, sleepInt, maxWait time.Duration) (*Qbox, error) {
	q := &Qbox{
		Sample:   s,
		Dir:      dir,
		SCFCmd:   scfCmd,
		OptCmd:   optCmd,
		SleepInt: sleepInt,
		MaxWait:  maxWait,
	}
	if err := os.WriteFile(q.path(qbTranscript), nil, 0644); err != nil {
		return nil, err
	}
	fmt.Println("Qbox: waiting for engine to start...")
	if err := q.waitLock(); err != nil {
		return nil, err
	}
	if initCmd != "" {
		if err := q.runCmd(initCmd); err != nil {
			return nil, err
		}
	}
	return q, nil
}

func (q *Qbox) path(name string) string { return filepath.Join(q.Dir, name) }

func (q *Qbox) lockFile() string { return q.path(qbInput) + ".lock" }

// waitLock polls for the readiness marker. Exceeding MaxWait is fatal,
// never silently retried.
func (q *Qbox) waitLock() error {
	var waited time.Duration
	for {
		if _, err := os.Stat(q.lockFile()); err == nil {
			return nil
		}
		if waited >= q.MaxWait {
			return ErrEngineTimeout
		}
		time.Sleep(q.SleepInt)
		waited += q.SleepInt
	}
}

// runCmd hands one command to the engine and blocks until it is done
func (q *Qbox) runCmd(cmd string) error {
	if err := os.WriteFile(q.path(qbInput), []byte(cmd+"\n"), 0644); err != nil {
		return err
	}
	f, err := os.OpenFile(q.path(qbTranscript),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	fmt.Fprintln(f, cmd)
	f.Close()
	if err := os.Remove(q.lockFile()); err != nil {
		return err
	}
	return q.waitLock()
}

// SetVc writes the constraint potential as a cube file and points the
// engine's external potential at it
func (q *Qbox) SetVc(vc [][]float64) error {
	if len(vc) != 1 {
		return ErrSpinVext
	}
	if err := WriteCube(q.path(qbVcFile), q.Sample, vc[0]); err != nil {
		return err
	}
	return q.runCmd("set vext " + qbVcFile)
}

// RunSCF orders one constrained minimization, archives the engine
// transcript, and parses the result document
func (q *Qbox) RunSCF() error {
	if err := q.runCmd(q.SCFCmd); err != nil {
		return err
	}
	q.Iter++
	q.archiveOutput(fmt.Sprintf("iter%d.out", q.Iter))
	doc, err := parseQbox(q.path(qbOutput))
	if err != nil {
		return err
	}
	q.scfDoc = doc
	e, err := doc.lastEnergy()
	if err != nil {
		return err
	}
	q.Sample.EdTotal = e
	return nil
}

// FetchEnergy returns the total energy of the last minimization
func (q *Qbox) FetchEnergy() (float64, error) {
	if q.scfDoc == nil {
		return 0, ErrNoResult
	}
	return q.scfDoc.lastEnergy()
}

// FetchRho plots the engine's charge density per spin channel, reads
// it back, and corrects the cube origin convention before storing it
// on the Sample
func (q *Qbox) FetchRho() error {
	s := q.Sample
	for is := 0; is < s.Nspin; is++ {
		cmd := fmt.Sprintf("plot -density %s", qbRhoFile)
		if s.Nspin == 2 {
			cmd = fmt.Sprintf("plot -density -spin %d %s", is+1, qbRhoFile)
		}
		if err := q.runCmd(cmd); err != nil {
			return err
		}
		data, n1, n2, n3, err := ReadCube(q.path(qbRhoFile))
		if err != nil {
			return err
		}
		if n1 != s.N1 || n2 != s.N2 || n3 != s.N3 {
			return fmt.Errorf("density grid %dx%dx%d does not match sample grid",
				n1, n2, n3)
		}
		s.RhoR[is] = RollHalf(data, n1, n2, n3)
	}
	return nil
}

// FetchForce extracts the per-atom forces from the last minimization,
// validating the engine's atom labels against the Sample ordering
func (q *Qbox) FetchForce() ([][3]float64, error) {
	if q.scfDoc == nil {
		return nil, ErrNoResult
	}
	return q.scfDoc.atomVectors(q.Sample, func(a *qbAtom) string { return a.Force })
}

// SetFc defines one external force per atom in the engine, replacing
// any previous definitions
func (q *Qbox) SetFc(fc [][3]float64) error {
	s := q.Sample
	for i, a := range s.Atoms {
		cmd := fmt.Sprintf("extforce delete f%s%d", a.Symbol, i+1)
		if err := q.runCmd(cmd); err != nil {
			return err
		}
	}
	for i, a := range s.Atoms {
		label := fmt.Sprintf("%s%d", a.Symbol, i+1)
		cmd := fmt.Sprintf("extforce define f%s %s %.6f %.6f %.6f",
			label, label, fc[i][0], fc[i][1], fc[i][2])
		if err := q.runCmd(cmd); err != nil {
			return err
		}
	}
	return nil
}

// RunOpt orders one geometry-relaxation round and parses its result
// document separately from the SCF one
func (q *Qbox) RunOpt() error {
	if err := q.runCmd(q.OptCmd); err != nil {
		return err
	}
	q.archiveOutput(fmt.Sprintf("iter%d_opt.out", q.Iter))
	doc, err := parseQbox(q.path(qbOutput))
	if err != nil {
		return err
	}
	q.optDoc = doc
	return nil
}

// FetchGeom updates the Sample's coordinates from the last geometry
// round
func (q *Qbox) FetchGeom() error {
	if q.optDoc == nil {
		return ErrNoResult
	}
	pos, err := q.optDoc.atomVectors(q.Sample, func(a *qbAtom) string { return a.Position })
	if err != nil {
		return err
	}
	for i, a := range q.Sample.Atoms {
		a.Coord = pos[i]
	}
	return nil
}

// FetchWfc saves the engine wavefunction and loads its orbitals onto
// the Sample
func (q *Qbox) FetchWfc() error {
	if err := q.runCmd("save " + qbWfFile); err != nil {
		return err
	}
	wfc, err := parseWfc(q.Sample, q.path(qbWfFile))
	if err != nil {
		return err
	}
	q.Sample.Wfc = wfc
	return nil
}

// Reset points per-run artifacts at a fresh archive directory
func (q *Qbox) Reset(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	q.archive = dir
	q.Iter = 0
	return nil
}

// Close saves the engine wavefunction and removes session files
func (q *Qbox) Close() error {
	if err := q.runCmd("save " + qbWfFile); err != nil {
		return err
	}
	for _, name := range []string{qbInput, qbOutput} {
		os.Remove(q.path(name))
	}
	os.Remove(q.lockFile())
	return nil
}

func (q *Qbox) archiveOutput(name string) {
	if q.archive == "" {
		return
	}
	data, err := os.ReadFile(q.path(qbOutput))
	if err != nil {
		Warn("archiving %s: %v", qbOutput, err)
		return
	}
	if err := os.WriteFile(filepath.Join(q.archive, name), data, 0644); err != nil {
		Warn("archiving %s: %v", name, err)
	}
}

// qbDoc is the structured result document of one engine round
type qbDoc struct {
	Iterations []qbIter `xml:"iteration"`
}

type qbIter struct {
	Etotal  *float64 `xml:"etotal"`
	Atomset struct {
		Atoms []qbAtom `xml:"atom"`
	} `xml:"atomset"`
}

type qbAtom struct {
	Name     string `xml:"name,attr"`
	Species  string `xml:"species,attr"`
	Position string `xml:"position"`
	Force    string `xml:"force"`
}

func parseQbox(filename string) (*qbDoc, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc qbDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func (d *qbDoc) lastEnergy() (float64, error) {
	for i := len(d.Iterations) - 1; i >= 0; i-- {
		if e := d.Iterations[i].Etotal; e != nil {
			return *e, nil
		}
	}
	return 0, ErrEnergyNotFound
}

var qbLabel = regexp.MustCompile(`^([a-zA-Z]+)([0-9]+)$`)

// atomVectors pulls one 3-vector per atom out of the last iteration
// carrying an atomset, checking that every engine label matches the
// Sample's own symbol and ordering
func (d *qbDoc) atomVectors(s *Sample, field func(*qbAtom) string) ([][3]float64, error) {
	var set []qbAtom
	for i := len(d.Iterations) - 1; i >= 0; i-- {
		if len(d.Iterations[i].Atomset.Atoms) > 0 {
			set = d.Iterations[i].Atomset.Atoms
			break
		}
	}
	if len(set) != s.Natoms() {
		return nil, ErrStructureMismatch
	}
	out := make([][3]float64, s.Natoms())
	for _, a := range set {
		m := qbLabel.FindStringSubmatch(a.Name)
		if m == nil {
			return nil, ErrStructureMismatch
		}
		index, err := strconv.Atoi(m[2])
		if err != nil || index < 1 || index > s.Natoms() ||
			s.Atoms[index-1].Symbol != m[1] {
			return nil, ErrStructureMismatch
		}
		fields := strings.Fields(field(&a))
		if len(fields) != 3 {
			return nil, fmt.Errorf("atom %s: malformed vector %q",
				a.Name, field(&a))
		}
		for k, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, err
			}
			out[index-1][k] = v
		}
	}
	return out, nil
}

// qbWfDoc is the structured wavefunction document a save command
// writes: one slater_determinant per spin channel, one grid_function
// per orbital
type qbWfDoc struct {
	Wavefunction struct {
		Nspin int `xml:"nspin,attr"`
		Grid  struct {
			Nx int `xml:"nx,attr"`
			Ny int `xml:"ny,attr"`
			Nz int `xml:"nz,attr"`
		} `xml:"grid"`
		Determinants []struct {
			GridFunctions []struct {
				Encoding string `xml:"encoding,attr"`
				Data     string `xml:",chardata"`
			} `xml:"grid_function"`
		} `xml:"slater_determinant"`
	} `xml:"wavefunction"`
}

func parseWfc(s *Sample, filename string) (*Wavefunction, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var doc qbWfDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	wf := doc.Wavefunction
	m1, m2, m3 := wf.Grid.Nx, wf.Grid.Ny, wf.Grid.Nz
	if m1 < 1 || m2 < 1 || m3 < 1 {
		return nil, fmt.Errorf("wavefunction document carries no grid")
	}
	if wf.Nspin != s.Nspin {
		return nil, fmt.Errorf("wavefunction has %d spin channels, sample has %d",
			wf.Nspin, s.Nspin)
	}
	if len(wf.Determinants) != wf.Nspin {
		return nil, fmt.Errorf("wavefunction has %d determinants for %d spin channels",
			len(wf.Determinants), wf.Nspin)
	}
	nbnd := make([][]int, wf.Nspin)
	for is, det := range wf.Determinants {
		nbnd[is] = []int{len(det.GridFunctions)}
	}
	out := NewWavefunction(s, m1, m2, m3, wf.Nspin, 1, nbnd)
	m := m1 * m2 * m3
	for is, det := range wf.Determinants {
		for ib, gf := range det.GridFunctions {
			if gf.Encoding != "" && gf.Encoding != "text" {
				return nil, fmt.Errorf("grid_function encoding %q not supported",
					gf.Encoding)
			}
			fields := strings.Fields(gf.Data)
			if len(fields) != m {
				return nil, fmt.Errorf("orbital (%d,0,%d): %d values on a %dx%dx%d grid",
					is, ib, len(fields), m1, m2, m3)
			}
			psi := make([]complex128, m)
			// the document runs x fastest; repack to the z-fastest
			// Sample layout before the forward transform
			idx := 0
			for i3 := 0; i3 < m3; i3++ {
				for i2 := 0; i2 < m2; i2++ {
					for i1 := 0; i1 < m1; i1++ {
						v, err := strconv.ParseFloat(fields[idx], 64)
						if err != nil {
							return nil, err
						}
						psi[(i1*m2+i2)*m3+i3] = complex(v, 0)
						idx++
					}
				}
			}
			FFT3(psi, m1, m2, m3)
			out.SetPsiG(is, 0, ib, psi)
			out.Orbitals[out.Idx(is, 0, ib)].Occ = 1
		}
	}
	return out, nil
}

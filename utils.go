package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// CleanSplit splits a line using strings.Split and then removes
// empty entries
func CleanSplit(str, sep string) []string {
	lines := strings.Split(str, sep)
	clean := make([]string, 0, len(lines))
	for s := range lines {
		if lines[s] != "" {
			clean = append(clean, lines[s])
		}
	}
	return clean
}

// StartEngine launches the engine program in server mode in dir,
// reading commands from infile and appending responses to outfile. The
// returned process runs until the driver closes the session.
func StartEngine(progName, dir, infile, outfile string) (*exec.Cmd, error) {
	fields := strings.Fields(progName)
	cmd := exec.Command(fields[0], append(fields[1:], infile, outfile)...)
	cmd.Dir = dir
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// MakeName builds a molecule name from an atom list
func MakeName(atoms []*Atom) (name string) {
	counts := make(map[string]int)
	for _, a := range atoms {
		counts[strings.ToLower(a.Symbol)]++
	}
	toSort := make([]string, 0, len(counts))
	for k := range counts {
		toSort = append(toSort, k)
	}
	sort.Strings(toSort)
	for _, k := range toSort {
		v := counts[k]
		name += strings.ToUpper(string(k[0])) + k[1:]
		if v > 1 {
			name += fmt.Sprintf("%d", v)
		}
	}
	return
}

// ReadFile reads a file and returns a slice of strings of the lines
func ReadFile(filename string) (lines []string, err error) {
	f, err := os.Open(filename)
	defer f.Close()
	if err != nil {
		return nil, err
	}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func errExit(err error, msg string) {
	fmt.Fprintf(os.Stderr, "cdft: %v %s\n", err, msg)
	os.Exit(1)
}

// TrimExt takes a file name and returns it with the extension removed
// using filepath.Ext
func TrimExt(filename string) string {
	lext := len(filepath.Ext(filename))
	return filename[:len(filename)-lext]
}

// Warn prints a warning message to stdout and increments the global
// warning counter
func Warn(format string, a ...interface{}) {
	fmt.Printf("warning: "+format+"\n", a...)
	Global.Warnings++
}

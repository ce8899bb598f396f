package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Modification represents a peptide modification with position and mass shift.
type Modification struct {
	Mass     float64
	Position int    // 0-based residue index; -1 for N-term
	Name     string // Modification name (e.g., "Carbamidomethyl", "Oxidation")
	Symbol   rune   // Annotation symbol following the residue (e.g. '*'), 0 if none
}

// ErrUnknownModification is returned for a name or symbol that is not defined.
var ErrUnknownModification = errors.New("unknown modification")

// ModDatabase maps modification names to mass shifts and annotation symbols
// to names.
type ModDatabase struct {
	masses  map[string]float64
	symbols map[rune]string
}

// NewModDatabase creates an empty modification database
func NewModDatabase() *ModDatabase {
	return &ModDatabase{
		masses:  make(map[string]float64),
		symbols: make(map[rune]string),
	}
}

// Define adds or replaces a modification.
func (db *ModDatabase) Define(name string, mass float64) {
	db.masses[name] = mass
}

// Mass returns the mass shift of a named modification.
func (db *ModDatabase) Mass(name string) (float64, bool) {
	mass, ok := db.masses[name]
	return mass, ok
}

// BindSymbol makes symbol stand for a defined modification.
func (db *ModDatabase) BindSymbol(symbol rune, name string) error {
	if _, ok := db.masses[name]; !ok {
		return fmt.Errorf("%w '%s'", ErrUnknownModification, name)
	}
	db.symbols[symbol] = name
	return nil
}

// Symbol returns the modification bound to an annotation symbol.
func (db *ModDatabase) Symbol(symbol rune) (string, float64, bool) {
	name, ok := db.symbols[symbol]
	if !ok {
		return "", 0, false
	}
	return name, db.masses[name], true
}

// SymbolFor returns the lowest symbol whose modification has the given mass
// to four decimals, or 0.
func (db *ModDatabase) SymbolFor(mass float64) rune {
	want := RoundTo(mass, 4)
	var best rune
	for sym, name := range db.symbols {
		if RoundTo(db.masses[name], 4) != want {
			continue
		}
		if best == 0 || sym < best {
			best = sym
		}
	}
	return best
}

// LoadFromCSV reads modification definitions with a header row naming the
// columns "mod" and "massshift", and optionally "symbol". A one-character
// symbol is bound to its modification.
func (db *ModDatabase) LoadFromCSV(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return fmt.Errorf("failed to read CSV header: %w", err)
	}
	col := map[string]int{"mod": -1, "massshift": -1, "symbol": -1}
	for i, name := range header {
		if _, ok := col[strings.ToLower(strings.TrimSpace(name))]; ok {
			col[strings.ToLower(strings.TrimSpace(name))] = i
		}
	}
	if col["mod"] < 0 || col["massshift"] < 0 {
		return fmt.Errorf("CSV header must name 'mod' and 'massshift' columns, got %v", header)
	}

	for {
		record, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("error reading CSV: %w", err)
		}
		line, _ := cr.FieldPos(0)
		if len(record) == 1 && strings.TrimSpace(record[0]) == "" {
			continue
		}
		if len(record) <= col["massshift"] || len(record) <= col["mod"] {
			return fmt.Errorf("line %d: expected at least %d fields, got %d", line, col["massshift"]+1, len(record))
		}

		name := strings.TrimSpace(record[col["mod"]])
		massStr := strings.TrimSpace(record[col["massshift"]])
		mass, err := strconv.ParseFloat(massStr, 64)
		if err != nil {
			return fmt.Errorf("line %d: invalid mass value '%s': %w", line, massStr, err)
		}
		db.Define(name, mass)

		if i := col["symbol"]; i >= 0 && i < len(record) {
			if sym := []rune(strings.TrimSpace(record[i])); len(sym) == 1 {
				db.symbols[sym[0]] = name
			}
		}
	}
}

// ParseModifiedSequence parses a sequence carrying inline modifications,
// either as mass shifts in brackets following the residue ("PEPS[79.97]TIDE",
// "M[15.99,0.98]") or as symbols ("PEPS*TIDE"). A bracket before the first
// residue modifies the N-terminus. It returns the bare sequence and the
// modification list.
func (db *ModDatabase) ParseModifiedSequence(modSeq string) (string, []Modification, error) {
	var seq []rune
	var mods []Modification

	rest := modSeq
	for rest != "" {
		r, size := utf8.DecodeRuneInString(rest)
		rest = rest[size:]
		pos := len(seq) - 1

		switch {
		case unicode.IsUpper(r):
			seq = append(seq, r)
		case r == '[':
			inner, after, ok := strings.Cut(rest, "]")
			if !ok {
				return "", nil, fmt.Errorf("unterminated '[' in '%s'", modSeq)
			}
			for _, field := range strings.Split(inner, ",") {
				mass, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
				if err != nil {
					return "", nil, fmt.Errorf("invalid mass '%s' in '%s': %w", field, modSeq, err)
				}
				mods = append(mods, Modification{Mass: mass, Position: pos})
			}
			rest = after
		default:
			name, mass, ok := db.Symbol(r)
			if !ok {
				return "", nil, fmt.Errorf("%w symbol '%c' in '%s'", ErrUnknownModification, r, modSeq)
			}
			mods = append(mods, Modification{Mass: mass, Position: pos, Name: name, Symbol: r})
		}
	}
	return string(seq), mods, nil
}

// ParseModList parses a semicolon separated list of modifications written as
// "name@position" or "mass@position", for example
// "Carbamidomethyl@C2;15.994915@8". Positions are 1-based and may carry the
// residue letter; "-1" marks the N-terminus.
func (db *ModDatabase) ParseModList(list string, sequence string) ([]Modification, error) {
	var mods []Modification
	for _, part := range strings.Split(list, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		what, where, ok := strings.Cut(part, "@")
		if !ok {
			return nil, fmt.Errorf("invalid modification '%s', expected 'name@position' or 'mass@position'", part)
		}
		what = strings.TrimSpace(what)

		mass, err := strconv.ParseFloat(what, 64)
		if err != nil {
			var known bool
			if mass, known = db.Mass(what); !known {
				return nil, fmt.Errorf("%w '%s'", ErrUnknownModification, what)
			}
		}

		pos, err := modPosition(strings.TrimSpace(where), sequence)
		if err != nil {
			return nil, fmt.Errorf("modification '%s': %w", part, err)
		}
		mods = append(mods, Modification{Mass: mass, Position: pos, Name: what, Symbol: db.SymbolFor(mass)})
	}
	return mods, nil
}

// modPosition converts a 1-based position, optionally prefixed by its
// residue, to a 0-based index. The residue must match the sequence.
func modPosition(s string, sequence string) (int, error) {
	if s == "-1" {
		return -1, nil
	}
	var residue byte
	if s != "" && s[0] >= 'A' && s[0] <= 'Z' {
		residue, s = s[0], s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid position: %w", err)
	}
	if n < 1 || n > len(sequence) {
		return 0, fmt.Errorf("position %d outside sequence of length %d", n, len(sequence))
	}
	if residue != 0 && sequence[n-1] != residue {
		return 0, fmt.Errorf("position %d is %c, not %c", n, sequence[n-1], residue)
	}
	return n - 1, nil
}

var defaultMods = []struct {
	name   string
	mass   float64
	symbol rune
}{
	{"Acetyl", 42.010565, '^'},
	{"Amidated", -0.984016, 0},
	{"Carbamidomethyl", 57.021464, 0},
	{"Carbamyl", 43.005814, 0},
	{"Deamidated", 0.984016, '@'},
	{"Phospho", 79.966331, '*'},
	{"Methyl", 14.01565, 0},
	{"Oxidation", 15.994915, '#'},
	{"Dimethyl", 28.0313, 0},
	{"Glu->pyro-Glu", -18.010565, 0},
	{"Gln->pyro-Glu", -17.026549, 0},
	{"TMT6plex", 229.162932, 0},
	{"TMTPro", 304.207146, 0},
	{"iTRAQ4plex", 144.102063, 0},
	{"iTRAQ8plex", 304.205360, 0},
}

// DefaultModDatabase returns a ModDatabase pre-loaded with common unimod
// modifications and the conventional symbols for variable ones.
func DefaultModDatabase() *ModDatabase {
	db := NewModDatabase()
	for _, m := range defaultMods {
		db.Define(m.name, m.mass)
		if m.symbol != 0 {
			db.symbols[m.symbol] = m.name
		}
	}
	return db
}

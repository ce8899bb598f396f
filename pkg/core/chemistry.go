package core

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Monoisotopic element masses
const (
	MassH = 1.0078250321
	MassC = 12.0000000000
	MassN = 14.0030740052
	MassO = 15.9949146221
	MassS = 31.9720706900

	// Proton mass for charge calculations
	ProtonMass = 1.00727646688

	MassH2O = 2*MassH + MassO
	MassNH3 = MassN + 3*MassH
)

// Discretization of m/z into integer bins. A peak at m/z x falls into bin
// floor(x/BinWidth + BinOffset).
const (
	BinWidth  = 1.0005079
	BinOffset = 0.40
)

// MZToBin returns the integer bin holding the given m/z.
func MZToBin(mz float64) int {
	return int(math.Floor(mz/BinWidth + BinOffset))
}

// BinToMZ returns the representative m/z of a bin.
func BinToMZ(bin int) float64 {
	return (float64(bin) - BinOffset + 0.5) * BinWidth
}

// ErrInvalidFormula is returned by ParseFormula.
var ErrInvalidFormula = errors.New("invalid formula")

// Formula counts the C, H, N, O and S atoms of a molecule.
type Formula struct {
	C, H, N, O, S int
}

// ParseFormula reads a Hill-style formula such as "C6H12N4O". A missing
// count means one atom and elements may repeat.
func ParseFormula(s string) (Formula, error) {
	var f Formula
	for i := 0; i < len(s); {
		elem := s[i]
		i++
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		n := 1
		if j > i {
			var err error
			if n, err = strconv.Atoi(s[i:j]); err != nil {
				return Formula{}, fmt.Errorf("%w '%s': %v", ErrInvalidFormula, s, err)
			}
		}
		i = j

		switch elem {
		case 'C':
			f.C += n
		case 'H':
			f.H += n
		case 'N':
			f.N += n
		case 'O':
			f.O += n
		case 'S':
			f.S += n
		default:
			return Formula{}, fmt.Errorf("%w '%s': unknown element %q", ErrInvalidFormula, s, elem)
		}
	}
	return f, nil
}

// Mass returns the monoisotopic mass of the formula.
func (f Formula) Mass() float64 {
	return float64(f.C)*MassC + float64(f.H)*MassH + float64(f.N)*MassN +
		float64(f.O)*MassO + float64(f.S)*MassS
}

// residueFormulas are the in-chain compositions of the standard amino acids.
var residueFormulas = map[rune]string{
	'G': "C2H3NO", 'A': "C3H5NO", 'S': "C3H5NO2", 'P': "C5H7NO",
	'V': "C5H9NO", 'T': "C4H7NO2", 'C': "C3H5NOS", 'L': "C6H11NO",
	'I': "C6H11NO", 'N': "C4H6N2O2", 'D': "C4H5NO3", 'Q': "C5H8N2O2",
	'K': "C6H12N2O", 'E': "C5H7NO3", 'M': "C5H9NOS", 'H': "C6H7N3O",
	'F': "C9H9NO", 'R': "C6H12N4O", 'Y': "C9H9NO2", 'W': "C11H10N2O",
}

var residueMasses = func() map[rune]float64 {
	masses := make(map[rune]float64, len(residueFormulas))
	for aa, formula := range residueFormulas {
		f, err := ParseFormula(formula)
		if err != nil {
			panic(err)
		}
		masses[aa] = f.Mass()
	}
	return masses
}()

// ResidueMass returns the monoisotopic residue mass of an amino acid, or
// false for an unknown code.
func ResidueMass(aa rune) (float64, bool) {
	m, ok := residueMasses[aa]
	return m, ok
}

// SequenceMass returns the neutral monoisotopic mass of a peptide: its
// residues, one water, and every modification. Unknown residues add nothing.
func SequenceMass(sequence string, modifications []Modification) float64 {
	mass := MassH2O
	for _, aa := range sequence {
		mass += residueMasses[aa]
	}
	for _, mod := range modifications {
		mass += mod.Mass
	}
	return mass
}

// ChargedMZ converts a neutral mass to the m/z of its [M+zH] ion.
func ChargedMZ(neutral float64, charge int) float64 {
	return (neutral + float64(charge)*ProtonMass) / float64(charge)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

package core

import (
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
)

// Peptide is a candidate peptide sequence together with its modifications
// and the proteins it was derived from.
type Peptide struct {
	Sequence      string
	Modifications []Modification
	ProteinIDs    []string
	FlankN        byte // Residue preceding the peptide, '-' at a protein terminus
	FlankC        byte // Residue following the peptide, '-' at a protein terminus
	Decoy         bool
	Unshuffled    string // Target sequence a decoy was derived from
}

// NeutralMass returns the monoisotopic neutral mass including modifications.
func (p *Peptide) NeutralMass() float64 {
	return SequenceMass(p.Sequence, p.Modifications)
}

// Len returns the number of residues.
func (p *Peptide) Len() int {
	return len(p.Sequence)
}

// ResidueMasses returns per-residue masses with modifications applied.
// N-terminal modifications are folded into the first residue.
func (p *Peptide) ResidueMasses() []float64 {
	masses := make([]float64, len(p.Sequence))
	for i, aa := range p.Sequence {
		masses[i], _ = ResidueMass(aa)
	}
	for _, mod := range p.Modifications {
		pos := mod.Position
		if pos < 0 {
			pos = 0
		}
		if pos < len(masses) {
			masses[pos] += mod.Mass
		}
	}
	return masses
}

// modsByPosition groups modification masses by residue index.
func (p *Peptide) modsByPosition() map[int][]Modification {
	byPos := make(map[int][]Modification, len(p.Modifications))
	for _, mod := range p.Modifications {
		byPos[mod.Position] = append(byPos[mod.Position], mod)
	}
	return byPos
}

// ModSequenceWithMasses returns the sequence with each modified residue
// followed by its mass shift in brackets. When merge is true multiple shifts
// on one residue are summed, otherwise they are comma separated.
func (p *Peptide) ModSequenceWithMasses(merge bool) string {
	byPos := p.modsByPosition()
	var b strings.Builder

	writeMods := func(mods []Modification) {
		if len(mods) == 0 {
			return
		}
		b.WriteByte('[')
		if merge {
			total := 0.0
			for _, mod := range mods {
				total += mod.Mass
			}
			b.WriteString(strconv.FormatFloat(RoundTo(total, 2), 'f', -1, 64))
		} else {
			for i, mod := range mods {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(strconv.FormatFloat(RoundTo(mod.Mass, 2), 'f', -1, 64))
			}
		}
		b.WriteByte(']')
	}

	writeMods(byPos[-1])
	for i := 0; i < len(p.Sequence); i++ {
		b.WriteByte(p.Sequence[i])
		writeMods(byPos[i])
	}
	return b.String()
}

// ModSequenceWithSymbols returns the sequence with modification symbols
// following each modified residue. Modifications without a symbol are
// written as bracketed masses.
func (p *Peptide) ModSequenceWithSymbols() string {
	byPos := p.modsByPosition()
	var b strings.Builder
	for i := 0; i < len(p.Sequence); i++ {
		b.WriteByte(p.Sequence[i])
		for _, mod := range byPos[i] {
			if mod.Symbol != 0 {
				b.WriteRune(mod.Symbol)
			} else {
				fmt.Fprintf(&b, "[%.2f]", mod.Mass)
			}
		}
	}
	return b.String()
}

// SQTSequence returns the sequence in X.SEQ.X form with flanking residues.
func (p *Peptide) SQTSequence() string {
	return fmt.Sprintf("%c.%s.%c", flank(p.FlankN), p.ModSequenceWithSymbols(), flank(p.FlankC))
}

// FlankingResidues returns the two flanking residues, e.g. "KA".
func (p *Peptide) FlankingResidues() string {
	return string([]byte{flank(p.FlankN), flank(p.FlankC)})
}

func flank(b byte) byte {
	if b == 0 {
		return '-'
	}
	return b
}

// ProteinIDString returns the protein IDs joined by commas.
func (p *Peptide) ProteinIDString() string {
	return strings.Join(p.ProteinIDs, ",")
}

// Shuffle returns a decoy copy of the peptide. The terminal residues stay in
// place and the interior residues are permuted with a generator seeded from
// the sequence and the decoy index, so the same target always yields the
// same decoy. Modifications travel with their residues.
func (p *Peptide) Shuffle(decoyIndex int) *Peptide {
	n := len(p.Sequence)
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}

	if n > 3 {
		var seed int64 = int64(decoyIndex) + 1
		for _, aa := range p.Sequence {
			seed = seed*31 + int64(aa)
		}
		rng := rand.New(rand.NewSource(seed))
		interior := perm[1 : n-1]
		rng.Shuffle(len(interior), func(i, j int) {
			interior[i], interior[j] = interior[j], interior[i]
		})
		// Fall back to reversing the interior when shuffling reproduced the target.
		if permute(p.Sequence, perm) == p.Sequence {
			for i := range perm {
				perm[i] = i
			}
			for i, j := 1, n-2; i < j; i, j = i+1, j-1 {
				perm[i], perm[j] = perm[j], perm[i]
			}
		}
	}

	newPos := make(map[int]int, n)
	for dst, src := range perm {
		newPos[src] = dst
	}

	mods := make([]Modification, len(p.Modifications))
	for i, mod := range p.Modifications {
		mods[i] = mod
		if mod.Position >= 0 {
			mods[i].Position = newPos[mod.Position]
		}
	}
	sort.SliceStable(mods, func(i, j int) bool { return mods[i].Position < mods[j].Position })

	return &Peptide{
		Sequence:      permute(p.Sequence, perm),
		Modifications: mods,
		ProteinIDs:    append([]string(nil), p.ProteinIDs...),
		FlankN:        p.FlankN,
		FlankC:        p.FlankC,
		Decoy:         true,
		Unshuffled:    p.Sequence,
	}
}

func permute(seq string, perm []int) string {
	out := make([]byte, len(perm))
	for dst, src := range perm {
		out[dst] = seq[src]
	}
	return string(out)
}

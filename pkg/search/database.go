package search

import (
	"fmt"
	"io"
	"sort"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/reader/delimited"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/tab"
)

// Database holds candidate peptides ordered by neutral mass.
type Database struct {
	peptides []*core.Peptide
	masses   []float64
	proteins int
}

// NewDatabase indexes peptides by neutral mass.
func NewDatabase(peptides []*core.Peptide) *Database {
	sorted := append([]*core.Peptide(nil), peptides...)
	masses := make(map[*core.Peptide]float64, len(sorted))
	proteins := make(map[string]bool)
	for _, p := range sorted {
		masses[p] = p.NeutralMass()
		for _, id := range p.ProteinIDs {
			proteins[id] = true
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return masses[sorted[i]] < masses[sorted[j]]
	})

	d := &Database{peptides: sorted, masses: make([]float64, len(sorted)), proteins: len(proteins)}
	for i, p := range sorted {
		d.masses[i] = masses[p]
	}
	return d
}

// Len returns the number of peptides.
func (d *Database) Len() int { return len(d.peptides) }

// NumProteins returns the number of distinct protein ids.
func (d *Database) NumProteins() int { return d.proteins }

// Candidates returns the peptides whose neutral mass lies within window of
// mass, lightest first.
func (d *Database) Candidates(mass, window float64) []*core.Peptide {
	lo := sort.SearchFloat64s(d.masses, mass-window)
	hi := lo
	for hi < len(d.masses) && d.masses[hi] <= mass+window {
		hi++
	}
	return d.peptides[lo:hi]
}

// ModificationsColumn optionally lists modifications of a peptide as
// "name@position" or "mass@position", separated by semicolons.
const ModificationsColumn = "modifications"

// ReadPeptides loads a tab-delimited peptide list. The "sequence" column is
// required and may carry inline modifications; "protein id" (comma
// separated), "flanking aa" and ModificationsColumn are optional.
func ReadPeptides(r io.Reader, modDB *core.ModDatabase) (*Database, error) {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	dr, err := delimited.NewReader(r, true)
	if err != nil {
		return nil, err
	}
	seqCol := tab.ColSequence.String()
	if dr.FindColumn(seqCol) < 0 {
		return nil, fmt.Errorf("%w: '%s'", delimited.ErrColumnNotFound, seqCol)
	}
	hasProteins := dr.FindColumn(tab.ColProteinID.String()) >= 0
	hasFlanks := dr.FindColumn(tab.ColFlankingAA.String()) >= 0
	hasMods := dr.FindColumn(ModificationsColumn) >= 0

	var peptides []*core.Peptide
	for dr.Next() {
		modSeq, err := dr.String(seqCol)
		if err != nil {
			return nil, err
		}
		seq, mods, err := modDB.ParseModifiedSequence(modSeq)
		if err != nil {
			return nil, fmt.Errorf("peptide %d: %w", len(peptides)+1, err)
		}
		if seq == "" {
			continue
		}
		if hasMods {
			list, err := dr.String(ModificationsColumn)
			if err != nil {
				return nil, err
			}
			extra, err := modDB.ParseModList(list, seq)
			if err != nil {
				return nil, fmt.Errorf("peptide %d: %w", len(peptides)+1, err)
			}
			mods = append(mods, extra...)
		}
		p := &core.Peptide{Sequence: seq, Modifications: mods}
		if hasProteins {
			if p.ProteinIDs, err = dr.Strings(tab.ColProteinID.String(), ","); err != nil {
				return nil, err
			}
		}
		if hasFlanks {
			flanks, err := dr.String(tab.ColFlankingAA.String())
			if err != nil {
				return nil, err
			}
			if len(flanks) == 2 {
				p.FlankN, p.FlankC = flanks[0], flanks[1]
			}
		}
		peptides = append(peptides, p)
	}
	if err := dr.Err(); err != nil {
		return nil, fmt.Errorf("failed to read peptides: %w", err)
	}
	return NewDatabase(peptides), nil
}

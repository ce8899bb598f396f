package delimited

import (
	"fmt"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/tab"
)

// ReadMatches loads every row of a tab-delimited match file into a new
// collection. Score types whose column is present are registered; empty
// score cells leave the score unset. Rows sharing a scan and charge share one
// spectrum. decoy marks every match as coming from a decoy channel.
func ReadMatches(r *Reader, modDB *core.ModDatabase, decoy bool) (*match.Collection, error) {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	for _, col := range []tab.Column{tab.ColScan, tab.ColCharge, tab.ColSequence} {
		if r.FindColumn(col.String()) < 0 {
			return nil, fmt.Errorf("%w: '%s'", ErrColumnNotFound, col)
		}
	}

	c := match.NewCollection(0)
	var present []match.ScoreType
	for _, t := range match.ScoreTypes() {
		if col, ok := tab.ScoreColumn(t); ok && r.FindColumn(col.String()) >= 0 {
			present = append(present, t)
		}
	}
	c.RegisterScores(present...)

	type specKey struct{ scan, charge int }
	spectra := make(map[specKey]*core.Spectrum)

	for r.Next() {
		m, err := readMatch(r, modDB, present, decoy)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", r.rowNum, err)
		}

		k := specKey{scan: m.Spectrum.FirstScan, charge: m.Charge}
		if spec, ok := spectra[k]; ok {
			m.Spectrum = spec
		} else {
			spectra[k] = m.Spectrum
		}

		if err := c.Add(m); err != nil {
			return nil, err
		}
	}
	if err := r.Err(); err != nil {
		return nil, err
	}
	return c, nil
}

func readMatch(r *Reader, modDB *core.ModDatabase, present []match.ScoreType, decoy bool) (*match.Match, error) {
	scan, err := r.Int(tab.ColScan.String())
	if err != nil {
		return nil, err
	}
	charge, err := r.Int(tab.ColCharge.String())
	if err != nil {
		return nil, err
	}
	modSeq, err := r.String(tab.ColSequence.String())
	if err != nil {
		return nil, err
	}
	seq, mods, err := modDB.ParseModifiedSequence(modSeq)
	if err != nil {
		return nil, err
	}

	spec := &core.Spectrum{FirstScan: scan, LastScan: scan}
	if r.FindColumn(tab.ColPrecursorMZ.String()) >= 0 {
		if spec.PrecursorMZ, err = r.Float(tab.ColPrecursorMZ.String()); err != nil {
			return nil, err
		}
	}

	p := &core.Peptide{Sequence: seq, Modifications: mods, Decoy: decoy}
	if r.FindColumn(tab.ColProteinID.String()) >= 0 {
		if p.ProteinIDs, err = r.Strings(tab.ColProteinID.String(), ","); err != nil {
			return nil, err
		}
	}
	if r.FindColumn(tab.ColFlankingAA.String()) >= 0 {
		flanks, err := r.String(tab.ColFlankingAA.String())
		if err != nil {
			return nil, err
		}
		if len(flanks) == 2 {
			p.FlankN, p.FlankC = flanks[0], flanks[1]
		}
	}
	if r.FindColumn(tab.ColUnshuffledSequence.String()) >= 0 {
		if p.Unshuffled, err = r.String(tab.ColUnshuffledSequence.String()); err != nil {
			return nil, err
		}
	}

	m := match.New(p, spec, charge)
	for _, t := range present {
		col, _ := tab.ScoreColumn(t)
		cell, err := r.String(col.String())
		if err != nil {
			return nil, err
		}
		if cell == "" {
			continue
		}
		v, err := ParseFloat(cell)
		if err != nil {
			return nil, fmt.Errorf("column '%s': %w", col, err)
		}
		m.SetScore(t, v)

		if rankCol, ok := tab.RankColumn(t); ok && r.FindColumn(rankCol.String()) >= 0 {
			rank, err := r.Int(rankCol.String())
			if err != nil {
				return nil, err
			}
			m.SetRank(t, rank)
		}
	}

	if r.FindColumn(tab.ColDeltaCn.String()) >= 0 {
		delta, err := r.Float(tab.ColDeltaCn.String())
		if err != nil {
			return nil, err
		}
		m.SetDeltaCn(delta)
	}
	if r.FindColumn(tab.ColByIonsTotal.String()) >= 0 {
		if m.ByIonsMatched, err = r.Int(tab.ColByIonsMatched.String()); err != nil {
			return nil, err
		}
		if m.ByIonsPossible, err = r.Int(tab.ColByIonsTotal.String()); err != nil {
			return nil, err
		}
	}
	return m, nil
}

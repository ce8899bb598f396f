// Package pepxml reads pepXML search results back into matches.
package pepxml

import (
	"encoding/xml"
	"fmt"
	"io"

	"golang.org/x/net/html/charset"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/pepxml"
)

// Read decodes a complete pepXML document.
func Read(reader io.Reader) (*pepxml.Document, error) {
	var doc pepxml.Document
	d := xml.NewDecoder(reader)
	d.CharsetReader = charset.NewReaderLabel
	if err := d.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode pepXML: %w", err)
	}
	return &doc, nil
}

// Matches converts every search hit of a document into a match. Hits of one
// spectrum query share a spectrum. Score types present on any hit are
// registered on the collection.
func Matches(doc *pepxml.Document, modDB *core.ModDatabase, decoy bool) (*match.Collection, error) {
	if modDB == nil {
		modDB = core.DefaultModDatabase()
	}
	byName := make(map[string]match.ScoreType)
	for _, t := range match.ScoreTypes() {
		byName[pepxml.ScoreName(t)] = t
	}

	c := match.NewCollection(0)
	var registered []match.ScoreType
	seen := make(map[match.ScoreType]bool)

	for qi := range doc.RunSummary.Queries {
		q := &doc.RunSummary.Queries[qi]
		if q.AssumedCharge <= 0 {
			return nil, fmt.Errorf("spectrum query %q: invalid charge %d", q.Spectrum, q.AssumedCharge)
		}
		spec := &core.Spectrum{
			FirstScan:   q.StartScan,
			LastScan:    q.EndScan,
			PrecursorMZ: q.PrecursorNeutralMass/float64(q.AssumedCharge) + core.ProtonMass,
			Charges:     []int{q.AssumedCharge},
			SourceFile:  doc.RunSummary.BaseName,
		}

		for hi := range q.Hits {
			hit := &q.Hits[hi]
			p, err := hitPeptide(hit, modDB)
			if err != nil {
				return nil, fmt.Errorf("spectrum query %q: %w", q.Spectrum, err)
			}
			p.Decoy = decoy

			m := match.New(p, spec, q.AssumedCharge)
			m.ByIonsMatched = hit.NumMatchedIons
			m.ByIonsPossible = hit.TotNumIons
			if v, ok, err := hit.Score("delta_cn"); err != nil {
				return nil, err
			} else if ok {
				m.DeltaCn = v
			}
			for _, s := range hit.Scores {
				t, ok := byName[s.Name]
				if !ok {
					continue
				}
				v, _, err := hit.Score(s.Name)
				if err != nil {
					return nil, fmt.Errorf("spectrum query %q: %w", q.Spectrum, err)
				}
				m.SetScore(t, v)
				if !seen[t] {
					seen[t] = true
					registered = append(registered, t)
				}
			}
			if err := c.Add(m); err != nil {
				return nil, err
			}
		}
	}
	c.RegisterScores(registered...)
	return c, nil
}

func hitPeptide(hit *pepxml.SearchHit, modDB *core.ModDatabase) (*core.Peptide, error) {
	p := &core.Peptide{Sequence: hit.Peptide}
	if hit.ModificationInfo != nil && hit.ModificationInfo.ModifiedPeptide != "" {
		seq, mods, err := modDB.ParseModifiedSequence(hit.ModificationInfo.ModifiedPeptide)
		if err != nil {
			return nil, err
		}
		if seq != hit.Peptide {
			return nil, fmt.Errorf("modified peptide %s does not match %s", hit.ModificationInfo.ModifiedPeptide, hit.Peptide)
		}
		p.Modifications = mods
		if nterm := hit.ModificationInfo.ModNTermMass; nterm != 0 {
			p.Modifications = append(p.Modifications, core.Modification{Mass: nterm - core.MassH, Position: -1})
		}
	}
	if hit.PeptidePrevAA != "" {
		p.FlankN = hit.PeptidePrevAA[0]
	}
	if hit.PeptideNextAA != "" {
		p.FlankC = hit.PeptideNextAA[0]
	}
	if hit.Protein != "" {
		p.ProteinIDs = append(p.ProteinIDs, hit.Protein)
	}
	for _, alt := range hit.AlternativeProteins {
		p.ProteinIDs = append(p.ProteinIDs, alt.Protein)
	}
	return p, nil
}

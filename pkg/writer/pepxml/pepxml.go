// Package pepxml writes search results as pepXML: one spectrum_query element
// per spectrum and charge, with nested search hits carrying sequence,
// modifications and scores.
package pepxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

var (
	// ErrHeaderNotWritten is returned when writing queries before the header.
	ErrHeaderNotWritten = errors.New("pepXML header not written")
	// ErrDocumentClosed is returned when writing queries after the footer.
	ErrDocumentClosed = errors.New("pepXML document already closed")
)

// Document is the read-back view of a pepXML file.
type Document struct {
	XMLName    xml.Name   `xml:"msms_pipeline_analysis"`
	Date       string     `xml:"date,attr"`
	RunSummary RunSummary `xml:"msms_run_summary"`
}

// RunSummary holds the search summary and every spectrum query.
type RunSummary struct {
	BaseName      string          `xml:"base_name,attr"`
	SearchSummary SearchSummary   `xml:"search_summary"`
	Queries       []SpectrumQuery `xml:"spectrum_query"`
}

// SearchSummary describes the search that produced the file.
type SearchSummary struct {
	XMLName           xml.Name `xml:"search_summary"`
	BaseName          string   `xml:"base_name,attr"`
	SearchEngine      string   `xml:"search_engine,attr"`
	PrecursorMassType string   `xml:"precursor_mass_type,attr"`
	FragmentMassType  string   `xml:"fragment_mass_type,attr"`
	SearchID          int      `xml:"search_id,attr"`
}

// SpectrumQuery is the result element of one spectrum and charge.
type SpectrumQuery struct {
	XMLName              xml.Name    `xml:"spectrum_query"`
	Spectrum             string      `xml:"spectrum,attr"`
	StartScan            int         `xml:"start_scan,attr"`
	EndScan              int         `xml:"end_scan,attr"`
	PrecursorNeutralMass float64     `xml:"precursor_neutral_mass,attr"`
	AssumedCharge        int         `xml:"assumed_charge,attr"`
	Index                int         `xml:"index,attr"`
	RetentionTimeSec     string      `xml:"retention_time_sec,attr,omitempty"`
	Hits                 []SearchHit `xml:"search_result>search_hit"`
}

// SearchHit is one ranked match inside a spectrum query.
type SearchHit struct {
	HitRank             int                  `xml:"hit_rank,attr"`
	Peptide             string               `xml:"peptide,attr"`
	PeptidePrevAA       string               `xml:"peptide_prev_aa,attr"`
	PeptideNextAA       string               `xml:"peptide_next_aa,attr"`
	Protein             string               `xml:"protein,attr"`
	NumTotProteins      int                  `xml:"num_tot_proteins,attr"`
	NumMatchedIons      int                  `xml:"num_matched_ions,attr"`
	TotNumIons          int                  `xml:"tot_num_ions,attr"`
	CalcNeutralPepMass  float64              `xml:"calc_neutral_pep_mass,attr"`
	MassDiff            float64              `xml:"massdiff,attr"`
	AlternativeProteins []AlternativeProtein `xml:"alternative_protein"`
	ModificationInfo    *ModificationInfo    `xml:"modification_info"`
	Scores              []SearchScore        `xml:"search_score"`
}

// AlternativeProtein lists an additional protein for a shared peptide.
type AlternativeProtein struct {
	Protein string `xml:"protein,attr"`
}

// ModificationInfo annotates a modified peptide.
type ModificationInfo struct {
	ModifiedPeptide string             `xml:"modified_peptide,attr"`
	ModNTermMass    float64            `xml:"mod_nterm_mass,attr,omitempty"`
	Mods            []ModAminoacidMass `xml:"mod_aminoacid_mass"`
}

// ModAminoacidMass gives the modified residue mass at a 1-based position.
type ModAminoacidMass struct {
	Position int     `xml:"position,attr"`
	Mass     float64 `xml:"mass,attr"`
}

// SearchScore is one named score of a hit.
type SearchScore struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

// Score returns the named score value, parsing Inf and -Inf.
func (h *SearchHit) Score(name string) (float64, bool, error) {
	for _, s := range h.Scores {
		if s.Name != name {
			continue
		}
		switch s.Value {
		case "Inf":
			return math.Inf(1), true, nil
		case "-Inf":
			return math.Inf(-1), true, nil
		}
		v, err := strconv.ParseFloat(s.Value, 64)
		if err != nil {
			return 0, true, fmt.Errorf("score %s: %w", name, err)
		}
		return v, true, nil
	}
	return 0, false, nil
}

// ScoreName returns the search_score name of a score type.
func ScoreName(t match.ScoreType) string {
	switch t {
	case match.Sp:
		return "spscore"
	case match.XCorr:
		return "xcorr_score"
	case match.PValue:
		return "p-value"
	case match.DecoyXCorrQValue:
		return "decoy_xcorr_qvalue"
	case match.PercolatorScore:
		return "percolator_score"
	case match.PercolatorQValue:
		return "percolator_qvalue"
	case match.QRankerScore:
		return "qranker_score"
	case match.QRankerQValue:
		return "qranker_qvalue"
	}
	return t.String()
}

// NewSearchHit builds the hit element of one match.
func NewSearchHit(m *match.Match, rank int) (SearchHit, error) {
	p := m.Peptide
	if p == nil {
		return SearchHit{}, fmt.Errorf("match %s has no peptide", m)
	}
	hit := SearchHit{
		HitRank:            rank,
		Peptide:            p.Sequence,
		PeptidePrevAA:      string(p.FlankingResidues()[0]),
		PeptideNextAA:      string(p.FlankingResidues()[1]),
		NumTotProteins:     len(p.ProteinIDs),
		NumMatchedIons:     m.ByIonsMatched,
		TotNumIons:         m.ByIonsPossible,
		CalcNeutralPepMass: roundMass(m.PeptideMass()),
		MassDiff:           roundMass(m.SpectrumNeutralMass() - m.PeptideMass()),
		ModificationInfo:   modificationInfo(p),
	}
	if len(p.ProteinIDs) > 0 {
		hit.Protein = p.ProteinIDs[0]
		for _, id := range p.ProteinIDs[1:] {
			hit.AlternativeProteins = append(hit.AlternativeProteins, AlternativeProtein{Protein: id})
		}
	}

	if m.HasScore(match.XCorr) || m.HasScore(match.Sp) {
		hit.Scores = append(hit.Scores, SearchScore{Name: "delta_cn", Value: formatScore(m.DeltaCn)})
	}
	for _, t := range match.ScoreTypes() {
		if !m.HasScore(t) {
			continue
		}
		v, err := m.Score(t)
		if err != nil {
			return SearchHit{}, err
		}
		hit.Scores = append(hit.Scores, SearchScore{Name: ScoreName(t), Value: formatScore(v)})
		if t == match.Sp && m.Rank(match.Sp) != match.NotRanked {
			hit.Scores = append(hit.Scores, SearchScore{Name: "sprank", Value: strconv.Itoa(m.Rank(match.Sp))})
		}
	}
	return hit, nil
}

func modificationInfo(p *core.Peptide) *ModificationInfo {
	if len(p.Modifications) == 0 {
		return nil
	}
	info := &ModificationInfo{ModifiedPeptide: p.ModSequenceWithSymbols()}

	shifts := make(map[int]float64)
	var positions []int
	nterm := 0.0
	for _, mod := range p.Modifications {
		switch {
		case mod.Position < 0:
			nterm += mod.Mass
		case mod.Position < len(p.Sequence):
			if _, ok := shifts[mod.Position]; !ok {
				positions = append(positions, mod.Position)
			}
			shifts[mod.Position] += mod.Mass
		}
	}
	sort.Ints(positions)
	for _, pos := range positions {
		residue, _ := core.ResidueMass(rune(p.Sequence[pos]))
		info.Mods = append(info.Mods, ModAminoacidMass{Position: pos + 1, Mass: roundMass(residue + shifts[pos])})
	}
	if nterm != 0 {
		info.ModNTermMass = roundMass(core.MassH + nterm)
	}
	return info
}

// SpectrumName returns the pepXML spectrum attribute "base.first.last.charge".
func SpectrumName(baseName string, spec *core.Spectrum, charge int) string {
	return fmt.Sprintf("%s.%05d.%05d.%d", baseName, spec.FirstScan, spec.LastScan, charge)
}

func formatScore(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func roundMass(v float64) float64 {
	return core.RoundTo(v, 4)
}

// baseNameOf strips directories and extensions from a spectrum file name.
func baseNameOf(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		path = path[i+1:]
	}
	if i := strings.IndexByte(path, '.'); i > 0 {
		path = path[:i]
	}
	return path
}

// Writer streams a pepXML document. The header must be written first and
// the footer closes the document exactly once.
type Writer struct {
	w             io.Writer
	enc           *xml.Encoder
	baseName      string
	headerWritten bool
	footerWritten bool
}

// NewWriter creates a pepXML writer. sourceFile names the spectrum file.
func NewWriter(w io.Writer, sourceFile string) *Writer {
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	return &Writer{w: w, enc: enc, baseName: baseNameOf(sourceFile)}
}

// SetSourceFile changes the base name used for spectrum attributes.
func (w *Writer) SetSourceFile(sourceFile string) {
	w.baseName = baseNameOf(sourceFile)
}

// WriteHeader opens the document and writes the search summary.
func (w *Writer) WriteHeader(date string) error {
	if w.headerWritten {
		return nil
	}
	tokens := []xml.Token{
		xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)},
		xml.StartElement{
			Name: xml.Name{Local: "msms_pipeline_analysis"},
			Attr: []xml.Attr{
				{Name: xml.Name{Local: "date"}, Value: date},
				{Name: xml.Name{Local: "xmlns"}, Value: "http://regis-web.systemsbiology.net/pepXML"},
			},
		},
		xml.StartElement{
			Name: xml.Name{Local: "msms_run_summary"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "base_name"}, Value: w.baseName}},
		},
	}
	for _, tok := range tokens {
		if err := w.enc.EncodeToken(tok); err != nil {
			return fmt.Errorf("failed to write pepXML header: %w", err)
		}
	}
	summary := SearchSummary{
		BaseName:          w.baseName,
		SearchEngine:      "Crux",
		PrecursorMassType: "monoisotopic",
		FragmentMassType:  "monoisotopic",
		SearchID:          1,
	}
	if err := w.enc.Encode(&summary); err != nil {
		return fmt.Errorf("failed to write search summary: %w", err)
	}
	w.headerWritten = true
	return w.enc.Flush()
}

// WriteQuery writes one spectrum query. Hits are ranked by rankType when
// ranked, otherwise by their order.
func (w *Writer) WriteQuery(spec *core.Spectrum, charge int, matches []*match.Match, rankType match.ScoreType, index int) error {
	if !w.headerWritten {
		return ErrHeaderNotWritten
	}
	if w.footerWritten {
		return ErrDocumentClosed
	}
	base := w.baseName
	if spec.SourceFile != "" {
		base = baseNameOf(spec.SourceFile)
	}
	q := SpectrumQuery{
		Spectrum:             SpectrumName(base, spec, charge),
		StartScan:            spec.FirstScan,
		EndScan:              spec.LastScan,
		PrecursorNeutralMass: roundMass(spec.NeutralMass(charge)),
		AssumedCharge:        charge,
		Index:                index,
	}
	if spec.RetentionTime != nil {
		q.RetentionTimeSec = strconv.FormatFloat(*spec.RetentionTime*60, 'f', 3, 64)
	}
	for i, m := range matches {
		rank := m.Rank(rankType)
		if rank == match.NotRanked {
			rank = i + 1
		}
		hit, err := NewSearchHit(m, rank)
		if err != nil {
			return err
		}
		q.Hits = append(q.Hits, hit)
	}
	if err := w.enc.Encode(&q); err != nil {
		return fmt.Errorf("failed to write spectrum query %d: %w", spec.FirstScan, err)
	}
	return w.enc.Flush()
}

// WriteFooter closes the document. Later calls do nothing.
func (w *Writer) WriteFooter() error {
	if w.footerWritten {
		return nil
	}
	if !w.headerWritten {
		return ErrHeaderNotWritten
	}
	for _, name := range []string{"msms_run_summary", "msms_pipeline_analysis"} {
		if err := w.enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}}); err != nil {
			return fmt.Errorf("failed to write pepXML footer: %w", err)
		}
	}
	if err := w.enc.Flush(); err != nil {
		return err
	}
	w.footerWritten = true
	_, err := io.WriteString(w.w, "\n")
	return err
}

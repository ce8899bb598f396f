package match

import (
	"math"
	"strings"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/rtime"
)

// FeatureNames lists the re-ranking features in the order Features returns
// them.
var FeatureNames = []string{
	"XCorr", "DeltaCN", "lnDeltaCN", "Sp", "lnrSp", "IonFrac",
	"Mass", "PepLen", "Charge1", "Charge2", "Charge3",
	"enzN", "enzC", "enzInt", "lnNumSP", "dM", "absdM", "dRT",
}

// Features computes the re-ranking feature vector of one match. XCorr must
// be present; a missing Sp score contributes zeros. dRT is the observed
// minus predicted retention time, or 0 when the spectrum carries none.
func Features(m *Match, predictor rtime.Predictor) ([]float64, error) {
	xc, err := m.Score(XCorr)
	if err != nil {
		return nil, err
	}

	sp := 0.0
	lnrSp := 0.0
	if v, err := m.Score(Sp); err == nil {
		sp = v
		if r := m.Rank(Sp); r > 0 {
			lnrSp = math.Log(float64(r))
		}
	}

	seq := m.Sequence()
	dM := m.SpectrumNeutralMass() - m.PeptideMass()

	dRT := 0.0
	if predictor != nil && m.Spectrum != nil && m.Spectrum.RetentionTime != nil {
		dRT = *m.Spectrum.RetentionTime - predictor.Predict(seq)
	}

	enzN, enzC := trypticTermini(m)
	return []float64{
		xc,
		m.DeltaCn,
		m.LnDeltaCn,
		sp,
		lnrSp,
		m.ByIonFraction(),
		m.SpectrumNeutralMass(),
		float64(len(seq)),
		boolFeature(m.Charge == 1),
		boolFeature(m.Charge == 2),
		boolFeature(m.Charge >= 3),
		boolFeature(enzN),
		boolFeature(enzC),
		float64(missedCleavages(seq)),
		m.LnExperimentSize,
		dM,
		math.Abs(dM),
		dRT,
	}, nil
}

func boolFeature(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// trypticTermini reports whether each peptide terminus follows trypsin rules
// (cleavage after K or R, not before P) or lies at a protein terminus.
func trypticTermini(m *Match) (bool, bool) {
	p := m.Peptide
	if p == nil || p.Sequence == "" {
		return false, false
	}
	seq := p.Sequence
	enzN := p.FlankN == '-' || p.FlankN == 0 ||
		(strings.IndexByte("KR", p.FlankN) >= 0 && seq[0] != 'P')
	enzC := p.FlankC == '-' || p.FlankC == 0 ||
		(strings.IndexByte("KR", seq[len(seq)-1]) >= 0 && p.FlankC != 'P')
	return enzN, enzC
}

// missedCleavages counts internal K/R residues not followed by P.
func missedCleavages(seq string) int {
	n := 0
	for i := 0; i+1 < len(seq); i++ {
		if (seq[i] == 'K' || seq[i] == 'R') && seq[i+1] != 'P' {
			n++
		}
	}
	return n
}

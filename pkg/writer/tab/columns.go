package tab

import "github.com/hsiaoyi0504/crux-toolkit/pkg/match"

// Column identifies one tab-delimited result column.
type Column int

const (
	ColScan Column = iota
	ColCharge
	ColPrecursorMZ
	ColSpectrumNeutralMass
	ColPeptideMass
	ColDeltaCn
	ColSpScore
	ColSpRank
	ColXCorrScore
	ColXCorrRank
	ColPValue
	ColDecoyQValue
	ColPercolatorScore
	ColPercolatorRank
	ColPercolatorQValue
	ColQRankerScore
	ColQRankerQValue
	ColByIonsMatched
	ColByIonsTotal
	ColMatchesSpectrum
	ColSequence
	ColProteinID
	ColFlankingAA
	ColUnshuffledSequence
	ColBestScore
	ColPeptides
	numColumns
)

var columnNames = [numColumns]string{
	ColScan:                "scan",
	ColCharge:              "charge",
	ColPrecursorMZ:         "spectrum precursor m/z",
	ColSpectrumNeutralMass: "spectrum neutral mass",
	ColPeptideMass:         "peptide mass",
	ColDeltaCn:             "delta_cn",
	ColSpScore:             "sp score",
	ColSpRank:              "sp rank",
	ColXCorrScore:          "xcorr score",
	ColXCorrRank:           "xcorr rank",
	ColPValue:              "p-value",
	ColDecoyQValue:         "decoy q-value (xcorr)",
	ColPercolatorScore:     "percolator score",
	ColPercolatorRank:      "percolator rank",
	ColPercolatorQValue:    "percolator q-value",
	ColQRankerScore:        "q-ranker score",
	ColQRankerQValue:       "q-ranker q-value",
	ColByIonsMatched:       "b/y ions matched",
	ColByIonsTotal:         "b/y ions total",
	ColMatchesSpectrum:     "matches/spectrum",
	ColSequence:            "sequence",
	ColProteinID:           "protein id",
	ColFlankingAA:          "flanking aa",
	ColUnshuffledSequence:  "unshuffled sequence",
	ColBestScore:           "best score",
	ColPeptides:            "peptides",
}

func (c Column) String() string {
	if c < 0 || c >= numColumns {
		return ""
	}
	return columnNames[c]
}

// ColumnByName returns the column with the given header name.
func ColumnByName(name string) (Column, bool) {
	for i, n := range columnNames {
		if n == name {
			return Column(i), true
		}
	}
	return 0, false
}

// ScoreColumn returns the score column of a score type.
func ScoreColumn(t match.ScoreType) (Column, bool) {
	switch t {
	case match.Sp:
		return ColSpScore, true
	case match.XCorr:
		return ColXCorrScore, true
	case match.PValue:
		return ColPValue, true
	case match.DecoyXCorrQValue:
		return ColDecoyQValue, true
	case match.PercolatorScore:
		return ColPercolatorScore, true
	case match.PercolatorQValue:
		return ColPercolatorQValue, true
	case match.QRankerScore:
		return ColQRankerScore, true
	case match.QRankerQValue:
		return ColQRankerQValue, true
	}
	return 0, false
}

// RankColumn returns the rank column of a score type, if it has one.
func RankColumn(t match.ScoreType) (Column, bool) {
	switch t {
	case match.Sp:
		return ColSpRank, true
	case match.XCorr:
		return ColXCorrRank, true
	case match.PercolatorScore:
		return ColPercolatorRank, true
	}
	return 0, false
}

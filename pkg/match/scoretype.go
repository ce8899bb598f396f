package match

import (
	"errors"
	"fmt"
	"strings"
)

// ScoreType identifies one kind of score a match can carry.
type ScoreType int

const (
	Sp ScoreType = iota
	XCorr
	PValue
	DecoyXCorrQValue
	PercolatorScore
	PercolatorQValue
	QRankerScore
	QRankerQValue
)

var scoreTypeNames = [...]string{
	Sp:               "sp",
	XCorr:            "xcorr",
	PValue:           "p-value",
	DecoyXCorrQValue: "decoy-xcorr-qvalue",
	PercolatorScore:  "percolator-score",
	PercolatorQValue: "percolator-qvalue",
	QRankerScore:     "qranker-score",
	QRankerQValue:    "qranker-qvalue",
}

// ErrUnknownScoreType is returned by ParseScoreType.
var ErrUnknownScoreType = errors.New("unknown score type")

func (t ScoreType) String() string {
	if t < 0 || int(t) >= len(scoreTypeNames) {
		return fmt.Sprintf("ScoreType(%d)", int(t))
	}
	return scoreTypeNames[t]
}

// LargerIsBetter reports the sort direction of a score type. P-values and
// q-values rank ascending; every other score ranks descending.
func (t ScoreType) LargerIsBetter() bool {
	switch t {
	case PValue, DecoyXCorrQValue, PercolatorQValue, QRankerQValue:
		return false
	}
	return true
}

// ScoreTypes returns every score type in declaration order.
func ScoreTypes() []ScoreType {
	types := make([]ScoreType, len(scoreTypeNames))
	for i := range types {
		types[i] = ScoreType(i)
	}
	return types
}

// ParseScoreType maps a score type name onto its ScoreType.
func ParseScoreType(name string) (ScoreType, error) {
	for i, n := range scoreTypeNames {
		if n == name {
			return ScoreType(i), nil
		}
	}
	return 0, fmt.Errorf("%w '%s': must be one of %s", ErrUnknownScoreType, name, strings.Join(scoreTypeNames[:], ", "))
}

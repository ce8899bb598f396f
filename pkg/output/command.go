package output

import (
	"errors"
	"fmt"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/tab"
)

// ErrUnknownCommand is returned by ParseCommand for an unrecognized name.
var ErrUnknownCommand = errors.New("unknown command")

// Command is the crux command whose results are being written. It selects
// the file stem, the active formats, and the tab columns.
type Command int

const (
	CommandSearch Command = iota
	CommandSequest
	CommandQValues
	CommandPercolator
	CommandQRanker
	CommandSpectralCounts
)

var commandNames = []string{
	CommandSearch:         "search",
	CommandSequest:        "sequest",
	CommandQValues:        "qvalues",
	CommandPercolator:     "percolator",
	CommandQRanker:        "qranker",
	CommandSpectralCounts: "spectral-counts",
}

func (c Command) String() string {
	if c < 0 || int(c) >= len(commandNames) {
		return fmt.Sprintf("Command(%d)", int(c))
	}
	return commandNames[c]
}

// ParseCommand returns the command with the given file stem.
func ParseCommand(name string) (Command, error) {
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownCommand, name)
}

// IsSearch reports whether the command scores spectra itself.
func (c Command) IsSearch() bool {
	return c == CommandSearch || c == CommandSequest
}

// SupportsSQT reports whether SQT files are written.
func (c Command) SupportsSQT() bool {
	return c.IsSearch()
}

// SupportsXML reports whether pepXML files are written.
func (c Command) SupportsXML() bool {
	return c != CommandSpectralCounts
}

// SupportsFeatures reports whether the command can write a feature file.
func (c Command) SupportsFeatures() bool {
	return c == CommandPercolator || c == CommandQRanker
}

var (
	matchLead = []tab.Column{
		tab.ColScan, tab.ColCharge, tab.ColPrecursorMZ,
		tab.ColSpectrumNeutralMass, tab.ColPeptideMass, tab.ColDeltaCn,
	}
	matchTail = []tab.Column{
		tab.ColMatchesSpectrum, tab.ColSequence, tab.ColProteinID,
		tab.ColFlankingAA, tab.ColUnshuffledSequence,
	}
)

// TabColumns returns the tab-delimited columns of the command.
func (c Command) TabColumns() []tab.Column {
	var scores []tab.Column
	switch c {
	case CommandSearch, CommandSequest:
		scores = []tab.Column{
			tab.ColSpScore, tab.ColSpRank, tab.ColXCorrScore, tab.ColXCorrRank,
			tab.ColByIonsMatched, tab.ColByIonsTotal,
		}
	case CommandQValues:
		scores = []tab.Column{tab.ColXCorrScore, tab.ColXCorrRank, tab.ColDecoyQValue}
	case CommandPercolator:
		scores = []tab.Column{
			tab.ColXCorrScore, tab.ColXCorrRank,
			tab.ColPercolatorScore, tab.ColPercolatorRank, tab.ColPercolatorQValue,
		}
	case CommandQRanker:
		scores = []tab.Column{tab.ColXCorrScore, tab.ColXCorrRank, tab.ColQRankerScore, tab.ColQRankerQValue}
	case CommandSpectralCounts:
		return []tab.Column{tab.ColProteinID, tab.ColSequence, tab.ColBestScore, tab.ColPeptides}
	}

	cols := make([]tab.Column, 0, len(matchLead)+len(scores)+len(matchTail))
	cols = append(cols, matchLead...)
	cols = append(cols, scores...)
	return append(cols, matchTail...)
}

package xcorr

import (
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
)

// Theoretical peak heights used when building the fragment ion array.
const (
	IonIntensity         = 50.0
	FlankIntensity       = 25.0
	NeutralLossIntensity = 10.0
)

// IonType distinguishes N-terminal b ions from C-terminal y ions.
type IonType byte

const (
	IonB IonType = 'b'
	IonY IonType = 'y'
)

// Ion is one theoretical fragment ion.
type Ion struct {
	Type     IonType
	Position int // number of residues in the fragment
	Charge   int
	MZ       float64
}

// MaxIonCharge returns the highest fragment charge considered for a
// precursor charge.
func MaxIonCharge(precursorCharge int) int {
	if precursorCharge <= 2 {
		return 1
	}
	return precursorCharge - 1
}

// IonSeries returns the b and y ions of a peptide for fragment charges 1
// through MaxIonCharge(charge), ordered by type, charge, then position.
func IonSeries(p *core.Peptide, charge int) []Ion {
	masses := p.ResidueMasses()
	n := len(masses)
	if n < 2 {
		return nil
	}

	prefix := make([]float64, n)
	total := 0.0
	for i, m := range masses {
		total += m
		prefix[i] = total
	}

	var ions []Ion
	for z := 1; z <= MaxIonCharge(charge); z++ {
		for pos := 1; pos < n; pos++ {
			mass := prefix[pos-1]
			ions = append(ions, Ion{Type: IonB, Position: pos, Charge: z, MZ: ionMZ(mass, z)})
		}
	}
	for z := 1; z <= MaxIonCharge(charge); z++ {
		for pos := 1; pos < n; pos++ {
			mass := total - prefix[n-pos-1] + core.MassH2O
			ions = append(ions, Ion{Type: IonY, Position: pos, Charge: z, MZ: ionMZ(mass, z)})
		}
	}
	return ions
}

func ionMZ(neutral float64, charge int) float64 {
	return (neutral + float64(charge)*core.ProtonMass) / float64(charge)
}

// TheoreticalArray builds the theoretical fragment intensity array of the
// given length. Each ion contributes IonIntensity at its bin and
// FlankIntensity to the adjacent bins. Ammonia loss from b and y ions and
// water loss from y ions contribute NeutralLossIntensity. Overlapping
// contributions keep the maximum.
func TheoreticalArray(p *core.Peptide, charge int, length int) []float64 {
	arr := make([]float64, length)
	set := func(mz, intensity float64) {
		bin := core.MZToBin(mz)
		if bin < 0 || bin >= length {
			return
		}
		if intensity > arr[bin] {
			arr[bin] = intensity
		}
	}

	for _, ion := range IonSeries(p, charge) {
		z := float64(ion.Charge)
		bin := core.MZToBin(ion.MZ)
		set(ion.MZ, IonIntensity)
		set(core.BinToMZ(bin-1), FlankIntensity)
		set(core.BinToMZ(bin+1), FlankIntensity)
		set(ion.MZ-core.MassNH3/z, NeutralLossIntensity)
		if ion.Type == IonY {
			set(ion.MZ-core.MassH2O/z, NeutralLossIntensity)
		}
	}
	return arr
}

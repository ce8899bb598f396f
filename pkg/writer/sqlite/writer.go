// Package sqlite writes search results to an SQLite database: one run row,
// the scored spectra with their peaks, and every match with its scores.
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
)

// Date format for RunTable (ISO 8601)
const runDateFormat = "2006-01-02 15:04:05"

// RunInfo describes the run recorded in RunTable.
type RunInfo struct {
	Command      string
	Channel      string
	SpectrumFile string
}

// Writer handles writing matches to SQLite database files
type Writer struct {
	db         *sql.DB
	outputPath string
	runID      string
	run        RunInfo
	started    time.Time

	spectrumStmt *sql.Stmt
	matchStmt    *sql.Stmt
	scoreStmt    *sql.Stmt

	spectrumID int64
	matchID    int64
}

// NewWriter creates the database at outputPath and its tables.
func NewWriter(outputPath string, run RunInfo) (*Writer, error) {
	db, err := sql.Open("sqlite3", outputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	w := &Writer{
		db:         db,
		outputPath: outputPath,
		runID:      uuid.NewString(),
		run:        run,
		started:    time.Now(),
		spectrumID: 1,
		matchID:    1,
	}

	if err := w.createTables(); err != nil {
		db.Close()
		return nil, err
	}

	if err := w.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}

	return w, nil
}

// RunID returns the identifier stored with every row of this run.
func (w *Writer) RunID() string {
	return w.runID
}

func (w *Writer) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS RunTable (
		RunId TEXT PRIMARY KEY,
		Command TEXT,
		Channel TEXT,
		SpectrumFile TEXT,
		CreationDate TEXT,
		CompletionDate TEXT,
		NumSpectra INTEGER,
		NumMatches INTEGER
	);

	CREATE TABLE IF NOT EXISTS SpectrumTable (
		SpectrumId INTEGER PRIMARY KEY,
		RunId TEXT REFERENCES RunTable(RunId),
		FirstScan INTEGER,
		LastScan INTEGER,
		Charge INTEGER,
		PrecursorMZ DOUBLE,
		NeutralMass DOUBLE,
		RetentionTime DOUBLE,
		blobMass BLOB,
		blobIntensity BLOB
	);

	CREATE TABLE IF NOT EXISTS MatchTable (
		MatchId INTEGER PRIMARY KEY,
		SpectrumId INTEGER REFERENCES SpectrumTable(SpectrumId),
		Sequence TEXT,
		ModSequence TEXT,
		ProteinIds TEXT,
		Flanking TEXT,
		Decoy BOOL,
		Unshuffled TEXT,
		PeptideMass DOUBLE,
		DeltaCn DOUBLE,
		ByIonsMatched INTEGER,
		ByIonsPossible INTEGER
	);

	CREATE TABLE IF NOT EXISTS ScoreTable (
		MatchId INTEGER REFERENCES MatchTable(MatchId),
		ScoreType TEXT,
		Value DOUBLE,
		Rank INTEGER
	);
	`

	_, err := w.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// prepareStatements prepares SQL statements for batch insertion
func (w *Writer) prepareStatements() error {
	var err error

	w.spectrumStmt, err = w.db.Prepare(`
		INSERT INTO SpectrumTable (
			SpectrumId, RunId, FirstScan, LastScan, Charge, PrecursorMZ,
			NeutralMass, RetentionTime, blobMass, blobIntensity
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare spectrum statement: %w", err)
	}

	w.matchStmt, err = w.db.Prepare(`
		INSERT INTO MatchTable (
			MatchId, SpectrumId, Sequence, ModSequence, ProteinIds, Flanking,
			Decoy, Unshuffled, PeptideMass, DeltaCn, ByIonsMatched, ByIonsPossible
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare match statement: %w", err)
	}

	w.scoreStmt, err = w.db.Prepare(`
		INSERT INTO ScoreTable (MatchId, ScoreType, Value, Rank) VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare score statement: %w", err)
	}

	return nil
}

// WriteSpectrum writes one spectrum and charge with its matches.
func (w *Writer) WriteSpectrum(spec *core.Spectrum, charge int, matches []*match.Match) error {
	var rt interface{} = nil
	if spec.RetentionTime != nil {
		rt = *spec.RetentionTime
	}

	_, err := w.spectrumStmt.Exec(
		w.spectrumID,
		w.runID,
		spec.FirstScan,
		spec.LastScan,
		charge,
		spec.PrecursorMZ,
		spec.NeutralMass(charge),
		rt,
		encodePeaksFloat64(spec.Peaks, true),
		encodePeaksFloat64(spec.Peaks, false),
	)
	if err != nil {
		return fmt.Errorf("failed to insert spectrum %d: %w", spec.FirstScan, err)
	}

	for _, m := range matches {
		if err := w.writeMatch(m); err != nil {
			return err
		}
	}

	w.spectrumID++
	return nil
}

func (w *Writer) writeMatch(m *match.Match) error {
	p := m.Peptide
	_, err := w.matchStmt.Exec(
		w.matchID,
		w.spectrumID,
		p.Sequence,
		p.ModSequenceWithMasses(false),
		p.ProteinIDString(),
		p.FlankingResidues(),
		m.Decoy,
		p.Unshuffled,
		m.PeptideMass(),
		m.DeltaCn,
		m.ByIonsMatched,
		m.ByIonsPossible,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match %s: %w", m, err)
	}

	for _, t := range match.ScoreTypes() {
		if !m.HasScore(t) {
			continue
		}
		v, _ := m.Score(t)
		var rank interface{} = nil
		if r := m.Rank(t); r != match.NotRanked {
			rank = r
		}
		// Infinite scores are stored as the largest finite value.
		if math.IsInf(v, 0) {
			v = math.Copysign(math.MaxFloat64, v)
		}
		if _, err := w.scoreStmt.Exec(w.matchID, t.String(), v, rank); err != nil {
			return fmt.Errorf("failed to insert %s score: %w", t, err)
		}
	}

	w.matchID++
	return nil
}

// encodePeaksFloat64 encodes peak data as little-endian float64 blob
func encodePeaksFloat64(peaks []core.Peak, useMZ bool) []byte {
	buf := make([]byte, len(peaks)*8)
	for i, peak := range peaks {
		var value float64
		if useMZ {
			value = peak.MZ
		} else {
			value = peak.Intensity
		}
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(value))
	}
	return buf
}

// DecodePeaks reverses the blob encoding of a spectrum's peaks.
func DecodePeaks(mzBlob, intensityBlob []byte) ([]core.Peak, error) {
	if len(mzBlob) != len(intensityBlob) || len(mzBlob)%8 != 0 {
		return nil, fmt.Errorf("invalid peak blobs of %d and %d bytes", len(mzBlob), len(intensityBlob))
	}
	peaks := make([]core.Peak, len(mzBlob)/8)
	for i := range peaks {
		peaks[i].MZ = math.Float64frombits(binary.LittleEndian.Uint64(mzBlob[i*8:]))
		peaks[i].Intensity = math.Float64frombits(binary.LittleEndian.Uint64(intensityBlob[i*8:]))
	}
	return peaks, nil
}

// Finalize writes the run row and closes the database
func (w *Writer) Finalize() error {
	if w.db == nil {
		return nil
	}

	_, err := w.db.Exec(`
		INSERT INTO RunTable (RunId, Command, Channel, SpectrumFile, CreationDate, CompletionDate, NumSpectra, NumMatches)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, w.runID, w.run.Command, w.run.Channel, w.run.SpectrumFile,
		w.started.Format(runDateFormat), time.Now().Format(runDateFormat),
		w.spectrumID-1, w.matchID-1)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, stmt := range []*sql.Stmt{w.spectrumStmt, w.matchStmt, w.scoreStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}

	db := w.db
	w.db = nil
	if err := db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// Close closes the database connection (alias for Finalize)
func (w *Writer) Close() error {
	return w.Finalize()
}

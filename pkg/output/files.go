// Package output owns the result channels of a run: one target channel and
// a fixed number of decoy channels, each with a writer per active format.
// Files moves through a fixed sequence of states from Open to Closed and
// rejects out-of-order calls.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hsiaoyi0504/crux-toolkit/internal/logging"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/core"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/hit"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/match"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/pepxml"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/sqlite"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/sqt"
	"github.com/hsiaoyi0504/crux-toolkit/pkg/writer/tab"
)

var (
	// ErrFileExists is returned when an output file exists and overwrite is off.
	ErrFileExists = errors.New("output file exists")
	// ErrChannelMismatch is returned when the decoy collections passed to
	// WriteMatches do not match the number of decoy channels.
	ErrChannelMismatch = errors.New("decoy collection count does not match decoy channels")
	// ErrInvalidState is returned for calls made out of order.
	ErrInvalidState = errors.New("invalid output state")
)

// State is the lifecycle position of a set of output files.
type State int

const (
	StateUnopened State = iota
	StateOpen
	StateHeadersWritten
	StateWritingMatches
	StateFootersWritten
	StateClosed
)

var stateNames = []string{
	StateUnopened:       "unopened",
	StateOpen:           "open",
	StateHeadersWritten: "headers-written",
	StateWritingMatches: "writing-matches",
	StateFootersWritten: "footers-written",
	StateClosed:         "closed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Options configures Open.
type Options struct {
	Dir           string
	Fileroot      string
	Command       Command
	NumDecoyFiles int
	Overwrite     bool

	// MatchesPerSpectrum caps the matches written per spectrum; 0 writes all.
	MatchesPerSpectrum int

	SQLite       bool
	FeatureFile  bool
	SpectrumFile string
	SQTHeader    sqt.Header
}

type channel struct {
	label    string
	tab      *tab.Writer
	sqt      *sqt.Writer
	xml      *pepxml.Writer
	db       *sqlite.Writer
	xmlIndex int
}

// Files is the open set of result files of one run.
type Files struct {
	opts     Options
	state    State
	channels []*channel
	features *bufio.Writer
	files    []*os.File
	paths    []string
	log      *slog.Logger
}

// Open creates every output file of the run: per channel a tab file, a
// pepXML file and an SQT file when the command supports them, an SQLite
// database when requested, and a single feature file for re-ranking
// commands. Existing files are reported before anything is created. On a
// later error every file opened so far is closed and removed.
func Open(opts Options) (*Files, error) {
	if opts.NumDecoyFiles < 0 {
		return nil, fmt.Errorf("num-decoy-files must be non-negative, got %d", opts.NumDecoyFiles)
	}
	if opts.Dir != "" {
		info, err := os.Stat(opts.Dir)
		if err != nil {
			return nil, fmt.Errorf("output directory %s: %w", opts.Dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("output directory %s is not a directory", opts.Dir)
		}
	}

	if !opts.Overwrite {
		for _, path := range plannedPaths(opts) {
			if _, err := os.Stat(path); err == nil {
				return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
			}
		}
	}

	f := &Files{opts: opts, log: logging.New("output")}
	for _, label := range ChannelLabels(opts.NumDecoyFiles) {
		ch, err := f.openChannel(label)
		if err != nil {
			f.abort()
			return nil, err
		}
		f.channels = append(f.channels, ch)
	}

	if opts.FeatureFile && opts.Command.SupportsFeatures() {
		file, err := f.create(featurePath(opts))
		if err != nil {
			f.abort()
			return nil, err
		}
		f.features = bufio.NewWriter(file)
	}

	f.state = StateOpen
	return f, nil
}

// channelExts lists the file extensions Open creates for one channel.
func channelExts(opts Options) []string {
	exts := []string{"txt"}
	if opts.Command.SupportsXML() {
		exts = append(exts, "pep.xml")
	}
	if opts.Command.SupportsSQT() {
		exts = append(exts, "sqt")
	}
	if opts.SQLite {
		exts = append(exts, "psm.db")
	}
	return exts
}

func featurePath(opts Options) string {
	return FileName(opts.Dir, opts.Fileroot, opts.Command, "", "features.txt")
}

// plannedPaths returns every path Open would create.
func plannedPaths(opts Options) []string {
	var paths []string
	for _, label := range ChannelLabels(opts.NumDecoyFiles) {
		for _, ext := range channelExts(opts) {
			paths = append(paths, FileName(opts.Dir, opts.Fileroot, opts.Command, label, ext))
		}
	}
	if opts.FeatureFile && opts.Command.SupportsFeatures() {
		paths = append(paths, featurePath(opts))
	}
	return paths
}

// abort closes and removes everything a failed Open created.
func (f *Files) abort() {
	_ = f.Close()
	for _, path := range f.paths {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			f.log.Warn("failed to remove partial output", "path", path, "error", err)
		}
	}
	f.paths = nil
}

func (f *Files) openChannel(label string) (*channel, error) {
	opts := f.opts
	ch := &channel{label: label}

	file, err := f.create(FileName(opts.Dir, opts.Fileroot, opts.Command, label, "txt"))
	if err != nil {
		return nil, err
	}
	ch.tab = tab.NewWriter(file, opts.Command.TabColumns())

	if opts.Command.SupportsXML() {
		file, err := f.create(FileName(opts.Dir, opts.Fileroot, opts.Command, label, "pep.xml"))
		if err != nil {
			return nil, err
		}
		ch.xml = pepxml.NewWriter(file, opts.SpectrumFile)
	}

	if opts.Command.SupportsSQT() {
		file, err := f.create(FileName(opts.Dir, opts.Fileroot, opts.Command, label, "sqt"))
		if err != nil {
			return nil, err
		}
		ch.sqt = sqt.NewWriter(file)
	}

	if opts.SQLite {
		path := FileName(opts.Dir, opts.Fileroot, opts.Command, label, "psm.db")
		if err := f.claim(path); err != nil {
			return nil, err
		}
		f.paths = append(f.paths, path)
		db, err := sqlite.NewWriter(path, sqlite.RunInfo{
			Command:      opts.Command.String(),
			Channel:      label,
			SpectrumFile: opts.SpectrumFile,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		ch.db = db
	}
	return ch, nil
}

// claim checks that path may be written, removing an existing file when
// overwriting.
func (f *Files) claim(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if !f.opts.Overwrite {
		return fmt.Errorf("%w: %s", ErrFileExists, path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func (f *Files) create(path string) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !f.opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileExists, path)
		}
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	f.files = append(f.files, file)
	f.paths = append(f.paths, path)
	f.log.Debug("opened output file", "path", path)
	return file, nil
}

// State returns the current lifecycle state.
func (f *Files) State() State {
	return f.state
}

// Labels returns the channel labels in channel order.
func (f *Files) Labels() []string {
	labels := make([]string, len(f.channels))
	for i, ch := range f.channels {
		labels[i] = ch.label
	}
	return labels
}

// Paths returns every file created by Open.
func (f *Files) Paths() []string {
	return append([]string(nil), f.paths...)
}

func (f *Files) stateError(op string) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidState, op, f.state)
}

// WriteHeaders writes the header of every channel and format. numProteins
// fills the SQT protein count.
func (f *Files) WriteHeaders(numProteins int) error {
	if f.state != StateOpen {
		return f.stateError("write headers")
	}

	date := time.Now().Format("2006-01-02T15:04:05")
	for _, ch := range f.channels {
		if err := ch.tab.WriteHeader(); err != nil {
			return fmt.Errorf("%s tab header: %w", ch.label, err)
		}
		if ch.sqt != nil {
			h := f.opts.SQTHeader
			h.NumProteins = numProteins
			if h.StartTime == "" {
				h.StartTime = date
			}
			if err := ch.sqt.WriteHeader(h); err != nil {
				return fmt.Errorf("%s: %w", ch.label, err)
			}
		}
		if ch.xml != nil {
			if err := ch.xml.WriteHeader(date); err != nil {
				return fmt.Errorf("%s: %w", ch.label, err)
			}
		}
	}

	f.state = StateHeadersWritten
	return nil
}

// WriteFeatureHeader writes the feature file header "scan label names...".
// It does nothing when no feature file is open.
func (f *Files) WriteFeatureHeader(names []string) error {
	if f.state != StateOpen && f.state != StateHeadersWritten {
		return f.stateError("write feature header")
	}
	if f.features == nil {
		return nil
	}
	_, err := fmt.Fprintf(f.features, "scan\tlabel\t%s\n", strings.Join(names, "\t"))
	return err
}

func (f *Files) canWriteMatches(op string) error {
	if f.state != StateHeadersWritten && f.state != StateWritingMatches {
		return f.stateError(op)
	}
	return nil
}

// WriteMatches writes the target collection to channel 0 and decoys[i] to
// channel i+1. The number of decoy collections must equal the number of
// decoy channels.
//
// With a spectrum, each collection holds that spectrum's matches and at most
// MatchesPerSpectrum of them, best by rankType, go to every format of the
// channel. Without a spectrum the collections are pooled over many spectra;
// only tab and pepXML writers accept them, and matches ranked below
// MatchesPerSpectrum are skipped.
func (f *Files) WriteMatches(target *match.Collection, decoys []*match.Collection, rankType match.ScoreType, spec *core.Spectrum) error {
	if err := f.canWriteMatches("write matches"); err != nil {
		return err
	}
	if len(decoys) != f.opts.NumDecoyFiles {
		return fmt.Errorf("%w: got %d decoy collections for %d decoy channels",
			ErrChannelMismatch, len(decoys), f.opts.NumDecoyFiles)
	}
	if spec == nil && len(decoys) > 1 {
		return fmt.Errorf("%w: pooled output takes at most one decoy collection, got %d",
			ErrChannelMismatch, len(decoys))
	}
	f.state = StateWritingMatches

	collections := append([]*match.Collection{target}, decoys...)
	for i, c := range collections {
		ch := f.channels[i]
		var err error
		if spec != nil {
			err = f.writeSpectrum(ch, c, rankType, spec)
		} else {
			err = f.writeAggregate(ch, c, rankType)
		}
		if err != nil {
			return fmt.Errorf("%s channel: %w", ch.label, err)
		}
	}
	return nil
}

func (f *Files) writeSpectrum(ch *channel, c *match.Collection, rankType match.ScoreType, spec *core.Spectrum) error {
	ch.xmlIndex++
	n := f.opts.MatchesPerSpectrum
	if n <= 0 {
		n = -1
	}
	top, err := c.Top(rankType, n)
	if err != nil {
		return err
	}

	numMatches := c.ExperimentSize()
	for _, m := range top {
		if err := ch.tab.WriteMatch(m, numMatches); err != nil {
			return err
		}
	}
	if len(top) == 0 {
		return nil
	}

	charge := top[0].Charge
	if ch.sqt != nil {
		if err := ch.sqt.WriteSpectrum(spec, charge, top, numMatches); err != nil {
			return err
		}
	}
	if ch.xml != nil {
		if err := ch.xml.WriteQuery(spec, charge, top, rankType, ch.xmlIndex); err != nil {
			return err
		}
	}
	if ch.db != nil {
		if err := ch.db.WriteSpectrum(spec, charge, top); err != nil {
			return err
		}
	}
	return nil
}

type spectrumGroup struct {
	spec    *core.Spectrum
	charge  int
	matches []*match.Match
}

func (f *Files) writeAggregate(ch *channel, c *match.Collection, rankType match.ScoreType) error {
	sorted, err := c.Sorted(rankType)
	if err != nil {
		return err
	}
	top := f.opts.MatchesPerSpectrum

	type key struct {
		source string
		scan   int
		charge int
	}
	groups := make(map[key]*spectrumGroup)
	var order []key

	numMatches := c.ExperimentSize()
	for _, m := range sorted {
		if r := m.Rank(rankType); top > 0 && r != match.NotRanked && r > top {
			continue
		}
		if err := ch.tab.WriteMatch(m, numMatches); err != nil {
			return err
		}
		if m.Spectrum == nil {
			continue
		}
		k := key{source: m.Spectrum.SourceFile, scan: m.Scan(), charge: m.Charge}
		g, ok := groups[k]
		if !ok {
			g = &spectrumGroup{spec: m.Spectrum, charge: m.Charge}
			groups[k] = g
			order = append(order, k)
		}
		g.matches = append(g.matches, m)
	}

	if ch.xml == nil {
		return nil
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if a.source != b.source {
			return a.source < b.source
		}
		if a.scan != b.scan {
			return a.scan < b.scan
		}
		return a.charge < b.charge
	})
	for _, k := range order {
		g := groups[k]
		ch.xmlIndex++
		if err := ch.xml.WriteQuery(g.spec, g.charge, g.matches, rankType, ch.xmlIndex); err != nil {
			return err
		}
	}
	return nil
}

// WriteMatchFeatures writes one feature row: scan, 1 for targets or -1 for
// decoys, then each feature to four decimals. It does nothing when no
// feature file is open.
func (f *Files) WriteMatchFeatures(m *match.Match, features []float64) error {
	if err := f.canWriteMatches("write features"); err != nil {
		return err
	}
	f.state = StateWritingMatches
	if f.features == nil {
		return nil
	}

	label := 1
	if m.Decoy {
		label = -1
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d\t%d", m.Scan(), label)
	for _, v := range features {
		fmt.Fprintf(&b, "\t%.4f", v)
	}
	b.WriteByte('\n')
	_, err := f.features.WriteString(b.String())
	return err
}

// WriteRankedPeptides writes peptides to the target tab file, best score
// first.
func (f *Files) WriteRankedPeptides(peptides []hit.PeptideScore) error {
	if err := f.canWriteMatches("write ranked peptides"); err != nil {
		return err
	}
	f.state = StateWritingMatches

	sorted := append([]hit.PeptideScore(nil), peptides...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Sequence < sorted[j].Sequence
	})

	w := f.channels[0].tab
	for _, p := range sorted {
		w.Set(tab.ColSequence, p.Sequence)
		w.Set(tab.ColProteinID, strings.Join(p.ProteinIDs, ","))
		w.SetFloat(tab.ColBestScore, p.Score, -1)
		if err := w.WriteRow(); err != nil {
			return fmt.Errorf("failed to write peptide %s: %w", p.Sequence, err)
		}
	}
	return nil
}

// WriteRankedProteins writes protein hits to the target tab file in the
// order given.
func (f *Files) WriteRankedProteins(hits []*hit.Hit) error {
	if err := f.canWriteMatches("write ranked proteins"); err != nil {
		return err
	}
	f.state = StateWritingMatches

	w := f.channels[0].tab
	for _, h := range hits {
		w.Set(tab.ColProteinID, h.ProteinID)
		w.SetFloat(tab.ColBestScore, h.Score, -1)
		w.Set(tab.ColPeptides, strings.Join(h.Peptides, ","))
		if err := w.WriteRow(); err != nil {
			return fmt.Errorf("failed to write protein %s: %w", h.ProteinID, err)
		}
	}
	return nil
}

// WriteFooters closes every pepXML document. A second call does nothing.
func (f *Files) WriteFooters() error {
	if f.state == StateFootersWritten {
		return nil
	}
	if err := f.canWriteMatches("write footers"); err != nil {
		return err
	}
	for _, ch := range f.channels {
		if ch.xml == nil {
			continue
		}
		if err := ch.xml.WriteFooter(); err != nil {
			return fmt.Errorf("%s: %w", ch.label, err)
		}
	}
	f.state = StateFootersWritten
	return nil
}

// Close flushes and releases every writer and file exactly once. It is
// valid in any state, including after a failed write, and later calls do
// nothing.
func (f *Files) Close() error {
	if f.state == StateClosed {
		return nil
	}
	f.state = StateClosed

	var errs []error
	for _, ch := range f.channels {
		if ch.tab != nil {
			errs = append(errs, ch.tab.Flush())
		}
		if ch.sqt != nil {
			errs = append(errs, ch.sqt.Flush())
		}
		if ch.db != nil {
			errs = append(errs, ch.db.Close())
		}
	}
	if f.features != nil {
		errs = append(errs, f.features.Flush())
	}
	for _, file := range f.files {
		errs = append(errs, file.Close())
	}
	f.files = nil
	return errors.Join(errs...)
}

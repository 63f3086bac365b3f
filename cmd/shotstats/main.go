package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/shotstats/internal/analysis"
	"github.com/banshee-data/shotstats/internal/config"
	"github.com/banshee-data/shotstats/internal/counts"
	"github.com/banshee-data/shotstats/internal/db"
	"github.com/banshee-data/shotstats/internal/fsutil"
	"github.com/banshee-data/shotstats/internal/report"
	"github.com/banshee-data/shotstats/internal/scan"
	"github.com/banshee-data/shotstats/internal/sim"
	"github.com/banshee-data/shotstats/internal/stats"
	"github.com/banshee-data/shotstats/internal/units"
	"github.com/banshee-data/shotstats/internal/version"
)

const defaultDBPath = "shotstats.db"

func main() {
	flag.Usage = func() { printUsage(os.Stderr) }
	flag.Parse()

	if flag.NArg() < 1 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch command {
	case "analyse", "analyze":
		err = runAnalyse(args, os.Stdout)
	case "simulate":
		err = runSimulate(ctx, args, os.Stdout)
	case "compare":
		err = runCompare(args, os.Stdout)
	case "migrate":
		fs := flag.NewFlagSet("migrate", flag.ExitOnError)
		dbPath := fs.String("db", defaultDBPath, "Path to the results database")
		fs.Parse(args)
		err = db.RunMigrateCommand(fs.Args(), *dbPath, os.Stdout)
	case "version":
		fmt.Println(version.String())
	case "help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", command, err)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `shotstats - bright-state statistics for trapped-site readout

Usage: shotstats <command> [options]

Commands:
  analyse    Analyse one batch of counts from a JSON file
  simulate   Run a simulated frequency scan and record every chunk
  compare    Compare the pooling models for one ROI's per-group counts
  migrate    Manage the results database schema (up, down, status, force)
  version    Show the shotstats version
  help       Show this help message

Examples:
  shotstats analyse -counts batch.json
  shotstats simulate -start 9.5 -end 10.5 -step 0.05 -unit MHz -db shotstats.db -chart scan.html
  shotstats compare -y 8,2 -n 10,10 -weighting equal -plot roi0.png
  shotstats migrate -db shotstats.db status`)
}

// loadConfig reads path, or returns an empty config (all defaults) when path
// is empty.
func loadConfig(path string) (*config.AnalysisConfig, error) {
	if path == "" {
		return config.EmptyAnalysisConfig(), nil
	}
	return config.LoadAnalysisConfig(path)
}

// placeholderROIs is a groups x rois grid of unit boxes, used when only the
// shape of the layout matters.
func placeholderROIs(groups, rois int) [][]analysis.ROI {
	grid := make([][]analysis.ROI, groups)
	for g := range grid {
		grid[g] = make([]analysis.ROI, rois)
		for r := range grid[g] {
			grid[g][r] = analysis.ROI{Y0: g, Y1: g + 1, X0: r, X1: r + 1}
		}
	}
	return grid
}

// batchFile is the analyse input format.
type batchFile struct {
	Counts counts.CountTable `json:"counts"`
	ROIs   [][]analysis.ROI  `json:"rois,omitempty"`
}

func readBatch(path string) (batchFile, error) {
	var b batchFile
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return b, fmt.Errorf("failed to read counts file: %w", err)
	}
	if err := json.Unmarshal(data, &b); err != nil {
		return b, fmt.Errorf("failed to parse counts JSON: %w", err)
	}
	return b, nil
}

// batchInput resolves the ROI layout for a batch: the batch's own ROIs, then
// the config's, then a placeholder grid shaped like the counts.
func batchInput(b batchFile, cfg *config.AnalysisConfig) (analysis.Input, error) {
	in := analysis.Input{
		Counts:     b.Counts,
		Thresholds: cfg.GetThresholds(),
		Options:    cfg.Options(),
	}
	switch {
	case len(b.ROIs) > 0:
		in.ROIs = b.ROIs
	case len(cfg.ROIs) > 0:
		in.ROIs = cfg.GetROIs()
	default:
		groups, rois, err := b.Counts.Shape()
		if err != nil {
			return in, err
		}
		if len(b.Counts) == 0 {
			return in, fmt.Errorf("%w: empty batch needs an ROI layout", counts.ErrShapeMismatch)
		}
		in.ROIs = placeholderROIs(groups, rois)
	}
	return in, nil
}

func runAnalyse(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("analyse", flag.ContinueOnError)
	configPath := fs.String("config", "", "Analysis config JSON (defaults apply when omitted)")
	countsPath := fs.String("counts", "", "Counts JSON file: {\"counts\": [shot][group][roi]} (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *countsPath == "" {
		return errors.New("-counts is required")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	batch, err := readBatch(*countsPath)
	if err != nil {
		return err
	}
	in, err := batchInput(batch, cfg)
	if err != nil {
		return err
	}
	res, err := analysis.Analyse(in)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(res.Channels())
}

// simulateFlags collects the simulate options so they can be resolved and
// tested without running a scan.
type simulateFlags struct {
	configPath string
	dbPath     string
	csvPath    string
	chartPath  string
	notes      string

	start, end, step float64
	values           string
	unit             string

	seed       uint64
	drift      float64
	coil       float64
	bright     float64
	dark       float64
	groups     int
	rois       int
	shots      int
	settle     time.Duration
	chartROI   int
	pBrightCap float64
}

func parseSimulateFlags(args []string) (simulateFlags, error) {
	var f simulateFlags
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", "", "Analysis config JSON (defaults apply when omitted)")
	fs.StringVar(&f.dbPath, "db", "", "Store every chunk in this results database")
	fs.StringVar(&f.csvPath, "csv", "", "Write every chunk's channels to this CSV file")
	fs.StringVar(&f.chartPath, "chart", "", "Write an HTML chart of the scan to this file")
	fs.StringVar(&f.notes, "notes", "", "Free-text notes stored with the scan")
	fs.Float64Var(&f.start, "start", 9.8, "Scan start frequency")
	fs.Float64Var(&f.end, "end", 10.2, "Scan end frequency")
	fs.Float64Var(&f.step, "step", 0.02, "Scan step")
	fs.StringVar(&f.values, "values", "", "Comma-separated scan frequencies (overrides -start/-end/-step)")
	fs.StringVar(&f.unit, "unit", units.MHz, "Frequency unit: "+units.GetValidFrequencyUnitsString())
	fs.Uint64Var(&f.seed, "seed", 1, "Simulator seed")
	fs.Float64Var(&f.drift, "drift", 0, "Spread of bright probability across groups")
	fs.Float64Var(&f.coil, "coil", 0, "Bias coil current in amps")
	fs.Float64Var(&f.bright, "bright", 2*counts.DefaultThreshold, "Mean photon count of a bright site")
	fs.Float64Var(&f.dark, "dark", counts.DefaultThreshold/8, "Mean photon count of a dark site")
	fs.IntVar(&f.groups, "groups", 0, "Override the ROI layout with this many groups")
	fs.IntVar(&f.rois, "rois", 0, "Override the ROI layout with this many ROIs per group")
	fs.IntVar(&f.shots, "shots", 0, "Override shots per chunk")
	fs.DurationVar(&f.settle, "settle", 0, "Wait after retuning before each chunk")
	fs.IntVar(&f.chartROI, "chart-roi", 0, "ROI index to chart")
	fs.Float64Var(&f.pBrightCap, "p-max", 1, "Scale the Rabi bright probability by this contrast")
	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if !units.IsValidFrequency(f.unit) {
		return f, fmt.Errorf("invalid -unit %q (valid: %s)", f.unit, units.GetValidFrequencyUnitsString())
	}
	if (f.groups > 0) != (f.rois > 0) {
		return f, errors.New("-groups and -rois must be set together")
	}
	if f.pBrightCap < 0 || f.pBrightCap > 1 {
		return f, fmt.Errorf("-p-max must be in [0, 1], got %g", f.pBrightCap)
	}
	return f, nil
}

// scanPoints returns the scan frequencies in Hz.
func (f simulateFlags) scanPoints() ([]float64, error) {
	var pts []float64
	var err error
	if f.values != "" {
		pts, err = scan.ParseCSVFloat64s(f.values)
	} else {
		pts, err = scan.GenerateRange(f.start, f.end, f.step)
	}
	if err != nil {
		return nil, err
	}
	if len(pts) == 0 {
		return nil, errors.New("no scan points")
	}
	for i := range pts {
		if pts[i], err = units.ToHz(pts[i], f.unit); err != nil {
			return nil, err
		}
	}
	return pts, nil
}

// analysisConfig applies the layout and chunk overrides to the loaded config.
func (f simulateFlags) analysisConfig() (*config.AnalysisConfig, error) {
	cfg, err := loadConfig(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.groups > 0 {
		cfg.ROIs = placeholderROIs(f.groups, f.rois)
	}
	if f.shots > 0 {
		cfg.ShotsPerChunk = &f.shots
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runSimulate(ctx context.Context, args []string, out io.Writer) error {
	f, err := parseSimulateFlags(args)
	if err != nil {
		return err
	}
	points, err := f.scanPoints()
	if err != nil {
		return err
	}
	cfg, err := f.analysisConfig()
	if err != nil {
		return err
	}
	snap := cfg.Snapshot()

	oracle, err := sim.NewOracle(snap.Groups(), snap.ROIsPerGroup(), sim.Readout{MeanBright: f.bright, MeanDark: f.dark}, f.seed)
	if err != nil {
		return err
	}
	model := sim.DefaultRabiModel()
	model.CoilCurrentA = f.coil

	s := &scan.Scan{
		ID:        uuid.New(),
		Parameter: "frequency_hz",
		Points:    points,
		Runner:    oracle,
		Config:    cfg,
		Settle:    f.settle,
		Configure: func(ctx context.Context, hz float64) error {
			p := f.pBrightCap * model.PBright(hz)
			return oracle.SetSiteProbabilities(sim.GroupDrift(p, f.drift, snap.Groups(), snap.ROIsPerGroup()))
		},
	}

	if f.dbPath != "" {
		database, err := db.Open(f.dbPath)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()
		store := db.NewResultStore(database)
		if err := store.CreateScan(ctx, s.ID, s.Parameter, f.notes, time.Now()); err != nil {
			return err
		}
		s.Sinks = append(s.Sinks, store.Sink(ctx, s.ID))
	}

	osfs := fsutil.OSFileSystem{}
	if f.csvPath != "" {
		w, err := fsutil.CreateAll(osfs, f.csvPath)
		if err != nil {
			return err
		}
		defer w.Close()
		s.Sinks = append(s.Sinks, scan.NewCSVSink(w))
	}

	log.Printf("scan %s: %d points, %dx%d sites, %d shots per chunk, resonance %.6f %s",
		s.ID, len(points), snap.Groups(), snap.ROIsPerGroup(), snap.ShotsPerChunk,
		units.FromHz(model.ResonanceHz(), f.unit), f.unit)

	results, runErr := s.Run(ctx)
	for _, pt := range results {
		fmt.Fprintf(out, "%.6f %s\t%s\n", units.FromHz(pt.Point, f.unit), f.unit, summarise(pt.Chunk.Output))
	}

	if f.chartPath != "" && len(results) > 0 {
		err := fsutil.WriteWith(osfs, f.chartPath, func(w io.Writer) error {
			return report.WriteScanChart(w, results, f.chartROI, "frequency (Hz)")
		})
		if err != nil {
			return errors.Join(runErr, fmt.Errorf("chart: %w", err))
		}
	}
	return runErr
}

// summarise formats each ROI's pooled estimate on one line.
func summarise(o *analysis.Output) string {
	var line string
	for r, p := range o.Pooled {
		if r > 0 {
			line += "  "
		}
		line += fmt.Sprintf("%s_p=%.4f +%.4f/-%.4f", analysis.PooledPrefix(r), p.Median, p.UpperErr, p.LowerErr)
	}
	return line
}

func runCompare(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	yList := fs.String("y", "", "Comma-separated bright shots per group (required)")
	nList := fs.String("n", "", "Comma-separated total shots per group (required)")
	weighting := fs.String("weighting", string(stats.WeightShots), "Group weighting: shots or equal")
	weightList := fs.String("weights", "", "Comma-separated explicit group weights (overrides -weighting)")
	points := fs.Int("points", report.DefaultGridPoints, "Density grid points")
	plotPath := fs.String("plot", "", "Write a comparison plot (.png, .svg or .pdf)")
	title := fs.String("title", "Posterior comparison", "Plot title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	y, err := scan.ParseCSVInts(*yList)
	if err != nil {
		return fmt.Errorf("-y: %w", err)
	}
	n, err := scan.ParseCSVInts(*nList)
	if err != nil {
		return fmt.Errorf("-n: %w", err)
	}
	if len(y) == 0 || len(y) != len(n) {
		return fmt.Errorf("%w: -y has %d groups, -n has %d", counts.ErrShapeMismatch, len(y), len(n))
	}

	weights, err := scan.ParseCSVFloat64s(*weightList)
	if err != nil {
		return fmt.Errorf("-weights: %w", err)
	}
	if len(weights) == 0 {
		if weights, err = stats.Weights(stats.WeightScheme(*weighting), n); err != nil {
			return err
		}
	}

	c, err := report.PosteriorComparison(y, n, stats.JeffreysPrior, weights, *points)
	if err != nil {
		return err
	}
	if err := printComparison(out, c); err != nil {
		return err
	}
	if *plotPath != "" {
		if err := report.WritePosteriorPlot(fsutil.OSFileSystem{}, *plotPath, c, *title); err != nil {
			return err
		}
		log.Printf("wrote %s", *plotPath)
	}
	return nil
}

func printComparison(out io.Writer, c *report.Comparison) error {
	medians, err := c.Medians()
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "weights: %v\n", c.Weights)
	fmt.Fprintf(out, "constant p:             Beta(%.4f, %.4f)  median %.6f\n", c.Constant.Alpha, c.Constant.Beta, medians["constant"])
	fmt.Fprintf(out, "moment matched:         Beta(%.4f, %.4f)  median %.6f\n", c.Matched.Params.Alpha, c.Matched.Params.Beta, medians["moment"])
	fmt.Fprintf(out, "moment matched + drift: Beta(%.4f, %.4f)  median %.6f\n", c.Drift.Params.Alpha, c.Drift.Params.Beta, medians["moment_drift"])
	fmt.Fprintf(out, "mixture:                                    median %.6f\n", medians["mixture"])
	return nil
}

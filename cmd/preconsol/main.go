// Package main provides the CLI entrypoint for preconsol.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/preconsol/internal/casagrande"
	"github.com/verte-zerg/preconsol/internal/config"
	"github.com/verte-zerg/preconsol/internal/figure"
	"github.com/verte-zerg/preconsol/internal/ingest"
	"github.com/verte-zerg/preconsol/internal/model"
	"github.com/verte-zerg/preconsol/internal/plot"
	"github.com/verte-zerg/preconsol/internal/stats"
	"github.com/verte-zerg/preconsol/internal/store"
	"github.com/verte-zerg/preconsol/internal/tui"
)

const (
	defaultKneeScale = "log"
	historyIDWidth   = 8
)

var (
	estDegree        int
	estSmoothing     float64
	estKneeScale     string
	estLinspace      int
	estMaxExhaustive int
	expDPI           int
	expWidth         float64
	expHeight        float64
	dbPath           string

	sampleName string

	editOutDir string

	estimateSave bool
	estimatePlot bool

	exportOut string

	historySample string
	historySince  string
	historyLast   int
	historyStats  bool
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "preconsol FILE",
		Short:         "Casagrande preconsolidation pressure estimator",
		SilenceUsage:  true,
		SilenceErrors: false,
		Args:          cobra.ExactArgs(1),
		RunE:          runEditCmd,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", config.DefaultDBPath(), "estimate database path")
	addEstimateFlags(rootCmd)
	rootCmd.Flags().StringVar(&sampleName, "sample", "", "sample to open first")
	rootCmd.Flags().StringVar(&editOutDir, "out-dir", ".", "directory for exported images")

	rootCmd.AddCommand(newEditCmd())
	rootCmd.AddCommand(newEstimateCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addEstimateFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&estDegree, "degree", casagrande.DefaultDegree, "spline degree (1-5)")
	cmd.Flags().Float64Var(&estSmoothing, "smoothing", casagrande.DefaultSmoothing, "spline smoothing factor (0 interpolates)")
	cmd.Flags().StringVar(&estKneeScale, "knee-scale", defaultKneeScale, "knee detection abscissa: log or linear")
	cmd.Flags().IntVar(&estLinspace, "linspace", casagrande.DefaultLinspace, "candidate loads between knee and last load")
	cmd.Flags().IntVar(&estMaxExhaustive, "max-exhaustive", casagrande.DefaultMaxExhaustive, "largest point count searched exhaustively for the virgin line")
	cmd.Flags().IntVar(&expDPI, "dpi", casagrande.DefaultDPI, "exported image resolution")
	cmd.Flags().Float64Var(&expWidth, "width", casagrande.DefaultFigureWidth, "exported figure width in inches")
	cmd.Flags().Float64Var(&expHeight, "height", casagrande.DefaultFigureHeight, "exported figure height in inches")
}

// loadOptions merges the config file into flags the user did not set.
func loadOptions(cmd *cobra.Command) (casagrande.Options, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return casagrande.Options{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyIntConfig(cmd, "degree", &estDegree, fileCfg.Estimate.Degree)
	applyFloatConfig(cmd, "smoothing", &estSmoothing, fileCfg.Estimate.Smoothing)
	applyStringConfig(cmd, "knee-scale", &estKneeScale, fileCfg.Estimate.KneeScale)
	applyIntConfig(cmd, "linspace", &estLinspace, fileCfg.Estimate.Linspace)
	applyIntConfig(cmd, "max-exhaustive", &estMaxExhaustive, fileCfg.Estimate.MaxExhaustive)
	applyIntConfig(cmd, "dpi", &expDPI, fileCfg.Export.DPI)
	applyFloatConfig(cmd, "width", &expWidth, fileCfg.Export.Width)
	applyFloatConfig(cmd, "height", &expHeight, fileCfg.Export.Height)
	if dbPath, err = config.StorePath(fileCfg.Store, dbPath, cmd.Flags().Changed("db")); err != nil {
		return casagrande.Options{}, fmt.Errorf("invalid store path: %w", err)
	}

	cfg := model.Config{
		Degree:        estDegree,
		Smoothing:     estSmoothing,
		KneeScale:     estKneeScale,
		Linspace:      estLinspace,
		MaxExhaustive: estMaxExhaustive,
		DPI:           expDPI,
		Width:         expWidth,
		Height:        expHeight,
	}
	return validateConfig(cfg)
}

func validateConfig(cfg model.Config) (casagrande.Options, error) {
	opts, err := cfg.Options()
	if err != nil {
		return casagrande.Options{}, fmt.Errorf("invalid settings: %w", err)
	}
	return opts, nil
}

// loadSamples reads path and narrows it to one sample when name is set.
func loadSamples(path, name string) ([]model.Sample, error) {
	samples, err := ingest.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return samples, nil
	}
	sample, err := ingest.Find(samples, name)
	if err != nil {
		return nil, err
	}
	return []model.Sample{sample}, nil
}

func openStore() (*store.Store, error) {
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return st, nil
}

func closeStore(st *store.Store) {
	if cerr := st.Close(); cerr != nil {
		logErrf("failed to close db: %v\n", cerr)
	}
}

func newEditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit FILE",
		Short: "Adjust estimates interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runEditCmd,
	}
	addEstimateFlags(cmd)
	cmd.Flags().StringVar(&sampleName, "sample", "", "sample to open first")
	cmd.Flags().StringVar(&editOutDir, "out-dir", ".", "directory for exported images")
	return cmd
}

func runEditCmd(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	samples, err := ingest.LoadFile(args[0])
	if err != nil {
		return err
	}
	start := 0
	if sampleName != "" {
		start = -1
		for i, s := range samples {
			if s.Name == sampleName {
				start = i
				break
			}
		}
		if start < 0 {
			_, err := ingest.Find(samples, sampleName)
			return err
		}
	}

	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	m := tui.NewModel(tui.Options{
		Samples:   samples,
		Start:     start,
		Engine:    opts,
		Saver:     st,
		Export:    figure.Save,
		ExportDir: editOutDir,
	})
	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newEstimateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "estimate FILE",
		Short: "Estimate preconsolidation pressure for every sample",
		Args:  cobra.ExactArgs(1),
		RunE:  runEstimateCmd,
	}
	addEstimateFlags(cmd)
	cmd.Flags().StringVar(&sampleName, "sample", "", "only estimate this sample")
	cmd.Flags().BoolVar(&estimateSave, "save", false, "store the estimates")
	cmd.Flags().BoolVar(&estimatePlot, "plot", false, "draw a text plot per sample")
	return cmd
}

func runEstimateCmd(cmd *cobra.Command, args []string) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	samples, err := loadSamples(args[0], sampleName)
	if err != nil {
		return err
	}

	var st *store.Store
	if estimateSave {
		st, err = openStore()
		if err != nil {
			return err
		}
		defer closeStore(st)
	}

	out := cmd.OutOrStdout()
	results := estimateSamples(samples, opts)
	estimated := 0
	for _, r := range results {
		if r.err != nil {
			logErrf("%s: %v\n", r.sample.Name, r.err)
			continue
		}
		estimated++
		if st != nil {
			rec, _ := model.NewEstimateRecord(r.sample, r.session)
			id, err := st.SaveEstimate(context.Background(), rec)
			if err != nil {
				return fmt.Errorf("failed to save estimate for %s: %w", r.sample.Name, err)
			}
			r.id = id
		}
		if estimatePlot {
			if err := writeSamplePlot(out, r); err != nil {
				return err
			}
		}
	}
	if err := writeLines(out, estimateTable(results, st != nil)); err != nil {
		return err
	}
	if estimated == 0 {
		return errors.New("no sample produced an estimate")
	}
	return nil
}

type sampleResult struct {
	sample  model.Sample
	session *casagrande.Session
	id      string
	err     error
}

func estimateSamples(samples []model.Sample, opts casagrande.Options) []*sampleResult {
	results := make([]*sampleResult, 0, len(samples))
	for _, sample := range samples {
		s := casagrande.NewSession(opts)
		results = append(results, &sampleResult{sample: sample, session: s, err: s.LoadSeries(sample.Points)})
	}
	return results
}

func estimateTable(results []*sampleResult, withID bool) []string {
	headers := []string{"Sample", "Knee [kPa]", "Virgin points", "p'c [kPa]", "e at p'c"}
	if withID {
		headers = append(headers, "ID")
	}
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		row := []string{r.sample.Name, "-", "-", "-", "-"}
		if r.err == nil {
			est, _ := r.session.Estimate()
			row = []string{
				r.sample.Name,
				fmt.Sprintf("%.1f", r.session.Knee().AxialLoad),
				formatLoads(r.session.VirginLine().Points),
				fmt.Sprintf("%.1f", est.Pressure),
				fmt.Sprintf("%.3f", est.VoidRatio),
			}
		}
		if withID {
			row = append(row, shortID(r.id))
		}
		rows = append(rows, row)
	}
	return plot.FormatTable(headers, rows)
}

func formatLoads(pts []casagrande.SamplePoint) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = fmt.Sprintf("%g", p.AxialLoad)
	}
	return strings.Join(parts, ",")
}

func writeSamplePlot(w io.Writer, r *sampleResult) error {
	if _, err := fmt.Fprintf(w, "%s\n", r.sample.Name); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := plot.Render(w, r.session.Figure(), plot.Options{}); err != nil {
		return fmt.Errorf("failed to write plot: %w", err)
	}
	if _, err := fmt.Fprintln(w); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export FILE",
		Short: "Write the estimate figure as an image",
		Args:  cobra.ExactArgs(1),
		RunE:  runExportCmd,
	}
	addEstimateFlags(cmd)
	cmd.Flags().StringVar(&sampleName, "sample", "", "only export this sample")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file, or directory when exporting several samples")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	if strings.TrimSpace(exportOut) == "" {
		return fmt.Errorf("--out must not be empty")
	}
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	samples, err := loadSamples(args[0], sampleName)
	if err != nil {
		return err
	}
	paths, err := exportPaths(samples, exportOut)
	if err != nil {
		return err
	}

	written := 0
	for i, r := range estimateSamples(samples, opts) {
		if r.err != nil {
			logErrf("%s: %v\n", r.sample.Name, r.err)
			continue
		}
		req, err := r.session.ExportImage(paths[i])
		if err != nil {
			return fmt.Errorf("failed to export %s: %w", r.sample.Name, err)
		}
		if err := figure.Save(req); err != nil {
			return err
		}
		written++
		if _, err := fmt.Fprintln(cmd.OutOrStdout(), req.Path); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	if written == 0 {
		return errors.New("no sample produced an estimate")
	}
	return nil
}

// exportPaths maps each sample to its image path. A single sample is
// written to out, several samples go to out as a directory.
func exportPaths(samples []model.Sample, out string) ([]string, error) {
	if len(samples) == 1 {
		if info, err := os.Stat(out); err == nil && info.IsDir() {
			return []string{filepath.Join(out, samples[0].FileStem()+".png")}, nil
		}
		return []string{out}, nil
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	paths := make([]string, len(samples))
	seen := map[string]bool{}
	for i, s := range samples {
		p := filepath.Join(out, s.FileStem()+".png")
		if seen[p] {
			return nil, fmt.Errorf("samples map to the same file %s", p)
		}
		seen[p] = true
		paths[i] = p
	}
	return paths, nil
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored estimates",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().StringVar(&historySample, "sample", "", "sample filter")
	cmd.Flags().StringVar(&historySince, "since", "", "start date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&historyLast, "last", 0, "limit to last N estimates")
	cmd.Flags().BoolVar(&historyStats, "summary", false, "summarize estimates per sample")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	var sinceTime *time.Time
	if historySince != "" {
		parsed, err := time.ParseInLocation("2006-01-02", historySince, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		sinceTime = &parsed
	}
	if historyLast < 0 {
		return fmt.Errorf("--last must be >= 0")
	}
	cfg := model.HistoryConfig{
		Sample: historySample,
		Since:  sinceTime,
		Last:   historyLast,
	}

	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath, err = config.StorePath(fileCfg.Store, dbPath, cmd.Flags().Changed("db")); err != nil {
		return fmt.Errorf("invalid store path: %w", err)
	}
	st, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore(st)

	report, err := stats.BuildReport(context.Background(), st, cfg)
	if err != nil {
		return fmt.Errorf("failed to list estimates: %w", err)
	}
	if len(report.Records) == 0 {
		logErrln("No estimates stored yet. Save one with: preconsol estimate FILE --save")
		return nil
	}
	if historyStats {
		if err := stats.RenderSummary(cmd.OutOrStdout(), report.Summaries); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	return writeLines(cmd.OutOrStdout(), historyTable(report.Records))
}

func historyTable(recs []model.EstimateRecord) []string {
	headers := []string{"ID", "Saved", "Sample", "Knee [kPa]", "p'c [kPa]", "e at p'c", "Source"}
	rows := make([][]string, 0, len(recs))
	for _, rec := range recs {
		rows = append(rows, []string{
			shortID(rec.ID),
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			rec.Sample,
			fmt.Sprintf("%.1f", rec.KneeLoad),
			fmt.Sprintf("%.1f", rec.Pressure),
			fmt.Sprintf("%.3f", rec.VoidRatio),
			rec.Source,
		})
	}
	return plot.FormatTable(headers, rows)
}

func shortID(id string) string {
	if len(id) > historyIDWidth {
		return id[:historyIDWidth]
	}
	return id
}

func writeLines(w io.Writer, lines []string) error {
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
	}
	return nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyFloatConfig(cmd *cobra.Command, name string, target, value *float64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# preconsol configuration
# Uncomment a value to enable it. CLI flags override config values.

[estimate]
# degree = %d               # Spline degree (1-5)
# smoothing = %.1f          # Spline smoothing factor (0 interpolates)
# knee-scale = %q        # Knee detection abscissa: "log" or "linear"
# linspace = %d         # Candidate loads between knee and last load
# max-exhaustive = %d      # Largest point count searched exhaustively

[export]
# dpi = %d                # Image resolution
# width = %.1f             # Figure width in inches
# height = %.1f             # Figure height in inches

[store]
# path = %q
`,
		casagrande.DefaultDegree,
		casagrande.DefaultSmoothing,
		defaultKneeScale,
		casagrande.DefaultLinspace,
		casagrande.DefaultMaxExhaustive,
		casagrande.DefaultDPI,
		casagrande.DefaultFigureWidth,
		casagrande.DefaultFigureHeight,
		config.DefaultDBPath(),
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

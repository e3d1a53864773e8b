package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/conlab/internal/config"
	"github.com/san-kum/conlab/internal/constraints"
	"github.com/san-kum/conlab/internal/engine"
	"github.com/san-kum/conlab/internal/storage"
	"github.com/san-kum/conlab/internal/symbolic"
	"github.com/san-kum/conlab/internal/viz"
)

var (
	dataDir    string
	configFile string
	verbose    bool
	theme      string

	dialect       string
	negate        bool
	timeout       time.Duration
	budget        int
	randomVectors int
	seed          int64
	parallel      int
	presets       []string
	save          bool
	quiet         bool

	outFile  string
	jsonFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "conlab",
		Short:         "constraint gradient and acceleration derivation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
			viz.SetTheme(theme)
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".conlab", "run store directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().StringVar(&theme, "theme", "cyberpunk", "color theme ("+strings.Join(viz.ThemeNames(), ", ")+")")

	deriveCmd := &cobra.Command{
		Use:   "derive [family...]",
		Short: "derive, verify and export constraint formulas",
		RunE:  runDerive,
	}
	derivationFlags(deriveCmd)
	deriveCmd.Flags().BoolVar(&save, "save", false, "store the run")
	deriveCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print verdicts only")

	verifyCmd := &cobra.Command{
		Use:   "verify [family...]",
		Short: "derive and report verdicts; fails on any mismatch",
		RunE:  runVerify,
	}
	derivationFlags(verifyCmd)

	exportCmd := &cobra.Command{
		Use:   "export [family]",
		Short: "write the solver snippet of one family",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	derivationFlags(exportCmd)
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "", "snippet file (default stdout)")
	exportCmd.Flags().StringVar(&jsonFile, "json", "", "also write formulas and verdicts as JSON")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	showCmd := &cobra.Command{
		Use:   "show [run_id]",
		Short: "show formulas, verdicts and evaluations of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  showRun,
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [family]",
		Short: "list numeric fixture presets",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listPresets,
	}

	browseCmd := &cobra.Command{
		Use:   "browse",
		Short: "browse stored runs interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			return viz.RunBrowser(storage.New(dataDir))
		},
	}

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "manage config files",
	}
	configCmd.AddCommand(&cobra.Command{
		Use:   "init [file]",
		Short: "write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	})

	rootCmd.AddCommand(deriveCmd, verifyCmd, exportCmd, listCmd, showCmd, presetsCmd, browseCmd, configCmd, plotCommand(), demoPlotCommand())

	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(1)
	}
}

func derivationFlags(cmd *cobra.Command) {
	def := config.DefaultConfig()
	cmd.Flags().StringVar(&dialect, "dialect", def.Dialect, "export dialect (js, go, plain)")
	cmd.Flags().BoolVar(&negate, "negate", def.Negate, "export -accel for the solver")
	cmd.Flags().DurationVar(&timeout, "timeout", def.SimplifyTimeout, "bound on each simplification")
	cmd.Flags().IntVar(&budget, "budget", def.Budget, "node budget of each simplification")
	cmd.Flags().IntVar(&randomVectors, "vectors", def.RandomVectors, "random test vectors per family")
	cmd.Flags().Int64Var(&seed, "seed", def.Seed, "random vector seed")
	cmd.Flags().IntVar(&parallel, "parallel", 0, "concurrent derivations (0 = unlimited)")
	cmd.Flags().StringSliceVar(&presets, "preset", nil, "add preset vectors (family/name or name)")
}

// loadConfig reads --config when given and lets explicitly set flags win.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configFile != "" {
		var err error
		if cfg, err = config.Load(configFile); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}
	flags := cmd.Flags()
	if flags.Lookup("dialect") == nil {
		return cfg, nil
	}
	if configFile == "" || flags.Changed("dialect") {
		cfg.Dialect = dialect
	}
	if configFile == "" || flags.Changed("negate") {
		cfg.Negate = negate
	}
	if configFile == "" || flags.Changed("timeout") {
		cfg.SimplifyTimeout = timeout
	}
	if configFile == "" || flags.Changed("budget") {
		cfg.Budget = budget
	}
	if configFile == "" || flags.Changed("vectors") {
		cfg.RandomVectors = randomVectors
	}
	if configFile == "" || flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("parallel") {
		cfg.Parallel = parallel
	}
	return cfg, cfg.Validate()
}

func familiesFor(cfg *config.Config, args []string) ([]constraints.Family, error) {
	names := args
	if len(names) == 0 {
		names = cfg.Families
	}
	out := make([]constraints.Family, 0, len(names))
	for _, n := range names {
		f, err := constraints.New(n)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// addPresets resolves --preset values against the selected families. A bare
// name is looked up in every family that has it.
func addPresets(cfg *config.Config, families []constraints.Family) error {
	for _, p := range presets {
		if family, name, ok := strings.Cut(p, "/"); ok {
			if err := cfg.AddPreset(family, name); err != nil {
				return err
			}
			continue
		}
		found := false
		for _, f := range families {
			if config.GetPreset(f.Name(), p) != nil {
				if err := cfg.AddPreset(f.Name(), p); err != nil {
					return err
				}
				found = true
			}
		}
		if !found {
			return fmt.Errorf("no selected family has preset %q", p)
		}
	}
	return nil
}

// vectors converts configured vectors, refitting the rope length where asked.
func vectors(cfg *config.Config) ([]engine.NamedVector, error) {
	out := make([]engine.NamedVector, 0, len(cfg.Vectors))
	for _, v := range cfg.Vectors {
		values := constraints.Vector{}
		for k, x := range v.Values {
			values[k] = x
		}
		if v.FitLength {
			f, err := constraints.New(v.Family)
			if err != nil {
				return nil, fmt.Errorf("vector %s: %w", v.Name, err)
			}
			drum, ok := f.(*constraints.RopeDrum)
			if !ok {
				return nil, fmt.Errorf("vector %s: fit_length needs a rope drum family, got %s", v.Name, v.Family)
			}
			l, err := drum.FitLength(values)
			if err != nil {
				return nil, fmt.Errorf("vector %s: %w", v.Name, err)
			}
			slog.Info("fitted rope length", "vector", v.Name, "family", v.Family, "L", l, "was", values["L"])
			values["L"] = l
		}
		out = append(out, engine.NamedVector{Name: v.Name, Family: v.Family, Values: values})
	}
	return out, nil
}

func newEngine(cfg *config.Config) (*engine.Engine, error) {
	d, err := symbolic.ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	vs, err := vectors(cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(engine.Options{
		SimplifyTimeout: cfg.SimplifyTimeout,
		Budget:          cfg.Budget,
		Tolerance:       cfg.Tolerance,
		FDTolerance:     cfg.FDTolerance,
		Dialect:         d,
		Negate:          cfg.Negate,
		Vectors:         vs,
		RandomVectors:   cfg.RandomVectors,
		Seed:            cfg.Seed,
		Parallel:        cfg.Parallel,
		Logger:          slog.Default(),
	}), nil
}

func derive(cmd *cobra.Command, args []string) (*config.Config, []*engine.Derivation, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	families, err := familiesFor(cfg, args)
	if err != nil {
		return nil, nil, err
	}
	if err := addPresets(cfg, families); err != nil {
		return nil, nil, err
	}
	eng, err := newEngine(cfg)
	if err != nil {
		return nil, nil, err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ds, err := eng.DeriveAll(ctx, families)
	return cfg, ds, err
}

func runDerive(cmd *cobra.Command, args []string) error {
	cfg, ds, err := derive(cmd, args)
	if err != nil {
		return err
	}

	var st *storage.Store
	if save {
		dir := dataDir
		if configFile != "" && !cmd.Flags().Changed("data") {
			dir = cfg.OutputDir
		}
		st = storage.New(dir)
		if err := st.Init(); err != nil {
			return err
		}
	}
	for _, d := range ds {
		if quiet {
			printVerdicts(d)
		} else {
			fmt.Print(viz.Transcript(d.Transcript))
			if d.Snippet != "" {
				fmt.Println()
				fmt.Println(viz.Box("snippet ("+d.Dialect.String()+")", strings.TrimRight(d.Snippet, "\n"), 100))
			}
		}
		fmt.Printf("%s in %v\n\n", d.Family, d.Elapsed.Round(time.Millisecond))

		if st != nil {
			runID, err := st.Save(d, cfg.Seed, cfg.Negate)
			if err != nil {
				return err
			}
			fmt.Println(viz.Label("run id:", runID))
		}
	}
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	_, ds, err := derive(cmd, args)
	if err != nil {
		return err
	}
	numeric := 0
	for _, d := range ds {
		printVerdicts(d)
		for _, v := range d.Verdicts {
			if v.Method == engine.MethodNumeric {
				numeric++
			}
		}
	}
	if numeric > 0 {
		fmt.Println(viz.Muted(fmt.Sprintf("%d verdict(s) rest on numeric agreement only", numeric)))
	}
	return nil
}

func printVerdicts(d *engine.Derivation) {
	fmt.Println(viz.Title(fmt.Sprintf("%s (%s)", d.Family, d.Order)))
	for _, v := range d.Verdicts {
		fmt.Println("  " + viz.Verdict(v))
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	_, ds, err := derive(cmd, args)
	if err != nil {
		return err
	}
	d := ds[0]
	if d.Snippet == "" {
		return fmt.Errorf("dialect %s has no snippet form, use js or go", d.Dialect)
	}
	if jsonFile != "" {
		if err := storage.ExportJSON(jsonFile, d); err != nil {
			return err
		}
		slog.Info("wrote formulas", "file", jsonFile)
	}
	if outFile == "" {
		fmt.Print(d.Snippet)
		return nil
	}
	if err := os.WriteFile(outFile, []byte(d.Snippet), 0644); err != nil {
		return err
	}
	slog.Info("wrote snippet", "file", outFile, "dialect", d.Dialect)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFAMILY\tORDER\tTIME\tVERDICTS\tSTATUS\tSIMPLIFIED\tDIALECT")

	for _, run := range runs {
		ok := 0
		for _, v := range run.Verdicts {
			if v.Match {
				ok++
			}
		}
		status := "ok"
		if !run.Passed() {
			status = "FAILED"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%t\t%s\n",
			run.ID,
			run.Family,
			run.Order,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			ok, len(run.Verdicts),
			status,
			run.Simplified,
			run.Dialect,
		)
	}

	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "conlab.yaml"
	if len(args) == 1 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Println(viz.Label("wrote:", path))
	return nil
}

func showRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := storage.New(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	formulas, err := st.LoadFormulas(runID)
	if err != nil {
		return err
	}

	fmt.Println(viz.Title(fmt.Sprintf("%s  %s (%s axis order)", meta.ID, meta.Family, meta.Order)))
	fmt.Println(viz.Label("derived:", meta.Timestamp.Format("2006-01-02 15:04:05")), " ", viz.Label("elapsed:", fmt.Sprintf("%.2fs", meta.Elapsed)))
	fmt.Println()
	for _, f := range formulas {
		fmt.Print(viz.Transcript([]string{f[0] + " = " + f[1]}))
	}
	fmt.Println()
	for _, v := range meta.Verdicts {
		fmt.Println("  " + viz.Verdict(v))
	}

	_, rows, err := st.LoadEvaluations(runID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	fmt.Println()
	accel := make([]float64, 0, len(meta.Vectors))
	for _, name := range meta.Vectors {
		vals, ok := rows[name]
		if !ok || len(vals) < 2 {
			continue
		}
		fmt.Printf("  %-22s C=%-12.6g accel=%-12.6g grad %s\n", name, vals[0], vals[1], viz.Sparkline(vals[2:], len(vals)-2))
		accel = append(accel, vals[1])
	}
	if len(accel) > 1 {
		fmt.Println()
		fmt.Println(asciigraph.Plot(accel,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("accel across test vectors"),
		))
	}
	return nil
}

func listPresets(cmd *cobra.Command, args []string) error {
	families := constraints.Names()
	if len(args) == 1 {
		families = args
	}
	for _, family := range families {
		names := config.ListPresets(family)
		if len(names) == 0 {
			fmt.Printf("no presets for family: %s\n", family)
			continue
		}
		fmt.Printf("presets for %s:\n", family)
		for _, n := range names {
			p := config.GetPreset(family, n)
			line := fmt.Sprintf("  %-28s %s", n, viz.Muted(p.Description))
			if p.FitLength {
				if f, err := constraints.New(family); err == nil {
					if drum, ok := f.(*constraints.RopeDrum); ok {
						if l, err := drum.FitLength(p.Values); err == nil {
							line += viz.Muted(fmt.Sprintf(" (L %g -> %.9g)", p.Values["L"], l))
						}
					}
				}
			}
			fmt.Println(line)
		}
	}
	return nil
}

// reportError prints err with the context its type carries.
func reportError(err error) {
	var de *engine.DerivationError
	var mm *engine.MismatchError
	var dom *symbolic.DomainError
	switch {
	case errors.As(err, &mm):
		fmt.Fprintln(os.Stderr, viz.Title("formula mismatch"))
		fmt.Fprintf(os.Stderr, "  %s at %s: %.12g vs %.12g\n  A = %s\n  B = %s\n", mm.Subject, mm.Vector, mm.A, mm.B, mm.FormulaA, mm.FormulaB)
	case errors.As(err, &dom):
		fmt.Fprintln(os.Stderr, viz.Title("domain violation"))
		fmt.Fprintln(os.Stderr, "  "+dom.Error())
	case errors.Is(err, symbolic.ErrSimplifyTimeout):
		fmt.Fprintln(os.Stderr, "simplification timed out; raise --timeout/--budget or rely on numeric verification")
	}
	if errors.As(err, &de) {
		slog.Error("derivation failed", "family", de.Family, "stage", de.Stage, "error", de.Wrapped)
		return
	}
	fmt.Fprintln(os.Stderr, "error:", err)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motorkit/internal/actuator"
	"github.com/san-kum/motorkit/internal/automation"
	"github.com/san-kum/motorkit/internal/config"
	"github.com/san-kum/motorkit/internal/experiment"
	"github.com/san-kum/motorkit/internal/export"
	"github.com/san-kum/motorkit/internal/metrics"
	"github.com/san-kum/motorkit/internal/motor"
	"github.com/san-kum/motorkit/internal/optim"
	"github.com/san-kum/motorkit/internal/storage"
	"github.com/san-kum/motorkit/internal/tui"
	"github.com/san-kum/motorkit/internal/viz"
)

var (
	dataDir  string
	logLevel string
	logger   = slog.Default()

	// run
	showPlot bool

	// export-csv
	outPath string

	// tune
	tuneParams  []string
	tuneMetric  string
	tuneWorkers int
	tuneTop     int

	// live
	targetStep float64

	// robust
	mcTrials int
	mcSpread float64
	mcSeed   int64
	mcFixed  []string

	// config init
	force bool

	// jog
	jogPower    int
	jogSlew     float64
	jogDuration time.Duration
	jogPort     string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "motorkit",
		Short:         "motor control bench: controllers, slew limiting and simulated rigs",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogger(logLevel)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".motorkit", "data directory")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	runCmd := &cobra.Command{
		Use:   "run [preset|config]",
		Short: "run a simulated rig and store the result",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRig,
	}
	runCmd.Flags().BoolVar(&showPlot, "plot", false, "plot the run when it finishes")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a run (latest when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  plotRun,
	}

	exportCSVCmd := &cobra.Command{
		Use:   "export-csv [run_id]",
		Short: "export run samples to CSV",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportCSV,
	}
	exportCSVCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.csv)")

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [run_id]",
		Short: "export run metadata and samples to JSON on stdout",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportJSON,
	}

	exportSVGCmd := &cobra.Command{
		Use:   "export-svg [run_id]",
		Short: "chart measured vs target as SVG",
		Args:  cobra.MaximumNArgs(1),
		RunE:  exportSVG,
	}
	exportSVGCmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default <run_id>.svg)")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list rig presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				p := config.GetPreset(name)
				fmt.Printf("  %-20s %s / %s\n", name, p.Plant, p.Controller)
			}
			return nil
		},
	}

	tuneCmd := &cobra.Command{
		Use:   "tune [preset|config]",
		Short: "grid search controller gains",
		Args:  cobra.MaximumNArgs(1),
		RunE:  tuneGains,
	}
	tuneCmd.Flags().StringArrayVarP(&tuneParams, "param", "p", nil, "gain range as name=lo:hi:n (repeatable)")
	tuneCmd.Flags().StringVar(&tuneMetric, "metric", "tracking_error", "metric to minimize")
	tuneCmd.Flags().IntVar(&tuneWorkers, "workers", 0, "parallel rigs (0 = GOMAXPROCS)")
	tuneCmd.Flags().IntVar(&tuneTop, "top", 10, "trials to show")

	liveCmd := &cobra.Command{
		Use:   "live [preset|config]",
		Short: "drive a simulated rig interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLive,
	}
	liveCmd.Flags().Float64Var(&targetStep, "step", 100, "target change per key press")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file]",
		Short: "run a scripted sequence of rigs",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	robustCmd := &cobra.Command{
		Use:   "robust [preset|config]",
		Short: "monte carlo check of a tuning against plant variation",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRobust,
	}
	robustCmd.Flags().IntVar(&mcTrials, "trials", 50, "number of perturbed plants")
	robustCmd.Flags().Float64Var(&mcSpread, "spread", 0.1, "relative perturbation of each plant parameter")
	robustCmd.Flags().Int64Var(&mcSeed, "seed", 0, "random seed (0 = time based)")
	robustCmd.Flags().StringSliceVar(&mcFixed, "fixed", []string{"gravity"}, "plant parameters to leave unperturbed")
	robustCmd.Flags().IntVar(&tuneWorkers, "workers", 0, "parallel rigs (0 = GOMAXPROCS)")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "inspect or create rig configs",
	}
	configPrintCmd := &cobra.Command{
		Use:   "print [preset|config]",
		Short: "print the resolved config as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE:  printConfig,
	}
	configInitCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "write the default config",
		Args:  cobra.MaximumNArgs(1),
		RunE:  initConfig,
	}
	configInitCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	configCmd.AddCommand(configPrintCmd, configInitCmd)

	jogCmd := &cobra.Command{
		Use:   "jog [preset|config]",
		Short: "drive a real motor over serial with slew limiting",
		Args:  cobra.MaximumNArgs(1),
		RunE:  jogMotor,
	}
	jogCmd.Flags().IntVar(&jogPower, "power", 40, "requested power")
	jogCmd.Flags().Float64Var(&jogSlew, "slew", 0, "slew rate (default from config)")
	jogCmd.Flags().DurationVar(&jogDuration, "time", 2*time.Second, "how long to hold power")
	jogCmd.Flags().StringVar(&jogPort, "port", "", "serial port (default from config)")

	rootCmd.AddCommand(runCmd, listCmd, plotCmd, exportCSVCmd, exportJSONCmd, exportSVGCmd, presetsCmd, tuneCmd, liveCmd, scenarioCmd, robustCmd, configCmd, jogCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setupLogger(level string) error {
	var lv slog.Level
	if err := lv.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the optional argument as a preset name, then as a
// config file path. With no argument the defaults apply.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	switch {
	case len(args) == 0:
		cfg, err = config.Load("")
	case config.GetPreset(args[0]) != nil:
		cfg, err = config.FromPreset(args[0])
	default:
		cfg, err = config.Load(args[0])
	}
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("log-level") && cfg.LogLevel != "" {
		if err := setupLogger(cfg.LogLevel); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func resolveRun(st *storage.Store, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return st.Latest()
}

func runRig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	exp, err := experiment.Build(cfg, nil, logger)
	if err != nil {
		return err
	}

	fmt.Printf("running %s on %s...\n", cfg.Controller, cfg.Plant)
	start := time.Now()
	result, runErr := exp.Run(cmd.Context())
	if result == nil {
		return runErr
	}
	elapsed := time.Since(start)

	runID, err := st.Save(cfg, result)
	if err != nil {
		return err
	}

	fmt.Printf("completed in %v\n", elapsed)
	fmt.Printf("run id: %s\n", runID)
	fmt.Printf("control steps: %d\n", result.StepsTaken)
	fmt.Println("\nmetrics:")
	fmt.Print(viz.DefaultStyles().MetricsTable(result.Metrics))

	if showPlot {
		fmt.Println()
		fmt.Println(viz.PlotSamples(result.Samples))
	}
	return runErr
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
	fmt.Fprintln(w, "ID\tPLANT\tCTRL\tTIME\tDURATION\tSTEPS")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dms\t%d\n",
			run.ID,
			run.Plant,
			run.Controller,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.DurationMs,
			run.Steps,
		)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("run %s has no samples", runID)
	}

	fmt.Printf("run: %s\n", meta.ID)
	fmt.Printf("plant: %s  controller: %s\n", meta.Plant, meta.Controller)
	fmt.Printf("samples: %d\n\n", len(samples))
	fmt.Println(viz.PlotSamples(samples))
	fmt.Println()
	fmt.Print(viz.DefaultStyles().MetricsTable(meta.Metrics))
	return nil
}

func exportCSV(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	path := outPath
	if path == "" {
		path = runID + ".csv"
	}
	if err := st.ExportCSV(path, runID); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	return st.ExportJSON(os.Stdout, runID)
}

func exportSVG(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	runID, err := resolveRun(st, args)
	if err != nil {
		return err
	}
	samples, err := st.LoadSamples(runID)
	if err != nil {
		return err
	}
	svg := export.RunSVG(samples, 800, 400)
	if svg == "" {
		return fmt.Errorf("run %s has too few samples to chart", runID)
	}

	path := outPath
	if path == "" {
		path = runID + ".svg"
	}
	if err := os.WriteFile(path, []byte(svg), 0644); err != nil {
		return err
	}
	fmt.Printf("exported to %s\n", path)
	return nil
}

// parseRange reads name=lo:hi:n.
func parseRange(arg string) (string, []float64, error) {
	name, rng, ok := strings.Cut(arg, "=")
	if !ok || name == "" {
		return "", nil, fmt.Errorf("range %q: want name=lo:hi:n", arg)
	}
	parts := strings.Split(rng, ":")
	if len(parts) != 3 {
		return "", nil, fmt.Errorf("range %q: want name=lo:hi:n", arg)
	}
	lo, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return "", nil, fmt.Errorf("range %q: %w", arg, err)
	}
	hi, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return "", nil, fmt.Errorf("range %q: %w", arg, err)
	}
	n, err := strconv.Atoi(parts[2])
	if err != nil || n < 1 {
		return "", nil, fmt.Errorf("range %q: count must be a positive integer", arg)
	}
	return name, optim.Linspace(lo, hi, n), nil
}

func tuneGains(cmd *cobra.Command, args []string) error {
	if len(tuneParams) == 0 {
		return fmt.Errorf("at least one --param is required")
	}
	if _, err := metrics.New(tuneMetric); err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	names := make([]string, 0, len(tuneParams))
	ranges := make([][]float64, 0, len(tuneParams))
	total := 1
	for _, p := range tuneParams {
		name, values, err := parseRange(p)
		if err != nil {
			return err
		}
		names = append(names, name)
		ranges = append(ranges, values)
		total *= len(values)
	}

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	build := func(params map[string]float64) (*experiment.Experiment, error) {
		exp, err := experiment.Build(cfg, nil, quiet)
		if err != nil {
			return nil, err
		}
		return exp, exp.SetParams(params)
	}

	fmt.Printf("tuning %s on %s: %d trials minimizing %s\n", cfg.Controller, cfg.Plant, total, tuneMetric)
	gs := optim.NewGridSearch(names, ranges).WithWorkers(tuneWorkers)
	best, value, trials, err := gs.Search(cmd.Context(), build, tuneMetric)

	s := viz.DefaultStyles()
	fmt.Println()
	fmt.Print(s.TrialsTable(trials, tuneMetric, tuneTop))
	if err != nil {
		return err
	}
	fmt.Printf("\nbest: %s  %s=%.6f\n", optim.FormatParams(best), tuneMetric, value)
	return nil
}

func runScenario(cmd *cobra.Command, args []string) error {
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}

	results, runErr := automation.RunScenario(cmd.Context(), sc, st, logger)
	s := viz.DefaultStyles()
	for _, r := range results {
		fmt.Println(s.Title.Render(r.Name))
		if r.RunID != "" {
			fmt.Printf("  run id: %s\n", r.RunID)
		}
		fmt.Print(s.MetricsTable(r.Metrics))
	}
	return runErr
}

func runRobust(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	mc := &automation.MonteCarloConfig{
		Base:    cfg,
		Spread:  mcSpread,
		Trials:  mcTrials,
		Seed:    mcSeed,
		Workers: tuneWorkers,
		Fixed:   mcFixed,
	}
	fmt.Printf("%d trials of %s on %s, plant parameters ±%.0f%%\n", mcTrials, cfg.Controller, cfg.Plant, mcSpread*100)
	results, err := automation.RunMonteCarlo(cmd.Context(), mc, quiet)
	if err != nil {
		return err
	}

	stable, unstable := automation.MonteCarloStats(results)
	fmt.Printf("stable: %d  unstable: %d  failed: %d\n\n", stable, unstable, len(results)-stable-unstable)

	spread := make(map[string]float64)
	for _, name := range metrics.Names() {
		if mean, worst, ok := automation.MetricSpread(results, name); ok {
			spread[name+" mean"] = mean
			spread[name+" worst"] = worst
		}
	}
	fmt.Print(viz.DefaultStyles().MetricsTable(spread))
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	// The console owns the screen; keep log output off it.
	quiet := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	exp, err := experiment.Build(cfg, nil, quiet)
	if err != nil {
		return err
	}
	if err := exp.Start(); err != nil {
		return err
	}

	target := config.DefaultTarget
	if len(cfg.Run.Schedule) > 0 {
		target = cfg.Run.Schedule[0].Target
	}
	title := fmt.Sprintf("%s / %s", cfg.Plant, cfg.Controller)
	return tui.Run(tui.New(exp.Rig(), title, target, targetStep))
}

func printConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func initConfig(cmd *cobra.Command, args []string) error {
	path := "motorkit.yaml"
	if len(args) > 0 {
		path = args[0]
	}
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, config.DefaultConfig()); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", path)
	return nil
}

func jogMotor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}
	if jogPort != "" {
		cfg.Serial.Port = jogPort
	}
	slew := cfg.Slew
	if jogSlew > 0 {
		slew = jogSlew
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	act, err := actuator.OpenSerial(cfg.Serial, logger)
	if err != nil {
		return err
	}
	defer act.Close()

	reg := motor.NewRegistry(act, logger)
	if err := reg.Register(cfg.Channel, slew); err != nil {
		return err
	}

	passCtx, cancelPass := context.WithCancel(ctx)
	passDone := make(chan struct{})
	go func() {
		defer close(passDone)
		_ = reg.Run(passCtx, time.Duration(cfg.Run.SlewPeriodMs)*time.Millisecond)
	}()

	if err := reg.SetPower(cfg.Channel, jogPower); err != nil {
		cancelPass()
		<-passDone
		return err
	}
	logger.Info("jogging", "channel", cfg.Channel, "power", jogPower, "slew", slew, "for", jogDuration)

	select {
	case <-ctx.Done():
		logger.Warn("interrupted")
	case <-time.After(jogDuration):
	}

	cancelPass()
	<-passDone
	return reg.Bypass(cfg.Channel, 0)
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/san-kum/conlab/internal/config"
	"github.com/san-kum/conlab/internal/landscape"
	"github.com/san-kum/conlab/internal/viz"
)

var (
	plotOut     string
	plotTitle   string
	plotDPI     int
	plotLevels  int
	plotPreview bool

	gridSize int
	optimum  float64
	noise    float64
	saveData string
)

func renderFlags(cmd *cobra.Command) {
	def := config.DefaultConfig().Landscape
	cmd.Flags().StringVarP(&plotOut, "out", "o", def.OutputDir, "image output directory")
	cmd.Flags().StringVar(&plotTitle, "title", def.Title, "plot title")
	cmd.Flags().IntVar(&plotDPI, "dpi", def.DPI, "image resolution")
	cmd.Flags().IntVar(&plotLevels, "levels", def.Levels, "contour levels")
	cmd.Flags().BoolVar(&plotPreview, "preview", true, "print terminal cross-sections")
}

func plotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [file]",
		Short: "render the objective landscape written by the optimizer",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runPlot,
	}
	renderFlags(cmd)
	return cmd
}

func demoPlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo-plot",
		Short: "render a synthetic landscape",
		RunE:  runDemoPlot,
	}
	renderFlags(cmd)
	def := landscape.DefaultSynthetic()
	cmd.Flags().IntVar(&gridSize, "size", def.Size, "grid points per axis")
	cmd.Flags().Float64Var(&optimum, "optimum", def.Optimum, "objective value at the centre")
	cmd.Flags().Float64Var(&noise, "noise", def.NoiseSigma, "gaussian noise sigma")
	cmd.Flags().Int64Var(&seed, "seed", def.Seed, "noise seed")
	cmd.Flags().StringVar(&saveData, "save-data", "", "also write the grid as landscape JSON")
	return cmd
}

func landscapeConfig(cmd *cobra.Command) (config.LandscapeConfig, error) {
	lc := config.DefaultConfig().Landscape
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return lc, fmt.Errorf("failed to load config: %w", err)
		}
		lc = cfg.Landscape
	}
	flags := cmd.Flags()
	if configFile == "" || flags.Changed("out") {
		lc.OutputDir = plotOut
	}
	if configFile == "" || flags.Changed("title") {
		lc.Title = plotTitle
	}
	if configFile == "" || flags.Changed("dpi") {
		lc.DPI = plotDPI
	}
	if configFile == "" || flags.Changed("levels") {
		lc.Levels = plotLevels
	}
	return lc, nil
}

func runPlot(cmd *cobra.Command, args []string) error {
	lc, err := landscapeConfig(cmd)
	if err != nil {
		return err
	}
	input := lc.Input
	if len(args) == 1 {
		input = args[0]
	}

	data, err := landscape.Load(input)
	if err != nil {
		return err
	}
	fmt.Println(viz.Label("stored range:", fmt.Sprintf("%.1f - %.1f ft", data.MinObj, data.MaxObj)))
	g, err := data.Grid()
	if err != nil {
		return err
	}
	return render(g, lc)
}

func runDemoPlot(cmd *cobra.Command, args []string) error {
	lc, err := landscapeConfig(cmd)
	if err != nil {
		return err
	}

	if configFile == "" || cmd.Flags().Changed("size") {
		lc.GridSize = gridSize
	}
	if configFile == "" || cmd.Flags().Changed("optimum") {
		lc.Optimum = optimum
	}
	if configFile == "" || cmd.Flags().Changed("seed") {
		lc.Seed = seed
	}
	if configFile == "" || cmd.Flags().Changed("noise") {
		lc.NoiseSigma = noise
	}

	data, err := landscape.Synthetic(lc.SyntheticOptions())
	if err != nil {
		return err
	}
	if saveData != "" {
		if err := data.Save(saveData); err != nil {
			return err
		}
		slog.Info("wrote landscape data", "file", saveData)
	}
	g, err := data.Grid()
	if err != nil {
		return err
	}
	return render(g, lc)
}

func render(g *landscape.Grid, lc config.LandscapeConfig) error {
	fmt.Println(landscape.Summary(g))

	opts := landscape.DefaultRenderOptions()
	opts.Title, opts.ZLabel = lc.Title, lc.ZLabel
	opts.Levels, opts.DPI = lc.Levels, lc.DPI
	opts.Logger = slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	report, err := landscape.Render(ctx, g, lc.OutputDir, opts)
	if err != nil {
		return err
	}

	for _, f := range report.Files {
		fmt.Println(viz.Label("saved:", f))
	}
	fmt.Println(viz.Label("objective range:", fmt.Sprintf("%.1f - %.1f", report.Min, report.Max)))
	if plotPreview {
		fmt.Println()
		fmt.Println(landscape.Preview(g, 60, 12))
		fmt.Println(viz.Box("surface", viz.Wireframe(g, viz.Camera{Elevation: opts.Elevation, Azimuth: opts.Azimuth}, 40, 12), 84))
	}
	return nil
}

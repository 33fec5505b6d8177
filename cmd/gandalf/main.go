package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/stefano-meschiari/gandalf/internal/comm"
	"github.com/stefano-meschiari/gandalf/internal/config"
	"github.com/stefano-meschiari/gandalf/internal/core"
	"github.com/stefano-meschiari/gandalf/internal/domain"
	"github.com/stefano-meschiari/gandalf/internal/ic"
	"github.com/stefano-meschiari/gandalf/internal/sim"
	"github.com/stefano-meschiari/gandalf/internal/snap"
	"github.com/stefano-meschiari/gandalf/internal/storage"
)

var (
	dataDir    string
	configFile string
	preset     string
	snapOut    string
	snapFormat string
	column     string
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "gandalf",
		Short: "SPH + N-body self-gravitating hydrodynamics engine",
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".gandalf", "run data directory")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation from a preset or config file",
		RunE:  runSimulation,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "YAML config path")
	runCmd.Flags().StringVar(&preset, "preset", "", "named preset")
	runCmd.Flags().StringVar(&snapOut, "snap", "", "write a final snapshot here")
	runCmd.Flags().StringVar(&snapFormat, "format", "csv", "snapshot format (csv, gob)")

	icCmd := &cobra.Command{
		Use:   "ic [preset]",
		Short: "generate an initial-conditions snapshot",
		Args:  cobra.ExactArgs(1),
		RunE:  generateIC,
	}
	icCmd.Flags().StringVar(&snapOut, "out", "ic.csv", "output path")
	icCmd.Flags().StringVar(&snapFormat, "format", "csv", "snapshot format (csv, gob)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot one diagnostic series of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&column, "series", "kinetic", "series column to plot")

	rootCmd.AddCommand(runCmd, icCmd, listCmd, plotCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configFile != "" {
		return config.Load(configFile)
	}
	if preset != "" {
		cfg := config.Preset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset %q (have %v)", preset, config.ListPresets())
		}
		return cfg, nil
	}
	return nil, fmt.Errorf("pass --config or --preset")
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	var (
		result *sim.Result
		final  *snap.Snapshot
	)
	if cfg.Partition.Workers > 1 {
		result, final, err = runDistributed(cfg, log)
	} else {
		result, final, err = runSingle(cfg, log)
	}
	if err != nil {
		return err
	}

	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	id, err := store.Save(storage.RunMetadata{
		Preset: presetName(), Seed: cfg.Seed,
		DtMax: cfg.DtMax, TEnd: cfg.TEnd,
		Kernel: cfg.Kernel, Eos: cfg.Eos,
	}, result)
	if err != nil {
		return err
	}

	if snapOut != "" && final != nil {
		if err := snap.Write(snapOut, snapFormat, final); err != nil {
			return err
		}
	}

	last := result.Stats[len(result.Stats)-1]
	fmt.Println(titleStyle.Render("run complete"))
	fmt.Printf("  id        %s\n", id)
	fmt.Printf("  steps     %d  (t = %.6g)\n", result.StepsTaken, last.Time)
	fmt.Printf("  particles %d  ghosts %d  sinks %d\n", last.NParts, last.NGhosts, last.NSinks)
	fmt.Printf("  energy    ke=%.6g th=%.6g pe=%.6g\n", last.Kinetic, last.Thermal, last.Potential)
	if last.Imbalance > 0.1 {
		fmt.Println(warnStyle.Render(fmt.Sprintf("  imbalance %.2f", last.Imbalance)))
	} else {
		fmt.Println(okStyle.Render("  balanced"))
	}
	return nil
}

func presetName() string {
	if preset != "" {
		return preset
	}
	return "custom"
}

func runSingle(cfg *config.Config, log *slog.Logger) (*sim.Result, *snap.Snapshot, error) {
	s, err := config.BuildSimulator(cfg, log, nil)
	if err != nil {
		return nil, nil, err
	}
	box, _ := cfg.Box()
	parts, stars, err := ic.Generate(cfg.IC, cfg.Nsph, box, cfg.NDim, cfg.Seed)
	if err != nil {
		return nil, nil, err
	}
	s.SetParticles(parts)
	s.SetStars(stars)

	result, err := s.Run(context.Background())
	if err != nil {
		return nil, nil, err
	}
	final := &snap.Snapshot{
		Time:  s.Time(),
		NDim:  cfg.NDim,
		Parts: s.Particles(),
		Stars: s.Stars(),
	}
	return result, final, nil
}

// runDistributed spawns one worker goroutine per rank over an in-process
// hub; rank 0 generates the initial conditions and collects the outputs.
func runDistributed(cfg *config.Config, log *slog.Logger) (*sim.Result, *snap.Snapshot, error) {
	size := cfg.Partition.Workers
	hub := comm.NewHub(size)
	box, _ := cfg.Box()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		result   *sim.Result
		final    *snap.Snapshot
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for rank := 0; rank < size; rank++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			c := hub.Comm(rank)
			s, err := config.BuildSimulator(cfg, log.With("rank", rank), c)
			if err != nil {
				fail(err)
				return
			}

			var all []core.Particle
			if rank == 0 {
				var stars []core.Star
				all, stars, err = ic.Generate(cfg.IC, cfg.Nsph, box, cfg.NDim, cfg.Seed)
				if err != nil {
					fail(err)
					return
				}
				s.SetStars(stars)
			}
			tree, mine, err := domain.InitialDecompose(c, box, cfg.NDim, all)
			if err != nil {
				fail(err)
				return
			}
			s.Dom.Tree = tree
			s.SetParticles(mine)

			res, err := s.Run(context.Background())
			if err != nil {
				fail(err)
				return
			}

			// Gather the final particle sets on rank 0 for output.
			gathered := c.AllGather(append([]core.Particle(nil), s.Particles()...))
			if rank == 0 {
				var parts []core.Particle
				for _, g := range gathered {
					parts = append(parts, g.([]core.Particle)...)
				}
				mu.Lock()
				result = res
				final = &snap.Snapshot{Time: s.Time(), NDim: cfg.NDim, Parts: parts, Stars: s.Stars()}
				mu.Unlock()
			}
		}(rank)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, nil, firstErr
	}
	return result, final, nil
}

func generateIC(cmd *cobra.Command, args []string) error {
	cfg := config.Preset(args[0])
	if cfg == nil {
		return fmt.Errorf("unknown preset %q (have %v)", args[0], config.ListPresets())
	}
	box, err := cfg.Box()
	if err != nil {
		return err
	}
	parts, stars, err := ic.Generate(cfg.IC, cfg.Nsph, box, cfg.NDim, cfg.Seed)
	if err != nil {
		return err
	}
	s := &snap.Snapshot{NDim: cfg.NDim, Parts: parts, Stars: stars}
	if err := snap.Write(snapOut, snapFormat, s); err != nil {
		return err
	}
	fmt.Printf("wrote %d particles, %d stars to %s\n", len(parts), len(stars), snapOut)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	runs, err := store.List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no stored runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKERNEL\tEOS\tSTEPS\tPARTS\tSINKS")
	for _, r := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", r.ID, r.Kernel, r.Eos, r.Steps, r.FinalParts, r.FinalSinks)
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	store := storage.New(dataDir)
	series, err := store.Series(args[0], column)
	if err != nil {
		return err
	}
	fmt.Println(titleStyle.Render(fmt.Sprintf("%s: %s", args[0], column)))
	fmt.Println(asciigraph.Plot(series, asciigraph.Height(12), asciigraph.Width(72)))
	return nil
}

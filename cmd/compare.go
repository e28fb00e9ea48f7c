package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/cwbudde/lahc/internal/config"
	"github.com/cwbudde/lahc/internal/opt"
	"github.com/cwbudde/lahc/internal/problem"
	"github.com/spf13/cobra"
)

var (
	compareConfigPath string
	compareStepScale  float64
)

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare late acceptance with Mayfly on a continuous problem",
	Long: `Solves a continuous objective (paraboloid or rosenbrock) with both vector
optimizers, the late acceptance adapter and the Mayfly baseline, and prints
their results side by side.`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareConfigPath, "config", "", "YAML run configuration")
	compareCmd.Flags().Float64Var(&compareStepScale, "step-scale", 0.05, "LAHC Gaussian step as a fraction of the box width")
	addSearchFlags(compareCmd.Flags())
	compareCmd.Flags().String("problem", "rosenbrock", "Continuous problem: paraboloid, rosenbrock")
	compareCmd.Flags().Int("iters", 500, "Mayfly iterations")
	compareCmd.Flags().Int("pop", 30, "Mayfly population size")

	rootCmd.AddCommand(compareCmd)
}

// solveObjective runs the named vector optimizer on obj.
func solveObjective(name string, cfg config.RunConfig, obj problem.Objective) ([]float64, float64, time.Duration, error) {
	o, err := opt.New(name, opt.Settings{
		Seed:      cfg.Seed,
		LAHC:      cfg.LAHC(),
		StepScale: compareStepScale,
		MaxIters:  cfg.Mayfly.MaxIters,
		PopSize:   cfg.Mayfly.PopSize,
	})
	if err != nil {
		return nil, 0, 0, err
	}

	lower := make([]float64, obj.Dim)
	upper := make([]float64, obj.Dim)
	for i := range lower {
		lower[i], upper[i] = obj.Lower, obj.Upper
	}

	start := time.Now()
	best, cost := o.Run(obj.Func, lower, upper, obj.Dim)
	return best, cost, time.Since(start), nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := resolveRunConfig(compareConfigPath, cmd.Flags())
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("problem") && compareConfigPath == "" {
		cfg.Problem = "rosenbrock"
	}
	obj, err := problem.LookupObjective(cfg.Problem)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "OPTIMIZER\tBEST ENERGY\tBEST\tELAPSED")
	for _, name := range []string{"lahc", "mayfly"} {
		best, cost, elapsed, err := solveObjective(name, cfg, obj)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%.6g\t%.4f\t%s\n", name, cost, best, elapsed.Round(time.Millisecond))
	}
	fmt.Fprintf(w, "solution\t%.6g\t%.4f\t\n", obj.Func(obj.Solution), obj.Solution)
	return w.Flush()
}

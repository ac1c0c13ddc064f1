package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/symbench/fdmopt/internal/config"
	"github.com/symbench/fdmopt/internal/executor"
	"github.com/symbench/fdmopt/internal/models"
	"github.com/symbench/fdmopt/internal/sweep"
)

var (
	configPath    string  // experiments file
	experiment    string  // experiment to run
	outputPath    string  // consolidated CSV
	listOnly      bool    // list experiments and exit
	minSpeed      int     // first requested lateral speed of every search
	verticalSpeed float64 // requested vertical speed
	numProcesses  int     // concurrent design points
	verbose       bool    // debug logging
	maxTasks      int     // cap on submitted design points
	failFast      bool    // abort the sweep on the first failed point
)

var rootCmd = &cobra.Command{
	Use:           "fdmopt",
	Short:         "Sweep UAV design parameters through the flight dynamics model",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		} else {
			logrus.SetLevel(logrus.InfoLevel)
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if listOnly {
			for _, name := range config.ExperimentNames(cfg) {
				fmt.Println(name)
			}
			return nil
		}
		exp, err := lookupExperiment(cfg, experiment)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("fail-fast") {
			cfg.Search.FailFast = failFast
		}
		if cmd.Flags().Changed("max-tasks") {
			cfg.Search.MaxTasks = maxTasks
		}
		return optimize(cmd.Context(), cfg, exp)
	},
}

// lookupExperiment finds the named experiment. An empty name selects the first one configured.
func lookupExperiment(cfg models.Config, name string) (models.ExperimentConfig, error) {
	if len(cfg.Experiments) == 0 {
		return models.ExperimentConfig{}, fmt.Errorf("no experiments configured in %s", configPath)
	}
	if name == "" {
		return cfg.Experiments[0], nil
	}
	exp, ok := config.Experiment(cfg, name)
	if !ok {
		return models.ExperimentConfig{}, fmt.Errorf("unknown experiment %q, choose one of %v", name, config.ExperimentNames(cfg))
	}
	return exp, nil
}

func optimize(ctx context.Context, cfg models.Config, exp models.ExperimentConfig) error {
	spec := sweep.DefaultSpec()
	if len(cfg.Sweep) > 0 {
		var err error
		if spec, err = sweep.FromConfig(cfg.Sweep); err != nil {
			return err
		}
	}

	sim, err := executor.NewSimulator(cfg.Simulator)
	if err != nil {
		return err
	}
	defer func() {
		if err := executor.CloseSimulator(context.Background(), sim); err != nil {
			logrus.WithError(err).Warn("closing simulator")
		}
	}()
	if err := executor.PrepareSimulator(ctx, sim); err != nil {
		return err
	}

	log := logrus.WithField("experiment", exp.Name)
	e, err := executor.NewExperimentFromConfig(cfg, exp, sim, log)
	if err != nil {
		return err
	}
	defer e.Session().Close()

	output := outputPath
	if output == "" {
		output = exp.Name + "_opt.csv"
	}
	o, err := executor.NewOrchestrator(executor.OrchestratorOptions{
		Name:       exp.Name,
		Experiment: e,
		Spec:       spec,
		Search: executor.SearchOptions{
			MinLateralSpeed:   float64(minSpeed),
			VerticalSpeed:     verticalSpeed,
			InitialUpperBound: cfg.Search.InitialUpperBound,
			MaxIterations:     cfg.Search.MaxIterations,
		},
		Workers:    numProcesses,
		MaxTasks:   cfg.Search.MaxTasks,
		FailFast:   cfg.Search.FailFast,
		RecordRuns: cfg.Search.RecordRuns,
		OutputPath: output,
		Log:        log,
	})
	if err != nil {
		return err
	}

	result, err := o.Optimize(ctx)
	if result != nil {
		fmt.Printf("\nExperiment: %s\n", result.Experiment)
		fmt.Printf("Session: %s\n", result.SessionDir)
		fmt.Printf("Design points: %d\n", result.TotalPoints)
		fmt.Printf("Completed: %d\n", result.CompletedPoints)
		fmt.Printf("Failed: %d\n", result.FailedPoints)
		fmt.Printf("Evaluations: %d\n", result.TotalEvaluations)
		if result.Best != nil {
			fmt.Printf("Best score: %.4f at %v (%s=%g)\n", result.Best.Score, result.Best.Parameters,
				models.LateralSpeedKey, result.Best.Requirement.LateralSpeed)
		}
		fmt.Printf("Duration: %.2fs\n", result.TotalDurationSec)
		fmt.Printf("Output: %s\n", output)
	}
	if err != nil {
		return err
	}
	if result.Cancelled {
		return fmt.Errorf("sweep cancelled with %d points skipped", result.SkippedPoints)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "experiments.yaml", "Experiments file")
	rootCmd.PersistentFlags().StringVarP(&experiment, "experiment", "e", "", "Experiment to run (default the first configured)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "Consolidated CSV (default <experiment>_opt.csv)")
	rootCmd.Flags().BoolVarP(&listOnly, "list", "l", false, "List the available experiments")
	rootCmd.Flags().IntVarP(&minSpeed, "min-speed", "m", executor.DefaultMinLateralSpeed, "Requested lateral speed the search starts at")
	rootCmd.Flags().Float64Var(&verticalSpeed, "vertical-speed", executor.DefaultVerticalSpeed, "Requested vertical speed")
	rootCmd.Flags().IntVarP(&numProcesses, "num-processes", "n", 1, "Design points evaluated concurrently")
	rootCmd.Flags().IntVar(&maxTasks, "max-tasks", 0, "Evaluate at most this many design points (0 for all)")
	rootCmd.Flags().BoolVar(&failFast, "fail-fast", false, "Stop the sweep at the first failed design point")

	rootCmd.AddCommand(runCmd)
}

func main() {
	// Setup context with manual signal handling
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	defer func() {
		signal.Stop(sigChan)
		cancel()
	}()

	go func() {
		sig := <-sigChan
		logrus.WithField("signal", sig).Info("interrupt received, shutting down gracefully...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logrus.WithError(err).Error("fdmopt failed")
		cancel()
		os.Exit(1)
	}
}

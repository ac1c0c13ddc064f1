package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/symbench/fdmopt/internal/config"
	"github.com/symbench/fdmopt/internal/executor"
	"github.com/symbench/fdmopt/internal/models"
)

var (
	paramsJSON       string // design parameters as a JSON object
	requirementsJSON string // requested speeds as a JSON object
	writeRunLog      bool   // append the run to the session output.csv
)

// Requirement used when the caller leaves a speed out.
var defaultRunRequirement = models.Requirement{LateralSpeed: 10, VerticalSpeed: -2}

// runCmd evaluates a single parameter/requirement pair
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Evaluate one parameter set and requirement on an experiment's design",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		exp, err := lookupExperiment(cfg, experiment)
		if err != nil {
			return err
		}
		params, err := decodeObject(paramsJSON, "parameters")
		if err != nil {
			return err
		}
		rawReq, err := decodeObject(requirementsJSON, "requirements")
		if err != nil {
			return err
		}
		req, err := models.RequirementFrom(rawReq, defaultRunRequirement)
		if err != nil {
			return err
		}
		return runOnce(cmd.Context(), cfg, exp, params, req)
	},
}

func decodeObject(s, name string) (models.Parameters, error) {
	if s == "" {
		return models.Parameters{}, nil
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}
	return models.ParametersFrom(v, name)
}

func runOnce(ctx context.Context, cfg models.Config, exp models.ExperimentConfig, params models.Parameters, req models.Requirement) error {
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

	e, err := executor.NewExperimentFromConfig(cfg, exp, sim, logrus.WithField("experiment", exp.Name))
	if err != nil {
		return err
	}
	defer e.Session().Close()

	rec, runErr := e.RunFor(ctx, params, req)
	if rec != nil && writeRunLog {
		if err := e.Session().FinalizeRun(rec); err != nil {
			logrus.WithError(err).Warn("recording run")
		}
	}
	if runErr != nil {
		return runErr
	}

	out, err := json.MarshalIndent(struct {
		GUID        string             `json:"guid"`
		Parameters  models.Parameters  `json:"parameters"`
		Requirement models.Requirement `json:"requirement"`
		Score       float64            `json:"total_path_score"`
		MaxLateral  float64            `json:"max_lateral_speed"`
		SessionDir  string             `json:"session_dir"`
	}{rec.RunID, rec.Parameters, rec.Requirement, rec.Score, rec.MaxLateralSpeed(), e.Session().Dir}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func init() {
	runCmd.Flags().StringVar(&paramsJSON, "params", "", `Design parameters as a JSON object, e.g. {"arm_length": 300}`)
	runCmd.Flags().StringVar(&requirementsJSON, "requirements", "", `Requested speeds as a JSON object, e.g. {"requested_lateral_speed": 30}`)
	runCmd.Flags().BoolVar(&writeRunLog, "write-csv", true, "Append the run to the session output.csv")
}

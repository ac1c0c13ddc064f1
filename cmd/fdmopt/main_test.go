package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/models"
)

func testConfig() models.Config {
	return models.Config{
		Experiments: []models.ExperimentConfig{
			{Name: "QuadCopter"},
			{Name: "Other"},
		},
	}
}

func TestLookupExperiment(t *testing.T) {
	tests := []struct {
		name    string
		cfg     models.Config
		exp     string
		want    string
		wantErr string
	}{
		{name: "defaults to first configured", cfg: testConfig(), want: "QuadCopter"},
		{name: "by name", cfg: testConfig(), exp: "Other", want: "Other"},
		{name: "unknown", cfg: testConfig(), exp: "HexRing", wantErr: `unknown experiment "HexRing", choose one of [Other QuadCopter]`},
		{name: "none configured", cfg: models.Config{}, wantErr: "no experiments configured"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := lookupExperiment(tt.cfg, tt.exp)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Name)
		})
	}
}

func TestMinSpeedIsInteger(t *testing.T) {
	f := rootCmd.Flags().Lookup("min-speed")
	require.NotNil(t, f)
	assert.Equal(t, "int", f.Value.Type())
	assert.Equal(t, "35", f.DefValue)
	assert.Equal(t, "m", f.Shorthand)

	f = rootCmd.PersistentFlags().Lookup("experiment")
	require.NotNil(t, f)
	assert.Empty(t, f.DefValue)
}

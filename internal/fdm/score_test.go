package fdm_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/symbench/fdmopt/internal/fdm"
	"github.com/symbench/fdmopt/internal/models"
)

func scores(p1, p3, p4, p5 float64) map[models.Path]models.PathMetric {
	return map[models.Path]models.PathMetric{
		models.PathStraightLine: {Path: models.PathStraightLine, PathScore: p1},
		models.PathCircle:       {Path: models.PathCircle, PathScore: p3},
		models.PathRiseAndHover: {Path: models.PathRiseAndHover, PathScore: p4},
		models.PathRacingOval:   {Path: models.PathRacingOval, PathScore: p5},
	}
}

func TestTotalScore(t *testing.T) {
	tests := []struct {
		name string
		in   map[models.Path]models.PathMetric
		want float64
	}{
		{"sum", scores(10, 20, 5, 1), 36},
		{"hover zero", scores(10, 20, 0, 30), 0},
		{"hover within tolerance", scores(10, 20, 1e-12, 30), 0},
		{"hover negative within tolerance", scores(10, 20, -1e-12, 30), 0},
		{"hover just outside tolerance", scores(0, 0, 1e-6, 0), 1e-6},
		{"others zero", scores(0, 0, 7, 0), 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := fdm.TotalScore(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotalScoreMissingPass(t *testing.T) {
	in := scores(1, 2, 3, 4)
	delete(in, models.PathRacingOval)

	_, err := fdm.TotalScore(in)
	var im *models.IncompleteMetricsError
	require.True(t, errors.As(err, &im))
	assert.Equal(t, "Path_score_Path5", im.Label)
}

package fdm

import (
	"fmt"
	"math"

	"github.com/symbench/fdmopt/internal/models"
)

// ScoreTolerance is how close to zero the rise-and-hover score must be to count as a failure.
const ScoreTolerance = 1e-9

// TotalScore sums the path scores of all four passes. A design that cannot rise and hover
// scores exactly zero no matter how well it flies the other paths.
func TotalScore(metrics map[models.Path]models.PathMetric) (float64, error) {
	var total float64
	for _, p := range models.AllPaths {
		m, ok := metrics[p]
		if !ok {
			return 0, &models.IncompleteMetricsError{Kind: "score", Label: fmt.Sprintf("Path_score_Path%d", p)}
		}
		total += m.PathScore
	}
	if math.Abs(metrics[models.PathRiseAndHover].PathScore) <= ScoreTolerance {
		return 0, nil
	}
	return total, nil
}


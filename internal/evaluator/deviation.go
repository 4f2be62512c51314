package evaluator

import (
	"math"

	"wisefido-vitaldrift/internal/models"
)

// Evaluate 比较短窗口截尾均值与长窗口均值。
// 绝对偏差或相对偏差任一超过阈值即判定为异常；长窗口均值为 0 时相对偏差记为 0。
func Evaluate(short, long *float64, th models.Thresholds) models.DeviationVerdict {
	if short == nil || long == nil {
		return models.DeviationVerdict{Verdict: models.VerdictInsufficientData}
	}

	absDiff := math.Abs(*short - *long)
	relDiff := 0.0
	if *long != 0 {
		relDiff = absDiff / *long
	}

	verdict := models.VerdictNormal
	if absDiff > th.Abs || relDiff > th.Rel {
		verdict = models.VerdictAnomalous
	}

	return models.DeviationVerdict{
		Verdict: verdict,
		AbsDiff: absDiff,
		RelDiff: relDiff,
	}
}

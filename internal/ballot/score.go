package ballot

import (
	"math/rand"
	"time"

	"hostel-allocation-backend/internal/model"
)

// Weights is the frozen scoring configuration for one run. The three weight
// fields must sum to 1.0; the four category scores map academic levels to
// their base priority.
type Weights struct {
	Payment  float64
	Category float64
	Level    float64

	FreshStudentScore float64
	FinalYearScore    float64
	Level300Score     float64
	Level200Score     float64
}

// DefaultWeights is used when a ballot is run for a session without an
// admin-reviewed configuration.
var DefaultWeights = Weights{
	Payment:  0.50,
	Category: 0.30,
	Level:    0.20,

	FreshStudentScore: 100,
	FinalYearScore:    90,
	Level300Score:     70,
	Level200Score:     60,
}

// WeightsFromConfig copies a stored configuration into a scoring snapshot.
func WeightsFromConfig(cfg *model.BallotConfig) Weights {
	return Weights{
		Payment:           cfg.PaymentWeight,
		Category:          cfg.CategoryWeight,
		Level:             cfg.LevelWeight,
		FreshStudentScore: cfg.FreshStudentScore,
		FinalYearScore:    cfg.FinalYearScore,
		Level300Score:     cfg.Level300Score,
		Level200Score:     cfg.Level200Score,
	}
}

// unverifiedPaymentScore is the neutral midpoint used when an application has
// no verification timestamp. Eligible ballot candidates are always verified,
// but the scorer stays defined for arbitrary input.
const unverifiedPaymentScore = 50

// Seniority bonus per level, tuned independently of the category scores.
const (
	levelScoreFresh     = 100
	levelScoreFinalYear = 95
	levelScore300       = 85
	levelScore200       = 75
)

// PaymentScore rewards earlier payment verification: 100 minus whole-day-
// fractional days since verification, floored at 0.
func PaymentScore(verifiedAt *time.Time, now time.Time) float64 {
	if verifiedAt == nil {
		return unverifiedPaymentScore
	}
	days := now.Sub(*verifiedAt).Hours() / 24
	score := 100 - days
	if score < 0 {
		return 0
	}
	return score
}

// CategoryScore maps an academic level to its configured base score. Fresh
// students and final-year students deliberately land in the same magnitude
// band.
func CategoryScore(level int, w Weights) float64 {
	switch {
	case level == 100:
		return w.FreshStudentScore
	case level >= 400:
		return w.FinalYearScore
	case level == 300:
		return w.Level300Score
	default:
		return w.Level200Score
	}
}

// LevelScore is the fixed seniority bonus, independent of the configurable
// category scores.
func LevelScore(level int) float64 {
	switch {
	case level == 100:
		return levelScoreFresh
	case level >= 400:
		return levelScoreFinalYear
	case level == 300:
		return levelScore300
	default:
		return levelScore200
	}
}

// PriorityScore computes the weighted final score for one candidate. Pure
// and deterministic given its inputs.
func PriorityScore(level int, verifiedAt *time.Time, w Weights, now time.Time) float64 {
	return PaymentScore(verifiedAt, now)*w.Payment +
		CategoryScore(level, w)*w.Category +
		LevelScore(level)*w.Level
}

// RandomScore is used by random-mode bulk assignment and for students with
// no verified application data; ordering under it is intentionally
// non-deterministic.
func RandomScore(rng *rand.Rand) float64 {
	return rng.Float64() * 100
}

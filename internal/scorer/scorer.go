// Package scorer rates how contactable a stored lead is from the contact
// fields it carries.
package scorer

import "github.com/shivortex/lead-scraper/internal/model"

// Component names, in scoring order.
const (
	Email       = "email"
	Phone       = "phone"
	Website     = "website"
	Address     = "address"
	Coordinates = "coordinates"
)

// Components lists every scored component.
var Components = []string{Email, Phone, Website, Address, Coordinates}

// Weights are the per-component contributions. Scores are normalized by
// their sum, so only ratios matter.
type Weights struct {
	Email       float64
	Phone       float64
	Website     float64
	Address     float64
	Coordinates float64
}

// DefaultWeights returns the standard weighting. Weights sum to 100.
func DefaultWeights() Weights {
	return Weights{
		Email:       30,
		Phone:       25,
		Website:     20,
		Address:     15,
		Coordinates: 10,
	}
}

// Of returns the weight of a named component.
func (w Weights) Of(component string) float64 {
	switch component {
	case Email:
		return w.Email
	case Phone:
		return w.Phone
	case Website:
		return w.Website
	case Address:
		return w.Address
	case Coordinates:
		return w.Coordinates
	}
	return 0
}

// Sum returns the total of all component weights.
func (w Weights) Sum() float64 {
	var total float64
	for _, c := range Components {
		total += w.Of(c)
	}
	return total
}

// Quality tiers and the minimum score each requires.
const (
	TierLow     = "low"
	TierMedium  = "medium"
	TierHigh    = "high"
	TierPremium = "premium"
)

var tierFloors = []struct {
	tier  string
	floor float64
}{
	{TierPremium, 75},
	{TierHigh, 60},
	{TierMedium, 40},
	{TierLow, 0},
}

// TierFor maps a 0-100 score to its tier.
func TierFor(score float64) string {
	for _, t := range tierFloors {
		if score >= t.floor {
			return t.tier
		}
	}
	return TierLow
}

// Result is the scoring outcome for one lead.
type Result struct {
	Score float64 `json:"score"`
	Tier  string  `json:"tier"`
}

// Score rates l on a 0-100 scale. Each component scores 1 when present and
// 0 otherwise; a coordinate pair counts only when both halves are set.
func Score(l model.Lead, w Weights) Result {
	components := map[string]float64{
		Email:       present(!model.Blank(l.Email)),
		Phone:       present(!model.Blank(l.Phone)),
		Website:     present(!model.Blank(l.Website)),
		Address:     present(!model.Blank(l.Address)),
		Coordinates: present(l.Latitude != nil && l.Longitude != nil),
	}

	var total float64
	for c, v := range components {
		total += v * w.Of(c)
	}
	if sum := w.Sum(); sum > 0 {
		total = total / sum * 100
	}

	return Result{Score: total, Tier: TierFor(total)}
}

// Quality is Score with DefaultWeights.
func Quality(l model.Lead) Result {
	return Score(l, DefaultWeights())
}

func present(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

// Package analytics derives campaign performance reports from the running
// counters the send loop and tracking events maintain. Everything here is
// a pure computation over a campaign snapshot.
package analytics

import (
	"math"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Rates are the derived performance ratios for a campaign. Open and click
// rates are relative to delivered mail, delivery and bounce to sent mail.
type Rates struct {
	DeliveryRate float64 `json:"delivery_rate"`
	BounceRate   float64 `json:"bounce_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	ReplyRate    float64 `json:"reply_rate"`
}

// ComputeRates derives performance ratios from campaign stats.
func ComputeRates(s model.CampaignStats) Rates {
	return Rates{
		DeliveryRate: ratio(s.EmailsDelivered, s.EmailsSent),
		BounceRate:   ratio(s.EmailsBounced, s.EmailsSent),
		OpenRate:     ratio(s.UniqueOpens, s.EmailsDelivered),
		ClickRate:    ratio(s.UniqueClicks, s.EmailsDelivered),
		ReplyRate:    ratio(s.EmailsReplied, s.EmailsDelivered),
	}
}

// FunnelStage is one step of the campaign conversion funnel. Percentage
// is relative to the prospect count at the top of the funnel.
type FunnelStage struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Funnel builds the prospect-to-reply conversion funnel for a campaign.
func Funnel(c *model.Campaign) []FunnelStage {
	total := len(c.ProspectIDs)
	stage := func(name string, count int) FunnelStage {
		pct := 0.0
		if total > 0 {
			pct = round1(float64(count) / float64(total) * 100)
		}
		return FunnelStage{Name: name, Count: count, Percentage: pct}
	}

	return []FunnelStage{
		{Name: "Prospects", Count: total, Percentage: 100},
		stage("Emails Sent", c.Stats.EmailsSent),
		stage("Delivered", c.Stats.EmailsDelivered),
		stage("Opened", c.Stats.UniqueOpens),
		stage("Clicked", c.Stats.UniqueClicks),
		stage("Replied", c.Stats.EmailsReplied),
	}
}

// Benchmark ratings, best to worst.
const (
	RatingExcellent    = "excellent"
	RatingGood         = "good"
	RatingAverage      = "average"
	RatingBelowAverage = "below_average"
)

// benchmark holds cold-outreach industry reference points for one metric.
// lowerIsBetter flips the comparison for bounce rate.
type benchmark struct {
	metric        string
	industryAvg   float64
	good          float64
	excellent     float64
	lowerIsBetter bool
}

var benchmarks = []benchmark{
	{metric: "open_rate", industryAvg: 0.25, good: 0.35, excellent: 0.45},
	{metric: "reply_rate", industryAvg: 0.02, good: 0.05, excellent: 0.10},
	{metric: "bounce_rate", industryAvg: 0.05, good: 0.02, excellent: 0.01, lowerIsBetter: true},
}

// Comparison rates one campaign metric against industry reference points.
type Comparison struct {
	Metric          string  `json:"metric"`
	Value           float64 `json:"value"`
	Rating          string  `json:"rating"`
	IndustryAverage float64 `json:"industry_average"`
}

// CompareToBenchmarks rates the campaign's open, reply, and bounce rates
// against typical cold-outreach numbers.
func CompareToBenchmarks(s model.CampaignStats) []Comparison {
	rates := ComputeRates(s)
	values := map[string]float64{
		"open_rate":   rates.OpenRate,
		"reply_rate":  rates.ReplyRate,
		"bounce_rate": rates.BounceRate,
	}

	out := make([]Comparison, 0, len(benchmarks))
	for _, b := range benchmarks {
		v := values[b.metric]
		out = append(out, Comparison{
			Metric:          b.metric,
			Value:           round2(v * 100),
			Rating:          b.rate(v),
			IndustryAverage: round2(b.industryAvg * 100),
		})
	}
	return out
}

func (b benchmark) rate(v float64) string {
	if b.lowerIsBetter {
		switch {
		case v <= b.excellent:
			return RatingExcellent
		case v <= b.good:
			return RatingGood
		case v <= b.industryAvg:
			return RatingAverage
		default:
			return RatingBelowAverage
		}
	}
	switch {
	case v >= b.excellent:
		return RatingExcellent
	case v >= b.good:
		return RatingGood
	case v >= b.industryAvg:
		return RatingAverage
	default:
		return RatingBelowAverage
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

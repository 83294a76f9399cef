package icp

import (
	"regexp"
	"strings"

	"github.com/sells-group/outreach-engine/internal/model"
)

// Factor weights. The maximum attainable total normalizes the score.
const (
	industryPoints       = 25
	locationPoints       = 20
	locationPartial      = 5
	decisionMakerPoints  = 25
	decisionMakerPartial = 10
	emailPoints          = 15
	maxPoints            = industryPoints + locationPoints + decisionMakerPoints + emailPoints
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Result is the scoring outcome for one prospect.
type Result struct {
	Score  float64
	Issues []string
	Valid  bool
}

// Scorer evaluates prospects against an ICP's targeting criteria.
type Scorer struct {
	icp       model.ICP
	threshold float64
}

// NewScorer creates a Scorer. threshold is the minimum normalized score
// for a prospect to count as valid, default 0.5.
func NewScorer(icp model.ICP, threshold float64) *Scorer {
	if threshold <= 0 {
		threshold = 0.5
	}
	return &Scorer{icp: icp, threshold: threshold}
}

// Score computes the weighted fit score in [0,1] across industry,
// location, decision-maker, and email signals. A prospect is valid when
// it clears the threshold with at most 2 recorded issues.
func (s *Scorer) Score(p model.Prospect) Result {
	var points int
	var issues []string

	ind, ok := s.industryScore(p)
	points += ind
	if !ok {
		issues = append(issues, "no industry match")
	}

	loc, ok := s.locationScore(p)
	points += loc
	if !ok {
		issues = append(issues, "no location match")
	}

	dm, dmIssue := s.decisionMakerScore(p)
	points += dm
	if dmIssue != "" {
		issues = append(issues, dmIssue)
	}

	if hasValidEmail(p.Contacts) {
		points += emailPoints
	} else {
		issues = append(issues, "no valid email")
	}

	if p.Domain == "" {
		issues = append(issues, "missing domain")
	}

	score := float64(points) / float64(maxPoints)
	return Result{
		Score:  score,
		Issues: issues,
		Valid:  score >= s.threshold && len(issues) <= 2,
	}
}

// industryScore matches prospect industry against target industries by
// substring in either direction. No configured targets scores full.
func (s *Scorer) industryScore(p model.Prospect) (int, bool) {
	targets := s.icp.Industries.PrimaryIndustries
	if len(targets) == 0 {
		return industryPoints, true
	}

	got := strings.ToLower(p.Industry)
	if got == "" {
		return 0, false
	}
	for _, t := range targets {
		want := strings.ToLower(t.Name)
		if want == "" {
			continue
		}
		if strings.Contains(got, want) || strings.Contains(want, got) {
			return industryPoints, true
		}
	}
	return 0, false
}

// locationScore requires an exact city+state+country match against some
// target market. Configured targets with no match earn a partial score.
func (s *Scorer) locationScore(p model.Prospect) (int, bool) {
	markets := s.icp.Geographic.PrimaryMarkets
	if len(markets) == 0 {
		return locationPoints, true
	}

	for _, m := range markets {
		if equalFold(p.Location.City, m.City) &&
			equalFold(p.Location.State, m.State) &&
			equalFold(p.Location.Country, m.Country) {
			return locationPoints, true
		}
	}
	return locationPartial, false
}

func (s *Scorer) decisionMakerScore(p model.Prospect) (int, string) {
	titles := s.icp.DecisionMakers.PrimaryTitles
	if len(titles) == 0 {
		return decisionMakerPoints, ""
	}
	if len(p.Contacts) == 0 {
		return 0, "no contacts"
	}

	for _, c := range p.Contacts {
		got := strings.ToLower(c.Title)
		if got == "" {
			continue
		}
		for _, t := range titles {
			want := strings.ToLower(t)
			if want != "" && (strings.Contains(got, want) || strings.Contains(want, got)) {
				return decisionMakerPoints, ""
			}
		}
	}
	return decisionMakerPartial, "no decision-maker match"
}

func hasValidEmail(contacts []model.Contact) bool {
	for _, c := range contacts {
		if emailPattern.MatchString(c.Email) {
			return true
		}
	}
	return false
}

// equalFold treats an empty target component as a wildcard so markets
// can target a whole state or country.
func equalFold(got, want string) bool {
	if want == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

package campaign

import (
	"fmt"
	"regexp"
	"strings"
)

// Copy-quality heuristics applied to an email before it goes out. The
// score starts at 100 and penalties accumulate; 70 is the usual
// acceptance bar for a draft.

const (
	qualityBaseScore     = 100
	spamTriggerPenalty   = 10
	spamPenaltyCap       = 50
	genericPhrasePenalty = 5
	genericPenaltyCap    = 30
	targetBodyWords      = 150
)

// spamTriggers are substrings that hurt deliverability when they appear
// anywhere in the subject or body.
var spamTriggers = []string{
	"act now", "limited time", "urgent", "click here", "buy now",
	"free", "guarantee", "no obligation", "winner", "congratulations",
	"100%", "amazing deal", "best price", "bonus", "cash",
	"cheap", "credit", "discount", "double your", "earn money",
	"extra income", "fast cash", "for free", "get paid", "incredible",
	"info you requested", "limited offer", "make money", "million",
	"no cost", "offer", "opportunity", "order now", "please read",
	"promise", "pure profit", "risk-free", "satisfaction", "save big",
	"special promotion", "this isn't spam", "unbelievable", "unlimited",
	"while supplies last", "why pay more",
}

// genericPhrases are cold-email filler that reads as mass-produced.
var genericPhrases = []string{
	"hope this email finds you well",
	"i hope you're doing well",
	"i wanted to reach out",
	"just following up",
	"touching base",
	"circling back",
	"per my last email",
	"as discussed",
	"i am writing to",
	"my name is",
	"i'm reaching out because",
	"we are a leading",
	"industry-leading",
	"best-in-class",
	"synergy",
	"leverage",
	"paradigm",
	"disruptive",
}

// ctaPatterns match a lowercased body that carries a clear ask.
var ctaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\?\s*$`),
	regexp.MustCompile(`let me know|let's|would you|are you|can we|shall we`),
	regexp.MustCompile(`reply|respond|get back|reach out`),
	regexp.MustCompile(`schedule|book|set up|arrange`),
	regexp.MustCompile(`interested|curious|open to`),
}

var (
	bodyProperNounRE    = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)
	subjectProperNounRE = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
)

// QualityReport grades one email's copy.
type QualityReport struct {
	Score           int      `json:"score"`
	Grade           string   `json:"grade"`
	Feedback        []string `json:"feedback"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// CheckQuality scores an email's subject and body against spam-trigger,
// generic-phrase, length, personalization, call-to-action and subject-
// line heuristics. It accepts raw templates as well as rendered copy;
// unexpanded placeholders count toward personalization.
func CheckQuality(subject, body string) *QualityReport {
	fullText := strings.ToLower(subject + "\n" + body)
	score := qualityBaseScore
	report := &QualityReport{}

	var foundTriggers []string
	for _, trigger := range spamTriggers {
		if strings.Contains(fullText, trigger) {
			foundTriggers = append(foundTriggers, trigger)
		}
	}
	spamPenalty := min(len(foundTriggers)*spamTriggerPenalty, spamPenaltyCap)
	score -= spamPenalty
	if len(foundTriggers) > 0 {
		report.Warnings = append(report.Warnings,
			"spam triggers found: "+strings.Join(foundTriggers, ", "))
	}

	var foundPhrases []string
	for _, phrase := range genericPhrases {
		if strings.Contains(fullText, phrase) {
			foundPhrases = append(foundPhrases, phrase)
		}
	}
	genericPenalty := min(len(foundPhrases)*genericPhrasePenalty, genericPenaltyCap)
	score -= genericPenalty
	if len(foundPhrases) > 0 {
		report.Warnings = append(report.Warnings,
			"generic phrases found: "+strings.Join(foundPhrases, ", "))
	}

	words := len(strings.Fields(body))
	tooLong := false
	switch {
	case words <= targetBodyWords:
		report.Feedback = append(report.Feedback, fmt.Sprintf("length: %d words (good)", words))
	case words <= targetBodyWords*3/2:
		score -= 10
		tooLong = true
		report.Feedback = append(report.Feedback, fmt.Sprintf("length: %d words (slightly long)", words))
	default:
		score -= 25
		tooLong = true
		report.Feedback = append(report.Feedback,
			fmt.Sprintf("length: %d words (too long, aim for %d)", words, targetBodyWords))
	}

	personalized := false
	if strings.Contains(body, "{") {
		personalized = true
		score += 5
		report.Feedback = append(report.Feedback, "has dynamic placeholders")
	}
	if bodyProperNounRE.MatchString(body) {
		personalized = true
		score += 5
		report.Feedback = append(report.Feedback, "contains proper nouns")
	}
	if strings.Contains(subject, "{{") || subjectProperNounRE.MatchString(subject) {
		personalized = true
		score += 10
		report.Feedback = append(report.Feedback, "subject line personalized")
	}
	if !personalized {
		score -= 15
		report.Feedback = append(report.Feedback, "no personalization detected")
	}

	hasCTA := false
	bodyLower := strings.ToLower(strings.TrimSpace(body))
	for _, pattern := range ctaPatterns {
		if pattern.MatchString(bodyLower) {
			hasCTA = true
			break
		}
	}
	if hasCTA {
		report.Feedback = append(report.Feedback, "has clear call-to-action")
	} else {
		score -= 15
		report.Feedback = append(report.Feedback, "missing clear call-to-action")
	}

	score += checkSubjectLine(subject, report)

	report.Score = max(0, min(100, score))
	report.Grade = qualityGrade(report.Score)
	report.Recommendations = qualityRecommendations(report.Score, recommendationInputs{
		spam:           len(foundTriggers) > 0,
		generic:        len(foundPhrases) > 0,
		tooLong:        tooLong,
		unpersonalized: !personalized,
		missingCTA:     !hasCTA,
	})
	return report
}

// checkSubjectLine returns the subject's score adjustment and appends
// its findings to the report.
func checkSubjectLine(subject string, report *QualityReport) int {
	adjustment := 0
	issues := 0

	note := func(msg string, penalty int) {
		report.Feedback = append(report.Feedback, msg)
		adjustment -= penalty
		issues++
	}

	switch words := len(strings.Fields(subject)); {
	case words < 3:
		note("subject too short", 10)
	case words > 10:
		note("subject too long", 10)
	}
	if subject != "" && subject == strings.ToUpper(subject) && subject != strings.ToLower(subject) {
		note("subject is all caps", 15)
	}
	if strings.Count(subject, "!") > 1 {
		note("too many exclamation marks", 10)
	}
	lower := strings.ToLower(subject)
	if strings.HasPrefix(lower, "re:") || strings.HasPrefix(lower, "fwd:") || strings.HasPrefix(lower, "fw:") {
		note("fake reply/forward prefix", 20)
	}

	if issues == 0 {
		report.Feedback = append(report.Feedback, "subject line looks good")
		return 5
	}
	return adjustment
}

func qualityGrade(score int) string {
	switch {
	case score >= 90:
		return "A"
	case score >= 80:
		return "B"
	case score >= 70:
		return "C"
	case score >= 60:
		return "D"
	default:
		return "F"
	}
}

type recommendationInputs struct {
	spam           bool
	generic        bool
	tooLong        bool
	unpersonalized bool
	missingCTA     bool
}

func qualityRecommendations(score int, in recommendationInputs) []string {
	var recs []string
	if score < 80 {
		if in.spam {
			recs = append(recs, "remove spam trigger words to improve deliverability")
		}
		if in.generic {
			recs = append(recs, "replace generic phrases with specific, personalized content")
		}
		if in.tooLong {
			recs = append(recs, fmt.Sprintf("shorten the email, aim for 100-%d words", targetBodyWords))
		}
		if in.unpersonalized {
			recs = append(recs, "add specific details about the prospect's company")
		}
		if in.missingCTA {
			recs = append(recs, "add a clear call-to-action")
		}
	}
	if len(recs) == 0 {
		recs = append(recs, "email looks good, consider A/B testing subject lines")
	}
	return recs
}

package tracking

import "strings"

// Reply sentiments.
const (
	SentimentPositive    = "positive"
	SentimentNegative    = "negative"
	SentimentUnsubscribe = "unsubscribe"
	SentimentOutOfOffice = "out_of_office"
	SentimentNeutral     = "neutral"
)

// Ordered by precedence: an unsubscribe request wins even when the
// reply is otherwise polite.
var sentimentRules = []struct {
	sentiment string
	keywords  []string
}{
	{SentimentUnsubscribe, []string{"unsubscribe", "remove me", "take me off", "stop emailing", "do not contact"}},
	{SentimentOutOfOffice, []string{"out of office", "out of the office", "on vacation", "parental leave", "auto-reply", "automatic reply"}},
	{SentimentNegative, []string{"not interested", "no thanks", "no thank you", "not a fit", "already have", "stop reaching"}},
	{SentimentPositive, []string{"interested", "sounds good", "let's talk", "lets talk", "schedule a call", "book a time", "tell me more", "send over", "pricing"}},
}

// ClassifyReply buckets a reply body by keyword. Anything unmatched is
// neutral and left for a human to read.
func ClassifyReply(body string) string {
	lower := strings.ToLower(body)
	for _, rule := range sentimentRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.sentiment
			}
		}
	}
	return SentimentNeutral
}

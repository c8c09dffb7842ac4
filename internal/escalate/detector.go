// Package escalate classifies model responses as satisfactory or not,
// renders escalation notes, and dispatches best-effort notifications.
package escalate

import "regexp"

// triggerPhrases mark a model response as unhelpful enough to route the
// conversation to a human agent.
var triggerPhrases = []string{
	`i'?m unable to answer`,
	`i don'?t know`,
	`please contact support`,
	`escalate`,
	`sorry, i cannot assist with that`,
	`not sure`,
	`could you please clarify`,
	`unable to help`,
	`can'?t help`,
	`do not have that information`,
	`my expertise is limited`,
	`please clarify or rephrase`,
}

var triggerPatterns = compileTriggers()

func compileTriggers() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(triggerPhrases))
	for i, p := range triggerPhrases {
		patterns[i] = regexp.MustCompile(`(?i)` + p)
	}
	return patterns
}

// Unsatisfactory reports whether a model response should be escalated.
// The scan is case-insensitive and total over any input; an empty response
// is satisfactory.
func Unsatisfactory(response string) bool {
	if response == "" {
		return false
	}
	for _, p := range triggerPatterns {
		if p.MatchString(response) {
			return true
		}
	}
	return false
}

package confidence

import (
	"fmt"
	"strings"

	"github.com/thomassleeman/therapy-app-sub000/knowledge"
)

// Strategy is one of the three mutually exclusive response strategies the
// downstream generator is instructed to follow.
type Strategy string

const (
	// StrategyGrounded: answer from the retrieved chunks.
	StrategyGrounded Strategy = "grounded"
	// StrategyGeneralKnowledge: answer from general knowledge with an explicit
	// disclaimer that the knowledge base did not cover the topic.
	StrategyGeneralKnowledge Strategy = "general_knowledge"
	// StrategyGracefulDecline: do not answer substantively; point the
	// therapist at supervision and professional-body escalation instead.
	StrategyGracefulDecline Strategy = "graceful_decline"
)

// GeneralKnowledgeDisclaimer is surfaced whenever an answer is not grounded in
// the knowledge base. An ungrounded answer must never look grounded.
const GeneralKnowledgeDisclaimer = "No closely matching content was found in the curated knowledge base, " +
	"so this answer draws on general knowledge rather than verified sources. " +
	"Please verify anything consequential against primary guidance or your supervisor."

// Decision is the routing outcome. Strategy discriminates which payload fields
// are populated: Results and Note for grounded, Disclaimer for
// general_knowledge, Message for graceful_decline.
type Decision struct {
	Strategy   Strategy
	Results    []knowledge.ScoredChunk
	Note       string
	Disclaimer string
	Message    string
}

// Route maps an assessment and the detected sensitive categories to a response
// strategy. Pure function of (tier, sensitive categories):
//
//	high      + anything      -> grounded
//	moderate  + sensitive     -> grounded (moderate guidance beats nothing on a sensitive topic)
//	moderate  + not sensitive -> general_knowledge
//	low       + sensitive     -> graceful_decline
//	low       + not sensitive -> general_knowledge
func Route(a Assessment, sensitiveCategories []string) Decision {
	sensitive := len(sensitiveCategories) > 0
	switch a.Tier {
	case TierHigh:
		return Decision{Strategy: StrategyGrounded, Results: a.Results, Note: a.Note}
	case TierModerate:
		if sensitive {
			return Decision{Strategy: StrategyGrounded, Results: a.Results, Note: a.Note}
		}
		return Decision{Strategy: StrategyGeneralKnowledge, Disclaimer: GeneralKnowledgeDisclaimer}
	default:
		if sensitive {
			return Decision{Strategy: StrategyGracefulDecline, Message: declineMessage(sensitiveCategories)}
		}
		return Decision{Strategy: StrategyGeneralKnowledge, Disclaimer: GeneralKnowledgeDisclaimer}
	}
}

func declineMessage(categories []string) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = strings.ReplaceAll(c, "_", " ")
	}
	return fmt.Sprintf(
		"This question touches on %s, and the knowledge base does not contain sufficiently relevant guidance "+
			"for me to answer it reliably. Rather than risk an ungrounded answer on a safety-critical topic, "+
			"please discuss this with your supervisor or contact your professional body's advice service.",
		joinWithAnd(names),
	)
}

func joinWithAnd(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	}
	return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
}

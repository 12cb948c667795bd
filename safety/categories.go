package safety

// Category identifies one safety-relevant topic detected in a therapist message.
type Category string

const (
	CategorySafeguarding      Category = "safeguarding"
	CategorySuicidalIdeation  Category = "suicidal_ideation"
	CategoryTherapistDistress Category = "therapist_distress"
)

// Categories lists every category in the stable order used for instruction
// concatenation and auto-search collection.
func Categories() []Category {
	return []Category{
		CategorySafeguarding,
		CategorySuicidalIdeation,
		CategoryTherapistDistress,
	}
}

// Label returns the human-readable form used in user-facing messages.
func (c Category) Label() string {
	switch c {
	case CategorySafeguarding:
		return "safeguarding"
	case CategorySuicidalIdeation:
		return "suicidal ideation"
	case CategoryTherapistDistress:
		return "therapist distress"
	}
	return string(c)
}

// AutoSearchQuery names a downstream search tool and the query the detector
// wants run when its category fires.
type AutoSearchQuery struct {
	Tool  string `json:"tool"`
	Query string `json:"query"`
}

type categoryDefinition struct {
	category Category

	// phrases match as substrings of the normalized message.
	phrases []string
	// keywords match as whole words only.
	keywords []string

	instructions string
	autoSearches []AutoSearchQuery
}

// The matching lists deliberately over-trigger. A false positive costs one
// extra knowledge base lookup; a false negative skips a safety gate.
var categoryTable = []categoryDefinition{
	{
		category: CategorySafeguarding,
		phrases: []string{
			"child protection",
			"at risk of harm",
			"risk of significant harm",
			"vulnerable adult",
			"vulnerable child",
			"domestic violence",
			"domestic abuse",
			"safeguarding concern",
			"disclosure of abuse",
			"disclosed abuse",
			"sexual abuse",
			"physical abuse",
			"emotional abuse",
			"coercive control",
			"being hurt at home",
			"report to social services",
			"contact social services",
		},
		keywords: []string{
			"safeguarding",
			"abuse",
			"neglect",
			"grooming",
			"exploitation",
			"trafficking",
			"fgm",
		},
		instructions: "A possible safeguarding concern has been detected in this message. " +
			"Ground your response in the professional safeguarding guidance retrieved from the knowledge base. " +
			"Remind the therapist that safeguarding duties can override confidentiality, that thresholds and reporting " +
			"routes vary by jurisdiction, and that they should consult their supervisor and their professional body's " +
			"safeguarding lead before acting. Encourage contemporaneous record keeping. Do not advise delaying a report " +
			"where a child or vulnerable adult may be at immediate risk.",
		autoSearches: []AutoSearchQuery{
			{Tool: "search_guidelines", Query: "safeguarding disclosure reporting obligations"},
			{Tool: "search_legislation", Query: "child protection duty to report threshold"},
		},
	},
	{
		category: CategorySuicidalIdeation,
		phrases: []string{
			"wants to die",
			"want to die",
			"end their life",
			"ending their life",
			"take their own life",
			"taking their own life",
			"kill themselves",
			"killing themselves",
			"self harm",
			"self-harm",
			"harming themselves",
			"hurting themselves",
			"suicidal thoughts",
			"suicidal ideation",
			"thoughts of suicide",
			"attempted suicide",
			"suicide attempt",
			"suicide plan",
			"no reason to live",
			"better off dead",
		},
		keywords: []string{
			"suicide",
			"suicidal",
			"overdose",
		},
		instructions: "This message concerns possible suicidal ideation or self-harm in a client. " +
			"Prioritise retrieved risk-assessment and crisis-response guidance over general knowledge. " +
			"Frame your response around structured risk assessment, safety planning, and escalation routes, " +
			"and remind the therapist to follow their service's crisis protocol and to involve their supervisor. " +
			"Never suggest that knowledge base content substitutes for an emergency response when risk is immediate.",
		autoSearches: []AutoSearchQuery{
			{Tool: "search_guidelines", Query: "suicide risk assessment and safety planning"},
			{Tool: "search_clinical_practice", Query: "responding to client suicidal ideation in session"},
		},
	},
	{
		category: CategoryTherapistDistress,
		phrases: []string{
			"i feel burnt out",
			"i am burnt out",
			"i'm burnt out",
			"feeling burnt out",
			"struggling to cope",
			"can't cope",
			"cannot cope",
			"compassion fatigue",
			"vicarious trauma",
			"secondary trauma",
			"affecting my own mental health",
			"my own mental health",
			"overwhelmed by my clients",
			"dread seeing clients",
			"too exhausted to work",
		},
		keywords: []string{
			"burnout",
		},
		instructions: "The therapist appears to be describing their own distress rather than a client's. " +
			"Respond with warmth before information. Acknowledge the pressure of clinical work, normalise seeking " +
			"support, and point towards supervision, personal therapy, and their professional body's practitioner " +
			"support services. Keep any retrieved self-care guidance secondary to the human acknowledgement.",
		autoSearches: []AutoSearchQuery{
			{Tool: "search_clinical_practice", Query: "therapist burnout self-care supervision"},
		},
	},
}

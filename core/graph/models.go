package graph

// Attrs is the opaque attribute bag carried by nodes and edges.
type Attrs map[string]interface{}

// Node types and edge types used by the workflow engine.
const (
	NodeStudent        = "student"
	NodeLearningModule = "learning_module"
	NodeSkill          = "skill"

	EdgeEnrolledIn = "enrolled_in"
	EdgeTeaches    = "teaches"
	EdgeAssessedIn = "assessed_in"
)

type Node struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Attrs Attrs  `json:"attrs"`
}

type Edge struct {
	SourceID string `json:"source_id"`
	TargetID string `json:"target_id"`
	Type     string `json:"type"`
	Attrs    Attrs  `json:"attrs"`
}

// String returns the string attribute key, or "".
func (a Attrs) String(key string) string {
	if s, ok := a[key].(string); ok {
		return s
	}
	return ""
}

// Int returns the numeric attribute key as an int. JSON round trips turn numbers into float64.
func (a Attrs) Int(key string) int {
	switch v := a[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Float returns the numeric attribute key as a float64.
func (a Attrs) Float(key string) float64 {
	switch v := a[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return 0
}

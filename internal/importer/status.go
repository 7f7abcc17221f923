package importer

import (
	"strings"
)

const (
	StatusNew           = "NEW"
	StatusAssigned      = "ASSIGNED"
	StatusEmailCaptured = "EMAIL_CAPTURED"
	StatusPOReceived    = "PO_RECEIVED"
)

// StatusClassifier splits the status column into a pipeline status or an
// assignee name.
type StatusClassifier struct {
	terminal map[string]struct{}
}

func NewStatusClassifier(terminalTokens []string) *StatusClassifier {
	c := &StatusClassifier{terminal: make(map[string]struct{}, len(terminalTokens))}
	for _, t := range terminalTokens {
		if k := statusKey(t); k != "" {
			c.terminal[k] = struct{}{}
		}
	}
	return c
}

// Classify returns the base status for raw and, when raw names a person, the
// cleaned display name.
func (c *StatusClassifier) Classify(raw *string) (string, *string) {
	if raw == nil {
		return StatusNew, nil
	}
	name := strings.Join(strings.Fields(*raw), " ")
	if name == "" {
		return StatusNew, nil
	}
	if _, ok := c.terminal[statusKey(name)]; ok {
		return StatusPOReceived, nil
	}
	return StatusAssigned, &name
}

func (c *StatusClassifier) IsTerminal(raw string) bool {
	_, ok := c.terminal[statusKey(raw)]
	return ok
}

func statusKey(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("-", " ", "_", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// StageProgress is a completed stage as seen by DeriveStatus.
type StageProgress struct {
	Code         string
	DisplayOrder int
	Completed    bool
}

// DeriveStatus picks the code of the furthest completed stage, then falls
// back to EMAIL_CAPTURED when an email is on file, then to base.
func DeriveStatus(base string, clientEmail *string, stages []StageProgress) string {
	best := -1
	code := ""
	for _, s := range stages {
		if s.Completed && s.DisplayOrder > best {
			best = s.DisplayOrder
			code = s.Code
		}
	}
	if code != "" {
		return code
	}
	if clientEmail != nil && strings.TrimSpace(*clientEmail) != "" {
		return StatusEmailCaptured
	}
	if base == "" {
		return StatusNew
	}
	return base
}

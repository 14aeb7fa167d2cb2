package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coffersTech/eventdeck/internal/model"
	"github.com/coffersTech/eventdeck/internal/pkg/nanoql"
)

// CriterionKey names one constraint within Criteria.
type CriterionKey string

const (
	KeySourceType    CriterionKey = "sourceType"
	KeySeverityLevel CriterionKey = "severityLevel"
	KeyEntityName    CriterionKey = "entityName"
	KeyEntityID      CriterionKey = "entityId"
	KeyMessage       CriterionKey = "message"
	KeyQuery         CriterionKey = "query" // NanoQL expression
)

// EntityWildcard as entity id matches any id for the entity name.
const EntityWildcard = "*"

var (
	ErrUnknownCriterion = errors.New("unknown filter criterion")
	ErrInvalidQuery     = errors.New("invalid query")
)

// ParseCriterionKey resolves a criterion name, accepting the short aliases
// used by the dashboard inputs.
func ParseCriterionKey(name string) (CriterionKey, error) {
	switch strings.TrimSpace(name) {
	case "sourceType", "source":
		return KeySourceType, nil
	case "severityLevel", "severity":
		return KeySeverityLevel, nil
	case "entityName":
		return KeyEntityName, nil
	case "entityId":
		return KeyEntityID, nil
	case "message", "msg":
		return KeyMessage, nil
	case "query", "q":
		return KeyQuery, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCriterion, name)
	}
}

// Criteria defines the active constraints. Empty fields do not constrain.
type Criteria struct {
	SourceType    []string `json:"sourceType"`
	SeverityLevel []string `json:"severityLevel"`
	EntityName    string   `json:"entityName,omitempty"`
	EntityID      string   `json:"entityId,omitempty"`
	Message       string   `json:"message,omitempty"`
	Query         string   `json:"query,omitempty"`
}

// Clone returns a deep copy so callers never share the engine's slices.
func (c Criteria) Clone() Criteria {
	out := c
	out.SourceType = append([]string{}, c.SourceType...)
	out.SeverityLevel = append([]string{}, c.SeverityLevel...)
	return out
}

// HasEntity reports whether the entity constraint is active.
func (c Criteria) HasEntity() bool {
	return c.EntityName != "" && c.EntityID != ""
}

// EntityField is the custom field holding the entity id, e.g. "job_id".
func (c Criteria) EntityField() string {
	return c.EntityName + "_id"
}

// FilterEngine holds the current criteria and decides whether an event
// matches all of them.
type FilterEngine struct {
	criteria Criteria

	// Derived from criteria on every update
	messageLower string
	queryNode    nanoql.Node
}

// NewFilterEngine creates an engine whose severity criterion starts with the
// given defaults.
func NewFilterEngine(defaultSeverities []string) *FilterEngine {
	f := &FilterEngine{
		criteria: Criteria{
			SourceType:    []string{},
			SeverityLevel: []string{},
		},
	}
	for _, s := range defaultSeverities {
		s = strings.TrimSpace(s)
		if s != "" && indexOf(f.criteria.SeverityLevel, s) < 0 {
			f.criteria.SeverityLevel = append(f.criteria.SeverityLevel, s)
		}
	}
	return f
}

// Criteria returns a copy of the current criteria.
func (f *FilterEngine) Criteria() Criteria {
	return f.criteria.Clone()
}

// Update mutates exactly one criterion. List criteria toggle the value,
// scalar criteria replace it and an empty value clears them. It reports
// whether the criteria changed.
func (f *FilterEngine) Update(key CriterionKey, value string) (bool, error) {
	value = strings.TrimSpace(value)

	switch key {
	case KeySourceType:
		return toggle(&f.criteria.SourceType, value), nil
	case KeySeverityLevel:
		return toggle(&f.criteria.SeverityLevel, value), nil
	case KeyEntityName:
		return replace(&f.criteria.EntityName, value), nil
	case KeyEntityID:
		return replace(&f.criteria.EntityID, value), nil
	case KeyMessage:
		changed := replace(&f.criteria.Message, value)
		f.messageLower = strings.ToLower(f.criteria.Message)
		return changed, nil
	case KeyQuery:
		node, err := nanoql.Parse(value)
		if err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		f.queryNode = node
		return replace(&f.criteria.Query, value), nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCriterion, key)
	}
}

// Matches reports whether e satisfies every active criterion.
func (f *FilterEngine) Matches(e *model.Event) bool {
	c := &f.criteria

	if len(c.SourceType) > 0 && indexOf(c.SourceType, e.SourceType) < 0 {
		return false
	}
	if len(c.SeverityLevel) > 0 && indexOf(c.SeverityLevel, e.Severity) < 0 {
		return false
	}
	if f.messageLower != "" && !strings.Contains(strings.ToLower(e.Message), f.messageLower) {
		return false
	}
	if c.HasEntity() && c.EntityID != EntityWildcard {
		id, ok := e.Field(c.EntityField())
		if !ok || id != c.EntityID {
			return false
		}
	}
	if f.queryNode != nil && !nanoql.Match(f.queryNode, e) {
		return false
	}
	return true
}

// Apply returns the events that match, preserving order.
func (f *FilterEngine) Apply(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for i := range events {
		if f.Matches(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}

func toggle(list *[]string, value string) bool {
	if value == "" {
		return false
	}
	if i := indexOf(*list, value); i >= 0 {
		*list = append((*list)[:i:i], (*list)[i+1:]...)
		return true
	}
	*list = append(*list, value)
	return true
}

func replace(field *string, value string) bool {
	if *field == value {
		return false
	}
	*field = value
	return true
}

func indexOf(list []string, value string) int {
	for i, v := range list {
		if v == value {
			return i
		}
	}
	return -1
}

package engine

import (
	"net/url"
	"strings"

	"github.com/coffersTech/eventdeck/internal/pkg/nanoql"
)

// NanoQL renders the criteria as a NanoQL expression that selects exactly
// the events Matches accepts. Empty criteria render as "".
func (c Criteria) NanoQL() string {
	var clauses []string

	if clause := anyOf("sourceType", c.SourceType); clause != "" {
		clauses = append(clauses, clause)
	}
	if clause := anyOf("severity", c.SeverityLevel); clause != "" {
		clauses = append(clauses, clause)
	}
	if c.Message != "" {
		clauses = append(clauses, "message~"+nanoql.Quote(c.Message))
	}
	if c.HasEntity() && c.EntityID != EntityWildcard {
		clauses = append(clauses, nanoql.Quote(c.EntityField())+"=="+nanoql.Quote(c.EntityID))
	}
	if c.Query != "" {
		clauses = append(clauses, "("+c.Query+")")
	}

	return strings.Join(clauses, " AND ")
}

func anyOf(key string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	terms := make([]string, len(values))
	for i, v := range values {
		terms[i] = key + "==" + nanoql.Quote(v)
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return "(" + strings.Join(terms, " OR ") + ")"
}

// Params renders the criteria as URL query parameters for a backend that
// filters server side: list criteria repeat their key, and the entity
// constraint becomes "<entityName>_id=<entityId>".
func (c Criteria) Params() url.Values {
	params := url.Values{}
	for _, v := range c.SourceType {
		params.Add(string(KeySourceType), v)
	}
	for _, v := range c.SeverityLevel {
		params.Add(string(KeySeverityLevel), v)
	}
	if c.HasEntity() {
		params.Set(c.EntityField(), c.EntityID)
	}
	if c.Message != "" {
		params.Set(string(KeyMessage), c.Message)
	}
	if c.Query != "" {
		params.Set("q", c.Query)
	}
	return params
}

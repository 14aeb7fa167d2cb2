package nanoql

import (
	"strconv"
	"strings"
)

// Record is the view of an event the evaluator needs.
// It keeps nanoql independent of the model package.
type Record interface {
	GetSeverity() string
	GetSourceType() string
	GetHost() string
	GetMessage() string
	GetTimestamp() float64
	GetField(key string) (string, bool)
}

// Match evaluates the AST node against a Record and returns true if it matches.
func Match(node Node, rec Record) bool {
	if node == nil {
		return true // No filter means match all
	}

	switch n := node.(type) {
	case BinaryExpr:
		return evalBinary(n, rec)
	case MatchExpr:
		return evalMatch(n, rec)
	case NotExpr:
		return !Match(n.Expr, rec)
	default:
		return false
	}
}

func evalBinary(expr BinaryExpr, rec Record) bool {
	switch expr.Op {
	case "AND":
		return Match(expr.Left, rec) && Match(expr.Right, rec)
	case "OR":
		return Match(expr.Left, rec) || Match(expr.Right, rec)
	default:
		return false
	}
}

func evalMatch(expr MatchExpr, rec Record) bool {
	// Full-text search (no key specified)
	if expr.Key == "" {
		return matchFullText(expr.Value, rec)
	}

	fieldValue, ok := getFieldValue(expr.Key, rec)

	switch expr.Op {
	case OpExact:
		return ok && fieldValue == expr.Value
	case OpNotEqual:
		return !ok || !strings.EqualFold(fieldValue, expr.Value)
	case OpContains:
		return ok && containsIgnoreCase(fieldValue, expr.Value)
	default:
		return ok && strings.EqualFold(fieldValue, expr.Value)
	}
}

// getFieldValue returns the value of a field by name. Unknown names are
// looked up among the record's custom fields.
func getFieldValue(key string, rec Record) (string, bool) {
	switch strings.ToLower(key) {
	case "sourcetype", "source", "src":
		return rec.GetSourceType(), true
	case "host", "hostname":
		return rec.GetHost(), true
	case "message", "msg":
		return rec.GetMessage(), true
	case "severity", "severitylevel", "level", "lvl":
		return rec.GetSeverity(), true
	case "timestamp", "ts":
		return strconv.FormatFloat(rec.GetTimestamp(), 'f', -1, 64), true
	default:
		return rec.GetField(key)
	}
}

// containsIgnoreCase checks if haystack contains needle (case-insensitive).
func containsIgnoreCase(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// matchFullText searches across the well-known fields.
func matchFullText(query string, rec Record) bool {
	fields := []string{
		rec.GetSourceType(),
		rec.GetHost(),
		rec.GetMessage(),
		rec.GetSeverity(),
	}
	for _, f := range fields {
		if containsIgnoreCase(f, query) {
			return true
		}
	}
	return false
}

package nanoql

import (
	"testing"
)

// testRecord implements Record for testing
type testRecord struct {
	timestamp  float64
	severity   string
	sourceType string
	host       string
	message    string
	fields     map[string]string
}

func (r *testRecord) GetTimestamp() float64 { return r.timestamp }
func (r *testRecord) GetSeverity() string   { return r.severity }
func (r *testRecord) GetSourceType() string { return r.sourceType }
func (r *testRecord) GetHost() string       { return r.host }
func (r *testRecord) GetMessage() string    { return r.message }
func (r *testRecord) GetField(key string) (string, bool) {
	v, ok := r.fields[key]
	return v, ok
}

func TestLexer(t *testing.T) {
	tests := []struct {
		input    string
		expected []TokenType
	}{
		{"sourceType:GCS", []TokenType{TokenIdent, TokenColon, TokenIdent, TokenEOF}},
		{`severity:"ERROR"`, []TokenType{TokenIdent, TokenColon, TokenString, TokenEOF}},
		{"a AND b", []TokenType{TokenIdent, TokenAnd, TokenIdent, TokenEOF}},
		{"a OR b", []TokenType{TokenIdent, TokenOr, TokenIdent, TokenEOF}},
		{"NOT a", []TokenType{TokenNot, TokenIdent, TokenEOF}},
		{"(a)", []TokenType{TokenLParen, TokenIdent, TokenRParen, TokenEOF}},
		{`key!="value"`, []TokenType{TokenIdent, TokenNeq, TokenString, TokenEOF}},
		{`key=="value"`, []TokenType{TokenIdent, TokenEq, TokenString, TokenEOF}},
		{`message~"time"`, []TokenType{TokenIdent, TokenTilde, TokenString, TokenEOF}},
		{"job_id:123", []TokenType{TokenIdent, TokenColon, TokenIdent, TokenEOF}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			lexer := NewLexer(tt.input)
			for i, expected := range tt.expected {
				tok := lexer.NextToken()
				if tok.Type != expected {
					t.Errorf("token %d: expected %v, got %v (%q)", i, expected, tok.Type, tok.Value)
				}
			}
		})
	}
}

func TestQuoteRoundTrip(t *testing.T) {
	inputs := []string{"", "plain", `with "quotes"`, `back\slash`, `mixed \"both\"`, "ünïcode"}
	for _, in := range inputs {
		tok := NewLexer(Quote(in)).NextToken()
		if tok.Type != TokenString || tok.Value != in {
			t.Errorf("Quote(%q) lexed back as %v %q", in, tok.Type, tok.Value)
		}
	}
}

func TestParseSimple(t *testing.T) {
	tests := []struct {
		input string
		check func(Node) bool
	}{
		{
			input: "sourceType:GCS",
			check: func(n Node) bool {
				m, ok := n.(MatchExpr)
				return ok && m.Key == "sourceType" && m.Value == "GCS" && m.Op == OpEqual
			},
		},
		{
			input: `severity=="ERROR"`,
			check: func(n Node) bool {
				m, ok := n.(MatchExpr)
				return ok && m.Key == "severity" && m.Value == "ERROR" && m.Op == OpExact
			},
		},
		{
			input: `"timeout"`,
			check: func(n Node) bool {
				m, ok := n.(MatchExpr)
				return ok && m.Key == "" && m.Value == "timeout" && m.Op == OpContains
			},
		},
		{
			input: `"serve replica_id"=="7"`,
			check: func(n Node) bool {
				m, ok := n.(MatchExpr)
				return ok && m.Key == "serve replica_id" && m.Value == "7" && m.Op == OpExact
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			node, err := Parse(tt.input)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if !tt.check(node) {
				t.Errorf("check failed for input %q, got: %+v", tt.input, node)
			}
		})
	}
}

func TestParseCompound(t *testing.T) {
	node, err := Parse("sourceType:GCS AND severity:ERROR")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	bin, ok := node.(BinaryExpr)
	if !ok || bin.Op != "AND" {
		t.Fatalf("expected BinaryExpr AND, got %+v", node)
	}

	left, ok := bin.Left.(MatchExpr)
	if !ok || left.Key != "sourceType" || left.Value != "GCS" {
		t.Errorf("left expected sourceType:GCS, got %+v", left)
	}

	right, ok := bin.Right.(MatchExpr)
	if !ok || right.Key != "severity" || right.Value != "ERROR" {
		t.Errorf("right expected severity:ERROR, got %+v", right)
	}
}

func TestParseParentheses(t *testing.T) {
	node, err := Parse("sourceType:GCS AND (severity:ERROR OR severity:WARNING)")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	bin, ok := node.(BinaryExpr)
	if !ok || bin.Op != "AND" {
		t.Fatalf("expected AND at root, got %+v", node)
	}

	rightBin, ok := bin.Right.(BinaryExpr)
	if !ok || rightBin.Op != "OR" {
		t.Errorf("expected OR on right, got %+v", bin.Right)
	}
}

func TestParseNot(t *testing.T) {
	node, err := Parse("NOT severity:DEBUG")
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	not, ok := node.(NotExpr)
	if !ok {
		t.Fatalf("expected NotExpr, got %+v", node)
	}

	m, ok := not.Expr.(MatchExpr)
	if !ok || m.Key != "severity" || m.Value != "DEBUG" {
		t.Errorf("expected severity:DEBUG, got %+v", not.Expr)
	}
}

func TestParseErrors(t *testing.T) {
	inputs := []string{
		"severity:",
		"a AND",
		"NOT",
		"(a OR b",
		"a b)",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			if _, err := Parse(in); err == nil {
				t.Errorf("Parse(%q) should fail", in)
			}
		})
	}
}

func TestMatch(t *testing.T) {
	rec := &testRecord{
		timestamp:  1700000000,
		severity:   "ERROR",
		sourceType: "CORE_WORKER",
		host:       "10.0.0.1",
		message:    "Connection Timeout occurred",
		fields:     map[string]string{"job_id": "64000000"},
	}

	tests := []struct {
		query    string
		expected bool
	}{
		{"sourceType:CORE_WORKER", true},
		{"sourceType:GCS", false},
		{"severity:ERROR", true},
		{"severity:INFO", false},
		{`"timeout"`, true},
		{`"success"`, false},
		{"sourceType:CORE_WORKER AND severity:ERROR", true},
		{"sourceType:CORE_WORKER AND severity:INFO", false},
		{"sourceType:GCS OR severity:ERROR", true},
		{"NOT severity:DEBUG", true},
		{"NOT severity:ERROR", false},
		{`host:"10.0.0.1"`, true},
		{`message~"timeout"`, true},
		{`msg~"refused"`, false},
		{`job_id=="64000000"`, true},
		{`job_id=="1"`, false},
		{`actor_id:"1"`, false},
		{`actor_id!="1"`, true},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			node, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			result := Match(node, rec)
			if result != tt.expected {
				t.Errorf("Match(%q) = %v, want %v", tt.query, result, tt.expected)
			}
		})
	}
}

func TestMatchCaseSensitivity(t *testing.T) {
	rec := &testRecord{
		severity:   "ERROR",
		sourceType: "CoreWorker",
		message:    "REQUEST completed",
	}

	tests := []struct {
		query    string
		expected bool
	}{
		{"sourceType:coreworker", true},
		{"sourceType:COREWORKER", true},
		{"severity:error", true},
		{`"request"`, true},
		{`sourceType=="CoreWorker"`, true},
		{`sourceType=="coreworker"`, false},
		{`severity=="error"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			node, err := Parse(tt.query)
			if err != nil {
				t.Fatalf("parse error: %v", err)
			}
			if Match(node, rec) != tt.expected {
				t.Errorf("Match(%q) failed", tt.query)
			}
		})
	}
}

package template

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Expr is a parsed condition expression. The variant set is deliberately
// closed: path references, literals, comparisons and boolean combinators.
// There is no function call, no arithmetic, no code execution.
type Expr interface {
	eval(data map[string]any) (any, error)
	collectRefs(refs *[]Ref)
}

// ParseCondition parses a restricted boolean expression such as
// `{{?inputs.benchmark}} != null && {{positions}} != null`.
func ParseCondition(input string) (Expr, error) {
	lx, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &condParser{input: input, tokens: lx}
	expr, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, fmt.Errorf("condition %q: unexpected %q", input, p.peek().text)
	}
	return expr, nil
}

// EvalCondition parses input and evaluates it to a boolean against data.
func EvalCondition(input string, data map[string]any) (bool, error) {
	expr, err := ParseCondition(input)
	if err != nil {
		return false, err
	}
	val, err := expr.eval(data)
	if err != nil {
		return false, err
	}
	return truthy(val), nil
}

// ConditionRefs returns the template references inside a condition.
func ConditionRefs(input string) ([]Ref, error) {
	expr, err := ParseCondition(input)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	expr.collectRefs(&refs)
	return refs, nil
}

// --- AST variants ---

type litExpr struct{ value any }

func (e litExpr) eval(map[string]any) (any, error) { return e.value, nil }
func (e litExpr) collectRefs(*[]Ref)               {}

type refExpr struct{ ref Ref }

func (e refExpr) eval(data map[string]any) (any, error) {
	return resolveRef(e.ref, data)
}
func (e refExpr) collectRefs(refs *[]Ref) { *refs = append(*refs, e.ref) }

type notExpr struct{ x Expr }

func (e notExpr) eval(data map[string]any) (any, error) {
	v, err := e.x.eval(data)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}
func (e notExpr) collectRefs(refs *[]Ref) { e.x.collectRefs(refs) }

type binExpr struct {
	op   string
	l, r Expr
}

func (e binExpr) eval(data map[string]any) (any, error) {
	switch e.op {
	case "&&":
		lv, err := e.l.eval(data)
		if err != nil {
			return nil, err
		}
		if !truthy(lv) {
			return false, nil
		}
		rv, err := e.r.eval(data)
		if err != nil {
			return nil, err
		}
		return truthy(rv), nil
	case "||":
		lv, err := e.l.eval(data)
		if err != nil {
			return nil, err
		}
		if truthy(lv) {
			return true, nil
		}
		rv, err := e.r.eval(data)
		if err != nil {
			return nil, err
		}
		return truthy(rv), nil
	}

	lv, err := e.l.eval(data)
	if err != nil {
		return nil, err
	}
	rv, err := e.r.eval(data)
	if err != nil {
		return nil, err
	}
	return compare(e.op, lv, rv)
}
func (e binExpr) collectRefs(refs *[]Ref) {
	e.l.collectRefs(refs)
	e.r.collectRefs(refs)
}

// --- evaluation helpers ---

func truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	default:
		if f, ok := asFloat(v); ok {
			return f != 0
		}
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func compare(op string, l, r any) (bool, error) {
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)

	switch op {
	case "==", "!=":
		var eq bool
		if lok && rok {
			eq = lf == rf
		} else {
			eq = reflect.DeepEqual(l, r)
		}
		if op == "!=" {
			return !eq, nil
		}
		return eq, nil
	}

	// Ordered comparison: numbers or strings, never mixed.
	if lok && rok {
		switch op {
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		}
	}
	ls, lsok := l.(string)
	rs, rsok := r.(string)
	if lsok && rsok {
		switch op {
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		}
	}
	return false, fmt.Errorf("cannot compare %T and %T with %q", l, r, op)
}

// --- lexer ---

type token struct {
	kind string // "op", "ref", "string", "number", "ident", "eof"
	text string
}

func lex(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case strings.HasPrefix(input[i:], openDelim):
			end := strings.Index(input[i:], closeDelim)
			if end < 0 {
				return nil, fmt.Errorf("condition %q: unterminated template", input)
			}
			tokens = append(tokens, token{kind: "ref", text: input[i+len(openDelim) : i+end]})
			i += end + len(closeDelim)
		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			for j < len(input) && input[j] != quote {
				j++
			}
			if j >= len(input) {
				return nil, fmt.Errorf("condition %q: unterminated string", input)
			}
			tokens = append(tokens, token{kind: "string", text: input[i+1 : j]})
			i = j + 1
		case c >= '0' && c <= '9' || c == '-' && i+1 < len(input) && input[i+1] >= '0' && input[i+1] <= '9':
			j := i + 1
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: "number", text: input[i:j]})
			i = j
		case isTwoCharOp(input[i:]):
			tokens = append(tokens, token{kind: "op", text: input[i : i+2]})
			i += 2
		case c == '<' || c == '>' || c == '!' || c == '(' || c == ')':
			tokens = append(tokens, token{kind: "op", text: string(c)})
			i++
		case isIdentStart(c):
			j := i + 1
			for j < len(input) && isIdentPart(input[j]) {
				j++
			}
			tokens = append(tokens, token{kind: "ident", text: input[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("condition %q: unexpected character %q", input, string(c))
		}
	}
	tokens = append(tokens, token{kind: "eof"})
	return tokens, nil
}

func isTwoCharOp(s string) bool {
	return strings.HasPrefix(s, "&&") || strings.HasPrefix(s, "||") ||
		strings.HasPrefix(s, "==") || strings.HasPrefix(s, "!=") ||
		strings.HasPrefix(s, "<=") || strings.HasPrefix(s, ">=")
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// --- parser ---

type condParser struct {
	input  string
	tokens []token
	pos    int
}

func (p *condParser) peek() token  { return p.tokens[p.pos] }
func (p *condParser) next() token  { t := p.tokens[p.pos]; p.pos++; return t }
func (p *condParser) atEnd() bool  { return p.peek().kind == "eof" }
func (p *condParser) accept(text string) bool {
	if p.peek().kind == "op" && p.peek().text == text {
		p.pos++
		return true
	}
	return false
}

func (p *condParser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.accept("||") {
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = binExpr{op: "||", l: left, r: right}
	}
	return left, nil
}

func (p *condParser) parseAnd() (Expr, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for p.accept("&&") {
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = binExpr{op: "&&", l: left, r: right}
	}
	return left, nil
}

func (p *condParser) parseCmp() (Expr, error) {
	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	for _, op := range []string{"==", "!=", "<=", ">=", "<", ">"} {
		if p.accept(op) {
			right, err := p.parseOperand()
			if err != nil {
				return nil, err
			}
			return binExpr{op: op, l: left, r: right}, nil
		}
	}
	return left, nil
}

func (p *condParser) parseOperand() (Expr, error) {
	if p.accept("!") {
		x, err := p.parseOperand()
		if err != nil {
			return nil, err
		}
		return notExpr{x: x}, nil
	}
	if p.accept("(") {
		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.accept(")") {
			return nil, fmt.Errorf("condition %q: missing closing parenthesis", p.input)
		}
		return expr, nil
	}

	t := p.next()
	switch t.kind {
	case "ref":
		ref, err := parseRef(t.text)
		if err != nil {
			return nil, err
		}
		return refExpr{ref: ref}, nil
	case "string":
		return litExpr{value: t.text}, nil
	case "number":
		f, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, fmt.Errorf("condition %q: invalid number %q", p.input, t.text)
		}
		return litExpr{value: f}, nil
	case "ident":
		switch t.text {
		case "true":
			return litExpr{value: true}, nil
		case "false":
			return litExpr{value: false}, nil
		case "null":
			return litExpr{value: nil}, nil
		}
		return nil, fmt.Errorf("condition %q: unknown identifier %q (paths must use {{...}})", p.input, t.text)
	default:
		return nil, fmt.Errorf("condition %q: unexpected %q", p.input, t.text)
	}
}

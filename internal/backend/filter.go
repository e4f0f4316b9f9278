package backend

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

// Filter grammar:
//
//	expr       := and ( "OR" and )*
//	and        := unary ( "AND" unary )*
//	unary      := "NOT" unary | "(" expr ")" | comparison
//	comparison := field op value
//	op         := "=" | "!=" | ">" | ">=" | "<" | "<="
//
// Values are numbers, dates (2006-01-02, "2006-01-02 15:04:05", RFC 3339)
// or strings; quote strings that contain spaces or look like numbers.

var filterDateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

type tokenKind int

const (
	tokWord tokenKind = iota
	tokString
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

// ParseFilter compiles expr into a bleve query. Only fields listed in
// filterable may be referenced.
func ParseFilter(expr string, filterable []string) (query.Query, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, invalidFilter("empty filter expression")
	}

	allowed := make(map[string]bool, len(filterable))
	for _, f := range filterable {
		allowed[f] = true
	}

	p := &filterParser{toks: toks, allowed: allowed}
	q, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, invalidFilter(fmt.Sprintf("unexpected %q", p.toks[p.pos].text))
	}
	return q, nil
}

func invalidFilter(msg string) error {
	return serrors.ValidationError(serrors.ErrCodeInvalidFilter, "invalid filter: "+msg, nil)
}

func tokenize(expr string) ([]token, error) {
	var toks []token
	rs := []rune(expr)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '\'' || r == '"':
			j := i + 1
			for j < len(rs) && rs[j] != r {
				j++
			}
			if j == len(rs) {
				return nil, invalidFilter("unterminated string")
			}
			toks = append(toks, token{tokString, string(rs[i+1 : j])})
			i = j + 1
		case r == '=' || r == '!' || r == '<' || r == '>':
			op := string(r)
			if i+1 < len(rs) && rs[i+1] == '=' {
				op += "="
			}
			if op == "!" {
				return nil, invalidFilter("expected !=")
			}
			toks = append(toks, token{tokOp, op})
			i += len(op)
		default:
			j := i
			for j < len(rs) && !unicode.IsSpace(rs[j]) && !strings.ContainsRune("()=!<>'\"", rs[j]) {
				j++
			}
			toks = append(toks, token{tokWord, string(rs[i:j])})
			i = j
		}
	}
	return toks, nil
}

var validOps = map[string]bool{"=": true, "!=": true, ">": true, ">=": true, "<": true, "<=": true}

type filterParser struct {
	toks    []token
	pos     int
	allowed map[string]bool
}

func (p *filterParser) peekKeyword(kw string) bool {
	return p.pos < len(p.toks) && p.toks[p.pos].kind == tokWord && strings.EqualFold(p.toks[p.pos].text, kw)
}

func (p *filterParser) next() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *filterParser) parseOr() (query.Query, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	qs := []query.Query{first}
	for p.peekKeyword("OR") {
		p.pos++
		q, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if len(qs) == 1 {
		return first, nil
	}
	return bleve.NewDisjunctionQuery(qs...), nil
}

func (p *filterParser) parseAnd() (query.Query, error) {
	first, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	qs := []query.Query{first}
	for p.peekKeyword("AND") {
		p.pos++
		q, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if len(qs) == 1 {
		return first, nil
	}
	return bleve.NewConjunctionQuery(qs...), nil
}

func (p *filterParser) parseUnary() (query.Query, error) {
	if p.peekKeyword("NOT") {
		p.pos++
		q, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return negate(q), nil
	}

	if p.pos < len(p.toks) && p.toks[p.pos].kind == tokLParen {
		p.pos++
		q, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.next(); !ok || t.kind != tokRParen {
			return nil, invalidFilter("missing )")
		}
		return q, nil
	}

	return p.parseComparison()
}

func (p *filterParser) parseComparison() (query.Query, error) {
	field, ok := p.next()
	if !ok || field.kind != tokWord {
		return nil, invalidFilter("expected field name")
	}
	if !p.allowed[field.text] {
		return nil, invalidFilter(fmt.Sprintf("field %q is not filterable", field.text))
	}

	op, ok := p.next()
	if !ok || op.kind != tokOp || !validOps[op.text] {
		return nil, invalidFilter(fmt.Sprintf("expected operator after %q", field.text))
	}

	val, ok := p.next()
	if !ok || (val.kind != tokWord && val.kind != tokString) {
		return nil, invalidFilter(fmt.Sprintf("expected value after %s %s", field.text, op.text))
	}

	return comparison(field.text, op.text, val)
}

func comparison(field, op string, val token) (query.Query, error) {
	if val.kind == tokWord {
		if n, err := strconv.ParseFloat(val.text, 64); err == nil {
			return numericComparison(field, op, n), nil
		}
	}
	if at, ok := parseFilterDate(val.text); ok {
		return dateComparison(field, op, at), nil
	}

	switch op {
	case "=":
		q := bleve.NewMatchPhraseQuery(val.text)
		q.SetField(field)
		return q, nil
	case "!=":
		q := bleve.NewMatchPhraseQuery(val.text)
		q.SetField(field)
		return negate(q), nil
	default:
		return nil, invalidFilter(fmt.Sprintf("operator %s needs a number or date, got %q", op, val.text))
	}
}

func parseFilterDate(s string) (time.Time, bool) {
	for _, layout := range filterDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func numericComparison(field, op string, n float64) query.Query {
	var (
		lo, hi         *float64
		loIncl, hiIncl *bool
	)
	t, f := true, false

	switch op {
	case "=", "!=":
		lo, hi, loIncl, hiIncl = &n, &n, &t, &t
	case ">":
		lo, loIncl = &n, &f
	case ">=":
		lo, loIncl = &n, &t
	case "<":
		hi, hiIncl = &n, &f
	case "<=":
		hi, hiIncl = &n, &t
	}

	q := bleve.NewNumericRangeInclusiveQuery(lo, hi, loIncl, hiIncl)
	q.SetField(field)
	if op == "!=" {
		return negate(q)
	}
	return q
}

func dateComparison(field, op string, at time.Time) query.Query {
	var start, end time.Time
	t, f := true, false
	startIncl, endIncl := &t, &t

	switch op {
	case "=", "!=":
		start, end = at, at
	case ">":
		start, startIncl = at, &f
	case ">=":
		start = at
	case "<":
		end, endIncl = at, &f
	case "<=":
		end = at
	}

	q := bleve.NewDateRangeInclusiveQuery(start, end, startIncl, endIncl)
	q.SetField(field)
	if op == "!=" {
		return negate(q)
	}
	return q
}

func negate(q query.Query) query.Query {
	b := bleve.NewBooleanQuery()
	b.AddMust(bleve.NewMatchAllQuery())
	b.AddMustNot(q)
	return b
}

package backend

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	serrors "github.com/ordokr/lmssearch/internal/errors"
)

type page struct {
	limit  int
	offset int
}

// clampPage keeps a request inside the index pagination caps: at most
// MaxPageSize hits per page and never past MaxTotalHits.
func clampPage(limit, offset int, p Pagination) page {
	if limit < 0 {
		limit = 0
	}
	if offset < 0 {
		offset = 0
	}
	if p.MaxPageSize > 0 && limit > p.MaxPageSize {
		limit = p.MaxPageSize
	}
	if p.MaxTotalHits > 0 {
		if offset >= p.MaxTotalHits {
			return page{limit: 0, offset: offset}
		}
		if offset+limit > p.MaxTotalHits {
			limit = p.MaxTotalHits - offset
		}
	}
	return page{limit: limit, offset: offset}
}

func buildSearchRequest(req SearchRequest, s Settings) (*bleve.SearchRequest, page, error) {
	q := textQuery(req.Query, s)

	if strings.TrimSpace(req.Filter) != "" {
		fq, err := ParseFilter(req.Filter, s.FilterableFields)
		if err != nil {
			return nil, page{}, err
		}
		q = bleve.NewConjunctionQuery(q, fq)
	}

	order, err := sortOrder(req.Sort, s.SortableFields)
	if err != nil {
		return nil, page{}, err
	}

	pg := clampPage(req.Limit, req.Offset, s.Pagination)
	sreq := bleve.NewSearchRequestOptions(q, pg.limit, pg.offset, false)
	sreq.Fields = []string{"*"}
	if len(order) > 0 {
		sreq.SortBy(order)
	}
	return sreq, pg, nil
}

// textQuery matches any query term in any searchable field. With typo
// tolerance, terms of 5+ characters allow one edit and 9+ allow two, and the
// last term also matches as a prefix.
func textQuery(text string, s Settings) query.Query {
	terms := strings.Fields(text)
	if len(terms) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(s.SearchableFields) == 0 {
		return bleve.NewMatchQuery(text)
	}

	var qs []query.Query
	for i, term := range terms {
		fuzz := 0
		if s.TypoTolerance {
			fuzz = typoBudget(term)
		}
		for _, field := range s.SearchableFields {
			mq := bleve.NewMatchQuery(term)
			mq.SetField(field)
			mq.SetFuzziness(fuzz)
			qs = append(qs, mq)

			if i == len(terms)-1 {
				pq := bleve.NewPrefixQuery(strings.ToLower(term))
				pq.SetField(field)
				pq.SetBoost(0.5)
				qs = append(qs, pq)
			}
		}
	}
	return bleve.NewDisjunctionQuery(qs...)
}

func typoBudget(term string) int {
	switch n := utf8.RuneCountInString(term); {
	case n >= 9:
		return 2
	case n >= 5:
		return 1
	default:
		return 0
	}
}

// sortOrder converts "field[:asc|:desc]" entries to bleve sort syntax.
// Relevance breaks ties.
func sortOrder(entries []string, sortable []string) ([]string, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	allowed := make(map[string]bool, len(sortable))
	for _, f := range sortable {
		allowed[f] = true
	}

	order := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		field, dir, _ := strings.Cut(strings.TrimSpace(e), ":")
		if !allowed[field] {
			return nil, serrors.ValidationError(serrors.ErrCodeInvalidSort,
				fmt.Sprintf("field %q is not sortable", field), nil)
		}
		switch strings.ToLower(dir) {
		case "", "asc":
			order = append(order, field)
		case "desc":
			order = append(order, "-"+field)
		default:
			return nil, serrors.ValidationError(serrors.ErrCodeInvalidSort,
				fmt.Sprintf("sort direction %q must be asc or desc", dir), nil)
		}
	}
	return append(order, "-_score"), nil
}

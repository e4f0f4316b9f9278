package backend

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/ordokr/lmssearch/internal/store"
)

// fieldKind selects how a document field is indexed.
type fieldKind int

const (
	fieldText fieldKind = iota
	fieldKeyword
	fieldNumeric
	fieldDatetime
)

// collectionFields types the fields of each tracked collection. Fields not
// listed here, and indexes of other names, fall back to dynamic mapping.
var collectionFields = map[string]map[string]fieldKind{
	string(store.KindTopics): {
		"id":            fieldNumeric,
		"title":         fieldText,
		"content":       fieldText,
		"category_id":   fieldNumeric,
		"category_name": fieldText,
		"user_id":       fieldNumeric,
		"created_at":    fieldDatetime,
		"slug":          fieldKeyword,
	},
	string(store.KindCategories): {
		"id":          fieldNumeric,
		"name":        fieldText,
		"description": fieldText,
		"created_at":  fieldDatetime,
		"slug":        fieldKeyword,
	},
}

// newIndexMapping builds the mapping a new index named name is created with.
func newIndexMapping(name string) *mapping.IndexMappingImpl {
	m := bleve.NewIndexMapping()
	m.DefaultAnalyzer = standard.Name

	fields, ok := collectionFields[name]
	if !ok {
		return m
	}
	doc := bleve.NewDocumentMapping()
	for field, kind := range fields {
		doc.AddFieldMappingsAt(field, newFieldMapping(kind))
	}
	m.DefaultMapping = doc
	return m
}

func newFieldMapping(kind fieldKind) *mapping.FieldMapping {
	var fm *mapping.FieldMapping
	switch kind {
	case fieldKeyword:
		fm = bleve.NewKeywordFieldMapping()
	case fieldNumeric:
		fm = bleve.NewNumericFieldMapping()
	case fieldDatetime:
		fm = bleve.NewDateTimeFieldMapping()
	default:
		fm = bleve.NewTextFieldMapping()
		fm.Analyzer = standard.Name
	}
	fm.Store = true
	return fm
}

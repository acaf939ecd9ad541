// Package search is the secondary index over canonical users and organisations.
// Documents are loosely typed maps, queried with AND-equality filters plus an
// optional OR group, the way the directory's search engine is queried.
package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Index names.
const (
	IndexUser         = "user"
	IndexOrganisation = "organisation"
)

// Field names shared by the index documents.
const (
	FieldID             = "id"
	FieldFirstName      = "firstName"
	FieldEmail          = "email"
	FieldPhone          = "phone"
	FieldChannel        = "channel"
	FieldRootOrgID      = "rootOrgId"
	FieldFlagsValue     = "flagsValue"
	FieldStatus         = "status"
	FieldIsDeleted      = "isDeleted"
	FieldUserType       = "userType"
	FieldOrganisations  = "organisations"
	FieldOrganisationID = "organisationId"
	FieldExternalID     = "externalId"
	FieldIsRootOrg      = "isRootOrg"
	FieldHashTagID      = "hashTagId"
)

// DefaultLimit caps a query that does not set one.
const DefaultLimit = 1000

// Query selects documents from one index. Every Filters entry must match; when
// Or is non-empty at least one of its entries must match too. Fields, when set,
// projects each hit down to those keys.
type Query struct {
	Index   string
	Filters map[string]any
	Or      map[string]any
	Fields  []string
	Limit   int
}

func (q Query) limit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	return q.Limit
}

// Document is one indexed record.
type Document map[string]any

// Project returns a copy of d restricted to fields. An empty list keeps everything.
func (d Document) Project(fields []string) Document {
	if len(fields) == 0 {
		out := make(Document, len(d))
		for k, v := range d {
			out[k] = v
		}
		return out
	}
	out := make(Document, len(fields))
	for _, f := range fields {
		if v, ok := d[f]; ok {
			out[f] = v
		}
	}
	return out
}

// String reads a string field; missing or non-string values read as "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

// Int reads a numeric field, tolerating the float64/json.Number forms produced by decoding.
func (d Document) Int(key string) int {
	switch v := d[key].(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	case json.Number:
		n, _ := v.Int64()
		return int(n)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	default:
		return 0
	}
}

// Bool reads a boolean field.
func (d Document) Bool(key string) bool {
	switch v := d[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	default:
		return false
	}
}

// Documents reads a list-of-objects field such as organisations.
func (d Document) Documents(key string) []Document {
	switch v := d[key].(type) {
	case []Document:
		return v
	case []map[string]any:
		out := make([]Document, 0, len(v))
		for _, m := range v {
			out = append(out, Document(m))
		}
		return out
	case []any:
		out := make([]Document, 0, len(v))
		for _, item := range v {
			switch m := item.(type) {
			case map[string]any:
				out = append(out, Document(m))
			case Document:
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// matches evaluates q's filters against d in memory.
func matches(d Document, q Query) bool {
	for k, want := range q.Filters {
		if !valueEqual(d[k], want) {
			return false
		}
	}
	if len(q.Or) == 0 {
		return true
	}
	for k, want := range q.Or {
		if valueEqual(d[k], want) {
			return true
		}
	}
	return false
}

func valueEqual(got, want any) bool {
	if gn, ok := number(got); ok {
		wn, ok := number(want)
		return ok && gn == wn
	}
	return got == want
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

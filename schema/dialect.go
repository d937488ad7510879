package schema

import "strings"

// Dialect identifies one of the four supported JSON Schema dialects.
type Dialect string

// Supported dialects.
const (
	Draft04   Dialect = "draft-04"
	Draft07   Dialect = "draft-07"
	Draft2019 Dialect = "2019-09"
	Draft2020 Dialect = "2020-12"
)

// DefaultDialect is assumed when a schema declares no $schema.
const DefaultDialect = Draft2020

// MetaURI returns the canonical meta-schema URI for the dialect.
func (d Dialect) MetaURI() string {
	switch d {
	case Draft04:
		return "http://json-schema.org/draft-04/schema#"
	case Draft07:
		return "http://json-schema.org/draft-07/schema#"
	case Draft2019:
		return "https://json-schema.org/draft/2019-09/schema"
	case Draft2020:
		return "https://json-schema.org/draft/2020-12/schema"
	}

	return ""
}

// DetectDialect maps a $schema URI onto a supported dialect. Unknown URIs
// and the empty string fall back to [DefaultDialect]; draft-06 is folded
// into draft-07, whose vocabulary is a superset.
func DetectDialect(schemaURI string) (Dialect, bool) {
	uri := strings.TrimSuffix(strings.TrimSpace(schemaURI), "#")

	switch {
	case uri == "":
		return DefaultDialect, false
	case strings.Contains(uri, "draft-04"):
		return Draft04, true
	case strings.Contains(uri, "draft-06"), strings.Contains(uri, "draft-07"):
		return Draft07, true
	case strings.Contains(uri, "2019-09"):
		return Draft2019, true
	case strings.Contains(uri, "2020-12"):
		return Draft2020, true
	}

	return DefaultDialect, false
}

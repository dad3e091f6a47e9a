package cards

import (
	"regexp"

	"anki-sync/core/graph"
	"anki-sync/core/reconcile"
)

// ContentPlaceholder as a property value maps the rendered block to the field.
const ContentPlaceholder = "{{content}}"

// reserved properties drive the sync itself and never become fields.
// Keys are in graph.NormalizeKey form.
var reserved = map[string]struct{}{
	"ankinotetype":              {},
	"id":                        {},
	"deck":                      {},
	"tags":                      {},
	"extra":                     {},
	"template":                  {},
	"disableankisync":           {},
	"usenamespaceasdefaultdeck": {},
}

// Logseq lowercases property keys. These are the field names known to lose
// their casing.
var knownFieldNames = map[string]string{
	"archivedate":  "archiveDate",
	"testvalue":    "testValue",
	"createddate":  "createdDate",
	"modifieddate": "modifiedDate",
	"sourcepage":   "sourcePage",
	"extrainfo":    "extraInfo",
}

var (
	dateSuffix  = regexp.MustCompile(`date$`)
	valueSuffix = regexp.MustCompile(`value$`)
)

// FieldName recovers a field name from a lowercased property key. The
// recovery is a guess; keys it does not recognize pass through.
func FieldName(property string) string {
	if name, ok := knownFieldNames[property]; ok {
		return name
	}
	if len(property) > 6 && dateSuffix.MatchString(property) {
		return dateSuffix.ReplaceAllString(property, "Date")
	}
	if len(property) > 6 && valueSuffix.MatchString(property) {
		return valueSuffix.ReplaceAllString(property, "Value")
	}
	return property
}

// MapFields maps every non-reserved property to a field. Multi-valued
// properties are joined with ", ".
func MapFields(props graph.Properties, html string) reconcile.CustomFields {
	fields := make(reconcile.CustomFields, len(props))
	for key := range props {
		if _, skip := reserved[graph.NormalizeKey(key)]; skip {
			continue
		}
		value := props.String(key)
		if value == ContentPlaceholder {
			value = html
		}
		fields[FieldName(key)] = value
	}
	return fields
}

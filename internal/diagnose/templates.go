package diagnose

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/seantiz/timegrid/internal/model"
)

// match holds what a template extracted from a diagnostic message.
type match struct {
	EntityType string
	EntityID   string
	Field      string
	Day        string
	Ref        string
	RefID      string
	Expected   *int
	Actual     *int
}

// template is one row of the classification table. message is rendered with
// {placeholders} from the match; an empty message means the row only
// identifies the entity and the cleaned-up raw text is shown instead.
type template struct {
	name    string
	pattern *regexp.Regexp
	extract func(m []string) match
	message string
}

const entityAlt = `(teacher|class|subject|room|period)`

// templates is checked in order; the first row whose pattern matches wins.
// Specific phrasings come first, then bare entity keywords, then the
// catch-all.
var templates = []template{
	{
		name:    "availability_day_length",
		pattern: regexp.MustCompile(`(?i)\b` + entityAlt + `\s+'([^']*)'\s+availability\s+for\s+'([^']*)'\s+has\s+incorrect\s+length\W*expected\s+(\d+),?\s+got\s+(\d+)`),
		extract: func(m []string) match {
			return match{
				EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: "availability", Day: m[3],
				Expected: atoiPtr(m[4]), Actual: atoiPtr(m[5]),
			}
		},
		message: "{entity} '{id}' has {actual} periods of availability on {day}, but each day has {expected} periods.",
	},
	{
		name:    "availability_day_count",
		pattern: regexp.MustCompile(`(?i)\b` + entityAlt + `\s+'([^']*)'\s+availability\s+has\s+incorrect\s+number\s+of\s+days\W*expected\s+(\d+),?\s+got\s+(\d+)`),
		extract: func(m []string) match {
			return match{
				EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: "availability",
				Expected: atoiPtr(m[3]), Actual: atoiPtr(m[4]),
			}
		},
		message: "{entity} '{id}' has availability for {actual} days, but the week has {expected} days.",
	},
	{
		name:    "unknown_reference",
		pattern: regexp.MustCompile(`(?i)\b` + entityAlt + `\s+'([^']*)'\s+references\s+(?:an\s+)?unknown\s+` + entityAlt + `\s*'?([^'\s]*)'?`),
		extract: func(m []string) match {
			ref := strings.ToLower(m[3])
			return match{
				EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: ref + "Id",
				Ref: ref, RefID: m[4],
			}
		},
		message: "{entity} '{id}' refers to {ref} '{refid}', which does not exist.",
	},
	{
		name:    "duplicate_id",
		pattern: regexp.MustCompile(`(?i)\bduplicate\s+` + entityAlt + `\s+id\s*:?\s*'?([^'\s]+)'?`),
		extract: func(m []string) match {
			return match{EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: "id"}
		},
		message: "More than one {entity_lower} uses the id '{id}'.",
	},
	{
		name:    "missing_field",
		pattern: regexp.MustCompile(`(?i)\b` + entityAlt + `\s+'([^']*)'\s+is\s+missing\s+(?:required\s+)?field\s+'([^']+)'`),
		extract: func(m []string) match {
			return match{EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: m[3]}
		},
		message: "{entity} '{id}' is missing the required field '{field}'.",
	},
	{
		name:    "invalid_field",
		pattern: regexp.MustCompile(`(?i)\b` + entityAlt + `\s+'([^']*)'\s+(?:has\s+(?:an\s+)?)?invalid\s+(?:value\s+for\s+)?(?:field\s+)?'?(\w+)'?`),
		extract: func(m []string) match {
			return match{EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: m[3]}
		},
		message: "{entity} '{id}' has an invalid value for '{field}'.",
	},
	{
		name:    "field_location",
		pattern: regexp.MustCompile(`(?i)\b(teachers|classes|subjects|rooms|periods)\.(\d+)\.(\w+)`),
		extract: func(m []string) match {
			return match{EntityType: canonicalEntity(m[1]), EntityID: m[2], Field: m[3]}
		},
		message: "{entity} entry {id} has an invalid value for '{field}'.",
	},
	keywordRow(model.EntityRoom, `rooms?`),
	keywordRow(model.EntitySubject, `subjects?`),
	keywordRow(model.EntityPeriod, `periods?`),
	{
		name:    "unclassified",
		pattern: regexp.MustCompile(`(?s).*`),
		extract: func([]string) match { return match{} },
	},
}

func keywordRow(entity, word string) template {
	return template{
		name:    "keyword_" + strings.ToLower(entity),
		pattern: regexp.MustCompile(`(?i)\b` + word + `\b`),
		extract: func([]string) match { return match{EntityType: entity} },
	}
}

// lookup returns the first table row matching msg and what it extracted.
func lookup(msg string) (template, match) {
	for _, t := range templates {
		if m := t.pattern.FindStringSubmatch(msg); m != nil {
			return t, t.extract(m)
		}
	}
	last := templates[len(templates)-1]
	return last, match{}
}

func (t template) render(m match) string {
	if t.message == "" {
		return ""
	}
	r := strings.NewReplacer(
		"{entity}", m.EntityType,
		"{entity_lower}", strings.ToLower(m.EntityType),
		"{id}", m.EntityID,
		"{field}", m.Field,
		"{day}", m.Day,
		"{ref}", m.Ref,
		"{refid}", m.RefID,
		"{expected}", intString(m.Expected),
		"{actual}", intString(m.Actual),
	)
	return r.Replace(t.message)
}

// canonicalEntity maps any casing or plural of an entity word to its
// model.Entity* constant.
func canonicalEntity(word string) string {
	switch strings.ToLower(word) {
	case "teacher", "teachers":
		return model.EntityTeacher
	case "class", "classes":
		return model.EntityClass
	case "subject", "subjects":
		return model.EntitySubject
	case "room", "rooms":
		return model.EntityRoom
	case "period", "periods":
		return model.EntityPeriod
	}
	return ""
}

func atoiPtr(s string) *int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	return &n
}

func intString(p *int) string {
	if p == nil {
		return "?"
	}
	return strconv.Itoa(*p)
}

package representation

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/acksell/registers/entry"
)

// Turtle renders entries as RDF Turtle. Each entry is a subject named by
// its hash; field values become literals or IRIs according to Links.
type Turtle struct {
	Links Links
}

func (Turtle) Suffix() string      { return "ttl" }
func (Turtle) ContentType() string { return "text/turtle; charset=utf-8" }

func (t Turtle) Encode(e entry.Entry) ([]byte, error) {
	return t.EncodeMany([]entry.Entry{e})
}

func (t Turtle) EncodeMany(entries []entry.Entry) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("@prefix field: <" + t.fieldNamespace() + "> .\n")
	for _, e := range entries {
		buf.WriteByte('\n')
		subject := "</hash/" + escapeIRI(e.Hash) + ">"
		names := entry.Schema(e.Fields)
		if len(names) == 0 {
			// A subject needs at least one predicate.
			buf.WriteString("# " + subject + " has no fields\n")
			continue
		}
		buf.WriteString(subject)
		for i, name := range names {
			buf.WriteString("\n\t" + t.predicate(name) + " ")
			for j, v := range e.Fields[name].Strings() {
				if j > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString(t.object(name, v))
			}
			if i < len(names)-1 {
				buf.WriteString(" ;")
			} else {
				buf.WriteString(" .\n")
			}
		}
	}
	return buf.Bytes(), nil
}

func (t Turtle) fieldNamespace() string {
	return "http://field." + t.Links.Domain + "/field/"
}

var prefixedName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

func (t Turtle) predicate(name string) string {
	if prefixedName.MatchString(name) {
		return "field:" + name
	}
	return "<" + t.fieldNamespace() + escapeIRI(name) + ">"
}

func (t Turtle) object(field, value string) string {
	if iri, ok := t.Links.IRI(field, value); ok {
		return "<" + escapeIRI(iri) + ">"
	}
	return quoteLiteral(value)
}

var literalEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func quoteLiteral(s string) string {
	return `"` + literalEscaper.Replace(s) + `"`
}

var iriEscaper = strings.NewReplacer(
	"<", "%3C",
	">", "%3E",
	`"`, "%22",
	" ", "%20",
	"{", "%7B",
	"}", "%7D",
	"|", "%7C",
	`\`, "%5C",
	"^", "%5E",
	"`", "%60",
)

func escapeIRI(s string) string {
	return iriEscaper.Replace(s)
}

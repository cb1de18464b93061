package representation

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// LinkKind selects how a field's values are rendered.
type LinkKind int

const (
	// Plain values are literals.
	Plain LinkKind = iota
	// URL values are already IRIs.
	URL
	// Self values link to the entry in this register with that field value.
	Self
	// Hash values link to an entry in this register by hash.
	Hash
	// Register values link to an entry in another register.
	Register
)

func (k LinkKind) String() string {
	switch k {
	case Plain:
		return "plain"
	case URL:
		return "url"
	case Self:
		return "self"
	case Hash:
		return "hash"
	case Register:
		return "register"
	default:
		return fmt.Sprintf("LinkKind(%d)", int(k))
	}
}

// Link is the rendering strategy for one field.
type Link struct {
	Kind LinkKind
	// Register names the target register of a Register link.
	Register string
	// Field is the target field of Self and Register links.
	Field string
}

func PlainLink() Link                      { return Link{Kind: Plain} }
func URLLink() Link                        { return Link{Kind: URL} }
func HashLink() Link                       { return Link{Kind: Hash} }
func SelfLink(field string) Link           { return Link{Kind: Self, Field: field} }
func RegisterLink(name, field string) Link { return Link{Kind: Register, Register: name, Field: field} }

// ParseLink parses the textual form used in configuration:
//
//	plain | url | hash | self:<field> | register:<name>/<field>
func ParseLink(s string) (Link, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	var l Link
	switch kind {
	case "plain":
		l = PlainLink()
	case "url":
		l = URLLink()
	case "hash":
		l = HashLink()
	case "self":
		l = SelfLink(arg)
	case "register":
		name, field, ok := strings.Cut(arg, "/")
		if !ok {
			return Link{}, fmt.Errorf("link %q: want register:<name>/<field>", s)
		}
		l = RegisterLink(name, field)
	default:
		return Link{}, fmt.Errorf("link %q: unknown strategy %q", s, kind)
	}
	if err := l.validate(); err != nil {
		return Link{}, fmt.Errorf("link %q: %w", s, err)
	}
	return l, nil
}

func (l Link) String() string {
	switch l.Kind {
	case Self:
		return "self:" + l.Field
	case Register:
		return "register:" + l.Register + "/" + l.Field
	default:
		return l.Kind.String()
	}
}

func (l Link) validate() error {
	switch l.Kind {
	case Plain, URL, Hash:
		return nil
	case Self:
		if l.Field == "" {
			return errors.New("self link needs a field")
		}
	case Register:
		if l.Register == "" || l.Field == "" {
			return errors.New("register link needs a register and a field")
		}
		if l.Register != strings.ToLower(l.Register) || strings.ContainsAny(l.Register, "./") {
			return fmt.Errorf("invalid register name %q", l.Register)
		}
	default:
		return fmt.Errorf("unknown link kind %d", l.Kind)
	}
	return nil
}

// Links is the field name to strategy table. Fields not in the table are
// Plain.
type Links struct {
	// Domain is the parent domain registers are served under, used for
	// cross-register links.
	Domain string
	fields map[string]Link
}

// NewLinks returns a table for domain.
func NewLinks(domain string, fields map[string]Link) Links {
	l := Links{Domain: domain, fields: make(map[string]Link, len(fields))}
	for k, v := range fields {
		l.fields[k] = v
	}
	return l
}

// DefaultLinks returns the table of the well-known register fields.
func DefaultLinks(domain string) Links {
	return NewLinks(domain, map[string]Link{
		"sameAs":         URLLink(),
		"hash":           HashLink(),
		"name":           SelfLink("name"),
		"address":        RegisterLink("address", "hash"),
		"addressCountry": RegisterLink("country", "addressCountry"),
		"register":       RegisterLink("register", "register"),
		"field":          RegisterLink("field", "field"),
		"fields":         RegisterLink("field", "field"),
	})
}

// ParseLinks parses a table in its configuration form. Every malformed
// strategy is reported.
func ParseLinks(domain string, raw map[string]string) (Links, error) {
	fields := make(map[string]Link, len(raw))
	var errs []error
	for name, s := range raw {
		l, err := ParseLink(s)
		if err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
			continue
		}
		fields[name] = l
	}
	if err := errors.Join(errs...); err != nil {
		return Links{}, err
	}
	return NewLinks(domain, fields), nil
}

// With returns a copy of l with overrides applied on top.
func (l Links) With(overrides Links) Links {
	out := NewLinks(l.Domain, l.fields)
	for k, v := range overrides.fields {
		out.fields[k] = v
	}
	return out
}

// Lookup returns the strategy for field.
func (l Links) Lookup(field string) Link {
	if link, ok := l.fields[field]; ok {
		return link
	}
	return PlainLink()
}

// Fields returns the field names with a declared strategy, sorted.
func (l Links) Fields() []string {
	out := make([]string, 0, len(l.fields))
	for k := range l.fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Validate checks every strategy and that every declared field is in known.
// A nil known skips the field check. Register links need a Domain.
func (l Links) Validate(known []string) error {
	set := make(map[string]bool, len(known))
	for _, k := range known {
		set[k] = true
	}
	var errs []error
	for _, name := range l.Fields() {
		if known != nil && !set[name] {
			errs = append(errs, fmt.Errorf("link for unknown field %q", name))
		}
		if l.fields[name].Kind == Register && l.Domain == "" {
			errs = append(errs, fmt.Errorf("field %q: register link needs a domain", name))
		}
		if err := l.fields[name].validate(); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// IRI returns the link target for a value of field. ok is false for Plain
// fields.
func (l Links) IRI(field, value string) (iri string, ok bool) {
	link := l.Lookup(field)
	switch link.Kind {
	case URL:
		return value, true
	case Hash:
		return "/hash/" + url.PathEscape(value), true
	case Self:
		return "/" + link.Field + "/" + url.PathEscape(value), true
	case Register:
		return fmt.Sprintf("http://%s.%s/%s/%s", link.Register, l.Domain, link.Field, url.PathEscape(value)), true
	default:
		return "", false
	}
}

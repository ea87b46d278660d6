package text

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

// NewSemanticBuilder returns the registry used for vector indexing. It
// renders each object as a short markdown document with links of the
// form [label](/class/id). Tags get no semantic document.
func NewSemanticBuilder(dates gramps.DateFormatter) *Registry {
	if dates == nil {
		dates = gramps.ISOFormatter{}
	}
	s := semantic{dates: dates}
	return NewRegistry(
		personText{s},
		familyText{s},
		eventText{s},
		placeText{s},
		citationText{s},
		sourceText{s},
		repositoryText{s},
		mediaText{s},
		noteText{s},
	)
}

var none PString

// semantic holds the helpers shared by the per-class builders.
type semantic struct {
	dates gramps.DateFormatter
}

func (s semantic) date(d gramps.Date) string {
	if d.IsEmpty() {
		return ""
	}
	return s.dates.Format(d)
}

func link(label string, class gramps.Class, id string) string {
	return fmt.Sprintf("[%s](/%s/%s)", label, class.Lower(), id)
}

func linked(label PString, class gramps.Class, id string) PString {
	return Concat(Plain("["), label, Plain(fmt.Sprintf("](/%s/%s)", class.Lower(), id)))
}

func nameText(n gramps.Name) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.FirstName, n.PrimarySurname(), n.Suffix} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// personName renders the primary name, replaced by "N. N." in the
// public rendering when the person or the name is private.
func personName(p *gramps.Person) PString {
	name := nameText(p.PrimaryName)
	if p.Private || p.PrimaryName.Private {
		return Concat(Private(name), PublicOnly("N. N."))
	}
	return Plain(name)
}

func personLink(p *gramps.Person) PString {
	return linked(personName(p), gramps.ClassPerson, p.GrampsID)
}

func pronouns(g gramps.Gender) (possessive, personal string) {
	switch g {
	case gramps.GenderFemale:
		return "her", "she"
	case gramps.GenderMale:
		return "his", "he"
	default:
		return "their", "they"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// personLine renders a linked person name followed by life dates.
func (s semantic) personLine(ctx context.Context, db gramps.Database, p *gramps.Person) (PString, error) {
	birth, err := s.refDate(ctx, db, p, p.BirthRefIndex)
	if err != nil {
		return none, err
	}
	death, err := s.refDate(ctx, db, p, p.DeathRefIndex)
	if err != nil {
		return none, err
	}
	dates := Join(", ", []PString{
		Wrap(Plain("born "), birth, none),
		Wrap(Plain("died "), death, none),
	})
	return Concat(personLink(p), Wrap(Plain(" ("), dates, Plain(")"))), nil
}

func (s semantic) refDate(ctx context.Context, db gramps.Database, p *gramps.Person, idx int) (PString, error) {
	if idx < 0 || idx >= len(p.EventRefs) {
		return none, nil
	}
	ref := p.EventRefs[idx]
	event, err := gramps.GetEvent(ctx, db, ref.Ref)
	if errors.Is(err, gramps.ErrHandleNotFound) {
		return none, nil
	}
	if err != nil {
		return none, err
	}
	d := s.date(event.Date)
	if d == "" {
		return none, nil
	}
	return PrivateIf(ref.Private || event.Private, Plain(d)), nil
}

// eventLine renders a linked event type with date, place and
// description.
func (s semantic) eventLine(ctx context.Context, db gramps.Database, e *gramps.Event) (PString, error) {
	label := e.Type
	if label == "" {
		label = e.GrampsID
	}
	out := Plain(link(label, gramps.ClassEvent, e.GrampsID))
	date := s.date(e.Date)
	if date != "" {
		out = Concat(out, Plain(": "+date))
	}
	if e.Place != "" {
		place, err := gramps.GetPlace(ctx, db, e.Place)
		switch {
		case errors.Is(err, gramps.ErrHandleNotFound):
		case err != nil:
			return none, err
		default:
			in := " in " + link(place.DisplayName(), gramps.ClassPlace, place.GrampsID)
			out = Concat(out, PrivateIf(place.Private, Plain(in)))
		}
	}
	if e.Description != "" {
		if date != "" || e.Place != "" {
			out = Concat(out, Plain(" - "+e.Description))
		} else {
			out = Concat(out, Plain(" "+e.Description))
		}
	}
	return out, nil
}

// placeLine renders a linked place name followed by its enclosing
// places.
func (s semantic) placeLine(ctx context.Context, db gramps.Database, p *gramps.Place) (PString, error) {
	out := Plain(link(p.DisplayName(), gramps.ClassPlace, p.GrampsID))
	parents, err := placeParents(ctx, db, p)
	if err != nil {
		return none, err
	}
	if parents != "" {
		out = Concat(out, Plain(", "+parents))
	}
	return out, nil
}

func placeParents(ctx context.Context, db gramps.Database, p *gramps.Place) (string, error) {
	levels, err := gramps.LocationList(ctx, db, p)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(levels))
	for _, l := range levels[1:] {
		if l.Name != "" {
			names = append(names, l.Name)
		}
	}
	return strings.Join(names, ", "), nil
}

// tags renders "<prefix>tag1, tag2. " or nothing without tags.
func (s semantic) tags(ctx context.Context, db gramps.Database, obj gramps.Object, prefix PString) (PString, error) {
	var names []string
	for _, h := range obj.Tags() {
		tag, err := gramps.GetTag(ctx, db, h)
		if errors.Is(err, gramps.ErrHandleNotFound) {
			continue
		}
		if err != nil {
			return none, err
		}
		names = append(names, tag.Name)
	}
	return Wrap(prefix, Plain(strings.Join(names, ", ")), Plain(". ")), nil
}

// roleGroups collects lines per role in order of first appearance.
type roleGroups struct {
	order []string
	lines map[string][]PString
}

func (g *roleGroups) add(role string, line PString) {
	if g.lines == nil {
		g.lines = make(map[string][]PString)
	}
	if _, ok := g.lines[role]; !ok {
		g.order = append(g.order, role)
	}
	g.lines[role] = append(g.lines[role], line)
}

func isNotFound(err error) bool {
	return errors.Is(err, gramps.ErrHandleNotFound)
}

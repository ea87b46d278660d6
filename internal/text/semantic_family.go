package text

import (
	"context"
	"errors"
	"fmt"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

type familyText struct{ semantic }

func (familyText) Class() gramps.Class { return gramps.ClassFamily }

func (b familyText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	f := obj.(*gramps.Family)
	father, err := optionalPerson(ctx, db, f.FatherHandle)
	if err != nil {
		return none, err
	}
	mother, err := optionalPerson(ctx, db, f.MotherHandle)
	if err != nil {
		return none, err
	}

	name := linked(familyTitle(father, mother), gramps.ClassFamily, f.GrampsID)
	out := Concat(Plain("## Family: "), name, Plain("\n"))
	out = Concat(out,
		Plain("This document contains information about the family "), name,
		Plain(": The name and life dates of the parents, the names and life dates of all children, "+
			"and the events the family participated in, such as marriage and residence. "),
	)

	for _, parent := range []struct {
		label  string
		person *gramps.Person
	}{{"father", father}, {"mother", mother}} {
		if parent.person == nil {
			continue
		}
		line, err := b.personLine(ctx, db, parent.person)
		if err != nil {
			return none, err
		}
		line = Concat(Plain(fmt.Sprintf("The family's %s was ", parent.label)), line, Plain(". "))
		out = Concat(out, PrivateIf(parent.person.Private, line))
	}

	if f.Type != "" {
		out = Concat(out, Plain(fmt.Sprintf("Their relationship was: %s. ", f.Type)))
	}

	events, err := b.events(ctx, db, f)
	if err != nil {
		return none, err
	}
	out = Concat(out, Wrap(Concat(name, Plain(" had the following family events: ")), events, Plain(". ")))

	children, err := b.children(ctx, db, f, name)
	if err != nil {
		return none, err
	}
	out = Concat(out, children)

	tags, err := b.tags(ctx, db, f, Plain("The family has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

func optionalPerson(ctx context.Context, db gramps.Database, handle string) (*gramps.Person, error) {
	if handle == "" {
		return nil, nil
	}
	p, err := gramps.GetPerson(ctx, db, handle)
	if errors.Is(err, gramps.ErrHandleNotFound) {
		return nil, nil
	}
	return p, err
}

// familyTitle renders "Father and Mother" with placeholders for absent
// or private parents.
func familyTitle(father, mother *gramps.Person) PString {
	return Concat(parentName(father, "Unknown father"), Plain(" and "), parentName(mother, "unknown mother"))
}

func parentName(p *gramps.Person, placeholder string) PString {
	if p == nil {
		return Plain(placeholder)
	}
	name := nameText(p.PrimaryName)
	if p.Private || p.PrimaryName.Private {
		return Concat(Private(name), PublicOnly(placeholder))
	}
	return Plain(name)
}

func (b familyText) events(ctx context.Context, db gramps.Database, f *gramps.Family) (PString, error) {
	var lines []PString
	for _, ref := range f.EventRefs {
		event, err := gramps.GetEvent(ctx, db, ref.Ref)
		if errors.Is(err, gramps.ErrHandleNotFound) {
			continue
		}
		if err != nil {
			return none, err
		}
		line, err := b.eventLine(ctx, db, event)
		if err != nil {
			return none, err
		}
		lines = append(lines, PrivateIf(ref.Private || event.Private, line))
	}
	return Join("; ", lines), nil
}

func (b familyText) children(ctx context.Context, db gramps.Database, f *gramps.Family, name PString) (PString, error) {
	var lines []PString
	for _, ref := range f.ChildRefs {
		child, err := gramps.GetPerson(ctx, db, ref.Ref)
		if errors.Is(err, gramps.ErrHandleNotFound) {
			continue
		}
		if err != nil {
			return none, err
		}
		line, err := b.personLine(ctx, db, child)
		if err != nil {
			return none, err
		}
		if !isBirthRel(ref.FatherRel) || !isBirthRel(ref.MotherRel) {
			line = Concat(line, Plain(fmt.Sprintf(" (relation to father: %s, relation to mother: %s)",
				orUnknown(ref.FatherRel), orUnknown(ref.MotherRel))))
		}
		lines = append(lines, PrivateIf(ref.Private || child.Private, line))
	}
	return Wrap(Concat(name, Plain(" had the following children: ")), Join(", ", lines), Plain(". ")), nil
}

func isBirthRel(rel string) bool {
	return rel == "" || rel == gramps.ChildRelBirth
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

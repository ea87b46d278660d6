package text

import (
	"context"
	"errors"
	"fmt"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

type personText struct{ semantic }

func (personText) Class() gramps.Class { return gramps.ClassPerson }

func (b personText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	p := obj.(*gramps.Person)
	name := personLink(p)
	poss, pers := pronouns(p.Gender)

	out := Concat(Plain("## Person: "), name, Plain("\n"))
	out = Concat(out,
		Plain("This document contains information about the person "), name,
		Plain(fmt.Sprintf(": %s name, life dates, and the events %s participated in, "+
			"such as birth, death, occupation, education, religious events, and others. ", poss, pers)),
	)

	for _, n := range p.AlternateNames {
		text := nameText(n)
		if text == "" {
			continue
		}
		kind := n.Type
		if kind == "" {
			kind = "alternate name"
		}
		out = Concat(out, PrivateIf(n.Private, Plain(fmt.Sprintf("%s %s is %s. ", capitalize(poss), kind, text))))
	}

	events, err := b.events(ctx, db, p, name)
	if err != nil {
		return none, err
	}
	out = Concat(out, events)

	assoc, err := b.associations(ctx, db, p, name)
	if err != nil {
		return none, err
	}
	out = Concat(out, assoc)

	tags, err := b.tags(ctx, db, p, Concat(Plain(" "), name, Plain(" has the following tags in the database: ")))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

func (b personText) events(ctx context.Context, db gramps.Database, p *gramps.Person, name PString) (PString, error) {
	var primary []PString
	var other roleGroups
	for _, ref := range p.EventRefs {
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
		line = PrivateIf(ref.Private || event.Private, line)
		if ref.Role == gramps.RolePrimary || ref.Role == "" {
			primary = append(primary, line)
			continue
		}
		other.add(ref.Role, Wrap(none, line, Plain(" ("+ref.Role+")")))
	}

	out := Wrap(Concat(name, Plain(" had the following personal events: ")), Join("; ", primary), Plain(". "))
	var roles []PString
	for _, role := range other.order {
		roles = append(roles, Join("; ", other.lines[role]))
	}
	out = Concat(out, Wrap(
		Concat(name, Plain(" participated in the following events: ")),
		Join("; ", roles),
		Plain(". "),
	))
	return out, nil
}

func (b personText) associations(ctx context.Context, db gramps.Database, p *gramps.Person, name PString) (PString, error) {
	out := none
	for _, ref := range p.PersonRefs {
		other, err := gramps.GetPerson(ctx, db, ref.Ref)
		if errors.Is(err, gramps.ErrHandleNotFound) {
			continue
		}
		if err != nil {
			return none, err
		}
		var rel PString
		if ref.Rel == gramps.AssociationDNA {
			rel = Plain(" has a DNA match with ")
		} else {
			rel = Plain(fmt.Sprintf(" has an association of type %s with ", ref.Rel))
		}
		line := Concat(Plain(" "), name, rel, personLink(other), Plain(". "))
		out = Concat(out, PrivateIf(ref.Private || other.Private, line))
	}
	return out, nil
}

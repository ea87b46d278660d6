package text

import (
	"context"
	"fmt"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

type eventText struct{ semantic }

func (eventText) Class() gramps.Class { return gramps.ClassEvent }

func (b eventText) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	e := obj.(*gramps.Event)
	name := link(e.GrampsID, gramps.ClassEvent, e.GrampsID)

	out := Plain("## Event: " + name + "\n" +
		"This document contains information about the event " + e.GrampsID +
		", such as when and where it happened and who participated in it. ")
	if e.Type != "" {
		out = Concat(out, Plain(fmt.Sprintf("It was an event of type %s. ", e.Type)))
	}
	if d := b.date(e.Date); d != "" {
		out = Concat(out, Plain(fmt.Sprintf("It happened on the following date: %s. ", d)))
	}
	if e.Place != "" {
		place, err := optionalPlace(ctx, db, e.Place)
		if err != nil {
			return none, err
		}
		if place != nil {
			line, err := b.placeLine(ctx, db, place)
			if err != nil {
				return none, err
			}
			out = Concat(out, PrivateIf(place.Private, Concat(Plain("The event location was "), line, Plain(". "))))
		}
	}
	if e.Description != "" {
		out = Concat(out, Plain("The event description is as follows: \""+e.Description+"\". "))
	}

	participants, err := b.participants(ctx, db, e)
	if err != nil {
		return none, err
	}
	out = Concat(out, participants)

	tags, err := b.tags(ctx, db, e, Plain("The event has the following tags in the database: "))
	if err != nil {
		return none, err
	}
	return Concat(out, tags), nil
}

func (b eventText) participants(ctx context.Context, db gramps.Database, e *gramps.Event) (PString, error) {
	parts, err := gramps.EventParticipants(ctx, db, e.Handle)
	if err != nil {
		return none, err
	}

	var people roleGroups
	seen := make(map[string]bool)
	for _, pp := range parts.People {
		key := pp.Role + "\x00" + pp.Person.Handle
		if seen[key] {
			continue
		}
		seen[key] = true
		private := pp.Person.Private || allRefsPrivate(pp.Person.EventRefs, e.Handle)
		people.add(pp.Role, PrivateIf(private, personLink(pp.Person)))
	}

	out := none
	for _, role := range people.order {
		var prefix string
		if role == gramps.RolePrimary {
			prefix = "The primary participant of the event was "
		} else {
			prefix = fmt.Sprintf("The participants with role %s of the event were ", role)
		}
		out = Concat(out, Wrap(Plain(prefix), Join(", ", people.lines[role]), Plain(". ")))
	}

	var families []PString
	for _, fp := range parts.Families {
		if fp.Role != gramps.RoleFamily || seen["\x00family\x00"+fp.Family.Handle] {
			continue
		}
		seen["\x00family\x00"+fp.Family.Handle] = true
		father, err := optionalPerson(ctx, db, fp.Family.FatherHandle)
		if err != nil {
			return none, err
		}
		mother, err := optionalPerson(ctx, db, fp.Family.MotherHandle)
		if err != nil {
			return none, err
		}
		line := linked(familyTitle(father, mother), gramps.ClassFamily, fp.Family.GrampsID)
		private := fp.Family.Private || allRefsPrivate(fp.Family.EventRefs, e.Handle)
		families = append(families, PrivateIf(private, line))
	}
	out = Concat(out, Wrap(Plain("The primary participant family of the event was "), Join(", ", families), Plain(". ")))
	return out, nil
}

// allRefsPrivate reports whether every reference to event in refs is
// private.
func allRefsPrivate(refs []gramps.EventRef, event string) bool {
	found := false
	for _, r := range refs {
		if r.Ref != event {
			continue
		}
		if !r.Private {
			return false
		}
		found = true
	}
	return found
}

func optionalPlace(ctx context.Context, db gramps.Database, handle string) (*gramps.Place, error) {
	p, err := gramps.GetPlace(ctx, db, handle)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return p, nil
}

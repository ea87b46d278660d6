package text

import (
	"context"
	"errors"
	"strings"

	"github.com/gramps-project/grampsindex/internal/gramps"
)

// collector gathers the strings of an object for keyword indexing.
// Strings from private sub-objects go only to the complete rendering.
type collector struct {
	public  []string
	private []string
}

func (c *collector) add(private bool, strs ...string) {
	for _, s := range strs {
		if s == "" {
			continue
		}
		if private {
			c.private = append(c.private, s)
		} else {
			c.public = append(c.public, s)
		}
	}
}

func (c *collector) addName(private bool, n gramps.Name) {
	private = private || n.Private
	c.add(private, n.FirstName, n.Call, n.Nick, n.Title, n.Suffix, n.FamilyNick)
	for _, s := range n.Surnames {
		c.add(private, s.Surname, s.Prefix, s.Connector)
	}
}

func (c *collector) addAttributes(attrs []gramps.Attribute) {
	for _, a := range attrs {
		c.add(a.Private, a.Value)
	}
}

func (c *collector) addLocation(private bool, l gramps.Location) {
	c.add(private, l.Street, l.Locality, l.City, l.County, l.State, l.Country, l.Postal, l.Phone)
}

func (c *collector) addAddresses(addrs []gramps.Address) {
	for _, a := range addrs {
		c.addLocation(a.Private, a.Location)
	}
}

func (c *collector) addURLs(urls []gramps.URL) {
	for _, u := range urls {
		c.add(u.Private, u.Path, u.Desc)
	}
}

// addPersonName adds the primary name of the referenced person. Names
// of private people never reach the public rendering.
func (c *collector) addPersonName(ctx context.Context, db gramps.Database, private bool, handle string) error {
	if handle == "" {
		return nil
	}
	person, err := gramps.GetPerson(ctx, db, handle)
	if errors.Is(err, gramps.ErrHandleNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	c.addName(private || person.Private, person.PrimaryName)
	return nil
}

func (c *collector) pstring() PString {
	all := make([]string, 0, len(c.public)+len(c.private))
	all = append(all, c.public...)
	all = append(all, c.private...)
	return FromPair(processStrings(c.public), processStrings(all))
}

// processStrings deduplicates strs, puts the ASCII-folded variant of a
// string right after it and joins everything with spaces.
func processStrings(strs []string) string {
	seen := make(map[string]bool, len(strs))
	out := make([]string, 0, len(strs))
	for _, s := range strs {
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if folded := FoldASCII(s); folded != s && !seen[folded] {
			seen[folded] = true
			out = append(out, folded)
		}
	}
	return strings.Join(out, " ")
}

type keywordCollectFunc func(ctx context.Context, db gramps.Database, obj gramps.Object, c *collector) error

type keywordClass struct {
	class   gramps.Class
	collect keywordCollectFunc
}

func (k keywordClass) Class() gramps.Class { return k.class }

func (k keywordClass) Build(ctx context.Context, db gramps.Database, obj gramps.Object) (PString, error) {
	c := &collector{}
	if err := k.collect(ctx, db, obj, c); err != nil {
		return PString{}, err
	}
	return c.pstring(), nil
}

// NewKeywordBuilder returns the registry used for full-text indexing:
// the object's own text fields and those of its sub-objects, plus the
// names of the people a family or event refers to.
func NewKeywordBuilder() *Registry {
	return NewRegistry(
		keywordClass{gramps.ClassPerson, collectPerson},
		keywordClass{gramps.ClassFamily, collectFamily},
		keywordClass{gramps.ClassEvent, collectEvent},
		keywordClass{gramps.ClassPlace, collectPlace},
		keywordClass{gramps.ClassCitation, collectCitation},
		keywordClass{gramps.ClassSource, collectSource},
		keywordClass{gramps.ClassRepository, collectRepository},
		keywordClass{gramps.ClassMedia, collectMedia},
		keywordClass{gramps.ClassNote, collectNote},
		keywordClass{gramps.ClassTag, collectTag},
	)
}

func collectPerson(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	p := obj.(*gramps.Person)
	c.add(false, p.GrampsID)
	c.addName(false, p.PrimaryName)
	for _, n := range p.AlternateNames {
		c.addName(false, n)
	}
	c.addAddresses(p.Addresses)
	c.addAttributes(p.Attributes)
	c.addURLs(p.URLs)
	for _, r := range p.EventRefs {
		c.add(r.Private, r.Role)
	}
	for _, r := range p.PersonRefs {
		c.add(r.Private, r.Rel)
	}
	return nil
}

func collectFamily(ctx context.Context, db gramps.Database, obj gramps.Object, c *collector) error {
	f := obj.(*gramps.Family)
	c.add(false, f.GrampsID)
	c.addAttributes(f.Attributes)
	if err := c.addPersonName(ctx, db, false, f.FatherHandle); err != nil {
		return err
	}
	return c.addPersonName(ctx, db, false, f.MotherHandle)
}

func collectEvent(ctx context.Context, db gramps.Database, obj gramps.Object, c *collector) error {
	e := obj.(*gramps.Event)
	c.add(false, e.Description, e.GrampsID, e.Type)
	c.addAttributes(e.Attributes)

	participants, err := gramps.EventParticipants(ctx, db, e.Handle)
	if err != nil {
		return err
	}
	for _, pp := range participants.People {
		if pp.Role != gramps.RolePrimary {
			continue
		}
		c.addName(pp.Person.Private, pp.Person.PrimaryName)
	}
	for _, fp := range participants.Families {
		if fp.Role != gramps.RolePrimary && fp.Role != gramps.RoleFamily {
			continue
		}
		for _, h := range []string{fp.Family.FatherHandle, fp.Family.MotherHandle} {
			if err := c.addPersonName(ctx, db, fp.Family.Private, h); err != nil {
				return err
			}
		}
	}
	return nil
}

func collectPlace(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	p := obj.(*gramps.Place)
	c.add(false, p.GrampsID, p.Title, p.Code, p.Name.Value)
	for _, n := range p.AltNames {
		c.add(false, n.Value)
	}
	for _, l := range p.AltLocations {
		c.addLocation(false, l)
	}
	c.addURLs(p.URLs)
	return nil
}

func collectCitation(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	ct := obj.(*gramps.Citation)
	c.add(false, ct.Page, ct.GrampsID)
	c.addAttributes(ct.Attributes)
	return nil
}

func collectSource(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	s := obj.(*gramps.Source)
	c.add(false, s.Title, s.Author, s.PubInfo, s.Abbrev, s.GrampsID)
	c.addAttributes(s.Attributes)
	for _, r := range s.RepoRefs {
		c.add(r.Private, r.CallNumber)
	}
	return nil
}

func collectRepository(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	r := obj.(*gramps.Repository)
	c.add(false, r.Name, r.Type, r.GrampsID)
	c.addAddresses(r.Addresses)
	c.addURLs(r.URLs)
	return nil
}

func collectMedia(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	m := obj.(*gramps.Media)
	c.add(false, m.Path, m.Mime, m.Desc, m.GrampsID)
	c.addAttributes(m.Attributes)
	return nil
}

func collectNote(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	n := obj.(*gramps.Note)
	c.add(false, n.Text, n.GrampsID)
	return nil
}

func collectTag(_ context.Context, _ gramps.Database, obj gramps.Object, c *collector) error {
	c.add(false, obj.(*gramps.Tag).Name)
	return nil
}

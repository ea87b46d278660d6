package text

import (
	"github.com/gramps-project/grampsindex/internal/gramps"
)

func name(first, surname string) gramps.Name {
	return gramps.Name{FirstName: first, Surnames: []gramps.Surname{{Surname: surname, Primary: true}}}
}

// treeDB returns a small family tree. Every private object or
// sub-object carries the word SECRET in its text.
func treeDB() *gramps.MemoryDB {
	db := gramps.NewMemoryDB()
	db.Put(
		&gramps.Person{
			Base:        gramps.Base{Handle: "p1", GrampsID: "I0001", Change: 100, TagList: []string{"t1"}},
			PrimaryName: name("John", "Doe"),
			AlternateNames: []gramps.Name{
				{FirstName: "Johnny", Surnames: []gramps.Surname{{Surname: "SECRET"}}, Type: "Also Known As", Private: true},
			},
			Gender:        gramps.GenderMale,
			EventRefs:     []gramps.EventRef{{Ref: "e1", Role: gramps.RolePrimary}},
			BirthRefIndex: 0,
			DeathRefIndex: -1,
			Attributes:    []gramps.Attribute{{Type: "Nickname", Value: "SECRETattr", Private: true}},
			PersonRefs:    []gramps.PersonRef{{Ref: "p2", Rel: gramps.AssociationDNA, Private: true}},
		},
		&gramps.Person{
			Base:          gramps.Base{Handle: "p2", GrampsID: "I0002", Change: 101, Private: true},
			PrimaryName:   name("SECRETJane", "SECRETRoe"),
			Gender:        gramps.GenderFemale,
			EventRefs:     []gramps.EventRef{{Ref: "e1", Role: "Witness"}},
			BirthRefIndex: -1,
			DeathRefIndex: -1,
		},
		&gramps.Person{
			Base:          gramps.Base{Handle: "p3", GrampsID: "I0003", Change: 102},
			PrimaryName:   name("Jürgen", "Doe"),
			Gender:        gramps.GenderUnknown,
			BirthRefIndex: -1,
			DeathRefIndex: -1,
		},
		&gramps.Family{
			Base:         gramps.Base{Handle: "f1", GrampsID: "F0001", Change: 103},
			FatherHandle: "p1",
			MotherHandle: "p2",
			Type:         "Married",
			ChildRefs: []gramps.ChildRef{
				{Ref: "p3", FatherRel: "Birth", MotherRel: "Adopted"},
			},
			EventRefs: []gramps.EventRef{{Ref: "e2", Role: gramps.RoleFamily}},
		},
		&gramps.Event{
			Base:        gramps.Base{Handle: "e1", GrampsID: "E0001", Change: 104},
			Type:        "Birth",
			Date:        gramps.Date{Start: gramps.DateValue{Year: 1850, Month: 3, Day: 12}},
			Description: "Birth of John",
			Place:       "pl1",
		},
		&gramps.Event{
			Base: gramps.Base{Handle: "e2", GrampsID: "E0002", Change: 105},
			Type: "Marriage",
			Date: gramps.Date{Modifier: gramps.ModAbout, Start: gramps.DateValue{Year: 1875}},
		},
		&gramps.Place{
			Base: gramps.Base{Handle: "pl1", GrampsID: "P0001"}, Name: gramps.PlaceName{Value: "Springfield"},
			Type: "City", Lat: "39.7817", Long: "-89.6501",
			PlaceRefs: []gramps.PlaceRef{{Ref: "pl2"}},
		},
		&gramps.Place{
			Base: gramps.Base{Handle: "pl2", GrampsID: "P0002"}, Name: gramps.PlaceName{Value: "Illinois"},
			Type: "State",
		},
		&gramps.Source{
			Base:     gramps.Base{Handle: "s1", GrampsID: "S0001"},
			Title:    "Parish Register",
			Author:   "St. Mary",
			RepoRefs: []gramps.RepoRef{{Ref: "r1", CallNumber: "SECRET-42", Private: true}},
		},
		&gramps.Citation{
			Base: gramps.Base{Handle: "c1", GrampsID: "C0001"}, Page: "p. 17", SourceHandle: "s1",
		},
		&gramps.Repository{
			Base: gramps.Base{Handle: "r1", GrampsID: "R0001"}, Name: "State Archive", Type: "Archive",
		},
		&gramps.Note{
			Base: gramps.Base{Handle: "n1", GrampsID: "N0001"}, Text: "Line one\n\n\nLine two", Type: gramps.NoteTypeGeneral,
		},
		&gramps.Note{
			Base: gramps.Base{Handle: "n2", GrampsID: "N0002", Private: true}, Text: "SECRET diary", Type: "Research",
		},
		&gramps.Media{
			Base: gramps.Base{Handle: "m1", GrampsID: "O0001"}, Path: "photos/john.jpg", Mime: "image/jpeg", Desc: "Portrait",
		},
		&gramps.Tag{Handle: "t1", Name: "ToDo", Change: 5},
	)
	return db
}

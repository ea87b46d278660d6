package gramps

// Object is implemented by every primary object.
type Object interface {
	ObjectClass() Class
	ObjectHandle() string
	ObjectGrampsID() string
	IsPrivate() bool
	ChangeTime() int64
	Tags() []string
}

// Base holds the attributes shared by all primary objects except Tag.
type Base struct {
	Handle   string
	GrampsID string
	// Change is the last-modified time in unix seconds.
	Change  int64
	Private bool
	TagList []string
}

func (b *Base) ObjectHandle() string   { return b.Handle }
func (b *Base) ObjectGrampsID() string { return b.GrampsID }
func (b *Base) IsPrivate() bool        { return b.Private }
func (b *Base) ChangeTime() int64      { return b.Change }
func (b *Base) Tags() []string         { return b.TagList }

// Gender values as stored by Gramps.
type Gender int

const (
	GenderFemale  Gender = 0
	GenderMale    Gender = 1
	GenderUnknown Gender = 2
	GenderOther   Gender = 3
)

// Well-known type strings referenced by the text builders.
const (
	RolePrimary     = "Primary"
	RoleFamily      = "Family"
	ChildRelBirth   = "Birth"
	NoteTypeGeneral = "General"
	NoteTypeUnknown = "Unknown"
	AssociationDNA  = "DNA"
)

// Surname is one part of a (possibly compound) family name.
type Surname struct {
	Surname   string
	Prefix    string
	Connector string
	Origin    string
	Primary   bool
}

// Name is a person name.
type Name struct {
	FirstName  string
	Call       string
	Nick       string
	Title      string
	Suffix     string
	FamilyNick string
	Surnames   []Surname
	Type       string
	Private    bool
	Date       Date
}

// PrimarySurname returns the surname flagged primary, falling back to
// the first one.
func (n Name) PrimarySurname() string {
	for _, s := range n.Surnames {
		if s.Primary {
			return s.Surname
		}
	}
	if len(n.Surnames) > 0 {
		return n.Surnames[0].Surname
	}
	return ""
}

// Attribute is a typed key/value fact.
type Attribute struct {
	Type    string
	Value   string
	Private bool
}

// Location is a postal location without privacy or date.
type Location struct {
	Street   string
	Locality string
	City     string
	County   string
	State    string
	Country  string
	Postal   string
	Phone    string
}

// Address is a dated, optionally private location.
type Address struct {
	Location
	Private bool
	Date    Date
}

// URL is a web or file link.
type URL struct {
	Path    string
	Desc    string
	Type    string
	Private bool
}

// EventRef links a person or family to an event in a role.
type EventRef struct {
	Ref        string
	Role       string
	Private    bool
	Attributes []Attribute
}

// ChildRef links a family to a child.
type ChildRef struct {
	Ref       string
	FatherRel string
	MotherRel string
	Private   bool
}

// PersonRef is an association between two people.
type PersonRef struct {
	Ref     string
	Rel     string
	Private bool
}

// RepoRef links a source to a repository.
type RepoRef struct {
	Ref        string
	CallNumber string
	MediaType  string
	Private    bool
}

// PlaceName is a (possibly dated) name of a place.
type PlaceName struct {
	Value string
	Lang  string
	Date  Date
}

// PlaceRef points to an enclosing place.
type PlaceRef struct {
	Ref  string
	Date Date
}

type Person struct {
	Base
	PrimaryName    Name
	AlternateNames []Name
	Gender         Gender
	EventRefs      []EventRef
	// BirthRefIndex and DeathRefIndex index into EventRefs; negative
	// means no such event.
	BirthRefIndex int
	DeathRefIndex int
	Addresses     []Address
	Attributes    []Attribute
	URLs          []URL
	PersonRefs    []PersonRef
}

func (*Person) ObjectClass() Class { return ClassPerson }

type Family struct {
	Base
	FatherHandle string
	MotherHandle string
	ChildRefs    []ChildRef
	Type         string
	EventRefs    []EventRef
	Attributes   []Attribute
}

func (*Family) ObjectClass() Class { return ClassFamily }

type Event struct {
	Base
	Type        string
	Date        Date
	Description string
	Place       string
	Attributes  []Attribute
}

func (*Event) ObjectClass() Class { return ClassEvent }

type Place struct {
	Base
	Title        string
	Name         PlaceName
	AltNames     []PlaceName
	Type         string
	Code         string
	Lat          string
	Long         string
	PlaceRefs    []PlaceRef
	AltLocations []Location
	URLs         []URL
}

func (*Place) ObjectClass() Class { return ClassPlace }

type Citation struct {
	Base
	Page         string
	Date         Date
	Confidence   int
	SourceHandle string
	Attributes   []Attribute
}

func (*Citation) ObjectClass() Class { return ClassCitation }

type Source struct {
	Base
	Title      string
	Author     string
	PubInfo    string
	Abbrev     string
	RepoRefs   []RepoRef
	Attributes []Attribute
}

func (*Source) ObjectClass() Class { return ClassSource }

type Repository struct {
	Base
	Name      string
	Type      string
	Addresses []Address
	URLs      []URL
}

func (*Repository) ObjectClass() Class { return ClassRepository }

type Media struct {
	Base
	Path       string
	Mime       string
	Desc       string
	Date       Date
	Attributes []Attribute
}

func (*Media) ObjectClass() Class { return ClassMedia }

type Note struct {
	Base
	Text string
	Type string
}

func (*Note) ObjectClass() Class { return ClassNote }

// Tag labels other objects. It has no Gramps ID and cannot be private.
type Tag struct {
	Handle   string
	Name     string
	Color    string
	Priority int
	Change   int64
}

func (*Tag) ObjectClass() Class       { return ClassTag }
func (t *Tag) ObjectHandle() string   { return t.Handle }
func (t *Tag) ObjectGrampsID() string { return "" }
func (t *Tag) IsPrivate() bool        { return false }
func (t *Tag) ChangeTime() int64      { return t.Change }
func (t *Tag) Tags() []string         { return nil }

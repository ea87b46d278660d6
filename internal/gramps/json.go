package gramps

import (
	"encoding/json"
	"fmt"
)

// Decoding of the Gramps JSON object format (the json_data column of
// the Gramps SQLite schema).

type jsonType struct {
	Value  int    `json:"value"`
	String string `json:"string"`
}

func (t jsonType) resolve(table map[int]string) string {
	if t.String != "" {
		return t.String
	}
	return table[t.Value]
}

type jsonDate struct {
	Modifier int    `json:"modifier"`
	Quality  int    `json:"quality"`
	DateVal  []any  `json:"dateval"`
	Text     string `json:"text"`
}

func (d *jsonDate) toDate() Date {
	if d == nil {
		return Date{}
	}
	num := func(i int) int {
		if i >= len(d.DateVal) {
			return 0
		}
		if f, ok := d.DateVal[i].(float64); ok {
			return int(f)
		}
		return 0
	}
	return Date{
		Modifier: DateModifier(d.Modifier),
		Quality:  DateQuality(d.Quality),
		Start:    DateValue{Day: num(0), Month: num(1), Year: num(2)},
		Stop:     DateValue{Day: num(4), Month: num(5), Year: num(6)},
		Text:     d.Text,
	}
}

type jsonBase struct {
	Handle   string   `json:"handle"`
	GrampsID string   `json:"gramps_id"`
	Change   int64    `json:"change"`
	Private  bool     `json:"private"`
	TagList  []string `json:"tag_list"`
}

func (b jsonBase) base() Base {
	return Base{Handle: b.Handle, GrampsID: b.GrampsID, Change: b.Change, Private: b.Private, TagList: b.TagList}
}

type jsonSurname struct {
	Surname   string   `json:"surname"`
	Prefix    string   `json:"prefix"`
	Connector string   `json:"connector"`
	Primary   bool     `json:"primary"`
	Origin    jsonType `json:"origintype"`
}

type jsonName struct {
	FirstName  string        `json:"first_name"`
	Call       string        `json:"call"`
	Nick       string        `json:"nick"`
	Title      string        `json:"title"`
	Suffix     string        `json:"suffix"`
	FamilyNick string        `json:"famnick"`
	Surnames   []jsonSurname `json:"surname_list"`
	Type       jsonType      `json:"type"`
	Private    bool          `json:"private"`
	Date       *jsonDate     `json:"date"`
}

func (n jsonName) toName() Name {
	out := Name{
		FirstName:  n.FirstName,
		Call:       n.Call,
		Nick:       n.Nick,
		Title:      n.Title,
		Suffix:     n.Suffix,
		FamilyNick: n.FamilyNick,
		Type:       n.Type.resolve(nameTypes),
		Private:    n.Private,
		Date:       n.Date.toDate(),
	}
	for _, s := range n.Surnames {
		out.Surnames = append(out.Surnames, Surname{
			Surname:   s.Surname,
			Prefix:    s.Prefix,
			Connector: s.Connector,
			Origin:    s.Origin.String,
			Primary:   s.Primary,
		})
	}
	return out
}

type jsonAttribute struct {
	Type    jsonType `json:"type"`
	Value   string   `json:"value"`
	Private bool     `json:"private"`
}

func attributes(in []jsonAttribute) []Attribute {
	var out []Attribute
	for _, a := range in {
		out = append(out, Attribute{Type: a.Type.resolve(attributeTypes), Value: a.Value, Private: a.Private})
	}
	return out
}

type jsonLocation struct {
	Street   string `json:"street"`
	Locality string `json:"locality"`
	City     string `json:"city"`
	County   string `json:"county"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Postal   string `json:"postal"`
	Phone    string `json:"phone"`
}

func (l jsonLocation) toLocation() Location {
	return Location(l)
}

type jsonAddress struct {
	jsonLocation
	Private bool      `json:"private"`
	Date    *jsonDate `json:"date"`
}

func addresses(in []jsonAddress) []Address {
	var out []Address
	for _, a := range in {
		out = append(out, Address{Location: a.toLocation(), Private: a.Private, Date: a.Date.toDate()})
	}
	return out
}

type jsonURL struct {
	Path    string   `json:"path"`
	Desc    string   `json:"desc"`
	Type    jsonType `json:"type"`
	Private bool     `json:"private"`
}

func urls(in []jsonURL) []URL {
	var out []URL
	for _, u := range in {
		out = append(out, URL{Path: u.Path, Desc: u.Desc, Type: u.Type.resolve(urlTypes), Private: u.Private})
	}
	return out
}

type jsonEventRef struct {
	Ref        string          `json:"ref"`
	Role       jsonType        `json:"role"`
	Private    bool            `json:"private"`
	Attributes []jsonAttribute `json:"attribute_list"`
}

func eventRefs(in []jsonEventRef) []EventRef {
	var out []EventRef
	for _, r := range in {
		out = append(out, EventRef{
			Ref:        r.Ref,
			Role:       r.Role.resolve(eventRoleTypes),
			Private:    r.Private,
			Attributes: attributes(r.Attributes),
		})
	}
	return out
}

type jsonPerson struct {
	jsonBase
	PrimaryName    jsonName        `json:"primary_name"`
	AlternateNames []jsonName      `json:"alternate_names"`
	Gender         int             `json:"gender"`
	EventRefs      []jsonEventRef  `json:"event_ref_list"`
	BirthRefIndex  int             `json:"birth_ref_index"`
	DeathRefIndex  int             `json:"death_ref_index"`
	Addresses      []jsonAddress   `json:"address_list"`
	Attributes     []jsonAttribute `json:"attribute_list"`
	URLs           []jsonURL       `json:"urls"`
	PersonRefs     []struct {
		Ref     string `json:"ref"`
		Rel     string `json:"rel"`
		Private bool   `json:"private"`
	} `json:"person_ref_list"`
}

type jsonFamily struct {
	jsonBase
	FatherHandle string `json:"father_handle"`
	MotherHandle string `json:"mother_handle"`
	ChildRefs    []struct {
		Ref     string   `json:"ref"`
		FRel    jsonType `json:"frel"`
		MRel    jsonType `json:"mrel"`
		Private bool     `json:"private"`
	} `json:"child_ref_list"`
	Type       jsonType        `json:"type"`
	EventRefs  []jsonEventRef  `json:"event_ref_list"`
	Attributes []jsonAttribute `json:"attribute_list"`
}

type jsonEvent struct {
	jsonBase
	Type        jsonType        `json:"type"`
	Date        *jsonDate       `json:"date"`
	Description string          `json:"description"`
	Place       string          `json:"place"`
	Attributes  []jsonAttribute `json:"attribute_list"`
}

type jsonPlaceName struct {
	Value string    `json:"value"`
	Lang  string    `json:"lang"`
	Date  *jsonDate `json:"date"`
}

func (n jsonPlaceName) toPlaceName() PlaceName {
	return PlaceName{Value: n.Value, Lang: n.Lang, Date: n.Date.toDate()}
}

type jsonPlace struct {
	jsonBase
	Title     string          `json:"title"`
	Name      jsonPlaceName   `json:"name"`
	AltNames  []jsonPlaceName `json:"alt_names"`
	Type      jsonType        `json:"place_type"`
	Code      string          `json:"code"`
	Lat       string          `json:"lat"`
	Long      string          `json:"long"`
	PlaceRefs []struct {
		Ref  string    `json:"ref"`
		Date *jsonDate `json:"date"`
	} `json:"placeref_list"`
	AltLocations []jsonLocation `json:"alt_loc"`
	URLs         []jsonURL      `json:"urls"`
}

type jsonCitation struct {
	jsonBase
	Page         string          `json:"page"`
	Date         *jsonDate       `json:"date"`
	Confidence   int             `json:"confidence"`
	SourceHandle string          `json:"source_handle"`
	Attributes   []jsonAttribute `json:"attribute_list"`
}

type jsonSource struct {
	jsonBase
	Title    string `json:"title"`
	Author   string `json:"author"`
	PubInfo  string `json:"pubinfo"`
	Abbrev   string `json:"abbrev"`
	RepoRefs []struct {
		Ref        string   `json:"ref"`
		CallNumber string   `json:"call_number"`
		MediaType  jsonType `json:"media_type"`
		Private    bool     `json:"private"`
	} `json:"reporef_list"`
	Attributes []jsonAttribute `json:"attribute_list"`
}

type jsonRepository struct {
	jsonBase
	Name      string        `json:"name"`
	Type      jsonType      `json:"type"`
	Addresses []jsonAddress `json:"address_list"`
	URLs      []jsonURL     `json:"urls"`
}

type jsonMedia struct {
	jsonBase
	Path       string          `json:"path"`
	Mime       string          `json:"mime"`
	Desc       string          `json:"desc"`
	Date       *jsonDate       `json:"date"`
	Attributes []jsonAttribute `json:"attribute_list"`
}

type jsonNote struct {
	jsonBase
	Text struct {
		String string `json:"string"`
	} `json:"text"`
	Type jsonType `json:"type"`
}

type jsonTag struct {
	Handle   string `json:"handle"`
	Name     string `json:"name"`
	Color    string `json:"color"`
	Priority int    `json:"priority"`
	Change   int64  `json:"change"`
}

// DecodeObject decodes one object of class from Gramps JSON.
func DecodeObject(class Class, data []byte) (Object, error) {
	var (
		obj Object
		err error
	)
	switch class {
	case ClassPerson:
		obj, err = decodePerson(data)
	case ClassFamily:
		obj, err = decodeFamily(data)
	case ClassEvent:
		var j jsonEvent
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Event{
				Base:        j.base(),
				Type:        j.Type.resolve(eventTypes),
				Date:        j.Date.toDate(),
				Description: j.Description,
				Place:       j.Place,
				Attributes:  attributes(j.Attributes),
			}
		}
	case ClassPlace:
		obj, err = decodePlace(data)
	case ClassCitation:
		var j jsonCitation
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Citation{
				Base:         j.base(),
				Page:         j.Page,
				Date:         j.Date.toDate(),
				Confidence:   j.Confidence,
				SourceHandle: j.SourceHandle,
				Attributes:   attributes(j.Attributes),
			}
		}
	case ClassSource:
		var j jsonSource
		if err = json.Unmarshal(data, &j); err == nil {
			src := &Source{
				Base:       j.base(),
				Title:      j.Title,
				Author:     j.Author,
				PubInfo:    j.PubInfo,
				Abbrev:     j.Abbrev,
				Attributes: attributes(j.Attributes),
			}
			for _, r := range j.RepoRefs {
				src.RepoRefs = append(src.RepoRefs, RepoRef{
					Ref:        r.Ref,
					CallNumber: r.CallNumber,
					MediaType:  r.MediaType.String,
					Private:    r.Private,
				})
			}
			obj = src
		}
	case ClassRepository:
		var j jsonRepository
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Repository{
				Base:      j.base(),
				Name:      j.Name,
				Type:      j.Type.resolve(repositoryTypes),
				Addresses: addresses(j.Addresses),
				URLs:      urls(j.URLs),
			}
		}
	case ClassMedia:
		var j jsonMedia
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Media{
				Base:       j.base(),
				Path:       j.Path,
				Mime:       j.Mime,
				Desc:       j.Desc,
				Date:       j.Date.toDate(),
				Attributes: attributes(j.Attributes),
			}
		}
	case ClassNote:
		var j jsonNote
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Note{Base: j.base(), Text: j.Text.String, Type: j.Type.resolve(noteTypes)}
		}
	case ClassTag:
		var j jsonTag
		if err = json.Unmarshal(data, &j); err == nil {
			obj = &Tag{Handle: j.Handle, Name: j.Name, Color: j.Color, Priority: j.Priority, Change: j.Change}
		}
	default:
		return nil, fmt.Errorf("unknown class %q", class)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", class.Lower(), err)
	}
	return obj, nil
}

func decodePerson(data []byte) (*Person, error) {
	j := jsonPerson{BirthRefIndex: -1, DeathRefIndex: -1}
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	p := &Person{
		Base:          j.base(),
		PrimaryName:   j.PrimaryName.toName(),
		Gender:        Gender(j.Gender),
		EventRefs:     eventRefs(j.EventRefs),
		BirthRefIndex: j.BirthRefIndex,
		DeathRefIndex: j.DeathRefIndex,
		Addresses:     addresses(j.Addresses),
		Attributes:    attributes(j.Attributes),
		URLs:          urls(j.URLs),
	}
	for _, n := range j.AlternateNames {
		p.AlternateNames = append(p.AlternateNames, n.toName())
	}
	for _, r := range j.PersonRefs {
		p.PersonRefs = append(p.PersonRefs, PersonRef{Ref: r.Ref, Rel: r.Rel, Private: r.Private})
	}
	return p, nil
}

func decodeFamily(data []byte) (*Family, error) {
	var j jsonFamily
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	f := &Family{
		Base:         j.base(),
		FatherHandle: j.FatherHandle,
		MotherHandle: j.MotherHandle,
		Type:         j.Type.resolve(familyRelTypes),
		EventRefs:    eventRefs(j.EventRefs),
		Attributes:   attributes(j.Attributes),
	}
	for _, c := range j.ChildRefs {
		f.ChildRefs = append(f.ChildRefs, ChildRef{
			Ref:       c.Ref,
			FatherRel: c.FRel.resolve(childRefTypes),
			MotherRel: c.MRel.resolve(childRefTypes),
			Private:   c.Private,
		})
	}
	return f, nil
}

func decodePlace(data []byte) (*Place, error) {
	var j jsonPlace
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	p := &Place{
		Base:  j.base(),
		Title: j.Title,
		Name:  j.Name.toPlaceName(),
		Type:  j.Type.resolve(placeTypes),
		Code:  j.Code,
		Lat:   j.Lat,
		Long:  j.Long,
		URLs:  urls(j.URLs),
	}
	for _, n := range j.AltNames {
		p.AltNames = append(p.AltNames, n.toPlaceName())
	}
	for _, r := range j.PlaceRefs {
		p.PlaceRefs = append(p.PlaceRefs, PlaceRef{Ref: r.Ref, Date: r.Date.toDate()})
	}
	for _, l := range j.AltLocations {
		p.AltLocations = append(p.AltLocations, l.toLocation())
	}
	return p, nil
}

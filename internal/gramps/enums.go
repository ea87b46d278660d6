package gramps

// Display strings of the standard Gramps type values. Custom values
// carry their own string and never hit these tables.

var eventTypes = map[int]string{
	-1: "Unknown",
	1:  "Marriage",
	2:  "Marriage Settlement",
	3:  "Marriage License",
	4:  "Marriage Contract",
	5:  "Marriage Banns",
	6:  "Engagement",
	7:  "Divorce",
	8:  "Divorce Filing",
	9:  "Annulment",
	10: "Alternate Marriage",
	11: "Adopted",
	12: "Birth",
	13: "Death",
	14: "Adult Christening",
	15: "Baptism",
	16: "Bar Mitzvah",
	17: "Bas Mitzvah",
	18: "Blessing",
	19: "Burial",
	20: "Cause Of Death",
	21: "Census",
	22: "Christening",
	23: "Confirmation",
	24: "Cremation",
	25: "Degree",
	26: "Education",
	27: "Elected",
	28: "Emigration",
	29: "First Communion",
	30: "Immigration",
	31: "Graduation",
	32: "Medical Information",
	33: "Military Service",
	34: "Naturalization",
	35: "Nobility Title",
	36: "Number of Marriages",
	37: "Occupation",
	38: "Ordination",
	39: "Probate",
	40: "Property",
	41: "Religion",
	42: "Residence",
	43: "Retirement",
	44: "Will",
}

var eventRoleTypes = map[int]string{
	-1: "Unknown",
	1:  RolePrimary,
	2:  "Clergy",
	3:  "Celebrant",
	4:  "Aide",
	5:  "Bride",
	6:  "Groom",
	7:  "Witness",
	8:  RoleFamily,
	9:  "Informant",
}

var nameTypes = map[int]string{
	-1: "Unknown",
	1:  "Also Known As",
	2:  "Birth Name",
	3:  "Married Name",
}

var familyRelTypes = map[int]string{
	0: "Married",
	1: "Unmarried",
	2: "Civil Union",
	3: "Unknown",
}

var childRefTypes = map[int]string{
	0: "None",
	1: ChildRelBirth,
	2: "Adopted",
	3: "Stepchild",
	4: "Sponsored",
	5: "Foster",
	6: "Unknown",
}

var placeTypes = map[int]string{
	-1: "Unknown",
	1:  "Country",
	2:  "State",
	3:  "County",
	4:  "City",
	5:  "Parish",
	6:  "Locality",
	7:  "Street",
	8:  "Province",
	9:  "Region",
	10: "Department",
	11: "Neighborhood",
	12: "District",
	13: "Borough",
	14: "Municipality",
	15: "Town",
	16: "Village",
	17: "Hamlet",
	18: "Farm",
	19: "Building",
	20: "Number",
}

var repositoryTypes = map[int]string{
	-1: "Unknown",
	1:  "Library",
	2:  "Cemetery",
	3:  "Church",
	4:  "Archive",
	5:  "Album",
	6:  "Web site",
	7:  "Bookstore",
	8:  "Collection",
	9:  "Safe",
}

var noteTypes = map[int]string{
	-1: NoteTypeUnknown,
	1:  NoteTypeGeneral,
	2:  "Research",
	3:  "Transcript",
	4:  "Person Note",
	5:  "Attribute Note",
	6:  "Address Note",
	7:  "Association Note",
	8:  "LDS Note",
	9:  "Family Note",
	10: "Event Note",
	11: "Event Reference Note",
	12: "Source Note",
	13: "Citation",
	14: "Place Note",
	15: "Repository Note",
	16: "Repository Reference Note",
	17: "Media Note",
	18: "Media Reference Note",
	19: "Child Reference Note",
	20: "Person Name Note",
	21: "Source text",
	22: "To Do",
	23: "Link",
}

var attributeTypes = map[int]string{
	-1: "Unknown",
	1:  "Caste",
	2:  "Description",
	3:  "Identification Number",
	4:  "National Origin",
	5:  "Number of Children",
	6:  "Social Security Number",
	7:  "Nickname",
	8:  "Cause",
	9:  "Agency",
	10: "Age",
	11: "Father's Age",
	12: "Mother's Age",
	13: "Witness",
	14: "Time",
	15: "Occupation",
}

var urlTypes = map[int]string{
	-1: "Unknown",
	1:  "E-mail",
	2:  "Web Home",
	3:  "Web Search",
	4:  "FTP",
}

package mcp

// Tool names.
const (
	ToolSearch         = "search_genealogy_database"
	ToolCountDocuments = "count_documents"
	ToolCurrentDate    = "get_current_date"
)

// DefaultMaxResults is used when the assistant does not pass max_results.
const DefaultMaxResults = 20

// SearchInput defines the input schema of search_genealogy_database.
type SearchInput struct {
	Query      string `json:"query" jsonschema:"what to look for, e.g. a name, place, event or question"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"maximum number of results, default 20, at most 50"`
	Tree       string `json:"tree,omitempty" jsonschema:"family tree id, defaults to the server's tree"`
}

// SearchOutput is the structured result of search_genealogy_database.
type SearchOutput struct {
	Tree    string `json:"tree"`
	Flavour string `json:"flavour" jsonschema:"semantic or keyword index used"`
	Total   int    `json:"total" jsonschema:"number of matching records in the index"`
	Used    int    `json:"used" jsonschema:"number of records included in context"`
	Context string `json:"context" jsonschema:"text of the matching records"`
}

// CountInput defines the input schema of count_documents.
type CountInput struct {
	IncludePrivate bool   `json:"include_private,omitempty" jsonschema:"count private records too"`
	Tree           string `json:"tree,omitempty" jsonschema:"family tree id, defaults to the server's tree"`
}

// CountOutput is the structured result of count_documents.
type CountOutput struct {
	Tree           string `json:"tree"`
	IncludePrivate bool   `json:"include_private"`
	Keyword        int    `json:"keyword"`
	// Semantic is omitted when no embedding model is configured.
	Semantic *int `json:"semantic,omitempty"`
}

// DateInput defines the input schema of get_current_date (no parameters).
type DateInput struct{}

// DateOutput is the structured result of get_current_date.
type DateOutput struct {
	Date string `json:"date" jsonschema:"today in ISO format YYYY-MM-DD"`
}

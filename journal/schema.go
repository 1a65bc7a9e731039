package journal

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

type postDocument struct {
	Date         string            `json:"date" jsonschema:"required,description=Post date as DD.MM.YYYY. Unparseable dates are kept and sort last."`
	Article      string            `json:"article,omitempty" jsonschema:"description=Free text of the post."`
	MemberQuotes map[string]string `json:"memberquotes,omitempty" jsonschema:"description=Member quotes keyed by quote ID."`
	Quotes       []string          `json:"quotes,omitempty"`
	Links        []string          `json:"links,omitempty"`
}

type threadDocument struct {
	Title    string                  `json:"title" jsonschema:"required"`
	Category string                  `json:"category" jsonschema:"required"`
	Diary    map[string]postDocument `json:"diary" jsonschema:"required,description=Posts keyed by post ID."`
}

type journalDocument map[string]threadDocument

// DocumentSchema returns the JSON Schema of the journal input document, indented.
func DocumentSchema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(journalDocument{})
	schema.Title = "journal document"
	schema.Description = "Threads keyed by thread ID."

	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("DocumentSchema: marshal: %w", err)
	}
	return b, nil
}

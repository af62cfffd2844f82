package entity

// SchemaFormat describes how a schema source is encoded.
type SchemaFormat string

const (
	// SchemaFormatSDL is GraphQL schema definition language.
	SchemaFormatSDL SchemaFormat = "sdl"
	// SchemaFormatIntrospection is the JSON result of an introspection query.
	SchemaFormatIntrospection SchemaFormat = "introspection"
)

// SchemaSource is the content of one schema file.
type SchemaSource struct {
	Path    string       `json:"path"`
	Format  SchemaFormat `json:"format"`
	Content string       `json:"content"`
}

// Schema is the schema of a project, passed to the panel as-is.
type Schema struct {
	ProjectRoot string         `json:"projectRoot"`
	Sources     []SchemaSource `json:"sources"`
}

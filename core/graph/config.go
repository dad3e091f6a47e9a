package graph

// Config holds configuration for the document graph.
type Config struct {
	// URL is the Logseq HTTP API server endpoint.
	URL string `mapstructure:"url" default:"http://127.0.0.1:12315"`
	// Token is the Logseq HTTP API authorization token.
	Token string `mapstructure:"token" default:""`
	// GraphName overrides the graph name reported by the accessor.
	GraphName string `mapstructure:"graph_name" default:""`
	// GraphPath is the graph root directory used to resolve assets.
	GraphPath string `mapstructure:"graph_path" default:""`
	// Snapshot is a YAML/JSON graph snapshot file. When set it replaces the HTTP API.
	Snapshot string `mapstructure:"snapshot" default:""`
	// TimeoutSeconds bounds a single API request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
}

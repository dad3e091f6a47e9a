package cards

// Breadcrumb display modes.
const (
	BreadcrumbHidden         = "hidden"
	BreadcrumbPage           = "page"
	BreadcrumbPageAndParents = "page_and_parents"
)

// Config controls how card attributes are resolved.
type Config struct {
	// DefaultDeck is used when no deck is resolved from the graph.
	DefaultDeck string `mapstructure:"default_deck" default:"Default"`
	// UseNamespaceAsDefaultDeck derives the deck from the page namespace
	// unless a namespace page overrides it.
	UseNamespaceAsDefaultDeck bool `mapstructure:"use_namespace_as_default_deck" default:"false"`
	// BreadcrumbDisplay is hidden, page or page_and_parents.
	BreadcrumbDisplay string `mapstructure:"breadcrumb_display" default:"page"`
	// IncludeParentContent nests the card text inside its ancestor blocks.
	IncludeParentContent bool `mapstructure:"include_parent_content" default:"false"`
}

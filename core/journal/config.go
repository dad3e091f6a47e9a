package journal

// Config holds configuration for the sync report journal.
type Config struct {
	// Path is the bbolt database file. Empty disables the journal.
	Path string `mapstructure:"path" default:".anki-sync/journal.db"`
	// Keep is the number of reports retained.
	Keep int `mapstructure:"keep" default:"50"`
}

package anki

// Config holds configuration for the AnkiConnect add-on endpoint.
type Config struct {
	// URL is the AnkiConnect endpoint.
	URL string `mapstructure:"url" default:"http://127.0.0.1:8765"`
	// APIKey is sent with every request when AnkiConnect requires one.
	APIKey string `mapstructure:"api_key" default:""`
	// TimeoutSeconds bounds a single request.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"30"`
	// MaxRetries is the number of retries on transport errors and 5xx.
	MaxRetries int `mapstructure:"max_retries" default:"2"`
}

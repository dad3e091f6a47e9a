package config

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"anki-sync/core/anki"
	"anki-sync/core/database"
	"anki-sync/core/graph"
	"anki-sync/core/journal"
	"anki-sync/core/logger"
	"anki-sync/core/reconcile"
	"anki-sync/core/storage"
	"anki-sync/feature/cards"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// It is divided into partial configurations for better modularity.
type Config struct {
	// Anki holds the AnkiConnect endpoint.
	Anki anki.Config `mapstructure:"anki"`
	// Logseq holds the document graph source.
	Logseq graph.Config `mapstructure:"logseq"`
	// Sync holds the reconciliation behavior.
	Sync reconcile.Config `mapstructure:"sync"`
	// Cards holds deck, breadcrumb and parent content settings.
	Cards cards.Config `mapstructure:"cards"`
	// Database holds the local collection database, used when
	// sync.destination is "collection".
	Database database.Config `mapstructure:"database"`
	// Storage holds where note assets are read from.
	Storage storage.Config `mapstructure:"storage"`
	// Journal holds the sync report history.
	Journal journal.Config `mapstructure:"journal"`
	// Log holds configuration for the logger.
	Log logger.Config `mapstructure:"log"`
}

// LoadConfig loads configuration from a .env file, an optional config.yaml
// and environment variables, in increasing precedence.
func LoadConfig(path string) (*Config, error) {
	envPath := path + "/.env"
	if path == "." {
		envPath = ".env"
	}

	// Ignore error if file doesn't exist
	_ = godotenv.Overload(envPath)

	v := viper.New()

	// Recursively parse struct tags to set default values
	bindValues(v, Config{}, "")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Map environment variables to nested keys (e.g. ANKI_URL -> anki.url)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the enumerated settings.
func (c *Config) Validate() error {
	checks := []struct {
		key     string
		value   string
		allowed []string
	}{
		{"sync.destination", c.Sync.Destination, []string{"anki", "collection"}},
		{"cards.breadcrumb_display", c.Cards.BreadcrumbDisplay, []string{cards.BreadcrumbHidden, cards.BreadcrumbPage, cards.BreadcrumbPageAndParents}},
		{"storage.source", c.Storage.Source, []string{"fs", "s3"}},
		{"database.driver", c.Database.Driver, []string{"sqlite", "mysql"}},
		{"log.format", c.Log.Format, []string{"console", "json"}},
	}
	var errs []error
	for _, check := range checks {
		if !slices.Contains(check.allowed, check.value) {
			errs = append(errs, fmt.Errorf("%s: %q is not one of %s", check.key, check.value, strings.Join(check.allowed, ", ")))
		}
	}
	if c.Sync.MassDeleteThreshold < 1 {
		errs = append(errs, fmt.Errorf("sync.mass_delete_threshold: must be positive"))
	}
	return errors.Join(errs...)
}

// bindValues uses reflection to iterate over the struct and set default values in Viper
// based on the 'default' and 'mapstructure' tags.
func bindValues(v *viper.Viper, iface any, prefix string) {
	t := reflect.TypeOf(iface)

	// If it's a pointer, get the element
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")

		// Skip if no tag
		if tag == "" {
			continue
		}

		// Build the key
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}

		// If it's a nested struct, recurse
		if field.Type.Kind() == reflect.Struct {
			bindValues(v, reflect.New(field.Type).Elem().Interface(), key)
			continue
		}

		defaultValue := field.Tag.Get("default")
		// Always set default (even if empty) to register the key for AutomaticEnv
		v.SetDefault(key, defaultValue)
	}
}

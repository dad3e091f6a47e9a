// Package config loads the application settings.
//
// It utilizes Viper for loading configuration from a .env file, an optional
// config.yaml and environment variables. Defaults come from the `default`
// struct tags of each section.
//
// # Configuration Structure
//
//   - Anki: AnkiConnect endpoint and API key
//   - Logseq: HTTP API endpoint or snapshot file, graph path for assets
//   - Sync: model name, destination, hash skipping, mass delete threshold
//   - Cards: default deck, namespace decks, breadcrumb, parent content
//   - Database: local collection database (sqlite or mysql)
//   - Storage: asset source (graph directory or S3/MinIO bucket)
//   - Journal: sync report history file
//   - Log: level, format and optional rotated file
//
// Environment variables map to nested keys by replacing "." with "_":
// CARDS_DEFAULT_DECK sets cards.default_deck.
//
// # Usage
//
//	cfg, err := config.LoadConfig(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Anki.URL)
package config

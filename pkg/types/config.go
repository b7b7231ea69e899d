// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings for components that make network
// requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "biblio-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// TranslationConfig holds settings for the translation backend client.
type TranslationConfig struct {
	HTTPConfig `yaml:",inline"`

	// Endpoint is the translation server base URL. Empty uses the
	// package default.
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// Token authenticates against the translation server (optional).
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// MaxRetries bounds retry attempts on rate-limited requests.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// StyleConfig holds settings for the style resolver.
type StyleConfig struct {
	HTTPConfig `yaml:",inline"`

	// SentenceCasePrefixes lists style-name prefixes that require
	// sentence-cased titles. Matching is a policy knob, not a contract.
	SentenceCasePrefixes []string `json:"sentence_case_prefixes,omitempty" yaml:"sentence_case_prefixes,omitempty"`

	// UppercaseSubtitlePrefixes lists style-name prefixes whose rendering
	// uppercases the first word after a title colon.
	UppercaseSubtitlePrefixes []string `json:"uppercase_subtitle_prefixes,omitempty" yaml:"uppercase_subtitle_prefixes,omitempty"`
}

// SchemaConfig holds settings for the schema provider.
type SchemaConfig struct {
	HTTPConfig `yaml:",inline"`

	// CachePath is the on-disk schema cache file. Empty disables caching.
	CachePath string `json:"cache_path,omitempty" yaml:"cache_path,omitempty"`
}

// StoreConfig holds settings for item persistence.
type StoreConfig struct {
	// DataDir is the base directory for the sqlite database.
	DataDir string `json:"data_dir" yaml:"data_dir"`
}

// EngineConfig holds settings for the synchronization engine.
type EngineConfig struct {
	// Processor selects the citation processor implementation:
	// "classic" or "cached". Chosen once at session start.
	Processor string `json:"processor" yaml:"processor"`

	// DefaultStyle is the style activated when no preference is stored.
	DefaultStyle string `json:"default_style" yaml:"default_style"`

	// Locale is the rendering locale (e.g. "en-US"); a style's
	// default-locale override wins.
	Locale string `json:"locale" yaml:"locale"`
}

// Config groups all component configurations.
type Config struct {
	Translation TranslationConfig `json:"translation" yaml:"translation"`
	Styles      StyleConfig       `json:"styles" yaml:"styles"`
	Schema      SchemaConfig      `json:"schema" yaml:"schema"`
	Store       StoreConfig       `json:"store" yaml:"store"`
	Engine      EngineConfig      `json:"engine" yaml:"engine"`
}

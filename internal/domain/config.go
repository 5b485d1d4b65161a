// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// Config is the unmarshalled config.toml merged with MULEBRIDGE__ environment overrides.
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	// Remote emulex daemon
	EmulexURL      string `toml:"emulexUrl" mapstructure:"emulexUrl"`
	APIKey         string `toml:"apiKey" mapstructure:"apiKey"`
	RequestTimeout int    `toml:"requestTimeout" mapstructure:"requestTimeout"`
	RequestDelay   int    `toml:"requestDelay" mapstructure:"requestDelay"`
	Priority       int    `toml:"priority" mapstructure:"priority"`
	TestSearchTerm string `toml:"testSearchTerm" mapstructure:"testSearchTerm"`

	// Result shaping
	MatchWords        bool   `toml:"matchWords" mapstructure:"matchWords"`
	StrictParsing     bool   `toml:"strictParsing" mapstructure:"strictParsing"`
	Freeleech         bool   `toml:"freeleech" mapstructure:"freeleech"`
	LinkTemplate      string `toml:"linkTemplate" mapstructure:"linkTemplate"`
	MagnetPrefix      string `toml:"magnetPrefix" mapstructure:"magnetPrefix"`
	MagnetSuffix      string `toml:"magnetSuffix" mapstructure:"magnetSuffix"`
	MagnetDisplayName string `toml:"magnetDisplayName" mapstructure:"magnetDisplayName"`
	StatusFixtures    bool   `toml:"statusFixtures" mapstructure:"statusFixtures"`

	// Inbound API
	ServerAPIKey string `toml:"serverApiKey" mapstructure:"serverApiKey"`

	SearchCacheEnabled    bool `toml:"searchCacheEnabled" mapstructure:"searchCacheEnabled"`
	SearchCacheTTLMinutes int  `toml:"searchCacheTTLMinutes" mapstructure:"searchCacheTTLMinutes"`

	MetricsEnabled        bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost           string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort           int    `toml:"metricsPort" mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `toml:"metricsBasicAuthUsers" mapstructure:"metricsBasicAuthUsers"`
}

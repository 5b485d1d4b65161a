// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/mulebridge/internal/domain"
)

var envPrefix = "MULEBRIDGE__"

// APIKeyLength is the exact length the emulex daemon expects for its key.
const APIKeyLength = 32

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	dataDir string
	version string

	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	c.loadFromEnv()

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	c.resolveDataDir()

	c.watchConfig()

	return c, nil
}

func (c *AppConfig) defaults() {
	host := "localhost"
	if detectContainer() {
		host = "0.0.0.0"
	}

	c.viper.SetDefault("host", host)
	c.viper.SetDefault("port", 7480)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("dataDir", "") // Empty means auto-detect (next to config file)

	c.viper.SetDefault("emulexUrl", "http://localhost:8080/")
	c.viper.SetDefault("apiKey", "")
	c.viper.SetDefault("requestTimeout", 30)
	c.viper.SetDefault("requestDelay", 5)
	c.viper.SetDefault("priority", 5)
	c.viper.SetDefault("testSearchTerm", "test")

	c.viper.SetDefault("matchWords", false)
	c.viper.SetDefault("strictParsing", false)
	c.viper.SetDefault("freeleech", true)
	c.viper.SetDefault("linkTemplate", "https://ed2k.shortypower.org/?hash=%s")
	c.viper.SetDefault("magnetPrefix", "magnet:?xt=urn:btih:")
	c.viper.SetDefault("magnetSuffix", "99999999")
	c.viper.SetDefault("magnetDisplayName", "EMULE")
	c.viper.SetDefault("statusFixtures", false)

	c.viper.SetDefault("serverApiKey", "")
	c.viper.SetDefault("searchCacheEnabled", true)
	c.viper.SetDefault("searchCacheTTLMinutes", 60)

	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9078)
	c.viper.SetDefault("metricsBasicAuthUsers", "")
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			// A missing explicit file is created from the template
			if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
				if err := c.writeDefaultConfig(configPath); err != nil {
					return err
				}
				if err := c.viper.ReadInConfig(); err != nil {
					return fmt.Errorf("failed to read newly created config: %w", err)
				}
				return nil
			}
			return fmt.Errorf("failed to read config: %w", err)
		}
		return nil
	}

	c.viper.SetConfigName("config")
	c.viper.AddConfigPath(".")
	c.viper.AddConfigPath(GetDefaultConfigDir())

	if err := c.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
			if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
				return err
			}
			c.viper.SetConfigFile(defaultConfigPath)
			if err := c.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read newly created config: %w", err)
			}
			c.dataDir = filepath.Dir(defaultConfigPath)
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}

	return nil
}

func (c *AppConfig) loadFromEnv() {
	// DO NOT use AutomaticEnv() - it reads ALL env vars and causes conflicts with K8s
	// Instead, explicitly bind only the environment variables we want
	c.viper.BindEnv("host", envPrefix+"HOST")
	c.viper.BindEnv("port", envPrefix+"PORT")
	c.viper.BindEnv("baseUrl", envPrefix+"BASE_URL")
	c.viper.BindEnv("logLevel", envPrefix+"LOG_LEVEL")
	c.viper.BindEnv("logPath", envPrefix+"LOG_PATH")
	c.viper.BindEnv("logMaxSize", envPrefix+"LOG_MAX_SIZE")
	c.viper.BindEnv("logMaxBackups", envPrefix+"LOG_MAX_BACKUPS")
	c.viper.BindEnv("dataDir", envPrefix+"DATA_DIR")

	c.viper.BindEnv("emulexUrl", envPrefix+"EMULEX_URL")
	c.bindOrReadFromFile("apiKey", envPrefix+"API_KEY")
	c.viper.BindEnv("requestTimeout", envPrefix+"REQUEST_TIMEOUT")
	c.viper.BindEnv("requestDelay", envPrefix+"REQUEST_DELAY")
	c.viper.BindEnv("priority", envPrefix+"PRIORITY")
	c.viper.BindEnv("testSearchTerm", envPrefix+"TEST_SEARCH_TERM")

	c.viper.BindEnv("matchWords", envPrefix+"MATCH_WORDS")
	c.viper.BindEnv("strictParsing", envPrefix+"STRICT_PARSING")
	c.viper.BindEnv("freeleech", envPrefix+"FREELEECH")
	c.viper.BindEnv("linkTemplate", envPrefix+"LINK_TEMPLATE")
	c.viper.BindEnv("magnetPrefix", envPrefix+"MAGNET_PREFIX")
	c.viper.BindEnv("magnetSuffix", envPrefix+"MAGNET_SUFFIX")
	c.viper.BindEnv("magnetDisplayName", envPrefix+"MAGNET_DISPLAY_NAME")
	c.viper.BindEnv("statusFixtures", envPrefix+"STATUS_FIXTURES")

	c.bindOrReadFromFile("serverApiKey", envPrefix+"SERVER_API_KEY")
	c.viper.BindEnv("searchCacheEnabled", envPrefix+"SEARCH_CACHE_ENABLED")
	c.viper.BindEnv("searchCacheTTLMinutes", envPrefix+"SEARCH_CACHE_TTL_MINUTES")

	c.viper.BindEnv("metricsEnabled", envPrefix+"METRICS_ENABLED")
	c.viper.BindEnv("metricsHost", envPrefix+"METRICS_HOST")
	c.viper.BindEnv("metricsPort", envPrefix+"METRICS_PORT")
	c.viper.BindEnv("metricsBasicAuthUsers", envPrefix+"METRICS_BASIC_AUTH_USERS")
}

func (c *AppConfig) watchConfig() {
	c.viper.WatchConfig()
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Msgf("Config file changed: %s", e.Name)

		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload configuration")
			return
		}

		c.applyDynamicChanges()
	})
}

func (c *AppConfig) applyDynamicChanges() {
	c.Config.Version = c.version
	c.ApplyLogConfig()
	c.notifyListeners()
}

// RegisterReloadListener registers a callback that's invoked when the configuration file is reloaded.
func (c *AppConfig) RegisterReloadListener(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) notifyListeners() {
	c.listenersMu.RLock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	copied := *c.Config
	for _, listener := range listeners {
		listener(&copied)
	}
}

const configTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost" (or "0.0.0.0" in containers)
host = "{{ .host }}"

# Port
# Default: 7480
port = {{ .port }}

# Base URL
# Set custom baseUrl eg /mulebridge/ to serve in subdirectory.
#baseUrl = "/mulebridge/"

# Log file path
# If not defined, logs to stdout
#logPath = "log/mulebridge.log"

# Log rotation
# Maximum log file size in megabytes before rotation
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
#logMaxBackups = {{ .logMaxBackups }}

# Data directory (default: next to config file)
# The search cache database (mulebridge.db) is created inside this directory
#dataDir = "/var/db/mulebridge"

# Log level
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# emulex daemon base URL
emulexUrl = "{{ .emulexUrl }}"

# emulex API key, sent as X-API-KEY. Must be exactly 32 characters.
# Can also be provided through MULEBRIDGE__API_KEY or MULEBRIDGE__API_KEY_FILE
apiKey = "{{ .apiKey }}"

# HTTP timeout for emulex requests, in seconds
#requestTimeout = {{ .requestTimeout }}

# Minimum spacing between emulex requests, in seconds. 0 disables.
#requestDelay = {{ .requestDelay }}

# Search priority forwarded to emulex
#priority = {{ .priority }}

# Term used by test-config and the validation search
#testSearchTerm = "{{ .testSearchTerm }}"

# Drop results whose title does not contain every query word
#matchWords = false

# Abort the whole search when a single record fails to parse
#strictParsing = false

# Mark every release as freeleech (download factor 0, upload factor 1)
#freeleech = true

# Details link template, %s is replaced by the hash
#linkTemplate = "{{ .linkTemplate }}"

# Magnet parts: prefix + hash + suffix + "&dn=" + display name
#magnetPrefix = "{{ .magnetPrefix }}"
#magnetSuffix = "{{ .magnetSuffix }}"
#magnetDisplayName = "{{ .magnetDisplayName }}"

# Return placeholder releases from an empty search when the daemon is up
#statusFixtures = false

# API key required on the inbound Torznab/JSON API. Leave empty to disable.
#serverApiKey = ""

# Search cache
#searchCacheEnabled = true
#searchCacheTTLMinutes = {{ .searchCacheTTLMinutes }}

# Prometheus Metrics
# Enable Prometheus metrics on separate port
#metricsEnabled = false

# Metrics server host (bind address for metrics endpoint)
#metricsHost = "127.0.0.1"

# Metrics server port (separate from main API)
#metricsPort = 9078

# Basic authentication for metrics endpoint (optional)
# Format: "username:bcrypt_hash" or "user1:hash1,user2:hash2" for multiple users
#metricsBasicAuthUsers = ""
`

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	log.Debug().Msgf("Created config directory: %s", dir)

	data := map[string]any{
		"host":                  c.viper.GetString("host"),
		"port":                  c.viper.GetInt("port"),
		"logLevel":              c.viper.GetString("logLevel"),
		"logMaxSize":            c.viper.GetInt("logMaxSize"),
		"logMaxBackups":         c.viper.GetInt("logMaxBackups"),
		"emulexUrl":             c.viper.GetString("emulexUrl"),
		"apiKey":                c.viper.GetString("apiKey"),
		"requestTimeout":        c.viper.GetInt("requestTimeout"),
		"requestDelay":          c.viper.GetInt("requestDelay"),
		"priority":              c.viper.GetInt("priority"),
		"testSearchTerm":        c.viper.GetString("testSearchTerm"),
		"linkTemplate":          c.viper.GetString("linkTemplate"),
		"magnetPrefix":          c.viper.GetString("magnetPrefix"),
		"magnetSuffix":          c.viper.GetString("magnetSuffix"),
		"magnetDisplayName":     c.viper.GetString("magnetDisplayName"),
		"searchCacheTTLMinutes": c.viper.GetInt("searchCacheTTLMinutes"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// GetDefaultConfigDir returns the OS-specific config directory
func GetDefaultConfigDir() string {
	// Docker images set XDG_CONFIG_HOME to /config
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if xdgConfig == "/config" {
			return xdgConfig
		}
		return filepath.Join(xdgConfig, "mulebridge")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "mulebridge")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "mulebridge")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "mulebridge")
	}
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/dev/.lxc-boot-id"); err == nil {
		return true
	}
	return os.Getpid() == 1
}

func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	setLogLevel(c.Config.LogLevel)

	writer := baseLogWriter(c.version)

	if c.Config.LogPath != "" {
		multiWriter, err := setupLogFile(c.Config.LogPath, writer, c.Config.LogMaxSize, c.Config.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		writer.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		return writer
	}
	return os.Stderr
}

// InitDefaultLogger configures zerolog with the default writer for this version.
// This is used by CLI entry points before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// resolveConfigPath determines the actual config file path from the provided directory or file path
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}

	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}

	return filepath.Join(configDirOrPath, "config.toml")
}

func (c *AppConfig) resolveDataDir() {
	switch {
	case c.Config.DataDir != "":
		c.dataDir = c.Config.DataDir
	case c.viper.ConfigFileUsed() != "":
		c.dataDir = filepath.Dir(c.viper.ConfigFileUsed())
	case c.dataDir == "":
		c.dataDir = "."
	}
}

// GetDatabasePath returns the path to the search cache database
func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.dataDir, "mulebridge.db")
}

// GetDataDir returns the resolved data directory path.
func (c *AppConfig) GetDataDir() string {
	return c.dataDir
}

// SetDataDir sets the data directory (used by CLI flags)
func (c *AppConfig) SetDataDir(dir string) {
	c.dataDir = dir
}

// ConfigFileUsed returns the path of the loaded config file.
func (c *AppConfig) ConfigFileUsed() string {
	return c.viper.ConfigFileUsed()
}

// SetAPIKey persists a new emulex API key to the config file.
func (c *AppConfig) SetAPIKey(key string) error {
	key = strings.TrimSpace(key)
	if len(key) != APIKeyLength {
		return fmt.Errorf("api key must be %d characters, got %d", APIKeyLength, len(key))
	}

	c.viper.Set("apiKey", key)
	c.Config.APIKey = key

	path := c.viper.ConfigFileUsed()
	if path == "" {
		return fmt.Errorf("no config file loaded")
	}
	if err := c.viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func WriteDefaultConfig(path string) error {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	return c.writeDefaultConfig(path)
}

// bindOrReadFromFile reads envVar+"_FILE" when set, otherwise binds envVar.
func (c *AppConfig) bindOrReadFromFile(viperVar string, envVar string) {
	if filePath := os.Getenv(envVar + "_FILE"); filePath != "" {
		content, err := os.ReadFile(filePath)
		if err != nil {
			log.Fatal().Err(err).Str("path", filePath).Msg("Could not read " + envVar + "_FILE")
		}
		c.viper.Set(viperVar, strings.TrimSpace(string(content)))
		return
	}
	c.viper.BindEnv(viperVar, envVar)
}

// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestDatabasePathResolution(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, tmpDir string) (configPath string, envDataDir string, expectedDBPath string)
	}{
		{
			name: "default_next_to_config",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				configPath := writeConfig(t, tmpDir, "host = \"localhost\"\nport = 8080\n")
				return configPath, "", filepath.Join(tmpDir, "mulebridge.db")
			},
		},
		{
			name: "explicit_data_dir_in_config",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				dataDir := filepath.Join(tmpDir, "data")
				require.NoError(t, os.MkdirAll(dataDir, 0o755))
				configPath := writeConfig(t, tmpDir, fmt.Sprintf("host = \"localhost\"\ndataDir = %q\n", dataDir))
				return configPath, "", filepath.Join(dataDir, "mulebridge.db")
			},
		},
		{
			name: "env_var_override",
			prepare: func(t *testing.T, tmpDir string) (string, string, string) {
				configDataDir := filepath.Join(tmpDir, "config-data")
				envDataDir := filepath.Join(tmpDir, "env-data")
				require.NoError(t, os.MkdirAll(configDataDir, 0o755))
				require.NoError(t, os.MkdirAll(envDataDir, 0o755))
				configPath := writeConfig(t, tmpDir, fmt.Sprintf("host = \"localhost\"\ndataDir = %q\n", configDataDir))
				return configPath, envDataDir, filepath.Join(envDataDir, "mulebridge.db")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath, envValue, expectedDBPath := tt.prepare(t, tmpDir)
			if envValue != "" {
				t.Setenv(envPrefix+"DATA_DIR", envValue)
			}

			cfg, err := New(configPath)
			require.NoError(t, err)

			assert.Equal(t, filepath.Clean(expectedDBPath), filepath.Clean(cfg.GetDatabasePath()))
		})
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "host = \"localhost\"\n")

	cfg, err := New(configPath)
	require.NoError(t, err)

	c := cfg.Config
	assert.Equal(t, 7480, c.Port)
	assert.Equal(t, 30, c.RequestTimeout)
	assert.Equal(t, 5, c.RequestDelay)
	assert.Equal(t, 5, c.Priority)
	assert.Equal(t, "test", c.TestSearchTerm)
	assert.True(t, c.Freeleech)
	assert.False(t, c.StrictParsing)
	assert.False(t, c.MatchWords)
	assert.Equal(t, "https://ed2k.shortypower.org/?hash=%s", c.LinkTemplate)
	assert.Equal(t, "magnet:?xt=urn:btih:", c.MagnetPrefix)
	assert.Equal(t, "99999999", c.MagnetSuffix)
	assert.Equal(t, "EMULE", c.MagnetDisplayName)
	assert.True(t, c.SearchCacheEnabled)
	assert.Equal(t, 60, c.SearchCacheTTLMinutes)
	assert.Equal(t, "dev", c.Version)
}

func TestEnvOverridesFile(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "emulexUrl = \"http://file:1234/\"\nstrictParsing = false\n")

	t.Setenv(envPrefix+"EMULEX_URL", "http://env:4321/")
	t.Setenv(envPrefix+"STRICT_PARSING", "true")
	t.Setenv(envPrefix+"REQUEST_DELAY", "0")

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "http://env:4321/", cfg.Config.EmulexURL)
	assert.True(t, cfg.Config.StrictParsing)
	assert.Equal(t, 0, cfg.Config.RequestDelay)
}

func TestNewCreatesMissingConfig(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "nested", "config.toml")

	cfg, err := New(configPath)
	require.NoError(t, err)

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "emulexUrl = \"http://localhost:8080/\"")
	assert.Equal(t, "http://localhost:8080/", cfg.Config.EmulexURL)
}

func TestConfigDirResolution(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		setupFile      bool
		fileIsDir      bool
		expectedSuffix string
	}{
		{name: "toml_file_extension", input: "/path/to/custom.toml", expectedSuffix: "custom.toml"},
		{name: "TOML_file_extension_uppercase", input: "/path/to/CONFIG.TOML", expectedSuffix: "CONFIG.TOML"},
		{name: "directory_path", input: "/path/to/config", expectedSuffix: "config.toml"},
		{name: "existing_file_without_toml", input: "/path/to/configfile", setupFile: true, expectedSuffix: "configfile"},
		{name: "existing_directory", input: "/path/to/configdir", setupFile: true, fileIsDir: true, expectedSuffix: "config.toml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputPath := filepath.Join(t.TempDir(), filepath.Base(tt.input))

			if tt.setupFile {
				if tt.fileIsDir {
					require.NoError(t, os.MkdirAll(inputPath, 0o755))
				} else {
					require.NoError(t, os.WriteFile(inputPath, []byte("test"), 0o644))
				}
			}

			c := &AppConfig{}
			result := c.resolveConfigPath(inputPath)
			assert.True(t, strings.HasSuffix(result, tt.expectedSuffix),
				"Expected result %s to end with %s", result, tt.expectedSuffix)
		})
	}
}

func TestBindOrReadFromFile(t *testing.T) {
	tests := []struct {
		name          string
		envValue      string
		fileValue     string
		expectedValue string
	}{
		{name: "only_file_env_var", fileValue: "key-from-file", expectedValue: "key-from-file"},
		{name: "only_plain_env_var", envValue: "key-not-from-file", expectedValue: "key-not-from-file"},
		{name: "file_wins_over_plain", envValue: "key-not-from-file", fileValue: "key-from-file", expectedValue: "key-from-file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			envVar := envPrefix + "API_KEY"

			if tt.envValue != "" {
				t.Setenv(envVar, tt.envValue)
			}
			if tt.fileValue != "" {
				keyFile := filepath.Join(tmpDir, "key.txt")
				require.NoError(t, os.WriteFile(keyFile, []byte(tt.fileValue+"\n"), 0o600))
				t.Setenv(envVar+"_FILE", keyFile)
			}

			cfg, err := New(writeConfig(t, tmpDir, "host = \"localhost\"\n"))
			require.NoError(t, err)
			assert.Equal(t, tt.expectedValue, cfg.Config.APIKey)
		})
	}
}

func TestSetAPIKey(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "host = \"localhost\"\n")

	cfg, err := New(configPath)
	require.NoError(t, err)

	require.Error(t, cfg.SetAPIKey("short"))
	require.NoError(t, cfg.SetAPIKey(testAPIKey))
	assert.Equal(t, testAPIKey, cfg.Config.APIKey)

	reloaded, err := New(configPath)
	require.NoError(t, err)
	assert.Equal(t, testAPIKey, reloaded.Config.APIKey)
}

func TestWriteDefaultConfigKeepsExisting(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "port = 1\n")

	require.NoError(t, WriteDefaultConfig(configPath))

	content, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Equal(t, "port = 1\n", string(content))
}

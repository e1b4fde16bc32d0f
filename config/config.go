// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads, saves and validates the pledgesplit configuration
// file. The file is a flat list of "key = value" lines; '#' starts a comment.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Config holds the settings of a pledgesplit node.
type Config struct {
	DataDir    string
	ListenAddr string
	LogLevel   string
	LogFile    string

	// Split settings.
	FeeBasisPoints uint32
	Currency       string
	SigningKey     string // Hex-encoded secp256k1 private key; empty for an ephemeral key

	// Notifications.
	DiscordWebhookURL string
	RedisAddr         string
	RedisChannel      string

	// API rate limiting, per client.
	RateRPS   float64
	RateBurst int
}

// DefaultDataDir returns ~/.pledgesplit, or ./.pledgesplit when the home
// directory cannot be determined.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pledgesplit"
	}
	return filepath.Join(home, ".pledgesplit")
}

// DefaultConfig returns a Config populated with default values.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		ListenAddr:     ":8080",
		LogLevel:       "info",
		FeeBasisPoints: 1000,
		Currency:       "USD",
		RedisChannel:   "pledgesplit:splits",
		RateRPS:        5,
		RateBurst:      10,
	}
}

// ConfigPath returns the path of the config file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// LoadConfig reads the config file at path on top of DefaultConfig.
// Unknown keys are ignored so older binaries can read newer files.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %v", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits a line on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.ToLower(strings.TrimSpace(key))
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "feebps":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return fmt.Errorf("feebps: %w", err)
		}
		c.FeeBasisPoints = uint32(n)
	case "currency":
		c.Currency = value
	case "signingkey":
		c.SigningKey = value
	case "discordwebhook":
		c.DiscordWebhookURL = value
	case "redisaddr":
		c.RedisAddr = value
	case "redischannel":
		c.RedisChannel = value
	case "raterps":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("raterps: %w", err)
		}
		c.RateRPS = f
	case "rateburst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("rateburst: %w", err)
		}
		c.RateBurst = n
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
// The file may hold a signing key, so it is written 0600.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# PledgeSplit Configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "listen = %s\n", cfg.ListenAddr)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	b.WriteString("\n# Splits\n")
	fmt.Fprintf(&b, "feebps = %d\n", cfg.FeeBasisPoints)
	fmt.Fprintf(&b, "currency = %s\n", cfg.Currency)
	fmt.Fprintf(&b, "signingkey = %s\n", cfg.SigningKey)
	b.WriteString("\n# Notifications\n")
	fmt.Fprintf(&b, "discordwebhook = %s\n", cfg.DiscordWebhookURL)
	fmt.Fprintf(&b, "redisaddr = %s\n", cfg.RedisAddr)
	fmt.Fprintf(&b, "redischannel = %s\n", cfg.RedisChannel)
	b.WriteString("\n# Rate limiting\n")
	fmt.Fprintf(&b, "raterps = %s\n", strconv.FormatFloat(cfg.RateRPS, 'f', -1, 64))
	fmt.Fprintf(&b, "rateburst = %d\n", cfg.RateBurst)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

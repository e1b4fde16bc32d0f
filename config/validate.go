// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"encoding/hex"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if err := validateAddr(cfg.ListenAddr); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.FeeBasisPoints > 10000 {
		return ErrInvalidFee
	}

	if !isCurrencyCode(cfg.Currency) {
		return ErrInvalidCurrency
	}

	if cfg.SigningKey != "" {
		if b, err := hex.DecodeString(cfg.SigningKey); err != nil || len(b) != 32 {
			return ErrInvalidSigningKey
		}
	}

	if cfg.DiscordWebhookURL != "" {
		u, err := url.Parse(cfg.DiscordWebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return ErrInvalidWebhookURL
		}
	}

	if cfg.RateRPS < 0 || cfg.RateBurst < 0 {
		return ErrInvalidRateLimit
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}

func isCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}

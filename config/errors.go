// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidFee indicates a platform fee above 100%.
	ErrInvalidFee = errors.New("config: fee must be between 0 and 10000 basis points")

	// ErrInvalidCurrency indicates the currency is not a three-letter code.
	ErrInvalidCurrency = errors.New("config: currency must be a three-letter ISO 4217 code")

	// ErrInvalidSigningKey indicates the signing key is not 32 hex-encoded bytes.
	ErrInvalidSigningKey = errors.New("config: signing key must be 64 hex characters")

	// ErrInvalidWebhookURL indicates the Discord webhook URL is malformed.
	ErrInvalidWebhookURL = errors.New("config: invalid discord webhook URL")

	// ErrInvalidEnv indicates a dotenv file or environment value that
	// cannot be parsed.
	ErrInvalidEnv = errors.New("config: invalid environment")

	// ErrInvalidRateLimit indicates a negative rate or burst.
	ErrInvalidRateLimit = errors.New("config: rate limit values must not be negative")
)

// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is the prefix of every environment variable read by ApplyEnv.
const EnvPrefix = "PLEDGESPLIT_"

// LoadEnv loads dotenvPath into the process environment when the file exists
// and returns every PLEDGESPLIT_* variable. Variables already set in the
// environment win over the dotenv file. A missing file is not an error; an
// unreadable or malformed one is.
func LoadEnv(dotenvPath string) (map[string]string, error) {
	var loadErr error
	if dotenvPath != "" {
		if err := godotenv.Load(dotenvPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			loadErr = fmt.Errorf("%w: %s: %v", ErrInvalidEnv, dotenvPath, err)
		}
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(k, EnvPrefix) {
			env[k] = v
		}
	}
	return env, loadErr
}

// ApplyEnv overlays environment values on cfg. Empty values are ignored.
// Every value that fails to parse is reported in the returned error and
// leaves the existing setting in place; ValidateConfig reports anything out
// of range.
func ApplyEnv(cfg *Config, env map[string]string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(env[EnvPrefix+key]); v != "" {
			*dst = v
		}
	}

	str("DATADIR", &cfg.DataDir)
	str("LISTEN", &cfg.ListenAddr)
	str("LOGLEVEL", &cfg.LogLevel)
	str("LOGFILE", &cfg.LogFile)
	str("CURRENCY", &cfg.Currency)
	str("SIGNING_KEY", &cfg.SigningKey)
	str("DISCORD_WEBHOOK", &cfg.DiscordWebhookURL)
	str("REDIS_ADDR", &cfg.RedisAddr)
	str("REDIS_CHANNEL", &cfg.RedisChannel)

	var errs []error
	num := func(key string, parse func(string) error) {
		v := strings.TrimSpace(env[EnvPrefix+key])
		if v == "" {
			return
		}
		if err := parse(v); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s%s=%q", ErrInvalidEnv, EnvPrefix, key, v))
		}
	}

	num("FEE_BPS", func(v string) error {
		n, err := strconv.ParseUint(v, 10, 32)
		if err == nil {
			cfg.FeeBasisPoints = uint32(n)
		}
		return err
	})
	num("RATE_RPS", func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err == nil {
			cfg.RateRPS = f
		}
		return err
	})
	num("RATE_BURST", func(v string) error {
		n, err := strconv.Atoi(v)
		if err == nil {
			cfg.RateBurst = n
		}
		return err
	})
	return errors.Join(errs...)
}

package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/mikhailbahdashych/identity-core/internal/flagx"
	"github.com/mikhailbahdashych/identity-core/internal/timex"
)

// JsonConfig is the intermediate DTO for reading the JSON configuration
// file. It uses timex.Duration for interval fields, which parses both string
// values such as "15m" and integer nanoseconds. The values are copied into
// the runtime Config after unmarshalling.
type JsonConfig struct {
	EndpointAddr                 string         `json:"endpoint_addr"`
	DatabaseDSN                  string         `json:"database_dsn"`
	PrivateKeyPath               string         `json:"private_key_path"`
	PublicKeyPath                string         `json:"public_key_path"`
	EncryptionKey                string         `json:"encryption_key"`
	EncryptionIV                 string         `json:"encryption_iv"`
	PasswordSalt                 string         `json:"password_salt"`
	AccessTokenValidityDuration  timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration timex.Duration `json:"refresh_token_validity_duration"`
	PasswordChangeCooldown       timex.Duration `json:"password_change_cooldown"`
	RedisAddr                    string         `json:"redis_addr"`
	SignInMaxAttempts            int64          `json:"sign_in_max_attempts"`
	SignInWindow                 timex.Duration `json:"sign_in_window"`
	SecureCookies                *bool          `json:"secure_cookies"`
}

// parseJson loads configuration values from the JSON file named by the
// -c/-config flags. Absent flag means nothing to load; an unreadable or
// invalid file panics, since starting with half-applied config is worse
// than not starting.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	if c.EndpointAddr != "" {
		config.EndpointAddr = c.EndpointAddr
	}
	if c.DatabaseDSN != "" {
		config.DatabaseDSN = c.DatabaseDSN
	}
	if c.PrivateKeyPath != "" {
		config.PrivateKeyPath = c.PrivateKeyPath
	}
	if c.PublicKeyPath != "" {
		config.PublicKeyPath = c.PublicKeyPath
	}
	if c.EncryptionKey != "" {
		config.EncryptionKey = c.EncryptionKey
	}
	if c.EncryptionIV != "" {
		config.EncryptionIV = c.EncryptionIV
	}
	if c.PasswordSalt != "" {
		config.PasswordSalt = c.PasswordSalt
	}
	if c.AccessTokenValidityDuration.Duration != 0 {
		config.AccessTokenValidityDuration = time.Duration(c.AccessTokenValidityDuration.Duration)
	}
	if c.RefreshTokenValidityDuration.Duration != 0 {
		config.RefreshTokenValidityDuration = time.Duration(c.RefreshTokenValidityDuration.Duration)
	}
	if c.PasswordChangeCooldown.Duration != 0 {
		config.PasswordChangeCooldown = time.Duration(c.PasswordChangeCooldown.Duration)
	}
	if c.RedisAddr != "" {
		config.RedisAddr = c.RedisAddr
	}
	if c.SignInMaxAttempts != 0 {
		config.SignInMaxAttempts = c.SignInMaxAttempts
	}
	if c.SignInWindow.Duration != 0 {
		config.SignInWindow = time.Duration(c.SignInWindow.Duration)
	}
	// pointer so an explicit "secure_cookies": false can override the default
	if c.SecureCookies != nil {
		config.SecureCookies = *c.SecureCookies
	}
}

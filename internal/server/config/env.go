package config

import (
	"os"
	"strconv"
)

// parseEnv overlays values from environment variables. Key material is
// expected to arrive this way in deployments; paths and addresses are also
// accepted for container setups.
func parseEnv(config *Config) {
	set := func(dst *string, name string) {
		if v, ok := os.LookupEnv(name); ok {
			*dst = v
		}
	}

	set(&config.EndpointAddr, "IDENTITY_ENDPOINT_ADDR")
	set(&config.DatabaseDSN, "IDENTITY_DATABASE_DSN")
	set(&config.PrivateKeyPath, "IDENTITY_PRIVATE_KEY_PATH")
	set(&config.PublicKeyPath, "IDENTITY_PUBLIC_KEY_PATH")
	set(&config.EncryptionKey, "IDENTITY_ENCRYPTION_KEY")
	set(&config.EncryptionIV, "IDENTITY_ENCRYPTION_IV")
	set(&config.PasswordSalt, "IDENTITY_PASSWORD_SALT")
	set(&config.RedisAddr, "IDENTITY_REDIS_ADDR")

	if v, ok := os.LookupEnv("IDENTITY_SECURE_COOKIES"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			config.SecureCookies = b
		}
	}
}

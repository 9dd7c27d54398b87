package config

import (
	"os"
	"strings"
)

// LoadTrustedProxies reads the comma-separated TRUSTED_PROXIES list.
func LoadTrustedProxies() []string {
	proxiesEnv := os.Getenv("TRUSTED_PROXIES")
	if proxiesEnv == "" {
		// default: only trust loopback
		return []string{"127.0.0.1"}
	}
	return strings.Split(proxiesEnv, ",")
}

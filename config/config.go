package config

import (
	"os"
	"strings"
)

type Config struct {
	Port     string
	MongoURI string // empty = run without a remote store (local snapshot only)
	DBName   string
	DataDir  string // Badger directory for snapshots and the asset cache

	JWTSecret string
	AuthEmail string
	AuthPass  string

	MetadataLang string // langRestrict for free-text metadata search; empty = no restriction

	AssetUpstream     string // origin serving the client app; empty disables the asset cache
	AssetCacheVersion string
	Assets            []string // overrides the default asset list when set
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		MongoURI:          getEnv("MONGODB_URI", ""),
		DBName:            getEnv("MONGODB_DB", "orbitalshelf"),
		DataDir:           getEnv("DATA_DIR", "./data"),
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		AuthEmail:         getEnv("AUTH_EMAIL", "user@example.com"),
		AuthPass:          getEnv("AUTH_PASSWORD", "password"),
		MetadataLang:      getEnv("GOOGLE_BOOKS_LANG", "ja"),
		AssetUpstream:     getEnv("ASSET_UPSTREAM", ""),
		AssetCacheVersion: getEnv("ASSET_CACHE_VERSION", "v3"),
	}
	if raw := getEnv("ASSET_LIST", ""); raw != "" {
		for _, a := range strings.Split(raw, ",") {
			if a = strings.TrimSpace(a); a != "" {
				cfg.Assets = append(cfg.Assets, a)
			}
		}
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

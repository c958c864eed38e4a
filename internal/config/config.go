// Package config loads connector settings from the environment, with an
// optional Vault KV2 overlay for secrets.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Deployment environments.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds everything a connector binary needs at boot. Secrets may be
// overridden from Vault after Load via ApplySecrets.
type Config struct {
	Env  string
	Port string

	RedisURL string
	NATSURL  string

	VerifyToken          string
	WebhookSecret        string
	AccessToken          string
	ScopeID              string // WhatsApp phone number id or Instagram page id
	StagingOutboundToken string

	DedupeTTL        time.Duration
	OutboundFailMode string

	RateLimit  int
	RateWindow time.Duration

	GraphBaseURL    string
	GraphAPIVersion string

	OTELEndpoint string

	VaultAddr       string
	VaultToken      string
	VaultSecretPath string

	// TenantMap resolves platform scope ids to tenant ids.
	TenantMap map[string]string
}

// Load reads the environment. prefix selects the connector-specific
// variables, e.g. "WHATSAPP" reads WHATSAPP_VERIFY_TOKEN.
func Load(prefix string) (*Config, error) {
	cfg := &Config{
		Env:  getenv("APP_ENV", EnvDevelopment),
		Port: getenv("PORT", "8080"),

		RedisURL: os.Getenv("REDIS_URL"),
		NATSURL:  os.Getenv("NATS_URL"),

		VerifyToken:          os.Getenv(prefix + "_VERIFY_TOKEN"),
		WebhookSecret:        os.Getenv(prefix + "_WEBHOOK_SECRET"),
		AccessToken:          os.Getenv(prefix + "_ACCESS_TOKEN"),
		StagingOutboundToken: os.Getenv("STAGING_OUTBOUND_TOKEN"),

		OutboundFailMode: getenv("DEDUPE_FAIL_MODE_OUTBOUND", "open"),

		GraphBaseURL:    getenv("GRAPH_BASE_URL", "https://graph.facebook.com"),
		GraphAPIVersion: getenv("GRAPH_API_VERSION", "v21.0"),

		OTELEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		VaultAddr:       os.Getenv("VAULT_ADDR"),
		VaultToken:      os.Getenv("VAULT_TOKEN"),
		VaultSecretPath: os.Getenv("VAULT_SECRET_PATH"),
	}

	// The scope id variable is platform specific; accept either name.
	cfg.ScopeID = os.Getenv(prefix + "_PHONE_NUMBER_ID")
	if cfg.ScopeID == "" {
		cfg.ScopeID = os.Getenv(prefix + "_PAGE_ID")
	}

	var err error
	if cfg.DedupeTTL, err = getduration("DEDUPE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.RateWindow, err = getduration("RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	if raw := os.Getenv("RATE_LIMIT"); raw != "" {
		cfg.RateLimit, err = strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("RATE_LIMIT: %w", err)
		}
	}
	if cfg.TenantMap, err = parseTenantMap(os.Getenv("TENANT_MAP")); err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsProductionLike reports whether the fail-closed boot rules apply.
func (c *Config) IsProductionLike() bool {
	return c.Env == EnvStaging || c.Env == EnvProduction
}

// Validate enforces the boot requirements for the current environment.
// Development runs with whatever is present.
func (c *Config) Validate() error {
	if !c.IsProductionLike() {
		return nil
	}
	var missing []string
	if c.RedisURL == "" {
		missing = append(missing, "REDIS_URL")
	}
	if c.WebhookSecret == "" {
		missing = append(missing, "webhook secret")
	}
	if c.VerifyToken == "" {
		missing = append(missing, "verify token")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s requires %s", c.Env, strings.Join(missing, ", "))
	}
	return nil
}

// ApplySecrets overlays Vault KV2 data onto the config. Only known keys are
// consulted; everything else in the secret is ignored.
func (c *Config) ApplySecrets(secrets map[string]interface{}) {
	set := func(dst *string, key string) {
		if v, ok := secrets[key].(string); ok && v != "" {
			*dst = v
		}
	}
	set(&c.WebhookSecret, "webhook_secret")
	set(&c.VerifyToken, "verify_token")
	set(&c.AccessToken, "access_token")
	set(&c.StagingOutboundToken, "staging_outbound_token")
	set(&c.RedisURL, "redis_url")
	set(&c.NATSURL, "nats_url")
}

// TenantFor resolves the tenant owning a platform scope id; empty when
// unmapped.
func (c *Config) TenantFor(scopeID string) string {
	return c.TenantMap[scopeID]
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getduration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseTenantMap reads "scopeID=tenantID" pairs separated by commas.
func parseTenantMap(raw string) (map[string]string, error) {
	out := make(map[string]string)
	if raw == "" {
		return out, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		scope, tenant, found := strings.Cut(pair, "=")
		if !found || scope == "" || tenant == "" {
			return nil, fmt.Errorf("TENANT_MAP: malformed pair %q", pair)
		}
		out[scope] = tenant
	}
	return out, nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	Subscriber SubscriberConfig
	Keys       KeysConfig
	Gateway    GatewayConfig
	Registry   RegistryConfig
	Redis      RedisConfig
	Signature  SignatureConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Port         int
	Host         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// SubscriberConfig carries this node's network identity, stamped into every
// outbound context.
type SubscriberConfig struct {
	SubscriberID  string // bap_id
	SubscriberURI string // bap_uri
	UkID          string
	Domain        string
	Country       string
	City          string
	CoreVersion   string
}

// KeysConfig holds base64-encoded key material. When a pair is absent the key
// provider generates one at startup and writes it back into this struct; the
// struct is the single owner of key configuration, ambient env is never
// mutated.
type KeysConfig struct {
	SigningPrivateKey    string // base64 ed25519 private key
	SigningPublicKey     string // base64 ed25519 public key
	EncryptionPrivateKey string // base64 X25519 private key
	EncryptionPublicKey  string // base64 X25519 public key
}

type GatewayConfig struct {
	URL            string
	RequestTimeout time.Duration
}

type RegistryConfig struct {
	URL                 string
	EncryptionPublicKey string            // base64 X25519 public key, for the subscription handshake
	StaticKeys          map[string]string // "subscriber_id|uk_id" -> base64 public key
	CacheTTL            time.Duration
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type SignatureConfig struct {
	ValiditySeconds int // signature lifetime: expires = created + validity
	TimestampWindow int // replay window for callback context timestamps, seconds
	RequestTTL      int // protocol ttl stamped on outbound contexts, seconds
}

type LoggingConfig struct {
	Level    string
	Encoding string
}

func LoadConfig() (*Config, error) {
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", 8080)
	viper.SetDefault("SERVER_READ_TIMEOUT", "10s")
	viper.SetDefault("SERVER_WRITE_TIMEOUT", "10s")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("BAP_DOMAIN", "nic2004:52110")
	viper.SetDefault("BAP_COUNTRY", "IND")
	viper.SetDefault("BAP_CITY", "std:080")
	viper.SetDefault("BAP_CORE_VERSION", "1.1.0")
	viper.SetDefault("GATEWAY_REQUEST_TIMEOUT", "30s")
	viper.SetDefault("SIGNATURE_VALIDITY_SECONDS", 3600)
	viper.SetDefault("SIGNATURE_TIMESTAMP_WINDOW", 300)
	viper.SetDefault("REQUEST_TTL_SECONDS", 30)
	viper.SetDefault("REGISTRY_CACHE_TTL", "5m")

	readTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_READ_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_READ_TIMEOUT: %w", err)
	}
	writeTimeout, err := parseDurationWithDefault(viper.GetString("SERVER_WRITE_TIMEOUT"), 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT: %w", err)
	}
	gatewayTimeout, err := parseDurationWithDefault(viper.GetString("GATEWAY_REQUEST_TIMEOUT"), 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_REQUEST_TIMEOUT: %w", err)
	}
	cacheTTL, err := parseDurationWithDefault(viper.GetString("REGISTRY_CACHE_TTL"), 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("invalid REGISTRY_CACHE_TTL: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:         viper.GetInt("SERVER_PORT"),
			Host:         viper.GetString("SERVER_HOST"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
		},
		Subscriber: SubscriberConfig{
			SubscriberID:  viper.GetString("BAP_SUBSCRIBER_ID"),
			SubscriberURI: viper.GetString("BAP_SUBSCRIBER_URI"),
			UkID:          viper.GetString("BAP_UK_ID"),
			Domain:        viper.GetString("BAP_DOMAIN"),
			Country:       viper.GetString("BAP_COUNTRY"),
			City:          viper.GetString("BAP_CITY"),
			CoreVersion:   viper.GetString("BAP_CORE_VERSION"),
		},
		Keys: KeysConfig{
			SigningPrivateKey:    viper.GetString("BAP_SIGNING_PRIVATE_KEY"),
			SigningPublicKey:     viper.GetString("BAP_SIGNING_PUBLIC_KEY"),
			EncryptionPrivateKey: viper.GetString("BAP_ENCRYPTION_PRIVATE_KEY"),
			EncryptionPublicKey:  viper.GetString("BAP_ENCRYPTION_PUBLIC_KEY"),
		},
		Gateway: GatewayConfig{
			URL:            viper.GetString("GATEWAY_URL"),
			RequestTimeout: gatewayTimeout,
		},
		Registry: RegistryConfig{
			URL:                 viper.GetString("REGISTRY_URL"),
			EncryptionPublicKey: viper.GetString("REGISTRY_ENCRYPTION_PUBLIC_KEY"),
			StaticKeys:          parseStaticKeys(viper.GetString("REGISTRY_STATIC_KEYS")),
			CacheTTL:            cacheTTL,
		},
		Redis: RedisConfig{
			Enabled:  viper.GetBool("REDIS_ENABLED"),
			Host:     viper.GetString("REDIS_HOST"),
			Port:     viper.GetInt("REDIS_PORT"),
			Password: viper.GetString("REDIS_PASSWORD"),
			DB:       viper.GetInt("REDIS_DB"),
		},
		Signature: SignatureConfig{
			ValiditySeconds: viper.GetInt("SIGNATURE_VALIDITY_SECONDS"),
			TimestampWindow: viper.GetInt("SIGNATURE_TIMESTAMP_WINDOW"),
			RequestTTL:      viper.GetInt("REQUEST_TTL_SECONDS"),
		},
		Logging: LoggingConfig{
			Level:    viper.GetString("LOG_LEVEL"),
			Encoding: viper.GetString("LOG_ENCODING"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := c.validateSubscriber(); err != nil {
		return fmt.Errorf("subscriber config: %w", err)
	}
	if err := c.validateGateway(); err != nil {
		return fmt.Errorf("gateway config: %w", err)
	}
	if err := c.validateRegistry(); err != nil {
		return fmt.Errorf("registry config: %w", err)
	}
	if err := c.validateSignature(); err != nil {
		return fmt.Errorf("signature config: %w", err)
	}
	if err := c.validateRedis(); err != nil {
		return fmt.Errorf("redis config: %w", err)
	}
	return nil
}

func (c *Config) validateSubscriber() error {
	if c.Subscriber.SubscriberID == "" {
		return fmt.Errorf("subscriber id is required")
	}
	if c.Subscriber.SubscriberURI == "" {
		return fmt.Errorf("subscriber uri is required")
	}
	if c.Subscriber.UkID == "" {
		return fmt.Errorf("uk id is required")
	}
	if c.Subscriber.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	return nil
}

func (c *Config) validateGateway() error {
	if c.Gateway.URL == "" {
		return fmt.Errorf("url is required")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be greater than 0")
	}
	return nil
}

func (c *Config) validateRegistry() error {
	if c.Registry.URL == "" && len(c.Registry.StaticKeys) == 0 {
		return fmt.Errorf("either registry url or static keys are required")
	}
	return nil
}

func (c *Config) validateSignature() error {
	if c.Signature.ValiditySeconds <= 0 {
		return fmt.Errorf("signature validity must be greater than 0")
	}
	if c.Signature.TimestampWindow <= 0 {
		return fmt.Errorf("timestamp window must be greater than 0")
	}
	if c.Signature.RequestTTL <= 0 {
		return fmt.Errorf("request ttl must be greater than 0")
	}
	return nil
}

func (c *Config) validateRedis() error {
	if !c.Redis.Enabled {
		return nil
	}
	if c.Redis.Host == "" {
		return fmt.Errorf("host is required when redis is enabled")
	}
	if c.Redis.Port == 0 {
		return fmt.Errorf("port is required when redis is enabled")
	}
	return nil
}

// parseStaticKeys parses "subscriber|uk_id=base64key,subscriber2|uk2=base64key2"
// into a lookup map. Malformed entries are skipped.
func parseStaticKeys(s string) map[string]string {
	keys := make(map[string]string)
	if s == "" {
		return keys
	}
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		idx := strings.Index(entry, "=")
		if idx <= 0 || idx == len(entry)-1 {
			continue
		}
		keys[strings.TrimSpace(entry[:idx])] = strings.TrimSpace(entry[idx+1:])
	}
	return keys
}

func parseDurationWithDefault(s string, defaultVal time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal, nil
	}
	return time.ParseDuration(s)
}

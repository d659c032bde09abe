// Package config loads slicemail configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultMaxUploadSize is 20 MB in bytes, enough for three full-width slices.
const defaultMaxUploadSize = 20 << 20

// Config holds the complete application configuration.
type Config struct {
	// Uploader selects the image hosting backend: "cloudinary" or "s3".
	// Empty means auto-detect.
	Uploader   string           `yaml:"uploader"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
	S3         S3Config         `yaml:"s3"`

	// Provider selects where generated documents go: "stdout", "file",
	// "ses" or "graph". Empty means auto-detect.
	Provider string        `yaml:"provider"`
	Output   OutputConfig  `yaml:"output"`
	Preview  PreviewConfig `yaml:"preview"`
	SES      SESConfig     `yaml:"ses"`
	Graph    GraphConfig   `yaml:"graph"`

	HTTP    HTTPConfig    `yaml:"http"`
	TLS     TLSConfig     `yaml:"tls"`
	Logging LoggingConfig `yaml:"logging"`
}

// CloudinaryConfig holds the unsigned upload settings.
type CloudinaryConfig struct {
	CloudName    string `yaml:"cloud_name"`
	UploadPreset string `yaml:"upload_preset"`
	APIBase      string `yaml:"api_base"`
}

// S3Config holds the bucket images are stored in.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Endpoint        string `yaml:"endpoint"`
	PublicURL       string `yaml:"public_url"`
	Prefix          string `yaml:"prefix"`
}

// OutputConfig holds the file provider settings.
type OutputConfig struct {
	Dir      string `yaml:"dir"`
	FileName string `yaml:"file_name"`
}

// PreviewConfig describes the preview email sent by the ses and graph providers.
type PreviewConfig struct {
	Subject string   `yaml:"subject"`
	To      []string `yaml:"to"`
	Cc      []string `yaml:"cc"`
}

// SESConfig holds AWS SES configuration.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// GraphConfig holds Microsoft Graph API configuration.
type GraphConfig struct {
	TenantID        string `yaml:"tenant_id"`
	ClientID        string `yaml:"client_id"`
	ClientSecret    string `yaml:"client_secret"`
	Sender          string `yaml:"sender"`
	SaveToSentItems bool   `yaml:"save_to_sent_items"`
}

// HTTPConfig holds the HTTP shell configuration.
type HTTPConfig struct {
	Listen        string `yaml:"listen"`
	Username      string `yaml:"username"`
	Password      string `yaml:"password"`
	MaxUploadSize int64  `yaml:"max_upload_size"`
}

// TLSConfig holds TLS settings for the HTTP shell.
type TLSConfig struct {
	Enabled  bool     `yaml:"enabled"`
	CertFile string   `yaml:"cert_file"`
	KeyFile  string   `yaml:"key_file"`
	Hosts    []string `yaml:"hosts"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Load loads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file as the base layer,
// then overrides with environment variables. Returns an error if the
// specified file cannot be read or parsed.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyEnvVars(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CloudinaryConfigured returns true if the cloud name and upload preset are set.
func (c *Config) CloudinaryConfigured() bool {
	return c.Cloudinary.CloudName != "" && c.Cloudinary.UploadPreset != ""
}

// S3Configured returns true if a bucket is set.
func (c *Config) S3Configured() bool {
	return c.S3.Bucket != ""
}

// SESConfigured returns true if the SES region and sender are set.
func (c *Config) SESConfigured() bool {
	return c.SES.Region != "" && c.SES.Sender != ""
}

// GraphConfigured returns true if all four Graph API credentials are set.
func (c *Config) GraphConfigured() bool {
	return c.Graph.TenantID != "" &&
		c.Graph.ClientID != "" &&
		c.Graph.ClientSecret != "" &&
		c.Graph.Sender != ""
}

// AuthEnabled returns true if both HTTP username and password are set.
func (c *Config) AuthEnabled() bool {
	return c.HTTP.Username != "" && c.HTTP.Password != ""
}

func (c *Config) applyDefaults() {
	c.Cloudinary.APIBase = "https://api.cloudinary.com"
	c.S3.Prefix = "mail"
	c.Output.Dir = "."
	c.Output.FileName = "maipu-mail.html"
	c.Preview.Subject = "Maipú crece en obras"
	c.HTTP.Listen = ":8080"
	c.HTTP.MaxUploadSize = defaultMaxUploadSize
	c.Logging.Level = "info"
}

// applyEnvVars overrides configuration with environment variable values.
// Only non-empty environment variables override existing values.
func (c *Config) applyEnvVars() error {
	setString(&c.Uploader, "UPLOADER")
	setString(&c.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	setString(&c.Cloudinary.UploadPreset, "CLOUDINARY_UPLOAD_PRESET")
	setString(&c.Cloudinary.APIBase, "CLOUDINARY_API_BASE")

	setString(&c.S3.Bucket, "S3_BUCKET")
	setString(&c.S3.Region, "S3_REGION")
	setString(&c.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&c.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&c.S3.Endpoint, "S3_ENDPOINT")
	setString(&c.S3.PublicURL, "S3_PUBLIC_URL")
	setString(&c.S3.Prefix, "S3_PREFIX")

	setString(&c.Provider, "PROVIDER")
	setString(&c.Output.Dir, "OUTPUT_DIR")
	setString(&c.Output.FileName, "OUTPUT_FILE_NAME")
	setString(&c.Preview.Subject, "PREVIEW_SUBJECT")
	setList(&c.Preview.To, "PREVIEW_TO")
	setList(&c.Preview.Cc, "PREVIEW_CC")

	setString(&c.SES.Region, "SES_REGION")
	setString(&c.SES.AccessKeyID, "SES_ACCESS_KEY_ID")
	setString(&c.SES.SecretAccessKey, "SES_SECRET_ACCESS_KEY")
	setString(&c.SES.Sender, "SES_SENDER")

	setString(&c.Graph.TenantID, "GRAPH_TENANT_ID")
	setString(&c.Graph.ClientID, "GRAPH_CLIENT_ID")
	setString(&c.Graph.ClientSecret, "GRAPH_CLIENT_SECRET")
	setString(&c.Graph.Sender, "GRAPH_SENDER")
	if err := setBool(&c.Graph.SaveToSentItems, "GRAPH_SAVE_TO_SENT_ITEMS"); err != nil {
		return err
	}

	setString(&c.HTTP.Listen, "HTTP_LISTEN")
	setString(&c.HTTP.Username, "HTTP_USERNAME")
	setString(&c.HTTP.Password, "HTTP_PASSWORD")
	if v := os.Getenv("HTTP_MAX_UPLOAD_SIZE"); v != "" {
		size, err := strconv.ParseInt(v, 10, 64)
		if err != nil || size <= 0 {
			return fmt.Errorf("invalid HTTP_MAX_UPLOAD_SIZE %q", v)
		}
		c.HTTP.MaxUploadSize = size
	}

	if err := setBool(&c.TLS.Enabled, "TLS_ENABLED"); err != nil {
		return err
	}
	setString(&c.TLS.CertFile, "TLS_CERT_FILE")
	setString(&c.TLS.KeyFile, "TLS_KEY_FILE")
	setList(&c.TLS.Hosts, "TLS_HOSTS")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}

	c.Uploader = strings.ToLower(c.Uploader)
	c.Provider = strings.ToLower(c.Provider)
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// setList splits a comma-separated variable, dropping empty entries.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}

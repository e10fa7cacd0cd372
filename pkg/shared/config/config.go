package config

import (
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v2"
)

// Config is the root of the YAML configuration file.
type Config struct {
	Logicscan  Logicscan  `yaml:"logicscan"`
	Logger     Logger     `yaml:"logger"`
	HTTPClient HTTPClient `yaml:"http_client"`
	GitClient  GitClient  `yaml:"git_client"`
	LLM        LLM        `yaml:"llm"`
	Scan       Scan       `yaml:"scan"`
	Symbolic   Symbolic   `yaml:"symbolic"`
	Store      Store      `yaml:"store"`
}

// Logicscan holds the working folders of the application.
type Logicscan struct {
	HomeFolder    string `yaml:"home_folder"`
	TempFolder    string `yaml:"temp_folder"`
	ResultsFolder string `yaml:"results_folder"`
}

// Logger holds the logging settings.
type Logger struct {
	Level           string `yaml:"level"`
	DisableTime     *bool  `yaml:"disable_time"`
	JSONFormat      *bool  `yaml:"json_format"`
	IncludeLocation *bool  `yaml:"include_location"`
}

// HTTPClient holds the settings of the shared resty client.
type HTTPClient struct {
	Debug            *bool           `yaml:"debug"`
	RetryCount       int             `yaml:"retry_count"`
	RetryWaitTime    time.Duration   `yaml:"retry_wait_time"`
	RetryMaxWaitTime time.Duration   `yaml:"retry_max_wait_time"`
	Timeout          time.Duration   `yaml:"timeout"`
	TLSClientConfig  TLSClientConfig `yaml:"tls_client_config"`
	Proxy            Proxy           `yaml:"proxy"`
}

type TLSClientConfig struct {
	Verify *bool `yaml:"verify"`
}

type Proxy struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// GitClient holds the repository checkout settings.
type GitClient struct {
	Depth          int           `yaml:"depth"`
	InsecureTLS    *bool         `yaml:"insecure_tls"`
	Timeout        time.Duration `yaml:"timeout"`
	AuthType       string        `yaml:"auth_type"`
	Host           string        `yaml:"host"`
	Username       string        `yaml:"username"`
	Token          string        `yaml:"token"`
	SSHKey         string        `yaml:"ssh_key"`
	SSHKeyPassword string        `yaml:"ssh_key_password"`
	GitHubAPIURL   string        `yaml:"github_api_url"`
}

// LLM holds the model provider and dispatcher settings.
type LLM struct {
	Provider          string        `yaml:"provider"`
	BaseURL           string        `yaml:"base_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	RemediationModel  string        `yaml:"remediation_model"`
	Temperature       *float32      `yaml:"temperature"`
	Concurrency       int           `yaml:"concurrency"`
	MaxAttempts       int           `yaml:"max_attempts"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	MaxSnippetChars   int           `yaml:"max_snippet_chars"`
}

// Scan holds triage, chunking and orchestration settings.
type Scan struct {
	MaxFiles     int        `yaml:"max_files"`
	MinFileBytes int64      `yaml:"min_file_bytes"`
	PrefixBytes  int        `yaml:"prefix_bytes"`
	ChunkSize    int        `yaml:"chunk_size"`
	ChunkOverlap int        `yaml:"chunk_overlap"`
	Thresholds   Thresholds `yaml:"thresholds"`
	Retry        Retry      `yaml:"retry"`
}

type Thresholds struct {
	Critical int `yaml:"critical"`
	High     int `yaml:"high"`
	Medium   int `yaml:"medium"`
}

type Retry struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Delay       time.Duration `yaml:"delay"`
}

// Symbolic holds the consistency checker settings.
type Symbolic struct {
	ExclusivePermissions *bool `yaml:"exclusive_permissions"`
}

// Store selects the scan record backend.
type Store struct {
	Type   string `yaml:"type"`
	Folder string `yaml:"folder"`
	S3     S3     `yaml:"s3"`
}

type S3 struct {
	Bucket         string `yaml:"bucket"`
	Prefix         string `yaml:"prefix"`
	Region         string `yaml:"region"`
	Endpoint       string `yaml:"endpoint"`
	ForcePathStyle *bool  `yaml:"force_path_style"`
}

// ValidateConfigPath checks that path points to a regular file.
func ValidateConfigPath(path string) error {
	s, err := os.Stat(path)
	if err != nil {
		return err
	}
	if s.IsDir() {
		return fmt.Errorf("'%s' is a directory, not a file", path)
	}
	return nil
}

// LoadYAML decodes the YAML file at configPath into data.
func LoadYAML(configPath string, data interface{}) error {
	if err := ValidateConfigPath(configPath); err != nil {
		return err
	}

	file, err := os.Open(configPath)
	if err != nil {
		return err
	}
	defer file.Close()

	d := yaml.NewDecoder(file)
	if err := d.Decode(data); err != nil {
		return err
	}

	return nil
}

// LoadConfig reads the configuration file. A missing file is reported to the
// caller so it can decide whether defaults are acceptable.
func LoadConfig(configPath string) (*Config, error) {
	cfg := &Config{}
	if err := LoadYAML(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config %q: %w", configPath, err)
	}
	return cfg, nil
}

// GetLogicscanHome returns the home folder of the application.
func GetLogicscanHome(cfg *Config) string {
	return cfg.Logicscan.HomeFolder
}

// GetLogicscanTempHome returns the folder where ephemeral checkouts are created.
func GetLogicscanTempHome(cfg *Config) string {
	return cfg.Logicscan.TempFolder
}

// GetLogicscanResultsHome returns the folder where reports are written by default.
func GetLogicscanResultsHome(cfg *Config) string {
	return cfg.Logicscan.ResultsFolder
}

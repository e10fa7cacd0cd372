package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

var (
	knownProviders = map[string]bool{"": true, "openai": true, "ollama": true}
	knownAuthTypes = map[string]bool{"": true, "http": true, "ssh-key": true, "ssh-agent": true}
	knownStores    = map[string]bool{"": true, "file": true, "s3": true, "memory": true}
)

// ValidateConfig checks if the global configurations have valid values.
func ValidateConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("YAML global config: configuration object is nil")
	}
	if err := ValidateLogicscanConfig(cfg); err != nil {
		return fmt.Errorf("YAML global config: logicscan directive is invalid: %w", err)
	}
	if err := ValidateHTTPConfig(&cfg.HTTPClient); err != nil {
		return fmt.Errorf("YAML global config: http_client directive is invalid: %w", err)
	}
	if err := ValidateGitConfig(&cfg.GitClient); err != nil {
		return fmt.Errorf("YAML global config: git_client directive is invalid: %w", err)
	}
	if err := ValidateLLMConfig(&cfg.LLM); err != nil {
		return fmt.Errorf("YAML global config: llm directive is invalid: %w", err)
	}
	if err := ValidateScanConfig(&cfg.Scan); err != nil {
		return fmt.Errorf("YAML global config: scan directive is invalid: %w", err)
	}
	if err := ValidateStoreConfig(&cfg.Store); err != nil {
		return fmt.Errorf("YAML global config: store directive is invalid: %w", err)
	}
	return nil
}

// ValidateLogicscanConfig resolves and creates the working folders.
func ValidateLogicscanConfig(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("logicscan configuration is nil")
	}
	if err := updateHome(cfg); err != nil {
		return fmt.Errorf("failed to update home folder: %w", err)
	}
	if err := updateFolder(&cfg.Logicscan.TempFolder, "LOGICSCAN_TEMP_FOLDER", "tmp", cfg); err != nil {
		return fmt.Errorf("failed to update temp folder: %w", err)
	}
	if err := updateFolder(&cfg.Logicscan.ResultsFolder, "LOGICSCAN_RESULTS_FOLDER", "results", cfg); err != nil {
		return fmt.Errorf("failed to update results folder: %w", err)
	}
	return nil
}

// ValidateGitConfig checks if the Git configurations have valid values.
func ValidateGitConfig(gitConfig *GitClient) error {
	if gitConfig == nil {
		return fmt.Errorf("git configuration is nil")
	}
	if err := validateDuration(gitConfig.Timeout, "timeout", 1*time.Hour); err != nil {
		return err
	}
	if gitConfig.Depth < 0 {
		return fmt.Errorf("depth cannot be negative: %d", gitConfig.Depth)
	}
	if !knownAuthTypes[gitConfig.AuthType] {
		return fmt.Errorf("unknown auth_type %q", gitConfig.AuthType)
	}
	if gitConfig.GitHubAPIURL != "" {
		if _, err := url.Parse(gitConfig.GitHubAPIURL); err != nil {
			return fmt.Errorf("invalid github_api_url: %w", err)
		}
	}
	return nil
}

// ValidateHTTPConfig checks if the HTTP configurations have valid values.
func ValidateHTTPConfig(httpConfig *HTTPClient) error {
	if httpConfig == nil {
		return fmt.Errorf("HTTP configuration is nil")
	}
	if httpConfig.RetryCount < 0 || httpConfig.RetryCount > 20 {
		return fmt.Errorf("retry_count must be between 0 and 20: %d", httpConfig.RetryCount)
	}

	durations := map[string]time.Duration{
		"RetryMaxWaitTime": httpConfig.RetryMaxWaitTime,
		"RetryWaitTime":    httpConfig.RetryWaitTime,
	}
	for name, duration := range durations {
		if err := validateDuration(duration, name, 100*time.Second); err != nil {
			return err
		}
	}
	if err := validateDuration(httpConfig.Timeout, "Timeout", 10*time.Minute); err != nil {
		return err
	}

	return validateProxy(&httpConfig.Proxy)
}

// ValidateLLMConfig checks the provider and dispatcher settings.
func ValidateLLMConfig(llmConfig *LLM) error {
	if llmConfig == nil {
		return fmt.Errorf("llm configuration is nil")
	}
	if !knownProviders[llmConfig.Provider] {
		return fmt.Errorf("unknown provider %q", llmConfig.Provider)
	}
	if llmConfig.Concurrency < 0 || llmConfig.Concurrency > 64 {
		return fmt.Errorf("concurrency must be between 0 and 64: %d", llmConfig.Concurrency)
	}
	if llmConfig.MaxAttempts < 0 || llmConfig.MaxAttempts > 10 {
		return fmt.Errorf("max_attempts must be between 0 and 10: %d", llmConfig.MaxAttempts)
	}
	if llmConfig.RequestsPerSecond < 0 {
		return fmt.Errorf("requests_per_second cannot be negative: %v", llmConfig.RequestsPerSecond)
	}
	if llmConfig.MaxSnippetChars < 0 {
		return fmt.Errorf("max_snippet_chars cannot be negative: %d", llmConfig.MaxSnippetChars)
	}
	if llmConfig.BaseURL != "" {
		if _, err := url.Parse(llmConfig.BaseURL); err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
	}
	return validateDuration(llmConfig.RetryDelay, "retry_delay", 1*time.Minute)
}

// ValidateScanConfig checks triage, chunking and retry settings.
func ValidateScanConfig(scanConfig *Scan) error {
	if scanConfig == nil {
		return fmt.Errorf("scan configuration is nil")
	}
	if scanConfig.MaxFiles < 0 {
		return fmt.Errorf("max_files cannot be negative: %d", scanConfig.MaxFiles)
	}
	if scanConfig.MinFileBytes < 0 || scanConfig.PrefixBytes < 0 {
		return fmt.Errorf("min_file_bytes and prefix_bytes cannot be negative")
	}
	if scanConfig.ChunkSize < 0 || scanConfig.ChunkOverlap < 0 {
		return fmt.Errorf("chunk_size and chunk_overlap cannot be negative")
	}
	if scanConfig.ChunkSize > 0 && scanConfig.ChunkOverlap >= scanConfig.ChunkSize {
		return fmt.Errorf("chunk_overlap (%d) must be smaller than chunk_size (%d)", scanConfig.ChunkOverlap, scanConfig.ChunkSize)
	}

	t := scanConfig.Thresholds
	if t != (Thresholds{}) && !(t.Critical > t.High && t.High > t.Medium && t.Medium > 0) {
		return fmt.Errorf("thresholds must satisfy critical > high > medium > 0: %+v", t)
	}

	if scanConfig.Retry.MaxAttempts < 0 {
		return fmt.Errorf("retry.max_attempts cannot be negative: %d", scanConfig.Retry.MaxAttempts)
	}
	return validateDuration(scanConfig.Retry.Delay, "retry.delay", 1*time.Hour)
}

// ValidateStoreConfig checks the store backend selection.
func ValidateStoreConfig(storeConfig *Store) error {
	if storeConfig == nil {
		return fmt.Errorf("store configuration is nil")
	}
	if !knownStores[storeConfig.Type] {
		return fmt.Errorf("unknown store type %q", storeConfig.Type)
	}
	if storeConfig.Type == "s3" && storeConfig.S3.Bucket == "" {
		return fmt.Errorf("s3 store requires a bucket")
	}
	return nil
}

// validateDuration checks that a time.Duration is valid and within a specified maximum duration.
func validateDuration(d time.Duration, name string, max time.Duration) error {
	if d < 0 {
		return fmt.Errorf("invalid duration for %q: %v cannot be negative", name, d)
	}
	if d > max {
		return fmt.Errorf("%q duration is too long: %v exceeds maximum of %v", name, d, max)
	}
	return nil
}

// validateProxy checks if the given Proxy settings are valid.
func validateProxy(proxy *Proxy) error {
	if proxy == nil {
		return fmt.Errorf("proxy configuration is nil")
	}

	// If host or port is not set, skip further validation
	if proxy.Host == "" || proxy.Port == 0 {
		return nil
	}

	if err := validateHost(&proxy.Host); err != nil {
		return err
	}
	return validatePort(proxy.Port)
}

// validateHost ensures the host includes a scheme; adds "http" if missing.
func validateHost(host *string) error {
	if host == nil {
		return fmt.Errorf("host string pointer is nil")
	}

	if !strings.Contains(*host, "://") {
		*host = "http://" + *host
	}
	*host = strings.TrimRight(*host, "/")

	if _, err := url.Parse(*host); err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}
	return nil
}

// validatePort checks if the port part of the proxy configuration is valid.
func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

// updateHome updates the HomeFolder from environment variables or sets a default value.
func updateHome(cfg *Config) error {
	if home := os.Getenv("LOGICSCAN_HOME"); home != "" {
		cfg.Logicscan.HomeFolder = home
	} else if cfg.Logicscan.HomeFolder == "" {
		homeFolder, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("unable to get user home folder: %w", err)
		}
		cfg.Logicscan.HomeFolder = filepath.Join(homeFolder, ".logicscan")
	}

	expandedHomePath, err := files.ExpandPath(cfg.Logicscan.HomeFolder)
	if err != nil {
		return fmt.Errorf("failed to expand new home path %q: %w", cfg.Logicscan.HomeFolder, err)
	}
	cfg.Logicscan.HomeFolder = expandedHomePath

	if err := files.CreateFolderIfNotExists(expandedHomePath); err != nil {
		return fmt.Errorf("failed to create home folder %q: %w", cfg.Logicscan.HomeFolder, err)
	}
	return nil
}

// updateFolder updates a folder path, preferring envVar, then the configured value, then a home subfolder.
func updateFolder(folder *string, envVar, defaultSubFolder string, cfg *Config) error {
	if envVarValue := os.Getenv(envVar); envVarValue != "" {
		*folder = envVarValue
	} else if *folder == "" {
		*folder = filepath.Join(GetLogicscanHome(cfg), defaultSubFolder)
	}

	expandedPath, err := files.ExpandPath(*folder)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", *folder, err)
	}
	*folder = expandedPath

	if err := files.CreateFolderIfNotExists(expandedPath); err != nil {
		return fmt.Errorf("failed to create folder %q: %w", expandedPath, err)
	}
	return nil
}

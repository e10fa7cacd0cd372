package git

import (
	"fmt"
	"time"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
	"github.com/hashicorp/go-hclog"

	crssh "golang.org/x/crypto/ssh"

	"github.com/scan-io-git/logicscan/pkg/shared/config"
	"github.com/scan-io-git/logicscan/pkg/shared/files"
)

// TokenUsername is the user name GitHub expects with installation tokens.
const TokenUsername = "x-access-token"

// Credentials are the short-lived secrets used for one checkout.
type Credentials struct {
	Username string
	Token    string
}

// Client clones repositories with a fixed authentication method.
type Client struct {
	logger      hclog.Logger
	auth        transport.AuthMethod
	timeout     time.Duration
	depth       int
	insecureTLS bool
}

// Authenticator defines an interface for different authentication methods.
type Authenticator interface {
	SetupAuth(cfg config.GitClient, creds Credentials, logger hclog.Logger) (transport.AuthMethod, error)
	ValidateConfig(cfg config.GitClient, creds Credentials) error
}

// SSHKeyAuthenticator provides SSH key-based authentication.
type SSHKeyAuthenticator struct{}

// SSHAgentAuthenticator provides SSH agent-based authentication.
type SSHAgentAuthenticator struct{}

// HTTPAuthenticator provides HTTP basic authentication with a token.
type HTTPAuthenticator struct{}

// AnonymousAuthenticator clones public repositories.
type AnonymousAuthenticator struct{}

// SetupAuth configures SSH key authentication.
func (s *SSHKeyAuthenticator) SetupAuth(cfg config.GitClient, _ Credentials, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH key authentication")

	sshKeyPath, err := files.ExpandPath(cfg.SSHKey)
	if err != nil {
		logger.Error("failed to expand SSH key path", "path", cfg.SSHKey, "error", err)
		return nil, err
	}

	auth, err := ssh.NewPublicKeysFromFile("git", sshKeyPath, cfg.SSHKeyPassword)
	if err != nil {
		logger.Error("failed to set up SSH key authentication", "error", err)
		return nil, err
	}
	auth.HostKeyCallbackHelper = ssh.HostKeyCallbackHelper{
		HostKeyCallback: hostKeyCallback(cfg),
	}
	return auth, nil
}

// ValidateConfig validates the configuration for SSHKeyAuthenticator.
func (s *SSHKeyAuthenticator) ValidateConfig(cfg config.GitClient, _ Credentials) error {
	if cfg.SSHKey == "" {
		return fmt.Errorf("ssh_key is required for ssh-key authentication")
	}
	return nil
}

// SetupAuth configures SSH agent authentication.
func (s *SSHAgentAuthenticator) SetupAuth(cfg config.GitClient, _ Credentials, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up SSH agent authentication")

	auth, err := ssh.NewSSHAgentAuth("git")
	if err != nil {
		logger.Error("failed to set up SSH agent authentication", "error", err)
		return nil, err
	}
	auth.HostKeyCallbackHelper = ssh.HostKeyCallbackHelper{
		HostKeyCallback: hostKeyCallback(cfg),
	}
	return auth, nil
}

// ValidateConfig validates the configuration for SSHAgentAuthenticator.
func (s *SSHAgentAuthenticator) ValidateConfig(config.GitClient, Credentials) error {
	return nil
}

// SetupAuth configures HTTP basic authentication.
func (h *HTTPAuthenticator) SetupAuth(cfg config.GitClient, creds Credentials, logger hclog.Logger) (transport.AuthMethod, error) {
	logger.Debug("setting up HTTP authentication")

	username := creds.Username
	if username == "" {
		username = config.SetThen(cfg.Username, TokenUsername)
	}
	return &http.BasicAuth{
		Username: username,
		Password: creds.Token,
	}, nil
}

// ValidateConfig validates the configuration for HTTPAuthenticator.
func (h *HTTPAuthenticator) ValidateConfig(_ config.GitClient, creds Credentials) error {
	if creds.Token == "" {
		return fmt.Errorf("token is required for http authentication")
	}
	return nil
}

// SetupAuth returns no authentication.
func (a *AnonymousAuthenticator) SetupAuth(config.GitClient, Credentials, hclog.Logger) (transport.AuthMethod, error) {
	return nil, nil
}

// ValidateConfig validates the configuration for AnonymousAuthenticator.
func (a *AnonymousAuthenticator) ValidateConfig(config.GitClient, Credentials) error {
	return nil
}

// hostKeyCallback skips host key verification only when TLS verification is
// disabled as well.
func hostKeyCallback(cfg config.GitClient) crssh.HostKeyCallback {
	if config.GetBoolValue(cfg, "InsecureTLS", false) {
		return crssh.InsecureIgnoreHostKey()
	}
	return nil
}

// getAuthenticator returns the Authenticator of authType. An empty type
// picks HTTP when a token is available and anonymous access otherwise.
func getAuthenticator(authType string, creds Credentials) (Authenticator, error) {
	switch authType {
	case "ssh-key":
		return &SSHKeyAuthenticator{}, nil
	case "ssh-agent":
		return &SSHAgentAuthenticator{}, nil
	case "http":
		return &HTTPAuthenticator{}, nil
	case "":
		if creds.Token != "" {
			return &HTTPAuthenticator{}, nil
		}
		return &AnonymousAuthenticator{}, nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", authType)
	}
}

// New initializes a Git client for the git_client section of globalConfig.
func New(logger hclog.Logger, globalConfig *config.Config, creds Credentials) (*Client, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	gitConfig := globalConfig.GitClient

	authenticator, err := getAuthenticator(gitConfig.AuthType, creds)
	if err != nil {
		logger.Error("unsupported authentication type", "error", err)
		return nil, fmt.Errorf("unsupported authentication type: %w", err)
	}

	if err := authenticator.ValidateConfig(gitConfig, creds); err != nil {
		logger.Error("invalid configuration", "error", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	auth, err := authenticator.SetupAuth(gitConfig, creds, logger)
	if err != nil {
		logger.Error("failed to set up Git authentication", "error", err)
		return nil, fmt.Errorf("failed to set up Git authentication: %w", err)
	}

	return &Client{
		logger:      logger,
		auth:        auth,
		timeout:     config.SetThen(gitConfig.Timeout, 10*time.Minute),
		depth:       config.SetThen(gitConfig.Depth, 1),
		insecureTLS: config.GetBoolValue(gitConfig, "InsecureTLS", false),
	}, nil
}

// Package app wires the configured backends into an HTTP server. It is
// shared by the long-running binary and the serverless handler.
package app

import (
	"fmt"
	"log"

	"github.com/Rigellute/walk-the-world-frontend/pkg/config"
	"github.com/Rigellute/walk-the-world-frontend/pkg/email"
	"github.com/Rigellute/walk-the-world-frontend/pkg/httpserver"
	"github.com/Rigellute/walk-the-world-frontend/pkg/identity"
	"github.com/Rigellute/walk-the-world-frontend/pkg/steps"
)

// NewEmailSender returns a Resend sender when an API key is configured and
// a logging sender otherwise.
func NewEmailSender(cfg *config.Config) email.Sender {
	if cfg.ResendAPIKey != "" {
		return email.NewResendSender(cfg.ResendAPIKey, cfg.EmailFrom)
	}
	log.Println("[DEBUG] RESEND_API_KEY not set, emails will be logged")
	return email.NewLogSender()
}

// NewProvider builds the identity backend named by cfg.IdentityBackend.
func NewProvider(cfg *config.Config, sender email.Sender) (identity.Provider, error) {
	switch cfg.IdentityBackend {
	case config.IdentityBackendCognito:
		return identity.NewCognitoProvider(identity.CognitoConfig{
			Region:      cfg.Cognito.Region,
			UserPoolID:  cfg.Cognito.UserPoolID,
			AppClientID: cfg.Cognito.AppClientID,
			Endpoint:    cfg.Cognito.Endpoint,
		}), nil
	case config.IdentityBackendMemory:
		log.Println("[DEBUG] using in-memory identity backend, accounts are lost on restart")
		provider, err := identity.NewMemoryProvider(sender)
		if err != nil {
			return nil, err
		}
		return provider, nil
	default:
		return nil, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

// NewServer builds the server and its collaborators from cfg.
func NewServer(cfg *config.Config, withRateLimiting bool) (*httpserver.Server, error) {
	sender := NewEmailSender(cfg)
	provider, err := NewProvider(cfg, sender)
	if err != nil {
		return nil, err
	}
	stepsAPI := steps.NewClient(cfg.StepsAPIBaseURL(), nil)

	if withRateLimiting {
		return httpserver.New(cfg, provider, stepsAPI, sender), nil
	}
	return httpserver.NewWithoutRateLimiting(cfg, provider, stepsAPI, sender), nil
}

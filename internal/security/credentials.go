// Package security provides Google Cloud credential resolution, log
// redaction, and request rate limiting.
package security

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
)

// CloudPlatformScope is the OAuth scope Vertex AI requires.
const CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// Environment variables read by the default strategies.
const (
	EnvCredentialsJSON = "GOOGLE_APPLICATION_CREDENTIALS_JSON"
	EnvCredentialsFile = "GOOGLE_APPLICATION_CREDENTIALS"
)

var (
	// ErrNoCredentials is returned when every strategy failed or was skipped.
	ErrNoCredentials = errors.New("security: no credentials found")

	// ErrStrategySkipped is returned by a strategy whose input is absent,
	// e.g. an unset environment variable or a missing file.
	ErrStrategySkipped = errors.New("security: credential source not present")
)

// CredentialStrategy produces credentials from one source.
type CredentialStrategy interface {
	Name() string
	Credentials(ctx context.Context, scopes []string) (*auth.Credentials, error)
}

// CredentialProvider tries its strategies in order; the first success wins.
type CredentialProvider struct {
	Strategies []CredentialStrategy
	Scopes     []string
}

// DefaultCredentialProvider returns the standard chain: inline JSON from
// the environment, a key file named by the environment, the fallback file
// (when non-empty), then application default credentials.
func DefaultCredentialProvider(fallbackFile string) *CredentialProvider {
	strategies := []CredentialStrategy{
		EnvJSON{},
		EnvFile{},
	}
	if fallbackFile != "" {
		strategies = append(strategies, File{Path: fallbackFile})
	}
	strategies = append(strategies, ApplicationDefault{})

	return &CredentialProvider{
		Strategies: strategies,
		Scopes:     []string{CloudPlatformScope},
	}
}

// Resolve returns the first credentials any strategy produces and the name
// of that strategy. Skipped strategies are not reported as failures.
func (p *CredentialProvider) Resolve(ctx context.Context) (*auth.Credentials, string, error) {
	var errs []error
	for _, s := range p.Strategies {
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}
		creds, err := s.Credentials(ctx, p.Scopes)
		if err == nil {
			return creds, s.Name(), nil
		}
		if !errors.Is(err, ErrStrategySkipped) {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return nil, "", errors.Join(append([]error{ErrNoCredentials}, errs...)...)
}

// EnvJSON reads a service account or user credential JSON document from an
// environment variable.
type EnvJSON struct {
	// Var defaults to GOOGLE_APPLICATION_CREDENTIALS_JSON.
	Var string
}

// Name implements CredentialStrategy.
func (s EnvJSON) Name() string { return "env_json:" + orDefault(s.Var, EnvCredentialsJSON) }

// Credentials implements CredentialStrategy.
func (s EnvJSON) Credentials(_ context.Context, scopes []string) (*auth.Credentials, error) {
	raw, ok := os.LookupEnv(orDefault(s.Var, EnvCredentialsJSON))
	if !ok || raw == "" {
		return nil, ErrStrategySkipped
	}
	return credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          scopes,
		CredentialsJSON: []byte(raw),
	})
}

// EnvFile reads the path of a credential file from an environment variable.
type EnvFile struct {
	// Var defaults to GOOGLE_APPLICATION_CREDENTIALS.
	Var string
}

// Name implements CredentialStrategy.
func (s EnvFile) Name() string { return "env_file:" + orDefault(s.Var, EnvCredentialsFile) }

// Credentials implements CredentialStrategy.
func (s EnvFile) Credentials(ctx context.Context, scopes []string) (*auth.Credentials, error) {
	path, ok := os.LookupEnv(orDefault(s.Var, EnvCredentialsFile))
	if !ok || path == "" {
		return nil, ErrStrategySkipped
	}
	return File{Path: path}.Credentials(ctx, scopes)
}

// File loads credentials from a fixed path.
type File struct {
	Path string
}

// Name implements CredentialStrategy.
func (s File) Name() string { return "file:" + s.Path }

// Credentials implements CredentialStrategy.
func (s File) Credentials(_ context.Context, scopes []string) (*auth.Credentials, error) {
	if _, err := os.Stat(s.Path); errors.Is(err, os.ErrNotExist) {
		return nil, ErrStrategySkipped
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.Path, err)
	}
	return credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          scopes,
		CredentialsJSON: raw,
	})
}

// ApplicationDefault uses Google application default credentials: the
// gcloud user login or the metadata server on GCP.
type ApplicationDefault struct{}

// Name implements CredentialStrategy.
func (ApplicationDefault) Name() string { return "application_default" }

// Credentials implements CredentialStrategy.
func (ApplicationDefault) Credentials(_ context.Context, scopes []string) (*auth.Credentials, error) {
	return credentials.DetectDefault(&credentials.DetectOptions{Scopes: scopes})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

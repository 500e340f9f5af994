package workspace

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/oauth2"

	"github.com/workgate/workgate/internal/calendar"
	"github.com/workgate/workgate/internal/drive"
	"github.com/workgate/workgate/internal/forms"
	"github.com/workgate/workgate/internal/gmail"
	"github.com/workgate/workgate/internal/session"
)

// Clients bundles the provider clients for one principal's credential.
type Clients struct {
	Gmail    *gmail.Client
	Calendar *calendar.Client
	Drive    *drive.Client
	Forms    *forms.Client
}

// Factory builds provider clients scoped to one request. Construction is
// stateless and cheap; clients are never cached across requests or shared
// across principals, so a credential leak is bounded to the request that
// carried it.
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a client factory.
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Build constructs the full client set credentialed with the given (fresh)
// OAuth credential. The static token source never refreshes; freshness is
// the orchestrator's job, performed before this call.
func (f *Factory) Build(ctx context.Context, cred *session.OAuthCredential) (*Clients, error) {
	if cred == nil || cred.AccessToken == "" {
		return nil, fmt.Errorf("credential with access token is required")
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: cred.AccessToken,
		TokenType:   cred.TokenType,
		Expiry:      cred.ExpiryDate,
	})
	httpClient := oauth2.NewClient(ctx, src)

	gmailClient, err := gmail.NewClient(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build gmail client: %w", err)
	}
	calendarClient, err := calendar.NewClient(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build calendar client: %w", err)
	}
	driveClient, err := drive.NewClient(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build drive client: %w", err)
	}
	formsClient, err := forms.NewClient(ctx, httpClient)
	if err != nil {
		return nil, fmt.Errorf("build forms client: %w", err)
	}

	return &Clients{
		Gmail:    gmailClient,
		Calendar: calendarClient,
		Drive:    driveClient,
		Forms:    formsClient,
	}, nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	cfg "github.com/maheshrc27/postbridge/configs"
	"github.com/maheshrc27/postbridge/internal/cache"
	"github.com/maheshrc27/postbridge/internal/models"
	"github.com/maheshrc27/postbridge/internal/provider"
	"github.com/maheshrc27/postbridge/internal/repository"
	"github.com/maheshrc27/postbridge/pkg/utils"
)

const (
	entitySelectionKeyPrefix = "oauth_entity_selection:"
	handoffKeyPrefix         = "oauth_handoff:"
	stateKeyPrefix           = "oauth_state:"

	entitySelectionTTL = 10 * time.Minute
	handoffTTL         = 5 * time.Minute
	stateTTL           = 10 * time.Minute

	clientExtension = "extension"
)

var (
	// ErrInvalidToken marks an expired or already-consumed single-use token.
	// The originating flow is always safe to restart from scratch.
	ErrInvalidToken = errors.New("invalid_token")

	// ErrInternal is the generic outcome for unexpected failures during
	// entity selection. Details go to the log, not the client.
	ErrInternal = errors.New("internal_error")
)

// oauthAttempt is the payload staged in the single-use store between the
// callback and entity selection. The exchanged token and the resolved
// entities are cached back onto the same entry because authorization codes
// are single-use.
type oauthAttempt struct {
	Provider       string             `json:"provider"`
	Server         string             `json:"server,omitempty"`
	CallbackParams map[string]string  `json:"callback_params,omitempty"`
	AccessToken    models.AccessToken `json:"access_token,omitempty"`
	Entities       []provider.Entity  `json:"entities,omitempty"`
	ReturnURL      string             `json:"return_url"`
	OrgID          string             `json:"org_id"`
	UserID         string             `json:"user_id"`
	Client         string             `json:"client"`
}

// CallbackResult tells the HTTP layer where to send the user after a
// callback has been processed.
type CallbackResult struct {
	RedirectURL string
}

// HandoffResult is the final JSON outcome a cookie-less client exchanges a
// handoff token for.
type HandoffResult struct {
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	Provider    string `json:"provider,omitempty"`
	AccountID   int64  `json:"account_id,omitempty"`
	AccountUUID string `json:"account_uuid,omitempty"`
	EntityToken string `json:"entity_token,omitempty"`
}

type OAuthService interface {
	GetAuthURL(ctx context.Context, providerName string, values map[string]string) (string, error)
	HandleCallback(ctx context.Context, providerName string, params map[string]string) (*CallbackResult, error)
	ResolveEntities(ctx context.Context, token string) ([]provider.Entity, error)
	SelectEntity(ctx context.Context, token, entityID string) (*models.Account, error)
	ExchangeHandoff(ctx context.Context, token string) (*HandoffResult, error)
}

type oauthService struct {
	config    *cfg.Config
	connector provider.Connector
	store     cache.SingleUseStore
	codec     *StateCodec
	accounts  AccountService
	repo      repository.AccountRepository
}

func NewOAuthService(config *cfg.Config, connector provider.Connector, store cache.SingleUseStore, codec *StateCodec, accounts AccountService, repo repository.AccountRepository) OAuthService {
	return &oauthService{
		config:    config,
		connector: connector,
		store:     store,
		codec:     codec,
		accounts:  accounts,
		repo:      repo,
	}
}

// GetAuthURL builds the provider's authorization URL. A locally minted
// anti-forgery state is stashed so the callback can verify it; signed
// cross-domain states carry their own integrity and skip the stash.
func (s *oauthService) GetAuthURL(ctx context.Context, providerName string, values map[string]string) (string, error) {
	p, err := s.connector.Connect(providerName, values)
	if err != nil {
		return "", err
	}

	if state := values["oauth_state"]; state != "" && !IsCrossDomainState(state) {
		if err := s.store.Put(ctx, stateKeyPrefix+state, providerName, stateTTL); err != nil {
			return "", err
		}
	}

	return p.AuthURL(ctx)
}

// HandleCallback drives the state machine after the provider redirects
// back. A cross-domain state carries the return route; a decode failure is
// not recoverable into the external flow, so it falls back to the local
// admin redirect.
func (s *oauthService) HandleCallback(ctx context.Context, providerName string, params map[string]string) (*CallbackResult, error) {
	attempt := oauthAttempt{
		Provider:  providerName,
		Server:    params["server"],
		ReturnURL: s.config.AdminURL,
	}

	p, err := s.connector.Connect(providerName, map[string]string{"server": attempt.Server})
	if err != nil {
		return nil, err
	}

	state := params["state"]
	switch {
	case IsCrossDomainState(state):
		payload, err := s.codec.Decode(state)
		if err != nil {
			slog.Warn("oauth state decode failed", "provider", providerName)
			return s.errorRedirect(&attempt, "invalid_state"), nil
		}
		attempt.ReturnURL = payload.ReturnURL
		attempt.OrgID = payload.OrgID
		attempt.UserID = payload.UserID
		attempt.Client = payload.Client
	case usesAuthorizationCode(p):
		// Code flows must present the state minted at auth-URL time; the
		// request-token flow authenticates its callback through the stashed
		// token secret instead.
		var minted string
		found, err := s.store.Pull(ctx, stateKeyPrefix+state, &minted)
		if err != nil {
			return nil, err
		}
		if !found || minted != providerName {
			slog.Warn("oauth state verification failed", "provider", providerName)
			return s.errorRedirect(&attempt, "invalid_state"), nil
		}
	}

	callbackParams := make(map[string]string, len(p.CallbackKeys()))
	for _, key := range p.CallbackKeys() {
		value, ok := params[key]
		if !ok || value == "" {
			return s.errorRedirect(&attempt, "missing_callback_param"), nil
		}
		callbackParams[key] = value
	}

	// Multi-entity providers never persist an account straight from the
	// callback: the raw params are staged and the user picks an entity
	// first.
	if !p.IsOnlyUserAccount() {
		attempt.CallbackParams = callbackParams
		token, err := s.putAttempt(ctx, entitySelectionKeyPrefix, &attempt, entitySelectionTTL)
		if err != nil {
			return nil, err
		}
		return s.finish(ctx, &attempt, &HandoffResult{
			Status:      "select_entity",
			Provider:    providerName,
			EntityToken: token,
		})
	}

	accessToken, err := p.RequestAccessToken(ctx, callbackParams)
	if err != nil {
		slog.Warn("token exchange failed", "provider", providerName, "error", err)
		return s.errorRedirect(&attempt, "token_exchange_failed"), nil
	}

	p.SetAccessToken(accessToken)
	resp := p.GetAccount(ctx)
	if resp.HasError() {
		return s.errorRedirect(&attempt, "account_fetch_failed"), nil
	}

	identity, _ := resp.Context().(map[string]any)
	account, err := s.accounts.UpdateOrCreate(ctx, AccountUpsert{
		OrganizationID: attempt.OrgID,
		Provider:       providerName,
		ProviderID:     stringValue(identity["id"]),
		Name:           stringValue(identity["name"]),
		Username:       stringValue(identity["username"]),
		Image:          stringValue(identity["image"]),
		AccessToken:    accessToken,
		Data:           accountData(&attempt),
		ConnectedBy:    attempt.UserID,
	})
	if err != nil {
		slog.Error("account upsert failed", "provider", providerName, "error", err)
		return s.errorRedirect(&attempt, "account_save_failed"), nil
	}

	return s.finish(ctx, &attempt, &HandoffResult{
		Status:      "ok",
		Provider:    providerName,
		AccountID:   account.ID,
		AccountUUID: account.UUID,
	})
}

// ResolveEntities lists the postable entities for a staged OAuth attempt.
// The read is non-destructive; the exchanged token and entity list are
// cached back so selection does not re-spend the authorization code.
func (s *oauthService) ResolveEntities(ctx context.Context, token string) ([]provider.Entity, error) {
	var attempt oauthAttempt
	found, err := s.store.Get(ctx, entitySelectionKeyPrefix+token, &attempt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidToken
	}

	if len(attempt.Entities) > 0 {
		return attempt.Entities, nil
	}

	p, err := s.connector.Connect(attempt.Provider, map[string]string{"server": attempt.Server})
	if err != nil {
		return nil, err
	}

	if len(attempt.AccessToken) == 0 {
		accessToken, err := p.RequestAccessToken(ctx, attempt.CallbackParams)
		if err != nil {
			slog.Warn("token exchange failed", "provider", attempt.Provider, "error", err)
			return nil, ErrInvalidToken
		}
		attempt.AccessToken = accessToken
	}

	p.SetAccessToken(attempt.AccessToken)
	resp := p.GetEntities(ctx, true)
	if resp.HasError() {
		return nil, fmt.Errorf("get entities: %s", resp.ErrorMessage())
	}

	attempt.Entities = resp.Entities()
	s.markConnected(ctx, &attempt)

	if err := s.store.Put(ctx, entitySelectionKeyPrefix+token, &attempt, entitySelectionTTL); err != nil {
		return nil, err
	}

	return attempt.Entities, nil
}

// SelectEntity consumes the selection token (exactly once) and persists the
// chosen entity as an account. Any unexpected failure is logged with its
// context and surfaced as a generic internal error.
func (s *oauthService) SelectEntity(ctx context.Context, token, entityID string) (*models.Account, error) {
	var attempt oauthAttempt
	found, err := s.store.Pull(ctx, entitySelectionKeyPrefix+token, &attempt)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidToken
	}

	var entity *provider.Entity
	for i := range attempt.Entities {
		if attempt.Entities[i].ID == entityID {
			entity = &attempt.Entities[i]
			break
		}
	}
	if entity == nil {
		return nil, fmt.Errorf("%w: unknown entity", ErrInternal)
	}

	account, err := s.saveEntity(ctx, &attempt, entity)
	if err != nil {
		slog.Error("entity selection failed",
			"provider", attempt.Provider,
			"entity_id", entityID,
			"error", err)
		return nil, ErrInternal
	}

	return account, nil
}

func (s *oauthService) saveEntity(ctx context.Context, attempt *oauthAttempt, entity *provider.Entity) (*models.Account, error) {
	providerName := attempt.Provider
	accessToken := attempt.AccessToken

	// The stored credential is provider-specific: facebook pages keep the
	// user token plus the page's own token; elsewhere an entity token
	// overrides the user token field by field.
	if len(entity.AccessToken) > 0 {
		if providerName == "facebook" || providerName == "facebook_page" {
			providerName = "facebook_page"
			accessToken = accessToken.Merge(models.AccessToken{
				"page_access_token": entity.AccessToken.Token(),
			})
		} else {
			accessToken = accessToken.Merge(entity.AccessToken)
		}
	}

	return s.accounts.UpdateOrCreate(ctx, AccountUpsert{
		OrganizationID: attempt.OrgID,
		Provider:       providerName,
		ProviderID:     entity.ID,
		Name:           entity.Name,
		Username:       entity.Username,
		Image:          entity.Image,
		AccessToken:    accessToken,
		Data:           accountData(attempt),
		ConnectedBy:    attempt.UserID,
	})
}

// ExchangeHandoff consumes a handoff token exactly once. A replay or an
// unknown token yields ErrInvalidToken, never stale data.
func (s *oauthService) ExchangeHandoff(ctx context.Context, token string) (*HandoffResult, error) {
	var result HandoffResult
	found, err := s.store.Pull(ctx, handoffKeyPrefix+token, &result)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrInvalidToken
	}
	return &result, nil
}

// finish routes the flow outcome to the client. Cookie-less clients get a
// handoff token to exchange out-of-band; everyone else is redirected with
// the outcome in the query string.
func (s *oauthService) finish(ctx context.Context, attempt *oauthAttempt, result *HandoffResult) (*CallbackResult, error) {
	if attempt.Client == clientExtension {
		token, err := s.putResult(ctx, result)
		if err != nil {
			return nil, err
		}
		return &CallbackResult{
			RedirectURL: appendQuery(attempt.ReturnURL, url.Values{"handoff_token": {token}}),
		}, nil
	}

	q := url.Values{"status": {result.Status}, "provider": {result.Provider}}
	if result.EntityToken != "" {
		q.Set("entity_token", result.EntityToken)
	}
	if result.AccountUUID != "" {
		q.Set("account", result.AccountUUID)
	}
	return &CallbackResult{RedirectURL: appendQuery(attempt.ReturnURL, q)}, nil
}

func (s *oauthService) errorRedirect(attempt *oauthAttempt, reason string) *CallbackResult {
	return &CallbackResult{
		RedirectURL: appendQuery(attempt.ReturnURL, url.Values{
			"status": {"error"},
			"error":  {reason},
		}),
	}
}

func (s *oauthService) putAttempt(ctx context.Context, prefix string, attempt *oauthAttempt, ttl time.Duration) (string, error) {
	token, err := utils.SingleUseToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, prefix+token, attempt, ttl); err != nil {
		return "", err
	}
	return token, nil
}

func (s *oauthService) putResult(ctx context.Context, result *HandoffResult) (string, error) {
	token, err := utils.SingleUseToken()
	if err != nil {
		return "", err
	}
	if err := s.store.Put(ctx, handoffKeyPrefix+token, result, handoffTTL); err != nil {
		return "", err
	}
	return token, nil
}

// markConnected flags entities already connected for this organization, so
// the selection UI can show them as such.
func (s *oauthService) markConnected(ctx context.Context, attempt *oauthAttempt) {
	providerName := attempt.Provider
	if providerName == "facebook" {
		providerName = "facebook_page"
	}

	connected, err := s.repo.ListProviderIDs(ctx, attempt.OrgID, providerName)
	if err != nil {
		slog.Warn("listing connected accounts failed", "provider", providerName, "error", err)
		return
	}

	ids := make(map[string]struct{}, len(connected))
	for _, id := range connected {
		ids[id] = struct{}{}
	}

	for i := range attempt.Entities {
		if _, ok := ids[attempt.Entities[i].ID]; ok {
			attempt.Entities[i].Connected = true
		}
	}
}

// usesAuthorizationCode reports whether the provider's callback carries an
// authorization code to exchange.
func usesAuthorizationCode(p provider.Provider) bool {
	for _, key := range p.CallbackKeys() {
		if key == "code" {
			return true
		}
	}
	return false
}

func accountData(attempt *oauthAttempt) map[string]any {
	if attempt.Server == "" {
		return nil
	}
	return map[string]any{"server": attempt.Server}
}

func appendQuery(base string, q url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	existing := u.Query()
	for key, values := range q {
		for _, v := range values {
			existing.Set(key, v)
		}
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

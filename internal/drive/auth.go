package drive

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/lehigh-university-libraries/notesorter/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
)

// DefaultTokenFile caches the user's access and refresh tokens between runs
const DefaultTokenFile = "token.json"

// Authenticator obtains an authorized HTTP client for the Drive API
type Authenticator struct {
	CredentialsFile string
	TokenFile       string
	// Prompt shows the consent URL to the user. Defaults to printing it on stderr.
	Prompt func(authURL string)
	// ListenAddr is where the redirect listener binds. Defaults to an ephemeral loopback port.
	ListenAddr string
}

// NewAuthenticator creates an Authenticator with default token location and prompt
func NewAuthenticator(credentialsFile, tokenFile string) *Authenticator {
	if tokenFile == "" {
		tokenFile = DefaultTokenFile
	}
	return &Authenticator{
		CredentialsFile: credentialsFile,
		TokenFile:       tokenFile,
		Prompt: func(authURL string) {
			fmt.Fprintf(os.Stderr, "Open the following link in your browser to authorize access to Google Drive:\n\n%s\n\n", authURL)
		},
		ListenAddr: "127.0.0.1:0",
	}
}

// LoadConfig reads an installed-app OAuth client file
func LoadConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.WrapError(models.ErrMissingCredentials, "read "+credentialsFile,
				fmt.Errorf("credentials file not found, download it from the Google Cloud Console"))
		}
		return nil, models.WrapError(models.ErrMissingCredentials, "read "+credentialsFile, err)
	}
	cfg, err := google.ConfigFromJSON(data, drive.DriveScope)
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "parse "+credentialsFile, err)
	}
	return cfg, nil
}

// LoadToken reads a cached token
func LoadToken(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("failed to decode token %s: %w", path, err)
	}
	return tok, nil
}

// SaveToken writes tok to path, readable only by the owner
func SaveToken(path string, tok *oauth2.Token) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create token directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tok); err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	return nil
}

// Client returns an HTTP client authorized for Drive. A cached token is reused
// and refreshed; when there is none, or it cannot be refreshed, the consent flow runs.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	src, err := a.TokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, src), nil
}

// TokenSource returns a token source that persists refreshed tokens
func (a *Authenticator) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	cached, cacheErr := LoadToken(a.TokenFile)
	if cacheErr != nil && !errors.Is(cacheErr, os.ErrNotExist) {
		slog.Warn("Ignoring unreadable token cache", "path", a.TokenFile, "error", cacheErr)
		cached = nil
	}

	cfg, err := LoadConfig(a.CredentialsFile)
	if err != nil {
		// a still-valid cached token can be used without the client secret, but never refreshed
		if cached != nil && cached.Valid() {
			slog.Warn("Credentials file unavailable, using cached token until it expires", "path", a.CredentialsFile)
			return oauth2.StaticTokenSource(cached), nil
		}
		return nil, err
	}

	if cached != nil && (cached.Valid() || cached.RefreshToken != "") {
		src := a.persisting(cfg.TokenSource(ctx, cached), cached)
		_, err := src.Token()
		if err == nil {
			return src, nil
		}
		slog.Warn("Failed to refresh cached token, requesting new authorization", "error", err)
	}

	tok, err := a.authorize(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := SaveToken(a.TokenFile, tok); err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "save token", err)
	}
	return a.persisting(cfg.TokenSource(ctx, tok), tok), nil
}

// authorize runs the installed-app consent flow with a loopback redirect
func (a *Authenticator) authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	addr := a.ListenAddr
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "listen for redirect", err)
	}
	defer ln.Close()

	state, err := randomState()
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "generate state", err)
	}

	flow := *cfg
	flow.RedirectURL = "http://" + ln.Addr().String() + "/"

	type result struct {
		code string
		err  error
	}
	results := make(chan result, 1)
	// only the first callback counts; repeats from browser retries are dropped
	deliver := func(res result) {
		select {
		case results <- res:
		default:
		}
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			fmt.Fprintln(w, "Authorization was denied. You may close this window.")
			deliver(result{err: fmt.Errorf("authorization denied: %s", q.Get("error"))})
		default:
			fmt.Fprintln(w, "Authorization complete. You may close this window.")
			deliver(result{code: q.Get("code")})
		}
	})}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Redirect listener failed", "error", err)
		}
	}()
	defer srv.Close()

	if a.Prompt != nil {
		a.Prompt(flow.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))
	}

	var res result
	select {
	case <-ctx.Done():
		return nil, models.WrapError(models.ErrAuthentication, "wait for authorization", ctx.Err())
	case res = <-results:
	}
	if res.err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "authorize", res.err)
	}

	tok, err := flow.Exchange(ctx, res.code)
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "exchange code", err)
	}
	slog.Info("Authorized Google Drive access", "token_file", a.TokenFile)
	return tok, nil
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// persistingSource rewrites the token file whenever the wrapped source hands out a new token
type persistingSource struct {
	path string
	src  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (a *Authenticator) persisting(src oauth2.TokenSource, current *oauth2.Token) *persistingSource {
	p := &persistingSource{path: a.TokenFile, src: src}
	if current != nil {
		p.last = current.AccessToken
	}
	return p
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, models.WrapError(models.ErrAuthentication, "refresh token", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if err := SaveToken(p.path, tok); err != nil {
			slog.Warn("Failed to persist refreshed token", "path", p.path, "error", err)
		} else {
			slog.Debug("Persisted refreshed token", "path", p.path)
		}
		p.last = tok.AccessToken
	}
	return tok, nil
}

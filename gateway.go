package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	defaultGatewayTimeout = 10 * time.Second
	maxErrorBodyBytes     = 64 << 10
)

// apiError is the JSON failure shape the portal backend emits.
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// HTTPGateway implements AuthGateway against the portal REST API. It owns a
// cookie jar so the refresh cookie set at login rides along with
// credentialed requests, and a bounded timeout surfaced through the same
// connectivity classification as an unreachable server.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// GatewayOption customizes HTTPGateway construction.
type GatewayOption func(*HTTPGateway)

// WithGatewayLogger overrides the gateway logger.
func WithGatewayLogger(logger Logger) GatewayOption {
	return func(g *HTTPGateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithHTTPClient swaps the underlying client (tests, custom transports).
func WithHTTPClient(client *http.Client) GatewayOption {
	return func(g *HTTPGateway) {
		if client != nil {
			g.client = client
		}
	}
}

// WithGatewayTimeout bounds every request issued by the gateway.
func WithGatewayTimeout(d time.Duration) GatewayOption {
	return func(g *HTTPGateway) {
		if d > 0 {
			g.client.Timeout = d
		}
	}
}

// NewHTTPGateway returns a gateway rooted at baseURL.
func NewHTTPGateway(baseURL string, opts ...GatewayOption) *HTTPGateway {
	jar, _ := cookiejar.New(nil)
	g := &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: defaultGatewayTimeout,
			Jar:     jar,
		},
		logger: defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}

	return g
}

// Login exchanges credentials for an access token and the member record.
func (g *HTTPGateway) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode login payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/login", bytes.NewReader(body))
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build login request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, g.decodeError(resp, "Invalid credentials.")
	}

	out := &LoginResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unexpected login response shape")
	}
	return out, nil
}

// Logout asks the backend to invalidate the session. The Authorization
// header is attached when a token is still at hand; the caller treats every
// outcome as a local success and only classifies the warning.
func (g *HTTPGateway) Logout(ctx context.Context, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/logout", nil)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build logout request")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.decodeError(resp, "logout rejected")
	}
	return nil
}

// Register submits the registration form as multipart form data; the
// optional profile image is the reason this endpoint cannot take JSON.
func (g *HTTPGateway) Register(ctx context.Context, payload RegisterPayload) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fields := map[string]string{
		"first_name":   payload.FirstName,
		"last_name":    payload.LastName,
		"email":        payload.Email,
		"password":     payload.Password,
		"phone_number": payload.Phone,
		"gender":       payload.Gender,
		"level":        payload.Level,
		"specialty":    payload.Specialty,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode registration form")
		}
	}

	if len(payload.ProfileImage) > 0 {
		name := payload.ProfileImageName
		if name == "" {
			name = "profile_image"
		}
		part, err := writer.CreateFormFile("profile_image", name)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach profile image")
		}
		if _, err := part.Write(payload.ProfileImage); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to attach profile image")
		}
	}

	if err := writer.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize registration form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/register", &buf)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build registration request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := g.client.Do(req)
	if err != nil {
		return connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.decodeError(resp, "Registration failed. Please try again.")
	}
	return nil
}

// Refresh exchanges the refresh cookie for a new access token. No
// Authorization header on purpose: the expired access token must not be
// presented here, the cookie is the credential.
func (g *HTTPGateway) Refresh(ctx context.Context) (*RefreshResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/refresh", nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build refresh request")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, g.decodeError(resp, "session refresh rejected")
	}

	out := &RefreshResponse{}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "unexpected refresh response shape")
	}
	return out, nil
}

// RequestPasswordReset starts a reset flow for the given email.
func (g *HTTPGateway) RequestPasswordReset(ctx context.Context, email string) error {
	return g.postJSON(ctx, "/reset/request", map[string]string{"email": email}, "password reset request failed")
}

// ConfirmPasswordReset completes a reset flow.
func (g *HTTPGateway) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	return g.postJSON(ctx, "/reset/confirm", map[string]string{
		"token":       token,
		"newPassword": newPassword,
	}, "password reset failed")
}

func (g *HTTPGateway) postJSON(ctx context.Context, path string, payload any, fallback string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return connectivityError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return g.decodeError(resp, fallback)
	}
	return nil
}

// decodeError turns a non-2xx response into a classified error. Structured
// JSON bodies pass their message through; plain-text or unparseable bodies
// fall back to the generic text. The status code rides in metadata so
// callers can classify without re-reading the response.
func (g *HTTPGateway) decodeError(resp *http.Response, fallback string) error {
	message := fallback
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if readErr == nil && looksLikeJSON(resp.Header.Get("Content-Type"), body) {
		parsed := apiError{}
		if err := json.Unmarshal(body, &parsed); err == nil {
			if parsed.Message != "" {
				message = parsed.Message
			} else if parsed.Error != "" {
				message = parsed.Error
			}
		}
	}

	g.logger.Debug("gateway rejection: status=%d message=%q", resp.StatusCode, message)

	rich := goerrors.New(message, categoryForStatus(resp.StatusCode)).
		WithTextCode(textCodeForStatus(resp.StatusCode)).
		WithMetadata(map[string]any{"status": resp.StatusCode})
	return rich
}

func looksLikeJSON(contentType string, body []byte) bool {
	if strings.Contains(contentType, "application/json") {
		return true
	}
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func categoryForStatus(status int) goerrors.Category {
	switch {
	case status == http.StatusUnauthorized:
		return goerrors.CategoryAuth
	case status >= 500:
		return goerrors.CategoryInternal
	default:
		return goerrors.CategoryValidation
	}
}

func textCodeForStatus(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return textCodeInvalidCredentials
	case status >= 500:
		return textCodeServerError
	default:
		return textCodeValidation
	}
}

// connectivityError classifies a transport-level failure: the request never
// produced a status code. This is a typed distinction, deliberately not a
// match on the error text.
func connectivityError(err error) error {
	return goerrors.Wrap(err, goerrors.CategoryOperation, ErrConnectivity.Message).
		WithTextCode(textCodeConnectivity).
		WithMetadata(map[string]any{
			"cause": fmt.Sprintf("%T", err),
		})
}

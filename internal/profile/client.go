// Package profile calls the game-services profile API on behalf of the
// active account.
package profile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/pysugar/launcher-accounts/internal/auth/token"
	"github.com/pysugar/launcher-accounts/internal/db/models"
	"github.com/pysugar/launcher-accounts/internal/logging"
	"github.com/pysugar/launcher-accounts/internal/util"
)

// DefaultBaseURL is the Minecraft services API.
const DefaultBaseURL = "https://api.minecraftservices.com"

// ErrNoActiveAccount is returned when no account is selected.
var ErrNoActiveAccount = errors.New("no active account, please sign in first")

// MaxSkinSize is the largest skin image the services API accepts.
const MaxSkinSize = 1 << 20

var pngSignature = []byte("\x89PNG\r\n\x1a\n")

// TokenProvider resolves the active account and a usable token for it.
// *token.Manager implements it.
type TokenProvider interface {
	GetActiveAccount() (*models.Account, error)
	GetValidToken(ctx context.Context, uuid string) (string, error)
}

// Profile is the subset of the profile response the launcher uses.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Skins []Skin `json:"skins"`
	Capes []Cape `json:"capes"`
}

type Skin struct {
	ID      string `json:"id"`
	State   string `json:"state"`
	URL     string `json:"url"`
	Variant string `json:"variant"`
	Alias   string `json:"alias,omitempty"`
}

type Cape struct {
	ID    string `json:"id"`
	State string `json:"state"`
	URL   string `json:"url"`
	Alias string `json:"alias"`
}

// CurrentSkin is the active skin of a profile.
type CurrentSkin struct {
	URL     string `json:"url"`
	Variant string `json:"variant"`
}

// APIError is a non-2xx answer from the profile API.
type APIError struct {
	Op     string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed (%d): %s", e.Op, e.Status, e.Body)
}

// Client handles authenticated profile requests
type Client struct {
	tokens     TokenProvider
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a profile client. An empty baseURL uses DefaultBaseURL.
func NewClient(tokens TokenProvider, baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		tokens:     tokens,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// GetProfile fetches the active account's profile.
func (c *Client) GetProfile(ctx context.Context) (*Profile, error) {
	resp, err := c.do(ctx, "fetch profile", http.MethodGet, "/minecraft/profile", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: parse profile response: %v", token.ErrMalformedResponse, err)
	}
	return &profile, nil
}

// GetCurrentSkin returns the ACTIVE skin, or nil when the profile has none.
func (c *Client) GetCurrentSkin(ctx context.Context) (*CurrentSkin, error) {
	profile, err := c.GetProfile(ctx)
	if err != nil {
		return nil, err
	}
	for _, skin := range profile.Skins {
		if skin.State == "ACTIVE" {
			return &CurrentSkin{URL: skin.URL, Variant: strings.ToLower(skin.Variant)}, nil
		}
	}
	return nil, nil
}

// UploadSkin replaces the active skin with a PNG image. variant is
// "classic" or "slim".
func (c *Client) UploadSkin(ctx context.Context, png []byte, variant string) error {
	if variant != "classic" && variant != "slim" {
		return fmt.Errorf("%w: skin variant must be classic or slim, got %q", token.ErrInvalidArgument, variant)
	}
	if len(png) > MaxSkinSize {
		return fmt.Errorf("%w: skin image too large (%d bytes, max %d)", token.ErrInvalidArgument, len(png), MaxSkinSize)
	}
	if !bytes.HasPrefix(png, pngSignature) {
		return fmt.Errorf("%w: skin must be a PNG image", token.ErrInvalidArgument)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if err := form.WriteField("variant", variant); err != nil {
		return err
	}
	part, err := form.CreateFormFile("file", "skin.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(png); err != nil {
		return err
	}
	if err := form.Close(); err != nil {
		return err
	}

	resp, err := c.do(ctx, "upload skin", http.MethodPost, "/minecraft/profile/skins", &body, form.FormDataContentType())
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// ResetSkin restores the default skin.
func (c *Client) ResetSkin(ctx context.Context) error {
	resp, err := c.do(ctx, "reset skin", http.MethodDelete, "/minecraft/profile/skins/active", nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do issues an authenticated request and returns the response only for 2xx.
func (c *Client) do(ctx context.Context, op, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	acc, err := c.tokens.GetActiveAccount()
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrNoActiveAccount
	}
	accessToken, err := c.tokens.GetValidToken(ctx, acc.UUID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", token.ErrNetworkFailure, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		logging.FromContext(ctx).Warn().
			Str("account", acc.UUID).
			Int("status", resp.StatusCode).
			Str("body", util.TruncateBytes(body)).
			Msgf("⚠️ Profile API %s failed", op)
		return nil, &APIError{Op: op, Status: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"mediafetch/internal/selection"
)

// assetIDPattern matches bare asset identifiers.
var assetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// manifest is the JSON document served by the enumeration service.
type manifest struct {
	Asset   AssetInfo                    `json:"asset"`
	Streams []selection.StreamDescriptor `json:"streams"`
}

// ManifestProvider implements Provider against an HTTP enumeration service
// that serves one JSON manifest per asset at {BaseURL}/assets/{id}.
type ManifestProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewManifestProvider returns a provider for the given enumeration service.
// If client is nil a client with a 30 second timeout is used.
func NewManifestProvider(baseURL string, client *http.Client) *ManifestProvider {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ManifestProvider{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  client,
	}
}

// AssetID extracts the asset identifier from a reference, which may be a bare
// identifier or a watch URL carrying a "v" query parameter or the identifier
// as its last path segment.
func AssetID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrInvalidReference
	}

	if !strings.Contains(ref, "://") {
		if assetIDPattern.MatchString(ref) {
			return ref, nil
		}
		return "", ErrInvalidReference
	}

	u, err := url.Parse(ref)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidReference
	}
	if v := u.Query().Get("v"); v != "" && assetIDPattern.MatchString(v) {
		return v, nil
	}
	if seg := strings.Trim(u.Path, "/"); seg != "" {
		parts := strings.Split(seg, "/")
		last := parts[len(parts)-1]
		if assetIDPattern.MatchString(last) {
			return last, nil
		}
	}
	return "", ErrInvalidReference
}

// Resolve implements Provider.Resolve.
func (p *ManifestProvider) Resolve(ctx context.Context, ref string) (AssetInfo, []selection.StreamDescriptor, error) {
	id, err := AssetID(ref)
	if err != nil {
		return AssetInfo{}, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/assets/"+url.PathEscape(id), nil)
	if err != nil {
		return AssetInfo{}, nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return AssetInfo{}, nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return AssetInfo{}, nil, ErrNotFound
	case resp.StatusCode == http.StatusBadRequest:
		return AssetInfo{}, nil, ErrInvalidReference
	case resp.StatusCode != http.StatusOK:
		return AssetInfo{}, nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var m manifest
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return AssetInfo{}, nil, fmt.Errorf("%w: decoding manifest: %v", ErrUnavailable, err)
	}
	if m.Asset.ID == "" {
		m.Asset.ID = id
	}

	return m.Asset, m.Streams, nil
}

// Fetch implements Provider.Fetch: it transfers the stream's bytes to
// destPath and fails if the transfer wrote zero bytes.
func (p *ManifestProvider) Fetch(ctx context.Context, stream selection.StreamDescriptor, destPath string) error {
	if stream.URL == "" {
		return fmt.Errorf("stream %s has no transfer URL", stream.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, stream.URL, nil)
	if err != nil {
		return err
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return fmt.Errorf("stream %s: unexpected status %d", stream.ID, resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return err
	}

	n, copyErr := io.Copy(out, resp.Body)
	closeErr := out.Close()

	if copyErr != nil {
		return fmt.Errorf("stream %s: transfer: %w", stream.ID, copyErr)
	}
	if closeErr != nil {
		return closeErr
	}
	if n == 0 {
		return errors.New("transfer wrote zero bytes")
	}
	return nil
}

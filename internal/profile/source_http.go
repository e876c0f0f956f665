package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPSource implements Source against a JSON profile API. The API is
// expected to expose GET {base}/users/{username} returning a JSON object
// that contains at least a username; unrecognized scalar attributes are
// carried along as opaque fields.
type HTTPSource struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPSource creates an HTTPSource. The base URL is mandatory: a
// missing URL means the integration is not configured, and callers are
// expected to construct the Resolver without a source in that case.
func NewHTTPSource(baseURL, apiKey string, client *http.Client) (*HTTPSource, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("profile source base URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}, nil
}

// Lookup fetches the profile for username from the source API.
func (s *HTTPSource) Lookup(ctx context.Context, username string) (*Snapshot, error) {
	endpoint := s.baseURL + "/users/" + url.PathEscape(username)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create lookup request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("%w: source returned %d: %s", ErrSourceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var raw map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: decode profile response: %v", ErrSourceUnavailable, err)
	}

	snap := snapshotFromPayload(raw)
	if snap.Username == "" {
		snap.Username = username
	}
	return snap, nil
}

// snapshotFromPayload maps the known attributes of a provider payload and
// collects every remaining scalar into opaque fields.
func snapshotFromPayload(raw map[string]any) *Snapshot {
	snap := &Snapshot{Fields: make(map[string]string)}
	for key, val := range raw {
		str := scalarString(val)
		switch key {
		case "username":
			snap.Username = str
		case "display_name", "full_name":
			if snap.DisplayName == "" {
				snap.DisplayName = str
			}
		case "image_url", "profile_pic_url", "avatar_url":
			if snap.ImageURL == "" {
				snap.ImageURL = str
			}
		default:
			if str != "" {
				snap.Fields[key] = str
			}
		}
	}
	if len(snap.Fields) == 0 {
		snap.Fields = nil
	}
	return snap
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

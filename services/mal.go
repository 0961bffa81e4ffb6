package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const malPageSize = 20

// ErrMALTokenMissing is returned by every MAL call when no access token is configured
var ErrMALTokenMissing = errors.New("missing MAL access token")

// MALService handles interactions with the MyAnimeList v2 API
type MALService struct {
	baseURL string
	token   string
	api     *apiClient
}

// NewMALService creates a new MyAnimeList client
func NewMALService(baseURL, accessToken string, opts ClientOptions) *MALService {
	return &MALService{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   accessToken,
		api:     newAPIClient("mal", opts),
	}
}

// Search proxies an anime search and returns MAL's response untouched
func (m *MALService) Search(ctx context.Context, query string) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("limit", strconv.Itoa(malPageSize))
	params.Set("fields", "id,title,main_picture,media_type,start_date")

	raw, err := m.get(ctx, "/anime", params)
	if err != nil {
		return nil, fmt.Errorf("failed to search MAL: %w", err)
	}
	return raw, nil
}

// Episodes returns one page of an anime's episode list
func (m *MALService) Episodes(ctx context.Context, malID string, page int) (json.RawMessage, error) {
	if page < 1 {
		page = 1
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(malPageSize))
	params.Set("offset", strconv.Itoa((page-1)*malPageSize))
	params.Set("fields", "title,number,image")

	raw, err := m.get(ctx, "/anime/"+url.PathEscape(malID)+"/episodes", params)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes of %s from MAL: %w", malID, err)
	}
	return raw, nil
}

func (m *MALService) get(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	if m.token == "" {
		return nil, ErrMALTokenMissing
	}

	var raw json.RawMessage
	headers := map[string]string{"Authorization": "Bearer " + m.token}
	if err := m.api.doRequest(ctx, "GET", m.baseURL+path+"?"+params.Encode(), nil, headers, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

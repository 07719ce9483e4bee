package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kalambet/rosterbot/internal/config"
	"github.com/kalambet/rosterbot/internal/roster"
	"github.com/kalambet/rosterbot/internal/storage"
)

// errUnreachable marks transport failures talking to the query API.
var errUnreachable = errors.New("could not connect to the API")

type apiClient struct {
	baseURL    string
	httpClient *http.Client
}

// Generation can be slow, so the timeout is generous.
var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL:    strings.TrimRight(cfg.Client.BackendURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w at %s; is `rosterbot serve` running? (%v)", errUnreachable, c.baseURL, err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// chat sends one query to POST /chat and returns the recommendation text.
func (c *apiClient) chat(ctx context.Context, query string) (string, error) {
	resp, err := c.post(ctx, "/chat", map[string]string{"query": query})
	if err != nil {
		return "", err
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := decodeJSON(resp, &out); err != nil {
		return "", err
	}
	return out.Response, nil
}

func (c *apiClient) searchEmployees(ctx context.Context, skill string, minExp *int) ([]roster.Employee, error) {
	q := url.Values{}
	if skill != "" {
		q.Set("skill", skill)
	}
	if minExp != nil {
		q.Set("min_exp", strconv.Itoa(*minExp))
	}
	path := "/employees/search"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var out []roster.Employee
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) interactions(ctx context.Context, limit int) ([]storage.Interaction, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/interactions?limit=%d", limit))
	if err != nil {
		return nil, err
	}
	var out []storage.Interaction
	if err := decodeJSON(resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *apiClient) interaction(ctx context.Context, id string) (storage.Interaction, error) {
	resp, err := c.get(ctx, "/interactions/"+url.PathEscape(id))
	if err != nil {
		return storage.Interaction{}, err
	}
	var out storage.Interaction
	err = decodeJSON(resp, &out)
	return out, err
}

// decodeJSON decodes a 2xx body into v. Error responses are turned into an
// error carrying the server's message when it sent the usual envelope.
func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// Package prompts fetches versioned system-prompt templates from a LangSmith
// prompt store. The session core treats the store as an opaque collaborator:
// it only ever needs the resolved template text.
package prompts

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.smith.langchain.com"

var promptNameByVersion = map[int]string{
	1: "geminiaudioai_prompt_version_1",
	2: "geminaudioai_prompt_v2",
	3: "gemaudioprompt_v3",
	4: "gemini_audioprompt_memoryrecall_v4",
}

// PromptNameForVersion maps a prompt version selector to its store name.
func PromptNameForVersion(version int) (string, error) {
	name, ok := promptNameByVersion[version]
	if !ok {
		return "", fmt.Errorf("unknown prompt version %d", version)
	}
	return name, nil
}

// Client pulls prompt templates over the LangSmith REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the prompt store endpoint.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// NewClient creates a prompt store client.
func NewClient(apiKey string, log *slog.Logger, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("LANGSMITH_API_KEY environment variable not set")
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FetchTemplate resolves the prompt name for version, pins its latest commit
// hash, and pulls the template text of that commit.
func (c *Client) FetchTemplate(ctx context.Context, version int) (string, error) {
	name, err := PromptNameForVersion(version)
	if err != nil {
		return "", err
	}

	hash, err := c.latestCommitHash(ctx, name)
	if err != nil {
		return "", err
	}
	c.log.Info("prompt template resolved", "name", name, "commit", hash)

	template, err := c.pullTemplate(ctx, name, hash)
	if err != nil {
		return "", err
	}
	return template, nil
}

func (c *Client) latestCommitHash(ctx context.Context, name string) (string, error) {
	var body struct {
		Repo struct {
			LastCommitHash string `json:"last_commit_hash"`
		} `json:"repo"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/v1/repos/-/%s", c.baseURL, name), &body); err != nil {
		return "", fmt.Errorf("resolve prompt %q: %w", name, err)
	}
	if body.Repo.LastCommitHash == "" {
		return "", fmt.Errorf("prompt %q has no commits", name)
	}
	return body.Repo.LastCommitHash, nil
}

func (c *Client) pullTemplate(ctx context.Context, name, hash string) (string, error) {
	var body struct {
		Manifest json.RawMessage `json:"manifest"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/v1/commits/-/%s/%s", c.baseURL, name, hash), &body); err != nil {
		return "", fmt.Errorf("pull prompt %s:%s: %w", name, hash, err)
	}

	template, ok := findTemplate(body.Manifest)
	if !ok {
		return "", fmt.Errorf("prompt %s:%s manifest has no template", name, hash)
	}
	return template, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("prompt store returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// findTemplate walks a serialized prompt manifest depth-first for the first
// "template" string. Manifests nest the template differently per prompt
// type, so structural decoding is not practical.
func findTemplate(raw json.RawMessage) (string, bool) {
	var node any
	if err := json.Unmarshal(raw, &node); err != nil {
		return "", false
	}
	return walkTemplate(node)
}

func walkTemplate(node any) (string, bool) {
	switch n := node.(type) {
	case map[string]any:
		if t, ok := n["template"].(string); ok && t != "" {
			return t, true
		}
		for _, v := range n {
			if t, ok := walkTemplate(v); ok {
				return t, true
			}
		}
	case []any:
		for _, v := range n {
			if t, ok := walkTemplate(v); ok {
				return t, true
			}
		}
	}
	return "", false
}

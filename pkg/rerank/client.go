// Package rerank provides a client for reranking models.
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/pkg/log"
)

// Ranked 是一条重排序结果，Index 指向请求中 documents 的下标。
type Ranked struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Client defines the interface for a rerank client.
type Client interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]Ranked, error)
}

type mixedbreadClient struct {
	cfg    config.RerankConfig
	client *http.Client
}

// NewClient creates a new rerank client for a Mixedbread-compatible API.
func NewClient(cfg config.RerankConfig) Client {
	return &mixedbreadClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type rerankRequest struct {
	Model string   `json:"model"`
	Query string   `json:"query"`
	Input []string `json:"input"`
	TopK  int      `json:"top_k"`
}

type rerankResponse struct {
	Data []Ranked `json:"data"`
}

// Rerank 返回按相关性从高到低排序的前 topK 条文档下标。
func (c *mixedbreadClient) Rerank(ctx context.Context, query string, documents []string, topK int) ([]Ranked, error) {
	if len(documents) == 0 {
		return []Ranked{}, nil
	}
	log.Infof("[RerankClient] 开始调用 Rerank API, model: %s, documents: %d, top_k: %d", c.cfg.Model, len(documents), topK)

	reqBytes, err := json.Marshal(rerankRequest{
		Model: c.cfg.Model,
		Query: query,
		Input: documents,
		TopK:  topK,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/reranking", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[RerankClient] 调用 Rerank API 失败, error: %v", err)
		return nil, fmt.Errorf("%w: failed to call rerank api: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Errorf("[RerankClient] Rerank API 返回非 200 状态码: %s, body: %s", resp.Status, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: rerank api returned %s", apperr.ErrUpstream, resp.Status)
		}
		return nil, fmt.Errorf("rerank api returned non-200 status: %s", resp.Status)
	}

	var rerankResp rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&rerankResp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	seen := make(map[int]bool, len(rerankResp.Data))
	for _, r := range rerankResp.Data {
		if r.Index < 0 || r.Index >= len(documents) {
			return nil, fmt.Errorf("rerank api returned index %d for %d documents", r.Index, len(documents))
		}
		if seen[r.Index] {
			return nil, fmt.Errorf("rerank api returned index %d more than once", r.Index)
		}
		seen[r.Index] = true
	}

	log.Infof("[RerankClient] 重排序完成, 返回 %d 条结果", len(rerankResp.Data))
	return rerankResp.Data, nil
}

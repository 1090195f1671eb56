// Package embedding provides a client for interacting with embedding models.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/internal/model"
	"paper-search-go/pkg/log"
)

// Client defines the interface for an embedding client.
type Client interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

type mixedbreadClient struct {
	cfg    config.EmbeddingConfig
	client *http.Client
}

// NewClient creates a new embedding client for a Mixedbread-compatible API.
func NewClient(cfg config.EmbeddingConfig) Client {
	return &mixedbreadClient{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type embeddingRequest struct {
	Model              string   `json:"model"`
	Input              []string `json:"input"`
	Normalized         bool     `json:"normalized"`
	EncodingFormat     string   `json:"encoding_format"`
	Dimensions         int      `json:"dimensions,omitempty"`
	TruncationStrategy string   `json:"truncation_strategy,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// Embed calls the embedding API and returns the vector in the configured encoding.
func (c *mixedbreadClient) Embed(ctx context.Context, text string) (model.Vector, error) {
	log.Infof("[EmbeddingClient] 开始调用 Embedding API, model: %s, encoding: %s, input_len: %d", c.cfg.Model, c.cfg.Encoding, len(text))
	reqBody := embeddingRequest{
		Model:              c.cfg.Model,
		Input:              []string{text},
		Normalized:         true,
		EncodingFormat:     c.cfg.Encoding,
		Dimensions:         c.cfg.Dimensions,
		TruncationStrategy: c.cfg.TruncationStrategy,
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return model.Vector{}, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(reqBytes))
	if err != nil {
		return model.Vector{}, fmt.Errorf("failed to create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[EmbeddingClient] 调用 Embedding API 失败, error: %v", err)
		return model.Vector{}, fmt.Errorf("%w: failed to call embedding api: %v", apperr.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Errorf("[EmbeddingClient] Embedding API 返回非 200 状态码: %s, body: %s", resp.Status, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return model.Vector{}, fmt.Errorf("%w: embedding api returned %s", apperr.ErrUpstream, resp.Status)
		}
		return model.Vector{}, fmt.Errorf("embedding api returned non-200 status: %s", resp.Status)
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		log.Errorf("[EmbeddingClient] 解析 Embedding API 响应失败, error: %v", err)
		return model.Vector{}, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(embeddingResp.Data) == 0 || len(embeddingResp.Data[0].Embedding) == 0 {
		log.Warnf("[EmbeddingClient] Embedding API 返回了空的向量数据")
		return model.Vector{}, fmt.Errorf("received empty embedding from api")
	}

	vector, err := c.toVector(embeddingResp.Data[0].Embedding)
	if err != nil {
		return model.Vector{}, err
	}
	log.Infof("[EmbeddingClient] 成功从 Embedding API 获取向量, 维度: %d", vector.Dimensions())
	return vector, nil
}

// toVector 将接口返回的数值按配置的编码转换为 Vector。
// ubinary 编码下服务端返回 0..255 的打包字节；若返回的是逐维浮点，则在本地按符号打包。
func (c *mixedbreadClient) toVector(values []float64) (model.Vector, error) {
	if c.cfg.Encoding != model.EncodingUBinary {
		dense := make([]float32, len(values))
		for i, v := range values {
			dense[i] = float32(v)
		}
		return model.Vector{Dense: dense}, nil
	}

	if c.cfg.Dimensions > 0 && len(values) == c.cfg.Dimensions {
		dense := make([]float32, len(values))
		for i, v := range values {
			dense[i] = float32(v)
		}
		return model.Vector{Binary: PackBits(dense)}, nil
	}

	packed := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return model.Vector{}, fmt.Errorf("ubinary embedding element %d out of range: %v", i, v)
		}
		packed[i] = byte(v)
	}
	return model.Vector{Binary: packed}, nil
}

// Package es 提供了基于 Elasticsearch 的论文向量索引。
package es

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"paper-search-go/internal/config"
	"paper-search-go/internal/filter"
	"paper-search-go/internal/model"
	"paper-search-go/pkg/log"
)

// maxNumCandidates 是 Elasticsearch kNN 查询允许的 num_candidates 上限。
const maxNumCandidates = 10000

// NewClient 根据配置创建 Elasticsearch 客户端；APIKey 非空时优先使用 APIKey 认证。
func NewClient(esCfg config.ElasticsearchConfig) (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: strings.Split(esCfg.Addresses, ","),
	}
	if esCfg.APIKey != "" {
		cfg.APIKey = esCfg.APIKey
	} else {
		cfg.Username = esCfg.Username
		cfg.Password = esCfg.Password
	}
	return elasticsearch.NewClient(cfg)
}

// VectorIndex 是一个存放论文摘要向量的 Elasticsearch 索引。
type VectorIndex struct {
	client     *elasticsearch.Client
	indexName  string
	dimensions int
	encoding   string
}

// NewVectorIndex 创建索引操作对象。encoding 为 ubinary 时使用 bit 向量（汉明距离）。
func NewVectorIndex(client *elasticsearch.Client, indexName string, embCfg config.EmbeddingConfig) *VectorIndex {
	return &VectorIndex{
		client:     client,
		indexName:  indexName,
		dimensions: embCfg.Dimensions,
		encoding:   embCfg.Encoding,
	}
}

// mapping 返回索引的 mapping 定义。
func (idx *VectorIndex) mapping() map[string]interface{} {
	vector := map[string]interface{}{
		"type":       "dense_vector",
		"dims":       idx.dimensions,
		"index":      true,
		"similarity": "cosine",
	}
	if idx.encoding == model.EncodingUBinary {
		// bit 向量上的 l2_norm 即汉明距离
		vector["element_type"] = "bit"
		vector["similarity"] = "l2_norm"
	}
	return map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":            map[string]interface{}{"type": "keyword"},
				"title":         map[string]interface{}{"type": "text"},
				"abstract":      map[string]interface{}{"type": "text"},
				"authors":       map[string]interface{}{"type": "keyword"},
				"categories":    map[string]interface{}{"type": "keyword"},
				"month":         map[string]interface{}{"type": "integer"},
				"year":          map[string]interface{}{"type": "integer"},
				"url":           map[string]interface{}{"type": "keyword", "index": false},
				"pdf":           map[string]interface{}{"type": "keyword", "index": false},
				"model_version": map[string]interface{}{"type": "keyword"},
				"vector":        vector,
			},
		},
	}
}

// EnsureIndex 检查索引是否存在，如果不存在则创建它。
func (idx *VectorIndex) EnsureIndex(ctx context.Context) error {
	res, err := idx.client.Indices.Exists([]string{idx.indexName}, idx.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		log.Errorf("[VectorIndex] 检查索引是否存在时出错: %v", err)
		return fmt.Errorf("check index %s: %w", idx.indexName, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		log.Infof("[VectorIndex] 索引 '%s' 已存在", idx.indexName)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		log.Errorf("[VectorIndex] 检查索引 '%s' 是否存在时收到意外的状态码: %d", idx.indexName, res.StatusCode)
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	body, err := json.Marshal(idx.mapping())
	if err != nil {
		return fmt.Errorf("failed to encode index mapping: %w", err)
	}
	res, err = idx.client.Indices.Create(
		idx.indexName,
		idx.client.Indices.Create.WithContext(ctx),
		idx.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 创建索引 '%s' 失败: %v", idx.indexName, err)
		return fmt.Errorf("create index %s: %w", idx.indexName, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("[VectorIndex] 创建索引 '%s' 时 Elasticsearch 返回错误: %s", idx.indexName, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}

	log.Infof("[VectorIndex] 索引 '%s' 创建成功, encoding: %s, dims: %d", idx.indexName, idx.encoding, idx.dimensions)
	return nil
}

// Upsert 以论文 ID 为文档 ID 写入（或覆盖）一篇论文。
// esapi 不转义路径，旧格式 ID 中的 "/" 需编码为 %2F。
func (idx *VectorIndex) Upsert(ctx context.Context, doc model.IndexDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      idx.indexName,
		DocumentID: url.PathEscape(doc.ID),
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, idx.client)
	if err != nil {
		return fmt.Errorf("index document %s: %w", doc.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("[VectorIndex] 索引文档到 Elasticsearch 出错: %s", res.String())
		return fmt.Errorf("failed to index document %s: %s", doc.ID, res.Status())
	}
	return nil
}

// GetVector 按论文 ID 读取已存储的向量；文档不存在时返回 found=false。
func (idx *VectorIndex) GetVector(ctx context.Context, id string) (model.Vector, bool, error) {
	res, err := idx.client.Get(
		idx.indexName,
		url.PathEscape(id),
		idx.client.Get.WithContext(ctx),
		idx.client.Get.WithSourceIncludes("vector"),
	)
	if err != nil {
		return model.Vector{}, false, fmt.Errorf("get document %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return model.Vector{}, false, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] 读取文档 '%s' 失败, status: %s, body: %s", id, res.Status(), string(body))
		return model.Vector{}, false, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var doc struct {
		Found  bool                   `json:"found"`
		Source map[string]interface{} `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return model.Vector{}, false, fmt.Errorf("failed to decode get response: %w", err)
	}
	if !doc.Found {
		return model.Vector{}, false, nil
	}

	v, err := model.VectorFromIndexValue(doc.Source["vector"])
	if err != nil {
		return model.Vector{}, false, fmt.Errorf("document %s: %w", id, err)
	}
	if v.IsZero() {
		return model.Vector{}, false, nil
	}
	return v, true, nil
}

// buildSearchQuery 构建 kNN 查询，year 区间条件放在 knn.filter 中参与近邻召回。
func buildSearchQuery(v model.Vector, limit int, yr *filter.YearRange) map[string]interface{} {
	numCandidates := limit * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	if numCandidates > maxNumCandidates {
		numCandidates = maxNumCandidates
	}
	if numCandidates < limit {
		numCandidates = limit
	}

	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   v.IndexValue(),
		"k":              limit,
		"num_candidates": numCandidates,
	}
	if yr != nil {
		bounds := map[string]interface{}{}
		if yr.Gte != 0 {
			bounds["gte"] = yr.Gte
		}
		if yr.Lte != 0 {
			bounds["lte"] = yr.Lte
		}
		knn["filter"] = map[string]interface{}{
			"range": map[string]interface{}{"year": bounds},
		}
	}

	return map[string]interface{}{
		"knn":     knn,
		"size":    limit,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}
}

// Search 返回与向量最相近的至多 limit 篇论文，顺序与 Elasticsearch 返回的相似度降序一致。
func (idx *VectorIndex) Search(ctx context.Context, v model.Vector, limit int, yr *filter.YearRange) ([]model.SearchResult, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(buildSearchQuery(v, limit, yr)); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := idx.client.Search(
		idx.client.Search.WithContext(ctx),
		idx.client.Search.WithIndex(idx.indexName),
		idx.client.Search.WithBody(&buf),
	)
	if err != nil {
		log.Errorf("[VectorIndex] 向 Elasticsearch 发送搜索请求失败: %v", err)
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		log.Errorf("[VectorIndex] Elasticsearch 返回错误, status: %s, body: %s", res.Status(), string(body))
		return nil, fmt.Errorf("elasticsearch returned an error: %s", res.Status())
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				ID     string              `json:"_id"`
				Score  float64             `json:"_score"`
				Source model.IndexDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	results := make([]model.SearchResult, 0, len(esResponse.Hits.Hits))
	for _, hit := range esResponse.Hits.Hits {
		entity := hit.Source.Entity()
		if entity.ID == "" {
			entity.ID = hit.ID
		}
		results = append(results, model.SearchResult{
			ID:       hit.ID,
			Distance: hit.Score,
			Entity:   entity,
		})
	}
	log.Infof("[VectorIndex] 检索完成, 返回 %d 条结果", len(results))
	return results, nil
}

// Ping 检查集群是否可达。
func (idx *VectorIndex) Ping(ctx context.Context) error {
	res, err := idx.client.Ping(idx.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}
	return nil
}

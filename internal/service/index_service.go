package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/model"
	"paper-search-go/internal/repository"
	"paper-search-go/pkg/arxiv"
	"paper-search-go/pkg/kafka"
	"paper-search-go/pkg/log"
	"paper-search-go/pkg/tasks"
)

// MaxEnqueueBatch 是单次入库请求允许的最大论文数。
const MaxEnqueueBatch = 100

// IndexService 接口定义了论文入库相关的操作。
type IndexService interface {
	// Enqueue 为每个 ID 投递一个入库任务，返回规范化后的 ID 列表。
	Enqueue(ctx context.Context, ids []string, requestedBy string) ([]string, error)
	Status(ctx context.Context, id string) (*model.PaperIngest, error)
}

type indexService struct {
	ingestRepo repository.IngestRepository
	producer   kafka.TaskProducer
	now        func() time.Time
}

// NewIndexService 创建一个新的 IndexService 实例。
func NewIndexService(ingestRepo repository.IngestRepository, producer kafka.TaskProducer) IndexService {
	return &indexService{ingestRepo: ingestRepo, producer: producer, now: time.Now}
}

func (s *indexService) Enqueue(ctx context.Context, ids []string, requestedBy string) ([]string, error) {
	if len(ids) == 0 {
		return nil, apperr.InvalidInput("ids must not be empty")
	}
	if len(ids) > MaxEnqueueBatch {
		return nil, apperr.InvalidInput("at most %d ids per request, got %d", MaxEnqueueBatch, len(ids))
	}

	// 先整体校验，任何一个 ID 无效都不投递
	normalized := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	var invalid []string
	for _, raw := range ids {
		id, ok := arxiv.ExtractID(raw)
		if !ok {
			invalid = append(invalid, raw)
			continue
		}
		if !seen[id] {
			seen[id] = true
			normalized = append(normalized, id)
		}
	}
	if len(invalid) > 0 {
		return nil, apperr.InvalidInput("not arXiv identifiers: %s", strings.Join(invalid, ", "))
	}

	for _, id := range normalized {
		if err := s.ingestRepo.MarkPending(ctx, id); err != nil {
			log.Errorf("[IndexService] 写入入库记录失败, ArxivID: %s, Error: %v", id, err)
			return nil, fmt.Errorf("record pending ingest for %s: %w", id, err)
		}
		task := tasks.PaperIndexTask{ArxivID: id, RequestedBy: requestedBy, EnqueuedAt: s.now()}
		if err := s.producer.ProducePaperTask(ctx, task); err != nil {
			log.Errorf("[IndexService] 投递入库任务失败, ArxivID: %s, Error: %v", id, err)
			return nil, fmt.Errorf("%w: enqueue %s: %v", apperr.ErrUpstream, id, err)
		}
	}
	log.Infof("[IndexService] 已投递 %d 个入库任务, requestedBy: %s", len(normalized), requestedBy)
	return normalized, nil
}

func (s *indexService) Status(ctx context.Context, id string) (*model.PaperIngest, error) {
	normalized, ok := arxiv.ExtractID(id)
	if !ok {
		return nil, apperr.InvalidInput("not an arXiv identifier: %q", id)
	}
	return s.ingestRepo.FindByArxivID(ctx, normalized)
}

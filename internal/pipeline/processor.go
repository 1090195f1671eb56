// Package pipeline 定义了论文入库的核心流程。
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"paper-search-go/internal/model"
	"paper-search-go/internal/repository"
	"paper-search-go/pkg/log"
	"paper-search-go/pkg/tasks"
)

// PaperFetcher 按 ID 获取论文元数据。
type PaperFetcher interface {
	FetchByID(ctx context.Context, arxivID string) (model.Paper, error)
}

// Embedder 将文本转换为向量。
type Embedder interface {
	Embed(ctx context.Context, text string) (model.Vector, error)
}

// IndexWriter 是入库所需的向量索引写操作。
type IndexWriter interface {
	EnsureIndex(ctx context.Context) error
	Upsert(ctx context.Context, doc model.IndexDocument) error
}

// Processor 封装了论文入库的所有依赖和逻辑。
type Processor struct {
	fetcher      PaperFetcher
	embedder     Embedder
	index        IndexWriter
	ingestRepo   repository.IngestRepository
	modelVersion string

	ensureMu    sync.Mutex
	indexExists bool
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	fetcher PaperFetcher,
	embedder Embedder,
	index IndexWriter,
	ingestRepo repository.IngestRepository,
	modelVersion string,
) *Processor {
	return &Processor{
		fetcher:      fetcher,
		embedder:     embedder,
		index:        index,
		ingestRepo:   ingestRepo,
		modelVersion: modelVersion,
	}
}

// Process 是论文入库的主函数。失败时记录到 paper_ingest 并返回原始错误，由调用方决定是否重试。
func (p *Processor) Process(ctx context.Context, task tasks.PaperIndexTask) error {
	log.Infof("[Processor] 开始处理入库任务, ArxivID: %s", task.ArxivID)

	if err := p.process(ctx, task.ArxivID); err != nil {
		if markErr := p.ingestRepo.MarkFailed(ctx, task.ArxivID, err); markErr != nil {
			log.Errorf("[Processor] 记录入库失败状态出错, ArxivID: %s, Error: %v", task.ArxivID, markErr)
		}
		return err
	}

	if err := p.ingestRepo.MarkIndexed(ctx, task.ArxivID); err != nil {
		log.Errorf("[Processor] 记录入库成功状态出错, ArxivID: %s, Error: %v", task.ArxivID, err)
		return fmt.Errorf("mark %s indexed: %w", task.ArxivID, err)
	}
	log.Infof("[Processor] 入库任务处理成功, ArxivID: %s", task.ArxivID)
	return nil
}

func (p *Processor) process(ctx context.Context, arxivID string) error {
	// 1. 获取论文元数据
	log.Infof("[Processor] 步骤1: 获取论文元数据, ArxivID: %s", arxivID)
	paper, err := p.fetcher.FetchByID(ctx, arxivID)
	if err != nil {
		return err
	}

	// 2. 向量化摘要
	log.Info("[Processor] 步骤2: 向量化论文摘要")
	vector, err := p.embedder.Embed(ctx, paper.Abstract)
	if err != nil {
		log.Errorf("[Processor] 摘要向量化失败, ArxivID: %s, Error: %v", arxivID, err)
		return fmt.Errorf("摘要向量化失败: %w", err)
	}

	// 3. 确保索引存在
	if err := p.ensureIndex(ctx); err != nil {
		return fmt.Errorf("确保索引存在失败: %w", err)
	}

	// 4. 写入索引
	log.Infof("[Processor] 步骤3: 写入向量索引, 向量维度: %d", vector.Dimensions())
	doc := model.NewIndexDocument(paper, vector, p.modelVersion)
	if err := p.index.Upsert(ctx, doc); err != nil {
		log.Errorf("[Processor] 写入向量索引失败, ArxivID: %s, Error: %v", arxivID, err)
		return fmt.Errorf("写入向量索引失败: %w", err)
	}
	return nil
}

// ensureIndex 在进程内只成功执行一次 EnsureIndex。
func (p *Processor) ensureIndex(ctx context.Context) error {
	p.ensureMu.Lock()
	defer p.ensureMu.Unlock()
	if p.indexExists {
		return nil
	}
	if err := p.index.EnsureIndex(ctx); err != nil {
		return err
	}
	p.indexExists = true
	return nil
}

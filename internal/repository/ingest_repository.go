// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/model"
)

// maxErrorLength 是写入 last_error 的最大长度。
const maxErrorLength = 1024

// IngestRepository 接口定义了论文入库进度的持久化操作。
type IngestRepository interface {
	// MarkPending 创建记录或将已有记录重置为待处理。
	MarkPending(ctx context.Context, arxivID string) error
	MarkIndexed(ctx context.Context, arxivID string) error
	// MarkFailed 记录失败原因并累加尝试次数。
	MarkFailed(ctx context.Context, arxivID string, cause error) error
	FindByArxivID(ctx context.Context, arxivID string) (*model.PaperIngest, error)
}

type ingestRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewIngestRepository 创建一个新的 IngestRepository 实例。
func NewIngestRepository(db *gorm.DB) IngestRepository {
	return &ingestRepository{db: db, now: time.Now}
}

func (r *ingestRepository) MarkPending(ctx context.Context, arxivID string) error {
	record := model.PaperIngest{ArxivID: arxivID, Status: model.IngestStatusPending}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "arxiv_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     model.IngestStatusPending,
			"last_error": "",
			"updated_at": r.now(),
		}),
	}).Create(&record).Error
}

func (r *ingestRepository) MarkIndexed(ctx context.Context, arxivID string) error {
	now := r.now()
	return r.upsertStatus(ctx, arxivID, map[string]interface{}{
		"status":     model.IngestStatusIndexed,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": "",
		"indexed_at": now,
		"updated_at": now,
	})
}

func (r *ingestRepository) MarkFailed(ctx context.Context, arxivID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return r.upsertStatus(ctx, arxivID, map[string]interface{}{
		"status":     model.IngestStatusFailed,
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": truncateUTF8(msg, maxErrorLength),
		"updated_at": r.now(),
	})
}

// truncateUTF8 截断到至多 n 字节，且不切断多字节字符。
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// upsertStatus 更新记录；记录不存在时（例如任务由其他实例投递）先补建再更新。
func (r *ingestRepository) upsertStatus(ctx context.Context, arxivID string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.PaperIngest{}).Where("arxiv_id = ?", arxivID).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		if err := tx.Create(&model.PaperIngest{ArxivID: arxivID}).Error; err != nil {
			return err
		}
		return tx.Model(&model.PaperIngest{}).Where("arxiv_id = ?", arxivID).Updates(updates).Error
	})
}

func (r *ingestRepository) FindByArxivID(ctx context.Context, arxivID string) (*model.PaperIngest, error) {
	var record model.PaperIngest
	err := r.db.WithContext(ctx).Where("arxiv_id = ?", arxivID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no ingest record for %s: %w", arxivID, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &record, nil
}

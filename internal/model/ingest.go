package model

import "time"

// 索引任务状态。
const (
	IngestStatusPending = 0
	IngestStatusIndexed = 1
	IngestStatusFailed  = 2
)

// PaperIngest 定义了 paper_ingest 表的 ORM 模型，记录每篇论文写入向量索引的进度。
type PaperIngest struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	ArxivID   string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"arxivId"`
	Status    int        `gorm:"type:tinyint;not null;default:0" json:"status"` // 0: pending, 1: indexed, 2: failed
	Attempts  int        `gorm:"not null;default:0" json:"attempts"`
	LastError string     `gorm:"type:text" json:"lastError"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
	IndexedAt *time.Time `gorm:"default:null" json:"indexedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (PaperIngest) TableName() string {
	return "paper_ingest"
}

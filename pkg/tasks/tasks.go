// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

import "time"

// PaperIndexTask 表示一次论文入库任务：获取元数据、向量化摘要并写入向量索引。
type PaperIndexTask struct {
	ArxivID     string    `json:"arxiv_id"`
	RequestedBy string    `json:"requested_by"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

// Package kafka 提供了与 Kafka 消息队列交互的功能。
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
	"paper-search-go/pkg/log"
	"paper-search-go/pkg/tasks"
)

// MaxAttempts 是一个任务在放弃前允许失败的次数。
const MaxAttempts = 3

const attemptsTTL = 24 * time.Hour

// 计数或重新投递失败时，同一条消息的重试间隔。
const (
	handoffRetryBase = time.Second
	handoffRetryMax  = 30 * time.Second
)

// TaskProcessor defines the interface for any service that can process a task.
// This decouples the Kafka consumer from the concrete pipeline implementation.
type TaskProcessor interface {
	Process(ctx context.Context, task tasks.PaperIndexTask) error
}

// TaskProducer 投递入库任务。
type TaskProducer interface {
	ProducePaperTask(ctx context.Context, task tasks.PaperIndexTask) error
}

// Producer 是写入入库任务主题的 Kafka 生产者。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 初始化 Kafka 生产者。
func NewProducer(cfg config.KafkaConfig) *Producer {
	p := &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(strings.Split(cfg.Brokers, ",")...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
	}
	log.Info("Kafka 生产者初始化成功")
	return p
}

// ProducePaperTask 发送一个入库任务到 Kafka，以论文 ID 作为消息 key。
func (p *Producer) ProducePaperTask(ctx context.Context, task tasks.PaperIndexTask) error {
	taskBytes, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.ArxivID),
		Value: taskBytes,
	})
}

// Close 刷出缓冲的消息并关闭生产者。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// AttemptCounter 记录每个任务的失败次数。
type AttemptCounter interface {
	Incr(ctx context.Context, arxivID string) (int64, error)
	Reset(ctx context.Context, arxivID string) error
}

type redisAttempts struct {
	rdb *redis.Client
}

// NewRedisAttemptCounter 返回基于 Redis 的失败计数器，计数 24 小时后过期。
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttempts{rdb: rdb}
}

func attemptsKey(arxivID string) string {
	return fmt.Sprintf("kafka:attempts:%s", arxivID)
}

func (a *redisAttempts) Incr(ctx context.Context, arxivID string) (int64, error) {
	key := attemptsKey(arxivID)
	attempts, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	_ = a.rdb.Expire(ctx, key, attemptsTTL).Err()
	return attempts, nil
}

func (a *redisAttempts) Reset(ctx context.Context, arxivID string) error {
	return a.rdb.Del(ctx, attemptsKey(arxivID)).Err()
}

// messageReader 是 *kafka.Reader 中消费者用到的部分。
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer 从入库任务主题读取任务并交给 TaskProcessor 处理。
type Consumer struct {
	reader    messageReader
	processor TaskProcessor
	attempts  AttemptCounter
	requeue   TaskProducer
	retryBase time.Duration
	retryMax  time.Duration
}

// NewConsumer 创建一个消费者；失败且未达上限的任务通过 requeue 重新投递。
func NewConsumer(cfg config.KafkaConfig, processor TaskProcessor, attempts AttemptCounter, requeue TaskProducer) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  strings.Split(cfg.Brokers, ","),
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6, // 10MB
	})
	return &Consumer{
		reader:    r,
		processor: processor,
		attempts:  attempts,
		requeue:   requeue,
		retryBase: handoffRetryBase,
		retryMax:  handoffRetryMax,
	}
}

// Run 持续消费消息，直到 ctx 被取消或读取出错。
func (c *Consumer) Run(ctx context.Context) error {
	log.Info("Kafka 消费者已启动")
	defer func() {
		if err := c.reader.Close(); err != nil {
			log.Errorf("关闭 Kafka 消费者失败: %v", err)
		}
	}()

	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Kafka 消费者已停止")
				return nil
			}
			log.Error("从 Kafka 读取消息失败", err)
			return err
		}
		log.Infof("收到 Kafka 消息: partition %d, offset %d", m.Partition, m.Offset)
		if !c.handleUntilSettled(ctx, m) {
			log.Info("Kafka 消费者已停止")
			return nil
		}
	}
}

// handleUntilSettled 反复处理同一条消息，直到它被提交或 ctx 被取消。
// 组内 offset 提交是累积的，未提交的消息之后不能再读下一条，否则会被后续提交一并确认。
func (c *Consumer) handleUntilSettled(ctx context.Context, m kafka.Message) bool {
	delay := c.retryBase
	for {
		err := c.handle(ctx, m)
		if err == nil {
			return true
		}
		log.Warnf("消息未能提交, %v 后重试: partition %d, offset %d, error: %v", delay, m.Partition, m.Offset, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
		delay *= 2
		if delay > c.retryMax {
			delay = c.retryMax
		}
	}
}

// handle 处理单条消息并决定是否提交 offset。
// 返回错误表示消息既未提交也未转交，调用方必须重试同一条消息。
func (c *Consumer) handle(ctx context.Context, m kafka.Message) error {
	var task tasks.PaperIndexTask
	if err := json.Unmarshal(m.Value, &task); err != nil || task.ArxivID == "" {
		log.Errorf("无法解析 Kafka 消息: %v, value: %s", err, string(m.Value))
		// 消息格式错误，直接提交，避免阻塞队列
		return c.commit(ctx, m)
	}

	log.Infof("开始处理入库任务: ArxivID=%s", task.ArxivID)
	err := c.processor.Process(ctx, task)
	if err == nil {
		log.Infof("入库任务处理成功: ArxivID=%s", task.ArxivID)
		_ = c.attempts.Reset(ctx, task.ArxivID)
		return c.commit(ctx, m)
	}

	log.Errorf("处理入库任务失败: ArxivID=%s, Error: %v", task.ArxivID, err)
	if isPermanent(err) {
		log.Warnf("入库任务不可重试，提交 offset: ArxivID=%s", task.ArxivID)
		_ = c.attempts.Reset(ctx, task.ArxivID)
		return c.commit(ctx, m)
	}

	attempts, incErr := c.attempts.Incr(ctx, task.ArxivID)
	if incErr != nil {
		// Redis 异常时保守处理：不提交 offset
		log.Errorf("记录失败次数出错: ArxivID=%s, Error: %v", task.ArxivID, incErr)
		return fmt.Errorf("count attempts of %s: %w", task.ArxivID, incErr)
	}
	if attempts >= MaxAttempts {
		log.Errorf("入库任务多次失败(>=%d)，提交 offset 终止重试: ArxivID=%s", MaxAttempts, task.ArxivID)
		_ = c.attempts.Reset(ctx, task.ArxivID)
		return c.commit(ctx, m)
	}

	if err := c.requeue.ProducePaperTask(ctx, task); err != nil {
		log.Errorf("重新投递入库任务失败: ArxivID=%s, Error: %v", task.ArxivID, err)
		return fmt.Errorf("requeue %s: %w", task.ArxivID, err)
	}
	log.Infof("入库任务已重新投递: ArxivID=%s, attempts=%d", task.ArxivID, attempts)
	return c.commit(ctx, m)
}

// commit 提交 offset。消息已处理完毕，提交失败无需重试：后续消息的提交是累积的，会一并确认该 offset。
func (c *Consumer) commit(ctx context.Context, m kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, m); err != nil {
		log.Errorf("提交 Kafka 消息 offset 失败: %v", err)
	}
	return nil
}

// isPermanent 判断错误重试后是否仍会失败。
func isPermanent(err error) bool {
	return apperr.IsNotFound(err) || apperr.IsInvalidInput(err)
}

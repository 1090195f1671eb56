package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/model"
	"paper-search-go/pkg/database"
)

func newTestRepo(t *testing.T) *ingestRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	repo := NewIngestRepository(db).(*ingestRepository)
	repo.now = func() time.Time { return time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC) }
	return repo
}

func TestIngestRepository_Lifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkPending(ctx, "1706.03762"))
	rec, err := repo.FindByArxivID(ctx, "1706.03762")
	require.NoError(t, err)
	assert.Equal(t, model.IngestStatusPending, rec.Status)
	assert.Zero(t, rec.Attempts)

	require.NoError(t, repo.MarkFailed(ctx, "1706.03762", errors.New("upstream service error")))
	rec, err = repo.FindByArxivID(ctx, "1706.03762")
	require.NoError(t, err)
	assert.Equal(t, model.IngestStatusFailed, rec.Status)
	assert.Equal(t, 1, rec.Attempts)
	assert.Equal(t, "upstream service error", rec.LastError)

	require.NoError(t, repo.MarkIndexed(ctx, "1706.03762"))
	rec, err = repo.FindByArxivID(ctx, "1706.03762")
	require.NoError(t, err)
	assert.Equal(t, model.IngestStatusIndexed, rec.Status)
	assert.Equal(t, 2, rec.Attempts)
	assert.Empty(t, rec.LastError)
	require.NotNil(t, rec.IndexedAt)
}

func TestIngestRepository_MarkPendingResetsExisting(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkFailed(ctx, "1810.04805", errors.New("boom")))
	require.NoError(t, repo.MarkPending(ctx, "1810.04805"))

	rec, err := repo.FindByArxivID(ctx, "1810.04805")
	require.NoError(t, err)
	assert.Equal(t, model.IngestStatusPending, rec.Status)
	assert.Empty(t, rec.LastError)
	assert.Equal(t, 1, rec.Attempts)

	var count int64
	require.NoError(t, repo.db.Model(&model.PaperIngest{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestIngestRepository_TruncatesLongErrors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.MarkFailed(ctx, "2101.00001", errors.New(strings.Repeat("x", 5000))))
	rec, err := repo.FindByArxivID(ctx, "2101.00001")
	require.NoError(t, err)
	assert.Len(t, rec.LastError, maxErrorLength)
}

func TestIngestRepository_TruncatesOnRuneBoundary(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	// 每个汉字 3 字节，1024 字节处落在字符中间
	cause := errors.New(strings.Repeat("摘要向量化失败", 300))
	require.NoError(t, repo.MarkFailed(ctx, "2101.00002", cause))

	rec, err := repo.FindByArxivID(ctx, "2101.00002")
	require.NoError(t, err)
	assert.True(t, utf8.ValidString(rec.LastError))
	assert.Len(t, rec.LastError, 1023)
	assert.True(t, strings.HasPrefix(cause.Error(), rec.LastError))
}

func TestTruncateUTF8(t *testing.T) {
	assert.Equal(t, "abc", truncateUTF8("abc", 10))
	assert.Equal(t, "ab", truncateUTF8("abcdef", 2))
	assert.Equal(t, "摘", truncateUTF8("摘要", 5))
	assert.Equal(t, "", truncateUTF8("摘要", 2))
}

func TestIngestRepository_FindMissing(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.FindByArxivID(context.Background(), "0000.00000")
	assert.True(t, apperr.IsNotFound(err))
}

package arxiv

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paper-search-go/internal/apperr"
	"paper-search-go/internal/config"
)

const attentionFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="html">ArXiv Query: id_list=1706.03762</title>
  <entry>
    <id>http://arxiv.org/abs/1706.03762v7</id>
    <published>2017-06-12T17:57:34Z</published>
    <title>Attention Is All
  You Need</title>
    <summary>  The dominant sequence transduction models are based on complex recurrent or
convolutional neural networks.
</summary>
    <author><name>Ashish Vaswani</name></author>
    <author><name>Noam
 Shazeer</name></author>
    <link href="http://arxiv.org/abs/1706.03762v7" rel="alternate" type="text/html"/>
    <link title="pdf" href="http://arxiv.org/pdf/1706.03762v7" rel="related" type="application/pdf"/>
    <category term="cs.CL" scheme="http://arxiv.org/schemas/atom"/>
    <category term="cs.LG" scheme="http://arxiv.org/schemas/atom"/>
  </entry>
</feed>`

const emptyFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom"><title>ArXiv Query</title></feed>`

const errorFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/api/errors#incorrect_id_format_for_9999.9</id>
    <title>Error</title>
    <summary>incorrect id format for 9999.9</summary>
  </entry>
</feed>`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	c := NewClient(config.ArxivConfig{
		BaseURL:        ts.URL,
		Timeout:        5 * time.Second,
		MaxAttempts:    3,
		RetryBaseDelay: time.Millisecond,
	})
	c.now = func() time.Time { return time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC) }
	return c
}

func TestFetchByID_ParsesEntry(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("id_list")
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, attentionFeed)
	})

	paper, err := c.FetchByID(context.Background(), "1706.03762")
	require.NoError(t, err)

	assert.Equal(t, "1706.03762", gotQuery)
	assert.Equal(t, "1706.03762", paper.ID)
	assert.Equal(t, "Attention Is All   You Need", paper.Title)
	assert.NotContains(t, paper.Abstract, "\n")
	assert.Contains(t, paper.Abstract, "recurrent or convolutional")
	assert.Equal(t, []string{"Ashish Vaswani", "Noam  Shazeer"}, paper.Authors)
	assert.Equal(t, "http://arxiv.org/abs/1706.03762v7", paper.URL)
	assert.Equal(t, "http://arxiv.org/pdf/1706.03762v7", paper.PDF)
	assert.Equal(t, 6, paper.Month)
	assert.Equal(t, 2017, paper.Year)
	assert.Equal(t, []string{"cs.CL", "cs.LG"}, paper.Categories)
}

func TestFetchByID_NotFoundIsNotRetried(t *testing.T) {
	for name, body := range map[string]string{"empty feed": emptyFeed, "error entry": errorFeed} {
		t.Run(name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				atomic.AddInt32(&calls, 1)
				fmt.Fprint(w, body)
			})

			_, err := c.FetchByID(context.Background(), "9999.99999")
			require.Error(t, err)
			assert.True(t, apperr.IsNotFound(err))

			var ferr *apperr.FetchError
			require.ErrorAs(t, err, &ferr)
			assert.Equal(t, "9999.99999", ferr.ID)
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
		})
	}
}

func TestFetchByID_RetriesTransientFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, attentionFeed)
	})

	paper, err := c.FetchByID(context.Background(), "1706.03762")
	require.NoError(t, err)
	assert.Equal(t, "1706.03762", paper.ID)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchByID_GivesUpAfterThreeAttempts(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.FetchByID(context.Background(), "1706.03762")
	require.Error(t, err)
	assert.True(t, apperr.IsUpstream(err))
	assert.Contains(t, err.Error(), "1706.03762")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchByID_ValidationFailure(t *testing.T) {
	foreign := `<feed xmlns="http://www.w3.org/2005/Atom"><entry>
<id>https://mirror.example.com/abs/1706.03762v1</id>
<published>2017-06-12T17:57:34Z</published>
<title>Attention</title><summary>abstract</summary>
<author><name>A</name></author>
<link title="pdf" href="https://mirror.example.com/pdf/1706.03762v1"/>
<category term="cs.CL"/>
</entry></feed>`
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, foreign)
	})

	_, err := c.FetchByID(context.Background(), "1706.03762")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchByID_BadRequestIsInvalidInput(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	_, err := c.FetchByID(context.Background(), "not-an-id")
	assert.True(t, apperr.IsInvalidInput(err))
}

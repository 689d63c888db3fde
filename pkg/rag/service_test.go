package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"go.uber.org/zap"

	"sitechat/pkg/config"
	"sitechat/pkg/llm"
	"sitechat/pkg/session"
	"sitechat/pkg/store"
	"sitechat/pkg/validator"
)

type letterEmbedder struct{}

func letterVector(text string) []float32 {
	vector := make([]float32, 26)
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			vector[r-'a']++
		}
		if r >= 'A' && r <= 'Z' {
			vector[r-'A']++
		}
	}
	return vector
}

func (letterEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = letterVector(text)
	}
	return vectors, nil
}

func (letterEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return letterVector(text), nil
}

type fakeModel struct {
	response   string
	lastPrompt string
}

func (f *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	if len(messages) > 0 && len(messages[0].Parts) > 0 {
		if text, ok := messages[0].Parts[0].(llms.TextContent); ok {
			f.lastPrompt = text.Text
		}
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: f.response}},
	}, nil
}

func (f *fakeModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return f.response, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{TopK: 4},
		Crawler:   config.CrawlerConfig{MaxPages: 5, TimeoutSeconds: 2, UserAgent: "test-agent", DelayMillis: 1},
		Processor: config.ProcessorConfig{ChunkSize: 1000, ChunkOverlap: 150, MinContentLength: 10},
	}
}

func newTestService(t *testing.T, model llms.Model) *Service {
	t.Helper()

	st, err := store.NewLocalStore(filepath.Join(t.TempDir(), "test.db"), letterEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	engine := llm.NewChatEngineWithModel(llm.ChatConfig{Model: "test", MaxTokens: 100}, model, zap.NewNop())
	return New(testConfig(), st, engine, zap.NewNop())
}

// newDocsSite serves a two-page site about a fictional product.
func newDocsSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Acme Widgets</title></head><body>
			<p>Acme widgets are hand assembled in small batches and shipped worldwide from our workshop every Friday afternoon.</p>
			<a href="/pricing">pricing</a>
		</body></html>`)
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Pricing</title></head><body>
			<p>A standard widget costs twelve dollars and bulk orders over one hundred units receive a fifteen percent discount.</p>
		</body></html>`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestIndexAndAsk(t *testing.T) {
	srv := newDocsSite(t)
	model := &fakeModel{response: "Widgets ship every Friday."}
	service := newTestService(t, model)
	sess := session.New("test_collection")
	ctx := context.Background()

	result, err := service.Index(ctx, sess, srv.URL, nil)
	require.NoError(t, err)
	assert.False(t, result.UpToDate)
	assert.Equal(t, 2, result.Pages)
	assert.Greater(t, result.Chunks, 0)

	answer := service.Ask(ctx, sess, "When do widgets ship?")
	assert.Equal(t, "Widgets ship every Friday.", answer.Answer)
	require.NotEmpty(t, answer.Sources)

	assert.Contains(t, model.lastPrompt, "shipped worldwide")
	assert.Contains(t, model.lastPrompt, "Question: When do widgets ship?")

	// Both turns land in the session history.
	messages := sess.Messages()
	require.Len(t, messages, 2)
	assert.Equal(t, "user", messages[0].Role)
	assert.Equal(t, "assistant", messages[1].Role)
}

func TestIndexIsIdempotentPerURL(t *testing.T) {
	srv := newDocsSite(t)
	service := newTestService(t, &fakeModel{response: "ok"})
	sess := session.New("test_collection")
	ctx := context.Background()

	first, err := service.Index(ctx, sess, srv.URL, nil)
	require.NoError(t, err)
	require.False(t, first.UpToDate)

	second, err := service.Index(ctx, sess, srv.URL, nil)
	require.NoError(t, err)
	assert.True(t, second.UpToDate)
	assert.Zero(t, second.Pages)
}

func TestIndexRejectsInvalidURL(t *testing.T) {
	service := newTestService(t, &fakeModel{response: "ok"})
	sess := session.New("test_collection")

	_, err := service.Index(context.Background(), sess, "not-a-url", nil)
	require.Error(t, err)

	var verr *validator.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.KindInvalidInput, verr.Kind)
}

func TestIndexRejectsUnreachableURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	service := newTestService(t, &fakeModel{response: "ok"})
	sess := session.New("test_collection")

	_, err := service.Index(context.Background(), sess, srv.URL, nil)
	require.Error(t, err)

	var verr *validator.Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, validator.KindUnreachable, verr.Kind)
}

func TestAskBeforeIndexing(t *testing.T) {
	service := newTestService(t, &fakeModel{response: "unused"})
	sess := session.New("test_collection")

	answer := service.Ask(context.Background(), sess, "anything?")

	assert.Equal(t, llm.NoAnswerSentinel, answer.Answer)
	assert.Empty(t, answer.Sources)

	// The failed turn is still recorded.
	assert.Len(t, sess.Messages(), 2)
}

func TestIndexReportsProgress(t *testing.T) {
	srv := newDocsSite(t)
	service := newTestService(t, &fakeModel{response: "ok"})
	sess := session.New("test_collection")

	var crawled []string
	_, err := service.Index(context.Background(), sess, srv.URL, func(url string) {
		crawled = append(crawled, url)
	})
	require.NoError(t, err)
	assert.Len(t, crawled, 2)
}

func TestReindexNoContentDropsOldCollection(t *testing.T) {
	content := newDocsSite(t)

	// Every page on this site fails the minimum-length gate.
	thin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, "<html><head><title>x</title></head><body><p>hi</p></body></html>")
	}))
	defer thin.Close()

	model := &fakeModel{response: "unused"}
	service := newTestService(t, model)
	sess := session.New("test_collection")
	ctx := context.Background()

	_, err := service.Index(ctx, sess, content.URL, nil)
	require.NoError(t, err)

	_, err = service.Index(ctx, sess, thin.URL, nil)
	require.ErrorIs(t, err, ErrNoContent)

	// The session is left unindexed for both URLs and the old site's
	// collection is gone, so answers cannot come from the wrong site.
	assert.True(t, sess.NeedsIndex(thin.URL))
	assert.True(t, sess.NeedsIndex(content.URL))

	answer := service.Ask(ctx, sess, "When do widgets ship?")
	assert.Equal(t, llm.NoAnswerSentinel, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.NotContains(t, model.lastPrompt, "hand assembled")
}

func TestReindexSwitchesSite(t *testing.T) {
	first := newDocsSite(t)

	second := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><head><title>Other</title></head><body>
			<p>Gadgets are machine made continuously and delivered the same day anywhere in the city.</p>
		</body></html>`)
	}))
	defer second.Close()

	model := &fakeModel{response: "Same day."}
	service := newTestService(t, model)
	sess := session.New("test_collection")
	ctx := context.Background()

	_, err := service.Index(ctx, sess, first.URL, nil)
	require.NoError(t, err)

	_, err = service.Index(ctx, sess, second.URL, nil)
	require.NoError(t, err)

	service.Ask(ctx, sess, "How fast is delivery?")

	// Only the second site's content feeds the prompt.
	assert.Contains(t, model.lastPrompt, "machine made continuously")
	assert.NotContains(t, model.lastPrompt, "hand assembled")
}

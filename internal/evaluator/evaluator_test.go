package evaluator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aidioma/aidioma/internal/inference"
)

type stubClient struct {
	evaluateFunc func(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error)
	calls        int
}

func (client *stubClient) EvaluateWord(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error) {
	client.calls++
	return client.evaluateFunc(ctx, params)
}

func newTestService(t *testing.T, client inference.Client, counters *Counters, opts Options) *Service {
	t.Helper()

	service := NewService(client, counters, opts)
	service.jitter = func() int { return 0 }
	return service
}

func practiceRequest(word, contextText string) Request {
	return Request{
		Word:        word,
		Context:     contextText,
		Difficulty:  DifficultyBeginner,
		Language:    LanguageSpanish,
		PageContext: PagePractice,
	}
}

func TestStatusForScore(t *testing.T) {
	for score := 0; score <= 100; score++ {
		status := StatusForScore(score)
		assert.Equal(t, score >= 75, status == StatusCorrect, "score %d", score)
		assert.Equal(t, score >= 50 && score < 75, status == StatusClose, "score %d", score)
		assert.Equal(t, score < 50, status == StatusWrong, "score %d", score)
	}
}

func TestService_Evaluate_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		request Request
	}{
		{
			name:    "empty word",
			request: practiceRequest("", "El gato duerme."),
		},
		{
			name:    "whitespace word",
			request: practiceRequest("   ", "El gato duerme."),
		},
		{
			name:    "empty context",
			request: practiceRequest("gato", ""),
		},
		{
			name:    "whitespace context",
			request: practiceRequest("gato", "  \t "),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := newTestService(t, nil, NewCounters(), Options{})

			_, err := service.Evaluate(context.Background(), tt.request)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestService_Evaluate_HeuristicOnly(t *testing.T) {
	service := newTestService(t, nil, NewCounters(), Options{})

	result, err := service.Evaluate(context.Background(), Request{
		Word:        "hola",
		Context:     "Hola, ¿cómo estás?",
		Difficulty:  DifficultyBeginner,
		Language:    LanguageSpanish,
		PageContext: PagePractice,
	})
	require.NoError(t, err)

	assert.Equal(t, PathHeuristic, result.Path)
	assert.True(t, result.Fallback)
	assert.False(t, result.Cached)
	assert.GreaterOrEqual(t, result.Score, 50)
	assert.Contains(t, []Status{StatusCorrect, StatusClose}, result.Status)
	assert.Contains(t, result.Feedback, "[practice]")
	assert.Equal(t, StatusForScore(result.Score), result.Status)
	assert.GreaterOrEqual(t, result.Confidence, 0.0)
	assert.LessOrEqual(t, result.Confidence, 1.0)
}

func TestService_Evaluate_CacheIdempotence(t *testing.T) {
	counters := NewCounters()
	service := newTestService(t, nil, counters, Options{})
	request := practiceRequest("gato", "El gato duerme")

	first, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, PathCachedExact, second.Path)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Feedback, second.Feedback)

	snapshot := counters.Snapshot()
	assert.Equal(t, uint64(2), snapshot.Requests)
	assert.Equal(t, uint64(1), snapshot.ExactHits)
	assert.Equal(t, uint64(1), snapshot.Misses)
}

func TestService_Evaluate_SimilarityMatch(t *testing.T) {
	contextText := "La escuela está cerca de mi casa"

	t.Run("single edit away hits the cached entry", func(t *testing.T) {
		counters := NewCounters()
		service := newTestService(t, nil, counters, Options{})

		first, err := service.Evaluate(context.Background(), practiceRequest("escuela", contextText))
		require.NoError(t, err)

		similar, err := service.Evaluate(context.Background(), practiceRequest("escuelas", contextText))
		require.NoError(t, err)
		assert.True(t, similar.Cached)
		assert.Equal(t, PathCachedSimilar, similar.Path)
		assert.Equal(t, first.Score, similar.Score)
		assert.Equal(t, uint64(1), counters.Snapshot().SimilarityHits)

		// The probed key became an alias, so the same misspelling now takes
		// the exact path.
		again, err := service.Evaluate(context.Background(), practiceRequest("escuelas", contextText))
		require.NoError(t, err)
		assert.Equal(t, PathCachedExact, again.Path)
	})

	t.Run("a far word does not hit the similarity path", func(t *testing.T) {
		service := newTestService(t, nil, NewCounters(), Options{})

		_, err := service.Evaluate(context.Background(), practiceRequest("escuela", contextText))
		require.NoError(t, err)

		far, err := service.Evaluate(context.Background(), practiceRequest("perro", contextText))
		require.NoError(t, err)
		assert.False(t, far.Cached)
	})

	t.Run("a different page context does not hit the similarity path", func(t *testing.T) {
		service := newTestService(t, nil, NewCounters(), Options{})

		_, err := service.Evaluate(context.Background(), practiceRequest("escuela", contextText))
		require.NoError(t, err)

		reading := practiceRequest("escuelas", contextText)
		reading.PageContext = PageReading
		result, err := service.Evaluate(context.Background(), reading)
		require.NoError(t, err)
		assert.False(t, result.Cached)
		assert.Contains(t, result.Feedback, "[reading]")
	})
}

func TestService_Evaluate_TTLExpiry(t *testing.T) {
	service := newTestService(t, nil, NewCounters(), Options{CacheTTL: time.Minute})
	current := time.Now()
	service.now = func() time.Time { return current }
	request := practiceRequest("gato", "El gato duerme")

	_, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)

	current = current.Add(30 * time.Second)
	fresh, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, fresh.Cached, "entry should still be served before the TTL")

	current = current.Add(2 * time.Minute)
	expired, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, expired.Cached, "expired entry must not be served")
}

func TestService_Evaluate_CapacityEviction(t *testing.T) {
	counters := NewCounters()
	service := newTestService(t, nil, counters, Options{CacheMaxEntries: 10})

	words := []string{
		"gato", "perro", "casa", "libro", "escuela", "ventana",
		"puerta", "comida", "trabajo", "familia", "ciudad", "montaña",
	}
	for _, word := range words {
		_, err := service.Evaluate(context.Background(), practiceRequest(word, "Una frase con "+word))
		require.NoError(t, err)
	}

	assert.LessOrEqual(t, service.CacheSize(), 10)
	assert.GreaterOrEqual(t, counters.Snapshot().Evictions, uint64(1))
}

func TestService_Evaluate_TimeoutBound(t *testing.T) {
	counters := NewCounters()
	client := &stubClient{
		evaluateFunc: func(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error) {
			<-ctx.Done()
			return inference.EvaluateWordResponse{}, ctx.Err()
		},
	}
	service := newTestService(t, client, counters, Options{OverallTimeout: 100 * time.Millisecond})

	start := time.Now()
	result, err := service.Evaluate(context.Background(), practiceRequest("gato", "El gato duerme"))
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Equal(t, PathHeuristic, result.Path)
	assert.True(t, result.Fallback)
	assert.Equal(t, StatusForScore(result.Score), result.Status)

	snapshot := counters.Snapshot()
	assert.Equal(t, uint64(1), snapshot.Timeouts)
	assert.Equal(t, uint64(1), snapshot.Errors)
	assert.Equal(t, uint64(1), snapshot.Fallbacks)
}

func TestService_Evaluate_FallbackNeverFails(t *testing.T) {
	client := &stubClient{
		evaluateFunc: func(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error) {
			return inference.EvaluateWordResponse{}, errors.New("malformed response: not JSON")
		},
	}
	service := newTestService(t, client, NewCounters(), Options{})

	for _, word := range []string{"hola", "xkcd", "felicidad", "q"} {
		result, err := service.Evaluate(context.Background(), practiceRequest(word, "Una frase cualquiera con hola"))
		require.NoError(t, err, "word %q", word)
		assert.Contains(t, []Status{StatusCorrect, StatusClose, StatusWrong}, result.Status)
		assert.GreaterOrEqual(t, result.Score, 0)
		assert.LessOrEqual(t, result.Score, 100)
		assert.True(t, result.Fallback)
	}
}

func TestService_Evaluate_ModelPath(t *testing.T) {
	client := &stubClient{
		evaluateFunc: func(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error) {
			return inference.EvaluateWordResponse{
				Score: 82,
				// A disagreeing status from the provider must not leak out.
				Status:     "wrong",
				Feedback:   "Good word choice for this sentence.",
				Confidence: 0.9,
			}, nil
		},
	}
	service := newTestService(t, client, NewCounters(), Options{})
	request := practiceRequest("duerme", "El gato duerme en el sofá")

	result, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, PathModel, result.Path)
	assert.False(t, result.Cached)
	assert.False(t, result.Fallback)
	assert.Equal(t, 82, result.Score)
	assert.Equal(t, StatusCorrect, result.Status)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "Good word choice for this sentence.", result.Feedback)

	cached, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, PathCachedExact, cached.Path)
	assert.True(t, cached.Cached)
	assert.Equal(t, 1, client.calls, "a cache hit must not call the model again")
}

func TestService_Evaluate_ModelFailureIsNotCached(t *testing.T) {
	client := &stubClient{
		evaluateFunc: func(ctx context.Context, params inference.EvaluateWordRequest) (inference.EvaluateWordResponse, error) {
			return inference.EvaluateWordResponse{}, errors.New("response error 500: boom")
		},
	}
	service := newTestService(t, client, NewCounters(), Options{})
	request := practiceRequest("gato", "El gato duerme")

	first, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.True(t, first.Fallback)

	// The heuristic answer after a transient failure is not pinned, so the
	// model gets another chance.
	second, err := service.Evaluate(context.Background(), request)
	require.NoError(t, err)
	assert.False(t, second.Cached)
	assert.Equal(t, 2, client.calls)
}

func TestService_Evaluate_PageContextFeedback(t *testing.T) {
	service := newTestService(t, nil, NewCounters(), Options{})
	word, contextText := "biblioteca", "Voy a la biblioteca cada semana"

	readingRequest := practiceRequest(word, contextText)
	readingRequest.PageContext = PageReading
	reading, err := service.Evaluate(context.Background(), readingRequest)
	require.NoError(t, err)

	conversationRequest := practiceRequest(word, contextText)
	conversationRequest.PageContext = PageConversation
	conversation, err := service.Evaluate(context.Background(), conversationRequest)
	require.NoError(t, err)

	assert.Contains(t, reading.Feedback, "[reading]")
	assert.Contains(t, conversation.Feedback, "[conversation]")
	assert.NotEqual(t, reading.Feedback, conversation.Feedback)
}

func TestService_Evaluate_ResultTiming(t *testing.T) {
	service := newTestService(t, nil, NewCounters(), Options{})
	current := time.Now()
	service.now = func() time.Time {
		now := current
		current = current.Add(25 * time.Millisecond)
		return now
	}

	result, err := service.Evaluate(context.Background(), practiceRequest("gato", "El gato duerme"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, result.EvaluationTimeMs, int64(25))
}

func TestService_Evaluate_Concurrent(t *testing.T) {
	const (
		goroutines = 16
		iterations = 50
	)

	// Real jitter and a real clock: the point of this test is shared-state
	// safety under the race detector, not exact scores. The capacity is
	// below the number of dissimilar words so evictions keep flowing while
	// repeated words produce exact and similar hits.
	counters := NewCounters()
	service := NewService(nil, counters, Options{CacheMaxEntries: 4})

	words := []string{"gato", "gatos", "escuela", "escuelas", "perro", "canción"}
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < iterations; i++ {
				word := words[(g+i)%len(words)]
				if i%7 == 0 {
					word = fmt.Sprintf("palabra%d", (g*iterations+i)%40)
				}
				result, err := service.Evaluate(context.Background(),
					practiceRequest(word, "El gato duerme en la escuela grande"))
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, StatusForScore(result.Score), result.Status)
				assert.NotEmpty(t, result.Feedback)
			}
		}(g)
	}
	wg.Wait()

	snapshot := counters.Snapshot()
	assert.Equal(t, uint64(goroutines*iterations), snapshot.Requests)
	assert.Equal(t, snapshot.Requests, snapshot.ExactHits+snapshot.SimilarityHits+snapshot.Misses)
	assert.Equal(t, snapshot.Misses, snapshot.Fallbacks)
	assert.Greater(t, snapshot.Evictions, uint64(0))
}

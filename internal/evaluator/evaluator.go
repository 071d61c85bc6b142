// Package evaluator grades a learner's word choice for a sentence, preferring
// cached or locally computed answers over calls to the model provider and
// bounding the worst-case latency of every request.
package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/aidioma/aidioma/internal/inference"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type Language string

const (
	LanguageSpanish Language = "spanish"
)

// PageContext identifies which part of the application issued a request.
// It biases evaluation criteria and feedback phrasing, nothing else.
type PageContext string

const (
	PagePractice     PageContext = "practice"
	PageReading      PageContext = "reading"
	PageMemorization PageContext = "memorization"
	PageConversation PageContext = "conversation"
)

type Status string

const (
	StatusCorrect Status = "correct"
	StatusClose   Status = "close"
	StatusWrong   Status = "wrong"
)

// StatusForScore maps a score onto a status under the fixed thresholds:
// 75 and above is correct, 50 to 74 is close, below 50 is wrong.
func StatusForScore(score int) Status {
	switch {
	case score >= 75:
		return StatusCorrect
	case score >= 50:
		return StatusClose
	default:
		return StatusWrong
	}
}

// Path tags which way a result was produced.
type Path string

const (
	PathCachedExact   Path = "cached_exact"
	PathCachedSimilar Path = "cached_similar"
	PathModel         Path = "model"
	PathHeuristic     Path = "heuristic"
)

// Request is the unit of work submitted for grading. It is never mutated
// after being handed to the service.
type Request struct {
	Word        string
	Context     string
	Difficulty  Difficulty
	Language    Language
	PageContext PageContext
}

// Result is the grading returned to the caller. Status and Score always agree
// under the StatusForScore thresholds, on every path.
type Result struct {
	Status           Status  `json:"status"`
	Confidence       float64 `json:"confidence"`
	Score            int     `json:"score"`
	Feedback         string  `json:"feedback"`
	Cached           bool    `json:"cached"`
	Fallback         bool    `json:"fallback"`
	Path             Path    `json:"path"`
	EvaluationTimeMs int64   `json:"evaluationTimeMs"`
}

// ErrInvalidInput is returned when word or context is empty after trimming.
// It is the only error Evaluate can return.
var ErrInvalidInput = errors.New("word and context are required")

type Options struct {
	CacheTTL            time.Duration
	CacheMaxEntries     int
	SimilarityThreshold float64
	OverallTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		CacheTTL:            30 * time.Minute,
		CacheMaxEntries:     1000,
		SimilarityThreshold: 0.85,
		OverallTimeout:      10 * time.Second,
	}
}

// Service is the evaluation cache and dispatcher. The zero value is not
// usable; construct it with NewService. A nil inference client is valid and
// routes every request to the heuristic path.
type Service struct {
	client  inference.Client
	cache   *resultCache
	metrics Recorder
	opts    Options

	now    func() time.Time
	jitter func() int
}

func NewService(client inference.Client, metrics Recorder, opts Options) *Service {
	defaults := DefaultOptions()
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = defaults.CacheTTL
	}
	if opts.CacheMaxEntries <= 0 {
		opts.CacheMaxEntries = defaults.CacheMaxEntries
	}
	if opts.SimilarityThreshold <= 0 || opts.SimilarityThreshold > 1 {
		opts.SimilarityThreshold = defaults.SimilarityThreshold
	}
	if opts.OverallTimeout <= 0 {
		opts.OverallTimeout = defaults.OverallTimeout
	}
	if metrics == nil {
		metrics = NopRecorder{}
	}

	return &Service{
		client:  client,
		cache:   newResultCache(opts.CacheTTL, opts.CacheMaxEntries),
		metrics: metrics,
		opts:    opts,
		now:     time.Now,
		// The top-level rand functions are safe for concurrent use; a
		// dedicated rand.Rand is not.
		jitter: func() int {
			return rand.Intn(21) - 10
		},
	}
}

// Evaluate returns a grading for the request. Every path except invalid input
// terminates in a usable result: cache hits and heuristic answers return
// immediately, and model failures of any kind degrade to the heuristic path
// instead of propagating.
func (s *Service) Evaluate(ctx context.Context, req Request) (Result, error) {
	start := s.now()

	word := strings.TrimSpace(req.Word)
	contextText := strings.TrimSpace(req.Context)
	if word == "" || contextText == "" {
		return Result{}, ErrInvalidInput
	}
	s.metrics.Inc(MetricRequests)

	normWord := normalizeText(word)
	suffix := keySuffix(contextText, req.Difficulty, req.PageContext)
	key := normWord + "|" + suffix

	if result, ok := s.cache.get(key, s.now()); ok {
		s.metrics.Inc(MetricExactHits)
		return s.finish(result, PathCachedExact, start), nil
	}
	if result, ok := s.cache.similar(key, normWord, suffix, s.opts.SimilarityThreshold, s.now()); ok {
		s.metrics.Inc(MetricSimilarityHits)
		return s.finish(result, PathCachedSimilar, start), nil
	}
	s.metrics.Inc(MetricMisses)

	if s.client != nil {
		result, err := s.evaluateWithModel(ctx, req, word, contextText)
		if err == nil {
			evicted := s.cache.put(key, normWord, suffix, result, s.now())
			s.metrics.Add(MetricEvictions, uint64(evicted))
			return s.finish(result, PathModel, start), nil
		}
		if errors.Is(err, context.DeadlineExceeded) {
			s.metrics.Inc(MetricTimeouts)
		}
		s.metrics.Inc(MetricErrors)
		slog.Default().Warn("Model evaluation failed, falling back to heuristic",
			"word", word,
			"pageContext", req.PageContext,
			"error", err)
	}

	s.metrics.Inc(MetricFallbacks)
	result := s.heuristic(word, contextText, req)
	if s.client == nil {
		// Heuristic-only mode caches its answers. After a model failure the
		// result is not cached and the model is asked again next time.
		evicted := s.cache.put(key, normWord, suffix, result, s.now())
		s.metrics.Add(MetricEvictions, uint64(evicted))
	}
	return s.finish(result, PathHeuristic, start), nil
}

func (s *Service) evaluateWithModel(ctx context.Context, req Request, word, contextText string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OverallTimeout)
	defer cancel()

	response, err := s.client.EvaluateWord(ctx, inference.EvaluateWordRequest{
		Word:        word,
		Context:     contextText,
		Difficulty:  string(req.Difficulty),
		Language:    string(req.Language),
		PageContext: string(req.PageContext),
	})
	if err != nil {
		return Result{}, err
	}

	score := clampScore(response.Score)
	confidence := response.Confidence
	if confidence <= 0 || confidence > 1 {
		confidence = float64(score) / 100
	}
	// Status always follows the score thresholds, even when the model
	// reports a disagreeing status.
	return Result{
		Status:     StatusForScore(score),
		Confidence: confidence,
		Score:      score,
		Feedback:   response.Feedback,
	}, nil
}

func (s *Service) finish(result Result, path Path, start time.Time) Result {
	result.Path = path
	result.Cached = path == PathCachedExact || path == PathCachedSimilar
	result.Fallback = path == PathHeuristic
	result.EvaluationTimeMs = s.now().Sub(start).Milliseconds()
	return result
}

// CacheSize reports the number of keys currently held, including aliases.
func (s *Service) CacheSize() int {
	return s.cache.size()
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aidioma/aidioma/internal/config"
	"github.com/aidioma/aidioma/internal/evaluator"
	"github.com/aidioma/aidioma/internal/inference"
	"github.com/aidioma/aidioma/internal/inference/openai"
)

func newEvaluateCommand() *cobra.Command {
	var (
		contextSentence string
		difficulty      string
		pageContext     string
		language        string
	)

	command := &cobra.Command{
		Use:   "evaluate <word>",
		Short: "Evaluate a single word choice against a sentence",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}

			counters := evaluator.NewCounters()

			var client inference.Client
			if cfg.OpenAI.APIKey != "" {
				fmt.Printf("Using OpenAI provider (model: %s)\n", cfg.OpenAI.Model)
				openaiClient := openai.NewClient(
					cfg.OpenAI.APIKey,
					cfg.OpenAI.Model,
					uint(cfg.Evaluator.MaxRetries),
					openai.WithAttemptTimeout(time.Duration(cfg.Evaluator.AttemptTimeoutMs)*time.Millisecond),
					openai.WithRetryObserver(func(attempt uint, err error) {
						counters.Inc(evaluator.MetricRetries)
					}),
				)
				defer func() {
					_ = openaiClient.Close()
				}()
				client = openaiClient
			} else {
				fmt.Println("No OPENAI_API_KEY configured, evaluating heuristically")
			}

			service := evaluator.NewService(client, counters, evaluator.Options{
				CacheTTL:            time.Duration(cfg.Evaluator.CacheTTLSeconds) * time.Second,
				CacheMaxEntries:     cfg.Evaluator.CacheMaxEntries,
				SimilarityThreshold: cfg.Evaluator.SimilarityThreshold,
				OverallTimeout:      time.Duration(cfg.Evaluator.OverallTimeoutMs) * time.Millisecond,
			})

			result, err := service.Evaluate(cmd.Context(), evaluator.Request{
				Word:        args[0],
				Context:     contextSentence,
				Difficulty:  evaluator.Difficulty(difficulty),
				Language:    evaluator.Language(language),
				PageContext: evaluator.PageContext(pageContext),
			})
			if err != nil {
				return err
			}

			printResult(args[0], result)
			return nil
		},
	}

	command.Flags().StringVar(&contextSentence, "context", "", "sentence the word was used in (required)")
	command.Flags().StringVar(&difficulty, "difficulty", string(evaluator.DifficultyBeginner), "beginner, intermediate, or advanced")
	command.Flags().StringVar(&pageContext, "page", string(evaluator.PagePractice), "practice, reading, memorization, or conversation")
	command.Flags().StringVar(&language, "language", string(evaluator.LanguageSpanish), "target language")
	_ = command.MarkFlagRequired("context")

	return command
}

func printResult(word string, result evaluator.Result) {
	switch result.Status {
	case evaluator.StatusCorrect:
		color.Green("%q is correct (score %d)", word, result.Score)
	case evaluator.StatusClose:
		color.Yellow("%q is close (score %d)", word, result.Score)
	default:
		color.Red("%q is wrong (score %d)", word, result.Score)
	}
	fmt.Println(result.Feedback)
	fmt.Printf("path=%s cached=%t fallback=%t took=%dms\n",
		result.Path, result.Cached, result.Fallback, result.EvaluationTimeMs)
}

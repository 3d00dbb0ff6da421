package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chriscorrea/langsift/internal/app"
	"github.com/chriscorrea/langsift/internal/bayes"
	"github.com/chriscorrea/langsift/internal/config"
	"github.com/chriscorrea/langsift/internal/corpus"
	"github.com/chriscorrea/langsift/internal/counter"
	"github.com/chriscorrea/langsift/internal/logging"
	"github.com/chriscorrea/langsift/internal/server"
	"github.com/chriscorrea/langsift/internal/train"
)

// settings is loaded once per invocation by the root command's pre-run hook.
var settings *config.Config

// setupLogger configures the global zerolog logger from the environment and the debug flag
func setupLogger(cmd *cobra.Command, cfg *config.Config) error {
	debug, _ := cmd.Flags().GetBool("debug")

	level := zerolog.DebugLevel
	if !debug {
		var err error
		if level, err = logging.ParseLevel(cfg.LogLevel); err != nil {
			return err
		}
	}
	format, err := logging.ParseFormat(cfg.LogFormat)
	if err != nil {
		return err
	}

	logging.Setup(level, format, os.Stderr)
	return nil
}

// stringFlag returns the flag value when it was set, fallback otherwise
func stringFlag(cmd *cobra.Command, name, fallback string) string {
	if !cmd.Flags().Changed(name) {
		return fallback
	}
	value, _ := cmd.Flags().GetString(name)
	return value
}

func outputFormat(cmd *cobra.Command) app.OutputFormat {
	if jsonFlag, _ := cmd.Flags().GetBool("json"); jsonFlag {
		return app.JSON
	}
	return app.Text
}

// buildDetectConfig constructs an app.DetectConfig from command flags and arguments
func buildDetectConfig(cmd *cobra.Command, args []string, cfg *config.Config) app.DetectConfig {
	files, _ := cmd.Flags().GetStringSlice("file")
	probabilities, _ := cmd.Flags().GetBool("probabilities")
	quiet, _ := cmd.Flags().GetBool("quiet")

	// no text and no sources: read stdin
	if len(args) == 0 && len(files) == 0 {
		files = []string{"-"}
	}

	return app.DetectConfig{
		ModelPath:        stringFlag(cmd, "model", cfg.ModelPath),
		FallbackLanguage: cfg.FallbackLanguage,
		Texts:            args,
		Sources:          files,
		Output:           outputFormat(cmd),
		Probabilities:    probabilities,
		Quiet:            quiet,
	}
}

// buildTrainConfig constructs an app.TrainConfig from command flags
func buildTrainConfig(cmd *cobra.Command, cfg *config.Config) (app.TrainConfig, error) {
	languages, _ := cmd.Flags().GetStringSlice("languages")
	testSplit, _ := cmd.Flags().GetFloat64("test-split")
	maxSamples, _ := cmd.Flags().GetInt("max-samples")
	minN, _ := cmd.Flags().GetInt("min-n")
	maxN, _ := cmd.Flags().GetInt("max-n")
	maxFeatures, _ := cmd.Flags().GetInt("max-features")
	methodName, _ := cmd.Flags().GetString("method")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	seed, _ := cmd.Flags().GetInt64("seed")
	reclaim, _ := cmd.Flags().GetBool("reclaim")
	unit, _ := cmd.Flags().GetString("length-unit")
	minLength, _ := cmd.Flags().GetInt("min-length")
	maxLength, _ := cmd.Flags().GetInt("max-length")
	selector, _ := cmd.Flags().GetString("selector")
	keepBoilerplate, _ := cmd.Flags().GetBool("keep-boilerplate")
	quiet, _ := cmd.Flags().GetBool("quiet")

	method, err := bayes.ParseTrainingMethod(methodName)
	if err != nil {
		return app.TrainConfig{}, err
	}
	countingMethod, err := counter.ParseCountingMethod(unit)
	if err != nil {
		return app.TrainConfig{}, err
	}
	lengthCounter, err := counter.NewCounter(countingMethod)
	if err != nil {
		return app.TrainConfig{}, fmt.Errorf("length unit %s: %w", unit, err)
	}
	if minN <= 0 || maxN < minN {
		return app.TrainConfig{}, fmt.Errorf("invalid n-gram range %d..%d", minN, maxN)
	}

	opts := train.DefaultOptions()
	opts.Languages = languages
	opts.TestSplit = testSplit
	opts.MaxSamplesPerLanguage = maxSamples
	opts.Vectorizer.MinN = minN
	opts.Vectorizer.MaxN = maxN
	opts.Vectorizer.MaxFeatures = maxFeatures
	opts.Method = method
	opts.BatchSize = batchSize
	opts.Seed = seed
	opts.Reclaim = reclaim

	return app.TrainConfig{
		DataDir: stringFlag(cmd, "data-dir", cfg.DataDir),
		Output:  stringFlag(cmd, "output", cfg.ModelPath),
		Corpus: corpus.Options{
			MinLength:       minLength,
			MaxLength:       maxLength,
			Counter:         lengthCounter,
			Selector:        selector,
			KeepBoilerplate: keepBoilerplate,
		},
		Training: opts,
		Quiet:    quiet,
	}, nil
}

// buildEvaluateConfig constructs an app.EvaluateConfig from command flags
func buildEvaluateConfig(cmd *cobra.Command, cfg *config.Config) app.EvaluateConfig {
	cases, _ := cmd.Flags().GetString("cases")
	baseline, _ := cmd.Flags().GetBool("baseline")
	interactive, _ := cmd.Flags().GetBool("interactive")
	quiet, _ := cmd.Flags().GetBool("quiet")

	return app.EvaluateConfig{
		ModelPath:        stringFlag(cmd, "model", cfg.ModelPath),
		FallbackLanguage: cfg.FallbackLanguage,
		CasesPath:        cases,
		Baseline:         baseline,
		Interactive:      interactive,
		Output:           outputFormat(cmd),
		Quiet:            quiet,
	}
}

// buildServeConfig constructs an app.ServeConfig from command flags
func buildServeConfig(cmd *cobra.Command, cfg *config.Config) app.ServeConfig {
	origins, _ := cmd.Flags().GetStringSlice("cors-origin")
	maxBatch, _ := cmd.Flags().GetInt("max-batch")

	return app.ServeConfig{
		ModelPath:        stringFlag(cmd, "model", cfg.ModelPath),
		FallbackLanguage: cfg.FallbackLanguage,
		Addr:             stringFlag(cmd, "addr", cfg.Addr),
		AllowedOrigins:   origins,
		MaxBatch:         maxBatch,
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "langsift",
		Short: "Language detection for short, informal text",
		Long: `Langsift detects the language of chat messages, SMS and social posts, where slang,
abbreviations and emoji defeat detectors built for long, clean text.

Examples:
  langsift detect "jajaja que onda wey"
  langsift detect -f messages.txt --json
  langsift train --data-dir data/processed --languages es,en
  langsift evaluate --baseline
  langsift serve --addr :8080`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if err := setupLogger(cmd, cfg); err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			settings = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress and warning messages")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "Enable debug logging")
	_ = rootCmd.PersistentFlags().MarkHidden("debug")

	rootCmd.AddCommand(newDetectCmd(), newTrainCmd(), newEvaluateCmd(), newLanguagesCmd(), newServeCmd())
	return rootCmd
}

func newDetectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "detect [text...]",
		Short: "Detect the language of each text",
		Long: `Detect the language of each argument, or of each line read from the given sources.
Sources may be local files, URLs or "-" for standard input. With no arguments and no
sources, lines are read from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Detect(cmd.Context(), buildDetectConfig(cmd, args, settings), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model file (default $LANGSIFT_MODEL_PATH or "+config.DefaultModelPath+")")
	cmd.Flags().StringSliceP("file", "f", nil, "Read one text per line from a file, URL or - for stdin")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	cmd.Flags().BoolP("probabilities", "p", false, "Include per-language probabilities")
	return cmd
}

func newTrainCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model from a corpus directory",
		Long: `Train reads <lang>.json, <lang>.txt, <lang>.tsv, <lang>.txt.gz or <lang>.html for each
language from the data directory, trains the TF-IDF vectorizer and Naive Bayes classifier,
evaluates on a held-out split and writes the model plus a minified copy.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildTrainConfig(cmd, settings)
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			_, err = app.Train(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}

	defaults := train.DefaultOptions()

	// corpus
	cmd.Flags().String("data-dir", "", "Corpus directory (default $LANGSIFT_DATA_DIR or "+config.DefaultDataDir+")")
	cmd.Flags().StringSliceP("languages", "l", defaults.Languages, "Languages to train")
	cmd.Flags().String("length-unit", "characters", "Unit for sample length limits: characters, words or tokens")
	cmd.Flags().Int("min-length", corpus.DefaultMinLength, "Minimum sample length")
	cmd.Flags().Int("max-length", corpus.DefaultMaxLength, "Maximum sample length (0 for no limit)")
	cmd.Flags().StringP("selector", "s", "", "CSS selector for HTML corpus pages")
	cmd.Flags().Bool("keep-boilerplate", false, "Keep headers, footers and navigation from HTML corpus pages")

	// dataset
	cmd.Flags().Float64("test-split", defaults.TestSplit, "Fraction of samples held out for evaluation")
	cmd.Flags().Int("max-samples", defaults.MaxSamplesPerLanguage, "Maximum samples per language (0 for all)")
	cmd.Flags().Int64("seed", defaults.Seed, "Shuffle seed")

	// model
	cmd.Flags().Int("min-n", defaults.Vectorizer.MinN, "Shortest character n-gram")
	cmd.Flags().Int("max-n", defaults.Vectorizer.MaxN, "Longest character n-gram")
	cmd.Flags().Int("max-features", defaults.Vectorizer.MaxFeatures, "Vocabulary size")
	cmd.Flags().String("method", defaults.Method.String(), "Classifier training method: batch or streaming")
	cmd.Flags().Int("batch-size", defaults.BatchSize, "Texts vectorized per training step")
	cmd.Flags().Bool("reclaim", false, "Return freed memory to the OS after each language")

	cmd.Flags().StringP("output", "o", "", "Model file to write (default $LANGSIFT_MODEL_PATH or "+config.DefaultModelPath+")")
	return cmd
}

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Measure accuracy on labelled evaluation cases",
		Long: `Evaluate runs labelled cases through the model and reports accuracy and failures.
Without --cases the bundled set of conversational, slang and chat-style cases is used.
Cases whose language the model does not support are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := buildEvaluateConfig(cmd, settings)
			cfg.Stdin = cmd.InOrStdin()
			_, err := app.Evaluate(cmd.Context(), cfg, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model file (default $LANGSIFT_MODEL_PATH or "+config.DefaultModelPath+")")
	cmd.Flags().StringP("cases", "c", "", "Cases file of text<TAB>language lines (file, URL or -)")
	cmd.Flags().Bool("baseline", false, "Compare with whatlanggo on the same cases")
	cmd.Flags().BoolP("interactive", "i", false, "Detect lines typed on stdin after the run")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func newLanguagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List the languages a model detects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := app.Languages(app.LanguagesConfig{
				ModelPath: stringFlag(cmd, "model", settings.ModelPath),
				Output:    outputFormat(cmd),
			}, cmd.OutOrStdout())
			return err
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model file (default $LANGSIFT_MODEL_PATH or "+config.DefaultModelPath+")")
	cmd.Flags().Bool("json", false, "Output in JSON format")
	return cmd
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Serve(cmd.Context(), buildServeConfig(cmd, settings))
		},
	}

	cmd.Flags().StringP("model", "m", "", "Model file (default $LANGSIFT_MODEL_PATH or "+config.DefaultModelPath+")")
	cmd.Flags().String("addr", "", "Listen address (default $LANGSIFT_ADDR or "+config.DefaultAddr+")")
	cmd.Flags().StringSlice("cors-origin", nil, "Allowed CORS origins (default any)")
	cmd.Flags().Int("max-batch", server.DefaultMaxBatch, "Maximum texts per batch request")
	return cmd
}

func main() {
	// cancel long-running work on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

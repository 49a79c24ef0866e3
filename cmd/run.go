package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/ai"
	"github.com/spigell/hh-traits/internal/ai/gemini"
	"github.com/spigell/hh-traits/internal/ai/jina"
	"github.com/spigell/hh-traits/internal/filtering"
	"github.com/spigell/hh-traits/internal/headhunter"
	"github.com/spigell/hh-traits/internal/logger"
	"github.com/spigell/hh-traits/internal/metrics"
	"github.com/spigell/hh-traits/internal/output"
	"github.com/spigell/hh-traits/internal/pipeline"
	"github.com/spigell/hh-traits/internal/progress"
	"github.com/spigell/hh-traits/internal/secrets"
	"github.com/spigell/hh-traits/internal/similarity"
	"github.com/spigell/hh-traits/internal/source"
	"github.com/spigell/hh-traits/internal/synonym"
	"github.com/spigell/hh-traits/internal/taxonomy"
)

const (
	PromptYes           = "Yes"
	PromptNo            = "No"
	PromptReportByTrait = "Report by trait"
	PromptScoresToFile  = "Dump scores to file"
)

var prompt = promptui.Select{
	Label: "Write the scores?",
	Items: []string{PromptYes, PromptNo, PromptReportByTrait, PromptScoresToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score advertisements and write the Big Five vectors",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before writing the scores")
	runCmd.Flags().StringP("output", "o", "", "ARFF file to write the scores to")
	runCmd.Flags().String("metrics-file", "", "write run metrics in the node-exporter textfile format")
	runCmd.Flags().StringP("exclude-file", "e", "", "file with advertisement IDs to skip, one per line. Default is unset.")

	viper.BindPFlag("output.arff", runCmd.Flags().Lookup("output"))
	viper.BindPFlag("source.exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the hh-traits", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(*config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	b := &builder{config: config, logger: logger}

	src, err := b.source(ctx)
	if err != nil {
		logger.Fatal("preparing the advertisement source", zap.Error(err))
	}

	expander, err := b.expander(ctx)
	if err != nil {
		logger.Fatal("preparing synonym expansion", zap.Error(err))
	}

	oracle, err := b.oracle(ctx)
	if err != nil {
		logger.Fatal("preparing the similarity oracle", zap.Error(err))
	}

	sink, closeSink, err := b.sink(ctx)
	if err != nil {
		logger.Fatal("preparing the output", zap.Error(err))
	}
	defer closeSink()

	m := metrics.New()
	deps := pipeline.Deps{
		Source:   src,
		Filters:  filtering.Defaults(config.Source.ExcludeFile),
		Keywords: taxonomy.CSVFile{Path: config.Taxonomy.File},
		Synonyms: expander,
		Oracle:   oracle,
		Sink:     sink,
		Logger:   logger,
		Metrics:  m,
		Progress: progress.NewLogger(logger, m.ObservePhaseItems),
	}

	if cmd.Flag("auto-approve").Value.String() == "false" {
		deps.Confirm = confirm(logger, config.Output.Relation)
	}

	orchestrator, err := pipeline.New(b.pipelineConfig(), deps)
	if err != nil {
		logger.Fatal("creating the pipeline", zap.Error(err))
	}

	_, runErr := orchestrator.Run(ctx)

	if path := cmd.Flag("metrics-file").Value.String(); path != "" {
		if err := m.WriteTextfile(path); err != nil {
			logger.Warn("writing metrics", zap.Error(err))
		}
	}

	if runErr != nil {
		closeSink()
		logger.Fatal("exiting", zap.Error(runErr))
	}
}

// confirm asks what to do with a computed result. Reports and dumps loop
// back to the prompt.
func confirm(logger *zap.Logger, relation string) pipeline.ConfirmFunc {
	return func(_ context.Context, result output.Result) (bool, error) {
		for {
			_, action, err := prompt.Run()
			if err != nil {
				return false, err
			}

			logger.Info("current list of advertisements", zap.Int("count", len(result.Vectors)))

			done, approved, err := handleAction(action, logger, relation, result)
			if err != nil {
				return false, err
			}
			if done {
				return approved, nil
			}
		}
	}
}

func handleAction(action string, logger *zap.Logger, relation string, result output.Result) (done bool, approved bool, err error) {
	switch action {
	case PromptYes:
		return true, true, nil
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return true, false, nil
	case PromptReportByTrait:
		pretty, _ := json.MarshalIndent(result.ReportByTrait(), "", "  ")
		logger.Info(string(pretty), zap.Int("advertisements count", len(result.Vectors)))
		return false, false, nil
	case PromptScoresToFile:
		filename, err := result.DumpToTmpFile(relation)
		if err != nil {
			return false, false, fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return false, false, nil
	default:
		return false, false, fmt.Errorf("invalid action: %s", action)
	}
}

// builder turns the config into pipeline collaborators. Clients shared by
// several collaborators are created once.
type builder struct {
	config *Config
	logger *zap.Logger

	gemini  *gemini.Generator
	lexicon *synonym.Lexicon
}

func (b *builder) pipelineConfig() pipeline.Config {
	cfg := pipeline.DefaultConfig()

	if s := b.config.Source; s != nil {
		cfg.MinLength = s.MinLength
		cfg.ExcludeEmpty = s.ExcludeEmpty
	}
	if t := b.config.Taxonomy; t != nil {
		cfg.TraitOrder = t.Traits
	}
	if s := b.config.Synonyms; s != nil {
		cfg.SynonymTimeout = s.Timeout
	}
	if c := b.config.Cleaner; c != nil {
		cfg.CleaningWorkers = c.Workers
		cfg.Cleaner = advert.CleanerConfig{
			Stopwords:      c.Stopwords,
			MinTokenLength: c.MinTokenLength,
		}
	}
	if p := b.config.Pipeline; p != nil {
		cfg.ScoringWorkers = p.ScoringWorkers
		cfg.DropEmpty = p.DropEmpty
	}

	return cfg
}

func (b *builder) source(ctx context.Context) (source.Source, error) {
	cfg := b.config.Source
	if cfg == nil {
		return nil, errors.New("source section is required")
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Kind)) {
	case "sql", "":
		dsn, err := secrets.Load(secrets.Source{
			Name:  "source database dsn",
			Value: cfg.SQL.DSN,
			File:  cfg.SQL.DSNFile,
			Env:   "HH_TRAITS_SOURCE_DSN",
		})
		if err != nil {
			return nil, err
		}

		sqlCfg := cfg.SQL
		sqlCfg.DSN = dsn
		return source.OpenSQL(ctx, sqlCfg, b.logger)

	case "headhunter":
		hhCfg := cfg.HeadHunter
		if hhCfg == nil || hhCfg.Search == nil {
			return nil, errors.New("source.headhunter.search is required for the headhunter source")
		}

		tokenFile := strings.TrimSpace(hhCfg.TokenFile)
		if tokenFile == "" {
			tokenFile = strings.TrimSpace(viper.GetString("source.headhunter.token-file"))
		}

		token, err := secrets.Optional(secrets.Source{
			Name: "headhunter token",
			File: tokenFile,
			Env:  "HH_TOKEN",
		})
		if err != nil {
			return nil, err
		}

		hh := headhunter.New(b.logger, token)
		if hhCfg.UserAgent != "" {
			hh.UserAgent = hhCfg.UserAgent
		}

		b.logger.Info("using headhunter vacancies as advertisements", zap.String("search", hhCfg.Search.Text))
		return source.NewHeadHunter(hh, *hhCfg.Search, hhCfg.Details, b.logger), nil

	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

func (b *builder) expander(ctx context.Context) (synonym.Expander, error) {
	cfg := b.config.Synonyms
	if cfg == nil || len(cfg.Providers) == 0 {
		return synonym.None{}, nil
	}

	var chain synonym.Chain
	for _, name := range cfg.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "none":
		case "lexicon":
			lexicon, err := b.loadLexicon()
			if err != nil {
				return nil, err
			}
			chain = append(chain, lexicon)
		case "datamuse":
			chain = append(chain, synonym.NewDatamuse(cfg.DatamuseURL, cfg.Max, cfg.Timeout))
		case string(ai.ProviderGemini):
			generator, err := b.geminiGenerator(ctx)
			if err != nil {
				return nil, err
			}
			chain = append(chain, gemini.NewSynonymGenerator(generator, cfg.Max, b.logger))
		default:
			return nil, fmt.Errorf("unknown synonym provider %q", name)
		}
	}

	switch len(chain) {
	case 0:
		return synonym.None{}, nil
	case 1:
		return chain[0], nil
	default:
		return chain, nil
	}
}

func (b *builder) oracle(ctx context.Context) (similarity.Oracle, error) {
	cfg := b.config.Similarity
	if cfg == nil {
		return similarity.Exact{}, nil
	}

	var oracle similarity.Oracle
	switch strings.ToLower(strings.TrimSpace(cfg.Method)) {
	case "exact", "":
		return similarity.Exact{}, nil
	case "lexical":
		lexicon, err := b.loadLexicon()
		if err != nil {
			return nil, err
		}
		oracle = similarity.Lexical{Groups: lexicon, Weight: cfg.LexicalWeight}
	case "embedding":
		embedder, err := b.embedder(ctx)
		if err != nil {
			return nil, err
		}
		emb := similarity.NewEmbedding(embedder)
		if cfg.Timeout > 0 {
			emb.Timeout = cfg.Timeout
		}
		oracle = emb
	default:
		return nil, fmt.Errorf("unknown similarity method %q", cfg.Method)
	}

	if cfg.Cache {
		oracle = similarity.Memoize(oracle)
	}
	return similarity.WithTimeout(oracle, cfg.Timeout), nil
}

func (b *builder) embedder(ctx context.Context) (ai.Embedder, error) {
	provider, err := ai.ParseProvider(b.config.Similarity.Embeddings)
	if err != nil {
		return nil, err
	}

	switch provider {
	case ai.ProviderGemini:
		return b.geminiGenerator(ctx)
	case ai.ProviderJina:
		cfg := b.config.Jina
		if cfg == nil {
			cfg = &JinaConfig{}
		}

		apiKey, err := secrets.Load(secrets.Source{
			Name:  "jina api key",
			Value: cfg.APIKey,
			File:  cfg.APIKeyFile,
			Env:   "JINA_API_KEY",
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set jina.api-key-file or JINA_API_KEY)", err)
		}

		return jina.New(jina.Config{
			APIKey:     apiKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Endpoint:   cfg.Endpoint,
			Timeout:    cfg.Timeout,
		})
	default:
		return nil, fmt.Errorf("embedding similarity needs an embedding provider, got %q", provider)
	}
}

func (b *builder) geminiGenerator(ctx context.Context) (*gemini.Generator, error) {
	if b.gemini != nil {
		return b.gemini, nil
	}

	cfg := b.config.Gemini
	if cfg == nil {
		cfg = &GeminiConfig{}
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.APIKey,
		File:  cfg.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set gemini.api-key-file or GEMINI_API_KEY)", err)
	}

	generator, err := gemini.NewGenerator(ctx, gemini.Config{
		APIKey:         apiKey,
		Model:          cfg.Model,
		EmbeddingModel: cfg.EmbeddingModel,
		MaxRetries:     cfg.MaxRetries,
	}, b.logger)
	if err != nil {
		return nil, err
	}

	b.gemini = generator
	return generator, nil
}

func (b *builder) loadLexicon() (*synonym.Lexicon, error) {
	if b.lexicon != nil {
		return b.lexicon, nil
	}

	if b.config.Synonyms == nil || strings.TrimSpace(b.config.Synonyms.Lexicon) == "" {
		return nil, errors.New("synonyms.lexicon is required for lexicon lookups")
	}

	lexicon, err := synonym.LoadLexicon(b.config.Synonyms.Lexicon)
	if err != nil {
		return nil, err
	}

	b.logger.Info("lexicon loaded", zap.Int("groups", lexicon.Groups()))
	b.lexicon = lexicon
	return lexicon, nil
}

// sink builds every configured output. The returned close func is safe to
// call more than once.
func (b *builder) sink(ctx context.Context) (output.Sink, func(), error) {
	cfg := b.config.Output
	if cfg == nil {
		cfg = &OutputConfig{Relation: output.DefaultRelation}
	}

	var (
		sinks   output.Multi
		closers []func() error
	)
	closeAll := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				b.logger.Warn("closing output", zap.Error(err))
			}
		}
		closers = nil
	}

	// Commit order: upload, then database, then the local file, whose
	// rename is the least likely to fail.
	if s3 := cfg.S3; s3 != nil && s3.Bucket != "" {
		uploader, err := output.NewS3(ctx, *s3, cfg.Relation)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, uploader)
	}

	if db := cfg.Database; db != nil && (db.DSN != "" || db.DSNFile != "") {
		dsn, err := secrets.Load(secrets.Source{
			Name:  "results database dsn",
			Value: db.DSN,
			File:  db.DSNFile,
		})
		if err != nil {
			return nil, closeAll, err
		}

		dbCfg := *db
		dbCfg.DSN = dsn
		database, err := output.OpenDatabase(dbCfg)
		if err != nil {
			return nil, closeAll, err
		}
		sinks = append(sinks, database)
		closers = append(closers, database.Close)
	}

	if cfg.ARFF != "" {
		sinks = append(sinks, output.ARFF{Path: cfg.ARFF, Relation: cfg.Relation})
	}

	if len(sinks) == 0 {
		return nil, closeAll, errors.New("no output configured (set output.arff, output.database or output.s3)")
	}

	return sinks, closeAll, nil
}

// redacted hides secrets before the config is logged.
func redacted(c Config) Config {
	if c.Gemini != nil && c.Gemini.APIKey != "" {
		g := *c.Gemini
		g.APIKey = "***"
		c.Gemini = &g
	}
	if c.Jina != nil && c.Jina.APIKey != "" {
		j := *c.Jina
		j.APIKey = "***"
		c.Jina = &j
	}
	if c.Source != nil && c.Source.SQL.DSN != "" {
		s := *c.Source
		s.SQL.DSN = "***"
		c.Source = &s
	}
	if c.Output != nil {
		o := *c.Output
		if o.Database != nil && o.Database.DSN != "" {
			d := *o.Database
			d.DSN = "***"
			o.Database = &d
		}
		if o.S3 != nil && o.S3.SecretKey != "" {
			s := *o.S3
			s.SecretKey = "***"
			o.S3 = &s
		}
		c.Output = &o
	}
	return c
}

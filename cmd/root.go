package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hh-traits/internal/headhunter"
	"github.com/spigell/hh-traits/internal/output"
	"github.com/spigell/hh-traits/internal/source"
)

const (
	app = "hh-traits"
)

type Config struct {
	Source     *SourceConfig     `mapstructure:"source"`
	Taxonomy   *TaxonomyConfig   `mapstructure:"taxonomy"`
	Synonyms   *SynonymsConfig   `mapstructure:"synonyms"`
	Similarity *SimilarityConfig `mapstructure:"similarity"`
	Gemini     *GeminiConfig     `mapstructure:"gemini"`
	Jina       *JinaConfig       `mapstructure:"jina"`
	Cleaner    *CleanerConfig    `mapstructure:"cleaner"`
	Pipeline   *PipelineConfig   `mapstructure:"pipeline"`
	Output     *OutputConfig     `mapstructure:"output"`
}

type SourceConfig struct {
	// Kind is sql or headhunter.
	Kind         string            `mapstructure:"kind"`
	MinLength    int               `mapstructure:"min-length"`
	ExcludeEmpty bool              `mapstructure:"exclude-empty"`
	ExcludeFile  string            `mapstructure:"exclude-file"`
	SQL          source.SQLConfig  `mapstructure:"sql"`
	HeadHunter   *HeadHunterConfig `mapstructure:"headhunter"`
}

type HeadHunterConfig struct {
	Search    *headhunter.SearchParams `mapstructure:"search"`
	Details   bool                     `mapstructure:"details"`
	UserAgent string                   `mapstructure:"user-agent"`
	TokenFile string                   `mapstructure:"token-file"`
}

type TaxonomyConfig struct {
	File   string   `mapstructure:"file"`
	Traits []string `mapstructure:"traits"`
}

type SynonymsConfig struct {
	// Providers are tried in order: lexicon, datamuse, gemini. Empty means
	// no synonym expansion.
	Providers   []string      `mapstructure:"providers"`
	Lexicon     string        `mapstructure:"lexicon"`
	Max         int           `mapstructure:"max"`
	Timeout     time.Duration `mapstructure:"timeout"`
	DatamuseURL string        `mapstructure:"datamuse-url"`
}

type SimilarityConfig struct {
	// Method is exact, lexical or embedding.
	Method        string        `mapstructure:"method"`
	LexicalWeight float64       `mapstructure:"lexical-weight"`
	Embeddings    string        `mapstructure:"embeddings"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Cache         bool          `mapstructure:"cache"`
}

type GeminiConfig struct {
	APIKey         string `mapstructure:"api-key"`
	APIKeyFile     string `mapstructure:"api-key-file"`
	Model          string `mapstructure:"model"`
	EmbeddingModel string `mapstructure:"embedding-model"`
	MaxRetries     int    `mapstructure:"max-retries"`
}

type JinaConfig struct {
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	Dimensions int           `mapstructure:"dimensions"`
	Endpoint   string        `mapstructure:"endpoint"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type CleanerConfig struct {
	Stopwords      []string `mapstructure:"stopwords"`
	MinTokenLength int      `mapstructure:"min-token-length"`
	Workers        int      `mapstructure:"workers"`
}

type PipelineConfig struct {
	ScoringWorkers int  `mapstructure:"scoring-workers"`
	DropEmpty      bool `mapstructure:"drop-empty"`
}

type OutputConfig struct {
	Relation string                 `mapstructure:"relation"`
	ARFF     string                 `mapstructure:"arff"`
	Database *output.DatabaseConfig `mapstructure:"database"`
	S3       *output.S3Config       `mapstructure:"s3"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-traits scores job advertisements against the Big Five personality traits",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("source.headhunter.token-file", "HH_TOKEN_FILE"); err != nil {
		log.Fatalf("binding HH_TOKEN_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-traits.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	setDefaults(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source.kind", "sql")
	v.SetDefault("source.min-length", source.DefaultMinLength)
	v.SetDefault("source.exclude-empty", source.DefaultExcludeEmpty)
	v.SetDefault("source.exclude-file", "")
	v.SetDefault("source.sql.driver", source.DriverSQLite)
	v.SetDefault("source.sql.dsn", "")

	v.SetDefault("taxonomy.file", "keywords.csv")

	v.SetDefault("synonyms.max", 10)
	v.SetDefault("synonyms.timeout", 10*time.Second)

	v.SetDefault("similarity.method", "exact")
	v.SetDefault("similarity.embeddings", "gemini")
	v.SetDefault("similarity.timeout", 30*time.Second)
	v.SetDefault("similarity.cache", true)

	v.SetDefault("gemini.api-key", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.embedding-model", "text-embedding-004")
	v.SetDefault("gemini.max-retries", 3)

	v.SetDefault("jina.api-key", "")

	v.SetDefault("cleaner.workers", 2)
	v.SetDefault("pipeline.scoring-workers", 1)

	v.SetDefault("output.relation", output.DefaultRelation)
	v.SetDefault("output.arff", "")
}

func initConfig() {
	// Config needed only for run command now. If there is no config, we can skip initialization
	if runCmd.CalledAs() == "" {
		return
	}

	// A missing .env is fine, a broken one is not.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env: %v", err)
	}

	viper.SetEnvPrefix("HH_TRAITS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		log.Fatal(err)
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}

package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Artifacts  ArtifactsConfig  `yaml:"artifacts" mapstructure:"artifacts"`
	Synth      SynthConfig      `yaml:"synth" mapstructure:"synth"`
	Features   FeaturesConfig   `yaml:"features" mapstructure:"features"`
	Recall     RecallConfig     `yaml:"recall" mapstructure:"recall"`
	Match      MatchConfig      `yaml:"match" mapstructure:"match"`
	Experiment ExperimentConfig `yaml:"experiment" mapstructure:"experiment"`
	Feedback   FeedbackConfig   `yaml:"feedback" mapstructure:"feedback"`
	Policy     PolicyConfig     `yaml:"policy" mapstructure:"policy"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// ArtifactsConfig configures where JSON artifacts are read and written.
type ArtifactsConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// SynthConfig configures entity generation and event simulation.
type SynthConfig struct {
	Categories          []string `yaml:"categories" mapstructure:"categories"`
	SameCategoryPeers   int      `yaml:"same_category_peers" mapstructure:"same_category_peers"`
	CoViewFanout        int      `yaml:"co_view_fanout" mapstructure:"co_view_fanout"`
	ComplementaryFanout int      `yaml:"complementary_fanout" mapstructure:"complementary_fanout"`
	EventsPerUser       int      `yaml:"events_per_user" mapstructure:"events_per_user"`
	HoldoutFraction     float64  `yaml:"holdout_fraction" mapstructure:"holdout_fraction"`
}

// FeaturesConfig configures the feature store aggregation.
type FeaturesConfig struct {
	DecayLambda float64 `yaml:"decay_lambda" mapstructure:"decay_lambda"`
}

// RecallConfig configures the candidate recall index.
type RecallConfig struct {
	HopLimit        int `yaml:"hop_limit" mapstructure:"hop_limit"`
	MaxNeighborhood int `yaml:"max_neighborhood" mapstructure:"max_neighborhood"`
}

// MatchConfig configures the baseline matching configuration.
type MatchConfig struct {
	AffinityWeight   float64 `yaml:"affinity_weight" mapstructure:"affinity_weight"`
	QualityWeight    float64 `yaml:"quality_weight" mapstructure:"quality_weight"`
	RateWeight       float64 `yaml:"rate_weight" mapstructure:"rate_weight"`
	OversampleFactor int     `yaml:"oversample_factor" mapstructure:"oversample_factor"`
}

// ExperimentConfig configures the offline A/B runner. The treatment weights
// define config B; config A comes from MatchConfig.
type ExperimentConfig struct {
	TopK                    int     `yaml:"top_k" mapstructure:"top_k"`
	Concurrency             int     `yaml:"concurrency" mapstructure:"concurrency"`
	TreatmentAffinityWeight float64 `yaml:"treatment_affinity_weight" mapstructure:"treatment_affinity_weight"`
	TreatmentQualityWeight  float64 `yaml:"treatment_quality_weight" mapstructure:"treatment_quality_weight"`
	TreatmentRateWeight     float64 `yaml:"treatment_rate_weight" mapstructure:"treatment_rate_weight"`
}

// FeedbackConfig configures the feedback aggregation fold.
type FeedbackConfig struct {
	QualityBoost   float64 `yaml:"quality_boost" mapstructure:"quality_boost"`
	QualityPenalty float64 `yaml:"quality_penalty" mapstructure:"quality_penalty"`
}

// PolicyConfig points at the optional YAML policy file.
type PolicyConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// LedgerConfig configures the run-history database.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MATCHING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("artifacts.dir", ".")
	v.SetDefault("synth.categories", []string{"electronics", "home", "food", "apparel", "services"})
	v.SetDefault("synth.same_category_peers", 2)
	v.SetDefault("synth.co_view_fanout", 2)
	v.SetDefault("synth.complementary_fanout", 1)
	v.SetDefault("synth.events_per_user", 40)
	v.SetDefault("synth.holdout_fraction", 0.2)
	v.SetDefault("features.decay_lambda", 0.01)
	v.SetDefault("recall.hop_limit", 2)
	v.SetDefault("recall.max_neighborhood", 64)
	v.SetDefault("match.affinity_weight", 1.0/3)
	v.SetDefault("match.quality_weight", 1.0/3)
	v.SetDefault("match.rate_weight", 1.0/3)
	v.SetDefault("match.oversample_factor", 3)
	v.SetDefault("experiment.top_k", 5)
	v.SetDefault("experiment.concurrency", 4)
	v.SetDefault("experiment.treatment_affinity_weight", 0.5)
	v.SetDefault("experiment.treatment_quality_weight", 0.3)
	v.SetDefault("experiment.treatment_rate_weight", 0.2)
	v.SetDefault("feedback.quality_boost", 0.02)
	v.SetDefault("feedback.quality_penalty", 0.01)
	v.SetDefault("ledger.path", "matching_runs.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

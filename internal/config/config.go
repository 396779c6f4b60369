// Package config loads revq settings from the config file, environment,
// and defaults, in that precedence order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/sprite-ai/revq/internal/logger"
	"github.com/sprite-ai/revq/internal/score"
)

// Config is the effective configuration after merging all sources.
type Config struct {
	Log logger.Config `mapstructure:"log"`

	Score struct {
		NewDefinition       float64  `mapstructure:"new_definition"`
		BranchDelta         float64  `mapstructure:"branch_delta"`
		Line                float64  `mapstructure:"line"`
		BoilerplateFactor   float64  `mapstructure:"boilerplate_factor"`
		BoilerplatePatterns []string `mapstructure:"boilerplate_patterns"`
	} `mapstructure:"score"`

	CoChange struct {
		Threshold         int `mapstructure:"threshold"`
		MaxCommits        int `mapstructure:"max_commits"`
		MaxFilesPerCommit int `mapstructure:"max_files_per_commit"`
	} `mapstructure:"cochange"`

	// Aliases expand a CLI shorthand into a full argument list, e.g.
	// "sv" -> "review --mode skim vendor".
	Aliases map[string]string `mapstructure:"aliases"`

	Actions struct {
		// OnReview runs after each review action; {file} expands to the
		// affected file path.
		OnReview string `mapstructure:"on_review"`
	} `mapstructure:"actions"`

	Jira struct {
		BaseURL string `mapstructure:"base_url"`
	} `mapstructure:"jira"`
}

// Weights converts the score section into scorer weights.
func (c *Config) Weights() score.Weights {
	return score.Weights{
		NewDefinition:     c.Score.NewDefinition,
		BranchDelta:       c.Score.BranchDelta,
		Line:              c.Score.Line,
		BoilerplateFactor: c.Score.BoilerplateFactor,
	}
}

// configDirFunc returns the config directory path, replaceable in tests.
var configDirFunc = defaultConfigDir

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "revq"), nil
}

// Init points viper at the config file (explicit path or
// ~/.config/revq/config.yaml), binds the REVQ_ environment prefix, and
// registers defaults. A missing config file is not an error.
func Init(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := configDirFunc()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("REVQ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

// SetDefaults registers every known key's default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.output", "stderr")

	w := score.DefaultWeights()
	v.SetDefault("score.new_definition", w.NewDefinition)
	v.SetDefault("score.branch_delta", w.BranchDelta)
	v.SetDefault("score.line", w.Line)
	v.SetDefault("score.boilerplate_factor", w.BoilerplateFactor)
	v.SetDefault("score.boilerplate_patterns", []string{})

	v.SetDefault("cochange.threshold", 3)
	v.SetDefault("cochange.max_commits", 500)
	v.SetDefault("cochange.max_files_per_commit", 50)

	v.SetDefault("aliases", map[string]string{})
	v.SetDefault("actions.on_review", "")
	v.SetDefault("jira.base_url", "")
}

// Load unmarshals the merged configuration.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ExpandAlias rewrites args when args[0] names an alias. Expansion is a
// single level; an alias cannot reference another alias.
func (c *Config) ExpandAlias(args []string) []string {
	if len(args) == 0 {
		return args
	}
	expansion, ok := c.Aliases[args[0]]
	if !ok || expansion == "" {
		return args
	}
	expanded := strings.Fields(expansion)
	return append(expanded, args[1:]...)
}

// OnReviewCommand renders the actions.on_review hook for a file, or ""
// when no hook is configured.
func (c *Config) OnReviewCommand(file string) string {
	if c.Actions.OnReview == "" {
		return ""
	}
	return strings.ReplaceAll(c.Actions.OnReview, "{file}", file)
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/Cloudsky01/relstage/internal/apperr"
	"github.com/Cloudsky01/relstage/internal/git"
	"github.com/Cloudsky01/relstage/internal/logging"
	"github.com/Cloudsky01/relstage/internal/objectstore"
	"github.com/Cloudsky01/relstage/internal/paths"
	"github.com/Cloudsky01/relstage/pkg/models"
)

const EnvPrefix = "RELSTAGE"

// Head sources
const (
	HeadSourceGit     = "git"
	HeadSourceGraphQL = "graphql"
)

// Defaults
const (
	DefaultBranch     = "main"
	DefaultWorkflow   = "runtime_build_and_test.yml"
	DefaultArtifact   = "artifacts_combined"
	DefaultChannel    = string(models.ChannelStable)
	DefaultWorkDir    = "."
	DefaultAPIURL     = "https://api.github.com/"
	DefaultInterval   = 30 * time.Second
	DefaultMaxRetries = 20
)

type Config struct {
	Repository string        `yaml:"repository" mapstructure:"repository"`
	Branch     string        `yaml:"branch" mapstructure:"branch"`
	Workflow   string        `yaml:"workflow" mapstructure:"workflow"`
	Artifact   string        `yaml:"artifact" mapstructure:"artifact"`
	Channel    string        `yaml:"channel" mapstructure:"channel"`
	WorkDir    string        `yaml:"work_dir" mapstructure:"work_dir"`
	HeadSource string        `yaml:"head_source" mapstructure:"head_source"`
	APIURL     string        `yaml:"api_url,omitempty" mapstructure:"api_url"`
	RemoteURL  string        `yaml:"remote_url,omitempty" mapstructure:"remote_url"`
	Poll       PollConfig    `yaml:"poll" mapstructure:"poll"`
	Publish    PublishConfig `yaml:"publish" mapstructure:"publish"`

	// Token is only read from the environment
	Token string `yaml:"-" mapstructure:"token"`
}

type PollConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
}

type PublishConfig struct {
	Git         GitPublishConfig   `yaml:"git" mapstructure:"git"`
	ObjectStore objectstore.Config `yaml:"object_store,omitempty" mapstructure:"object_store"`
}

type GitPublishConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Remote  string `yaml:"remote,omitempty" mapstructure:"remote"`
	// Branch of the work directory's repository that receives the push
	Branch  string `yaml:"branch,omitempty" mapstructure:"branch"`
	Message string `yaml:"message,omitempty" mapstructure:"message"`
	// Exclude lists extra file names never committed, next to .env and
	// relstage.env
	Exclude []string `yaml:"exclude,omitempty" mapstructure:"exclude"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Branch:     DefaultBranch,
		Workflow:   DefaultWorkflow,
		Artifact:   DefaultArtifact,
		Channel:    DefaultChannel,
		WorkDir:    DefaultWorkDir,
		HeadSource: HeadSourceGit,
		APIURL:     DefaultAPIURL,
		Poll: PollConfig{
			Interval:   DefaultInterval,
			MaxRetries: DefaultMaxRetries,
		},
		Publish: PublishConfig{
			Git: GitPublishConfig{
				Enabled: true,
				Remote:  git.DefaultRemote,
				Branch:  DefaultBranch,
				Message: git.DefaultMessage,
			},
			ObjectStore: objectstore.Config{
				Region: objectstore.DefaultRegion,
				UseSSL: true,
				Prefix: objectstore.DefaultPrefix,
			},
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("repository", "")
	v.SetDefault("branch", d.Branch)
	v.SetDefault("workflow", d.Workflow)
	v.SetDefault("artifact", d.Artifact)
	v.SetDefault("channel", d.Channel)
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("head_source", d.HeadSource)
	v.SetDefault("api_url", d.APIURL)
	v.SetDefault("remote_url", "")
	v.SetDefault("poll.interval", d.Poll.Interval)
	v.SetDefault("poll.max_retries", d.Poll.MaxRetries)
	v.SetDefault("publish.git.enabled", d.Publish.Git.Enabled)
	v.SetDefault("publish.git.remote", d.Publish.Git.Remote)
	v.SetDefault("publish.git.branch", d.Publish.Git.Branch)
	v.SetDefault("publish.git.message", d.Publish.Git.Message)
	v.SetDefault("publish.object_store.endpoint", "")
	v.SetDefault("publish.object_store.access_key", "")
	v.SetDefault("publish.object_store.secret_key", "")
	v.SetDefault("publish.object_store.region", d.Publish.ObjectStore.Region)
	v.SetDefault("publish.object_store.use_ssl", d.Publish.ObjectStore.UseSSL)
	v.SetDefault("publish.object_store.bucket", "")
	v.SetDefault("publish.object_store.prefix", d.Publish.ObjectStore.Prefix)
}

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"repo":          "repository",
	"branch":        "branch",
	"workflow":      "workflow",
	"artifact":      "artifact",
	"channel":       "channel",
	"work-dir":      "work_dir",
	"head-source":   "head_source",
	"api-url":       "api_url",
	"poll-interval": "poll.interval",
	"max-retries":   "poll.max_retries",
}

// Options controls where Load looks for configuration
type Options struct {
	// Path is an explicit config file; it must exist
	Path  string
	Paths *paths.Paths
	Flags *pflag.FlagSet
}

// Load reads configuration from, in increasing precedence: defaults, the
// config file, RELSTAGE_* environment variables and changed CLI flags.
func Load(opts Options) (*Config, *viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if opts.Paths != nil {
		if files := opts.Paths.EnvFiles(); len(files) > 0 {
			if err := godotenv.Load(files...); err != nil {
				return nil, nil, apperr.Configuration("failed to load env file: %v", err)
			}
		}
	}

	path := opts.Path
	if path == "" && opts.Paths != nil {
		if found := opts.Paths.GetConfigPaths(); len(found) > 0 {
			path = found[len(found)-1]
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := v.BindEnv("token", EnvPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN", "GH_TOKEN"); err != nil {
		return nil, nil, apperr.Configuration("failed to bind token: %v", err)
	}

	if opts.Flags != nil {
		if err := bindFlags(v, opts.Flags); err != nil {
			return nil, nil, err
		}
	}

	if path != "" {
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, apperr.Configuration("failed to read config file: %v", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, nil, err
	}
	return cfg, v, nil
}

func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return apperr.Configuration("failed to bind flag --%s: %v", name, err)
		}
	}
	return nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperr.Configuration("failed to parse config: %v", err)
	}
	cfg.Channel = strings.ToLower(strings.TrimSpace(cfg.Channel))
	cfg.HeadSource = strings.ToLower(strings.TrimSpace(cfg.HeadSource))
	return &cfg, nil
}

// WatchConfig re-decodes the file on every change and hands valid
// configurations to onConfigChange. Invalid edits are logged and dropped.
func WatchConfig(v *viper.Viper, logger *slog.Logger, onConfigChange func(*Config)) {
	logger = logging.Ensure(logger).With("component", "config")
	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err == nil {
			err = cfg.Validate()
		}
		if err != nil {
			logger.Error("ignoring config change", "file", e.Name, "error", err)
			return
		}
		logger.Info("config reloaded", "file", e.Name)
		onConfigChange(cfg)
	})
	v.WatchConfig()
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := `# relstage configuration
#
# - repository:  GitHub repository in owner/repo format
# - branch:      branch whose head commit gets staged
# - workflow:    workflow file that produces the build artifact
# - artifact:    name of the combined build artifact
# - channel:     stable | experimental | rc | latest
# - work_dir:    git checkout that receives <commit>/ directories
# - head_source: git (ls-remote) or graphql
# - poll:        interval and max_retries while waiting for the run
# - publish:     git commit+push and an optional object store mirror
#
# The GitHub token is read from GITHUB_TOKEN or RELSTAGE_GITHUB_TOKEN.
# Run 'relstage --help' for more information

`
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(header+string(data)), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Config) Validate() error {
	if c.Repository == "" {
		return apperr.Configuration("configuration must specify a repository (owner/repo)")
	}
	if err := git.ValidateRepositoryFormat(c.Repository); err != nil {
		return err
	}
	if err := git.ValidateBranchName(c.Branch); err != nil {
		return err
	}
	if strings.TrimSpace(c.Workflow) == "" {
		return apperr.Configuration("configuration must specify a workflow")
	}
	if strings.TrimSpace(c.Artifact) == "" {
		return apperr.Configuration("configuration must specify an artifact name")
	}
	if _, err := models.ParseChannel(c.Channel); err != nil {
		return err
	}
	if strings.TrimSpace(c.WorkDir) == "" {
		return apperr.Configuration("configuration must specify a work_dir")
	}
	switch c.HeadSource {
	case HeadSourceGit, HeadSourceGraphQL:
	default:
		return apperr.Configuration("unknown head_source %q (expected %s or %s)", c.HeadSource, HeadSourceGit, HeadSourceGraphQL)
	}
	if c.Publish.Git.Enabled {
		if err := git.ValidateBranchName(c.Publish.Git.Branch); err != nil {
			return err
		}
	}
	if c.Poll.Interval <= 0 {
		return apperr.Configuration("poll.interval must be positive, got %s", c.Poll.Interval)
	}
	if c.Poll.MaxRetries <= 0 {
		return apperr.Configuration("poll.max_retries must be positive, got %d", c.Poll.MaxRetries)
	}
	if c.Publish.ObjectStore.Enabled() {
		if err := c.Publish.ObjectStore.Validate(); err != nil {
			return apperr.Configuration("publish.object_store: %v", err)
		}
	}
	return nil
}

// RequireToken fails when no GitHub token was provided
func (c *Config) RequireToken() error {
	if strings.TrimSpace(c.Token) == "" {
		return apperr.Configuration("no GitHub token: set GITHUB_TOKEN or %s_GITHUB_TOKEN", EnvPrefix)
	}
	return nil
}

// ChannelValue returns the parsed release channel
func (c *Config) ChannelValue() (models.Channel, error) {
	return models.ParseChannel(c.Channel)
}

// CloneURL is where ls-remote looks for branch heads
func (c *Config) CloneURL() string {
	if c.RemoteURL != "" {
		return c.RemoteURL
	}
	return git.RepositoryURL(c.Repository)
}

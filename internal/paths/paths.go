package paths

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Cloudsky01/relstage/internal/logging"
)

const (
	// AppName is the application name used in config paths
	AppName = "relstage"

	// ConfigFileName is the name of the user config file
	ConfigFileName = "config.yaml"

	// ProjectConfigFileName is looked up in the working directory
	ProjectConfigFileName = ".relstage.yaml"

	// StateFileName is the suffix of per-repository state files
	StateFileName = "state.yaml"

	// EnvFileName is loaded next to .env when present
	EnvFileName = "relstage.env"
)

// ConfigSource indicates where a config file came from
type ConfigSource int

const (
	SourceUnknown ConfigSource = iota
	SourceUserConfig
	SourceProjectConfig
	SourceEnvVar
	SourceCLIFlag
)

func (s ConfigSource) String() string {
	switch s {
	case SourceUserConfig:
		return "user config"
	case SourceProjectConfig:
		return "project config"
	case SourceEnvVar:
		return "environment variable"
	case SourceCLIFlag:
		return "CLI flag"
	default:
		return "unknown"
	}
}

// Paths provides access to application paths following the XDG Base
// Directory layout.
type Paths struct {
	// UserConfigDir is ~/.config/relstage
	UserConfigDir string

	// UserStateDir is ~/.local/state/relstage
	UserStateDir string

	// UserCacheDir is ~/.cache/relstage
	UserCacheDir string

	// ProjectDir holds .relstage.yaml, usually the working directory
	ProjectDir string

	Logger *slog.Logger

	usingFallbacks map[string]bool
}

// New creates a Paths instance with XDG-compliant directories
func New() (*Paths, error) {
	p := &Paths{
		usingFallbacks: make(map[string]bool),
	}

	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user config directory: %w", err)
	}
	p.UserConfigDir = filepath.Join(configDir, AppName)

	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		stateDir = filepath.Join(homeDir, ".local", "state")
	}
	p.UserStateDir = filepath.Join(stateDir, AppName)

	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user cache directory: %w", err)
	}
	p.UserCacheDir = filepath.Join(cacheDir, AppName)

	return p, nil
}

// NewWithProject also sets the project directory searched for .relstage.yaml
func NewWithProject(projectDir string) (*Paths, error) {
	p, err := New()
	if err != nil {
		return nil, err
	}
	p.ProjectDir = projectDir
	return p, nil
}

// UserConfigFile returns the path to the user's main config file
func (p *Paths) UserConfigFile() string {
	return filepath.Join(p.UserConfigDir, ConfigFileName)
}

// ProjectConfigFile returns the project config path, or "" without a project
func (p *Paths) ProjectConfigFile() string {
	if p.ProjectDir == "" {
		return ""
	}
	return filepath.Join(p.ProjectDir, ProjectConfigFileName)
}

// UserStateFile returns the path to the state file for a repository
func (p *Paths) UserStateFile(repoOwner, repoName string) string {
	if repoOwner == "" || repoName == "" {
		return filepath.Join(p.UserStateDir, StateFileName)
	}
	filename := fmt.Sprintf("%s_%s.%s", sanitizeForFilename(repoOwner), sanitizeForFilename(repoName), StateFileName)
	return filepath.Join(p.UserStateDir, filename)
}

// StateFileFor splits owner/repo and returns its state file
func (p *Paths) StateFileFor(repository string) (string, error) {
	owner, name, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid repository format, expected owner/repo: %s", repository)
	}
	return p.UserStateFile(owner, name), nil
}

// EnvFiles lists dotenv files to load, most specific first
func (p *Paths) EnvFiles() []string {
	var files []string
	if p.ProjectDir != "" {
		files = append(files, filepath.Join(p.ProjectDir, ".env"), filepath.Join(p.ProjectDir, EnvFileName))
	}
	files = append(files, filepath.Join(p.UserConfigDir, EnvFileName))

	var existing []string
	for _, f := range files {
		if _, err := os.Stat(f); err == nil {
			existing = append(existing, f)
		}
	}
	return existing
}

type dirSpec struct {
	path     *string
	pathName string
	critical bool
	purpose  string
}

// EnsureDirs creates the user directories with permission 0700. A
// non-critical directory that cannot be created is replaced by a fallback
// under the temp directory and a warning is logged.
func (p *Paths) EnsureDirs() error {
	specs := []dirSpec{
		{&p.UserConfigDir, "config", true, "configuration"},
		{&p.UserStateDir, "state", false, "state storage"},
		{&p.UserCacheDir, "cache", false, "cache"},
	}

	for _, spec := range specs {
		if err := p.ensureDir(spec); err != nil {
			if spec.critical {
				return err
			}
			logging.Ensure(p.Logger).Warn("directory unavailable", "purpose", spec.purpose, "error", err)
		}
	}
	return nil
}

// UsingFallback reports whether the named directory moved to a temp location
func (p *Paths) UsingFallback(name string) bool {
	return p.usingFallbacks[name]
}

func (p *Paths) ensureDir(spec dirSpec) error {
	originalPath := *spec.path

	if err := os.MkdirAll(originalPath, 0o700); err != nil {
		if os.IsPermission(err) {
			if !spec.critical {
				if fallbackErr := p.tryFallbackDir(spec, originalPath); fallbackErr == nil {
					return nil
				}
			}
			return p.formatPermissionError(originalPath, spec.purpose, err)
		}
		return fmt.Errorf("failed to create %s directory %s: %w", spec.purpose, originalPath, err)
	}
	return nil
}

func (p *Paths) tryFallbackDir(spec dirSpec, originalPath string) error {
	fallbackPath := filepath.Join(os.TempDir(), fmt.Sprintf("%s-%s", AppName, spec.pathName))
	if err := os.MkdirAll(fallbackPath, 0o700); err != nil {
		return fmt.Errorf("fallback directory creation failed: %w", err)
	}

	*spec.path = fallbackPath
	if p.usingFallbacks == nil {
		p.usingFallbacks = make(map[string]bool)
	}
	p.usingFallbacks[spec.pathName] = true

	logging.Ensure(p.Logger).Warn("using fallback directory",
		"purpose", spec.purpose, "path", fallbackPath, "denied", originalPath)
	return nil
}

func (p *Paths) formatPermissionError(path, purpose string, originalErr error) error {
	parent := filepath.Dir(path)
	return fmt.Errorf(
		"permission denied: cannot create %s directory %s\n\n"+
			"Possible solutions:\n"+
			"  1. Fix permissions: sudo chown -R $USER %s\n"+
			"  2. Set custom location: export XDG_CONFIG_HOME=/tmp/%s-config\n\n"+
			"Original error: %v",
		purpose, path, parent, AppName, originalErr)
}

// GetConfigPaths returns existing config files, lowest precedence first
func (p *Paths) GetConfigPaths() []string {
	var found []string
	for _, path := range []string{p.UserConfigFile(), p.ProjectConfigFile()} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			found = append(found, path)
		}
	}
	return found
}

// GetConfigSource determines which source a config path corresponds to
func (p *Paths) GetConfigSource(path string) ConfigSource {
	switch path {
	case p.UserConfigFile():
		return SourceUserConfig
	case p.ProjectConfigFile():
		if path != "" {
			return SourceProjectConfig
		}
	}
	return SourceUnknown
}

var filenameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

func sanitizeForFilename(s string) string {
	return filenameReplacer.Replace(s)
}

package paths

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if p.UserConfigDir == "" {
		t.Error("UserConfigDir should not be empty")
	}

	if p.UserStateDir == "" {
		t.Error("UserStateDir should not be empty")
	}

	if p.UserCacheDir == "" {
		t.Error("UserCacheDir should not be empty")
	}

	// Check that paths contain the app name
	if !strings.Contains(p.UserConfigDir, AppName) {
		t.Errorf("UserConfigDir should contain '%s', got: %s", AppName, p.UserConfigDir)
	}

	if !strings.Contains(p.UserStateDir, AppName) {
		t.Errorf("UserStateDir should contain '%s', got: %s", AppName, p.UserStateDir)
	}

	if !strings.Contains(p.UserCacheDir, AppName) {
		t.Errorf("UserCacheDir should contain '%s', got: %s", AppName, p.UserCacheDir)
	}
}

func TestNewWithProject(t *testing.T) {
	projectDir := "/path/to/project"
	p, err := NewWithProject(projectDir)
	if err != nil {
		t.Fatalf("NewWithProject() failed: %v", err)
	}

	if p.ProjectDir != projectDir {
		t.Errorf("ProjectDir = %s, want %s", p.ProjectDir, projectDir)
	}
	want := filepath.Join(projectDir, ProjectConfigFileName)
	if got := p.ProjectConfigFile(); got != want {
		t.Errorf("ProjectConfigFile() = %s, want %s", got, want)
	}
}

func TestUserConfigFile(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	configFile := p.UserConfigFile()
	if !strings.HasSuffix(configFile, ConfigFileName) {
		t.Errorf("UserConfigFile should end with '%s', got: %s", ConfigFileName, configFile)
	}
}

func TestUserStateFile(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	tests := []struct {
		name      string
		owner     string
		repo      string
		wantMatch string
	}{
		{
			name:      "with owner and repo",
			owner:     "octocat",
			repo:      "hello-world",
			wantMatch: "octocat_hello-world.state.yaml",
		},
		{
			name:      "empty owner and repo",
			owner:     "",
			repo:      "",
			wantMatch: StateFileName,
		},
		{
			name:      "owner with special chars",
			owner:     "owner/with/slashes",
			repo:      "repo:name",
			wantMatch: "owner_with_slashes_repo_name.state.yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stateFile := p.UserStateFile(tt.owner, tt.repo)
			if !strings.HasSuffix(stateFile, tt.wantMatch) {
				t.Errorf("UserStateFile() should end with '%s', got: %s", tt.wantMatch, stateFile)
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	tmpDir := t.TempDir()

	p := &Paths{
		UserConfigDir: filepath.Join(tmpDir, "config", AppName),
		UserStateDir:  filepath.Join(tmpDir, "state", AppName),
		UserCacheDir:  filepath.Join(tmpDir, "cache", AppName),
	}

	if err := p.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs() failed: %v", err)
	}

	for _, dir := range []string{p.UserConfigDir, p.UserStateDir, p.UserCacheDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("Directory %s was not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}
	if p.UsingFallback("state") {
		t.Error("state dir should not fall back when writable")
	}
}

func TestStateFileFor(t *testing.T) {
	p := &Paths{UserStateDir: "/state"}

	got, err := p.StateFileFor("facebook/react")
	if err != nil {
		t.Fatalf("StateFileFor() error = %v", err)
	}
	if want := filepath.Join("/state", "facebook_react.state.yaml"); got != want {
		t.Errorf("StateFileFor() = %s, want %s", got, want)
	}

	for _, bad := range []string{"facebook", "/react", "a/b/c", ""} {
		if _, err := p.StateFileFor(bad); err == nil {
			t.Errorf("StateFileFor(%q) should fail", bad)
		}
	}
}

func TestEnvFiles(t *testing.T) {
	tmpDir := t.TempDir()
	project := filepath.Join(tmpDir, "project")
	config := filepath.Join(tmpDir, "config")
	os.MkdirAll(project, 0o755)
	os.MkdirAll(config, 0o755)
	os.WriteFile(filepath.Join(project, ".env"), []byte("GITHUB_TOKEN=x\n"), 0o600)
	os.WriteFile(filepath.Join(config, EnvFileName), []byte("GITHUB_TOKEN=y\n"), 0o600)

	p := &Paths{UserConfigDir: config, ProjectDir: project}
	got := p.EnvFiles()
	want := []string{filepath.Join(project, ".env"), filepath.Join(config, EnvFileName)}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("EnvFiles() = %v, want %v", got, want)
	}
}

func TestGetConfigPaths(t *testing.T) {
	tmpDir := t.TempDir()
	userConfigDir := filepath.Join(tmpDir, "config")
	projectDir := filepath.Join(tmpDir, "project")
	for _, dir := range []string{userConfigDir, projectDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}

	p := &Paths{UserConfigDir: userConfigDir, ProjectDir: projectDir}
	if got := p.GetConfigPaths(); len(got) != 0 {
		t.Fatalf("GetConfigPaths() = %v, want none", got)
	}

	userConfig := filepath.Join(userConfigDir, ConfigFileName)
	projectConfig := filepath.Join(projectDir, ProjectConfigFileName)
	for _, path := range []string{userConfig, projectConfig} {
		if err := os.WriteFile(path, []byte("branch: main\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	got := p.GetConfigPaths()
	want := []string{userConfig, projectConfig}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("GetConfigPaths() = %v, want %v", got, want)
	}
}

func TestGetConfigSource(t *testing.T) {
	p := &Paths{
		UserConfigDir: "/home/user/.config/relstage",
		ProjectDir:    "/project",
	}

	tests := []struct {
		name string
		path string
		want ConfigSource
	}{
		{"user config", "/home/user/.config/relstage/config.yaml", SourceUserConfig},
		{"project config", "/project/.relstage.yaml", SourceProjectConfig},
		{"unknown", "/some/random/path", SourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.GetConfigSource(tt.path); got != tt.want {
				t.Errorf("GetConfigSource(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}

	if got := (&Paths{UserConfigDir: "/c"}).GetConfigSource(""); got != SourceUnknown {
		t.Errorf("empty path without project = %v, want unknown", got)
	}
}

func TestConfigSourceString(t *testing.T) {
	tests := []struct {
		source ConfigSource
		want   string
	}{
		{SourceUserConfig, "user config"},
		{SourceProjectConfig, "project config"},
		{SourceEnvVar, "environment variable"},
		{SourceCLIFlag, "CLI flag"},
		{SourceUnknown, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := tt.source.String()
			if got != tt.want {
				t.Errorf("ConfigSource.String() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestSanitizeForFilename(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"simple", "simple"},
		{"with/slash", "with_slash"},
		{"with\\backslash", "with_backslash"},
		{"with:colon", "with_colon"},
		{"with*asterisk", "with_asterisk"},
		{"with?question", "with_question"},
		{"with\"quote", "with_quote"},
		{"with<less", "with_less"},
		{"with>greater", "with_greater"},
		{"with|pipe", "with_pipe"},
		{"owner/repo:name", "owner_repo_name"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeForFilename(tt.input)
			if got != tt.want {
				t.Errorf("sanitizeForFilename(%s) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestXDGCompliance(t *testing.T) {
	// User directories follow the XDG Base Directory layout
	p, err := New()
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	// On Unix-like systems, check for proper XDG paths
	if runtime.GOOS != "windows" {
		// UserConfigDir should use XDG_CONFIG_HOME or ~/.config
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			homeDir, _ := os.UserHomeDir()
			configHome = filepath.Join(homeDir, ".config")
		}
		expectedConfigDir := filepath.Join(configHome, AppName)

		if p.UserConfigDir != expectedConfigDir {
			t.Logf("Note: UserConfigDir = %s, XDG standard suggests: %s", p.UserConfigDir, expectedConfigDir)
			t.Logf("This may be acceptable depending on os.UserConfigDir() implementation")
		}

		// UserStateDir should use XDG_STATE_HOME or ~/.local/state
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			homeDir, _ := os.UserHomeDir()
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		expectedStateDir := filepath.Join(stateHome, AppName)

		if p.UserStateDir != expectedStateDir {
			t.Errorf("UserStateDir = %s, want %s", p.UserStateDir, expectedStateDir)
		}
	}
}

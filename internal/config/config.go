package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/oshokin/batect-launcher/internal/checksum"
	"github.com/oshokin/batect-launcher/internal/domain/bootstrap"
	"github.com/oshokin/batect-launcher/internal/version"
)

// Environment variables consumed by the launcher.
const (
	EnvCacheDir         = "BATECT_CACHE_DIR"
	EnvDownloadURL      = "BATECT_DOWNLOAD_URL"
	EnvDownloadChecksum = "BATECT_DOWNLOAD_CHECKSUM"
	EnvQuietDownload    = "BATECT_QUIET_DOWNLOAD"
	EnvVersion          = "BATECT_VERSION"
	EnvVerifyCache      = "BATECT_VERIFY_CACHE"
	EnvDownloadTool     = "BATECT_DOWNLOAD_TOOL"
	EnvDownloadTimeout  = "BATECT_DOWNLOAD_TIMEOUT"
	EnvLogLevel         = "BATECT_LAUNCHER_LOG_LEVEL"
	EnvForceSpawn       = "BATECT_LAUNCHER_SPAWN"
	EnvJavaHome         = bootstrap.OverrideVariable
	EnvJavaToolOptions  = "JAVA_TOOL_OPTIONS"
	EnvPath             = "PATH"
	EnvPathExt          = "PATHEXT"
)

// Supported download transports.
const (
	// DownloadToolNative downloads with the built-in HTTP client.
	DownloadToolNative = "native"
	// DownloadToolCurl downloads with an external curl executable.
	DownloadToolCurl = "curl"
)

const (
	// DefaultDownloadTimeout bounds connecting and waiting for response headers.
	DefaultDownloadTimeout = 30 * time.Second

	// DefaultLogLevel keeps a successful launch silent.
	DefaultLogLevel = "warn"

	// defaultCacheSubdirectory is appended to the home directory when no cache dir is configured.
	defaultCacheSubdirectory = ".batect/cache"

	// versionPlaceholder is replaced with the version in the download URL template.
	versionPlaceholder = "{version}"
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errVersionRequired is returned when no release is pinned.
	errVersionRequired = errors.New("no Batect version configured")
	// errInvalidVersion is returned when the version cannot be used as a directory name.
	errInvalidVersion = errors.New("invalid Batect version")
	// errUnknownDownloadTool is returned for unsupported transports.
	errUnknownDownloadTool = errors.New("unknown download tool")
	// errNoHomeDirectory is returned when no default cache location can be derived.
	errNoHomeDirectory = errors.New("cannot determine the home directory")
)

// Config holds the settings of one launcher invocation. It is immutable once Load returns.
type Config struct {
	// Version is the release to launch.
	Version bootstrap.VersionID
	// CacheDir is the absolute cache root.
	CacheDir string
	// DownloadURL is where the artifact is fetched from on a cache miss.
	DownloadURL string
	// Checksum is the expected artifact digest; empty disables verification.
	Checksum string
	// QuietDownload suppresses download progress output.
	QuietDownload bool
	// VerifyCache re-verifies cached artifacts on every launch.
	VerifyCache bool
	// DownloadTool selects the transport (native or curl).
	DownloadTool string
	// DownloadTimeout bounds connecting and waiting for response headers.
	DownloadTimeout time.Duration
	// LogLevel is the launcher's own log level name.
	LogLevel string
	// ForceSpawn runs the application as a child process even where exec is available.
	ForceSpawn bool
	// JavaHome is the runtime override; empty when unset.
	JavaHome string
	// JavaToolOptions is passed through to the application when HasJavaToolOptions is set.
	JavaToolOptions string
	// HasJavaToolOptions reports whether JAVA_TOOL_OPTIONS is present in the environment.
	HasJavaToolOptions bool
	// SearchPath is the PATH used for runtime and tool discovery.
	SearchPath string
	// PathExt lists executable extensions on Windows.
	PathExt string
	// Environ is the parent environment the application environment is derived from.
	Environ []string
}

// Load resolves the configuration from an environment in os.Environ form.
func Load(environ []string) (*Config, error) {
	env := newEnvironment(environ)

	cfg := &Config{
		Version:         bootstrap.VersionID(strings.TrimSpace(env.get(EnvVersion))),
		CacheDir:        strings.TrimSpace(env.get(EnvCacheDir)),
		DownloadURL:     strings.TrimSpace(env.get(EnvDownloadURL)),
		QuietDownload:   parseBool(env.get(EnvQuietDownload)),
		VerifyCache:     parseBool(env.get(EnvVerifyCache)),
		DownloadTool:    strings.ToLower(strings.TrimSpace(env.get(EnvDownloadTool))),
		LogLevel:        strings.TrimSpace(env.get(EnvLogLevel)),
		ForceSpawn:      parseBool(env.get(EnvForceSpawn)),
		JavaHome:        env.get(EnvJavaHome),
		SearchPath:      env.get(EnvPath),
		PathExt:         env.get(EnvPathExt),
		Environ:         append([]string(nil), environ...),
	}

	if checksumValue, ok := env.lookup(EnvDownloadChecksum); ok {
		cfg.Checksum = strings.TrimSpace(checksumValue)
	} else {
		cfg.Checksum = version.ArtifactChecksum
	}

	cfg.JavaToolOptions, cfg.HasJavaToolOptions = env.lookup(EnvJavaToolOptions)

	if raw := strings.TrimSpace(env.get(EnvDownloadTimeout)); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", EnvDownloadTimeout, err)
		}

		cfg.DownloadTimeout = timeout
	}

	if cfg.CacheDir == "" {
		home := env.get("HOME")
		if runtime.GOOS == "windows" {
			home = env.get("USERPROFILE")
		}

		if home == "" {
			home, _ = os.UserHomeDir()
		}

		if home == "" {
			return nil, errNoHomeDirectory
		}

		cfg.CacheDir = filepath.Join(home, filepath.FromSlash(defaultCacheSubdirectory))
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings and applies defaults for absent values.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.Version == "" {
		cfg.Version = bootstrap.VersionID(version.ArtifactVersion)
	}

	if err := ValidateVersion(cfg.Version); err != nil {
		return err
	}

	if cfg.DownloadURL == "" {
		cfg.DownloadURL = DownloadURLFor(cfg.Version)
	}

	if _, err := url.ParseRequestURI(cfg.DownloadURL); err != nil {
		return fmt.Errorf("invalid download URL: %w", err)
	}

	if cfg.Checksum != "" {
		if _, err := checksum.Parse(cfg.Checksum); err != nil {
			return fmt.Errorf("invalid %s: %w", EnvDownloadChecksum, err)
		}
	}

	switch cfg.DownloadTool {
	case "":
		cfg.DownloadTool = DownloadToolNative
	case DownloadToolNative, DownloadToolCurl:
	default:
		return fmt.Errorf("%w: %q", errUnknownDownloadTool, cfg.DownloadTool)
	}

	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = DefaultLogLevel
	}

	if cfg.CacheDir != "" {
		absolute, err := filepath.Abs(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("resolve cache directory: %w", err)
		}

		cfg.CacheDir = absolute
	}

	return nil
}

// ValidateVersion rejects versions that cannot safely name a cache directory.
func ValidateVersion(v bootstrap.VersionID) error {
	value := v.String()

	switch {
	case value == "":
		return errVersionRequired
	case value == "." || value == "..",
		strings.ContainsAny(value, `/\:`),
		strings.TrimSpace(value) != value:
		return fmt.Errorf("%w: %q", errInvalidVersion, value)
	default:
		return nil
	}
}

// DownloadURLFor renders the default download URL for a version.
func DownloadURLFor(v bootstrap.VersionID) string {
	return strings.ReplaceAll(version.DownloadURLTemplate, versionPlaceholder, v.String())
}

// parseBool reads a boolean flag; anything unparseable counts as false.
func parseBool(value string) bool {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))

	return err == nil && parsed
}

// environment is a lookup table over an os.Environ style slice.
// Names are case-insensitive on Windows, like the OS treats them.
type environment map[string]string

// newEnvironment indexes environ; later duplicates win, as in exec.Cmd.
func newEnvironment(environ []string) environment {
	env := make(environment, len(environ))

	for _, entry := range environ {
		name, value, found := strings.Cut(entry, "=")
		if !found || name == "" {
			continue
		}

		env[NormalizeVariableName(name)] = value
	}

	return env
}

// lookup returns the value and whether the variable is present.
func (e environment) lookup(name string) (string, bool) {
	value, ok := e[NormalizeVariableName(name)]

	return value, ok
}

// get returns the value or an empty string.
func (e environment) get(name string) string {
	value, _ := e.lookup(name)

	return value
}

// NormalizeVariableName folds environment variable names on Windows, where they are case-insensitive.
func NormalizeVariableName(name string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(name)
	}

	return name
}

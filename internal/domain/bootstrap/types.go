package bootstrap

// VersionID identifies one release of the application artifact.
// It is supplied by configuration and never inferred from file content.
type VersionID string

// String returns the raw identifier.
func (v VersionID) String() string {
	return string(v)
}

// CacheEntry describes a published, verified artifact in the cache.
type CacheEntry struct {
	// VersionID is the release the artifact belongs to.
	VersionID VersionID
	// ArtifactPath is the absolute path of the cached artifact.
	ArtifactPath string
	// Size is the artifact size observed when the entry was looked up or published.
	Size int64
}

// DownloadSpec describes a single artifact download.
type DownloadSpec struct {
	// SourceURL is where the artifact is downloaded from.
	SourceURL string
	// ExpectedChecksum is the optional digest ("hex" or "algo:hex"); empty disables verification.
	ExpectedChecksum string
	// VersionID is the cache namespace the download is destined for.
	VersionID VersionID
}

// Origin tells where a runtime candidate was discovered.
type Origin int

const (
	// OriginSearchPath marks a runtime found by scanning PATH.
	OriginSearchPath Origin = iota
	// OriginOverride marks a runtime found through the JAVA_HOME override.
	OriginOverride
)

// OverrideVariable is the environment variable naming an explicit runtime installation.
const OverrideVariable = "JAVA_HOME"

// String returns a short machine-friendly name of the origin.
func (o Origin) String() string {
	if o == OriginOverride {
		return "override"
	}

	return "search-path"
}

// availability describes the source in "is available ..." sentences.
func (o Origin) availability() string {
	if o == OriginOverride {
		return "in " + OverrideVariable
	}

	return "on your PATH"
}

// setting names what the user has to fix in remedy sentences.
func (o Origin) setting() string {
	if o == OriginOverride {
		return OverrideVariable
	}

	return "your PATH"
}

// Bitness is the word size of a runtime build.
type Bitness int

const (
	// Bitness32 marks a 32-bit runtime.
	Bitness32 Bitness = 32
	// Bitness64 marks a 64-bit runtime.
	Bitness64 Bitness = 64
)

// RuntimeCandidate is a runtime executable discovered for this invocation.
// Candidates are never cached: runtime availability changes independently of the artifact cache.
type RuntimeCandidate struct {
	// ExecutablePath is the path of the java executable.
	ExecutablePath string
	// Origin is the source the executable was found through.
	Origin Origin
	// RawVersion is the version as reported by the runtime, e.g. "1.8" or "11.0".
	RawVersion string
	// Major is the normalized major version (legacy "1.x" becomes x).
	Major int
	// Minor is the minor version following the normalized major, when reported.
	Minor int
	// Bitness is the word size of the runtime build.
	Bitness Bitness
	// IsPlaceholder reports an OS stub that does not actually launch a runtime.
	IsPlaceholder bool
}

// LaunchContext holds everything handed to the application process.
// It is built once per invocation and passed on unmodified.
type LaunchContext struct {
	// ScriptDir is the directory the launcher executable lives in.
	ScriptDir string
	// CacheDir is the resolved cache root.
	CacheDir string
	// DidDownload reports whether this invocation populated the cache.
	DidDownload bool
	// ForwardedArgs are the caller's arguments, in order and untouched.
	ForwardedArgs []string
	// Hostname identifies the invoking host.
	Hostname string
	// ExtraJVMOptions is the JAVA_TOOL_OPTIONS pass-through value.
	ExtraJVMOptions string
	// HasExtraJVMOptions reports whether JAVA_TOOL_OPTIONS was present in the parent environment.
	HasExtraJVMOptions bool
}

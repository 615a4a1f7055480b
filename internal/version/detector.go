package version

import (
	"runtime/debug"
	"strings"
)

const (
	unknownVersionFallbackConstant = "unknown"
	buildInfoDevelVersionValue     = "devel"
	revisionSettingKeyConstant     = "vcs.revision"
	modifiedSettingKeyConstant     = "vcs.modified"
	modifiedSettingTrueConstant    = "true"
	dirtySuffixConstant            = "-dirty"
	shortRevisionLengthConstant    = 12
)

// BuildInfoProvider exposes runtime build metadata.
type BuildInfoProvider interface {
	Read() (*debug.BuildInfo, bool)
}

// Detector resolves the application version string from build metadata.
type Detector struct {
	buildInfoProvider BuildInfoProvider
}

// Dependencies describes the collaborators required for version detection.
type Dependencies struct {
	BuildInfoProvider BuildInfoProvider
}

// NewDetector constructs a Detector, defaulting to runtime build info.
func NewDetector(dependencies Dependencies) *Detector {
	provider := dependencies.BuildInfoProvider
	if provider == nil {
		provider = runtimeBuildInfoProvider{}
	}
	return &Detector{buildInfoProvider: provider}
}

// Detect resolves the application version using the supplied dependencies.
func Detect(dependencies Dependencies) string {
	return NewDetector(dependencies).Version()
}

// Version returns the module version when the binary was built from a tagged
// release, the embedded VCS revision otherwise, and "unknown" when neither
// is recorded.
func (detector *Detector) Version() string {
	buildInfo, available := detector.buildInfoProvider.Read()
	if !available || buildInfo == nil {
		return unknownVersionFallbackConstant
	}

	if moduleVersion := moduleVersionFromBuildInfo(buildInfo); len(moduleVersion) > 0 {
		return moduleVersion
	}

	if revision := revisionFromBuildInfo(buildInfo); len(revision) > 0 {
		return revision
	}

	return unknownVersionFallbackConstant
}

func moduleVersionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	trimmedVersion := strings.TrimSpace(buildInfo.Main.Version)
	if len(trimmedVersion) == 0 {
		return ""
	}
	// Untagged builds report devel or (devel) depending on the toolchain.
	if strings.EqualFold(strings.Trim(trimmedVersion, "()"), buildInfoDevelVersionValue) {
		return ""
	}
	return trimmedVersion
}

func revisionFromBuildInfo(buildInfo *debug.BuildInfo) string {
	revision := ""
	modified := false
	for _, setting := range buildInfo.Settings {
		switch setting.Key {
		case revisionSettingKeyConstant:
			revision = strings.TrimSpace(setting.Value)
		case modifiedSettingKeyConstant:
			modified = setting.Value == modifiedSettingTrueConstant
		}
	}
	if len(revision) == 0 {
		return ""
	}
	if len(revision) > shortRevisionLengthConstant {
		revision = revision[:shortRevisionLengthConstant]
	}
	if modified {
		revision += dirtySuffixConstant
	}
	return revision
}

type runtimeBuildInfoProvider struct{}

func (runtimeBuildInfoProvider) Read() (*debug.BuildInfo, bool) {
	return debug.ReadBuildInfo()
}

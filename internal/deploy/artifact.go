package deploy

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/leapstack-labs/shipver/internal/version"
)

// ABI is the target CPU architecture tag embedded in an artifact name.
type ABI string

// Supported ABIs.
const (
	ABIArm64 ABI = "arm64-v8a"
	ABIArmV7 ABI = "armeabi-v7a"
)

// ABIRule maps a substring of an artifact name to an ABI.
type ABIRule struct {
	Pattern string
	ABI     ABI
}

// DefaultABIRules are evaluated in order; the first rule whose pattern occurs
// in the file name wins. Artifacts matching no rule (x86, x86_64, universal)
// are not deployed.
var DefaultABIRules = []ABIRule{
	{Pattern: "arm64-v8a", ABI: ABIArm64},
	{Pattern: "armeabi-v7a", ABI: ABIArmV7},
}

// Classify returns the ABI of the first rule matching name.
func Classify(rules []ABIRule, name string) (ABI, bool) {
	for _, rule := range rules {
		if strings.Contains(name, rule.Pattern) {
			return rule.ABI, true
		}
	}
	return "", false
}

// releaseArtifact matches "app-<flavor/abi tag>-release.<ext>".
var releaseArtifact = regexp.MustCompile(`^app-(.+)-release\.([A-Za-z0-9]+)$`)

// parseArtifactName returns the tag and extension of a release artifact name.
func parseArtifactName(name string) (tag, ext string, ok bool) {
	m := releaseArtifact.FindStringSubmatch(name)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// IsReleaseArtifact reports whether name follows the release artifact naming
// convention.
func IsReleaseArtifact(name string) bool {
	_, _, ok := parseArtifactName(name)
	return ok
}

// Artifact is a release artifact selected for deployment.
type Artifact struct {
	Name     string `json:"name"`
	Source   string `json:"source"`
	ABI      ABI    `json:"abi"`
	Ext      string `json:"ext"`
	DestName string `json:"dest_name"`
	DestPath string `json:"dest_path"`
}

// DestName builds "<project>-<abi>-<label>-<context>-<yyyyMMdd>-b<n>.<ext>".
func DestName(project string, abi ABI, m version.Metadata, ext string) string {
	return fmt.Sprintf("%s-%s-%s-%s-%s-b%d.%s",
		project, abi, m.Label, m.Context, m.DeployStamp(), m.BuildNumber, ext)
}

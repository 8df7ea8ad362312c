// Package version derives the version code, label and name of a build from
// its context, its build number and the date it was built.
package version

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/leapstack-labs/shipver/internal/buildctx"
)

// MaxCode is the largest version code the packaging format accepts.
const MaxCode = 2_100_000_000

// BuildsPerDay is the number of build numbers that fit in one day's code range.
// Past it, codes start overlapping the following day's.
const BuildsPerDay = 100

// ErrCodeRange is returned when a version code would fall outside (0, MaxCode].
var ErrCodeRange = errors.New("version code out of range")

// ErrInvalid is returned by Validate for records that cannot stamp a build.
var ErrInvalid = errors.New("invalid version metadata")

// Metadata describes the version of a single build. It is computed once per
// invocation and never modified.
type Metadata struct {
	Context     buildctx.Context `json:"context" yaml:"context"`
	BuildNumber int              `json:"build_number" yaml:"build_number"`
	Code        int32            `json:"version_code" yaml:"version_code"`
	Label       string           `json:"version_label" yaml:"version_label"`
	Name        string           `json:"version_name" yaml:"version_name"`
	Date        time.Time        `json:"date" yaml:"date"`
	Release     bool             `json:"release" yaml:"release"`
}

// DateStamp returns the yyMMdd form of t as an integer, e.g. 260301.
func DateStamp(t time.Time) int {
	return (t.Year()%100)*10000 + int(t.Month())*100 + t.Day()
}

// Code combines a date stamp and build number into a version code.
func Code(stamp, build int) (int32, error) {
	code := int64(stamp)*BuildsPerDay + int64(build)
	if code <= 0 || code > MaxCode {
		return 0, fmt.Errorf("%w: %d (stamp %d, build %d)", ErrCodeRange, code, stamp, build)
	}
	return int32(code), nil
}

// New builds the metadata for build number build of context c on date.
func New(c buildctx.Context, build int, date time.Time, release bool) (Metadata, error) {
	if build < 0 {
		return Metadata{}, fmt.Errorf("%w: negative build number %d", ErrInvalid, build)
	}
	code, err := Code(DateStamp(date), build)
	if err != nil {
		return Metadata{}, err
	}
	label := c.Label(build)
	return Metadata{
		Context:     c,
		BuildNumber: build,
		Code:        code,
		Label:       label,
		Name:        label + "-" + string(c),
		Date:        date,
		Release:     release,
	}, nil
}

// DeployStamp is the yyyyMMdd date used in deployed artifact names.
func (m Metadata) DeployStamp() string {
	return m.Date.Format("20060102")
}

// Validate checks that m can be used to stamp and deploy a build.
func (m Metadata) Validate() error {
	switch {
	case !m.Context.Valid():
		return fmt.Errorf("%w: unknown context %q", ErrInvalid, m.Context)
	case m.BuildNumber < 0:
		return fmt.Errorf("%w: negative build number %d", ErrInvalid, m.BuildNumber)
	case m.Code <= 0:
		return fmt.Errorf("%w: version code %d is not positive", ErrInvalid, m.Code)
	case m.Name == "" || m.Label == "":
		return fmt.Errorf("%w: empty version name", ErrInvalid)
	case m.Date.IsZero():
		return fmt.Errorf("%w: missing build date", ErrInvalid)
	}
	return nil
}

// Environ renders m as environment variables for a child build process.
func (m Metadata) Environ() []string {
	return []string{
		"SHIPVER_CONTEXT=" + string(m.Context),
		"SHIPVER_BUILD_NUMBER=" + strconv.Itoa(m.BuildNumber),
		"SHIPVER_VERSION_CODE=" + strconv.FormatInt(int64(m.Code), 10),
		"SHIPVER_VERSION_LABEL=" + m.Label,
		"SHIPVER_VERSION_NAME=" + m.Name,
		"SHIPVER_RELEASE=" + strconv.FormatBool(m.Release),
	}
}

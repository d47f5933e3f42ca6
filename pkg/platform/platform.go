// Package platform models the closed set of OS families a target host can
// belong to. Each family knows how to query an installed package version, how
// to normalize it, and which source-install hooks and purge commands apply.
// Call sites look a family up once and use its methods instead of branching
// on the family name.
package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/openfroyo/acceptance/pkg/config"
	acceptErrors "github.com/openfroyo/acceptance/pkg/errors"
	"github.com/openfroyo/acceptance/pkg/remote"
)

// Family is the per-OS-family behavior.
type Family interface {
	// Name is the family identifier
	Name() config.OSFamily

	// VersionQuery returns the command printing the installed version of pkg
	VersionQuery(pkg string) string

	// NormalizeVersion turns raw query output into a comparable version
	NormalizeVersion(raw string) string

	// SourceHooks returns the preinst and postinst scripts, relative to the
	// packaging files directory, used when installing from source
	SourceHooks() (preinst string, postinst string)

	// RemovePackages returns the command removing pkgs and their config
	RemovePackages(pkgs ...string) string
}

type debian struct{}

func (debian) Name() config.OSFamily { return config.OSFamilyDebian }

func (debian) VersionQuery(pkg string) string {
	return fmt.Sprintf(`dpkg-query --showformat "\${Version}" --show %s`, pkg)
}

func (debian) NormalizeVersion(raw string) string {
	return strings.TrimSpace(raw)
}

func (debian) SourceHooks() (string, string) {
	return "debian/puppetdb.preinst install", "debian/puppetdb.postinst"
}

func (debian) RemovePackages(pkgs ...string) string {
	return "apt-get purge -y " + strings.Join(pkgs, " ")
}

type redhat struct{}

func (redhat) Name() config.OSFamily { return config.OSFamilyRedHat }

func (redhat) VersionQuery(pkg string) string {
	return fmt.Sprintf(`rpm -q %s --queryformat "%%{VERSION}-%%{RELEASE}"`, pkg)
}

// NormalizeVersion drops the last dot-delimited segment of the release, the
// distribution tag: "3.0.1-1.el7" becomes "3.0.1-1".
func (redhat) NormalizeVersion(raw string) string {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	return strings.Join(parts[:len(parts)-1], ".")
}

func (redhat) SourceHooks() (string, string) {
	return "dev/redhat/redhat_dev_preinst install", "dev/redhat/redhat_dev_postinst install"
}

func (redhat) RemovePackages(pkgs ...string) string {
	return "yum remove -y " + strings.Join(pkgs, " ")
}

var families = map[config.OSFamily]Family{
	config.OSFamilyDebian: debian{},
	config.OSFamilyRedHat: redhat{},
}

// For returns the behavior of family, or an UnsupportedPlatformError naming
// host when the family has no variant.
func For(host string, family config.OSFamily) (Family, error) {
	f, ok := families[family]
	if !ok {
		return nil, acceptErrors.NewUnsupportedPlatformError(host, string(family))
	}
	return f, nil
}

// classifyCodes are the exit codes of `which yum` that carry an answer.
var classifyCodes = remote.ExitCodeSet{0, 1}

// Classify probes host for its OS family: a host with yum is redhat, any
// other is debian.
func Classify(ctx context.Context, runner remote.Runner, host remote.Host) (config.OSFamily, error) {
	res, err := runner.Run(ctx, host, "which yum", classifyCodes)
	if err != nil {
		return "", fmt.Errorf("failed to classify OS family of %s: %w", host, err)
	}
	if res.ExitCode == 0 {
		return config.OSFamilyRedHat, nil
	}
	return config.OSFamilyDebian, nil
}

// Detector resolves host families through the run's family cache, probing
// each host at most once per successful classification.
type Detector struct {
	runner remote.Runner
	cache  *config.FamilyCache

	// group collapses concurrent probes of the same host
	group singleflight.Group
}

// NewDetector creates a detector backed by cache.
func NewDetector(runner remote.Runner, cache *config.FamilyCache) *Detector {
	if cache == nil {
		cache = config.NewFamilyCache(nil)
	}
	return &Detector{runner: runner, cache: cache}
}

// Detect returns the family name of host. A family pinned in the inventory
// is trusted without probing.
func (d *Detector) Detect(ctx context.Context, host remote.Host) (config.OSFamily, error) {
	if family, ok := d.cache.Get(host.Name); ok {
		return family, nil
	}

	if host.OSFamily != "" {
		return d.cache.Remember(host.Name, config.OSFamily(config.Canonical(host.OSFamily))), nil
	}

	result, err, _ := d.group.Do(host.Name, func() (interface{}, error) {
		if family, ok := d.cache.Get(host.Name); ok {
			return family, nil
		}

		family, err := Classify(ctx, d.runner, host)
		if err != nil {
			return nil, err
		}
		family = d.cache.Remember(host.Name, family)

		log.Debug().
			Str("host", host.Name).
			Str("os_family", string(family)).
			Msg("classified host")

		return family, nil
	})
	if err != nil {
		return "", err
	}
	return result.(config.OSFamily), nil
}

// Family returns the behavior for host.
func (d *Detector) Family(ctx context.Context, host remote.Host) (Family, error) {
	name, err := d.Detect(ctx, host)
	if err != nil {
		return nil, err
	}
	return For(host.Name, name)
}

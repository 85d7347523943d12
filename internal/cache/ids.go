// Package cache implements the on-disk cache layout, manifest format,
// and validity predicate: a global, content- and ABI-keyed on-disk
// cache of assembled package trees. Path algebra is grounded on
// registry/storage/paths.go's pathMapper; the manifest's canonical JSON
// ordering and write-then-read contract are grounded on the descriptor
// persistence in registry/storage/blobwriter.go and the digest handling
// in manifest/schema1.
package cache

import (
	"fmt"
	"strings"

	"github.com/kraklabs/scint/internal/digestutil"
)

// Platform is either "portable" or an architecture string.
const PlatformPortable = "portable"

// PackageId identifies one resolved package: name, version, and the
// platform its artifact was built for.
type PackageId struct {
	Name     string
	Version  string
	Platform string
}

// FullName renders the canonical identifier used throughout the cache
// layout and manifest format:
// "name-version" for portable packages, "name-version-platform"
// otherwise.
func (id PackageId) FullName() string {
	if id.Platform == "" || id.Platform == PlatformPortable {
		return fmt.Sprintf("%s-%s", id.Name, id.Version)
	}
	return fmt.Sprintf("%s-%s-%s", id.Name, id.Version, id.Platform)
}

// ABIKey is the opaque interpreter+arch identifier supplied by the host
// environment (e.g. "rt-3.3.0-arm64-darwin24"), used to key every
// cached artifact and validate against its manifest.
type ABIKey string

// SourceKind tags the union of where a package's source comes from.
type SourceKind int

const (
	SourceRegistry SourceKind = iota
	SourceGit
	SourcePath
	SourceBuiltin
)

func (k SourceKind) String() string {
	switch k {
	case SourceRegistry:
		return "registry"
	case SourceGit:
		return "git"
	case SourcePath:
		return "path"
	default:
		return "builtin"
	}
}

// SourceDescriptor is the tagged union of where a package's content
// comes from. Only the fields relevant to Kind are set.
type SourceDescriptor struct {
	Kind SourceKind

	// Registry
	URI string

	// Git
	Revision   string
	Ref        string
	Branch     string
	Tag        string
	Submodules bool

	// Path
	AbsolutePath string
}

// Slug derives a human-decodable identifier for a source, preferring a
// normalized host/path string and falling back to a truncated SHA-256 of
// the normalized URI when that string would be illegal or collision
// prone as a path component.
func (s SourceDescriptor) Slug() string {
	switch s.Kind {
	case SourceGit:
		return slugify(normalizeGitURI(s.URI))
	case SourceRegistry:
		return slugify(s.URI)
	default:
		return slugify(s.AbsolutePath)
	}
}

// normalizeGitURI strips ".git" suffixes and trailing slashes and
// lowercases the host.
func normalizeGitURI(uri string) string {
	u := strings.TrimSuffix(strings.TrimRight(uri, "/"), ".git")

	// Lowercase only the host portion when a scheme separator is present;
	// otherwise lowercase conservatively fails open to the whole string,
	// which is still a valid (if slightly over-aggressive) normalization.
	if idx := strings.Index(u, "://"); idx >= 0 {
		rest := u[idx+3:]
		if slash := strings.IndexByte(rest, '/'); slash >= 0 {
			host := strings.ToLower(rest[:slash])
			u = u[:idx+3] + host + rest[slash:]
		} else {
			u = u[:idx+3] + strings.ToLower(rest)
		}
	}
	return u
}

// isSlugSafe mirrors the character class the cache layout allows
// directly in a path component without escaping to a hash.
func isSlugSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.' || r == '_' || r == '-':
		return true
	default:
		return false
	}
}

func slugify(raw string) string {
	if raw == "" {
		return truncatedSHA256("")
	}

	replaced := strings.Map(func(r rune) rune {
		if isSlugSafe(r) {
			return r
		}
		return '-'
	}, raw)

	// A slug that's been mangled too heavily (mostly hyphens, or empty
	// after collapsing) is more likely to collide with an unrelated URI
	// than to stay human-decodable, so fall back to the hash.
	hyphens := strings.Count(replaced, "-")
	if len(replaced) == 0 || hyphens*2 > len(replaced) {
		return truncatedSHA256(raw)
	}

	return replaced
}

// truncatedSHA256 returns the first 16 hex characters of sha256(raw),
// a collision-resistant fallback slug for components that can't be
// used verbatim.
func truncatedSHA256(raw string) string {
	return digestutil.Bytes([]byte(raw))[:16]
}

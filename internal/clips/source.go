package clips

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/keagan/beatcut/internal/errkind"
)

// Source says where candidate clips come from. It is one of Theme,
// ExplicitFiles or ProviderFetch.
type Source interface {
	isSource()
}

type themeSource struct{ name string }

type explicitSource struct{ paths []string }

type providerSource struct {
	query string
	dir   string
}

func (themeSource) isSource()    {}
func (explicitSource) isSource() {}
func (providerSource) isSource() {}

// Theme selects every media file under <library root>/<name>
func Theme(name string) Source {
	return themeSource{name: name}
}

// ExplicitFiles selects exactly these files; each must exist
func ExplicitFiles(paths ...string) Source {
	return explicitSource{paths: slices.Clone(paths)}
}

// ProviderFetch selects files a provider already downloaded for query into
// <dir>/<query slug>
func ProviderFetch(query, dir string) Source {
	return providerSource{query: query, dir: dir}
}

// Candidate is a file to index. Required candidates fail the whole index
// when they cannot be probed; others are logged and skipped.
type Candidate struct {
	Path     string
	Required bool
}

// Resolve lists the candidates for src, relative paths resolving against root
func Resolve(src Source, root string) ([]Candidate, error) {
	switch s := src.(type) {
	case themeSource:
		if s.name == "" {
			return nil, fmt.Errorf("theme name is required")
		}
		return scanDir(filepath.Join(root, s.name))

	case explicitSource:
		if len(s.paths) == 0 {
			return nil, fmt.Errorf("no files given")
		}
		out := make([]Candidate, 0, len(s.paths))
		for _, p := range s.paths {
			if !filepath.IsAbs(p) && root != "" {
				if _, err := os.Stat(p); err != nil {
					p = filepath.Join(root, p)
				}
			}
			if _, err := os.Stat(p); err != nil {
				return nil, &errkind.MissingAssetError{Path: p}
			}
			out = append(out, Candidate{Path: p, Required: true})
		}
		return out, nil

	case providerSource:
		if s.query == "" {
			return nil, fmt.Errorf("provider query is required")
		}
		dir := s.dir
		if dir == "" {
			dir = filepath.Join(root, "_providers")
		}
		return scanDir(filepath.Join(dir, Slug(s.query)))

	default:
		return nil, fmt.Errorf("unknown clip source %T", src)
	}
}

func scanDir(dir string) ([]Candidate, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &errkind.MissingAssetError{Path: dir}
	}

	var out []Candidate
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), "_") {
				return filepath.SkipDir
			}
			return nil
		}
		if IsMedia(path) {
			out = append(out, Candidate{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}

	slices.SortFunc(out, func(a, b Candidate) int { return strings.Compare(a.Path, b.Path) })
	return out, nil
}

// Slug turns a provider query into a directory name
func Slug(query string) string {
	var b strings.Builder
	underscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(query)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// SourceSpec is the wire form of a Source
type SourceSpec struct {
	Theme    string   `json:"theme,omitempty" yaml:"theme,omitempty"`
	Files    []string `json:"files,omitempty" yaml:"files,omitempty"`
	Query    string   `json:"query,omitempty" yaml:"query,omitempty"`
	Provider string   `json:"provider_dir,omitempty" yaml:"provider_dir,omitempty"`
}

// Source converts the spec, requiring exactly one kind to be set
func (s SourceSpec) Source() (Source, error) {
	set := 0
	var src Source
	if s.Theme != "" {
		set++
		src = Theme(s.Theme)
	}
	if len(s.Files) > 0 {
		set++
		src = ExplicitFiles(s.Files...)
	}
	if s.Query != "" {
		set++
		src = ProviderFetch(s.Query, s.Provider)
	}
	if set != 1 {
		return nil, fmt.Errorf("exactly one of theme, files or query must be set")
	}
	return src, nil
}

// Label names a source for seeding and logs
func Label(src Source) string {
	switch s := src.(type) {
	case themeSource:
		return s.name
	case explicitSource:
		names := make([]string, len(s.paths))
		for i, p := range s.paths {
			names[i] = filepath.Base(p)
		}
		return strings.Join(names, ",")
	case providerSource:
		return Slug(s.query)
	}
	return ""
}

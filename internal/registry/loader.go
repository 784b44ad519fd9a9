package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	// AppName is the directory name used for XDG config lookup.
	AppName = "corpus-crawler"

	// DefaultPath is checked, relative to the working directory, before XDG.
	DefaultPath = "data/corpus/sources.yaml"

	configFileName = "sources.yaml"
)

type fileDoc struct {
	Categories yaml.Node `yaml:"categories"`
}

type rawCategory struct {
	Sources []rawSource `yaml:"sources"`
}

type rawSource struct {
	Key       string       `yaml:"key"`
	Enabled   *bool        `yaml:"enabled"`
	HTMLIndex string       `yaml:"html_index"`
	Seed      string       `yaml:"seed"`
	LinkRegex string       `yaml:"link_regex"`
	MaxIndex  *int         `yaml:"max_index"`
	Paginate  *rawPaginate `yaml:"paginate"`
}

type rawPaginate struct {
	Mode        string `yaml:"mode"`
	Param       string `yaml:"param"`
	Start       *int   `yaml:"start"`
	MaxPages    *int   `yaml:"max_pages"`
	StopOnEmpty *bool  `yaml:"stop_on_empty"`
}

// Find resolves the registry path: the explicit path when given, else
// DefaultPath when it exists, else sources.yaml in the XDG config dirs.
func Find(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	if _, err := os.Stat(DefaultPath); err == nil {
		return DefaultPath, nil
	}

	path, err := xdg.SearchConfigFile(filepath.Join(AppName, configFileName))
	if err != nil {
		return "", &ConfigError{Err: ErrConfigNotFound}
	}

	return path, nil
}

// Load reads and validates the registry at path. Every failure is a *ConfigError.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigError{Path: path, Err: ErrConfigNotFound}
		}
		return nil, &ConfigError{Path: path, Err: err}
	}

	reg, err := Parse(data)
	if err != nil {
		return nil, &ConfigError{Path: path, Err: err}
	}

	return reg, nil
}

// Parse decodes registry YAML. Category order is kept as written.
func Parse(data []byte) (*Registry, error) {
	var doc fileDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if doc.Categories.Kind != yaml.MappingNode || len(doc.Categories.Content) == 0 {
		return nil, ErrNoCategories
	}

	reg := &Registry{}
	nodes := doc.Categories.Content
	for i := 0; i+1 < len(nodes); i += 2 {
		name := nodes[i].Value

		var raw rawCategory
		if err := nodes[i+1].Decode(&raw); err != nil {
			return nil, fmt.Errorf("category %s: %w", name, err)
		}

		category, err := buildCategory(name, raw)
		if err != nil {
			return nil, err
		}

		reg.Categories = append(reg.Categories, category)
	}

	return reg, nil
}

func buildCategory(name string, raw rawCategory) (Category, error) {
	category := Category{Name: name, Sources: []Source{}}
	keys := map[string]bool{}

	for _, rs := range raw.Sources {
		src, err := buildSource(name, rs)
		if err != nil {
			return Category{}, err
		}

		if keys[src.Key] {
			return Category{}, fmt.Errorf("%s: %w", src.Name(), ErrDuplicateKey)
		}
		keys[src.Key] = true

		category.Sources = append(category.Sources, src)
	}

	return category, nil
}

func buildSource(category string, rs rawSource) (Source, error) {
	src := Source{
		Category: category,
		Key:      rs.Key,
		Enabled:  boolOr(rs.Enabled, true),
		IndexURL: rs.HTMLIndex,
		SeedURL:  rs.Seed,
		MaxIndex: intOr(rs.MaxIndex, DefaultMaxIndex),
		Paginate: buildPagination(rs.Paginate),
	}

	if rs.HTMLIndex == "" && rs.Seed != "" {
		src.Mode = SeedMode
	}

	if rs.LinkRegex != "" {
		pattern, err := regexp.Compile(rs.LinkRegex)
		if err != nil {
			return Source{}, fmt.Errorf("%s: link_regex: %w", src.Name(), err)
		}
		src.LinkPattern = pattern
	}

	if err := src.validate(); err != nil {
		return Source{}, err
	}

	return src, nil
}

func buildPagination(rp *rawPaginate) Pagination {
	if rp == nil {
		return Pagination{}
	}

	mode := rp.Mode
	if mode == "" {
		mode = PaginateModeQuery
	}

	param := rp.Param
	if param == "" {
		param = DefaultPageParam
	}

	return Pagination{
		Enabled:     mode == PaginateModeQuery,
		Param:       param,
		Start:       intOr(rp.Start, DefaultPageStart),
		MaxPages:    intOr(rp.MaxPages, DefaultMaxPages),
		StopOnEmpty: boolOr(rp.StopOnEmpty, DefaultStopOnEmpty),
	}
}

func boolOr(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}

	return *value
}

func intOr(value *int, fallback int) int {
	if value == nil {
		return fallback
	}

	return *value
}

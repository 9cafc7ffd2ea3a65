// Package parser implements stage 1 of the pipeline: it loads source
// files under a project root, skipping excluded directories, and exposes
// each file's syntax tree. Single-threaded, deterministically ordered
// traversal so later stages can rely on stable iteration order.
package parser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"go.uber.org/zap"

	"rulesight/internal/config"
	"rulesight/internal/logx"
	"rulesight/internal/model"
)

// ErrProjectRootMissing is returned when the given project root cannot be
// read.
var ErrProjectRootMissing = errors.New("project root missing or unreadable")

// Result is the parser stage's output: the ordered file list plus any
// non-fatal per-file diagnostics.
type Result struct {
	Files       []*model.ParsedFile
	Diagnostics []model.ParseDiagnostic
}

// Parser walks a project root and parses every matching source file. Each
// instance owns its own *sitter.Parser, so distinct Parser values may run in
// parallel goroutines provided they do not share one instance.
type Parser struct {
	exclude     config.ExclusionSet
	buildConfig string
	sourceGlob  string
	log         *zap.SugaredLogger
	ts          *sitter.Parser
}

// New builds a Parser from cfg's exclusion set, declared build-config file
// name, and source glob. A nil logger defaults to a no-op.
func New(cfg config.Config, log *zap.Logger) *Parser {
	p := sitter.NewParser()
	p.SetLanguage(typescript.GetLanguage())
	return &Parser{
		exclude:     cfg.Exclusions(),
		buildConfig: cfg.BuildConfig,
		sourceGlob:  cfg.SourceGlob,
		log:         logx.Sugared(log, logx.Parse),
		ts:          p,
	}
}

// Run discovers and parses every source file under root, in stable lexical
// order. When a build-configuration file (cfg.BuildConfig, e.g.
// tsconfig.json) exists at root, the declared include/files source set
// drives discovery; otherwise Run recursively walks the tree, filtering by
// the configured source glob.
func (pr *Parser) Run(root string) (Result, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return Result{}, fmt.Errorf("%w: %s", ErrProjectRootMissing, root)
	}

	paths, err := pr.discoverFiles(root)
	if err != nil {
		return Result{}, err
	}
	sort.Strings(paths)

	res := Result{Files: make([]*model.ParsedFile, 0, len(paths))}
	for _, path := range paths {
		pf, diag, err := pr.parseFile(path)
		if err != nil {
			res.Diagnostics = append(res.Diagnostics, model.ParseDiagnostic{FilePath: path, Message: err.Error()})
			pr.log.Debugw("skipping unparseable file", "path", path, "error", err)
			continue
		}
		if diag != nil {
			res.Diagnostics = append(res.Diagnostics, *diag)
		}
		res.Files = append(res.Files, pf)
	}
	return res, nil
}

// discoverFiles picks the build-config-driven branch when a build-config
// file exists at root, falling back to a glob-filtered tree walk otherwise.
func (pr *Parser) discoverFiles(root string) ([]string, error) {
	buildConfigName := pr.buildConfig
	if buildConfigName == "" {
		buildConfigName = "tsconfig.json"
	}
	data, err := os.ReadFile(filepath.Join(root, buildConfigName))
	if err != nil {
		if os.IsNotExist(err) {
			return pr.walkTree(root)
		}
		return nil, fmt.Errorf("%w: reading %s: %v", ErrProjectRootMissing, buildConfigName, err)
	}

	paths, err := pr.filesFromBuildConfig(root, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrProjectRootMissing, buildConfigName, err)
	}
	pr.log.Debugw("loaded declared source set from build config", "file", buildConfigName, "count", len(paths))
	return paths, nil
}

// buildConfig is the subset of tsconfig.json's shape this engine reads: the
// explicit file list and the include/exclude glob patterns that declare a
// project's source set without naming every file.
type buildConfig struct {
	Files   []string `json:"files"`
	Include []string `json:"include"`
	Exclude []string `json:"exclude"`
}

// filesFromBuildConfig resolves a build-config file's declared source set
// against the files actually present under root.
func (pr *Parser) filesFromBuildConfig(root string, data []byte) ([]string, error) {
	var bc buildConfig
	if err := json.Unmarshal(data, &bc); err != nil {
		return nil, fmt.Errorf("decoding build config: %w", err)
	}

	declared := map[string]bool{}
	for _, f := range bc.Files {
		declared[filepath.Join(root, filepath.FromSlash(f))] = true
	}

	if len(bc.Include) == 0 {
		paths := make([]string, 0, len(declared))
		for p := range declared {
			paths = append(paths, p)
		}
		return paths, nil
	}

	includeRe, err := compileGlobs(bc.Include)
	if err != nil {
		return nil, fmt.Errorf("compiling include patterns: %w", err)
	}
	excludeRe, err := compileGlobs(bc.Exclude)
	if err != nil {
		return nil, fmt.Errorf("compiling exclude patterns: %w", err)
	}

	walkErr := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if path != root && pr.exclude.Contains(fi.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isSourceFile(path) {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchesAny(excludeRe, rel) || !matchesAny(includeRe, rel) {
			return nil
		}
		declared[path] = true
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	paths := make([]string, 0, len(declared))
	for p := range declared {
		paths = append(paths, p)
	}
	return paths, nil
}

// walkTree recursively enumerates files under root, skipping excluded
// directories and filtering by the configured source glob.
func (pr *Parser) walkTree(root string) ([]string, error) {
	globRe, err := compileGlob(pr.effectiveGlob())
	if err != nil {
		return nil, fmt.Errorf("compiling source glob %q: %w", pr.sourceGlob, err)
	}

	var paths []string
	walkErr := filepath.Walk(root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			if path != root && pr.exclude.Contains(fi.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if globRe.MatchString(filepath.ToSlash(rel)) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("%w: %s", ErrProjectRootMissing, walkErr)
	}
	return paths, nil
}

// effectiveGlob falls back to matching every .ts/.tsx file when no source
// glob is configured.
func (pr *Parser) effectiveGlob() string {
	if pr.sourceGlob == "" {
		return "**/*.{ts,tsx}"
	}
	return pr.sourceGlob
}

func (pr *Parser) parseFile(path string) (*model.ParsedFile, *model.ParseDiagnostic, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tree, err := pr.ts.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	var diag *model.ParseDiagnostic
	if tree.RootNode().HasError() {
		diag = &model.ParseDiagnostic{FilePath: path, Message: "syntax error recovered by partial parse"}
	}
	return &model.ParsedFile{Path: path, Source: content, Tree: tree, Lang: "typescript"}, diag, nil
}

func isSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".ts" || ext == ".tsx"
}

func compileGlobs(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := compileGlob(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

func matchesAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// compileGlob translates a tsconfig-style glob pattern ("**/*.ts",
// "src/**/*.{ts,tsx}") into an anchored regexp matched against a
// slash-separated path relative to the project root.
func compileGlob(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		switch {
		case strings.HasPrefix(pattern[i:], "**/"):
			sb.WriteString("(?:.*/)?")
			i += 2
		case pattern[i] == '*':
			sb.WriteString("[^/]*")
		case pattern[i] == '?':
			sb.WriteString("[^/]")
		case pattern[i] == '{':
			sb.WriteString("(?:")
		case pattern[i] == '}':
			sb.WriteString(")")
		case pattern[i] == ',':
			sb.WriteString("|")
		case strings.ContainsRune(`.+()^$|\`, rune(pattern[i])):
			sb.WriteByte('\\')
			sb.WriteByte(pattern[i])
		default:
			sb.WriteByte(pattern[i])
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}

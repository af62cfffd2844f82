// Package schemaloader finds and reads the GraphQL schema of a project.
package schemaloader

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/uber-go/tally"
	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

const (
	_configKey     = "schema"
	_schemaKey     = "schema"
	_maxReadsInUse = 8
)

//go:generate mockgen -source=schema_loader.go -destination=schemaloadermock/schema_loader_mock.go -package=schemaloadermock

// Loader loads the schema of a project root.
type Loader interface {
	// Load returns the schema of projectRoot, or nil when the project has no schema.
	Load(ctx context.Context, projectRoot string) (*entity.Schema, error)
	// Close stops watching schema files.
	Close() error
}

// Config is the schema block of the configuration.
type Config struct {
	// ProjectConfigFiles are looked up in order in the project root.
	ProjectConfigFiles []string `yaml:"projectConfigFiles"`
	// DefaultFiles are used when no project config names a schema.
	DefaultFiles []string `yaml:"defaultFiles"`
	// Watch evicts a cached schema when one of its files changes.
	Watch bool `yaml:"watch"`
}

// Params are inbound parameters to create a Loader.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
	FS        fs.GqlspFS
	Stats     tally.Scope
}

type rootWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

type loader struct {
	cfg    Config
	logger *zap.SugaredLogger
	fs     fs.GqlspFS
	stats  tally.Scope
	group  singleflight.Group

	mu       sync.Mutex
	cache    map[string]*entity.Schema
	watchers map[string]*rootWatcher
	closed   bool
}

// New creates a Loader and registers its cleanup with the lifecycle.
func New(p Params) (Loader, error) {
	cfg := Config{}
	if err := p.Config.Get(_configKey).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("getting %s config: %w", _configKey, err)
	}

	l := &loader{
		cfg:      cfg,
		logger:   p.Logger.With("gateway", "schema-loader"),
		fs:       p.FS,
		stats:    p.Stats.SubScope("schema"),
		cache:    make(map[string]*entity.Schema),
		watchers: make(map[string]*rootWatcher),
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return l.Close()
		},
	})
	return l, nil
}

func (l *loader) Load(ctx context.Context, projectRoot string) (*entity.Schema, error) {
	if projectRoot == "" {
		return nil, fmt.Errorf("project root is required")
	}
	root := filepath.Clean(projectRoot)

	l.mu.Lock()
	cached, ok := l.cache[root]
	l.mu.Unlock()
	if ok {
		l.stats.Counter("cache_hit").Inc(1)
		return cached, nil
	}
	l.stats.Counter("cache_miss").Inc(1)

	ch := l.group.DoChan(root, func() (interface{}, error) {
		schema, files, err := l.load(root)
		if err != nil || schema == nil {
			return schema, err
		}
		l.store(root, schema, files)
		return schema, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		schema, _ := res.Val.(*entity.Schema)
		return schema, nil
	}
}

func (l *loader) Close() error {
	l.mu.Lock()
	l.closed = true
	watchers := l.watchers
	l.watchers = make(map[string]*rootWatcher)
	l.mu.Unlock()

	// Watchers are closed without holding mu, since their goroutines may be waiting on it to evict.
	var err error
	for _, w := range watchers {
		err = multierr.Append(err, w.close())
	}
	return err
}

// load resolves the schema files of root and reads them. The returned paths include the project config, if any.
func (l *loader) load(root string) (*entity.Schema, []string, error) {
	paths, configPath, err := l.resolve(root)
	if err != nil {
		return nil, nil, err
	}
	if len(paths) == 0 {
		return nil, nil, nil
	}

	sources := make([]entity.SchemaSource, len(paths))
	var g errgroup.Group
	g.SetLimit(_maxReadsInUse)
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			source, err := l.readSource(p)
			if err != nil {
				return err
			}
			sources[i] = source
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	watched := paths
	if configPath != "" {
		watched = append([]string{configPath}, paths...)
	}
	return &entity.Schema{ProjectRoot: root, Sources: sources}, watched, nil
}

// resolve returns the schema files named by the first project config that has a schema key,
// or the default files that exist.
func (l *loader) resolve(root string) (paths []string, configPath string, err error) {
	for _, name := range l.cfg.ProjectConfigFiles {
		candidate := filepath.Join(root, name)
		exists, err := l.fs.FileExists(candidate)
		if err != nil {
			return nil, "", fmt.Errorf("checking %q: %w", candidate, err)
		}
		if !exists {
			continue
		}

		entries, err := l.readProjectConfig(candidate)
		if err != nil {
			return nil, "", err
		}
		if len(entries) == 0 {
			l.logger.Debugf("%q has no %s key", candidate, _schemaKey)
			continue
		}

		paths, err := l.expand(root, entries)
		if err != nil {
			return nil, "", err
		}
		return paths, candidate, nil
	}

	for _, name := range l.cfg.DefaultFiles {
		candidate := filepath.Join(root, name)
		exists, err := l.fs.FileExists(candidate)
		if err != nil {
			return nil, "", fmt.Errorf("checking %q: %w", candidate, err)
		}
		if exists {
			paths = append(paths, candidate)
		}
	}
	return paths, "", nil
}

// readProjectConfig returns the entries of the schema key, which may be a string or a list of strings.
func (l *loader) readProjectConfig(path string) ([]string, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading project config %q: %w", path, err)
	}

	doc := map[string]interface{}{}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(string(data), &doc); err != nil {
			return nil, fmt.Errorf("parsing project config %q: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &doc); err != nil {
		// YAML is a superset of JSON, so .graphqlrc and .json configs are parsed here too.
		return nil, fmt.Errorf("parsing project config %q: %w", path, err)
	}

	switch v := doc[_schemaKey].(type) {
	case nil:
		return nil, nil
	case string:
		return []string{v}, nil
	case []interface{}:
		entries := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("project config %q: unsupported %s entry %v", path, _schemaKey, item)
			}
			entries = append(entries, s)
		}
		return entries, nil
	default:
		return nil, fmt.Errorf("project config %q: %s must be a string or a list of strings", path, _schemaKey)
	}
}

// expand resolves entries relative to root. Remote schemas are skipped and glob patterns are expanded.
func (l *loader) expand(root string, entries []string) ([]string, error) {
	var paths []string
	for _, entry := range entries {
		if strings.HasPrefix(entry, "http://") || strings.HasPrefix(entry, "https://") {
			l.logger.Warnf("skipping remote schema %q in %q", entry, root)
			continue
		}

		p := entry
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		if !strings.ContainsAny(p, "*?[") {
			paths = append(paths, filepath.Clean(p))
			continue
		}

		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("expanding schema pattern %q: %w", entry, err)
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func (l *loader) readSource(path string) (entity.SchemaSource, error) {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return entity.SchemaSource{}, fmt.Errorf("reading schema %q: %w", path, err)
	}

	format := entity.SchemaFormatSDL
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = entity.SchemaFormatIntrospection
		if !json.Valid(data) {
			return entity.SchemaSource{}, fmt.Errorf("schema %q is not valid JSON", path)
		}
	}
	return entity.SchemaSource{Path: path, Format: format, Content: string(data)}, nil
}

func (l *loader) store(root string, schema *entity.Schema, files []string) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.cache[root] = schema
	if !l.cfg.Watch {
		l.mu.Unlock()
		return
	}

	old := l.watchers[root]
	delete(l.watchers, root)
	w, err := l.newWatcher(root, files)
	if err != nil {
		l.logger.Warnf("unable to watch schema files of %q: %v", root, err)
	} else {
		l.watchers[root] = w
	}
	l.mu.Unlock()

	if old != nil {
		if err := old.close(); err != nil {
			l.logger.Warnf("closing schema watcher for %q: %v", root, err)
		}
	}
}

// newWatcher watches the directories of files, since editors often replace a file rather than write to it.
func (l *loader) newWatcher(root string, files []string) (*rootWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	names := make(map[string]struct{}, len(files))
	dirs := make(map[string]struct{})
	for _, f := range files {
		names[filepath.Clean(f)] = struct{}{}
		dir := filepath.Dir(f)
		if _, ok := dirs[dir]; ok {
			continue
		}
		dirs[dir] = struct{}{}
		if err := watcher.Add(dir); err != nil {
			return nil, multierr.Append(err, watcher.Close())
		}
	}

	w := &rootWatcher{watcher: watcher, done: make(chan struct{})}
	go l.watch(root, w, names)
	return w, nil
}

func (l *loader) watch(root string, w *rootWatcher, names map[string]struct{}) {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if _, hit := names[filepath.Clean(event.Name)]; !hit {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			l.evict(root)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warnf("schema watcher for %q: %v", root, err)
		}
	}
}

func (l *loader) evict(root string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.cache[root]; ok {
		l.logger.Infof("schema of %q changed, evicting cached schema", root)
		l.stats.Counter("evicted").Inc(1)
		delete(l.cache, root)
	}
}

func (w *rootWatcher) close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}

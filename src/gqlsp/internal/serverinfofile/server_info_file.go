// Package serverinfofile records connection details of the running daemon for editor clients.
package serverinfofile

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/fs"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _configKeyInfoFile = "serverInfoFilePath"

// Module is the Fx module for this package.
var Module = fx.Provide(New)

//go:generate mockgen -source=server_info_file.go -destination=serverinfofilemock/server_info_file_mock.go -package=serverinfofilemock

// ServerInfoFile manages the contents of a single server info file, written at launch and removed on stop.
type ServerInfoFile interface {
	UpdateField(key string, value string) error
}

// Params define values to be used by ServerInfoFile.
type Params struct {
	fx.In

	Config    config.Provider
	Lifecycle fx.Lifecycle
	Logger    *zap.SugaredLogger
	FS        fs.GqlspFS
}

type module struct {
	infofile     string
	fs           fs.GqlspFS
	logger       *zap.SugaredLogger
	fileContents map[string]string
	written      bool
	mu           sync.Mutex
}

// New creates a new ServerInfoFile.
func New(p Params) (ServerInfoFile, error) {
	m := &module{
		fs:           p.FS,
		logger:       p.Logger,
		fileContents: make(map[string]string),
	}

	if err := m.processConfig(p.Config); err != nil {
		return nil, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: m.OnStop,
	})
	return m, nil
}

// OnStop removes the info file if it was written.
func (m *module) OnStop(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.written {
		return nil
	}
	if err := m.fs.Remove(m.infofile); err != nil {
		return fmt.Errorf("removing info file: %w", err)
	}
	m.written = false
	return nil
}

// UpdateField sets key to value and rewrites the whole file.
func (m *module) UpdateField(key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.fileContents[key] = value
	jsonOutput, err := json.Marshal(m.fileContents)
	if err != nil {
		return fmt.Errorf("marshalling json: %w", err)
	}

	if err := m.fs.MkdirAll(filepath.Dir(m.infofile)); err != nil {
		return fmt.Errorf("creating info file directory: %w", err)
	}
	if err := m.fs.WriteFile(m.infofile, jsonOutput); err != nil {
		return fmt.Errorf("creating info file: %w", err)
	}
	m.written = true
	m.logger.Infow("connection info saved", zap.String("file", m.infofile), zap.String(key, value))
	return nil
}

func (m *module) processConfig(cfg config.Provider) error {
	if err := cfg.Get(_configKeyInfoFile).Populate(&m.infofile); err != nil {
		return fmt.Errorf("getting config field %q: %w", _configKeyInfoFile, err)
	}

	if m.infofile == "" {
		return fmt.Errorf("missing field %q in config", _configKeyInfoFile)
	}
	return nil
}

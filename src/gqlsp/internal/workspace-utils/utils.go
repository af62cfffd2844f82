// Package workspaceutils resolves workspace and project directories for documents.
package workspaceutils

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/uber/gql-panel-lsp/src/gqlsp/entity"
	"github.com/uber/gql-panel-lsp/src/gqlsp/internal/fs"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const _projectConfigFilesKey = "schema.projectConfigFiles"

// Module provides a new WorkspaceUtils.
var Module = fx.Provide(New)

//go:generate mockgen -source=utils.go -destination=workspaceutilsmock/utils_mock.go -package=workspaceutilsmock

// WorkspaceUtils is a utility interface for getting workspace related information.
type WorkspaceUtils interface {
	// GetWorkspaceRoot returns the first workspace folder that exists on disk.
	GetWorkspaceRoot(ctx context.Context, workspaceFolders []protocol.WorkspaceFolder) (string, error)
	// ProjectRoot returns the project directory of a document, or "" when none can be determined.
	ProjectRoot(ctx context.Context, s *entity.Session, document protocol.DocumentURI) (string, error)
}

// Params are the parameters required to create a new WorkspaceUtils.
type Params struct {
	fx.In

	Config config.Provider
	Logger *zap.SugaredLogger
	FS     fs.GqlspFS
}

type workspaceUtilsImpl struct {
	logger             *zap.SugaredLogger
	fs                 fs.GqlspFS
	projectConfigFiles []string
}

// New creates a new WorkspaceUtils.
func New(p Params) (WorkspaceUtils, error) {
	var names []string
	if err := p.Config.Get(_projectConfigFilesKey).Populate(&names); err != nil {
		return nil, fmt.Errorf("getting %s: %w", _projectConfigFilesKey, err)
	}

	return &workspaceUtilsImpl{
		logger:             p.Logger,
		fs:                 p.FS,
		projectConfigFiles: names,
	}, nil
}

func (w *workspaceUtilsImpl) GetWorkspaceRoot(ctx context.Context, workspaceFolders []protocol.WorkspaceFolder) (string, error) {
	if len(workspaceFolders) == 0 {
		return "", fmt.Errorf("no workspace folders provided")
	}

	// code-workspace files may contain improperly formatted or nonexistent folders.
	for _, folder := range workspaceFolders {
		dir, ok := FilePath(uri.URI(folder.URI))
		if !ok {
			continue
		}
		exists, err := w.fs.DirExists(dir)
		if err != nil || !exists {
			continue
		}
		return dir, nil
	}

	folderStrings := make([]string, 0, len(workspaceFolders))
	for _, folder := range workspaceFolders {
		folderStrings = append(folderStrings, folder.URI)
	}
	return "", fmt.Errorf("unable to determine a workspace root among the following searched folders: %v", strings.Join(folderStrings, ", "))
}

// ProjectRoot picks the deepest workspace folder containing the document, falling back to the session workspace root.
// Within that folder, the nearest directory holding a project config file is preferred.
func (w *workspaceUtilsImpl) ProjectRoot(ctx context.Context, s *entity.Session, document protocol.DocumentURI) (string, error) {
	docPath, ok := FilePath(document)
	if !ok {
		return "", nil
	}

	folder := ""
	for _, f := range s.WorkspaceFolders() {
		dir, ok := FilePath(uri.URI(f.URI))
		if !ok || !IsWithin(dir, docPath) {
			continue
		}
		if len(dir) > len(folder) {
			folder = dir
		}
	}
	if folder == "" && s != nil && s.WorkspaceRoot != "" && IsWithin(s.WorkspaceRoot, docPath) {
		folder = s.WorkspaceRoot
	}
	if folder == "" {
		return "", nil
	}

	if len(w.projectConfigFiles) == 0 {
		return folder, nil
	}
	nearest, found, err := w.fs.FindUp(filepath.Dir(docPath), w.projectConfigFiles...)
	if err != nil {
		return "", fmt.Errorf("searching for project config above %q: %w", docPath, err)
	}
	if found && IsWithin(folder, nearest) {
		return nearest, nil
	}

	w.logger.Debugf("no project config found for %q, using workspace folder %q", docPath, folder)
	return folder, nil
}

// FilePath returns the file system path of a file URI.
func FilePath(u uri.URI) (string, bool) {
	if !strings.HasPrefix(string(u), uri.FileScheme+"://") {
		return "", false
	}
	return filepath.Clean(u.Filename()), true
}

// IsWithin reports whether path is dir or is located below it.
func IsWithin(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// Package entity contains the domain types of the gqlsp daemon.
package entity

import (
	"github.com/gofrs/uuid"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

type keyType string

// SessionContextKey indicates the key to be used to identify the session UUID in the context.
const SessionContextKey keyType = "SessionUUID"

// Session entity representing a single editor connection.
type Session struct {
	UUID             uuid.UUID                  `json:"uuid" zap:"uuid"`
	InitializeParams *protocol.InitializeParams `json:"-" zap:"-"`
	Conn             jsonrpc2.Conn              `json:"-" zap:"-"`
	WorkspaceRoot    string                     `json:"workspaceRoot" zap:"workspaceRoot"`
}

// WorkspaceFolders returns the folders announced by the client at initialization.
// The deprecated rootUri is used when the client sent no folders.
func (s *Session) WorkspaceFolders() []protocol.WorkspaceFolder {
	if s == nil || s.InitializeParams == nil {
		return nil
	}
	if len(s.InitializeParams.WorkspaceFolders) > 0 {
		return s.InitializeParams.WorkspaceFolders
	}
	if s.InitializeParams.RootURI != "" {
		return []protocol.WorkspaceFolder{{URI: string(s.InitializeParams.RootURI)}}
	}
	return nil
}

// ClientName identifies the name set by a client in its initialization parameters.
type ClientName string

const (
	// ClientNameVSCode is the name of the VSCode client.
	ClientNameVSCode ClientName = "Visual Studio Code"
	// ClientNameCursor is the name of the Cursor client.
	ClientNameCursor ClientName = "Cursor"
)

// IsVSCodeBased returns true if the client is a VS Code based client.
func (c ClientName) IsVSCodeBased() bool {
	return c == ClientNameVSCode || c == ClientNameCursor
}

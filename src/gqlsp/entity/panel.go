package entity

import (
	"encoding/json"
	"fmt"

	"github.com/uber/gql-panel-lsp/src/gql-lib/fragment"
	"go.lsp.dev/protocol"
)

// Commands exposed through workspace/executeCommand.
const (
	CommandEdit   = "gqlPanel.edit"
	CommandShow   = "gqlPanel.show"
	CommandInsert = "gqlPanel.insert"
)

// Methods exchanged with the client that hosts the panel.
const (
	// MethodPanelCreateOrShow asks the client to create the panel, or reveal it if it exists.
	MethodPanelCreateOrShow = "gqlPanel/createOrShow"
	// MethodPanelPostMessage forwards a command and schema to the panel.
	MethodPanelPostMessage = "gqlPanel/postMessage"
	// MethodPanelDispose asks the client to close the panel.
	MethodPanelDispose = "gqlPanel/dispose"
	// MethodPanelMessage carries a message from the panel to the server.
	MethodPanelMessage = "gqlPanel/message"
	// MethodPanelDidDispose notifies the server that the panel was closed on the client side.
	MethodPanelDidDispose = "gqlPanel/didDispose"
	// MethodRequestFullShutdown stops the daemon and all of its sessions.
	MethodRequestFullShutdown = "gqlsp/requestFullShutdown"
)

// PanelCommandKind names the mode in which the panel is opened.
type PanelCommandKind string

const (
	// PanelCommandStartEditing opens an existing fragment for editing.
	PanelCommandStartEditing PanelCommandKind = "startEditing"
	// PanelCommandShow opens the panel to explore the schema, with no target fragment.
	PanelCommandShow PanelCommandKind = "show"
	// PanelCommandInsert opens the panel to write a new fragment at a position.
	PanelCommandInsert PanelCommandKind = "insert"
)

// PanelCommand is the request handed from command routing to the panel session.
// Source is set only for PanelCommandStartEditing and Position only for PanelCommandInsert.
type PanelCommand struct {
	Kind     PanelCommandKind     `json:"command"`
	Source   *fragment.Descriptor `json:"source,omitempty"`
	Position *fragment.Position   `json:"position,omitempty"`
}

// NewStartEditingCommand builds a command to edit source.
func NewStartEditingCommand(source fragment.Descriptor) PanelCommand {
	return PanelCommand{Kind: PanelCommandStartEditing, Source: &source}
}

// NewShowCommand builds a command that opens the panel without a target.
func NewShowCommand() PanelCommand {
	return PanelCommand{Kind: PanelCommandShow}
}

// NewInsertCommand builds a command that inserts a new fragment at position.
func NewInsertCommand(position fragment.Position) PanelCommand {
	return PanelCommand{Kind: PanelCommandInsert, Position: &position}
}

// Validate checks that the fields required by the command kind are set.
func (c PanelCommand) Validate() error {
	switch c.Kind {
	case PanelCommandStartEditing:
		if c.Source == nil {
			return fmt.Errorf("%s command requires a source", c.Kind)
		}
	case PanelCommandShow:
	case PanelCommandInsert:
		if c.Position == nil {
			return fmt.Errorf("%s command requires a position", c.Kind)
		}
	default:
		return fmt.Errorf("unknown panel command %q", c.Kind)
	}
	return nil
}

// CommandArguments is the single argument of every panel command.
type CommandArguments struct {
	TextDocument protocol.TextDocumentIdentifier `json:"textDocument"`
	Position     protocol.Position               `json:"position"`
}

// PanelCreateOrShowParams are the params of gqlPanel/createOrShow.
type PanelCreateOrShowParams struct {
	PanelID string `json:"panelId"`
	// Created is false when an existing panel is revealed.
	Created bool `json:"created"`
}

// PanelData is the payload posted to the panel.
type PanelData struct {
	Config PanelCommand `json:"config"`
	Schema *Schema      `json:"schema"`
}

// PanelPostMessageParams are the params of gqlPanel/postMessage.
type PanelPostMessageParams struct {
	PanelID string           `json:"panelId"`
	Command PanelCommandKind `json:"command"`
	Data    PanelData        `json:"data"`
}

// PanelDisposeParams are the params of gqlPanel/dispose and gqlPanel/didDispose.
type PanelDisposeParams struct {
	PanelID string `json:"panelId"`
}

// PanelMessageKind names a request sent by the panel.
type PanelMessageKind string

const (
	// PanelMessageInsert inserts Content at Position.
	PanelMessageInsert PanelMessageKind = "insert"
	// PanelMessageSave replaces TargetSource with NewContent.
	PanelMessageSave PanelMessageKind = "save"
	// PanelMessageCancel discards the pending edit and closes the panel.
	PanelMessageCancel PanelMessageKind = "cancel"
)

// PanelMessage is a message from the panel, received as gqlPanel/message.
type PanelMessage struct {
	PanelID      string               `json:"panelId,omitempty"`
	Command      PanelMessageKind     `json:"command"`
	Position     *fragment.Position   `json:"position,omitempty"`
	Content      string               `json:"content,omitempty"`
	TargetSource *fragment.Descriptor `json:"targetSource,omitempty"`
	NewContent   string               `json:"newContent,omitempty"`
}

// UnmarshalJSON rejects unknown commands and messages missing the fields their command needs.
func (m *PanelMessage) UnmarshalJSON(data []byte) error {
	type plain PanelMessage
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	switch decoded.Command {
	case PanelMessageInsert:
		if decoded.Position == nil {
			return fmt.Errorf("%s message requires a position", decoded.Command)
		}
	case PanelMessageSave:
		if decoded.TargetSource == nil {
			return fmt.Errorf("%s message requires a targetSource", decoded.Command)
		}
	case PanelMessageCancel:
	default:
		return fmt.Errorf("unknown panel message %q", decoded.Command)
	}

	*m = PanelMessage(decoded)
	return nil
}

// PanelMessageStatus reports the outcome of a panel message.
type PanelMessageStatus string

const (
	// PanelMessageApplied means the edit was applied and the panel closed.
	PanelMessageApplied PanelMessageStatus = "applied"
	// PanelMessageCancelled means the binding was cleared and the panel closed.
	PanelMessageCancelled PanelMessageStatus = "cancelled"
	// PanelMessageRejected means nothing changed and the panel is still open.
	PanelMessageRejected PanelMessageStatus = "rejected"
)

// PanelMessageResult is the reply to gqlPanel/message.
type PanelMessageResult struct {
	Status PanelMessageStatus `json:"status"`
	// Reason is the user facing explanation when Status is PanelMessageRejected.
	Reason string `json:"reason,omitempty"`
}

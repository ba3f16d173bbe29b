// Package ipc receives editor events over a local socket.
//
// Editor plugins connect to the daemon's unix socket and stream one JSON
// object per line. Each incoming line is validated against an embedded
// JSON Schema before dispatch; malformed events are logged and dropped,
// never fatal, so one broken plugin cannot stall the stream.
package ipc

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"provmark/internal/event"
)

// Event types accepted on the socket.
const (
	TypeOpen   = "open"
	TypeChange = "change"
	TypeSave   = "save"
	TypeClose  = "close"
	TypePaste  = "paste"
)

// Envelope is one editor event as it appears on the wire.
type Envelope struct {
	Type     string `json:"type"`
	URI      string `json:"uri,omitempty"`
	Language string `json:"language,omitempty"`

	// Content carries the full document text for open and save.
	Content string `json:"content,omitempty"`

	// Change fields.
	Start          event.Position `json:"start,omitempty"`
	ReplacedLength int            `json:"replaced_length,omitempty"`
	Text           string         `json:"text,omitempty"`
}

//go:embed editor-event.schema.json
var eventSchemaJSON []byte

// compileSchema compiles the embedded editor-event schema.
func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("editor-event.schema.json", bytes.NewReader(eventSchemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("editor-event.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// decode validates one wire line against the schema and unmarshals it.
func decode(schema *jsonschema.Schema, line []byte) (Envelope, error) {
	var instance any
	if err := json.Unmarshal(line, &instance); err != nil {
		return Envelope{}, fmt.Errorf("parse event: %w", err)
	}
	if err := schema.Validate(instance); err != nil {
		return Envelope{}, fmt.Errorf("validate event: %w", err)
	}

	var env Envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode event: %w", err)
	}
	return env, nil
}

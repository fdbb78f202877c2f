package rcp

import (
	"encoding/json"
	"fmt"
)

// Client identifies this bridge in the rcp_config handshake.
type Client struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Command is one outbound frame. Only the fields relevant to Type are encoded.
type Command struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Value any    `json:"value,omitempty"`

	StringsDecoded        *int    `json:"strings_decoded,omitempty"`
	JSONMinified          *int    `json:"json_minified,omitempty"`
	IncludeCacheableFlags *int    `json:"include_cacheable_flags,omitempty"`
	EncodingType          string  `json:"encoding_type,omitempty"`
	Client                *Client `json:"client,omitempty"`
}

// setCommand keeps a zero value on the wire; omitempty would drop "value":0.
type setCommand struct {
	Type  string `json:"type"`
	ID    string `json:"id"`
	Value any    `json:"value"`
}

// ConfigCommand builds the handshake that selects decoded strings and minified JSON.
func ConfigCommand(client Client) Command {
	return Command{
		Type:                  TypeConfig,
		StringsDecoded:        intPtr(1),
		JSONMinified:          intPtr(1),
		IncludeCacheableFlags: intPtr(0),
		EncodingType:          "legacy",
		Client:                &client,
	}
}

func GetCommand(id string) Command {
	return Command{Type: TypeGet, ID: id}
}

func SetCommand(id string, value any) Command {
	return Command{Type: TypeSet, ID: id, Value: value}
}

// Encode serializes a command into a text frame payload.
func Encode(cmd Command) ([]byte, error) {
	if cmd.Type == "" {
		return nil, fmt.Errorf("encode rcp command: type is required")
	}
	if cmd.Type == TypeSet {
		if cmd.ID == "" {
			return nil, fmt.Errorf("encode rcp set: id is required")
		}
		payload, err := json.Marshal(setCommand{Type: cmd.Type, ID: cmd.ID, Value: cmd.Value})
		if err != nil {
			return nil, fmt.Errorf("encode rcp set %s: %w", cmd.ID, err)
		}

		return payload, nil
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, fmt.Errorf("encode rcp %s: %w", cmd.Type, err)
	}

	return payload, nil
}

func intPtr(v int) *int {
	return &v
}

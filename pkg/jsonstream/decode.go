// pkg/jsonstream/decode.go

// Package jsonstream splits command output made of back-to-back JSON
// documents. borgmatic prints one document per repository without any
// delimiter, so document boundaries come from the JSON grammar itself.
package jsonstream

import (
	"bytes"
	"encoding/json"
)

// Decode returns every complete JSON document at the start of data, in order.
// Decoding stops at the first position where no complete document can be
// read; whatever follows is discarded without error.
func Decode(data []byte) []json.RawMessage {
	docs := make([]json.RawMessage, 0)

	dec := json.NewDecoder(bytes.NewReader(data))
	for {
		var raw json.RawMessage
		// io.EOF is the clean end, any other error is trailing garbage
		if err := dec.Decode(&raw); err != nil {
			return docs
		}
		docs = append(docs, raw)
	}
}

// DecodeString is Decode for string output.
func DecodeString(s string) []json.RawMessage {
	return Decode([]byte(s))
}

// IsArray reports whether a document is a JSON array.
func IsArray(doc json.RawMessage) bool {
	trimmed := bytes.TrimLeft(doc, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

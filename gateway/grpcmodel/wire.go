// Copyright 2025 Red Hat, Inc.
// SPDX-License-Identifier: Apache-2.0

package grpcmodel

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// The model-mesh service exposes a single tiny RPC, so the two messages are
// framed directly with the protobuf wire library instead of generated stubs:
//
//	message AnsibleRequest  { string prompt = 1; string context = 2; }
//	message AnsibleResponse { string text = 1; }

const (
	requestPromptField  protowire.Number = 1
	requestContextField protowire.Number = 2
	responseTextField   protowire.Number = 1
)

// encodeAnsibleRequest frames an AnsibleRequest message.
func encodeAnsibleRequest(prompt, context string) []byte {
	var b []byte
	if prompt != "" {
		b = protowire.AppendTag(b, requestPromptField, protowire.BytesType)
		b = protowire.AppendString(b, prompt)
	}
	if context != "" {
		b = protowire.AppendTag(b, requestContextField, protowire.BytesType)
		b = protowire.AppendString(b, context)
	}
	return b
}

// decodeAnsibleResponse extracts the text field from an AnsibleResponse
// message, skipping unknown fields.
func decodeAnsibleResponse(data []byte) (string, error) {
	var text string
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return "", fmt.Errorf("malformed response: %w", protowire.ParseError(n))
		}
		data = data[n:]

		if num == responseTextField && typ == protowire.BytesType {
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return "", fmt.Errorf("malformed response text: %w", protowire.ParseError(m))
			}
			text = v
			data = data[m:]
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, data)
		if m < 0 {
			return "", fmt.Errorf("malformed response field %d: %w", num, protowire.ParseError(m))
		}
		data = data[m:]
	}
	return text, nil
}

// rawCodec passes pre-framed message bytes through the gRPC transport.
type rawCodec struct{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	b, ok := v.(*[]byte)
	if !ok {
		return nil, fmt.Errorf("rawCodec: unexpected type %T", v)
	}
	return *b, nil
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("rawCodec: unexpected type %T", v)
	}
	*b = data
	return nil
}

func (rawCodec) Name() string {
	return "proto"
}

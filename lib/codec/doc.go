// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides chatsync's standard CBOR encoding configuration.
//
// The module uses two serialization formats with a clear boundary:
// JSON for the chat service wire protocol (package gateway) and CBOR
// for the on-disk session state file (talk.SaveState/LoadState).
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which makes state
// files diffable and content-addressable. The decoder ignores unknown
// fields for forward compatibility.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations:
//
//	encoder := codec.NewEncoder(w)
//	decoder := codec.NewDecoder(r)
package codec

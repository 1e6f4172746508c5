// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Command chatsync is a thin driver over the talk session engine:
// log in to the chat service, watch the operation stream, send
// messages, and list the local directory.
//
// Session state (auth token, revision cursor, directory snapshot) is
// persisted to the state file between invocations, so watch and send
// resume from the saved cursor instead of re-bootstrapping.
package main

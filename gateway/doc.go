// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway wraps the Talk chat service HTTP API.
//
// [Client] holds the service base URL and HTTP transport. Every API
// method is a thin typed wrapper over a JSON POST to /talk/v1/<method>;
// authenticated methods take the caller's auth token as a
// *secret.Buffer and send it as a bearer Authorization header. The
// client itself is stateless apart from the transport — the session
// layer (package talk) owns the token and decides when a call is
// allowed.
//
// All API errors are returned as [*ServiceError] with the service
// error code (AUTHENTICATION_FAILED, CONCURRENT_LOGIN, NOT_FOUND, ...)
// and HTTP status code. [IsServiceError] tests for a specific code.
//
// Content upload (for image messages) goes to /content/v1/upload as a
// raw body; the payload's BLAKE3 digest travels in the X-Content-Digest
// header so the server can deduplicate storage.
package gateway

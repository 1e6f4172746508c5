// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package talk implements the client-side session engine for the Talk
// chat service: authentication, a local directory of contacts, groups,
// and rooms, and an incremental sync dispatcher that reconciles the
// local mirror against the service's revision-numbered operation log.
//
// The package is organized around three types. Session owns the
// authentication state (token, certificate, revision cursor) and
// performs every remote call, applying results to its Directory.
// Directory is pure storage: sorted, deduplicated stores of contacts,
// groups, and rooms with lookup and membership queries. Dispatcher
// drives the sync loop, turning fetched operations into resolved
// Message values one cycle at a time.
//
// Remote access goes through the Gateway interface, implemented by
// *gateway.Client in production and by function-field fakes in tests.
package talk

// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for chatsync.
//
// Configuration is loaded from a single YAML file specified by:
//   - CHATSYNC_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery, and environment
// variables do not override individual fields. This ensures
// deterministic, auditable configuration with no hidden overrides.
// The only expansion performed is ${HOME}-style path variables for
// portability.
package config

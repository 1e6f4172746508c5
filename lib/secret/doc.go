// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret provides a memory-safe buffer for sensitive data:
// account passwords and the auth token issued by the chat service.
//
// [Buffer] allocates memory outside the Go heap via mmap(MAP_ANONYMOUS),
// locks it into physical RAM via mlock (preventing swap), and marks it
// excluded from core dumps via madvise(MADV_DONTDUMP). On Close, the
// memory is zeroed, unlocked, and unmapped. Because the memory lives
// outside the Go heap, the garbage collector cannot copy or relocate
// it, so secret material does not linger after release.
//
// Access via [Buffer.Bytes] (slice into the mmap region) or
// [Buffer.String] (short-lived heap copy for API boundaries such as an
// Authorization header). After Close, any access panics. Close is
// idempotent.
//
// Depends only on golang.org/x/sys/unix.
package secret

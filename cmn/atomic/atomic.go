// Package atomic re-exports the handful of atomic scalar types the rest of
// rxfabric needs, wrapping go.uber.org/atomic so call sites read as plain
// field accesses (Load/Store/Inc/Dec/CAS) instead of sync/atomic boilerplate.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package atomic

import "go.uber.org/atomic"

type (
	Int32 = atomic.Int32
	Int64 = atomic.Int64
	Uint32 = atomic.Uint32
	Uint64 = atomic.Uint64
	Bool   = atomic.Bool
)

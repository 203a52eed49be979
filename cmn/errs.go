// Package cmn holds ambient, cross-cutting types: the control-path error
// taxonomy and the process-wide config owner.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package cmn

import "github.com/pkg/errors"

// Control-path error taxonomy. Hot-path (RX) code never
// returns these - anomalies there become counter increments.
var (
	ErrInval = errors.New("einval: invalid argument")
	ErrPerm = errors.New("eperm: operation not permitted")
	ErrAccess = errors.New("eacces: access denied")
	ErrBusy = errors.New("ebusy: resource busy")
	ErrNoMem = errors.New("enomem: out of memory")
	ErrFault = errors.New("efault: invalid parameters")
)

// NewErrInval/NewErrPerm/... wrap a sentinel with call-site context, the way
// control-plane code distinguishes from a hot-path counter increment.
func NewErrInval(context string) error { return errors.Wrap(ErrInval, context) }
func NewErrPerm(context string) error { return errors.Wrap(ErrPerm, context) }
func NewErrAccess(context string) error { return errors.Wrap(ErrAccess, context) }
func NewErrBusy(context string) error { return errors.Wrap(ErrBusy, context) }
func NewErrNoMem(context string) error { return errors.Wrap(ErrNoMem, context) }
func NewErrFault(context string) error { return errors.Wrap(ErrFault, context) }

// Is reports whether err ultimately wraps one of the sentinels above.
func Is(err, sentinel error) bool { return errors.Is(err, sentinel) }

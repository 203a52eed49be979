// Package xreg implements grace-period (quiescent-state) reclamation for the
// atomically-swapped filter/program/ctx references a group holds: a fixed
// wait (grace period >=100ms) after the atomic swap is the conservative
// mechanism here; an equivalent epoch/RCU scheme would be just as valid.
//
// Every retirement follows a strict detach-then-wait-then-release order,
// and golang.org/x/sync/errgroup fans a batch of concurrent frees out when
// several groups go to zero membership at once.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package xreg

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/cmn/atomic"
)

// Token is a monotonically increasing epoch issued by NextEpoch. It is
// opaque to callers; its only use is ordering. group.Table does not request
// tokens: its swaps rely on the fixed grace-period wait alone.
type Token int64

// Reclaimer issues epochs and retires displaced objects after they are
// provably quiescent. One Reclaimer per process (see group.Table, which
// owns one).
type Reclaimer struct {
	epoch atomic.Int64
	grace time.Duration // overridable in tests to avoid real 100ms sleeps
}

func NewReclaimer() *Reclaimer {
	return &Reclaimer{grace: cmn.GracePeriod}
}

// SetGracePeriod overrides the default; exposed for deterministic tests.
func (r *Reclaimer) SetGracePeriod(d time.Duration) { r.grace = d }

// NextEpoch issues a new token.
func (r *Reclaimer) NextEpoch() Token { return Token(r.epoch.Inc()) }

// Retire blocks the calling goroutine - always the control path, which
// explicitly permits sleeping there - until every RX cycle that could have
// observed the pre-swap reference has completed, then invokes release.
// The conservative implementation is the fixed sleep; release is always
// called exactly once, after the wait.
func (r *Reclaimer) Retire(release func()) {
	time.Sleep(r.grace)
	release()
}

// RetireAsync is like Retire but returns immediately; done is closed once
// release has run. Used by group.Table.SetFilter and SetProgram so that
// installing a replacement doesn't block the caller across the grace period;
// group.Table's internal free uses the blocking Retire instead.
func (r *Reclaimer) RetireAsync(release func()) (done <-chan struct{}) {
	ch := make(chan struct{})
	go func() {
		r.Retire(release)
		close(ch)
	}()
	return ch
}

// RetireAll fans N retirements out concurrently and waits for all of them,
// the errgroup-based batch-teardown path leave_all exercises
// when multiple groups go to zero membership at once.
func (r *Reclaimer) RetireAll(ctx context.Context, releases []func()) error {
	g, _ := errgroup.WithContext(ctx)
	for _, release := range releases {
		release := release
		g.Go(func() error {
			r.Retire(release)
			return nil
		})
	}
	return g.Wait()
}

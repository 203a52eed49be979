package group

import (
	"context"
	"sync"

	"github.com/teris-io/shortid"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/xreg"
)

// Op identifies an operation for CheckAccess.
type Op uint8

const (
	OpJoin Op = iota
	OpLeave
	OpSetFilter
	OpSetProgram
	OpRead
)

// Table is the group table (GT): G fixed slots, all mutations serialized by
// a single coarse lock, no lock held on the RX path.
//
// A single coarse lock guards create/destroy/rename decisions while
// reads (Group()) stay lock-free.
type Table struct {
	mtx sync.Mutex
	groups [cmn.NumGroups]*Group
	dm *devmap.Map
	reclaim *xreg.Reclaimer
	numCPU int

	// snapMtx orders a live snapshot.Capture() against JoinFree's
	// slot-reinitialization so a reader never observes a group mid-reinit.
	snapMtx sync.RWMutex
}

func NewTable(numCPU int, dm *devmap.Map, reclaim *xreg.Reclaimer) *Table {
	t := &Table{dm: dm, reclaim: reclaim, numCPU: numCPU}
	for i := range t.groups {
		t.groups[i] = newGroup(i, numCPU)
	}
	return t
}

// Group returns the group at gid, for hot-path reads. Bounds are the
// caller's responsibility on the RX path (gid always comes from a mask bit
// position, which is already < NumGroups).
func (t *Table) Group(gid int) *Group { return t.groups[gid] }

func (t *Table) validGID(gid int) bool { return gid >= 0 && gid < cmn.NumGroups }

// PinForSnapshot / Unpin bracket a full-table iteration (used by package
// snapshot) so JoinFree can't reinitialize a slot mid-read.
func (t *Table) PinForSnapshot() { t.snapMtx.RLock() }
func (t *Table) Unpin() { t.snapMtx.RUnlock() }

// Join implements "join".
func (t *Table) Join(gid int, id int32, classMask uint8, requested Policy, callerPID int32) error {
	if !t.validGID(gid) {
		return cmn.NewErrInval("join: gid out of range")
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()

	g := t.groups[gid]
	if !g.InUse() {
		g.reinit(callerPID)
	}

	isMember := false
	for c := 0; c < cmn.NumClasses; c++ {
		if g.sockMask[c].Load()&(uint64(1)<<uint(id)) != 0 {
			isMember = true
			break
		}
	}

	newPolicy, ok := accessCheck(g.policy, requested, isMember, g.creatorPID, callerPID)
	if !ok {
		return cmn.NewErrPerm("join: policy check failed")
	}
	g.policy = newPolicy

	for c := 0; c < cmn.NumClasses; c++ {
		if classMask&(1<<uint(c)) != 0 {
			g.sockMask[c].Store(g.sockMask[c].Load() | (uint64(1) << uint(id)))
		}
	}
	if g.ownerID < 0 {
		g.ownerID = id
	}
	g.generation.Inc()
	return nil
}

// JoinFree implements "join_free": linear scan for the first free
// slot, then join it.
func (t *Table) JoinFree(id int32, classMask uint8, requested Policy, callerPID int32) (gid int, err error) {
	t.mtx.Lock()
	t.snapMtx.Lock() // excludes a concurrent snapshot reader while we reinit a slot
	var free *Group
	idx := -1
	for i, g := range t.groups {
		if !g.InUse() {
			free = g
			idx = i
			break
		}
	}
	if free == nil {
		t.snapMtx.Unlock()
		t.mtx.Unlock()
		return 0, cmn.NewErrBusy("join_free: no free group id")
	}
	free.reinit(callerPID)
	t.snapMtx.Unlock()
	t.mtx.Unlock()

	if err := t.Join(idx, id, classMask, requested, callerPID); err != nil {
		return 0, err
	}
	return idx, nil
}

// Leave implements "leave": clears id's bit in every class mask;
// frees the group if all masks are then zero. Leaving a non-member is a
// no-op success.
func (t *Table) Leave(gid int, id int32) error {
	if !t.validGID(gid) {
		return cmn.NewErrInval("leave: gid out of range")
	}
	t.mtx.Lock()
	g := t.groups[gid]
	if !g.InUse() {
		t.mtx.Unlock()
		return nil
	}
	bit := uint64(1) << uint(id)
	for c := 0; c < cmn.NumClasses; c++ {
		g.sockMask[c].Store(g.sockMask[c].Load() &^ bit)
	}
	g.generation.Inc()
	shouldFree := g.allZeroMasks()
	t.mtx.Unlock()

	if shouldFree {
		t.free(gid)
	}
	return nil
}

// LeaveAll implements "leave_all": leave every group id is a
// member of. Frees, when triggered, are fanned out concurrently via
// xreg.Reclaimer.RetireAll.
func (t *Table) LeaveAll(id int32) {
	t.mtx.Lock()
	toFree := make([]int, 0, cmn.NumGroups)
	bit := uint64(1) << uint(id)
	for gid, g := range t.groups {
		if !g.InUse() {
			continue
		}
		member := false
		for c := 0; c < cmn.NumClasses; c++ {
			if g.sockMask[c].Load()&bit != 0 {
				member = true
			}
			g.sockMask[c].Store(g.sockMask[c].Load() &^ bit)
		}
		if member {
			g.generation.Inc()
			if g.allZeroMasks() {
				toFree = append(toFree, gid)
			}
		}
	}
	t.mtx.Unlock()

	releases := make([]func(), 0, len(toFree))
	for _, gid := range toFree {
		gid := gid
		t.dm.Reset(uint(gid))
		releases = append(releases, func() { t.completeFree(gid) })
	}
	if len(releases) > 0 {
		_ = t.reclaim.RetireAll(context.Background(), releases)
	}
}

// CheckAccess implements "check_access": bounds, membership, and
// owner-only validation.
func (t *Table) CheckAccess(id int32, gid int, op Op) error {
	if !t.validGID(gid) {
		return cmn.NewErrInval("check_access: gid out of range")
	}
	t.mtx.Lock()
	defer t.mtx.Unlock()
	g := t.groups[gid]
	if !g.InUse() {
		return cmn.NewErrInval("check_access: group not in use")
	}
	switch op {
	case OpSetFilter, OpSetProgram:
		if g.ownerID != id {
			return cmn.NewErrAccess("check_access: owner-only operation")
		}
	case OpJoin, OpLeave, OpRead:
		// membership itself is validated by Join/Leave's own logic
	}
	return nil
}

// SetFilter implements "set_filter": atomic swap, then release
// the displaced filter after a grace period.
func (t *Table) SetFilter(gid int, id int32, f Filter) error {
	if err := t.CheckAccess(id, gid, OpSetFilter); err != nil {
		return err
	}
	g := t.groups[gid]
	var newPtr *Filter
	if f != nil {
		newPtr = &f
	}
	old := g.filterCell.Swap(newPtr)
	t.stampInstall(g)
	if old != nil {
		displaced := *old
		t.reclaim.RetireAsync(func() { releaseFilter(displaced) })
	}
	return nil
}

// SetProgram implements "set_program": atomic swap of the
// (program, ctx) pair, serialized with itself per group by virtue of
// Table.mtx guarding the swap decision (the Swap itself is lock-free, but
// two concurrent SetProgram calls on the same gid must not race on which
// "old" they each observe - CheckAccess + the table lock below enforces
// that ordering).
func (t *Table) SetProgram(gid int, id int32, p Program, ctx any) error {
	if err := t.CheckAccess(id, gid, OpSetProgram); err != nil {
		return err
	}
	t.mtx.Lock()
	g := t.groups[gid]
	var newCell *programCell
	if p != nil {
		newCell = &programCell{p: p, ctx: ctx}
	}
	old := g.programCell.Swap(newCell)
	g.generation.Inc()
	t.stampInstall(g)
	t.mtx.Unlock()

	if old != nil {
		o := *old
		t.reclaim.RetireAsync(func() { releaseProgram(o) })
	}
	return nil
}

// SetVidFilter installs (or clears, when vf==nil) the group's VID-gating
// table and flips vlan_filters_enabled accordingly.
func (t *Table) SetVidFilter(gid int, id int32, vf VidFilter) error {
	if err := t.CheckAccess(id, gid, OpSetProgram); err != nil {
		return err
	}
	g := t.groups[gid]
	var newPtr *VidFilter
	if vf != nil {
		newPtr = &vf
	}
	g.vidFilter.Store(newPtr)
	g.vlanEnabled.Store(vf != nil)
	return nil
}

func (t *Table) stampInstall(g *Group) {
	id, err := shortid.Generate()
	if err != nil {
		return
	}
	g.instID = id
}

// free is the internal free(gid) sequence: DM reset, then a blocking
// grace-period wait, then completeFree detaches filter/program/VID filter and
// clears ownership. The filter and program stay installed during the wait;
// they are not detached before it.
func (t *Table) free(gid int) {
	t.dm.Reset(uint(gid))
	t.reclaim.Retire(func() { t.completeFree(gid) })
}

func (t *Table) completeFree(gid int) {
	t.mtx.Lock()
	defer t.mtx.Unlock()
	g := t.groups[gid]
	if !g.allZeroMasks() {
		return // re-joined before reclamation ran; leave it alone
	}
	g.filterCell.Store(nil)
	g.programCell.Store(nil)
	g.vidFilter.Store(nil)
	g.vlanEnabled.Store(false)
	g.creatorPID = -1
	g.ownerID = -1
	g.policy = PolicyUndefined
	g.generation.Inc()
}

func releaseFilter(Filter) {}
func releaseProgram(programCell) {}

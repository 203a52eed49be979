// Package snapshot implements the debuggability surface for the group table
// and device map: a buntdb-backed key/value store holding msgp-encoded
// point-in-time records, read without disturbing the hot path.
//
// A control-plane capture copies live in-memory state into a wire-friendly
// struct, backed by tidwall/buntdb for the on-disk store and tinylib/msgp
// for compact wire encoding consumed by the CLI and admin API.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package snapshot

import (
	"fmt"

	"github.com/tidwall/buntdb"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/group"
)

// GroupRecord is one group's exported state.
type GroupRecord struct {
	GID int
	InUse bool
	OwnerID int32
	CreatorPID int32
	Policy uint8
	InstID string
	Generation int64
	SockMask [cmn.NumClasses]uint64
	HasFilter bool
	HasProgram bool
	VlanFilter bool
}

// DMEntry mirrors one devmap.Map row.
type DMEntry struct {
	Ifindex int32
	Queue int32
	Mask uint64
}

// Snapshot is the full point-in-time export.
type Snapshot struct {
	Groups []GroupRecord
	DM []DMEntry
}

// Capture builds a Snapshot, pinning the group table against concurrent
// JoinFree reinitialization for the duration.
func Capture(gt *group.Table, dm *devmap.Map, dmEntries []DMEntry) Snapshot {
	gt.PinForSnapshot()
	defer gt.Unpin()

	s := Snapshot{Groups: make([]GroupRecord, 0, cmn.NumGroups), DM: dmEntries}
	for gid := 0; gid < cmn.NumGroups; gid++ {
		g := gt.Group(gid)
		if !g.InUse() {
			continue
		}
		rec := GroupRecord{
			GID: gid,
			InUse: true,
			OwnerID: g.OwnerID(),
			CreatorPID: g.CreatorPID(),
			Policy: uint8(g.Policy()),
			InstID: g.InstID(),
			Generation: g.Generation(),
		}
		for c := 0; c < cmn.NumClasses; c++ {
			rec.SockMask[c] = g.SockMask(c)
		}
		rec.HasFilter = g.Filter() != nil
		p, _ := g.Program()
		rec.HasProgram = p != nil
		rec.VlanFilter = g.VlanFiltersEnabled()
		s.Groups = append(s.Groups, rec)
	}
	return s
}

// Store is the buntdb-backed persistence layer: one key per group
// ("group:<gid>"), msgp-encoded, for the CLI/admin API to read back without
// touching live engine state.
type Store struct {
	db *buntdb.DB
}

// Open opens (or creates) a buntdb file at path; pass ":memory:" for an
// ephemeral store, matching buntdb's own convention.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, cmn.NewErrFault(err.Error())
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func groupKey(gid int) string { return fmt.Sprintf("group:%d", gid) }

// SaveSnapshot persists every group record, msgp-encoded, in one buntdb
// transaction.
func (s *Store) SaveSnapshot(snap Snapshot) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		for _, rec := range snap.Groups {
			data, err := rec.MarshalMsg(nil)
			if err != nil {
				return err
			}
			if _, _, err := tx.Set(groupKey(rec.GID), string(data), nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// LoadGroup reads back one group's last-persisted record.
func (s *Store) LoadGroup(gid int) (GroupRecord, bool, error) {
	var rec GroupRecord
	var found bool
	err := s.db.View(func(tx *buntdb.Tx) error {
		val, err := tx.Get(groupKey(gid))
		if err == buntdb.ErrNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		if _, uerr := rec.UnmarshalMsg([]byte(val)); uerr != nil {
			return uerr
		}
		found = true
		return nil
	})
	return rec, found, err
}

package snapshot

import (
	"testing"

	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/xreg"
)

func TestCaptureSkipsUnusedGroups(t *testing.T) {
	dm := devmap.New()
	gt := group.NewTable(1, dm, xreg.NewReclaimer())

	if err := gt.Join(5, 1, 0x1, group.PolicyShared, 10); err != nil {
		t.Fatalf("Join: %v", err)
	}

	snap := Capture(gt, dm, nil)
	if len(snap.Groups) != 1 {
		t.Fatalf("expected exactly one in-use group captured, got %d", len(snap.Groups))
	}
	if snap.Groups[0].GID != 5 {
		t.Fatalf("expected captured GID 5, got %d", snap.Groups[0].GID)
	}
}

func TestSaveAndLoadGroupRoundTrips(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	snap := Snapshot{Groups: []GroupRecord{{
		GID: 3, InUse: true, OwnerID: 7, CreatorPID: 99,
		Policy: uint8(group.PolicyShared), InstID: "abc", Generation: 4,
		HasFilter: true, HasProgram: false, VlanFilter: true,
	}}}
	if err := store.SaveSnapshot(snap); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	rec, found, err := store.LoadGroup(3)
	if err != nil {
		t.Fatalf("LoadGroup: %v", err)
	}
	if !found {
		t.Fatal("expected to find the saved group record")
	}
	if rec.OwnerID != 7 || rec.InstID != "abc" || !rec.HasFilter || rec.HasProgram {
		t.Fatalf("round-tripped record mismatch: %+v", rec)
	}
}

func TestLoadGroupNotFound(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	_, found, err := store.LoadGroup(9)
	if err != nil {
		t.Fatalf("LoadGroup: %v", err)
	}
	if found {
		t.Fatal("expected not-found for a group never saved")
	}
}

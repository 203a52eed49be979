package stats

import "testing"

func TestSumAddsAcrossShards(t *testing.T) {
	g := NewGlobal(3)
	g.Shard(0).Recv.Add(10)
	g.Shard(1).Recv.Add(5)
	g.Shard(2).Kern.Add(2)

	totals := g.Sum()
	if totals.Recv != 15 {
		t.Fatalf("expected summed Recv==15, got %d", totals.Recv)
	}
	if totals.Kern != 2 {
		t.Fatalf("expected summed Kern==2, got %d", totals.Kern)
	}
}

func TestShardIsolatesPerCPUCounters(t *testing.T) {
	g := NewGlobal(2)
	g.Shard(0).Lost.Add(1)
	if g.Shard(1).Lost.Load() != 0 {
		t.Fatal("a write to one shard must not be visible on another")
	}
}

// Command rxfabfctl is the control-plane CLI: join/leave groups, install
// EtherType and VLAN-id filters, edit the device map, and capture snapshots, all through the
// same group.Table/devmap.Map/snapshot.Store types the fabric itself uses
// (no separate RPC layer - rxfabfctl links the control plane in-process,
// wrapping an in-process client around fabric state).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/urfave/cli"

	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/snapshot"
	"github.com/NVIDIA/rxfabric/xreg"
)

var (
	gt  *group.Table
	dm  *devmap.Map
	snp *snapshot.Store
)

func main() {
	app := cli.NewApp()
	app.Name = "rxfabfctl"
	app.Usage = "inspect and drive the packet-capture fabric's control plane"
	app.Version = "1.0.0"

	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "db", Value: ":memory:", Usage: "snapshot store path"},
		cli.IntFlag{Name: "cpus", Value: 4, Usage: "number of per-CPU shards"},
	}
	app.Before = func(c *cli.Context) error {
		reclaim := xreg.NewReclaimer()
		dm = devmap.New()
		gt = group.NewTable(c.Int("cpus"), dm, reclaim)
		var err error
		snp, err = snapshot.Open(c.String("db"))
		return err
	}
	app.After = func(*cli.Context) error {
		if snp != nil {
			return snp.Close()
		}
		return nil
	}

	app.Commands = []cli.Command{
		joinCmd,
		joinFreeCmd,
		leaveCmd,
		setFilterCmd,
		setVidFilterCmd,
		devmapCmd,
		snapshotCmd,
		listDBCmd,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// parseID parses a caller-supplied socket id: a 32-bit fd/handle value on
// the systems this fabric models, never an arbitrary opaque string.
func parseID(s string) (int32, error) {
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

var joinCmd = cli.Command{
	Name:      "join",
	Usage:     "join a socket (identified by its fd/handle) to a group",
	ArgsUsage: "GID ID CLASS_MASK POLICY CALLER_PID",
	Action: func(c *cli.Context) error {
		if c.NArg() < 5 {
			return cli.NewExitError("join requires: GID ID CLASS_MASK POLICY CALLER_PID", 1)
		}
		gid, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return err
		}
		id, err := parseID(c.Args().Get(1))
		if err != nil {
			return err
		}
		classMask, err := strconv.ParseUint(c.Args().Get(2), 0, 8)
		if err != nil {
			return err
		}
		policy, err := strconv.Atoi(c.Args().Get(3))
		if err != nil {
			return err
		}
		pid, err := strconv.Atoi(c.Args().Get(4))
		if err != nil {
			return err
		}
		if err := gt.Join(gid, id, uint8(classMask), group.Policy(policy), int32(pid)); err != nil {
			return err
		}
		fmt.Printf("joined group %d\n", gid)
		return nil
	},
}

var joinFreeCmd = cli.Command{
	Name:      "join-free",
	Usage:     "join a socket to the first available group",
	ArgsUsage: "ID CLASS_MASK POLICY CALLER_PID",
	Action: func(c *cli.Context) error {
		if c.NArg() < 4 {
			return cli.NewExitError("join-free requires: ID CLASS_MASK POLICY CALLER_PID", 1)
		}
		id, err := parseID(c.Args().Get(0))
		if err != nil {
			return err
		}
		classMask, err := strconv.ParseUint(c.Args().Get(1), 0, 8)
		if err != nil {
			return err
		}
		policy, err := strconv.Atoi(c.Args().Get(2))
		if err != nil {
			return err
		}
		pid, err := strconv.Atoi(c.Args().Get(3))
		if err != nil {
			return err
		}
		gid, err := gt.JoinFree(id, uint8(classMask), group.Policy(policy), int32(pid))
		if err != nil {
			return err
		}
		fmt.Printf("joined free group %d\n", gid)
		return nil
	},
}

var leaveCmd = cli.Command{
	Name:      "leave",
	Usage:     "leave a group",
	ArgsUsage: "GID ID",
	Action: func(c *cli.Context) error {
		if c.NArg() < 2 {
			return cli.NewExitError("leave requires: GID ID", 1)
		}
		gid, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return err
		}
		id, err := parseID(c.Args().Get(1))
		if err != nil {
			return err
		}
		return gt.Leave(gid, id)
	},
}

var setFilterCmd = cli.Command{
	Name:      "set-filter",
	Usage:     "install the built-in EtherType-allow filter on a group",
	ArgsUsage: "GID ID ETHERTYPE...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return cli.NewExitError("set-filter requires: GID ID ETHERTYPE...", 1)
		}
		gid, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return err
		}
		id, err := parseID(c.Args().Get(1))
		if err != nil {
			return err
		}
		ets := make([]uint16, 0, c.NArg()-2)
		for _, a := range c.Args()[2:] {
			v, err := strconv.ParseUint(a, 0, 16)
			if err != nil {
				return err
			}
			ets = append(ets, uint16(v))
		}
		return gt.SetFilter(gid, id, newEtherTypeFilter(ets))
	},
}

var setVidFilterCmd = cli.Command{
	Name:      "set-vid-filter",
	Usage:     "install a bitmap VLAN-id filter on a group, allowing the given VIDs",
	ArgsUsage: "GID ID VID...",
	Action: func(c *cli.Context) error {
		if c.NArg() < 3 {
			return cli.NewExitError("set-vid-filter requires: GID ID VID...", 1)
		}
		gid, err := strconv.Atoi(c.Args().Get(0))
		if err != nil {
			return err
		}
		id, err := parseID(c.Args().Get(1))
		if err != nil {
			return err
		}
		vf := group.NewBitmapVidFilter()
		for _, a := range c.Args()[2:] {
			v, err := strconv.ParseUint(a, 10, 16)
			if err != nil {
				return err
			}
			vf.Set(uint16(v), true)
		}
		return gt.SetVidFilter(gid, id, vf)
	},
}

var devmapCmd = cli.Command{
	Name:  "devmap",
	Usage: "device-map operations",
	Subcommands: []cli.Command{
		{
			Name:      "attach",
			ArgsUsage: "IFINDEX QUEUE GID",
			Action: func(c *cli.Context) error {
				ifindex, _ := strconv.Atoi(c.Args().Get(0))
				queue, _ := strconv.Atoi(c.Args().Get(1))
				gid, _ := strconv.Atoi(c.Args().Get(2))
				dm.Attach(int32(ifindex), int32(queue), uint(gid))
				return nil
			},
		},
		{
			Name:      "detach",
			ArgsUsage: "IFINDEX QUEUE GID",
			Action: func(c *cli.Context) error {
				ifindex, _ := strconv.Atoi(c.Args().Get(0))
				queue, _ := strconv.Atoi(c.Args().Get(1))
				gid, _ := strconv.Atoi(c.Args().Get(2))
				dm.Detach(int32(ifindex), int32(queue), uint(gid))
				return nil
			},
		},
		{
			Name:      "lookup",
			ArgsUsage: "IFINDEX QUEUE",
			Action: func(c *cli.Context) error {
				ifindex, _ := strconv.Atoi(c.Args().Get(0))
				queue, _ := strconv.Atoi(c.Args().Get(1))
				mask := dm.Lookup(int32(ifindex), int32(queue))
				fmt.Printf("0x%016x\n", mask)
				return nil
			},
		},
	},
}

var snapshotCmd = cli.Command{
	Name:  "snapshot",
	Usage: "capture and persist the current group-table state",
	Action: func(c *cli.Context) error {
		snap := snapshot.Capture(gt, dm, nil)
		if err := snp.SaveSnapshot(snap); err != nil {
			return err
		}
		for _, g := range snap.Groups {
			fmt.Printf("group %d: owner=%d policy=%d inst=%s filter=%v program=%v\n",
				g.GID, g.OwnerID, g.Policy, g.InstID, g.HasFilter, g.HasProgram)
		}
		return nil
	},
}

var listDBCmd = cli.Command{
	Name:      "list-db",
	Usage:     "list buntdb store files under a directory (for picking a --db path)",
	ArgsUsage: "DIR",
	Action: func(c *cli.Context) error {
		dir := "."
		if c.NArg() > 0 {
			dir = c.Args().Get(0)
		}
		return godirwalk.Walk(dir, &godirwalk.Options{
			Callback: func(path string, de *godirwalk.Dirent) error {
				if de.IsDir() || !strings.HasSuffix(path, ".db") {
					return nil
				}
				fmt.Println(path)
				return nil
			},
			Unsorted: true,
		})
	},
}

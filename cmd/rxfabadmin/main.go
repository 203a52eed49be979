// Command rxfabadmin serves a small JWT-authenticated HTTP control-plane API
// in front of group.Table/devmap.Map/stats.Exporter, using fasthttp for the
// listener the same way the domain stack's other high-throughput components
// (rx.Engine, socket.Socket) avoid net/http's per-request allocation.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package main

import (
	"flag"
	"log"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/devmap"
	"github.com/NVIDIA/rxfabric/group"
	"github.com/NVIDIA/rxfabric/snapshot"
	"github.com/NVIDIA/rxfabric/stats"
	"github.com/NVIDIA/rxfabric/xreg"
)

var (
	jwtSecret []byte
	jsonAPI   = jsoniter.ConfigCompatibleWithStandardLibrary
)

type server struct {
	gt     *group.Table
	dm     *devmap.Map
	global *stats.Global
	snap   *snapshot.Store
}

func main() {
	addr := flag.String("listen", ":8443", "listen address")
	secret := flag.String("jwt-secret", "", "HMAC secret for bearer-token verification")
	dbPath := flag.String("db", ":memory:", "snapshot store path")
	numCPU := flag.Int("cpus", 4, "number of per-CPU shards")
	flag.Parse()

	if *secret == "" {
		log.Fatal("jwt-secret is required")
	}
	jwtSecret = []byte(*secret)

	reclaim := xreg.NewReclaimer()
	dm := devmap.New()
	gt := group.NewTable(*numCPU, dm, reclaim)
	global := stats.NewGlobal(*numCPU)

	snap, err := snapshot.Open(*dbPath)
	if err != nil {
		log.Fatalf("open snapshot store: %v", err)
	}
	defer snap.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(stats.NewExporter(global, gt))
	mh := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	s := &server{gt: gt, dm: dm, global: global, snap: snap}

	handler := func(ctx *fasthttp.RequestCtx) {
		path := string(ctx.Path())
		switch {
		case path == "/metrics":
			fasthttpadaptor.NewFastHTTPHandler(mh)(ctx)
		case path == "/healthz":
			ctx.SetStatusCode(fasthttp.StatusOK)
			ctx.SetBodyString("ok")
		default:
			if !authorize(ctx) {
				ctx.SetStatusCode(fasthttp.StatusUnauthorized)
				ctx.SetBodyString("unauthorized")
				return
			}
			s.route(ctx, path)
		}
	}

	log.Printf("rxfabadmin listening on %s", *addr)
	if err := fasthttp.ListenAndServe(*addr, handler); err != nil {
		log.Fatal(err)
	}
}

func authorize(ctx *fasthttp.RequestCtx) bool {
	auth := string(ctx.Request.Header.Peek("Authorization"))
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return false
	}
	tokStr := strings.TrimPrefix(auth, prefix)
	tok, err := jwt.Parse(tokStr, func(t *jwt.Token) (any, error) {
		return jwtSecret, nil
	})
	return err == nil && tok.Valid
}

func (s *server) route(ctx *fasthttp.RequestCtx, path string) {
	switch {
	case path == "/v1/snapshot":
		s.handleSnapshot(ctx)
	case strings.HasPrefix(path, "/v1/groups/"):
		s.handleGroup(ctx, strings.TrimPrefix(path, "/v1/groups/"))
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *server) handleSnapshot(ctx *fasthttp.RequestCtx) {
	snap := snapshot.Capture(s.gt, s.dm, nil)
	if err := s.snap.SaveSnapshot(snap); err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString(err.Error())
		return
	}
	body, _ := jsonAPI.Marshal(snap)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *server) handleGroup(ctx *fasthttp.RequestCtx, rest string) {
	gid, err := strconv.Atoi(rest)
	if err != nil || gid < 0 || gid >= cmn.NumGroups {
		ctx.SetStatusCode(fasthttp.StatusBadRequest)
		return
	}
	g := s.gt.Group(gid)
	if !g.InUse() {
		ctx.SetStatusCode(fasthttp.StatusNotFound)
		return
	}
	sum := g.SumStats()
	resp := struct {
		GID   int    `json:"gid"`
		Owner int32  `json:"owner_id"`
		Inst  string `json:"inst_id"`
		Recv  int64  `json:"recv"`
		Drop  int64  `json:"drop"`
		Frwd  int64  `json:"frwd"`
		Kern  int64  `json:"kern"`
	}{
		GID: gid, Owner: g.OwnerID(), Inst: g.InstID(),
		Recv: sum.Recv.Load(), Drop: sum.Drop.Load(), Frwd: sum.Frwd.Load(), Kern: sum.Kern.Load(),
	}
	body, _ := jsonAPI.Marshal(resp)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

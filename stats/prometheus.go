package stats

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NVIDIA/rxfabric/cmn"
	"github.com/NVIDIA/rxfabric/group"
)

// Exporter adapts the per-CPU Global counters and a group.Table's per-group
// stats into prometheus.Collector, so the ambient metrics surface mirrors
// exactly what RX increments, never anything the out-of-scope proc/stats
// exporter itself would own.
type Exporter struct {
	global *Global
	gt *group.Table

	recv *prometheus.Desc
	kern *prometheus.Desc
	quit *prometheus.Desc
	frwd *prometheus.Desc
	disc *prometheus.Desc
	lost *prometheus.Desc

	groupRecv *prometheus.Desc
	groupDrop *prometheus.Desc
	groupFrwd *prometheus.Desc
	groupKern *prometheus.Desc
}

func NewExporter(global *Global, gt *group.Table) *Exporter {
	return &Exporter{
		global: global,
		gt: gt,
		recv: prometheus.NewDesc("rxfabric_recv_total", "Frames received across all CPUs.", nil, nil),
		kern: prometheus.NewDesc("rxfabric_kern_total", "Frames pushed to the kernel receive path.", nil, nil),
		quit: prometheus.NewDesc("rxfabric_kern_clone_failed_total", "Kernel-forward clone failures.", nil, nil),
		frwd: prometheus.NewDesc("rxfabric_device_forward_total", "Frames forwarded to devices.", nil, nil),
		disc: prometheus.NewDesc("rxfabric_device_forward_failed_total", "Device-forward failures.", nil, nil),
		lost: prometheus.NewDesc("rxfabric_socket_queue_lost_total", "Frames dropped on a full socket queue.", nil, nil),
		groupRecv: prometheus.NewDesc("rxfabric_group_recv_total", "Frames seen by a group.", []string{"gid"}, nil),
		groupDrop: prometheus.NewDesc("rxfabric_group_drop_total", "Frames dropped by a group's filter/program/VLAN gate.", []string{"gid"}, nil),
		groupFrwd: prometheus.NewDesc("rxfabric_group_device_forward_total", "Device forwards issued by a group's program.", []string{"gid"}, nil),
		groupKern: prometheus.NewDesc("rxfabric_group_kernel_push_total", "Kernel pushes issued by a group's program.", []string{"gid"}, nil),
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- e.recv
	ch <- e.kern
	ch <- e.quit
	ch <- e.frwd
	ch <- e.disc
	ch <- e.lost
	ch <- e.groupRecv
	ch <- e.groupDrop
	ch <- e.groupFrwd
	ch <- e.groupKern
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	t := e.global.Sum()
	ch <- prometheus.MustNewConstMetric(e.recv, prometheus.CounterValue, float64(t.Recv))
	ch <- prometheus.MustNewConstMetric(e.kern, prometheus.CounterValue, float64(t.Kern))
	ch <- prometheus.MustNewConstMetric(e.quit, prometheus.CounterValue, float64(t.Quit))
	ch <- prometheus.MustNewConstMetric(e.frwd, prometheus.CounterValue, float64(t.Frwd))
	ch <- prometheus.MustNewConstMetric(e.disc, prometheus.CounterValue, float64(t.Disc))
	ch <- prometheus.MustNewConstMetric(e.lost, prometheus.CounterValue, float64(t.Lost))

	for gid := 0; gid < cmn.NumGroups; gid++ {
		g := e.gt.Group(gid)
		if !g.InUse() {
			continue
		}
		s := g.SumStats()
		label := strconv.Itoa(gid)
		ch <- prometheus.MustNewConstMetric(e.groupRecv, prometheus.CounterValue, float64(s.Recv.Load()), label)
		ch <- prometheus.MustNewConstMetric(e.groupDrop, prometheus.CounterValue, float64(s.Drop.Load()), label)
		ch <- prometheus.MustNewConstMetric(e.groupFrwd, prometheus.CounterValue, float64(s.Frwd.Load()), label)
		ch <- prometheus.MustNewConstMetric(e.groupKern, prometheus.CounterValue, float64(s.Kern.Load()), label)
	}
}

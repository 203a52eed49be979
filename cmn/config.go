package cmn

import (
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Build-time group limits: declared once, used
// consistently everywhere; not reloadable at runtime.
const (
	NumGroups = 64 // G
	NumSockets = 64 // S
	NumClasses = 8 // C
	BatchCap = 16 // B - GC batch capacity, B <= 64
	NumPersist = 8 // M - persistent scratch slots per group
	NumCounters = 8 // K - per-CPU program counters per group
	NumVIDs = 4096
)

// GracePeriod is the conservative quiescent-state wait: long
// enough that no RX cycle in progress when a filter/program was swapped can
// still observe the displaced object.
const GracePeriod = 100 * time.Millisecond

// AccumulateWindow is the "still accumulating" threshold from step
// 3e: below batch_len, keep accumulating as long as the last enqueue was
// less than this long ago.
const AccumulateWindow = time.Millisecond

// TimerFlush is the per-CPU stalled-batch timer period.
const TimerFlush = 100 * time.Millisecond

// Config holds the runtime-reloadable parameters of the capture fabric.
type Config struct {
	DirectCapture bool `yaml:"direct_capture"`
	CaptureIncoming bool `yaml:"capture_incoming"`
	CaptureOutgoing bool `yaml:"capture_outgoing"`
	CapLen int `yaml:"cap_len"`
	MaxLen int `yaml:"max_len"`
	MaxQueueSlots int `yaml:"max_queue_slots"`
	BatchLen int `yaml:"batch_len"`
	SkbPoolSize int `yaml:"skb_pool_size"`
	VlanUntag bool `yaml:"vl_untag"`
	IdleFlush time.Duration `yaml:"idle_flush"`
	Verbosity map[string]int `yaml:"verbosity"`

	// ForwardToKernel gates step 8's kernel-forwarding pass for
	// direct-captured frames. Not itself named in module parameter
	// list, but step 8's "forward to kernel enabled" condition implies a
	// toggle distinct from direct_capture.
	ForwardToKernel bool `yaml:"forward_to_kernel"`
}

// DefaultConfig returns the illustrative default parameter set.
func DefaultConfig() *Config {
	return &Config{
		DirectCapture: false,
		CaptureIncoming: true,
		CaptureOutgoing: false,
		CapLen: 262144,
		MaxLen: 65536,
		MaxQueueSlots: 226144,
		BatchLen: BatchCap,
		SkbPoolSize: 1024,
		VlanUntag: false,
		IdleFlush: TimerFlush,
		Verbosity: map[string]int{},
		ForwardToKernel: true,
	}
}

// Validate enforces 0 < batch_len <= B <= 64 and a non-negative
// skb_pool_size; no upper bound is enforced on skb_pool_size.
func (c *Config) Validate() error {
	if c.BatchLen <= 0 || c.BatchLen > BatchCap {
		return NewErrFault("batch_len must satisfy 0 < batch_len <= BatchCap")
	}
	if BatchCap > 64 {
		return NewErrFault("BatchCap must be <= 64")
	}
	if c.SkbPoolSize < 0 {
		return NewErrFault("skb_pool_size must be >= 0")
	}
	return nil
}

// FastV is the module-verbosity gate used throughout the hot path the way
// a verbosity-gated log call
// guarded by this never executes its format args unless verbosity is set.
func (c *Config) FastV(level int, module string) bool {
	if c.Verbosity == nil {
		return false
	}
	return c.Verbosity[module] >= level
}

// gco is the process-wide Global Config Owner: readers take a lock-free
// atomic load, writers install a brand-new *Config via CAS/Store, exactly
// an atomic-pointer-swap pattern.
type globalCfgOwner struct {
	p atomic.Pointer[Config]
}

var GCO = &globalCfgOwner{}

func init() { GCO.p.Store(DefaultConfig()) }

func (g *globalCfgOwner) Get() *Config { return g.p.Load() }

func (g *globalCfgOwner) Put(c *Config) { g.p.Store(c) }

// Load replaces the live config by parsing YAML bytes, validating before
// install.
func (g *globalCfgOwner) Load(data []byte) error {
	c := DefaultConfig()
	if err := yaml.Unmarshal(data, c); err != nil {
		return NewErrFault(err.Error())
	}
	if err := c.Validate(); err != nil {
		return err
	}
	g.Put(c)
	return nil
}

// Rom ("read-only-mostly") is a thin convenience wrapper used at call sites
// that only need verbosity gating or a couple of timeouts without
// threading *Config everywhere.
var Rom = &romT{}

type romT struct{}

func (*romT) FastV(level int, module string) bool { return GCO.Get().FastV(level, module) }
func (*romT) CplaneOperation() time.Duration { return 2 * time.Second }
func (*romT) MaxKeepalive() time.Duration { return 10 * time.Second }

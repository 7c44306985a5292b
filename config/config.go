// Package config holds the system configuration of the simulator: the cores,
// their TLBs, the cache levels, main memory and the interconnect.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/czhu95/zsim/mem"
	"github.com/czhu95/zsim/network"
	"github.com/czhu95/zsim/timing/cache"
	"github.com/czhu95/zsim/timing/repl"
	"github.com/czhu95/zsim/timing/tlb"
)

// MemoryConfig configures main memory.
type MemoryConfig struct {
	Name    string `yaml:"name"`
	Latency uint64 `yaml:"latency"`
}

// NetworkConfig configures the interconnect. Links listed inline are added to
// those read from File. With neither, the interconnect has no latency.
type NetworkConfig struct {
	File  string         `yaml:"file,omitempty"`
	Links []network.Link `yaml:"links,omitempty"`
}

// CacheLevel configures one level of the hierarchy. A private level has one
// cache per core, named after the level and the core. A shared level has
// Banks caches serving every core, selected by address.
type CacheLevel struct {
	Name          string `yaml:"name"`
	Lines         int    `yaml:"lines"`
	Ways          int    `yaml:"ways"`
	AccessLatency uint64 `yaml:"access_latency"`
	InvLatency    uint64 `yaml:"inv_latency"`
	Repl          string `yaml:"repl"`
	Private       bool   `yaml:"private"`
	Banks         int    `yaml:"banks,omitempty"`
}

// CacheConfig returns the configuration of the cache called name.
func (l CacheLevel) CacheConfig(name string) cache.Config {
	return cache.Config{
		Name:          name,
		NumLines:      l.Lines,
		Ways:          l.Ways,
		AccessLatency: l.AccessLatency,
		InvLatency:    l.InvLatency,
		Repl:          l.Repl,
	}
}

// NumBanks returns the number of caches of a shared level.
func (l CacheLevel) NumBanks() int {
	if l.Banks <= 0 {
		return 1
	}

	return l.Banks
}

// TLBConfig configures the TLB of every core.
type TLBConfig struct {
	Lines         int                `yaml:"lines"`
	Ways          int                `yaml:"ways"`
	AccessLatency uint64             `yaml:"access_latency"`
	InvLatency    uint64             `yaml:"inv_latency"`
	Repl          string             `yaml:"repl"`
	PageWalk      tlb.PageWalkConfig `yaml:"page_walk"`
}

// Config is the configuration of a simulated system.
type Config struct {
	Cores   int           `yaml:"cores"`
	Memory  MemoryConfig  `yaml:"memory"`
	Network NetworkConfig `yaml:"network"`

	// Caches lists the levels from the one closest to the cores upward.
	Caches []CacheLevel `yaml:"caches"`

	TLB TLBConfig `yaml:"tlb"`

	// Processes lists the processes of the workload. Process i runs on the
	// cores its mask selects.
	Processes []ProcessConfig `yaml:"processes,omitempty"`

	// Schedule maps cores to the process they run and overrides the masks
	// of Processes. Cores placed by neither run process 0.
	Schedule map[uint32]uint32 `yaml:"schedule,omitempty"`
}

// ProcessConfig configures one process.
type ProcessConfig struct {
	// Mask selects the cores of the process, as read by ParseMask.
	Mask string `yaml:"mask"`
}

// Default returns a two-core system with private L2s, a shared L3 and
// 64-entry TLBs.
func Default() *Config {
	t := tlb.DefaultConfig()

	return &Config{
		Cores: 2,
		Memory: MemoryConfig{
			Name:    "mem",
			Latency: 200,
		},
		Caches: []CacheLevel{
			levelOf(cache.DefaultL2Config(), true),
			levelOf(cache.DefaultL3Config(), false),
		},
		TLB: TLBConfig{
			Lines:         t.NumLines,
			Ways:          4,
			AccessLatency: t.AccessLatency,
			InvLatency:    t.InvLatency,
			Repl:          "lru",
			PageWalk:      t.PageWalk,
		},
	}
}

func levelOf(c cache.Config, private bool) CacheLevel {
	l := CacheLevel{
		Name:          c.Name,
		Lines:         c.NumLines,
		Ways:          c.Ways,
		AccessLatency: c.AccessLatency,
		InvLatency:    c.InvLatency,
		Repl:          c.Repl,
		Private:       private,
	}
	if !private {
		l.Banks = 1
	}

	return l
}

// Load reads a configuration file. Fields missing from the file keep their
// default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// Parse reads a configuration. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	config := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	return config, nil
}

// Save writes the configuration to a file, annotated with what each section
// controls.
func (c *Config) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	if err := c.Write(f); err != nil {
		_ = f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var sectionComments = map[string]string{
	"cores":     "number of simulated cores",
	"memory":    "main memory at the top of the hierarchy",
	"network":   "interconnect latencies, in cycles per hop",
	"caches":    "cache levels, closest to the cores first",
	"tlb":       "per-core translation cache",
	"processes": "processes and the cores they run on",
	"schedule":  "core to process assignment, overriding process masks",
}

// Write encodes the annotated configuration to w.
func (c *Config) Write(w io.Writer) error {
	var doc yaml.Node
	if err := doc.Encode(c); err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	doc.HeadComment = "Effective zsim configuration, defaults included."
	for i := 0; i+1 < len(doc.Content); i += 2 {
		key := doc.Content[i]
		if comment, ok := sectionComments[key.Value]; ok {
			key.HeadComment = comment
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return enc.Close()
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Caches = append([]CacheLevel(nil), c.Caches...)
	clone.Network.Links = append([]network.Link(nil), c.Network.Links...)
	clone.Processes = append([]ProcessConfig(nil), c.Processes...)
	if c.Schedule != nil {
		clone.Schedule = make(map[uint32]uint32, len(c.Schedule))
		for k, v := range c.Schedule {
			clone.Schedule[k] = v
		}
	}

	return &clone
}

// ProcessOf returns the process scheduled on core: the one Schedule names,
// else the first process whose mask selects it, else process 0.
func (c *Config) ProcessOf(core uint32) uint32 {
	if proc, ok := c.Schedule[core]; ok {
		return proc
	}

	for i, p := range c.Processes {
		mask, err := ParseMask(p.Mask, c.Cores)
		if err == nil && int(core) < len(mask) && mask[core] {
			return uint32(i)
		}
	}

	return 0
}

// TLBConfig returns the configuration of the TLB of core.
func (c *Config) TLBConfig(core uint32) tlb.Config {
	return tlb.Config{
		Name:          fmt.Sprintf("tlb-%d", core),
		NumLines:      c.TLB.Lines,
		AccessLatency: c.TLB.AccessLatency,
		InvLatency:    c.TLB.InvLatency,
		SrcID:         core,
		PageWalk:      c.TLB.PageWalk,
	}
}

// Validate checks that the configuration describes a buildable system.
func (c *Config) Validate() error {
	if c.Cores <= 0 {
		return fmt.Errorf("cores must be > 0")
	}

	if c.Memory.Name == "" {
		return fmt.Errorf("memory needs a name")
	}
	if c.Memory.Latency == 0 {
		return fmt.Errorf("memory latency must be > 0")
	}

	seenShared := false
	names := map[string]bool{c.Memory.Name: true}
	for i, l := range c.Caches {
		if names[l.Name] {
			return fmt.Errorf("caches[%d]: duplicate name %q", i, l.Name)
		}
		names[l.Name] = true

		if err := l.CacheConfig(l.Name).Validate(); err != nil {
			return fmt.Errorf("caches[%d]: %w", i, err)
		}

		if l.Private {
			if seenShared {
				return fmt.Errorf("caches[%d]: private level %s above a shared level",
					i, l.Name)
			}
			if l.Banks > 1 {
				return fmt.Errorf("caches[%d]: private level %s cannot be banked",
					i, l.Name)
			}
		} else {
			seenShared = true
		}
	}

	if err := c.TLBConfig(0).Validate(); err != nil {
		return err
	}
	if c.TLB.Ways <= 0 || c.TLB.Lines%c.TLB.Ways != 0 {
		return fmt.Errorf("tlb: %d lines cannot be split into %d ways",
			c.TLB.Lines, c.TLB.Ways)
	}
	if _, err := repl.New(c.TLB.Repl); err != nil {
		return fmt.Errorf("tlb: %w", err)
	}

	if len(c.Processes) > mem.MaxProcs {
		return fmt.Errorf("processes: %d listed, at most %d",
			len(c.Processes), mem.MaxProcs)
	}

	owners := make(map[int]int)
	for i, p := range c.Processes {
		mask, err := ParseMask(p.Mask, c.Cores)
		if err != nil {
			return fmt.Errorf("processes[%d]: %w", i, err)
		}

		for core, set := range mask {
			if !set {
				continue
			}
			if other, ok := owners[core]; ok {
				return fmt.Errorf("processes[%d]: core %d already runs process %d",
					i, core, other)
			}
			owners[core] = i
		}
	}

	for core, proc := range c.Schedule {
		if int(core) >= c.Cores {
			return fmt.Errorf("schedule: core %d does not exist", core)
		}
		if proc >= mem.MaxProcs {
			return fmt.Errorf("schedule: process %d on core %d, at most %d processes",
				proc, core, mem.MaxProcs)
		}
	}

	return nil
}

// BuildNetwork returns the interconnect described by the configuration, or
// nil when it has no links.
func (c *Config) BuildNetwork() (*network.Network, error) {
	links := append([]network.Link(nil), c.Network.Links...)
	if c.Network.File != "" {
		f, err := os.Open(c.Network.File)
		if err != nil {
			return nil, fmt.Errorf("failed to open network file: %w", err)
		}
		defer func() { _ = f.Close() }()

		fileLinks, err := network.Parse(f)
		if err != nil {
			return nil, fmt.Errorf("failed to parse network file %s: %w",
				c.Network.File, err)
		}
		links = append(fileLinks, links...)
	}

	if len(links) == 0 {
		return nil, nil
	}

	return network.New(links), nil
}

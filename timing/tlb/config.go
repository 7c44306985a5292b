package tlb

import (
	"fmt"

	"github.com/czhu95/zsim/mem"
)

// PageWalkConfig controls the modeled fetch of the page-table line holding
// a missing translation.
type PageWalkConfig struct {
	// Enabled turns page-walk modeling on.
	Enabled bool `yaml:"enabled"`
	// Latency in cycles added before the page-table line is fetched.
	Latency uint64 `yaml:"latency"`
	// PTEsPerLine is the number of page-table entries in one memory line.
	PTEsPerLine uint64 `yaml:"ptes_per_line"`
	// LineBits is the line-address bit width of the hierarchy. The
	// page-table line index is shifted right by it to form the fetched
	// address. It follows mem.LineBits and is not read from configuration.
	LineBits uint `yaml:"-"`
}

// Config holds TLB configuration parameters.
type Config struct {
	// Name identifies the TLB in statistics and the network.
	Name string `yaml:"name"`
	// NumLines is the number of translations the TLB holds.
	NumLines int `yaml:"lines"`
	// AccessLatency in cycles, charged on every access.
	AccessLatency uint64 `yaml:"access_latency"`
	// InvLatency in cycles. TLBs never accept invalidations; the value is
	// validated for symmetry with other caches.
	InvLatency uint64 `yaml:"inv_latency"`
	// SrcID identifies the issuing core in requests.
	SrcID uint32 `yaml:"-"`
	// PageWalk configures page-walk modeling.
	PageWalk PageWalkConfig `yaml:"page_walk"`
}

// DefaultConfig returns a 64-entry TLB with a one-cycle lookup and page-walk
// modeling off.
func DefaultConfig() Config {
	return Config{
		Name:          "tlb",
		NumLines:      64,
		AccessLatency: 1,
		InvLatency:    1,
		PageWalk: PageWalkConfig{
			Latency:     20,
			PTEsPerLine: 8,
			LineBits:    mem.LineBits,
		},
	}
}

// Validate checks that the configuration describes a usable TLB.
func (c Config) Validate() error {
	if c.NumLines <= 0 {
		return fmt.Errorf("tlb %s: lines must be positive, got %d",
			c.Name, c.NumLines)
	}

	if c.AccessLatency == 0 {
		return fmt.Errorf("tlb %s: access latency must be positive", c.Name)
	}

	if c.InvLatency == 0 {
		return fmt.Errorf("tlb %s: invalidation latency must be positive",
			c.Name)
	}

	if c.PageWalk.Enabled {
		if c.PageWalk.PTEsPerLine == 0 {
			return fmt.Errorf("tlb %s: page walk needs PTEs per line", c.Name)
		}

		if c.PageWalk.LineBits >= 64 {
			return fmt.Errorf("tlb %s: page walk line bits %d out of range",
				c.Name, c.PageWalk.LineBits)
		}
	}

	return nil
}

// Package network models the interconnect between hierarchy components as a
// table of one-way link latencies.
package network

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
)

// A Link is the one-way latency between two named components.
type Link struct {
	Src     string `yaml:"src"`
	Dst     string `yaml:"dst"`
	Latency uint64 `yaml:"latency"`
}

// Network answers round-trip latency queries between components.
type Network struct {
	delays map[string]uint64
}

// New creates a network from a list of links.
func New(links []Link) *Network {
	n := &Network{delays: make(map[string]uint64)}
	for _, l := range links {
		n.delays[key(l.Src, l.Dst)] = l.Latency
	}

	return n
}

// Load reads a network description where each line holds
// "<src> <dst> <latency>". Blank lines and lines starting with '#' are
// ignored.
func Load(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open network file: %w", err)
	}
	defer func() { _ = f.Close() }()

	links, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse network file %s: %w", path, err)
	}

	return New(links), nil
}

// Parse reads links in the text format accepted by Load.
func Parse(r io.Reader) ([]Link, error) {
	var links []Link

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d",
				lineNo, len(fields))
		}

		lat, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad latency %q: %w",
				lineNo, fields[2], err)
		}

		links = append(links, Link{Src: fields[0], Dst: fields[1], Latency: lat})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return links, nil
}

// RTT returns the round-trip latency from src to dst. A nil network has no
// latency. Asking for a pair that has no link is a configuration error.
func (n *Network) RTT(src, dst string) uint64 {
	if n == nil {
		return 0
	}

	d, ok := n.delays[key(src, dst)]
	if !ok {
		log.Panicf("network: no link from %s to %s", src, dst)
	}

	return 2 * d
}

// HasLink returns true if a link from src to dst is configured.
func (n *Network) HasLink(src, dst string) bool {
	if n == nil {
		return false
	}

	_, ok := n.delays[key(src, dst)]

	return ok
}

func key(src, dst string) string {
	return src + " " + dst
}

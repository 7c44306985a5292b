// Package main provides the entry point for zsim.
// zsim replays translation traces on a simulated hierarchy of TLBs, coherent
// caches and memory, and reports where the cycles went.
package main

import "github.com/czhu95/zsim/cmd"

func main() {
	cmd.Execute()
}

package core

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/czhu95/zsim/mem"
)

// A Record is one translation in a trace: the issuing core, the virtual
// address and the compute cycles that precede it.
type Record struct {
	Core  uint32
	VAddr mem.Address
	Gap   uint64
}

// LoadTrace reads a trace file.
func LoadTrace(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace: %w", err)
	}
	defer func() { _ = f.Close() }()

	records, err := ParseTrace(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse trace %s: %w", path, err)
	}

	return records, nil
}

// ParseTrace reads records of the form "core vaddr [gap]", one per line.
// Numbers may be written in decimal or with a 0x prefix. Blank lines and
// lines starting with # are ignored.
func ParseTrace(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("line %d: want \"core vaddr [gap]\", got %q",
				lineNo, line)
		}

		coreID, err := strconv.ParseUint(fields[0], 0, 32)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad core: %w", lineNo, err)
		}

		vAddr, err := strconv.ParseUint(fields[1], 0, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad address: %w", lineNo, err)
		}

		rec := Record{Core: uint32(coreID), VAddr: mem.Address(vAddr)}
		if len(fields) == 3 {
			rec.Gap, err = strconv.ParseUint(fields[2], 0, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad gap: %w", lineNo, err)
			}
		}

		records = append(records, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	return records, nil
}

package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseMask reads a core mask of size bits. The mask is a list of ranges
// separated by spaces. A range is "min", "min:sup" or "min:sup:step" and
// selects min, min+step and so on up to but excluding sup.
func ParseMask(s string, size int) ([]bool, error) {
	mask := make([]bool, size)

	for _, r := range strings.Fields(s) {
		min, sup, step, err := parseRange(r)
		if err != nil {
			return nil, err
		}

		for i := min; i < sup; i += step {
			if i >= size {
				return nil, fmt.Errorf("range %s includes %d, mask limit %d",
					r, i, size-1)
			}
			mask[i] = true
		}
	}

	return mask, nil
}

func parseRange(r string) (min, sup, step int, err error) {
	parts := strings.Split(r, ":")
	if len(parts) > 3 {
		return 0, 0, 0, fmt.Errorf("range %s has %d numbers, at most 3",
			r, len(parts))
	}

	n := make([]int, len(parts))
	for i, p := range parts {
		n[i], err = strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, fmt.Errorf("range %s: %q is not a number", r, p)
		}
		if n[i] < 0 {
			return 0, 0, 0, fmt.Errorf("range %s has negative numbers", r)
		}
	}

	min, sup, step = n[0], n[0]+1, 1
	if len(n) > 1 {
		sup = n[1]
	}
	if len(n) > 2 {
		step = n[2]
	}

	if step == 0 {
		return 0, 0, 0, fmt.Errorf("range %s has a zero step", r)
	}
	if min >= sup {
		return 0, 0, 0, fmt.Errorf("range %s has min >= sup", r)
	}

	return min, sup, step, nil
}

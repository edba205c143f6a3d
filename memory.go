package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"timecapsule/lockbox"
)

// memoryUnits maps size suffixes to KiB, longest suffix first so "MB" is not
// read as "M" followed by a stray "B".
var memoryUnits = []struct {
	suffix string
	kib    uint64
}{
	{"GB", 1 << 20}, {"MB", 1 << 10}, {"KB", 1},
	{"G", 1 << 20}, {"M", 1 << 10}, {"K", 1},
}

// parseMemory converts a size such as "64", "64M", "1GB" or "2048K" into the
// KiB that Argon2 expects. A bare number is in MiB. The result must lie between
// 1M and the largest cost lockbox will accept when unlocking.
func parseMemory(s string) (uint32, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	unit := uint64(1 << 10)
	for _, u := range memoryUnits {
		if rest, ok := strings.CutSuffix(s, u.suffix); ok {
			s, unit = rest, u.kib
			break
		}
	}

	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}

	kib := n * unit
	switch {
	case kib < 1<<10:
		return 0, fmt.Errorf("memory must be at least 1M")
	case kib > lockbox.MaxArgon2Memory:
		return 0, fmt.Errorf("memory must be at most %dG", lockbox.MaxArgon2Memory>>20)
	}
	return uint32(kib), nil
}

// memoryValue is a pflag.Value holding an Argon2 memory cost in KiB.
type memoryValue uint32

var _ pflag.Value = (*memoryValue)(nil)

func (m *memoryValue) String() string {
	kib := uint32(*m)
	switch {
	case kib >= 1024*1024 && kib%(1024*1024) == 0:
		return fmt.Sprintf("%dG", kib/(1024*1024))
	case kib%1024 == 0:
		return fmt.Sprintf("%dM", kib/1024)
	default:
		return fmt.Sprintf("%dK", kib)
	}
}

func (m *memoryValue) Set(s string) error {
	v, err := parseMemory(s)
	if err != nil {
		return err
	}
	*m = memoryValue(v)
	return nil
}

func (m *memoryValue) Type() string { return "size" }

// Package resource is the Resource Sampler (spec.md §4.D): it reads the
// host's process and CPU accounting surfaces and computes commensurable
// per-instance CPU percentages against a single host-wide jiffies
// denominator. A secondary gopsutil-backed sampler in
// resource_gopsutil.go feeds the Prometheus gauges for cross-checking and
// diagnostics; it is never the source of truth for the Registry.
package resource

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gophpeek/phpeek-pm/internal/registry"
)

const procRoot = "/proc"

// Sampler reads host and per-process accounting surfaces once per tick and
// updates the Registry in place, per spec.md §4.D.
type Sampler struct {
	lastTotal uint64
}

// NewSampler returns a Sampler with no prior host-jiffies baseline; the
// first Sample call always yields Δtotal = 0 and is skipped, per §4.D.1.
func NewSampler() *Sampler {
	return &Sampler{}
}

// Sample reads /proc/stat once for the shared host-wide denominator, then
// for every running instance reads /proc/<pid>/stat and /proc/<pid>/status
// to update CPU percentage and memory fields. A failure does not stop the
// pass: an instance whose stat surface cannot be read is skipped for the
// tick and its error is collected, and the collected errors are returned
// for the caller to log (spec.md §7 "per-process surface unreadable"). If
// /proc/stat itself cannot be read, the whole pass is skipped and that
// single error is returned.
func (s *Sampler) Sample(instances []*registry.Instance) []error {
	total, err := readHostTotalJiffies()
	if err != nil {
		return []error{fmt.Errorf("resource: read host cpu total: %w", err)}
	}

	delta := total - s.lastTotal
	if s.lastTotal == 0 {
		// No baseline yet: the first pass counts as Δtotal = 0.
		delta = 0
	}
	s.lastTotal = total
	if delta == 0 {
		return nil
	}

	var errs []error
	for _, inst := range instances {
		if !inst.Running || inst.PID <= 0 {
			continue
		}
		if err := s.sampleInstance(inst, delta); err != nil {
			errs = append(errs, fmt.Errorf("resource: instance %s: %w", inst.Name, err))
		}
	}
	return errs
}

func (s *Sampler) sampleInstance(inst *registry.Instance, deltaTotal uint64) error {
	utime, stime, vsize, err := readProcessStat(inst.PID)
	if err != nil {
		return err
	}

	prevUser, prevKernel := inst.PrevCPUTicks()
	inst.CPUUserTicks = utime
	inst.CPUKernelTicks = stime
	inst.CPUPctUser = cpuPercent(utime, prevUser, deltaTotal)
	inst.CPUPctKernel = cpuPercent(stime, prevKernel, deltaTotal)
	inst.SetPrevCPUTicks(utime, stime)
	inst.MemVMS = vsize

	rss, err := readVmRSS(inst.PID)
	if err == nil {
		inst.MemRSS = rss
	}

	return nil
}

func cpuPercent(cur, prev, deltaTotal uint64) uint64 {
	if cur < prev || deltaTotal == 0 {
		return 0
	}
	return 100 * (cur - prev) / deltaTotal
}

// readHostTotalJiffies parses the first line of /proc/stat: token 0 must be
// "cpu", tokens 1..N are summed (spec.md §6).
func readHostTotalJiffies() (uint64, error) {
	f, err := os.Open(procRoot + "/stat")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return 0, fmt.Errorf("empty /proc/stat")
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 2 || fields[0] != "cpu" {
		return 0, fmt.Errorf("unexpected /proc/stat format: %q", scanner.Text())
	}

	var total uint64
	for _, f := range fields[1:] {
		v, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			continue
		}
		total += v
	}
	return total, nil
}

// readProcessStat parses /proc/<pid>/stat: field 14 is utime, field 15 is
// stime, field 23 is vsize (1-indexed, spec.md §6). The comm field (2) may
// itself contain spaces and is parenthesized, so fields are counted from
// the matching closing paren rather than naive whitespace splitting.
func readProcessStat(pid int) (utime, stime, vsize uint64, err error) {
	data, err := os.ReadFile(fmt.Sprintf("%s/%d/stat", procRoot, pid))
	if err != nil {
		return 0, 0, 0, err
	}

	line := string(data)
	close := strings.LastIndex(line, ")")
	if close < 0 || close+2 > len(line) {
		return 0, 0, 0, fmt.Errorf("malformed stat line")
	}
	rest := strings.Fields(line[close+2:])
	// rest[0] is field 3 (state); field 14 is rest[11], field 15 is
	// rest[12], field 23 is rest[20].
	const (
		idxUtime = 14 - 3
		idxStime = 15 - 3
		idxVsize = 23 - 3
	)
	if len(rest) <= idxVsize {
		return 0, 0, 0, fmt.Errorf("too few fields in stat line")
	}

	utime, err = strconv.ParseUint(rest[idxUtime], 10, 64)
	if err != nil {
		return 0, 0, 0, err
	}
	stime, err = strconv.ParseUint(rest[idxStime], 10, 64)
	if err != nil {
		return 0, 0, 0, err
	}
	vsize, err = strconv.ParseUint(rest[idxVsize], 10, 64)
	if err != nil {
		return 0, 0, 0, err
	}
	return utime, stime, vsize, nil
}

// readVmRSS scans /proc/<pid>/status line-wise for a VmRSS prefix and
// returns the first positive integer on that line, in kibibytes.
func readVmRSS(pid int) (uint64, error) {
	f, err := os.Open(fmt.Sprintf("%s/%d/status", procRoot, pid))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "VmRSS:") {
			continue
		}
		fields := strings.Fields(line)
		for _, f := range fields {
			if v, err := strconv.ParseUint(f, 10, 64); err == nil && v > 0 {
				return v, nil
			}
		}
	}
	return 0, fmt.Errorf("VmRSS not found")
}

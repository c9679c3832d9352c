// Package preflight provides startup validation checks.
package preflight

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"syscall"
)

// Note: syscall.RLIMIT_NPROC is not exported in Go's syscall package,
// so we read process limits from /proc/self/limits instead.

// Check represents the result of a single preflight check.
type Check struct {
	Name     string // Name of the check
	Required int    // Required value (if applicable)
	Actual   int    // Actual value found
	Passed   bool   // Whether the check passed
	Warning  bool   // True if it's a warning (non-fatal)
	Message  string // Additional context
}

// Result holds the results of all preflight checks.
type Result struct {
	Checks []Check
	Passed bool
}

// String returns a human-readable summary of the check.
func (c Check) String() string {
	status := "✓"
	if !c.Passed {
		status = "✗"
	} else if c.Warning {
		status = "⚠"
	}

	if c.Required > 0 {
		return fmt.Sprintf("  %s %s: %d available (need %d)", status, c.Name, c.Actual, c.Required)
	}
	return fmt.Sprintf("  %s %s: %s", status, c.Name, c.Message)
}

// Params carries the configuration the checks validate against.
type Params struct {
	Subsystems int    // child processes to be spawned
	ImageDir   string // capture output directory
	EventHost  string
	EventPort  int // 0 = random, skips the port check
}

// RunAll executes all preflight checks.
func RunAll(p Params) *Result {
	result := &Result{
		Checks: make([]Check, 0, 5),
		Passed: true,
	}

	add := func(c Check) {
		result.Checks = append(result.Checks, c)
		if !c.Passed {
			result.Passed = false
		}
	}

	add(checkExecutable())
	add(checkFileDescriptors(p.Subsystems))
	add(checkProcessLimit(p.Subsystems))
	add(checkImageDir(p.ImageDir))
	add(checkEventPort(p.EventHost, p.EventPort))

	return result
}

// checkExecutable verifies the own binary can be resolved for re-execution.
// Every subsystem child is this binary spawned again.
func checkExecutable() Check {
	exe, err := os.Executable()
	if err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("cannot resolve own binary: %v", err),
		}
	}
	if _, err := os.Stat(exe); err != nil {
		return Check{
			Name:    "executable",
			Passed:  false,
			Message: fmt.Sprintf("%s: %v", exe, err),
		}
	}
	return Check{
		Name:    "executable",
		Passed:  true,
		Message: exe,
	}
}

// checkFileDescriptors verifies sufficient file descriptors are available.
func checkFileDescriptors(subsystems int) Check {
	var limit syscall.Rlimit
	syscall.Getrlimit(syscall.RLIMIT_NOFILE, &limit)

	// Each child holds two capture pipes on the parent side, plus the
	// event service listener, metrics server and logging.
	required := subsystems*4 + 64
	actual := int(limit.Cur)

	return Check{
		Name:     "file_descriptors",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -n %d (need %d for %d subsystems)", actual, required, subsystems),
	}
}

// checkProcessLimit verifies sufficient process slots are available.
func checkProcessLimit(subsystems int) Check {
	required := subsystems + 32

	// Read soft limit from /proc/self/limits
	data, err := os.ReadFile("/proc/self/limits")
	if err != nil {
		// Non-Linux or restricted access, assume OK
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to check (non-Linux or restricted)",
		}
	}

	// Parse "Max processes" line
	actual := 0
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Max processes") {
			fields := strings.Fields(line)
			if len(fields) >= 4 {
				if fields[3] == "unlimited" {
					actual = 1000000
				} else {
					fmt.Sscanf(fields[3], "%d", &actual)
				}
			}
			break
		}
	}

	if actual == 0 {
		return Check{
			Name:    "process_limit",
			Passed:  true,
			Warning: true,
			Message: "unable to determine (assuming OK)",
		}
	}

	return Check{
		Name:     "process_limit",
		Required: required,
		Actual:   actual,
		Passed:   actual >= required,
		Message:  fmt.Sprintf("ulimit -u %d (need %d)", actual, required),
	}
}

// checkImageDir verifies the capture directory exists or can be created, and
// is writable.
func checkImageDir(dir string) Check {
	if dir == "" {
		return Check{
			Name:    "image_dir",
			Passed:  false,
			Message: "not configured",
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{
			Name:    "image_dir",
			Passed:  false,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	probe := filepath.Join(dir, ".preflight")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return Check{
			Name:    "image_dir",
			Passed:  false,
			Message: fmt.Sprintf("%s not writable: %v", dir, err),
		}
	}
	os.Remove(probe)

	return Check{
		Name:    "image_dir",
		Passed:  true,
		Message: dir,
	}
}

// checkEventPort verifies a fixed event service port is actually free. With
// a random port there is nothing to check.
func checkEventPort(host string, port int) Check {
	if port == 0 {
		return Check{
			Name:    "event_port",
			Passed:  true,
			Message: "random port",
		}
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return Check{
			Name:    "event_port",
			Passed:  false,
			Message: fmt.Sprintf("%s not bindable: %v", addr, err),
		}
	}
	l.Close()

	return Check{
		Name:    "event_port",
		Passed:  true,
		Message: addr,
	}
}

// PrintResults prints the preflight check results to stdout.
func PrintResults(result *Result) {
	fmt.Println("Preflight checks:")
	for _, check := range result.Checks {
		fmt.Println(check.String())
		if !check.Passed {
			fmt.Printf("    Fix: %s\n", suggestFix(check.Name))
		}
	}
	fmt.Println()
}

// suggestFix returns a suggestion for fixing a failed check.
func suggestFix(name string) string {
	switch name {
	case "file_descriptors":
		return "ulimit -n 4096 (or edit /etc/security/limits.conf)"
	case "process_limit":
		return "ulimit -u 1024 (or edit /etc/security/limits.conf)"
	case "image_dir":
		return "create the directory or point -image-dir somewhere writable"
	case "event_port":
		return "free the port or use -event-port 0 for a random one"
	default:
		return "see documentation"
	}
}

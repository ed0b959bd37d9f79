package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement names an executable the analysis pipeline shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the lookup result for one Requirement. Path is the resolved
// executable when Available.
type Status struct {
	Requirement
	Path      string
	Available bool
	Detail    string
}

// CheckBinaries resolves every requirement against PATH.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		req.Command = strings.TrimSpace(req.Command)
		req.Description = strings.TrimSpace(req.Description)
		results = append(results, lookup(req))
	}
	return results
}

// RequiredMissing returns the statuses of non-optional binaries that were not found.
func RequiredMissing(statuses []Status) []Status {
	var missing []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			missing = append(missing, s)
		}
	}
	return missing
}

func lookup(req Requirement) Status {
	status := Status{Requirement: req}
	if req.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	path, err := exec.LookPath(req.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", req.Command)
		return status
	}
	status.Path = path
	status.Available = true
	return status
}

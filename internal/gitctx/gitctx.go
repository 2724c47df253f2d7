package gitctx

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// DefaultRange is the revision range inspected for renames when none is given:
// the most recent commit.
const DefaultRange = "HEAD~1..HEAD"

// ErrNotRepository is returned when dir is not inside a git working tree.
var ErrNotRepository = errors.New("not a git repository")

// Rename is one path git detected as moved.
type Rename struct {
	From       string
	To         string
	Similarity int // percentage reported by git, 100 for pure renames
}

// TopLevel returns the root of the working tree containing dir.
func TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := gitOutput(ctx, dir, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotRepository, err)
	}
	return strings.TrimSpace(out), nil
}

// Renames lists the renames git detects in revRange, sorted by old path.
// Paths are relative to the top of the working tree. A range whose base does
// not exist, such as HEAD~1 in a repository with one commit, yields no renames.
func Renames(ctx context.Context, dir, revRange string) ([]Rename, error) {
	if revRange == "" {
		revRange = DefaultRange
	}
	if from, _, ok := strings.Cut(revRange, ".."); ok && from != "" {
		if _, err := gitOutput(ctx, dir, "rev-parse", "--verify", "--quiet", from+"^{commit}"); err != nil {
			return nil, nil
		}
	}
	out, err := gitOutput(ctx, dir, "diff", "-M", "--name-status", "-z", revRange)
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return parseNameStatus(out)
}

// parseNameStatus decodes `git diff --name-status -z` output, keeping only
// rename entries.
func parseNameStatus(out string) ([]Rename, error) {
	fields := strings.Split(strings.TrimRight(out, "\x00"), "\x00")
	var renames []Rename
	for i := 0; i < len(fields); i++ {
		status := fields[i]
		if status == "" {
			continue
		}
		switch status[0] {
		case 'R', 'C':
			if i+2 >= len(fields) {
				return nil, fmt.Errorf("truncated %s entry in git output", status)
			}
			from, to := fields[i+1], fields[i+2]
			i += 2
			if status[0] == 'C' {
				continue
			}
			sim := 0
			if _, err := fmt.Sscanf(status[1:], "%d", &sim); err != nil && len(status) > 1 {
				return nil, fmt.Errorf("bad rename score %q", status)
			}
			renames = append(renames, Rename{From: from, To: to, Similarity: sim})
		default:
			i++ // one path follows every other status
		}
	}
	sort.Slice(renames, func(a, b int) bool { return renames[a].From < renames[b].From })
	return renames, nil
}

func gitOutput(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

// Package version computes the client build identifier and stamps it, with
// the route table, into the generated block of the runtime config file.
package version

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"

	perrors "github.com/conneroisu/psbuild/internal/errors"
)

// shortLen is the number of hex characters kept from a commit hash.
const shortLen = 8

// RevisionSource looks up source-control revisions.
type RevisionSource interface {
	Head(ctx context.Context) (string, error)
	MergeBase(ctx context.Context, upstream string) (string, error)
}

// Resolve returns release, suffixed with the current revision when it can
// be determined. It never fails: any lookup error yields the plain release.
func Resolve(ctx context.Context, release string, src RevisionSource, upstream string) string {
	if src == nil {
		return release
	}

	head, err := src.Head(ctx)
	if err != nil || head == "" {
		return release
	}
	base, err := src.MergeBase(ctx, upstream)
	if err != nil || base == "" {
		return release
	}

	suffix := short(head)
	if head != base {
		suffix += "/" + short(base)
	}

	return fmt.Sprintf("%s (%s)", release, suffix)
}

func short(hash string) string {
	if len(hash) > shortLen {
		return hash[:shortLen]
	}
	return hash
}

// GitRevisions reads revisions by running git in Root.
type GitRevisions struct {
	Root string
}

// Head returns the commit hash of HEAD.
func (g GitRevisions) Head(ctx context.Context) (string, error) {
	return g.run(ctx, "rev-parse", "HEAD")
}

// MergeBase returns the common ancestor of HEAD and upstream.
func (g GitRevisions) MergeBase(ctx context.Context, upstream string) (string, error) {
	return g.run(ctx, "merge-base", "HEAD", upstream)
}

func (g GitRevisions) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.Root

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}

	return strings.TrimSpace(string(out)), nil
}

// ReadRelease returns the "version" field of the project metadata file.
func ReadRelease(root, rel string) (string, error) {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return "", perrors.NewConfigError("RELEASE_UNREADABLE", "cannot read project metadata", err).
			WithFile(rel)
	}

	var meta struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), &meta); err != nil {
		return "", perrors.NewConfigError("RELEASE_MALFORMED", "cannot parse project metadata", err).
			WithFile(rel)
	}
	if meta.Version == "" {
		return "", perrors.NewConfigError("RELEASE_MISSING", "project metadata has no version", nil).
			WithFile(rel)
	}

	return meta.Version, nil
}

// SPDX-License-Identifier: MPL-2.0

package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/invowk/buildmatrix/internal/config"
	"github.com/invowk/buildmatrix/internal/runtime"

	"github.com/charmbracelet/log"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"
)

// DefaultSkipMarkers are honored when SkipMarkers is empty.
var DefaultSkipMarkers = []string{"[skip ci]", "[ci skip]"}

// Git checks out one revision of a git repository. The repository is
// mirrored into CacheDir by Prepare and cloned from there into every context.
type Git struct {
	// Repository is a clone URL or a local path.
	Repository string
	// Ref is a branch, tag or commit; empty means HEAD.
	Ref string
	// CacheDir holds the mirror; empty uses the user cache directory.
	CacheDir string
	// SkipMarkers are matched case-insensitively against the commit message.
	SkipMarkers []string

	auth     transport.AuthMethod
	mirror   string
	revision plumbing.Hash
	message  string
	prepared bool
}

// Revision returns the commit resolved by Prepare.
func (g *Git) Revision() string {
	if !g.prepared {
		return ""
	}
	return g.revision.String()
}

// Prepare mirrors the repository, resolves Ref and checks the commit message
// for skip markers.
func (g *Git) Prepare(ctx context.Context, opts Options) (bool, error) {
	logger := log.FromContext(ctx).With("repository", g.Repository)

	mirror, err := g.mirrorPath()
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrCheckout, err)
	}
	if !isLocalPath(g.Repository) {
		g.auth = setupAuth(g.Repository)
	}

	repo, err := git.PlainOpen(mirror)
	if err != nil {
		logger.Debug("cloning mirror", "cache", mirror)
		repo, err = g.cloneMirror(ctx, mirror)
		if err != nil {
			return false, fmt.Errorf("%w: clone %s: %w", ErrCheckout, g.Repository, err)
		}
	} else {
		logger.Debug("updating mirror", "cache", mirror)
		if err := g.fetch(ctx, repo); err != nil {
			return false, fmt.Errorf("%w: fetch %s: %w", ErrCheckout, g.Repository, err)
		}
	}

	rev := g.Ref
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return false, fmt.Errorf("%w: resolve %q: %w", ErrCheckout, rev, err)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return false, fmt.Errorf("%w: read commit %s: %w", ErrCheckout, hash, err)
	}

	g.mirror = mirror
	g.revision = *hash
	g.message = commit.Message
	g.prepared = true
	logger.Info("resolved revision", "ref", rev, "commit", hash.String())

	if opts.SkipIfMarkedSkip {
		if marker, ok := g.skipMarker(); ok {
			logger.Info("commit requests skip", "marker", marker)
			return true, nil
		}
	}
	return false, nil
}

// Populate clones the mirror into ec.Dir and checks out the resolved commit.
func (g *Git) Populate(ctx context.Context, ec *runtime.ExecutionContext) error {
	if !g.prepared {
		return fmt.Errorf("%w: %w", ErrCheckout, ErrNotPrepared)
	}
	repo, err := git.PlainCloneContext(ctx, ec.Dir, false, &git.CloneOptions{
		URL:        g.mirror,
		NoCheckout: true,
		Tags:       git.AllTags,
	})
	if err != nil {
		return fmt.Errorf("%w: clone into %s: %w", ErrCheckout, ec.Dir, err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: failed to get worktree: %w", ErrCheckout, err)
	}
	if err := worktree.Checkout(&git.CheckoutOptions{Hash: g.revision, Force: true}); err != nil {
		return fmt.Errorf("%w: checkout %s: %w", ErrCheckout, g.revision, err)
	}
	return nil
}

func (g *Git) skipMarker() (string, bool) {
	markers := g.SkipMarkers
	if len(markers) == 0 {
		markers = DefaultSkipMarkers
	}
	msg := strings.ToLower(g.message)
	for _, m := range markers {
		if m != "" && strings.Contains(msg, strings.ToLower(m)) {
			return m, true
		}
	}
	return "", false
}

// mirrorPath returns the cache location of the repository, keyed by a hash
// of its URL.
func (g *Git) mirrorPath() (string, error) {
	base := g.CacheDir
	if base == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("failed to locate cache directory: %w", err)
		}
		base = filepath.Join(cache, config.AppName, "repos")
	}
	sum := sha256.Sum256([]byte(g.Repository))
	return filepath.Join(base, hex.EncodeToString(sum[:8])+".git"), nil
}

func (g *Git) cloneMirror(ctx context.Context, dest string) (*git.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create parent directory: %w", err)
	}
	repo, err := git.PlainCloneContext(ctx, dest, true, &git.CloneOptions{
		URL:    g.Repository,
		Auth:   g.auth,
		Mirror: true,
	})
	if err != nil {
		_ = os.RemoveAll(dest) // Best-effort cleanup of a partial mirror
		return nil, err
	}
	return repo, nil
}

// fetch updates every ref of the mirror.
func (g *Git) fetch(ctx context.Context, repo *git.Repository) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RefSpecs: []gitconfig.RefSpec{"+refs/*:refs/*"},
		Auth:     g.auth,
		Tags:     git.AllTags,
		Force:    true,
	})

	// ErrAlreadyUpToDate is not a real error
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return err
	}
	return nil
}

func isLocalPath(repository string) bool {
	if strings.HasPrefix(repository, "file://") {
		return true
	}
	if strings.Contains(repository, "://") || strings.HasPrefix(repository, "git@") {
		return false
	}
	_, err := os.Stat(repository)
	return err == nil
}

// setupAuth configures authentication for the repository's transport:
// SSH keys for SSH URLs, an environment token otherwise.
func setupAuth(repository string) transport.AuthMethod {
	if strings.HasPrefix(repository, "git@") || strings.HasPrefix(repository, "ssh://") {
		return trySSHAuth()
	}
	return tryHTTPAuth()
}

// trySSHAuth attempts to configure SSH authentication.
func trySSHAuth() transport.AuthMethod {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil
	}

	keyPaths := []string{
		filepath.Join(homeDir, ".ssh", "id_ed25519"),
		filepath.Join(homeDir, ".ssh", "id_rsa"),
		filepath.Join(homeDir, ".ssh", "id_ecdsa"),
	}

	for _, keyPath := range keyPaths {
		if _, err := os.Stat(keyPath); err == nil {
			auth, err := ssh.NewPublicKeysFromFile("git", keyPath, "")
			if err == nil {
				return auth
			}
		}
	}

	return nil
}

// tryHTTPAuth attempts to configure HTTP authentication.
func tryHTTPAuth() transport.AuthMethod {
	tokens := []struct{ env, user string }{
		{"GITHUB_TOKEN", "x-access-token"},
		{"GITLAB_TOKEN", "gitlab-ci-token"},
		{"GIT_TOKEN", "git"},
	}
	for _, tok := range tokens {
		if token := os.Getenv(tok.env); token != "" {
			return &http.BasicAuth{Username: tok.user, Password: token}
		}
	}
	return nil
}

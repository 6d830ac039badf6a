package session

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/config"
	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// BranchManager creates and removes the session's temporary branch.
type BranchManager struct {
	client platform.Client
	cfg    config.BranchConfig
	prefix string
	rng    *rand.Rand
	log    *logrus.Entry
}

// NewBranchManager creates a BranchManager. The prefix is the disguise part
// of the branch name; a fresh random suffix is generated per attempt.
func NewBranchManager(client platform.Client, cfg config.BranchConfig, prefix string) *BranchManager {
	return &BranchManager{
		client: client,
		cfg:    cfg,
		prefix: prefix,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		log:    logging.NewLogger("branch"),
	}
}

// Create resolves the base branch to a commit, then creates a uniquely
// named temporary ref from it. Name collisions regenerate the suffix rather
// than reusing an existing branch; attempts are bounded. On success the
// branch is registered as a cleanup obligation on the session.
func (m *BranchManager) Create(ctx context.Context, sess *Session) (string, error) {
	if sess.BaseBranch == "" {
		base, err := m.client.DefaultBranch(ctx, sess.Target)
		if err != nil {
			return "", err
		}
		sess.BaseBranch = base
	}

	sha, err := m.client.GetBranchSHA(ctx, sess.Target, sess.BaseBranch)
	if err != nil {
		return "", err
	}

	for attempt := 1; attempt <= m.cfg.MaxAttempts; attempt++ {
		name := m.prefix + m.randomSuffix()

		err := m.client.CreateRef(ctx, sess.Target, name, sha)
		if err == nil {
			m.log.WithFields(logrus.Fields{"branch": name, "base": sess.BaseBranch}).Info("created temporary branch")

			target := sess.Target
			sess.Obligations.Add(Obligation{
				Kind:        ObligationBranch,
				Description: "branch " + name,
				Remove: func(ctx context.Context) error {
					return m.Delete(ctx, target, name)
				},
			})
			return name, nil
		}

		switch errors.GetCode(err) {
		case errors.ErrCodeNotFound, errors.ErrCodePermanentClient:
			// Collision or stale ref state: try a new suffix.
			m.log.WithFields(logrus.Fields{"branch": name, "attempt": attempt}).
				Debug("branch name rejected, regenerating")
		default:
			return "", err
		}
	}

	return "", errors.BranchExhausted(m.cfg.MaxAttempts)
}

// Delete removes a branch. An already-gone branch is success; any other
// failure is returned for the caller to report, never to abort teardown.
func (m *BranchManager) Delete(ctx context.Context, target, name string) error {
	err := m.client.DeleteRef(ctx, target, name)
	if err != nil && errors.GetCode(err) == errors.ErrCodeNotFound {
		m.log.WithField("branch", name).Debug("branch already gone")
		return nil
	}
	if err == nil {
		m.log.WithField("branch", name).Info("removed temporary branch")
	}
	return err
}

func (m *BranchManager) randomSuffix() string {
	n := m.cfg.SuffixLength
	if n <= 0 {
		n = 5
	}
	suffix := make([]byte, n)
	for i := range suffix {
		suffix[i] = suffixAlphabet[m.rng.Intn(len(suffixAlphabet))]
	}
	return string(suffix)
}

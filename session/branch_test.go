package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nopcorn/rascalrunner/config"
	"github.com/nopcorn/rascalrunner/errors"
)

func branchConfig() config.BranchConfig {
	return config.BranchConfig{MaxAttempts: 3, SuffixLength: 5}
}

func TestBranchCreateRegistersObligation(t *testing.T) {
	fake := newFakePlatform()
	sess := NewSession("acme/payroll", "", time.Now())

	mgr := NewBranchManager(fake, branchConfig(), "lint-testing-")
	name, err := mgr.Create(context.Background(), sess)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "lint-testing-"))
	assert.Len(t, strings.TrimPrefix(name, "lint-testing-"), 5)
	assert.Equal(t, "main", sess.BaseBranch, "empty base resolves to the default branch")
	assert.Equal(t, 1, sess.Obligations.Len())
}

func TestBranchCreateRegeneratesOnCollision(t *testing.T) {
	fake := newFakePlatform()
	fake.createRefErr = func(attempt int) error {
		if attempt < 3 {
			return errors.New(errors.ErrCodePermanentClient, "Reference already exists")
		}
		return nil
	}

	sess := NewSession("acme/payroll", "main", time.Now())
	mgr := NewBranchManager(fake, branchConfig(), "lint-testing-")

	_, err := mgr.Create(context.Background(), sess)
	require.NoError(t, err)

	assert.Equal(t, 3, fake.createRefCalls, "collisions must regenerate, not reuse the ref")
}

func TestBranchCreateExhaustsAttempts(t *testing.T) {
	fake := newFakePlatform()
	fake.createRefErr = func(int) error {
		return errors.New(errors.ErrCodePermanentClient, "Reference already exists")
	}

	sess := NewSession("acme/payroll", "main", time.Now())
	mgr := NewBranchManager(fake, branchConfig(), "lint-testing-")

	_, err := mgr.Create(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeBranchExhausted, errors.GetCode(err))
	assert.Equal(t, 3, fake.createRefCalls)
	assert.Equal(t, 0, sess.Obligations.Len(), "a failed create must leave nothing to clean")
}

func TestBranchCreatePropagatesFatalErrors(t *testing.T) {
	fake := newFakePlatform()
	fake.createRefErr = func(int) error {
		return errors.AuthDenied("forbidden")
	}

	sess := NewSession("acme/payroll", "main", time.Now())
	mgr := NewBranchManager(fake, branchConfig(), "lint-testing-")

	_, err := mgr.Create(context.Background(), sess)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeAuth, errors.GetCode(err))
	assert.Equal(t, 1, fake.createRefCalls, "auth errors must not be retried with new names")
}

func TestBranchDeleteToleratesAlreadyGone(t *testing.T) {
	fake := newFakePlatform()
	fake.deleteRefErr = errors.NotFound("ref")

	mgr := NewBranchManager(fake, branchConfig(), "lint-testing-")
	err := mgr.Delete(context.Background(), "acme/payroll", "lint-testing-abcde")

	assert.NoError(t, err, "an already-deleted branch is a successful deletion")
}

func TestRandomSuffixesDiffer(t *testing.T) {
	mgr := NewBranchManager(newFakePlatform(), branchConfig(), "lint-testing-")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		seen[mgr.randomSuffix()] = true
	}
	assert.Greater(t, len(seen), 45, "suffixes should essentially never repeat")
}

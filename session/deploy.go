package session

import (
	"context"
	"path"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/nopcorn/rascalrunner/errors"
	"github.com/nopcorn/rascalrunner/logging"
	"github.com/nopcorn/rascalrunner/platform"
)

// workflowDir is where the platform expects workflow definitions; a commit
// touching this directory is what schedules a run.
const workflowDir = ".github/workflows"

// Deployer commits the workflow file to the temporary branch. It never
// triggers execution directly; the commit itself is the trigger.
type Deployer struct {
	client platform.Client
	log    *logrus.Entry
}

// NewDeployer creates a Deployer.
func NewDeployer(client platform.Client) *Deployer {
	return &Deployer{
		client: client,
		log:    logging.NewLogger("deploy"),
	}
}

// Deploy commits the session's workflow content in a single contents-API
// call and returns the commit SHA. A server-side validation rejection is
// non-retryable and comes back as DEPLOY_REJECTED.
func (d *Deployer) Deploy(ctx context.Context, sess *Session) (string, error) {
	remotePath := path.Join(workflowDir, filepath.Base(sess.WorkflowPath))

	sha, err := d.client.CommitFile(ctx, sess.Target, sess.Branch, remotePath,
		sess.WorkflowContent, sess.CommitMessage)
	if err != nil {
		if errors.GetCode(err) == errors.ErrCodePermanentClient {
			return "", errors.DeployRejected(sess.Branch, err)
		}
		return "", err
	}

	d.log.WithFields(logrus.Fields{
		"branch": sess.Branch,
		"path":   remotePath,
		"commit": sha,
	}).Info("workflow committed")
	return sha, nil
}

// Package awsauth obtains AWS sessions for the accounts a deployment
// touches, assuming a role in each.
package awsauth

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials/stscreds"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

// Session builds a session from the environment and shared config,
// in region if it's given.
func Session(region string) (*session.Session, error) {
	opts := session.Options{
		SharedConfigState: session.SharedConfigEnable,
	}
	if region != "" {
		opts.Config.Region = aws.String(region)
	}
	sess, err := session.NewSessionWithOptions(opts)
	return sess, errors.Wrap(err, "creating AWS session")
}

// DetectRegion returns the session's region, or when it has none,
// the region of the EC2 instance we're running on.
func DetectRegion(sess *session.Session) (string, error) {
	if region := aws.StringValue(sess.Config.Region); region != "" {
		return region, nil
	}
	region, err := ec2metadata.New(sess).Region()
	if err != nil {
		return "", errors.Wrap(err, "fetching region from EC2 instance metadata")
	}
	return region, nil
}

func RoleARN(account, role string) string {
	return fmt.Sprintf("arn:aws:iam::%s:role/%s", account, role)
}

// SessionName identifies the build in the role sessions it assumes.
func SessionName(commit, build string) string {
	if len(commit) > 8 {
		commit = commit[:8]
	}
	return fmt.Sprintf("drone-%s-%s", commit, build)
}

// AssumeRole returns a copy of sess whose credentials are obtained
// from STS for roleARN. Nothing is requested until the session is
// used.
func AssumeRole(sess *session.Session, roleARN, sessionName string) *session.Session {
	creds := stscreds.NewCredentials(sess, roleARN, func(p *stscreds.AssumeRoleProvider) {
		p.RoleSessionName = sessionName
	})
	return sess.Copy(&aws.Config{Credentials: creds})
}

// Identity is who a build acts as: the same role, in the account
// being deployed to and in the account the build runs in.
type Identity struct {
	Role         string
	Account      string
	LocalAccount string
	Commit       string
	Build        string
}

// Target assumes the role in the account being deployed to, for
// service.
func (id Identity) Target(sess *session.Session, service string) *session.Session {
	return AssumeRole(sess, RoleARN(id.Account, id.Role), SessionName(id.Commit, id.Build)+"-"+service)
}

// Local assumes the role in the build's own account, for service.
// Without a local account, that's the account being deployed to.
func (id Identity) Local(sess *session.Session, service string) *session.Session {
	account := id.LocalAccount
	if account == "" {
		account = id.Account
	}
	return AssumeRole(sess, RoleARN(account, id.Role), SessionName(id.Commit, id.Build)+"-"+service)
}

package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ProjectCapability is a set of temporary object-store credentials scoped
// to one (owner, project) prefix.
type ProjectCapability struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}

// projectPolicy grants listing and reads under the project prefix only.
func projectPolicy(bucket string, ownerID, projectID uuid.UUID) string {
	prefix := fmt.Sprintf("%s/%s", ownerID, projectID)
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Action": ["s3:ListBucket"],
      "Effect": "Allow",
      "Resource": ["arn:aws:s3:::%s"],
      "Condition": {"StringLike": {"s3:prefix": ["%s/*"]}}
    },
    {
      "Action": ["s3:GetObject"],
      "Effect": "Allow",
      "Resource": ["arn:aws:s3:::%s/%s/*"]
    }
  ]
}`, bucket, prefix, bucket, prefix)
}

// AssumeProjectCredentials exchanges the caller's identity token for STS
// credentials restricted to the project's prefix. The caller's token has
// already been validated upstream; MinIO validates it again against the
// identity provider.
func (s *MinIOStore) AssumeProjectCredentials(bucket, rawToken string, tokenTTL time.Duration, ownerID, projectID uuid.UUID) (*ProjectCapability, error) {
	policy := projectPolicy(bucket, ownerID, projectID)

	creds, err := credentials.NewSTSWebIdentity(s.stsEndpoint,
		func() (*credentials.WebIdentityToken, error) {
			return &credentials.WebIdentityToken{
				Token:  rawToken,
				Expiry: int(tokenTTL.Seconds()),
			}, nil
		},
		func(i *credentials.STSWebIdentity) {
			i.Policy = policy
		},
	)
	if err != nil {
		return nil, fmt.Errorf("create sts provider: %w", err)
	}

	value, err := creds.Get()
	if err != nil {
		return nil, fmt.Errorf("assume project credentials: %w", err)
	}

	return &ProjectCapability{
		AccessKeyID:     value.AccessKeyID,
		SecretAccessKey: value.SecretAccessKey,
		SessionToken:    value.SessionToken,
		Expiration:      time.Now().Add(tokenTTL),
	}, nil
}

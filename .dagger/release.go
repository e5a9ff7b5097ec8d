package main

import (
	"context"
	"fmt"
	"path"

	"dagger/chatrelay/internal/dagger"
)

// checksumsFile lists the sha256 of every released binary.
const checksumsFile = "SHA256SUMS"

// bucket is an S3-compatible destination for release artifacts.
type bucket struct {
	endpoint        *dagger.Secret
	name            *dagger.Secret
	accessKeyID     *dagger.Secret
	secretAccessKey *dagger.Secret
}

// withChecksums adds a SHA256SUMS file covering every binary in artifacts.
func withChecksums(ctx context.Context, artifacts *dagger.Directory) (*dagger.Directory, error) {
	sums, err := dag.Container().
		From("alpine:3").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts").
		WithExec([]string{"sh", "-c", "find linux -type f | sort | xargs sha256sum"}).
		Stdout(ctx)
	if err != nil {
		return nil, fmt.Errorf("computing checksums: %w", err)
	}

	return artifacts.WithNewFile(checksumsFile, sums), nil
}

// sync copies artifacts to each prefix in the bucket.
func (b *bucket) sync(ctx context.Context, artifacts *dagger.Directory, prefixes ...string) error {
	name, err := b.name.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket name: %w", err)
	}

	endpoint, err := b.endpoint.Plaintext(ctx)
	if err != nil {
		return fmt.Errorf("reading bucket endpoint: %w", err)
	}

	awsCli := dag.Container().
		From("amazon/aws-cli:latest").
		WithSecretVariable("AWS_ACCESS_KEY_ID", b.accessKeyID).
		WithSecretVariable("AWS_SECRET_ACCESS_KEY", b.secretAccessKey).
		WithEnvVariable("AWS_DEFAULT_REGION", "auto").
		WithDirectory("/artifacts", artifacts).
		WithWorkdir("/artifacts")

	for _, prefix := range prefixes {
		destination := "s3://" + path.Join(name, prefix)
		_, err := awsCli.
			WithExec([]string{"aws", "s3", "sync", ".", destination, "--endpoint-url", endpoint}).
			Sync(ctx)
		if err != nil {
			return fmt.Errorf("uploading to %s: %w", prefix, err)
		}
	}

	return nil
}

// Release builds the chatrelay binaries for version, adds a SHA256SUMS file,
// and uploads them under the version prefix. With latest set the same
// artifacts are also uploaded under "latest".
func (c *ChatRelay) Release(
	ctx context.Context,

	// Version string (e.g., "v1.0.0")
	version string,

	// Git commit SHA
	commit string,

	// Also publish under the "latest" prefix
	// +optional
	latest bool,

	// Bucket endpoint URL
	endpoint *dagger.Secret,

	// Bucket name
	bucketName *dagger.Secret,

	// Bucket access key ID
	accessKeyID *dagger.Secret,

	// Bucket secret access key
	secretAccessKey *dagger.Secret,
) (*dagger.Directory, error) {
	artifacts, err := withChecksums(ctx, c.BuildRelease(ctx, version, commit))
	if err != nil {
		return nil, err
	}

	prefixes := []string{version}
	if latest {
		prefixes = append(prefixes, "latest")
	}

	dst := &bucket{
		endpoint:        endpoint,
		name:            bucketName,
		accessKeyID:     accessKeyID,
		secretAccessKey: secretAccessKey,
	}
	if err := dst.sync(ctx, artifacts, prefixes...); err != nil {
		return artifacts, fmt.Errorf("releasing %s: %w", version, err)
	}

	return artifacts, nil
}

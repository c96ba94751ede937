/*
Copyright © 2019 the modeprep authors.
This file is part of modeprep.

modeprep is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

modeprep is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with modeprep.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud provides access to the local and cloud storage locations
// that modeprep output can be written to.
package cloud

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcp"
)

// Location is an output location: a storage bucket plus a key prefix
// within it.
type Location struct {
	Bucket *blob.Bucket

	// Prefix is prepended to every key written to the bucket. It is
	// either empty or ends in "/".
	Prefix string
}

// Key returns the bucket key for the file with the given name.
func (l *Location) Key(name string) string {
	return l.Prefix + name
}

// IsBlob returns whether location refers to a cloud storage bucket rather
// than the local file system.
func IsBlob(location string) bool {
	return strings.HasPrefix(location, "gs://") || strings.HasPrefix(location, "s3://")
}

// OpenLocation opens the output location specified by location, which is
// either a directory on the local file system, a 'file://' URL, or a
// cloud storage address in the format 'provider://bucket/prefix', where
// provider is "gs" for Google Cloud Storage or "s3" for AWS S3.
// Local directories are created if they do not exist.
func OpenLocation(ctx context.Context, location string) (*Location, error) {
	if !strings.Contains(location, "://") {
		return openDir(location)
	}
	u, err := url.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenLocation: %v", err)
	}
	if u.Scheme == "file" {
		return openDir(u.Host + u.Path)
	}
	b, err := OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(u.Path, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Location{Bucket: b, Prefix: prefix}, nil
}

func openDir(dir string) (*Location, error) {
	dir, err := filepath.Abs(os.ExpandEnv(dir))
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenLocation: %v", err)
	}
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("cloud.OpenLocation: creating output directory: %v", err)
	}
	b, err := fileblob.OpenBucket(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenLocation: %v", err)
	}
	return &Location{Bucket: b}, nil
}

// OpenBucket returns the blob storage bucket specified by bucketName,
// where bucketName must be in the format 'provider://name' where provider
// is the name of the storage provider and name is the name of the bucket.
// The currently accepted storage providers are "file" for the local filesystem
// (e.g., for testing), "gs" for Google Cloud Storage, and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketName string) (*blob.Bucket, error) {
	url, err := url.Parse(bucketName)
	if err != nil {
		return nil, fmt.Errorf("cloud.OpenBucket: %v", err)
	}
	switch url.Scheme {
	case "file":
		return fileblob.OpenBucket(url.Host+url.Path, nil)
	case "gs":
		return gsBucket(ctx, url.Hostname())
	case "s3":
		return s3Bucket(ctx, url.Hostname())
	default:
		return nil, fmt.Errorf("cloud.OpenBucket: invalid provider %s", url.Scheme)
	}
}

func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	// See here for information on credentials:
	// https://cloud.google.com/docs/authentication/getting-started
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket opens an s3 storage bucket. It assumes the following
// environment variables are set: AWS_REGION, AWS_ACCESS_KEY_ID, and
// AWS_SECRET_ACCESS_KEY.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	c := &aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	}
	s := session.Must(session.NewSession(c))
	return s3blob.OpenBucket(ctx, s, name, nil)
}

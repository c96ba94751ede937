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

package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
)

// MaxRetries is the number of times a failed blob write is retried.
var MaxRetries uint64 = 4

// ReadBlob reads the given blob from the given bucket.
func ReadBlob(ctx context.Context, bucket *blob.Bucket, key string) ([]byte, error) {
	var b bytes.Buffer
	r, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("reading blob key %s: %v", key, err)
	}
	defer r.Close()
	_, err = io.Copy(&b, r)
	if err != nil {
		return nil, fmt.Errorf("reading blob key %s: %v", key, err)
	}
	return b.Bytes(), nil
}

// WriteBlob writes the given data to the given bucket, retrying with
// exponential backoff if the write fails.
func WriteBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte, log logrus.FieldLogger) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), MaxRetries), ctx)
	return backoff.RetryNotify(
		func() error {
			return writeBlob(ctx, bucket, key, data)
		},
		b,
		func(err error, d time.Duration) {
			if log != nil {
				log.WithField("key", key).Warnf("%v: retrying in %v", err, d)
			}
		},
	)
}

func writeBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte) error {
	w, err := bucket.NewWriter(ctx, key, &blob.WriterOptions{})
	if err != nil {
		return fmt.Errorf("modeprep/cloud: creating writer for blob %s: %v", key, err)
	}
	_, err = io.Copy(w, bytes.NewReader(data))
	if err != nil {
		w.Close()
		return fmt.Errorf("modeprep/cloud: copying blob %s: %v", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("modeprep/cloud: writing blob %s: %v", key, err)
	}
	return nil
}

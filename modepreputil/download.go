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

package modepreputil

import (
	"context"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spatialmodel/modeprep/cloud"
)

// maybeDownload checks if the input is an existing local file.
// If not, and it is an http(s) URL or a 'gs://' or 's3://' blob,
// it downloads the file into dir and returns the path to the
// downloaded file. The downloaded file keeps its base name so that the
// time stamps encoded in it are preserved. Any other path is returned
// unchanged.
func maybeDownload(ctx context.Context, p, dir string) (string, error) {
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		return p, nil
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return downloadHTTP(ctx, p, dir)
	}
	if cloud.IsBlob(p) {
		return downloadBlob(ctx, p, dir)
	}
	return p, nil
}

// inputName returns the name of the file that maybeDownload would
// return for p, without downloading it.
func inputName(p string) string {
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || cloud.IsBlob(p) {
		if u, err := url.Parse(p); err == nil {
			return path.Base(u.Path)
		}
	}
	return p
}

// downloadHTTP downloads a file from the specified URL.
func downloadHTTP(ctx context.Context, p, dir string) (string, error) {
	u, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	req, err := http.NewRequest(http.MethodGet, p, nil)
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	resp, err := http.DefaultClient.Do(req.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("modeprep: downloading %s: %s", p, resp.Status)
	}
	b, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	return saveDownload(dir, path.Base(u.Path), b)
}

// downloadBlob downloads the specified file from blob storage.
func downloadBlob(ctx context.Context, p, dir string) (string, error) {
	u, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	bucket, err := cloud.OpenBucket(ctx, u.Scheme+"://"+u.Host)
	if err != nil {
		return "", err
	}
	b, err := cloud.ReadBlob(ctx, bucket, strings.TrimPrefix(u.Path, "/"))
	if err != nil {
		return "", fmt.Errorf("modeprep: downloading %s: %v", p, err)
	}
	return saveDownload(dir, path.Base(u.Path), b)
}

func saveDownload(dir, name string, b []byte) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("modeprep: saving download: %v", err)
	}
	f := filepath.Join(dir, name)
	if err := ioutil.WriteFile(f, b, 0644); err != nil {
		return "", fmt.Errorf("modeprep: saving download: %v", err)
	}
	return f, nil
}

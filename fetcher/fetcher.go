// Copyright © 2018 Intel Corporation
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package fetcher provides a unified read of the RELEASES manifest and
// package artifacts over either an HTTP(S) URL or a local directory.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/jeffora/Shimmer/manifest"
)

// localFanOut bounds concurrent local-to-local artifact copies, per spec §5.
const localFanOut = 4

// ErrTransportFailure wraps any underlying network or filesystem read
// failure encountered while fetching the manifest or an artifact.
type ErrTransportFailure struct {
	Source string
	Cause  error
}

func (e *ErrTransportFailure) Error() string {
	return fmt.Sprintf("couldn't fetch from %s: %s", e.Source, e.Cause)
}

func (e *ErrTransportFailure) Unwrap() error { return e.Cause }

// ProgressFunc reports cumulative bytes transferred for one artifact.
type ProgressFunc func(transferred, total int64)

// Fetcher reads release content rooted at a single source, which is either
// an http(s) URL or a local directory path, per spec §4.5 and §6.
type Fetcher struct {
	source   string
	isRemote bool
	client   *http.Client
}

// New classifies sourceURLOrPath and returns a ready Fetcher. A source
// parses as remote only if it is an absolute URI with scheme http or https;
// anything else, including UNC paths, is treated as a local directory.
func New(sourceURLOrPath string) *Fetcher {
	isRemote := false
	if u, err := url.Parse(sourceURLOrPath); err == nil && u.IsAbs() {
		if u.Scheme == "http" || u.Scheme == "https" {
			isRemote = true
		}
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: DefaultDialTimeout}).DialContext
	return &Fetcher{
		source:   strings.TrimRight(sourceURLOrPath, "/"),
		isRemote: isRemote,
		client:   &http.Client{Timeout: 0, Transport: transport},
	}
}

// IsRemote reports whether the source was classified as an HTTP(S) URL.
func (f *Fetcher) IsRemote() bool { return f.isRemote }

// FetchManifest returns the text of <source>/RELEASES.
func (f *Fetcher) FetchManifest(ctx context.Context) (string, error) {
	r, err := f.open(ctx, "RELEASES")
	if err != nil {
		return "", err
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", &ErrTransportFailure{Source: f.source, Cause: err}
	}
	return string(data), nil
}

// FetchArtifact writes <source>/<entry.Filename> to destPath, reporting
// byte progress through progress (which may be nil).
func (f *Fetcher) FetchArtifact(ctx context.Context, e manifest.Entry, destPath string, progress ProgressFunc) error {
	r, err := f.open(ctx, e.Filename)
	if err != nil {
		return err
	}
	defer func() { _ = r.Close() }()

	tmp := destPath + ".downloading"
	out, err := os.OpenFile(tmp, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return &ErrTransportFailure{Source: f.source, Cause: err}
	}

	var written int64
	buf := make([]byte, 64*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				_ = out.Close()
				_ = os.Remove(tmp)
				return &ErrTransportFailure{Source: f.source, Cause: werr}
			}
			written += int64(n)
			if progress != nil {
				progress(written, e.Filesize)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			_ = out.Close()
			_ = os.Remove(tmp)
			return &ErrTransportFailure{Source: f.source, Cause: rerr}
		}
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return &ErrTransportFailure{Source: f.source, Cause: err}
	}
	if err := os.Rename(tmp, destPath); err != nil {
		return &ErrTransportFailure{Source: f.source, Cause: err}
	}
	return nil
}

// FetchArtifacts fetches several entries, bounding local-to-local copies to
// localFanOut concurrent transfers (spec §5 "Parallelism"); remote
// transfers are issued with the same bound since the fetcher owns the
// background queue either way.
func (f *Fetcher) FetchArtifacts(ctx context.Context, entries []manifest.Entry, destDir string, progress ProgressFunc) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(localFanOut)

	for _, e := range entries {
		e := e
		g.Go(func() error {
			dest := filepath.Join(destDir, strings.ToLower(e.Filename))
			return f.FetchArtifact(gctx, e, dest, progress)
		})
	}
	return g.Wait()
}

func (f *Fetcher) open(ctx context.Context, name string) (io.ReadCloser, error) {
	if !f.isRemote {
		path := filepath.Join(f.source, name)
		r, err := os.Open(path)
		if err != nil {
			return nil, &ErrTransportFailure{Source: f.source, Cause: err}
		}
		return r, nil
	}

	u := f.source + "/" + name
	var resp *http.Response
	retry := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3)
	err := backoff.Retry(func() error {
		req, rerr := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if rerr != nil {
			return backoff.Permanent(rerr)
		}
		resp, rerr = f.client.Do(req)
		if rerr != nil {
			return rerr
		}
		if resp.StatusCode >= 500 {
			_ = resp.Body.Close()
			return errors.Errorf("server error %d fetching %s", resp.StatusCode, u)
		}
		return nil
	}, retry)
	if err != nil {
		return nil, &ErrTransportFailure{Source: f.source, Cause: err}
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, &ErrTransportFailure{Source: f.source, Cause: errors.Errorf("unexpected status %d fetching %s", resp.StatusCode, u)}
	}
	return resp.Body, nil
}

// DefaultDialTimeout bounds the time spent establishing a connection; the
// Remote Fetcher otherwise imposes no per-step timeout on downloads
// themselves, per spec §5 "Cancellation and timeouts".
const DefaultDialTimeout = 10 * time.Second

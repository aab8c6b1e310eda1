// Copyright 2025 Tom Barlow
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

package pipeline

import (
	"io"
	"math"
)

// progressReader reports cumulative bytes read against a known total.
type progressReader struct {
	r          io.Reader
	total      int64
	loaded     int64
	onProgress func(loaded, total int64)
}

func newProgressReader(r io.Reader, total int64, onProgress func(loaded, total int64)) *progressReader {
	return &progressReader{r: r, total: total, onProgress: onProgress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.onProgress(p.loaded, p.total)
	}
	return n, err
}

// Close closes the underlying reader when it is closable, so a multipart
// encoder blocked on its pipe is released if the transport gives up early.
func (p *progressReader) Close() error {
	if c, ok := p.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Percent returns round(loaded/total*100) clamped to [0,100].
// It reports false when total is unknown.
func Percent(loaded, total int64) (int, bool) {
	if total <= 0 {
		return 0, false
	}
	pct := int(math.Round(float64(loaded) / float64(total) * 100))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct, true
}

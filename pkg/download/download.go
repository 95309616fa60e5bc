package download

import (
	"net/url"
	"strings"

	"github.com/cuemby/dicc/pkg/runner"
)

// JavaLauncher is the executable used to run .jar artifacts.
var JavaLauncher = "java"

// Download is a remote artifact that is trusted only when its bytes match
// at least one of its checksums.
type Download struct {
	URL       string     `json:"url"`
	Checksums []Checksum `json:"checksums"`
}

// New creates a download for url
func New(url string, checksums ...Checksum) Download {
	return Download{URL: url, Checksums: checksums}
}

// Verify reports whether any checksum matches data
func (d Download) Verify(data []byte) bool {
	for _, c := range d.Checksums {
		if c.Verify(data) {
			return true
		}
	}
	return false
}

// Filename returns the last path segment of the URL, ignoring any query or
// fragment.
func (d Download) Filename() string {
	p := d.URL
	if u, err := url.Parse(d.URL); err == nil && u.Path != "" {
		p = u.Path
	}
	return p[strings.LastIndex(p, "/")+1:]
}

// IsJar reports whether the artifact must be launched through the JVM.
func (d Download) IsJar() bool {
	return strings.HasSuffix(strings.ToLower(d.Filename()), ".jar")
}

// Command builds the invocation for the artifact stored at path.
func (d Download) Command(path string) runner.CommandSpec {
	if d.IsJar() {
		return runner.CommandSpec{Path: JavaLauncher, Args: []string{"-jar", path}}
	}
	return runner.CommandSpec{Path: path}
}

// Clone returns a deep copy
func (d Download) Clone() Download {
	out := Download{URL: d.URL}
	if d.Checksums != nil {
		out.Checksums = append([]Checksum(nil), d.Checksums...)
	}
	return out
}

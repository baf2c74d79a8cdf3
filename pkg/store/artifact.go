package store

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// artifactPath computes where a ModelSpec's source material belongs on disk,
// following the on-disk layout convention: absolute file paths are used
// verbatim, relative file paths are joined with modelsRoot, and URLs derive
// a path from the hub (huggingface/<org>/<repo>-<branch>/<filename>) or
// hostname otherwise.
func artifactPath(modelsRoot, file, rawURL string) (string, error) {
	if file != "" {
		if filepath.IsAbs(file) {
			return file, nil
		}
		return filepath.Join(modelsRoot, file), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if org, repo, branch, filename, ok := parseHuggingFacePath(u); ok {
		return filepath.Join(modelsRoot, "huggingface", org, repo+"-"+branch, filename), nil
	}

	filename := path.Base(u.Path)
	return filepath.Join(modelsRoot, u.Hostname(), filename), nil
}

// parseHuggingFacePath recognizes huggingface.co/<org>/<repo>/(resolve|blob)/<branch>/<filename>
// URLs and extracts their components.
func parseHuggingFacePath(u *url.URL) (org, repo, branch, filename string, ok bool) {
	if u.Hostname() != "huggingface.co" {
		return "", "", "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// org / repo / {resolve,blob} / branch / filename...
	if len(parts) < 5 {
		return "", "", "", "", false
	}
	if parts[2] != "resolve" && parts[2] != "blob" {
		return "", "", "", "", false
	}
	return parts[0], parts[1], parts[3], path.Join(parts[4:]...), true
}

// rewriteHubDownloadURL rewrites a "blob" style viewer URL on a hosted model
// hub to its direct-download equivalent. Currently recognizes huggingface.co's
// blob/resolve convention; URLs that don't match are returned unchanged.
func rewriteHubDownloadURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	if u.Hostname() != "huggingface.co" {
		return rawURL
	}
	u.Path = strings.Replace(u.Path, "/blob/", "/resolve/", 1)
	return u.String()
}

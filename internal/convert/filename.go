package convert

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
	"golang.org/x/text/unicode/norm"
)

// MarkdownExt is the extension given to every converted page.
const MarkdownExt = ".md"

// unsafeChars matches anything that is not a letter, digit, underscore,
// hyphen or dot.
var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_\-.]`)

// trailingExt matches a final ".ext" suffix.
var trailingExt = regexp.MustCompile(`\.[^.]+$`)

// SanitizeFilename replaces characters that are unsafe in file names with
// underscores. The input is NFC-normalized first so that visually identical
// names map to the same file.
func SanitizeFilename(name string) string {
	return unsafeChars.ReplaceAllString(norm.NFC.String(name), "_")
}

// Filename derives a deterministic Markdown file name from a page URL.
//
// The URL path is trimmed of slashes ("index" for the root), its slashes
// become underscores, unsafe characters are replaced, and any existing
// extension is swapped for ".md". A name that sanitizes to nothing falls
// back to a short hash of the URL.
//
// Distinct URLs can map to the same name (for example /a/b and /a_b);
// the later page overwrites the earlier one.
func Filename(pageURL string) string {
	p := pageURL
	if u, err := url.Parse(pageURL); err == nil {
		p = u.Path
	}

	name := strings.Trim(p, "/")
	if name == "" {
		name = "index"
	}
	name = strings.ReplaceAll(name, "/", "_")
	name = SanitizeFilename(name)
	name = strings.Trim(name, "_.")

	if name == "" {
		sum := sha3.Sum256([]byte(pageURL))
		name = hex.EncodeToString(sum[:])[:12]
	}

	if !strings.HasSuffix(name, MarkdownExt) {
		name = trailingExt.ReplaceAllString(name, "") + MarkdownExt
	}
	return name
}

// Save writes Markdown for pageURL into dir and returns the file path.
func Save(dir, pageURL, content string) (string, error) {
	path := filepath.Join(dir, Filename(pageURL))
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

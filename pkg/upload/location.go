package upload

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// DefaultPrefix is the URL path under which uploads are served
const DefaultPrefix = "/uploads"

var (
	collectionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	namePattern       = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
)

// Location identifies a stored file by collection and generated name.
// Records persist Key(); URLs and paths are derived by a Mapper.
type Location struct {
	Collection string `json:"collection"`
	Name       string `json:"name"`
}

// Key returns "<collection>/<name>"
func (l Location) Key() string {
	return l.Collection + "/" + l.Name
}

// IsZero reports whether the location is unset
func (l Location) IsZero() bool {
	return l.Collection == "" && l.Name == ""
}

// Validate rejects names that could escape the collection directory
func (l Location) Validate() error {
	if !collectionPattern.MatchString(l.Collection) {
		return fmt.Errorf("invalid collection %q", l.Collection)
	}
	if !namePattern.MatchString(l.Name) || strings.Contains(l.Name, "..") {
		return fmt.Errorf("invalid file name %q", l.Name)
	}
	return nil
}

// ParseKey parses "<collection>/<name>"
func ParseKey(key string) (Location, error) {
	parts := strings.Split(strings.Trim(key, "/"), "/")
	if len(parts) != 2 {
		return Location{}, fmt.Errorf("invalid upload key %q", key)
	}
	loc := Location{Collection: parts[0], Name: parts[1]}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Mapper derives public URLs and filesystem paths from locations.
// URLs are absolute when BaseURL is set, root-relative otherwise.
type Mapper struct {
	BaseURL string
	Prefix  string
	Root    string
}

// NewMapper creates a mapper with the default /uploads prefix
func NewMapper(baseURL, root string) Mapper {
	return Mapper{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Prefix:  DefaultPrefix,
		Root:    root,
	}
}

func (m Mapper) prefix() string {
	if m.Prefix == "" {
		return DefaultPrefix
	}
	return "/" + strings.Trim(m.Prefix, "/")
}

// URL returns the public URL of loc
func (m Mapper) URL(loc Location) string {
	return strings.TrimRight(m.BaseURL, "/") + m.prefix() + "/" + loc.Key()
}

// Path returns the filesystem path of loc under Root
func (m Mapper) Path(loc Location) string {
	return filepath.Join(m.Root, loc.Collection, loc.Name)
}

// ParseURL maps a URL produced by URL (absolute or root-relative) back to its location
func (m Mapper) ParseURL(url string) (Location, error) {
	rest := url
	if m.BaseURL != "" {
		rest = strings.TrimPrefix(rest, strings.TrimRight(m.BaseURL, "/"))
	}
	if !strings.HasPrefix(rest, m.prefix()+"/") {
		return Location{}, fmt.Errorf("url %q is not under %s", url, m.prefix())
	}
	return ParseKey(strings.TrimPrefix(rest, m.prefix()+"/"))
}

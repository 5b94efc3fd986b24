package docstore

import (
	"fmt"
	"net/url"
	"strings"
)

// DatabaseName extracts the database path segment from a MongoDB connection
// string. It returns "" when the string names no database.
//
// url.Parse cannot be used on the whole string because multi-host seed lists
// ("h1:27017,h2:27017") are not valid URL authorities.
func DatabaseName(uri string) (string, error) {
	var rest string
	switch {
	case strings.HasPrefix(uri, "mongodb://"):
		rest = strings.TrimPrefix(uri, "mongodb://")
	case strings.HasPrefix(uri, "mongodb+srv://"):
		rest = strings.TrimPrefix(uri, "mongodb+srv://")
	default:
		return "", fmt.Errorf("docstore: invalid connection string %q: scheme must be mongodb:// or mongodb+srv://", uri)
	}

	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}

	// Credentials may contain '/', but only after being percent-encoded, so the
	// first '/' after the last '@' ends the host list.
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		rest = rest[at+1:]
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return "", nil
	}

	name, err := url.PathUnescape(rest[slash+1:])
	if err != nil {
		return "", fmt.Errorf("docstore: invalid database name in %q: %w", uri, err)
	}
	if strings.ContainsAny(name, `/\. "$`) {
		return "", fmt.Errorf("docstore: invalid database name %q", name)
	}
	return name, nil
}

package proxy

import (
	"net/url"
	"strconv"
	"strings"
)

// Param is one query parameter. Order is preserved so fingerprints stay
// stable for the same logical request.
type Param struct {
	Key   string
	Value string
}

// BuildQuery encodes params in the given order, skipping empty values.
// The result carries a leading '?' unless it is empty.
func BuildQuery(params ...Param) string {
	var b strings.Builder
	for _, p := range params {
		if p.Value == "" {
			continue
		}
		if b.Len() == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

func UserPath(identity string) string {
	return "users/" + url.PathEscape(identity)
}

func ReposPath(identity string) string {
	return UserPath(identity) + "/repos"
}

// EventsPath addresses the identity's public events. A non-positive page
// size leaves paging to the upstream default.
func EventsPath(identity string, perPage int) string {
	return UserPath(identity) + "/events" + BuildQuery(Param{"per_page", positive(perPage)})
}

// UsersPath addresses the global user listing. Nil values are omitted.
func UsersPath(since, perPage *int) string {
	return "users" + BuildQuery(
		Param{"since", optional(since)},
		Param{"per_page", optional(perPage)},
	)
}

func CommitsPath(owner, repo, author string) string {
	return "repos/" + url.PathEscape(owner) + "/" + url.PathEscape(repo) + "/commits" +
		BuildQuery(Param{"author", author})
}

// Fingerprint is the cache key of a resource path. Path and query are used
// together, so pages and filters of one resource never collide.
func Fingerprint(resourcePath string) string {
	return "github:" + resourcePath
}

// ResourceKind buckets a resource path into a low cardinality metrics label.
func ResourceKind(resourcePath string) string {
	p, _, _ := strings.Cut(resourcePath, "?")
	segs := strings.Split(strings.Trim(p, "/"), "/")

	switch {
	case len(segs) == 1 && segs[0] == "users":
		return "users"
	case len(segs) == 2 && segs[0] == "users":
		return "user"
	case len(segs) == 3 && segs[0] == "users" && segs[2] == "repos":
		return "repos"
	case len(segs) == 3 && segs[0] == "users" && segs[2] == "events":
		return "events"
	case len(segs) == 4 && segs[0] == "repos" && segs[3] == "commits":
		return "commits"
	default:
		return "other"
	}
}

func positive(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func optional(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

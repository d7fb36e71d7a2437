// Package cachebust rewrites asset references in the client's HTML and
// script templates: source domains are redirected to the deployment routes
// and versioned references get a content-hash query string.
package cachebust

import (
	"crypto/md5"
	"encoding/hex"
	"math/rand/v2"
	"path"
	"regexp"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/conneroisu/psbuild/internal/routes"
)

// RelativeFallback is the cachebuster for relative references whose file
// cannot be read.
const RelativeFallback = "v1"

// hashLen is the number of hex digest characters kept as the cachebuster.
const hashLen = 8

const digestCacheSize = 512

// referencePattern matches attr="path" with an optional ?query made of
// lowercase letters and digits. The third group is non-empty exactly when
// the reference carried a query marker.
var referencePattern = regexp.MustCompile(`(src|href)="(.*?)(\?[a-z0-9]*?)?"`)

// Source domains and the route each one is redirected to, in the order
// they are substituted.
var sourceDomains = []struct {
	literal string
	route   func(routes.Table) string
}{
	{"/replay.pokemonshowdown.com/", func(t routes.Table) string { return t.Replays }},
	{"/dex.pokemonshowdown.com/", func(t routes.Table) string { return t.Dex }},
	{"/play.pokemonshowdown.com/", func(t routes.Table) string { return t.Client }},
	{"/pokemonshowdown.com/", func(t routes.Table) string { return t.Root }},
}

// ClientDomain is the literal replaced in documents that only get domain
// substitution.
const ClientDomain = "play.pokemonshowdown.com"

// FileReader reads files by slash-separated path relative to the project
// root. fs.ReadFileFS implementations satisfy it.
type FileReader interface {
	ReadFile(name string) ([]byte, error)
}

// Reference is one asset reference found in a template.
type Reference struct {
	Attribute string
	Path      string
	HasQuery  bool
	// Start and End delimit the whole match in the document.
	Start, End int
}

// References returns the asset references in text, in textual order.
func References(text string) []Reference {
	matches := referencePattern.FindAllStringSubmatchIndex(text, -1)
	refs := make([]Reference, 0, len(matches))
	for _, m := range matches {
		refs = append(refs, Reference{
			Attribute: text[m[2]:m[3]],
			Path:      text[m[4]:m[5]],
			HasQuery:  m[6] >= 0,
			Start:     m[0],
			End:       m[1],
		})
	}

	return refs
}

// Rewriter rewrites references against one route table. It is meant to be
// built per pipeline run: digests are memoised for its lifetime.
type Rewriter struct {
	routes    routes.Table
	files     FileReader
	replayDir string
	digests   *lru.Cache[string, string]
	fallback  func() string
}

// NewRewriter creates a rewriter. replayDir is the root-relative directory
// relative references are resolved against.
func NewRewriter(t routes.Table, files FileReader, replayDir string) *Rewriter {
	digests, err := lru.New[string, string](digestCacheSize)
	if err != nil {
		// only fails for a non-positive size
		panic(err)
	}

	return &Rewriter{
		routes:    t,
		files:     files,
		replayDir: replayDir,
		digests:   digests,
		fallback:  randomMarker,
	}
}

// randomMarker is the cachebuster for absolute references whose file cannot
// be read. It differs on every call.
func randomMarker() string {
	return strconv.FormatUint(rand.Uint64(), 10)
}

// Rewrite returns text with every asset reference rewritten.
func (r *Rewriter) Rewrite(text string) string {
	refs := References(text)
	if len(refs) == 0 {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	last := 0
	for _, ref := range refs {
		b.WriteString(text[last:ref.Start])
		b.WriteString(ref.Attribute)
		b.WriteString(`="`)
		b.WriteString(r.RewritePath(ref.Path, ref.HasQuery))
		b.WriteString(`"`)
		last = ref.End
	}
	b.WriteString(text[last:])

	return b.String()
}

// RewritePath redirects the source domains in p and, if the reference had a
// query marker, appends the cachebuster.
func (r *Rewriter) RewritePath(p string, hasQuery bool) string {
	p = SubstituteDomains(p, r.routes)
	if !hasQuery {
		return p
	}

	return p + "?" + r.cachebuster(p)
}

// SubstituteDomains replaces the first occurrence of each source domain
// in p with its route.
func SubstituteDomains(p string, t routes.Table) string {
	for _, d := range sourceDomains {
		p = strings.Replace(p, d.literal, "/"+d.route(t)+"/", 1)
	}

	return p
}

func (r *Rewriter) cachebuster(p string) string {
	if strings.HasPrefix(p, "/") {
		if digest, ok := r.digest(strings.TrimPrefix(p, "/")); ok {
			return digest
		}
		return r.fallback()
	}

	if digest, ok := r.digest(path.Join(r.replayDir, p)); ok {
		return digest
	}

	return RelativeFallback
}

// digest returns the first hashLen hex characters of the MD5 of the file.
// Read failures are reported through ok and never cached.
func (r *Rewriter) digest(name string) (string, bool) {
	if digest, ok := r.digests.Get(name); ok {
		return digest, true
	}
	if r.files == nil {
		return "", false
	}

	data, err := r.files.ReadFile(name)
	if err != nil {
		return "", false
	}

	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])[:hashLen]
	r.digests.Add(name, digest)

	return digest, true
}

// RewriteDomains replaces every occurrence of the client domain literal in
// text with the client route. No reference parsing or hashing is done.
func RewriteDomains(text string, t routes.Table) string {
	return strings.ReplaceAll(text, ClientDomain, t.Client)
}

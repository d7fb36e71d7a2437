package cachebust

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/psbuild/internal/routes"
)

var testRoutes = routes.Table{
	Root:    "root-route",
	Client:  "static",
	Dex:     "dex-route",
	Replays: "replay-route",
	Users:   "root-route/users",
	PSMain:  "root-route",
}

func md5Prefix(data string) string {
	sum := md5.Sum([]byte(data))
	return hex.EncodeToString(sum[:])[:8]
}

func TestRewrite_Examples(t *testing.T) {
	files := fstest.MapFS{"static/js/app.js": {Data: []byte{}}}
	r := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com")

	assert.Equal(t,
		`<script src="/static/js/app.js?d41d8cd9"></script>`,
		r.Rewrite(`<script src="/play.pokemonshowdown.com/js/app.js?"></script>`))

	assert.Equal(t,
		`<link href="/root-route/style.css">`,
		r.Rewrite(`<link href="/pokemonshowdown.com/style.css">`))
}

func TestRewritePath_DomainSubstitution(t *testing.T) {
	r := NewRewriter(testRoutes, fstest.MapFS{}, "replay.pokemonshowdown.com")

	tests := []struct {
		in, out string
	}{
		{"/replay.pokemonshowdown.com/js/replay.js", "/replay-route/js/replay.js"},
		{"/dex.pokemonshowdown.com/sprites/a.png", "/dex-route/sprites/a.png"},
		{"/play.pokemonshowdown.com/style/client.css", "/static/style/client.css"},
		{"/pokemonshowdown.com/users/zarel", "/root-route/users/zarel"},
		{"https://play.pokemonshowdown.com/favicon.ico", "https://static/favicon.ico"},
		{"/cdn.example.com/play.pokemonshowdown.com.js", "/cdn.example.com/play.pokemonshowdown.com.js"},
		{"js/lib/jquery.js", "js/lib/jquery.js"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.out, r.RewritePath(tt.in, false))
		})
	}
}

func TestRewritePath_DomainSubstitutionIsIdempotent(t *testing.T) {
	r := NewRewriter(testRoutes, fstest.MapFS{}, "replay.pokemonshowdown.com")

	once := r.RewritePath("/play.pokemonshowdown.com/js/client.js", false)
	assert.Equal(t, once, r.RewritePath(once, false))
}

func TestRewrite_NoQueryMarkerMeansNoQuery(t *testing.T) {
	files := fstest.MapFS{"static/js/client.js": {Data: []byte("client")}}
	r := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com")

	for _, in := range []string{
		`<script src="/play.pokemonshowdown.com/js/client.js"></script>`,
		`<script src="/play.pokemonshowdown.com/js/missing.js"></script>`,
		`<img src="favicon.png">`,
	} {
		out := r.Rewrite(in)
		assert.NotContains(t, out, "?", in)
	}
}

func TestRewrite_HashesAbsoluteReferences(t *testing.T) {
	content := "var Dex = {};\n"
	files := fstest.MapFS{"static/js/battledata.js": {Data: []byte(content)}}
	r := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com")

	in := `<script src="/play.pokemonshowdown.com/js/battledata.js?a1b2c3d4"></script>`
	out := r.Rewrite(in)

	assert.Equal(t, `<script src="/static/js/battledata.js?`+md5Prefix(content)+`"></script>`, out)

	// Same bytes, same hash, also for a fresh rewriter with no memo.
	again := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com").Rewrite(in)
	assert.Equal(t, out, again)
}

func TestRewrite_MissingAbsoluteFallsBackToRandomMarker(t *testing.T) {
	r := NewRewriter(testRoutes, fstest.MapFS{}, "replay.pokemonshowdown.com")
	marker := regexp.MustCompile(`^<script src="/static/js/gone\.js\?([0-9]+)"></script>$`)

	in := `<script src="/play.pokemonshowdown.com/js/gone.js?"></script>`
	first := marker.FindStringSubmatch(r.Rewrite(in))
	second := marker.FindStringSubmatch(r.Rewrite(in))

	require.Len(t, first, 2)
	require.Len(t, second, 2)
	assert.NotEmpty(t, first[1])
	assert.NotEqual(t, first[1], second[1], "fallback differs per call")
}

func TestRewrite_RelativeReferences(t *testing.T) {
	content := "<?php // replay index"
	files := fstest.MapFS{"replay.pokemonshowdown.com/js/replay.js": {Data: []byte(content)}}
	r := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com")

	assert.Equal(t, `<script src="js/replay.js?`+md5Prefix(content)+`"></script>`,
		r.Rewrite(`<script src="js/replay.js?"></script>`))

	assert.Equal(t, `<script src="js/missing.js?v1"></script>`,
		r.Rewrite(`<script src="js/missing.js?"></script>`))
}

func TestRewrite_PreservesSurroundingText(t *testing.T) {
	files := fstest.MapFS{"static/style/client.css": {Data: []byte("body{}")}}
	r := NewRewriter(testRoutes, files, "replay.pokemonshowdown.com")

	in := "<!DOCTYPE html>\n" +
		`<link rel="stylesheet" href="/play.pokemonshowdown.com/style/client.css?" />` + "\n" +
		`<a href="/pokemonshowdown.com/rules">rules</a>` + "\n" +
		`<script>var x = "src=";</script>` + "\n"
	expected := "<!DOCTYPE html>\n" +
		`<link rel="stylesheet" href="/static/style/client.css?` + md5Prefix("body{}") + `" />` + "\n" +
		`<a href="/root-route/rules">rules</a>` + "\n" +
		`<script>var x = "src=";</script>` + "\n"

	assert.Equal(t, expected, r.Rewrite(in))
	assert.Equal(t, "no references at all", r.Rewrite("no references at all"))
}

func TestRewrite_UnrecognisedQueryIsKeptInPath(t *testing.T) {
	r := NewRewriter(testRoutes, fstest.MapFS{}, "replay.pokemonshowdown.com")

	// "v=3" is not a cachebuster query, so it stays part of the path and the
	// reference counts as unversioned.
	assert.Equal(t, `<script src="/static/x.js?v=3"></script>`,
		r.Rewrite(`<script src="/play.pokemonshowdown.com/x.js?v=3"></script>`))
}

type countingReader struct {
	files fstest.MapFS
	reads map[string]int
}

func (c *countingReader) ReadFile(name string) ([]byte, error) {
	c.reads[name]++
	return c.files.ReadFile(name)
}

func TestRewrite_MemoisesDigests(t *testing.T) {
	reader := &countingReader{
		files: fstest.MapFS{"static/js/client.js": {Data: []byte("client")}},
		reads: map[string]int{},
	}
	r := NewRewriter(testRoutes, reader, "replay.pokemonshowdown.com")

	in := `<script src="/play.pokemonshowdown.com/js/client.js?"></script>` +
		`<script src="/play.pokemonshowdown.com/js/client.js?"></script>` +
		`<script src="/play.pokemonshowdown.com/js/nope.js?"></script>` +
		`<script src="/play.pokemonshowdown.com/js/nope.js?"></script>`
	r.Rewrite(in)

	assert.Equal(t, 1, reader.reads["static/js/client.js"])
	assert.Equal(t, 2, reader.reads["static/js/nope.js"], "failed reads are not cached")
}

func TestRewrite_ReadErrorsAreSilent(t *testing.T) {
	r := NewRewriter(testRoutes, failingReader{}, "replay.pokemonshowdown.com")
	r.fallback = func() string { return "0" }

	assert.Equal(t, `src="/static/a.js?0"`, r.Rewrite(`src="/play.pokemonshowdown.com/a.js?"`))
	assert.Equal(t, `src="a.js?v1"`, r.Rewrite(`src="a.js?"`))
}

type failingReader struct{}

func (failingReader) ReadFile(string) ([]byte, error) { return nil, errors.New("permission denied") }

func TestDirReader(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "static", "js"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "static", "js", "app.js"), []byte("app"), 0o644))
	outside := filepath.Join(filepath.Dir(root), "outside-"+filepath.Base(root)+".js")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { os.Remove(outside) })

	reader, err := OpenDir(root)
	require.NoError(t, err)
	defer reader.Close()

	data, err := reader.ReadFile("static/js/app.js")
	require.NoError(t, err)
	assert.Equal(t, "app", string(data))

	_, err = reader.ReadFile("../" + filepath.Base(outside))
	assert.Error(t, err, "escape from the root")

	_, err = reader.ReadFile("static/js")
	assert.Error(t, err, "directory")

	r := NewRewriter(testRoutes, reader, "replay.pokemonshowdown.com")
	r.fallback = func() string { return "fallback" }
	assert.Equal(t, `src="/../`+filepath.Base(outside)+`?fallback"`,
		r.Rewrite(`src="/../`+filepath.Base(outside)+`?"`))
}

func TestReferences(t *testing.T) {
	refs := References(`<link href="/a.css"><script src="b.js?"></script><img src="/c.png?x1">`)
	require.Len(t, refs, 3)

	assert.Equal(t, Reference{Attribute: "href", Path: "/a.css", HasQuery: false, Start: 6, End: 19}, refs[0])
	assert.Equal(t, "src", refs[1].Attribute)
	assert.Equal(t, "b.js", refs[1].Path)
	assert.True(t, refs[1].HasQuery)
	assert.Equal(t, "/c.png", refs[2].Path)
	assert.True(t, refs[2].HasQuery)
}

func TestRewriteDomains(t *testing.T) {
	in := "var base = 'https://play.pokemonshowdown.com/';\n" +
		"load('//play.pokemonshowdown.com/js/replay.js?v1');\n"
	expected := "var base = 'https://static/';\n" +
		"load('//static/js/replay.js?v1');\n"

	assert.Equal(t, expected, RewriteDomains(in, testRoutes))
}

package watcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var testScope = Scope{
	Templates: []string{
		"play.pokemonshowdown.com/index.template.html",
		"play.pokemonshowdown.com/js/replay-embed.template.js",
	},
	Sources: []string{
		"src",
		"replay.pokemonshowdown.com/src",
		"src/battle-dex.ts",
		"caches/pokemon-showdown/server/chat-formatter.ts",
	},
}

func TestScope_Classify(t *testing.T) {
	tests := []struct {
		path     string
		expected Change
	}{
		{"play.pokemonshowdown.com/index.template.html", ChangeTemplate},
		{"play.pokemonshowdown.com/js/replay-embed.template.js", ChangeTemplate},
		{"play.pokemonshowdown.com/index.html", ChangeNone},
		{"play.pokemonshowdown.com/js/client.js", ChangeNone},
		{"src/client.ts", ChangeSource},
		{"src/panels/chat.tsx", ChangeSource},
		{"src/globals.d.ts", ChangeNone},
		{"src/README.md", ChangeNone},
		{"srcfoo/a.ts", ChangeNone},
		{"replay.pokemonshowdown.com/src/replay.tsx", ChangeSource},
		{"caches/pokemon-showdown/server/chat-formatter.ts", ChangeSource},
		{"caches/pokemon-showdown/server/chat.ts", ChangeNone},
		{"./src/client.ts", ChangeSource},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, testScope.Classify(tt.path))
			assert.Equal(t, tt.expected != ChangeNone, testScope.Filter(tt.path))
		})
	}
}

func TestScope_Summarize(t *testing.T) {
	assert.Equal(t, ChangeNone, testScope.Summarize(nil))
	assert.Equal(t, ChangeTemplate, testScope.Summarize([]ChangeEvent{
		{Path: "play.pokemonshowdown.com/index.template.html"},
		{Path: "play.pokemonshowdown.com/index.html"},
	}))
	assert.Equal(t, ChangeSource, testScope.Summarize([]ChangeEvent{
		{Path: "play.pokemonshowdown.com/index.template.html"},
		{Path: "src/client.ts"},
	}))
}

func TestScope_Dirs(t *testing.T) {
	flat, recursive := testScope.Dirs()

	assert.Equal(t, []string{"src", "replay.pokemonshowdown.com/src"}, recursive)
	assert.Equal(t, []string{
		"caches/pokemon-showdown/server",
		"play.pokemonshowdown.com",
		"play.pokemonshowdown.com/js",
	}, flat)
}

func TestChangeString(t *testing.T) {
	assert.Equal(t, "none", ChangeNone.String())
	assert.Equal(t, "template", ChangeTemplate.String())
	assert.Equal(t, "source", ChangeSource.String())
	assert.Equal(t, "unknown", Change(9).String())
}

func TestFilters(t *testing.T) {
	assert.True(t, SourceFilter("src/a.ts"))
	assert.True(t, SourceFilter("src/a.jsx"))
	assert.False(t, SourceFilter("src/a.d.ts"))
	assert.False(t, SourceFilter("src/a.css"))

	assert.False(t, NoNodeModulesFilter("node_modules/x/a.js"))
	assert.False(t, NoNodeModulesFilter("src/node_modules/x/a.js"))
	assert.True(t, NoNodeModulesFilter("src/a.js"))

	assert.False(t, NoGitFilter(".git/HEAD"))
	assert.True(t, NoGitFilter("src/a.ts"))
}

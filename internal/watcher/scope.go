package watcher

import (
	"path"
	"strings"
)

// Change says which pipeline phases a batch of events invalidates.
type Change int

const (
	// ChangeNone means nothing the pipeline reads changed.
	ChangeNone Change = iota
	// ChangeTemplate means only template documents changed.
	ChangeTemplate
	// ChangeSource means compile sources changed.
	ChangeSource
)

// String returns the string representation of the Change
func (c Change) String() string {
	switch c {
	case ChangeNone:
		return "none"
	case ChangeTemplate:
		return "template"
	case ChangeSource:
		return "source"
	default:
		return "unknown"
	}
}

var sourceExtensions = map[string]bool{
	".js":  true,
	".jsx": true,
	".ts":  true,
	".tsx": true,
}

// Scope names the root-relative paths whose changes matter.
type Scope struct {
	Templates []string
	// Sources are directories or single files that get compiled.
	Sources []string
}

// Classify reports what a change to the root-relative path affects.
func (s Scope) Classify(p string) Change {
	p = path.Clean(p)

	for _, t := range s.Templates {
		if p == path.Clean(t) {
			return ChangeTemplate
		}
	}

	if !SourceFilter(p) {
		return ChangeNone
	}
	for _, src := range s.Sources {
		src = path.Clean(src)
		if p == src || strings.HasPrefix(p, src+"/") {
			return ChangeSource
		}
	}

	return ChangeNone
}

// Filter reports whether p is inside the scope.
func (s Scope) Filter(p string) bool {
	return s.Classify(p) != ChangeNone
}

// Summarize returns the strongest change in events.
func (s Scope) Summarize(events []ChangeEvent) Change {
	change := ChangeNone
	for _, e := range events {
		if c := s.Classify(e.Path); c > change {
			change = c
		}
	}

	return change
}

// Dirs returns the directories to watch: the parent directory of every
// template and every source directory. Source entries naming a script file
// contribute their parent directory unless a source directory covers it.
func (s Scope) Dirs() (flat, recursive []string) {
	seen := map[string]bool{}
	add := func(list *[]string, dir string) {
		if !seen[dir] {
			seen[dir] = true
			*list = append(*list, dir)
		}
	}

	for _, src := range s.Sources {
		if src = path.Clean(src); !SourceFilter(src) {
			add(&recursive, src)
		}
	}
	for _, src := range s.Sources {
		if src = path.Clean(src); SourceFilter(src) && !s.covered(recursive, src) {
			add(&flat, path.Dir(src))
		}
	}
	for _, t := range s.Templates {
		add(&flat, path.Dir(path.Clean(t)))
	}

	return flat, recursive
}

func (s Scope) covered(dirs []string, p string) bool {
	for _, dir := range dirs {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

// SourceFilter accepts script sources and rejects declaration files.
func SourceFilter(p string) bool {
	if strings.HasSuffix(p, ".d.ts") {
		return false
	}
	return sourceExtensions[path.Ext(p)]
}

// NoNodeModulesFilter rejects anything inside node_modules.
func NoNodeModulesFilter(p string) bool {
	return !strings.HasPrefix(p, "node_modules/") && !strings.Contains(p, "/node_modules/")
}

// NoGitFilter rejects anything inside .git.
func NoGitFilter(p string) bool {
	return !strings.HasPrefix(p, ".git/") && !strings.Contains(p, "/.git/")
}

// Package routes loads the route table that maps the client's logical
// domains to deployment hostnames and path prefixes.
package routes

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/viper"

	perrors "github.com/conneroisu/psbuild/internal/errors"
	"github.com/conneroisu/psbuild/internal/validation"
)

// Keys lists the route table keys in the order they are rendered.
var Keys = []string{"root", "client", "dex", "replays", "users", "psmain"}

// Table is the logical-domain-to-location mapping. It is passed by value
// and never modified after Load.
type Table struct {
	Root    string `json:"root" yaml:"root"`
	Client  string `json:"client" yaml:"client"`
	Dex     string `json:"dex" yaml:"dex"`
	Replays string `json:"replays" yaml:"replays"`
	Users   string `json:"users" yaml:"users"`
	PSMain  string `json:"psmain" yaml:"psmain"`
}

// Get returns the value for a route key.
func (t Table) Get(key string) (string, bool) {
	switch key {
	case "root":
		return t.Root, true
	case "client":
		return t.Client, true
	case "dex":
		return t.Dex, true
	case "replays":
		return t.Replays, true
	case "users":
		return t.Users, true
	case "psmain":
		return t.PSMain, true
	}

	return "", false
}

// Validate checks that every key is present and safe to render.
func (t Table) Validate() error {
	for _, key := range Keys {
		value, _ := t.Get(key)
		if err := validation.ValidateRouteValue(key, value); err != nil {
			return err
		}
	}

	return nil
}

// Load reads the JSON route table at rel, resolved against root. A missing
// or malformed table is fatal.
func Load(root, rel string) (Table, error) {
	path := filepath.Join(root, rel)

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Table{}, perrors.NewConfigError("ROUTES_UNREADABLE", "cannot read route table", err).
			WithFile(rel)
	}

	for _, key := range Keys {
		if !v.IsSet(key) {
			return Table{}, perrors.NewConfigError("ROUTES_INCOMPLETE",
				fmt.Sprintf("route table is missing key %q", key), nil).WithFile(rel)
		}
	}

	t := Table{
		Root:    v.GetString("root"),
		Client:  v.GetString("client"),
		Dex:     v.GetString("dex"),
		Replays: v.GetString("replays"),
		Users:   v.GetString("users"),
		PSMain:  v.GetString("psmain"),
	}
	if err := t.Validate(); err != nil {
		return Table{}, perrors.NewConfigError("ROUTES_INVALID", "invalid route table", err).
			WithFile(rel)
	}

	return t, nil
}

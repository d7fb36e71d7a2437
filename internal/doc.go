// Package internal contains the implementation packages for psbuild.
//
// # Package Organization
//
//   - routes: the route table loaded from config/routes.json
//   - version: version resolution and the runtime config stamp
//   - build: compile options, the babel compiler and task orchestration
//   - cachebust: asset reference rewriting and template emission
//   - pipeline: the three build phases in order, with progress lines
//   - config: psbuild settings from .psbuild.yml and PSBUILD_ variables
//   - watcher: file system monitoring with debouncing for watch mode
//   - console, logging, errors, validation: shared support code
package internal

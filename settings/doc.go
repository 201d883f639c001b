// Package settings loads and persists the askmesh configuration: backend
// preference order, per-backend connection details, search provider and UI
// flush rate. Files are TOML with built-in defaults, environment overrides
// and validation; a Watcher reloads the file on change.
package settings

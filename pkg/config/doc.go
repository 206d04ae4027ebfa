// Package config loads stub rules from YAML or JSON files. The file format
// is an authoring-friendly shape ("when" conditions, "respond" or "exclude"
// outcome, "times" budget) that converts into stub.Rule values; it is
// deliberately separate from the JSON wire format used between processes.
// File arguments may be ** globs.
package config

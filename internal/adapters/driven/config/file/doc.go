// Package file provides file-based implementations of driven port interfaces.
// These adapters persist data under the intertext home directory
// (~/.intertext, or $INTERTEXT_HOME).
//
// Adapters:
//   - ConfigStore: TOML-based configuration storage
//   - PromptStore: editable prompt templates with embedded defaults
package file

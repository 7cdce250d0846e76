// Package fsops implements sandboxed file operations used by the workspace tools.
package fsops

// Package fs implements the file-backed ports: the command file, the
// pre-encoded command artifact and the append-only output file.
package fs

// Package icoder composes the coding agent backend: the HTTP backend the
// browser editor talks to and an optional SSH chat over the same sessions.
package icoder

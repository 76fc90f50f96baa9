// Package textutil provides small text helpers shared by the upload path and
// the CLI: filename sanitization and display truncation.
package textutil

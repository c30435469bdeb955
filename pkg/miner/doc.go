// Package miner provides typed operations on top of the command engine.
//
// Reads return records built by required-key lookup: a reply lacking a
// key the record needs fails with a MalformedResponse error rather than a
// zero value. Writes validate their arguments before any I/O.
package miner

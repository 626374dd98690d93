// Package main hosts the easel CLI entrypoint and command graph.
//
// The Cobra-based command tree covers post ingestion, batch generation runs,
// ledger inspection, publish transitions, progress reporting, and
// configuration scaffolding. It centralizes configuration resolution, store
// lifecycle, and structured logging setup so subcommands can focus on user
// experience instead of wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

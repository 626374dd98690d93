// Package ledger is the provenance store for generation attempts.
//
// Three concerns live here: source posts discovered by the scraping
// collaborator, the append-only generation record sequence per post (the
// image aggregate), and the derived completeness/cost statistics. The single
// load-bearing correctness property is the idempotent upsert: at most one
// generation record exists per (shortcode, message_id) pair, enforced by a
// unique index, so retried pipeline runs never double-store or double-charge.
package ledger

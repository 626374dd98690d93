// Package replicate implements image generation and image description
// against the Replicate predictions API. One Client is shared across all
// configured model variations; each variation maps to a catalog entry
// carrying the model version, input schema, and per-output cost.
package replicate

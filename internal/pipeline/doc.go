// Package pipeline orchestrates the generation lifecycle: select pending
// posts, describe their source images, build branded prompts, call the
// generation providers with retry and fallback, and commit every outcome to
// the ledger. Attempts move strictly forward through selected, analyzing,
// prompting, generating, storing, and committed; a failure at any stage is
// committed before the post is abandoned for the run.
package pipeline

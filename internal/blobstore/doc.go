// Package blobstore provides content-addressed storage for source and
// generated media. References are sha256 digests, sharded two levels deep on
// disk, with a JSON sidecar per blob carrying content type and size.
package blobstore

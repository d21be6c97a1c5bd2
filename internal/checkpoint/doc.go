// Package checkpoint persists the resume cursor of an unfinished run and the
// timestamp of the last finished one.
//
// Both documents are small JSON objects. The file backends replace their
// file atomically (temp file + rename); the Redis backends store the same
// JSON under a key so runs on ephemeral machines can share state.
package checkpoint

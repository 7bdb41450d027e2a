// Package client assembles the mail core for the command-line client.
//
// New opens the local SQLite database (applying embedded goose migrations),
// picks the attachment blob store (filesystem or S3), the key directory
// (key server with fallback to locally pinned keys), the mail transport
// factory and the prometheus registry, and wires every service on top of
// them. Tests replace any of these through Options.
//
// A Core owns its database and worker pool; Close releases both and wipes
// the unlocked master secret.
package client

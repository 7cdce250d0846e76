// Package conv holds the conversation data model: immutable messages and a
// persistent, append-only conversation lineage.
//
// Appending never mutates: c.Append(m) returns a new *Conversation sharing
// every existing message with c. Any number of branches may grow from one
// conversation, and all of them stay valid.
package conv

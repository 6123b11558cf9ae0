// Package transport implements the coordinator-agent wire protocol
// from §6.2/§6.3: heartbeats, executor commands, and status push-back,
// carried over gRPC using a hand-rolled service descriptor. Payloads
// are google.protobuf.Struct values (structpb) rather than
// purpose-generated message types, since no .proto-derived Go code
// ships with this module; every field is still strongly typed at the
// Go API boundary in envelope.go.
package transport

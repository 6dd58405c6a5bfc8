// Package agent defines the core types shared by the CortexOS runtime:
// the Agent interface, variant definitions, lifecycle states, bus events,
// conversation logs, and the error taxonomy.
//
// # Variants
//
// Agents form a closed set of variants registered through RegisterFactory:
//
//	heartbeat         periodic event emitter (fixed interval or cron schedule)
//	logger            wildcard subscriber recording all bus traffic
//	inference         local rule-based inference
//	remote-inference  HTTP model server ("ollama" or "openai" wire format)
//	native-inference  host-registered callback capability
//
// Every variant exposes the same surface: HandleEvent for broadcast
// delivery, HandleDirect for request/response messaging, and Start/Stop
// for lifecycle control. Stop must guarantee no background activity
// survives its return.
//
// # Conversation logs
//
// Each agent owns one append-only Conversation recording inbound messages
// and outbound responses. Exchanges pairs entries for dataset export.
package agent

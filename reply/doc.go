// Package reply houses implementations of the core.Replier capability:
// LLM-backed adapters (see the openai and anthropic sub-packages) and a
// deterministic Static replier used both standalone and as the fallback
// every adapter degrades to when its backend fails.
package reply

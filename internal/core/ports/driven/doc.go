// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for a batch run:
//
//   - ChunkStore: Line-delimited chunk file persistence
//   - EmbeddingService: Text to vector conversion
//   - VectorIndex: Collection of embedded chunks ranked by cosine similarity
//   - LLMService: Schema-constrained chat completion
//   - PromptStore: Named prompt templates
//   - ResultWriter: Results table export
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CheckpointStore: Completed pairs from earlier runs. Without it every run starts fresh.
//
// Every call to an external AI service returns the token usage it incurred.
// Adapters never write to a shared ledger.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter package
package driven

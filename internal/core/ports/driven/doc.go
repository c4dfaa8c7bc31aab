// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - Connector: Enumerates and fetches content from one knowledge source
//   - EmbeddingService: Maps text to fixed-dimension vectors
//   - SearchIndex: Stores chunk vectors and serves k-NN queries
//   - IngestionLedger: Per-item state and content-hash persistence
//   - RetrievalTool: Answers a question from one knowledge source
//
// # Optional Interfaces
//
// These can be nil - behaviour degrades gracefully:
//
//   - QuestionGenerator: Synthetic recall questions. Without it, connectors
//     fall back to heading-derived questions.
//   - RendererPool: Pooled page-fetch sessions. Only sitemap/wiki sources
//     need one.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or connector package
package driven

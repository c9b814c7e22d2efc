// Package domain defines the core entities of the intertext pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A passage of source text with metadata and an optional embedding
//   - AnalysisResult: The versioned, structured judgment about a passage pair
//   - PipelineRequest: The three request variants accepted by the pipeline facade
//   - Usage: Token counts reported by a single external call
//   - AppSettings: The explicit configuration value passed to constructors
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain

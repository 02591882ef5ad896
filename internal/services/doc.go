// Package services defines shared utilities consumed by the acquisition
// workflow and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp acquisition request IDs, organize item IDs,
//     and correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that keep failure
//     classification (retryable vs terminal) consistent across components.
//
// Use these helpers when wiring new workflow logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services

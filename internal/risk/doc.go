// Package risk turns per-frame detections into a footage-level risk
// assessment.
//
// Responsibilities: scoring a single frame (EvaluateFrame), aggregating the
// frame scores of a run into a score and tier (AggregateVideoRisk), deriving
// named violation findings (SummarizeViolations) and the frame statistics
// reported alongside them (ComputeFrameStats).
//
// Every function here is deterministic and total over well-formed input.
// No I/O, logging or randomness is allowed in this package.
package risk

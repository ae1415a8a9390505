// Package telemetry accumulates metric fields per (id, marker) and publishes
// them as one JSON object.
//
// Each marker has an allow-list of field names; fields outside it are dropped
// on Record. Publish flushes and clears the accumulated fields.
package telemetry

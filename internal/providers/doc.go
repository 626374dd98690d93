// Package providers defines the narrow capability contracts the pipeline
// depends on for hosted-model invocation. The orchestrator never sees a
// provider's wire format, only the Request/Result shape and classified errors.
package providers

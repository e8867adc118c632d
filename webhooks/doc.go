// Package webhooks ingests GitHub webhook deliveries: signature
// verification, replay suppression, durable dedupe, event classification,
// and handoff to claim resolution.
package webhooks

// Package services defines the error taxonomy shared by pipeline stages and
// external integrations, so the CLI can classify failures uniformly.
package services

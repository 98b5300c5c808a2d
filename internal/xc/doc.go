// Package xc defines the domain types, error taxonomy and collaborator
// interfaces shared by the cross-country results ingestion pipeline:
// discovery, dedup, scheduling, parsing and persistence.
package xc

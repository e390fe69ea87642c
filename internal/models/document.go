package models

import "time"

// Document is a fetched source page. It lives only for the duration of an
// ingestion run; the store keeps chunks, not documents.
type Document struct {
	URL       string
	Title     string
	Content   string
	FetchedAt time.Time
}

// VectorRecord is one stored chunk with its embedding. Text doubles as the
// dedup key: the store never holds two records with identical text.
type VectorRecord struct {
	ID     string
	Vector []float32
	Text   string
}

// SearchResult is a record returned from nearest-neighbor search together
// with its distance under the collection's metric (smaller is closer).
type SearchResult struct {
	VectorRecord
	Distance float64
}

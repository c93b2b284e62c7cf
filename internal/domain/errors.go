package domain

import "errors"

var (
	// ErrEmbeddingUnavailable signals that the embedding provider failed or timed out.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrVectorStoreUnavailable signals that the vector index failed or timed out.
	ErrVectorStoreUnavailable = errors.New("vector store unavailable")
	// ErrLexicalIndexCorrupt signals a structurally invalid lexical index.
	// Lexical search halts until an operator triggers a rebuild.
	ErrLexicalIndexCorrupt = errors.New("lexical index corrupt")
	// ErrRetrievalUnavailable signals that both retrieval sources failed.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
	// ErrInvalidQuery signals empty or oversized query input.
	ErrInvalidQuery = errors.New("invalid query")

	// ErrDocumentNotFound signals a missing knowledge document.
	ErrDocumentNotFound = errors.New("document not found")
	// ErrIncidentNotFound signals a missing incident record.
	ErrIncidentNotFound = errors.New("incident not found")
)

// Package repository provides the content repository client used by the
// migration pipeline: text-language search with pagination, folder listing,
// and the write primitives (move, create folder, update properties).
package repository

import (
	"context"
	"time"
)

// Entry is one node returned by the content repository.
type Entry struct {
	ID         string
	Name       string
	NodeType   string
	ParentID   string
	IsFolder   bool
	Path       string // display path of the containing folder, e.g. "/Company Home/DOSSIERS-PI/PI102206"
	CreatedAt  time.Time
	Properties map[string]any
}

// SearchResult is one page of search hits.
type SearchResult struct {
	Entries    []Entry
	HasMore    bool
	TotalItems int
}

// Sort is one sort criterion for a search.
type Sort struct {
	Field     string
	Ascending bool
}

// Reader is the read side of the content repository.
type Reader interface {
	// Search executes a text-language query with skip/take pagination.
	Search(ctx context.Context, query string, skip, take int, sort []Sort) (SearchResult, error)
	// GetChildren lists the direct children of a folder.
	GetChildren(ctx context.Context, folderID string) ([]Entry, error)
}

// Writer is the write side of the content repository.
type Writer interface {
	// MoveDocument moves a node under the destination folder. A false return
	// with nil error is a logical rejection by the repository.
	MoveDocument(ctx context.Context, nodeID, destFolderID string) (bool, error)
	// CreateFolder creates a child folder, returning the existing node id if a
	// folder of that name is already present (idempotent).
	CreateFolder(ctx context.Context, parentID, name string, properties map[string]any) (string, error)
	// UpdateNodeProperties patches node metadata.
	UpdateNodeProperties(ctx context.Context, nodeID string, properties map[string]any) (bool, error)
}

// ReadWriter combines both sides of the repository API.
type ReadWriter interface {
	Reader
	Writer
}

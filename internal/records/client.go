package records

import (
	"context"
	"time"
)

// Record is a single row in a backend table. Fields are keyed by field name;
// values keep the backend's JSON typing (strings, numbers, bools, lists).
type Record struct {
	ID          string
	Fields      map[string]any
	CreatedTime time.Time
}

// Attachment describes a stored file object.
type Attachment struct {
	ID       string
	URL      string
	Filename string
}

// Lookups holds linked-record display names resolved from the auxiliary tables.
type Lookups struct {
	Owners   map[string]string
	Markets  map[string]string
	Pages    map[string]string
	Products map[string]string
	KPIs     map[string]string
}

// Client is the interface for interacting with the record backend.
type Client interface {
	ListRecords(ctx context.Context, table string) ([]Record, error)
	GetRecord(ctx context.Context, table, id string) (*Record, error)
	CreateRecord(ctx context.Context, table string, fields map[string]any) (*Record, error)
	// UpdateRecordFields sends only the provided fields; untouched fields are
	// never part of the payload.
	UpdateRecordFields(ctx context.Context, table, id string, fields map[string]any) (*Record, error)
	UploadAttachment(ctx context.Context, filename string, data []byte) (*Attachment, error)
	DeleteAttachment(ctx context.Context, table, recordID, field, attachmentID string) error
	ResolveLookups(ctx context.Context) (*Lookups, error)
}

// Table names used by the dashboard.
const (
	TableExperiments = "Experiments"
	TableOwners      = "Owners"
	TableMarkets     = "Markets"
	TablePages       = "Pages"
	TableProducts    = "Products"
	TableKPIs        = "KPIs"
)

// Config holds the authentication and connection settings for the record backend.
type Config struct {
	BaseURL   string
	APIKey    string
	Workspace string

	// Performance Settings
	RequestDelay time.Duration
}

// NewClient creates a new record backend client based on the provided configuration.
func NewClient(cfg Config) Client {
	return newHTTPClient(cfg)
}

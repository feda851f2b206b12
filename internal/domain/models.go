package domain

import (
	"fmt"
	"strings"
)

// Environment partitions every remote namespace and every local table.
type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

// Environments lists every known environment in display order.
var Environments = []Environment{Sandbox, Production}

func ParseEnvironment(s string) (Environment, error) {
	switch Environment(strings.ToLower(strings.TrimSpace(s))) {
	case Sandbox:
		return Sandbox, nil
	case Production:
		return Production, nil
	}
	return "", fmt.Errorf("unknown environment %q (want sandbox or production)", s)
}

func (e Environment) String() string { return string(e) }

// EntityType names a locally tracked table.
type EntityType string

const (
	EntityCategory EntityType = "category"
	EntityItem     EntityType = "menu_item"
	EntityImage    EntityType = "image"
	EntityLocation EntityType = "location"
)

type SyncOperation string

const (
	OpCreate SyncOperation = "create"
	OpUpdate SyncOperation = "update"
	OpDelete SyncOperation = "delete"
)

type SyncStatus string

const (
	StatusSuccess SyncStatus = "success"
	StatusError   SyncStatus = "error"
)

type Category struct {
	ID          int64       `db:"id"`
	Environment Environment `db:"environment"`
	RemoteID    string      `db:"remote_id"`
	Name        string      `db:"name"`
	Description string      `db:"description"`
	Version     int64       `db:"version"`
	CreatedAt   string      `db:"created_at"`
	UpdatedAt   string      `db:"updated_at"`
}

type Item struct {
	ID               int64       `db:"id"`
	Environment      Environment `db:"environment"`
	RemoteID         string      `db:"remote_id"`
	Name             string      `db:"name"`
	CategoryRemoteID string      `db:"category_remote_id"`
	Description      string      `db:"description"`
	PriceAmount      int64       `db:"price_amount"`
	ImageRemoteID    string      `db:"image_remote_id"`
	SourceURL        string      `db:"source_url"`
	Version          int64       `db:"version"`
	CreatedAt        string      `db:"created_at"`
	UpdatedAt        string      `db:"updated_at"`

	Variations []Variation `db:"-"`
}

// Variation is owned by exactly one Item.
type Variation struct {
	Environment  Environment `db:"environment"`
	RemoteID     string      `db:"remote_id"`
	ItemRemoteID string      `db:"item_remote_id"`
	Name         string      `db:"name"`
	PricingMode  string      `db:"pricing_mode"` // FIXED_PRICING
	PriceAmount  int64       `db:"price_amount"` // minor currency units
	CurrencyCode string      `db:"currency_code"`
	Version      int64       `db:"version"`
}

type Image struct {
	ID           int64       `db:"id"`
	Environment  Environment `db:"environment"`
	RemoteID     string      `db:"remote_id"`
	SourceURL    string      `db:"source_url"`
	LocalPath    string      `db:"local_path"`
	DownloadedAt string      `db:"downloaded_at"`
	UploadedAt   string      `db:"uploaded_at"`
	CreatedAt    string      `db:"created_at"`
}

type Location struct {
	ID          int64       `db:"id"`
	Environment Environment `db:"environment"`
	RemoteID    string      `db:"remote_id"`
	Name        string      `db:"name"`
	StoreNumber string      `db:"store_number"`
	Address     string      `db:"address"`
	Phone       string      `db:"phone"`
	CreatedAt   string      `db:"created_at"`
	UpdatedAt   string      `db:"updated_at"`
}

// SyncLogEntry is append-only.
type SyncLogEntry struct {
	ID           int64         `db:"id" json:"id"`
	Environment  Environment   `db:"environment" json:"environment"`
	Operation    SyncOperation `db:"operation" json:"operation"`
	ObjectType   EntityType    `db:"object_type" json:"object_type"`
	RemoteID     string        `db:"remote_id" json:"remote_id"`
	Status       SyncStatus    `db:"status" json:"status"`
	ErrorMessage string        `db:"error_message" json:"error_message,omitempty"`
	CreatedAt    string        `db:"created_at" json:"created_at"`
}

// Snapshot is the flattened name -> remote id view exported to JSON.
type Snapshot struct {
	Categories map[string]string `json:"categories"`
	Items      map[string]string `json:"items"`
}

// Summary holds row counts per table for one environment.
type Summary struct {
	Environment Environment `json:"environment"`
	Locations   int         `json:"locations"`
	Categories  int         `json:"categories"`
	Items       int         `json:"items"`
	Variations  int         `json:"variations"`
	Images      int         `json:"images"`
	SyncLog     int         `json:"sync_log"`
}

// Duplicates groups remote IDs sharing a name, only for names with more than one member.
type Duplicates struct {
	Items      map[string][]string `json:"items"`
	Categories map[string][]string `json:"categories"`
}

func (d Duplicates) Empty() bool { return len(d.Items) == 0 && len(d.Categories) == 0 }

// Count returns the number of duplicated names across both types.
func (d Duplicates) Count() int { return len(d.Items) + len(d.Categories) }

// Package backend defines the remote catalog contract consumed by the
// reconciliation services, together with a typed object schema.
//
// Objects are tagged variants: exactly one of the *Data fields matches
// Type. Clients validate this at the boundary (see Object.Validate) so the
// services never probe for missing fields.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"menusync/internal/domain"
)

type ObjectType string

const (
	TypeCategory      ObjectType = "CATEGORY"
	TypeItem          ObjectType = "ITEM"
	TypeItemVariation ObjectType = "ITEM_VARIATION"
	TypeImage         ObjectType = "IMAGE"
)

const (
	PricingFixed = "FIXED_PRICING"

	// PlaceholderPrefix marks client-chosen temporary ids for objects that
	// do not exist remotely yet.
	PlaceholderPrefix = "#"

	// MaxDescriptionLength is the remote limit on item descriptions.
	MaxDescriptionLength = 500
)

// ErrListingUnsupported is returned by ListObjects when the backend cannot
// reliably list the requested type directly.
var ErrListingUnsupported = errors.New("listing unsupported for type")

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type CategoryData struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type ItemVariationData struct {
	ItemID      string `json:"item_id,omitempty"`
	Name        string `json:"name"`
	PricingType string `json:"pricing_type"`
	PriceMoney  *Money `json:"price_money,omitempty"`
}

type ItemData struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CategoryID  string   `json:"category_id,omitempty"`
	Variations  []Object `json:"variations,omitempty"`
	ImageIDs    []string `json:"image_ids,omitempty"`
}

type ImageData struct {
	Name    string `json:"name,omitempty"`
	Caption string `json:"caption,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Object is one catalog entity.
type Object struct {
	Type              ObjectType         `json:"type"`
	ID                string             `json:"id"`
	Version           int64              `json:"version,omitempty"`
	IsDeleted         bool               `json:"is_deleted,omitempty"`
	CategoryData      *CategoryData      `json:"category_data,omitempty"`
	ItemData          *ItemData          `json:"item_data,omitempty"`
	ItemVariationData *ItemVariationData `json:"item_variation_data,omitempty"`
	ImageData         *ImageData         `json:"image_data,omitempty"`
}

// Name returns the display name carried by the object's payload.
func (o Object) Name() string {
	switch o.Type {
	case TypeCategory:
		if o.CategoryData != nil {
			return o.CategoryData.Name
		}
	case TypeItem:
		if o.ItemData != nil {
			return o.ItemData.Name
		}
	case TypeItemVariation:
		if o.ItemVariationData != nil {
			return o.ItemVariationData.Name
		}
	case TypeImage:
		if o.ImageData != nil {
			return o.ImageData.Name
		}
	}
	return ""
}

// Validate checks that the payload variant matches Type.
func (o Object) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("%s object without id", o.Type)
	}
	var ok bool
	switch o.Type {
	case TypeCategory:
		ok = o.CategoryData != nil
	case TypeItem:
		ok = o.ItemData != nil
		if ok {
			for _, v := range o.ItemData.Variations {
				if err := v.Validate(); err != nil {
					return fmt.Errorf("item %s: %w", o.ID, err)
				}
			}
		}
	case TypeItemVariation:
		ok = o.ItemVariationData != nil
	case TypeImage:
		ok = o.ImageData != nil
	default:
		// other remote types pass through untouched
		return nil
	}
	if !ok {
		return fmt.Errorf("%s object %s missing %s data", o.Type, o.ID, strings.ToLower(string(o.Type)))
	}
	return nil
}

// CategoryID returns the item's category reference, or "".
func (o Object) CategoryID() string {
	if o.Type == TypeItem && o.ItemData != nil {
		return o.ItemData.CategoryID
	}
	return ""
}

func IsPlaceholderID(id string) bool { return strings.HasPrefix(id, PlaceholderPrefix) }

// ObjectSummary is what item search returns before a batch get.
type ObjectSummary struct {
	ID      string
	Type    ObjectType
	Name    string
	Version int64
}

type BatchGetResult struct {
	Objects        []Object
	RelatedObjects []Object
}

// IDMapping links a placeholder id to the id the backend issued for it.
type IDMapping struct {
	ClientObjectID string `json:"client_object_id"`
	ObjectID       string `json:"object_id"`
}

type Address struct {
	AddressLine1 string `json:"address_line_1,omitempty"`
	AddressLine2 string `json:"address_line_2,omitempty"`
	Locality     string `json:"locality,omitempty"`
	Region       string `json:"administrative_district_level_1,omitempty"`
	PostalCode   string `json:"postal_code,omitempty"`
	Country      string `json:"country,omitempty"`
}

func (a *Address) String() string {
	if a == nil {
		return ""
	}
	parts := []string{}
	for _, p := range []string{a.AddressLine1, a.AddressLine2, a.Locality, strings.TrimSpace(a.Region + " " + a.PostalCode), a.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

type Location struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Status      string   `json:"status,omitempty"`
	Type        string   `json:"type,omitempty"`
	Address     *Address `json:"address,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
}

// ImageUpload describes a file to attach as a new catalog image.
type ImageUpload struct {
	Caption     string
	Filename    string
	ContentType string
	Body        io.Reader
}

// Catalog is the remote system of record. Every call blocks until the
// remote responds; error entries are returned as *errs.BackendError.
type Catalog interface {
	ListObjects(ctx context.Context, types ...ObjectType) ([]Object, error)
	SearchItems(ctx context.Context) ([]ObjectSummary, error)
	BatchGet(ctx context.Context, ids []string) (BatchGetResult, error)
	BatchUpsert(ctx context.Context, idempotencyKey string, objects []Object) ([]Object, []IDMapping, error)
	// BatchDelete returns the ids actually deleted, which may be a subset
	// of ids when an error is also returned.
	BatchDelete(ctx context.Context, ids []string) ([]string, error)
	GetObject(ctx context.Context, id string) (Object, error)
	CreateImage(ctx context.Context, idempotencyKey string, upload ImageUpload) (Object, error)
	ListLocations(ctx context.Context) ([]Location, error)
	CreateLocation(ctx context.Context, loc Location) (Location, error)
}

// Resolver returns the Catalog bound to one environment's credentials.
type Resolver interface {
	For(env domain.Environment) (Catalog, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(env domain.Environment) (Catalog, error)

func (f ResolverFunc) For(env domain.Environment) (Catalog, error) { return f(env) }

// Static resolves every environment to its entry in the map.
type Static map[domain.Environment]Catalog

func (s Static) For(env domain.Environment) (Catalog, error) {
	c, ok := s[env]
	if !ok {
		return nil, fmt.Errorf("no catalog backend configured for %s", env)
	}
	return c, nil
}

// Package manifest loads the YAML menu description that drives setup.
//
//	currency: USD
//	categories:
//	  - name: Wraps
//	    description: Hand rolled
//	items:
//	  - name: Buffalo Chicken Wrap
//	    category: Wraps
//	    price: 11.49
//	    image_url: https://cdn.example.com/buffalo.jpg
//	stores:
//	  - number: 8
//	    name: Midtown East
package manifest

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"menusync/internal/backend"
	"menusync/internal/errs"
	"menusync/internal/stores"
	"menusync/internal/validate"
)

const DefaultVariation = "Regular"

// Price is an amount in minor units, written in YAML as 11.49 or "$11.49".
type Price int64

func (p *Price) UnmarshalYAML(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"'`)
	v, ok := validate.Price(s)
	if !ok {
		return fmt.Errorf("invalid price %q", s)
	}
	*p = Price(v)
	return nil
}

func (p Price) String() string { return fmt.Sprintf("%d.%02d", int64(p)/100, int64(p)%100) }

type Category struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type Item struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Description string `yaml:"description"`
	Price       Price  `yaml:"price"`
	Variation   string `yaml:"variation"`
	ImageURL    string `yaml:"image_url"`
}

type Store struct {
	Number   int    `yaml:"number"`
	Name     string `yaml:"name"`
	Address1 string `yaml:"address_1"`
	Address2 string `yaml:"address_2"`
	City     string `yaml:"city"`
	State    string `yaml:"state"`
	Zip      string `yaml:"zipcode"`
	Phone    string `yaml:"phone"`
}

func (s Store) Store() stores.Store {
	return stores.Store{
		Number: strconv.Itoa(s.Number),
		Name:   s.Name,
		Phone:  s.Phone,
		Address: backend.Address{
			AddressLine1: s.Address1,
			AddressLine2: s.Address2,
			Locality:     s.City,
			Region:       s.State,
			PostalCode:   s.Zip,
		},
	}
}

type Manifest struct {
	Currency   string     `yaml:"currency"`
	Categories []Category `yaml:"categories"`
	Items      []Item     `yaml:"items"`
	Stores     []Store    `yaml:"stores"`
}

func Load(path string) (*Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes and validates b, filling defaults.
func Parse(b []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate normalises names and checks references. Unknown categories
// surface as errs.NotFoundError.
func (m *Manifest) Validate() error {
	var problems []error
	if m.Currency != "" {
		cur, ok := validate.Currency(m.Currency)
		if !ok {
			problems = append(problems, fmt.Errorf("invalid currency %q", m.Currency))
		}
		m.Currency = cur
	}

	cats := map[string]bool{}
	for i := range m.Categories {
		c := &m.Categories[i]
		name, ok := validate.Name(c.Name)
		if !ok {
			problems = append(problems, fmt.Errorf("categories[%d]: invalid name %q", i, c.Name))
			continue
		}
		if cats[name] {
			problems = append(problems, fmt.Errorf("categories[%d]: duplicate name %q", i, name))
		}
		c.Name = name
		cats[name] = true
	}

	items := map[string]bool{}
	for i := range m.Items {
		it := &m.Items[i]
		name, ok := validate.Name(it.Name)
		if !ok {
			problems = append(problems, fmt.Errorf("items[%d]: invalid name %q", i, it.Name))
			continue
		}
		if items[name] {
			problems = append(problems, fmt.Errorf("items[%d]: duplicate name %q", i, name))
		}
		it.Name = name
		items[name] = true

		if it.Category != "" {
			cat, _ := validate.Name(it.Category)
			if !cats[cat] {
				problems = append(problems, fmt.Errorf("items[%d] %s: %w", i, name, errs.NewNotFoundError("category", it.Category)))
			}
			it.Category = cat
		}
		if it.Variation == "" {
			it.Variation = DefaultVariation
		}
	}

	for i, s := range m.Stores {
		if s.Number <= 0 || strings.TrimSpace(s.Name) == "" {
			problems = append(problems, fmt.Errorf("stores[%d]: number and name are required", i))
		}
	}
	return errors.Join(problems...)
}

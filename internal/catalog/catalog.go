// Package catalog holds the static brand reference data: the branch
// directory, the product catalog and brand-level settings.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"chatcommerce/internal/domain"
)

// DefaultDeliveryRadiusKm applies when the brand file leaves the radius unset.
const DefaultDeliveryRadiusKm = 6.0

type brandFile struct {
	Name             string          `yaml:"name"`
	Greeting         string          `yaml:"greeting"`
	CatalogID        string          `yaml:"catalog_id"`
	DeliveryRadiusKm float64         `yaml:"delivery_radius_km"`
	BulkOrderContact string          `yaml:"bulk_order_contact"`
	Branches         []domain.Branch `yaml:"branches"`
	Products         []productEntry  `yaml:"products"`
}

type productEntry struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Price float64 `yaml:"price"`
}

// Directory is read-only after loading.
type Directory struct {
	Name             string
	Greeting         string
	CatalogID        string
	DeliveryRadiusKm float64
	BulkOrderContact string

	branches []domain.Branch
	products map[string]domain.Product
	order    []string
}

// New builds a directory from in-memory data.
func New(name string, radiusKm float64, branches []domain.Branch, products []domain.Product) *Directory {
	d := &Directory{
		Name:             name,
		DeliveryRadiusKm: radiusKm,
		branches:         branches,
		products:         make(map[string]domain.Product, len(products)),
	}
	if d.DeliveryRadiusKm <= 0 {
		d.DeliveryRadiusKm = DefaultDeliveryRadiusKm
	}
	d.AddProducts(products...)
	return d
}

// Load reads a YAML brand file.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open brand file: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a YAML brand document and validates it.
func Parse(r io.Reader) (*Directory, error) {
	var bf brandFile
	if err := yaml.NewDecoder(r).Decode(&bf); err != nil {
		return nil, fmt.Errorf("decode brand file: %w", err)
	}
	if strings.TrimSpace(bf.Name) == "" {
		return nil, fmt.Errorf("brand name required")
	}
	for _, b := range bf.Branches {
		if strings.TrimSpace(b.Name) == "" {
			return nil, fmt.Errorf("branch name required")
		}
	}

	products := make([]domain.Product, 0, len(bf.Products))
	for _, p := range bf.Products {
		if p.ID == "" || p.Name == "" || p.Price <= 0 {
			return nil, fmt.Errorf("invalid product %q (id, name and positive price required)", p.ID)
		}
		products = append(products, domain.Product{ID: p.ID, Name: p.Name, Price: domain.ToMinor(p.Price)})
	}

	d := New(bf.Name, bf.DeliveryRadiusKm, bf.Branches, products)
	d.Greeting = bf.Greeting
	d.CatalogID = bf.CatalogID
	d.BulkOrderContact = bf.BulkOrderContact
	return d, nil
}

// AddProducts inserts or replaces products, keeping first-seen order.
func (d *Directory) AddProducts(products ...domain.Product) {
	for _, p := range products {
		if _, ok := d.products[p.ID]; !ok {
			d.order = append(d.order, p.ID)
		}
		d.products[p.ID] = p
	}
}

func (d *Directory) Product(id string) (domain.Product, bool) {
	p, ok := d.products[id]
	return p, ok
}

func (d *Directory) Products() []domain.Product {
	out := make([]domain.Product, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.products[id])
	}
	return out
}

func (d *Directory) Branches() []domain.Branch {
	return d.branches
}

// Branch matches a branch name case-insensitively.
func (d *Directory) Branch(name string) (domain.Branch, bool) {
	name = strings.TrimSpace(name)
	for _, b := range d.branches {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return domain.Branch{}, false
}

// IsBranchContact reports whether phone belongs to any branch.
func (d *Directory) IsBranchContact(phone string) bool {
	for _, b := range d.branches {
		for _, c := range b.Contacts {
			if c == phone {
				return true
			}
		}
	}
	return false
}

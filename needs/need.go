package needs

import (
	"fmt"
	"strconv"

	"github.com/jrsteele09/go-supplier-portal/internal/utils"
)

// Need is an open procurement request published by the portal. The client only reads it.
type Need struct {
	RequestID      string  `json:"requestId" yaml:"requestId"`                               // Unique key, referenced by proposals
	Title          string  `json:"title" yaml:"title"`                                       // Short name of the requested goods
	Description    *string `json:"description,omitempty" yaml:"description,omitempty"`       // Free text details
	Category       *string `json:"category,omitempty" yaml:"category,omitempty"`             // Procurement category
	TotalQuantity  float64 `json:"totalQuantity" yaml:"totalQuantity"`                       // Quantity across all deliveries
	Unit           *string `json:"unit,omitempty" yaml:"unit,omitempty"`                     // Unit of measure, e.g. "шт"
	DeliveryPeriod *string `json:"deliveryPeriod,omitempty" yaml:"deliveryPeriod,omitempty"` // Requested delivery window
}

// Quantity renders the total quantity together with its unit.
func (n Need) Quantity() string {
	qty := strconv.FormatFloat(n.TotalQuantity, 'f', -1, 64)
	if unit := utils.Value(n.Unit); unit != "" {
		return fmt.Sprintf("%s %s", qty, unit)
	}
	return qty
}

// Catalog indexes needs by RequestID. The first occurrence of a duplicated id wins.
type Catalog struct {
	byID  map[string]*Need
	order []string
}

func NewCatalog(list []Need) *Catalog {
	c := &Catalog{
		byID:  make(map[string]*Need, len(list)),
		order: make([]string, 0, len(list)),
	}
	for i := range list {
		id := list[i].RequestID
		if _, exists := c.byID[id]; exists {
			continue
		}
		n := list[i]
		c.byID[id] = &n
		c.order = append(c.order, id)
	}
	return c
}

// Get returns a copy of the need with id.
func (c *Catalog) Get(id string) (*Need, bool) {
	n, ok := c.byID[id]
	if !ok {
		return nil, false
	}
	cp := *n
	return &cp, true
}

func (c *Catalog) Len() int {
	return len(c.order)
}

// List returns the needs in the order they were fetched.
func (c *Catalog) List() []Need {
	out := make([]Need, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, *c.byID[id])
	}
	return out
}

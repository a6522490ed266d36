package cms

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/taberna/internal/domain/product"
)

const (
	menuPath       = "/api/item-menus?populate=*"
	menuCreatePath = "/api/item-menus"
)

// Products reads the menu. It implements product.Repository.
type Products struct {
	c *Client
}

var _ product.Repository = (*Products)(nil)

// Products returns the menu repository.
func (c *Client) Products() *Products {
	return &Products{c: c}
}

// List fetches every menu item. Records without id or name are skipped.
func (p *Products) List(ctx context.Context) ([]product.Product, error) {
	data, err := p.c.do(ctx, http.MethodGet, menuPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch menu")
	}

	var out []product.Product
	err = decodeData(data, func(d *jx.Decoder) error {
		if d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var r menuRecord
			if err := r.decode(d); err != nil {
				return err
			}
			if r.id <= 0 || r.name == "" {
				zctx.From(ctx).Warn("Skipping menu record without id or name",
					zap.Int("id", r.id),
					zap.String("name", r.name),
				)
				return nil
			}
			out = append(out, r.product(p.c))
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode menu")
	}
	return out, nil
}

// NewItem is a menu item to create. SectionID links an existing section, zero
// leaves it unset.
type NewItem struct {
	Name        string
	Description string
	Price       decimal.Decimal
	SectionID   int
}

// Create adds a menu item and returns the id the CMS assigned.
func (p *Products) Create(ctx context.Context, item NewItem) (int, error) {
	data, err := p.c.do(ctx, http.MethodPost, menuCreatePath, encodeItem(item))
	if err != nil {
		return 0, errors.Wrapf(err, "post menu item %q", item.Name)
	}

	var r menuRecord
	if err := decodeData(data, r.decode); err != nil {
		return 0, errors.Wrap(err, "decode created menu item")
	}
	if r.id <= 0 {
		return 0, errors.Errorf("created menu item %q has no id", item.Name)
	}
	return r.id, nil
}

func encodeItem(item NewItem) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()

	e.FieldStart("name")
	e.Str(item.Name)
	e.FieldStart("decription")
	e.Str(item.Description)
	e.FieldStart("price")
	e.Float64(item.Price.InexactFloat64())
	if item.SectionID > 0 {
		e.FieldStart("section")
		e.Int(item.SectionID)
	}

	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

// menuRecord is an item-menu entry. Strapi v5 returns flat records, v4 nests
// the fields under "attributes".
type menuRecord struct {
	id          int
	name        string
	description string
	// misspelled field name used by the content type
	decription string
	price      decimal.Decimal
	image      string
	section    string
}

func (r *menuRecord) decode(d *jx.Decoder) error {
	if d.Next() != jx.Object {
		return d.Skip()
	}
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "id":
			id, _, err := readInt(d)
			r.id = id
			return err
		case "attributes":
			return r.decode(d)
		case "name":
			s, err := readString(d)
			r.name = strings.TrimSpace(s)
			return err
		case "description":
			s, err := readString(d)
			r.description = s
			return err
		case "decription":
			s, err := readString(d)
			r.decription = s
			return err
		case "price":
			v, err := readDecimal(d)
			r.price = v
			return err
		case "imagen":
			s, err := readMedia(d)
			r.image = s
			return err
		case "section":
			s, err := readSection(d)
			r.section = s
			return err
		default:
			return d.Skip()
		}
	})
}

func (r *menuRecord) product(c *Client) product.Product {
	desc := r.description
	if desc == "" {
		desc = r.decription
	}
	return product.Product{
		ID:          r.id,
		Name:        r.name,
		Description: desc,
		Price:       r.price,
		ImageURL:    c.MediaURL(r.image),
		Section:     r.section,
	}
}

// readDecimal accepts a JSON number or a numeric string. Anything else is zero.
func readDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = n.String()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	default:
		return decimal.Zero, d.Skip()
	}
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, nil
	}
	return v, nil
}

// readMedia returns the first URL of a media field, which may be a single
// object with url, an array of those, or a v4 {data: ...} wrapper whose
// entries keep url under attributes.
func readMedia(d *jx.Decoder) (string, error) {
	var found string
	var walk func(d *jx.Decoder) error
	walk = func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.Array:
			return d.Arr(func(d *jx.Decoder) error {
				if found != "" {
					return d.Skip()
				}
				return walk(d)
			})
		case jx.Object:
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "url":
					s, err := readString(d)
					if found == "" {
						found = s
					}
					return err
				case "data", "attributes":
					return walk(d)
				default:
					return d.Skip()
				}
			})
		default:
			return d.Skip()
		}
	}
	if err := walk(d); err != nil {
		return "", err
	}
	return found, nil
}

// readSection returns the section name of a relation, which may be a plain
// string, {name}, or a v4 {data:{attributes:{name}}} wrapper.
func readSection(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Object:
		var name string
		err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			switch string(key) {
			case "name":
				s, err := readString(d)
				name = s
				return err
			case "data", "attributes":
				s, err := readSection(d)
				if s != "" {
					name = s
				}
				return err
			default:
				return d.Skip()
			}
		})
		return name, err
	default:
		return "", d.Skip()
	}
}

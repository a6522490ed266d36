package cms

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"

	"github.com/xenking/taberna/internal/domain/order"
)

const (
	ordersPath     = "/api/orders"
	ordersListPath = "/api/orders?populate=*&sort=createdAt:desc"
)

// Orders stores orders in the CMS. It implements order.Repository.
type Orders struct {
	c   *Client
	now func() time.Time
}

var _ order.Repository = (*Orders)(nil)

// Orders returns the order repository.
func (c *Client) Orders() *Orders {
	return &Orders{c: c, now: time.Now}
}

// Create posts o and fills in the id and creation time the CMS assigned.
func (r *Orders) Create(ctx context.Context, o *order.Order) error {
	data, err := r.c.do(ctx, http.MethodPost, ordersPath, encodeOrder(o))
	if err != nil {
		return errors.Wrap(err, "post order")
	}

	var rec orderRecord
	if err := decodeData(data, rec.decode); err != nil {
		return errors.Wrap(err, "decode created order")
	}
	if rec.id <= 0 {
		return errors.New("created order has no id")
	}

	o.ID = rec.id
	o.CreatedAt = rec.createdAt
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now().UTC()
	}
	return nil
}

// List returns all orders, newest first.
func (r *Orders) List(ctx context.Context) ([]order.Order, error) {
	data, err := r.c.do(ctx, http.MethodGet, ordersListPath, nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetch orders")
	}

	var out []order.Order
	err = decodeData(data, func(d *jx.Decoder) error {
		if d.Next() != jx.Array {
			return d.Skip()
		}
		return d.Arr(func(d *jx.Decoder) error {
			var rec orderRecord
			if err := rec.decode(d); err != nil {
				return err
			}
			if rec.id <= 0 {
				zctx.From(ctx).Warn("Skipping order record without id")
				return nil
			}
			out = append(out, rec.order())
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode orders")
	}
	return out, nil
}

// encodeOrder renders the Strapi create payload:
//
//	{"data":{"table":"Mesa 1","item_menus":[7,9],"amount":{"7":2,"9":1},
//	 "total":25,"order_status":"Pending","comment":"Cliente: Ana\n"}}
func encodeOrder(o *order.Order) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("data")
	e.ObjStart()

	e.FieldStart("table")
	e.Str(o.Table)

	e.FieldStart("item_menus")
	e.ArrStart()
	for _, id := range o.ItemIDs {
		e.Int(id)
	}
	e.ArrEnd()

	ids := make([]int, 0, len(o.Amounts))
	for id := range o.Amounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	e.FieldStart("amount")
	e.ObjStart()
	for _, id := range ids {
		e.FieldStart(strconv.Itoa(id))
		e.Int(o.Amounts[id])
	}
	e.ObjEnd()

	e.FieldStart("total")
	e.Float64(o.Total.InexactFloat64())

	e.FieldStart("order_status")
	e.Str(string(o.Status))

	e.FieldStart("comment")
	e.Str(o.Comment)

	e.ObjEnd()
	e.ObjEnd()
	return e.Bytes()
}

type orderRecord struct {
	id        int
	table     string
	itemIDs   []int
	amounts   map[int]int
	total     decimal.Decimal
	status    string
	comment   string
	createdAt time.Time
}

func (r *orderRecord) decode(d *jx.Decoder) error {
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
		case "table":
			s, err := readString(d)
			r.table = s
			return err
		case "item_menus":
			ids, err := readRelationIDs(d)
			r.itemIDs = ids
			return err
		case "amount":
			m, err := readAmounts(d)
			r.amounts = m
			return err
		case "total":
			v, err := readDecimal(d)
			r.total = v
			return err
		case "order_status":
			s, err := readString(d)
			r.status = s
			return err
		case "comment":
			s, err := readString(d)
			r.comment = s
			return err
		case "createdAt":
			s, err := readString(d)
			if err != nil {
				return err
			}
			if t, perr := time.Parse(time.RFC3339Nano, s); perr == nil {
				r.createdAt = t
			}
			return nil
		default:
			return d.Skip()
		}
	})
}

func (r *orderRecord) order() order.Order {
	status := order.Status(r.status)
	if status == "" {
		status = order.StatusPending
	}
	return order.Order{
		ID:        r.id,
		Table:     r.table,
		ItemIDs:   r.itemIDs,
		Amounts:   r.amounts,
		Total:     r.total,
		Status:    status,
		Comment:   r.comment,
		CreatedAt: r.createdAt,
	}
}

// readRelationIDs reads a relation as plain ids, populated objects with an
// id, or a v4 {data:[{id}]} wrapper.
func readRelationIDs(d *jx.Decoder) ([]int, error) {
	var ids []int
	var walk func(d *jx.Decoder) error
	walk = func(d *jx.Decoder) error {
		switch d.Next() {
		case jx.Number, jx.String:
			id, ok, err := readInt(d)
			if ok && id > 0 {
				ids = append(ids, id)
			}
			return err
		case jx.Array:
			return d.Arr(walk)
		case jx.Object:
			return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
				switch string(key) {
				case "id", "data":
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
		return nil, err
	}
	return ids, nil
}

// readAmounts reads the id -> quantity object. Invalid entries are dropped.
func readAmounts(d *jx.Decoder) (map[int]int, error) {
	if d.Next() != jx.Object {
		return nil, d.Skip()
	}
	m := make(map[int]int)
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		id, ok := atoi(string(key))
		qty, qok, err := readInt(d)
		if err != nil {
			return err
		}
		if ok && qok && id > 0 && qty > 0 {
			m[id] = qty
		}
		return nil
	})
	return m, err
}

package notify

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/webshop/internal/domain/customer"
	"github.com/xenking/webshop/internal/domain/order"
)

// Address is a mail participant.
type Address struct {
	Name  string
	Email string
}

// Message is a rendered order mail ready for a Sink.
type Message struct {
	OrderID int64
	From    Address
	To      Address
	Subject string
	Text    string
	HTML    string
}

// Render builds the order mail for o. The body lists one line per order
// line as quantity and label separated by a tab.
func Render(from Address, c *customer.Customer, o *order.Order) Message {
	var html, text strings.Builder
	fmt.Fprintf(&html, "<h3>New order no. <b>%d</b></h3>\n", o.ID)
	fmt.Fprintf(&text, "New order no. %d\n\n", o.ID)
	for _, l := range o.Lines {
		fmt.Fprintf(&html, "%d\t%s<br/>\n", l.Quantity, l.Label())
		fmt.Fprintf(&text, "%d\t%s\n", l.Quantity, l.Label())
	}

	return Message{
		OrderID: o.ID,
		From:    from,
		To: Address{
			Name:  strings.TrimSpace(c.Identity.FirstName + " " + c.Identity.LastName),
			Email: c.Identity.Email,
		},
		Subject: "New order no. " + strconv.FormatInt(o.ID, 10),
		Text:    text.String(),
		HTML:    html.String(),
	}
}

// Encode writes m as a JSON mail job.
func (m Message) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("orderId")
	e.Int64(m.OrderID)
	e.FieldStart("from")
	m.From.encode(e)
	e.FieldStart("to")
	m.To.encode(e)
	e.FieldStart("subject")
	e.Str(m.Subject)
	e.FieldStart("text")
	e.Str(m.Text)
	e.FieldStart("html")
	e.Str(m.HTML)
	e.ObjEnd()
}

// Decode reads a JSON mail job written by Encode.
func (m *Message) Decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "orderId":
			m.OrderID, err = d.Int64()
		case "from":
			err = m.From.decode(d)
		case "to":
			err = m.To.decode(d)
		case "subject":
			m.Subject, err = d.Str()
		case "text":
			m.Text, err = d.Str()
		case "html":
			m.HTML, err = d.Str()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
}

func (a Address) encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("name")
	e.Str(a.Name)
	e.FieldStart("email")
	e.Str(a.Email)
	e.ObjEnd()
}

func (a *Address) decode(d *jx.Decoder) error {
	return d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "name":
			a.Name, err = d.Str()
		case "email":
			a.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
}

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	var e jx.Encoder
	m.Encode(&e)
	return e.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	return m.Decode(jx.DecodeBytes(data))
}

package email

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/shared/money"
)

// Message is a rendered email ready to hand to the delivery API.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Composer renders order notifications. Customer supplied text is stripped of
// markup before it reaches the template.
type Composer struct {
	restaurant string
	printer    *message.Printer
	markdown   goldmark.Markdown
	strip      *bluemonday.Policy
	html       *bluemonday.Policy
}

func NewComposer(restaurant, locale string) *Composer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.German
	}
	return &Composer{
		restaurant: strings.TrimSpace(restaurant),
		printer:    message.NewPrinter(tag),
		markdown:   goldmark.New(goldmark.WithExtensions(extension.Table)),
		strip:      bluemonday.StrictPolicy(),
		html:       newEmailHTMLPolicy(),
	}
}

func newEmailHTMLPolicy() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("table", "thead", "tbody", "tr", "th", "td")
	policy.AllowAttrs("style").OnElements("th", "td")
	return policy
}

// Confirmation renders the "order accepted" email.
func (c *Composer) Confirmation(order *domain.Order, estimatedTimeLabel string) (Message, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", c.text(c.restaurant))
	fmt.Fprintf(&md, "Hello %s,\n\n", c.text(order.Customer.Name))
	fmt.Fprintf(&md, "your order **%s** has been confirmed.\n\n", order.ID)
	if estimatedTimeLabel != "" {
		if order.OrderType == domain.OrderTypePickup {
			fmt.Fprintf(&md, "It will be ready for pickup in about **%s**.\n\n", estimatedTimeLabel)
		} else {
			fmt.Fprintf(&md, "Estimated delivery time: **%s**.\n\n", estimatedTimeLabel)
		}
	}
	c.writeLines(&md, order)
	c.writeTotals(&md, order)
	if order.OrderType == domain.OrderTypeDelivery && order.Customer.Address != nil {
		addr := order.Customer.Address
		fmt.Fprintf(&md, "\nDelivery address: %s, %s %s\n", c.text(addr.Street), c.text(addr.Zip), c.text(addr.City))
	}
	if notes := strings.TrimSpace(order.Notes); notes != "" {
		fmt.Fprintf(&md, "\nYour notes: %s\n", c.text(notes))
	}
	fmt.Fprintf(&md, "\nPayment: %s\n\nThank you for ordering with %s!\n", paymentLabel(order.PaymentMethod), c.text(c.restaurant))

	return c.render(order, fmt.Sprintf("%s: order confirmed", c.restaurant), md.String())
}

// Cancellation renders the "order declined" email.
func (c *Composer) Cancellation(order *domain.Order) (Message, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", c.text(c.restaurant))
	fmt.Fprintf(&md, "Hello %s,\n\n", c.text(order.Customer.Name))
	fmt.Fprintf(&md, "unfortunately we cannot accept your order **%s** right now. ", order.ID)
	md.WriteString("Nothing will be charged.\n\n")
	c.writeLines(&md, order)
	fmt.Fprintf(&md, "\nWe apologise for the inconvenience.\n\n%s\n", c.text(c.restaurant))

	return c.render(order, fmt.Sprintf("%s: order cancelled", c.restaurant), md.String())
}

func (c *Composer) writeLines(md *strings.Builder, order *domain.Order) {
	md.WriteString("| Qty | Item | Price |\n|---:|---|---:|\n")
	for _, line := range order.Lines {
		item := c.text(line.Name)
		if line.SizeName != "" {
			item += " (" + c.text(line.SizeName) + ")"
		}
		if len(line.Extras) > 0 {
			names := make([]string, 0, len(line.Extras))
			for _, extra := range line.Extras {
				names = append(names, c.text(extra.Name))
			}
			item += " + " + strings.Join(names, ", ")
		}
		fmt.Fprintf(md, "| %d | %s | %s |\n", line.Quantity, item, c.Amount(line.Total()))
	}
	md.WriteString("\n")
}

func (c *Composer) writeTotals(md *strings.Builder, order *domain.Order) {
	fmt.Fprintf(md, "Subtotal: %s  \n", c.Amount(order.Subtotal))
	if order.DiscountAmount > 0 {
		names := make([]string, 0, len(order.AppliedDiscounts))
		for _, d := range order.AppliedDiscounts {
			names = append(names, c.text(d.Name))
		}
		fmt.Fprintf(md, "Discount (%s): -%s  \n", strings.Join(names, ", "), c.Amount(order.DiscountAmount))
	}
	if order.OrderType == domain.OrderTypeDelivery {
		fmt.Fprintf(md, "Delivery fee: %s  \n", c.Amount(order.DeliveryFee))
	}
	fmt.Fprintf(md, "**Total: %s**\n", c.Amount(order.TotalAmount))
}

func (c *Composer) render(order *domain.Order, subject, md string) (Message, error) {
	var buf bytes.Buffer
	if err := c.markdown.Convert([]byte(md), &buf); err != nil {
		return Message{}, fmt.Errorf("render email: %w", err)
	}
	return Message{
		To:      order.Customer.Email,
		Subject: subject,
		Text:    md,
		HTML:    c.html.Sanitize(buf.String()),
	}, nil
}

// Amount formats m for the configured locale, e.g. "12,90 €".
func (c *Composer) Amount(m money.Money) string {
	return c.printer.Sprintf("%.2f €", m.Float64())
}

// text strips markup from customer supplied values and escapes Markdown syntax.
func (c *Composer) text(raw string) string {
	return markdownEscaper.Replace(html.UnescapeString(c.strip.Sanitize(strings.TrimSpace(raw))))
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "[", `\[`, "]", `\]`,
	"#", `\#`, "|", `\|`, "<", `\<`, ">", `\>`,
)

func paymentLabel(method domain.PaymentMethod) string {
	if method == domain.PaymentPayPal {
		return "PayPal"
	}
	return "cash on delivery"
}

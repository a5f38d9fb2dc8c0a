package httppresentation

import (
	"time"

	apppay "github.com/Zhima-Mochi/winestore/internal/application/payment"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
)

// Wire shapes. Money is always minor units.

type productView struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	UnitPrice   int64     `json:"unit_price"`
	Quantity    int       `json:"quantity"`
	Summary     string    `json:"summary,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProductView(p *dominv.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		UnitPrice:   p.UnitPrice,
		Quantity:    p.QuantityOnHand,
		Summary:     p.Summary,
		Description: p.Description,
		Image:       p.Image,
		Categories:  p.Categories,
		UpdatedAt:   p.UpdatedAt,
	}
}

type cartLineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type cartView struct {
	Lines    []cartLineView `json:"lines"`
	Subtotal int64          `json:"subtotal"`
}

func toCartView(c *domcart.Cart) cartView {
	v := cartView{Lines: make([]cartLineView, 0, len(c.Lines))}
	for _, l := range c.Lines {
		v.Lines = append(v.Lines, cartLineView{ProductID: l.ProductID, Name: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
		v.Subtotal += int64(l.Quantity) * l.UnitPrice
	}
	return v
}

type addressView struct {
	Address     string `json:"address"`
	City        string `json:"city"`
	PhoneNumber string `json:"phone_number"`
	State       string `json:"state"`
	Country     string `json:"country"`
	ZipCode     string `json:"zip_code,omitempty"`
}

func (a addressView) toDomain() domorder.Address {
	return domorder.Address{
		Address:     a.Address,
		City:        a.City,
		PhoneNumber: a.PhoneNumber,
		State:       a.State,
		Country:     a.Country,
		ZipCode:     a.ZipCode,
	}
}

type orderItemView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

type orderView struct {
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Status        domorder.Status `json:"status"`
	Contact       addressView     `json:"contact"`
	Items         []orderItemView `json:"items"`
	Subtotal      int64           `json:"subtotal"`
	DeliveryFee   int64           `json:"delivery_fee"`
	Total         int64           `json:"total"`
	FailureReason string          `json:"failure_reason,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func toOrderView(o *domorder.Order) orderView {
	v := orderView{
		OrderID: o.OrderID,
		UserID:  o.UserID,
		Status:  o.Status,
		Contact: addressView{
			Address:     o.Contact.Address,
			City:        o.Contact.City,
			PhoneNumber: o.Contact.PhoneNumber,
			State:       o.Contact.State,
			Country:     o.Contact.Country,
			ZipCode:     o.Contact.ZipCode,
		},
		Items:         make([]orderItemView, 0, len(o.Items)),
		Subtotal:      o.Subtotal,
		DeliveryFee:   o.DeliveryFee,
		Total:         o.Total,
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, orderItemView{ProductID: it.ProductID, Name: it.Name, Quantity: it.Quantity, UnitPrice: it.UnitPrice})
	}
	return v
}

func toOrderViews(os []*domorder.Order) []orderView {
	out := make([]orderView, 0, len(os))
	for _, o := range os {
		out = append(out, toOrderView(o))
	}
	return out
}

type followUpView struct {
	Kind        dompay.FollowUpKind `json:"kind"`
	RedirectURL string              `json:"redirect_url,omitempty"`
	Fields      []string            `json:"fields,omitempty"`
	Message     string              `json:"message,omitempty"`
}

type paymentView struct {
	TransactionID string        `json:"transaction_id"`
	OrderID       string        `json:"order_id"`
	Status        dompay.Status `json:"payment_status"`
	Amount        int64         `json:"amount"`
	Currency      string        `json:"currency"`
	Reason        string        `json:"reason,omitempty"`
	FlowToken     string        `json:"flow_token,omitempty"`
	FollowUp      *followUpView `json:"follow_up,omitempty"`
	RedirectURL   string        `json:"redirect_url,omitempty"`
	Replayed      bool          `json:"replayed,omitempty"`
}

// paymentEnvelope picks success, pending or redirect from the flow result.
func paymentEnvelope(res *apppay.FlowResult) envelope {
	tx := res.Transaction
	v := paymentView{
		TransactionID: tx.ID,
		OrderID:       tx.OrderID,
		Status:        tx.Status,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		Reason:        tx.FailureReason,
		FlowToken:     res.FlowToken,
		Replayed:      res.Replayed,
	}
	status := statusSuccess
	if tx.Status == dompay.StatusPending {
		status = statusPending
		if f := res.Outcome.FollowUp; f != nil {
			v.FollowUp = &followUpView{Kind: f.Kind, RedirectURL: f.RedirectURL, Fields: f.Fields, Message: f.Message}
			if f.Kind == dompay.FollowUpRedirect && f.RedirectURL != "" {
				status = statusRedirect
				v.RedirectURL = f.RedirectURL
			}
		}
	}
	return envelope{Status: status, Data: v}
}

type notificationView struct {
	ID     string    `json:"id"`
	Header string    `json:"header"`
	Body   string    `json:"body"`
	Date   time.Time `json:"date"`
	Read   bool      `json:"read"`
}

func toNotificationViews(ns []*domnotif.Notification) []notificationView {
	out := make([]notificationView, 0, len(ns))
	for _, n := range ns {
		out = append(out, notificationView{ID: n.ID, Header: n.Header, Body: n.Body, Date: n.Date, Read: n.Read})
	}
	return out
}

type deliveryOptionView struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Text  string `json:"text"`
	Price int64  `json:"price"`
}

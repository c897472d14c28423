// Package checkout turns the shop cart into a locally stored order.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/abgdnv/pos/internal/cart"
	"github.com/abgdnv/pos/internal/localstore"
	"github.com/abgdnv/pos/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	MsgEmptyCart   = "Your cart is empty. Cannot place order."
	MsgOrderPlaced = "Order placed successfully!"
	MsgNoOrder     = "No current order to display. Please complete checkout first."

	DefaultPaymentMethod = "Credit Card"
)

var ErrEmptyCart = errors.New("cart is empty")

var (
	emailPattern    = regexp.MustCompile(`\S+@\S+\.\S+`)
	usPostalPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
)

// fieldMessages maps "<field>.<rule>" to the message shown next to the field.
var fieldMessages = map[string]string{
	"name.required":          "Name is required.",
	"email.required":         "Email is required.",
	"email.loose_email":      "Email is not valid.",
	"address.required":       "Address is required.",
	"city.required":          "City is required.",
	"postalCode.required":    "Postal code is required.",
	"postalCode.us_postal":   "Invalid postal code format for USA (e.g., 12345 or 12345-6789).",
	"country.required":       "Country is required.",
	"paymentMethod.required": "Payment method is required.",
	"paymentMethod.oneof":    "Payment method must be Credit Card, PayPal or Bank Transfer.",
}

type CustomerInfo struct {
	Name          string `json:"name" validate:"required"`
	Email         string `json:"email" validate:"required,loose_email"`
	Address       string `json:"address" validate:"required"`
	City          string `json:"city" validate:"required"`
	PostalCode    string `json:"postalCode" validate:"required"`
	Country       string `json:"country" validate:"required"`
	PaymentMethod string `json:"paymentMethod" validate:"required,oneof='Credit Card' PayPal 'Bank Transfer'"`
}

// OrderItem is a cart line frozen at checkout.
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

type Order struct {
	ID           string          `json:"id"`
	CustomerInfo CustomerInfo    `json:"customerInfo"`
	Items        []OrderItem     `json:"items"`
	Total        decimal.Decimal `json:"total"`
	OrderDate    time.Time       `json:"orderDate"`
}

// FormError lists the invalid fields of a checkout form with their messages.
type FormError struct {
	Fields map[string]string
}

func (e *FormError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, field := range slices.Sorted(maps.Keys(e.Fields)) {
		parts = append(parts, field+": "+e.Fields[field])
	}
	return "invalid customer info: " + strings.Join(parts, ", ")
}

// OrderStore keeps JSON values under fixed keys.
type OrderStore interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}

type Service struct {
	cart     *cart.Cart
	store    OrderStore
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(c *cart.Cart, store OrderStore, logger *slog.Logger) *Service {
	return &Service{
		cart:     c,
		store:    store,
		validate: newValidator(),
		logger:   logger.With("component", "checkout"),
		now:      time.Now,
	}
}

func newValidator() *validator.Validate {
	v := web.NewValidator()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("loose_email", func(fl validator.FieldLevel) bool {
		return emailPattern.MatchString(fl.Field().String())
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		info := sl.Current().Interface().(CustomerInfo)
		if info.Country == "USA" && info.PostalCode != "" && !usPostalPattern.MatchString(info.PostalCode) {
			sl.ReportError(info.PostalCode, "postalCode", "PostalCode", "us_postal", "")
		}
	}, CustomerInfo{})
	return v
}

// Validate trims info and checks it. It returns the trimmed info.
func (s *Service) Validate(info CustomerInfo) (CustomerInfo, error) {
	info = trim(info)
	err := s.validate.Struct(info)
	if err == nil {
		return info, nil
	}
	var vErrs validator.ValidationErrors
	if !errors.As(err, &vErrs) {
		return info, fmt.Errorf("failed to validate customer info: %w", err)
	}
	fields := make(map[string]string, len(vErrs))
	for _, fe := range vErrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = "failed on rule: " + fe.Tag()
		}
		fields[fe.Field()] = msg
	}
	return info, &FormError{Fields: fields}
}

// Submit places an order for the cart content, stores it as the current
// order and empties the cart.
func (s *Service) Submit(ctx context.Context, info CustomerInfo) (*Order, error) {
	lines := s.cart.Lines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	info, err := s.Validate(info)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &Order{
		ID:           fmt.Sprintf("order_%d", now.UnixMilli()),
		CustomerInfo: info,
		Items:        make([]OrderItem, 0, len(lines)),
		Total:        decimal.Zero,
		OrderDate:    now,
	}
	for _, l := range lines {
		order.Items = append(order.Items, OrderItem{ID: l.Product.ID, Name: l.Product.Name, Price: l.Product.Price, Quantity: l.Quantity})
		order.Total = order.Total.Add(l.Subtotal())
	}

	if err := s.store.Put(ctx, localstore.KeyCurrentOrder, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	s.cart.Clear()
	s.logger.Info("Order placed", slog.String("order_id", order.ID), slog.String("total", order.Total.StringFixed(2)))
	return order, nil
}

// Current returns the stored order, nil if there is none.
func (s *Service) Current(ctx context.Context) (*Order, error) {
	var order Order
	found, err := s.store.Get(ctx, localstore.KeyCurrentOrder, &order)
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &order, nil
}

// ContinueShopping forgets the current order.
func (s *Service) ContinueShopping(ctx context.Context) error {
	if err := s.store.Delete(ctx, localstore.KeyCurrentOrder); err != nil {
		return fmt.Errorf("failed to clear order: %w", err)
	}
	return nil
}

func trim(info CustomerInfo) CustomerInfo {
	info.Name = strings.TrimSpace(info.Name)
	info.Email = strings.TrimSpace(info.Email)
	info.Address = strings.TrimSpace(info.Address)
	info.City = strings.TrimSpace(info.City)
	info.PostalCode = strings.TrimSpace(info.PostalCode)
	info.Country = strings.TrimSpace(info.Country)
	info.PaymentMethod = strings.TrimSpace(info.PaymentMethod)
	return info
}

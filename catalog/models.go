// Package catalog holds the gallery inventory, orders and customer profiles.
package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// PaintingStatus is the sale status of a painting.
type PaintingStatus string

const (
	StatusAvailable PaintingStatus = "available"
	StatusSold      PaintingStatus = "sold"
	StatusReserved  PaintingStatus = "reserved"
)

// Painting is a catalog item.
type Painting struct {
	bun.BaseModel `bun:"table:paintings,alias:pnt"`

	ID             uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	Title          string         `bun:"title,notnull" json:"title"`
	Description    string         `bun:"description" json:"description,omitempty"`
	Dynasty        string         `bun:"dynasty,notnull" json:"dynasty"`
	ArtisticStyles []string       `bun:"artistic_style,type:jsonb" json:"artistic_style"`
	Age            *int           `bun:"age" json:"age,omitempty"`
	WidthCM        float64        `bun:"width_cm,notnull" json:"width_cm"`
	HeightCM       float64        `bun:"height_cm,notnull" json:"height_cm"`
	WeightKG       *float64       `bun:"weight_kg" json:"weight_kg,omitempty"`
	Price          float64        `bun:"price,notnull" json:"price"`
	Images         []string       `bun:"images,type:jsonb" json:"images"`
	Status         PaintingStatus `bun:"status,notnull" json:"status"`
	ContentTags    []string       `bun:"content_tags,type:jsonb" json:"content_tags"`
	ItemNumber     string         `bun:"item_number,notnull,unique" json:"item_number"`
	CreatedAt      time.Time      `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time      `bun:"updated_at,notnull" json:"updated_at"`
}

// Available reports whether the painting can be bought.
func (p *Painting) Available() bool {
	return p.Status == StatusAvailable
}

// Cover returns the first image or "".
func (p *Painting) Cover() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// OrderStatus is the fulfillment status of an order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderShipped   OrderStatus = "shipped"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// Order is a purchase of one painting.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:ord"`

	ID              uuid.UUID      `bun:"id,pk,type:uuid" json:"id"`
	UserID          string         `bun:"user_id,notnull" json:"user_id"`
	PaintingID      uuid.UUID      `bun:"painting_id,notnull,type:uuid" json:"painting_id"`
	Status          OrderStatus    `bun:"status,notnull" json:"status"`
	ShippingAddress map[string]any `bun:"shipping_address,type:jsonb" json:"shipping_address"`
	PaymentIntent   string         `bun:"payment_intent" json:"payment_intent,omitempty"`
	TotalAmount     float64        `bun:"total_amount,notnull" json:"total_amount"`
	CreatedAt       time.Time      `bun:"created_at,notnull" json:"created_at"`

	Painting *Painting `bun:"rel:belongs-to,join:painting_id=id" json:"painting,omitempty"`
}

// Role is a profile role.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Profile is the storefront view of a customer. ID is the auth service
// user id.
type Profile struct {
	bun.BaseModel `bun:"table:profiles,alias:prf"`

	ID                uuid.UUID        `bun:"id,pk,type:uuid" json:"id"`
	Email             string           `bun:"email,notnull" json:"email"`
	FullName          string           `bun:"full_name" json:"full_name,omitempty"`
	AvatarURL         string           `bun:"avatar_url" json:"avatar_url,omitempty"`
	Role              Role             `bun:"role,notnull" json:"role"`
	Phone             string           `bun:"phone" json:"phone,omitempty"`
	ShippingAddresses []map[string]any `bun:"shipping_addresses,type:jsonb" json:"shipping_addresses"`
	CreatedAt         time.Time        `bun:"created_at,notnull" json:"created_at"`
}

// Models lists every table owned by the catalog, in creation order.
func Models() []any {
	return []any{
		(*Painting)(nil),
		(*Order)(nil),
		(*Profile)(nil),
	}
}

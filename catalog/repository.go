package catalog

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-storefront"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultPageSize = 24

// Page bounds a listing.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit <= 0 || p.Limit > 100 {
		p.Limit = defaultPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// IsNotFound reports whether err means the record does not exist.
func IsNotFound(err error) bool {
	return repository.IsRecordNotFound(err)
}

func notFound(key string, value any) error {
	return repository.NewRecordNotFound().WithMetadata(map[string]any{key: value})
}

// Paintings reads and writes catalog items. Identifier lookups go by item
// number.
type Paintings struct {
	repository.Repository[*Painting]
	now func() time.Time
}

var _ repository.Repository[*Painting] = (*Paintings)(nil)

// NewPaintings returns a painting repository.
func NewPaintings(db *bun.DB) *Paintings {
	repo := repository.NewRepository[*Painting](db, repository.ModelHandlers[*Painting]{
		NewRecord: func() *Painting { return &Painting{} },
		GetID: func(p *Painting) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Painting, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "item_number"
		},
	})
	return &Paintings{Repository: repo, now: time.Now}
}

// Create inserts p, filling id, item number, status and timestamps when
// missing.
func (r *Paintings) Create(ctx context.Context, p *Painting, criteria ...repository.InsertCriteria) (*Painting, error) {
	r.prepare(p)
	return r.Repository.Create(ctx, p, criteria...)
}

// CreateTx is Create inside tx.
func (r *Paintings) CreateTx(ctx context.Context, tx bun.IDB, p *Painting, criteria ...repository.InsertCriteria) (*Painting, error) {
	r.prepare(p)
	return r.Repository.CreateTx(ctx, tx, p, criteria...)
}

func (r *Paintings) prepare(p *Painting) {
	now := r.now().UTC()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.ItemNumber == "" {
		p.ItemNumber = GenerateItemNumber(now)
	}
	if p.Status == "" {
		p.Status = StatusAvailable
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	if p.ArtisticStyles == nil {
		p.ArtisticStyles = []string{}
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if p.ContentTags == nil {
		p.ContentTags = []string{}
	}
}

// GetByItemNumber returns the painting with the given item number.
func (r *Paintings) GetByItemNumber(ctx context.Context, itemNumber string) (*Painting, error) {
	return r.Repository.GetByIdentifier(ctx, strings.ToUpper(strings.TrimSpace(itemNumber)))
}

// ListPage returns the newest paintings first along with the total count.
func (r *Paintings) ListPage(ctx context.Context, page Page) ([]*Painting, int, error) {
	page = page.normalize()
	return r.Repository.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Order("pnt.created_at DESC", "pnt.item_number ASC").
			Limit(page.Limit).
			Offset(page.Offset)
	})
}

// SetStatus changes the sale status.
func (r *Paintings) SetStatus(ctx context.Context, id uuid.UUID, status PaintingStatus) error {
	p, err := r.GetByID(ctx, id.String())
	if err != nil {
		return err
	}
	p.Status = status
	p.UpdatedAt = r.now().UTC()
	_, err = r.Update(ctx, p, repository.UpdateByID(id.String()))
	return err
}

// Orders reads customer orders.
type Orders struct {
	repository.Repository[*Order]
	now func() time.Time
}

var _ repository.Repository[*Order] = (*Orders)(nil)

// NewOrders returns an order repository.
func NewOrders(db *bun.DB) *Orders {
	repo := repository.NewRepository[*Order](db, repository.ModelHandlers[*Order]{
		NewRecord: func() *Order { return &Order{} },
		GetID: func(o *Order) uuid.UUID {
			if o == nil {
				return uuid.Nil
			}
			return o.ID
		},
		SetID: func(o *Order, id uuid.UUID) {
			if o != nil {
				o.ID = id
			}
		},
	})
	return &Orders{Repository: repo, now: time.Now}
}

// Create inserts o with a pending status unless one is given.
func (r *Orders) Create(ctx context.Context, o *Order, criteria ...repository.InsertCriteria) (*Order, error) {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = r.now().UTC()
	}
	if o.ShippingAddress == nil {
		o.ShippingAddress = map[string]any{}
	}
	return r.Repository.Create(ctx, o, criteria...)
}

// ListByUser returns the orders of userID, newest first, with their painting.
func (r *Orders) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	out, _, err := r.Repository.List(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.
			Relation("Painting").
			Where("ord.user_id = ?", userID).
			Order("ord.created_at DESC")
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Profiles reads and writes customer profiles.
type Profiles struct {
	repository.Repository[*Profile]
	now func() time.Time
}

var _ repository.Repository[*Profile] = (*Profiles)(nil)

// NewProfiles returns a profile repository.
func NewProfiles(db *bun.DB) *Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})
	return &Profiles{Repository: repo, now: time.Now}
}

func profileID(userID string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return uuid.Nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid user id").
			WithCode(goerrors.CodeBadRequest)
	}
	return id, nil
}

// Ensure returns the profile for identity, creating it on first access.
func (r *Profiles) Ensure(ctx context.Context, identity *storefront.Identity) (*Profile, error) {
	if identity == nil || identity.ID == "" {
		return nil, notFound("id", "")
	}
	id, err := profileID(identity.ID)
	if err != nil {
		return nil, err
	}

	p, err := r.GetByID(ctx, id.String())
	if err == nil {
		return p, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}

	p = &Profile{
		ID:                id,
		Email:             identity.Email,
		FullName:          identity.Name(),
		AvatarURL:         identity.Metadata.String("avatar_url"),
		Role:              RoleUser,
		ShippingAddresses: []map[string]any{},
		CreatedAt:         r.now().UTC(),
	}
	if p.FullName == p.Email {
		p.FullName = ""
	}

	_, err = r.Create(ctx, p, func(q *bun.InsertQuery) *bun.InsertQuery {
		return q.On("CONFLICT (id) DO NOTHING")
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id.String())
}

// UpdateContact stores the editable profile fields.
func (r *Profiles) UpdateContact(ctx context.Context, userID, fullName, phone string) error {
	id, err := profileID(userID)
	if err != nil {
		return err
	}
	p, err := r.GetByID(ctx, id.String())
	if err != nil {
		return err
	}
	p.FullName = fullName
	p.Phone = phone
	_, err = r.Update(ctx, p, repository.UpdateByID(id.String()))
	return err
}

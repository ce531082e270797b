package catalog

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/goliatone/go-storefront"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	anaID  = "6f1c2a9e-3d4b-4c5a-9e8f-7a6b5c4d3e2f"
	benID  = "9a8b7c6d-5e4f-4a3b-8c2d-1e0f9a8b7c6d"
	noneID = "00000000-0000-4000-8000-000000000001"
)

func setupDB(t *testing.T) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	for _, model := range Models() {
		_, err := db.NewCreateTable().Model(model).Exec(ctx)
		require.NoError(t, err)
	}
	return db
}

func TestPaintingsCreateAndGet(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewPaintings(db)
	repo.now = func() time.Time { return time.UnixMilli(1717171234567) }

	created, err := repo.Create(ctx, &Painting{
		Title:          "Misty Mountains",
		Dynasty:        "Ming Dynasty",
		ArtisticStyles: []string{"shan shui"},
		WidthCM:        45,
		HeightCM:       132.5,
		Price:          18500,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, StatusAvailable, created.Status)
	assert.Regexp(t, `^CAP-234567-`, created.ItemNumber)

	got, err := repo.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Misty Mountains", got.Title)
	assert.Equal(t, []string{"shan shui"}, got.ArtisticStyles)
	assert.Empty(t, got.Images)
	assert.Nil(t, got.Age)
	assert.True(t, got.Available())
	assert.Empty(t, got.Cover())

	byNumber, err := repo.GetByItemNumber(ctx, " "+created.ItemNumber+" ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byNumber.ID)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.True(t, IsNotFound(err))
}

func TestPaintingsListPageAndStatus(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewPaintings(db)

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		_, err := repo.Create(ctx, &Painting{
			Title:     title,
			Dynasty:   "Qing Dynasty",
			WidthCM:   10,
			HeightCM:  10,
			Price:     100,
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	items, total, err := repo.ListPage(ctx, Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "third", items[0].Title)
	assert.Equal(t, "second", items[1].Title)

	rest, _, err := repo.ListPage(ctx, Page{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "first", rest[0].Title)

	require.NoError(t, repo.SetStatus(ctx, items[0].ID, StatusSold))
	sold, err := repo.GetByID(ctx, items[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, StatusSold, sold.Status)

	assert.True(t, IsNotFound(repo.SetStatus(ctx, uuid.New(), StatusSold)))
}

func TestOrdersListByUser(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()

	painting, err := NewPaintings(db).Create(ctx, &Painting{Title: "Bamboo", Dynasty: "Republic Era", WidthCM: 1, HeightCM: 1, Price: 2350})
	require.NoError(t, err)

	orders := NewOrders(db)
	_, err = orders.Create(ctx, &Order{
		UserID:          anaID,
		PaintingID:      painting.ID,
		TotalAmount:     2350,
		ShippingAddress: map[string]any{"city": "San Francisco"},
	})
	require.NoError(t, err)
	_, err = orders.Create(ctx, &Order{UserID: benID, PaintingID: painting.ID, TotalAmount: 1})
	require.NoError(t, err)

	list, err := orders.ListByUser(ctx, anaID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, OrderPending, list[0].Status)
	assert.Equal(t, "San Francisco", list[0].ShippingAddress["city"])
	require.NotNil(t, list[0].Painting)
	assert.Equal(t, "Bamboo", list[0].Painting.Title)

	empty, err := orders.ListByUser(ctx, noneID)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestProfilesEnsureAndUpdate(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	repo := NewProfiles(db)

	identity := &storefront.Identity{
		ID:       anaID,
		Email:    "ana@example.com",
		Metadata: storefront.Metadata{"first_name": "Ana", "last_name": "Li"},
	}

	p, err := repo.Ensure(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, anaID, p.ID.String())
	assert.Equal(t, "Ana Li", p.FullName)
	assert.Equal(t, RoleUser, p.Role)

	again, err := repo.Ensure(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	byEmail, err := repo.GetByIdentifier(ctx, "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byEmail.ID)

	require.NoError(t, repo.UpdateContact(ctx, anaID, "Ana Maria Li", "+12015550123"))
	updated, err := repo.GetByID(ctx, anaID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria Li", updated.FullName)
	assert.Equal(t, "+12015550123", updated.Phone)

	assert.True(t, IsNotFound(repo.UpdateContact(ctx, noneID, "x", "")))
	assert.Error(t, repo.UpdateContact(ctx, "not-a-uuid", "x", ""))

	_, err = repo.Ensure(ctx, nil)
	assert.True(t, IsNotFound(err))
}

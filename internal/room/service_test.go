package room

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoriqulumar/kostan-be/internal/billing"
	"github.com/thoriqulumar/kostan-be/internal/testutil"
)

func TestService_CreateAndAssign(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	s := NewService(NewRepository(db))
	tenant := testutil.InsertUser(t, db, "tenant@example.com", "user")

	room, err := s.Create(ctx, &CreateRoomRequest{Name: " A1 ", Price: decimal.NewFromInt(1500000)})
	require.NoError(t, err)
	assert.Equal(t, "A1", room.Name)

	_, err = s.Create(ctx, &CreateRoomRequest{Name: "A1", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, ErrRoomNameTaken)

	_, err = s.Create(ctx, &CreateRoomRequest{Name: "A2", Price: decimal.Zero})
	assert.ErrorIs(t, err, billing.ErrInvalidAmount)

	assigned, err := s.AssignTenant(ctx, room.ID, &AssignTenantRequest{UserID: tenant.String(), RentStartDate: "2025-01-05"})
	require.NoError(t, err)
	require.NotNil(t, assigned.RentedUserID)
	assert.Equal(t, tenant, *assigned.RentedUserID)

	mine, err := s.GetByTenant(ctx, tenant)
	require.NoError(t, err)
	assert.Equal(t, room.ID, mine.ID)
	require.NotNil(t, mine.RentStartDate)
	assert.Equal(t, 5, mine.RentStartDate.Day())
	assert.True(t, mine.Price.Equal(decimal.NewFromInt(1500000)))

	other, err := s.Create(ctx, &CreateRoomRequest{Name: "B1", Price: decimal.NewFromInt(1200000)})
	require.NoError(t, err)
	_, err = s.AssignTenant(ctx, other.ID, &AssignTenantRequest{UserID: tenant.String(), RentStartDate: "2025-02-01"})
	assert.ErrorIs(t, err, ErrTenantHasRoom)

	second := testutil.InsertUser(t, db, "second@example.com", "user")
	_, err = s.AssignTenant(ctx, room.ID, &AssignTenantRequest{UserID: second.String(), RentStartDate: "2025-02-01"})
	assert.ErrorIs(t, err, ErrRoomOccupied)

	_, err = s.AssignTenant(ctx, other.ID, &AssignTenantRequest{UserID: second.String(), RentStartDate: "01/02/2025"})
	assert.ErrorIs(t, err, ErrInvalidStartDate)
}

func TestService_ListActiveTenancies(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	s := NewService(NewRepository(db))

	tenantA := testutil.InsertUser(t, db, "a@example.com", "user")
	tenantB := testutil.InsertUser(t, db, "b@example.com", "user")
	start := time.Date(2025, time.January, 5, 0, 0, 0, 0, time.UTC)

	testutil.InsertRoom(t, db, testutil.Room{Name: "A1", Price: decimal.NewFromInt(1500000), TenantID: tenantA, RentStart: start})
	testutil.InsertRoom(t, db, testutil.Room{Name: "A2", Price: decimal.NewFromInt(1500000), TenantID: tenantB, RentStart: start, Inactive: true})
	testutil.InsertRoom(t, db, testutil.Room{Name: "A3", Price: decimal.NewFromInt(1500000), TenantID: tenantB})
	testutil.InsertRoom(t, db, testutil.Room{Name: "A4", Price: decimal.NewFromInt(1500000)})

	tenancies, err := s.ListActiveTenancies(ctx)
	require.NoError(t, err)
	require.Len(t, tenancies, 1)
	assert.Equal(t, "A1", tenancies[0].RoomName)
	assert.Equal(t, tenantA, tenancies[0].TenantID)
	assert.Equal(t, 5, tenancies[0].DueDay())
}

func TestService_Vacate(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	s := NewService(NewRepository(db))
	tenant := testutil.InsertUser(t, db, "tenant@example.com", "user")
	roomID := testutil.InsertRoom(t, db, testutil.Room{
		Name: "A1", Price: decimal.NewFromInt(1), TenantID: tenant, RentStart: time.Now().UTC(),
	})

	room, err := s.Vacate(ctx, roomID)
	require.NoError(t, err)
	assert.Nil(t, room.RentedUserID)

	_, err = s.GetByTenant(ctx, tenant)
	assert.ErrorIs(t, err, ErrNoRoomRented)

	_, err = s.Vacate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

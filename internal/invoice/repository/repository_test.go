package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/salloumtech/fatoora/internal/invoice/domain"
)

var idNode = func() *snowflake.Node {
	n, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return n
}()

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&domain.Invoice{}, &domain.InvoiceLine{}))
	return Provide(gdb)
}

func newInvoice(ref string) *domain.Invoice {
	return &domain.Invoice{
		ID:            idNode.Generate(),
		ExternalRef:   ref,
		InvoiceNumber: "INV-" + ref,
		SellerName:    "Modern Supplies Co",
		SellerAddress: "King Fahd Road, Riyadh",
		VATNumber:     "310122393500003",
		CustomerName:  "Al Noor Trading",
		IssuedAt:      time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Subtotal:      decimal.RequireFromString("100.00"),
		TaxAmount:     decimal.RequireFromString("15.00"),
		NetTotal:      decimal.RequireFromString("115.00"),
		Status:        domain.InvoiceStatusPending,
		Lines: []domain.InvoiceLine{
			{ID: idNode.Generate(), Name: "Widget", Quantity: 2, UnitPrice: decimal.RequireFromString("50.00"), TaxAmount: decimal.RequireFromString("15.00")},
		},
	}
}

func TestInsertNewRejectsDuplicateExternalRef(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.InsertNew(ctx, newInvoice("ref-1")))

	dup := newInvoice("ref-1")
	dup.InvoiceNumber = "INV-other"
	err := repo.InsertNew(ctx, dup)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	stored, err := repo.FindByExternalRef(ctx, "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "INV-ref-1", stored.InvoiceNumber)
	assert.Len(t, stored.Lines, 1)
}

func TestFindByExternalRefNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.FindByExternalRef(context.Background(), "absent")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSelectAndMarkInProgressClaimsEligibleRows(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pending := newInvoice("pending")
	require.NoError(t, repo.InsertNew(ctx, pending))

	retryable := newInvoice("retryable")
	retryable.Status = domain.InvoiceStatusFailed
	retryable.Retryable = true
	retryable.RetryCount = 1
	require.NoError(t, repo.InsertNew(ctx, retryable))

	exhausted := newInvoice("exhausted")
	exhausted.Status = domain.InvoiceStatusFailed
	exhausted.Retryable = true
	exhausted.RetryCount = 3
	require.NoError(t, repo.InsertNew(ctx, exhausted))

	terminal := newInvoice("terminal")
	terminal.Status = domain.InvoiceStatusFailed
	terminal.Retryable = false
	require.NoError(t, repo.InsertNew(ctx, terminal))

	done := newInvoice("done")
	done.Status = domain.InvoiceStatusDone
	require.NoError(t, repo.InsertNew(ctx, done))

	claimed, err := repo.SelectAndMarkInProgress(ctx, 10, 3, now)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	refs := []string{claimed[0].ExternalRef, claimed[1].ExternalRef}
	assert.ElementsMatch(t, []string{"pending", "retryable"}, refs)
	for _, inv := range claimed {
		assert.Equal(t, domain.InvoiceStatusInProgress, inv.Status)
		require.NotNil(t, inv.ClaimedAt)
	}

	// already claimed, nothing left
	again, err := repo.SelectAndMarkInProgress(ctx, 10, 3, now)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestSelectAndMarkInProgressConcurrentAtMostOnce(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 8; i++ {
		require.NoError(t, repo.InsertNew(ctx, newInvoice(fmt.Sprintf("ref-%d", i))))
	}

	var mu sync.Mutex
	seen := map[snowflake.ID]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := repo.SelectAndMarkInProgress(ctx, 8, 3, time.Now().UTC())
			assert.NoError(t, err)
			mu.Lock()
			for _, inv := range claimed {
				seen[inv.ID]++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, 8)
	for id, n := range seen {
		assert.Equalf(t, 1, n, "invoice %s claimed %d times", id, n)
	}
}

func TestUpdateOutcomeTransitions(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inv := newInvoice("ref-ok")
	require.NoError(t, repo.InsertNew(ctx, inv))
	claimed, err := repo.SelectAndMarkInProgress(ctx, 1, 3, now)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	hash := "abc123"
	authID := "RPT-42"
	submitted := now
	err = repo.UpdateOutcome(ctx, inv.ID, domain.Outcome{
		Status:       domain.InvoiceStatusDone,
		DocumentHash: &hash,
		AuthorityID:  &authID,
		SubmittedAt:  &submitted,
	}, now)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusDone, got.Status)
	require.NotNil(t, got.DocumentHash)
	assert.Equal(t, hash, *got.DocumentHash)
	require.NotNil(t, got.AuthorityID)
	assert.Equal(t, authID, *got.AuthorityID)
	assert.Nil(t, got.ClaimedAt)
	assert.Nil(t, got.LastError)
	assert.True(t, got.Terminal())
}

func TestUpdateOutcomeFailureIncrementsRetryCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inv := newInvoice("ref-fail")
	require.NoError(t, repo.InsertNew(ctx, inv))
	_, err := repo.SelectAndMarkInProgress(ctx, 1, 3, now)
	require.NoError(t, err)

	reason := "authority timeout"
	err = repo.UpdateOutcome(ctx, inv.ID, domain.Outcome{
		Status:       domain.InvoiceStatusFailed,
		Retryable:    true,
		CountAttempt: true,
		LastError:    &reason,
	}, now)
	require.NoError(t, err)

	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, got.Status)
	assert.True(t, got.Retryable)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.LastError)
	assert.Equal(t, reason, *got.LastError)
	assert.False(t, got.Terminal())
}

func TestUpdateOutcomeRejectionKeepsRetryCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()

	inv := newInvoice("ref-rejected")
	require.NoError(t, repo.InsertNew(ctx, inv))
	_, err := repo.SelectAndMarkInProgress(ctx, 1, 3, now)
	require.NoError(t, err)

	reason := "HTTP 400: invalid VAT category code"
	err = repo.UpdateOutcome(ctx, inv.ID, domain.Outcome{
		Status:    domain.InvoiceStatusFailed,
		Retryable: false,
		LastError: &reason,
	}, now)
	require.NoError(t, err)

	// no retry was ever attempted, so the counter stays at zero
	got, err := repo.GetByID(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.True(t, got.Terminal())
}

func TestUpdateOutcomeRequiresClaim(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	inv := newInvoice("ref-unclaimed")
	require.NoError(t, repo.InsertNew(ctx, inv))

	err := repo.UpdateOutcome(ctx, inv.ID, domain.Outcome{Status: domain.InvoiceStatusDone}, time.Now().UTC())
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestReleaseStaleRecoversExpiredClaims(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	stale := newInvoice("stale")
	require.NoError(t, repo.InsertNew(ctx, stale))
	_, err := repo.SelectAndMarkInProgress(ctx, 1, 3, base)
	require.NoError(t, err)

	fresh := newInvoice("fresh")
	require.NoError(t, repo.InsertNew(ctx, fresh))
	_, err = repo.SelectAndMarkInProgress(ctx, 1, 3, time.Now().UTC())
	require.NoError(t, err)

	cutoff := time.Now().UTC().Add(-15 * time.Minute)
	n, err := repo.ReleaseStale(ctx, cutoff, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := repo.GetByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusFailed, got.Status)
	assert.True(t, got.Retryable)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.ClaimedAt)

	untouched, err := repo.GetByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceStatusInProgress, untouched.Status)
}

func TestCountByStatusCoversAllStates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := newInvoice("a")
	require.NoError(t, repo.InsertNew(ctx, a))
	b := newInvoice("b")
	b.Status = domain.InvoiceStatusDone
	require.NoError(t, repo.InsertNew(ctx, b))

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.InvoiceStatusPending])
	assert.Equal(t, int64(1), counts[domain.InvoiceStatusDone])
	assert.Equal(t, int64(0), counts[domain.InvoiceStatusFailed])
	assert.Equal(t, int64(0), counts[domain.InvoiceStatusInProgress])
}

func TestListFiltersByStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		inv := newInvoice(fmt.Sprintf("p-%d", i))
		require.NoError(t, repo.InsertNew(ctx, inv))
	}
	done := newInvoice("d-0")
	done.Status = domain.InvoiceStatusDone
	require.NoError(t, repo.InsertNew(ctx, done))

	status := domain.InvoiceStatusPending
	got, err := repo.List(ctx, domain.ListRequest{Status: &status})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	all, err := repo.List(ctx, domain.ListRequest{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

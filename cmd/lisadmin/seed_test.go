package main

import (
	"context"
	"testing"

	"github.com/openlis/lis-api/internal/catalog"
	"github.com/openlis/lis-api/internal/database"
	"github.com/openlis/lis-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db := database.NewMemDB()
	svc := catalog.NewService(catalog.NewMemoryTestRepository(db), catalog.NewMemoryInstrumentRepository(db), nil)
	ctx := context.Background()

	items := defaultCatalog()
	created, skipped, err := seedCatalog(ctx, svc, items)
	require.NoError(t, err)
	assert.Equal(t, len(items), created)
	assert.Zero(t, skipped)

	created, skipped, err = seedCatalog(ctx, svc, items)
	require.NoError(t, err)
	assert.Zero(t, created)
	assert.Equal(t, len(items), skipped)

	got, err := svc.Lookup(ctx, []string{"GLU", "HGB"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSeedCatalogStopsOnInvalidItem(t *testing.T) {
	db := database.NewMemDB()
	svc := catalog.NewService(catalog.NewMemoryTestRepository(db), catalog.NewMemoryInstrumentRepository(db), nil)

	_, _, err := seedCatalog(context.Background(), svc, []models.TestCatalogItem{{Code: "X"}})
	require.Error(t, err)
}

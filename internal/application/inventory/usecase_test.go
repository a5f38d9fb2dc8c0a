package inventory_test

import (
	"context"
	"sync"
	"testing"

	"github.com/Zhima-Mochi/winestore/internal/application"
	appinv "github.com/Zhima-Mochi/winestore/internal/application/inventory"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, stock map[string]int) *memory.InventoryRepository {
	t.Helper()
	var ps []*dominv.Product
	for id, qty := range stock {
		p, err := dominv.NewProduct(id, "Wine "+id, 1000, qty)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	return memory.NewInventoryRepository(ps...)
}

func quantity(t *testing.T, repo dominv.Repository, id string) int {
	t.Helper()
	p, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	return p.QuantityOnHand
}

func TestReserveDecrementsEveryLine(t *testing.T) {
	t.Parallel()

	repo := seed(t, map[string]int{"a": 5, "b": 2})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	res, err := uc.Execute(context.Background(), appinv.ReserveInput{Lines: []appinv.Line{
		{ProductID: "b", Quantity: 2},
		{ProductID: "a", Quantity: 3},
	}})
	require.NoError(t, err)
	assert.Len(t, res.Reserved, 2)
	assert.Equal(t, 2, quantity(t, repo, "a"))
	assert.Equal(t, 0, quantity(t, repo, "b"))
}

func TestReserveRollsBackOnShortage(t *testing.T) {
	t.Parallel()

	repo := seed(t, map[string]int{"a": 5, "b": 1})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	res, err := uc.Execute(context.Background(), appinv.ReserveInput{Lines: []appinv.Line{
		{ProductID: "a", Quantity: 3},
		{ProductID: "b", Quantity: 2},
	}})
	require.Error(t, err)
	assert.ErrorIs(t, err, application.ErrConflict)
	assert.ErrorIs(t, err, dominv.ErrInsufficientStock)
	assert.Equal(t, "b", res.FailedProduct)
	assert.Equal(t, "out_of_stock", res.FailureReason)

	assert.Equal(t, 5, quantity(t, repo, "a"), "already reserved line must be restored")
	assert.Equal(t, 1, quantity(t, repo, "b"))
}

func TestReserveUnknownProduct(t *testing.T) {
	t.Parallel()

	repo := seed(t, map[string]int{"a": 5})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	_, err := uc.Execute(context.Background(), appinv.ReserveInput{Lines: []appinv.Line{
		{ProductID: "a", Quantity: 1},
		{ProductID: "zz", Quantity: 1},
	}})
	assert.ErrorIs(t, err, application.ErrNotFound)
	assert.Equal(t, 5, quantity(t, repo, "a"))
}

func TestReserveRejectsEmptyAndZero(t *testing.T) {
	t.Parallel()

	repo := seed(t, map[string]int{"a": 5})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	_, err := uc.Execute(context.Background(), appinv.ReserveInput{})
	assert.ErrorIs(t, err, application.ErrValidation)

	_, err = uc.Execute(context.Background(), appinv.ReserveInput{Lines: []appinv.Line{{ProductID: "a", Quantity: 0}}})
	assert.ErrorIs(t, err, application.ErrValidation)
	assert.Equal(t, 5, quantity(t, repo, "a"))
}

func TestReserveRaceOnLastUnit(t *testing.T) {
	t.Parallel()

	const buyers = 64
	repo := seed(t, map[string]int{"last-bottle": 1})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	var (
		start   sync.WaitGroup
		done    sync.WaitGroup
		mu      sync.Mutex
		winners int
	)
	start.Add(1)
	for i := 0; i < buyers; i++ {
		done.Add(1)
		go func() {
			defer done.Done()
			start.Wait()
			_, err := uc.Execute(context.Background(), appinv.ReserveInput{Lines: []appinv.Line{{ProductID: "last-bottle", Quantity: 1}}})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, application.ErrConflict)
		}()
	}
	start.Done()
	done.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 0, quantity(t, repo, "last-bottle"))
}

func TestReleaseRestores(t *testing.T) {
	t.Parallel()

	repo := seed(t, map[string]int{"a": 1})
	uc := appinv.NewReserveInventoryUseCase(repo, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, uc.Release(ctx, []appinv.Line{{ProductID: "a", Quantity: 4}}))
	assert.Equal(t, 5, quantity(t, repo, "a"))

	assert.ErrorIs(t, uc.Release(context.Background(), []appinv.Line{{ProductID: "missing", Quantity: 1}}), application.ErrInternal)
}

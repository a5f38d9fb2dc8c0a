package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/Zhima-Mochi/winestore/internal/config"
	domcart "github.com/Zhima-Mochi/winestore/internal/domain/cart"
	dominv "github.com/Zhima-Mochi/winestore/internal/domain/inventory"
	domnotif "github.com/Zhima-Mochi/winestore/internal/domain/notification"
	domorder "github.com/Zhima-Mochi/winestore/internal/domain/order"
	dompay "github.com/Zhima-Mochi/winestore/internal/domain/payment"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/mongo"
	"github.com/Zhima-Mochi/winestore/internal/infrastructure/redis"
	"github.com/Zhima-Mochi/winestore/internal/observability"
)

type stores struct {
	products      dominv.Repository
	orders        domorder.Repository
	txs           dompay.Repository
	carts         domcart.Repository
	notifications domnotif.Repository
	sessions      dompay.SessionStore
	queue         dompay.ReverifyQueue
	close         func(context.Context) error
}

// openStores selects memory or mongo+redis persistence.
func openStores(ctx context.Context, cfg *config.Config, logger observability.Logger) (*stores, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		logger.Warn("storage_in_memory", observability.F("detail", "state is lost on restart"))
		return &stores{
			products:      memory.NewInventoryRepository(demoCatalog()...),
			orders:        memory.NewOrderRepository(),
			txs:           memory.NewTransactionRepository(),
			carts:         memory.NewCartRepository(),
			notifications: memory.NewNotificationRepository(),
			sessions:      memory.NewSessionStore(),
			queue:         memory.NewReverifyQueue(),
			close:         func(context.Context) error { return nil },
		}, nil
	}

	db, err := mongo.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database, cfg.Mongo.Timeout)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := db.EnsureIndexes(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}
	rdb := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err := rdb.Ping(ctx); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	logger.Info("storage_connected",
		observability.F("mongo_database", cfg.Mongo.Database),
		observability.F("redis_addr", cfg.Redis.Addr),
	)
	return &stores{
		products:      db.Products(),
		orders:        db.Orders(),
		txs:           db.Transactions(),
		carts:         db.Carts(),
		notifications: db.Notifications(),
		sessions:      redis.NewSessionStore(rdb),
		queue:         redis.NewReverifyQueue(rdb),
		close: func(ctx context.Context) error {
			return errors.Join(rdb.Close(), db.Close(ctx))
		},
	}, nil
}

func demoCatalog() []*dominv.Product {
	seed := []struct {
		id, name string
		price    int64
		qty      int
	}{
		{"chateau-margaux-2015", "Chateau Margaux 2015", 45000000, 6},
		{"cloudy-bay-sauvignon", "Cloudy Bay Sauvignon Blanc", 3500000, 24},
		{"moet-imperial-brut", "Moet Imperial Brut", 4200000, 18},
	}
	out := make([]*dominv.Product, 0, len(seed))
	for _, s := range seed {
		p, err := dominv.NewProduct(s.id, s.name, s.price, s.qty)
		if err != nil {
			continue
		}
		p.Categories = []string{"wine"}
		out = append(out, p)
	}
	return out
}

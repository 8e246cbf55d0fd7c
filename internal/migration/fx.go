package migration

import (
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/salloumtech/fatoora/internal/config"
	"github.com/salloumtech/fatoora/internal/invoice/domain"
	"github.com/salloumtech/fatoora/internal/seed"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite has no migrate driver here; the model definitions
			// are the schema for local use
			if err := conn.AutoMigrate(&domain.Invoice{}, &domain.InvoiceLine{}); err != nil {
				return err
			}
		}

		if cfg.Environment == "development" {
			return seed.EnsureDemoInvoices(conn, seed.SellerIdentity{
				Name:    cfg.SellerName,
				Address: cfg.SellerAddress,
				VAT:     cfg.SellerVAT,
			})
		}
		return nil
	}),
)

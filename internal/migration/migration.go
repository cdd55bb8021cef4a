package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	accountingdomain "github.com/fitsuite/licensehub/internal/accounting/domain"
	"github.com/fitsuite/licensehub/internal/idempotency"
	licensedomain "github.com/fitsuite/licensehub/internal/license/domain"
	"github.com/fitsuite/licensehub/internal/notification"
	orderdomain "github.com/fitsuite/licensehub/internal/order/domain"
	paymentdomain "github.com/fitsuite/licensehub/internal/payment/domain"
	plandomain "github.com/fitsuite/licensehub/internal/plan/domain"
	referraldomain "github.com/fitsuite/licensehub/internal/referral/domain"
	"github.com/fitsuite/licensehub/internal/tenant"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the service owns.
func Models() []any {
	var models []any
	models = append(models, tenant.Models()...)
	models = append(models, plandomain.Models()...)
	models = append(models, licensedomain.Models()...)
	models = append(models, referraldomain.Models()...)
	models = append(models, accountingdomain.Models()...)
	models = append(models, orderdomain.Models()...)
	models = append(models, paymentdomain.Models()...)
	models = append(models, idempotency.Models()...)
	models = append(models, notification.Models()...)
	return models
}

// Run applies the schema. Postgres goes through the versioned SQL files;
// other dialects fall back to AutoMigrate.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		if err := conn.AutoMigrate(Models()...); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Closing the migrator would close the shared *sql.DB.

	return nil
}

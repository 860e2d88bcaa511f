/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package db

import (
	"fmt"

	"github.com/friendsincode/inkintime/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the slot schema. State rows are seeded by store.EnsureStates.
func Migrate(database *gorm.DB) error {
	if err := database.AutoMigrate(models.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}

	for _, table := range []string{models.RolePrimary.Table(), models.RoleSecondary.Table()} {
		if err := applyPostgresIntervalGuard(database, table); err != nil {
			return err
		}
	}

	return nil
}

// applyPostgresIntervalGuard rejects slot rows that do not end after they start.
func applyPostgresIntervalGuard(database *gorm.DB, table string) error {
	if database.Dialector.Name() != "postgres" {
		return nil
	}

	name := "chk_" + table + "_interval"
	stmt := fmt.Sprintf(`
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%[1]s') THEN
    ALTER TABLE %[2]s ADD CONSTRAINT %[1]s CHECK (ends_at > starts_at);
  END IF;
END;
$$;
`, name, table)
	if err := database.Exec(stmt).Error; err != nil {
		return fmt.Errorf("apply postgres interval guard on %s: %w", table, err)
	}
	return nil
}

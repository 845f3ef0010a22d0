package db

import (
	"fmt"
)

// dedupe keys of tables that older deployments created without a unique index
var legacyUnique = []struct {
	model any
	table string
	index string
	cols  string
}{
	{&AuthenticityUsedRM{}, "authenticity_used_rm", "uniq_used_rm", "transfer_id, authenticity"},
	{&MasterAuthenticityVendor{}, "master_authenticity_vendor", "uniq_vendor_roll_auth", "roll, authenticity"},
}

// Migrate creates or upgrades the schema:
//  1. tables with a unique key but no index yet: drop duplicates (oldest row stays)
//  2. AutoMigrate
//  3. make sure the unique indexes exist
func (h *Handle) Migrate() error {
	gdb := h.DB

	for _, u := range legacyUnique {
		if !gdb.Migrator().HasTable(u.model) || gdb.Migrator().HasIndex(u.model, u.index) {
			continue
		}
		if err := gdb.Exec(fmt.Sprintf(`
			DELETE FROM %[1]s WHERE id NOT IN (
				SELECT keep_id FROM (SELECT MIN(id) AS keep_id FROM %[1]s GROUP BY %[2]s) AS keep
			)`, u.table, u.cols)).Error; err != nil {
			return fmt.Errorf("dedupe %s failed: %w", u.table, err)
		}
	}

	if err := gdb.AutoMigrate(
		&RecentMO{},
		&ProductionLog{},
		&ManufacturingIdentity{},
		&AuthenticityUsedRM{},
		&MasterAuthenticityVendor{},
	); err != nil {
		return fmt.Errorf("AutoMigrate error: %w", err)
	}

	for _, u := range legacyUnique {
		if gdb.Migrator().HasIndex(u.model, u.index) {
			continue
		}
		if err := gdb.Migrator().CreateIndex(u.model, u.index); err != nil {
			return fmt.Errorf("create index %s: %w", u.index, err)
		}
	}
	return nil
}

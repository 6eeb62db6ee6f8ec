// asset-quantity-rebuild recomputes every asset's on-hand quantity from the
// committed ledger (sum of IN lines minus OUT lines) and reports drift
// against the stored quantity column.
//
// Default mode only checks: it prints a drift report and exits non-zero when
// any asset disagrees. With -apply it rewrites the stored quantities to the
// ledger-derived values, fencing live posting with the per-branch advisory
// lock and a Redis lock so only one rebuild runs at a time.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/workflow"
	"github.com/bsm/redislock"
	"gorm.io/gorm"
)

type driftRow struct {
	AssetId    int
	NameEn     string
	Stored     int
	FromLedger int
}

func main() {
	apply := flag.Bool("apply", false, "write ledger-derived quantities back to fixed_assets")
	flag.Parse()

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	if *apply {
		config.ConnectRedisWithRetry()
		if locker := config.GetRedisLock(); locker != nil {
			lock, err := locker.Obtain(config.GetRedisContext(), "asset-quantity-rebuild", 10*time.Minute, nil)
			if err == redislock.ErrNotObtained {
				fmt.Fprintln(os.Stderr, "another rebuild is already running")
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to obtain rebuild lock: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = lock.Release(config.GetRedisContext()) }()
		}
	}

	drift, err := findDrift(db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "drift query failed: %v\n", err)
		os.Exit(1)
	}

	if len(drift) == 0 {
		fmt.Println("all asset quantities match the ledger")
		return
	}

	fmt.Printf("%-8s %-40s %10s %10s %10s\n", "asset", "name", "stored", "ledger", "diff")
	for _, row := range drift {
		fmt.Printf("%-8d %-40s %10d %10d %10d\n",
			row.AssetId, row.NameEn, row.Stored, row.FromLedger, row.FromLedger-row.Stored)
	}

	if !*apply {
		fmt.Fprintf(os.Stderr, "%d assets drifted; rerun with -apply to fix\n", len(drift))
		os.Exit(3)
	}

	if err := applyRebuild(db, drift); err != nil {
		fmt.Fprintf(os.Stderr, "rebuild failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("rebuilt %d asset quantities from the ledger\n", len(drift))
}

// findDrift joins the stored quantity against the ledger-derived one. Assets
// with no ledger lines derive to zero.
func findDrift(db *gorm.DB) ([]driftRow, error) {
	var rows []driftRow
	err := db.Raw(`
		SELECT fa.id AS asset_id,
		       fa.name_en AS name_en,
		       fa.quantity AS stored,
		       COALESCE(SUM(CASE t.direction WHEN 'IN' THEN l.quantity WHEN 'OUT' THEN -l.quantity END), 0) AS from_ledger
		FROM fixed_assets fa
		LEFT JOIN asset_transaction_lines l ON l.asset_id = fa.id
		LEFT JOIN transactions t ON t.id = l.transaction_id
		GROUP BY fa.id, fa.name_en, fa.quantity
		HAVING stored <> from_ledger
		ORDER BY fa.id
	`).Scan(&rows).Error
	return rows, err
}

// applyRebuild rewrites stored quantities inside one DB transaction, holding
// every branch's posting lock so no live post interleaves with the rewrite.
func applyRebuild(db *gorm.DB, drift []driftRow) error {
	var branchIds []int
	if err := db.Model(&models.Branch{}).Order("id").Pluck("id", &branchIds).Error; err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		for _, branchId := range branchIds {
			if err := workflow.AcquireBranchPostingLock(tx, branchId); err != nil {
				return err
			}
			defer workflow.ReleaseBranchPostingLock(tx, branchId)
		}

		for _, row := range drift {
			err := tx.Exec("UPDATE fixed_assets SET quantity = ? WHERE id = ?", row.FromLedger, row.AssetId).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

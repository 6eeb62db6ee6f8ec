// seed-demo loads a small demo dataset: two branches with a warehouse each,
// categories, assets, a demo user, and a handful of ledger movements posted
// through the real orchestrator so quantities and custom ids come out the
// same way production posting produces them.
//
// Refuses to run against a database that already holds transactions unless
// -force is given.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/assets_backend/config"
	"bitbucket.org/mmdatafocus/assets_backend/models"
	"bitbucket.org/mmdatafocus/assets_backend/utils"
	"bitbucket.org/mmdatafocus/assets_backend/workflow"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func main() {
	force := flag.Bool("force", false, "seed even if transactions already exist")
	flag.Parse()

	ctx := context.Background()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	models.MigrateTable()

	var txnCount int64
	if err := db.WithContext(ctx).Model(&models.Transaction{}).Count(&txnCount).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to count transactions: %v\n", err)
		os.Exit(1)
	}
	if txnCount > 0 && !*force {
		fmt.Fprintf(os.Stderr, "database already has %d transactions; pass -force to seed anyway\n", txnCount)
		os.Exit(2)
	}

	branches := []*models.Branch{
		{NameEn: "Main Branch", NameAr: "الفرع الرئيسي"},
		{NameEn: "North Branch", NameAr: "الفرع الشمالي"},
	}
	for _, b := range branches {
		if err := firstOrCreate(db, b, "name_en = ?", b.NameEn); err != nil {
			fatal("branch", err)
		}
	}

	warehouses := []*models.Warehouse{
		{BranchId: branches[0].ID, NameEn: "Main Warehouse", NameAr: "المستودع الرئيسي"},
		{BranchId: branches[1].ID, NameEn: "North Warehouse", NameAr: "المستودع الشمالي"},
	}
	for _, w := range warehouses {
		if err := firstOrCreate(db, w, "name_en = ?", w.NameEn); err != nil {
			fatal("warehouse", err)
		}
	}

	categories := []*models.Category{
		{Category: "IT Equipment", Subcategory: "Laptops"},
		{Category: "IT Equipment", Subcategory: "Monitors"},
		{Category: "Furniture", Subcategory: "Desks"},
	}
	for _, cat := range categories {
		if err := firstOrCreate(db, cat, "category = ? AND subcategory = ?", cat.Category, cat.Subcategory); err != nil {
			fatal("category", err)
		}
	}

	assets := []*models.FixedAsset{
		{NameEn: "ThinkPad T14", NameAr: "ثينك باد", CategoryId: categories[0].ID, IsActive: utils.NewTrue()},
		{NameEn: "Dell 27 Monitor", NameAr: "شاشة ديل", CategoryId: categories[1].ID, IsActive: utils.NewTrue()},
		{NameEn: "Standing Desk", NameAr: "مكتب قائم", CategoryId: categories[2].ID, IsActive: utils.NewTrue()},
	}
	for _, a := range assets {
		if err := firstOrCreate(db, a, "name_en = ?", a.NameEn); err != nil {
			fatal("asset", err)
		}
	}

	hashed, err := utils.HashPassword("demo1234")
	if err != nil {
		fatal("password", err)
	}
	demoUser := &models.User{
		Username:           "demo",
		FullName:           "Demo User",
		PasswordHash:       string(hashed),
		Role:               "Clerk",
		IsActive:           utils.NewTrue(),
		CanReadAsset:       true,
		CanMakeTransaction: true,
		CanMakeReport:      true,
	}
	if err := firstOrCreate(db, demoUser, "username = ?", demoUser.Username); err != nil {
		fatal("user", err)
	}
	_ = demoUser.RemoveInstanceRedis()

	// Post through the real orchestrator so sequence numbers and quantities
	// come out exactly as production posting produces them.
	postCtx := utils.SetUserIdInContext(ctx, demoUser.ID)
	amount := func(v string) *decimal.Decimal {
		d := decimal.RequireFromString(v)
		return &d
	}
	posts := []*models.NewAssetTransaction{
		{
			Date:        "2026-08-01",
			WarehouseId: warehouses[0].ID,
			Direction:   "IN",
			Description: "Initial stock intake",
			Lines: []models.NewAssetTransactionLine{
				{AssetId: assets[0].ID, Quantity: 10, UnitAmount: amount("4200.00")},
				{AssetId: assets[1].ID, Quantity: 20, UnitAmount: amount("850.50")},
			},
		},
		{
			Date:        "2026-08-05",
			WarehouseId: warehouses[1].ID,
			Direction:   "IN",
			Description: "North branch intake",
			Lines: []models.NewAssetTransactionLine{
				{AssetId: assets[2].ID, Quantity: 5, UnitAmount: amount("1300.00")},
			},
		},
		{
			Date:            "2026-08-10",
			WarehouseId:     warehouses[0].ID,
			Direction:       "OUT",
			Description:     "Issued to accounting department",
			ReferenceNumber: "REQ-1001",
			Lines: []models.NewAssetTransactionLine{
				{AssetId: assets[0].ID, Quantity: 3},
				{AssetId: assets[1].ID, Quantity: 6},
			},
		},
	}
	for _, post := range posts {
		txn, err := workflow.CreateAssetTransaction(postCtx, post)
		if err != nil {
			fatal("transaction", err)
		}
		fmt.Printf("Posted %s %s (%d lines)\n", txn.CustomId, txn.Direction, len(txn.Lines))
	}

	fmt.Println("Demo data seeded. Login: demo / demo1234")
}

func firstOrCreate[T any](db *gorm.DB, obj *T, query string, args ...any) error {
	return db.Where(query, args...).FirstOrCreate(obj).Error
}

func fatal(what string, err error) {
	fmt.Fprintf(os.Stderr, "failed to seed %s: %v\n", what, err)
	os.Exit(1)
}

package models

import (
	"log"

	"bitbucket.org/mmdatafocus/assets_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&Branch{},
		&Warehouse{},
		&Category{},
		&User{},
		&FixedAsset{},
		&BranchSequence{},
		&Transaction{},
		&AssetTransactionLine{},
	)
	if err != nil {
		log.Fatal(err)
	}
}

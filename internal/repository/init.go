package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/procurehq/rfpstack/interfaces"
	"github.com/procurehq/rfpstack/internal/config"
	"github.com/procurehq/rfpstack/internal/models"
)

type Repositories struct {
	WatchStateRepository         interfaces.WatchStateRepository
	VendorRepository             interfaces.VendorRepository
	RFPRepository                interfaces.RFPRepository
	RFPVendorRepository          interfaces.RFPVendorRepository
	ProposalRepository           interfaces.ProposalRepository
	ProposalComparisonRepository interfaces.ProposalComparisonRepository
}

func InitRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		WatchStateRepository:         NewWatchStateRepository(db),
		VendorRepository:             NewVendorRepository(db),
		RFPRepository:                NewRFPRepository(db),
		RFPVendorRepository:          NewRFPVendorRepository(db),
		ProposalRepository:           NewProposalRepository(db),
		ProposalComparisonRepository: NewProposalComparisonRepository(db),
	}
}

func MigrateDB(dbConfig *config.DatabaseConfig, gormDB *gorm.DB) error {
	db, err := gormDB.DB()
	if err != nil {
		return err
	}

	db.SetMaxOpenConns(5)

	err = gormDB.AutoMigrate(
		&models.WatchState{},
		&models.Vendor{},
		&models.RFP{},
		&models.RFPLineItem{},
		&models.RFPVendor{},
		&models.Proposal{},
		&models.ProposalLineItem{},
		&models.ProposalComparison{},
	)

	db.Close()

	db, _ = gormDB.DB()
	db.SetMaxIdleConns(dbConfig.MaxIdleConn)
	db.SetMaxOpenConns(dbConfig.MaxConn)
	db.SetConnMaxLifetime(time.Duration(dbConfig.ConnMaxLifetime) * time.Minute)

	return err
}

// Package store is the concrete Auction Store collaborator (C3 in
// SPEC_FULL.md): it assigns a monotonic AuctionId on promotion and
// persists the active auction. It is gorm-backed, with Postgres for
// production and SQLite for local development — the same dual-backend
// shape the teacher project's database layer uses.
package store

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/meshauction/autopilot/internal/domain"
)

// auctionRow's auto-incrementing primary key *is* the AuctionId: the
// database's sequence guarantee is exactly the "strictly greater than all
// prior ids" contract the core needs.
type auctionRow struct {
	ID    uint64 `gorm:"primaryKey;autoIncrement"`
	Block uint64
}

func (auctionRow) TableName() string { return "auctions" }

type orderRow struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	AuctionID         uint64 `gorm:"index"`
	UID               string
	SellToken         string
	BuyToken          string
	SellAmount        string
	BuyAmount         string
	FeeAmount         string
	Kind              string
	ValidTo           uint32
	Owner             string
	Receiver          string
	PartiallyFillable bool
	Signature         []byte
	AppData           string
	ClassKind         string
	SurplusFee        string
}

func (orderRow) TableName() string { return "auction_orders" }

type priceRow struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AuctionID uint64 `gorm:"index"`
	Token     string
	Price     string
}

func (priceRow) TableName() string { return "auction_prices" }

// Store is the gorm-backed auction store.
type Store struct {
	db *gorm.DB
}

// New opens dsn with Postgres if it looks like a postgres DSN, otherwise
// treats it as a SQLite file path — matching the teacher's dual-backend
// database constructor.
func New(dsn string) (*Store, error) {
	var db *gorm.DB
	var err error

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		log.Info().Msg("auction store connected (postgres)")
	} else {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		log.Info().Str("path", dsn).Msg("auction store initialized (sqlite)")
	}

	if err := db.AutoMigrate(&auctionRow{}, &orderRow{}, &priceRow{}); err != nil {
		return nil, fmt.Errorf("auto-migrate: %w", err)
	}

	return &Store{db: db}, nil
}

// ReplaceCurrentAuction persists auction atomically, returning the newly
// assigned AuctionId. Either the whole transaction commits, or nothing is
// observably written.
func (s *Store) ReplaceCurrentAuction(ctx context.Context, auction *domain.Auction) (domain.AuctionID, error) {
	var id domain.AuctionID

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := auctionRow{Block: auction.Block}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert auction: %w", err)
		}
		id = domain.AuctionID(row.ID)

		for _, o := range auction.Orders {
			if err := tx.Create(orderRowFromDomain(row.ID, o)).Error; err != nil {
				return fmt.Errorf("insert order %x: %w", o.UID, err)
			}
		}
		for token, price := range auction.Prices {
			if err := tx.Create(&priceRow{AuctionID: row.ID, Token: token.Hex(), Price: price.String()}).Error; err != nil {
				return fmt.Errorf("insert price for %s: %w", token.Hex(), err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func orderRowFromDomain(auctionID uint64, o domain.Order) *orderRow {
	receiver := ""
	if o.Receiver != nil {
		receiver = o.Receiver.Hex()
	}
	surplusFee := ""
	if o.Class.SurplusFee != nil {
		surplusFee = o.Class.SurplusFee.String()
	}
	return &orderRow{
		AuctionID:         auctionID,
		UID:               common.Bytes2Hex(o.UID[:]),
		SellToken:         o.SellToken.Hex(),
		BuyToken:          o.BuyToken.Hex(),
		SellAmount:        bigString(o.SellAmount),
		BuyAmount:         bigString(o.BuyAmount),
		FeeAmount:         bigString(o.FeeAmount),
		Kind:              string(o.Kind),
		ValidTo:           o.ValidTo,
		Owner:             o.Owner.Hex(),
		Receiver:          receiver,
		PartiallyFillable: o.PartiallyFillable,
		Signature:         o.Signature,
		AppData:           common.Bytes2Hex(o.AppData[:]),
		ClassKind:         string(o.Class.Kind),
		SurplusFee:        surplusFee,
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

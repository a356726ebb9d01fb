package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jordanlanch/leadpilot/pkg/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Client wraps the GORM database handle
type Client struct {
	DB *gorm.DB
}

// NewClient connects to Postgres and runs migrations
func NewClient(databaseURL string) (*Client, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed connecting to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed getting sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	client := &Client{DB: db}
	if err := client.Migrate(); err != nil {
		return nil, err
	}

	return client, nil
}

// Migrate runs schema migrations for all models
func (c *Client) Migrate() error {
	if err := c.DB.AutoMigrate(
		&models.User{},
		&models.Lead{},
		&models.Campaign{},
		&models.ClickEvent{},
	); err != nil {
		return fmt.Errorf("failed running migrations: %w", err)
	}
	return nil
}

// Ping verifies the database connection
func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

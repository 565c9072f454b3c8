package models

import (
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gorm.io/gorm"
)

// ConnectionProfile is a successfully negotiated connection to a store.
// It is keyed by the uuid the site reports in its REST index, so reconnecting
// to the same site updates the row in place.
type ConnectionProfile struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// UUID is the site's own identifier from the REST index.
	UUID string `gorm:"column:uuid;size:255;uniqueIndex;not null" json:"uuid"`

	// Site metadata
	Name           string `gorm:"column:name;size:255" json:"name"`
	Description    string `gorm:"column:description;type:text" json:"description,omitempty"`
	URL            string `gorm:"column:url;size:1024;not null" json:"url"`
	Home           string `gorm:"column:home;size:1024" json:"home,omitempty"`
	GMTOffset      string `gorm:"column:gmt_offset;size:16" json:"gmt_offset,omitempty"`
	TimezoneString string `gorm:"column:timezone_string;size:64" json:"timezone_string,omitempty"`

	// Derived endpoints
	WPAPIURL      string `gorm:"column:wp_api_url;size:1024;not null" json:"wp_api_url"`
	WCAPIURL      string `gorm:"column:wc_api_url;size:1024;not null" json:"wc_api_url"`
	WCPOSAPIURL   string `gorm:"column:wcpos_api_url;size:1024;not null" json:"wcpos_api_url"`
	WCPOSLoginURL string `gorm:"column:wcpos_login_url;size:1024;not null" json:"wcpos_login_url"`

	// Versions
	WCVersion       string `gorm:"column:wc_version;size:50" json:"wc_version,omitempty"`
	WCPOSVersion    string `gorm:"column:wcpos_version;size:50" json:"wcpos_version,omitempty"`
	WCPOSProVersion string `gorm:"column:wcpos_pro_version;size:50" json:"wcpos_pro_version,omitempty"`

	// UseJWTAsParam is true when the site only accepts the bearer token as a
	// query parameter.
	UseJWTAsParam bool `gorm:"column:use_jwt_as_param;not null;default:false" json:"use_jwt_as_param"`

	// Index is the raw REST index document.
	Index JSON `gorm:"column:index_document;type:jsonb" json:"index,omitempty"`

	LastConnectedAt *time.Time `gorm:"column:last_connected_at" json:"last_connected_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the table name for GORM
func (ConnectionProfile) TableName() string {
	return "connection_profiles"
}

// ConnectionProfiles is a slice of connection profiles.
type ConnectionProfiles []ConnectionProfile

// Validate checks the fields a profile cannot be saved without.
func (p *ConnectionProfile) Validate() error {
	return validation.ValidateStruct(p,
		validation.Field(&p.UUID, validation.Required),
		validation.Field(&p.URL, validation.Required, is.URL),
		validation.Field(&p.WPAPIURL, validation.Required, is.URL),
		validation.Field(&p.WCAPIURL, validation.Required, is.URL),
		validation.Field(&p.WCPOSAPIURL, validation.Required, is.URL),
		validation.Field(&p.WCPOSLoginURL, validation.Required),
	)
}

// Create inserts a new profile.
func (p *ConnectionProfile) Create(db *gorm.DB) error {
	if err := p.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return db.Create(p).Error
}

// GetByUUID loads the profile with the given site uuid.
func (p *ConnectionProfile) GetByUUID(db *gorm.DB, siteUUID string) error {
	if err := validation.Validate(siteUUID, validation.Required); err != nil {
		return err
	}
	return db.Where("uuid = ?", siteUUID).First(p).Error
}

// Get loads a profile by primary key.
func (p *ConnectionProfile) Get(db *gorm.DB, id uint) error {
	if err := validation.Validate(id, validation.Required); err != nil {
		return err
	}
	return db.First(p, id).Error
}

// Update applies the changed fields of partial to the stored profile and
// reloads it. Identity and timestamps of p are kept.
func (p *ConnectionProfile) Update(db *gorm.DB, partial *ConnectionProfile) error {
	if err := validation.ValidateStruct(p,
		validation.Field(&p.ID, validation.Required),
	); err != nil {
		return err
	}
	if err := partial.Validate(); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(p).
			Select(updatableColumns).
			Updates(partial).
			Error; err != nil {
			return err
		}

		if err := p.Get(tx, p.ID); err != nil {
			return fmt.Errorf("error getting connection profile after update: %w", err)
		}
		return nil
	})
}

// updatableColumns lists the columns an incremental update may change. The
// uuid and creation time never change after insert.
var updatableColumns = []string{
	"name",
	"description",
	"url",
	"home",
	"gmt_offset",
	"timezone_string",
	"wp_api_url",
	"wc_api_url",
	"wcpos_api_url",
	"wcpos_login_url",
	"wc_version",
	"wcpos_version",
	"wcpos_pro_version",
	"use_jwt_as_param",
	"index_document",
	"last_connected_at",
}

// FindAll retrieves all profiles, most recently connected first.
func (ps *ConnectionProfiles) FindAll(db *gorm.DB) error {
	return db.Order("last_connected_at DESC").Order("id ASC").Find(ps).Error
}

// IsNotFound reports whether err means no profile matched.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

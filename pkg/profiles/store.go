package profiles

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/wcpos/siteconnect/pkg/models"
	"github.com/wcpos/siteconnect/pkg/siteconnect"
)

// Store persists connection profiles with GORM.
type Store struct {
	db     *gorm.DB
	logger hclog.Logger
}

var _ siteconnect.ProfileStore = (*Store)(nil)

// NewStore creates a new Store.
func NewStore(db *gorm.DB, log hclog.Logger) *Store {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Store{
		db:     db,
		logger: log.Named("profiles"),
	}
}

// FindByIdentifier returns the profile with the site uuid id, or nil when
// there is none.
func (s *Store) FindByIdentifier(ctx context.Context, id string) (*models.ConnectionProfile, error) {
	var p models.ConnectionProfile
	if err := p.GetByUUID(s.db.WithContext(ctx), id); err != nil {
		if models.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("error finding profile %q: %w", id, err)
	}
	return &p, nil
}

// Insert saves a new profile.
func (s *Store) Insert(ctx context.Context, profile *models.ConnectionProfile) (*models.ConnectionProfile, error) {
	if err := profile.Create(s.db.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("error creating profile: %w", err)
	}
	s.logger.Debug("created profile", "id", profile.ID, "uuid", profile.UUID)
	return profile, nil
}

// Update merges partial into existing and returns the stored result.
func (s *Store) Update(ctx context.Context, existing, partial *models.ConnectionProfile) (*models.ConnectionProfile, error) {
	if err := existing.Update(s.db.WithContext(ctx), partial); err != nil {
		return nil, fmt.Errorf("error updating profile: %w", err)
	}
	s.logger.Debug("updated profile", "id", existing.ID, "uuid", existing.UUID)
	return existing, nil
}

// List returns every saved profile, most recently connected first.
func (s *Store) List(ctx context.Context) (models.ConnectionProfiles, error) {
	var ps models.ConnectionProfiles
	if err := ps.FindAll(s.db.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("error listing profiles: %w", err)
	}
	return ps, nil
}

// Delete removes the profile with the site uuid id. It reports false when no
// such profile exists.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	p, err := s.FindByIdentifier(ctx, id)
	if err != nil || p == nil {
		return false, err
	}
	if err := s.db.WithContext(ctx).Delete(p).Error; err != nil {
		return false, fmt.Errorf("error deleting profile %q: %w", id, err)
	}
	s.logger.Info("deleted profile", "uuid", id)
	return true, nil
}

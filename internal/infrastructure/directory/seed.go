// Package directory loads the organization directory (companies and users)
// from a YAML seed file into the directory repository.
package directory

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/garyjia/expense-approval/internal/application/port"
	"github.com/garyjia/expense-approval/internal/domain/entity"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Seed is the on-disk directory document
type Seed struct {
	Companies []CompanySeed `yaml:"companies"`
}

// CompanySeed declares a company and its users
type CompanySeed struct {
	ID       string     `yaml:"id"`
	Name     string     `yaml:"name"`
	Currency string     `yaml:"currency"`
	Users    []UserSeed `yaml:"users"`
}

// UserSeed declares one user. Active defaults to true.
type UserSeed struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Email   string `yaml:"email"`
	Role    string `yaml:"role"`
	Manager string `yaml:"manager"`
	Active  *bool  `yaml:"active"`
}

// Parse decodes a seed document and validates it as a whole, reporting every
// problem found rather than the first.
func Parse(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse directory seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// Validate checks ids, roles, currencies and manager references. A manager
// must hold a role that can decide claims.
func (s *Seed) Validate() error {
	var errs error
	users := make(map[string]string) // user id -> company id
	roles := make(map[string]entity.Role)
	companies := make(map[string]bool)

	for _, c := range s.Companies {
		if c.ID == "" {
			errs = multierr.Append(errs, fmt.Errorf("company %q has no id", c.Name))
			continue
		}
		if companies[c.ID] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate company id %q", c.ID))
		}
		companies[c.ID] = true
		if len(c.Currency) != 3 {
			errs = multierr.Append(errs, fmt.Errorf("company %q: currency must be a 3-letter code, got %q", c.ID, c.Currency))
		}

		for _, u := range c.Users {
			if u.ID == "" {
				errs = multierr.Append(errs, fmt.Errorf("company %q: user %q has no id", c.ID, u.Name))
				continue
			}
			if _, dup := users[u.ID]; dup {
				errs = multierr.Append(errs, fmt.Errorf("duplicate user id %q", u.ID))
			}
			users[u.ID] = c.ID
			roles[u.ID] = entity.Role(u.Role)
			if !entity.Role(u.Role).IsValid() {
				errs = multierr.Append(errs, fmt.Errorf("user %q: unknown role %q", u.ID, u.Role))
			}
			if u.Manager == u.ID {
				errs = multierr.Append(errs, fmt.Errorf("user %q cannot manage themselves", u.ID))
			}
		}
	}

	for _, c := range s.Companies {
		for _, u := range c.Users {
			if u.Manager == "" {
				continue
			}
			companyID, ok := users[u.Manager]
			if !ok {
				errs = multierr.Append(errs, fmt.Errorf("user %q: unknown manager %q", u.ID, u.Manager))
			} else if companyID != c.ID {
				errs = multierr.Append(errs, fmt.Errorf("user %q: manager %q belongs to another company", u.ID, u.Manager))
			} else if role := roles[u.Manager]; role.IsValid() && !role.Can(entity.CapabilityDecideClaim) {
				errs = multierr.Append(errs, fmt.Errorf("user %q: manager %q has role %s which cannot decide claims", u.ID, u.Manager, role))
			}
		}
	}

	return errs
}

// Loader writes a seed into the directory repository
type Loader struct {
	repo      port.DirectoryRepository
	txManager port.TransactionManager
	logger    *zap.Logger
}

// NewLoader creates a new directory seed loader
func NewLoader(repo port.DirectoryRepository, txManager port.TransactionManager, logger *zap.Logger) *Loader {
	return &Loader{
		repo:      repo,
		txManager: txManager,
		logger:    logger,
	}
}

// LoadFile reads, validates and applies the seed file at path
func (l *Loader) LoadFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read directory seed: %w", err)
	}

	seed, err := Parse(data)
	if err != nil {
		return err
	}
	return l.Apply(ctx, seed)
}

// Apply upserts every company and user of the seed in one transaction
func (l *Loader) Apply(ctx context.Context, seed *Seed) error {
	var userCount int

	err := l.txManager.WithTransaction(ctx, func(ctx context.Context) error {
		for _, c := range seed.Companies {
			company := &entity.Company{
				ID:       c.ID,
				Name:     c.Name,
				Currency: strings.ToUpper(c.Currency),
			}
			if err := l.repo.UpsertCompany(ctx, company); err != nil {
				return err
			}

			for _, u := range c.Users {
				active := true
				if u.Active != nil {
					active = *u.Active
				}
				user := &entity.User{
					ID:        u.ID,
					CompanyID: c.ID,
					Name:      u.Name,
					Email:     u.Email,
					Role:      entity.Role(u.Role),
					ManagerID: u.Manager,
					Active:    active,
				}
				if err := l.repo.UpsertUser(ctx, user); err != nil {
					return err
				}
				userCount++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("Directory seed applied",
		zap.Int("companies", len(seed.Companies)),
		zap.Int("users", userCount))
	return nil
}

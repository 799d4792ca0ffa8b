package sites

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benedict2310/slimlytics/internal/db"
	"github.com/benedict2310/slimlytics/internal/domain"
	"github.com/benedict2310/slimlytics/internal/ids"
	"github.com/benedict2310/slimlytics/internal/names"
	sqlite3 "modernc.org/sqlite"
)

var (
	ErrSiteNotFound = errors.New("site not found")
	ErrDomainTaken  = errors.New("domain is already registered")
)

// InvalidInputError reports a rejected name, domain or id.
type InvalidInputError struct {
	Err error
}

func (e *InvalidInputError) Error() string { return e.Err.Error() }

func (e *InvalidInputError) Unwrap() error { return e.Err }

type Site struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Domain    string `json:"domain"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// Update carries the fields a caller wants to change; nil leaves the field
// as it is.
type Update struct {
	Name   *string
	Domain *string
}

type Registry struct {
	db  *sql.DB
	now func() time.Time
}

func NewRegistry(sqlDB *sql.DB) *Registry {
	return &Registry{db: sqlDB, now: time.Now}
}

func (r *Registry) List(ctx context.Context) ([]Site, error) {
	rows, err := db.NewQueries(r.db).ListSites(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Site, 0, len(rows))
	for _, row := range rows {
		out = append(out, fromRow(row))
	}
	return out, nil
}

func (r *Registry) Get(ctx context.Context, id string) (Site, error) {
	if err := names.ValidateSiteID(id); err != nil {
		return Site{}, &InvalidInputError{Err: err}
	}
	row, err := db.NewQueries(r.db).GetSiteByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Site{}, ErrSiteNotFound
		}
		return Site{}, err
	}
	return fromRow(row), nil
}

// Create registers a site under a freshly generated id. An explicit id is
// only used for seeded sites.
func (r *Registry) Create(ctx context.Context, name, rawDomain string) (Site, error) {
	id, err := ids.NewSiteID(r.now())
	if err != nil {
		return Site{}, err
	}
	return r.CreateWithID(ctx, id, name, rawDomain)
}

func (r *Registry) CreateWithID(ctx context.Context, id, name, rawDomain string) (Site, error) {
	if err := names.ValidateSiteID(id); err != nil {
		return Site{}, &InvalidInputError{Err: err}
	}
	name = strings.TrimSpace(name)
	if err := names.ValidateSiteName(name); err != nil {
		return Site{}, &InvalidInputError{Err: err}
	}
	normalized, err := domain.Normalize(rawDomain)
	if err != nil {
		return Site{}, &InvalidInputError{Err: err}
	}

	q := db.NewQueries(r.db)
	if err := q.InsertSite(ctx, db.SiteRow{ID: id, Name: name, Domain: normalized}); err != nil {
		if isUniqueConstraintError(err) {
			if _, lookupErr := q.GetSiteByDomain(ctx, normalized); lookupErr == nil {
				return Site{}, ErrDomainTaken
			}
			return Site{}, fmt.Errorf("site id %q already exists: %w", id, err)
		}
		return Site{}, err
	}
	row, err := q.GetSiteByID(ctx, id)
	if err != nil {
		return Site{}, err
	}
	return fromRow(row), nil
}

func (r *Registry) Update(ctx context.Context, id string, upd Update) (Site, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return Site{}, err
	}
	next := db.SiteRow{ID: id, Name: current.Name, Domain: current.Domain}
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if err := names.ValidateSiteName(name); err != nil {
			return Site{}, &InvalidInputError{Err: err}
		}
		next.Name = name
	}
	if upd.Domain != nil {
		normalized, err := domain.Normalize(*upd.Domain)
		if err != nil {
			return Site{}, &InvalidInputError{Err: err}
		}
		next.Domain = normalized
	}

	q := db.NewQueries(r.db)
	updated, err := q.UpdateSite(ctx, next)
	if err != nil {
		if isUniqueConstraintError(err) {
			return Site{}, ErrDomainTaken
		}
		return Site{}, err
	}
	if !updated {
		return Site{}, ErrSiteNotFound
	}
	row, err := q.GetSiteByID(ctx, id)
	if err != nil {
		return Site{}, err
	}
	return fromRow(row), nil
}

// Delete removes the site together with its events and sessions.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if err := names.ValidateSiteID(id); err != nil {
		return &InvalidInputError{Err: err}
	}
	deleted, err := db.NewQueries(r.db).DeleteSite(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrSiteNotFound
	}
	return nil
}

// EnsureSite creates the site when no site with id exists yet. It reports
// whether a row was written.
func (r *Registry) EnsureSite(ctx context.Context, id, name, rawDomain string) (bool, error) {
	exists, err := db.NewQueries(r.db).SiteExists(ctx, id)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if _, err := r.CreateWithID(ctx, id, name, rawDomain); err != nil {
		return false, err
	}
	return true, nil
}

func fromRow(row db.SiteRow) Site {
	return Site{
		ID:        row.ID,
		Name:      row.Name,
		Domain:    row.Domain,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr *sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case 2067, 1555:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

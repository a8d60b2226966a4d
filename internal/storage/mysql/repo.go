package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"estate_portal/internal/domain"
)

type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// ---- listings ----

func (s *Store) FindListing(ctx context.Context, id int64) (domain.Listing, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE id = ?`, id)
	l, err := scanListing(row)
	if err == sql.ErrNoRows {
		return domain.Listing{}, domain.NotFound("listing")
	}
	return l, err
}

func (s *Store) ListingExists(ctx context.Context, id int64) (bool, error) {
	var one int
	err := s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM listings WHERE id = ? AND active = 1`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CodeInUse(ctx context.Context, code string, excludeID int64) (bool, error) {
	var one int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT 1 FROM listings WHERE code = ? AND id <> ? LIMIT 1`, code, excludeID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) CountListings(ctx context.Context, f domain.CatalogFilter) (int, error) {
	where, args := filterWhere(f)
	var n int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM listings WHERE `+where, args...).Scan(&n)
	return n, err
}

func (s *Store) ListListings(ctx context.Context, f domain.CatalogFilter, offset, limit int) ([]domain.Listing, error) {
	where, args := filterWhere(f)
	args = append(args, limit, offset)
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE `+where+`
		 ORDER BY city ASC, price ASC, id ASC
		 LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) InsertListing(ctx context.Context, l domain.Listing) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, insertListingSQL,
		l.Code, l.Title, string(l.Type), l.City, l.Address, valStr(l.Image),
		l.Bedrooms, l.Bathrooms, l.AreaM2, l.Price, l.Active)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) UpdateListing(ctx context.Context, l domain.Listing) error {
	// zero affected rows is not a miss here: an update writing identical
	// values reports none, and callers check existence beforehand
	_, err := s.q(ctx).ExecContext(ctx, updateListingSQL,
		l.Code, l.Title, string(l.Type), l.City, l.Address, valStr(l.Image),
		l.Bedrooms, l.Bathrooms, l.AreaM2, l.Price, l.Active, l.ID)
	return err
}

func (s *Store) SetListingActive(ctx context.Context, id int64, active bool) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE listings SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, active, id)
	return err
}

// ---- visits ----

func (s *Store) FindVisit(ctx context.Context, id int64) (domain.VisitRequest, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE id = ?`, id)
	v, err := scanVisit(row)
	if err == sql.ErrNoRows {
		return domain.VisitRequest{}, domain.NotFound("visit")
	}
	return v, err
}

func (s *Store) ListVisits(ctx context.Context, listingID int64) ([]domain.VisitRequest, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE listing_id = ? ORDER BY start_at`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

func (s *Store) InsertVisit(ctx context.Context, v domain.VisitRequest) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, insertVisitSQL,
		v.ListingID, v.RequesterID, v.Start.UTC(), v.End.UTC(), string(v.State), valStr(v.Notes))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) UpdateVisitState(ctx context.Context, id int64, state domain.VisitState) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE visits SET state = ? WHERE id = ?`, string(state), id)
	if err != nil {
		return err
	}
	// an update to the already-set state affects zero rows but is not a miss
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		if serr := s.q(ctx).QueryRowContext(ctx, `SELECT 1 FROM visits WHERE id = ?`, id).Scan(&one); serr == sql.ErrNoRows {
			return domain.NotFound("visit")
		}
	}
	return nil
}

func (s *Store) VisitsOn(ctx context.Context, day time.Time) ([]domain.VisitRequest, error) {
	y, m, d := day.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+visitColumns+` FROM visits WHERE start_at >= ? AND start_at < ? ORDER BY start_at`,
		from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectVisits(rows)
}

// ---- reservations ----

func (s *Store) FindReservation(ctx context.Context, id int64) (domain.Reservation, error) {
	row := s.q(ctx).QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	r, err := scanReservation(row)
	if err == sql.ErrNoRows {
		return domain.Reservation{}, domain.NotFound("reservation")
	}
	return r, err
}

func (s *Store) ListActiveReservations(ctx context.Context, listingID int64, now time.Time) ([]domain.Reservation, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE listing_id = ? AND expires_at > ? ORDER BY expires_at`,
		listingID, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *Store) ListAllActiveReservations(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	rows, err := s.q(ctx).QueryContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE expires_at > ? ORDER BY expires_at`, now.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReservations(rows)
}

func (s *Store) InsertReservation(ctx context.Context, r domain.Reservation) (int64, error) {
	res, err := s.q(ctx).ExecContext(ctx, insertReservationSQL,
		r.ListingID, r.RequesterID, r.CreatedAt.UTC(), r.ExpiresAt.UTC())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) DeleteReservation(ctx context.Context, id int64) error {
	res, err := s.q(ctx).ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return noneMeansMissing(res, "reservation")
}

// ---- scanning helpers ----

type rowScanner interface{ Scan(dest ...any) error }

func scanListing(r rowScanner) (domain.Listing, error) {
	var l domain.Listing
	var typ string
	var image sql.NullString
	if err := r.Scan(&l.ID, &l.Code, &l.Title, &typ, &l.City, &l.Address,
		&image, &l.Bedrooms, &l.Bathrooms, &l.AreaM2, &l.Price, &l.Active); err != nil {
		return domain.Listing{}, err
	}
	l.Type = domain.ListingType(typ)
	if image.Valid {
		img := image.String
		l.Image = &img
	}
	return l, nil
}

func scanVisit(r rowScanner) (domain.VisitRequest, error) {
	var v domain.VisitRequest
	var state string
	var notes sql.NullString
	if err := r.Scan(&v.ID, &v.ListingID, &v.RequesterID, &v.Start, &v.End, &state, &notes); err != nil {
		return domain.VisitRequest{}, err
	}
	v.State = domain.VisitState(state)
	if notes.Valid {
		n := notes.String
		v.Notes = &n
	}
	return v, nil
}

func scanReservation(r rowScanner) (domain.Reservation, error) {
	var res domain.Reservation
	err := r.Scan(&res.ID, &res.ListingID, &res.RequesterID, &res.CreatedAt, &res.ExpiresAt)
	return res, err
}

func collectVisits(rows *sql.Rows) ([]domain.VisitRequest, error) {
	var out []domain.VisitRequest
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func collectReservations(rows *sql.Rows) ([]domain.Reservation, error) {
	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func filterWhere(f domain.CatalogFilter) (string, []any) {
	where := "active = 1"
	var args []any
	if f.City != nil && strings.TrimSpace(*f.City) != "" {
		where += " AND city LIKE ?"
		args = append(args, "%"+strings.TrimSpace(*f.City)+"%")
	}
	if f.Type != nil {
		where += " AND type = ?"
		args = append(args, string(*f.Type))
	}
	if f.PriceMin != nil {
		where += " AND price >= ?"
		args = append(args, *f.PriceMin)
	}
	if f.PriceMax != nil {
		where += " AND price <= ?"
		args = append(args, *f.PriceMax)
	}
	if f.BedroomsMin != nil {
		where += " AND bedrooms >= ?"
		args = append(args, *f.BedroomsMin)
	}
	return where, args
}

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func noneMeansMissing(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NotFound(what)
	}
	return nil
}

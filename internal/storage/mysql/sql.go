package mysql

const insertListingSQL = `
INSERT INTO listings
  (code, title, type, city, address, image, bedrooms, bathrooms, area_m2, price, active)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateListingSQL = `
UPDATE listings SET
  code       = ?,
  title      = ?,
  type       = ?,
  city       = ?,
  address    = ?,
  image      = ?,
  bedrooms   = ?,
  bathrooms  = ?,
  area_m2    = ?,
  price      = ?,
  active     = ?,
  updated_at = CURRENT_TIMESTAMP
WHERE id = ?
`

const listingColumns = `id, code, title, type, city, address, image, bedrooms, bathrooms, area_m2, price, active`

const insertVisitSQL = `
INSERT INTO visits (listing_id, requester_id, start_at, end_at, state, notes)
VALUES (?, ?, ?, ?, ?, ?)
`

const visitColumns = `id, listing_id, requester_id, start_at, end_at, state, notes`

const insertReservationSQL = `
INSERT INTO reservations (listing_id, requester_id, created_at, expires_at)
VALUES (?, ?, ?, ?)
`

const reservationColumns = `id, listing_id, requester_id, created_at, expires_at`

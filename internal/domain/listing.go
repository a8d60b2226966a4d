package domain

// ListingType mirrors the property categories shown in the catalog.
type ListingType string

const (
	TypeApartment ListingType = "apartment"
	TypeHouse     ListingType = "house"
	TypeOffice    ListingType = "office"
	TypeRetail    ListingType = "retail"
)

func (t ListingType) Valid() bool {
	switch t {
	case TypeApartment, TypeHouse, TypeOffice, TypeRetail:
		return true
	}
	return false
}

type Listing struct {
	ID        int64
	Code      string // unique human code, e.g. DEP-001
	Title     string
	Type      ListingType
	City      string
	Address   string
	Image     *string
	Bedrooms  int
	Bathrooms int
	AreaM2    int
	Price     float64
	Active    bool
}

// CatalogFilter narrows the catalog query. Nil fields mean "no constraint".
type CatalogFilter struct {
	City        *string // substring match
	Type        *ListingType
	PriceMin    *float64
	PriceMax    *float64
	BedroomsMin *int
}

// Validate rejects malformed filter values before any query runs.
func (f CatalogFilter) Validate() error {
	if f.PriceMin != nil && *f.PriceMin < 0 {
		return Validation("price_min", "must not be negative")
	}
	if f.PriceMax != nil && *f.PriceMax < 0 {
		return Validation("price_max", "must not be negative")
	}
	if f.PriceMin != nil && f.PriceMax != nil && *f.PriceMin > *f.PriceMax {
		return Validation("price_min", "price range invalid (min > max)")
	}
	if f.BedroomsMin != nil && (*f.BedroomsMin < 0 || *f.BedroomsMin > 50) {
		return Validation("bedrooms_min", "must be between 0 and 50")
	}
	if f.Type != nil && !f.Type.Valid() {
		return Validation("type", "unknown listing type")
	}
	return nil
}

// CatalogPage is one filtered, sorted slice of the catalog plus pagination metadata.
type CatalogPage struct {
	Items      []Listing
	Page       int
	TotalPages int
	TotalCount int
}

package domain

import "fmt"

// Size is the Flickr size suffix appended to a photo's CDN file name.
type Size string

const (
	// Thumbnail is the 240px-on-longest-side rendition.
	Thumbnail Size = "m"
	// Large is the 1024px-on-longest-side rendition.
	Large Size = "b"
)

// Valid reports whether s is one of the sizes the client knows how to fetch.
func (s Size) Valid() bool {
	return s == Thumbnail || s == Large
}

// Photo represents one search hit returned by the Flickr API.
// It carries only what is needed to identify the photo and build its image URL;
// favorite status is kept in storage, keyed by ID.
type Photo struct {
	// ID is the Flickr photo id and the photo's identity.
	ID string `json:"id"`

	// Title may be empty.
	Title string `json:"title"`

	// Farm, Server and Secret locate the photo on the static CDN.
	Farm   int    `json:"farm"`
	Server string `json:"server"`
	Secret string `json:"secret"`
}

// ImageURL builds the static CDN URL of the photo at the given size.
// Format: https://farm{farm}.staticflickr.com/{server}/{id}_{secret}_{size}.jpg
func (p Photo) ImageURL(size Size) string {
	return fmt.Sprintf("https://farm%d.staticflickr.com/%s/%s_%s_%s.jpg",
		p.Farm, p.Server, p.ID, p.Secret, size)
}

// Equal reports whether p and other are the same photo. Only the ID is compared.
func (p Photo) Equal(other Photo) bool {
	return p.ID == other.ID
}

// SearchResult pairs a search term with the photos returned for it, in API order.
type SearchResult struct {
	Term   string  `json:"term"`
	Photos []Photo `json:"photos"`
}

// Title is the heading shown above a result grid, e.g. "kittens (30)".
func (r SearchResult) Title() string {
	return fmt.Sprintf("%s (%d)", r.Term, len(r.Photos))
}

// Image is a fetched photo rendition.
type Image struct {
	Data   []byte
	Format string
	Width  int
	Height int
}

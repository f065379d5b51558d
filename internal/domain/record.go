package domain

// Unavailable is the sentinel written into detail-stage product fields
// when the detail fetch for that item failed.
const Unavailable = "unavailable"

type SocialPlatform string

const (
	SocialFacebook  SocialPlatform = "facebook"
	SocialInstagram SocialPlatform = "instagram"
	SocialTwitter   SocialPlatform = "twitter"
	SocialLinkedIn  SocialPlatform = "linkedin"
	SocialYouTube   SocialPlatform = "youtube"
	SocialTikTok    SocialPlatform = "tiktok"
	SocialPinterest SocialPlatform = "pinterest"
)

type SocialLink struct {
	Platform SocialPlatform `json:"platform"`
	URL      string         `json:"url"`
}

// MapListingRecord is one extracted map-search listing. Enrichment
// fields stay empty unless the job asked for that enrichment.
type MapListingRecord struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	City        string   `json:"city"`
	PostalCode  string   `json:"postalCode"`
	Country     string   `json:"country"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`
	PriceTier   string   `json:"priceTier"`
	Category    string   `json:"category"`
	Phone       string   `json:"phone"`
	Website     string   `json:"website"`
	Domain      string   `json:"domain"`
	PhotoCount  *int     `json:"photoCount"`
	SourceURL   string   `json:"sourceUrl"`

	Emails  []string     `json:"emails,omitempty"`
	Phones  []string     `json:"phones,omitempty"`
	Socials []SocialLink `json:"socials,omitempty"`
}

// ProductListingRecord is one commerce-search product. List-stage fields
// are always present; detail-stage fields fall back to Unavailable.
type ProductListingRecord struct {
	CatalogID   string   `json:"catalogId"`
	Title       string   `json:"title"`
	Price       string   `json:"price"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`
	Brand       string   `json:"brand"`
	Category    string   `json:"category"`
	Description string   `json:"description"`
	SalesVolume string   `json:"salesVolume"`
	Stock       string   `json:"stock"`
	ImageURL    string   `json:"imageUrl"`
	ProductURL  string   `json:"productUrl"`
}

// MarkDetailUnavailable degrades a product to its list-stage fields,
// stamping the sentinel into every detail-only field.
func (p *ProductListingRecord) MarkDetailUnavailable() {
	if p.Brand == "" {
		p.Brand = Unavailable
	}
	if p.Category == "" {
		p.Category = Unavailable
	}
	if p.Description == "" {
		p.Description = Unavailable
	}
	if p.SalesVolume == "" {
		p.SalesVolume = Unavailable
	}
	if p.Stock == "" {
		p.Stock = Unavailable
	}
}

// MonitoringSnapshot is attached to a completed or errored run.
// Write-once per run; a re-run overwrites it.
type MonitoringSnapshot struct {
	DurationMS        int64    `json:"durationMs"`
	PagesVisited      int      `json:"pagesVisited"`
	SuccessfulScrapes int      `json:"successfulScrapes"`
	FailedScrapes     int      `json:"failedScrapes"`
	ProxyUsed         bool     `json:"proxyUsed"`
	ProxyHost         string   `json:"proxyHost,omitempty"`
	Errors            []string `json:"errors,omitempty"`
}

package catalog

import "time"

// SourceRef identifies the record within its originating source. The pair
// (ID, OriginalID) is the natural key for persistence.
type SourceRef struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	OriginalID string `json:"originalId"`
}

// TitleInfo collects the known titles of one item.
type TitleInfo struct {
	Primary   string   `json:"primary"`
	Alternate []string `json:"alternate,omitempty"`
	Original  string   `json:"original,omitempty"`
}

// CreatedDate describes when an item was made. Start and End are years and
// may be nil when the source does not provide them.
type CreatedDate struct {
	Start   *int   `json:"start,omitempty"`
	End     *int   `json:"end,omitempty"`
	Display string `json:"display,omitempty"`
	Period  string `json:"period,omitempty"`
	Dynasty string `json:"dynasty,omitempty"`
	Circa   bool   `json:"circa,omitempty"`
}

// DateInfo groups the item's lifecycle dates.
type DateInfo struct {
	Created  CreatedDate `json:"created"`
	Acquired string      `json:"acquired,omitempty"`
	Modified string      `json:"modified,omitempty"`
}

// Classification captures how the source categorizes the item.
type Classification struct {
	Category   string `json:"category,omitempty"`
	Medium     string `json:"medium,omitempty"`
	Department string `json:"department,omitempty"`
	Culture    string `json:"culture,omitempty"`
}

// Creator is one attributed maker of the item.
type Creator struct {
	Name        string `json:"name"`
	Role        string `json:"role,omitempty"`
	Nationality string `json:"nationality,omitempty"`
	BirthDate   string `json:"birthDate,omitempty"`
	DeathDate   string `json:"deathDate,omitempty"`
}

// Dimension is one measured aspect of the item. Value is nil when the source
// value could not be parsed as a number.
type Dimension struct {
	Type  string   `json:"type,omitempty"`
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
	Note  string   `json:"note,omitempty"`
}

// Image is one image published for the item.
type Image struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Type         string `json:"type,omitempty"`
	Copyright    string `json:"copyright,omitempty"`
}

// Location describes where the item is displayed and where it originated.
type Location struct {
	Gallery       string `json:"gallery,omitempty"`
	Room          string `json:"room,omitempty"`
	OriginCity    string `json:"originCity,omitempty"`
	OriginCountry string `json:"originCountry,omitempty"`
}

// RecordMetadata holds provenance of the record itself, not of the item.
type RecordMetadata struct {
	SourceURL    string    `json:"sourceUrl,omitempty"`
	FetchedAt    time.Time `json:"fetchDate"`
	PublicDomain bool      `json:"isPublicDomain,omitempty"`
	Highlight    bool      `json:"isHighlight,omitempty"`
	Tags         []string  `json:"tags,omitempty"`
	CreditLine   string    `json:"creditLine,omitempty"`
	Rights       string    `json:"rights,omitempty"`
}

// Record is the canonical, source-agnostic representation of one catalog
// item. It is immutable once produced by an adapter's Transform; the
// orchestration engine only stamps the timestamps before persisting.
//
// Extension carries the source-specific block that does not map onto the
// shared schema. It is stored verbatim in the sink.
type Record struct {
	Source         SourceRef      `json:"museum"`
	Title          TitleInfo      `json:"title"`
	Dates          DateInfo       `json:"dates"`
	Classification Classification `json:"classification"`
	Creators       []Creator      `json:"creators,omitempty"`
	Dimensions     []Dimension    `json:"dimensions,omitempty"`
	Images         []Image        `json:"images,omitempty"`
	Location       Location       `json:"location"`
	Metadata       RecordMetadata `json:"metadata"`
	Extension      map[string]any `json:"museumSpecific,omitempty"`

	// LastUpdated is set by the engine at persistence time.
	LastUpdated time.Time `json:"lastUpdated"`
}

// Outcome classifies the terminal result of processing one work item.
type Outcome int

const (
	// OutcomeSuccess means the record was fetched, transformed, and upserted.
	OutcomeSuccess Outcome = iota
	// OutcomeSkipped means the item cannot be fetched or represented
	// (not found, or the adapter declined to transform it). Skips are
	// terminal: they are never retried and never counted as failures.
	OutcomeSkipped
	// OutcomeFailure means all attempts were exhausted.
	OutcomeFailure
)

// String returns the label used in logs and metrics.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailure:
		return "failure"
	default:
		return "unknown"
	}
}

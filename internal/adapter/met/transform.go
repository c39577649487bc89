package met

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/edwarddgao/historium/internal/catalog"
)

// object mirrors the subset of the Met object document the canonical schema
// consumes. Everything else rides along in the source-specific extension.
type object struct {
	ObjectID            int                  `json:"objectID"`
	Title               string               `json:"title"`
	ObjectDate          string               `json:"objectDate"`
	ObjectBeginDate     int                  `json:"objectBeginDate"`
	ObjectEndDate       int                  `json:"objectEndDate"`
	Period              string               `json:"period"`
	Dynasty             string               `json:"dynasty"`
	AccessionYear       string               `json:"accessionYear"`
	MetadataDate        string               `json:"metadataDate"`
	Classification      string               `json:"classification"`
	Medium              string               `json:"medium"`
	Department          string               `json:"department"`
	Culture             string               `json:"culture"`
	ArtistDisplayName   string               `json:"artistDisplayName"`
	ArtistRole          string               `json:"artistRole"`
	ArtistNationality   string               `json:"artistNationality"`
	ArtistBeginDate     string               `json:"artistBeginDate"`
	ArtistEndDate       string               `json:"artistEndDate"`
	Measurements        []measurement        `json:"measurements"`
	GalleryNumber       string               `json:"GalleryNumber"`
	City                string               `json:"city"`
	Country             string               `json:"country"`
	PrimaryImage        string               `json:"primaryImage"`
	PrimaryImageSmall   string               `json:"primaryImageSmall"`
	AdditionalImages    []string             `json:"additionalImages"`
	IsPublicDomain      bool                 `json:"isPublicDomain"`
	IsHighlight         bool                 `json:"isHighlight"`
	Tags                []tag                `json:"tags"`
	RightsReproduction  string               `json:"rightsAndReproduction"`
	CreditLine          string               `json:"creditLine"`
	AccessionNumber     string               `json:"accessionNumber"`
	ObjectName          string               `json:"objectName"`
	Repository          string               `json:"repository"`
	ObjectURL           string               `json:"objectURL"`
	Constituents        []map[string]any     `json:"constituents"`
}

type measurement struct {
	ElementDescription  string             `json:"elementDescription"`
	ElementMeasurements map[string]float64 `json:"elementMeasurements"`
}

type tag struct {
	Term string `json:"term"`
}

// Transform maps one Met object document to the canonical schema.
func (a *Adapter) Transform(raw []byte) (*catalog.Record, error) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode met object: %w", err)
	}
	if obj.ObjectID == 0 {
		return nil, nil
	}

	rec := &catalog.Record{
		Source: catalog.SourceRef{
			ID:         sourceID,
			Name:       sourceName,
			OriginalID: strconv.Itoa(obj.ObjectID),
		},
		Title: catalog.TitleInfo{Primary: obj.Title},
		Dates: catalog.DateInfo{
			Created: catalog.CreatedDate{
				Start:   intPtr(obj.ObjectBeginDate),
				End:     intPtr(obj.ObjectEndDate),
				Display: obj.ObjectDate,
				Period:  obj.Period,
				Dynasty: obj.Dynasty,
			},
			Acquired: obj.AccessionYear,
			Modified: obj.MetadataDate,
		},
		Classification: catalog.Classification{
			Category:   obj.Classification,
			Medium:     obj.Medium,
			Department: obj.Department,
			Culture:    obj.Culture,
		},
		Location: catalog.Location{
			Gallery:       obj.GalleryNumber,
			OriginCity:    obj.City,
			OriginCountry: obj.Country,
		},
		Metadata: catalog.RecordMetadata{
			SourceURL:    obj.ObjectURL,
			PublicDomain: obj.IsPublicDomain,
			Highlight:    obj.IsHighlight,
			Tags:         tagTerms(obj.Tags),
			CreditLine:   obj.CreditLine,
			Rights:       obj.RightsReproduction,
		},
		Extension: map[string]any{
			"accessionNumber": obj.AccessionNumber,
			"objectName":      obj.ObjectName,
			"repository":      obj.Repository,
			"constituents":    obj.Constituents,
		},
	}

	if obj.ArtistDisplayName != "" {
		rec.Creators = []catalog.Creator{{
			Name:        obj.ArtistDisplayName,
			Role:        obj.ArtistRole,
			Nationality: obj.ArtistNationality,
			BirthDate:   obj.ArtistBeginDate,
			DeathDate:   obj.ArtistEndDate,
		}}
	}

	for _, m := range obj.Measurements {
		// The API publishes element measurements in centimeters.
		rec.Dimensions = append(rec.Dimensions, catalog.Dimension{
			Type:  m.ElementDescription,
			Value: firstMeasurement(m.ElementMeasurements),
			Unit:  "cm",
		})
	}

	if obj.PrimaryImage != "" {
		rec.Images = append(rec.Images, catalog.Image{
			URL:          obj.PrimaryImage,
			ThumbnailURL: obj.PrimaryImageSmall,
			Type:         "primary",
		})
	}
	for _, url := range obj.AdditionalImages {
		if url == "" {
			continue
		}
		rec.Images = append(rec.Images, catalog.Image{URL: url, Type: "additional"})
	}

	return rec, nil
}

func intPtr(v int) *int {
	return &v
}

func tagTerms(tags []tag) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Term != "" {
			out = append(out, t.Term)
		}
	}
	return out
}

// firstMeasurement picks one value deterministically: Height when present,
// otherwise the smallest key.
func firstMeasurement(values map[string]float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	if v, ok := values["Height"]; ok {
		return &v
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v := values[keys[0]]
	return &v
}

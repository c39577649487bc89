package louvre

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/edwarddgao/historium/internal/catalog"
)

// artwork mirrors the subset of the Louvre artwork document the canonical
// schema consumes.
type artwork struct {
	ArkID                  string            `json:"arkId"`
	Title                  string            `json:"title"`
	TitleComplement        string            `json:"titleComplement"`
	DenominationTitle      []valueField      `json:"denominationTitle"`
	DateCreated            []createdDate     `json:"dateCreated"`
	DisplayDateCreated     string            `json:"displayDateCreated"`
	Modified               string            `json:"modified"`
	ObjectType             string            `json:"objectType"`
	MaterialsAndTechniques string            `json:"materialsAndTechniques"`
	Collection             string            `json:"collection"`
	Creators               []creator         `json:"creator"`
	Dimension              []dimension       `json:"dimension"`
	Room                   string            `json:"room"`
	CurrentLocation        string            `json:"currentLocation"`
	PlaceOfCreation        string            `json:"placeOfCreation"`
	Image                  []image           `json:"image"`
	URL                    string            `json:"url"`
	ObjectNumber           []json.RawMessage `json:"objectNumber"`
	Description            string            `json:"description"`
	Inscriptions           json.RawMessage   `json:"inscriptions"`
	ObjectHistory          string            `json:"objectHistory"`
	HeldBy                 string            `json:"heldBy"`
	OwnedBy                string            `json:"ownedBy"`
}

type valueField struct {
	Value string `json:"value"`
}

type createdDate struct {
	StartYear   *int   `json:"startYear"`
	EndYear     *int   `json:"endYear"`
	Text        string `json:"text"`
	Imprecision string `json:"imprecision"`
}

type creator struct {
	Label        string       `json:"label"`
	Attribution  string       `json:"attributionLevel"`
	LinkType     string       `json:"linkType"`
	CreatorRoles []valueField `json:"roles"`
	Nationality  string       `json:"nationality"`
	BirthDate    string       `json:"birthDate"`
	DeathDate    string       `json:"deathDate"`
}

type dimension struct {
	Type  string `json:"type"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
	Note  string `json:"note"`
}

type image struct {
	URLImage     string `json:"urlImage"`
	URLThumbnail string `json:"urlThumbnail"`
	Type         string `json:"type"`
	Copyright    string `json:"copyright"`
}

// Transform maps one Louvre artwork document to the canonical schema.
func (a *Adapter) Transform(raw []byte) (*catalog.Record, error) {
	var art artwork
	if err := json.Unmarshal(raw, &art); err != nil {
		return nil, fmt.Errorf("decode louvre artwork: %w", err)
	}
	if art.ArkID == "" {
		return nil, nil
	}

	var created catalog.CreatedDate
	if len(art.DateCreated) > 0 {
		first := art.DateCreated[0]
		created = catalog.CreatedDate{
			Start:  first.StartYear,
			End:    first.EndYear,
			Period: first.Text,
			Circa:  first.Imprecision != "",
		}
	}
	created.Display = art.DisplayDateCreated

	rec := &catalog.Record{
		Source: catalog.SourceRef{
			ID:         sourceID,
			Name:       sourceName,
			OriginalID: art.ArkID,
		},
		Title: catalog.TitleInfo{
			Primary:   art.Title,
			Alternate: alternateTitles(art.DenominationTitle),
			Original:  art.TitleComplement,
		},
		Dates: catalog.DateInfo{
			Created:  created,
			Modified: art.Modified,
		},
		Classification: catalog.Classification{
			Category:   art.ObjectType,
			Medium:     art.MaterialsAndTechniques,
			Department: art.Collection,
		},
		Location: catalog.Location{
			Gallery:    art.CurrentLocation,
			Room:       art.Room,
			OriginCity: art.PlaceOfCreation,
		},
		Metadata: catalog.RecordMetadata{
			SourceURL: art.URL,
		},
		Extension: map[string]any{
			"objectNumber":  art.ObjectNumber,
			"description":   art.Description,
			"inscriptions":  art.Inscriptions,
			"objectHistory": art.ObjectHistory,
			"heldBy":        art.HeldBy,
			"ownedBy":       art.OwnedBy,
		},
	}

	for _, c := range art.Creators {
		if c.Label == "" {
			continue
		}
		rec.Creators = append(rec.Creators, catalog.Creator{
			Name:        c.Label,
			Role:        firstRole(c.CreatorRoles),
			Nationality: c.Nationality,
			BirthDate:   c.BirthDate,
			DeathDate:   c.DeathDate,
		})
	}

	for _, d := range art.Dimension {
		rec.Dimensions = append(rec.Dimensions, catalog.Dimension{
			Type:  d.Type,
			Value: parseDimensionValue(d.Value),
			Unit:  d.Unit,
			Note:  d.Note,
		})
	}

	for _, img := range art.Image {
		if img.URLImage == "" {
			continue
		}
		rec.Images = append(rec.Images, catalog.Image{
			URL:          img.URLImage,
			ThumbnailURL: img.URLThumbnail,
			Type:         img.Type,
			Copyright:    img.Copyright,
		})
	}

	return rec, nil
}

func alternateTitles(titles []valueField) []string {
	if len(titles) == 0 {
		return nil
	}
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		if t.Value != "" {
			out = append(out, t.Value)
		}
	}
	return out
}

func firstRole(roles []valueField) string {
	for _, r := range roles {
		if r.Value != "" {
			return r.Value
		}
	}
	return ""
}

// parseDimensionValue parses the source's free-form dimension string. Values
// that are not plain numbers (ranges, annotations) yield nil.
func parseDimensionValue(v string) *float64 {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

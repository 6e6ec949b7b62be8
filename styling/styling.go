package styling

import (
	"errors"
	"math"
	"sort"

	"github.com/jamesrr39/goutil/errorsx"
)

const BUILTIN_STYLEID = "__roadposter_builtin"

// DefaultLineWidth is the stroke width, in pixels, of a category without an entry in the style map
const DefaultLineWidth float64 = 1

var ErrInvalidStyle = errors.New("invalid style")

// CategoryStyleMap maps a road category (value of the "highway" tag) to a stroke width in pixels
type CategoryStyleMap map[string]float64

// LineWidthFor returns the stroke width for the category, or DefaultLineWidth if the category is not in the map
func (m CategoryStyleMap) LineWidthFor(category string) float64 {
	lineWidth, ok := m[category]
	if !ok {
		return DefaultLineWidth
	}

	return lineWidth
}

// Validate checks every configured width is a positive, finite number
func (m CategoryStyleMap) Validate() errorsx.Error {
	categories := make([]string, 0, len(m))
	for category := range m {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		lineWidth := m[category]
		if !(lineWidth > 0) || math.IsInf(lineWidth, 0) {
			return errorsx.Wrap(ErrInvalidStyle, "category", category, "lineWidth", lineWidth)
		}
	}

	return nil
}

type Style struct {
	ID         string           `yaml:"id"`
	LineWidths CategoryStyleMap `yaml:"lineWidths"`
}

func (s *Style) GetStyleID() string {
	return s.ID
}

func (s *Style) Validate() errorsx.Error {
	if s.ID == "" {
		return errorsx.Wrap(ErrInvalidStyle, "reason", "no style ID")
	}

	err := s.LineWidths.Validate()
	if err != nil {
		return errorsx.Wrap(err, "styleID", s.ID)
	}

	return nil
}

type StyleSet struct {
	stylesMap      map[string]*Style // map[Style ID]Style
	defaultStyleID string
}

func NewStyleSet(styles []*Style, defaultStyleID string) (*StyleSet, errorsx.Error) {
	styleSet := &StyleSet{
		stylesMap:      make(map[string]*Style),
		defaultStyleID: defaultStyleID,
	}

	defaultIDFound := false

	for _, style := range styles {
		styleID := style.GetStyleID()
		_, ok := styleSet.stylesMap[styleID]
		if ok {
			return nil, errorsx.Errorf("duplicate style ID found: %q", styleID)
		}

		styleSet.stylesMap[styleID] = style

		if defaultStyleID == styleID {
			defaultIDFound = true
		}
	}

	if !defaultIDFound {
		return nil, errorsx.Errorf("default ID %q not found in any supplied styles", defaultStyleID)
	}

	return styleSet, nil
}

func (s *StyleSet) GetStyleByID(id string) *Style {
	return s.stylesMap[id]
}

func (s *StyleSet) GetDefaultStyle() *Style {
	return s.stylesMap[s.defaultStyleID]
}

// GetAllStyleIDs returns the style IDs, sorted
func (s *StyleSet) GetAllStyleIDs() []string {
	var styleIDs []string

	for id := range s.stylesMap {
		styleIDs = append(styleIDs, id)
	}

	sort.Strings(styleIDs)

	return styleIDs
}

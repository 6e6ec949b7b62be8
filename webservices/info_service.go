package webservices

import (
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jamesrr39/roadposter/styling"
)

func NewInfoService(logger *logpkg.Logger, dataSource roadposterdal.DataSource, styleSet *styling.StyleSet, defaultFilter *roadposterdal.RoadFilter) *InfoService {
	ws := &InfoService{logger, dataSource, styleSet, defaultFilter, chi.NewRouter()}
	ws.Get("/", ws.handleGet)

	return ws
}

type InfoService struct {
	logger        *logpkg.Logger
	dataSource    roadposterdal.DataSource
	styleSet      *styling.StyleSet
	defaultFilter *roadposterdal.RoadFilter
	chi.Router
}

type stylesType struct {
	DefaultStyleID string   `json:"defaultStyleId"`
	StyleIDs       []string `json:"styleIds"`
}

type posterLimitsType struct {
	DefaultSize int `json:"defaultSize"`
	MaxSize     int `json:"maxSize"`
}

type infoType struct {
	DataSource     string           `json:"dataSource"`
	Style          stylesType       `json:"style"`
	RoadCategories []string         `json:"roadCategories"`
	Poster         posterLimitsType `json:"poster"`
}

func (ws *InfoService) handleGet(w http.ResponseWriter, r *http.Request) {
	style := stylesType{
		ws.styleSet.GetDefaultStyle().GetStyleID(),
		ws.styleSet.GetAllStyleIDs(),
	}

	render.JSON(w, r, infoType{
		DataSource:     ws.dataSource.Name(),
		Style:          style,
		RoadCategories: ws.defaultFilter.Categories,
		Poster:         posterLimitsType{DefaultPosterSize, MaxPosterSize},
	})
}

package main

import (
	"context"
	"fmt"
	"image/png"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	tracing "github.com/jamesrr39/go-tracing"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/gofs"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/jamesrr39/roadposter/fonts"
	"github.com/jamesrr39/roadposter/roadposter"
	"github.com/jamesrr39/roadposter/roadposterdal"
	"github.com/jamesrr39/roadposter/roadposterdal/roadpostersqldb"
	"github.com/jamesrr39/roadposter/roadposterrenderer"
	"github.com/jamesrr39/roadposter/styling"
	"github.com/jamesrr39/roadposter/webservices"
	"github.com/paulmach/osm"
	"github.com/pkg/profile"
	"gopkg.in/alecthomas/kingpin.v2"
)

const (
	DEFAULT_PORT                   = 9000
	DEFAULT_MAX_CONCURRENT_RENDERS = 4
	DEFAULT_DATA_SOURCE            = "overpass://" + roadposterdal.DefaultOverpassEndpoint
	OVERPASS_CLIENT_TIMEOUT        = time.Minute * 2
)

var logger *logpkg.Logger

func main() {
	verbose := kingpin.Flag("v", "verbose logging").Bool()
	kingpin.CommandLine.PreAction(func(ctx *kingpin.ParseContext) error {
		logLevel := logpkg.LogLevelInfo
		if *verbose {
			logLevel = logpkg.LogLevelDebug
		}
		logger = logpkg.NewLogger(os.Stderr, logLevel)
		return nil
	})

	setupRender()
	setupServe()
	setupImport()

	kingpin.Parse()
}

var dataSourceHelp = fmt.Sprintf(
	"where to fetch the roads from. It should be the type, followed by the separator (%s), followed by the path or URL. For example: %s%smy/extract.osm.pbf, %s%suser:pass@localhost/roadposter or %s",
	roadposterdal.ConnectionPathSeparator,
	roadposterdal.DataSourceTypePBF,
	roadposterdal.ConnectionPathSeparator,
	roadposterdal.DataSourceTypePostgresql,
	roadposterdal.ConnectionPathSeparator,
	DEFAULT_DATA_SOURCE,
)

type closeFuncType func() errorsx.Error

func loadDataSource(dataSourceURLStr string) (roadposterdal.DataSource, closeFuncType, errorsx.Error) {
	noopClose := func() errorsx.Error { return nil }

	dataSourceURL, err := roadposterdal.ParseDataSourceURL(dataSourceURLStr)
	if err != nil {
		return nil, nil, errorsx.Wrap(err, "data source", dataSourceURLStr)
	}

	switch dataSourceURL.Type {
	case roadposterdal.DataSourceTypeOverpass:
		endpoint := dataSourceURL.ConnectionPath
		if endpoint == "" {
			endpoint = roadposterdal.DefaultOverpassEndpoint
		}

		client := &http.Client{
			Timeout: OVERPASS_CLIENT_TIMEOUT,
		}

		return roadposterdal.NewOverpassDataSource(logger, endpoint, client), noopClose, nil
	case roadposterdal.DataSourceTypePBF:
		openReaderFunc := roadposterdal.OpenPBFFileFunc(gofs.NewOsFs(), dataSourceURL.ConnectionPath)
		name := fmt.Sprintf("pbf file: %s", filepath.Base(dataSourceURL.ConnectionPath))

		return roadposterdal.NewPBFDataSource(logger, name, openReaderFunc), noopClose, nil
	case roadposterdal.DataSourceTypePostgresql:
		db, err := roadpostersqldb.NewPostgresqlDBConn(logger, dataSourceURL.ConnectionPath)
		if err != nil {
			return nil, nil, errorsx.Wrap(err)
		}

		return db, db.Close, nil
	default:
		return nil, nil, errorsx.Errorf("unknown data source type: %q", dataSourceURL.Type)
	}
}

type areaFlags struct {
	bounds     *string
	center     *string
	sizeDeg    *string
	sizeMeters *string
}

func addAreaFlags(cmd *kingpin.CmdClause) *areaFlags {
	return &areaFlags{
		bounds:     cmd.Flag("bounds", "area to render. [W,N,E,S] Example: -0.13,51.51,-0.12,51.50").String(),
		center:     cmd.Flag("center", "center of the area to render, used with --size-deg or --size-meters. [LAT,LON] Example: 51.505,-0.125").String(),
		sizeDeg:    cmd.Flag("size-deg", "side length of the area around --center, in degrees").String(),
		sizeMeters: cmd.Flag("size-meters", "side length of the area around --center, in meters").String(),
	}
}

func (f *areaFlags) toBounds() (osm.Bounds, errorsx.Error) {
	return roadposter.ParseArea(*f.bounds, *f.center, *f.sizeDeg, *f.sizeMeters)
}

func loadStyle(styleFilePath string) (*styling.Style, errorsx.Error) {
	if styleFilePath == "" {
		return styling.BuiltinStyle(), nil
	}

	return styling.LoadStyleFile(styleFilePath)
}

func setupRender() {
	cmd := kingpin.Command("render", "render a poster to a PNG file")
	area := addAreaFlags(cmd)
	dataSourceURL := cmd.Flag("source", dataSourceHelp).Default(DEFAULT_DATA_SOURCE).String()
	size := cmd.Flag("size", "width and height of the poster, in pixels").Default(fmt.Sprintf("%d", webservices.DefaultPosterSize)).Int()
	padding := cmd.Flag("padding", "width of the blank border, in pixels. Defaults to 1/20 of the size").Default("-1").Int()
	styleFilePath := cmd.Flag("style-file", "path to a YAML style file. If not given, the built-in style is used").String()
	categoriesStr := cmd.Flag("categories", "comma separated list of road categories (highway tag values) to draw").String()
	outFilePath := cmd.Flag("out", "path of the PNG file to write").Short('o').Required().String()
	shouldProfile := cmd.Flag("profile", "profile the render performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			var err error

			if *shouldProfile {
				defer profile.Start(profile.CPUProfile).Stop()
			}

			bounds, err := area.toBounds()
			if err != nil {
				return errorsx.Wrap(err)
			}

			filter, err := roadposterdal.ParseRoadFilter(*categoriesStr)
			if err != nil {
				return errorsx.Wrap(err)
			}

			style, err := loadStyle(*styleFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}

			paddingPx := *padding
			if paddingPx < 0 {
				paddingPx = *size / 20
			}

			opts := roadposterrenderer.RasterOptions{
				Size:     *size,
				Padding:  paddingPx,
				StyleMap: style.LineWidths,
			}

			dataSource, closeDataSource, err := loadDataSource(*dataSourceURL)
			if err != nil {
				return errorsx.Wrap(err)
			}
			defer closeDataSource()

			renderer := roadposterrenderer.NewRasterRenderer(logger, dataSource, fonts.DefaultFont())

			startTime := time.Now()

			img, err := renderer.RenderPoster(context.Background(), bounds, filter, opts)
			if err != nil {
				if errorsx.Cause(err) == roadposterrenderer.ErrEmptyGeometry {
					return errorsx.Wrap(err, "hint", "no roads found in the area. Try a bigger area or more road categories")
				}
				return errorsx.Wrap(err)
			}

			outFile, err := os.Create(*outFilePath)
			if err != nil {
				return errorsx.Wrap(err)
			}
			defer outFile.Close()

			err = png.Encode(outFile, img)
			if err != nil {
				return errorsx.Wrap(err)
			}

			logger.Info("rendered %q in %s", *outFilePath, time.Since(startTime))

			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

var addrHelp = fmt.Sprintf(
	`address to serve on. Ex: ':%d' listen on port %d to traffic from anywhere. 'localhost:%d' listen on port %d to traffic from localhost`,
	DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT, DEFAULT_PORT,
)

func setupServe() {
	cmd := kingpin.Command("serve", "serve webserver")
	addr := cmd.Flag("addr", addrHelp).Default(fmt.Sprintf(":%d", DEFAULT_PORT)).String()
	dataSourceURL := cmd.Flag("source", dataSourceHelp).Default(DEFAULT_DATA_SOURCE).String()
	rootDir := cmd.Flag("root-dir", "directory containing the styles and trace directories").Default(roadposterdal.DefaultRootDir).String()
	stylesDir := cmd.Flag("styles-dir", "directory containing YAML style files. Defaults to the styles directory inside --root-dir").String()
	defaultStyleID := cmd.Flag("default-style-id", "default style to render with").Default(styling.BUILTIN_STYLEID).String()
	categoriesStr := cmd.Flag("categories", "comma separated list of road categories (highway tag values) to draw by default").String()
	maxConcurrentRenders := cmd.Flag("max-concurrent-renders", "maximum amount of posters rendered at the same time").Default(fmt.Sprintf("%d", DEFAULT_MAX_CONCURRENT_RENDERS)).Uint()
	shouldProfile := cmd.Flag("profile", "profile the request performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) error {
		run := func() errorsx.Error {
			var err error

			pathsConfig, err := roadposterdal.NewPathsConfig(*rootDir)
			if err != nil {
				return errorsx.Wrap(err)
			}

			if *stylesDir != "" {
				pathsConfig.StylesDir = *stylesDir
			}

			err = pathsConfig.EnsurePaths()
			if err != nil {
				return errorsx.Wrap(err)
			}

			styleSet, err := styling.LoadStylesFromDir(logger, pathsConfig.StylesDir, *defaultStyleID)
			if err != nil {
				return errorsx.Wrap(err)
			}

			filter, err := roadposterdal.ParseRoadFilter(*categoriesStr)
			if err != nil {
				return errorsx.Wrap(err)
			}

			dataSource, closeDataSource, err := loadDataSource(*dataSourceURL)
			if err != nil {
				return errorsx.Wrap(err)
			}
			defer closeDataSource()

			router, err := createServer(logger, dataSource, styleSet, filter, pathsConfig, *maxConcurrentRenders, *shouldProfile)
			if err != nil {
				return errorsx.Wrap(err)
			}

			server := httpextra.NewServerWithTimeouts()
			server.Addr = *addr
			server.Handler = router

			logger.Info("about to start serving on %q, with data source %q", *addr, dataSource.Name())

			err = server.ListenAndServe()
			if err != nil {
				return errorsx.Wrap(err)
			}
			return nil
		}

		err := run()
		if err != nil {
			return fmt.Errorf("error: %q\nStack trace:\n%s", err.Error(), err.Stack())
		}
		return nil
	})
}

func createServer(logger *logpkg.Logger, dataSource roadposterdal.DataSource, styleSet *styling.StyleSet, filter *roadposterdal.RoadFilter, pathsConfig *roadposterdal.PathsConfig, maxConcurrentRenders uint, shouldProfile bool) (chi.Router, errorsx.Error) {
	renderer := roadposterrenderer.NewRasterRenderer(logger, dataSource, fonts.DefaultFont())
	metrics := webservices.NewRenderMetrics()

	traceFilePath := filepath.Join(pathsConfig.TraceDir, fmt.Sprintf("trace_%s.pbf", time.Now().Format("2006-01-02__03_04_05")))
	logger.Info("tracing at %q", traceFilePath)

	traceFile, err := os.Create(traceFilePath)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	tracer := tracing.NewTracer(traceFile)

	router := chi.NewRouter()
	router.Use(middleware.DefaultLogger)
	router.Use(tracing.Middleware(tracer))
	router.Route("/api/", func(r chi.Router) {
		r.Mount("/info", webservices.NewInfoService(logger, dataSource, styleSet, filter))
		r.Mount("/poster", webservices.NewPosterService(logger, renderer, styleSet, filter, metrics, maxConcurrentRenders, shouldProfile))
	})
	router.Handle("/metrics", metrics.Handler())

	return router, nil
}

var postgresqlConnHelp = fmt.Sprintf(
	"PostgreSQL database to import into, without the %s%s prefix. For example: user:pass@localhost/roadposter",
	roadposterdal.DataSourceTypePostgresql,
	roadposterdal.ConnectionPathSeparator,
)

func setupImport() {
	cmd := kingpin.Command("import", "import the roads of a PBF file into a PostgreSQL database")
	filePath := cmd.Arg("file", "PBF file to import").Required().String()
	postgresqlConn := cmd.Arg("postgresql-conn", postgresqlConnHelp).Required().String()
	boundsStr := cmd.Flag("bounds", "only import the roads with at least one point inside the bounds. [W,N,E,S] Example: -1,1,1,-1. Defaults to the whole world").String()
	categoriesStr := cmd.Flag("categories", "comma separated list of road categories (highway tag values) to import").String()
	shouldProfile := cmd.Flag("profile", "profile the import performance").Bool()
	cmd.Action(func(ctx *kingpin.ParseContext) (err error) {
		defer func() {
			errorx, ok := err.(errorsx.Error)
			if ok {
				log.Printf("%s\n%s\n", errorx.Error(), errorx.Stack())
			}
		}()

		if *shouldProfile {
			defer profile.Start(profile.CPUProfile).Stop()
		}

		startTime := time.Now()

		bounds := roadposter.GetWholeWorldBounds()
		if *boundsStr != "" {
			bounds, err = roadposter.ParseWNESBounds(*boundsStr)
			if err != nil {
				return errorsx.Wrap(err)
			}
		}

		filter, err := roadposterdal.ParseRoadFilter(*categoriesStr)
		if err != nil {
			return errorsx.Wrap(err)
		}

		logger.Info("filePath: %s", *filePath)

		pbfDataSource := roadposterdal.NewPBFDataSource(logger, *filePath, roadposterdal.OpenPBFFileFunc(gofs.NewOsFs(), *filePath))

		waySet, err := pbfDataSource.GetWays(context.Background(), bounds, filter)
		if err != nil {
			return errorsx.Wrap(err)
		}

		db, err := roadpostersqldb.NewPostgresqlDBConn(logger, *postgresqlConn)
		if err != nil {
			return errorsx.Wrap(err)
		}
		defer db.Close()

		err = db.EnsureSchema(context.Background())
		if err != nil {
			return errorsx.Wrap(err)
		}

		err = db.ImportWaySet(context.Background(), waySet)
		if err != nil {
			return errorsx.Wrap(err)
		}

		logger.Info("import finished in %s", time.Since(startTime))

		return nil
	})
}

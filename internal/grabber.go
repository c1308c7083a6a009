package internal

import (
	"context"
	"fmt"
	"sync"

	"github.com/grabberapp/grabber/internal/api"
	"github.com/grabberapp/grabber/internal/consent"
	"github.com/grabberapp/grabber/internal/database"
	"github.com/grabberapp/grabber/internal/download"
	"github.com/grabberapp/grabber/internal/extractor"
	"github.com/grabberapp/grabber/internal/files"
	"github.com/grabberapp/grabber/internal/ratings"
	"github.com/grabberapp/grabber/pkg/logger"
)

var log = logger.Get("Core")

const GRABBER_USER_DIR_SUFFIX = "grabber"

type (
	RunnableService interface {
		Run(context.Context) error
	}

	// Grabber represents the top-level object for the server, responsible
	// for initialising the database connection, stores, services and the
	// REST gateway, and for supervising them while running.
	grabberImpl struct {
		config GrabberConfig
		folder string

		db              database.Manager
		downloadService *download.Service
		fileService     *files.Service
		janitor         *files.Janitor
		ratingStore     *ratings.Store
		consentStore    *consent.Store
	}
)

func New(config GrabberConfig) *grabberImpl {
	log.Emit(logger.DEBUG, "Bootstrapping Grabber services using config: %#v\n", config)

	folder := config.getDownloadFolder()
	downloadService, err := download.New(
		download.Config{DownloadFolder: folder},
		extractor.NewYtdlp(config.Extractor),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct download service due to error: %s", err.Error()))
	}

	return &grabberImpl{
		config:          config,
		folder:          folder,
		db:              database.New(),
		downloadService: downloadService,
		fileService:     files.NewService(folder),
		janitor:         files.NewJanitor(config.Janitor, folder),
		ratingStore:     ratings.NewStore(),
		consentStore:    consent.NewStore(),
	}
}

// Run brings up the database connection, the REST gateway and the
// download-folder janitor, and will not return until the provided context
// is cancelled or one of the services fails.
func (grabber *grabberImpl) Run(parent context.Context) error {
	log.Emit(logger.NEW, "Connecting to database...\n")
	if err := grabber.db.Connect(grabber.config.Database); err != nil {
		return err
	}
	defer grabber.db.Close()

	restGateway := api.NewRestGateway(
		&grabber.config.Rest,
		grabber.downloadService,
		grabber.fileService,
		grabber.db.GetSqlxDb(),
		grabber.ratingStore,
		grabber.consentStore,
		grabber.folder,
	)

	ctx, ctxCancel := context.WithCancelCause(parent)
	defer ctxCancel(nil)

	wg := &sync.WaitGroup{}
	run := func(label string, service RunnableService) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := service.Run(ctx); err != nil {
				log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
				ctxCancel(err)
			}
		}()
	}

	log.Emit(logger.NEW, "Starting REST gateway on %s\n", grabber.config.Rest.HostAddr)
	run("rest-gateway", restGateway)
	run("janitor", grabber.janitor)

	wg.Wait()

	if cause := context.Cause(ctx); cause != ctx.Err() {
		return cause
	}

	return nil
}

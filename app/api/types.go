package api

import (
	"time"

	"github.com/lysyi3m/moltdir/app/database"
	"github.com/lysyi3m/moltdir/app/dataset"
	"github.com/lysyi3m/moltdir/app/portal"
)

type DatasetLoaderInterface interface {
	Load() (*dataset.Dataset, error)
}

var _ DatasetLoaderInterface = (*dataset.Store)(nil)

type GeneratorInterface interface {
	Run(portals []portal.Portal, updated time.Time, selfLink string) string
}

var _ GeneratorInterface = (*RSSGenerator)(nil)

type Handler struct {
	store     DatasetLoaderInterface
	siteRepo  database.SiteRepositoryInterface
	runRepo   database.RunRepositoryInterface
	generator GeneratorInterface
}

package app

import (
	"database/sql"

	"github.com/go-chi/oauth"

	"github.com/backtalk/backtalk/config"
)

type App struct {
	*sql.DB
	*oauth.BearerServer
	config.Config
}

package routes

import (
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"

	"github.com/backtalk/backtalk/app"
	"github.com/backtalk/backtalk/routes/middlewares"
)

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api/v1", apiRouter(app))

	root.
		With(middlewares.CookieAuth(app.BearerServer), middlewares.Admin(app.TokenSecret)).
		Mount("/admin", servePrivateFiles("/admin"))
	root.Mount("/", servePublicFiles())

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// respondent-facing
	api.Get("/surveys/{hash}", PublicGetSurveyByHash(app))
	api.Get("/surveys/share/{hash}", PublicGetSharedResponses(app))
	api.Post("/responses/new", PublicCreateResponse(app))
	api.Patch("/responses/update", PublicUpdateResponse(app))

	// owner dashboard
	api.Group(func(r chi.Router) {
		r.Use(middlewares.Admin(app.TokenSecret))

		r.Post("/surveys", CreateSurvey(app))
		r.Get("/surveys", ListSurveys(app))
		r.Delete("/surveys/delete", DeleteSurvey(app))
		r.Patch("/surveys/update", UpdateSurveyMeta(app))

		r.Get("/responses/{hash}", GetSurveyResponses(app))
		r.Get("/responses/{hash}/csv", ExportSurveyResponses(app))
		r.Delete("/responses/delete", DeleteResponse(app))
	})

	api.Post("/login", Login(app))
	api.Post("/refresh", Refresh(app))

	return api
}

func servePublicFiles() http.Handler {
	return http.FileServer(http.Dir("public"))
}

func servePrivateFiles(path string) http.Handler {
	return http.StripPrefix(path, http.FileServer(http.Dir("private")))
}

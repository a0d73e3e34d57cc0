package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"trails/infrastructure/di"
	"trails/interfaces/http/rest/handlers"
	"trails/interfaces/http/rest/middleware"
	"trails/pkg/common"
)

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	return &Router{container: container, logger: container.Logger}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.container.Config.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)

	canvasHandler := handlers.NewCanvasHandler(rt.container.Graph, rt.container.Lifecycle, rt.logger)
	nodeHandler := handlers.NewNodeHandler(rt.container.Graph, rt.logger)
	submitHandler := handlers.NewSubmitHandler(rt.container.Lifecycle, rt.container.Orchestrator, rt.logger)
	workspaceHandler := handlers.NewWorkspaceHandler(rt.container.Graph, rt.container.Catalog, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		// Canvas catalog
		r.Route("/canvases", func(r chi.Router) {
			r.Get("/", canvasHandler.ListCanvases)
			r.Post("/", canvasHandler.CreateCanvas)
			r.Get("/{canvasID}", canvasHandler.GetCanvas)
			r.Put("/{canvasID}", canvasHandler.RenameCanvas)
			r.Delete("/{canvasID}", canvasHandler.DeleteCanvas)
			r.Post("/{canvasID}/activate", canvasHandler.ActivateCanvas)
			r.Post("/{canvasID}/changes", canvasHandler.ApplyChanges)
			r.Post("/{canvasID}/cancel", canvasHandler.CancelCanvas)

			// Nodes
			r.Post("/{canvasID}/nodes", nodeHandler.CreatePrompt)
			r.Put("/{canvasID}/nodes/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/{canvasID}/nodes/{nodeID}", nodeHandler.DeleteNode)
			r.Post("/{canvasID}/nodes/{nodeID}/hide", nodeHandler.HideNode)
			r.Post("/{canvasID}/merge", nodeHandler.MergeNodes)

			// Dispatch
			r.Post("/{canvasID}/prompts", submitHandler.SubmitPrompt)
			r.Post("/{canvasID}/nodes/{nodeID}/submit", submitHandler.Submit)
			r.Post("/{canvasID}/nodes/{nodeID}/resubmit", submitHandler.Resubmit)
		})

		// Selection on the active canvas
		r.Route("/selection", func(r chi.Router) {
			r.Get("/", nodeHandler.GetSelection)
			r.Put("/", nodeHandler.SetSelection)
			r.Post("/merge", nodeHandler.MergeSelection)
		})

		// Memory search
		r.Get("/search", canvasHandler.Search)

		// Catalog and preferences
		r.Get("/models", workspaceHandler.ListModels)
		r.Route("/personas", func(r chi.Router) {
			r.Get("/", workspaceHandler.ListPersonas)
			r.Post("/", workspaceHandler.CreatePersona)
			r.Put("/{personaID}", workspaceHandler.UpdatePersona)
			r.Delete("/{personaID}", workspaceHandler.DeletePersona)
		})
		r.Get("/settings", workspaceHandler.GetSettings)
		r.Put("/settings", workspaceHandler.UpdateSettings)
		r.Get("/keys", workspaceHandler.ListAPIKeyProviders)
		r.Put("/keys/{provider}", workspaceHandler.SetAPIKey)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

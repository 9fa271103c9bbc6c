package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/VoidMesh/worldstream/internal/logging"
	"github.com/VoidMesh/worldstream/services/height"
	"github.com/VoidMesh/worldstream/services/picking"
	"github.com/VoidMesh/worldstream/services/residency"
	"github.com/VoidMesh/worldstream/services/spatial"
	"github.com/VoidMesh/worldstream/services/spawn"
	"github.com/VoidMesh/worldstream/services/world"
)

// ResourceSource exposes placed resource nodes. *spawn.Spawner implements it.
type ResourceSource interface {
	Resources(coord spatial.Coord) ([]spawn.Resource, bool)
	Chunks() int
	Count() int
}

type Handler struct {
	engine    *world.Engine
	resources ResourceSource
	events    *EventHub
	logger    *log.Logger
}

// NewHandler serves the engine. resources may be nil when spawning is
// disabled and events may be nil when no event stream is wanted.
func NewHandler(engine *world.Engine, resources ResourceSource, events *EventHub) *Handler {
	return &Handler{
		engine:    engine,
		resources: resources,
		events:    events,
		logger:    logging.WithComponent("api"),
	}
}

func (h *Handler) StreamEvents(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.renderError(w, r, http.StatusNotFound, "event stream is disabled", nil)
		return
	}
	h.events.HandleWebSocket(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "worldstream",
		"version":   "1.0.0",
	}
	if anchor, ok := h.engine.Anchor(); ok {
		response["anchor"] = anchor
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, response)
}

func (h *Handler) GetHeight(w http.ResponseWriter, r *http.Request) {
	x, err := strconv.ParseFloat(r.URL.Query().Get("x"), 64)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid x coordinate", err)
		return
	}
	z, err := strconv.ParseFloat(r.URL.Query().Get("z"), 64)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid z coordinate", err)
		return
	}

	probe, err := h.engine.Probe(x, z)
	if err != nil {
		h.renderError(w, r, statusFor(err), "failed to resolve height", err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, probe)
}

func (h *Handler) UpdateAnchor(w http.ResponseWriter, r *http.Request) {
	var req AnchorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	update, err := h.engine.UpdateAnchor(req.X, req.Z)
	if err != nil {
		h.renderError(w, r, statusFor(err), "failed to update anchor", err)
		return
	}

	h.logger.Debug("Anchor updated via API",
		"anchor", update.Anchor, "loaded", len(update.Loaded), "unloaded", len(update.Unloaded))

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newAnchorResponse(update, len(h.engine.Resident())))
}

func (h *Handler) Pick(w http.ResponseWriter, r *http.Request) {
	var req PickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid request body", err)
		return
	}

	var (
		hit picking.Hit
		ok  bool
		err error
	)
	switch {
	case req.NDC != nil && req.Screen != nil:
		h.renderError(w, r, http.StatusBadRequest, "provide either ndc or screen, not both", nil)
		return
	case req.NDC != nil:
		hit, ok, err = h.engine.ResolvePick(req.NDC[0], req.NDC[1], req.View, req.Projection)
	case req.Screen != nil:
		s := req.Screen
		hit, ok, err = h.engine.ResolveScreenPick(s.X, s.Y, s.Width, s.Height, req.View, req.Projection)
	default:
		h.renderError(w, r, http.StatusBadRequest, "ndc or screen is required", nil)
		return
	}
	if err != nil {
		h.renderError(w, r, statusFor(err), "failed to resolve pick", err)
		return
	}

	resp := PickResponse{Hit: ok}
	if ok {
		chunk := spatial.ChunkOf(float64(hit.Point.X()), float64(hit.Point.Z()), h.engine.ChunkWorldSize())
		resp.Point = &hit.Point
		resp.Distance = hit.Distance
		resp.Iterations = hit.Iterations
		resp.Ray = &hit.Ray
		resp.Chunk = &chunk
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) ListChunks(w http.ResponseWriter, r *http.Request) {
	chunks := h.engine.Resident()
	resp := ChunkListResponse{
		Radius: h.engine.Radius(),
		Count:  len(chunks),
		Chunks: chunks,
	}
	if anchor, ok := h.engine.Anchor(); ok {
		resp.Anchor = &anchor
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) GetChunk(w http.ResponseWriter, r *http.Request) {
	coord, ok := h.chunkCoords(w, r)
	if !ok {
		return
	}

	summary, resident := h.engine.ChunkSummary(coord.X, coord.Z)
	if !resident {
		h.renderError(w, r, http.StatusNotFound, "chunk is "+summary.State.String(), nil)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, summary)
}

func (h *Handler) GetChunkGeometry(w http.ResponseWriter, r *http.Request) {
	coord, ok := h.chunkCoords(w, r)
	if !ok {
		return
	}

	geom, resident := h.engine.ChunkGeometry(coord.X, coord.Z)
	if !resident {
		h.renderError(w, r, http.StatusNotFound, "chunk is not resident", nil)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, newGeometryResponse(coord, geom))
}

func (h *Handler) GetChunkResources(w http.ResponseWriter, r *http.Request) {
	coord, ok := h.chunkCoords(w, r)
	if !ok {
		return
	}
	if h.resources == nil {
		h.renderError(w, r, http.StatusNotFound, "resource spawning is disabled", nil)
		return
	}

	nodes, resident := h.resources.Resources(coord)
	if !resident {
		h.renderError(w, r, http.StatusNotFound, "chunk is not resident", nil)
		return
	}
	if nodes == nil {
		nodes = []spawn.Resource{}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ResourcesResponse{Chunk: coord, Count: len(nodes), Resources: nodes})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{World: h.engine.Stats()}
	if h.resources != nil {
		resp.Resources = &ResourceStats{
			Chunks: h.resources.Chunks(),
			Nodes:  h.resources.Count(),
		}
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

func (h *Handler) chunkCoords(w http.ResponseWriter, r *http.Request) (spatial.Coord, bool) {
	chunkX, err := strconv.ParseInt(chi.URLParam(r, "x"), 10, 32)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid chunk x coordinate", err)
		return spatial.Coord{}, false
	}

	chunkZ, err := strconv.ParseInt(chi.URLParam(r, "z"), 10, 32)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, "invalid chunk z coordinate", err)
		return spatial.Coord{}, false
	}

	return spatial.Coord{X: int32(chunkX), Z: int32(chunkZ)}, true
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, residency.ErrInvalidAnchor),
		errors.Is(err, height.ErrInvalidCoordinate),
		errors.Is(err, picking.ErrInvalidPick),
		errors.Is(err, picking.ErrDegenerateProjection):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	errorResponse := ErrorResponse{
		Error: message,
		Code:  status,
	}

	if err != nil {
		errorResponse.Message = err.Error()
		h.logger.Error("API error", "error", err, "message", message, "status", status)
		// Don't expose internal errors to the client
		if status >= 500 {
			errorResponse.Error = "Internal server error"
			errorResponse.Message = ""
		}
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse)
}

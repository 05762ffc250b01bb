// Package ingest is the HTTP boundary between the ETL producer and the
// aggregation engine: it decodes event envelopes, hands them to the
// dispatcher, and serves the persisted aggregates to dashboards.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/harmwatch/harmwatch/internal/engine"
	"github.com/harmwatch/harmwatch/internal/fact"
	"github.com/harmwatch/harmwatch/internal/store"
)

type Handler struct {
	dispatcher *engine.Dispatcher
	store      store.AggregateStore
	log        zerolog.Logger
}

func NewHandler(dispatcher *engine.Dispatcher, st store.AggregateStore, log zerolog.Logger) *Handler {
	return &Handler{dispatcher: dispatcher, store: st, log: log}
}

// RegisterRoutes wires the ingest and read surfaces. authMW may be nil in
// development mode.
func (h *Handler) RegisterRoutes(e *echo.Echo, authMW echo.MiddlewareFunc) {
	ingestGroup := e.Group("/ingest")
	readGroup := e.Group("/aggregates")
	if authMW != nil {
		ingestGroup.Use(authMW)
		readGroup.Use(authMW)
	}
	ingestGroup.POST("/events", h.IngestEvent)
	readGroup.GET("/:encounterId", h.GetAggregate)

	e.GET("/healthz", h.Health)
}

// eventEnvelope is the wire shape of an inbound event. Facts are decoded per
// the declared kind; envelopes carrying no facts are valid for admit,
// discharge and timer events.
type eventEnvelope struct {
	Type        engine.EventType  `json:"type"`
	EncounterID string            `json:"encounterId"`
	PatientID   string            `json:"patientId"`
	FactKind    fact.Kind         `json:"factKind,omitempty"`
	Facts       []json.RawMessage `json:"facts,omitempty"`
}

func (h *Handler) IngestEvent(c echo.Context) error {
	var env eventEnvelope
	if err := c.Bind(&env); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed event envelope")
	}
	if !engine.ValidEventType(env.Type) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown event type %q", env.Type))
	}
	if env.EncounterID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "encounterId is required")
	}
	if env.Type == engine.EventFactsUpdated && !fact.ValidKind(env.FactKind) {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("unknown fact kind %q", env.FactKind))
	}

	facts, err := decodeFacts(env.FactKind, env.Facts)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ev := engine.Event{
		Type:        env.Type,
		EncounterID: env.EncounterID,
		PatientID:   env.PatientID,
		FactKind:    env.FactKind,
		Facts:       facts,
	}
	if err := h.dispatcher.Dispatch(c.Request().Context(), ev); err != nil {
		h.log.Error().Err(err).
			Str("encounter_id", ev.EncounterID).
			Str("event_type", string(ev.Type)).
			Msg("dispatch failed")
		return echo.NewHTTPError(http.StatusBadGateway, "aggregate store unavailable")
	}

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":      "accepted",
		"encounterId": ev.EncounterID,
	})
}

func decodeFacts(kind fact.Kind, raws []json.RawMessage) ([]fact.Fact, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	facts := make([]fact.Fact, 0, len(raws))
	for i, raw := range raws {
		var (
			f   fact.Fact
			err error
		)
		switch kind {
		case fact.KindObservation:
			var o fact.Observation
			err = json.Unmarshal(raw, &o)
			f = o
		case fact.KindProcedureRequest:
			var p fact.ProcedureRequest
			err = json.Unmarshal(raw, &p)
			f = p
		case fact.KindMedicationOrder:
			var m fact.MedicationOrder
			err = json.Unmarshal(raw, &m)
			f = m
		case fact.KindFlag:
			var fl fact.Flag
			err = json.Unmarshal(raw, &fl)
			f = fl
		default:
			return nil, fmt.Errorf("facts carried without a declared kind")
		}
		if err != nil {
			return nil, fmt.Errorf("malformed fact at index %d: %v", i, err)
		}
		facts = append(facts, f)
	}
	return facts, nil
}

func (h *Handler) GetAggregate(c echo.Context) error {
	encounterID := c.Param("encounterId")
	agg, err := h.store.Get(c.Request().Context(), encounterID)
	if errors.Is(err, store.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "no aggregate for encounter")
	}
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, "aggregate store unavailable")
	}
	return c.JSON(http.StatusOK, agg)
}

func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
